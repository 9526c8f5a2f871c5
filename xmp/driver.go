package xmp

import (
	"encoding/xml"

	"github.com/pkg/errors"

	"github.com/AssassinJY/live-motion-photos-convert/metaio"
)

func init() {
	metaio.RegisterMetadataFormat("xmp", func() metaio.Metadata {
		return New()
	})
}

var _ metaio.Metadata = new(Meta)

func (m *Meta) MetadataName() string { return "xmp" }

func (m *Meta) UnmarshalMetadata(p []byte) error {
	mm, err := Decode(p)
	if err != nil {
		return err
	}
	*m = *mm
	return nil
}

func (m *Meta) MarshalMetadata() ([]byte, error) {
	return m.Encode()
}

func (m *Meta) GetMetadataAttr(attr string) interface{} {
	xn, ok := attrName[attr]
	if !ok {
		return nil
	}
	if v, ok := m.Int(xn); ok {
		return int(v)
	}
	return nil
}

func (m *Meta) SetMetadataAttr(attr string, value interface{}) error {
	xn, ok := attrName[attr]
	if !ok {
		return errors.Errorf("xmp: unknown attr %q", attr)
	}
	i, ok := value.(int)
	if !ok {
		return errors.Errorf("xmp: can't store %v (type %T) in attr %q", value, value, attr)
	}
	m.SetInt(xn, int64(i))
	return nil
}

func (m *Meta) DeleteMetadataAttr(attr string) error {
	xn, ok := attrName[attr]
	if !ok {
		return errors.Errorf("xmp: unknown attr %q", attr)
	}
	m.Delete(xn)
	return nil
}

// attrName binds shared attribute names to their
// GCamera packet fields. All values are integers.
var attrName = map[string]xml.Name{
	metaio.MicroVideo:                         microVideo,
	metaio.MicroVideoVersion:                  microVideoVersion,
	metaio.MicroVideoOffset:                   microVideoOffset,
	metaio.MicroVideoPresentationTimestampUs:  microVideoTimestamp,
	metaio.MotionPhoto:                        motionPhoto,
	metaio.MotionPhotoVersion:                 motionPhotoVersion,
	metaio.MotionPhotoPresentationTimestampUs: motionPhotoTimestamp,
}
