package exif

import (
	"encoding/binary"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/AssassinJY/live-motion-photos-convert/exif/exiftag"
	"github.com/AssassinJY/live-motion-photos-convert/metaio"
)

func init() {
	metaio.RegisterMetadataFormat("exif", func() metaio.Metadata {
		return &Exif{ByteOrder: binary.BigEndian}
	})
}

func (x *Exif) MetadataName() string { return "exif" }

func (x *Exif) UnmarshalMetadata(p []byte) error {
	xx, err := DecodeBytes(p)
	if err != nil {
		return err
	}
	*x = *xx
	return nil
}

func (x *Exif) MarshalMetadata() ([]byte, error) {
	return x.EncodeBytes()
}

func (x *Exif) GetMetadataAttr(attr string) interface{} {
	ac, ok := attrMap[attr]
	if !ok {
		return nil
	}
	return ac.get(x)
}

func (x *Exif) SetMetadataAttr(attr string, value interface{}) error {
	ac, ok := attrMap[attr]
	if !ok {
		return errors.Errorf("exif: unknown attr %q", attr)
	}
	err := ac.set(x, value)
	if err != nil {
		return errors.Wrapf(err, "exif: can't set attr %q", attr)
	}
	return nil
}

func (x *Exif) DeleteMetadataAttr(attr string) error {
	ac, ok := attrMap[attr]
	if !ok {
		return errors.Errorf("exif: unknown attr %q", attr)
	}
	ac.delete(x)
	return nil
}

var attrMap = map[string]attrConv{
	metaio.ContentIdentifier: attrConv{
		get: func(x *Exif) interface{} {
			if id, ok := x.ContentIdentifier(); ok {
				return id
			}
			return nil
		},
		set: func(x *Exif, val interface{}) error {
			s, ok := val.(string)
			if !ok {
				return errors.New("invalid type")
			}
			return x.SetContentIdentifier(s)
		},
		// Deleting zeroes the identifier but keeps the rest of
		// the maker note, so camera fields are not lost.
		delete: func(x *Exif) {
			x.SetContentIdentifier(uuid.Nil.String())
		},
	},

	metaio.MicroVideo:       longAttr(exiftag.MicroVideo),
	metaio.EmbeddedVideo:    longAttr(exiftag.EmbeddedVideo),
	metaio.XiaomiMicroVideo: longAttr(exiftag.XiaomiMicroVideo),
}

type attrConv struct {
	get    func(x *Exif) interface{}
	set    func(x *Exif, val interface{}) error
	delete func(x *Exif)
}

func longAttr(tag uint32) attrConv {
	return attrConv{
		get: func(x *Exif) interface{} {
			if v := x.Tag(tag).Long(); len(v) > 0 {
				return int(v[0])
			}
			return nil
		},
		set: func(x *Exif, val interface{}) error {
			i, ok := val.(int)
			if !ok {
				return errors.New("invalid type")
			}
			x.Set(tag, Long{uint32(i)})
			return nil
		},
		delete: func(x *Exif) {
			x.Set(tag, nil)
		},
	}
}
