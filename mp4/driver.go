package mp4

import (
	"bytes"
	"io"

	"github.com/pkg/errors"

	"github.com/AssassinJY/live-motion-photos-convert/metaio"
)

func init() {
	metaio.RegisterContainerFormat("mp4", "????ftyp", func() metaio.Container {
		return new(Container)
	})
	metaio.RegisterMetadataFormat("quicktime-keys", func() metaio.Metadata {
		return new(KeysMeta)
	})
}

var _ metaio.Container = new(Container)

// Container adapts a movie file to the metaio container interface.
// The movie-level Keys metadata is exposed as the "quicktime-keys"
// segment; track structure and sample data pass through unchanged.
type Container struct {
	f *File

	rawMeta []metaio.RawMeta
}

// Parse reads the movie structure of r. Sample data stays in r, so
// r must remain readable until WriteTo.
func (c *Container) Parse(r io.Reader) error {
	ra, size, err := readerAtSize(r)
	if err != nil {
		return err
	}
	f, err := Parse(ra, size)
	if err != nil {
		return err
	}
	c.f = f

	keys, err := f.DecodeKeys()
	if err != nil {
		return err
	}
	if len(keys.Entry) != 0 {
		p, err := (&KeysMeta{Keys: *keys}).MarshalMetadata()
		if err != nil {
			return err
		}
		c.rawMeta = append(c.rawMeta, metaio.RawMeta{
			Name:  "quicktime-keys",
			Bytes: p,
		})
	}
	return nil
}

// File returns the parsed movie.
func (c *Container) File() *File { return c.f }

// RawMeta returns the metadata segments found by Parse.
func (c *Container) RawMeta() []metaio.RawMeta { return c.rawMeta }

// SetRawMeta replaces the metadata segments written by WriteTo.
func (c *Container) SetRawMeta(rm []metaio.RawMeta) { c.rawMeta = rm }

// WriteTo writes the movie with the replacement Keys metadata
// spliced in and the moov box moved ahead of the sample data.
func (c *Container) WriteTo(w io.Writer) error {
	if c.f == nil {
		return errors.New("mp4: container not parsed")
	}

	keys := new(Keys)
	for _, rm := range c.rawMeta {
		if rm.Name != "quicktime-keys" {
			continue
		}
		if rm.Bytes == nil {
			break
		}
		var km KeysMeta
		if err := km.UnmarshalMetadata(rm.Bytes); err != nil {
			return err
		}
		keys = &km.Keys
		break
	}

	if err := c.f.SetKeys(keys); err != nil {
		return err
	}
	if err := c.f.Optimize(); err != nil {
		return err
	}
	_, err := c.f.WriteTo(w)
	return err
}

// readerAtSize adapts r for random access parsing. Seekable readers
// are used in place; anything else is buffered in memory.
func readerAtSize(r io.Reader) (io.ReaderAt, int64, error) {
	if ra, ok := r.(io.ReaderAt); ok {
		if rs, ok := r.(io.Seeker); ok {
			size, err := rs.Seek(0, io.SeekEnd)
			if err != nil {
				return nil, 0, err
			}
			return ra, size, nil
		}
	}
	p, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, err
	}
	return bytes.NewReader(p), int64(len(p)), nil
}

var _ metaio.Metadata = new(KeysMeta)

// KeysMeta is the Keys metadata in the metaio attribute model. Its
// wire form is the payload of a QuickTime moov-level meta box: the
// hdlr, keys and ilst boxes concatenated.
type KeysMeta struct {
	Keys
}

func (m *KeysMeta) MetadataName() string { return "quicktime-keys" }

func (m *KeysMeta) UnmarshalMetadata(p []byte) error {
	box, err := parseBoxes(bytes.NewReader(p), 0, int64(len(p)))
	if err != nil {
		return err
	}
	var keysBox, ilst *Box
	for _, b := range box {
		switch b.Type {
		case "keys":
			keysBox = b
		case "ilst":
			ilst = b
		}
	}
	k, err := decodeKeysBoxes(keysBox, ilst)
	if err != nil {
		return err
	}
	m.Keys = *k
	return nil
}

func (m *KeysMeta) MarshalMetadata() ([]byte, error) {
	meta := encodeKeysMeta(&m.Keys)
	var buf bytes.Buffer
	for _, b := range meta.Child {
		b.updateSize()
		if err := b.write(&buf); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func (m *KeysMeta) GetMetadataAttr(attr string) interface{} {
	switch attr {
	case metaio.ContentIdentifier:
		if s, ok := m.String(KeyContentIdentifier); ok {
			return s
		}
	case metaio.LivePhotoAuto:
		if v, ok := m.Int8(KeyLivePhotoAuto); ok && v != 0 {
			return "1"
		}
	}
	return nil
}

func (m *KeysMeta) SetMetadataAttr(attr string, value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return errors.Errorf("mp4: attribute %s needs a string value", attr)
	}
	switch attr {
	case metaio.ContentIdentifier:
		m.SetString(KeyContentIdentifier, s)
	case metaio.LivePhotoAuto:
		if s == "1" {
			m.SetInt8(KeyLivePhotoAuto, 1)
		} else {
			m.Delete(KeyLivePhotoAuto)
		}
	default:
		return errors.Wrap(metaio.ErrAttrUnwritable, attr)
	}
	return nil
}

func (m *KeysMeta) DeleteMetadataAttr(attr string) error {
	switch attr {
	case metaio.ContentIdentifier:
		m.Delete(KeyContentIdentifier)
	case metaio.LivePhotoAuto:
		m.Delete(KeyLivePhotoAuto)
	default:
		return errors.Wrap(metaio.ErrAttrUnwritable, attr)
	}
	return nil
}
