package heic

import (
	"io"

	"github.com/pkg/errors"

	"github.com/AssassinJY/live-motion-photos-convert/metaio"
)

func init() {
	// registered before the generic movie magic so HEIF brands
	// are not claimed by the mp4 container
	for _, magic := range []string{
		"????ftyphei",
		"????ftyphev",
		"????ftypmif1",
		"????ftypmsf1",
	} {
		metaio.RegisterContainerFormat("heic", magic, func() metaio.Container {
			return new(Container)
		})
	}
}

var _ metaio.Container = new(Container)

// Container adapts a HEIF file to the metaio container interface,
// exposing the Exif item as the "exif" segment.
type Container struct {
	f *File

	rawMeta []metaio.RawMeta
}

// Parse reads the HEIF structure of r into memory.
func (c *Container) Parse(r io.Reader) error {
	p, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f, err := Parse(p)
	if err != nil {
		return err
	}
	c.f = f

	exif, err := f.Exif()
	switch {
	case err == nil:
		c.rawMeta = append(c.rawMeta, metaio.RawMeta{
			Name:  "exif",
			Bytes: exif,
		})
	case errors.Is(err, ErrNoExif):
		// no exif item; segment list stays empty
	default:
		return err
	}
	return nil
}

// File returns the parsed HEIF file.
func (c *Container) File() *File { return c.f }

// RawMeta returns the metadata segments found by Parse.
func (c *Container) RawMeta() []metaio.RawMeta { return c.rawMeta }

// SetRawMeta replaces the metadata segments written by WriteTo.
func (c *Container) SetRawMeta(rm []metaio.RawMeta) { c.rawMeta = rm }

// WriteTo writes the file with the replacement Exif item patched in.
// Setting an Exif segment on a file without an Exif item, or removing
// the item, is not supported and fails with ErrAttrUnwritable.
func (c *Container) WriteTo(w io.Writer) error {
	if c.f == nil {
		return errors.New("heic: container not parsed")
	}

	out := c.f.data
	for _, rm := range c.rawMeta {
		if rm.Name != "exif" {
			continue
		}
		if rm.Bytes == nil {
			return errors.Wrap(metaio.ErrAttrUnwritable, "heic: cannot remove exif item")
		}
		p, err := c.f.SetExif(rm.Bytes)
		if err != nil {
			if errors.Is(err, ErrNoExif) || errors.Is(err, ErrUnwritableItem) {
				return errors.Wrap(metaio.ErrAttrUnwritable, err.Error())
			}
			return err
		}
		out = p
		break
	}

	_, err := w.Write(out)
	return err
}
