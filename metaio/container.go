package metaio

import (
	"bytes"
	"errors"
	"io"
)

// Container is a media file holding zero or more encoded metadata
// segments. Parse records the file structure and segment bytes,
// SetRawMeta replaces the segments, and WriteTo writes the container
// with the replacement segments spliced in. Content outside the
// metadata segments is preserved byte for byte.
type Container interface {
	Parse(r io.Reader) error
	WriteTo(w io.Writer) error

	// RawMeta returns the encoded metadata segments found by Parse.
	RawMeta() []RawMeta

	// SetRawMeta replaces the container's metadata segments.
	// A RawMeta with nil Bytes removes the named segment.
	SetRawMeta([]RawMeta)
}

// RawMeta is one encoded metadata segment within a container.
type RawMeta struct {
	Name  string // metadata format name, such as "exif" or "xmp"
	Bytes []byte
}

// Get returns the segment with the given name, or nil.
func Get(v []RawMeta, name string) []byte {
	for _, rm := range v {
		if rm.Name == name {
			return rm.Bytes
		}
	}
	return nil
}

// Set returns v with the named segment replaced or appended.
func Set(v []RawMeta, name string, p []byte) []RawMeta {
	for i, rm := range v {
		if rm.Name == name {
			v[i].Bytes = p
			return v
		}
	}
	return append(v, RawMeta{Name: name, Bytes: p})
}

// RegisterContainerFormat registers a container format for NewContainer.
// Magic bytes may contain '?' wildcards.
func RegisterContainerFormat(name, magic string, newc func() Container) {
	containerFormats = append(containerFormats, containerFormat{
		name:  name,
		magic: magic,
		new:   newc,
	})
}

type containerFormat struct {
	name, magic string

	new func() Container
}

var containerFormats []containerFormat

var ErrUnknownFormat = errors.New("metadata: unknown content format")

// ErrNotReadSeeker is returned by Container.WriteTo when the reader
// passed to Parse must be rewound but does not support seeking.
var ErrNotReadSeeker = errors.New("metadata: container reader is not an io.ReadSeeker")

// NewContainer detects the container format of r from its leading
// bytes, parses it, and returns the parsed container with the
// registered format name.
func NewContainer(r io.Reader) (Container, string, error) {
	const prefixLen = 16
	buf := make([]byte, prefixLen)

	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, "", err
	}

	c, cname := containerForPrefix(buf)
	if c == nil {
		return nil, "", ErrUnknownFormat
	}

	var rr io.Reader

	rs, isSeeker := r.(io.ReadSeeker)
	if isSeeker {
		if _, err := rs.Seek(0, io.SeekStart); err != nil {
			return nil, "", err
		}
		rr = r
	} else {
		rr = io.MultiReader(bytes.NewReader(buf), r)
	}

	if err := c.Parse(rr); err != nil {
		return nil, "", err
	}

	return c, cname, nil
}

// containerForPrefix returns the registered format matching prefix.
// The longest magic wins, so a specific match such as a HEIF brand
// takes precedence over the generic ftyp pattern.
func containerForPrefix(prefix []byte) (Container, string) {
	var best *containerFormat
	for i, cf := range containerFormats {
		if !MatchMagic(prefix, cf.magic) {
			continue
		}
		if best == nil || len(cf.magic) > len(best.magic) {
			best = &containerFormats[i]
		}
	}
	if best == nil {
		return nil, ""
	}
	return best.new(), best.name
}

// MatchMagic reports whether prefix starts with magic,
// treating '?' in magic as a wildcard byte.
func MatchMagic(prefix []byte, magic string) bool {
	if len(prefix) < len(magic) {
		return false
	}
	for i := 0; i < len(magic); i++ {
		if magic[i] != '?' && magic[i] != prefix[i] {
			return false
		}
	}
	return true
}
