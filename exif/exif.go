// Package exif implements an Exif 2.2 encoder and decoder
// for the raw Exif block of JPEG and HEIC images.
//
// The package works on the TIFF structure directly and keeps
// unknown fields intact, so that images can be rewritten with
// only the fields of interest changed.
package exif

import (
	"encoding/binary"

	"github.com/AssassinJY/live-motion-photos-convert/exif/exiftag"
)

// Exif represents decoded Exif metadata.
type Exif struct {
	ByteOrder binary.ByteOrder

	// Main image directory and its Exif, GPS and
	// interoperability sub-IFDs.
	IFD0    Dir
	Exif    Dir
	GPS     Dir
	Interop Dir

	// Thumbnail directory and raw thumbnail data.
	IFD1  Dir
	Thumb []byte
}

// dir returns the directory of id, or nil
// if id has an unknown directory class.
func (x *Exif) dir(id uint32) *Dir {
	switch id & exiftag.DirMask {
	case exiftag.Tiff:
		return &x.IFD0
	case exiftag.Exif:
		return &x.Exif
	case exiftag.GPS:
		return &x.GPS
	case exiftag.Interop:
		return &x.Interop
	}
	return nil
}

// Tag returns the tag for id. The result is never nil:
// if id is missing, the result is simply invalid.
func (x *Exif) Tag(id uint32) *Tag {
	t := &Tag{ByteOrder: x.ByteOrder}
	if d := x.dir(id); d != nil {
		if e := d.Tag(uint16(id & exiftag.TagMask)); e != nil {
			t.E = *e
		}
	}
	return t
}

// Set sets the field id to v, creating it as needed.
// A nil v removes the field.
func (x *Exif) Set(id uint32, v Value) {
	d := x.dir(id)
	if d == nil {
		return
	}
	tag := uint16(id & exiftag.TagMask)
	if v == nil {
		d.Remove(tag)
		return
	}
	typ, count, value := v.encode(x.ByteOrder)
	e := d.EnsureTag(tag)
	e.Type = typ
	e.Count = count
	e.Value = value
}
