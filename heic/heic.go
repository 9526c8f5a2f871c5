// Package heic reads and rewrites the Exif item of HEIF still image
// files. Image data and every other item are never touched: a rewrite
// patches the item location table in place and keeps all other bytes
// of the file identical.
package heic

import (
	"bytes"

	"github.com/pkg/errors"
)

var (
	// ErrNotHEIC is returned by Parse for content that is not a
	// HEIF file.
	ErrNotHEIC = errors.New("heic: not a heif file")

	// ErrNoExif is returned when the file has no Exif item.
	ErrNoExif = errors.New("heic: no exif item")

	// ErrUnwritableItem is returned by SetExif when the Exif item
	// location cannot be patched, such as an idat-relative item.
	ErrUnwritableItem = errors.New("heic: exif item not rewritable")
)

// brands accepted in the ftyp major or compatible brand list.
var heifBrands = []string{"heic", "heix", "hevc", "hevx", "mif1", "msf1"}

// File is a parsed HEIF file. The source bytes are retained;
// SetExif returns a patched copy.
type File struct {
	data []byte

	exifID uint32
	loc    *itemLocation // nil when the file has no Exif item
}

type itemLocation struct {
	constructionMethod int
	baseOffset         uint64

	extent []ilocExtent
}

// ilocExtent records one extent value along with the file position
// and width of the iloc fields holding it, so the fields can be
// patched in place.
type ilocExtent struct {
	offset, length uint64

	offPos, offSize int
	lenPos, lenSize int
}

// Parse reads the HEIF item structure of p.
// A file without an Exif item parses successfully;
// Exif and SetExif report ErrNoExif for it.
func Parse(p []byte) (*File, error) {
	if len(p) < 16 || string(p[4:8]) != "ftyp" {
		return nil, ErrNotHEIC
	}
	if !isHEIFBrand(p) {
		return nil, ErrNotHEIC
	}

	f := &File{data: p}

	metaStart, metaEnd, err := findBox(p, 0, len(p), "meta")
	if err != nil {
		return nil, errors.Wrap(err, "heic: meta box")
	}
	// meta is a full box
	if metaEnd-metaStart < 4 {
		return nil, formatError("meta box too short")
	}
	metaStart += 4

	iinfStart, iinfEnd, err := findBox(p, metaStart, metaEnd, "iinf")
	if err != nil {
		return nil, errors.Wrap(err, "heic: iinf box")
	}
	id, ok, err := findExifItem(p, iinfStart, iinfEnd)
	if err != nil {
		return nil, err
	}
	if !ok {
		return f, nil
	}
	f.exifID = id

	ilocStart, ilocEnd, err := findBox(p, metaStart, metaEnd, "iloc")
	if err != nil {
		return nil, errors.Wrap(err, "heic: iloc box")
	}
	loc, err := findItemLocation(p, ilocStart, ilocEnd, id)
	if err != nil {
		return nil, err
	}
	f.loc = loc

	return f, nil
}

func isHEIFBrand(p []byte) bool {
	start, end, err := findBox(p, 0, len(p), "ftyp")
	if err != nil {
		return false
	}
	for pos := start; pos+4 <= end; pos += 4 {
		// the minor version follows the major brand
		if pos == start+4 {
			continue
		}
		for _, b := range heifBrands {
			if string(p[pos:pos+4]) == b {
				return true
			}
		}
	}
	return false
}

// Exif returns the TIFF content of the Exif item.
func (f *File) Exif() ([]byte, error) {
	if f.loc == nil {
		return nil, ErrNoExif
	}
	if f.loc.constructionMethod != 0 {
		return nil, ErrUnwritableItem
	}

	var item []byte
	for _, e := range f.loc.extent {
		start := f.loc.baseOffset + e.offset
		end := start + e.length
		if end > uint64(len(f.data)) {
			return nil, formatError("exif extent beyond file end")
		}
		item = append(item, f.data[start:end]...)
	}
	return stripExifItemHeader(item)
}

var exifSig = []byte("Exif\x00\x00")

// stripExifItemHeader removes the Exif item header, a 4-byte offset
// to the "Exif\0\0" signature followed by the signature itself.
func stripExifItemHeader(p []byte) ([]byte, error) {
	if len(p) >= 4 {
		sig := 4 + int(beUint32(p))
		if sig >= 0 && sig+len(exifSig) <= len(p) && bytes.Equal(p[sig:sig+len(exifSig)], exifSig) {
			return p[sig+len(exifSig):], nil
		}
	}
	// some writers store the TIFF content without the wrapper
	if len(p) >= 4 && (string(p[:4]) == "II*\x00" || string(p[:4]) == "MM\x00*") {
		return p, nil
	}
	return nil, formatError("unrecognized exif item header")
}

// SetExif returns a copy of the file with the Exif item replaced by
// the given TIFF content. The new payload overwrites the old extent
// when it fits; otherwise it is appended in a new mdat box at the end
// of the file and the item location is repointed. All other bytes are
// preserved.
func (f *File) SetExif(tiff []byte) ([]byte, error) {
	if f.loc == nil {
		return nil, ErrNoExif
	}
	if f.loc.constructionMethod != 0 || len(f.loc.extent) != 1 {
		return nil, ErrUnwritableItem
	}
	e := f.loc.extent[0]

	payload := make([]byte, 0, 4+len(exifSig)+len(tiff))
	payload = append(payload, 0, 0, 0, 0) // signature directly follows
	payload = append(payload, exifSig...)
	payload = append(payload, tiff...)

	out := make([]byte, len(f.data))
	copy(out, f.data)

	if uint64(len(payload)) <= e.length {
		copy(out[f.loc.baseOffset+e.offset:], payload)
		if err := putUintN(out, e.lenPos, e.lenSize, uint64(len(payload))); err != nil {
			return nil, err
		}
		return out, nil
	}

	// the relocated payload goes inside a new mdat box at the end of
	// the file, so every byte of the output belongs to some box
	hdr := make([]byte, 8)
	if err := putUintN(hdr, 0, 4, uint64(8+len(payload))); err != nil {
		return nil, err
	}
	copy(hdr[4:], "mdat")

	newOffset := uint64(len(out)) + 8
	if newOffset < f.loc.baseOffset {
		return nil, ErrUnwritableItem
	}
	out = append(out, hdr...)
	out = append(out, payload...)
	if err := putUintN(out, e.offPos, e.offSize, newOffset-f.loc.baseOffset); err != nil {
		return nil, err
	}
	if err := putUintN(out, e.lenPos, e.lenSize, uint64(len(payload))); err != nil {
		return nil, err
	}
	return out, nil
}

// RewriteExif replaces the Exif item of the HEIF file p.
func RewriteExif(p, tiff []byte) ([]byte, error) {
	f, err := Parse(p)
	if err != nil {
		return nil, err
	}
	return f.SetExif(tiff)
}
