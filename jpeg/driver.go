package jpeg

import (
	"bytes"
	"io"

	"github.com/pkg/errors"

	"github.com/AssassinJY/live-motion-photos-convert/metaio"
)

func init() {
	metaio.RegisterContainerFormat("jpeg", "\xff\xd8\xff", func() metaio.Container {
		return new(File)
	})
}

var _ metaio.Container = new(File)

// File is a JPEG image with its metadata segments.
type File struct {
	r io.Reader

	rawMeta []metaio.RawMeta

	dx, dy int
}

var jpegExifPfx = []byte("Exif\x00\x00")
var jpegXMPPfx = []byte("http://ns.adobe.com/xap/1.0/\x00")

var jfifChunkHeader = []byte("JFIF\x00")
var jfxxChunkHeader = []byte("JFXX\x00")

// Parse scans the segments of r up to the start of scan,
// recording the Exif and XMP metadata and the frame size.
//
// The reader is retained: WriteTo rewinds and recopies it,
// so r must also be an io.ReadSeeker for WriteTo to work.
func (f *File) Parse(r io.Reader) error {
	j, err := NewScanner(r)
	if err != nil {
		return err
	}

	var ex, xmp []byte
	for (ex == nil || xmp == nil || f.dx == 0) && j.NextChunk() {
		p := j.Bytes()

		if f.dx == 0 && len(p) >= 9 && isSOF(p[1]) {
			f.dy = int(p[5])<<8 + int(p[6])
			f.dx = int(p[7])<<8 + int(p[8])
			continue
		}

		var pdata *[]byte
		var trim int
		switch {
		case ex == nil && j.IsChunk(0xe1, jpegExifPfx):
			pdata, trim = &ex, len(jpegExifPfx)
		case xmp == nil && j.IsChunk(0xe1, jpegXMPPfx):
			pdata, trim = &xmp, len(jpegXMPPfx)
		}

		if pdata == nil {
			continue
		}

		_, p, err := j.ReadChunk()
		if err != nil {
			return err
		}

		*pdata = p[trim:]
	}
	if err := j.Err(); err != nil {
		return err
	}

	f.r = r

	if ex != nil {
		f.rawMeta = append(f.rawMeta, metaio.RawMeta{
			Name:  "exif",
			Bytes: ex,
		})
	}

	if xmp != nil {
		f.rawMeta = append(f.rawMeta, metaio.RawMeta{
			Name:  "xmp",
			Bytes: xmp,
		})
	}

	return nil
}

// Size reports the frame dimensions from the start of frame segment.
func (f *File) Size() (dx, dy int, ok bool) {
	return f.dx, f.dy, f.dx != 0
}

// RawMeta returns the metadata segments found by Parse.
func (f *File) RawMeta() []metaio.RawMeta { return f.rawMeta }

// SetRawMeta replaces the metadata segments written by WriteTo.
func (f *File) SetRawMeta(rm []metaio.RawMeta) { f.rawMeta = rm }

// WriteTo writes the image with the replacement metadata spliced in.
// Metadata segments are placed in the standard order: JFIF and JFXX
// first, then Exif, then XMP, then the remaining segments and the
// image data unchanged.
func (f *File) WriteTo(w io.Writer) error {
	rs, ok := f.r.(io.ReadSeeker)
	if !ok {
		return metaio.ErrNotReadSeeker
	}

	_, err := rs.Seek(0, io.SeekStart)
	if err != nil {
		return errors.Wrap(err, "jpeg: seek error")
	}

	j, err := NewScanner(rs)
	if err != nil {
		return err
	}

	var exifdata []byte
	var xmpdata []byte
	var dropExif, dropXMP bool

	for _, rm := range f.rawMeta {
		switch rm.Name {
		case "exif":
			if rm.Bytes == nil {
				dropExif = true
				continue
			}
			exifdata = make([]byte, len(jpegExifPfx)+len(rm.Bytes))
			n := copy(exifdata, jpegExifPfx)
			copy(exifdata[n:], rm.Bytes)
		case "xmp":
			if rm.Bytes == nil {
				dropXMP = true
				continue
			}
			xmpdata = make([]byte, len(jpegXMPPfx)+len(rm.Bytes))
			n := copy(xmpdata, jpegXMPPfx)
			copy(xmpdata[n:], rm.Bytes)
		}
	}

	var segments [][]byte
	var jfifSeg, jfxxSeg []byte
	hasMask := uint(0)

	const (
		hasJFIF = uint(1 << iota)
		hasJFXX
		hasExif
		hasXMP
	)

	for hasMask != (hasJFIF|hasJFXX|hasExif|hasXMP) && j.Next() {
		seg, err := j.ReadSegment()
		if err != nil {
			return err
		}

		switch {

		case jfifSeg == nil && isChunkSegment(seg, 0xe0, jfifChunkHeader):
			hasMask |= hasJFIF
			jfifSeg = seg

		case jfxxSeg == nil && isChunkSegment(seg, 0xe0, jfxxChunkHeader):
			hasMask |= hasJFXX
			jfxxSeg = seg

		case isChunkSegment(seg, 0xe1, jpegExifPfx):
			hasMask |= hasExif
			if exifdata == nil && !dropExif {
				exifdata = seg[4:]
			}

		case isChunkSegment(seg, 0xe1, jpegXMPPfx):
			hasMask |= hasXMP
			if xmpdata == nil && !dropXMP {
				xmpdata = seg[4:]
			}

		default:
			segments = append(segments, seg)
		}
	}
	if err := j.Err(); err != nil {
		return err
	}

	// write segments in standard jpeg/jfif header order
	ww := errw{w: w}
	ww.write(segments[0])
	ww.write(jfifSeg)
	ww.write(jfxxSeg)

	if exifdata != nil {
		err := WriteChunk(w, 0xe1, exifdata)
		if err != nil {
			return err
		}
	}

	if xmpdata != nil {
		err := WriteChunk(w, 0xe1, xmpdata)
		if err != nil {
			return err
		}
	}

	// write other segments in jpeg (quantization, Huffman, SOF...)
	for _, seg := range segments[1:] {
		ww.write(seg)
	}

	if ww.err != nil {
		return ww.err
	}

	// copy bytes unread so far, such as actual image data
	_, err = io.Copy(w, j.Reader())
	return err
}

// isSOF reports whether marker starts a frame header.
// DHT, JPG extension and DAC share the SOF marker range.
func isSOF(marker byte) bool {
	switch marker {
	case 0xc4, 0xc8, 0xcc:
		return false
	}
	return 0xc0 <= marker && marker <= 0xcf
}

func isChunkSegment(seg []byte, marker byte, pfx []byte) bool {
	if len(seg) >= 4 && seg[0] == '\xff' && seg[1] == marker {
		return bytes.HasPrefix(seg[4:], pfx)
	}
	return false
}

type errw struct {
	w   io.Writer
	err error
}

func (w *errw) write(p []byte) {
	_, w.err = w.w.Write(p)
}
