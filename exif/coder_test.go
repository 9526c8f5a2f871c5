package exif

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/AssassinJY/live-motion-photos-convert/exif/exiftag"
)

func apU16(p []byte, bo binary.ByteOrder, v uint16) []byte {
	var b [2]byte
	bo.PutUint16(b[:], v)
	return append(p, b[:]...)
}

func apU32(p []byte, bo binary.ByteOrder, v uint32) []byte {
	var b [4]byte
	bo.PutUint32(b[:], v)
	return append(p, b[:]...)
}

// testTiff assembles a little-endian Exif block with
// out of line values, an Exif sub-IFD and a thumbnail.
func testTiff() []byte {
	bo := binary.LittleEndian
	var p []byte
	p = append(p, 'I', 'I')
	p = apU16(p, bo, 42)
	p = apU32(p, bo, 8) // IFD0 offset

	// IFD0 at 8
	p = apU16(p, bo, 3)
	p = apU16(p, bo, 0x010F) // Make, value at 50
	p = apU16(p, bo, TypeAscii)
	p = apU32(p, bo, 6)
	p = apU32(p, bo, 50)
	p = apU16(p, bo, 0x0132) // DateTime, value at 56
	p = apU16(p, bo, TypeAscii)
	p = apU32(p, bo, 20)
	p = apU32(p, bo, 56)
	p = apU16(p, bo, ifd0exifSub) // Exif sub-IFD at 76
	p = apU16(p, bo, TypeLong)
	p = apU32(p, bo, 1)
	p = apU32(p, bo, 76)
	p = apU32(p, bo, 106) // IFD1 offset

	p = append(p, "Apple\x00"...)
	p = append(p, "2023:08:12 10:11:12\x00"...)

	// Exif sub-IFD at 76
	p = apU16(p, bo, 2)
	p = apU16(p, bo, 0x8897) // MicroVideo
	p = apU16(p, bo, TypeLong)
	p = apU32(p, bo, 1)
	p = apU32(p, bo, 1)
	p = apU16(p, bo, 0x9000) // ExifVersion
	p = apU16(p, bo, TypeUndef)
	p = apU32(p, bo, 4)
	p = append(p, "0221"...)
	p = apU32(p, bo, 0)

	// IFD1 at 106
	p = apU16(p, bo, 3)
	p = apU16(p, bo, 0x0103) // Compression
	p = apU16(p, bo, TypeShort)
	p = apU32(p, bo, 1)
	p = apU16(p, bo, 6)
	p = apU16(p, bo, 0)
	p = apU16(p, bo, ifd1thumbOffset) // thumb at 148
	p = apU16(p, bo, TypeLong)
	p = apU32(p, bo, 1)
	p = apU32(p, bo, 148)
	p = apU16(p, bo, ifd1thumbLength)
	p = apU16(p, bo, TypeLong)
	p = apU32(p, bo, 1)
	p = apU32(p, bo, 4)
	p = apU32(p, bo, 0)

	p = append(p, 0xDE, 0xAD, 0xBE, 0xEF)
	return p
}

func TestDecodeBytes(t *testing.T) {
	x, err := DecodeBytes(testTiff())
	if err != nil {
		t.Fatal(err)
	}
	t.Log(Sdump(x))

	if x.ByteOrder != binary.LittleEndian {
		t.Error("want little-endian byte order")
	}

	if v, ok := x.Tag(exiftag.Make).Ascii(); !ok || v != "Apple" {
		t.Errorf("Make = %q, want %q", v, "Apple")
	}

	if v := x.Tag(exiftag.MicroVideo).Long(); len(v) != 1 || v[0] != 1 {
		t.Errorf("MicroVideo = %v, want [1]", v)
	}

	if v := x.Tag(exiftag.ExifVersion).Undef(); !bytes.Equal(v, []byte("0221")) {
		t.Errorf("ExifVersion = %q, want %q", v, "0221")
	}

	if !bytes.Equal(x.Thumb, []byte{0xDE, 0xAD, 0xBE, 0xEF}) {
		t.Errorf("Thumb = % x", x.Thumb)
	}
}

func TestDecodeTime(t *testing.T) {
	x, err := DecodeBytes(testTiff())
	if err != nil {
		t.Fatal(err)
	}

	dt, ok := x.DateTime()
	if !ok {
		t.Fatal("missing DateTime")
	}
	if got := dt.Format(TimeFormat); got != "2023:08:12 10:11:12" {
		t.Errorf("DateTime = %q", got)
	}
}

func TestDecodeCorrupt(t *testing.T) {
	src := testTiff()

	tests := []struct {
		name string
		p    []byte
		err  error
	}{
		{"short", src[:3], ErrCorruptHeader},
		{"order", append([]byte("XX"), src[2:8]...), ErrCorruptHeader},
		{"magic", append([]byte("II\x2B\x00"), src[4:8]...), ErrCorruptHeader},
		{"ifdptr", append(apU32(append([]byte{}, src[:4]...), binary.LittleEndian, 0xFFFF), 0), ErrCorruptDir},
	}

	for _, tt := range tests {
		if _, err := DecodeBytes(tt.p); err != tt.err {
			t.Errorf("%s: got %v, want %v", tt.name, err, tt.err)
		}
	}
}

func TestEncodeBytes(t *testing.T) {
	x, err := DecodeBytes(testTiff())
	if err != nil {
		t.Fatal(err)
	}

	enc, err := x.EncodeBytes()
	if err != nil {
		t.Fatal(err)
	}

	x2, err := DecodeBytes(enc)
	if err != nil {
		t.Fatal(err)
	}

	testExifEqual(t, x, x2)
}

func TestEncodeNew(t *testing.T) {
	x := New(4032, 3024)
	x.Set(exiftag.MicroVideo, Long{1})
	x.Set(exiftag.EmbeddedVideo, Long{1})
	x.Set(exiftag.Make, Ascii("Google"))

	enc, err := x.EncodeBytes()
	if err != nil {
		t.Fatal(err)
	}

	x2, err := DecodeBytes(enc)
	if err != nil {
		t.Fatal(err)
	}

	// the encoder adds the sub-IFD pointer to IFD0
	if x2.IFD0.Tag(ifd0exifSub) == nil {
		t.Error("missing Exif sub-IFD pointer")
	}
	testDirEqual(t, "Exif", x.Exif, x2.Exif)

	if v, ok := x2.Tag(exiftag.Make).Ascii(); !ok || v != "Google" {
		t.Errorf("Make = %q", v)
	}
	if v := x2.Tag(exiftag.PixelXDimension).Long(); len(v) != 1 || v[0] != 4032 {
		t.Errorf("PixelXDimension = %v", v)
	}
	if v := x2.Tag(exiftag.PixelYDimension).Long(); len(v) != 1 || v[0] != 3024 {
		t.Errorf("PixelYDimension = %v", v)
	}
	if v := x2.Tag(exiftag.MicroVideo).Long(); len(v) != 1 || v[0] != 1 {
		t.Errorf("MicroVideo = %v", v)
	}
}

func TestEncodeEmpty(t *testing.T) {
	x := &Exif{ByteOrder: binary.BigEndian}
	if _, err := x.EncodeBytes(); err != ErrEmpty {
		t.Errorf("got %v, want %v", err, ErrEmpty)
	}
}

func testExifEqual(t *testing.T, a, b *Exif) {
	testDirEqual(t, "IFD0", a.IFD0, b.IFD0)
	testDirEqual(t, "Exif", a.Exif, b.Exif)
	testDirEqual(t, "GPS", a.GPS, b.GPS)
	testDirEqual(t, "Interop", a.Interop, b.Interop)

	// check thumb IFD only if there is a thumb
	if len(a.Thumb) != 0 && len(b.Thumb) != 0 {
		testDirEqual(t, "IFD1", a.IFD1, b.IFD1)
	}
}

func testDirEqual(t *testing.T, name string, a, b Dir) {
	if len(a) != len(b) {
		t.Errorf("%s length differ: %d != %d\n", name, len(a), len(b))
		return
	}
	for i := range a {
		ta, tb := a[i], b[i]
		if ta.Tag != tb.Tag || ta.Type != tb.Type || ta.Count != tb.Count {
			t.Errorf("%s tag %d differ: %+v != %+v\n", name, i, ta, tb)
			continue
		}
		switch ta.Tag {
		case ifd0exifSub,
			ifd0gpsSub,
			ifd0interopSub,
			ifd1thumbOffset:
			// positional values change between encodings
			continue
		}
		if !bytes.Equal(ta.Value, tb.Value) {
			t.Errorf("%s value %d differ: %v != %v\n", name, i, ta.Value, tb.Value)
		}
	}
}
