package testutil

import "encoding/binary"

// Synthetic media builders. The fixtures are minimal but structurally
// valid files: parsers in this module accept them, and byte layouts
// (item locations, chunk offsets) are internally consistent.

// box builds a box with the given payload parts.
func box(cc4 string, payload ...[]byte) []byte {
	n := 8
	for _, p := range payload {
		n += len(p)
	}
	v := make([]byte, 0, n)
	v = append(v, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
	v = append(v, cc4...)
	for _, p := range payload {
		v = append(v, p...)
	}
	return v
}

func be16(v int) []byte { return []byte{byte(v >> 8), byte(v)} }

func be32(v int) []byte {
	var p [4]byte
	binary.BigEndian.PutUint32(p[:], uint32(v))
	return p[:]
}

// SyntheticJPEG builds a JPEG with optional Exif and XMP APP1
// segments, a one-component frame and a tiny entropy stream.
func SyntheticJPEG(exifTIFF, xmpPacket []byte) []byte {
	var v []byte
	v = append(v, 0xff, 0xd8) // SOI

	app1 := func(p []byte) {
		v = append(v, 0xff, 0xe1)
		v = append(v, be16(len(p)+2)...)
		v = append(v, p...)
	}
	if exifTIFF != nil {
		app1(append([]byte("Exif\x00\x00"), exifTIFF...))
	}
	if xmpPacket != nil {
		app1(append([]byte("http://ns.adobe.com/xap/1.0/\x00"), xmpPacket...))
	}

	// SOF0: 8-bit 16x16 single component
	v = append(v, 0xff, 0xc0)
	v = append(v, be16(11)...)
	v = append(v, 8, 0, 16, 0, 16, 1, 1, 0x11, 0)

	// SOS followed by entropy data with a stuffed 0xff
	v = append(v, 0xff, 0xda)
	v = append(v, be16(8)...)
	v = append(v, 1, 1, 0, 0, 0x3f, 0)
	v = append(v, 0x12, 0x34, 0xff, 0x00, 0x56, 0x78)

	v = append(v, 0xff, 0xd9) // EOI
	return v
}

// SyntheticHEIC builds a HEIF file whose single Exif item holds the
// given TIFF content. The item lives in an mdat following the meta
// box and is located by an absolute (version 1) iloc entry.
func SyntheticHEIC(exifTIFF []byte) []byte {
	ftyp := box("ftyp", []byte("heic"), be32(0), []byte("heic"), []byte("mif1"))

	item := append([]byte{0, 0, 0, 0}, "Exif\x00\x00"...)
	item = append(item, exifTIFF...)

	hdlr := box("hdlr", be32(0), be32(0), []byte("pict"), make([]byte, 13))
	infe := box("infe",
		[]byte{2, 0, 0, 0}, // version 2
		be16(1),            // item ID
		be16(0),            // protection index
		[]byte("Exif"),
		[]byte("Exif\x00"))
	iinf := box("iinf", []byte{0, 0, 0, 0}, be16(1), infe)

	buildIloc := func(itemOffset int) []byte {
		return box("iloc",
			[]byte{1, 0, 0, 0},  // version 1
			[]byte{0x44, 0x00},  // offset and length 4 bytes, no base offset
			be16(1),             // item count
			be16(1),             // item ID
			be16(0),             // construction method 0
			be16(0),             // data reference index
			be16(1),             // extent count
			be32(itemOffset),
			be32(len(item)))
	}

	meta := func(iloc []byte) []byte {
		return box("meta", be32(0), hdlr, iinf, iloc)
	}

	// the item offset depends on the meta box size; the iloc size
	// itself is offset independent
	probe := meta(buildIloc(0))
	itemOffset := len(ftyp) + len(probe) + 8

	var v []byte
	v = append(v, ftyp...)
	v = append(v, meta(buildIloc(itemOffset))...)
	v = append(v, box("mdat", item)...)
	return v
}

// SyntheticMOV builds a movie with a single video track of two
// samples, mdat preceding moov, usable as a composer source.
func SyntheticMOV(samples ...[]byte) []byte {
	if len(samples) == 0 {
		samples = [][]byte{[]byte("frame-0!"), []byte("frame-1!")}
	}

	ftyp := box("ftyp", []byte("qt  "), be32(0), []byte("qt  "))

	var mdat []byte
	for _, s := range samples {
		mdat = append(mdat, s...)
	}

	sampleBase := len(ftyp) + 8
	delta := 300 // timescale 600, half a second per sample
	duration := delta * len(samples)

	var stszEntries, stcoEntries, stscEntries []byte
	off := sampleBase
	for i, s := range samples {
		stszEntries = append(stszEntries, be32(len(s))...)
		stcoEntries = append(stcoEntries, be32(off)...)
		stscEntries = append(stscEntries, be32(i+1)...)
		stscEntries = append(stscEntries, be32(1)...)
		stscEntries = append(stscEntries, be32(1)...)
		off += len(s)
	}

	stsdEntry := append(be32(24), []byte("avc1")...)
	stsdEntry = append(stsdEntry, make([]byte, 6)...)
	stsdEntry = append(stsdEntry, be16(1)...)
	stsdEntry = append(stsdEntry, make([]byte, 8)...)

	stbl := box("stbl",
		box("stsd", be32(0), be32(1), stsdEntry),
		box("stts", be32(0), be32(1), be32(len(samples)), be32(delta)),
		box("stsc", be32(0), be32(len(samples)), stscEntries),
		box("stsz", be32(0), be32(0), be32(len(samples)), stszEntries),
		box("stco", be32(0), be32(len(samples)), stcoEntries),
	)

	tkhd := make([]byte, 0, 84)
	tkhd = append(tkhd, 0, 0, 0, 7) // version 0, enabled flags
	tkhd = append(tkhd, be32(0)...) // created
	tkhd = append(tkhd, be32(0)...) // modified
	tkhd = append(tkhd, be32(1)...) // track ID
	tkhd = append(tkhd, be32(0)...)
	tkhd = append(tkhd, be32(duration)...)
	tkhd = append(tkhd, make([]byte, 16)...)
	tkhd = append(tkhd, identity3x3...)
	tkhd = append(tkhd, be32(16<<16)...) // width
	tkhd = append(tkhd, be32(16<<16)...) // height

	mdhd := make([]byte, 0, 24)
	mdhd = append(mdhd, be32(0)...)
	mdhd = append(mdhd, be32(0)...)
	mdhd = append(mdhd, be32(0)...)
	mdhd = append(mdhd, be32(600)...)      // timescale
	mdhd = append(mdhd, be32(duration)...) // duration
	mdhd = append(mdhd, be16(0x55c4)...)
	mdhd = append(mdhd, be16(0)...)

	hdlr := make([]byte, 0, 25)
	hdlr = append(hdlr, be32(0)...)
	hdlr = append(hdlr, be32(0)...)
	hdlr = append(hdlr, []byte("vide")...)
	hdlr = append(hdlr, make([]byte, 13)...)

	dref := box("dref", be32(0), be32(1), be32(12), []byte("url "), []byte{0, 0, 0, 1})

	trak := box("trak",
		box("tkhd", tkhd),
		box("mdia",
			box("mdhd", mdhd),
			box("hdlr", hdlr),
			box("minf",
				box("vmhd", []byte{0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 0}),
				box("dinf", dref),
				stbl,
			),
		),
	)

	mvhd := make([]byte, 0, 100)
	mvhd = append(mvhd, be32(0)...)
	mvhd = append(mvhd, be32(0)...)
	mvhd = append(mvhd, be32(0)...)
	mvhd = append(mvhd, be32(600)...)
	mvhd = append(mvhd, be32(duration)...)
	mvhd = append(mvhd, be32(0x00010000)...)
	mvhd = append(mvhd, be16(0x0100)...)
	mvhd = append(mvhd, make([]byte, 10)...)
	mvhd = append(mvhd, identity3x3...)
	mvhd = append(mvhd, make([]byte, 24)...)
	mvhd = append(mvhd, be32(2)...) // next track ID

	moov := box("moov", box("mvhd", mvhd), trak)

	var v []byte
	v = append(v, ftyp...)
	v = append(v, box("mdat", mdat)...)
	v = append(v, moov...)
	return v
}

var identity3x3 = []byte{
	0, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0x40, 0, 0, 0,
}
