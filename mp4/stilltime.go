package mp4

import (
	"io"
	"time"
)

// StillImageTime reports whether the movie carries a timed metadata
// track with a still-image-time entry, and the cover position the
// track's edit list places it at.
func (f *File) StillImageTime() (time.Duration, bool) {
	moov := f.Find("moov")
	if moov == nil {
		return 0, false
	}

	mvhdBox := moov.Find("mvhd")
	if mvhdBox == nil {
		return 0, false
	}
	mvhd, err := DecodeMVHD(mvhdBox.Raw)
	if err != nil || mvhd.TimeUnit == 0 {
		return 0, false
	}

	for _, trak := range moov.FindAll("trak") {
		hdlr := trak.Find("mdia", "hdlr")
		if hdlr == nil || len(hdlr.Raw) < 12 || string(hdlr.Raw[8:12]) != TrackMeta {
			continue
		}
		stbl := trak.Find("mdia", "minf", "stbl")
		if stbl == nil || stbl.Find("stsd") == nil {
			continue
		}

		keyID, ok := stillImageTimeKey(stbl.Find("stsd").Raw)
		if !ok || !f.hasStillImageTimeSample(stbl, keyID) {
			continue
		}

		offset := emptyEditDuration(trak.Find("edts", "elst"))
		return time.Duration(offset) * time.Second / time.Duration(mvhd.TimeUnit), true
	}
	return 0, false
}

// stillImageTimeKey finds the local key ID declared for the
// still-image-time key in a boxed metadata sample description.
func stillImageTimeKey(stsd []byte) (uint32, bool) {
	if len(stsd) < 8 {
		return 0, false
	}
	pos := 8 // version/flags, entry count
	for pos+16 <= len(stsd) {
		size := int(mp4bo.Uint32(stsd[pos:]))
		if size < 16 || pos+size > len(stsd) {
			return 0, false
		}
		if string(stsd[pos+4:pos+8]) == "mebx" {
			// reserved and data reference index precede the key table
			if id, ok := findKeyDeclaration(stsd[pos+16:pos+size], KeyStillImageTime); ok {
				return id, true
			}
		}
		pos += size
	}
	return 0, false
}

// findKeyDeclaration walks the keys box of a mebx sample entry
// looking for the local key declared with the given mdta name.
func findKeyDeclaration(p []byte, name string) (uint32, bool) {
	pos := 0
	for pos+8 <= len(p) {
		size := int(mp4bo.Uint32(p[pos:]))
		if size < 8 || pos+size > len(p) {
			return 0, false
		}
		if string(p[pos+4:pos+8]) == "keys" {
			inner := p[pos+8 : pos+size]
			ipos := 0
			for ipos+8 <= len(inner) {
				isize := int(mp4bo.Uint32(inner[ipos:]))
				if isize < 8 || ipos+isize > len(inner) {
					break
				}
				localID := mp4bo.Uint32(inner[ipos+4:])
				if keyDeclarationName(inner[ipos+8:ipos+isize]) == name {
					return localID, true
				}
				ipos += isize
			}
		}
		pos += size
	}
	return 0, false
}

func keyDeclarationName(p []byte) string {
	pos := 0
	for pos+12 <= len(p) {
		size := int(mp4bo.Uint32(p[pos:]))
		if size < 12 || pos+size > len(p) {
			return ""
		}
		if string(p[pos+4:pos+8]) == "keyd" && string(p[pos+8:pos+12]) == "mdta" {
			return string(p[pos+12 : pos+size])
		}
		pos += size
	}
	return ""
}

// hasStillImageTimeSample reads the track's samples and reports
// whether one holds an item with the given local key.
func (f *File) hasStillImageTimeSample(stbl *Box, keyID uint32) bool {
	st, err := decodeStbl(stbl)
	if err != nil {
		return false
	}
	for _, s := range st.Samples {
		if s.Size > 256 {
			continue
		}
		p := make([]byte, s.Size)
		if _, err := f.r.ReadAt(p, s.Offset); err != nil {
			return false
		}
		pos := 0
		for pos+8 <= len(p) {
			size := int(mp4bo.Uint32(p[pos:]))
			if size < 8 || pos+size > len(p) {
				break
			}
			if mp4bo.Uint32(p[pos+4:]) == keyID {
				return true
			}
			pos += size
		}
	}
	return false
}

// emptyEditDuration returns the duration of a leading empty edit
// in movie time units, or 0.
func emptyEditDuration(elst *Box) uint64 {
	if elst == nil || len(elst.Raw) < 8 {
		return 0
	}
	p := elst.Raw
	version := p[0]
	n := int(mp4bo.Uint32(p[4:]))
	if n < 1 {
		return 0
	}
	if version == 1 {
		if len(p) < 8+20 {
			return 0
		}
		if int64(mp4bo.Uint64(p[16:])) == -1 {
			return mp4bo.Uint64(p[8:])
		}
		return 0
	}
	if len(p) < 8+12 {
		return 0
	}
	if int32(mp4bo.Uint32(p[12:])) == -1 {
		return uint64(mp4bo.Uint32(p[8:]))
	}
	return 0
}

// Passthrough copies the movie to w with the content identifier set
// in its movie-level Keys metadata, leaving track structure and
// sample data untouched. It serves sources the Composer rejects.
func (f *File) Passthrough(w io.Writer, contentIdentifier string) error {
	keys, err := f.DecodeKeys()
	if err != nil {
		return err
	}
	keys.SetString(KeyContentIdentifier, contentIdentifier)
	if err := f.SetKeys(keys); err != nil {
		return err
	}
	// the rewritten moov changes size, so chunk offsets must be
	// repaired and the movie relaid before writing
	if err := f.Optimize(); err != nil {
		return err
	}
	_, err = f.WriteTo(w)
	return err
}
