package heic

import (
	"encoding/binary"
	"fmt"
)

func formatError(f string, args ...interface{}) error {
	return fmt.Errorf("heic: "+f, args...)
}

func beUint32(p []byte) uint32 { return binary.BigEndian.Uint32(p) }

// walkBoxes calls fn with the payload range of each box between pos
// and end until fn reports done.
func walkBoxes(p []byte, pos, end int, fn func(cc4 string, start, end int) (bool, error)) error {
	for pos+8 <= end {
		size := int64(beUint32(p[pos:]))
		cc4 := string(p[pos+4 : pos+8])
		hlen := 8

		switch size {
		case 0:
			size = int64(end - pos)
		case 1:
			if pos+16 > end {
				return formatError("truncated %q box header", cc4)
			}
			size = int64(binary.BigEndian.Uint64(p[pos+8:]))
			hlen = 16
		}
		if size < int64(hlen) || int64(pos)+size > int64(end) {
			return formatError("invalid %q box size %d", cc4, size)
		}

		done, err := fn(cc4, pos+hlen, pos+int(size))
		if err != nil || done {
			return err
		}
		pos += int(size)
	}
	return nil
}

// findBox returns the payload range of the first box of the given
// type between pos and end.
func findBox(p []byte, pos, end int, cc4 string) (start, stop int, err error) {
	found := false
	err = walkBoxes(p, pos, end, func(typ string, s, e int) (bool, error) {
		if typ == cc4 {
			start, stop, found = s, e, true
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		return 0, 0, err
	}
	if !found {
		return 0, 0, formatError("%q box missing", cc4)
	}
	return start, stop, nil
}

// findExifItem scans the item info entries for an item of type Exif.
func findExifItem(p []byte, start, end int) (id uint32, ok bool, err error) {
	if end-start < 6 {
		return 0, false, formatError("iinf box too short")
	}
	version := p[start]
	pos := start + 4
	// the entry count is 16-bit in version 0 only
	if version == 0 {
		pos += 2
	} else {
		pos += 4
	}

	err = walkBoxes(p, pos, end, func(typ string, s, e int) (bool, error) {
		if typ != "infe" || e-s < 12 {
			return false, nil
		}
		var itemID uint32
		var itemType string
		switch p[s] {
		case 2:
			itemID = uint32(binary.BigEndian.Uint16(p[s+4:]))
			itemType = string(p[s+8 : s+12])
		case 3:
			if e-s < 14 {
				return false, nil
			}
			itemID = beUint32(p[s+4:])
			itemType = string(p[s+10 : s+14])
		default:
			return false, nil
		}
		if itemType == "Exif" {
			id, ok = itemID, true
			return true, nil
		}
		return false, nil
	})
	return id, ok, err
}

// findItemLocation decodes the iloc entry of the given item,
// recording where its extent fields live so they can be patched.
func findItemLocation(p []byte, start, end int, itemID uint32) (*itemLocation, error) {
	r := &sliceReader{p: p, pos: start, end: end}

	version := r.Byte()
	r.Skip(3) // flags

	sizes := r.Byte()
	offsetSize := int(sizes >> 4)
	lengthSize := int(sizes & 0xf)
	sizes = r.Byte()
	baseOffsetSize := int(sizes >> 4)
	indexSize := 0
	if version >= 1 {
		indexSize = int(sizes & 0xf)
	}

	var itemCount uint32
	if version < 2 {
		itemCount = uint32(r.Uint16())
	} else {
		itemCount = r.Uint32()
	}

	for i := uint32(0); i < itemCount; i++ {
		var id uint32
		if version < 2 {
			id = uint32(r.Uint16())
		} else {
			id = r.Uint32()
		}

		cm := 0
		if version == 1 || version == 2 {
			cm = int(r.Uint16() & 0xf)
		}
		r.Skip(2) // data reference index
		baseOffset := r.UintN(baseOffsetSize)
		extentCount := int(r.Uint16())

		loc := &itemLocation{
			constructionMethod: cm,
			baseOffset:         baseOffset,
		}
		for e := 0; e < extentCount; e++ {
			r.SkipN(indexSize)
			offPos := r.pos
			off := r.UintN(offsetSize)
			lenPos := r.pos
			length := r.UintN(lengthSize)
			loc.extent = append(loc.extent, ilocExtent{
				offset:  off,
				length:  length,
				offPos:  offPos,
				offSize: offsetSize,
				lenPos:  lenPos,
				lenSize: lengthSize,
			})
		}
		if r.short {
			return nil, formatError("iloc box too short")
		}
		if id == itemID {
			return loc, nil
		}
	}
	return nil, formatError("iloc entry for item %d missing", itemID)
}

// sliceReader reads big-endian fields from a slice range,
// recording overruns instead of panicking.
type sliceReader struct {
	p        []byte
	pos, end int
	short    bool
}

func (r *sliceReader) take(n int) []byte {
	if r.pos+n > r.end {
		r.short = true
		r.pos = r.end
		return make([]byte, n)
	}
	v := r.p[r.pos : r.pos+n]
	r.pos += n
	return v
}

func (r *sliceReader) Byte() byte     { return r.take(1)[0] }
func (r *sliceReader) Uint16() uint16 { return binary.BigEndian.Uint16(r.take(2)) }
func (r *sliceReader) Uint32() uint32 { return binary.BigEndian.Uint32(r.take(4)) }

func (r *sliceReader) Skip(n int) { r.take(n) }

// SkipN skips a variable-width field; width 0 is a no-op.
func (r *sliceReader) SkipN(n int) {
	if n > 0 {
		r.take(n)
	}
}

// UintN reads an unsigned integer of the given byte width.
func (r *sliceReader) UintN(n int) uint64 {
	var v uint64
	for _, b := range r.take(n) {
		v = v<<8 | uint64(b)
	}
	return v
}

// putUintN writes an unsigned integer of the given byte width,
// failing when the value does not fit.
func putUintN(p []byte, pos, size int, v uint64) error {
	if size <= 0 || size > 8 {
		return formatError("cannot store value in %d byte field", size)
	}
	if size < 8 && v >= 1<<(8*size) {
		return formatError("value %d does not fit %d byte field", v, size)
	}
	if pos+size > len(p) {
		return formatError("field beyond file end")
	}
	for i := size - 1; i >= 0; i-- {
		p[pos+i] = byte(v)
		v >>= 8
	}
	return nil
}
