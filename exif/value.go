package exif

import (
	"encoding/binary"

	"github.com/AssassinJY/live-motion-photos-convert/exif/exiftag"
)

// TIFF field types.
const (
	TypeByte      = 1
	TypeAscii     = 2
	TypeShort     = 3
	TypeLong      = 4
	TypeRational  = 5
	TypeSByte     = 6
	TypeUndef     = 7
	TypeSShort    = 8
	TypeSLong     = 9
	TypeSRational = 10
	TypeFloat     = 11
	TypeDouble    = 12
)

// typeSize reports the number of value bytes needed
// for count elements of typ, or 0 if typ is unknown.
func typeSize(typ uint16, count uint32) int {
	var n int
	switch typ {
	case TypeByte, TypeAscii, TypeUndef, TypeSByte:
		n = 1
	case TypeShort, TypeSShort:
		n = 2
	case TypeLong, TypeSLong, TypeFloat:
		n = 4
	case TypeRational, TypeSRational, TypeDouble:
		n = 8
	default:
		return 0
	}
	return n * int(count)
}

// Entry is a single raw IFD field.
//
// Value holds the field data encoded in the byte order
// of the Exif block the Entry belongs to.
type Entry struct {
	Tag   uint16
	Type  uint16
	Count uint32
	Value []byte
}

// Tag provides typed access to an Entry.
type Tag struct {
	ByteOrder binary.ByteOrder
	E         Entry
}

// Valid reports whether the entry has a known type
// and enough value bytes for its count.
func (t *Tag) Valid() bool {
	if t == nil || t.ByteOrder == nil {
		return false
	}
	n := typeSize(t.E.Type, t.E.Count)
	return n != 0 && n <= len(t.E.Value)
}

// IsType reports whether the entry is valid and has type typ.
func (t *Tag) IsType(typ uint16) bool {
	return t.Valid() && t.E.Type == typ
}

// Byte returns the value of a Byte entry, or nil.
func (t *Tag) Byte() []byte {
	if !t.IsType(TypeByte) {
		return nil
	}
	return t.E.Value[:t.E.Count]
}

// Undef returns the value of an Undef entry, or nil.
func (t *Tag) Undef() []byte {
	if !t.IsType(TypeUndef) {
		return nil
	}
	return t.E.Value[:t.E.Count]
}

// Ascii returns the value of an Ascii entry
// with the terminating NUL stripped.
func (t *Tag) Ascii() (string, bool) {
	if !t.IsType(TypeAscii) || t.E.Count < 1 {
		return "", false
	}
	n := t.E.Count
	if t.E.Value[n-1] != 0 {
		return "", false
	}
	return string(t.E.Value[:n-1]), true
}

// Short returns the values of a Short entry, or nil.
func (t *Tag) Short() []uint16 {
	if !t.IsType(TypeShort) {
		return nil
	}
	v := make([]uint16, t.E.Count)
	for i := range v {
		v[i] = t.ByteOrder.Uint16(t.E.Value[2*i:])
	}
	return v
}

// Long returns the values of a Long entry, or nil.
func (t *Tag) Long() []uint32 {
	if !t.IsType(TypeLong) {
		return nil
	}
	v := make([]uint32, t.E.Count)
	for i := range v {
		v[i] = t.ByteOrder.Uint32(t.E.Value[4*i:])
	}
	return v
}

// SLong returns the values of an SLong entry, or nil.
func (t *Tag) SLong() []int32 {
	if !t.IsType(TypeSLong) {
		return nil
	}
	v := make([]int32, t.E.Count)
	for i := range v {
		v[i] = int32(t.ByteOrder.Uint32(t.E.Value[4*i:]))
	}
	return v
}

// Rational returns the numerator/denominator pairs
// of a Rational entry, or nil.
func (t *Tag) Rational() Rational {
	if !t.IsType(TypeRational) {
		return nil
	}
	v := make(Rational, 2*t.E.Count)
	for i := range v {
		v[i] = t.ByteOrder.Uint32(t.E.Value[4*i:])
	}
	return v
}

// Value is an Exif field value that can be
// encoded as raw entry data.
type Value interface {
	encode(bo binary.ByteOrder) (typ uint16, count uint32, value []byte)
}

// Byte encodes a TIFF Byte value.
type Byte []byte

// Ascii encodes a TIFF Ascii value. The terminating NUL is
// appended automatically.
type Ascii string

// Short encodes a TIFF Short value.
type Short []uint16

// Long encodes a TIFF Long value.
type Long []uint32

// SLong encodes a TIFF SLong value.
type SLong []int32

// Rational encodes a TIFF Rational value
// as a sequence of numerator/denominator pairs.
type Rational []uint32

// SRational encodes a TIFF SRational value
// as a sequence of numerator/denominator pairs.
type SRational []int32

// Undef encodes a TIFF Undef value.
type Undef []byte

func (v Byte) encode(bo binary.ByteOrder) (uint16, uint32, []byte) {
	p := make([]byte, len(v))
	copy(p, v)
	return TypeByte, uint32(len(v)), p
}

func (v Ascii) encode(bo binary.ByteOrder) (uint16, uint32, []byte) {
	p := make([]byte, len(v)+1)
	copy(p, v)
	return TypeAscii, uint32(len(p)), p
}

func (v Short) encode(bo binary.ByteOrder) (uint16, uint32, []byte) {
	p := make([]byte, 2*len(v))
	for i, e := range v {
		bo.PutUint16(p[2*i:], e)
	}
	return TypeShort, uint32(len(v)), p
}

func (v Long) encode(bo binary.ByteOrder) (uint16, uint32, []byte) {
	p := make([]byte, 4*len(v))
	for i, e := range v {
		bo.PutUint32(p[4*i:], e)
	}
	return TypeLong, uint32(len(v)), p
}

func (v SLong) encode(bo binary.ByteOrder) (uint16, uint32, []byte) {
	p := make([]byte, 4*len(v))
	for i, e := range v {
		bo.PutUint32(p[4*i:], uint32(e))
	}
	return TypeSLong, uint32(len(v)), p
}

func (v Rational) encode(bo binary.ByteOrder) (uint16, uint32, []byte) {
	p := make([]byte, 4*len(v))
	for i, e := range v {
		bo.PutUint32(p[4*i:], e)
	}
	return TypeRational, uint32(len(v) / 2), p
}

func (v SRational) encode(bo binary.ByteOrder) (uint16, uint32, []byte) {
	p := make([]byte, 4*len(v))
	for i, e := range v {
		bo.PutUint32(p[4*i:], uint32(e))
	}
	return TypeSRational, uint32(len(v) / 2), p
}

func (v Undef) encode(bo binary.ByteOrder) (uint16, uint32, []byte) {
	p := make([]byte, len(v))
	copy(p, v)
	return TypeUndef, uint32(len(v)), p
}

// entryFunc returns a helper creating directory entries
// encoded with byte order bo.
func entryFunc(bo binary.ByteOrder) func(id uint32, v Value) Entry {
	return func(id uint32, v Value) Entry {
		typ, count, value := v.encode(bo)
		return Entry{
			Tag:   uint16(id & exiftag.TagMask),
			Type:  typ,
			Count: count,
			Value: value,
		}
	}
}

// fieldOfs reads a file offset or length from a Short or Long entry.
func fieldOfs(bo binary.ByteOrder, e *Entry) (int, bool) {
	if e == nil || e.Count != 1 {
		return 0, false
	}
	switch e.Type {
	case TypeShort:
		if len(e.Value) >= 2 {
			return int(bo.Uint16(e.Value)), true
		}
	case TypeLong:
		if len(e.Value) >= 4 {
			return int(bo.Uint32(e.Value)), true
		}
	}
	return 0, false
}

// putFieldOfs stores a file offset or length in a Long entry.
// Short entries are rejected: they cannot represent
// offsets in longer files.
func putFieldOfs(bo binary.ByteOrder, e *Entry, v int) bool {
	if e == nil || e.Count != 1 || e.Type != TypeLong {
		return false
	}
	if v < 0 || int64(v) > 0xFFFFFFFF || len(e.Value) < 4 {
		return false
	}
	bo.PutUint32(e.Value, uint32(v))
	return true
}
