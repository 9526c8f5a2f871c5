package exif

import (
	_ "embed"
	"encoding/binary"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/AssassinJY/live-motion-photos-convert/exif/exiftag"
)

// ErrMakerNote is returned when a maker note is missing
// or not in the Apple format.
var ErrMakerNote = errors.New("exif: unsupported maker note")

// appleContentID is the content identifier field
// within the Apple maker note IFD.
const appleContentID = 0x0011

// appleMakerPfx starts every Apple maker note. It is followed by
// a two byte version marker, the byte order ("MM") and a regular
// IFD whose value offsets are relative to the start of the note,
// so the note stays valid when moved within the Exif block.
const appleMakerPfx = "Apple iOS\x00"

const appleMakerHeaderLen = 14

// AppleMakerNote provides access to an Apple maker note.
//
// The note is kept as opaque bytes. Only the content identifier
// field is interpreted, so a note embedded in camera output
// survives rewriting without structural changes.
type AppleMakerNote struct {
	p []byte

	// offset of the content identifier value, 0 if absent
	identOfs int
}

// ParseAppleMakerNote interprets p as an Apple maker note.
// The result aliases p: setting the content identifier
// changes the underlying bytes.
func ParseAppleMakerNote(p []byte) (*AppleMakerNote, error) {
	if len(p) < appleMakerHeaderLen+2 ||
		string(p[:len(appleMakerPfx)]) != appleMakerPfx {
		return nil, ErrMakerNote
	}
	if p[12] != 'M' || p[13] != 'M' {
		return nil, ErrMakerNote
	}

	bo := binary.BigEndian
	n := int(bo.Uint16(p[appleMakerHeaderLen:]))
	offset := appleMakerHeaderLen + 2

	m := &AppleMakerNote{p: p}
	for i := 0; i < n; i++ {
		if len(p) < offset+12 {
			return nil, ErrCorruptDir
		}
		tag := bo.Uint16(p[offset:])
		typ := bo.Uint16(p[offset+2:])
		count := bo.Uint32(p[offset+4:])
		if tag == appleContentID && typ == TypeAscii && count == 37 {
			vo := int(bo.Uint32(p[offset+8:]))
			if vo < appleMakerHeaderLen || len(p) < vo+37 {
				return nil, ErrCorruptDir
			}
			m.identOfs = vo
		}
		offset += 12
	}

	return m, nil
}

// Bytes returns the raw note.
func (m *AppleMakerNote) Bytes() []byte { return m.p }

// ContentIdentifier reports the content identifier stored in the note.
func (m *AppleMakerNote) ContentIdentifier() (string, bool) {
	if m.identOfs == 0 {
		return "", false
	}
	return string(m.p[m.identOfs : m.identOfs+36]), true
}

// SetContentIdentifier replaces the content identifier in place.
// The note must already have an identifier field.
func (m *AppleMakerNote) SetContentIdentifier(id string) error {
	if m.identOfs == 0 {
		return ErrMakerNote
	}
	u, err := uuid.Parse(id)
	if err != nil {
		return errors.Wrapf(err, "exif: invalid content identifier %q", id)
	}
	copy(m.p[m.identOfs:], strings.ToUpper(u.String()))
	m.p[m.identOfs+36] = 0
	return nil
}

//go:embed makernote_apple.bin
var appleMakerNoteRef []byte

var appleRefOnce struct {
	sync.Once
	m *AppleMakerNote
}

// ReferenceMakerNote returns a copy of the built-in Apple maker note
// with a zero content identifier, for images that have no maker
// note of their own.
func ReferenceMakerNote() *AppleMakerNote {
	appleRefOnce.Do(func() {
		m, err := ParseAppleMakerNote(appleMakerNoteRef)
		if err != nil || m.identOfs == 0 {
			panic("exif: bad embedded maker note")
		}
		appleRefOnce.m = m
	})

	ref := appleRefOnce.m
	p := make([]byte, len(ref.p))
	copy(p, ref.p)
	return &AppleMakerNote{p: p, identOfs: ref.identOfs}
}

// ContentIdentifier reports the Apple content identifier
// from the maker note, if any.
func (x *Exif) ContentIdentifier() (string, bool) {
	e := x.Exif.Tag(uint16(exiftag.MakerNote & exiftag.TagMask))
	if e == nil {
		return "", false
	}
	m, err := ParseAppleMakerNote(e.Value)
	if err != nil {
		return "", false
	}
	return m.ContentIdentifier()
}

// SetContentIdentifier stores id as the Apple content identifier.
// An existing Apple maker note is edited in place. If the image
// has no maker note, or one this package cannot edit, the note is
// replaced with the reference note.
func (x *Exif) SetContentIdentifier(id string) error {
	if e := x.Exif.Tag(uint16(exiftag.MakerNote & exiftag.TagMask)); e != nil {
		if m, err := ParseAppleMakerNote(e.Value); err == nil && m.identOfs != 0 {
			return m.SetContentIdentifier(id)
		}
	}

	m := ReferenceMakerNote()
	if err := m.SetContentIdentifier(id); err != nil {
		return err
	}
	x.Set(exiftag.MakerNote, Undef(m.Bytes()))
	return nil
}
