package exif

import (
	"bytes"
	"strings"
	"testing"

	"github.com/AssassinJY/live-motion-photos-convert/exif/exiftag"
)

const (
	testCID  = "F3C9AE4A-5FA8-4591-9466-24AA9B1225A2"
	testCID2 = "0E52A8B2-4D3F-4B8A-9D0A-5C7E1B2A3C4D"
	zeroCID  = "00000000-0000-0000-0000-000000000000"
)

func TestReferenceMakerNote(t *testing.T) {
	m := ReferenceMakerNote()

	id, ok := m.ContentIdentifier()
	if !ok {
		t.Fatal("reference note has no identifier field")
	}
	if id != zeroCID {
		t.Errorf("reference identifier = %q, want %q", id, zeroCID)
	}

	if err := m.SetContentIdentifier(testCID); err != nil {
		t.Fatal(err)
	}
	if id, _ := m.ContentIdentifier(); id != testCID {
		t.Errorf("identifier = %q, want %q", id, testCID)
	}

	// the shared reference must stay pristine
	m2 := ReferenceMakerNote()
	if id, _ := m2.ContentIdentifier(); id != zeroCID {
		t.Errorf("reference note changed: %q", id)
	}
}

func TestMakerNoteSubstitute(t *testing.T) {
	m := ReferenceMakerNote()
	if err := m.SetContentIdentifier(testCID); err != nil {
		t.Fatal(err)
	}
	orig := append([]byte(nil), m.Bytes()...)

	// reparse from raw bytes, as when reading a file
	m2, err := ParseAppleMakerNote(m.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if id, ok := m2.ContentIdentifier(); !ok || id != testCID {
		t.Fatalf("identifier = %q, want %q", id, testCID)
	}

	// substitution is in place and canonicalizes case
	if err := m2.SetContentIdentifier(strings.ToLower(testCID2)); err != nil {
		t.Fatal(err)
	}
	p := m2.Bytes()
	if len(p) != len(orig) {
		t.Fatalf("note length changed: %d != %d", len(p), len(orig))
	}
	if id, _ := m2.ContentIdentifier(); id != testCID2 {
		t.Errorf("identifier = %q, want %q", id, testCID2)
	}

	// only the identifier bytes may differ
	for i := range p {
		if p[i] != orig[i] && (i < m2.identOfs || m2.identOfs+36 <= i) {
			t.Fatalf("byte %d changed outside the identifier", i)
		}
	}
}

func TestParseAppleMakerNoteReject(t *testing.T) {
	if _, err := ParseAppleMakerNote(nil); err != ErrMakerNote {
		t.Errorf("nil: got %v, want %v", err, ErrMakerNote)
	}
	if _, err := ParseAppleMakerNote([]byte("Canon\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00")); err != ErrMakerNote {
		t.Errorf("foreign: got %v, want %v", err, ErrMakerNote)
	}

	// truncated entry table
	p := append([]byte(nil), appleMakerNoteRef[:20]...)
	if _, err := ParseAppleMakerNote(p); err != ErrCorruptDir {
		t.Errorf("truncated: got %v, want %v", err, ErrCorruptDir)
	}
}

func TestExifContentIdentifier(t *testing.T) {
	x := New(4032, 3024)

	if _, ok := x.ContentIdentifier(); ok {
		t.Fatal("unexpected identifier in new exif")
	}

	if err := x.SetContentIdentifier(strings.ToLower(testCID)); err != nil {
		t.Fatal(err)
	}
	if id, ok := x.ContentIdentifier(); !ok || id != testCID {
		t.Errorf("identifier = %q, want %q", id, testCID)
	}

	// the transplanted note must survive the codec
	enc, err := x.EncodeBytes()
	if err != nil {
		t.Fatal(err)
	}
	x2, err := DecodeBytes(enc)
	if err != nil {
		t.Fatal(err)
	}
	if id, ok := x2.ContentIdentifier(); !ok || id != testCID {
		t.Errorf("identifier after recode = %q, want %q", id, testCID)
	}

	// second set edits the existing note in place
	if err := x2.SetContentIdentifier(testCID2); err != nil {
		t.Fatal(err)
	}
	if id, _ := x2.ContentIdentifier(); id != testCID2 {
		t.Errorf("identifier = %q, want %q", id, testCID2)
	}
}

func TestSetContentIdentifierInvalid(t *testing.T) {
	x := New(0, 0)
	if err := x.SetContentIdentifier("not-a-uuid"); err == nil {
		t.Error("invalid identifier accepted")
	}
	if _, ok := x.ContentIdentifier(); ok {
		t.Error("identifier set after error")
	}
}

func TestMakerNoteOpaque(t *testing.T) {
	// a note with a foreign maker must not be edited in place
	x := New(0, 0)
	foreign := []byte("Nikon\x00\x02\x10\x00\x00")
	x.Set(exiftag.MakerNote, Undef(foreign))

	if err := x.SetContentIdentifier(testCID); err != nil {
		t.Fatal(err)
	}

	// the foreign note was replaced with the reference note
	e := x.Exif.Tag(uint16(exiftag.MakerNote & exiftag.TagMask))
	if e == nil {
		t.Fatal("missing maker note")
	}
	if bytes.HasPrefix(e.Value, []byte("Nikon")) {
		t.Fatal("foreign note not replaced")
	}
	if id, ok := x.ContentIdentifier(); !ok || id != testCID {
		t.Errorf("identifier = %q, want %q", id, testCID)
	}
}
