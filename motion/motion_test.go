package motion

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"

	"github.com/AssassinJY/live-motion-photos-convert/testutil"
	"github.com/AssassinJY/live-motion-photos-convert/xmp"
)

func motionPhoto(t *testing.T, clip []byte, declaredLength int64) []byte {
	t.Helper()

	var pkt []byte
	if declaredLength != 0 {
		m := xmp.New()
		m.SetMotionPhoto("image/jpeg", "video/mp4", declaredLength, 500000)
		var err error
		pkt, err = m.Encode()
		if err != nil {
			t.Fatalf("xmp encode: %v", err)
		}
	}

	still := testutil.SyntheticJPEG(nil, pkt)
	return append(still, clip...)
}

func TestLocateXMP(t *testing.T) {
	clip := testutil.SyntheticMOV()
	data := motionPhoto(t, clip, int64(len(clip)))

	offset, length, err := Locate(data)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if want := int64(len(data) - len(clip)); offset != want {
		t.Errorf("offset %d, want %d", offset, want)
	}
	if length != int64(len(clip)) {
		t.Errorf("length %d, want %d", length, len(clip))
	}
}

func TestLocateScan(t *testing.T) {
	clip := testutil.SyntheticMOV()
	data := motionPhoto(t, clip, 0) // no XMP declaration

	offset, length, err := Locate(data)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if want := int64(len(data) - len(clip)); offset != want {
		t.Errorf("offset %d, want %d", offset, want)
	}
	if length != int64(len(clip)) {
		t.Errorf("length %d, want %d", length, len(clip))
	}
}

func TestLocateBadDeclarationFallsBack(t *testing.T) {
	clip := testutil.SyntheticMOV()
	// the declared span starts mid-image, not at a box header
	data := motionPhoto(t, clip, int64(len(clip))+7)

	offset, _, err := Locate(data)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if want := int64(len(data) - len(clip)); offset != want {
		t.Errorf("offset %d, want %d", offset, want)
	}
}

func TestLocateNotFound(t *testing.T) {
	for _, data := range [][]byte{
		testutil.SyntheticJPEG(nil, nil),
		[]byte("no image here"),
		nil,
	} {
		if _, _, err := Locate(data); !errors.Is(err, ErrSpanNotFound) {
			t.Errorf("Locate(%d bytes): got %v, want ErrSpanNotFound", len(data), err)
		}
	}
}

func TestSpliceSplitRoundTrip(t *testing.T) {
	still := testutil.SyntheticJPEG(nil, nil)
	clip := testutil.SyntheticMOV()

	var buf bytes.Buffer
	if err := Splice(&buf, still, clip); err != nil {
		t.Fatalf("Splice: %v", err)
	}

	s, c, err := Split(buf.Bytes(), int64(len(still)))
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if !bytes.Equal(s, still) || !bytes.Equal(c, clip) {
		t.Error("split halves differ from spliced input")
	}
}

func TestSplitBadOffset(t *testing.T) {
	data := []byte("0123456789")
	for _, off := range []int64{-1, 0, 10, 99} {
		if _, _, err := Split(data, off); err == nil {
			t.Errorf("Split offset %d: expected error", off)
		}
	}
}

func TestSplitFile(t *testing.T) {
	dir := t.TempDir()
	clip := testutil.SyntheticMOV()
	data := motionPhoto(t, clip, int64(len(clip)))

	src := filepath.Join(dir, "motion.jpg")
	if err := os.WriteFile(src, data, 0644); err != nil {
		t.Fatal(err)
	}

	stillPath := filepath.Join(dir, "still.jpg")
	clipPath := filepath.Join(dir, "clip.mp4")
	if err := SplitFile(src, stillPath, clipPath); err != nil {
		t.Fatalf("SplitFile: %v", err)
	}

	gotClip, err := os.ReadFile(clipPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(gotClip, clip) {
		t.Error("extracted clip differs")
	}

	gotStill, err := os.ReadFile(stillPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(gotStill, data[:len(data)-len(clip)]) {
		t.Error("extracted still differs")
	}
}

func TestSplitFileNotFoundWritesNothing(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "plain.jpg")
	if err := os.WriteFile(src, testutil.SyntheticJPEG(nil, nil), 0644); err != nil {
		t.Fatal(err)
	}

	stillPath := filepath.Join(dir, "still.jpg")
	clipPath := filepath.Join(dir, "clip.mp4")
	if err := SplitFile(src, stillPath, clipPath); !errors.Is(err, ErrSpanNotFound) {
		t.Fatalf("SplitFile: got %v, want ErrSpanNotFound", err)
	}
	for _, p := range []string{stillPath, clipPath} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s was created on failure", p)
		}
	}
}

func TestSpliceFile(t *testing.T) {
	dir := t.TempDir()
	still := testutil.SyntheticJPEG(nil, nil)
	clip := testutil.SyntheticMOV()

	path := filepath.Join(dir, "out.jpg")
	if err := SpliceFile(path, still, clip); err != nil {
		t.Fatalf("SpliceFile: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := append(append([]byte(nil), still...), clip...)
	if !bytes.Equal(got, want) {
		t.Error("spliced file content differs")
	}
}
