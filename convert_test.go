package livemotion

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/AssassinJY/live-motion-photos-convert/exif"
	"github.com/AssassinJY/live-motion-photos-convert/metaio"
	"github.com/AssassinJY/live-motion-photos-convert/testutil"
)

func writeTemp(t *testing.T, dir, name string, p []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, p, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestMakeMotionPhoto(t *testing.T) {
	dir := t.TempDir()
	clip := testutil.SyntheticMOV()
	stillPath := writeTemp(t, dir, "still.jpg", testutil.SyntheticJPEG(nil, nil))
	clipPath := writeTemp(t, dir, "clip.mp4", clip)
	outPath := filepath.Join(dir, "motion.jpg")

	if err := MakeMotionPhoto(stillPath, clipPath, outPath, nil); err != nil {
		t.Fatalf("MakeMotionPhoto: %v", err)
	}

	info, err := ProbeFile(outPath)
	if err != nil {
		t.Fatalf("ProbeFile: %v", err)
	}
	if !info.MotionPhoto {
		t.Error("output not detected as motion photo")
	}
	if info.VideoLength != int64(len(clip)) {
		t.Errorf("video length %d, want %d", info.VideoLength, len(clip))
	}
	if info.CoverTimeUs != DefaultCoverOffset.Microseconds() {
		t.Errorf("cover time %d, want %d", info.CoverTimeUs, DefaultCoverOffset.Microseconds())
	}

	// the appended clip bytes stay untouched
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasSuffix(data, clip) {
		t.Error("clip bytes differ at the end of the output")
	}

	// all three exif recognition tags present
	c, _, err := metaio.NewContainer(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	x, err := exif.DecodeBytes(metaio.Get(c.RawMeta(), "exif"))
	if err != nil {
		t.Fatalf("decoding output exif: %v", err)
	}
	for _, attr := range []string{metaio.MicroVideo, metaio.EmbeddedVideo, metaio.XiaomiMicroVideo} {
		if v := x.GetMetadataAttr(attr); v != 1 {
			t.Errorf("exif attr %s = %v, want 1", attr, v)
		}
	}
}

func TestMakeMotionPhotoCoverClamped(t *testing.T) {
	dir := t.TempDir()
	// single sample: the clip is half a second long
	clip := testutil.SyntheticMOV([]byte("onlyframe"))
	stillPath := writeTemp(t, dir, "still.jpg", testutil.SyntheticJPEG(nil, nil))
	clipPath := writeTemp(t, dir, "clip.mp4", clip)
	outPath := filepath.Join(dir, "motion.jpg")

	o := &Options{CoverOffset: 2 * time.Second}
	if err := MakeMotionPhoto(stillPath, clipPath, outPath, o); err != nil {
		t.Fatalf("MakeMotionPhoto: %v", err)
	}

	info, err := ProbeFile(outPath)
	if err != nil {
		t.Fatalf("ProbeFile: %v", err)
	}
	if want := (500 * time.Millisecond).Microseconds(); info.CoverTimeUs != want {
		t.Errorf("cover time %d, want %d", info.CoverTimeUs, want)
	}
}

func TestMakeMotionPhotoRejectsNonJPEG(t *testing.T) {
	dir := t.TempDir()
	stillPath := writeTemp(t, dir, "still.heic", testutil.SyntheticHEIC(testExif(t, "")))
	clipPath := writeTemp(t, dir, "clip.mp4", testutil.SyntheticMOV())

	err := MakeMotionPhoto(stillPath, clipPath, filepath.Join(dir, "out.jpg"), nil)
	if err == nil {
		t.Fatal("MakeMotionPhoto accepted a heic still")
	}
}

func TestMotionPhotoRoundTrip(t *testing.T) {
	dir := t.TempDir()
	clip := testutil.SyntheticMOV()
	stillPath := writeTemp(t, dir, "still.jpg", testutil.SyntheticJPEG(nil, nil))
	clipPath := writeTemp(t, dir, "clip.mp4", clip)
	motionPath := filepath.Join(dir, "motion.jpg")

	if err := MakeMotionPhoto(stillPath, clipPath, motionPath, nil); err != nil {
		t.Fatalf("MakeMotionPhoto: %v", err)
	}

	outStill := filepath.Join(dir, "extracted.jpg")
	outClip := filepath.Join(dir, "extracted.mp4")
	if err := ExtractMotionPhoto(motionPath, outStill, outClip); err != nil {
		t.Fatalf("ExtractMotionPhoto: %v", err)
	}

	gotClip, err := os.ReadFile(outClip)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(gotClip, clip) {
		t.Error("extracted clip differs from the input clip")
	}

	motionData, err := os.ReadFile(motionPath)
	if err != nil {
		t.Fatal(err)
	}
	gotStill, err := os.ReadFile(outStill)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(gotStill, motionData[:len(motionData)-len(clip)]) {
		t.Error("extracted still differs from the motion photo image part")
	}
}

func TestMakeLivePhotoPair(t *testing.T) {
	dir := t.TempDir()
	heicIn := writeTemp(t, dir, "in.heic", testutil.SyntheticHEIC(testExif(t, "")))
	clipIn := writeTemp(t, dir, "in.mp4", testutil.SyntheticMOV())
	heicOut := filepath.Join(dir, "out.heic")
	movOut := filepath.Join(dir, "out.mov")

	if err := MakeLivePhotoPair(heicIn, clipIn, heicOut, movOut, nil); err != nil {
		t.Fatalf("MakeLivePhotoPair: %v", err)
	}

	still, err := ProbeFile(heicOut)
	if err != nil {
		t.Fatalf("ProbeFile(heic): %v", err)
	}
	clip, err := ProbeFile(movOut)
	if err != nil {
		t.Fatalf("ProbeFile(mov): %v", err)
	}

	if still.ContentIdentifier == "" {
		t.Fatal("no identifier in the rewritten heic")
	}
	if still.ContentIdentifier != strings.ToUpper(still.ContentIdentifier) {
		t.Errorf("generated identifier %q is not uppercase", still.ContentIdentifier)
	}
	if clip.ContentIdentifier != still.ContentIdentifier {
		t.Errorf("pair identifiers differ: %q vs %q",
			still.ContentIdentifier, clip.ContentIdentifier)
	}
	if clip.CoverTimeUs != DefaultCoverOffset.Microseconds() {
		t.Errorf("cover time %d, want %d", clip.CoverTimeUs, DefaultCoverOffset.Microseconds())
	}
	if clip.LivePhotoAuto {
		t.Error("live-photo.auto set without the option")
	}

	if err := VerifyPair(heicOut, movOut); err != nil {
		t.Errorf("VerifyPair: %v", err)
	}
}

func TestMakeLivePhotoPairOptions(t *testing.T) {
	dir := t.TempDir()
	heicIn := writeTemp(t, dir, "in.heic", testutil.SyntheticHEIC(testExif(t, "")))
	clipIn := writeTemp(t, dir, "in.mp4", testutil.SyntheticMOV())
	heicOut := filepath.Join(dir, "out.heic")
	movOut := filepath.Join(dir, "out.mov")

	o := &Options{
		Identifier:  testID,
		CoverOffset: 250 * time.Millisecond,
		AutoPlay:    true,
	}
	if err := MakeLivePhotoPair(heicIn, clipIn, heicOut, movOut, o); err != nil {
		t.Fatalf("MakeLivePhotoPair: %v", err)
	}

	clip, err := ProbeFile(movOut)
	if err != nil {
		t.Fatalf("ProbeFile: %v", err)
	}
	if clip.ContentIdentifier != testID {
		t.Errorf("identifier %q, want %q", clip.ContentIdentifier, testID)
	}
	if clip.CoverTimeUs != 250000 {
		t.Errorf("cover time %d, want 250000", clip.CoverTimeUs)
	}
	if !clip.LivePhotoAuto {
		t.Error("live-photo.auto not set")
	}
}

func TestMakeLivePhotoPairReusesIdentifier(t *testing.T) {
	dir := t.TempDir()
	heicIn := writeTemp(t, dir, "in.heic", testutil.SyntheticHEIC(testExif(t, testID)))
	clipIn := writeTemp(t, dir, "in.mp4", testutil.SyntheticMOV())
	heicOut := filepath.Join(dir, "out.heic")
	movOut := filepath.Join(dir, "out.mov")

	if err := MakeLivePhotoPair(heicIn, clipIn, heicOut, movOut, nil); err != nil {
		t.Fatalf("MakeLivePhotoPair: %v", err)
	}

	still, err := ProbeFile(heicOut)
	if err != nil {
		t.Fatalf("ProbeFile: %v", err)
	}
	if still.ContentIdentifier != testID {
		t.Errorf("identifier %q, want the reused %q", still.ContentIdentifier, testID)
	}
}

func TestMakeLivePhotoPairNoExifItem(t *testing.T) {
	dir := t.TempDir()
	broken := bytes.Replace(testutil.SyntheticHEIC(testExif(t, "")),
		[]byte("Exif"), []byte("mime"), 1)
	heicIn := writeTemp(t, dir, "in.heic", broken)
	clipIn := writeTemp(t, dir, "in.mp4", testutil.SyntheticMOV())

	err := MakeLivePhotoPair(heicIn, clipIn,
		filepath.Join(dir, "out.heic"), filepath.Join(dir, "out.mov"), nil)
	if !errors.Is(err, metaio.ErrAttrUnwritable) {
		t.Fatalf("MakeLivePhotoPair: got %v, want ErrAttrUnwritable", err)
	}
}

func TestResolveIdentifier(t *testing.T) {
	dir := t.TempDir()

	fresh := writeTemp(t, dir, "fresh.heic", testutil.SyntheticHEIC(testExif(t, "")))
	id, err := ResolveIdentifier(fresh)
	if err != nil {
		t.Fatalf("ResolveIdentifier: %v", err)
	}
	if len(id) != 36 || id != strings.ToUpper(id) {
		t.Errorf("generated identifier %q is not an uppercase uuid", id)
	}

	paired := writeTemp(t, dir, "paired.heic", testutil.SyntheticHEIC(testExif(t, testID)))
	id, err = ResolveIdentifier(paired)
	if err != nil {
		t.Fatalf("ResolveIdentifier: %v", err)
	}
	if id != testID {
		t.Errorf("identifier %q, want the existing %q", id, testID)
	}
}

func TestVerifyPairMismatch(t *testing.T) {
	dir := t.TempDir()
	clipIn := writeTemp(t, dir, "in.mp4", testutil.SyntheticMOV())

	build := func(name, id string) (heicOut, movOut string) {
		t.Helper()
		heicIn := writeTemp(t, dir, name+".heic", testutil.SyntheticHEIC(testExif(t, "")))
		heicOut = filepath.Join(dir, name+"-out.heic")
		movOut = filepath.Join(dir, name+"-out.mov")
		o := &Options{Identifier: id}
		if err := MakeLivePhotoPair(heicIn, clipIn, heicOut, movOut, o); err != nil {
			t.Fatalf("MakeLivePhotoPair: %v", err)
		}
		return heicOut, movOut
	}

	heicA, _ := build("a", "AAAAAAAA-0000-0000-0000-000000000000")
	_, movB := build("b", "BBBBBBBB-0000-0000-0000-000000000000")

	if err := VerifyPair(heicA, movB); !errors.Is(err, ErrIdentifierMismatch) {
		t.Fatalf("VerifyPair: got %v, want ErrIdentifierMismatch", err)
	}
}

func TestWriteFileAtomicFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")

	err := writeFileAtomic(path, func(w io.Writer) error {
		w.Write([]byte("partial"))
		return errors.New("boom")
	})
	if !errors.Is(err, ErrWriteFailed) {
		t.Fatalf("got %v, want ErrWriteFailed", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("destination file exists after a failed write")
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(ents) != 0 {
		t.Errorf("%d leftover files after a failed write", len(ents))
	}
}
