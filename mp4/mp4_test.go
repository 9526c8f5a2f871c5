package mp4

import (
	"bytes"
	"testing"
	"time"

	"github.com/pkg/errors"
)

// testMovie builds a minimal movie with one video and one audio
// track, samples interleaved in a single mdat preceding moov.
type testMovie struct {
	data []byte

	videoSamples [][]byte
	audioSamples [][]byte
}

func buildTestMovie(t *testing.T) *testMovie {
	t.Helper()

	m := &testMovie{
		videoSamples: [][]byte{
			[]byte("VID0"),
			[]byte("VID1"),
			[]byte("V2"),
		},
		audioSamples: [][]byte{
			[]byte("audi0"),
			[]byte("audi1"),
		},
	}

	var ftyp boxBuild
	ftyp.String("isom")
	ftyp.Uint32(0x200)
	ftyp.String("isom")
	ftypBox := NewBox("ftyp", ftyp.p)

	// mdat layout: V0 A0 V1 A1 V2
	var mdat []byte
	order := [][]byte{
		m.videoSamples[0], m.audioSamples[0],
		m.videoSamples[1], m.audioSamples[1],
		m.videoSamples[2],
	}
	for _, s := range order {
		mdat = append(mdat, s...)
	}
	mdatBox := NewBox("mdat", mdat)

	base := ftypBox.Size + 8 // mdat payload offset
	offset := func(i int) int64 {
		off := base
		for _, s := range order[:i] {
			off += int64(len(s))
		}
		return off
	}

	created := time.Date(2021, 6, 5, 12, 0, 0, 0, time.UTC)

	video := []Sample{
		{Offset: offset(0), Size: 4, Delta: 200, Sync: true},
		{Offset: offset(2), Size: 4, Delta: 200},
		{Offset: offset(4), Size: 2, Delta: 200},
	}
	audio := []Sample{
		{Offset: offset(1), Size: 5, Delta: 300, Sync: true},
		{Offset: offset(3), Size: 5, Delta: 300, Sync: true},
	}

	var vmhd boxBuild
	vmhd.VersionFlags(0, 1)
	vmhd.Zero(8)

	var smhd boxBuild
	smhd.VersionFlags(0, 0)
	smhd.Zero(4)

	videoTrak := NewContainerBox("trak",
		NewBox("tkhd", EncodeTKHD(created, 1, 600, 0, 320<<16, 240<<16)),
		NewContainerBox("mdia",
			NewBox("mdhd", encodeMDHD(created, 600, 600)),
			NewBox("hdlr", encodeHDLR(TrackVideo, "VideoHandler")),
			NewContainerBox("minf",
				NewBox("vmhd", vmhd.p),
				NewContainerBox("dinf", NewBox("dref", encodeDref())),
				encodeStbl(testStsd("avc1"), video),
			),
		),
	)
	audioTrak := NewContainerBox("trak",
		NewBox("tkhd", EncodeTKHD(created, 2, 600, 0x0100, 0, 0)),
		NewContainerBox("mdia",
			NewBox("mdhd", encodeMDHD(created, 600, 600)),
			NewBox("hdlr", encodeHDLR(TrackAudio, "SoundHandler")),
			NewContainerBox("minf",
				NewBox("smhd", smhd.p),
				NewContainerBox("dinf", NewBox("dref", encodeDref())),
				encodeStbl(testStsd("mp4a"), audio),
			),
		),
	)

	moov := NewContainerBox("moov",
		NewBox("mvhd", EncodeMVHD(created, 600, 600, 3)),
		videoTrak,
		audioTrak,
	)

	var buf bytes.Buffer
	for _, b := range []*Box{ftypBox, mdatBox, moov} {
		b.updateSize()
		if err := b.write(&buf); err != nil {
			t.Fatalf("build test movie: %v", err)
		}
	}
	m.data = buf.Bytes()
	return m
}

func testStsd(codec string) []byte {
	var entry boxBuild
	entry.Uint32(24)
	entry.String(codec)
	entry.Zero(6)
	entry.Uint16(1)
	entry.Zero(8) // opaque codec configuration stand-in

	var b boxBuild
	b.VersionFlags(0, 0)
	b.Uint32(1)
	b.Bytes(entry.p)
	return b.p
}

func parseTestMovie(t *testing.T, p []byte) *File {
	t.Helper()
	f, err := Parse(bytes.NewReader(p), int64(len(p)))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return f
}

func TestParseWriteRoundTrip(t *testing.T) {
	m := buildTestMovie(t)
	f := parseTestMovie(t, m.data)

	if got := f.Box[0].Type; got != "ftyp" {
		t.Fatalf("first box is %q, want ftyp", got)
	}

	var buf bytes.Buffer
	n, err := f.WriteTo(&buf)
	if err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	if n != int64(len(m.data)) || !bytes.Equal(buf.Bytes(), m.data) {
		t.Errorf("rewrite differs from source (%d vs %d bytes)", n, len(m.data))
	}
}

func TestTracks(t *testing.T) {
	m := buildTestMovie(t)
	f := parseTestMovie(t, m.data)

	tracks, err := f.Tracks()
	if err != nil {
		t.Fatalf("Tracks: %v", err)
	}
	if len(tracks) != 2 {
		t.Fatalf("got %d tracks, want 2", len(tracks))
	}

	v := FindTrack(tracks, TrackVideo)
	if v == nil {
		t.Fatal("video track missing")
	}
	if v.ID != 1 || v.Timescale != 600 || v.Duration != 600 {
		t.Errorf("video track header: id=%d timescale=%d duration=%d",
			v.ID, v.Timescale, v.Duration)
	}
	if len(v.Samples) != len(m.videoSamples) {
		t.Fatalf("got %d video samples, want %d", len(v.Samples), len(m.videoSamples))
	}
	for i, s := range v.Samples {
		want := m.videoSamples[i]
		if int(s.Size) != len(want) {
			t.Errorf("video sample %d size %d, want %d", i, s.Size, len(want))
		}
		p := make([]byte, s.Size)
		if _, err := f.r.ReadAt(p, s.Offset); err != nil {
			t.Fatalf("read video sample %d: %v", i, err)
		}
		if !bytes.Equal(p, want) {
			t.Errorf("video sample %d = %q, want %q", i, p, want)
		}
	}
	if !v.Samples[0].Sync || v.Samples[1].Sync {
		t.Errorf("video sync flags: %v %v", v.Samples[0].Sync, v.Samples[1].Sync)
	}

	a := FindTrack(tracks, TrackAudio)
	if a == nil {
		t.Fatal("audio track missing")
	}
	if len(a.Samples) != len(m.audioSamples) {
		t.Fatalf("got %d audio samples, want %d", len(a.Samples), len(m.audioSamples))
	}
	if v.DurationSeconds() != time.Second {
		t.Errorf("video duration %v, want 1s", v.DurationSeconds())
	}
}

func TestCompose(t *testing.T) {
	m := buildTestMovie(t)
	f := parseTestMovie(t, m.data)

	c, err := NewComposer(f)
	if err != nil {
		t.Fatalf("NewComposer: %v", err)
	}
	c.StillTime = 250 * time.Millisecond
	c.ContentIdentifier = "8A0FB1F5-B5D9-4C3E-92BA-7A61D5C7FD13"
	c.AutoPlay = true

	var buf bytes.Buffer
	if err := c.Compose(&buf); err != nil {
		t.Fatalf("Compose: %v", err)
	}

	out := parseTestMovie(t, buf.Bytes())
	if got := []string{out.Box[0].Type, out.Box[1].Type, out.Box[2].Type}; got[0] != "ftyp" || got[1] != "moov" || got[2] != "mdat" {
		t.Fatalf("box order %v, want [ftyp moov mdat]", got)
	}

	keys, err := out.DecodeKeys()
	if err != nil {
		t.Fatalf("DecodeKeys: %v", err)
	}
	if id, ok := keys.String(KeyContentIdentifier); !ok || id != c.ContentIdentifier {
		t.Errorf("content identifier %q, want %q", id, c.ContentIdentifier)
	}
	if v, ok := keys.Int8(KeyLivePhotoAuto); !ok || v != 1 {
		t.Errorf("live-photo.auto = %d (%v), want 1", v, ok)
	}

	still, ok := out.StillImageTime()
	if !ok {
		t.Fatal("StillImageTime not found in composed movie")
	}
	if still != 250*time.Millisecond {
		t.Errorf("still image time %v, want 250ms", still)
	}

	tracks, err := out.Tracks()
	if err != nil {
		t.Fatalf("Tracks of composed movie: %v", err)
	}
	if len(tracks) != 3 {
		t.Fatalf("got %d tracks, want video, audio and metadata", len(tracks))
	}

	for _, tc := range []struct {
		typ  string
		want [][]byte
	}{
		{TrackVideo, m.videoSamples},
		{TrackAudio, m.audioSamples},
	} {
		tr := FindTrack(tracks, tc.typ)
		if tr == nil {
			t.Fatalf("%s track missing", tc.typ)
		}
		if len(tr.Samples) != len(tc.want) {
			t.Fatalf("%s: got %d samples, want %d", tc.typ, len(tr.Samples), len(tc.want))
		}
		for i, s := range tr.Samples {
			p := make([]byte, s.Size)
			if _, err := out.r.ReadAt(p, s.Offset); err != nil {
				t.Fatalf("read %s sample %d: %v", tc.typ, i, err)
			}
			if !bytes.Equal(p, tc.want[i]) {
				t.Errorf("%s sample %d = %q, want %q", tc.typ, i, p, tc.want[i])
			}
		}
	}

	meta := FindTrack(tracks, TrackMeta)
	if meta == nil {
		t.Fatal("metadata track missing")
	}
	if len(meta.Samples) != 1 {
		t.Fatalf("metadata track has %d samples, want 1", len(meta.Samples))
	}
}

func TestComposeDefaultStillTime(t *testing.T) {
	m := buildTestMovie(t)
	f := parseTestMovie(t, m.data)

	c, err := NewComposer(f)
	if err != nil {
		t.Fatalf("NewComposer: %v", err)
	}
	if c.StillTime != DefaultStillTime {
		t.Errorf("default still time %v, want %v", c.StillTime, DefaultStillTime)
	}

	var buf bytes.Buffer
	if err := c.Compose(&buf); err != nil {
		t.Fatalf("Compose: %v", err)
	}
	out := parseTestMovie(t, buf.Bytes())
	if still, ok := out.StillImageTime(); !ok || still != DefaultStillTime {
		t.Errorf("still image time %v (%v), want %v", still, ok, DefaultStillTime)
	}
}

func TestComposerFragmented(t *testing.T) {
	m := buildTestMovie(t)
	f := parseTestMovie(t, m.data)
	f.Box = append(f.Box, NewBox("moof", nil))

	_, err := NewComposer(f)
	if !errors.Is(err, ErrComposerUnavailable) {
		t.Errorf("got %v, want ErrComposerUnavailable", err)
	}
}

func TestComposerMissingVideo(t *testing.T) {
	m := buildTestMovie(t)
	f := parseTestMovie(t, m.data)

	moov := f.Find("moov")
	var keep []*Box
	for _, b := range moov.Child {
		if b.Type == "trak" && b.Find("mdia", "hdlr") != nil &&
			string(b.Find("mdia", "hdlr").Raw[8:12]) == TrackVideo {
			continue
		}
		keep = append(keep, b)
	}
	moov.Child = keep

	_, err := NewComposer(f)
	if !errors.Is(err, ErrMissingTrack) {
		t.Errorf("got %v, want ErrMissingTrack", err)
	}
}

func TestPassthrough(t *testing.T) {
	m := buildTestMovie(t)
	f := parseTestMovie(t, m.data)

	const id = "11F4A3DE-B8FB-4EFF-98D0-56B2C3CE0C3A"
	var buf bytes.Buffer
	if err := f.Passthrough(&buf, id); err != nil {
		t.Fatalf("Passthrough: %v", err)
	}

	out := parseTestMovie(t, buf.Bytes())
	keys, err := out.DecodeKeys()
	if err != nil {
		t.Fatalf("DecodeKeys: %v", err)
	}
	if got, ok := keys.String(KeyContentIdentifier); !ok || got != id {
		t.Errorf("content identifier %q, want %q", got, id)
	}

	// chunk offsets must survive the moov resize
	tracks, err := out.Tracks()
	if err != nil {
		t.Fatalf("Tracks: %v", err)
	}
	v := FindTrack(tracks, TrackVideo)
	p := make([]byte, v.Samples[0].Size)
	if _, err := out.r.ReadAt(p, v.Samples[0].Offset); err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !bytes.Equal(p, m.videoSamples[0]) {
		t.Errorf("sample after passthrough = %q, want %q", p, m.videoSamples[0])
	}
}

func TestOptimize(t *testing.T) {
	m := buildTestMovie(t)
	f := parseTestMovie(t, m.data)

	if err := f.Optimize(); err != nil {
		t.Fatalf("Optimize: %v", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	out := parseTestMovie(t, buf.Bytes())
	if out.Box[1].Type != "moov" {
		t.Fatalf("second box is %q, want moov", out.Box[1].Type)
	}

	tracks, err := out.Tracks()
	if err != nil {
		t.Fatalf("Tracks: %v", err)
	}
	for _, tc := range []struct {
		typ  string
		want [][]byte
	}{
		{TrackVideo, m.videoSamples},
		{TrackAudio, m.audioSamples},
	} {
		tr := FindTrack(tracks, tc.typ)
		for i, s := range tr.Samples {
			p := make([]byte, s.Size)
			if _, err := out.r.ReadAt(p, s.Offset); err != nil {
				t.Fatalf("read %s sample %d: %v", tc.typ, i, err)
			}
			if !bytes.Equal(p, tc.want[i]) {
				t.Errorf("%s sample %d = %q, want %q", tc.typ, i, p, tc.want[i])
			}
		}
	}
}

func TestKeysMetaRoundTrip(t *testing.T) {
	var km KeysMeta
	km.SetString(KeyContentIdentifier, "ABCD-1234")
	km.SetInt8(KeyLivePhotoAuto, 1)

	p, err := km.MarshalMetadata()
	if err != nil {
		t.Fatalf("MarshalMetadata: %v", err)
	}

	var got KeysMeta
	if err := got.UnmarshalMetadata(p); err != nil {
		t.Fatalf("UnmarshalMetadata: %v", err)
	}
	if id, ok := got.String(KeyContentIdentifier); !ok || id != "ABCD-1234" {
		t.Errorf("content identifier %q", id)
	}
	if v, ok := got.Int8(KeyLivePhotoAuto); !ok || v != 1 {
		t.Errorf("live-photo.auto %d (%v)", v, ok)
	}
}

func TestMVHDRoundTrip(t *testing.T) {
	created := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	p := EncodeMVHD(created, 600, 1800, 4)

	m, err := DecodeMVHD(p)
	if err != nil {
		t.Fatalf("DecodeMVHD: %v", err)
	}
	if !m.DateCreated.Equal(created) {
		t.Errorf("created %v, want %v", m.DateCreated, created)
	}
	if m.TimeUnit != 600 || m.DurationInUnits != 1800 {
		t.Errorf("timescale %d duration %d", m.TimeUnit, m.DurationInUnits)
	}
	if m.Duration() != 3*time.Second {
		t.Errorf("duration %v, want 3s", m.Duration())
	}
}
