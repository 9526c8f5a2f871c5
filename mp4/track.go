package mp4

import "time"

// Track types from the handler reference box.
const (
	TrackVideo = "vide"
	TrackAudio = "soun"
	TrackMeta  = "meta"
)

// Track is one media track with its samples located in the source
// file. The raw track header, sample description and media
// information header are kept verbatim so remuxing preserves the
// codec configuration and the display transform.
type Track struct {
	ID        uint32
	Type      string // handler type, such as "vide" or "soun"
	Timescale uint32
	Duration  uint64 // in track timescale units

	Created time.Time

	Tkhd        []byte // raw track header payload
	Stsd        []byte // raw sample description payload
	MediaHeader *Box   // vmhd, smhd or nmhd box, if present
	Elst        []byte // raw edit list payload, if present

	Samples []Sample
}

// Tracks decodes the media tracks of f. Tracks whose sample tables
// cannot be fully resolved make the whole movie undemuxable, since a
// partial remux would silently drop content.
func (f *File) Tracks() ([]*Track, error) {
	moov := f.Find("moov")
	if moov == nil {
		return nil, formatError("moov missing")
	}

	var tracks []*Track
	for _, trak := range moov.FindAll("trak") {
		t, err := decodeTrak(trak)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, t)
	}
	return tracks, nil
}

// FindTrack returns the first track of the handler type, or nil.
func FindTrack(tracks []*Track, typ string) *Track {
	for _, t := range tracks {
		if t.Type == typ {
			return t
		}
	}
	return nil
}

func decodeTrak(trak *Box) (*Track, error) {
	tkhdBox := trak.Find("tkhd")
	if tkhdBox == nil {
		return nil, formatError("tkhd missing")
	}
	tkhd, err := DecodeTKHD(tkhdBox.Raw)
	if err != nil {
		return nil, err
	}

	mdia := trak.Find("mdia")
	if mdia == nil {
		return nil, formatError("mdia missing")
	}

	hdlr := mdia.Find("hdlr")
	if hdlr == nil || len(hdlr.Raw) < 12 {
		return nil, formatError("hdlr missing")
	}

	mdhdBox := mdia.Find("mdhd")
	if mdhdBox == nil {
		return nil, formatError("mdhd missing")
	}
	mdhd, err := decodeMDHD(mdhdBox.Raw)
	if err != nil {
		return nil, err
	}

	stbl := mdia.Find("minf", "stbl")
	if stbl == nil {
		return nil, formatError("stbl missing")
	}
	st, err := decodeStbl(stbl)
	if err != nil {
		return nil, err
	}

	t := &Track{
		ID:        tkhd.TrackId,
		Type:      string(hdlr.Raw[8:12]),
		Timescale: mdhd.Timescale,
		Duration:  mdhd.Duration,
		Created:   mdhd.Created,
		Tkhd:      tkhdBox.Raw,
		Stsd:      st.Stsd,
		Samples:   st.Samples,
	}

	if minf := mdia.Find("minf"); minf != nil {
		for _, cc4 := range []string{"vmhd", "smhd", "nmhd", "gmhd"} {
			if b := minf.Find(cc4); b != nil {
				t.MediaHeader = b
				break
			}
		}
	}

	if elst := trak.Find("edts", "elst"); elst != nil {
		t.Elst = elst.Raw
	}

	return t, nil
}

// mdhd is a decoded media header box.
type mdhd struct {
	Created   time.Time
	Timescale uint32
	Duration  uint64
	Language  uint16
}

func decodeMDHD(p []byte) (*mdhd, error) {
	bp := newBoxParse(p)

	_, _, err := bp.versionFlags()
	if err != nil {
		return nil, err
	}

	m := new(mdhd)
	m.Created = bp.Date()
	bp.Date() // modified
	m.Timescale = bp.Uint32()
	m.Duration = bp.UintVar()
	m.Language = bp.Uint16()

	if bp.Short() {
		return nil, formatError("mdhd too short")
	}
	return m, nil
}

func encodeMDHD(created time.Time, timescale uint32, duration uint64) []byte {
	var b boxBuild
	b.VersionFlags(0, 0)
	b.Date(created)
	b.Date(created)
	b.Uint32(timescale)
	b.Uint32(uint32(duration))
	b.Uint16(0x55c4) // language: undetermined
	b.Uint16(0)
	return b.p
}

func encodeHDLR(handler, name string) []byte {
	var b boxBuild
	b.VersionFlags(0, 0)
	b.Zero(4) // component type
	b.String(handler)
	b.Zero(12) // manufacturer, flags, flags mask
	b.String(name)
	b.Byte(0)
	return b.p
}

// DurationSeconds returns the track duration as a time.Duration.
func (t *Track) DurationSeconds() time.Duration {
	if t.Timescale == 0 {
		return 0
	}
	return time.Duration(t.Duration) * time.Second / time.Duration(t.Timescale)
}

// encodeTrak assembles a trak box for a remuxed track.
// The raw tkhd is reused with its duration rewritten to the
// new movie timescale; edit lists are carried over verbatim.
func (t *Track) encodeTrak(movieDuration uint64) *Box {
	tkhd := make([]byte, len(t.Tkhd))
	copy(tkhd, t.Tkhd)
	SetTKHDDuration(tkhd, movieDuration)

	minfChild := []*Box{}
	if t.MediaHeader != nil {
		minfChild = append(minfChild, t.MediaHeader)
	}
	minfChild = append(minfChild,
		NewContainerBox("dinf", NewBox("dref", encodeDref())),
		encodeStbl(t.Stsd, t.Samples),
	)

	trakChild := []*Box{NewBox("tkhd", tkhd)}
	if t.Elst != nil {
		trakChild = append(trakChild,
			NewContainerBox("edts", NewBox("elst", t.Elst)))
	}
	trakChild = append(trakChild, NewContainerBox("mdia",
		NewBox("mdhd", encodeMDHD(t.Created, t.Timescale, t.Duration)),
		NewBox("hdlr", encodeHDLR(t.Type, handlerName(t.Type))),
		NewContainerBox("minf", minfChild...),
	))

	return NewContainerBox("trak", trakChild...)
}

func handlerName(typ string) string {
	switch typ {
	case TrackVideo:
		return "Core Media Video"
	case TrackAudio:
		return "Core Media Audio"
	case TrackMeta:
		return "Core Media Metadata"
	}
	return "Core Media Data"
}

// encodeDref builds a data reference declaring self-contained media.
func encodeDref() []byte {
	var b boxBuild
	b.VersionFlags(0, 0)
	b.Uint32(1)
	b.Uint32(12)     // entry size
	b.String("url ") // entry type
	b.VersionFlags(0, 1)
	return b.p
}
