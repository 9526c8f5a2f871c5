package mp4

import (
	"io"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// ErrComposerUnavailable is returned by NewComposer when the source
// movie cannot be demuxed sample by sample, such as a fragmented
// movie or one with a defective sample table. Callers fall back to
// a passthrough copy that preserves pairing but cannot carry the
// still image time marker.
var ErrComposerUnavailable = errors.New("mp4: track composer unavailable for this source")

// DefaultStillTime is the cover position used when the source
// carries no presentation timestamp.
const DefaultStillTime = 500 * time.Millisecond

// Composer rebuilds a movie as a QuickTime file with Live Photo
// metadata: the source video and audio samples copied without
// re-encoding, a timed metadata track carrying a single
// still-image-time entry, and movie-level Keys metadata with the
// content identifier.
type Composer struct {
	// StillTime is the position of the still image time entry,
	// clamped to the movie duration.
	StillTime time.Duration

	// ContentIdentifier is the pairing UUID written to the
	// movie-level Keys metadata.
	ContentIdentifier string

	// AutoPlay sets the live-photo.auto marker.
	AutoPlay bool

	src   *File
	video *Track
	audio *Track
}

// NewComposer prepares remuxing the movie f. It fails with
// ErrComposerUnavailable when the sample tables cannot be fully
// resolved, and with ErrMissingTrack when f has no video track.
func NewComposer(f *File) (*Composer, error) {
	if f.Find("moof") != nil {
		return nil, errors.Wrap(ErrComposerUnavailable, "fragmented movie")
	}

	tracks, err := f.Tracks()
	if err != nil {
		return nil, errors.Wrapf(ErrComposerUnavailable, "demux failed: %v", err)
	}

	video := FindTrack(tracks, TrackVideo)
	if video == nil {
		return nil, errors.Wrap(ErrMissingTrack, "no video track")
	}

	return &Composer{
		StillTime: DefaultStillTime,
		src:       f,
		video:     video,
		audio:     FindTrack(tracks, TrackAudio),
	}, nil
}

// Duration returns the duration of the video track.
func (c *Composer) Duration() time.Duration {
	return c.video.DurationSeconds()
}

// orderedSample references one source sample in mdat write order.
type orderedSample struct {
	track *Track
	index int
	time  float64 // decode time in seconds, for interleaving
}

// Compose writes the remuxed movie to w. The moov box precedes the
// sample data, so the result needs no further optimization pass.
//
// Video and audio samples are copied by two independent reader
// loops feeding a bounded channel each; the writer consumes them in
// interleaved time order and completion waits for both loops.
func (c *Composer) Compose(w io.Writer) error {
	order := c.interleave()
	metaSample := encodeStillImageTimeSample()

	ftyp := NewBox("ftyp", encodeFtypQT())

	// The moov size does not depend on the sample offsets it
	// records. Build it once to learn the mdat payload position,
	// then rebuild with final offsets.
	probe := c.buildMoov(0, order, len(metaSample))
	probe.updateSize()
	mdatStart := ftyp.Size + probe.Size

	moov := c.buildMoov(mdatStart, order, len(metaSample))
	moov.updateSize()
	if moov.Size != probe.Size {
		return errors.New("mp4: moov size changed on rebuild")
	}

	var mdatSize int64 = 8 + int64(len(metaSample))
	for _, os := range order {
		mdatSize += int64(os.track.Samples[os.index].Size)
	}
	if mdatStart+mdatSize >= 1<<32 {
		return errors.New("mp4: composed movie too large for 32-bit chunk offsets")
	}

	if err := ftyp.write(w); err != nil {
		return err
	}
	if err := moov.write(w); err != nil {
		return err
	}

	var hdr [8]byte
	mp4bo.PutUint32(hdr[:4], uint32(mdatSize))
	copy(hdr[4:], "mdat")
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}

	// the timed metadata entry is written synchronously
	// before the sample copy loops start
	if _, err := w.Write(metaSample); err != nil {
		return err
	}

	return c.copySamples(w, order)
}

// copySamples runs one reader loop per track, each pulling sample
// bytes from the source as its channel has room, and consumes them
// in global interleave order. It returns after both loops finished.
func (c *Composer) copySamples(w io.Writer, order []orderedSample) error {
	type readResult struct {
		data []byte
		err  error
	}

	chans := map[*Track]chan readResult{
		c.video: make(chan readResult, 4),
	}
	if c.audio != nil {
		chans[c.audio] = make(chan readResult, 4)
	}

	var wg sync.WaitGroup
	for t, ch := range chans {
		wg.Add(1)
		go func(t *Track, ch chan readResult) {
			defer wg.Done()
			defer close(ch)
			for _, s := range t.Samples {
				p := make([]byte, s.Size)
				_, err := c.src.r.ReadAt(p, s.Offset)
				if err != nil {
					ch <- readResult{err: errors.Wrapf(err, "mp4: reading %s sample", t.Type)}
					return
				}
				ch <- readResult{data: p}
			}
		}(t, ch)
	}

	// the writer reports its final status on a one-shot channel
	done := make(chan error, 1)
	go func() {
		for _, os := range order {
			r, ok := <-chans[os.track]
			switch {
			case !ok:
				done <- errors.Errorf("mp4: %s sample stream ended early", os.track.Type)
				return
			case r.err != nil:
				done <- r.err
				return
			}
			if _, err := w.Write(r.data); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	werr := <-done

	// drain so the feed loops can finish before the join
	for _, ch := range chans {
		for range ch {
		}
	}
	wg.Wait()

	return werr
}

// interleave merges video and audio samples by decode time.
func (c *Composer) interleave() []orderedSample {
	var order []orderedSample

	add := func(t *Track) {
		var dts uint64
		for i, s := range t.Samples {
			order = append(order, orderedSample{
				track: t,
				index: i,
				time:  float64(dts) / float64(t.Timescale),
			})
			dts += uint64(s.Delta)
		}
	}
	add(c.video)
	if c.audio != nil {
		add(c.audio)
	}

	sort.SliceStable(order, func(i, j int) bool {
		return order[i].time < order[j].time
	})
	return order
}

func (c *Composer) buildMoov(mdatStart int64, order []orderedSample, metaSampleLen int) *Box {
	timescale := c.video.Timescale
	duration := c.video.Duration
	created := c.video.Created

	// assign destination offsets; the metadata sample leads
	metaOffset := mdatStart + 8
	off := metaOffset + int64(metaSampleLen)

	outSamples := map[*Track][]Sample{
		c.video: append([]Sample(nil), c.video.Samples...),
	}
	if c.audio != nil {
		outSamples[c.audio] = append([]Sample(nil), c.audio.Samples...)
	}
	for _, os := range order {
		s := &outSamples[os.track][os.index]
		s.Offset = off
		off += int64(s.Size)
	}

	maxID := c.video.ID
	if c.audio != nil && c.audio.ID > maxID {
		maxID = c.audio.ID
	}
	metaTrackID := maxID + 1

	moovChild := []*Box{
		NewBox("mvhd", EncodeMVHD(created, timescale, duration, metaTrackID+1)),
	}

	vt := *c.video
	vt.Samples = outSamples[c.video]
	moovChild = append(moovChild, vt.encodeTrak(duration))

	if c.audio != nil {
		at := *c.audio
		at.Samples = outSamples[c.audio]
		moovChild = append(moovChild, at.encodeTrak(duration))
	}

	moovChild = append(moovChild, c.metaTrak(metaTrackID, metaOffset, metaSampleLen, created))

	keys := new(Keys)
	if c.ContentIdentifier != "" {
		keys.SetString(KeyContentIdentifier, c.ContentIdentifier)
	}
	if c.AutoPlay {
		keys.SetInt8(KeyLivePhotoAuto, 1)
	}
	if len(keys.Entry) != 0 {
		moovChild = append(moovChild, encodeKeysMeta(keys))
	}

	return NewContainerBox("moov", moovChild...)
}

// metaTrak builds the timed metadata track holding the single
// still-image-time sample, positioned at StillTime by an edit list
// with a leading empty edit.
func (c *Composer) metaTrak(trackID uint32, sampleOffset int64, sampleLen int, created time.Time) *Box {
	timescale := c.video.Timescale
	duration := c.video.Duration

	stillTime := c.StillTime
	if stillTime < 0 {
		stillTime = 0
	}
	still := uint64(stillTime * time.Duration(timescale) / time.Second)
	if still >= duration {
		still = 0
	}

	sample := Sample{
		Offset: sampleOffset,
		Size:   uint32(sampleLen),
		Delta:  1, // one tick
		Sync:   true,
	}

	// cdsc marks the track as describing the video track
	var cdsc boxBuild
	cdsc.Uint32(c.video.ID)

	trakChild := []*Box{
		NewBox("tkhd", EncodeTKHD(created, trackID, duration, 0, 0, 0)),
		NewContainerBox("tref", NewBox("cdsc", cdsc.p)),
	}
	if still > 0 {
		trakChild = append(trakChild,
			NewContainerBox("edts", NewBox("elst", encodeElst(still, duration-still))))
	}

	var nmhd boxBuild
	nmhd.VersionFlags(0, 0)

	trakChild = append(trakChild, NewContainerBox("mdia",
		NewBox("mdhd", encodeMDHD(created, timescale, duration)),
		NewBox("hdlr", encodeHDLR(TrackMeta, handlerName(TrackMeta))),
		NewContainerBox("minf",
			NewBox("nmhd", nmhd.p),
			NewContainerBox("dinf", NewBox("dref", encodeDref())),
			encodeStbl(encodeMebxStsd(), []Sample{sample}),
		),
	))

	return NewContainerBox("trak", trakChild...)
}

// encodeElst builds an edit list with a leading empty edit of
// emptyUnits followed by the media from time zero.
func encodeElst(emptyUnits, mediaUnits uint64) []byte {
	var b boxBuild
	b.VersionFlags(0, 0)
	b.Uint32(2)
	b.Uint32(uint32(emptyUnits))
	b.Uint32(0xFFFFFFFF) // media time -1: empty edit
	b.Uint32(0x00010000) // rate 1.0
	b.Uint32(uint32(mediaUnits))
	b.Uint32(0)
	b.Uint32(0x00010000)
	return b.p
}

// encodeMebxStsd builds the boxed metadata sample description with
// local key 1 declared as the mdta still-image-time key.
func encodeMebxStsd() []byte {
	// key declaration: keyd with the mdta namespace and key name
	var keyd boxBuild
	keyd.Uint32(uint32(8 + 4 + len(KeyStillImageTime)))
	keyd.String("keyd")
	keyd.String("mdta")
	keyd.String(KeyStillImageTime)

	// local key box: type is the 4-byte local key ID
	var local boxBuild
	local.Uint32(uint32(8 + len(keyd.p)))
	local.Uint32(stillImageTimeKeyID)
	local.Bytes(keyd.p)

	var keys boxBuild
	keys.Uint32(uint32(8 + len(local.p)))
	keys.String("keys")
	keys.Bytes(local.p)

	var entry boxBuild
	entry.Uint32(uint32(16 + len(keys.p)))
	entry.String("mebx")
	entry.Zero(6)    // reserved
	entry.Uint16(1)  // data reference index
	entry.Bytes(keys.p)

	var b boxBuild
	b.VersionFlags(0, 0)
	b.Uint32(1) // entry count
	b.Bytes(entry.p)
	return b.p
}

const stillImageTimeKeyID = 1

// encodeStillImageTimeSample builds the boxed metadata sample:
// one item with local key 1 and the int8 value -1.
func encodeStillImageTimeSample() []byte {
	var b boxBuild
	b.Uint32(9) // item size: 8 byte header + 1 byte value
	b.Uint32(stillImageTimeKeyID)
	b.Byte(0xFF) // -1
	return b.p
}

func encodeFtypQT() []byte {
	var b boxBuild
	b.String("qt  ")
	b.Uint32(0x20050300)
	b.String("qt  ")
	return b.p
}
