// Package livemotion converts between Apple Live Photos, a HEIC still
// and a MOV clip paired by a shared content identifier, and Android
// motion photos, a single JPEG with an MP4 clip appended and described
// by embedded XMP.
//
// Only containers and metadata are rewritten; pixel and sample data
// pass through byte for byte. Transcoding, batch traversal and .livp
// archives are left to external tools.
package livemotion

import (
	"io"
	"os"
	"time"

	"github.com/AssassinJY/live-motion-photos-convert/exif"
	"github.com/AssassinJY/live-motion-photos-convert/heic"
	"github.com/AssassinJY/live-motion-photos-convert/jpeg"
	"github.com/AssassinJY/live-motion-photos-convert/metaio"
	"github.com/AssassinJY/live-motion-photos-convert/mp4"
	"github.com/AssassinJY/live-motion-photos-convert/xmp"
)

// Info describes the motion and live photo attributes of a media file.
type Info struct {
	Format string // container format: "jpeg", "heic" or "mp4"

	// ContentIdentifier is the UUID pairing a live photo still with
	// its clip, from the Apple MakerNote of images or the QuickTime
	// Keys metadata of movies. Empty when absent.
	ContentIdentifier string

	// MotionPhoto reports a JPEG whose XMP declares an embedded clip.
	MotionPhoto bool

	// VideoOffset and VideoLength give the byte span of the declared
	// clip within the file. VideoOffset is -1 when unknown.
	VideoOffset int64
	VideoLength int64

	// CoverTimeUs is the cover frame timestamp in microseconds, from
	// the XMP presentation timestamp of motion photos or the
	// still-image-time sample of movies. -1 when absent.
	CoverTimeUs int64

	// LivePhotoAuto reports the QuickTime live-photo.auto marker.
	LivePhotoAuto bool

	// Created is the movie creation time from the movie header.
	Created time.Time

	// Duration is the movie duration.
	Duration time.Duration

	// Width and Height are the still frame dimensions, when known.
	Width, Height int
}

// Probe detects the container format of r and reports its motion and
// live photo attributes. Unrecognized content yields
// metaio.ErrUnknownFormat; an image without any metadata yields
// ErrNoMeta.
func Probe(r io.Reader) (*Info, error) {
	c, cname, err := metaio.NewContainer(r)
	if err != nil {
		return nil, err
	}

	info := &Info{
		Format:      cname,
		VideoOffset: -1,
		CoverTimeUs: -1,
	}

	switch c := c.(type) {
	case *jpeg.File:
		probeJPEG(c, r, info)
	case *heic.Container:
		probeStillMeta(c.RawMeta(), info)
	case *mp4.Container:
		probeMovie(c.File(), info)
	}

	if info.Format != "mp4" && len(c.RawMeta()) == 0 {
		return nil, ErrNoMeta
	}
	return info, nil
}

// ProbeFile probes the file at path.
func ProbeFile(path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Probe(f)
}

func probeJPEG(f *jpeg.File, r io.Reader, info *Info) {
	info.Width, info.Height, _ = f.Size()
	probeStillMeta(f.RawMeta(), info)

	p := metaio.Get(f.RawMeta(), "xmp")
	if p == nil {
		return
	}
	m, err := xmp.Decode(p)
	if err != nil {
		return
	}

	info.MotionPhoto = m.IsMotionPhoto()
	if ts, ok := m.PresentationTimestampUs(); ok {
		info.CoverTimeUs = ts
	}
	vl, ok := m.VideoLength()
	if !ok {
		return
	}
	info.VideoLength = vl

	// the span is anchored at the end of the file,
	// so the offset needs the total size
	if rs, ok := r.(io.Seeker); ok {
		if size, err := rs.Seek(0, io.SeekEnd); err == nil && vl < size {
			info.VideoOffset = size - vl
		}
	}
}

func probeStillMeta(rm []metaio.RawMeta, info *Info) {
	p := metaio.Get(rm, "exif")
	if p == nil {
		return
	}
	x, err := exif.DecodeBytes(p)
	if err != nil {
		return
	}
	if id, ok := x.ContentIdentifier(); ok {
		info.ContentIdentifier = id
	}
}

func probeMovie(f *mp4.File, info *Info) {
	if mvhd := f.Find("moov", "mvhd"); mvhd != nil {
		if m, err := mp4.DecodeMVHD(mvhd.Raw); err == nil {
			info.Created = m.DateCreated
			info.Duration = m.Duration()
		}
	}

	if keys, err := f.DecodeKeys(); err == nil {
		if s, ok := keys.String(mp4.KeyContentIdentifier); ok {
			info.ContentIdentifier = s
		}
		if v, ok := keys.Int8(mp4.KeyLivePhotoAuto); ok && v != 0 {
			info.LivePhotoAuto = true
		}
	}

	if st, ok := f.StillImageTime(); ok {
		info.CoverTimeUs = st.Microseconds()
	}
}
