package livemotion

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/AssassinJY/live-motion-photos-convert/exif"
	"github.com/AssassinJY/live-motion-photos-convert/heic"
	"github.com/AssassinJY/live-motion-photos-convert/jpeg"
	"github.com/AssassinJY/live-motion-photos-convert/metaio"
	"github.com/AssassinJY/live-motion-photos-convert/motion"
	"github.com/AssassinJY/live-motion-photos-convert/mp4"
	"github.com/AssassinJY/live-motion-photos-convert/xmp"
)

// DefaultCoverOffset positions the cover frame when neither the
// options nor the source metadata say otherwise.
const DefaultCoverOffset = 500 * time.Millisecond

// Options control the conversion operations.
// A nil Options means all defaults.
type Options struct {
	// Identifier overrides the content identifier of the pair.
	// Empty means reuse the identifier of the source HEIC,
	// or generate a fresh one.
	Identifier string

	// CoverOffset positions the cover frame within the clip.
	// Zero means DefaultCoverOffset. Either is clamped to the
	// clip duration.
	CoverOffset time.Duration

	// AutoPlay sets the QuickTime live-photo.auto marker
	// on the composed movie.
	AutoPlay bool
}

func (o *Options) identifier() string {
	if o == nil {
		return ""
	}
	return o.Identifier
}

func (o *Options) autoPlay() bool { return o != nil && o.AutoPlay }

func (o *Options) coverOffset(clipDuration time.Duration) time.Duration {
	d := DefaultCoverOffset
	if o != nil && o.CoverOffset != 0 {
		d = o.CoverOffset
	}
	if d < 0 {
		d = 0
	}
	if clipDuration > 0 && d > clipDuration {
		d = clipDuration
	}
	return d
}

// MakeMotionPhoto writes a motion photo to outPath: the still JPEG
// with the clip appended, declared by both XMP schemes and the Exif
// recognition tags. The still's image data and the clip bytes pass
// through unchanged.
func MakeMotionPhoto(stillPath, clipPath, outPath string, o *Options) error {
	clip, err := os.ReadFile(clipPath)
	if err != nil {
		return errors.Wrap(err, "reading clip")
	}
	cf, err := mp4.Parse(bytes.NewReader(clip), int64(len(clip)))
	if err != nil {
		return errors.Wrapf(err, "parsing clip %s", clipPath)
	}
	var clipDuration time.Duration
	if mvhd := cf.Find("moov", "mvhd"); mvhd != nil {
		if m, err := mp4.DecodeMVHD(mvhd.Raw); err == nil {
			clipDuration = m.Duration()
		}
	}
	cover := o.coverOffset(clipDuration)

	sf, err := os.Open(stillPath)
	if err != nil {
		return errors.Wrap(err, "reading still")
	}
	defer sf.Close()

	c, cname, err := metaio.NewContainer(sf)
	if err != nil {
		return errors.Wrapf(err, "parsing still %s", stillPath)
	}
	jf, ok := c.(*jpeg.File)
	if !ok {
		return errors.Errorf("livemotion: motion photo still must be a jpeg, not %s", cname)
	}

	rm := jf.RawMeta()

	var x *exif.Exif
	if p := metaio.Get(rm, "exif"); p != nil {
		if x, err = exif.DecodeBytes(p); err != nil {
			return errors.Wrap(err, "decoding still exif")
		}
	} else {
		dx, dy, _ := jf.Size()
		x = exif.New(dx, dy)
	}
	for _, attr := range []string{metaio.MicroVideo, metaio.EmbeddedVideo, metaio.XiaomiMicroVideo} {
		if err := x.SetMetadataAttr(attr, 1); err != nil {
			return err
		}
	}
	exifData, err := x.EncodeBytes()
	if err != nil {
		return errors.Wrap(err, "encoding still exif")
	}

	m := xmp.New()
	if p := metaio.Get(rm, "xmp"); p != nil {
		if dec, err := xmp.Decode(p); err == nil {
			m = dec
		}
	}
	m.SetMotionPhoto("image/jpeg", "video/mp4", int64(len(clip)), cover.Microseconds())
	xmpData, err := m.Encode()
	if err != nil {
		return errors.Wrap(err, "encoding xmp")
	}

	rm = metaio.Set(rm, "exif", exifData)
	rm = metaio.Set(rm, "xmp", xmpData)
	jf.SetRawMeta(rm)

	var still bytes.Buffer
	if err := jf.WriteTo(&still); err != nil {
		return errors.Wrapf(err, "rewriting still %s", stillPath)
	}

	mod := FileMod{{Offset: int64(still.Len()), Data: clip}}
	return writeFileAtomic(outPath, func(w io.Writer) error {
		_, err := mod.Copy(w, bytes.NewReader(still.Bytes()))
		return err
	})
}

// ExtractMotionPhoto splits the motion photo at motionPath into its
// still image and clip, preserving the bytes of both halves verbatim.
func ExtractMotionPhoto(motionPath, stillPath, clipPath string) error {
	return motion.SplitFile(motionPath, stillPath, clipPath)
}

// MakeLivePhotoPair writes a live photo pair: the HEIC with the
// content identifier injected into its MakerNote, and the clip
// remuxed into a MOV carrying the matching Keys identifier and a
// still-image-time metadata track at the cover offset. Sources the
// composer cannot remux are copied through with the identifier only.
//
// The written pair is read back and verified before returning.
func MakeLivePhotoPair(heicIn, clipIn, heicOut, movOut string, o *Options) error {
	id := o.identifier()
	if id == "" {
		var err error
		if id, err = ResolveIdentifier(heicIn); err != nil {
			return err
		}
	}

	if err := writeLiveStill(heicIn, heicOut, id); err != nil {
		return errors.Wrapf(err, "still %s", heicIn)
	}
	if err := writeLiveClip(clipIn, movOut, id, o); err != nil {
		return errors.Wrapf(err, "clip %s", clipIn)
	}
	return VerifyPair(heicOut, movOut)
}

// ResolveIdentifier returns the content identifier for a pair built
// from the HEIC at path. An identifier already present in its
// MakerNote is reused, so re-converting a paired still keeps its
// clip association; otherwise a fresh uppercase UUID is generated.
func ResolveIdentifier(path string) (string, error) {
	p, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	f, err := heic.Parse(p)
	if err != nil {
		return "", err
	}
	if tiff, err := f.Exif(); err == nil {
		if x, err := exif.DecodeBytes(tiff); err == nil {
			if id, ok := x.ContentIdentifier(); ok && id != "" && id != uuid.Nil.String() {
				return id, nil
			}
		}
	}
	return strings.ToUpper(uuid.New().String()), nil
}

// VerifyPair reads the identifiers of both halves of a live photo
// pair back and reports missing or differing identifiers as
// ErrIdentifierMismatch. A mismatched pair is never accepted silently.
func VerifyPair(heicPath, movPath string) error {
	still, err := ProbeFile(heicPath)
	if err != nil {
		return errors.Wrapf(err, "probing %s", heicPath)
	}
	clip, err := ProbeFile(movPath)
	if err != nil {
		return errors.Wrapf(err, "probing %s", movPath)
	}
	if still.ContentIdentifier == "" || clip.ContentIdentifier == "" {
		return errors.Wrap(ErrIdentifierMismatch, "identifier missing")
	}
	if still.ContentIdentifier != clip.ContentIdentifier {
		return errors.Wrapf(ErrIdentifierMismatch, "%q vs %q",
			still.ContentIdentifier, clip.ContentIdentifier)
	}
	return nil
}

// writeLiveStill copies the HEIC at in to out with id stored as the
// MakerNote content identifier. A still without an Exif item has no
// slot for the identifier and fails with metaio.ErrAttrUnwritable.
func writeLiveStill(in, out, id string) error {
	p, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	f, err := heic.Parse(p)
	if err != nil {
		return err
	}

	tiff, err := f.Exif()
	if err != nil {
		if errors.Is(err, heic.ErrNoExif) {
			return errors.Wrap(metaio.ErrAttrUnwritable, "no exif item")
		}
		return err
	}
	x, err := exif.DecodeBytes(tiff)
	if err != nil {
		return errors.Wrap(err, "decoding exif item")
	}
	if err := x.SetContentIdentifier(id); err != nil {
		return err
	}
	tiff, err = x.EncodeBytes()
	if err != nil {
		return err
	}

	rewritten, err := f.SetExif(tiff)
	if err != nil {
		return err
	}
	return writeFileAtomic(out, func(w io.Writer) error {
		_, err := w.Write(rewritten)
		return err
	})
}

// writeLiveClip remuxes the movie at in to out with the pairing
// metadata, falling back to a plain copy with the identifier injected
// when the source cannot be demuxed.
func writeLiveClip(in, out, id string, o *Options) error {
	src, err := os.Open(in)
	if err != nil {
		return err
	}
	defer src.Close()

	st, err := src.Stat()
	if err != nil {
		return err
	}
	f, err := mp4.Parse(src, st.Size())
	if err != nil {
		return err
	}

	c, err := mp4.NewComposer(f)
	switch {
	case err == nil:
		c.ContentIdentifier = id
		c.AutoPlay = o.autoPlay()
		c.StillTime = o.coverOffset(c.Duration())
		return writeFileAtomic(out, c.Compose)

	case errors.Is(err, mp4.ErrComposerUnavailable):
		// degraded mode: pairing preserved, cover marker not guaranteed
		return writeFileAtomic(out, func(w io.Writer) error {
			return f.Passthrough(w, id)
		})

	default:
		return err
	}
}

// writeFileAtomic streams the output of write to path through a
// temporary file renamed on success, so a failed write never leaves
// a partial file at the destination.
func writeFileAtomic(path string, write func(w io.Writer) error) error {
	dir, base := filepath.Split(path)
	f, err := os.CreateTemp(dir, base+".tmp*")
	if err != nil {
		return writeFailed(err, path)
	}
	tmp := f.Name()

	if err := write(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return writeFailed(err, path)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return writeFailed(err, path)
	}
	if err := os.Chmod(tmp, 0644); err != nil {
		os.Remove(tmp)
		return writeFailed(err, path)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return writeFailed(err, path)
	}
	return nil
}
