package mp4

import "time"

// TKHD is a decoded track header box. The display matrix carrying
// the track orientation is not interpreted; tracks copied between
// movies keep their raw header so the transform is preserved.
type TKHD struct {
	Version      byte
	Flags        [3]byte
	DateCreated  time.Time
	DateModified time.Time

	TrackId         uint32
	DurationInUnits uint64 // track length in movie time units

	Width, Height uint32 // fixed point, see FrameSize
}

var ErrShortTKHD = formatError("TKHD too short")

func DecodeTKHD(p []byte) (*TKHD, error) {
	h := new(TKHD)

	bp := newBoxParse(p)

	var err error
	h.Version, h.Flags, err = bp.versionFlags()
	if err != nil {
		return nil, err
	}

	h.DateCreated = bp.Date()
	h.DateModified = bp.Date()
	h.TrackId = bp.Uint32()
	bp.Skip(4) // reserved
	h.DurationInUnits = bp.UintVar()
	bp.Skip(8 + 2 + 2 + 2 + 2) // reserved, layer, alternate group, volume, reserved
	bp.Skip(36)                // display matrix
	h.Width = bp.Uint32()
	h.Height = bp.Uint32()

	if bp.Short() {
		return nil, ErrShortTKHD
	}

	return h, nil
}

func (t *TKHD) FrameSize() (w, h int) {
	return int(t.Width >> 16), int(t.Height >> 16)
}

// EncodeTKHD builds a version 0 track header payload. Flags 0x7 mark
// the track enabled, in movie and in preview.
func EncodeTKHD(created time.Time, trackId uint32, duration uint64, volume uint16, width, height uint32) []byte {
	var b boxBuild
	b.VersionFlags(0, 0x7)
	b.Date(created)
	b.Date(created)
	b.Uint32(trackId)
	b.Zero(4)
	b.Uint32(uint32(duration))
	b.Zero(8)
	b.Uint16(0) // layer
	b.Uint16(0) // alternate group
	b.Uint16(volume)
	b.Zero(2)
	b.Bytes(identityMatrix)
	b.Uint32(width)
	b.Uint32(height)
	return b.p
}

// SetTKHDDuration rewrites the duration field of a raw track header
// in place, keeping the display matrix and every other field.
func SetTKHDDuration(p []byte, duration uint64) bool {
	if len(p) < 4 {
		return false
	}
	switch p[0] {
	case 0:
		if len(p) < 4+8+4+4+4 {
			return false
		}
		mp4bo.PutUint32(p[4+8+4+4:], uint32(duration))
	case 1:
		if len(p) < 4+16+4+4+8 {
			return false
		}
		mp4bo.PutUint64(p[4+16+4+4:], duration)
	default:
		return false
	}
	return true
}
