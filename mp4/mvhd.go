package mp4

import (
	"time"
)

// MVHD is a decoded movie header box.
type MVHD struct {
	Version      byte
	Flags        [3]byte
	DateCreated  time.Time // seconds since the Mac epoch 1904-01-01
	DateModified time.Time

	TimeUnit        uint32 // time units per second (default = 600)
	DurationInUnits uint64 // movie length in time units

	Raw []byte // undecoded data after the decoded bits above
}

var ErrShortMVHD = formatError("MVHD too short")

func DecodeMVHD(p []byte) (*MVHD, error) {
	m := new(MVHD)

	bp := newBoxParse(p)

	var err error
	m.Version, m.Flags, err = bp.versionFlags()
	if err != nil {
		return nil, err
	}

	m.DateCreated = bp.Date()
	m.DateModified = bp.Date()
	m.TimeUnit = bp.Uint32()
	m.DurationInUnits = bp.UintVar()

	if bp.Short() {
		return nil, ErrShortMVHD
	}

	if rest := bp.Rest(); len(rest) != 0 {
		m.Raw = make([]byte, len(rest))
		copy(m.Raw, rest)
	}
	return m, nil
}

func (m *MVHD) Duration() time.Duration {
	if m.TimeUnit == 0 {
		return 0
	}
	return time.Duration(m.DurationInUnits) * time.Second / time.Duration(m.TimeUnit)
}

// EncodeMVHD builds a version 0 movie header payload with default
// rate, volume and an identity matrix.
//
// Layout per http://xhelmboyx.tripod.com/formats/mp4-layout.txt:
// version/flags, created, modified, time scale, duration,
// rate 1.0, volume 1.0, 10 reserved bytes, 9*4 matrix,
// 6*4 QuickTime preview/poster/selection, next track id.
func EncodeMVHD(created time.Time, timeUnit uint32, duration uint64, nextTrack uint32) []byte {
	var b boxBuild
	b.VersionFlags(0, 0)
	b.Date(created)
	b.Date(created)
	b.Uint32(timeUnit)
	b.Uint32(uint32(duration))
	b.Uint32(0x00010000) // rate 1.0
	b.Uint16(0x0100)     // volume 1.0
	b.Zero(10)
	b.Bytes(identityMatrix)
	b.Zero(24)
	b.Uint32(nextTrack)
	return b.p
}

// identityMatrix is the unity display transform.
var identityMatrix = []byte{
	0, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0x40, 0, 0, 0,
}
