package mp4

import (
	"encoding/binary"
	"fmt"
	"time"
)

var mp4bo = binary.BigEndian

func formatError(f string, args ...interface{}) error {
	return fmt.Errorf("mp4: "+f, args...)
}

type boxParse struct {
	data []byte
	big  bool // if true, date and duration values are 8 bytes, otherwise 4 bytes
	i    int  // read position

	short   bool
	scratch [8]byte
}

func newBoxParse(p []byte) *boxParse {
	return &boxParse{data: p}
}

func (p *boxParse) versionFlags() (ver byte, flags [3]byte, err error) {
	b := p.next(4)
	ver = b[0]
	copy(flags[:], b[1:])

	if ver > 1 {
		return ver, flags, formatError("unknown box version %d", ver)
	}

	p.big = ver == 1

	return ver, flags, nil
}

func (p *boxParse) next(n int) []byte {
	i := p.i
	p.i += n
	if p.i <= len(p.data) {
		return p.data[i:p.i]
	}
	p.short = true
	return p.scratch[:n]
}

func (p *boxParse) Skip(n int) {
	p.i += n
	if p.i > len(p.data) {
		p.short = true
	}
}

func (p *boxParse) Short() bool {
	return p.short
}

func (p *boxParse) Rest() []byte {
	if p.short {
		return nil
	}
	return p.data[p.i:]
}

func (p *boxParse) Uint16() uint16 {
	return mp4bo.Uint16(p.next(2))
}

func (p *boxParse) Uint32() uint32 {
	return mp4bo.Uint32(p.next(4))
}

var macUTCepoch = time.Date(1904, 1, 1, 0, 0, 0, 0, time.UTC)

func (p *boxParse) Date() time.Time {
	return macUTCepoch.Add(time.Duration(p.UintVar()) * time.Second)
}

func (p *boxParse) UintVar() uint64 {
	if p.big {
		return mp4bo.Uint64(p.next(8))
	} else {
		return uint64(mp4bo.Uint32(p.next(4)))
	}
}

// boxBuild builds big-endian box payloads.
type boxBuild struct {
	p []byte
}

func (b *boxBuild) VersionFlags(ver byte, flags uint32) {
	b.Uint32(uint32(ver)<<24 | flags&0xFFFFFF)
}

func (b *boxBuild) Bytes(p []byte) { b.p = append(b.p, p...) }

func (b *boxBuild) String(s string) { b.p = append(b.p, s...) }

func (b *boxBuild) Zero(n int) { b.p = append(b.p, make([]byte, n)...) }

func (b *boxBuild) Byte(v byte) { b.p = append(b.p, v) }

func (b *boxBuild) Uint16(v uint16) {
	var q [2]byte
	mp4bo.PutUint16(q[:], v)
	b.p = append(b.p, q[:]...)
}

func (b *boxBuild) Uint32(v uint32) {
	var q [4]byte
	mp4bo.PutUint32(q[:], v)
	b.p = append(b.p, q[:]...)
}

func (b *boxBuild) Uint64(v uint64) {
	var q [8]byte
	mp4bo.PutUint64(q[:], v)
	b.p = append(b.p, q[:]...)
}

// Date stores t as 32-bit seconds since the Mac epoch.
func (b *boxBuild) Date(t time.Time) {
	if t.Before(macUTCepoch) {
		b.Uint32(0)
		return
	}
	b.Uint32(uint32(t.Sub(macUTCepoch) / time.Second))
}
