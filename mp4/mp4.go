// Package mp4 reads and writes ISO base media and QuickTime movie
// containers. It keeps sample data in the source file and loads only
// the structural boxes, so that movies can be rewritten or remuxed
// without re-encoding.
package mp4

import (
	"io"

	"github.com/pkg/errors"
)

// ErrMissingTrack is returned when a movie lacks a track
// required by an operation.
var ErrMissingTrack = errors.New("mp4: required track missing")

// File is a parsed movie file.
type File struct {
	Box []*Box

	// Size is the total size of the source.
	Size int64

	r io.ReaderAt
}

// Box is a single container box.
//
// Leaf boxes hold their payload in Raw. Container boxes hold parsed
// children in Child, with Pre keeping any payload bytes preceding the
// first child (the version and flags of a full box). Boxes too large
// to load, such as mdat, have nil Raw and are copied from the source
// on write.
type Box struct {
	Type string // 4-byte box type

	Offset int64 // header offset in the source, -1 for new boxes
	Size   int64 // total box size including header

	Pre   []byte // container payload before the first child
	Raw   []byte // leaf payload
	Child []*Box

	src    *io.SectionReader // unloaded payload
	srcOff int64             // source offset of the unloaded payload
}

// maxLoadSize caps the size of boxes loaded into memory.
// Structural boxes are far smaller; sample data is never loaded.
const maxLoadSize = 1 << 26

// container reports whether children of cc4 should be parsed.
func container(cc4 string) bool {
	switch cc4 {
	case "moov", "trak", "mdia", "minf", "stbl", "edts", "udta", "meta", "ilst":
		return true
	}
	return false
}

// loadable reports whether the payload of cc4 is loaded into Raw.
func loadable(cc4 string) bool {
	switch cc4 {
	case "mdat", "free", "skip", "wide":
		return false
	}
	return true
}

// Parse reads the box structure of a movie.
// Sample data boxes are recorded but not loaded.
func Parse(r io.ReaderAt, size int64) (*File, error) {
	f := &File{Size: size, r: r}

	box, err := parseBoxes(r, 0, size)
	if err != nil {
		return nil, err
	}
	if len(box) == 0 || box[0].Type != "ftyp" {
		return nil, formatError("ftyp missing")
	}
	f.Box = box
	return f, nil
}

func parseBoxes(r io.ReaderAt, start, end int64) ([]*Box, error) {
	var v []*Box
	pos := start
	for pos+8 <= end {
		b, err := parseBox(r, pos, end)
		if err != nil {
			return nil, err
		}
		v = append(v, b)
		pos += b.Size
	}
	if pos != end {
		return nil, formatError("%d trailing bytes", end-pos)
	}
	return v, nil
}

func parseBox(r io.ReaderAt, offset, end int64) (*Box, error) {
	var hdr [16]byte
	if _, err := r.ReadAt(hdr[:8], offset); err != nil {
		return nil, err
	}
	size := int64(mp4bo.Uint32(hdr[:4]))
	cc4 := string(hdr[4:8])
	hlen := int64(8)

	switch size {
	case 0:
		// box extends to the end of its container
		size = end - offset
	case 1:
		if _, err := r.ReadAt(hdr[8:16], offset+8); err != nil {
			return nil, err
		}
		size = int64(mp4bo.Uint64(hdr[8:16]))
		hlen = 16
	}
	if size < hlen || offset+size > end {
		return nil, formatError("invalid %q box size %d", cc4, size)
	}

	b := &Box{Type: cc4, Offset: offset, Size: size}
	dataOff, dataLen := offset+hlen, size-hlen

	switch {
	case container(cc4):
		if cc4 == "meta" {
			// QuickTime writes meta as a plain box, ISO as a
			// full box with a version and flags prelude.
			pre, err := metaPrelude(r, dataOff, dataLen)
			if err != nil {
				return nil, err
			}
			if pre > 0 {
				b.Pre = make([]byte, pre)
				if _, err := r.ReadAt(b.Pre, dataOff); err != nil {
					return nil, err
				}
				dataOff += int64(pre)
				dataLen -= int64(pre)
			}
		}
		child, err := parseBoxes(r, dataOff, dataOff+dataLen)
		if err != nil {
			return nil, err
		}
		b.Child = child

	case loadable(cc4):
		if dataLen > maxLoadSize {
			return nil, formatError("%q too long", cc4)
		}
		b.Raw = make([]byte, int(dataLen))
		if _, err := r.ReadAt(b.Raw, dataOff); err != nil {
			return nil, err
		}

	default:
		b.src = io.NewSectionReader(r, dataOff, dataLen)
		b.srcOff = dataOff
	}

	return b, nil
}

// metaPrelude reports the number of version and flags bytes
// at the start of a meta box payload.
func metaPrelude(r io.ReaderAt, offset, size int64) (int, error) {
	if size < 12 {
		return 0, nil
	}
	var p [12]byte
	if _, err := r.ReadAt(p[:], offset); err != nil {
		return 0, err
	}
	// a plain meta box starts directly with a child box header
	if isBoxType(p[4:8]) {
		return 0, nil
	}
	if isBoxType(p[8:12]) {
		return 4, nil
	}
	return 0, formatError("unrecognized meta box layout")
}

func isBoxType(p []byte) bool {
	for _, c := range p {
		if c < 0x20 || c > 0x7e {
			return false
		}
	}
	return true
}

// Find returns the descendant box at path, or nil.
func (f *File) Find(path ...string) *Box {
	return findBox(f.Box, path)
}

// Find returns the descendant of b at path, or nil.
func (b *Box) Find(path ...string) *Box {
	return findBox(b.Child, path)
}

// FindAll returns the children of b with the given type.
func (b *Box) FindAll(cc4 string) []*Box {
	var v []*Box
	for _, c := range b.Child {
		if c.Type == cc4 {
			v = append(v, c)
		}
	}
	return v
}

func findBox(v []*Box, path []string) *Box {
	if len(path) == 0 {
		return nil
	}
	for _, b := range v {
		if b.Type == path[0] {
			if len(path) == 1 {
				return b
			}
			return findBox(b.Child, path[1:])
		}
	}
	return nil
}

// Remove removes the direct children of b with the given type.
func (b *Box) Remove(cc4 string) {
	w := b.Child[:0]
	for _, c := range b.Child {
		if c.Type != cc4 {
			w = append(w, c)
		}
	}
	b.Child = w
}

// NewBox returns a leaf box with the given payload.
func NewBox(cc4 string, raw []byte) *Box {
	return &Box{Type: cc4, Offset: -1, Size: int64(len(raw)) + 8, Raw: raw}
}

// NewContainerBox returns a container box with the given children.
func NewContainerBox(cc4 string, child ...*Box) *Box {
	b := &Box{Type: cc4, Offset: -1, Child: child}
	b.updateSize()
	return b
}

// updateSize recomputes Size of b and its descendants.
func (b *Box) updateSize() {
	size := int64(8 + len(b.Pre))
	switch {
	case b.Child != nil:
		for _, c := range b.Child {
			c.updateSize()
			size += c.Size
		}
	case b.Raw != nil:
		size += int64(len(b.Raw))
	case b.src != nil:
		size += b.src.Size()
	}
	b.Size = size
}

// WriteTo writes the file with any structural changes applied.
// Unloaded boxes are copied from the source.
func (f *File) WriteTo(w io.Writer) (int64, error) {
	for _, b := range f.Box {
		b.updateSize()
	}
	cw := &countWriter{w: w}
	for _, b := range f.Box {
		if err := b.write(cw); err != nil {
			return cw.n, err
		}
	}
	return cw.n, nil
}

func (b *Box) write(w io.Writer) error {
	if b.Size >= 1<<32 {
		return formatError("%q box needs 64-bit size", b.Type)
	}
	var hdr [8]byte
	mp4bo.PutUint32(hdr[:4], uint32(b.Size))
	copy(hdr[4:], b.Type)
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	if len(b.Pre) != 0 {
		if _, err := w.Write(b.Pre); err != nil {
			return err
		}
	}

	switch {
	case b.Child != nil:
		for _, c := range b.Child {
			if err := c.write(w); err != nil {
				return err
			}
		}
	case b.Raw != nil:
		if _, err := w.Write(b.Raw); err != nil {
			return err
		}
	case b.src != nil:
		if _, err := io.Copy(w, io.NewSectionReader(b.src, 0, b.src.Size())); err != nil {
			return err
		}
	}
	return nil
}

type countWriter struct {
	w io.Writer
	n int64
}

func (w *countWriter) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	w.n += int64(n)
	return n, err
}
