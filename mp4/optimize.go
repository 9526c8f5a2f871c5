package mp4

// Optimize reorders the top-level boxes so moov directly follows
// ftyp, ahead of the sample data, and patches every chunk offset
// for the moved or resized boxes. Players start streaming such a
// movie without seeking to the end first.
//
// Chunk offsets are absolute file positions, so any structural
// change that moves an unloaded box invalidates them. Optimize must
// run after such edits and before WriteTo.
func (f *File) Optimize() error {
	for _, b := range f.Box {
		b.updateSize()
	}

	var order []*Box
	if len(f.Box) != 0 && f.Box[0].Type == "ftyp" {
		order = append(order, f.Box[0])
	}
	if moov := f.Find("moov"); moov != nil {
		order = append(order, moov)
	}
	for _, b := range f.Box {
		if b.Type == "ftyp" || b.Type == "moov" {
			continue
		}
		order = append(order, b)
	}

	// map the payload of every unloaded box from its source
	// position to its position in the new layout
	type span struct {
		oldStart, oldEnd int64
		delta            int64
	}
	var spans []span

	pos := int64(0)
	for _, b := range order {
		if b.src != nil && b.Offset >= 0 {
			oldPayload := b.srcOff
			newPayload := pos + 8
			spans = append(spans, span{
				oldStart: oldPayload,
				oldEnd:   oldPayload + b.src.Size(),
				delta:    newPayload - oldPayload,
			})
		}
		pos += b.Size
	}

	shift := func(off int64) (int64, bool) {
		for _, s := range spans {
			if off >= s.oldStart && off < s.oldEnd {
				return off + s.delta, true
			}
		}
		return off, false
	}

	if moov := f.Find("moov"); moov != nil {
		for _, trak := range moov.FindAll("trak") {
			stbl := trak.Find("mdia", "minf", "stbl")
			if stbl == nil {
				continue
			}
			if err := patchChunkOffsets(stbl, shift); err != nil {
				return err
			}
		}
	}

	f.Box = order
	return nil
}

func patchChunkOffsets(stbl *Box, shift func(int64) (int64, bool)) error {
	if b := stbl.Find("stco"); b != nil {
		p := b.Raw
		if len(p) < 8 {
			return formatError("stco too short")
		}
		n := int(mp4bo.Uint32(p[4:]))
		if len(p) < 8+4*n {
			return formatError("stco too short")
		}
		for i := 0; i < n; i++ {
			off, ok := shift(int64(mp4bo.Uint32(p[8+4*i:])))
			if !ok {
				return formatError("chunk offset outside sample data")
			}
			if off >= 1<<32 {
				return formatError("chunk offset needs co64")
			}
			mp4bo.PutUint32(p[8+4*i:], uint32(off))
		}
		return nil
	}
	if b := stbl.Find("co64"); b != nil {
		p := b.Raw
		if len(p) < 8 {
			return formatError("co64 too short")
		}
		n := int(mp4bo.Uint32(p[4:]))
		if len(p) < 8+8*n {
			return formatError("co64 too short")
		}
		for i := 0; i < n; i++ {
			off, ok := shift(int64(mp4bo.Uint64(p[8+8*i:])))
			if !ok {
				return formatError("chunk offset outside sample data")
			}
			mp4bo.PutUint64(p[8+8*i:], uint64(off))
		}
		return nil
	}
	return nil
}
