package mp4

// Sample is one media sample located in the source file.
type Sample struct {
	Offset int64
	Size   uint32

	// Delta is the sample duration in media time units.
	Delta uint32

	// CTS is the composition time offset of the sample,
	// nonzero only for streams with reordered frames.
	CTS int32

	// Sync marks a sync sample. Without an stss box
	// every sample is a sync sample.
	Sync bool
}

// SampleTable is a decoded stbl box.
type SampleTable struct {
	// Stsd is the raw sample description payload, copied
	// verbatim between movies so the codec configuration
	// is never touched.
	Stsd []byte

	Samples []Sample
}

// decodeStbl flattens the chunked sample layout of stbl
// into per-sample offsets and sizes.
func decodeStbl(stbl *Box) (*SampleTable, error) {
	stsd := stbl.Find("stsd")
	if stsd == nil {
		return nil, formatError("stsd missing")
	}
	st := &SampleTable{Stsd: stsd.Raw}

	sizes, err := decodeStsz(stbl.Find("stsz"))
	if err != nil {
		return nil, err
	}

	offsets, err := chunkOffsets(stbl)
	if err != nil {
		return nil, err
	}

	chunks, err := decodeStsc(stbl.Find("stsc"), len(offsets))
	if err != nil {
		return nil, err
	}

	deltas, err := decodeStts(stbl.Find("stts"), len(sizes))
	if err != nil {
		return nil, err
	}

	ctss, err := decodeCtts(stbl.Find("ctts"), len(sizes))
	if err != nil {
		return nil, err
	}

	sync, err := decodeStss(stbl.Find("stss"), len(sizes))
	if err != nil {
		return nil, err
	}

	st.Samples = make([]Sample, len(sizes))
	i := 0
	for ci, n := range chunks {
		off := offsets[ci]
		for j := 0; j < n && i < len(sizes); j++ {
			s := &st.Samples[i]
			s.Offset = off
			s.Size = sizes[i]
			s.Delta = deltas[i]
			if ctss != nil {
				s.CTS = ctss[i]
			}
			s.Sync = sync == nil || sync[i]
			off += int64(sizes[i])
			i++
		}
	}
	if i != len(sizes) {
		return nil, formatError("stsc covers %d of %d samples", i, len(sizes))
	}

	return st, nil
}

func decodeStsz(b *Box) ([]uint32, error) {
	if b == nil || len(b.Raw) < 12 {
		return nil, formatError("stsz missing")
	}
	p := b.Raw
	fixed := mp4bo.Uint32(p[4:])
	count := int(mp4bo.Uint32(p[8:]))

	v := make([]uint32, count)
	if fixed != 0 {
		for i := range v {
			v[i] = fixed
		}
		return v, nil
	}
	if len(p) < 12+4*count {
		return nil, formatError("stsz too short")
	}
	for i := range v {
		v[i] = mp4bo.Uint32(p[12+4*i:])
	}
	return v, nil
}

func chunkOffsets(stbl *Box) ([]int64, error) {
	if b := stbl.Find("stco"); b != nil {
		if len(b.Raw) < 8 {
			return nil, formatError("stco too short")
		}
		n := int(mp4bo.Uint32(b.Raw[4:]))
		if len(b.Raw) < 8+4*n {
			return nil, formatError("stco too short")
		}
		v := make([]int64, n)
		for i := range v {
			v[i] = int64(mp4bo.Uint32(b.Raw[8+4*i:]))
		}
		return v, nil
	}
	if b := stbl.Find("co64"); b != nil {
		if len(b.Raw) < 8 {
			return nil, formatError("co64 too short")
		}
		n := int(mp4bo.Uint32(b.Raw[4:]))
		if len(b.Raw) < 8+8*n {
			return nil, formatError("co64 too short")
		}
		v := make([]int64, n)
		for i := range v {
			v[i] = int64(mp4bo.Uint64(b.Raw[8+8*i:]))
		}
		return v, nil
	}
	return nil, formatError("stco and co64 missing")
}

// decodeStsc expands the sample-to-chunk runs into the
// per-chunk sample count.
func decodeStsc(b *Box, nchunks int) ([]int, error) {
	if b == nil || len(b.Raw) < 8 {
		return nil, formatError("stsc missing")
	}
	p := b.Raw
	n := int(mp4bo.Uint32(p[4:]))
	if len(p) < 8+12*n {
		return nil, formatError("stsc too short")
	}

	chunks := make([]int, nchunks)
	for i := 0; i < n; i++ {
		first := int(mp4bo.Uint32(p[8+12*i:]))
		per := int(mp4bo.Uint32(p[8+12*i+4:]))

		last := nchunks
		if i+1 < n {
			last = int(mp4bo.Uint32(p[8+12*(i+1):])) - 1
		}
		if first < 1 || last > nchunks {
			return nil, formatError("stsc chunk run %d..%d out of range", first, last)
		}
		for c := first - 1; c < last; c++ {
			chunks[c] = per
		}
	}
	return chunks, nil
}

func decodeStts(b *Box, nsamples int) ([]uint32, error) {
	if b == nil || len(b.Raw) < 8 {
		return nil, formatError("stts missing")
	}
	p := b.Raw
	n := int(mp4bo.Uint32(p[4:]))
	if len(p) < 8+8*n {
		return nil, formatError("stts too short")
	}

	v := make([]uint32, 0, nsamples)
	for i := 0; i < n; i++ {
		count := int(mp4bo.Uint32(p[8+8*i:]))
		delta := mp4bo.Uint32(p[8+8*i+4:])
		for j := 0; j < count && len(v) < nsamples; j++ {
			v = append(v, delta)
		}
	}
	if len(v) != nsamples {
		return nil, formatError("stts covers %d of %d samples", len(v), nsamples)
	}
	return v, nil
}

func decodeCtts(b *Box, nsamples int) ([]int32, error) {
	if b == nil {
		return nil, nil
	}
	p := b.Raw
	if len(p) < 8 {
		return nil, formatError("ctts too short")
	}
	n := int(mp4bo.Uint32(p[4:]))
	if len(p) < 8+8*n {
		return nil, formatError("ctts too short")
	}

	v := make([]int32, 0, nsamples)
	for i := 0; i < n; i++ {
		count := int(mp4bo.Uint32(p[8+8*i:]))
		cts := int32(mp4bo.Uint32(p[8+8*i+4:]))
		for j := 0; j < count && len(v) < nsamples; j++ {
			v = append(v, cts)
		}
	}
	if len(v) != nsamples {
		return nil, formatError("ctts covers %d of %d samples", len(v), nsamples)
	}
	return v, nil
}

func decodeStss(b *Box, nsamples int) ([]bool, error) {
	if b == nil {
		return nil, nil
	}
	p := b.Raw
	if len(p) < 8 {
		return nil, formatError("stss too short")
	}
	n := int(mp4bo.Uint32(p[4:]))
	if len(p) < 8+4*n {
		return nil, formatError("stss too short")
	}

	v := make([]bool, nsamples)
	for i := 0; i < n; i++ {
		sn := int(mp4bo.Uint32(p[8+4*i:]))
		if sn < 1 || sn > nsamples {
			return nil, formatError("stss sample %d out of range", sn)
		}
		v[sn-1] = true
	}
	return v, nil
}

// encodeStbl builds a sample table for samples written
// contiguously at the recorded offsets, one chunk per sample.
func encodeStbl(stsd []byte, samples []Sample) *Box {
	child := []*Box{
		NewBox("stsd", stsd),
		NewBox("stts", encodeStts(samples)),
		NewBox("stsc", encodeStsc(len(samples))),
		NewBox("stsz", encodeStsz(samples)),
		NewBox("stco", encodeStco(samples)),
	}
	if p := encodeStss(samples); p != nil {
		child = append(child, NewBox("stss", p))
	}
	if p := encodeCtts(samples); p != nil {
		child = append(child, NewBox("ctts", p))
	}
	return NewContainerBox("stbl", child...)
}

func encodeStts(samples []Sample) []byte {
	type run struct {
		count, delta uint32
	}
	var runs []run
	for _, s := range samples {
		if n := len(runs); n > 0 && runs[n-1].delta == s.Delta {
			runs[n-1].count++
		} else {
			runs = append(runs, run{1, s.Delta})
		}
	}

	var b boxBuild
	b.VersionFlags(0, 0)
	b.Uint32(uint32(len(runs)))
	for _, r := range runs {
		b.Uint32(r.count)
		b.Uint32(r.delta)
	}
	return b.p
}

func encodeStsc(nsamples int) []byte {
	var b boxBuild
	b.VersionFlags(0, 0)
	if nsamples == 0 {
		b.Uint32(0)
		return b.p
	}
	b.Uint32(1)
	b.Uint32(1) // first chunk
	b.Uint32(1) // samples per chunk
	b.Uint32(1) // sample description index
	return b.p
}

func encodeStsz(samples []Sample) []byte {
	var b boxBuild
	b.VersionFlags(0, 0)
	b.Uint32(0) // no fixed size
	b.Uint32(uint32(len(samples)))
	for _, s := range samples {
		b.Uint32(s.Size)
	}
	return b.p
}

func encodeStco(samples []Sample) []byte {
	var b boxBuild
	b.VersionFlags(0, 0)
	b.Uint32(uint32(len(samples)))
	for _, s := range samples {
		b.Uint32(uint32(s.Offset))
	}
	return b.p
}

func encodeStss(samples []Sample) []byte {
	all := true
	var syncs []uint32
	for i, s := range samples {
		if s.Sync {
			syncs = append(syncs, uint32(i+1))
		} else {
			all = false
		}
	}
	if all {
		// every sample is a sync sample; stss is implied
		return nil
	}

	var b boxBuild
	b.VersionFlags(0, 0)
	b.Uint32(uint32(len(syncs)))
	for _, sn := range syncs {
		b.Uint32(sn)
	}
	return b.p
}

func encodeCtts(samples []Sample) []byte {
	any := false
	for _, s := range samples {
		if s.CTS != 0 {
			any = true
			break
		}
	}
	if !any {
		return nil
	}

	type run struct {
		count uint32
		cts   int32
	}
	var runs []run
	for _, s := range samples {
		if n := len(runs); n > 0 && runs[n-1].cts == s.CTS {
			runs[n-1].count++
		} else {
			runs = append(runs, run{1, s.CTS})
		}
	}

	var b boxBuild
	b.VersionFlags(0, 0)
	b.Uint32(uint32(len(runs)))
	for _, r := range runs {
		b.Uint32(r.count)
		b.Uint32(uint32(r.cts))
	}
	return b.p
}
