package djvu

// IW44 forward/inverse integer lifting wavelet transform (spec §4.3).
//
// Operates in place on a signed 16-bit coefficient buffer, one dyadic
// scale at a time: filter_fh (horizontal) then filter_fv (vertical),
// each touching only the samples already on the current scale's grid.
// Structure (successive-scale driver calling into a row/column 1D
// lifting step) is grounded on dwt.go/dwt_encode.go's analyze/synthesize
// split and its coarsest-to-finest driving loop; the 5/3-family filter
// itself is replaced by DjVu's own 9-tap predict/update pair (spec §4.3).
//
// filterBackend stands in for a pluggable SIMD lifting backend
// (wavelet.LiftStep97 et al., from the dropped go-highway dependency —
// see SPEC_FULL.md §10): a seam for a vectorised implementation without
// forcing one on every build.
type filterBackend interface {
	predict(get func(int) int32, set func(int, int32), n int)
	update(get func(int) int32, set func(int, int32), n int)
	unpredict(get func(int) int32, set func(int, int32), n int)
	unupdate(get func(int) int32, set func(int, int32), n int)
}

// scalarFilterBackend is the only filterBackend this module ships: a
// plain scalar implementation of the 9-tap lifting pair (spec §4.3).
type scalarFilterBackend struct{}

var defaultFilterBackend filterBackend = scalarFilterBackend{}

// predict implements filter_fh/filter_fv's odd-sample predict step.
func (scalarFilterBackend) predict(get func(int) int32, set func(int, int32), n int) {
	for i := 1; i < n; i += 2 {
		a1 := get(i - 1)
		var a0, a2, a3 int32
		haveA0 := i-3 >= 0
		haveA3 := i+3 < n
		if haveA0 {
			a0 = get(i - 3)
		} else {
			a0 = a1
		}
		if i+1 < n {
			a2 = get(i + 1)
		} else {
			a2 = a1
		}
		if haveA3 {
			a3 = get(i + 3)
		} else {
			a3 = a2
		}
		var d int32
		if haveA0 && haveA3 {
			d = get(i) - ((9*(a1+a2) - a0 - a3 + 8) >> 4)
		} else {
			// x=1 and w-3 <= x < w: simplified predict (spec §4.3), gated
			// on a0/a3 availability, not a2.
			d = get(i) - ((a1 + a2 + 1) >> 1)
		}
		set(i, d)
	}
}

// update implements filter_fh/filter_fv's even-sample update step, run
// after predict has replaced every odd sample with its difference.
func (scalarFilterBackend) update(get func(int) int32, set func(int, int32), n int) {
	for i := 0; i < n; i += 2 {
		var b0, b1, b2, b3 int32
		if i-3 >= 0 {
			b0 = get(i - 3)
		}
		if i-1 >= 0 {
			b1 = get(i - 1)
		}
		if i+1 < n {
			b2 = get(i + 1)
		}
		if i+3 < n {
			b3 = get(i + 3)
		}
		u := get(i) + ((9*(b1+b2) - b0 - b3 + 16) >> 5)
		set(i, u)
	}
}

// unupdate undoes update: run first on the inverse side, before unpredict.
func (scalarFilterBackend) unupdate(get func(int) int32, set func(int, int32), n int) {
	for i := 0; i < n; i += 2 {
		var b0, b1, b2, b3 int32
		if i-3 >= 0 {
			b0 = get(i - 3)
		}
		if i-1 >= 0 {
			b1 = get(i - 1)
		}
		if i+1 < n {
			b2 = get(i + 1)
		}
		if i+3 < n {
			b3 = get(i + 3)
		}
		u := get(i) - ((9*(b1+b2) - b0 - b3 + 16) >> 5)
		set(i, u)
	}
}

// unpredict undoes predict: run second on the inverse side, after unupdate
// has restored the even samples to their original values.
func (scalarFilterBackend) unpredict(get func(int) int32, set func(int, int32), n int) {
	for i := 1; i < n; i += 2 {
		a1 := get(i - 1)
		var a0, a2, a3 int32
		haveA0 := i-3 >= 0
		haveA3 := i+3 < n
		if haveA0 {
			a0 = get(i - 3)
		} else {
			a0 = a1
		}
		if i+1 < n {
			a2 = get(i + 1)
		} else {
			a2 = a1
		}
		if haveA3 {
			a3 = get(i + 3)
		} else {
			a3 = a2
		}
		var d int32
		if haveA0 && haveA3 {
			d = get(i) + ((9*(a1+a2) - a0 - a3 + 8) >> 4)
		} else {
			d = get(i) + ((a1 + a2 + 1) >> 1)
		}
		set(i, d)
	}
}

// CoeffPlane is a signed 16-bit coefficient buffer addressed by an
// explicit row stride, the in-place working space for the IW44 transform.
type CoeffPlane struct {
	W, H     int
	RowBytes int // stride in elements, >= W
	C        []int16
}

// NewCoeffPlane allocates a zeroed plane sized for w x h coefficients.
func NewCoeffPlane(w, h int) *CoeffPlane {
	return &CoeffPlane{W: w, H: h, RowBytes: w, C: make([]int16, w*h)}
}

// MaxScale returns the largest power-of-two scale the forward transform
// will visit for a plane of this size (spec §4.3: "successive scales
// s = 1, 2, 4, ..., s_max").
func (p *CoeffPlane) MaxScale() int {
	s := 1
	for s*2 < p.W || s*2 < p.H {
		s *= 2
	}
	return s
}

// scales returns the ascending list of scales the forward transform
// visits, 1, 2, 4, ..., maxScale.
func scales(maxScale int) []int {
	var out []int
	for s := 1; s <= maxScale; s *= 2 {
		out = append(out, s)
	}
	return out
}

// ForwardTransform applies the IW44 forward wavelet transform in place,
// scale by scale, horizontal then vertical at each scale (spec §4.3),
// visiting every scale up to the plane's natural MaxScale.
func (p *CoeffPlane) ForwardTransform(backend filterBackend) {
	p.ForwardTransformTo(backend, p.MaxScale())
}

// InverseTransform reverses ForwardTransform.
func (p *CoeffPlane) InverseTransform(backend filterBackend) {
	p.InverseTransformTo(backend, p.MaxScale())
}

// ForwardTransformTo is ForwardTransform with an explicit scale ceiling,
// used by the band-tree decomposition (spec §4.4's fixed 3-level pyramid)
// to stop decomposing before the generic MaxScale bound.
func (p *CoeffPlane) ForwardTransformTo(backend filterBackend, maxScale int) {
	if backend == nil {
		backend = defaultFilterBackend
	}
	for _, s := range scales(maxScale) {
		p.filterFH(backend, s, false)
		p.filterFV(backend, s, false)
	}
}

// InverseTransformTo reverses ForwardTransformTo for the same maxScale.
func (p *CoeffPlane) InverseTransformTo(backend filterBackend, maxScale int) {
	if backend == nil {
		backend = defaultFilterBackend
	}
	ss := scales(maxScale)
	for i := len(ss) - 1; i >= 0; i-- {
		s := ss[i]
		p.filterFV(backend, s, true)
		p.filterFH(backend, s, true)
	}
}

// filterFH is filter_fh: for every s-th row, lift the samples spaced s
// apart along that row.
func (p *CoeffPlane) filterFH(backend filterBackend, s int, inverse bool) {
	for y := 0; y < p.H; y += s {
		rowOff := y * p.RowBytes
		n := (p.W-1)/s + 1
		get := func(i int) int32 { return int32(p.C[rowOff+i*s]) }
		set := func(i int, v int32) { p.C[rowOff+i*s] = int16(v) }
		run1D(backend, get, set, n, inverse)
	}
}

// filterFV is filter_fv: for every s-th column, lift the samples spaced
// s apart along that column, using stride s*RowBytes.
func (p *CoeffPlane) filterFV(backend filterBackend, s int, inverse bool) {
	for x := 0; x < p.W; x += s {
		n := (p.H-1)/s + 1
		stride := s * p.RowBytes
		get := func(i int) int32 { return int32(p.C[x+i*stride]) }
		set := func(i int, v int32) { p.C[x+i*stride] = int16(v) }
		run1D(backend, get, set, n, inverse)
	}
}

func run1D(backend filterBackend, get func(int) int32, set func(int, int32), n int, inverse bool) {
	if n < 2 {
		return
	}
	if inverse {
		backend.unupdate(get, set, n)
		backend.unpredict(get, set, n)
	} else {
		backend.predict(get, set, n)
		backend.update(get, set, n)
	}
}
