package domain

import (
	"math/big"
	"sort"

	"honnef.co/go/absval/arith"
)

// span is an inclusive range of integers. Its bounds are never mutated.
type span struct{ lo, hi *big.Int }

// frange is an inclusive range of non-NaN floats under TotalCmp.
type frange struct{ lo, hi arith.Float }

// set is the concretization of a value in normal form. Transfer functions
// compute on sets and build values back from them.
type set struct {
	typ Type
	// spans are the integers of the set as unsigned values: sorted,
	// disjoint and non-adjacent.
	spans []span
	// ranges are the non-NaN floats of the set: sorted, disjoint and
	// non-adjacent.
	ranges     []frange
	qnan, snan bool
}

var bigOne = big.NewInt(1)

func emptySet(t Type) set { return set{typ: t} }

func fullSet(t Type) set {
	if t.Float {
		return set{
			typ:    t,
			ranges: []frange{{arith.Inf(t.Format, true), arith.Inf(t.Format, false)}},
			qnan:   true,
			snan:   true,
		}
	}
	_, hi := arith.Bounds(t.Size, false)
	return set{typ: t, spans: []span{{new(big.Int), hi}}}
}

func pointSet(x arith.Scalar) set {
	switch x := x.(type) {
	case arith.BitVec:
		u := x.Uint()
		return set{typ: IntType(x.Size()), spans: []span{{u, u}}}
	case arith.Float:
		t := FloatType(x.Format())
		switch {
		case x.IsQNaN():
			return set{typ: t, qnan: true}
		case x.IsSNaN():
			return set{typ: t, snan: true}
		}
		return set{typ: t, ranges: []frange{{x, x}}}
	}
	panic("unreachable")
}

func (s set) isEmpty() bool {
	return len(s.spans) == 0 && len(s.ranges) == 0 && !s.qnan && !s.snan
}

func (s set) isFull() bool {
	if s.typ.Float {
		return s.qnan && s.snan && len(s.ranges) == 1 &&
			s.ranges[0].lo.IsInf() && s.ranges[0].lo.Signbit() &&
			s.ranges[0].hi.IsInf() && !s.ranges[0].hi.Signbit()
	}
	_, hi := arith.Bounds(s.typ.Size, false)
	return len(s.spans) == 1 && s.spans[0].lo.Sign() == 0 && s.spans[0].hi.Cmp(hi) == 0
}

func (s set) hasNaN() bool { return s.qnan || s.snan }

func (s set) equal(o set) bool {
	if s.typ != o.typ || len(s.spans) != len(o.spans) || len(s.ranges) != len(o.ranges) ||
		s.qnan != o.qnan || s.snan != o.snan {
		return false
	}
	for i := range s.spans {
		if s.spans[i].lo.Cmp(o.spans[i].lo) != 0 || s.spans[i].hi.Cmp(o.spans[i].hi) != 0 {
			return false
		}
	}
	for i := range s.ranges {
		if !s.ranges[i].lo.Equal(o.ranges[i].lo) || !s.ranges[i].hi.Equal(o.ranges[i].hi) {
			return false
		}
	}
	return true
}

func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

func maxBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}

func addBig(a, b *big.Int) *big.Int { return new(big.Int).Add(a, b) }
func subBig(a, b *big.Int) *big.Int { return new(big.Int).Sub(a, b) }
func negBig(a *big.Int) *big.Int    { return new(big.Int).Neg(a) }

func pow2(n int) *big.Int { return new(big.Int).Lsh(bigOne, uint(n)) }

// normSpans sorts and coalesces in, which it may reorder.
func normSpans(in []span) []span {
	if len(in) == 0 {
		return nil
	}
	sort.Slice(in, func(i, j int) bool { return in[i].lo.Cmp(in[j].lo) < 0 })
	out := []span{in[0]}
	for _, sp := range in[1:] {
		last := &out[len(out)-1]
		if sp.lo.Cmp(addBig(last.hi, bigOne)) <= 0 {
			last.hi = maxBig(last.hi, sp.hi)
			continue
		}
		out = append(out, sp)
	}
	return out
}

// fnext and fprev step through floats in TotalCmp order, where -0 and +0
// are neighbors.
func fnext(x arith.Float) arith.Float {
	if x.IsZero() && x.Signbit() {
		return arith.Zero(x.Format(), false)
	}
	return x.NextUp()
}

func fprev(x arith.Float) arith.Float {
	if x.IsZero() && !x.Signbit() {
		return arith.Zero(x.Format(), true)
	}
	return x.NextDown()
}

func fmin(a, b arith.Float) arith.Float {
	if a.TotalCmp(b) <= 0 {
		return a
	}
	return b
}

func fmax(a, b arith.Float) arith.Float {
	if a.TotalCmp(b) >= 0 {
		return a
	}
	return b
}

func normRanges(in []frange) []frange {
	if len(in) == 0 {
		return nil
	}
	sort.Slice(in, func(i, j int) bool { return in[i].lo.TotalCmp(in[j].lo) < 0 })
	out := []frange{in[0]}
	for _, r := range in[1:] {
		last := &out[len(out)-1]
		if r.lo.TotalCmp(fnext(last.hi)) <= 0 {
			last.hi = fmax(last.hi, r.hi)
			continue
		}
		out = append(out, r)
	}
	return out
}

func (s set) union(o set) set {
	return unionAll(s.typ, s, o)
}

func unionAll(t Type, sets ...set) set {
	out := set{typ: t}
	var spans []span
	var ranges []frange
	for _, s := range sets {
		spans = append(spans, s.spans...)
		ranges = append(ranges, s.ranges...)
		out.qnan = out.qnan || s.qnan
		out.snan = out.snan || s.snan
	}
	out.spans = normSpans(spans)
	out.ranges = normRanges(ranges)
	return out
}

func (s set) intersect(o set) set {
	out := set{typ: s.typ, qnan: s.qnan && o.qnan, snan: s.snan && o.snan}
	for i, j := 0, 0; i < len(s.spans) && j < len(o.spans); {
		a, b := s.spans[i], o.spans[j]
		lo, hi := maxBig(a.lo, b.lo), minBig(a.hi, b.hi)
		if lo.Cmp(hi) <= 0 {
			out.spans = append(out.spans, span{lo, hi})
		}
		if a.hi.Cmp(b.hi) < 0 {
			i++
		} else {
			j++
		}
	}
	for i, j := 0, 0; i < len(s.ranges) && j < len(o.ranges); {
		a, b := s.ranges[i], o.ranges[j]
		lo, hi := fmax(a.lo, b.lo), fmin(a.hi, b.hi)
		if lo.TotalCmp(hi) <= 0 {
			out.ranges = append(out.ranges, frange{lo, hi})
		}
		if a.hi.TotalCmp(b.hi) < 0 {
			i++
		} else {
			j++
		}
	}
	return out
}

// subset reports whether s is included in o.
func (s set) subset(o set) bool { return s.intersect(o).equal(s) }

func (s set) containsScalar(x arith.Scalar) bool {
	return pointSet(x).subset(s)
}

// complement returns the integers not in s.
func (s set) complement() set {
	_, max := arith.Bounds(s.typ.Size, false)
	out := set{typ: s.typ}
	next := new(big.Int)
	for _, sp := range s.spans {
		if sp.lo.Cmp(next) > 0 {
			out.spans = append(out.spans, span{next, subBig(sp.lo, bigOne)})
		}
		next = addBig(sp.hi, bigOne)
	}
	if next.Cmp(max) <= 0 {
		out.spans = append(out.spans, span{next, max})
	}
	return out
}

// withoutScalar returns s minus the point x.
func (s set) withoutScalar(x arith.Scalar) set {
	switch x := x.(type) {
	case arith.BitVec:
		return s.intersect(pointSet(x).complement())
	case arith.Float:
		out := s
		switch {
		case x.IsQNaN():
			out.qnan = false
		case x.IsSNaN():
			out.snan = false
		default:
			out.ranges = nil
			for _, r := range s.ranges {
				if x.TotalCmp(r.lo) < 0 || x.TotalCmp(r.hi) > 0 {
					out.ranges = append(out.ranges, r)
					continue
				}
				if x.TotalCmp(r.lo) > 0 {
					out.ranges = append(out.ranges, frange{r.lo, fprev(x)})
				}
				if x.TotalCmp(r.hi) < 0 {
					out.ranges = append(out.ranges, frange{fnext(x), r.hi})
				}
			}
		}
		return out
	}
	panic("unreachable")
}

func (s set) withoutNaN() set {
	s.qnan, s.snan = false, false
	return s
}

// view returns the integers of s read under the given signedness, as sorted
// and coalesced spans.
func (s set) view(signed bool) []span {
	if !signed {
		return s.spans
	}
	n := s.typ.Size
	half, mod := pow2(n-1), pow2(n)
	var out []span
	for _, sp := range s.spans {
		switch {
		case sp.hi.Cmp(half) < 0:
			out = append(out, sp)
		case sp.lo.Cmp(half) >= 0:
			out = append(out, span{subBig(sp.lo, mod), subBig(sp.hi, mod)})
		default:
			out = append(out, span{sp.lo, subBig(half, bigOne)}, span{negBig(half), subBig(sp.hi, mod)})
		}
	}
	return normSpans(out)
}

// viewBounds returns the least and greatest integers of the non-empty s
// under the given signedness.
func (s set) viewBounds(signed bool) (lo, hi *big.Int) {
	v := s.view(signed)
	return v[0].lo, v[len(v)-1].hi
}

// fromView builds the set of integers of type t given as spans read under
// the given signedness. The spans must be representable.
func fromView(t Type, signed bool, spans ...span) set {
	mod := pow2(t.Size)
	var out []span
	for _, sp := range spans {
		switch {
		case !signed || sp.lo.Sign() >= 0:
			out = append(out, sp)
		case sp.hi.Sign() < 0:
			out = append(out, span{addBig(sp.lo, mod), addBig(sp.hi, mod)})
		default:
			out = append(out, span{addBig(sp.lo, mod), subBig(mod, bigOne)}, span{new(big.Int), sp.hi})
		}
	}
	return set{typ: t, spans: normSpans(out)}
}

// wrapSet returns the integers of [lo, hi] reduced modulo 2^size.
func wrapSet(t Type, lo, hi *big.Int) set {
	mod := pow2(t.Size)
	if subBig(hi, lo).Cmp(subBig(mod, bigOne)) >= 0 {
		return fullSet(t)
	}
	l := new(big.Int).Mod(lo, mod)
	h := new(big.Int).Mod(hi, mod)
	if l.Cmp(h) <= 0 {
		return set{typ: t, spans: []span{{l, h}}}
	}
	return set{typ: t, spans: normSpans([]span{{new(big.Int), h}, {l, subBig(mod, bigOne)}})}
}

// fbounds returns the least and greatest non-NaN floats of s.
func (s set) fbounds() (lo, hi arith.Float, ok bool) {
	if len(s.ranges) == 0 {
		return arith.Float{}, arith.Float{}, false
	}
	return s.ranges[0].lo, s.ranges[len(s.ranges)-1].hi, true
}

// points returns the elements of s when there are at most limit of them.
func (s set) points(limit int) ([]arith.Scalar, bool) {
	var out []arith.Scalar
	if s.typ.Float {
		for _, r := range s.ranges {
			if !r.lo.Equal(r.hi) {
				return nil, false
			}
			out = append(out, r.lo)
		}
		if s.qnan {
			out = append(out, arith.QNaN(s.typ.Format))
		}
		if s.snan {
			out = append(out, arith.SNaN(s.typ.Format))
		}
		return out, len(out) <= limit
	}
	count := new(big.Int)
	for _, sp := range s.spans {
		count.Add(count, subBig(sp.hi, sp.lo))
		count.Add(count, bigOne)
		if count.Cmp(big.NewInt(int64(limit))) > 0 {
			return nil, false
		}
	}
	for _, sp := range s.spans {
		for x := sp.lo; x.Cmp(sp.hi) <= 0; x = addBig(x, bigOne) {
			out = append(out, arith.FromBig(x, s.typ.Size))
		}
	}
	return out, true
}

// single returns the only element of s.
func (s set) single() (arith.Scalar, bool) {
	pts, ok := s.points(1)
	if !ok || len(pts) != 1 {
		return nil, false
	}
	return pts[0], true
}

func (s set) addScalar(x arith.Scalar) set { return s.union(pointSet(x)) }

// zeroness reports whether s has a zero element and a non-zero element.
// NaNs are non-zero.
func (s set) zeroness() (zero, nonzero bool) {
	if s.typ.Float {
		nonzero = s.hasNaN()
		for _, r := range s.ranges {
			if !r.lo.IsZero() || !r.hi.IsZero() {
				nonzero = true
			}
			if r.lo.TotalCmp(arith.Zero(s.typ.Format, false)) <= 0 && r.hi.TotalCmp(arith.Zero(s.typ.Format, true)) >= 0 {
				zero = true
			}
		}
		return zero, nonzero
	}
	for _, sp := range s.spans {
		if sp.lo.Sign() == 0 {
			zero = true
		}
		if sp.hi.Sign() != 0 {
			nonzero = true
		}
	}
	return zero, nonzero
}
