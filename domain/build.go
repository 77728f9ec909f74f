package domain

import (
	"fmt"
	"math/big"

	"honnef.co/go/absval/arith"
)

// concretize returns the set of values v stands for.
func (e *Env) concretize(v Value) set {
	e.enter()
	defer e.leave()
	switch v := v.(type) {
	case *Constant:
		return pointSet(v.Scalar)
	case *Top:
		return fullSet(v.typ)
	case *Interval:
		return e.intervalSet(v)
	case *Disjunction:
		parts := make([]set, 0, v.CountAtomic())
		for _, c := range v.exacts {
			parts = append(parts, pointSet(c.Scalar))
		}
		for _, m := range v.mays {
			parts = append(parts, e.concretize(m))
		}
		return unionAll(v.typ, parts...)
	case *Guard:
		// The condition is not resolved statically: a guard stands for the
		// union of its branches.
		s := emptySet(v.Type())
		if v.Then != nil {
			s = s.union(e.concretize(v.Then))
		}
		if v.Else != nil {
			s = s.union(e.concretize(v.Else))
		}
		return s
	case *Formal:
		return e.evalFormal(v)
	case *Lattice:
		return e.concretize(v.Domain)
	case *Shared:
		return e.concretize(v.cell.v)
	default:
		panic(fmt.Sprintf("domain: unexpected value %T", v))
	}
}

func (e *Env) intervalSet(iv *Interval) set {
	t := iv.Type()
	lo, hi := e.concretize(iv.Min), e.concretize(iv.Max)
	if t.Float {
		l, _, ok1 := lo.fbounds()
		_, h, ok2 := hi.fbounds()
		if !ok1 || !ok2 || l.TotalCmp(h) > 0 {
			return emptySet(t)
		}
		return set{typ: t, ranges: []frange{{l, h}}}
	}
	if lo.isEmpty() || hi.isEmpty() {
		return emptySet(t)
	}
	l, _ := lo.viewBounds(iv.Signed)
	_, h := hi.viewBounds(iv.Signed)
	if l.Cmp(h) > 0 {
		return emptySet(t)
	}
	return fromView(t, iv.Signed, span{l, h})
}

func (e *Env) evalFormal(f *Formal) set {
	args := make([]set, len(f.Args))
	for i, a := range f.Args {
		args[i] = e.concretize(a)
	}
	r, ok := e.child().transfer(f.Op, args)
	if !ok {
		return fullSet(f.typ)
	}
	return r
}

// build returns a value standing for s, shaped by the creation mode and the
// disjunction threshold. It returns nil for the empty set.
func (e *Env) build(s set) Value {
	if s.isEmpty() {
		return nil
	}
	if s.isFull() {
		return NewTop(s.typ)
	}
	switch e.mode {
	case CreateInterval:
		return hullValue(s)
	case CreateShared:
		v := hullValue(s)
		if _, ok := v.(*Constant); ok {
			return v
		}
		return NewShared(v)
	}
	elems := elements(s)
	if len(elems) > e.Policy.DisjunctionThreshold {
		return hullValue(s)
	}
	return joinElements(s.typ, elems)
}

// exactValue returns a value standing for exactly s, however many elements
// that takes.
func exactValue(s set) Value {
	if s.isEmpty() {
		return nil
	}
	if s.isFull() {
		return NewTop(s.typ)
	}
	return joinElements(s.typ, elements(s))
}

func joinElements(t Type, elems []Value) Value {
	if len(elems) == 1 {
		return elems[0]
	}
	return NewDisjunction(t, elems...)
}

func intConstant(t Type, x *big.Int) *Constant {
	return &Constant{Scalar: arith.FromBig(x, t.Size)}
}

// intRange returns the value for the integers [lo, hi] read under the given
// signedness.
func intRange(t Type, signed bool, lo, hi *big.Int) Value {
	if lo.Cmp(hi) == 0 {
		return intConstant(t, lo)
	}
	return &Interval{Min: intConstant(t, lo), Max: intConstant(t, hi), Signed: signed}
}

func floatRange(r frange) Value {
	if r.lo.Equal(r.hi) {
		return &Constant{Scalar: r.lo}
	}
	return &Interval{Min: &Constant{Scalar: r.lo}, Max: &Constant{Scalar: r.hi}}
}

func nanElements(s set) []Value {
	var out []Value
	if s.qnan {
		out = append(out, &Constant{Scalar: arith.QNaN(s.typ.Format)})
	}
	if s.snan {
		out = append(out, &Constant{Scalar: arith.SNaN(s.typ.Format)})
	}
	return out
}

// elements returns one value per piece of s. Spans that wrap around from the
// largest unsigned value to zero are joined into one signed interval.
func elements(s set) []Value {
	var out []Value
	if s.typ.Float {
		for _, r := range s.ranges {
			out = append(out, floatRange(r))
		}
		return append(out, nanElements(s)...)
	}
	spans := s.spans
	n := len(spans)
	if n >= 2 {
		half := pow2(s.typ.Size - 1)
		_, max := arith.Bounds(s.typ.Size, false)
		first, last := spans[0], spans[n-1]
		if first.lo.Sign() == 0 && last.hi.Cmp(max) == 0 && first.hi.Cmp(half) < 0 && last.lo.Cmp(half) >= 0 {
			lo := subBig(last.lo, pow2(s.typ.Size))
			out = append(out, intRange(s.typ, true, lo, first.hi))
			spans = spans[1 : n-1]
		}
	}
	for _, sp := range spans {
		out = append(out, intRange(s.typ, false, sp.lo, sp.hi))
	}
	return out
}

// hullValue returns the convex hull of s. For integers, the narrower of the
// signed and unsigned hulls is used. NaNs stay separate elements.
func hullValue(s set) Value {
	if s.typ.Float {
		var out []Value
		if lo, hi, ok := s.fbounds(); ok {
			out = append(out, floatRange(frange{lo, hi}))
		}
		return joinElements(s.typ, append(out, nanElements(s)...))
	}
	ulo, uhi := s.viewBounds(false)
	slo, shi := s.viewBounds(true)
	uw, sw := subBig(uhi, ulo), subBig(shi, slo)
	_, max := arith.Bounds(s.typ.Size, false)
	if uw.Cmp(max) == 0 && sw.Cmp(max) == 0 {
		return NewTop(s.typ)
	}
	if sw.Cmp(uw) < 0 {
		return intRange(s.typ, true, slo, shi)
	}
	return intRange(s.typ, false, ulo, uhi)
}
