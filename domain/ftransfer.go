package domain

import (
	"fmt"
	"math/big"

	"honnef.co/go/absval/arith"
	"honnef.co/go/absval/op"
)

// floatAcc accumulates the pieces of a float transfer. Range transfers
// never claim that every execution fails: their errors are always possible
// ones.
type floatAcc struct {
	e      *Env
	out    set
	errs   arith.ErrorCode
	pieces int
}

// addRange adds [lo, hi]. A range reaching over zero gets both zeros.
func (a *floatAcc) addRange(lo, hi arith.Float) {
	a.pieces++
	f := a.out.typ.Format
	if lo.TotalCmp(arith.Zero(f, false)) <= 0 && hi.TotalCmp(arith.Zero(f, true)) >= 0 {
		lo = fmin(lo, arith.Zero(f, true))
		hi = fmax(hi, arith.Zero(f, false))
	}
	a.out = a.out.union(set{typ: a.out.typ, ranges: []frange{{lo, hi}}})
}

func (a *floatAcc) nan(err bool) {
	a.out.qnan = true
	if err {
		a.errs |= arith.NaN
	}
}

func (a *floatAcc) done() set {
	a.e.account(a.errs, 0, 1)
	return a.out
}

// directed returns a status rounding in the given mode under e's other
// rounding parameters.
func (e *Env) directed(mode arith.RoundingMode) *arith.Status {
	st := &arith.Status{}
	st.Float.RoundingParams = e.Float.RoundingParams
	st.Float.Mode = mode
	return st
}

func hasZero(r frange) bool {
	f := r.lo.Format()
	return r.lo.TotalCmp(arith.Zero(f, false)) <= 0 && r.hi.TotalCmp(arith.Zero(f, true)) >= 0
}

func hasNonZero(r frange) bool { return !r.lo.IsZero() || !r.hi.IsZero() }

func hasPosInf(r frange) bool { return r.hi.IsInf() && !r.hi.Signbit() }
func hasNegInf(r frange) bool { return r.lo.IsInf() && r.lo.Signbit() }
func hasInf(r frange) bool    { return hasPosInf(r) || hasNegInf(r) }

// invalidPossible reports whether some operands of the ranges make o produce
// a NaN out of non-NaN operands.
func invalidPossible(k op.Kind, x, y frange) bool {
	switch k {
	case op.FloatPlus:
		return hasPosInf(x) && hasNegInf(y) || hasNegInf(x) && hasPosInf(y)
	case op.FloatMinus:
		return hasPosInf(x) && hasPosInf(y) || hasNegInf(x) && hasNegInf(y)
	case op.FloatTimes:
		return hasZero(x) && hasInf(y) || hasInf(x) && hasZero(y)
	case op.FloatDivide:
		return hasZero(x) && hasZero(y) || hasInf(x) && hasInf(y)
	}
	return false
}

func floatBinary(k op.Kind) func(x, y arith.Float, st *arith.Status) arith.Float {
	switch k {
	case op.FloatPlus:
		return arith.Float.Add
	case op.FloatMinus:
		return arith.Float.Sub
	case op.FloatTimes:
		return arith.Float.Mul
	case op.FloatDivide:
		return arith.Float.Quo
	}
	panic(fmt.Sprintf("domain: %s is not an arithmetic operation", k))
}

// binary adds the image of x and y under one of the four arithmetic
// operations.
func (a *floatAcc) binary(k op.Kind, x, y set) {
	if x.hasNaN() || y.hasNaN() {
		a.nan(x.snan || y.snan)
	}
	for _, xr := range x.ranges {
		for _, yr := range y.ranges {
			a.rangeOp(k, xr, yr)
		}
	}
}

func (a *floatAcc) rangeOp(k op.Kind, xr, yr frange) {
	f := xr.lo.Format()
	if invalidPossible(k, xr, yr) {
		a.nan(true)
	}
	if k == op.FloatDivide && hasZero(yr) {
		if hasNonZero(xr) {
			a.errs |= arith.DivisionByZero
		}
		a.addRange(arith.Inf(f, true), arith.Inf(f, false))
		return
	}
	fn := floatBinary(k)
	corners := [4][2]arith.Float{{xr.lo, yr.lo}, {xr.lo, yr.hi}, {xr.hi, yr.lo}, {xr.hi, yr.hi}}
	var lo, hi arith.Float
	have := false
	for _, c := range corners {
		st := a.e.directed(a.e.Float.Mode)
		fn(c[0], c[1], st)
		a.errs |= st.Errors &^ arith.NaN
		a.e.Float.Flags |= st.Float.Flags
		d := fn(c[0], c[1], a.e.directed(arith.RoundDownward))
		u := fn(c[0], c[1], a.e.directed(arith.RoundUpward))
		if d.IsNaN() || u.IsNaN() {
			continue
		}
		if !have {
			lo, hi, have = d, u, true
			continue
		}
		lo, hi = fmin(lo, d), fmax(hi, u)
	}
	if !have {
		a.pieces++
		return
	}
	if k == op.FloatTimes || k == op.FloatDivide {
		// Products and quotients inside the box may land among the
		// subnormals even when no corner does.
		tiny := arith.MinNormal(f)
		if lo.TotalCmp(tiny) < 0 && hi.TotalCmp(tiny.Neg()) > 0 && !(lo.IsZero() && hi.IsZero()) {
			if hi.TotalCmp(arith.Zero(f, false)) > 0 {
				a.errs |= arith.PositiveUnderflow
			}
			if lo.TotalCmp(arith.Zero(f, true)) < 0 {
				a.errs |= arith.NegativeUnderflow
			}
		}
	}
	a.addRange(lo, hi)
}

func (s set) fneg() set {
	out := s
	out.ranges = make([]frange, len(s.ranges))
	for i, r := range s.ranges {
		out.ranges[len(s.ranges)-1-i] = frange{r.hi.Neg(), r.lo.Neg()}
	}
	return out
}

func fabs(r frange) frange {
	f := r.lo.Format()
	switch {
	case r.lo.TotalCmp(arith.Zero(f, false)) >= 0:
		return r
	case r.hi.TotalCmp(arith.Zero(f, true)) <= 0:
		return frange{r.hi.Neg(), r.lo.Neg()}
	}
	return frange{arith.Zero(f, false), fmax(r.lo.Neg(), r.hi)}
}

// floatTransfer computes float operations, and conversions between floats
// and integers, on ranges.
func (e *Env) floatTransfer(o op.Operation, rt Type, args []set) set {
	x := args[0]
	switch o.Kind {
	case op.FloatCastIntSigned, op.FloatCastIntUnsigned:
		a := &intAcc{e: e, out: emptySet(rt)}
		a.fromFloat(o.IsSigned(), x)
		return a.done()
	case op.FloatIsNaN, op.FloatIsQNaN, op.FloatIsSNaN, op.FloatIsInftyExponent,
		op.FloatIsZeroExponent, op.FloatIsPositive, op.FloatIsNegative:
		a := &intAcc{e: e, out: emptySet(rt)}
		a.bools(classify(o.Kind, x))
		return a.done()
	case op.FloatCompareLess, op.FloatCompareLessOrEqual, op.FloatCompareEqual,
		op.FloatCompareDifferent, op.FloatCompareGreaterOrEqual, op.FloatCompareGreater:
		a := &intAcc{e: e, out: emptySet(rt)}
		canTrue, canFalse, invalid := compareRanges(o.Kind, x, args[1])
		a.bools(canTrue, canFalse)
		if invalid {
			a.errs |= arith.NaN
			a.pieces++
		}
		return a.done()
	}

	a := &floatAcc{e: e, out: emptySet(rt)}
	switch o.Kind {
	case op.IntCastFloatSigned, op.IntCastFloatUnsigned:
		signed := o.IsSigned()
		f := rt.Format
		for _, s := range x.view(signed) {
			for _, b := range []*big.Int{s.lo, s.hi} {
				st := e.directed(e.Float.Mode)
				arith.IntToFloat(arith.FromBig(b, x.typ.Size), signed, f, st)
				a.errs |= st.Errors
			}
			lo := arith.IntToFloat(arith.FromBig(s.lo, x.typ.Size), signed, f, e.directed(arith.RoundDownward))
			hi := arith.IntToFloat(arith.FromBig(s.hi, x.typ.Size), signed, f, e.directed(arith.RoundUpward))
			a.addRange(lo, hi)
		}
	case op.FloatCastFloat:
		f := rt.Format
		if x.hasNaN() {
			a.nan(x.snan)
		}
		for _, r := range x.ranges {
			for _, b := range []arith.Float{r.lo, r.hi} {
				st := e.directed(e.Float.Mode)
				b.Convert(f, st)
				a.errs |= st.Errors
			}
			a.addRange(r.lo.Convert(f, e.directed(arith.RoundDownward)), r.hi.Convert(f, e.directed(arith.RoundUpward)))
		}
	case op.FloatOpposite:
		a.out = x.fneg()
		a.pieces++
	case op.FloatAbs:
		a.out.qnan, a.out.snan = x.qnan, x.snan
		for _, r := range x.ranges {
			r = fabs(r)
			a.addRange(r.lo, r.hi)
		}
	case op.FloatPlus, op.FloatMinus, op.FloatTimes, op.FloatDivide:
		a.binary(o.Kind, x, args[1])
	case op.FloatMin, op.FloatMax:
		y := args[1]
		for _, xr := range x.ranges {
			for _, yr := range y.ranges {
				if o.Kind == op.FloatMin {
					a.addRange(fmin(xr.lo, yr.lo), fmin(xr.hi, yr.hi))
				} else {
					a.addRange(fmax(xr.lo, yr.lo), fmax(xr.hi, yr.hi))
				}
			}
		}
		// A NaN operand yields the other operand.
		if y.hasNaN() {
			a.out = a.out.union(x.withoutNaN())
		}
		if x.hasNaN() {
			a.out = a.out.union(y.withoutNaN())
		}
		if x.hasNaN() && y.hasNaN() {
			a.nan(false)
		}
		if x.snan || y.snan {
			a.errs |= arith.NaN
		}
	case op.FloatMultAdd, op.FloatMultSub, op.FloatNegMultAdd, op.FloatNegMultSub:
		y, z := args[1], args[2]
		if o.Kind == op.FloatNegMultAdd || o.Kind == op.FloatNegMultSub {
			x = x.fneg()
		}
		if o.Kind == op.FloatMultSub || o.Kind == op.FloatNegMultSub {
			z = z.fneg()
		}
		p := &floatAcc{e: e, out: emptySet(rt)}
		p.binary(op.FloatTimes, x, y)
		a.errs |= p.errs
		a.binary(op.FloatPlus, p.out, z)
	default:
		panic(fmt.Sprintf("domain: no range transfer for %s", o))
	}
	return a.done()
}

// classify reports whether a classification can hold and can fail on x.
func classify(k op.Kind, x set) (canTrue, canFalse bool) {
	f := x.typ.Format
	pz, nz := arith.Zero(f, false), arith.Zero(f, true)
	tiny := arith.MinNormal(f)
	nonNaN := len(x.ranges) > 0
	switch k {
	case op.FloatIsNaN:
		return x.hasNaN(), nonNaN
	case op.FloatIsQNaN:
		return x.qnan, nonNaN || x.snan
	case op.FloatIsSNaN:
		return x.snan, nonNaN || x.qnan
	}
	canFalse = k != op.FloatIsInftyExponent && x.hasNaN()
	canTrue = k == op.FloatIsInftyExponent && x.hasNaN()
	for _, r := range x.ranges {
		switch k {
		case op.FloatIsInftyExponent:
			canTrue = canTrue || r.lo.IsInf() || r.hi.IsInf()
			canFalse = canFalse || !(r.lo.Equal(r.hi) && r.lo.IsInf())
		case op.FloatIsZeroExponent:
			canTrue = canTrue || r.lo.TotalCmp(tiny) < 0 && r.hi.TotalCmp(tiny.Neg()) > 0
			canFalse = canFalse || r.hi.TotalCmp(tiny) >= 0 || r.lo.TotalCmp(tiny.Neg()) <= 0
		case op.FloatIsPositive:
			canTrue = canTrue || r.hi.TotalCmp(pz) >= 0
			canFalse = canFalse || r.lo.TotalCmp(nz) <= 0
		case op.FloatIsNegative:
			canTrue = canTrue || r.lo.TotalCmp(nz) <= 0
			canFalse = canFalse || r.hi.TotalCmp(pz) >= 0
		}
	}
	return canTrue, canFalse
}

// compareRanges reports whether a comparison of x and y can hold, can fail,
// and can raise the invalid flag.
func compareRanges(k op.Kind, x, y set) (canTrue, canFalse, invalid bool) {
	nan := x.hasNaN() || y.hasNaN()
	equality := k == op.FloatCompareEqual || k == op.FloatCompareDifferent
	invalid = nan && !equality || x.snan || y.snan
	if nan {
		if k == op.FloatCompareDifferent {
			canTrue = true
		} else {
			canFalse = true
		}
	}
	xl, xh, xok := x.fbounds()
	yl, yh, yok := y.fbounds()
	if !xok || !yok {
		return canTrue, canFalse, invalid
	}
	c := func(p, q arith.Float) int {
		r, _ := p.Cmp(q)
		return r
	}
	var t, f bool
	switch k {
	case op.FloatCompareLess:
		t, f = c(xl, yh) < 0, c(xh, yl) >= 0
	case op.FloatCompareLessOrEqual:
		t, f = c(xl, yh) <= 0, c(xh, yl) > 0
	case op.FloatCompareGreater:
		t, f = c(xh, yl) > 0, c(xl, yh) <= 0
	case op.FloatCompareGreaterOrEqual:
		t, f = c(xh, yl) >= 0, c(xl, yh) < 0
	default:
		overlap := c(xl, yh) <= 0 && c(yl, xh) <= 0
		same := c(xl, xh) == 0 && c(yl, yh) == 0 && c(xl, yl) == 0
		t, f = overlap, !same
		if k == op.FloatCompareDifferent {
			t, f = f, t
		}
	}
	return canTrue || t, canFalse || f, invalid
}

// fromFloat adds the truncations of the floats of x. Out of range values
// saturate with an overflow; NaNs yield zero with NaN.
func (a *intAcc) fromFloat(signed bool, x set) {
	t := a.out.typ
	L, H := arith.Bounds(t.Size, signed)
	trunc := func(v arith.Float) *big.Int {
		switch {
		case v.IsInf() && v.Signbit():
			return subBig(L, bigOne)
		case v.IsInf():
			return addBig(H, bigOne)
		}
		r, _ := v.Big().Int(nil)
		return r
	}
	for _, r := range x.ranges {
		lo, hi := trunc(r.lo), trunc(r.hi)
		var err arith.ErrorCode
		if hi.Cmp(H) > 0 {
			err |= arith.PositiveOverflow
		}
		if lo.Cmp(L) < 0 {
			err |= arith.NegativeOverflow
		}
		a.pieces++
		a.errs |= err
		if hi.Cmp(L) < 0 || lo.Cmp(H) > 0 {
			a.failing++
			if !a.e.StopOnError {
				b := H
				if hi.Cmp(L) < 0 {
					b = L
				}
				a.out = a.out.union(fromView(t, signed, span{b, b}))
			}
			continue
		}
		a.out = a.out.union(fromView(t, signed, span{maxBig(lo, L), minBig(hi, H)}))
	}
	if x.hasNaN() {
		a.fail(arith.NaN, pointSet(arith.NewBitVec(t.Size)))
	}
}
