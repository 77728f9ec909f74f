package domain

import (
	"fmt"
	"math/big"

	"honnef.co/go/absval/arith"
	"honnef.co/go/absval/op"
)

// resultType returns the type of o applied to operands of the given types.
// It panics when the operands don't fit o.
func resultType(o op.Operation, args []Type) Type {
	checkOperands(o, args)
	switch o.Kind {
	case op.BitCastMultiBit, op.IntExtendZero, op.IntExtendSign, op.FloatCastIntSigned, op.FloatCastIntUnsigned:
		return IntType(o.NewSize)
	case op.IntReduce:
		return IntType(o.High - o.Low + 1)
	case op.IntConcat:
		return IntType(args[0].Size + args[1].Size)
	case op.IntCastFloatSigned, op.IntCastFloatUnsigned, op.FloatCastFloat:
		return FloatType(arith.OpFormat(o))
	}
	if o.Kind.Result() == op.Bit {
		return BitType
	}
	return args[0]
}

func checkOperands(o op.Operation, args []Type) {
	bad := func() {
		panic(fmt.Sprintf("domain: %s applied to %v", o, args))
	}
	if len(args) != o.Arity() {
		bad()
	}
	t := args[0]
	switch o.Class() {
	case op.Bit:
		for _, a := range args {
			if a != BitType {
				bad()
			}
		}
	case op.MultiBit:
		for _, a := range args {
			if a.Float {
				bad()
			}
		}
		switch o.Kind {
		case op.IntLeftShift, op.IntLogicalRightShift, op.IntArithmeticRightShift,
			op.IntLeftRotate, op.IntRightRotate, op.IntConcat:
		case op.IntBitSet:
			if o.High >= t.Size || args[1].Size != o.High-o.Low+1 {
				bad()
			}
		default:
			for _, a := range args[1:] {
				if a != t {
					bad()
				}
			}
		}
		switch o.Kind {
		case op.IntExtendZero, op.IntExtendSign:
			if o.NewSize < t.Size {
				bad()
			}
		case op.IntReduce:
			if o.High >= t.Size {
				bad()
			}
		case op.IntCastShiftBit:
			if o.Low >= t.Size {
				bad()
			}
		}
	case op.MultiFloat:
		for _, a := range args {
			if !a.Float || a != t {
				bad()
			}
		}
	}
}

// transfer computes the image of args under o. It reports false when o has
// no transfer function. Errors and the verdict are recorded in e.
func (e *Env) transfer(o op.Operation, args []set) (set, bool) {
	if !o.Supported() {
		return set{}, false
	}
	types := make([]Type, len(args))
	for i, a := range args {
		types[i] = a.typ
	}
	rt := resultType(o, types)
	for _, a := range args {
		if a.isEmpty() {
			return emptySet(rt), true
		}
	}
	if combos, ok := combinations(args, e.Policy.DisjunctionThreshold); ok {
		return e.pointwise(o, rt, combos), true
	}
	switch {
	case o.Class() == op.MultiFloat, o.Kind == op.IntCastFloatSigned, o.Kind == op.IntCastFloatUnsigned:
		return e.floatTransfer(o, rt, args), true
	default:
		return e.intTransfer(o, rt, args), true
	}
}

// combinations returns every tuple of operands when there are at most limit
// of them.
func combinations(args []set, limit int) ([][]arith.Scalar, bool) {
	combos := [][]arith.Scalar{nil}
	for _, a := range args {
		pts, ok := a.points(limit)
		if !ok || len(combos)*len(pts) > limit {
			return nil, false
		}
		next := make([][]arith.Scalar, 0, len(combos)*len(pts))
		for _, c := range combos {
			for _, p := range pts {
				t := make([]arith.Scalar, len(c), len(c)+1)
				copy(t, c)
				next = append(next, append(t, p))
			}
		}
		combos = next
	}
	return combos, true
}

// pointwise evaluates o exactly on every tuple of operands.
func (e *Env) pointwise(o op.Operation, rt Type, combos [][]arith.Scalar) set {
	out := emptySet(rt)
	var errs arith.ErrorCode
	failing := 0
	for _, args := range combos {
		st := arith.Status{StopOnError: e.StopOnError}
		st.Float.RoundingParams = e.Float.RoundingParams
		r, _ := arith.Apply(o, args, &st)
		e.Float.Flags |= st.Float.Flags
		if st.Errors != 0 {
			errs |= st.Errors
			failing++
		}
		if st.Empty {
			continue
		}
		out = out.addScalar(r)
	}
	e.account(errs, failing, len(combos))
	return out
}

// intAcc accumulates the pieces of an integer transfer.
type intAcc struct {
	e       *Env
	out     set
	errs    arith.ErrorCode
	pieces  int
	failing int
}

func (a *intAcc) add(s set) {
	a.pieces++
	a.out = a.out.union(s)
}

// exact adds [lo, hi], read under the given signedness, which is known to be
// representable.
func (a *intAcc) exact(signed bool, lo, hi *big.Int) {
	a.add(fromView(a.out.typ, signed, span{lo, hi}))
}

// wrap adds [lo, hi] modulo 2^size, without error.
func (a *intAcc) wrap(lo, hi *big.Int) {
	a.add(wrapSet(a.out.typ, lo, hi))
}

func (a *intAcc) bools(canTrue, canFalse bool) {
	if canTrue {
		a.add(pointSet(arith.Bool(true)))
	}
	if canFalse {
		a.add(pointSet(arith.Bool(false)))
	}
}

// fit adds the mathematical results [lo, hi] under the given signedness.
// Results out of range raise overflows; they are dropped under StopOnError
// and wrapped otherwise.
func (a *intAcc) fit(signed bool, lo, hi *big.Int) {
	t := a.out.typ
	L, H := arith.Bounds(t.Size, signed)
	var err arith.ErrorCode
	if hi.Cmp(H) > 0 {
		err |= arith.PositiveOverflow
	}
	if lo.Cmp(L) < 0 {
		err |= arith.NegativeOverflow
	}
	if err == 0 {
		a.exact(signed, lo, hi)
		return
	}
	a.pieces++
	a.errs |= err
	if hi.Cmp(L) < 0 || lo.Cmp(H) > 0 {
		a.failing++
	}
	if a.e.StopOnError {
		clo, chi := maxBig(lo, L), minBig(hi, H)
		if clo.Cmp(chi) <= 0 {
			a.out = a.out.union(fromView(t, signed, span{clo, chi}))
		}
		return
	}
	a.out = a.out.union(wrapSet(t, lo, hi))
}

// fail adds a piece on which every execution raises err and yields s.
func (a *intAcc) fail(err arith.ErrorCode, s set) {
	a.pieces++
	a.failing++
	a.errs |= err
	if !a.e.StopOnError {
		a.out = a.out.union(s)
	}
}

func (a *intAcc) done() set {
	a.e.account(a.errs, a.failing, a.pieces)
	return a.out
}

func cornerBounds(f func(x, y *big.Int) *big.Int, x, y span) (lo, hi *big.Int) {
	cs := [4]*big.Int{f(x.lo, y.lo), f(x.lo, y.hi), f(x.hi, y.lo), f(x.hi, y.hi)}
	lo, hi = cs[0], cs[0]
	for _, c := range cs[1:] {
		lo, hi = minBig(lo, c), maxBig(hi, c)
	}
	return lo, hi
}

// ones returns 2^bitlen(x)-1, the smallest all-ones value not below x.
func ones(x *big.Int) *big.Int { return subBig(pow2(x.BitLen()), bigOne) }

func capInt(x *big.Int, n int) uint {
	if x.Cmp(big.NewInt(int64(n))) > 0 {
		return uint(n)
	}
	return uint(x.Int64())
}

// intTransfer computes integer operations on spans. Monotone operations are
// computed bound-wise; the others fall back to coarser bounds or Top.
func (e *Env) intTransfer(o op.Operation, rt Type, args []set) set {
	a := &intAcc{e: e, out: emptySet(rt)}
	x := args[0]
	signed := o.IsSigned()
	pairs := func(f func(xs, ys span)) {
		for _, xs := range x.view(signed) {
			for _, ys := range args[1].view(signed) {
				f(xs, ys)
			}
		}
	}

	switch o.Kind {
	case op.IntPrevSigned, op.IntPrevUnsigned:
		for _, s := range x.view(signed) {
			a.fit(signed, subBig(s.lo, bigOne), subBig(s.hi, bigOne))
		}
	case op.IntNextSigned, op.IntNextUnsigned:
		for _, s := range x.view(signed) {
			a.fit(signed, addBig(s.lo, bigOne), addBig(s.hi, bigOne))
		}
	case op.IntOppositeSigned:
		for _, s := range x.view(true) {
			a.fit(true, negBig(s.hi), negBig(s.lo))
		}
	case op.IntOppositeUnsigned:
		for _, s := range x.spans {
			a.wrap(negBig(s.hi), negBig(s.lo))
		}
	case op.IntBitNegate, op.BitNot:
		_, max := arith.Bounds(x.typ.Size, false)
		for _, s := range x.spans {
			a.exact(false, subBig(max, s.hi), subBig(max, s.lo))
		}
	case op.IntCastBit:
		zero, nonzero := x.zeroness()
		a.bools(nonzero, zero)
	case op.IntCastShiftBit:
		for _, s := range x.spans {
			lo := new(big.Int).Rsh(s.lo, uint(o.Low))
			hi := new(big.Int).Rsh(s.hi, uint(o.Low))
			if lo.Cmp(hi) == 0 {
				a.bools(lo.Bit(0) == 1, lo.Bit(0) == 0)
			} else {
				a.bools(true, true)
			}
		}
	case op.IntExtendZero, op.BitCastMultiBit:
		for _, s := range x.spans {
			a.exact(false, s.lo, s.hi)
		}
	case op.IntExtendSign:
		for _, s := range x.view(true) {
			a.exact(true, s.lo, s.hi)
		}
	case op.IntReduce:
		for _, s := range x.spans {
			a.wrap(new(big.Int).Rsh(s.lo, uint(o.Low)), new(big.Int).Rsh(s.hi, uint(o.Low)))
		}

	case op.IntCompareLessSigned, op.IntCompareLessUnsigned,
		op.IntCompareLessOrEqualSigned, op.IntCompareLessOrEqualUnsigned,
		op.IntCompareGreaterSigned, op.IntCompareGreaterUnsigned,
		op.IntCompareGreaterOrEqualSigned, op.IntCompareGreaterOrEqualUnsigned:
		xl, xh := x.viewBounds(signed)
		yl, yh := args[1].viewBounds(signed)
		var canTrue, canFalse bool
		switch o.Kind {
		case op.IntCompareLessSigned, op.IntCompareLessUnsigned:
			canTrue, canFalse = xl.Cmp(yh) < 0, xh.Cmp(yl) >= 0
		case op.IntCompareLessOrEqualSigned, op.IntCompareLessOrEqualUnsigned:
			canTrue, canFalse = xl.Cmp(yh) <= 0, xh.Cmp(yl) > 0
		case op.IntCompareGreaterSigned, op.IntCompareGreaterUnsigned:
			canTrue, canFalse = xh.Cmp(yl) > 0, xl.Cmp(yh) <= 0
		default:
			canTrue, canFalse = xh.Cmp(yl) >= 0, xl.Cmp(yh) < 0
		}
		a.bools(canTrue, canFalse)
	case op.IntCompareEqual, op.IntCompareDifferent:
		canEqual := !x.intersect(args[1]).isEmpty()
		xp, xok := x.single()
		yp, yok := args[1].single()
		canDiffer := !(xok && yok && scalarEqual(xp, yp))
		if o.Kind == op.IntCompareEqual {
			a.bools(canEqual, canDiffer)
		} else {
			a.bools(canDiffer, canEqual)
		}

	case op.IntMinSigned, op.IntMinUnsigned:
		pairs(func(xs, ys span) { a.exact(signed, minBig(xs.lo, ys.lo), minBig(xs.hi, ys.hi)) })
	case op.IntMaxSigned, op.IntMaxUnsigned:
		pairs(func(xs, ys span) { a.exact(signed, maxBig(xs.lo, ys.lo), maxBig(xs.hi, ys.hi)) })
	case op.IntPlusSigned, op.IntPlusUnsigned:
		pairs(func(xs, ys span) { a.fit(signed, addBig(xs.lo, ys.lo), addBig(xs.hi, ys.hi)) })
	case op.IntMinusSigned, op.IntMinusUnsigned:
		pairs(func(xs, ys span) { a.fit(signed, subBig(xs.lo, ys.hi), subBig(xs.hi, ys.lo)) })
	case op.IntTimesSigned, op.IntTimesUnsigned:
		pairs(func(xs, ys span) {
			lo, hi := mulCorner(xs, ys)
			a.fit(signed, lo, hi)
		})
	case op.IntDivideSigned, op.IntDivideUnsigned, op.IntModuloSigned, op.IntModuloUnsigned:
		rem := o.Kind == op.IntModuloSigned || o.Kind == op.IntModuloUnsigned
		pairs(func(xs, ys span) { a.divide(signed, rem, xs, ys) })

	case op.IntAnd, op.BitAnd:
		pairs(func(xs, ys span) { a.exact(false, new(big.Int), minBig(xs.hi, ys.hi)) })
	case op.IntOr, op.BitOr:
		pairs(func(xs, ys span) { a.exact(false, maxBig(xs.lo, ys.lo), ones(maxBig(xs.hi, ys.hi))) })
	case op.IntXor, op.BitXor:
		pairs(func(xs, ys span) { a.exact(false, new(big.Int), ones(maxBig(xs.hi, ys.hi))) })
	case op.IntLeftShift:
		n := x.typ.Size
		for _, xs := range x.spans {
			for _, ks := range args[1].spans {
				lo := new(big.Int).Lsh(xs.lo, capInt(ks.lo, n))
				hi := new(big.Int).Lsh(xs.hi, capInt(ks.hi, n))
				a.fit(false, lo, hi)
			}
		}
	case op.IntLogicalRightShift:
		n := x.typ.Size
		for _, xs := range x.spans {
			for _, ks := range args[1].spans {
				lo := new(big.Int).Rsh(xs.lo, capInt(ks.hi, n))
				hi := new(big.Int).Rsh(xs.hi, capInt(ks.lo, n))
				a.exact(false, lo, hi)
			}
		}
	case op.IntArithmeticRightShift:
		n := x.typ.Size
		for _, xs := range x.view(true) {
			for _, ks := range args[1].spans {
				lo, hi := cornerBounds(func(v, k *big.Int) *big.Int {
					return new(big.Int).Rsh(v, capInt(k, n-1))
				}, xs, ks)
				a.exact(true, lo, hi)
			}
		}
	case op.IntConcat:
		w := uint(args[1].typ.Size)
		for _, xs := range x.spans {
			for _, ys := range args[1].spans {
				lo := addBig(new(big.Int).Lsh(xs.lo, w), ys.lo)
				hi := addBig(new(big.Int).Lsh(xs.hi, w), ys.hi)
				a.exact(false, lo, hi)
			}
		}
	case op.IntLeftRotate, op.IntRightRotate, op.IntBitSet:
		// XXX rotations of narrow spans could be computed span-wise.
		a.add(fullSet(rt))
	case op.BitImplies:
		xz, xnz := x.zeroness()
		yz, ynz := args[1].zeroness()
		a.bools(xz || ynz, xnz && yz)
	default:
		panic(fmt.Sprintf("domain: no interval transfer for %s", o))
	}
	return a.done()
}

func mulCorner(xs, ys span) (*big.Int, *big.Int) {
	return cornerBounds(func(x, y *big.Int) *big.Int { return new(big.Int).Mul(x, y) }, xs, ys)
}

// divide adds the quotients or remainders of xs by ys. A zero divisor raises
// DivisionByZero and yields zero.
func (a *intAcc) divide(signed, rem bool, xs, ys span) {
	t := a.out.typ
	if ys.lo.Sign() <= 0 && ys.hi.Sign() >= 0 {
		a.fail(arith.DivisionByZero, pointSet(arith.NewBitVec(t.Size)))
	}
	var parts []span
	if ys.lo.Sign() < 0 {
		parts = append(parts, span{ys.lo, minBig(ys.hi, big.NewInt(-1))})
	}
	if ys.hi.Sign() > 0 {
		parts = append(parts, span{maxBig(ys.lo, bigOne), ys.hi})
	}
	for _, p := range parts {
		if !rem {
			lo, hi := cornerBounds(func(x, y *big.Int) *big.Int { return new(big.Int).Quo(x, y) }, xs, p)
			a.fit(signed, lo, hi)
			continue
		}
		// The remainder has the sign of the dividend and a magnitude below
		// that of the divisor.
		m := subBig(maxBig(new(big.Int).Abs(p.lo), new(big.Int).Abs(p.hi)), bigOne)
		least := minBig(new(big.Int).Abs(p.lo), new(big.Int).Abs(p.hi))
		if (xs.lo.Sign() >= 0 && xs.hi.Cmp(least) < 0) || (xs.hi.Sign() <= 0 && negBig(xs.lo).Cmp(least) < 0) {
			a.exact(signed, xs.lo, xs.hi)
			continue
		}
		lo, hi := new(big.Int), new(big.Int)
		if xs.lo.Sign() < 0 {
			lo = maxBig(xs.lo, negBig(m))
		}
		if xs.hi.Sign() > 0 {
			hi = minBig(xs.hi, m)
		}
		a.exact(signed, lo, hi)
	}
}
