package domain

import (
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"honnef.co/go/absval/arith"
	"honnef.co/go/absval/op"
)

// Constraint refines *v, and the extra operands absorbed into env, knowing
// that applying o to them yields a value of result. Refined extra operands
// are taken back from env with TakeFirstArgument and TakeSecondArgument.
//
// When no operands can yield such a value, env is marked empty and the
// operands are left unchanged. Constraint reports false when o has no
// backward transfer function.
//
// A Lattice receiver has its requirement raised to what result needs; env is
// then marked unstable.
func Constraint(v *Value, o op.Operation, result Value, env *ConstraintEnv) bool {
	args := []Value{*v}
	for i := 1; i < o.Arity(); i++ {
		a := env.args[i-1]
		if a == nil {
			panic(fmt.Sprintf("domain: %s: operand %d not absorbed", o, i+1))
		}
		args = append(args, a)
	}
	types := make([]Type, len(args))
	for i, a := range args {
		types[i] = a.Type()
	}
	if rt := resultType(o, types); rt != result.Type() {
		panic(fmt.Sprintf("domain: %s yields %s, constrained to %s", o, rt, result.Type()))
	}
	if !o.Supported() {
		return false
	}
	if ce := env.tracing("constraint"); ce != nil {
		ce.Write(zap.Stringer("op", o), zap.Stringers("operands", args), zap.Stringer("result", result))
	}

	if l, ok := (*v).(*Lattice); ok && l.raise(result) {
		env.MarkUnstable()
	}

	sets := make([]set, len(args))
	for i, a := range args {
		sets[i] = env.concretize(a)
	}
	refined := env.backward(o, sets, env.concretize(result))
	for _, s := range refined {
		if s.isEmpty() {
			env.Empty = true
			return true
		}
	}
	*v = env.refine(*v, refined[0])
	for i := 1; i < len(args); i++ {
		env.args[i-1] = env.refine(args[i], refined[i])
	}
	if ce := env.tracing("constrained"); ce != nil {
		ce.Write(zap.Stringer("op", o), zap.Stringer("value", *v), zap.Bool("unstable", env.IsUnstable()))
	}
	return true
}

// backward returns, for each operand, the subset of args that can make o
// yield a value of r.
func (e *Env) backward(o op.Operation, args []set, r set) []set {
	out := make([]set, len(args))
	copy(out, args)
	for _, a := range args {
		if a.isEmpty() {
			return out
		}
	}
	if r.isEmpty() {
		for i := range out {
			out[i] = emptySet(args[i].typ)
		}
		return out
	}
	if combos, ok := combinations(args, e.Policy.DisjunctionThreshold); ok {
		return e.backwardPointwise(o, args, combos, r)
	}

	x := args[0]
	var y set
	if len(args) > 1 {
		y = args[1]
	}
	keep := func(i int, s set) { out[i] = out[i].intersect(s) }
	signed := o.IsSigned()

	switch o.Kind {
	case op.IntNextSigned, op.IntNextUnsigned:
		keep(0, shiftSet(r, big.NewInt(-1)))
	case op.IntPrevSigned, op.IntPrevUnsigned:
		keep(0, shiftSet(r, bigOne))
	case op.IntOppositeSigned, op.IntOppositeUnsigned:
		keep(0, negSet(r))
	case op.IntBitNegate, op.BitNot:
		keep(0, notSet(r))
	case op.IntExtendZero, op.BitCastMultiBit:
		_, max := arith.Bounds(x.typ.Size, false)
		keep(0, truncSet(x.typ, r.view(false), new(big.Int), max, false))
	case op.IntExtendSign:
		lo, hi := arith.Bounds(x.typ.Size, true)
		keep(0, truncSet(x.typ, r.view(true), lo, hi, true))
	case op.IntCastBit:
		if b, ok := boolOf(r); ok {
			zero := pointSet(arith.NewBitVec(x.typ.Size))
			if b {
				keep(0, zero.complement())
			} else {
				keep(0, zero)
			}
		}

	case op.IntPlusSigned, op.IntPlusUnsigned:
		keep(0, spanPairs(x.typ, r, y, func(rs, ys span) set { return wrapSet(x.typ, subBig(rs.lo, ys.hi), subBig(rs.hi, ys.lo)) }))
		keep(1, spanPairs(x.typ, r, x, func(rs, xs span) set { return wrapSet(x.typ, subBig(rs.lo, xs.hi), subBig(rs.hi, xs.lo)) }))
	case op.IntMinusSigned, op.IntMinusUnsigned:
		keep(0, spanPairs(x.typ, r, y, func(rs, ys span) set { return wrapSet(x.typ, addBig(rs.lo, ys.lo), addBig(rs.hi, ys.hi)) }))
		keep(1, spanPairs(x.typ, x, r, func(xs, rs span) set { return wrapSet(x.typ, subBig(xs.lo, rs.hi), subBig(xs.hi, rs.lo)) }))
	case op.IntXor, op.BitXor:
		if s, ok := xorSet(r, y, e.Policy.DisjunctionThreshold); ok {
			keep(0, s)
		}
		if s, ok := xorSet(r, x, e.Policy.DisjunctionThreshold); ok {
			keep(1, s)
		}
	case op.BitAnd:
		if b, ok := boolOf(r); ok && b {
			keep(0, pointSet(arith.Bool(true)))
			keep(1, pointSet(arith.Bool(true)))
		}
	case op.BitOr:
		if b, ok := boolOf(r); ok && !b {
			keep(0, pointSet(arith.Bool(false)))
			keep(1, pointSet(arith.Bool(false)))
		}

	case op.IntCompareLessSigned, op.IntCompareLessUnsigned,
		op.IntCompareLessOrEqualSigned, op.IntCompareLessOrEqualUnsigned,
		op.IntCompareGreaterSigned, op.IntCompareGreaterUnsigned,
		op.IntCompareGreaterOrEqualSigned, op.IntCompareGreaterOrEqualUnsigned:
		b, ok := boolOf(r)
		if !ok {
			break
		}
		strict, swap := orderOf(o.Kind, b)
		if swap {
			ny, nx := intBelow(y, x, strict, signed)
			keep(0, nx)
			keep(1, ny)
		} else {
			nx, ny := intBelow(x, y, strict, signed)
			keep(0, nx)
			keep(1, ny)
		}
	case op.IntCompareEqual, op.IntCompareDifferent:
		b, ok := boolOf(r)
		if !ok {
			break
		}
		if o.Kind == op.IntCompareDifferent {
			b = !b
		}
		if b {
			m := x.intersect(y)
			keep(0, m)
			keep(1, m)
			break
		}
		if p, ok := y.single(); ok {
			keep(0, x.withoutScalar(p))
		}
		if p, ok := x.single(); ok {
			keep(1, y.withoutScalar(p))
		}

	case op.FloatOpposite:
		keep(0, r.fneg())
	case op.FloatAbs:
		keep(0, r.union(r.fneg()))
	case op.FloatIsNaN, op.FloatIsQNaN, op.FloatIsSNaN, op.FloatIsInftyExponent,
		op.FloatIsPositive, op.FloatIsNegative:
		if b, ok := boolOf(r); ok {
			keep(0, classSet(o.Kind, x.typ, b))
		}
	case op.FloatCompareLess, op.FloatCompareLessOrEqual,
		op.FloatCompareGreater, op.FloatCompareGreaterOrEqual:
		b, ok := boolOf(r)
		if !ok {
			break
		}
		if !b && (x.hasNaN() || y.hasNaN()) {
			// Unordered operands make the comparison false whatever the
			// other one is.
			break
		}
		strict, swap := orderOf(o.Kind, b)
		if swap {
			ny, nx := floatBelow(y, x, strict)
			keep(0, nx)
			keep(1, ny)
		} else {
			nx, ny := floatBelow(x, y, strict)
			keep(0, nx)
			keep(1, ny)
		}
	case op.FloatCompareEqual, op.FloatCompareDifferent:
		b, ok := boolOf(r)
		if !ok {
			break
		}
		if o.Kind == op.FloatCompareDifferent {
			b = !b
		}
		if b {
			keep(0, zeroClosure(y).withoutNaN())
			keep(1, zeroClosure(x).withoutNaN())
		}
	}
	return out
}

// backwardPointwise keeps the operand tuples whose image lies in r.
func (e *Env) backwardPointwise(o op.Operation, args []set, combos [][]arith.Scalar, r set) []set {
	out := make([]set, len(args))
	for i, a := range args {
		out[i] = emptySet(a.typ)
	}
	for _, c := range combos {
		st := arith.Status{StopOnError: e.StopOnError}
		st.Float.RoundingParams = e.Float.RoundingParams
		v, _ := arith.Apply(o, c, &st)
		if st.Empty || !r.containsScalar(v) {
			continue
		}
		for i, p := range c {
			out[i] = out[i].addScalar(p)
		}
	}
	return out
}

func boolOf(r set) (bool, bool) {
	p, ok := r.single()
	if !ok {
		return false, false
	}
	return !p.(arith.BitVec).IsZero(), true
}

// orderOf reduces an ordered comparison known to yield b to "first operand
// below second operand", with the operands swapped when swap is set.
func orderOf(k op.Kind, b bool) (strict, swap bool) {
	switch k {
	case op.IntCompareLessSigned, op.IntCompareLessUnsigned, op.FloatCompareLess:
		// x < y, or y <= x
		return b, !b
	case op.IntCompareLessOrEqualSigned, op.IntCompareLessOrEqualUnsigned, op.FloatCompareLessOrEqual:
		// x <= y, or y < x
		return !b, !b
	case op.IntCompareGreaterSigned, op.IntCompareGreaterUnsigned, op.FloatCompareGreater:
		// y < x, or x <= y
		return b, b
	default:
		// y <= x, or x < y
		return !b, b
	}
}

// intBelow restricts a and b to the values for which a < b (strict) or
// a <= b can hold.
func intBelow(a, b set, strict, signed bool) (set, set) {
	d := new(big.Int)
	if strict {
		d = bigOne
	}
	al, _ := a.viewBounds(signed)
	_, bh := b.viewBounds(signed)
	return restrictView(a, signed, nil, subBig(bh, d)), restrictView(b, signed, addBig(al, d), nil)
}

// restrictView returns the integers of s within [lo, hi] under the given
// signedness. A nil bound is unbounded.
func restrictView(s set, signed bool, lo, hi *big.Int) set {
	L, H := arith.Bounds(s.typ.Size, signed)
	if lo == nil || lo.Cmp(L) < 0 {
		lo = L
	}
	if hi == nil || hi.Cmp(H) > 0 {
		hi = H
	}
	if lo.Cmp(hi) > 0 {
		return emptySet(s.typ)
	}
	return s.intersect(fromView(s.typ, signed, span{lo, hi}))
}

// shiftSet returns r+d modulo 2^size.
func shiftSet(r set, d *big.Int) set {
	out := emptySet(r.typ)
	for _, s := range r.spans {
		out = out.union(wrapSet(r.typ, addBig(s.lo, d), addBig(s.hi, d)))
	}
	return out
}

func negSet(r set) set {
	out := emptySet(r.typ)
	for _, s := range r.spans {
		out = out.union(wrapSet(r.typ, negBig(s.hi), negBig(s.lo)))
	}
	return out
}

func notSet(r set) set {
	_, max := arith.Bounds(r.typ.Size, false)
	out := emptySet(r.typ)
	for _, s := range r.spans {
		out = out.union(set{typ: r.typ, spans: []span{{subBig(max, s.hi), subBig(max, s.lo)}}})
	}
	return out
}

// truncSet returns the values of type t among the spans, read under the
// given signedness, that lie within [lo, hi].
func truncSet(t Type, spans []span, lo, hi *big.Int, signed bool) set {
	var out []span
	for _, s := range spans {
		l, h := maxBig(s.lo, lo), minBig(s.hi, hi)
		if l.Cmp(h) <= 0 {
			out = append(out, span{l, h})
		}
	}
	return fromView(t, signed, out...)
}

// spanPairs unions f over the span pairs of a and b. When there are many
// pairs, the hulls are used instead.
func spanPairs(t Type, a, b set, f func(p, q span) set) set {
	as, bs := a.spans, b.spans
	if len(as)*len(bs) > 64 {
		as = []span{{as[0].lo, as[len(as)-1].hi}}
		bs = []span{{bs[0].lo, bs[len(bs)-1].hi}}
	}
	out := emptySet(t)
	for _, p := range as {
		for _, q := range bs {
			out = out.union(f(p, q))
		}
	}
	return out
}

// xorSet returns {r ^ k} for the elements of r and k, when there are few of
// them.
func xorSet(r, k set, limit int) (set, bool) {
	rp, ok1 := r.points(limit)
	kp, ok2 := k.points(limit)
	if !ok1 || !ok2 || len(rp)*len(kp) > limit {
		return set{}, false
	}
	out := emptySet(r.typ)
	for _, a := range rp {
		for _, b := range kp {
			out = out.addScalar(a.(arith.BitVec).Xor(b.(arith.BitVec)))
		}
	}
	return out, true
}

// classSet returns the floats of type t whose classification is b.
func classSet(k op.Kind, t Type, b bool) set {
	f := t.Format
	ninf, pinf := arith.Inf(f, true), arith.Inf(f, false)
	nz, pz := arith.Zero(f, true), arith.Zero(f, false)
	var s set
	switch k {
	case op.FloatIsNaN:
		s = set{typ: t, qnan: true, snan: true}
	case op.FloatIsQNaN:
		s = set{typ: t, qnan: true}
	case op.FloatIsSNaN:
		s = set{typ: t, snan: true}
	case op.FloatIsInftyExponent:
		s = set{typ: t, ranges: []frange{{ninf, ninf}, {pinf, pinf}}, qnan: true, snan: true}
	case op.FloatIsPositive:
		s = set{typ: t, ranges: []frange{{pz, pinf}}}
	case op.FloatIsNegative:
		s = set{typ: t, ranges: []frange{{ninf, nz}}}
	}
	if b {
		return s
	}
	return complementFloat(s)
}

// complementFloat returns the floats not in s, which must be normalized.
func complementFloat(s set) set {
	f := s.typ.Format
	out := set{typ: s.typ, qnan: !s.qnan, snan: !s.snan}
	next := arith.Inf(f, true)
	open := true
	for _, r := range s.ranges {
		if r.lo.TotalCmp(next) > 0 {
			out.ranges = append(out.ranges, frange{next, fprev(r.lo)})
		}
		if r.hi.IsInf() && !r.hi.Signbit() {
			open = false
			break
		}
		next = fnext(r.hi)
	}
	if open {
		out.ranges = append(out.ranges, frange{next, arith.Inf(f, false)})
	}
	return out
}

// floatBelow restricts a and b to the values for which a < b (strict) or
// a <= b can hold. Both lose their NaNs.
func floatBelow(a, b set, strict bool) (set, set) {
	al, _, ok1 := a.fbounds()
	_, bh, ok2 := b.fbounds()
	if !ok1 || !ok2 {
		return emptySet(a.typ), emptySet(b.typ)
	}
	f := a.typ.Format
	var ahi, blo arith.Float
	switch {
	case strict && bh.IsZero():
		ahi = arith.Zero(f, true).NextDown()
	case strict:
		ahi = fprev(bh)
	case bh.IsZero():
		ahi = arith.Zero(f, false)
	default:
		ahi = bh
	}
	switch {
	case strict && al.IsZero():
		blo = arith.Zero(f, false).NextUp()
	case strict:
		blo = fnext(al)
	case al.IsZero():
		blo = arith.Zero(f, true)
	default:
		blo = al
	}
	return frestrict(a, arith.Inf(f, true), ahi), frestrict(b, blo, arith.Inf(f, false))
}

// frestrict returns the non-NaN floats of s within [lo, hi].
func frestrict(s set, lo, hi arith.Float) set {
	if lo.TotalCmp(hi) > 0 {
		return emptySet(s.typ)
	}
	return s.withoutNaN().intersect(set{typ: s.typ, ranges: []frange{{lo, hi}}})
}

// zeroClosure returns s with both zeros when it has either.
func zeroClosure(s set) set {
	zero, _ := s.zeroness()
	if !zero {
		return s
	}
	f := s.typ.Format
	return s.union(set{typ: s.typ, ranges: []frange{{arith.Zero(f, true), arith.Zero(f, false)}}})
}
