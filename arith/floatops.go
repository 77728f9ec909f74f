package arith

import (
	"math/big"
)

// round rounds the exact value x to f. zeroNeg is the sign of the result when
// x is zero, which big.Float cannot always carry for computed values.
func (f Format) round(x *big.Float, zeroNeg bool, p RoundingParams) (Float, FloatFlags) {
	if x.Sign() == 0 {
		return Zero(f, zeroNeg && !p.RefuseMinusZero), 0
	}
	neg := x.Signbit()
	abs := new(big.Float).Abs(x)
	mode := magnitudeMode(p.bigMode(), neg)

	var flags FloatFlags
	var r *big.Float
	if abs.MantExp(nil)-1 < f.emin() {
		// Subnormal range: the quantum is fixed at 2^(emin-M).
		q := f.emin() - f.Mantissa
		n := roundToInt(new(big.Float).SetMantExp(abs, -q), mode)
		r = new(big.Float).SetPrec(f.precision()).SetInt(n)
		r.SetMantExp(r, q)
		if r.Cmp(abs) != 0 {
			flags |= FlagInexact | FlagUnderflow
		}
	} else {
		r = new(big.Float).SetPrec(f.precision()).SetMode(mode).Set(abs)
		if r.Acc() != big.Exact {
			flags |= FlagInexact
		}
	}

	if r.Sign() == 0 {
		return Zero(f, neg && !p.RefuseMinusZero), flags
	}
	if r.MantExp(nil)-1 > f.emax() {
		flags |= FlagOverflow | FlagInexact
		if p.overflowsToInfinity(neg) {
			return Inf(f, neg), flags
		}
		return MaxFinite(f, neg), flags
	}
	return Float{format: f, neg: neg, mag: r}, flags
}

// magnitudeMode returns the mode that rounds the magnitude of a value of the
// given sign the way mode rounds the value itself.
func magnitudeMode(mode big.RoundingMode, neg bool) big.RoundingMode {
	if !neg {
		return mode
	}
	switch mode {
	case big.ToPositiveInf:
		return big.ToNegativeInf
	case big.ToNegativeInf:
		return big.ToPositiveInf
	}
	return mode
}

// roundToInt rounds the non-negative x to an integer.
func roundToInt(x *big.Float, mode big.RoundingMode) *big.Int {
	t, acc := x.Int(nil)
	if acc == big.Exact {
		return t
	}
	up := false
	switch mode {
	case big.ToPositiveInf, big.AwayFromZero:
		up = true
	case big.ToNearestEven, big.ToNearestAway:
		frac := new(big.Float).Sub(x, new(big.Float).SetInt(t))
		switch frac.Cmp(big.NewFloat(0.5)) {
		case 1:
			up = true
		case 0:
			up = mode == big.ToNearestAway || t.Bit(0) == 1
		}
	}
	if up {
		t.Add(t, one)
	}
	return t
}

// exactSum returns a+b, exactly as far as rounding to target bits is
// concerned. When b is far below the rounding position of a, it is replaced by
// a tiny value of the same sign.
func exactSum(a, b *big.Float, target uint) *big.Float {
	if a.Sign() == 0 {
		return new(big.Float).Copy(b)
	}
	if b.Sign() == 0 {
		return new(big.Float).Copy(a)
	}
	ea, eb := a.MantExp(nil), b.MantExp(nil)
	if ea < eb {
		a, b = b, a
		ea, eb = eb, ea
	}
	pa, pb := a.MinPrec(), b.MinPrec()
	limit := int(max(target, pa)) + 3
	gap := ea - eb
	if gap > limit {
		tiny := new(big.Float).SetMantExp(big.NewFloat(0.5), ea-limit)
		if b.Signbit() {
			tiny.Neg(tiny)
		}
		b, gap, pb = tiny, limit, 1
	}
	return new(big.Float).SetPrec(uint(gap)+pa+pb+1).Add(a, b)
}

func exactProduct(a, b *big.Float) *big.Float {
	return new(big.Float).SetPrec(max(a.MinPrec()+b.MinPrec(), 1)).Mul(a, b)
}

// stickyQuo returns a/b truncated to target+3 bits, with a half-ulp sticky
// bit added when the quotient is inexact. The result rounds to target bits
// exactly like the true quotient.
func stickyQuo(a, b *big.Float, target uint) *big.Float {
	prec := target + 3
	q := new(big.Float).SetPrec(prec).SetMode(big.ToZero).Quo(a, b)
	if q.Acc() == big.Exact {
		return q
	}
	half := new(big.Float).SetMantExp(big.NewFloat(0.5), q.MantExp(nil)-int(prec))
	if q.Signbit() {
		half.Neg(half)
	}
	return new(big.Float).SetPrec(prec+2).Add(q, half)
}

// nanOperand returns the NaN result of an operation when any operand is a
// NaN. Signaling NaNs raise the invalid flag.
func nanOperand(f Format, xs ...Float) (Float, FloatFlags, bool) {
	var flags FloatFlags
	nan := false
	for _, x := range xs {
		switch x.class {
		case snan:
			flags |= FlagInvalid
			nan = true
		case qnan:
			nan = true
		}
	}
	if nan {
		return QNaN(f), flags, true
	}
	return Float{}, 0, false
}

func (x Float) Neg() Float {
	if x.IsNaN() {
		return x
	}
	x.neg = !x.neg
	return x
}

func (x Float) Abs() Float {
	x.neg = false
	return x
}

func add(x, y Float, p RoundingParams) (Float, FloatFlags) {
	f := x.format
	if r, flags, ok := nanOperand(f, x, y); ok {
		return r, flags
	}
	switch {
	case x.class == infinite && y.class == infinite:
		if x.neg != y.neg {
			return QNaN(f), FlagInvalid
		}
		return x, 0
	case x.class == infinite:
		return x, 0
	case y.class == infinite:
		return y, 0
	}
	zeroNeg := p.Mode == RoundDownward
	if x.neg == y.neg && x.IsZero() && y.IsZero() {
		zeroNeg = x.neg
	}
	return f.round(exactSum(x.signed(), y.signed(), f.precision()), zeroNeg, p)
}

func mul(x, y Float, p RoundingParams) (Float, FloatFlags) {
	f := x.format
	if r, flags, ok := nanOperand(f, x, y); ok {
		return r, flags
	}
	neg := x.neg != y.neg
	if x.class == infinite || y.class == infinite {
		if x.IsZero() || y.IsZero() {
			return QNaN(f), FlagInvalid
		}
		return Inf(f, neg), 0
	}
	return f.round(exactProduct(x.signed(), y.signed()), neg, p)
}

func quo(x, y Float, p RoundingParams) (Float, FloatFlags) {
	f := x.format
	if r, flags, ok := nanOperand(f, x, y); ok {
		return r, flags
	}
	neg := x.neg != y.neg
	switch {
	case x.class == infinite && y.class == infinite:
		return QNaN(f), FlagInvalid
	case x.class == infinite:
		return Inf(f, neg), 0
	case y.class == infinite:
		return Zero(f, neg && !p.RefuseMinusZero), 0
	case y.IsZero():
		if x.IsZero() {
			return QNaN(f), FlagInvalid
		}
		return Inf(f, neg), FlagDivByZero
	case x.IsZero():
		return Zero(f, neg && !p.RefuseMinusZero), 0
	}
	return f.round(stickyQuo(x.signed(), y.signed(), f.precision()), neg, p)
}

func minMax(x, y Float, isMax bool) (Float, FloatFlags) {
	var flags FloatFlags
	if x.class == snan || y.class == snan {
		flags |= FlagInvalid
	}
	switch {
	case x.IsNaN() && y.IsNaN():
		return QNaN(x.format), flags
	case x.IsNaN():
		return y, flags
	case y.IsNaN():
		return x, flags
	}
	if (x.TotalCmp(y) <= 0) != isMax {
		return x, flags
	}
	return y, flags
}

func (x Float) finish(r Float, flags FloatFlags, st *Status) Float {
	st.absorbFloat(flags, r.Signbit())
	return r
}

func (x Float) Add(y Float, st *Status) Float {
	sameFormat(x, y)
	r, flags := add(x, y, st.Float.RoundingParams)
	return x.finish(r, flags, st)
}

func (x Float) Sub(y Float, st *Status) Float {
	sameFormat(x, y)
	r, flags := add(x, y.Neg(), st.Float.RoundingParams)
	return x.finish(r, flags, st)
}

func (x Float) Mul(y Float, st *Status) Float {
	sameFormat(x, y)
	r, flags := mul(x, y, st.Float.RoundingParams)
	return x.finish(r, flags, st)
}

// Quo divides x by y. A finite non-zero x divided by zero yields an infinity
// and raises DivisionByZero.
func (x Float) Quo(y Float, st *Status) Float {
	sameFormat(x, y)
	r, flags := quo(x, y, st.Float.RoundingParams)
	return x.finish(r, flags, st)
}

// Min returns the lesser operand, ignoring a single quiet NaN. -0 is less
// than +0.
func (x Float) Min(y Float, st *Status) Float {
	sameFormat(x, y)
	r, flags := minMax(x, y, false)
	return x.finish(r, flags, st)
}

func (x Float) Max(y Float, st *Status) Float {
	sameFormat(x, y)
	r, flags := minMax(x, y, true)
	return x.finish(r, flags, st)
}

// FMA computes ±(x*y) ± z. Unless the rounding parameters split fused
// operations, the result is rounded once.
func (x Float) FMA(y, z Float, negProduct, negAddend bool, st *Status) Float {
	sameFormat(x, y, z)
	p := st.Float.RoundingParams
	f := x.format
	if negProduct {
		x = x.Neg()
	}
	if negAddend {
		z = z.Neg()
	}
	if r, flags, ok := nanOperand(f, x, y, z); ok {
		return x.finish(r, flags, st)
	}
	if p.SplitFused {
		prod, flags := mul(x, y, p)
		r, more := add(prod, z, p)
		return x.finish(r, flags|more, st)
	}

	prodNeg := x.neg != y.neg
	if x.class == infinite || y.class == infinite {
		if x.IsZero() || y.IsZero() || (z.class == infinite && z.neg != prodNeg) {
			return x.finish(QNaN(f), FlagInvalid, st)
		}
		return x.finish(Inf(f, prodNeg), 0, st)
	}
	if z.class == infinite {
		return z
	}
	prod := exactProduct(x.signed(), y.signed())
	zeroNeg := p.Mode == RoundDownward
	if prod.Sign() == 0 && z.IsZero() && prodNeg == z.neg {
		zeroNeg = prodNeg
	}
	r, flags := f.round(exactSum(prod, z.signed(), f.precision()), zeroNeg, p)
	return x.finish(r, flags, st)
}

// Convert rounds x to another format.
func (x Float) Convert(f Format, st *Status) Float {
	f.check()
	switch x.class {
	case snan:
		return x.finish(QNaN(f), FlagInvalid, st)
	case qnan:
		return QNaN(f)
	case infinite:
		return Inf(f, x.neg)
	}
	r, flags := f.round(x.signed(), x.neg, st.Float.RoundingParams)
	return x.finish(r, flags, st)
}

// ToInt truncates x toward zero to an integer of the given width. Values out
// of range saturate and raise an overflow; NaNs raise NaN and yield zero.
func (x Float) ToInt(size int, signed bool, st *Status) BitVec {
	lo, hi := Bounds(size, signed)
	switch x.class {
	case qnan, snan:
		st.Raise(NaN)
		return NewBitVec(size)
	case infinite:
		if x.neg {
			st.Raise(NegativeOverflow)
			return FromBig(lo, size)
		}
		st.Raise(PositiveOverflow)
		return FromBig(hi, size)
	}
	t, _ := x.signed().Int(nil)
	switch {
	case t.Cmp(hi) > 0:
		st.Raise(PositiveOverflow)
		return FromBig(hi, size)
	case t.Cmp(lo) < 0:
		st.Raise(NegativeOverflow)
		return FromBig(lo, size)
	}
	return FromBig(t, size)
}

// IntToFloat rounds the integer b to f.
func IntToFloat(b BitVec, signed bool, f Format, st *Status) Float {
	f.check()
	r, flags := f.round(new(big.Float).SetInt(b.Value(signed)), false, st.Float.RoundingParams)
	st.absorbFloat(flags, r.neg)
	return r
}
