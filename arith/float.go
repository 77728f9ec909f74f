package arith

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	"honnef.co/go/absval/op"
)

// Format describes a binary interchange format by the width of its exponent
// field and of its stored mantissa (the hidden bit is not counted).
type Format struct {
	Exponent int
	Mantissa int
}

var (
	Binary16 = Format{Exponent: 5, Mantissa: 10}
	Binary32 = Format{Exponent: 8, Mantissa: 23}
	Binary64 = Format{Exponent: 11, Mantissa: 52}
)

func (f Format) check() {
	if f.Exponent < 2 || f.Exponent > op.MaxExponent || f.Mantissa < 2 {
		panic(fmt.Sprintf("arith: invalid float format %s", f))
	}
}

func (f Format) String() string { return fmt.Sprintf("e%dm%d", f.Exponent, f.Mantissa) }

// Size is the width of the encoding, including the sign bit.
func (f Format) Size() int { return 1 + f.Exponent + f.Mantissa }

func (f Format) precision() uint { return uint(f.Mantissa + 1) }
func (f Format) bias() int       { return 1<<(f.Exponent-1) - 1 }
func (f Format) emax() int       { return f.bias() }
func (f Format) emin() int       { return 1 - f.bias() }

type floatClass uint8

const (
	finite floatClass = iota
	infinite
	qnan
	snan
)

// Float is a software floating-point number of a given Format.
//
// Like BitVec, a Float is immutable. The zero Float is not valid; use one of
// the constructors.
type Float struct {
	format Format
	class  floatClass
	neg    bool
	// mag is the magnitude of finite values, exactly representable in format.
	mag *big.Float
}

func (Float) isScalar() {}

func Zero(f Format, neg bool) Float {
	f.check()
	return Float{format: f, neg: neg, mag: new(big.Float).SetPrec(f.precision())}
}

func Inf(f Format, neg bool) Float {
	f.check()
	return Float{format: f, class: infinite, neg: neg}
}

// QNaN returns a quiet NaN.
func QNaN(f Format) Float {
	f.check()
	return Float{format: f, class: qnan}
}

// SNaN returns a signaling NaN.
func SNaN(f Format) Float {
	f.check()
	return Float{format: f, class: snan}
}

// MaxFinite returns the finite value of largest magnitude.
func MaxFinite(f Format, neg bool) Float {
	f.check()
	m := new(big.Float).SetPrec(f.precision()).SetInt(mask(f.Mantissa + 1))
	m.SetMantExp(m, f.emax()-f.Mantissa)
	return Float{format: f, neg: neg, mag: m}
}

// MinNormal returns the least positive normal value.
func MinNormal(f Format) Float {
	f.check()
	m := new(big.Float).SetPrec(f.precision()).SetMantExp(big.NewFloat(0.5), f.emin()+1)
	return Float{format: f, mag: m}
}

// FloatFromBig rounds x to f under the rounding parameters of st.
func FloatFromBig(x *big.Float, f Format, st *Status) Float {
	f.check()
	if x.IsInf() {
		return Inf(f, x.Signbit())
	}
	r, flags := f.round(x, x.Signbit(), st.Float.RoundingParams)
	st.absorbFloat(flags, r.neg)
	return r
}

func FromFloat64(x float64, f Format, st *Status) Float {
	if math.IsNaN(x) {
		return QNaN(f)
	}
	return FloatFromBig(big.NewFloat(x), f, st)
}

// ParseFloat parses a decimal literal, or one of nan, snan, inf, +inf and
// -inf, and rounds it to f.
func ParseFloat(s string, f Format, st *Status) (Float, error) {
	f.check()
	t := strings.ToLower(strings.TrimSpace(s))
	switch t {
	case "nan", "+nan", "-nan":
		return QNaN(f), nil
	case "snan":
		return SNaN(f), nil
	case "inf", "+inf", "infinity", "+infinity":
		return Inf(f, false), nil
	case "-inf", "-infinity":
		return Inf(f, true), nil
	}
	r, ok := new(big.Rat).SetString(t)
	if !ok {
		return Float{}, fmt.Errorf("invalid float literal %q", s)
	}
	neg := strings.HasPrefix(t, "-")
	if r.Sign() == 0 {
		return Zero(f, neg && !st.Float.RefuseMinusZero), nil
	}
	num := new(big.Float).SetInt(r.Num())
	den := new(big.Float).SetInt(r.Denom())
	x, flags := f.round(stickyQuo(num, den, f.precision()), neg, st.Float.RoundingParams)
	st.absorbFloat(flags, x.neg)
	return x, nil
}

func (x Float) Format() Format { return x.format }
func (x Float) Size() int      { return x.format.Size() }

func (x Float) IsNaN() bool    { return x.class == qnan || x.class == snan }
func (x Float) IsQNaN() bool   { return x.class == qnan }
func (x Float) IsSNaN() bool   { return x.class == snan }
func (x Float) IsInf() bool    { return x.class == infinite }
func (x Float) IsFinite() bool { return x.class == finite }
func (x Float) IsZero() bool   { return x.class == finite && x.mag.Sign() == 0 }

// Signbit reports whether the sign bit is set. NaNs are always positive.
func (x Float) Signbit() bool { return x.neg && !x.IsNaN() }

// IsPositive reports whether x is not a NaN and has its sign bit clear; +0 is
// positive.
func (x Float) IsPositive() bool { return !x.IsNaN() && !x.neg }

// IsNegative reports whether x is not a NaN and has its sign bit set; -0 is
// negative.
func (x Float) IsNegative() bool { return !x.IsNaN() && x.neg }

// IsInftyExponent reports whether the exponent field is all ones, that is
// whether x is an infinity or a NaN.
func (x Float) IsInftyExponent() bool { return x.class != finite }

// IsZeroExponent reports whether the exponent field is zero, that is whether
// x is a zero or a subnormal.
func (x Float) IsZeroExponent() bool {
	return x.class == finite && (x.mag.Sign() == 0 || x.mag.MantExp(nil)-1 < x.format.emin())
}

func (x Float) signed() *big.Float {
	r := new(big.Float).Copy(x.mag)
	if x.neg {
		r.Neg(r)
	}
	return r
}

// Big returns the value of x, or nil for NaNs.
func (x Float) Big() *big.Float {
	switch x.class {
	case infinite:
		return new(big.Float).SetInf(x.neg)
	case finite:
		return x.signed()
	default:
		return nil
	}
}

// Float64 returns the nearest float64.
func (x Float) Float64() float64 {
	switch x.class {
	case qnan, snan:
		return math.NaN()
	case infinite:
		if x.neg {
			return math.Inf(-1)
		}
		return math.Inf(1)
	}
	v, _ := x.signed().Float64()
	return v
}

// Equal reports whether x and y are the same datum: NaNs equal NaNs of the
// same kind, and -0 differs from +0.
func (x Float) Equal(y Float) bool {
	if x.format != y.format || x.class != y.class {
		return false
	}
	switch x.class {
	case qnan, snan:
		return true
	case infinite:
		return x.neg == y.neg
	default:
		return x.neg == y.neg && x.mag.Cmp(y.mag) == 0
	}
}

// Cmp compares x and y numerically, with -0 equal to +0. The second result
// is false when the operands are unordered.
func (x Float) Cmp(y Float) (int, bool) {
	sameFormat(x, y)
	if x.IsNaN() || y.IsNaN() {
		return 0, false
	}
	return x.Big().Cmp(y.Big()), true
}

// TotalCmp orders every datum: -inf, negative finite values, -0, +0, positive
// finite values, +inf, quiet NaN, signaling NaN.
func (x Float) TotalCmp(y Float) int {
	rank := func(v Float) int {
		switch v.class {
		case qnan:
			return 1
		case snan:
			return 2
		}
		return 0
	}
	if rx, ry := rank(x), rank(y); rx != 0 || ry != 0 {
		return rx - ry
	}
	if c := x.Big().Cmp(y.Big()); c != 0 {
		return c
	}
	switch {
	case x.neg == y.neg:
		return 0
	case x.neg:
		return -1
	default:
		return 1
	}
}

// Bits returns the IEEE-754 style encoding of x. Quiet NaNs have the top
// mantissa bit set; signaling NaNs have only the lowest one.
func (x Float) Bits() BitVec {
	f := x.format
	expAllOnes := mask(f.Exponent)
	var exp, frac *big.Int
	switch x.class {
	case infinite:
		exp, frac = expAllOnes, new(big.Int)
	case qnan:
		exp, frac = expAllOnes, new(big.Int).Lsh(one, uint(f.Mantissa-1))
	case snan:
		exp, frac = expAllOnes, big.NewInt(1)
	default:
		if x.mag.Sign() == 0 {
			exp, frac = new(big.Int), new(big.Int)
			break
		}
		e := x.mag.MantExp(nil) - 1
		if e < f.emin() {
			exp = new(big.Int)
			frac, _ = new(big.Float).SetMantExp(x.mag, f.Mantissa-f.emin()).Int(nil)
		} else {
			exp = big.NewInt(int64(e + f.bias()))
			frac, _ = new(big.Float).SetMantExp(x.mag, f.Mantissa-e).Int(nil)
			frac.Sub(frac, new(big.Int).Lsh(one, uint(f.Mantissa)))
		}
	}
	r := new(big.Int).Lsh(exp, uint(f.Mantissa))
	r.Or(r, frac)
	if x.Signbit() {
		r.SetBit(r, f.Size()-1, 1)
	}
	return BitVec{size: f.Size(), v: r}
}

// FloatFromBits decodes an encoding produced by Bits.
func FloatFromBits(b BitVec, f Format) Float {
	f.check()
	if b.size != f.Size() {
		panic(fmt.Sprintf("arith: %d bits cannot encode %s", b.size, f))
	}
	neg := b.Bit(f.Size()-1) == 1
	exp := b.Extract(f.Mantissa, f.Mantissa+f.Exponent-1).Uint()
	frac := b.Extract(0, f.Mantissa-1).Uint()
	switch {
	case exp.Cmp(mask(f.Exponent)) == 0:
		if frac.Sign() == 0 {
			return Inf(f, neg)
		}
		if frac.Bit(f.Mantissa-1) == 1 {
			return QNaN(f)
		}
		return SNaN(f)
	case exp.Sign() == 0:
		m := new(big.Float).SetPrec(f.precision()).SetInt(frac)
		m.SetMantExp(m, f.emin()-f.Mantissa)
		return Float{format: f, neg: neg, mag: m}
	default:
		frac.SetBit(frac, f.Mantissa, 1)
		m := new(big.Float).SetPrec(f.precision()).SetInt(frac)
		m.SetMantExp(m, int(exp.Int64())-f.bias()-f.Mantissa)
		return Float{format: f, neg: neg, mag: m}
	}
}

// NextUp returns the least value greater than x. NaNs and +inf are returned
// unchanged.
func (x Float) NextUp() Float {
	switch {
	case x.IsNaN(), x.class == infinite && !x.neg:
		return x
	case x.IsZero():
		return FloatFromBits(FromUint64(1, x.format.Size()), x.format)
	}
	b := x.Bits().Uint()
	if x.neg {
		b.Sub(b, one)
	} else {
		b.Add(b, one)
	}
	return FloatFromBits(FromBig(b, x.format.Size()), x.format)
}

// NextDown returns the greatest value less than x.
func (x Float) NextDown() Float {
	if x.IsNaN() {
		return x
	}
	return x.Neg().NextUp().Neg()
}

func (x Float) String() string {
	switch x.class {
	case qnan:
		return "nan"
	case snan:
		return "snan"
	case infinite:
		if x.neg {
			return "-inf"
		}
		return "+inf"
	}
	s := x.mag.Text('g', -1)
	if x.neg {
		return "-" + s
	}
	return s
}

func sameFormat(xs ...Float) {
	for _, x := range xs[1:] {
		if x.format != xs[0].format {
			panic(fmt.Sprintf("arith: mismatched float formats %s and %s", xs[0].format, x.format))
		}
	}
}
