package arith

import (
	"fmt"
	"math/big"

	"golang.org/x/exp/constraints"
)

// Scalar is a concrete value: either a BitVec or a Float.
type Scalar interface {
	Size() int
	String() string
	isScalar()
}

var (
	zero = big.NewInt(0)
	one  = big.NewInt(1)
)

// BitVec is a fixed-width two's-complement integer.
//
// The stored value is always normalized to [0, 2^size). A BitVec is
// immutable: operations return new values and the *Assign methods replace the
// receiver as a whole, so copies of a BitVec may safely share storage.
type BitVec struct {
	size int
	v    *big.Int
}

func (BitVec) isScalar() {}

func checkSize(size int) {
	if size <= 0 {
		panic(fmt.Sprintf("arith: invalid bit width %d", size))
	}
}

func mask(size int) *big.Int {
	m := new(big.Int).Lsh(one, uint(size))
	return m.Sub(m, one)
}

// Bounds returns the smallest and largest integers representable in size bits
// under the given signedness.
func Bounds(size int, signed bool) (lo, hi *big.Int) {
	checkSize(size)
	if signed {
		hi = new(big.Int).Lsh(one, uint(size-1))
		lo = new(big.Int).Neg(hi)
		hi.Sub(hi, one)
		return lo, hi
	}
	return new(big.Int), mask(size)
}

// NewBitVec returns the zero value of the given width.
func NewBitVec(size int) BitVec {
	checkSize(size)
	return BitVec{size: size, v: new(big.Int)}
}

// FromBig returns x modulo 2^size. Negative values map to their two's
// complement representation.
func FromBig(x *big.Int, size int) BitVec {
	checkSize(size)
	// big.Int implements bitwise operations on negative values with two's
	// complement semantics.
	return BitVec{size: size, v: new(big.Int).And(x, mask(size))}
}

func FromUint64(x uint64, size int) BitVec {
	return FromBig(new(big.Int).SetUint64(x), size)
}

func FromInt64(x int64, size int) BitVec {
	return FromBig(big.NewInt(x), size)
}

// FromInt converts a native integer.
func FromInt[T constraints.Integer](x T, size int) BitVec {
	var z T
	if ^z < 0 {
		return FromInt64(int64(x), size)
	}
	return FromUint64(uint64(x), size)
}

// Bool returns a 1-bit vector.
func Bool(b bool) BitVec {
	if b {
		return FromUint64(1, 1)
	}
	return NewBitVec(1)
}

// Size returns the width in bits.
func (b BitVec) Size() int { return b.size }

func (b BitVec) raw() *big.Int {
	if b.v == nil {
		panic("arith: use of uninitialized BitVec")
	}
	return b.v
}

// Uint returns the unsigned interpretation.
func (b BitVec) Uint() *big.Int { return new(big.Int).Set(b.raw()) }

// Int returns the two's-complement signed interpretation.
func (b BitVec) Int() *big.Int {
	r := new(big.Int).Set(b.raw())
	if b.IsNegative() {
		r.Sub(r, new(big.Int).Lsh(one, uint(b.size)))
	}
	return r
}

// Value returns the signed or unsigned interpretation.
func (b BitVec) Value(signed bool) *big.Int {
	if signed {
		return b.Int()
	}
	return b.Uint()
}

// Uint64 returns the low 64 bits.
func (b BitVec) Uint64() uint64 {
	return new(big.Int).And(b.raw(), mask(64)).Uint64()
}

func (b BitVec) IsZero() bool     { return b.raw().Sign() == 0 }
func (b BitVec) Bit(i int) uint   { return b.raw().Bit(i) }
func (b BitVec) IsNegative() bool { return b.raw().Bit(b.size-1) == 1 }

// Equal reports whether b and o have the same width and bits.
func (b BitVec) Equal(o BitVec) bool {
	return b.size == o.size && b.raw().Cmp(o.raw()) == 0
}

// Cmp compares b and o under the given signedness.
func (b BitVec) Cmp(o BitVec, signed bool) int {
	sameSize(b, o)
	if !signed {
		return b.raw().Cmp(o.raw())
	}
	return b.Int().Cmp(o.Int())
}

// Text formats b in the given base, prefixed with 0x for base 16.
func (b BitVec) Text(signed bool, base int) string {
	v := b.Value(signed)
	if base == 16 {
		if v.Sign() < 0 {
			return "-0x" + new(big.Int).Neg(v).Text(16)
		}
		return "0x" + v.Text(16)
	}
	return v.Text(base)
}

func (b BitVec) String() string { return b.Text(false, 10) }

func sameSize(a, b BitVec) {
	if a.size != b.size {
		panic(fmt.Sprintf("arith: mismatched bit widths %d and %d", a.size, b.size))
	}
}

// Fit wraps the mathematical integer r into size bits. When r is not
// representable under the given signedness, the matching overflow is raised.
func Fit(r *big.Int, size int, signed bool, st *Status) BitVec {
	lo, hi := Bounds(size, signed)
	if r.Cmp(hi) > 0 {
		st.Raise(PositiveOverflow)
	} else if r.Cmp(lo) < 0 {
		st.Raise(NegativeOverflow)
	}
	return FromBig(r, size)
}

func (b BitVec) Add(o BitVec, signed bool, st *Status) BitVec {
	sameSize(b, o)
	r := new(big.Int).Add(b.Value(signed), o.Value(signed))
	return Fit(r, b.size, signed, st)
}

func (b BitVec) Sub(o BitVec, signed bool, st *Status) BitVec {
	sameSize(b, o)
	r := new(big.Int).Sub(b.Value(signed), o.Value(signed))
	return Fit(r, b.size, signed, st)
}

func (b BitVec) Mul(o BitVec, signed bool, st *Status) BitVec {
	sameSize(b, o)
	r := new(big.Int).Mul(b.Value(signed), o.Value(signed))
	return Fit(r, b.size, signed, st)
}

// Div is truncated division. Dividing by zero raises DivisionByZero and
// yields zero.
func (b BitVec) Div(o BitVec, signed bool, st *Status) BitVec {
	sameSize(b, o)
	if o.IsZero() {
		st.Raise(DivisionByZero)
		return NewBitVec(b.size)
	}
	r := new(big.Int).Quo(b.Value(signed), o.Value(signed))
	return Fit(r, b.size, signed, st)
}

// Rem is the remainder of truncated division; it has the sign of b.
func (b BitVec) Rem(o BitVec, signed bool, st *Status) BitVec {
	sameSize(b, o)
	if o.IsZero() {
		st.Raise(DivisionByZero)
		return NewBitVec(b.size)
	}
	r := new(big.Int).Rem(b.Value(signed), o.Value(signed))
	return Fit(r, b.size, signed, st)
}

// Neg negates b. The signed negation of the smallest value overflows; the
// unsigned negation is modular and never raises.
func (b BitVec) Neg(signed bool, st *Status) BitVec {
	if !signed {
		return FromBig(new(big.Int).Neg(b.raw()), b.size)
	}
	return Fit(new(big.Int).Neg(b.Int()), b.size, true, st)
}

func (b BitVec) Next(signed bool, st *Status) BitVec {
	return Fit(new(big.Int).Add(b.Value(signed), one), b.size, signed, st)
}

func (b BitVec) Prev(signed bool, st *Status) BitVec {
	return Fit(new(big.Int).Sub(b.Value(signed), one), b.size, signed, st)
}

func (b BitVec) Min(o BitVec, signed bool) BitVec {
	if b.Cmp(o, signed) <= 0 {
		return b
	}
	return o
}

func (b BitVec) Max(o BitVec, signed bool) BitVec {
	if b.Cmp(o, signed) >= 0 {
		return b
	}
	return o
}

func (b BitVec) And(o BitVec) BitVec {
	sameSize(b, o)
	return BitVec{size: b.size, v: new(big.Int).And(b.raw(), o.raw())}
}

func (b BitVec) Or(o BitVec) BitVec {
	sameSize(b, o)
	return BitVec{size: b.size, v: new(big.Int).Or(b.raw(), o.raw())}
}

func (b BitVec) Xor(o BitVec) BitVec {
	sameSize(b, o)
	return BitVec{size: b.size, v: new(big.Int).Xor(b.raw(), o.raw())}
}

// Not is the bitwise complement.
func (b BitVec) Not() BitVec {
	return BitVec{size: b.size, v: new(big.Int).Xor(b.raw(), mask(b.size))}
}

// shiftAmount returns the amount as an int, saturated at size.
func shiftAmount(amount BitVec, size int) int {
	k := amount.raw()
	if !k.IsInt64() || k.Int64() > int64(size) {
		return size
	}
	return int(k.Int64())
}

// Shl shifts left. Any non-zero bit shifted out raises PositiveOverflow.
// The amount is read as unsigned and may have any width.
func (b BitVec) Shl(amount BitVec, st *Status) BitVec {
	k := shiftAmount(amount, b.size)
	if k >= b.size {
		if !b.IsZero() {
			st.Raise(PositiveOverflow)
		}
		return NewBitVec(b.size)
	}
	r := new(big.Int).Lsh(b.raw(), uint(k))
	if r.BitLen() > b.size {
		st.Raise(PositiveOverflow)
	}
	return FromBig(r, b.size)
}

// LShr is the logical right shift. Shifting by the width or more yields zero.
func (b BitVec) LShr(amount BitVec) BitVec {
	k := shiftAmount(amount, b.size)
	if k >= b.size {
		return NewBitVec(b.size)
	}
	return BitVec{size: b.size, v: new(big.Int).Rsh(b.raw(), uint(k))}
}

// AShr is the arithmetic right shift. Shifting by the width or more yields
// the sign bit replicated.
func (b BitVec) AShr(amount BitVec) BitVec {
	k := shiftAmount(amount, b.size)
	if k >= b.size {
		k = b.size - 1
	}
	// Rsh on negative values rounds toward negative infinity, which is the
	// arithmetic shift.
	return FromBig(new(big.Int).Rsh(b.Int(), uint(k)), b.size)
}

func (b BitVec) Rotl(amount BitVec) BitVec {
	k := int(new(big.Int).Mod(amount.raw(), big.NewInt(int64(b.size))).Int64())
	if k == 0 {
		return b
	}
	hi := new(big.Int).Lsh(b.raw(), uint(k))
	lo := new(big.Int).Rsh(b.raw(), uint(b.size-k))
	return FromBig(hi.Or(hi, lo), b.size)
}

func (b BitVec) Rotr(amount BitVec) BitVec {
	k := int(new(big.Int).Mod(amount.raw(), big.NewInt(int64(b.size))).Int64())
	return b.Rotl(FromUint64(uint64((b.size-k)%b.size), 64))
}

// ZeroExtend widens b to size bits, filling with zeros.
func (b BitVec) ZeroExtend(size int) BitVec {
	if size < b.size {
		panic(fmt.Sprintf("arith: cannot extend %d bits to %d", b.size, size))
	}
	return BitVec{size: size, v: b.raw()}
}

// SignExtend widens b to size bits, replicating the sign bit.
func (b BitVec) SignExtend(size int) BitVec {
	if size < b.size {
		panic(fmt.Sprintf("arith: cannot extend %d bits to %d", b.size, size))
	}
	return FromBig(b.Int(), size)
}

// Extract returns the inclusive bit range [low, high] as a new value of
// width high-low+1.
func (b BitVec) Extract(low, high int) BitVec {
	if low < 0 || high < low || high >= b.size {
		panic(fmt.Sprintf("arith: invalid bit range [%d, %d] of %d bits", low, high, b.size))
	}
	r := new(big.Int).Rsh(b.raw(), uint(low))
	return FromBig(r, high-low+1)
}

// SetBits replaces the inclusive bit range [low, high] of b with o.
func (b BitVec) SetBits(low, high int, o BitVec) BitVec {
	if low < 0 || high < low || high >= b.size || o.size != high-low+1 {
		panic(fmt.Sprintf("arith: cannot set bits [%d, %d] of %d bits from %d bits", low, high, b.size, o.size))
	}
	clear := new(big.Int).Lsh(mask(o.size), uint(low))
	clear.Xor(clear, mask(b.size))
	r := new(big.Int).And(b.raw(), clear)
	r.Or(r, new(big.Int).Lsh(o.raw(), uint(low)))
	return BitVec{size: b.size, v: r}
}

// Concat returns b as the high part and low as the low part of a value of
// width b.Size()+low.Size().
func (b BitVec) Concat(low BitVec) BitVec {
	r := new(big.Int).Lsh(b.raw(), uint(low.size))
	r.Or(r, low.raw())
	return BitVec{size: b.size + low.size, v: r}
}

func (b *BitVec) assign(r BitVec, st *Status) bool {
	if st.Empty {
		return false
	}
	*b = r
	return true
}

// AddAssign replaces b with b+o. It reports false, leaving b unchanged, when
// the status became empty.
func (b *BitVec) AddAssign(o BitVec, signed bool, st *Status) bool {
	return b.assign(b.Add(o, signed, st), st)
}

func (b *BitVec) SubAssign(o BitVec, signed bool, st *Status) bool {
	return b.assign(b.Sub(o, signed, st), st)
}

func (b *BitVec) MulAssign(o BitVec, signed bool, st *Status) bool {
	return b.assign(b.Mul(o, signed, st), st)
}

func (b *BitVec) NextAssign(signed bool, st *Status) bool {
	return b.assign(b.Next(signed, st), st)
}

func (b *BitVec) PrevAssign(signed bool, st *Status) bool {
	return b.assign(b.Prev(signed, st), st)
}
