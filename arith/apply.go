package arith

import (
	"fmt"

	"honnef.co/go/absval/op"
)

// OpFormat returns the float format parameter of o.
func OpFormat(o op.Operation) Format {
	return Format{Exponent: o.Exponent, Mantissa: o.Mantissa}
}

// Apply computes o on concrete operands. args holds the receiver followed by
// the other operands. It reports false when o has no concrete semantics.
//
// Numeric conditions are recorded in st; Apply panics only when the operands
// don't fit o.
func Apply(o op.Operation, args []Scalar, st *Status) (Scalar, bool) {
	if !o.Supported() {
		return nil, false
	}
	if len(args) != o.Arity() {
		panic(fmt.Sprintf("arith: %s takes %d operands, got %d", o, o.Arity(), len(args)))
	}
	switch o.Class() {
	case op.Bit, op.MultiBit:
		bs := make([]BitVec, len(args))
		for i, a := range args {
			b, ok := a.(BitVec)
			if !ok {
				panic(fmt.Sprintf("arith: %s applied to %T", o, a))
			}
			bs[i] = b
		}
		return applyInt(o, bs, st), true
	case op.MultiFloat:
		fs := make([]Float, len(args))
		for i, a := range args {
			f, ok := a.(Float)
			if !ok {
				panic(fmt.Sprintf("arith: %s applied to %T", o, a))
			}
			fs[i] = f
		}
		return applyFloat(o, fs, st), true
	default:
		panic(fmt.Sprintf("arith: unknown class of %s", o))
	}
}

// ApplyAssign computes o with *target as receiver and replaces *target with
// the result. The target is left unchanged, and false returned, when o has
// no concrete semantics or the status became empty.
func ApplyAssign(o op.Operation, target *Scalar, rest []Scalar, st *Status) bool {
	args := append([]Scalar{*target}, rest...)
	r, ok := Apply(o, args, st)
	if !ok || st.Empty {
		return false
	}
	*target = r
	return true
}

func applyInt(o op.Operation, bs []BitVec, st *Status) Scalar {
	signed := o.IsSigned()
	a := bs[0]
	var b BitVec
	if len(bs) > 1 {
		b = bs[1]
	}
	switch o.Kind {
	case op.BitNot, op.IntBitNegate:
		return a.Not()
	case op.BitAnd, op.IntAnd:
		return a.And(b)
	case op.BitOr, op.IntOr:
		return a.Or(b)
	case op.BitXor, op.IntXor:
		return a.Xor(b)
	case op.BitImplies:
		return a.Not().Or(b)
	case op.BitCastMultiBit, op.IntExtendZero:
		return a.ZeroExtend(o.NewSize)
	case op.IntExtendSign:
		return a.SignExtend(o.NewSize)

	case op.IntPrevSigned, op.IntPrevUnsigned:
		return a.Prev(signed, st)
	case op.IntNextSigned, op.IntNextUnsigned:
		return a.Next(signed, st)
	case op.IntOppositeSigned, op.IntOppositeUnsigned:
		return a.Neg(signed, st)
	case op.IntCastBit:
		return Bool(!a.IsZero())
	case op.IntCastShiftBit:
		if o.Low >= a.Size() {
			panic(fmt.Sprintf("arith: bit %d of %d bits", o.Low, a.Size()))
		}
		return Bool(a.Bit(o.Low) == 1)
	case op.IntReduce:
		return a.Extract(o.Low, o.High)
	case op.IntCastFloatSigned, op.IntCastFloatUnsigned:
		return IntToFloat(a, signed, OpFormat(o), st)

	case op.IntCompareLessSigned, op.IntCompareLessUnsigned:
		return Bool(a.Cmp(b, signed) < 0)
	case op.IntCompareLessOrEqualSigned, op.IntCompareLessOrEqualUnsigned:
		return Bool(a.Cmp(b, signed) <= 0)
	case op.IntCompareGreaterSigned, op.IntCompareGreaterUnsigned:
		return Bool(a.Cmp(b, signed) > 0)
	case op.IntCompareGreaterOrEqualSigned, op.IntCompareGreaterOrEqualUnsigned:
		return Bool(a.Cmp(b, signed) >= 0)
	case op.IntCompareEqual:
		sameSize(a, b)
		return Bool(a.Equal(b))
	case op.IntCompareDifferent:
		sameSize(a, b)
		return Bool(!a.Equal(b))

	case op.IntMinSigned, op.IntMinUnsigned:
		return a.Min(b, signed)
	case op.IntMaxSigned, op.IntMaxUnsigned:
		return a.Max(b, signed)
	case op.IntPlusSigned, op.IntPlusUnsigned:
		return a.Add(b, signed, st)
	case op.IntMinusSigned, op.IntMinusUnsigned:
		return a.Sub(b, signed, st)
	case op.IntTimesSigned, op.IntTimesUnsigned:
		return a.Mul(b, signed, st)
	case op.IntDivideSigned, op.IntDivideUnsigned:
		return a.Div(b, signed, st)
	case op.IntModuloSigned, op.IntModuloUnsigned:
		return a.Rem(b, signed, st)
	case op.IntLeftShift:
		return a.Shl(b, st)
	case op.IntLogicalRightShift:
		return a.LShr(b)
	case op.IntArithmeticRightShift:
		return a.AShr(b)
	case op.IntLeftRotate:
		return a.Rotl(b)
	case op.IntRightRotate:
		return a.Rotr(b)
	case op.IntConcat:
		return a.Concat(b)
	case op.IntBitSet:
		return a.SetBits(o.Low, o.High, b)
	default:
		panic(fmt.Sprintf("arith: unhandled integer operation %s", o))
	}
}

func applyFloat(o op.Operation, fs []Float, st *Status) Scalar {
	x := fs[0]
	var y Float
	if len(fs) > 1 {
		y = fs[1]
	}
	switch o.Kind {
	case op.FloatCastFloat:
		return x.Convert(OpFormat(o), st)
	case op.FloatCastIntSigned, op.FloatCastIntUnsigned:
		return x.ToInt(o.NewSize, o.IsSigned(), st)
	case op.FloatOpposite:
		return x.Neg()
	case op.FloatAbs:
		return x.Abs()
	case op.FloatIsNaN:
		return Bool(x.IsNaN())
	case op.FloatIsQNaN:
		return Bool(x.IsQNaN())
	case op.FloatIsSNaN:
		return Bool(x.IsSNaN())
	case op.FloatIsInftyExponent:
		return Bool(x.IsInftyExponent())
	case op.FloatIsZeroExponent:
		return Bool(x.IsZeroExponent())
	case op.FloatIsPositive:
		return Bool(x.IsPositive())
	case op.FloatIsNegative:
		return Bool(x.IsNegative())

	case op.FloatCompareLess, op.FloatCompareLessOrEqual, op.FloatCompareEqual,
		op.FloatCompareDifferent, op.FloatCompareGreaterOrEqual, op.FloatCompareGreater:
		return Bool(compareFloat(o.Kind, x, y, st))

	case op.FloatPlus:
		return x.Add(y, st)
	case op.FloatMinus:
		return x.Sub(y, st)
	case op.FloatTimes:
		return x.Mul(y, st)
	case op.FloatDivide:
		return x.Quo(y, st)
	case op.FloatMin:
		return x.Min(y, st)
	case op.FloatMax:
		return x.Max(y, st)

	case op.FloatMultAdd:
		return x.FMA(y, fs[2], false, false, st)
	case op.FloatMultSub:
		return x.FMA(y, fs[2], false, true, st)
	case op.FloatNegMultAdd:
		return x.FMA(y, fs[2], true, false, st)
	case op.FloatNegMultSub:
		return x.FMA(y, fs[2], true, true, st)
	default:
		panic(fmt.Sprintf("arith: unhandled float operation %s", o))
	}
}

// compareFloat evaluates a float comparison. Unordered operands make every
// comparison false except different. Ordered comparisons on NaNs, and any
// comparison on a signaling NaN, raise the invalid flag.
func compareFloat(k op.Kind, x, y Float, st *Status) bool {
	c, ordered := x.Cmp(y)
	if !ordered {
		equality := k == op.FloatCompareEqual || k == op.FloatCompareDifferent
		if !equality || x.IsSNaN() || y.IsSNaN() {
			st.absorbFloat(FlagInvalid, false)
		}
		return k == op.FloatCompareDifferent
	}
	switch k {
	case op.FloatCompareLess:
		return c < 0
	case op.FloatCompareLessOrEqual:
		return c <= 0
	case op.FloatCompareEqual:
		return c == 0
	case op.FloatCompareDifferent:
		return c != 0
	case op.FloatCompareGreaterOrEqual:
		return c >= 0
	default:
		return c > 0
	}
}
