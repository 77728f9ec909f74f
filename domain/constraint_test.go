package domain

import (
	"math/big"
	"testing"

	"honnef.co/go/absval/arith"
	"honnef.co/go/absval/op"
)

func u16range(lo, hi int64) Value {
	return NewInterval(NewConstant(big.NewInt(lo), 16, false), NewConstant(big.NewInt(hi), 16, false), false, false)
}

func s16range(lo, hi int64) Value {
	return NewInterval(NewConstant(big.NewInt(lo), 16, true), NewConstant(big.NewInt(hi), 16, true), true, false)
}

// byteMembers returns the 8-bit integers v contains.
func byteMembers(v Value, env *Env) []int64 {
	var out []int64
	for i := int64(0); i < 256; i++ {
		if Contain(v, u8(i), env) {
			out = append(out, i)
		}
	}
	return out
}

var (
	byteOperands = []Value{
		u8range(3, 60),
		u8range(100, 200),
		NewInterval(s8(-10), s8(10), true, false),
		NewTop(IntType(8)),
		NewDisjunction(IntType(8), u8(0), u8(127), u8(128), u8range(250, 255)),
	}
	byteResults = []Value{
		u8range(20, 30),
		u8range(250, 255),
		NewInterval(s8(-3), s8(3), true, false),
		NewDisjunction(IntType(8), u8(0), u8(128)),
	}
	wordResults = []Value{
		u16range(0, 100),
		u16range(200, 300),
		u16range(65500, 65535),
		s16range(-100, 50),
	}
	bitResults = []Value{NewBool(true), NewBool(false)}
)

var unaryConstraintTests = []struct {
	o       op.Operation
	results []Value
}{
	{op.Make(op.IntNextUnsigned), byteResults},
	{op.Make(op.IntNextSigned), byteResults},
	{op.Make(op.IntPrevUnsigned), byteResults},
	{op.Make(op.IntPrevSigned), byteResults},
	{op.Make(op.IntOppositeUnsigned), byteResults},
	{op.Make(op.IntOppositeSigned), byteResults},
	{op.Make(op.IntBitNegate), byteResults},
	{op.Sized(op.IntExtendZero, 16), wordResults},
	{op.Sized(op.IntExtendSign, 16), wordResults},
	{op.Make(op.IntCastBit), bitResults},
}

// Backward refinement of a unary operation keeps every operand whose image
// lies in the result.
func TestConstraintUnarySoundness(t *testing.T) {
	env := NewConstraintEnv(DefaultPolicy())
	for _, tc := range unaryConstraintTests {
		for _, x := range byteOperands {
			for _, r := range tc.results {
				v := Clone(x)
				constrain(t, env, &v, tc.o, r)
				for _, a := range byteMembers(x, &env.Env) {
					var st arith.Status
					c, _ := arith.Apply(tc.o, []arith.Scalar{arith.FromInt64(a, 8)}, &st)
					if !Contain(r, NewScalar(c), &env.Env) {
						continue
					}
					if env.IsEmpty() {
						t.Errorf("%s(%s) in %s: no solution, but %d is one", tc.o, x, r, a)
						break
					}
					if !Contain(v, u8(a), &env.Env) {
						t.Errorf("%s(%s) in %s refined the operand to %s, losing %d", tc.o, x, r, str(v), a)
					}
				}
			}
		}
	}
}

var binaryConstraintTests = []struct {
	k       op.Kind
	results []Value
}{
	{op.IntPlusUnsigned, byteResults},
	{op.IntPlusSigned, byteResults},
	{op.IntMinusUnsigned, byteResults},
	{op.IntMinusSigned, byteResults},
	{op.IntXor, byteResults},
	{op.IntCompareLessSigned, bitResults},
	{op.IntCompareLessUnsigned, bitResults},
	{op.IntCompareLessOrEqualSigned, bitResults},
	{op.IntCompareGreaterUnsigned, bitResults},
	{op.IntCompareGreaterOrEqualSigned, bitResults},
	{op.IntCompareEqual, bitResults},
	{op.IntCompareDifferent, bitResults},
}

var byteOperandPairs = [][2]Value{
	{u8range(3, 60), u8range(50, 120)},
	{u8range(200, 255), u8range(0, 80)},
	{NewInterval(s8(-20), s8(20), true, false), NewInterval(s8(-5), s8(40), true, false)},
}

// Backward refinement of a binary operation on two ranges keeps every pair
// of operands whose image lies in the result.
func TestConstraintRangesSoundness(t *testing.T) {
	env := NewConstraintEnv(DefaultPolicy())
	for _, tc := range binaryConstraintTests {
		o := op.Make(tc.k)
		for _, xy := range byteOperandPairs {
			xs, ys := byteMembers(xy[0], &env.Env), byteMembers(xy[1], &env.Env)
			for _, r := range tc.results {
				v := Clone(xy[0])
				rest := constrain(t, env, &v, o, r, Clone(xy[1]))
				w := rest[0]
				keptX, keptY := map[int64]bool{}, map[int64]bool{}
				for _, a := range xs {
					for _, b := range ys {
						var st arith.Status
						c, _ := arith.Apply(o, []arith.Scalar{arith.FromInt64(a, 8), arith.FromInt64(b, 8)}, &st)
						if Contain(r, NewScalar(c), &env.Env) {
							keptX[a], keptY[b] = true, true
						}
					}
				}
				if len(keptX) > 0 && env.IsEmpty() {
					t.Errorf("%s(%s, %s) in %s: no solution", o, xy[0], xy[1], r)
					continue
				}
				for a := range keptX {
					if !Contain(v, u8(a), &env.Env) {
						t.Errorf("%s(%s, %s) in %s refined x to %s, losing %d", o, xy[0], xy[1], r, str(v), a)
					}
				}
				for b := range keptY {
					if !Contain(w, u8(b), &env.Env) {
						t.Errorf("%s(%s, %s) in %s refined y to %s, losing %d", o, xy[0], xy[1], r, str(w), b)
					}
				}
			}
		}
	}
}

// tiny is a 6-bit float format, small enough to enumerate. It has
// subnormals, both zeros, both infinities and both kinds of NaN.
var tiny = arith.Format{Exponent: 3, Mantissa: 2}

func tf(x float64) Value { return NewFloatConstant(x, tiny.Exponent, tiny.Mantissa) }

func tfrange(lo, hi float64) Value { return NewInterval(tf(lo), tf(hi), false, false) }

func tinyFloats() []arith.Float {
	var out []arith.Float
	for i := uint64(0); i < 1<<tiny.Size(); i++ {
		out = append(out, arith.FloatFromBits(arith.FromUint64(i, tiny.Size()), tiny))
	}
	return out
}

// floatMembers returns the tiny floats v contains.
func floatMembers(v Value, env *Env) []arith.Float {
	var out []arith.Float
	for _, f := range tinyFloats() {
		if Contain(v, NewScalar(f), env) {
			out = append(out, f)
		}
	}
	return out
}

var (
	tinyType      = FloatType(tiny)
	floatOperands = []Value{
		NewTop(tinyType),
		tfrange(-1, 2),
		// subnormals and both zeros
		NewInterval(tf(-0.125), tf(0.1875), false, false),
		NewInterval(NewScalar(arith.Zero(tiny, true)), NewScalar(arith.Zero(tiny, false)), false, false),
		NewInterval(NewScalar(arith.Inf(tiny, true)), tf(-0.25), false, false),
		NewInterval(tf(0.25), NewScalar(arith.Inf(tiny, false)), false, false),
		NewDisjunction(tinyType, NewScalar(arith.QNaN(tiny)), tfrange(0.5, 3)),
	}
	floatResults = []Value{
		tfrange(-1, 2),
		tfrange(0.25, 3),
		NewInterval(NewScalar(arith.Zero(tiny, true)), NewScalar(arith.Zero(tiny, false)), false, false),
		NewDisjunction(tinyType, NewScalar(arith.QNaN(tiny)), NewScalar(arith.SNaN(tiny)), NewScalar(arith.Inf(tiny, true))),
	}
)

var floatUnaryConstraintTests = []struct {
	k       op.Kind
	results []Value
}{
	{op.FloatOpposite, floatResults},
	{op.FloatAbs, floatResults},
	{op.FloatIsNaN, bitResults},
	{op.FloatIsQNaN, bitResults},
	{op.FloatIsSNaN, bitResults},
	{op.FloatIsInftyExponent, bitResults},
	{op.FloatIsPositive, bitResults},
	{op.FloatIsNegative, bitResults},
}

func tinyStatus() *arith.Status {
	st := &arith.Status{}
	st.Float.RoundingParams = arith.DefaultRounding()
	return st
}

func TestConstraintFloatUnarySoundness(t *testing.T) {
	env := NewConstraintEnv(DefaultPolicy())
	for _, tc := range floatUnaryConstraintTests {
		o := op.Make(tc.k)
		for _, x := range floatOperands {
			for _, r := range tc.results {
				v := Clone(x)
				constrain(t, env, &v, o, r)
				for _, a := range floatMembers(x, &env.Env) {
					c, _ := arith.Apply(o, []arith.Scalar{a}, tinyStatus())
					if !Contain(r, NewScalar(c), &env.Env) {
						continue
					}
					if env.IsEmpty() {
						t.Errorf("%s(%s) in %s: no solution, but %s is one", o, x, r, a)
						break
					}
					if !Contain(v, NewScalar(a), &env.Env) {
						t.Errorf("%s(%s) in %s refined the operand to %s, losing %s", o, x, r, str(v), a)
					}
				}
			}
		}
	}
}

var floatCompareKinds = []op.Kind{
	op.FloatCompareLess,
	op.FloatCompareLessOrEqual,
	op.FloatCompareGreater,
	op.FloatCompareGreaterOrEqual,
	op.FloatCompareEqual,
	op.FloatCompareDifferent,
}

var floatOperandPairs = [][2]Value{
	{floatOperands[1], tfrange(0.5, 3)},
	{floatOperands[0], floatOperands[3]},
	{floatOperands[4], floatOperands[6]},
	{floatOperands[2], floatOperands[2]},
	{floatOperands[5], floatOperands[0]},
}

func TestConstraintFloatCompareSoundness(t *testing.T) {
	env := NewConstraintEnv(DefaultPolicy())
	for _, k := range floatCompareKinds {
		o := op.Make(k)
		for _, xy := range floatOperandPairs {
			xs, ys := floatMembers(xy[0], &env.Env), floatMembers(xy[1], &env.Env)
			for _, r := range bitResults {
				v := Clone(xy[0])
				rest := constrain(t, env, &v, o, r, Clone(xy[1]))
				w := rest[0]
				var keptX, keptY []arith.Float
				for _, a := range xs {
					for _, b := range ys {
						c, _ := arith.Apply(o, []arith.Scalar{a, b}, tinyStatus())
						if Contain(r, NewScalar(c), &env.Env) {
							keptX = append(keptX, a)
							keptY = append(keptY, b)
						}
					}
				}
				if len(keptX) > 0 && env.IsEmpty() {
					t.Errorf("%s(%s, %s) is %s: no solution", o, xy[0], xy[1], r)
					continue
				}
				for i := range keptX {
					if !Contain(v, NewScalar(keptX[i]), &env.Env) {
						t.Errorf("%s(%s, %s) is %s: refined x to %s, losing %s", o, xy[0], xy[1], r, str(v), keptX[i])
					}
					if !Contain(w, NewScalar(keptY[i]), &env.Env) {
						t.Errorf("%s(%s, %s) is %s: refined y to %s, losing %s", o, xy[0], xy[1], r, str(w), keptY[i])
					}
				}
			}
		}
	}
}
