package domain

import (
	"testing"

	"honnef.co/go/absval/arith"
	"honnef.co/go/absval/op"
)

func apply(t *testing.T, env *Env, o op.Operation, args ...Value) Value {
	t.Helper()
	env.Clear()
	if len(args) > 1 {
		env.SetFirstArgument(args[1])
	}
	if len(args) > 2 {
		env.SetSecondArgument(args[2])
	}
	if !Apply(args[0], o, env) {
		t.Fatalf("%s is not supported", o)
	}
	return env.TakeResult()
}

func TestApplyNextOverflow(t *testing.T) {
	env := NewEnv(DefaultPolicy())
	r := apply(t, env, op.Make(op.IntNextUnsigned), u8(255))
	if str(r) != "0" {
		t.Errorf("next_unsigned(255) == %s, expected 0", str(r))
	}
	if env.ErrorCode() != arith.PositiveOverflow {
		t.Errorf("next_unsigned(255) raised %s", env.ErrorCode())
	}
	if env.Verdict() != VerdictMust {
		t.Errorf("next_unsigned(255) verdict == %s, expected must", env.Verdict())
	}

	p := DefaultPolicy()
	p.StopOnError = true
	env = NewEnv(p)
	r = apply(t, env, op.Make(op.IntNextUnsigned), u8(255))
	if !env.IsEmpty() || r != nil {
		t.Errorf("next_unsigned(255) under StopOnError == %s, empty %t", str(r), env.IsEmpty())
	}
}

func TestApplyOpposite(t *testing.T) {
	env := NewEnv(DefaultPolicy())
	r := apply(t, env, op.Make(op.IntOppositeSigned), u8(0x80))
	if str(r) != "128" || env.ErrorCode() != arith.PositiveOverflow {
		t.Errorf("opposite_signed(0x80) == %s, %s", str(r), env.ErrorCode())
	}
	r = apply(t, env, op.Make(op.IntOppositeUnsigned), u8(0x80))
	if str(r) != "128" || env.ErrorCode() != 0 || env.Verdict() != VerdictExact {
		t.Errorf("opposite_unsigned(0x80) == %s, %s, %s", str(r), env.ErrorCode(), env.Verdict())
	}
}

var applyTests = []struct {
	name    string
	o       op.Operation
	args    []Value
	out     string
	errors  arith.ErrorCode
	verdict Verdict
	// stop runs the operation under StopOnError.
	stop bool
}{
	{"interval plus constant", op.Make(op.IntPlusUnsigned), []Value{u8range(0, 10), u8(5)}, "[5, 15]", 0, VerdictExact, false},
	{"disjunction plus constant", op.Make(op.IntPlusUnsigned), []Value{NewDisjunction(IntType(8), u8(2), u8(5)), u8(10)}, "{12, 15}", 0, VerdictExact, false},
	{"interval plus interval", op.Make(op.IntPlusUnsigned), []Value{u8range(0, 100), u8range(0, 100)}, "[0, 200]", 0, VerdictExact, false},
	{"partial overflow", op.Make(op.IntPlusUnsigned), []Value{u8range(200, 250), u8(10)}, "[-46, 4]", arith.PositiveOverflow, VerdictMay, false},
	{"certain overflow", op.Make(op.IntPlusSigned), []Value{NewInterval(s8(100), s8(120), true, false), s8(100)}, "[200, 220]", arith.PositiveOverflow, VerdictMust, false},
	{"division by possible zero", op.Make(op.IntDivideUnsigned), []Value{u8range(100, 200), u8range(0, 50)}, "{0 | [2, 200]}", arith.DivisionByZero, VerdictMay, false},
	{"comparison decided", op.Make(op.IntCompareLessUnsigned), []Value{u8range(0, 100), u8range(150, 200)}, "1", 0, VerdictExact, false},
	{"comparison undecided", op.Make(op.IntCompareLessSigned), []Value{u8range(0, 100), u8range(50, 200)}, "top", 0, VerdictExact, false},
	{"cast bit", op.Make(op.IntCastBit), []Value{u8range(1, 100)}, "1", 0, VerdictExact, false},
	{"extend sign", op.Sized(op.IntExtendSign, 16), []Value{u8(0x80)}, "65408", 0, VerdictExact, false},
	{"reduce", op.Ranged(op.IntReduce, 4, 7), []Value{u8(0xab)}, "10", 0, VerdictExact, false},
	{"guard branches", op.Make(op.IntNextUnsigned), []Value{NewGuard(NewTop(BitType), u8(1), u8(2))}, "(top ? 2 : 3)", 0, VerdictExact, false},
	{"guard branch overflows", op.Make(op.IntNextUnsigned), []Value{NewGuard(NewTop(BitType), u8(255), u8(3))}, "(top ? 0 : 4)", arith.PositiveOverflow, VerdictMay, false},
	{"guard branch stops", op.Make(op.IntNextUnsigned), []Value{NewGuard(NewTop(BitType), u8(255), u8(3))}, "(top ? _ : 4)", arith.PositiveOverflow, VerdictMay, true},
	{"disjunction element stops", op.Make(op.IntNextUnsigned), []Value{NewDisjunction(IntType(8), u8(3), u8(255))}, "4", arith.PositiveOverflow, VerdictMay, true},
	{"guard both branches stop", op.Make(op.IntNextUnsigned), []Value{NewGuard(NewTop(BitType), u8(255), u8(255))}, "_", arith.PositiveOverflow, VerdictMust, true},
	{"float plus", op.Make(op.FloatPlus), []Value{
		NewInterval(NewFloatConstant(1, 8, 23), NewFloatConstant(2, 8, 23), false, false),
		NewInterval(NewFloatConstant(3, 8, 23), NewFloatConstant(4, 8, 23), false, false),
	}, "[4, 6]", 0, VerdictExact, false},
	{"float is nan", op.Make(op.FloatIsNaN), []Value{
		NewInterval(NewFloatConstant(1, 8, 23), NewFloatConstant(2, 8, 23), false, false),
	}, "0", 0, VerdictExact, false},
	{"float opposite", op.Make(op.FloatOpposite), []Value{NewFloatConstant(1.5, 11, 52)}, "-1.5", 0, VerdictExact, false},
}

func TestApply(t *testing.T) {
	stop := DefaultPolicy()
	stop.StopOnError = true
	for _, tc := range applyTests {
		env := NewEnv(DefaultPolicy())
		if tc.stop {
			env = NewEnv(stop)
		}
		r := apply(t, env, tc.o, tc.args...)
		// Only an operation without any result may mark the environment empty.
		if env.IsEmpty() != (r == nil) {
			t.Errorf("%s: empty == %t with result %s", tc.name, env.IsEmpty(), str(r))
		}
		if got := str(r); got != tc.out {
			t.Errorf("%s: result == %s, expected %s", tc.name, got, tc.out)
		}
		if env.ErrorCode() != tc.errors {
			t.Errorf("%s: errors == %s, expected %s", tc.name, env.ErrorCode(), tc.errors)
		}
		if env.Verdict() != tc.verdict {
			t.Errorf("%s: verdict == %s, expected %s", tc.name, env.Verdict(), tc.verdict)
		}
	}
}

func TestApplyStopOnError(t *testing.T) {
	p := DefaultPolicy()
	p.StopOnError = true
	env := NewEnv(p)
	r := apply(t, env, op.Make(op.IntPlusUnsigned), u8range(200, 250), u8(10))
	if str(r) != "[210, 255]" || env.IsEmpty() {
		t.Errorf("partial overflow under StopOnError == %s, empty %t", str(r), env.IsEmpty())
	}
}

func TestApplyUnsupported(t *testing.T) {
	env := NewEnv(DefaultPolicy())
	if Apply(NewFloatConstant(1, 11, 52), op.Make(op.FloatSin), env) {
		t.Error("sin is supported")
	}
	if r := env.TakeResult(); str(r) != "top" {
		t.Errorf("sin(1) == %s, expected top", str(r))
	}
	if env.Verdict() != VerdictMay {
		t.Errorf("sin(1) verdict == %s", env.Verdict())
	}
}

func TestApplyMissingOperand(t *testing.T) {
	env := NewEnv(DefaultPolicy())
	mustPanic(t, "plus without second operand", func() {
		Apply(u8(1), op.Make(op.IntPlusUnsigned), env)
	})
}

func TestApplyAssign(t *testing.T) {
	env := NewEnv(DefaultPolicy())
	v := u8range(1, 3)
	if !ApplyAssign(&v, op.Make(op.IntNextUnsigned), env) {
		t.Fatal("ApplyAssign failed")
	}
	if str(v) != "[2, 4]" || env.HasResult() {
		t.Errorf("ApplyAssign result == %s, pending result %t", str(v), env.HasResult())
	}
}

func TestFloatDivisionByRangeWithZero(t *testing.T) {
	env := NewEnv(DefaultPolicy())
	one, two := NewFloatConstant(1, 8, 23), NewFloatConstant(2, 8, 23)
	divisor := NewInterval(NewFloatConstant(-1, 8, 23), NewFloatConstant(1, 8, 23), false, false)
	r := apply(t, env, op.Make(op.FloatDivide), NewInterval(one, two, false, false), divisor)
	if !env.Has(arith.DivisionByZero) {
		t.Errorf("division by a range with zero raised %s", env.ErrorCode())
	}
	for _, x := range []arith.Float{arith.Inf(arith.Binary32, false), arith.Inf(arith.Binary32, true), arith.Zero(arith.Binary32, false)} {
		if !Contain(r, NewScalar(x), env) {
			t.Errorf("%s does not contain %s", r, x)
		}
	}
	if env.Verdict() != VerdictMay {
		t.Errorf("verdict == %s, expected may", env.Verdict())
	}
}

func TestFloatRangeRounding(t *testing.T) {
	env := NewEnv(DefaultPolicy())
	x := NewInterval(NewFloatConstant(1, 8, 23), NewFloatConstant(2, 8, 23), false, false)
	r := apply(t, env, op.Make(op.FloatDivide), x, NewFloatConstant(3, 8, 23))
	var st arith.Status
	st.Float.RoundingParams = arith.DefaultRounding()
	three := arith.FromFloat64(3, arith.Binary32, &st)
	for _, v := range []float64{1, 1.25, 1.5, 2} {
		q := arith.FromFloat64(v, arith.Binary32, &st).Quo(three, &st)
		if !Contain(r, NewScalar(q), env) {
			t.Errorf("%s does not contain %g/3 = %s", r, v, q)
		}
	}
}

// The forward transfer contains every concrete result of its operands.
func TestApplySoundness(t *testing.T) {
	ops := []op.Kind{
		op.IntPlusUnsigned, op.IntPlusSigned, op.IntMinusUnsigned, op.IntMinusSigned,
		op.IntTimesUnsigned, op.IntTimesSigned, op.IntDivideUnsigned, op.IntDivideSigned,
		op.IntModuloUnsigned, op.IntModuloSigned, op.IntAnd, op.IntOr, op.IntXor,
		op.IntLeftShift, op.IntLogicalRightShift, op.IntArithmeticRightShift,
		op.IntMinSigned, op.IntMaxUnsigned,
		op.IntCompareLessSigned, op.IntCompareGreaterOrEqualUnsigned, op.IntCompareEqual,
	}
	operands := [][2][2]int64{
		{{3, 60}, {0, 7}},
		{{3, 60}, {250, 255}},
		{{120, 140}, {1, 40}},
	}
	env := NewEnv(DefaultPolicy())
	for _, k := range ops {
		o := op.Make(k)
		for _, ab := range operands {
			x, y := ab[0], ab[1]
			r := apply(t, env, o, u8range(x[0], x[1]), u8range(y[0], y[1]))
			for a := x[0]; a <= x[1]; a++ {
				for b := y[0]; b <= y[1]; b++ {
					var st arith.Status
					c, _ := arith.Apply(o, []arith.Scalar{arith.FromInt64(a, 8), arith.FromInt64(b, 8)}, &st)
					if !Contain(r, NewScalar(c), env) {
						t.Errorf("%s([%d, %d], [%d, %d]) == %s misses %s(%d, %d) = %s",
							o, x[0], x[1], y[0], y[1], str(r), o, a, b, c)
					}
					if st.Errors&^env.ErrorCode() != 0 {
						t.Errorf("%s(%d, %d) raises %s, not reported by the range transfer", o, a, b, st.Errors)
					}
				}
			}
		}
	}
}
