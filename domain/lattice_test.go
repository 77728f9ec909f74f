package domain

import (
	"testing"

	"honnef.co/go/absval/arith"
	"honnef.co/go/absval/op"
)

func TestMergeWith(t *testing.T) {
	env := NewEnv(DefaultPolicy())
	var v Value
	if !MergeWith(&v, u8(1), env) || str(v) != "1" {
		t.Fatalf("merging into no value == %s", str(v))
	}
	if !MergeWith(&v, u8(5), env) || str(v) != "{1, 5}" {
		t.Errorf("merge of 1 and 5 == %s", str(v))
	}
	if MergeWith(&v, u8(5), env) {
		t.Errorf("merging an included value reported a change: %s", str(v))
	}
	if MergeWith(&v, nil, env) {
		t.Error("merging no value reported a change")
	}
	if !MergeWith(&v, NewGuard(NewTop(BitType), u8(2), u8(9)), env) || str(v) != "{5, 9 | [1, 2]}" {
		t.Errorf("merge with a guard == %s", str(v))
	}
}

func TestMergeIdempotent(t *testing.T) {
	env := NewEnv(DefaultPolicy())
	for _, x := range []Value{u8(3), u8range(4, 9), NewDisjunction(IntType(8), u8(1), u8(200)), NewTop(IntType(8))} {
		v := Clone(x)
		if MergeWith(&v, x, env) {
			t.Errorf("merging %s with itself reported a change", x)
		}
		if !Equal(v, x) {
			t.Errorf("merging %s with itself == %s", x, v)
		}
	}
}

func TestMergeThreshold(t *testing.T) {
	p := DefaultPolicy()
	p.DisjunctionThreshold = 2
	env := NewEnv(p)
	v := u8(1)
	MergeWith(&v, u8(5), env)
	MergeWith(&v, u8(9), env)
	if str(v) != "[1, 9]" {
		t.Errorf("merge past the threshold == %s", str(v))
	}
	// The narrower of the signed and unsigned hulls is kept.
	v = u8(250)
	MergeWith(&v, u8(2), env)
	MergeWith(&v, u8(4), env)
	if str(v) != "[-6, 4]" {
		t.Errorf("wrapping merge == %s", str(v))
	}
}

func TestCreationModes(t *testing.T) {
	env := NewEnv(DefaultPolicy())
	merge := func() string {
		v := u8(1)
		MergeWith(&v, u8(5), env)
		return str(v)
	}
	func() {
		defer env.SaveMode().Restore()
		env.SetMode(CreateInterval)
		if got := merge(); got != "[1, 5]" {
			t.Errorf("interval mode merge == %s", got)
		}
		env.SetMode(CreateShared)
		if got := merge(); got != "shared([1, 5])" {
			t.Errorf("shared mode merge == %s", got)
		}
	}()
	if env.Mode() != CreateExact {
		t.Errorf("restored mode == %s", env.Mode())
	}
	if got := merge(); got != "{1, 5}" {
		t.Errorf("exact mode merge == %s", got)
	}
}

func TestIntersectWith(t *testing.T) {
	env := NewEnv(DefaultPolicy())
	v := u8range(0, 100)
	IntersectWith(&v, u8range(50, 200), env)
	if str(v) != "[50, 100]" || env.IsEmpty() {
		t.Errorf("meet of [0, 100] and [50, 200] == %s", str(v))
	}

	v = u8(1)
	IntersectWith(&v, u8(2), env)
	if !env.IsEmpty() || str(v) != "1" {
		t.Errorf("disjoint meet == %s, empty %t", str(v), env.IsEmpty())
	}

	env.Clear()
	v = NewGuard(NewTop(BitType), u8range(0, 10), u8range(20, 30))
	IntersectWith(&v, u8range(5, 25), env)
	if str(v) != "(top ? [5, 10] : [20, 25])" {
		t.Errorf("meet of a guard == %s", str(v))
	}

	v = NewGuard(NewTop(BitType), u8range(0, 10), u8range(20, 30))
	IntersectWith(&v, u8range(15, 25), env)
	if g, ok := v.(*Guard); !ok || g.State() != CollapsedElse {
		t.Errorf("meet excluding a branch == %s", str(v))
	}
}

func TestIntersectNil(t *testing.T) {
	env := NewEnv(DefaultPolicy())
	v := u8range(0, 10)
	IntersectWith(&v, nil, env)
	if !env.IsEmpty() || str(v) != "[0, 10]" {
		t.Errorf("meet with nil == %s, empty %t", str(v), env.IsEmpty())
	}

	env.Clear()
	var w Value
	IntersectWith(&w, u8(1), env)
	if !env.IsEmpty() || w != nil {
		t.Errorf("meet of nil == %s, empty %t", str(w), env.IsEmpty())
	}

	// Merging with nil changes nothing.
	env.Clear()
	if MergeWith(&v, nil, env) || str(v) != "[0, 10]" {
		t.Errorf("merge with nil == %s", str(v))
	}
}

// A meet never loses values of both operands, and never adds values.
func TestIntersectSound(t *testing.T) {
	env := NewEnv(DefaultPolicy())
	values := []Value{
		u8range(0, 100), u8range(90, 250), NewDisjunction(IntType(8), u8(3), u8(95), u8range(120, 130)),
		NewInterval(s8(-10), s8(10), true, false), NewTop(IntType(8)),
	}
	for _, a := range values {
		for _, b := range values {
			env.Clear()
			v := Clone(a)
			IntersectWith(&v, b, env)
			for i := int64(0); i < 256; i++ {
				c := u8(i)
				both := Contain(a, c, env) && Contain(b, c, env)
				if env.IsEmpty() {
					if both {
						t.Errorf("meet of %s and %s is empty but both contain %d", a, b, i)
					}
					continue
				}
				if got := Contain(v, c, env); got != both {
					t.Errorf("meet of %s and %s == %s; contains %d: %t", a, b, v, i, got)
				}
			}
		}
	}
}

func TestContain(t *testing.T) {
	env := NewEnv(DefaultPolicy())
	tests := []struct {
		v, other Value
		out      bool
	}{
		{u8range(0, 10), u8(5), true},
		{u8(5), u8range(0, 10), false},
		{NewTop(IntType(8)), u8range(0, 10), true},
		{u8range(0, 10), NewGuard(NewTop(BitType), u8(1), u8(11)), false},
		{u8range(0, 10), nil, true},
		{nil, u8(1), false},
	}
	for _, tc := range tests {
		if got := Contain(tc.v, tc.other, env); got != tc.out {
			t.Errorf("Contain(%s, %s) == %t, expected %t", str(tc.v), str(tc.other), got, tc.out)
		}
	}
}

func constrain(t *testing.T, env *ConstraintEnv, v *Value, o op.Operation, result Value, args ...Value) []Value {
	t.Helper()
	env.Clear()
	if len(args) > 0 {
		env.AbsorbFirstArgument(&args[0])
	}
	if len(args) > 1 {
		env.AbsorbSecondArgument(&args[1])
	}
	if !Constraint(v, o, result, env) {
		t.Fatalf("%s has no backward transfer", o)
	}
	var out []Value
	if o.Arity() > 1 {
		out = append(out, env.TakeFirstArgument())
	}
	if o.Arity() > 2 {
		out = append(out, env.TakeSecondArgument())
	}
	return out
}

var constraintTests = []struct {
	name   string
	o      op.Operation
	x      Value
	args   []Value
	result Value
	out    string
	rest   []string
}{
	{"less than constant", op.Make(op.IntCompareLessUnsigned), u8range(0, 100), []Value{u8(10)}, NewBool(true), "[0, 9]", []string{"10"}},
	{"not less than constant", op.Make(op.IntCompareLessUnsigned), u8range(0, 100), []Value{u8(10)}, NewBool(false), "[10, 100]", []string{"10"}},
	{"greater signed", op.Make(op.IntCompareGreaterSigned), NewInterval(s8(-50), s8(50), true, false), []Value{s8(0)}, NewBool(true), "[1, 50]", []string{"0"}},
	{"plus", op.Make(op.IntPlusUnsigned), u8range(0, 100), []Value{u8(5)}, u8(20), "15", []string{"5"}},
	{"minus", op.Make(op.IntMinusUnsigned), u8range(0, 100), []Value{u8range(0, 100)}, u8range(95, 100), "[95, 100]", []string{"[0, 5]"}},
	{"next", op.Make(op.IntNextUnsigned), u8range(0, 100), nil, u8range(50, 60), "[49, 59]", nil},
	{"equal", op.Make(op.IntCompareEqual), u8range(0, 100), []Value{u8range(50, 200)}, NewBool(true), "[50, 100]", []string{"[50, 100]"}},
	{"pointwise equal", op.Make(op.IntCompareEqual), NewDisjunction(IntType(8), u8(1), u8(5), u8(9)), []Value{u8(5)}, NewBool(true), "5", []string{"5"}},
	{"cast bit", op.Make(op.IntCastBit), u8range(0, 100), nil, NewBool(false), "0", nil},
	{"float less", op.Make(op.FloatCompareLess),
		NewInterval(NewFloatConstant(0, 8, 23), NewFloatConstant(10, 8, 23), false, false),
		[]Value{NewFloatConstant(5, 8, 23)}, NewBool(true), "[0, 4.9999995]", []string{"5"}},
}

func TestConstraint(t *testing.T) {
	env := NewConstraintEnv(DefaultPolicy())
	for _, tc := range constraintTests {
		v := Clone(tc.x)
		args := make([]Value, len(tc.args))
		for i, a := range tc.args {
			args[i] = Clone(a)
		}
		rest := constrain(t, env, &v, tc.o, tc.result, args...)
		if env.IsEmpty() {
			t.Errorf("%s: no solution", tc.name)
			continue
		}
		if got := str(v); got != tc.out {
			t.Errorf("%s: operand == %s, expected %s", tc.name, got, tc.out)
		}
		for i, r := range rest {
			if got := str(r); got != tc.rest[i] {
				t.Errorf("%s: operand %d == %s, expected %s", tc.name, i+2, got, tc.rest[i])
			}
		}
	}
}

func TestConstraintEmpty(t *testing.T) {
	env := NewConstraintEnv(DefaultPolicy())
	v := u8range(0, 100)
	constrain(t, env, &v, op.Make(op.IntCompareLessUnsigned), NewBool(true), u8(0))
	if !env.IsEmpty() {
		t.Errorf("x < 0 has a solution: %s", str(v))
	}
	if str(v) != "[0, 100]" {
		t.Errorf("unsolvable constraint changed the operand to %s", str(v))
	}
}

func TestConstraintUnsupported(t *testing.T) {
	env := NewConstraintEnv(DefaultPolicy())
	v := Value(NewFloatConstant(1, 11, 52))
	if Constraint(&v, op.Make(op.FloatSin), NewFloatConstant(0.5, 11, 52), env) {
		t.Error("sin has a backward transfer")
	}
	mustPanic(t, "mismatched result type", func() {
		Constraint(&v, op.Make(op.FloatOpposite), u8(1), env)
	})
}

// Backward refinement keeps every operand that yields a value of the result.
func TestConstraintSoundness(t *testing.T) {
	tests := []struct {
		k      op.Kind
		result Value
	}{
		{op.IntPlusUnsigned, u8range(20, 30)},
		{op.IntPlusSigned, u8range(250, 255)},
		{op.IntMinusUnsigned, u8range(0, 10)},
		{op.IntXor, u8range(16, 31)},
		{op.IntCompareLessSigned, NewBool(true)},
		{op.IntCompareLessOrEqualUnsigned, NewBool(false)},
		{op.IntCompareGreaterSigned, NewBool(false)},
		{op.IntCompareDifferent, NewBool(true)},
		{op.IntCompareEqual, NewBool(false)},
	}
	env := NewConstraintEnv(DefaultPolicy())
	for _, tc := range tests {
		o := op.Make(tc.k)
		for _, y := range []int64{7, 200} {
			v := u8range(3, 60)
			constrain(t, env, &v, o, tc.result, u8(y))
			for x := int64(3); x <= 60; x++ {
				var st arith.Status
				r, _ := arith.Apply(o, []arith.Scalar{arith.FromInt64(x, 8), arith.FromInt64(y, 8)}, &st)
				if !Contain(tc.result, NewScalar(r), &env.Env) {
					continue
				}
				if env.IsEmpty() {
					t.Errorf("%s(x, %d) in %s: no solution, but x = %d is one", o, y, tc.result, x)
					break
				}
				if !Contain(v, u8(x), &env.Env) {
					t.Errorf("%s(x, %d) in %s refined x to %s, losing %d", o, y, tc.result, str(v), x)
				}
			}
		}
	}
}

func TestLatticeRequirements(t *testing.T) {
	env := NewConstraintEnv(DefaultPolicy())
	v := Value(NewLattice(u8range(0, 100)))
	l := v.(*Lattice)
	if l.Required != RequireIntervalConstantBounds {
		t.Fatalf("initial requirement == %s", l.Required)
	}

	constrain(t, env, &v, op.Make(op.IntCompareLessUnsigned), NewBool(true), u8(10))
	if !env.IsUnstable() {
		t.Error("raising the requirement did not mark the environment unstable")
	}
	if str(v) != "lattice<constant|interval-constant-bounds>([0, 9])" {
		t.Errorf("refined lattice == %s", str(v))
	}

	before := v.(*Lattice).Required
	constrain(t, env, &v, op.Make(op.IntCompareLessUnsigned), NewBool(true), u8(10))
	if env.IsUnstable() {
		t.Error("an unchanged requirement marked the environment unstable")
	}
	if v.(*Lattice).Required != before {
		t.Errorf("requirement changed from %s to %s", before, v.(*Lattice).Required)
	}

	constrain(t, env, &v, op.Make(op.IntPlusUnsigned), NewTop(IntType(8)), u8(1))
	if !v.(*Lattice).Complete {
		t.Errorf("a top result did not complete the lattice: %s", str(v))
	}
	constrain(t, env, &v, op.Make(op.IntPlusUnsigned), NewDisjunction(IntType(8), u8(1), u8(3)), u8(1))
	if env.IsUnstable() {
		t.Error("a complete lattice became unstable")
	}
}

func TestLatticeApplyAndMerge(t *testing.T) {
	env := NewEnv(DefaultPolicy())
	v := Value(NewLattice(u8(1)))
	r := apply(t, env, op.Make(op.IntNextUnsigned), v)
	if str(r) != "lattice<constant>(2)" {
		t.Errorf("next of a lattice == %s", str(r))
	}
	if !MergeWith(&v, u8(2), env) {
		t.Error("merging a new value into a lattice reported no change")
	}
	if str(v) != "lattice<constant|interval-constant-bounds>([1, 2])" {
		t.Errorf("merged lattice == %s", str(v))
	}
	l := v.(*Lattice)
	l.Reset()
	if l.Required != RequireIntervalConstantBounds {
		t.Errorf("reset requirement == %s", l.Required)
	}
}
