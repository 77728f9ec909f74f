package domain

import (
	"math/big"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"honnef.co/go/absval/arith"
	"honnef.co/go/absval/op"
)

func u8(x int64) Value { return NewConstant(big.NewInt(x), 8, false) }
func s8(x int64) Value { return NewConstant(big.NewInt(x), 8, true) }

func u8range(lo, hi int64) Value { return NewInterval(u8(lo), u8(hi), false, false) }

func str(v Value) string {
	if v == nil {
		return "_"
	}
	return v.String()
}

func TestDisjunctionExacts(t *testing.T) {
	d := NewDisjunction(IntType(8), u8(5), u8(2), u8(2))
	var got []string
	for _, c := range d.Exacts() {
		got = append(got, c.String())
	}
	if diff := cmp.Diff([]string{"2", "5"}, got); diff != "" {
		t.Errorf("exacts (-want +got):\n%s", diff)
	}
	if n := d.CountAtomic(); n != 2 {
		t.Errorf("CountAtomic() == %d, expected 2", n)
	}

	d.Add(NewDisjunction(IntType(8), u8(7), u8range(10, 12)))
	if got := d.String(); got != "{2, 5, 7 | [10, 12]}" {
		t.Errorf("flattened disjunction == %s", got)
	}
}

func TestNewConstantRange(t *testing.T) {
	mustPanic(t, "NewConstant(256)", func() { NewConstant(big.NewInt(256), 8, false) })
	mustPanic(t, "NewConstant(-1, unsigned)", func() { NewConstant(big.NewInt(-1), 8, false) })
	mustPanic(t, "NewConstant(128, signed)", func() { NewConstant(big.NewInt(128), 8, true) })
	if got := s8(-1).(*Constant).Scalar.(arith.BitVec).Uint64(); got != 255 {
		t.Errorf("signed -1 stored as %d", got)
	}
}

func TestNewIntervalOrder(t *testing.T) {
	mustPanic(t, "NewInterval(5, 3)", func() { u8range(5, 3) })
	mustPanic(t, "NewInterval(-1, -3, signed)", func() { NewInterval(s8(-1), s8(-3), true, false) })
	mustPanic(t, "NewInterval(2.0, 1.0)", func() {
		NewInterval(NewFloatConstant(2, 8, 23), NewFloatConstant(1, 8, 23), false, false)
	})
	// 0xff is above 1 unsigned but below it signed.
	if got := str(NewInterval(s8(-1), s8(1), true, false)); got != "[-1, 1]" {
		t.Errorf("signed interval == %s", got)
	}
	mustPanic(t, "NewInterval(0xff, 1, unsigned)", func() { NewInterval(s8(-1), s8(1), false, false) })
}

func TestGuardState(t *testing.T) {
	env := NewEnv(DefaultPolicy())
	g := NewGuard(NewTop(BitType), u8(1), u8(2))
	if g.State() != Unresolved {
		t.Fatalf("new guard state == %d", g.State())
	}
	g.SetCondition(NewBool(true), env)
	if g.State() != CollapsedThen || g.Else != nil {
		t.Errorf("guard after true condition == %s", g)
	}
	g.SetCondition(NewBool(false), env)
	if !env.IsEmpty() {
		t.Error("ruling out the last branch did not mark the environment empty")
	}
	if g.State() != CollapsedThen {
		t.Errorf("guard changed on an impossible condition: %s", g)
	}

	mustPanic(t, "NewGuard(nil, nil)", func() { NewGuard(NewTop(BitType), nil, nil) })
}

func TestQueryZeroResult(t *testing.T) {
	tests := []struct {
		in  Value
		out ZeroResult
	}{
		{NewGuard(NewTop(BitType), u8(1), nil), DefinitelyNonZero},
		{NewGuard(NewTop(BitType), u8(1), u8(0)), MaybeZero},
		{u8(0), DefinitelyZero},
		{u8range(1, 200), DefinitelyNonZero},
		{u8range(0, 3), MaybeZero},
		{NewInterval(s8(-3), s8(3), true, false), MaybeZero},
		{NewScalar(arith.Zero(arith.Binary32, true)), DefinitelyZero},
		{NewScalar(arith.QNaN(arith.Binary32)), DefinitelyNonZero},
		{NewTop(IntType(8)), MaybeZero},
	}
	env := NewEnv(DefaultPolicy())
	for _, tc := range tests {
		if got := QueryZeroResult(tc.in, env); got != tc.out {
			t.Errorf("QueryZeroResult(%s) == %s, expected %s", tc.in, got, tc.out)
		}
	}
}

func TestQueryRequired(t *testing.T) {
	tests := []struct {
		in  Value
		out RequiredTag
	}{
		{u8(1), RequireConstant},
		{NewInterval(u8(3), u8(3), false, false), RequireExact},
		{u8range(1, 3), RequireIntervalConstantBounds},
		{NewDisjunction(IntType(8), u8(1), u8(4)), RequireConstantDisjunction},
		{NewDisjunction(IntType(8), u8(1), u8range(4, 6)), RequireExactDisjunction},
		{NewDisjunction(IntType(8), u8(1)), RequireConstant},
		{NewTop(IntType(8)), RequireTop},
		{NewGuard(NewTop(BitType), u8(1), u8range(4, 6)), RequireConstant | RequireIntervalConstantBounds},
		{NewShared(u8range(1, 3)), RequireIntervalConstantBounds},
	}
	for _, tc := range tests {
		if got := QueryRequired(tc.in); got != tc.out {
			t.Errorf("QueryRequired(%s) == %s, expected %s", tc.in, got, tc.out)
		}
	}
}

func TestSharedIdentity(t *testing.T) {
	s := NewShared(u8range(1, 3))
	if NewShared(s) != s {
		t.Error("wrapping a shared value allocated a new cell")
	}
	c := Clone(s).(*Shared)
	if !c.Same(s) {
		t.Error("a cloned shared value does not share storage")
	}
	if other := NewShared(u8range(1, 3)); other.Same(s) {
		t.Error("distinct shared values share storage")
	}
	if !Equal(s.Get(), u8range(1, 3)) {
		t.Errorf("Get() == %s", s.Get())
	}
}

func TestMove(t *testing.T) {
	v := u8(3)
	w := Move(&v)
	if v != nil || str(w) != "3" {
		t.Errorf("Move left %s behind and returned %s", str(v), str(w))
	}
	if Clone(nil) != nil {
		t.Error("Clone(nil) != nil")
	}
}

var writeTests = []struct {
	in  Value
	p   FormatParams
	out string
}{
	{u8(42), FormatParams{}, "42"},
	{u8(42), FormatParams{ShowType: true}, "42:i8"},
	{s8(-1), FormatParams{}, "255"},
	{s8(-1), FormatParams{Signed: true}, "-1"},
	{s8(-1), FormatParams{Hex: true}, "0xff"},
	{u8range(7, 9), FormatParams{}, "[7, 9]"},
	{NewInterval(s8(-3), s8(4), true, false), FormatParams{}, "[-3, 4]"},
	{NewDisjunction(IntType(8), u8(5), u8(2), u8range(7, 9), u8(2)), FormatParams{}, "{2, 5 | [7, 9]}"},
	{NewGuard(NewTop(BitType), u8(1), nil), FormatParams{}, "(top ? 1 : _)"},
	{NewTop(IntType(16)), FormatParams{ShowType: true}, "top:i16"},
	{NewFormal(op.Make(op.IntPlusUnsigned), u8(1), u8(2)), FormatParams{}, "plus_unsigned(1, 2)"},
	{NewLattice(u8(3)), FormatParams{}, "lattice<constant>(3)"},
	{NewLattice(NewTop(IntType(8))), FormatParams{}, "lattice!<top>(top)"},
	{NewShared(u8range(1, 2)), FormatParams{}, "shared([1, 2])"},
	{NewFloatConstant(1.5, 8, 23), FormatParams{}, "1.5"},
	{NewScalar(arith.Inf(arith.Binary64, true)), FormatParams{}, "-inf"},
}

func TestWrite(t *testing.T) {
	for _, tc := range writeTests {
		var sb strings.Builder
		if err := Write(&sb, tc.in, tc.p); err != nil {
			t.Errorf("Write(%#v) failed: %s", tc.in, err)
			continue
		}
		if got := sb.String(); got != tc.out {
			t.Errorf("Write(%s, %+v) == %q, expected %q", tc.in, tc.p, got, tc.out)
		}
	}
}

func mustPanic(t *testing.T, name string, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s did not panic", name)
		}
	}()
	fn()
}
