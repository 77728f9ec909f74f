package op

import (
	"testing"
)

var operationStringTests = []struct {
	in  Operation
	out string
}{
	{Make(IntPlusSigned), "plus_signed"},
	{Make(FloatMultSub), "mult_sub"},
	{Sized(IntExtendZero, 16), "extend_zero<16>"},
	{Sized(FloatCastIntSigned, 32), "cast_int_signed<32>"},
	{ShiftBit(3), "cast_shift_bit<3>"},
	{Ranged(IntReduce, 8, 15), "reduce<8,15>"},
	{Formatted(IntCastFloatUnsigned, 8, 23), "cast_float_unsigned<e8,m23>"},
}

func TestOperationString(t *testing.T) {
	for _, tc := range operationStringTests {
		if got := tc.in.String(); got != tc.out {
			t.Errorf("%#v.String() == %q, expected %q", tc.in, got, tc.out)
		}
	}
}

func TestCatalogComplete(t *testing.T) {
	names := map[Class]map[string]Kind{}
	for _, k := range All() {
		inf := k.info()
		if inf.name == "" {
			t.Errorf("kind %d has no catalog entry", k)
			continue
		}
		if inf.class == 0 || inf.result == 0 {
			t.Errorf("%s: missing class", k)
		}
		if inf.arity < 1 || inf.arity > 3 {
			t.Errorf("%s: arity %d", k, inf.arity)
		}
		if names[inf.class] == nil {
			names[inf.class] = map[string]Kind{}
		}
		if other, ok := names[inf.class][inf.name]; ok {
			t.Errorf("%s: name shared by kinds %d and %d", inf.name, other, k)
		}
		names[inf.class][inf.name] = k
	}
}

func TestCompareKinds(t *testing.T) {
	for _, k := range All() {
		if k.IsCompare() && k.Result() != Bit {
			t.Errorf("comparison %s yields %s", k, k.Result())
		}
		if k.IsCompare() && k.Arity() != 2 {
			t.Errorf("comparison %s has arity %d", k, k.Arity())
		}
	}
}

func TestSupported(t *testing.T) {
	if Invalid.Supported() {
		t.Error("the invalid kind is supported")
	}
	for _, k := range []Kind{FloatSin, FloatPow, FloatSqrt, FloatAtan2} {
		if k.Supported() {
			t.Errorf("%s is supported", k)
		}
	}
	for _, k := range []Kind{IntPlusSigned, FloatMultAdd, BitImplies} {
		if !k.Supported() {
			t.Errorf("%s is not supported", k)
		}
	}
}

func TestSignedness(t *testing.T) {
	if !Make(IntDivideSigned).IsSigned() {
		t.Error("divide_signed is not signed")
	}
	if Make(IntDivideUnsigned).IsSigned() {
		t.Error("divide_unsigned is signed")
	}
	if Make(IntCompareEqual).Sign() != NoSign {
		t.Error("equal has a sign")
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

func TestConstructorPreconditions(t *testing.T) {
	mustPanic(t, "Make(IntExtendZero)", func() { Make(IntExtendZero) })
	mustPanic(t, "Sized(IntPlusSigned)", func() { Sized(IntPlusSigned, 8) })
	mustPanic(t, "Sized(IntExtendZero, 0)", func() { Sized(IntExtendZero, 0) })
	mustPanic(t, "Ranged(IntReduce, 4, 3)", func() { Ranged(IntReduce, 4, 3) })
	mustPanic(t, "Formatted(FloatCastFloat, 1, 10)", func() { Formatted(FloatCastFloat, 1, 10) })
	mustPanic(t, "Formatted(FloatCastFloat, 31, 10)", func() { Formatted(FloatCastFloat, MaxExponent+1, 10) })
	if o := Formatted(FloatCastFloat, MaxExponent, 10); o.Exponent != MaxExponent {
		t.Errorf("Formatted(FloatCastFloat, %d, 10) == %s", MaxExponent, o)
	}
	mustPanic(t, "ShiftBit(-1)", func() { ShiftBit(-1) })
}
