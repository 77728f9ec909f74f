// Package op is the catalog of operations understood by the abstract-value
// engine.
//
// The catalog is pure data. An Operation names what to compute and carries
// the integer parameters of parameterized operations; the behavior lives in
// the arith and domain packages.
package op

import (
	"fmt"
)

// Class is the class of values an operation applies to.
type Class uint8

const (
	// Bit values are single booleans, represented as 1-bit vectors.
	Bit Class = iota + 1
	// MultiBit values are fixed-width two's-complement integers.
	MultiBit
	// MultiFloat values are software floating-point numbers.
	MultiFloat
)

func (c Class) String() string {
	switch c {
	case Bit:
		return "bit"
	case MultiBit:
		return "multibit"
	case MultiFloat:
		return "multifloat"
	default:
		return fmt.Sprintf("Class(%d)", c)
	}
}

// Sign describes how an operation interprets the bits of its integer operands.
type Sign uint8

const (
	NoSign Sign = iota
	Signed
	Unsigned
)

func (s Sign) String() string {
	switch s {
	case Signed:
		return "signed"
	case Unsigned:
		return "unsigned"
	default:
		return ""
	}
}

// Kind identifies an operation.
type Kind uint16

const (
	Invalid Kind = iota

	BitNot
	BitAnd
	BitOr
	BitXor
	BitImplies
	BitCastMultiBit

	IntPrevSigned
	IntPrevUnsigned
	IntNextSigned
	IntNextUnsigned
	IntOppositeSigned
	IntOppositeUnsigned
	IntBitNegate
	IntCastBit
	IntCastShiftBit
	IntExtendZero
	IntExtendSign
	IntReduce
	IntCastFloatSigned
	IntCastFloatUnsigned

	IntCompareLessSigned
	IntCompareLessOrEqualSigned
	IntCompareLessUnsigned
	IntCompareLessOrEqualUnsigned
	IntCompareEqual
	IntCompareDifferent
	IntCompareGreaterOrEqualUnsigned
	IntCompareGreaterUnsigned
	IntCompareGreaterOrEqualSigned
	IntCompareGreaterSigned
	IntMinSigned
	IntMinUnsigned
	IntMaxSigned
	IntMaxUnsigned
	IntPlusSigned
	IntPlusUnsigned
	IntMinusSigned
	IntMinusUnsigned
	IntTimesSigned
	IntTimesUnsigned
	IntDivideSigned
	IntDivideUnsigned
	IntModuloSigned
	IntModuloUnsigned
	IntAnd
	IntOr
	IntXor
	IntLeftShift
	IntLogicalRightShift
	IntArithmeticRightShift
	IntLeftRotate
	IntRightRotate
	IntConcat
	IntBitSet

	FloatCastFloat
	FloatCastIntSigned
	FloatCastIntUnsigned
	FloatOpposite
	FloatAbs
	FloatIsNaN
	FloatIsQNaN
	FloatIsSNaN
	FloatIsInftyExponent
	FloatIsZeroExponent
	FloatIsPositive
	FloatIsNegative

	FloatCompareLess
	FloatCompareLessOrEqual
	FloatCompareEqual
	FloatCompareDifferent
	FloatCompareGreaterOrEqual
	FloatCompareGreater
	FloatPlus
	FloatMinus
	FloatTimes
	FloatDivide
	FloatMin
	FloatMax

	// x*y + z
	FloatMultAdd
	// x*y - z
	FloatMultSub
	// -(x*y) + z
	FloatNegMultAdd
	// -(x*y) - z
	FloatNegMultSub

	FloatAcos
	FloatAsin
	FloatAtan
	FloatAtan2
	FloatCeil
	FloatCos
	FloatCosh
	FloatExp
	FloatFloor
	FloatFmod
	FloatLog
	FloatLog10
	FloatPow
	FloatSin
	FloatSinh
	FloatSqrt
	FloatTan
	FloatTanh

	numKinds
)

type param uint8

const (
	paramNone param = iota
	paramSize
	paramLow
	paramRange
	paramFormat
)

type info struct {
	name   string
	class  Class
	arity  int
	sign   Sign
	result Class
	param  param
	// unsupported operations are cataloged but have no transfer function.
	unsupported bool
}

var infos = [numKinds]info{
	Invalid: {name: "invalid"},

	BitNot:          {"not", Bit, 1, NoSign, Bit, paramNone, false},
	BitAnd:          {"and", Bit, 2, NoSign, Bit, paramNone, false},
	BitOr:           {"or", Bit, 2, NoSign, Bit, paramNone, false},
	BitXor:          {"xor", Bit, 2, NoSign, Bit, paramNone, false},
	BitImplies:      {"implies", Bit, 2, NoSign, Bit, paramNone, false},
	BitCastMultiBit: {"cast_multibit", Bit, 1, NoSign, MultiBit, paramSize, false},

	IntPrevSigned:        {"prev_signed", MultiBit, 1, Signed, MultiBit, paramNone, false},
	IntPrevUnsigned:      {"prev_unsigned", MultiBit, 1, Unsigned, MultiBit, paramNone, false},
	IntNextSigned:        {"next_signed", MultiBit, 1, Signed, MultiBit, paramNone, false},
	IntNextUnsigned:      {"next_unsigned", MultiBit, 1, Unsigned, MultiBit, paramNone, false},
	IntOppositeSigned:    {"opposite_signed", MultiBit, 1, Signed, MultiBit, paramNone, false},
	IntOppositeUnsigned:  {"opposite_unsigned", MultiBit, 1, Unsigned, MultiBit, paramNone, false},
	IntBitNegate:         {"bit_negate", MultiBit, 1, NoSign, MultiBit, paramNone, false},
	IntCastBit:           {"cast_bit", MultiBit, 1, NoSign, Bit, paramNone, false},
	IntCastShiftBit:      {"cast_shift_bit", MultiBit, 1, NoSign, Bit, paramLow, false},
	IntExtendZero:        {"extend_zero", MultiBit, 1, Unsigned, MultiBit, paramSize, false},
	IntExtendSign:        {"extend_sign", MultiBit, 1, Signed, MultiBit, paramSize, false},
	IntReduce:            {"reduce", MultiBit, 1, NoSign, MultiBit, paramRange, false},
	IntCastFloatSigned:   {"cast_float_signed", MultiBit, 1, Signed, MultiFloat, paramFormat, false},
	IntCastFloatUnsigned: {"cast_float_unsigned", MultiBit, 1, Unsigned, MultiFloat, paramFormat, false},

	IntCompareLessSigned:             {"less_signed", MultiBit, 2, Signed, Bit, paramNone, false},
	IntCompareLessOrEqualSigned:      {"less_or_equal_signed", MultiBit, 2, Signed, Bit, paramNone, false},
	IntCompareLessUnsigned:           {"less_unsigned", MultiBit, 2, Unsigned, Bit, paramNone, false},
	IntCompareLessOrEqualUnsigned:    {"less_or_equal_unsigned", MultiBit, 2, Unsigned, Bit, paramNone, false},
	IntCompareEqual:                  {"equal", MultiBit, 2, NoSign, Bit, paramNone, false},
	IntCompareDifferent:              {"different", MultiBit, 2, NoSign, Bit, paramNone, false},
	IntCompareGreaterOrEqualUnsigned: {"greater_or_equal_unsigned", MultiBit, 2, Unsigned, Bit, paramNone, false},
	IntCompareGreaterUnsigned:        {"greater_unsigned", MultiBit, 2, Unsigned, Bit, paramNone, false},
	IntCompareGreaterOrEqualSigned:   {"greater_or_equal_signed", MultiBit, 2, Signed, Bit, paramNone, false},
	IntCompareGreaterSigned:          {"greater_signed", MultiBit, 2, Signed, Bit, paramNone, false},
	IntMinSigned:                     {"min_signed", MultiBit, 2, Signed, MultiBit, paramNone, false},
	IntMinUnsigned:                   {"min_unsigned", MultiBit, 2, Unsigned, MultiBit, paramNone, false},
	IntMaxSigned:                     {"max_signed", MultiBit, 2, Signed, MultiBit, paramNone, false},
	IntMaxUnsigned:                   {"max_unsigned", MultiBit, 2, Unsigned, MultiBit, paramNone, false},
	IntPlusSigned:                    {"plus_signed", MultiBit, 2, Signed, MultiBit, paramNone, false},
	IntPlusUnsigned:                  {"plus_unsigned", MultiBit, 2, Unsigned, MultiBit, paramNone, false},
	IntMinusSigned:                   {"minus_signed", MultiBit, 2, Signed, MultiBit, paramNone, false},
	IntMinusUnsigned:                 {"minus_unsigned", MultiBit, 2, Unsigned, MultiBit, paramNone, false},
	IntTimesSigned:                   {"times_signed", MultiBit, 2, Signed, MultiBit, paramNone, false},
	IntTimesUnsigned:                 {"times_unsigned", MultiBit, 2, Unsigned, MultiBit, paramNone, false},
	IntDivideSigned:                  {"divide_signed", MultiBit, 2, Signed, MultiBit, paramNone, false},
	IntDivideUnsigned:                {"divide_unsigned", MultiBit, 2, Unsigned, MultiBit, paramNone, false},
	IntModuloSigned:                  {"modulo_signed", MultiBit, 2, Signed, MultiBit, paramNone, false},
	IntModuloUnsigned:                {"modulo_unsigned", MultiBit, 2, Unsigned, MultiBit, paramNone, false},
	IntAnd:                           {"bit_and", MultiBit, 2, NoSign, MultiBit, paramNone, false},
	IntOr:                            {"bit_or", MultiBit, 2, NoSign, MultiBit, paramNone, false},
	IntXor:                           {"bit_xor", MultiBit, 2, NoSign, MultiBit, paramNone, false},
	IntLeftShift:                     {"left_shift", MultiBit, 2, Unsigned, MultiBit, paramNone, false},
	IntLogicalRightShift:             {"logical_right_shift", MultiBit, 2, Unsigned, MultiBit, paramNone, false},
	IntArithmeticRightShift:          {"arithmetic_right_shift", MultiBit, 2, Signed, MultiBit, paramNone, false},
	IntLeftRotate:                    {"left_rotate", MultiBit, 2, NoSign, MultiBit, paramNone, false},
	IntRightRotate:                   {"right_rotate", MultiBit, 2, NoSign, MultiBit, paramNone, false},
	IntConcat:                        {"concat", MultiBit, 2, Unsigned, MultiBit, paramNone, false},
	IntBitSet:                        {"bit_set", MultiBit, 2, NoSign, MultiBit, paramRange, false},

	FloatCastFloat:       {"cast_float", MultiFloat, 1, NoSign, MultiFloat, paramFormat, false},
	FloatCastIntSigned:   {"cast_int_signed", MultiFloat, 1, Signed, MultiBit, paramSize, false},
	FloatCastIntUnsigned: {"cast_int_unsigned", MultiFloat, 1, Unsigned, MultiBit, paramSize, false},
	FloatOpposite:        {"opposite", MultiFloat, 1, NoSign, MultiFloat, paramNone, false},
	FloatAbs:             {"abs", MultiFloat, 1, NoSign, MultiFloat, paramNone, false},
	FloatIsNaN:           {"is_nan", MultiFloat, 1, NoSign, Bit, paramNone, false},
	FloatIsQNaN:          {"is_qnan", MultiFloat, 1, NoSign, Bit, paramNone, false},
	FloatIsSNaN:          {"is_snan", MultiFloat, 1, NoSign, Bit, paramNone, false},
	FloatIsInftyExponent: {"is_infty_exponent", MultiFloat, 1, NoSign, Bit, paramNone, false},
	FloatIsZeroExponent:  {"is_zero_exponent", MultiFloat, 1, NoSign, Bit, paramNone, false},
	FloatIsPositive:      {"is_positive", MultiFloat, 1, NoSign, Bit, paramNone, false},
	FloatIsNegative:      {"is_negative", MultiFloat, 1, NoSign, Bit, paramNone, false},

	FloatCompareLess:           {"less", MultiFloat, 2, NoSign, Bit, paramNone, false},
	FloatCompareLessOrEqual:    {"less_or_equal", MultiFloat, 2, NoSign, Bit, paramNone, false},
	FloatCompareEqual:          {"equal", MultiFloat, 2, NoSign, Bit, paramNone, false},
	FloatCompareDifferent:      {"different", MultiFloat, 2, NoSign, Bit, paramNone, false},
	FloatCompareGreaterOrEqual: {"greater_or_equal", MultiFloat, 2, NoSign, Bit, paramNone, false},
	FloatCompareGreater:        {"greater", MultiFloat, 2, NoSign, Bit, paramNone, false},
	FloatPlus:                  {"plus", MultiFloat, 2, NoSign, MultiFloat, paramNone, false},
	FloatMinus:                 {"minus", MultiFloat, 2, NoSign, MultiFloat, paramNone, false},
	FloatTimes:                 {"times", MultiFloat, 2, NoSign, MultiFloat, paramNone, false},
	FloatDivide:                {"divide", MultiFloat, 2, NoSign, MultiFloat, paramNone, false},
	FloatMin:                   {"min", MultiFloat, 2, NoSign, MultiFloat, paramNone, false},
	FloatMax:                   {"max", MultiFloat, 2, NoSign, MultiFloat, paramNone, false},

	FloatMultAdd:    {"mult_add", MultiFloat, 3, NoSign, MultiFloat, paramNone, false},
	FloatMultSub:    {"mult_sub", MultiFloat, 3, NoSign, MultiFloat, paramNone, false},
	FloatNegMultAdd: {"neg_mult_add", MultiFloat, 3, NoSign, MultiFloat, paramNone, false},
	FloatNegMultSub: {"neg_mult_sub", MultiFloat, 3, NoSign, MultiFloat, paramNone, false},

	FloatAcos:  {"acos", MultiFloat, 1, NoSign, MultiFloat, paramNone, true},
	FloatAsin:  {"asin", MultiFloat, 1, NoSign, MultiFloat, paramNone, true},
	FloatAtan:  {"atan", MultiFloat, 1, NoSign, MultiFloat, paramNone, true},
	FloatAtan2: {"atan2", MultiFloat, 2, NoSign, MultiFloat, paramNone, true},
	FloatCeil:  {"ceil", MultiFloat, 1, NoSign, MultiFloat, paramNone, true},
	FloatCos:   {"cos", MultiFloat, 1, NoSign, MultiFloat, paramNone, true},
	FloatCosh:  {"cosh", MultiFloat, 1, NoSign, MultiFloat, paramNone, true},
	FloatExp:   {"exp", MultiFloat, 1, NoSign, MultiFloat, paramNone, true},
	FloatFloor: {"floor", MultiFloat, 1, NoSign, MultiFloat, paramNone, true},
	FloatFmod:  {"fmod", MultiFloat, 2, NoSign, MultiFloat, paramNone, true},
	FloatLog:   {"log", MultiFloat, 1, NoSign, MultiFloat, paramNone, true},
	FloatLog10: {"log10", MultiFloat, 1, NoSign, MultiFloat, paramNone, true},
	FloatPow:   {"pow", MultiFloat, 2, NoSign, MultiFloat, paramNone, true},
	FloatSin:   {"sin", MultiFloat, 1, NoSign, MultiFloat, paramNone, true},
	FloatSinh:  {"sinh", MultiFloat, 1, NoSign, MultiFloat, paramNone, true},
	FloatSqrt:  {"sqrt", MultiFloat, 1, NoSign, MultiFloat, paramNone, true},
	FloatTan:   {"tan", MultiFloat, 1, NoSign, MultiFloat, paramNone, true},
	FloatTanh:  {"tanh", MultiFloat, 1, NoSign, MultiFloat, paramNone, true},
}

func (k Kind) info() info {
	if k >= numKinds {
		panic(fmt.Sprintf("op: unknown kind %d", k))
	}
	return infos[k]
}

func (k Kind) String() string { return k.info().name }

// Class returns the class of the receiver operand.
func (k Kind) Class() Class { return k.info().class }

// Arity returns the number of operands, counting the receiver.
func (k Kind) Arity() int { return k.info().arity }

// Sign returns the signedness the operation interprets its operands with.
func (k Kind) Sign() Sign { return k.info().sign }

// Result returns the class of the produced value.
func (k Kind) Result() Class { return k.info().result }

// Supported reports whether the engine implements a transfer function for k.
func (k Kind) Supported() bool { return k != Invalid && !k.info().unsupported }

// IsCompare reports whether k is a comparison producing a bit.
func (k Kind) IsCompare() bool {
	return (k >= IntCompareLessSigned && k <= IntCompareGreaterSigned) ||
		(k >= FloatCompareLess && k <= FloatCompareGreater)
}

// All returns every cataloged kind, in declaration order.
func All() []Kind {
	out := make([]Kind, 0, numKinds-1)
	for k := Invalid + 1; k < numKinds; k++ {
		out = append(out, k)
	}
	return out
}

// Operation describes one operation to apply. Only the parameters relevant to
// Kind are meaningful; use the constructors to build parameterized operations.
type Operation struct {
	Kind Kind

	// NewSize is the result width of extensions and casts to integers.
	NewSize int
	// Low and High delimit the inclusive bit range of IntReduce and IntBitSet.
	// Low alone is the bit index of IntCastShiftBit.
	Low, High int
	// Exponent and Mantissa are the result format of casts to floats.
	// Mantissa does not count the hidden bit.
	Exponent, Mantissa int
}

// Make returns an unparameterized operation.
func Make(k Kind) Operation {
	if k.info().param != paramNone {
		panic(fmt.Sprintf("op: %s requires parameters", k))
	}
	return Operation{Kind: k}
}

// Sized returns an operation whose parameter is a result width.
func Sized(k Kind, size int) Operation {
	if k.info().param != paramSize {
		panic(fmt.Sprintf("op: %s does not take a size", k))
	}
	if size <= 0 {
		panic(fmt.Sprintf("op: invalid size %d for %s", size, k))
	}
	return Operation{Kind: k, NewSize: size}
}

// ShiftBit returns IntCastShiftBit extracting bit index.
func ShiftBit(index int) Operation {
	if index < 0 {
		panic(fmt.Sprintf("op: invalid bit index %d", index))
	}
	return Operation{Kind: IntCastShiftBit, Low: index}
}

// Ranged returns an operation over the inclusive bit range [low, high].
func Ranged(k Kind, low, high int) Operation {
	if k.info().param != paramRange {
		panic(fmt.Sprintf("op: %s does not take a bit range", k))
	}
	if low < 0 || high < low {
		panic(fmt.Sprintf("op: invalid bit range [%d, %d] for %s", low, high, k))
	}
	return Operation{Kind: k, Low: low, High: high}
}

// MaxExponent is the widest exponent field of a float format.
const MaxExponent = 30

// Formatted returns a cast to a float format.
func Formatted(k Kind, exponent, mantissa int) Operation {
	if k.info().param != paramFormat {
		panic(fmt.Sprintf("op: %s does not take a float format", k))
	}
	if exponent < 2 || exponent > MaxExponent || mantissa < 2 {
		panic(fmt.Sprintf("op: invalid float format e%d m%d for %s", exponent, mantissa, k))
	}
	return Operation{Kind: k, Exponent: exponent, Mantissa: mantissa}
}

func (o Operation) Arity() int      { return o.Kind.Arity() }
func (o Operation) Class() Class    { return o.Kind.Class() }
func (o Operation) Sign() Sign      { return o.Kind.Sign() }
func (o Operation) IsSigned() bool  { return o.Kind.Sign() == Signed }
func (o Operation) Supported() bool { return o.Kind.Supported() }

func (o Operation) String() string {
	switch o.Kind.info().param {
	case paramSize:
		return fmt.Sprintf("%s<%d>", o.Kind, o.NewSize)
	case paramLow:
		return fmt.Sprintf("%s<%d>", o.Kind, o.Low)
	case paramRange:
		return fmt.Sprintf("%s<%d,%d>", o.Kind, o.Low, o.High)
	case paramFormat:
		return fmt.Sprintf("%s<e%d,m%d>", o.Kind, o.Exponent, o.Mantissa)
	default:
		return o.Kind.String()
	}
}
