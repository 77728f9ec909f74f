package absint

import (
	"go/constant"
	"go/token"
	"go/types"
	"math/big"

	"golang.org/x/exp/typeparams"
	"golang.org/x/tools/go/ssa"

	"honnef.co/go/absval/analysis/dfa"
	"honnef.co/go/absval/arith"
	"honnef.co/go/absval/domain"
	"honnef.co/go/absval/op"
)

// numeric describes how values of a Go type are tracked.
type numeric struct {
	typ    domain.Type
	signed bool
}

func (n numeric) isInt() bool { return !n.typ.Float && n.typ != domain.BitType }

// coreType returns the underlying type of T. For a type parameter, it is
// the underlying type shared by all terms of its type set, if any.
func coreType(T types.Type) types.Type {
	tp, ok := T.(*typeparams.TypeParam)
	if !ok {
		return T.Underlying()
	}
	terms, err := typeparams.NormalTerms(tp)
	if err != nil || len(terms) == 0 {
		return nil
	}
	typ := terms[0].Type().Underlying()
	for _, term := range terms[1:] {
		if !types.Identical(typ, term.Type().Underlying()) {
			return nil
		}
	}
	return typ
}

// classify returns the representation of values of type T. Only booleans
// and typed integers and floats are tracked.
func classify(sizes types.Sizes, T types.Type) (numeric, bool) {
	b, ok := coreType(T).(*types.Basic)
	if !ok {
		return numeric{}, false
	}
	info := b.Info()
	if info&types.IsUntyped != 0 {
		return numeric{}, false
	}
	switch {
	case info&types.IsBoolean != 0:
		return numeric{typ: domain.BitType}, true
	case info&types.IsInteger != 0:
		size := int(sizes.Sizeof(b)) * 8
		return numeric{typ: domain.IntType(size), signed: info&types.IsUnsigned == 0}, true
	case b.Kind() == types.Float32:
		return numeric{typ: domain.FloatType(arith.Binary32)}, true
	case b.Kind() == types.Float64:
		return numeric{typ: domain.FloatType(arith.Binary64)}, true
	default:
		return numeric{}, false
	}
}

type checker struct {
	sizes types.Sizes
}

// leaf returns the state of constants and of the inputs of a function.
func (c *checker) leaf(v ssa.Value) domain.Value {
	n, ok := classify(c.sizes, v.Type())
	if !ok {
		return nil
	}
	k, ok := v.(*ssa.Const)
	if !ok {
		return domain.NewTop(n.typ)
	}
	return c.constant(k, n)
}

func (c *checker) constant(k *ssa.Const, n numeric) domain.Value {
	val := k.Value
	switch {
	case n.typ == domain.BitType:
		return domain.NewBool(val != nil && constant.BoolVal(val))
	case n.typ.Float:
		f := 0.0
		if val != nil {
			f, _ = constant.Float64Val(constant.ToFloat(val))
		}
		return domain.NewFloatConstant(f, n.typ.Format.Exponent, n.typ.Format.Mantissa)
	}

	x := new(big.Int)
	if val != nil {
		iv := constant.ToInt(val)
		if iv.Kind() != constant.Int {
			return domain.NewTop(n.typ)
		}
		if _, ok := x.SetString(iv.ExactString(), 10); !ok {
			return domain.NewTop(n.typ)
		}
	}
	lo, hi := arith.Bounds(n.typ.Size, n.signed)
	if x.Cmp(lo) < 0 || x.Cmp(hi) > 0 {
		return domain.NewTop(n.typ)
	}
	return domain.NewConstant(x, n.typ.Size, n.signed)
}

// apply evaluates o on its operands in the environment of the instance. It
// returns nil if an operand is nil or if no execution succeeds.
func apply(ins *dfa.Instance, o op.Operation, x domain.Value, rest ...domain.Value) domain.Value {
	if x == nil {
		return nil
	}
	for _, r := range rest {
		if r == nil {
			return nil
		}
	}
	env := ins.Env
	env.Clear()
	if len(rest) > 0 {
		env.SetFirstArgument(rest[0])
	}
	if len(rest) > 1 {
		env.SetSecondArgument(rest[1])
	}
	domain.Apply(x, o, env)
	return env.TakeResult()
}

func (c *checker) transfer(ins *dfa.Instance, instr ssa.Instruction) []dfa.Mapping {
	v, ok := instr.(ssa.Value)
	if !ok {
		return nil
	}
	n, ok := classify(c.sizes, v.Type())
	if !ok {
		return nil
	}

	switch instr := instr.(type) {
	case *ssa.BinOp:
		x, y := ins.Value(instr.X), ins.Value(instr.Y)
		if x == nil || y == nil {
			return nil
		}
		if r := c.binOp(ins, instr, x, y); r != nil {
			return []dfa.Mapping{ins.Transform(instr, r, "binary operation", instr.X, instr.Y)}
		}
	case *ssa.UnOp:
		x := ins.Value(instr.X)
		if x == nil {
			if _, ok := classify(c.sizes, instr.X.Type()); ok {
				return nil
			}
			break
		}
		if r := c.unOp(ins, instr, x, n); r != nil {
			return []dfa.Mapping{ins.Transform(instr, r, "unary operation", instr.X)}
		}
	case *ssa.Convert:
		from, ok := classify(c.sizes, instr.X.Type())
		if !ok {
			break
		}
		x := ins.Value(instr.X)
		if x == nil {
			return nil
		}
		if r := convert(ins, x, from, n); r != nil {
			return []dfa.Mapping{ins.Transform(instr, r, "conversion", instr.X)}
		}
	case *ssa.Call:
		if r := c.call(ins, instr, n); r != nil {
			return []dfa.Mapping{ins.Transform(instr, r, "call of a modeled function", instr.Call.Args...)}
		}
	case *ssa.ChangeType:
		if _, ok := classify(c.sizes, instr.X.Type()); ok {
			if ins.Value(instr.X) == nil {
				return nil
			}
			return []dfa.Mapping{ins.Propagate(instr, instr.X, "conversion between identical representations")}
		}
	}
	return []dfa.Mapping{ins.Transform(v, domain.NewTop(n.typ), "this instruction is not modeled")}
}

var signedOps = map[token.Token]op.Kind{
	token.ADD: op.IntPlusSigned,
	token.SUB: op.IntMinusSigned,
	token.MUL: op.IntTimesSigned,
	token.QUO: op.IntDivideSigned,
	token.REM: op.IntModuloSigned,
	token.SHR: op.IntArithmeticRightShift,
	token.LSS: op.IntCompareLessSigned,
	token.LEQ: op.IntCompareLessOrEqualSigned,
	token.GTR: op.IntCompareGreaterSigned,
	token.GEQ: op.IntCompareGreaterOrEqualSigned,
}

var unsignedOps = map[token.Token]op.Kind{
	token.ADD: op.IntPlusUnsigned,
	token.SUB: op.IntMinusUnsigned,
	token.MUL: op.IntTimesUnsigned,
	token.QUO: op.IntDivideUnsigned,
	token.REM: op.IntModuloUnsigned,
	token.SHR: op.IntLogicalRightShift,
	token.LSS: op.IntCompareLessUnsigned,
	token.LEQ: op.IntCompareLessOrEqualUnsigned,
	token.GTR: op.IntCompareGreaterUnsigned,
	token.GEQ: op.IntCompareGreaterOrEqualUnsigned,
}

var bitwiseOps = map[token.Token]op.Kind{
	token.AND: op.IntAnd,
	token.OR:  op.IntOr,
	token.XOR: op.IntXor,
	token.SHL: op.IntLeftShift,
	token.EQL: op.IntCompareEqual,
	token.NEQ: op.IntCompareDifferent,
}

var floatOps = map[token.Token]op.Kind{
	token.ADD: op.FloatPlus,
	token.SUB: op.FloatMinus,
	token.MUL: op.FloatTimes,
	token.QUO: op.FloatDivide,
	token.EQL: op.FloatCompareEqual,
	token.NEQ: op.FloatCompareDifferent,
	token.LSS: op.FloatCompareLess,
	token.LEQ: op.FloatCompareLessOrEqual,
	token.GTR: op.FloatCompareGreater,
	token.GEQ: op.FloatCompareGreaterOrEqual,
}

// binOp returns the state of b, or nil if the operation is not modeled.
func (c *checker) binOp(ins *dfa.Instance, b *ssa.BinOp, x, y domain.Value) domain.Value {
	n, ok := classify(c.sizes, b.X.Type())
	if !ok {
		return nil
	}
	switch {
	case n.typ == domain.BitType:
		switch b.Op {
		case token.NEQ:
			return apply(ins, op.Make(op.BitXor), x, y)
		case token.EQL:
			return apply(ins, op.Make(op.BitNot), apply(ins, op.Make(op.BitXor), x, y))
		}
		return nil
	case n.typ.Float:
		if k, ok := floatOps[b.Op]; ok {
			return apply(ins, op.Make(k), x, y)
		}
		return nil
	}

	if b.Op == token.SHL || b.Op == token.SHR {
		amount, ok := classify(c.sizes, b.Y.Type())
		if !ok {
			return nil
		}
		switch {
		case amount.typ.Size < n.typ.Size:
			y = apply(ins, op.Sized(op.IntExtendZero, n.typ.Size), y)
		case amount.typ.Size > n.typ.Size:
			// Amounts reaching the width saturate, which reducing them
			// would not preserve.
			width := domain.NewConstant(big.NewInt(int64(n.typ.Size)), amount.typ.Size, false)
			in := apply(ins, op.Make(op.IntCompareLessUnsigned), y, width)
			if in == nil || domain.QueryZeroResult(in, ins.Env) != domain.DefinitelyNonZero {
				return nil
			}
			y = apply(ins, op.Ranged(op.IntReduce, 0, n.typ.Size-1), y)
		}
	}
	if b.Op == token.AND_NOT {
		return apply(ins, op.Make(op.IntAnd), x, apply(ins, op.Make(op.IntBitNegate), y))
	}
	ops := unsignedOps
	if n.signed {
		ops = signedOps
	}
	if k, ok := ops[b.Op]; ok {
		return apply(ins, op.Make(k), x, y)
	}
	if k, ok := bitwiseOps[b.Op]; ok {
		return apply(ins, op.Make(k), x, y)
	}
	return nil
}

func (c *checker) unOp(ins *dfa.Instance, u *ssa.UnOp, x domain.Value, n numeric) domain.Value {
	switch u.Op {
	case token.SUB:
		if n.typ.Float {
			return apply(ins, op.Make(op.FloatOpposite), x)
		}
		// Negation wraps around.
		return apply(ins, op.Make(op.IntOppositeUnsigned), x)
	case token.XOR:
		return apply(ins, op.Make(op.IntBitNegate), x)
	case token.NOT:
		return apply(ins, op.Make(op.BitNot), x)
	default:
		return nil
	}
}

func convert(ins *dfa.Instance, x domain.Value, from, to numeric) domain.Value {
	switch {
	case from.isInt() && to.isInt():
		switch {
		case from.typ.Size < to.typ.Size:
			if from.signed {
				return apply(ins, op.Sized(op.IntExtendSign, to.typ.Size), x)
			}
			return apply(ins, op.Sized(op.IntExtendZero, to.typ.Size), x)
		case from.typ.Size > to.typ.Size:
			return apply(ins, op.Ranged(op.IntReduce, 0, to.typ.Size-1), x)
		default:
			return x
		}
	case from.isInt() && to.typ.Float:
		k := op.IntCastFloatUnsigned
		if from.signed {
			k = op.IntCastFloatSigned
		}
		return apply(ins, op.Formatted(k, to.typ.Format.Exponent, to.typ.Format.Mantissa), x)
	case from.typ.Float && to.isInt():
		k := op.FloatCastIntUnsigned
		if to.signed {
			k = op.FloatCastIntSigned
		}
		return apply(ins, op.Sized(k, to.typ.Size), x)
	case from.typ.Float && to.typ.Float:
		if from.typ == to.typ {
			return x
		}
		return apply(ins, op.Formatted(op.FloatCastFloat, to.typ.Format.Exponent, to.typ.Format.Mantissa), x)
	default:
		return nil
	}
}

// call models the min and max builtins on integers and a few functions of
// package math.
func (c *checker) call(ins *dfa.Instance, call *ssa.Call, n numeric) domain.Value {
	common := call.Common()
	args := make([]domain.Value, len(common.Args))
	for i, arg := range common.Args {
		args[i] = ins.Value(arg)
		if args[i] == nil {
			return nil
		}
	}

	if b, ok := common.Value.(*ssa.Builtin); ok {
		if !n.isInt() || len(args) == 0 {
			return nil
		}
		var k op.Kind
		switch {
		case b.Name() == "min" && n.signed:
			k = op.IntMinSigned
		case b.Name() == "min":
			k = op.IntMinUnsigned
		case b.Name() == "max" && n.signed:
			k = op.IntMaxSigned
		case b.Name() == "max":
			k = op.IntMaxUnsigned
		default:
			return nil
		}
		r := args[0]
		for _, arg := range args[1:] {
			r = apply(ins, op.Make(k), r, arg)
		}
		return r
	}

	fn := common.StaticCallee()
	if fn == nil || fn.Pkg == nil || fn.Pkg.Pkg.Path() != "math" {
		return nil
	}
	switch {
	case fn.Name() == "Abs" && len(args) == 1:
		return apply(ins, op.Make(op.FloatAbs), args[0])
	case fn.Name() == "IsNaN" && len(args) == 1:
		return apply(ins, op.Make(op.FloatIsNaN), args[0])
	case fn.Name() == "FMA" && len(args) == 3:
		return apply(ins, op.Make(op.FloatMultAdd), args[0], args[1], args[2])
	}
	return nil
}
