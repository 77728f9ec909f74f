package dfa

import (
	"go/ast"
	"go/constant"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"math/big"
	"testing"

	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"

	"honnef.co/go/absval/domain"
	"honnef.co/go/absval/op"
)

const src = `package p

func branch(c bool) int {
	x := 1
	if c {
		x = 2
	}
	return x
}

func loop() int {
	n := 0
	for i := 0; i < 100; i++ {
		n = n + 3
	}
	return n
}
`

func build(t *testing.T) *ssa.Package {
	t.Helper()
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "p.go", src, 0)
	if err != nil {
		t.Fatal(err)
	}
	pkg := types.NewPackage("p", "")
	ssapkg, _, err := ssautil.BuildPackage(&types.Config{Importer: importer.Default()}, fset, pkg, []*ast.File{f}, ssa.SanityCheckFunctions)
	if err != nil {
		t.Fatal(err)
	}
	return ssapkg
}

func leaf(v ssa.Value) domain.Value {
	c, ok := v.(*ssa.Const)
	if !ok || c.Value == nil || c.Value.Kind() != constant.Int {
		return nil
	}
	x, _ := constant.Int64Val(c.Value)
	return domain.NewConstant(big.NewInt(x), 64, true)
}

func transfer(ins *Instance, instr ssa.Instruction) []Mapping {
	b, ok := instr.(*ssa.BinOp)
	if !ok || b.Op != token.ADD {
		return nil
	}
	x, y := ins.Value(b.X), ins.Value(b.Y)
	if x == nil || y == nil {
		return nil
	}
	ins.Env.Clear()
	ins.Env.SetFirstArgument(y)
	domain.Apply(x, op.Make(op.IntPlusSigned), ins.Env)
	return []Mapping{ins.Transform(b, ins.Env.TakeResult(), "addition", b.X, b.Y)}
}

func returned(fn *ssa.Function) ssa.Value {
	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			if ret, ok := instr.(*ssa.Return); ok {
				return ret.Results[0]
			}
		}
	}
	return nil
}

func TestForwardJoin(t *testing.T) {
	pkg := build(t)
	fw := &Framework{Transfer: transfer, Leaf: leaf, Policy: domain.DefaultPolicy()}
	fn := pkg.Func("branch")
	ins := fw.Forward(fn)
	v := returned(fn)
	if _, ok := v.(*ssa.Phi); !ok {
		t.Fatalf("branch returns %T, expected a phi", v)
	}
	if got := ins.Value(v); got == nil || got.String() != "{1, 2}" {
		t.Errorf("branch() == %v, expected {1, 2}", got)
	}
	if d := ins.Decision(v); len(d.Inputs) != 2 || d.Widened {
		t.Errorf("decision == %+v", d)
	}
}

func TestForwardWidening(t *testing.T) {
	pkg := build(t)
	fw := &Framework{Transfer: transfer, Leaf: leaf, Policy: domain.DefaultPolicy()}
	fn := pkg.Func("loop")
	ins := fw.Forward(fn)
	v := returned(fn)
	if _, ok := ins.Value(v).(*domain.Top); !ok {
		t.Errorf("loop() == %v, expected top", ins.Value(v))
	}
	if !ins.Decision(v).Widened {
		t.Error("the loop variable was not widened")
	}
}

func TestSet(t *testing.T) {
	pkg := build(t)
	fn := pkg.Func("branch")
	fw := &Framework{Transfer: transfer, Policy: domain.DefaultPolicy()}
	ins := fw.Start()
	ins.Set(fn.Params[0], domain.NewBool(true))
	ins.Forward(fn)
	if got := ins.Value(fn.Params[0]); got.String() != "1" {
		t.Errorf("parameter == %v, expected 1", got)
	}
	// Without a leaf function, constants are ⊥, and so is the phi.
	if got := ins.Value(returned(fn)); got != nil {
		t.Errorf("branch() == %v, expected ⊥", got)
	}
}
