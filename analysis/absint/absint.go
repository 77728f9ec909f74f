// Package absint runs the abstract value engine over the SSA form of a
// package and reports operations whose outcome it can decide.
package absint

import (
	"fmt"
	"go/token"
	"go/types"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/buildssa"
	"golang.org/x/tools/go/ssa"

	"honnef.co/go/absval/analysis/dfa"
	"honnef.co/go/absval/config"
	"honnef.co/go/absval/domain"
	"honnef.co/go/absval/report"
)

const (
	CheckDivisionByZero     = "division-by-zero"
	CheckConstantComparison = "constant-comparison"
)

const doc = `report operations whose outcome is decided by the values of their operands

The analyzer computes, for every integer, float and boolean value of every
function, an over-approximation of the values it may take. It reports:

  - division-by-zero: integer divisions and remainders whose divisor is
    always zero
  - constant-comparison: comparisons that always have the same outcome
    although not both of their operands are constants

Checks are enabled with the checks list of absint.conf files, which also
configure the engine. The engine's stop_on_error setting is ignored: Go
integer arithmetic wraps around instead of trapping.`

var Analyzer = &analysis.Analyzer{
	Name:     "absint",
	Doc:      doc,
	Run:      run,
	Requires: []*analysis.Analyzer{buildssa.Analyzer},
}

var (
	configPath string
	trace      bool
)

func init() {
	Analyzer.Flags.StringVar(&configPath, "config", "", "read the configuration from `file` instead of absint.conf files")
	Analyzer.Flags.BoolVar(&trace, "trace", false, "log the analysis of every function")
}

func loadConfig(pass *analysis.Pass) (config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	if len(pass.Files) == 0 {
		return config.Default(), nil
	}
	name := pass.Fset.PositionFor(pass.Files[0].Package, false).Filename
	return config.Load(filepath.Dir(name))
}

func newLogger() *zap.Logger {
	if !trace {
		return zap.NewNop()
	}
	log, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

func run(pass *analysis.Pass) (interface{}, error) {
	cfg, err := loadConfig(pass)
	if err != nil {
		return nil, err
	}
	policy, err := cfg.Policy()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", pass.Pkg.Path(), err)
	}
	// Integer arithmetic in Go wraps around, so an overflowing execution
	// carries on with the wrapped value.
	policy.StopOnError = false
	log := newLogger().With(zap.String("package", pass.Pkg.Path()))
	defer log.Sync()

	sizes := pass.TypesSizes
	if sizes == nil {
		sizes = types.SizesFor("gc", "amd64")
	}
	c := &checker{sizes: sizes}
	fw := &dfa.Framework{
		Transfer: c.transfer,
		Leaf:     c.leaf,
		Policy:   policy,
		Logger:   log,
	}
	for _, fn := range pass.ResultOf[buildssa.Analyzer].(*buildssa.SSA).SrcFuncs {
		ins := fw.Forward(fn)
		if cfg.Enabled(CheckDivisionByZero) {
			checkDivisionByZero(pass, c, ins, fn)
		}
		if cfg.Enabled(CheckConstantComparison) {
			checkConstantComparison(pass, ins, fn)
		}
	}
	return nil, nil
}

func binOps(fn *ssa.Function, yield func(*ssa.BinOp)) {
	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			if bin, ok := instr.(*ssa.BinOp); ok && bin.Pos().IsValid() {
				yield(bin)
			}
		}
	}
}

func checkDivisionByZero(pass *analysis.Pass, c *checker, ins *dfa.Instance, fn *ssa.Function) {
	binOps(fn, func(bin *ssa.BinOp) {
		if bin.Op != token.QUO && bin.Op != token.REM {
			return
		}
		n, ok := classify(c.sizes, bin.Y.Type())
		if !ok || !n.isInt() {
			return
		}
		x, y := ins.Value(bin.X), ins.Value(bin.Y)
		if x == nil || y == nil {
			// unreachable
			return
		}
		if domain.QueryZeroResult(y, ins.Env) == domain.DefinitelyZero {
			report.PosfFG(pass, CheckDivisionByZero, bin.Pos(), "integer division by zero: the divisor is always zero")
		}
	})
}

func isComparison(tok token.Token) bool {
	switch tok {
	case token.EQL, token.NEQ, token.LSS, token.LEQ, token.GTR, token.GEQ:
		return true
	default:
		return false
	}
}

func checkConstantComparison(pass *analysis.Pass, ins *dfa.Instance, fn *ssa.Function) {
	binOps(fn, func(bin *ssa.BinOp) {
		if !isComparison(bin.Op) {
			return
		}
		_, xc := bin.X.(*ssa.Const)
		_, yc := bin.Y.(*ssa.Const)
		if xc && yc {
			return
		}
		r := ins.Value(bin)
		if r == nil || !domain.IsConstantValue(r) {
			return
		}
		outcome := domain.QueryZeroResult(r, ins.Env) == domain.DefinitelyNonZero
		report.PosfFG(pass, CheckConstantComparison, bin.Pos(), "this comparison is always %t", outcome)
	})
}
