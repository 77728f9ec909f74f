// Package dfa provides a forward data-flow framework whose abstract states
// are values of the domain package.
package dfa

import (
	"cmp"
	"fmt"
	"slices"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/tools/go/ssa"

	"honnef.co/go/absval/domain"
)

// Mapping maps a single [ssa.Value] to an abstract state.
type Mapping struct {
	Value    ssa.Value
	State    domain.Value
	Decision Decision
}

// Decision describes how a mapping from an [ssa.Value] to an abstract state came to be.
// Decisions are provided by transfer functions when they create mappings.
type Decision struct {
	// The relevant values that the transfer function used to make the decision.
	Inputs []ssa.Value
	// A human-readable description of the decision.
	Description string
	// Whether the state was widened to Top because it kept growing.
	Widened bool
}

func (m Mapping) String() string {
	return fmt.Sprintf("%s = %v", m.Value.Name(), m.State)
}

// M is a helper for constructing instances of [Mapping].
func M(v ssa.Value, s domain.Value, d Decision) Mapping {
	return Mapping{Value: v, State: s, Decision: d}
}

// Framework describes a forward abstract interpretation of a function.
//
// Transfer implements the transfer function. Given an instruction, it returns zero or more mappings from SSA
// values to abstract values. A nil state stands for ⊥, no value; all SSA values start in that state. ϕ
// instructions are handled automatically and do not cause Transfer to be called.
//
// States only ever grow: a new state is merged into the old one with [domain.MergeWith]. A value whose state
// grew more than Policy.WideningThreshold times is widened to Top, which bounds the number of iterations of
// loops.
type Framework struct {
	Transfer func(*Instance, ssa.Instruction) []Mapping
	// Leaf returns the state of a value that no instruction defines, such as a constant or a parameter. It may be
	// nil, and it may return nil for ⊥.
	Leaf   func(ssa.Value) domain.Value
	Policy domain.Policy
	// Logger receives a trace of the analysis at debug level. It may be nil.
	Logger *zap.Logger
}

// Start returns a new instance of the framework. See also [Framework.Forward].
func (fw *Framework) Start() *Instance {
	log := fw.Logger
	if log == nil {
		log = zap.NewNop()
	}
	env := domain.NewEnv(fw.Policy)
	env.SetLogger(log)
	return &Instance{
		Framework: fw,
		Mapping:   map[ssa.Value]Mapping{},
		Env:       env,
		log:       log,
		updates:   map[ssa.Value]int{},
	}
}

// Forward runs an intraprocedural forward data flow analysis, using an iterative fixed-point algorithm, given the
// functions specified in the framework. It combines [Framework.Start] and [Instance.Forward].
func (fw *Framework) Forward(fn *ssa.Function) *Instance {
	ins := fw.Start()
	ins.Forward(fn)
	return ins
}

// Instance is an instance of a data-flow analysis. It is created by [Framework.Forward].
type Instance struct {
	Framework *Framework
	// Mapping is the result of the analysis. Consider using Instance.Value instead of accessing Mapping
	// directly.
	Mapping map[ssa.Value]Mapping
	// Env is the environment transfer functions evaluate operations in. It is shared by all transfers of the
	// instance; callers clear it before each use.
	Env *domain.Env

	log     *zap.Logger
	updates map[ssa.Value]int
}

// Set maps v to the abstract value d. It does not apply any checks. This should only be used before calling
// [Instance.Forward], to set initial states of values.
func (ins *Instance) Set(v ssa.Value, d domain.Value) {
	ins.Mapping[v] = Mapping{Value: v, State: d}
}

// Value returns the abstract value for v. If none was set, it returns nil, standing for ⊥.
func (ins *Instance) Value(v ssa.Value) domain.Value {
	if m, ok := ins.Mapping[v]; ok {
		return m.State
	}
	if _, ok := v.(ssa.Instruction); ok || ins.Framework.Leaf == nil {
		return nil
	}
	d := ins.Framework.Leaf(v)
	ins.Mapping[v] = Mapping{Value: v, State: d, Decision: Decision{Description: "this value is an input of the function"}}
	return d
}

// Decision returns the decision of the mapping for v, if any.
func (ins *Instance) Decision(v ssa.Value) Decision {
	return ins.Mapping[v].Decision
}

func (ins *Instance) tracing(msg string) *zapcore.CheckedEntry {
	return ins.log.Check(zapcore.DebugLevel, msg)
}

// worklist is a set of instructions, handed out in the order they were first added.
type worklist struct {
	queue []ssa.Instruction
	in    map[ssa.Instruction]bool
}

func (w *worklist) push(instr ssa.Instruction) {
	if w.in[instr] {
		return
	}
	w.in[instr] = true
	w.queue = append(w.queue, instr)
}

func (w *worklist) pop() ssa.Instruction {
	instr := w.queue[0]
	w.queue = w.queue[1:]
	delete(w.in, instr)
	return instr
}

// Forward runs a forward data-flow analysis on fn.
func (ins *Instance) Forward(fn *ssa.Function) {
	if ce := ins.tracing("analyzing"); ce != nil {
		ce.Write(zap.Stringer("function", fn))
	}
	if ins.Mapping == nil {
		ins.Mapping = map[ssa.Value]Mapping{}
	}

	w := &worklist{in: map[ssa.Instruction]bool{}}
	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			w.push(instr)
		}
	}
	for len(w.queue) > 0 {
		instr := w.pop()

		var ds []Mapping
		if phi, ok := instr.(*ssa.Phi); ok {
			var d domain.Value
			for _, edge := range phi.Edges {
				domain.MergeWith(&d, ins.Value(edge), ins.Env)
			}
			if d == nil {
				continue
			}
			ds = []Mapping{{Value: phi, State: d, Decision: Decision{Inputs: phi.Edges, Description: "this variable merges the results of multiple branches"}}}
		} else {
			ds = ins.Framework.Transfer(ins, instr)
		}

		for _, d := range ds {
			if !ins.update(d) {
				continue
			}
			if refs := d.Value.Referrers(); refs != nil {
				for _, ref := range *refs {
					w.push(ref)
				}
			}
		}
	}
	ins.printMapping(fn)
}

// update merges d into the mapping and reports whether the state of d.Value grew.
func (ins *Instance) update(d Mapping) bool {
	if d.State == nil {
		return false
	}
	old := ins.Mapping[d.Value]
	state := domain.Clone(old.State)
	if !domain.MergeWith(&state, d.State, ins.Env) {
		return false
	}
	decision := d.Decision
	if old.State != nil {
		ins.updates[d.Value]++
		if ins.updates[d.Value] > ins.Framework.Policy.WideningThreshold {
			if _, ok := state.(*domain.Top); !ok {
				state = domain.NewTop(state.Type())
				decision.Widened = true
			}
		}
	}
	if ce := ins.tracing("transfer"); ce != nil {
		ce.Write(zap.String("value", d.Value.Name()), zap.Stringer("instr", d.Value), zap.Stringer("state", state))
	}
	ins.Mapping[d.Value] = Mapping{Value: d.Value, State: state, Decision: decision}
	return true
}

// Propagate is a helper for creating a [Mapping] that propagates the abstract state of src to dst.
// The desc parameter is used as the value of Decision.Description.
func (ins *Instance) Propagate(dst, src ssa.Value, desc string) Mapping {
	return M(dst, ins.Value(src), Decision{Inputs: []ssa.Value{src}, Description: desc})
}

func (ins *Instance) Transform(dst ssa.Value, s domain.Value, desc string, srcs ...ssa.Value) Mapping {
	return M(dst, s, Decision{Inputs: srcs, Description: desc})
}

func (ins *Instance) printMapping(fn *ssa.Function) {
	ce := ins.tracing("mapping")
	if ce == nil {
		return
	}
	var keys []ssa.Value
	for k := range ins.Mapping {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b ssa.Value) int {
		return cmp.Compare(a.Name(), b.Name())
	})
	ms := make([]string, len(keys))
	for i, k := range keys {
		ms[i] = ins.Mapping[k].String()
	}
	ce.Write(zap.Stringer("function", fn), zap.Strings("values", ms))
}
