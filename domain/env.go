package domain

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"honnef.co/go/absval/arith"
)

// Verdict classifies the numeric errors of a transfer.
type Verdict uint8

const (
	// VerdictExact: no execution raises an error.
	VerdictExact Verdict = iota
	// VerdictMay: some executions raise an error.
	VerdictMay
	// VerdictMust: every execution raises an error.
	VerdictMust
)

func (v Verdict) String() string {
	switch v {
	case VerdictExact:
		return "exact"
	case VerdictMay:
		return "may"
	case VerdictMust:
		return "must"
	default:
		return fmt.Sprintf("Verdict(%d)", v)
	}
}

func combineVerdicts(a, b Verdict) Verdict {
	if a == b {
		return a
	}
	return VerdictMay
}

// CreationMode selects the shape of values built by transfer functions.
type CreationMode uint8

const (
	// CreateExact keeps results as precise as the disjunction threshold
	// allows.
	CreateExact CreationMode = iota
	// CreateInterval builds convex hulls.
	CreateInterval
	// CreateShared builds convex hulls wrapped in Shared.
	CreateShared
)

func (m CreationMode) String() string {
	switch m {
	case CreateExact:
		return "exact"
	case CreateInterval:
		return "interval"
	case CreateShared:
		return "shared"
	default:
		return fmt.Sprintf("CreationMode(%d)", m)
	}
}

// ParseCreationMode is the inverse of CreationMode.String.
func ParseCreationMode(s string) (CreationMode, error) {
	switch s {
	case "exact", "":
		return CreateExact, nil
	case "interval":
		return CreateInterval, nil
	case "shared":
		return CreateShared, nil
	default:
		return 0, fmt.Errorf("unknown creation mode %q", s)
	}
}

// Policy configures an environment.
type Policy struct {
	// DisjunctionThreshold is the largest number of elements a built
	// disjunction may have, and the largest number of operand combinations
	// evaluated point by point.
	DisjunctionThreshold int
	StopOnError          bool
	Rounding             arith.RoundingParams
	Mode                 CreationMode
	// MaxDepth bounds the nesting of values transfer functions recurse into.
	MaxDepth int
	// WideningThreshold is the number of times a fixpoint engine may grow a
	// value before widening it to Top.
	WideningThreshold int
}

func DefaultPolicy() Policy {
	return Policy{
		DisjunctionThreshold: 16,
		Rounding:             arith.DefaultRounding(),
		Mode:                 CreateExact,
		MaxDepth:             256,
		WideningThreshold:    3,
	}
}

// Env is the context of one forward transfer.
//
// Before a call, the caller places extra operands with SetFirstArgument and
// SetSecondArgument. After it, the caller checks IsEmpty, ErrorCode and
// Verdict, then takes the result exactly once with TakeResult. Clear resets
// the outcome for the next call.
type Env struct {
	arith.Status
	Policy Policy

	mode       CreationMode
	verdict    Verdict
	hasVerdict bool
	args       [2]Value
	result     Value
	depth      int
	log        *zap.Logger
}

func NewEnv(p Policy) *Env {
	e := &Env{}
	e.init(p)
	return e
}

func (e *Env) init(p Policy) {
	if p.DisjunctionThreshold < 1 {
		panic(fmt.Sprintf("domain: invalid disjunction threshold %d", p.DisjunctionThreshold))
	}
	e.Policy = p
	e.StopOnError = p.StopOnError
	e.Float.RoundingParams = p.Rounding
	e.mode = p.Mode
	e.log = zap.NewNop()
}

// SetLogger installs a logger for tracing transfers at debug level.
func (e *Env) SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	e.log = l
}

func (e *Env) Logger() *zap.Logger { return e.log }

func (e *Env) tracing(msg string) *zapcore.CheckedEntry {
	return e.log.Check(zapcore.DebugLevel, msg)
}

// SetFirstArgument places the second operand of the next operation.
func (e *Env) SetFirstArgument(v Value) { e.args[0] = v }

// SetSecondArgument places the third operand of the next operation.
func (e *Env) SetSecondArgument(v Value) { e.args[1] = v }

// HasResult reports whether a result is waiting to be taken.
func (e *Env) HasResult() bool { return e.result != nil }

// TakeResult returns the result of the last call and clears it.
func (e *Env) TakeResult() Value {
	r := e.result
	e.result = nil
	return r
}

func (e *Env) setResult(v Value) {
	e.result = v
	if v == nil {
		e.Empty = true
	}
}

// Clear resets the outcome and the argument slots. The policy, creation
// mode and logger are kept.
func (e *Env) Clear() {
	e.Status.Clear()
	e.verdict, e.hasVerdict = VerdictExact, false
	e.args = [2]Value{}
	e.result = nil
}

// Verdict returns the combined verdict of the transfers since the last
// Clear.
func (e *Env) Verdict() Verdict { return e.verdict }

func (e *Env) ErrorCode() arith.ErrorCode { return e.Errors }
func (e *Env) IsEmpty() bool              { return e.Empty }

func (e *Env) setVerdict(v Verdict) {
	if !e.hasVerdict {
		e.verdict, e.hasVerdict = v, true
		return
	}
	e.verdict = combineVerdicts(e.verdict, v)
}

func (e *Env) Mode() CreationMode     { return e.mode }
func (e *Env) SetMode(m CreationMode) { e.mode = m }

// ModeGuard restores a creation mode.
type ModeGuard struct {
	env  *Env
	mode CreationMode
}

// SaveMode snapshots the creation mode. The usual pattern is
//
//	defer env.SaveMode().Restore()
func (e *Env) SaveMode() ModeGuard { return ModeGuard{env: e, mode: e.mode} }

func (g ModeGuard) Restore() { g.env.mode = g.mode }

// enter records one level of recursion into a value.
func (e *Env) enter() {
	e.depth++
	if e.depth > e.Policy.MaxDepth {
		panic(fmt.Sprintf("domain: value nesting exceeds %d", e.Policy.MaxDepth))
	}
}

func (e *Env) leave() { e.depth-- }

// child returns a fresh environment with the same policy, mode, logger and
// depth, for computations whose outcome must not leak into e.
func (e *Env) child() *Env {
	c := &Env{Policy: e.Policy, mode: e.mode, depth: e.depth, log: e.log}
	c.StopOnError = e.StopOnError
	c.Float.RoundingParams = e.Float.RoundingParams
	return c
}

// account records the errors of a transfer made of pieces, failing of which
// raise an error on every execution.
func (e *Env) account(errs arith.ErrorCode, failing, pieces int) {
	switch {
	case errs == 0:
		e.setVerdict(VerdictExact)
	case failing == pieces:
		e.Raise(errs)
		e.setVerdict(VerdictMust)
	default:
		e.Note(errs)
		e.setVerdict(VerdictMay)
	}
}

// ConstraintEnv is the context of one backward transfer. Extra operands are
// absorbed into it before the call and taken back, refined, after it.
type ConstraintEnv struct {
	Env
	unstable bool
}

func NewConstraintEnv(p Policy) *ConstraintEnv {
	e := &ConstraintEnv{}
	e.init(p)
	return e
}

// AbsorbFirstArgument moves *v into the first argument slot.
func (e *ConstraintEnv) AbsorbFirstArgument(v *Value) { e.args[0] = Move(v) }

// AbsorbSecondArgument moves *v into the second argument slot.
func (e *ConstraintEnv) AbsorbSecondArgument(v *Value) { e.args[1] = Move(v) }

// TakeFirstArgument returns the refined first argument and clears the slot.
func (e *ConstraintEnv) TakeFirstArgument() Value { return Move(&e.args[0]) }

func (e *ConstraintEnv) TakeSecondArgument() Value { return Move(&e.args[1]) }

// MarkUnstable records that a precision requirement rose, so that a
// fixpoint iteration must continue.
func (e *ConstraintEnv) MarkUnstable()    { e.unstable = true }
func (e *ConstraintEnv) IsUnstable() bool { return e.unstable }

func (e *ConstraintEnv) Clear() {
	e.Env.Clear()
	e.unstable = false
}
