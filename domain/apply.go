package domain

import (
	"fmt"

	"go.uber.org/zap"

	"honnef.co/go/absval/arith"
	"honnef.co/go/absval/op"
)

// operands returns v followed by the extra operands of o placed in env, and
// clears the argument slots.
func (e *Env) operands(v Value, o op.Operation) []Value {
	args := []Value{v}
	for i := 1; i < o.Arity(); i++ {
		a := e.args[i-1]
		if a == nil {
			panic(fmt.Sprintf("domain: %s: operand %d not set", o, i+1))
		}
		args = append(args, a)
	}
	e.args = [2]Value{}
	return args
}

// Apply computes o on v and the extra operands placed in env, and stores the
// result in env. v is not modified.
//
// Apply reports false when o has no transfer function, in which case the
// result is Top. When no execution can produce a result, env is marked empty
// and there is no result.
func Apply(v Value, o op.Operation, env *Env) bool {
	args := env.operands(v, o)
	if ce := env.tracing("apply"); ce != nil {
		ce.Write(zap.Stringer("op", o), zap.Stringers("operands", args))
	}
	r, ok := env.apply(o, args)
	env.setResult(r)
	if ce := env.tracing("applied"); ce != nil {
		fields := []zap.Field{
			zap.Stringer("op", o),
			zap.Stringer("verdict", env.Verdict()),
			zap.Stringer("errors", env.Errors),
			zap.Bool("empty", env.Empty),
		}
		if r != nil {
			fields = append(fields, zap.Stringer("result", r))
		}
		ce.Write(fields...)
	}
	return ok
}

// ApplyAssign is like Apply but replaces *v by the result.
func ApplyAssign(v *Value, o op.Operation, env *Env) bool {
	ok := Apply(*v, o, env)
	if r := env.TakeResult(); r != nil {
		*v = r
	}
	return ok
}

func (e *Env) apply(o op.Operation, args []Value) (Value, bool) {
	types := make([]Type, len(args))
	for i, a := range args {
		types[i] = a.Type()
	}
	rt := resultType(o, types)
	if !o.Supported() {
		e.setVerdict(VerdictMay)
		return NewTop(rt), false
	}

	switch v := args[0].(type) {
	case *Lattice:
		args[0] = v.Domain
		r, ok := e.apply(o, args)
		if r == nil {
			return nil, ok
		}
		return NewLattice(r), ok
	case *Guard:
		if len(args) == 1 && e.mode == CreateExact {
			return e.applyGuard(o, v)
		}
	}

	sets := make([]set, len(args))
	for i, a := range args {
		sets[i] = e.concretize(a)
	}
	r, _ := e.transfer(o, sets)
	return e.build(r), true
}

// applyGuard applies a unary operation to each branch of g, keeping the
// condition. Each branch is evaluated in its own environment: a branch on
// which every execution fails becomes nil, and e is only marked empty when
// both branches are.
func (e *Env) applyGuard(o op.Operation, g *Guard) (Value, bool) {
	var (
		errs       arith.ErrorCode
		flags      arith.FloatFlags
		verdict    Verdict
		hasVerdict bool
	)
	branch := func(b Value) Value {
		if b == nil {
			return nil
		}
		c := e.child()
		r, _ := c.apply(o, []Value{b})
		errs |= c.Errors
		flags |= c.Float.Flags
		if c.hasVerdict {
			if hasVerdict {
				verdict = combineVerdicts(verdict, c.verdict)
			} else {
				verdict, hasVerdict = c.verdict, true
			}
		}
		if c.Empty {
			return nil
		}
		return r
	}
	then, els := branch(g.Then), branch(g.Else)
	e.Float.Flags |= flags
	if hasVerdict {
		e.setVerdict(verdict)
	}
	if then == nil && els == nil {
		e.Raise(errs)
		return nil, true
	}
	e.Note(errs)
	return &Guard{Cond: Clone(g.Cond), Then: then, Else: els}, true
}
