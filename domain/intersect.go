package domain

import (
	"go.uber.org/zap"
)

// IntersectWith replaces *v by a value standing for at most the values of
// both *v and other. When they have no value in common, env is marked empty
// and *v is left unchanged. The shape of *v is kept where possible: guard
// branches and disjunction elements are refined one by one. A nil value has
// no values, so intersecting with it marks env empty.
func IntersectWith(v *Value, other Value, env *Env) bool {
	if *v == nil || other == nil {
		env.Empty = true
		return true
	}
	if ce := env.tracing("intersect"); ce != nil {
		ce.Write(zap.Stringer("value", *v), zap.Stringer("other", other))
	}
	a, b := env.concretize(*v), env.concretize(other)
	m := a.intersect(b)
	if m.isEmpty() {
		env.Empty = true
		return true
	}
	if r := env.refine(*v, m); r != nil {
		*v = r
	}
	return true
}

// Contain reports whether every value of other is a value of v. A guard is
// tested through the merge of its branches.
func Contain(v, other Value, env *Env) bool {
	if other == nil {
		return true
	}
	if v == nil {
		return false
	}
	return env.concretize(other).subset(env.concretize(v))
}

// refine returns v restricted to s, or nil when nothing is left.
func (e *Env) refine(v Value, s set) Value {
	cur := e.concretize(v)
	if cur.subset(s) {
		return v
	}
	e.enter()
	defer e.leave()
	switch x := v.(type) {
	case *Guard:
		then, els := x.Then, x.Else
		if then != nil {
			then = e.refine(then, s)
		}
		if els != nil {
			els = e.refine(els, s)
		}
		if then == nil && els == nil {
			return nil
		}
		return &Guard{Cond: x.Cond, Then: then, Else: els}
	case *Disjunction:
		d := &Disjunction{typ: x.typ}
		for _, c := range x.exacts {
			if s.containsScalar(c.Scalar) {
				d.Add(c)
			}
		}
		for _, m := range x.mays {
			if r := e.refine(m, s); r != nil {
				d.Add(r)
			}
		}
		switch {
		case d.CountAtomic() == 0:
			return nil
		case len(d.exacts) == 1 && len(d.mays) == 0:
			return d.exacts[0]
		case len(d.exacts) == 0 && len(d.mays) == 1:
			return d.mays[0]
		}
		return d
	case *Lattice:
		d := e.refine(x.Domain, s)
		if d == nil {
			return nil
		}
		return &Lattice{Domain: d, Required: x.Required, Complete: x.Complete}
	case *Shared:
		d := e.refine(x.cell.v, s)
		if d == nil {
			return nil
		}
		return NewShared(d)
	}
	return exactValue(cur.intersect(s))
}
