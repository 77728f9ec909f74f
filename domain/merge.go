package domain

import (
	"go.uber.org/zap"
)

// MergeWith replaces *v by a value standing for at least every value of *v
// and of other. A nil *v stands for no value. It reports whether *v changed:
// merging a value already included in *v keeps *v as it is.
//
// A Lattice receiver keeps its wrapper; its requirement rises to cover the
// merged domain and, when other is a Lattice too, other's requirement.
func MergeWith(v *Value, other Value, env *Env) bool {
	if other == nil {
		return false
	}
	if *v == nil {
		*v = Clone(other)
		return true
	}
	if ce := env.tracing("merge"); ce != nil {
		ce.Write(zap.Stringer("value", *v), zap.Stringer("other", other))
	}
	if l, ok := (*v).(*Lattice); ok {
		return l.merge(other, env)
	}
	if g, ok := other.(*Guard); ok {
		other = g.join(env)
	}

	a, b := env.concretize(*v), env.concretize(other)
	if b.subset(a) {
		return false
	}
	*v = env.build(a.union(b))
	if ce := env.tracing("merged"); ce != nil {
		ce.Write(zap.Stringer("result", *v))
	}
	return true
}

func (l *Lattice) merge(other Value, env *Env) bool {
	old := l.Required
	if ol, ok := other.(*Lattice); ok {
		l.Required |= ol.Required
		other = ol.Domain
	}
	changed := MergeWith(&l.Domain, other, env)
	l.Required |= QueryRequired(l.Domain)
	l.Complete = l.Required&RequireTop != 0
	return changed || l.Required != old
}

// join returns the merge of the branches of g, dropping the condition.
func (g *Guard) join(env *Env) Value {
	if g.Then == nil {
		return g.Else
	}
	if g.Else == nil {
		return g.Then
	}
	r := Clone(g.Then)
	MergeWith(&r, g.Else, env)
	return r
}
