// Package domain implements abstract values: finite representations of sets
// of bit-vectors or floating-point numbers, with forward (Apply) and backward
// (Constraint) transfer functions and the join, meet and inclusion algebra
// used by a fixpoint engine.
//
// Values form a closed sum type. Composite values own their sub-values;
// sharing is explicit through the Shared wrapper. Clone deep-copies a value,
// Move transfers it and leaves the source nil.
//
// Every operation takes an environment (Env or ConstraintEnv) that carries
// the policy, records numeric errors, emptiness and the verdict, and holds
// the result and extra arguments.
package domain

import (
	"fmt"
	"math/big"
	"sort"

	"honnef.co/go/absval/arith"
	"honnef.co/go/absval/op"
)

// Type is the type of the concrete values a Value stands for.
type Type struct {
	Float bool
	// Size is the width in bits; for floats it is the encoding width.
	Size   int
	Format arith.Format
}

func IntType(size int) Type {
	if size <= 0 {
		panic(fmt.Sprintf("domain: invalid bit width %d", size))
	}
	return Type{Size: size}
}

func FloatType(f arith.Format) Type { return Type{Float: true, Size: f.Size(), Format: f} }

// BitType is the type of booleans.
var BitType = Type{Size: 1}

func (t Type) String() string {
	if t.Float {
		return t.Format.String()
	}
	return fmt.Sprintf("i%d", t.Size)
}

func typeOfScalar(s arith.Scalar) Type {
	switch s := s.(type) {
	case arith.BitVec:
		return IntType(s.Size())
	case arith.Float:
		return FloatType(s.Format())
	default:
		panic(fmt.Sprintf("domain: unexpected scalar %T", s))
	}
}

// Value is an abstract value. The implementations are *Constant, *Interval,
// *Disjunction, *Guard, *Top, *Formal, *Lattice and *Shared.
type Value interface {
	Type() Type
	String() string
	clone() Value
	isValue()
}

// Constant is a single concrete value.
type Constant struct {
	Scalar arith.Scalar
}

// Interval is the set of values between Min and Max, inclusive, in the
// order given by Signed. Bounds are usually constants but may be any value;
// a symbolic bound stands for its smallest (Min) or largest (Max) element.
// Signed is ignored for floats, which are ordered numerically with -0 < +0.
type Interval struct {
	Min, Max Value
	Signed   bool
}

// Disjunction is a union of pairwise distinct point values (exacts, kept
// sorted) and of coarser pieces (mays).
type Disjunction struct {
	typ    Type
	exacts []*Constant
	mays   []Value
}

// Guard is a value pending the resolution of a boolean condition. At least
// one of Then and Else is non-nil.
type Guard struct {
	Cond       Value
	Then, Else Value
}

// Top is every value of a type.
type Top struct {
	typ Type
}

// Formal is a deferred operation over abstract values, evaluated when
// queried.
type Formal struct {
	Op   op.Operation
	Args []Value
	typ  Type
}

// Lattice wraps a value with the precision the backward analysis currently
// requires of it.
type Lattice struct {
	Domain   Value
	Required RequiredTag
	// Complete is set once Required reached RequireTop; no further
	// constraint can raise it.
	Complete bool
}

// Shared is a value whose storage is shared between all of its clones.
// Transfer functions never write through a Shared; they build new ones.
type Shared struct {
	cell *sharedCell
}

type sharedCell struct {
	v Value
}

func (*Constant) isValue()    {}
func (*Interval) isValue()    {}
func (*Disjunction) isValue() {}
func (*Guard) isValue()       {}
func (*Top) isValue()         {}
func (*Formal) isValue()      {}
func (*Lattice) isValue()     {}
func (*Shared) isValue()      {}

func (c *Constant) Type() Type    { return typeOfScalar(c.Scalar) }
func (i *Interval) Type() Type    { return i.Min.Type() }
func (d *Disjunction) Type() Type { return d.typ }
func (t *Top) Type() Type         { return t.typ }
func (f *Formal) Type() Type      { return f.typ }
func (l *Lattice) Type() Type     { return l.Domain.Type() }
func (s *Shared) Type() Type      { return s.cell.v.Type() }

func (g *Guard) Type() Type {
	if g.Then != nil {
		return g.Then.Type()
	}
	return g.Else.Type()
}

// Clone returns a deep copy of v. Clones of a Shared share its storage.
func Clone(v Value) Value {
	if v == nil {
		return nil
	}
	return v.clone()
}

// Move returns *v and clears it.
func Move(v *Value) Value {
	r := *v
	*v = nil
	return r
}

func (c *Constant) clone() Value { return &Constant{Scalar: c.Scalar} }

func (i *Interval) clone() Value {
	return &Interval{Min: i.Min.clone(), Max: i.Max.clone(), Signed: i.Signed}
}

func (d *Disjunction) clone() Value {
	out := &Disjunction{typ: d.typ, exacts: make([]*Constant, len(d.exacts)), mays: make([]Value, len(d.mays))}
	for i, c := range d.exacts {
		out.exacts[i] = c.clone().(*Constant)
	}
	for i, m := range d.mays {
		out.mays[i] = m.clone()
	}
	return out
}

func (g *Guard) clone() Value {
	return &Guard{Cond: Clone(g.Cond), Then: Clone(g.Then), Else: Clone(g.Else)}
}

func (t *Top) clone() Value { return &Top{typ: t.typ} }

func (f *Formal) clone() Value {
	args := make([]Value, len(f.Args))
	for i, a := range f.Args {
		args[i] = a.clone()
	}
	return &Formal{Op: f.Op, Args: args, typ: f.typ}
}

func (l *Lattice) clone() Value {
	return &Lattice{Domain: l.Domain.clone(), Required: l.Required, Complete: l.Complete}
}

func (s *Shared) clone() Value { return &Shared{cell: s.cell} }

// NewConstant returns the constant x of size bits. x must be representable
// under the given signedness; negative values are stored in two's
// complement.
func NewConstant(x *big.Int, size int, signed bool) *Constant {
	lo, hi := arith.Bounds(size, signed)
	if x.Cmp(lo) < 0 || x.Cmp(hi) > 0 {
		panic(fmt.Sprintf("domain: %s does not fit in %d bits", x, size))
	}
	return &Constant{Scalar: arith.FromBig(x, size)}
}

// NewFloatConstant returns the constant x rounded to nearest in the given
// format.
func NewFloatConstant(x float64, exponent, mantissa int) *Constant {
	var st arith.Status
	st.Float.RoundingParams = arith.DefaultRounding()
	return &Constant{Scalar: arith.FromFloat64(x, arith.Format{Exponent: exponent, Mantissa: mantissa}, &st)}
}

// NewScalar wraps a concrete value.
func NewScalar(s arith.Scalar) *Constant { return &Constant{Scalar: s} }

// NewBool returns the 1-bit constant b.
func NewBool(b bool) *Constant { return &Constant{Scalar: arith.Bool(b)} }

// NewInterval returns [min, max]. When shareable is set, the interval is
// wrapped in a Shared. Constant bounds must be ordered: min ≤ max under
// signed, or in the total order for floats.
func NewInterval(min, max Value, signed, shareable bool) Value {
	if min.Type() != max.Type() {
		panic(fmt.Sprintf("domain: interval bounds of types %s and %s", min.Type(), max.Type()))
	}
	if lo, ok := min.(*Constant); ok {
		if hi, ok := max.(*Constant); ok && !ordered(lo.Scalar, hi.Scalar, signed) {
			panic(fmt.Sprintf("domain: interval bounds %s > %s", lo, hi))
		}
	}
	var v Value = &Interval{Min: min, Max: max, Signed: signed}
	if shareable {
		v = NewShared(v)
	}
	return v
}

func ordered(lo, hi arith.Scalar, signed bool) bool {
	switch lo := lo.(type) {
	case arith.BitVec:
		return lo.Cmp(hi.(arith.BitVec), signed) <= 0
	case arith.Float:
		return lo.TotalCmp(hi.(arith.Float)) <= 0
	default:
		panic(fmt.Sprintf("domain: unexpected scalar %T", lo))
	}
}

// NewUndefined returns Top of type t, wrapped in a Shared when shareable is
// set.
func NewUndefined(t Type, shareable bool) Value {
	var v Value = &Top{typ: t}
	if shareable {
		v = NewShared(v)
	}
	return v
}

// NewTop returns Top of type t.
func NewTop(t Type) *Top { return &Top{typ: t} }

// NewDisjunction returns a disjunction of elems. Constants become exact
// elements, with duplicates removed; every other value becomes a may element.
func NewDisjunction(t Type, elems ...Value) *Disjunction {
	d := &Disjunction{typ: t}
	for _, e := range elems {
		d.Add(e)
	}
	return d
}

// Add adds v to d, taking ownership of it.
func (d *Disjunction) Add(v Value) {
	if v.Type() != d.typ {
		panic(fmt.Sprintf("domain: cannot add %s value to %s disjunction", v.Type(), d.typ))
	}
	switch v := v.(type) {
	case *Constant:
		i := sort.Search(len(d.exacts), func(i int) bool { return scalarCmp(d.exacts[i].Scalar, v.Scalar) >= 0 })
		if i < len(d.exacts) && scalarCmp(d.exacts[i].Scalar, v.Scalar) == 0 {
			return
		}
		d.exacts = append(d.exacts, nil)
		copy(d.exacts[i+1:], d.exacts[i:])
		d.exacts[i] = v
	case *Disjunction:
		for _, c := range v.exacts {
			d.Add(c)
		}
		for _, m := range v.mays {
			d.Add(m)
		}
	default:
		d.mays = append(d.mays, v)
	}
}

// Exacts returns the point elements, sorted.
func (d *Disjunction) Exacts() []*Constant { return d.exacts }

// Mays returns the coarse elements.
func (d *Disjunction) Mays() []Value { return d.mays }

// CountAtomic returns the number of elements.
func (d *Disjunction) CountAtomic() int { return len(d.exacts) + len(d.mays) }

// NewGuard returns a guarded value. It panics when both branches are nil.
func NewGuard(cond, then, els Value) *Guard {
	if then == nil && els == nil {
		panic("domain: guard without branches")
	}
	if then != nil && els != nil && then.Type() != els.Type() {
		panic(fmt.Sprintf("domain: guard branches of types %s and %s", then.Type(), els.Type()))
	}
	return &Guard{Cond: cond, Then: then, Else: els}
}

// GuardState is the resolution state of a guard.
type GuardState uint8

const (
	Unresolved GuardState = iota
	CollapsedThen
	CollapsedElse
)

func (g *Guard) State() GuardState {
	switch {
	case g.Then != nil && g.Else != nil:
		return Unresolved
	case g.Then != nil:
		return CollapsedThen
	default:
		return CollapsedElse
	}
}

// SetCondition replaces the condition and drops the branch it rules out.
// When the condition rules out the only remaining branch, env is marked
// empty and g is left unchanged.
func (g *Guard) SetCondition(cond Value, env *Env) {
	s := env.concretize(cond)
	canTrue := s.containsScalar(arith.Bool(true))
	canFalse := s.containsScalar(arith.Bool(false))
	then, els := g.Then, g.Else
	if !canTrue {
		then = nil
	}
	if !canFalse {
		els = nil
	}
	if then == nil && els == nil {
		env.Empty = true
		return
	}
	g.Cond, g.Then, g.Else = cond, then, els
}

// NewFormal returns the deferred application of o to args.
func NewFormal(o op.Operation, args ...Value) *Formal {
	if len(args) != o.Arity() {
		panic(fmt.Sprintf("domain: %s takes %d operands, got %d", o, o.Arity(), len(args)))
	}
	types := make([]Type, len(args))
	for i, a := range args {
		types[i] = a.Type()
	}
	return &Formal{Op: o, Args: args, typ: resultType(o, types)}
}

// NewLattice wraps v with the precision it currently provides.
func NewLattice(v Value) *Lattice {
	l := &Lattice{Domain: v, Required: QueryRequired(v)}
	l.Complete = l.Required&RequireTop != 0
	return l
}

// Reset lowers the required precision back to what the domain provides.
func (l *Lattice) Reset() {
	l.Required = QueryRequired(l.Domain)
	l.Complete = l.Required&RequireTop != 0
}

// NewShared wraps v in a new shared cell.
func NewShared(v Value) *Shared {
	if s, ok := v.(*Shared); ok {
		return s
	}
	return &Shared{cell: &sharedCell{v: v}}
}

// Get returns the shared value. It must not be modified.
func (s *Shared) Get() Value { return s.cell.v }

// Same reports whether s and o share their storage.
func (s *Shared) Same(o *Shared) bool { return s.cell == o.cell }

// SizeInBits returns the width of the values v stands for.
func SizeInBits(v Value) int { return v.Type().Size }

// TypeOf returns the type of v.
func TypeOf(v Value) Type { return v.Type() }

// IsConstantValue reports whether v is a Constant.
func IsConstantValue(v Value) bool {
	_, ok := v.(*Constant)
	return ok
}

// RetrieveValue returns the concrete value of a Constant.
func RetrieveValue(v Value) (arith.Scalar, bool) {
	c, ok := v.(*Constant)
	if !ok {
		return nil, false
	}
	return c.Scalar, true
}

// Equal reports whether a and b are structurally identical.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch a := a.(type) {
	case *Constant:
		b, ok := b.(*Constant)
		return ok && scalarEqual(a.Scalar, b.Scalar)
	case *Interval:
		b, ok := b.(*Interval)
		return ok && a.Signed == b.Signed && Equal(a.Min, b.Min) && Equal(a.Max, b.Max)
	case *Disjunction:
		b, ok := b.(*Disjunction)
		if !ok || a.typ != b.typ || len(a.exacts) != len(b.exacts) || len(a.mays) != len(b.mays) {
			return false
		}
		for i := range a.exacts {
			if !Equal(a.exacts[i], b.exacts[i]) {
				return false
			}
		}
		for i := range a.mays {
			if !Equal(a.mays[i], b.mays[i]) {
				return false
			}
		}
		return true
	case *Guard:
		b, ok := b.(*Guard)
		return ok && Equal(a.Cond, b.Cond) && Equal(a.Then, b.Then) && Equal(a.Else, b.Else)
	case *Top:
		b, ok := b.(*Top)
		return ok && a.typ == b.typ
	case *Formal:
		b, ok := b.(*Formal)
		if !ok || a.Op != b.Op || len(a.Args) != len(b.Args) {
			return false
		}
		for i := range a.Args {
			if !Equal(a.Args[i], b.Args[i]) {
				return false
			}
		}
		return true
	case *Lattice:
		b, ok := b.(*Lattice)
		return ok && a.Required == b.Required && a.Complete == b.Complete && Equal(a.Domain, b.Domain)
	case *Shared:
		b, ok := b.(*Shared)
		return ok && (a.cell == b.cell || Equal(a.cell.v, b.cell.v))
	default:
		panic(fmt.Sprintf("domain: unexpected value %T", a))
	}
}

func scalarEqual(a, b arith.Scalar) bool {
	switch a := a.(type) {
	case arith.BitVec:
		b, ok := b.(arith.BitVec)
		return ok && a.Equal(b)
	case arith.Float:
		b, ok := b.(arith.Float)
		return ok && a.Equal(b)
	}
	return false
}

// scalarCmp orders scalars of one type: integers unsigned, floats by
// TotalCmp.
func scalarCmp(a, b arith.Scalar) int {
	switch a := a.(type) {
	case arith.BitVec:
		return a.Cmp(b.(arith.BitVec), false)
	case arith.Float:
		return a.TotalCmp(b.(arith.Float))
	}
	panic(fmt.Sprintf("domain: unexpected scalar %T", a))
}
