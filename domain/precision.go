package domain

import (
	"fmt"
	"strings"
)

// RequiredTag describes how much structure the backward analysis needs of a
// value. Tags are sets: requirements only ever rise by gaining bits, from
// RequireConstant toward RequireTop.
type RequiredTag uint8

const (
	RequireConstant RequiredTag = 1 << iota
	RequireExact
	RequireIntervalConstantBounds
	RequireIntervalExactBounds
	RequireExactDisjunction
	RequireConstantDisjunction
	RequireTop
)

var requiredNames = [...]string{
	"constant",
	"exact",
	"interval-constant-bounds",
	"interval-exact-bounds",
	"exact-disjunction",
	"constant-disjunction",
	"top",
}

func (t RequiredTag) String() string {
	if t == 0 {
		return "none"
	}
	var parts []string
	for i, name := range requiredNames {
		if t&(1<<i) != 0 {
			parts = append(parts, name)
		}
	}
	return strings.Join(parts, "|")
}

// QueryRequired classifies v by the structure it carries.
func QueryRequired(v Value) RequiredTag {
	switch v := v.(type) {
	case *Constant:
		return RequireConstant
	case *Interval:
		lo, ok1 := v.Min.(*Constant)
		hi, ok2 := v.Max.(*Constant)
		switch {
		case ok1 && ok2 && scalarEqual(lo.Scalar, hi.Scalar):
			return RequireExact
		case ok1 && ok2:
			return RequireIntervalConstantBounds
		default:
			return RequireIntervalExactBounds
		}
	case *Disjunction:
		switch v.CountAtomic() {
		case 0:
			return 0
		case 1:
			if len(v.exacts) == 1 {
				return RequireConstant
			}
			return QueryRequired(v.mays[0])
		}
		if len(v.mays) == 0 {
			return RequireConstantDisjunction
		}
		return RequireExactDisjunction
	case *Guard:
		var t RequiredTag
		if v.Then != nil {
			t |= QueryRequired(v.Then)
		}
		if v.Else != nil {
			t |= QueryRequired(v.Else)
		}
		return t
	case *Formal:
		var t RequiredTag
		for _, a := range v.Args {
			t |= QueryRequired(a)
		}
		return t
	case *Top:
		return RequireTop
	case *Lattice:
		return v.Required
	case *Shared:
		return QueryRequired(v.cell.v)
	default:
		panic(fmt.Sprintf("domain: unexpected value %T", v))
	}
}

// raise adds the requirements implied by result to l. It reports whether
// the tag changed.
func (l *Lattice) raise(result Value) bool {
	if l.Complete {
		return false
	}
	implied := QueryRequired(result)
	if implied&^l.Required == 0 {
		return false
	}
	l.Required |= implied
	l.Complete = l.Required&RequireTop != 0
	return true
}
