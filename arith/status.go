// Package arith implements the bit-precise arithmetic that abstract values
// bottom out to: fixed-width two's-complement integers (BitVec) and software
// floating-point numbers of arbitrary format (Float).
//
// Operations never fail by panicking on numeric conditions. Overflow,
// underflow, division by zero and NaN production are recorded in a Status,
// which may additionally mark the computation as impossible (empty) when it
// is configured to stop on errors. Panics are reserved for precondition
// violations such as mismatched widths.
package arith

import (
	"strings"
)

// ErrorCode is a set of soft numeric conditions.
type ErrorCode uint8

const (
	PositiveOverflow ErrorCode = 1 << iota
	NegativeOverflow
	PositiveUnderflow
	NegativeUnderflow
	DivisionByZero
	NaN
)

const (
	Overflow  = PositiveOverflow | NegativeOverflow
	Underflow = PositiveUnderflow | NegativeUnderflow
	AllErrors = Overflow | Underflow | DivisionByZero | NaN
)

var errorNames = [...]string{
	"PositiveOverflow",
	"NegativeOverflow",
	"PositiveUnderflow",
	"NegativeUnderflow",
	"DivisionByZero",
	"NaN",
}

func (c ErrorCode) String() string {
	if c == 0 {
		return "none"
	}
	var parts []string
	for i, name := range errorNames {
		if c&(1<<i) != 0 {
			parts = append(parts, name)
		}
	}
	return strings.Join(parts, "|")
}

// Status collects the outcome of arithmetic operations.
type Status struct {
	Errors ErrorCode
	// Empty is set when an operation has no possible result. Arithmetic only
	// sets it through Raise when StopOnError is set.
	Empty bool
	// StopOnError makes every raised error also mark the status as empty: the
	// erroneous execution is considered not to continue.
	StopOnError bool
	// Float is the floating-point sub-context.
	Float FloatEnv
}

// Raise records err. Under StopOnError, it also marks st as empty.
func (st *Status) Raise(err ErrorCode) {
	if err == 0 {
		return
	}
	st.Errors |= err
	if st.StopOnError {
		st.Empty = true
	}
}

// Note records err without ever marking st as empty. It is used when only
// part of a set of values is erroneous.
func (st *Status) Note(err ErrorCode) {
	st.Errors |= err
}

// Clear resets the outcome while keeping the policy and rounding parameters.
func (st *Status) Clear() {
	st.Errors = 0
	st.Empty = false
	st.Float.Flags = 0
}

// Has reports whether any of err has been recorded.
func (st *Status) Has(err ErrorCode) bool { return st.Errors&err != 0 }

// absorbFloat translates the float flags raised by one operation into error
// bits, signed by the sign of the result.
func (st *Status) absorbFloat(flags FloatFlags, negative bool) {
	st.Float.Flags |= flags
	var err ErrorCode
	if flags&FlagOverflow != 0 {
		if negative {
			err |= NegativeOverflow
		} else {
			err |= PositiveOverflow
		}
	}
	if flags&FlagUnderflow != 0 {
		if negative {
			err |= NegativeUnderflow
		} else {
			err |= PositiveUnderflow
		}
	}
	if flags&FlagDivByZero != 0 {
		err |= DivisionByZero
	}
	if flags&FlagInvalid != 0 {
		err |= NaN
	}
	st.Raise(err)
}
