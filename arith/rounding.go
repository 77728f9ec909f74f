package arith

import (
	"fmt"
	"math/big"
	"strings"
)

// RoundingMode selects the direction results are rounded in.
type RoundingMode uint8

const (
	RoundNearest RoundingMode = iota
	RoundUpward
	RoundDownward
	RoundZero
)

func (m RoundingMode) String() string {
	switch m {
	case RoundNearest:
		return "nearest"
	case RoundUpward:
		return "upward"
	case RoundDownward:
		return "downward"
	case RoundZero:
		return "zero"
	default:
		return fmt.Sprintf("RoundingMode(%d)", m)
	}
}

// ParseRoundingMode is the inverse of RoundingMode.String.
func ParseRoundingMode(s string) (RoundingMode, error) {
	switch strings.ToLower(s) {
	case "nearest", "":
		return RoundNearest, nil
	case "upward":
		return RoundUpward, nil
	case "downward":
		return RoundDownward, nil
	case "zero":
		return RoundZero, nil
	default:
		return 0, fmt.Errorf("unknown rounding mode %q", s)
	}
}

// RoundingParams is threaded through every floating-point operation.
type RoundingParams struct {
	Mode RoundingMode
	// AvoidInfinity makes overflowing results saturate to the largest finite
	// value instead of producing an infinity.
	AvoidInfinity bool
	// RoundToEven breaks ties to even in RoundNearest; otherwise ties round
	// away from zero.
	RoundToEven bool
	// RefuseMinusZero turns every -0 result into +0.
	RefuseMinusZero bool
	// SplitFused rounds the product of fused multiply-add operations before
	// the addition, instead of rounding once.
	SplitFused bool
}

// DefaultRounding returns IEEE-754 round-to-nearest-even.
func DefaultRounding() RoundingParams {
	return RoundingParams{Mode: RoundNearest, RoundToEven: true}
}

func (p RoundingParams) bigMode() big.RoundingMode {
	switch p.Mode {
	case RoundUpward:
		return big.ToPositiveInf
	case RoundDownward:
		return big.ToNegativeInf
	case RoundZero:
		return big.ToZero
	default:
		if p.RoundToEven {
			return big.ToNearestEven
		}
		return big.ToNearestAway
	}
}

// overflowsToInfinity reports whether an overflowing result with the given
// sign becomes an infinity rather than the largest finite value.
func (p RoundingParams) overflowsToInfinity(negative bool) bool {
	if p.AvoidInfinity {
		return false
	}
	switch p.Mode {
	case RoundNearest:
		return true
	case RoundUpward:
		return !negative
	case RoundDownward:
		return negative
	default:
		return false
	}
}

// FloatFlags are the dynamic exception flags of the floating-point
// sub-context.
type FloatFlags uint8

const (
	FlagInexact FloatFlags = 1 << iota
	FlagOverflow
	FlagUnderflow
	FlagDivByZero
	FlagInvalid
)

// FloatEnv is the floating-point sub-context of a Status.
type FloatEnv struct {
	RoundingParams
	// Flags accumulate over operations until the status is cleared.
	Flags FloatFlags
}
