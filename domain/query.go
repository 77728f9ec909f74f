package domain

import "fmt"

// ZeroResult is the answer of QueryZeroResult.
type ZeroResult uint8

const (
	MaybeZero ZeroResult = iota
	DefinitelyZero
	DefinitelyNonZero
)

func (z ZeroResult) String() string {
	switch z {
	case MaybeZero:
		return "maybe-zero"
	case DefinitelyZero:
		return "zero"
	case DefinitelyNonZero:
		return "non-zero"
	default:
		return fmt.Sprintf("ZeroResult(%d)", z)
	}
}

// QueryZeroResult reports whether v stands only for zero, only for non-zero
// values, or for both. A guard answers for the union of its branches. Float
// zeros of either sign count as zero.
func QueryZeroResult(v Value, env *Env) ZeroResult {
	s := env.concretize(v)
	zero, nonzero := s.zeroness()
	switch {
	case zero && !nonzero:
		return DefinitelyZero
	case nonzero && !zero:
		return DefinitelyNonZero
	default:
		return MaybeZero
	}
}
