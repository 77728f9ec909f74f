package pkg

// increment and decrement are undecided because of the execution that
// wraps around.

func increment(x uint8) bool {
	return x+1 != 0
}

func decrement(x int8) bool {
	return x-1 != 127
}

func highBit(x uint8) bool {
	return x>>7 > 1 // want `this comparison is always false`
}
