package pkg

func division(x int) int {
	n := 0
	for i := 0; i < 3; i++ {
		n *= 5
	}
	// division-by-zero is disabled in absint.conf
	return x / n
}

func comparison(x uint16) bool {
	return x>>12 > 15 // want `this comparison is always false`
}
