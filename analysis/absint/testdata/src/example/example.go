package pkg

import "math"

func doubling(x int) int {
	n := 0
	for i := 0; i < 10; i++ {
		n = n * 2
	}
	return x / n // want `integer division by zero`
}

func masked(x uint8, c bool) uint8 {
	d := uint8(4)
	if c {
		d = 8
	}
	return x % (d & 3) // want `integer division by zero`
}

func unknownDivisor(x, y int) int {
	return x / y
}

func floatDivision(x float64) float64 {
	z := 0.0
	return x / z
}

func halved(x uint8) bool {
	y := x / 2
	return y < 200 // want `this comparison is always true`
}

func unsigned(x uint) bool {
	return x >= 0 // want `this comparison is always true`
}

func lowBits(x int) bool {
	return x&7 == 8 // want `this comparison is always false`
}

func clamped(x int) bool {
	y := min(max(x, 0), 100)
	return y > 100 // want `this comparison is always false`
}

func absolute(x float64) bool {
	return math.Abs(x) < 0 // want `this comparison is always false`
}

func undecided(x int) bool {
	return x < 10
}

func counter() int {
	n := 0
	for i := 0; i < 10; i++ {
		n += i
	}
	return n
}

func widened(x int8) int16 {
	y := int16(x)
	if y > 200 { // want `this comparison is always false`
		return 0
	}
	return y
}

func generic[T ~uint8](x T) bool {
	return x/2 > 200 // want `this comparison is always false`
}

func mixed[T ~int8 | ~uint8](x T) bool {
	return x > 100
}
