// Code generated by hand for the tests. DO NOT EDIT.

package pkg

func generatedDivision(x int) int {
	n := 0
	return x / (n * 3)
}
