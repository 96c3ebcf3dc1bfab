// Package addr provides small generic helpers for address and offset
// arithmetic shared by the line-table encoder.
package addr

import (
	"golang.org/x/exp/constraints"
)

// Align rounds value up to the next multiple of alignment. An alignment of
// zero or one is a no-op.
func Align[T constraints.Integer](value T, alignment T) T {
	if alignment <= 1 {
		return value
	}
	remainder := value % alignment
	if remainder == 0 {
		return value
	}
	return value + (alignment - remainder)
}

// Max returns the larger of a and b.
func Max[T constraints.Ordered](a, b T) T {
	if a > b {
		return a
	}
	return b
}

// Min returns the smaller of a and b.
func Min[T constraints.Ordered](a, b T) T {
	if a < b {
		return a
	}
	return b
}

// DivCeil divides a by b, rounding up. b must be positive.
func DivCeil[T constraints.Integer](a, b T) T {
	if a%b == 0 {
		return a / b
	}
	return a/b + 1
}
