// utils/safemath.go
package utils

import (
	"errors"
	"math"
)

var (
	ErrArithmeticOverflow  = errors.New("arithmetic overflow")
	ErrArithmeticUnderflow = errors.New("arithmetic underflow")
)

// TryAdd returns a + b, or ErrArithmeticOverflow if the sum doesn't fit in a uint64.
func TryAdd(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, ErrArithmeticOverflow
	}
	return a + b, nil
}

// TrySub returns a - b, or ErrArithmeticUnderflow if b > a.
// Every balance/timestamp subtraction in the reward engine goes through here,
// so a bookkeeping bug (e.g. paid out more than accrued) surfaces at the point
// of use instead of wrapping around.
func TrySub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrArithmeticUnderflow
	}
	return a - b, nil
}

// TryMul returns a * b, or ErrArithmeticOverflow if the product doesn't fit in a uint64.
func TryMul(a, b uint64) (uint64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	if a > math.MaxUint64/b {
		return 0, ErrArithmeticOverflow
	}
	return a * b, nil
}
