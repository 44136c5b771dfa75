package memutils

import (
	cerrors "github.com/cockroachdb/errors"
)

type Number interface {
	~int | ~uint
}

func CheckPow2[T Number](number T, name string) error {
	if number&(number-1) != 0 {
		return cerrors.Wrapf(PowerOfTwoError, "%s is %d", name, number)
	}
	return nil
}

// Padding returns the number of bytes that must be skipped past address before
// the next byte sits on the requested alignment. An alignment of 0 requests no
// particular alignment and always produces 0.
func Padding(address int, alignment uint) int {
	if alignment == 0 {
		return 0
	}

	return (int(alignment) - address%int(alignment)) % int(alignment)
}

func AlignUp(value int, alignment uint) int {
	return (value + int(alignment) - 1) & int(^(alignment - 1))
}

func AlignDown(value int, alignment uint) int {
	return value & int(^(alignment - 1))
}
