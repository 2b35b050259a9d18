// Package bitops locates set bits in 256-bit words. Used by tickmath and the
// tick bitmap search.
package bitops

import (
	"errors"
	"math/bits"

	ui "github.com/holiman/uint256"
)

var ErrZeroValue = errors.New("bitops: zero value")

// MostSignificantBit returns the index of the highest set bit of x.
// x == 0 is an error.
func MostSignificantBit(x *ui.Int) (uint, error) {
	if x.IsZero() {
		return 0, ErrZeroValue
	}
	return uint(x.BitLen() - 1), nil
}

// LeastSignificantBit returns the index of the lowest set bit of x.
// x == 0 is an error.
func LeastSignificantBit(x *ui.Int) (uint, error) {
	if x.IsZero() {
		return 0, ErrZeroValue
	}
	words := ([4]uint64)(*x)
	for i := 0; i < 4; i++ {
		if words[i] != 0 {
			return uint(i*64 + bits.TrailingZeros64(words[i])), nil
		}
	}
	return 0, ErrZeroValue
}
