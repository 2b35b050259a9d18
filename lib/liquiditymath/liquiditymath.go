// Package liquiditymath applies signed deltas to 128-bit liquidity values.
package liquiditymath

import (
	"errors"

	cons "github.com/mklemme/clpool/lib/constants"

	ui "github.com/holiman/uint256"
)

var ErrInvalidLiquidity = errors.New("liquiditymath: liquidity under/overflow")

// AddDelta returns x + y where x is unsigned 128-bit liquidity and y is a
// two's-complement signed delta. Fails if the result would leave [0, 2^128).
func AddDelta(x, y *ui.Int) (*ui.Int, error) {
	z := new(ui.Int).Add(x, y)
	if y.Sign() < 0 {
		// Removal: x must cover |y|.
		if x.Lt(new(ui.Int).Neg(y)) {
			return nil, ErrInvalidLiquidity
		}
	} else {
		if z.Gt(cons.MaxUint128) {
			return nil, ErrInvalidLiquidity
		}
	}
	return z, nil
}
