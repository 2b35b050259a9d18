// Package fullmath computes floor(a*b/d) and ceil(a*b/d) over 256-bit
// operands without losing the 512-bit intermediate product.
package fullmath

import (
	"errors"

	cons "github.com/mklemme/clpool/lib/constants"

	ui "github.com/holiman/uint256"
)

var (
	ErrDivisionByZero = errors.New("fullmath: division by zero")
	ErrOverflow       = errors.New("fullmath: result does not fit in 256 bits")
)

// MulDiv returns floor(a*b/denominator). The intermediate product is kept at
// full width, so the only failure modes are a zero denominator and a true
// quotient above 2^256-1.
func MulDiv(a, b, denominator *ui.Int) (*ui.Int, error) {
	if denominator.IsZero() {
		return nil, ErrDivisionByZero
	}
	result, overflow := new(ui.Int).MulDivOverflow(a, b, denominator)
	if overflow {
		return nil, ErrOverflow
	}
	return result, nil
}

// MulDivRoundingUp returns ceil(a*b/denominator).
func MulDivRoundingUp(a, b, denominator *ui.Int) (*ui.Int, error) {
	result, err := MulDiv(a, b, denominator)
	if err != nil {
		return nil, err
	}
	rem := new(ui.Int).MulMod(a, b, denominator)
	if !rem.IsZero() {
		if result.Eq(cons.MaxUint256) {
			return nil, ErrOverflow
		}
		result.Add(result, cons.One)
	}
	return result, nil
}

// DivRoundingUp returns ceil(x/y) for y != 0.
func DivRoundingUp(x, y *ui.Int) (*ui.Int, error) {
	if y.IsZero() {
		return nil, ErrDivisionByZero
	}
	quot := new(ui.Int).Div(x, y)
	rem := new(ui.Int).Mod(x, y)
	if !rem.IsZero() {
		quot.Add(quot, cons.One)
	}
	return quot, nil
}
