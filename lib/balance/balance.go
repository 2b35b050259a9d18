// Package balance carries signed token-pair deltas between the pool core and
// its callers. Negative means the caller pays the pool, positive means the
// pool pays the caller.
package balance

import (
	"errors"
	"fmt"

	cons "github.com/mklemme/clpool/lib/constants"

	ui "github.com/holiman/uint256"
)

var ErrAmountOverflow = errors.New("balance: amount exceeds 128 bits")

// Delta is a transient pair of two's-complement signed 128-bit amounts held
// in uint256 words. It is never persisted.
type Delta struct {
	Amount0 *ui.Int
	Amount1 *ui.Int
}

// Zero returns a zero-valued delta.
func Zero() Delta {
	return Delta{Amount0: new(ui.Int), Amount1: new(ui.Int)}
}

// New checks both amounts against the signed 128-bit range.
func New(amount0, amount1 *ui.Int) (Delta, error) {
	for _, a := range []*ui.Int{amount0, amount1} {
		if a.Sgt(cons.MaxInt128) || a.Slt(cons.MinInt128) {
			return Delta{}, ErrAmountOverflow
		}
	}
	return Delta{Amount0: amount0.Clone(), Amount1: amount1.Clone()}, nil
}

// Add returns d + other componentwise.
func (d Delta) Add(other Delta) Delta {
	return Delta{
		Amount0: new(ui.Int).Add(d.Amount0, other.Amount0),
		Amount1: new(ui.Int).Add(d.Amount1, other.Amount1),
	}
}

// IsZero reports whether both components are zero.
func (d Delta) IsZero() bool {
	return d.Amount0.IsZero() && d.Amount1.IsZero()
}

func (d Delta) String() string {
	return fmt.Sprintf("(%s, %s)", signedString(d.Amount0), signedString(d.Amount1))
}

func signedString(x *ui.Int) string {
	if x.Sign() < 0 {
		return "-" + new(ui.Int).Neg(x).Dec()
	}
	return x.Dec()
}
