// Package position tracks per-position liquidity and fee checkpoints.
package position

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mklemme/clpool/lib/balance"
	cons "github.com/mklemme/clpool/lib/constants"
	fm "github.com/mklemme/clpool/lib/fullmath"
	"github.com/mklemme/clpool/lib/liquiditymath"

	ui "github.com/holiman/uint256"
)

var (
	ErrPositionNotFound   = errors.New("position: cannot update empty position")
	ErrTokensOwedOverflow = errors.New("position: tokens owed exceed 128 bits")
)

// Key identifies a position. Two positions with identical owner and range
// are still distinct if their salts differ.
type Key struct {
	Owner     common.Address
	TickLower int
	TickUpper int
	Salt      common.Hash
}

// Info holds a position's liquidity, its fee-growth-inside checkpoints as of
// the last update, and fees accrued but not yet paid out.
type Info struct {
	Liquidity                *ui.Int
	FeeGrowthInside0LastX128 *ui.Int
	FeeGrowthInside1LastX128 *ui.Int
	TokensOwed0              *ui.Int
	TokensOwed1              *ui.Int
}

func newInfo() *Info {
	return &Info{
		Liquidity:                new(ui.Int),
		FeeGrowthInside0LastX128: new(ui.Int),
		FeeGrowthInside1LastX128: new(ui.Int),
		TokensOwed0:              new(ui.Int),
		TokensOwed1:              new(ui.Int),
	}
}

func (i *Info) clone() *Info {
	return &Info{
		Liquidity:                i.Liquidity.Clone(),
		FeeGrowthInside0LastX128: i.FeeGrowthInside0LastX128.Clone(),
		FeeGrowthInside1LastX128: i.FeeGrowthInside1LastX128.Clone(),
		TokensOwed0:              i.TokensOwed0.Clone(),
		TokensOwed1:              i.TokensOwed1.Clone(),
	}
}

// Manager owns the position registry of a single pool.
type Manager struct {
	positions map[Key]*Info
}

func NewManager() *Manager {
	return &Manager{positions: make(map[Key]*Info)}
}

// Get returns a copy of the position, if present.
func (m *Manager) Get(key Key) (*Info, bool) {
	info, ok := m.positions[key]
	if !ok {
		return nil, false
	}
	return info.clone(), true
}

// Count returns the number of live positions.
func (m *Manager) Count() int {
	return len(m.positions)
}

// Update applies a signed liquidity delta and settles fees against the given
// fee-growth-inside accumulators. The position is created on its first
// positive delta and removed once its liquidity returns to zero; removal
// pays out everything still owed. The returned delta is the fee amount the
// pool owes the position (always non-negative).
func (m *Manager) Update(key Key, liquidityDelta, feeGrowthInside0X128, feeGrowthInside1X128 *ui.Int) (balance.Delta, error) {
	info, exists := m.positions[key]
	if !exists {
		if liquidityDelta.Sign() <= 0 {
			return balance.Delta{}, ErrPositionNotFound
		}
		info = newInfo()
		m.positions[key] = info
	}

	// Fees accrued since the last checkpoint, per unit of liquidity held.
	owed0, owed1 := new(ui.Int), new(ui.Int)
	if !info.Liquidity.IsZero() {
		var err error
		owed0, err = fm.MulDiv(info.Liquidity, new(ui.Int).Sub(feeGrowthInside0X128, info.FeeGrowthInside0LastX128), cons.Q128)
		if err != nil {
			return balance.Delta{}, err
		}
		owed1, err = fm.MulDiv(info.Liquidity, new(ui.Int).Sub(feeGrowthInside1X128, info.FeeGrowthInside1LastX128), cons.Q128)
		if err != nil {
			return balance.Delta{}, err
		}
	}

	liquidityNext, err := liquiditymath.AddDelta(info.Liquidity, liquidityDelta)
	if err != nil {
		return balance.Delta{}, err
	}

	totalOwed0 := new(ui.Int).Add(info.TokensOwed0, owed0)
	totalOwed1 := new(ui.Int).Add(info.TokensOwed1, owed1)
	if totalOwed0.Gt(cons.MaxUint128) || totalOwed1.Gt(cons.MaxUint128) {
		return balance.Delta{}, ErrTokensOwedOverflow
	}

	info.FeeGrowthInside0LastX128 = feeGrowthInside0X128.Clone()
	info.FeeGrowthInside1LastX128 = feeGrowthInside1X128.Clone()

	if liquidityNext.IsZero() {
		// Final settlement: everything owed goes back with this update.
		delete(m.positions, key)
		return balance.Delta{Amount0: totalOwed0, Amount1: totalOwed1}, nil
	}

	info.Liquidity = liquidityNext
	info.TokensOwed0 = new(ui.Int)
	info.TokensOwed1 = new(ui.Int)
	return balance.Delta{Amount0: totalOwed0, Amount1: totalOwed1}, nil
}
