// Package hooks defines the extension interface pools can be created with.
// A hook's capabilities are declared up front and never change for the life
// of the pool, so the manager consults the Capabilities struct instead of
// probing the hook at call time.
package hooks

import (
	"github.com/ethereum/go-ethereum/common"

	ui "github.com/holiman/uint256"
)

// Capabilities declares which callbacks a hook wants. Fixed at pool
// creation.
type Capabilities struct {
	BeforeInitialize     bool
	AfterInitialize      bool
	BeforeModifyPosition bool
	AfterModifyPosition  bool
	BeforeSwap           bool
	AfterSwap            bool
	BeforeDonate         bool
	AfterDonate          bool
}

// BeforeSwapResult carries what a before-swap callback may change.
// LPFeeOverride, when non-nil, replaces the pool's LP fee for this swap.
type BeforeSwapResult struct {
	LPFeeOverride *uint32
}

// Hook receives lifecycle callbacks from the manager. Implementations only
// get the callbacks their Capabilities enable; the rest are never called.
// An error from a Before callback aborts the operation before it touches
// pool state. After callbacks run once the operation has committed: their
// error reaches the caller alongside the operation's real result, which
// still has to be settled. AfterInitialize is the exception, since undoing
// a pool creation is safe: its error removes the just-created pool.
type Hook interface {
	Capabilities() Capabilities

	BeforeInitialize(poolID common.Hash, sqrtPriceX96 *ui.Int) error
	AfterInitialize(poolID common.Hash, sqrtPriceX96 *ui.Int, tick int) error

	BeforeModifyPosition(poolID common.Hash, owner common.Address, tickLower, tickUpper int, liquidityDelta *ui.Int) error
	AfterModifyPosition(poolID common.Hash, owner common.Address, tickLower, tickUpper int, liquidityDelta *ui.Int) error

	BeforeSwap(poolID common.Hash, zeroForOne bool, amountSpecified *ui.Int) (BeforeSwapResult, error)
	AfterSwap(poolID common.Hash, zeroForOne bool, amountSpecified *ui.Int) error

	BeforeDonate(poolID common.Hash, amount0, amount1 *ui.Int) error
	AfterDonate(poolID common.Hash, amount0, amount1 *ui.Int) error
}

// Noop is the hook used when a pool is created without one. It declares no
// capabilities, so none of its methods are reachable through the manager.
type Noop struct{}

func (Noop) Capabilities() Capabilities { return Capabilities{} }

func (Noop) BeforeInitialize(common.Hash, *ui.Int) error     { return nil }
func (Noop) AfterInitialize(common.Hash, *ui.Int, int) error { return nil }

func (Noop) BeforeModifyPosition(common.Hash, common.Address, int, int, *ui.Int) error {
	return nil
}
func (Noop) AfterModifyPosition(common.Hash, common.Address, int, int, *ui.Int) error {
	return nil
}

func (Noop) BeforeSwap(common.Hash, bool, *ui.Int) (BeforeSwapResult, error) {
	return BeforeSwapResult{}, nil
}
func (Noop) AfterSwap(common.Hash, bool, *ui.Int) error { return nil }

func (Noop) BeforeDonate(common.Hash, *ui.Int, *ui.Int) error { return nil }
func (Noop) AfterDonate(common.Hash, *ui.Int, *ui.Int) error  { return nil }
