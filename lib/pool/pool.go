// Package pool sequences initialize, modify-position, swap and donate over
// one pool's state. Operations are all-or-nothing: every failure path leaves
// the pool exactly as it was, and the swap loop stages its results locally
// and commits Slot0, liquidity and fee growth only after a clean exit.
package pool

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mklemme/clpool/lib/balance"
	cons "github.com/mklemme/clpool/lib/constants"
	"github.com/mklemme/clpool/lib/fees"
	fm "github.com/mklemme/clpool/lib/fullmath"
	"github.com/mklemme/clpool/lib/liquiditymath"
	"github.com/mklemme/clpool/lib/position"
	sqrtmath "github.com/mklemme/clpool/lib/sqrtprice_math"
	"github.com/mklemme/clpool/lib/swapmath"
	td "github.com/mklemme/clpool/lib/tickdata"
	"github.com/mklemme/clpool/lib/tickmath"

	ui "github.com/holiman/uint256"
)

var (
	ErrPoolAlreadyInitialized    = errors.New("pool: already initialized")
	ErrPoolNotInitialized        = errors.New("pool: not initialized")
	ErrTicksMisordered           = errors.New("pool: tick lower must be below tick upper")
	ErrTickLowerOutOfBounds      = errors.New("pool: tick lower out of bounds")
	ErrTickUpperOutOfBounds      = errors.New("pool: tick upper out of bounds")
	ErrPriceLimitAlreadyExceeded = errors.New("pool: price limit already exceeded")
	ErrPriceLimitOutOfBounds     = errors.New("pool: price limit out of bounds")
	ErrNoLiquidityToReceiveFees  = errors.New("pool: no liquidity to receive fees")
	ErrInvalidFeeForExactOut     = errors.New("pool: 100% fee cannot fill an exact-output swap")
	ErrInvalidFee                = errors.New("pool: fee exceeds 100%")
)

// Slot0 is the pool's hot state. SqrtPriceX96 == 0 marks an uninitialized
// pool; otherwise Tick is the greatest tick whose price is at most
// SqrtPriceX96.
type Slot0 struct {
	SqrtPriceX96 *ui.Int
	Tick         int
	ProtocolFee  fees.ProtocolFee
	LPFee        uint32
}

// ModifyPositionParams describes a liquidity change on a tick range.
// LiquidityDelta is signed: positive adds liquidity (the caller pays the
// principal), negative removes it.
type ModifyPositionParams struct {
	Owner          common.Address
	TickLower      int
	TickUpper      int
	LiquidityDelta *ui.Int
	TickSpacing    int
	Salt           common.Hash
}

// SwapParams describes one swap. AmountSpecified is signed: negative means
// exact-input, non-negative exact-output. LPFeeOverride, when set, replaces
// the pool's configured LP fee for this swap only.
type SwapParams struct {
	AmountSpecified   *ui.Int
	SqrtPriceLimitX96 *ui.Int
	ZeroForOne        bool
	TickSpacing       int
	LPFeeOverride     *uint32
}

// Pool aggregates the hot state, the global fee-growth accumulators, the
// active liquidity, the tick registry and the position registry. A pool is
// single-writer; callers serialize access.
type Pool struct {
	slot0                Slot0
	feeGrowthGlobal0X128 *ui.Int
	feeGrowthGlobal1X128 *ui.Int
	liquidity            *ui.Int
	ticks                *td.TickData
	positions            *position.Manager
}

func New() *Pool {
	return &Pool{
		slot0:                Slot0{SqrtPriceX96: new(ui.Int)},
		feeGrowthGlobal0X128: new(ui.Int),
		feeGrowthGlobal1X128: new(ui.Int),
		liquidity:            new(ui.Int),
		ticks:                td.NewTickData(),
		positions:            position.NewManager(),
	}
}

// Initialized reports whether Initialize has run.
func (p *Pool) Initialized() bool { return !p.slot0.SqrtPriceX96.IsZero() }

// SqrtPriceX96 returns the current sqrt price.
func (p *Pool) SqrtPriceX96() *ui.Int { return p.slot0.SqrtPriceX96.Clone() }

// Tick returns the current tick.
func (p *Pool) Tick() int { return p.slot0.Tick }

// Liquidity returns the currently active liquidity.
func (p *Pool) Liquidity() *ui.Int { return p.liquidity.Clone() }

// LPFee returns the configured LP fee in pips.
func (p *Pool) LPFee() uint32 { return p.slot0.LPFee }

// ProtocolFee returns the packed per-direction protocol fee.
func (p *Pool) ProtocolFee() fees.ProtocolFee { return p.slot0.ProtocolFee }

// FeeGrowthGlobals returns both global fee-growth accumulators.
func (p *Pool) FeeGrowthGlobals() (*ui.Int, *ui.Int) {
	return p.feeGrowthGlobal0X128.Clone(), p.feeGrowthGlobal1X128.Clone()
}

// Position returns a copy of a position, if present.
func (p *Pool) Position(key position.Key) (*position.Info, bool) {
	return p.positions.Get(key)
}

// PositionCount returns the number of live positions.
func (p *Pool) PositionCount() int { return p.positions.Count() }

// TickInfo returns a copy of an initialized tick's record.
func (p *Pool) TickInfo(tick int) (*td.TickInfo, bool) { return p.ticks.Get(tick) }

// TickCount returns the number of initialized ticks.
func (p *Pool) TickCount() int { return p.ticks.Count() }

// Initialize sets the starting price and LP fee and moves the pool to the
// initialized state. Returns the tick matching sqrtPriceX96.
func (p *Pool) Initialize(sqrtPriceX96 *ui.Int, lpFee uint32) (int, error) {
	if p.Initialized() {
		return 0, ErrPoolAlreadyInitialized
	}
	if lpFee > swapmath.MaxSwapFee {
		return 0, ErrInvalidFee
	}
	tick, err := tickmath.GetTickAtSqrtPrice(sqrtPriceX96)
	if err != nil {
		return 0, err
	}
	p.slot0 = Slot0{
		SqrtPriceX96: sqrtPriceX96.Clone(),
		Tick:         tick,
		LPFee:        lpFee,
	}
	return tick, nil
}

// SetProtocolFee replaces the packed protocol fee.
func (p *Pool) SetProtocolFee(fee fees.ProtocolFee) error {
	if !p.Initialized() {
		return ErrPoolNotInitialized
	}
	if !fee.Valid() {
		return fees.ErrInvalidProtocolFee
	}
	p.slot0.ProtocolFee = fee
	return nil
}

// SetLPFee replaces the configured LP fee.
func (p *Pool) SetLPFee(lpFee uint32) error {
	if !p.Initialized() {
		return ErrPoolNotInitialized
	}
	if lpFee > swapmath.MaxSwapFee {
		return ErrInvalidFee
	}
	p.slot0.LPFee = lpFee
	return nil
}

// MaxLiquidityPerTick returns the gross liquidity ceiling for one tick:
// 2^128-1 spread evenly across every usable tick at the given spacing.
func MaxLiquidityPerTick(spacing int) *ui.Int {
	numTicks := (tickmath.MaxUsableTick(spacing)-tickmath.MinUsableTick(spacing))/spacing + 1
	return new(ui.Int).Div(cons.MaxUint128, ui.NewInt(uint64(numTicks)))
}

func checkTicks(tickLower, tickUpper int) error {
	if tickLower >= tickUpper {
		return fmt.Errorf("%w: [%d, %d)", ErrTicksMisordered, tickLower, tickUpper)
	}
	if tickLower < tickmath.MinTick {
		return fmt.Errorf("%w: %d", ErrTickLowerOutOfBounds, tickLower)
	}
	if tickUpper > tickmath.MaxTick {
		return fmt.Errorf("%w: %d", ErrTickUpperOutOfBounds, tickUpper)
	}
	return nil
}

// ModifyPosition adds or removes liquidity on a tick range. It returns the
// principal delta (negative components when the caller deposits) and the fee
// delta settled from the position's accrued fees (non-negative components).
func (p *Pool) ModifyPosition(params ModifyPositionParams) (balance.Delta, balance.Delta, error) {
	if !p.Initialized() {
		return balance.Delta{}, balance.Delta{}, ErrPoolNotInitialized
	}
	if err := checkTicks(params.TickLower, params.TickUpper); err != nil {
		return balance.Delta{}, balance.Delta{}, err
	}
	delta := params.LiquidityDelta
	if delta.IsZero() {
		return balance.Zero(), balance.Zero(), nil
	}

	// Both boundary ticks move together; a failure on the second (or on any
	// later step) restores the snapshots so no partial update escapes. A
	// plain inverse delta would not do: removing the last liquidity from a
	// tick deletes its record, and re-creating it would re-seed the
	// fee-growth-outside history from the current globals.
	lowerBefore, _ := p.ticks.Get(params.TickLower)
	upperBefore, _ := p.ticks.Get(params.TickUpper)
	unwindTicks := func() {
		p.ticks.Restore(params.TickLower, params.TickSpacing, lowerBefore)
		p.ticks.Restore(params.TickUpper, params.TickSpacing, upperBefore)
	}

	_, grossLower, err := p.ticks.UpdateTick(params.TickLower, params.TickSpacing, delta, p.feeGrowthGlobal0X128, p.feeGrowthGlobal1X128, false, p.slot0.Tick)
	if err != nil {
		return balance.Delta{}, balance.Delta{}, err
	}
	_, grossUpper, err := p.ticks.UpdateTick(params.TickUpper, params.TickSpacing, delta, p.feeGrowthGlobal0X128, p.feeGrowthGlobal1X128, true, p.slot0.Tick)
	if err != nil {
		unwindTicks()
		return balance.Delta{}, balance.Delta{}, err
	}

	if delta.Sign() > 0 {
		maxPerTick := MaxLiquidityPerTick(params.TickSpacing)
		if grossLower.Gt(maxPerTick) || grossUpper.Gt(maxPerTick) {
			unwindTicks()
			return balance.Delta{}, balance.Delta{}, fmt.Errorf("%w: max liquidity per tick", td.ErrTickLiquidityOverflow)
		}
	}

	principal, err := p.principalDelta(params.TickLower, params.TickUpper, delta)
	if err != nil {
		unwindTicks()
		return balance.Delta{}, balance.Delta{}, err
	}

	// Precompute the active-liquidity change so it cannot fail after the
	// position registry has been touched.
	liquidityNext := p.liquidity
	inRange := p.slot0.Tick >= params.TickLower && p.slot0.Tick < params.TickUpper
	if inRange {
		liquidityNext, err = liquiditymath.AddDelta(p.liquidity, delta)
		if err != nil {
			unwindTicks()
			return balance.Delta{}, balance.Delta{}, err
		}
	}

	inside0, inside1 := p.ticks.GetFeeGrowthInside(params.TickLower, params.TickUpper, p.slot0.Tick, p.feeGrowthGlobal0X128, p.feeGrowthGlobal1X128)
	key := position.Key{Owner: params.Owner, TickLower: params.TickLower, TickUpper: params.TickUpper, Salt: params.Salt}
	feesOwed, err := p.positions.Update(key, delta, inside0, inside1)
	if err != nil {
		unwindTicks()
		return balance.Delta{}, balance.Delta{}, err
	}

	p.liquidity = liquidityNext
	return principal, feesOwed, nil
}

// principalDelta converts a liquidity change into the token amounts the
// caller owes (negative) or receives (positive), depending on where the
// current tick sits relative to the range.
func (p *Pool) principalDelta(tickLower, tickUpper int, liquidityDelta *ui.Int) (balance.Delta, error) {
	priceLower, err := tickmath.GetSqrtPriceAtTick(tickLower)
	if err != nil {
		return balance.Delta{}, err
	}
	priceUpper, err := tickmath.GetSqrtPriceAtTick(tickUpper)
	if err != nil {
		return balance.Delta{}, err
	}

	amount0, amount1 := new(ui.Int), new(ui.Int)
	switch {
	case p.slot0.Tick < tickLower:
		// Range entirely above the current price: token0 only.
		amount0, err = sqrtmath.GetAmount0DeltaSigned(priceLower, priceUpper, liquidityDelta)
		if err != nil {
			return balance.Delta{}, err
		}
	case p.slot0.Tick < tickUpper:
		amount0, err = sqrtmath.GetAmount0DeltaSigned(p.slot0.SqrtPriceX96, priceUpper, liquidityDelta)
		if err != nil {
			return balance.Delta{}, err
		}
		amount1, err = sqrtmath.GetAmount1DeltaSigned(priceLower, p.slot0.SqrtPriceX96, liquidityDelta)
		if err != nil {
			return balance.Delta{}, err
		}
	default:
		// Range entirely below the current price: token1 only.
		amount1, err = sqrtmath.GetAmount1DeltaSigned(priceLower, priceUpper, liquidityDelta)
		if err != nil {
			return balance.Delta{}, err
		}
	}

	// Positive amounts are deposits the caller owes.
	return balance.New(new(ui.Int).Neg(amount0), new(ui.Int).Neg(amount1))
}

type swapStep struct {
	sqrtPriceStartX96 *ui.Int
	tickNext          int
	initialized       bool
	sqrtPriceNextX96  *ui.Int
	amountIn          *ui.Int
	amountOut         *ui.Int
	feeAmount         *ui.Int
}

type swapState struct {
	amountSpecifiedRemaining *ui.Int
	amountCalculated         *ui.Int
	sqrtPriceX96             *ui.Int
	tick                     int
	feeGrowthGlobalX128      *ui.Int
	liquidity                *ui.Int
	amountToProtocol         *ui.Int
}

// Swap executes a swap against the pool. It walks initialized ticks toward
// the price limit, consuming the specified amount step by step, and commits
// price, tick, liquidity and fee growth only when the walk completes.
// Returns the caller-facing balance delta and the protocol's cut of the
// swap fee, denominated in the input token.
func (p *Pool) Swap(params SwapParams) (balance.Delta, *ui.Int, error) {
	if !p.Initialized() {
		return balance.Delta{}, nil, ErrPoolNotInitialized
	}

	limit := params.SqrtPriceLimitX96
	if params.ZeroForOne {
		if !limit.Lt(p.slot0.SqrtPriceX96) {
			return balance.Delta{}, nil, ErrPriceLimitAlreadyExceeded
		}
		if !limit.Gt(tickmath.MinSqrtPrice) {
			return balance.Delta{}, nil, ErrPriceLimitOutOfBounds
		}
	} else {
		if !limit.Gt(p.slot0.SqrtPriceX96) {
			return balance.Delta{}, nil, ErrPriceLimitAlreadyExceeded
		}
		if !limit.Lt(tickmath.MaxSqrtPrice) {
			return balance.Delta{}, nil, ErrPriceLimitOutOfBounds
		}
	}

	lpFee := p.slot0.LPFee
	if params.LPFeeOverride != nil {
		lpFee = *params.LPFeeOverride
		if lpFee > swapmath.MaxSwapFee {
			return balance.Delta{}, nil, ErrInvalidFee
		}
	}
	swapFee := p.slot0.ProtocolFee.SwapFee(params.ZeroForOne, lpFee)

	exactInput := params.AmountSpecified.Sign() < 0
	if !exactInput && swapFee == swapmath.MaxSwapFee {
		return balance.Delta{}, nil, ErrInvalidFeeForExactOut
	}

	protocolFeeDir := uint32(p.slot0.ProtocolFee.OneForZero())
	if params.ZeroForOne {
		protocolFeeDir = uint32(p.slot0.ProtocolFee.ZeroForOne())
	}

	feeGrowthGlobal := p.feeGrowthGlobal0X128
	if !params.ZeroForOne {
		feeGrowthGlobal = p.feeGrowthGlobal1X128
	}
	state := swapState{
		amountSpecifiedRemaining: params.AmountSpecified.Clone(),
		amountCalculated:         new(ui.Int),
		sqrtPriceX96:             p.slot0.SqrtPriceX96.Clone(),
		tick:                     p.slot0.Tick,
		feeGrowthGlobalX128:      feeGrowthGlobal.Clone(),
		liquidity:                p.liquidity.Clone(),
		amountToProtocol:         new(ui.Int),
	}

	for !state.amountSpecifiedRemaining.IsZero() && !state.sqrtPriceX96.Eq(limit) {
		var step swapStep
		step.sqrtPriceStartX96 = state.sqrtPriceX96.Clone()
		step.tickNext, step.initialized = p.ticks.NextInitializedTickWithinOneWord(state.tick, params.TickSpacing, params.ZeroForOne)

		// The bitmap word may extend past the usable range.
		if step.tickNext < tickmath.MinTick {
			step.tickNext = tickmath.MinTick
		} else if step.tickNext > tickmath.MaxTick {
			step.tickNext = tickmath.MaxTick
		}

		var err error
		step.sqrtPriceNextX96, err = tickmath.GetSqrtPriceAtTick(step.tickNext)
		if err != nil {
			return balance.Delta{}, nil, err
		}
		target := swapmath.GetSqrtPriceTarget(params.ZeroForOne, step.sqrtPriceNextX96, limit)

		state.sqrtPriceX96, step.amountIn, step.amountOut, step.feeAmount, err = swapmath.ComputeSwapStep(
			state.sqrtPriceX96, target, state.liquidity, state.amountSpecifiedRemaining, swapFee)
		if err != nil {
			return balance.Delta{}, nil, err
		}

		if exactInput {
			inPlusFee := new(ui.Int).Add(step.amountIn, step.feeAmount)
			state.amountSpecifiedRemaining.Add(state.amountSpecifiedRemaining, inPlusFee)
			state.amountCalculated.Add(state.amountCalculated, step.amountOut)
		} else {
			state.amountSpecifiedRemaining.Sub(state.amountSpecifiedRemaining, step.amountOut)
			state.amountCalculated.Sub(state.amountCalculated, new(ui.Int).Add(step.amountIn, step.feeAmount))
		}

		if protocolFeeDir > 0 {
			// The protocol's share comes off the step fee before the
			// remainder accrues to LPs. When the whole swap fee is the
			// protocol fee, the entire step fee is the protocol's.
			var protocolDelta *ui.Int
			if swapFee == protocolFeeDir {
				protocolDelta = step.feeAmount.Clone()
			} else {
				inPlusFee := new(ui.Int).Add(step.amountIn, step.feeAmount)
				protocolDelta, err = fm.MulDiv(inPlusFee, ui.NewInt(uint64(protocolFeeDir)), ui.NewInt(cons.FeePipsDenominator))
				if err != nil {
					return balance.Delta{}, nil, err
				}
			}
			step.feeAmount.Sub(step.feeAmount, protocolDelta)
			state.amountToProtocol.Add(state.amountToProtocol, protocolDelta)
		}

		if state.liquidity.Sign() > 0 {
			growth, err := fm.MulDiv(step.feeAmount, cons.Q128, state.liquidity)
			if err != nil {
				return balance.Delta{}, nil, err
			}
			state.feeGrowthGlobalX128.Add(state.feeGrowthGlobalX128, growth)
		}

		if state.sqrtPriceX96.Eq(step.sqrtPriceNextX96) {
			// Reached the next tick's price; cross it if initialized.
			if step.initialized {
				fg0, fg1 := p.feeGrowthGlobal0X128, p.feeGrowthGlobal1X128
				if params.ZeroForOne {
					fg0 = state.feeGrowthGlobalX128
				} else {
					fg1 = state.feeGrowthGlobalX128
				}
				liquidityNet := p.ticks.Cross(step.tickNext, fg0, fg1)
				if params.ZeroForOne {
					liquidityNet.Neg(liquidityNet)
				}
				state.liquidity, err = liquiditymath.AddDelta(state.liquidity, liquidityNet)
				if err != nil {
					return balance.Delta{}, nil, err
				}
			}
			if params.ZeroForOne {
				state.tick = step.tickNext - 1
			} else {
				state.tick = step.tickNext
			}
		} else if !state.sqrtPriceX96.Eq(step.sqrtPriceStartX96) {
			state.tick, err = tickmath.GetTickAtSqrtPrice(state.sqrtPriceX96)
			if err != nil {
				return balance.Delta{}, nil, err
			}
		}
	}

	// Commit the staged state.
	p.slot0.SqrtPriceX96 = state.sqrtPriceX96
	p.slot0.Tick = state.tick
	p.liquidity = state.liquidity
	if params.ZeroForOne {
		p.feeGrowthGlobal0X128 = state.feeGrowthGlobalX128
	} else {
		p.feeGrowthGlobal1X128 = state.feeGrowthGlobalX128
	}

	specified := new(ui.Int).Sub(params.AmountSpecified, state.amountSpecifiedRemaining)
	var delta balance.Delta
	var err error
	if params.ZeroForOne == exactInput {
		delta, err = balance.New(specified, state.amountCalculated)
	} else {
		delta, err = balance.New(state.amountCalculated, specified)
	}
	if err != nil {
		return balance.Delta{}, nil, err
	}
	return delta, state.amountToProtocol, nil
}

// Donate distributes a payment across all currently active liquidity by
// bumping both global fee-growth accumulators.
func (p *Pool) Donate(amount0, amount1 *ui.Int) (balance.Delta, error) {
	if !p.Initialized() {
		return balance.Delta{}, ErrPoolNotInitialized
	}
	if p.liquidity.IsZero() {
		return balance.Delta{}, ErrNoLiquidityToReceiveFees
	}

	growth0, err := fm.MulDiv(amount0, cons.Q128, p.liquidity)
	if err != nil {
		return balance.Delta{}, err
	}
	growth1, err := fm.MulDiv(amount1, cons.Q128, p.liquidity)
	if err != nil {
		return balance.Delta{}, err
	}
	delta, err := balance.New(new(ui.Int).Neg(amount0), new(ui.Int).Neg(amount1))
	if err != nil {
		return balance.Delta{}, err
	}
	p.feeGrowthGlobal0X128.Add(p.feeGrowthGlobal0X128, growth0)
	p.feeGrowthGlobal1X128.Add(p.feeGrowthGlobal1X128, growth1)
	return delta, nil
}
