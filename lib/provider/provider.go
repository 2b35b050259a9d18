// Package provider implements an auto-ranging liquidity provider: it keeps
// one position centered on the current price and re-ranges it on demand,
// folding collected fees back into the budget.
package provider

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mklemme/clpool/lib/balance"
	la "github.com/mklemme/clpool/lib/liquidity_amounts"
	"github.com/mklemme/clpool/lib/manager"
	"github.com/mklemme/clpool/lib/tickmath"

	ui "github.com/holiman/uint256"
)

var ErrNoPosition = errors.New("provider: no open position")

// Provider holds a token budget and at most one live position on
// [current-width, current+width], rounded to the pool's tick spacing.
type Provider struct {
	Owner         common.Address
	Amount0       *ui.Int
	Amount1       *ui.Int
	IntervalWidth int

	mgr *manager.Manager
	key manager.PoolKey

	liquidity *ui.Int
	tickLower int
	tickUpper int
}

func New(mgr *manager.Manager, key manager.PoolKey, owner common.Address, amount0, amount1 *ui.Int, intervalWidth int) *Provider {
	return &Provider{
		Owner:         owner,
		Amount0:       amount0.Clone(),
		Amount1:       amount1.Clone(),
		IntervalWidth: intervalWidth,
		mgr:           mgr,
		key:           key,
		liquidity:     new(ui.Int),
	}
}

// HasPosition reports whether a position is currently open.
func (p *Provider) HasPosition() bool { return !p.liquidity.IsZero() }

// Range returns the open position's tick bounds.
func (p *Provider) Range() (int, int) { return p.tickLower, p.tickUpper }

// Liquidity returns the open position's liquidity.
func (p *Provider) Liquidity() *ui.Int { return p.liquidity.Clone() }

// Open mints a position around the current price, spending as much of the
// budget as the range allows.
func (p *Provider) Open() error {
	if p.HasPosition() {
		return p.Rebalance()
	}
	return p.mint()
}

// Rebalance burns the open position, collects principal and fees into the
// budget, and mints a fresh position around the current price.
func (p *Provider) Rebalance() error {
	if !p.HasPosition() {
		return ErrNoPosition
	}
	if err := p.burn(); err != nil {
		return err
	}
	return p.mint()
}

// Close burns the open position and returns the final budget.
func (p *Provider) Close() (*ui.Int, *ui.Int, error) {
	if p.HasPosition() {
		if err := p.burn(); err != nil {
			return nil, nil, err
		}
	}
	return p.Amount0.Clone(), p.Amount1.Clone(), nil
}

// Holdings returns the budget plus the amounts currently locked in the
// position at the pool's current price.
func (p *Provider) Holdings() (*ui.Int, *ui.Int, error) {
	amount0, amount1 := p.Amount0.Clone(), p.Amount1.Clone()
	if !p.HasPosition() {
		return amount0, amount1, nil
	}
	pl, ok := p.mgr.Pool(p.key)
	if !ok {
		return nil, nil, manager.ErrPoolNotFound
	}
	priceLower, err := tickmath.GetSqrtPriceAtTick(p.tickLower)
	if err != nil {
		return nil, nil, err
	}
	priceUpper, err := tickmath.GetSqrtPriceAtTick(p.tickUpper)
	if err != nil {
		return nil, nil, err
	}
	locked0, locked1, err := la.GetAmountsForLiquidity(pl.SqrtPriceX96(), priceLower, priceUpper, p.liquidity)
	if err != nil {
		return nil, nil, err
	}
	amount0.Add(amount0, locked0)
	amount1.Add(amount1, locked1)
	return amount0, amount1, nil
}

func (p *Provider) mint() error {
	pl, ok := p.mgr.Pool(p.key)
	if !ok {
		return manager.ErrPoolNotFound
	}
	tick := pl.Tick()
	tickLower := tickmath.Round(tick-p.IntervalWidth, p.key.TickSpacing)
	tickUpper := tickmath.Round(tick+p.IntervalWidth, p.key.TickSpacing)
	if tickLower >= tickUpper {
		tickUpper = tickLower + p.key.TickSpacing
	}

	priceLower, err := tickmath.GetSqrtPriceAtTick(tickLower)
	if err != nil {
		return err
	}
	priceUpper, err := tickmath.GetSqrtPriceAtTick(tickUpper)
	if err != nil {
		return err
	}
	liquidity, err := la.GetLiquidityForAmounts(pl.SqrtPriceX96(), priceLower, priceUpper, p.Amount0, p.Amount1)
	if err != nil {
		return err
	}
	if liquidity.IsZero() {
		return nil
	}

	principal, feesOwed, err := p.mgr.ModifyLiquidity(p.key, manager.ModifyLiquidityParams{
		Owner:          p.Owner,
		TickLower:      tickLower,
		TickUpper:      tickUpper,
		LiquidityDelta: liquidity,
	})
	if err != nil {
		return err
	}
	p.settle(principal)
	p.settle(feesOwed)
	p.liquidity = liquidity
	p.tickLower, p.tickUpper = tickLower, tickUpper
	return nil
}

func (p *Provider) burn() error {
	principal, feesOwed, err := p.mgr.ModifyLiquidity(p.key, manager.ModifyLiquidityParams{
		Owner:          p.Owner,
		TickLower:      p.tickLower,
		TickUpper:      p.tickUpper,
		LiquidityDelta: new(ui.Int).Neg(p.liquidity),
	})
	if err != nil {
		return err
	}
	p.settle(principal)
	p.settle(feesOwed)
	p.liquidity = new(ui.Int)
	return nil
}

// settle applies a signed delta to the budget. Positive components are owed
// to the provider, negative ones are paid from the budget. Mint rounding can
// ask for a wei more than the budget holds; the budget floors at zero
// instead of wrapping.
func (p *Provider) settle(delta balance.Delta) {
	apply := func(budget, d *ui.Int) {
		if d.Sign() < 0 {
			owed := new(ui.Int).Neg(d)
			if owed.Gt(budget) {
				budget.Clear()
				return
			}
			budget.Sub(budget, owed)
			return
		}
		budget.Add(budget, d)
	}
	apply(p.Amount0, delta.Amount0)
	apply(p.Amount1, delta.Amount1)
}
