// Package manager routes operations to pools by key, dispatches hook
// callbacks around them, and keeps the protocol fee ledger.
package manager

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/mklemme/clpool/lib/balance"
	"github.com/mklemme/clpool/lib/fees"
	"github.com/mklemme/clpool/lib/hooks"
	"github.com/mklemme/clpool/lib/pool"
	"github.com/mklemme/clpool/lib/position"

	ui "github.com/holiman/uint256"
)

const (
	MinTickSpacing = 1
	MaxTickSpacing = 16384
)

var (
	ErrCurrenciesOutOfOrder = errors.New("manager: token0 must sort below token1")
	ErrInvalidTickSpacing   = errors.New("manager: tick spacing out of range")
	ErrInvalidFee           = errors.New("manager: fee exceeds 100%")
	ErrPoolNotFound         = errors.New("manager: pool not found")
	ErrSwapAmountZero       = errors.New("manager: swap amount cannot be zero")
)

// PoolKey identifies a pool. Token0 must sort below Token1 bytewise; Fee is
// the LP fee in pips; Hook may be nil for a plain pool.
type PoolKey struct {
	Token0      common.Address
	Token1      common.Address
	Fee         uint32
	TickSpacing int
	Hook        hooks.Hook
}

// Validate checks the key's static constraints.
func (k PoolKey) Validate() error {
	if bytes.Compare(k.Token0[:], k.Token1[:]) >= 0 {
		return fmt.Errorf("%w: %s >= %s", ErrCurrenciesOutOfOrder, k.Token0, k.Token1)
	}
	if k.TickSpacing < MinTickSpacing || k.TickSpacing > MaxTickSpacing {
		return fmt.Errorf("%w: %d", ErrInvalidTickSpacing, k.TickSpacing)
	}
	if k.Fee > fees.MaxLPFee {
		return fmt.Errorf("%w: %d", ErrInvalidFee, k.Fee)
	}
	return nil
}

func (k PoolKey) hook() hooks.Hook {
	if k.Hook == nil {
		return hooks.Noop{}
	}
	return k.Hook
}

// ID derives the pool's identifier from the key's static fields.
func (k PoolKey) ID() common.Hash {
	var buf bytes.Buffer
	buf.Write(k.Token0[:])
	buf.Write(k.Token1[:])
	buf.Write([]byte{byte(k.Fee >> 16), byte(k.Fee >> 8), byte(k.Fee)})
	spacing := uint32(k.TickSpacing)
	buf.Write([]byte{byte(spacing >> 24), byte(spacing >> 16), byte(spacing >> 8), byte(spacing)})
	return crypto.Keccak256Hash(buf.Bytes())
}

type poolEntry struct {
	key  PoolKey
	pool *pool.Pool
}

// Manager owns every pool and the protocol's accrued fees.
type Manager struct {
	mu      sync.Mutex
	pools   map[common.Hash]*poolEntry
	accrued *fees.Accrued
	log     *zap.Logger
}

func New(log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		pools:   make(map[common.Hash]*poolEntry),
		accrued: fees.NewAccrued(),
		log:     log,
	}
}

// ModifyLiquidityParams is the caller-facing shape of a position change.
type ModifyLiquidityParams struct {
	Owner          common.Address
	TickLower      int
	TickUpper      int
	LiquidityDelta *ui.Int
	Salt           common.Hash
}

// SwapRequest is the caller-facing shape of a swap. AmountSpecified is
// signed: negative means exact-input.
type SwapRequest struct {
	ZeroForOne        bool
	AmountSpecified   *ui.Int
	SqrtPriceLimitX96 *ui.Int
}

// Initialize creates and initializes the pool for key at the given price.
// Returns the pool ID and the starting tick.
func (m *Manager) Initialize(key PoolKey, sqrtPriceX96 *ui.Int) (common.Hash, int, error) {
	if err := key.Validate(); err != nil {
		return common.Hash{}, 0, err
	}
	id := key.ID()

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pools[id]; ok {
		return id, 0, pool.ErrPoolAlreadyInitialized
	}

	h := key.hook()
	if h.Capabilities().BeforeInitialize {
		if err := h.BeforeInitialize(id, sqrtPriceX96); err != nil {
			return id, 0, err
		}
	}

	p := pool.New()
	tick, err := p.Initialize(sqrtPriceX96, key.Fee)
	if err != nil {
		return id, 0, err
	}
	m.pools[id] = &poolEntry{key: key, pool: p}

	if h.Capabilities().AfterInitialize {
		if err := h.AfterInitialize(id, sqrtPriceX96, tick); err != nil {
			delete(m.pools, id)
			return id, 0, err
		}
	}

	m.log.Info("pool initialized",
		zap.Stringer("pool", id),
		zap.Stringer("token0", key.Token0),
		zap.Stringer("token1", key.Token1),
		zap.Uint32("fee", key.Fee),
		zap.Int("tickSpacing", key.TickSpacing),
		zap.Int("tick", tick),
	)
	return id, tick, nil
}

// ModifyLiquidity adds or removes liquidity on a pool. Returns the principal
// delta and the settled fee delta.
func (m *Manager) ModifyLiquidity(key PoolKey, params ModifyLiquidityParams) (balance.Delta, balance.Delta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, err := m.lookup(key)
	if err != nil {
		return balance.Delta{}, balance.Delta{}, err
	}

	h := key.hook()
	id := key.ID()
	if h.Capabilities().BeforeModifyPosition {
		if err := h.BeforeModifyPosition(id, params.Owner, params.TickLower, params.TickUpper, params.LiquidityDelta); err != nil {
			return balance.Delta{}, balance.Delta{}, err
		}
	}

	principal, feesOwed, err := entry.pool.ModifyPosition(pool.ModifyPositionParams{
		Owner:          params.Owner,
		TickLower:      params.TickLower,
		TickUpper:      params.TickUpper,
		LiquidityDelta: params.LiquidityDelta,
		TickSpacing:    key.TickSpacing,
		Salt:           params.Salt,
	})
	if err != nil {
		return balance.Delta{}, balance.Delta{}, err
	}

	// After callbacks run post-commit: their error surfaces to the caller,
	// but the deltas are real and must still be settled.
	if h.Capabilities().AfterModifyPosition {
		if err := h.AfterModifyPosition(id, params.Owner, params.TickLower, params.TickUpper, params.LiquidityDelta); err != nil {
			return principal, feesOwed, err
		}
	}

	m.log.Debug("liquidity modified",
		zap.Stringer("pool", id),
		zap.Int("tickLower", params.TickLower),
		zap.Int("tickUpper", params.TickUpper),
		zap.String("principal", principal.String()),
	)
	return principal, feesOwed, nil
}

// Swap executes a swap on a pool. The protocol's cut of the swap fee accrues
// to the ledger under the input currency.
func (m *Manager) Swap(key PoolKey, req SwapRequest) (balance.Delta, error) {
	if req.AmountSpecified.IsZero() {
		return balance.Delta{}, ErrSwapAmountZero
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	entry, err := m.lookup(key)
	if err != nil {
		return balance.Delta{}, err
	}

	h := key.hook()
	id := key.ID()
	var lpFeeOverride *uint32
	if h.Capabilities().BeforeSwap {
		res, err := h.BeforeSwap(id, req.ZeroForOne, req.AmountSpecified)
		if err != nil {
			return balance.Delta{}, err
		}
		lpFeeOverride = res.LPFeeOverride
	}

	delta, amountToProtocol, err := entry.pool.Swap(pool.SwapParams{
		AmountSpecified:   req.AmountSpecified,
		SqrtPriceLimitX96: req.SqrtPriceLimitX96,
		ZeroForOne:        req.ZeroForOne,
		TickSpacing:       key.TickSpacing,
		LPFeeOverride:     lpFeeOverride,
	})
	if err != nil {
		return balance.Delta{}, err
	}

	if !amountToProtocol.IsZero() {
		currency := key.Token1
		if req.ZeroForOne {
			currency = key.Token0
		}
		m.accrued.Add(currency, amountToProtocol)
	}

	if h.Capabilities().AfterSwap {
		if err := h.AfterSwap(id, req.ZeroForOne, req.AmountSpecified); err != nil {
			return delta, err
		}
	}

	m.log.Debug("swap executed",
		zap.Stringer("pool", id),
		zap.Bool("zeroForOne", req.ZeroForOne),
		zap.String("delta", delta.String()),
	)
	return delta, nil
}

// Donate pays amount0/amount1 to the pool's in-range liquidity providers.
func (m *Manager) Donate(key PoolKey, amount0, amount1 *ui.Int) (balance.Delta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, err := m.lookup(key)
	if err != nil {
		return balance.Delta{}, err
	}

	h := key.hook()
	id := key.ID()
	if h.Capabilities().BeforeDonate {
		if err := h.BeforeDonate(id, amount0, amount1); err != nil {
			return balance.Delta{}, err
		}
	}

	delta, err := entry.pool.Donate(amount0, amount1)
	if err != nil {
		return balance.Delta{}, err
	}

	if h.Capabilities().AfterDonate {
		if err := h.AfterDonate(id, amount0, amount1); err != nil {
			return delta, err
		}
	}
	return delta, nil
}

// SetProtocolFee replaces a pool's packed protocol fee.
func (m *Manager) SetProtocolFee(key PoolKey, fee fees.ProtocolFee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, err := m.lookup(key)
	if err != nil {
		return err
	}
	return entry.pool.SetProtocolFee(fee)
}

// SetLPFee replaces a pool's LP fee.
func (m *Manager) SetLPFee(key PoolKey, lpFee uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, err := m.lookup(key)
	if err != nil {
		return err
	}
	return entry.pool.SetLPFee(lpFee)
}

// CollectProtocolFees withdraws up to amount of accrued protocol fees for a
// currency; a zero amount withdraws everything.
func (m *Manager) CollectProtocolFees(currency common.Address, amount *ui.Int) *ui.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accrued.Collect(currency, amount)
}

// ProtocolFeesAccrued returns the balance accrued for a currency.
func (m *Manager) ProtocolFeesAccrued(currency common.Address) *ui.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accrued.Balance(currency)
}

// Pool returns the pool for key, if initialized.
func (m *Manager) Pool(key PoolKey) (*pool.Pool, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.pools[key.ID()]
	if !ok {
		return nil, false
	}
	return entry.pool, true
}

// Position returns a copy of a position on the keyed pool.
func (m *Manager) Position(key PoolKey, posKey position.Key) (*position.Info, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.pools[key.ID()]
	if !ok {
		return nil, false
	}
	return entry.pool.Position(posKey)
}

func (m *Manager) lookup(key PoolKey) (*poolEntry, error) {
	entry, ok := m.pools[key.ID()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPoolNotFound, key.ID())
	}
	return entry, nil
}
