// Package executor replays a transaction script against a pool manager and
// keeps running totals per operation type.
package executor

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/mklemme/clpool/lib/manager"
	"github.com/mklemme/clpool/lib/tickmath"
	ent "github.com/mklemme/clpool/lib/transaction"

	ui "github.com/holiman/uint256"
)

// Summary accumulates what a run did.
type Summary struct {
	Initialized bool
	Mints       int
	Burns       int
	Swaps       int
	Donates     int
	Failed      int
	VolumeIn0   *ui.Int
	VolumeIn1   *ui.Int
}

func newSummary() *Summary {
	return &Summary{VolumeIn0: new(ui.Int), VolumeIn1: new(ui.Int)}
}

// Execution replays transactions in order against one pool. Failures of
// individual transactions are counted and logged, not fatal: the pool's
// all-or-nothing operations guarantee a failed transaction left no trace.
type Execution struct {
	Manager      *manager.Manager
	Key          manager.PoolKey
	Transactions []ent.Transaction

	log *zap.Logger
}

func NewExecution(mgr *manager.Manager, key manager.PoolKey, transactions []ent.Transaction, log *zap.Logger) *Execution {
	if log == nil {
		log = zap.NewNop()
	}
	return &Execution{
		Manager:      mgr,
		Key:          key,
		Transactions: transactions,
		log:          log,
	}
}

func (e *Execution) Run() (*Summary, error) {
	summary := newSummary()
	for i, trans := range e.Transactions {
		if err := e.apply(trans, summary); err != nil {
			if trans.Type == ent.TypeInitialize {
				// Nothing later can succeed without a pool.
				return summary, fmt.Errorf("transaction %d (%s): %w", i, trans.ID, err)
			}
			summary.Failed++
			e.log.Warn("transaction failed",
				zap.Int("index", i),
				zap.String("id", trans.ID),
				zap.String("type", trans.Type),
				zap.Error(err),
			)
		}
	}
	return summary, nil
}

func (e *Execution) apply(trans ent.Transaction, summary *Summary) error {
	switch trans.Type {
	case ent.TypeInitialize:
		_, tick, err := e.Manager.Initialize(e.Key, trans.SqrtPriceX96)
		if err != nil {
			return err
		}
		summary.Initialized = true
		e.log.Info("initialized", zap.Int("tick", tick))
		return nil

	case ent.TypeMint:
		_, _, err := e.Manager.ModifyLiquidity(e.Key, manager.ModifyLiquidityParams{
			Owner:          ownerAddress(trans.Owner),
			TickLower:      trans.TickLower,
			TickUpper:      trans.TickUpper,
			LiquidityDelta: trans.Amount,
		})
		if err != nil {
			return err
		}
		summary.Mints++
		return nil

	case ent.TypeBurn:
		_, _, err := e.Manager.ModifyLiquidity(e.Key, manager.ModifyLiquidityParams{
			Owner:          ownerAddress(trans.Owner),
			TickLower:      trans.TickLower,
			TickUpper:      trans.TickUpper,
			LiquidityDelta: new(ui.Int).Neg(trans.Amount),
		})
		if err != nil {
			return err
		}
		summary.Burns++
		return nil

	case ent.TypeSwap:
		amountSpecified := trans.Amount.Clone()
		if trans.ExactInput {
			amountSpecified.Neg(amountSpecified)
		}
		limit := trans.SqrtPriceX96
		if limit.IsZero() {
			// No explicit limit: run to the edge of the price range.
			if trans.ZeroForOne {
				limit = new(ui.Int).AddUint64(tickmath.MinSqrtPrice, 1)
			} else {
				limit = new(ui.Int).SubUint64(tickmath.MaxSqrtPrice, 1)
			}
		}
		delta, err := e.Manager.Swap(e.Key, manager.SwapRequest{
			ZeroForOne:        trans.ZeroForOne,
			AmountSpecified:   amountSpecified,
			SqrtPriceLimitX96: limit,
		})
		if err != nil {
			return err
		}
		summary.Swaps++
		if delta.Amount0.Sign() < 0 {
			summary.VolumeIn0.Add(summary.VolumeIn0, new(ui.Int).Neg(delta.Amount0))
		}
		if delta.Amount1.Sign() < 0 {
			summary.VolumeIn1.Add(summary.VolumeIn1, new(ui.Int).Neg(delta.Amount1))
		}
		return nil

	case ent.TypeDonate:
		if _, err := e.Manager.Donate(e.Key, trans.Amount0, trans.Amount1); err != nil {
			return err
		}
		summary.Donates++
		return nil
	}
	return fmt.Errorf("unknown transaction type %q", trans.Type)
}

// ownerAddress derives a stable address from a free-form owner label.
func ownerAddress(owner string) common.Address {
	if owner == "" {
		owner = "default"
	}
	if common.IsHexAddress(owner) {
		return common.HexToAddress(owner)
	}
	return common.BytesToAddress(crypto.Keccak256([]byte(owner))[12:])
}
