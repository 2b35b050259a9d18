// Package fees packs the per-direction protocol fee and tracks protocol fee
// accrual per currency.
package fees

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"

	cons "github.com/mklemme/clpool/lib/constants"

	ui "github.com/holiman/uint256"
)

// MaxProtocolFee is the per-direction protocol fee ceiling, 0.1% in
// hundredths of a basis point.
const MaxProtocolFee = 1000

// MaxLPFee is the LP fee ceiling, 100% in pips.
const MaxLPFee = cons.FeePipsDenominator

var ErrInvalidProtocolFee = errors.New("fees: protocol fee out of range")

// ProtocolFee packs two 12-bit per-direction fees: bits 0-11 apply to
// zero-for-one swaps, bits 12-23 to one-for-zero swaps.
type ProtocolFee uint32

// NewProtocolFee packs the two directional fees.
func NewProtocolFee(zeroForOne, oneForZero uint16) ProtocolFee {
	return ProtocolFee(uint32(zeroForOne) | uint32(oneForZero)<<12)
}

// ZeroForOne returns the fee applied when token0 is the input.
func (f ProtocolFee) ZeroForOne() uint16 {
	return uint16(f & 0xfff)
}

// OneForZero returns the fee applied when token1 is the input.
func (f ProtocolFee) OneForZero() uint16 {
	return uint16((f >> 12) & 0xfff)
}

// Valid reports whether both directional fees are at most MaxProtocolFee.
func (f ProtocolFee) Valid() bool {
	return f.ZeroForOne() <= MaxProtocolFee && f.OneForZero() <= MaxProtocolFee
}

// SwapFee combines the directional protocol fee with the LP fee into the
// total fee charged on a swap step. The protocol takes its cut of the input
// first and the LP fee applies to the remainder:
// protocolFee + lpFee - protocolFee*lpFee/1e6.
func (f ProtocolFee) SwapFee(zeroForOne bool, lpFee uint32) uint32 {
	protocolFee := uint32(f.OneForZero())
	if zeroForOne {
		protocolFee = uint32(f.ZeroForOne())
	}
	return protocolFee + lpFee - protocolFee*lpFee/cons.FeePipsDenominator
}

// Accrued is the protocol's fee ledger, keyed by currency address.
type Accrued struct {
	amounts map[common.Address]*ui.Int
}

func NewAccrued() *Accrued {
	return &Accrued{amounts: make(map[common.Address]*ui.Int)}
}

// Balance returns the amount accrued for a currency.
func (a *Accrued) Balance(currency common.Address) *ui.Int {
	if amt, ok := a.amounts[currency]; ok {
		return amt.Clone()
	}
	return new(ui.Int)
}

// Add credits amount to the currency's accrued balance.
func (a *Accrued) Add(currency common.Address, amount *ui.Int) {
	if amount.IsZero() {
		return
	}
	cur, ok := a.amounts[currency]
	if !ok {
		cur = new(ui.Int)
		a.amounts[currency] = cur
	}
	cur.Add(cur, amount)
}

// Collect withdraws up to amount from the currency's balance; a zero amount
// withdraws everything. Returns the amount actually collected.
func (a *Accrued) Collect(currency common.Address, amount *ui.Int) *ui.Int {
	cur, ok := a.amounts[currency]
	if !ok {
		return new(ui.Int)
	}
	take := cur.Clone()
	if !amount.IsZero() && amount.Lt(cur) {
		take = amount.Clone()
	}
	cur.Sub(cur, take)
	if cur.IsZero() {
		delete(a.amounts, currency)
	}
	return take
}
