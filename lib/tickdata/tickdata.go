// Package tickdata owns the sparse registry of initialized ticks and the
// bitmap index used to find the next initialized tick. Both structures live
// behind this one type so they can never disagree: every flip of a tick's
// initialized state mutates the registry and the bitmap together.
package tickdata

import (
	"errors"
	"fmt"

	"github.com/mklemme/clpool/lib/bitops"
	cons "github.com/mklemme/clpool/lib/constants"
	"github.com/mklemme/clpool/lib/liquiditymath"

	ui "github.com/holiman/uint256"
)

var (
	ErrTickMisaligned        = errors.New("tickdata: tick not a multiple of spacing")
	ErrTickLiquidityOverflow = errors.New("tickdata: tick liquidity under/overflow")
)

// TickInfo is the per-tick record. LiquidityGross is unsigned 128-bit,
// LiquidityNet is a signed 128-bit value in two's complement.
type TickInfo struct {
	LiquidityGross        *ui.Int
	LiquidityNet          *ui.Int
	FeeGrowthOutside0X128 *ui.Int
	FeeGrowthOutside1X128 *ui.Int
}

func newTickInfo() *TickInfo {
	return &TickInfo{
		LiquidityGross:        new(ui.Int),
		LiquidityNet:          new(ui.Int),
		FeeGrowthOutside0X128: new(ui.Int),
		FeeGrowthOutside1X128: new(ui.Int),
	}
}

func (t *TickInfo) clone() *TickInfo {
	return &TickInfo{
		LiquidityGross:        t.LiquidityGross.Clone(),
		LiquidityNet:          t.LiquidityNet.Clone(),
		FeeGrowthOutside0X128: t.FeeGrowthOutside0X128.Clone(),
		FeeGrowthOutside1X128: t.FeeGrowthOutside1X128.Clone(),
	}
}

// TickData maps tick index -> record and word index -> 256-bit bitmap word.
// A tick is initialized iff it is present in ticks, iff its bit is set.
type TickData struct {
	ticks  map[int]*TickInfo
	bitmap map[int]*ui.Int
}

func NewTickData() *TickData {
	return &TickData{
		ticks:  make(map[int]*TickInfo),
		bitmap: make(map[int]*ui.Int),
	}
}

// Get returns a copy of the record for tick, if initialized.
func (t *TickData) Get(tick int) (*TickInfo, bool) {
	info, ok := t.ticks[tick]
	if !ok {
		return nil, false
	}
	return info.clone(), true
}

// Count returns the number of initialized ticks.
func (t *TickData) Count() int {
	return len(t.ticks)
}

// UpdateTick applies a signed liquidity delta to the tick referenced as a
// position boundary. When the tick's gross liquidity crosses zero in either
// direction the tick flips: it is created (seeding its outside fee growth
// from the globals when it sits at or below the current tick) or removed,
// and its bitmap bit toggles in the same call. Returns whether the tick
// flipped and the gross liquidity after the update.
func (t *TickData) UpdateTick(tick, spacing int, liquidityDelta, feeGrowthGlobal0X128, feeGrowthGlobal1X128 *ui.Int, upper bool, tickCurrent int) (bool, *ui.Int, error) {
	if tick%spacing != 0 {
		return false, nil, fmt.Errorf("%w: tick %d spacing %d", ErrTickMisaligned, tick, spacing)
	}

	info, exists := t.ticks[tick]
	if !exists {
		info = newTickInfo()
	}

	grossBefore := info.LiquidityGross
	grossAfter, err := liquiditymath.AddDelta(grossBefore, liquidityDelta)
	if err != nil {
		return false, nil, fmt.Errorf("%w: tick %d", ErrTickLiquidityOverflow, tick)
	}
	flipped := grossAfter.IsZero() != grossBefore.IsZero()

	if grossBefore.IsZero() {
		// First reference: ticks at or below the current price are treated
		// as having accrued all fee growth so far on their outside.
		if tick <= tickCurrent {
			info.FeeGrowthOutside0X128 = feeGrowthGlobal0X128.Clone()
			info.FeeGrowthOutside1X128 = feeGrowthGlobal1X128.Clone()
		}
	}

	net := info.LiquidityNet.Clone()
	if upper {
		net.Sub(net, liquidityDelta)
	} else {
		net.Add(net, liquidityDelta)
	}
	if net.Sgt(cons.MaxInt128) || net.Slt(cons.MinInt128) {
		return false, nil, fmt.Errorf("%w: tick %d", ErrTickLiquidityOverflow, tick)
	}

	if grossAfter.IsZero() {
		if exists {
			delete(t.ticks, tick)
		}
	} else {
		info.LiquidityGross = grossAfter
		info.LiquidityNet = net
		t.ticks[tick] = info
	}
	if flipped {
		t.flipBit(tick / spacing)
	}
	return flipped, grossAfter.Clone(), nil
}

// Restore puts back a tick record previously captured with Get, adjusting
// the bitmap when the tick's initialized state changed in between. A nil
// info restores "not initialized". Used to rewind a partially applied
// position change.
func (t *TickData) Restore(tick, spacing int, info *TickInfo) {
	_, present := t.ticks[tick]
	if (info != nil) != present {
		t.flipBit(tick / spacing)
	}
	if info == nil {
		delete(t.ticks, tick)
		return
	}
	t.ticks[tick] = info.clone()
}

// Cross moves the tick's fee-growth-outside values to the other side of the
// tick and returns its net liquidity. The caller must only cross initialized
// ticks.
func (t *TickData) Cross(tick int, feeGrowthGlobal0X128, feeGrowthGlobal1X128 *ui.Int) *ui.Int {
	info, ok := t.ticks[tick]
	if !ok {
		return new(ui.Int)
	}
	info.FeeGrowthOutside0X128 = new(ui.Int).Sub(feeGrowthGlobal0X128, info.FeeGrowthOutside0X128)
	info.FeeGrowthOutside1X128 = new(ui.Int).Sub(feeGrowthGlobal1X128, info.FeeGrowthOutside1X128)
	return info.LiquidityNet.Clone()
}

// NextInitializedTickWithinOneWord searches one 256-tick word of the bitmap
// for the next initialized tick. searchLeft follows decreasing ticks and
// includes the starting tick; the other direction starts one spacing above.
// When the word holds no set bit past the starting position the word's
// boundary tick is returned with initialized == false, and the caller
// continues from there.
func (t *TickData) NextInitializedTickWithinOneWord(tick, spacing int, searchLeft bool) (int, bool) {
	compressed := floorDiv(tick, spacing)

	if searchLeft {
		wordPos, bitPos := position(compressed)
		// All bits at or below bitPos.
		mask := new(ui.Int).Sub(new(ui.Int).Lsh(cons.One, bitPos+1), cons.One)
		masked := new(ui.Int).And(t.word(wordPos), mask)
		if !masked.IsZero() {
			msb, _ := bitops.MostSignificantBit(masked)
			return (compressed - int(bitPos-msb)) * spacing, true
		}
		return (compressed - int(bitPos)) * spacing, false
	}

	compressed++
	wordPos, bitPos := position(compressed)
	// All bits at or above bitPos.
	mask := new(ui.Int).Not(new(ui.Int).Sub(new(ui.Int).Lsh(cons.One, bitPos), cons.One))
	masked := new(ui.Int).And(t.word(wordPos), mask)
	if !masked.IsZero() {
		lsb, _ := bitops.LeastSignificantBit(masked)
		return (compressed + int(lsb-bitPos)) * spacing, true
	}
	return (compressed + int(255-bitPos)) * spacing, false
}

// GetFeeGrowthInside returns the fee growth accrued strictly inside
// [tickLower, tickUpper] as global - below - above, with wraparound
// subtraction since the accumulators are monotonic mod 2^256.
func (t *TickData) GetFeeGrowthInside(tickLower, tickUpper, tickCurrent int, feeGrowthGlobal0X128, feeGrowthGlobal1X128 *ui.Int) (*ui.Int, *ui.Int) {
	lower := t.outside(tickLower)
	upper := t.outside(tickUpper)

	var below0, below1 *ui.Int
	if tickCurrent >= tickLower {
		below0 = lower.FeeGrowthOutside0X128.Clone()
		below1 = lower.FeeGrowthOutside1X128.Clone()
	} else {
		below0 = new(ui.Int).Sub(feeGrowthGlobal0X128, lower.FeeGrowthOutside0X128)
		below1 = new(ui.Int).Sub(feeGrowthGlobal1X128, lower.FeeGrowthOutside1X128)
	}

	var above0, above1 *ui.Int
	if tickCurrent < tickUpper {
		above0 = upper.FeeGrowthOutside0X128.Clone()
		above1 = upper.FeeGrowthOutside1X128.Clone()
	} else {
		above0 = new(ui.Int).Sub(feeGrowthGlobal0X128, upper.FeeGrowthOutside0X128)
		above1 = new(ui.Int).Sub(feeGrowthGlobal1X128, upper.FeeGrowthOutside1X128)
	}

	inside0 := new(ui.Int).Sub(new(ui.Int).Sub(feeGrowthGlobal0X128, below0), above0)
	inside1 := new(ui.Int).Sub(new(ui.Int).Sub(feeGrowthGlobal1X128, below1), above1)
	return inside0, inside1
}

func (t *TickData) outside(tick int) *TickInfo {
	if info, ok := t.ticks[tick]; ok {
		return info
	}
	return newTickInfo()
}

func (t *TickData) word(wordPos int) *ui.Int {
	if w, ok := t.bitmap[wordPos]; ok {
		return w
	}
	return cons.Zero
}

func (t *TickData) flipBit(compressed int) {
	wordPos, bitPos := position(compressed)
	w, ok := t.bitmap[wordPos]
	if !ok {
		w = new(ui.Int)
		t.bitmap[wordPos] = w
	}
	w.Xor(w, new(ui.Int).Lsh(cons.One, bitPos))
	if w.IsZero() {
		delete(t.bitmap, wordPos)
	}
}

// position splits a compressed tick into its bitmap word index and the bit
// offset within that word.
func position(compressed int) (int, uint) {
	wordPos := compressed >> 8
	return wordPos, uint(compressed - wordPos*256)
}

func floorDiv(x, y int) int {
	q := x / y
	if x%y != 0 && (x < 0) != (y < 0) {
		q--
	}
	return q
}
