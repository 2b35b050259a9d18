// Package tickmath converts between tick indices and Q64.96 sqrt prices.
// A tick t represents the price 1.0001^t; the sqrt price is sqrt(1.0001^t)
// scaled by 2^96.
package tickmath

import (
	"errors"

	"github.com/mklemme/clpool/lib/bitops"
	cons "github.com/mklemme/clpool/lib/constants"

	ui "github.com/holiman/uint256"
)

const (
	// MinTick is the lowest tick any pool can reference.
	MinTick = -887272
	// MaxTick is the highest tick any pool can reference.
	MaxTick = -MinTick
)

var (
	ErrInvalidTick  = errors.New("tickmath: tick out of range")
	ErrInvalidPrice = errors.New("tickmath: sqrt price out of range")

	// MinSqrtPrice is the sqrt price at MinTick.
	MinSqrtPrice = ui.NewInt(4295128739)
	// MaxSqrtPrice is the sqrt price at MaxTick.
	MaxSqrtPrice, _ = ui.FromHex("0xfffd8963efd1fc6a506488495d951d5263988d26")
)

// Per-bit multipliers for |tick| bits 0..19: Q128 encodings of
// sqrt(1.0001)^-(2^i).
var tickRatios = mustRatios(
	"0xfffcb933bd6fad37aa2d162d1a594001",
	"0xfff97272373d413259a46990580e213a",
	"0xfff2e50f5f656932ef12357cf3c7fdcc",
	"0xffe5caca7e10e4e61c3624eaa0941cd0",
	"0xffcb9843d60f6159c9db58835c926644",
	"0xff973b41fa98c081472e6896dfb254c0",
	"0xff2ea16466c96a3843ec78b326b52861",
	"0xfe5dee046a99a2a811c461f1969c3053",
	"0xfcbe86c7900a88aedcffc83b479aa3a4",
	"0xf987a7253ac413176f2b074cf7815e54",
	"0xf3392b0822b70005940c7a398e4b70f3",
	"0xe7159475a2c29b7443b29c7fa6e889d9",
	"0xd097f3bdfd2022b8845ad8f792aa5825",
	"0xa9f746462d870fdf8a65dc1f90e061e5",
	"0x70d869a156d2a1b890bb3df62baf32f7",
	"0x31be135f97d08fd981231505542fcfa6",
	"0x9aa508b5b7a84e1c677de54f3e99bc9",
	"0x5d6af8dedb81196699c329225ee604",
	"0x2216e584f5fa1ea926041bedfe98",
	"0x48a170391f7dc42444e8fa2",
)

var (
	oneQ128, _        = ui.FromHex("0x100000000000000000000000000000000")
	magicSqrt10001, _ = ui.FromHex("0x3627A301D71055774C85")
	magicTickLow, _   = ui.FromHex("0x28F6481AB7F045A5AF012A19D003AAA")
	magicTickHigh, _  = ui.FromHex("0xDB2DF09E81959A81455E260799A0632F")
)

func mustRatios(hexes ...string) []*ui.Int {
	ratios := make([]*ui.Int, len(hexes))
	for i, h := range hexes {
		r, err := ui.FromHex(h)
		if err != nil {
			panic(err)
		}
		ratios[i] = r
	}
	return ratios
}

// GetSqrtPriceAtTick returns sqrt(1.0001^tick) * 2^96 computed by binary
// exponentiation over the precomputed per-bit ratios.
func GetSqrtPriceAtTick(tick int) (*ui.Int, error) {
	if tick < MinTick || tick > MaxTick {
		return nil, ErrInvalidTick
	}
	absTick := tick
	if absTick < 0 {
		absTick = -absTick
	}

	ratio := new(ui.Int).Set(oneQ128)
	if absTick&1 != 0 {
		ratio.Set(tickRatios[0])
	}
	for i := 1; i < len(tickRatios); i++ {
		if absTick&(1<<uint(i)) != 0 {
			ratio = mulShift(ratio, tickRatios[i])
		}
	}
	if tick > 0 {
		ratio = new(ui.Int).Div(cons.MaxUint256, ratio)
	}

	// Round the Q128 ratio up into Q96. Rounding up here keeps
	// GetTickAtSqrtPrice an exact inverse.
	sqrtPrice := new(ui.Int).Rsh(ratio, 32)
	if !new(ui.Int).And(ratio, new(ui.Int).Sub(cons.Q32, cons.One)).IsZero() {
		sqrtPrice.Add(sqrtPrice, cons.One)
	}
	return sqrtPrice, nil
}

// GetTickAtSqrtPrice returns the greatest tick whose sqrt price is at most
// sqrtPriceX96. Inverse of GetSqrtPriceAtTick for every valid tick.
func GetTickAtSqrtPrice(sqrtPriceX96 *ui.Int) (int, error) {
	if sqrtPriceX96.Lt(MinSqrtPrice) || !sqrtPriceX96.Lt(MaxSqrtPrice) {
		return 0, ErrInvalidPrice
	}

	ratio := new(ui.Int).Lsh(sqrtPriceX96, 32)
	msb, err := bitops.MostSignificantBit(ratio)
	if err != nil {
		return 0, ErrInvalidPrice
	}

	var r *ui.Int
	if msb >= 128 {
		r = new(ui.Int).Rsh(ratio, msb-127)
	} else {
		r = new(ui.Int).Lsh(ratio, 127-msb)
	}

	// log2 of the price in signed Q64.64, refined one fractional bit per
	// squaring. 14 bits are enough for the tickLow/tickHigh bound below.
	log2 := new(ui.Int).Lsh(new(ui.Int).Sub(ui.NewInt(uint64(msb)), ui.NewInt(128)), 64)
	for i := 0; i < 14; i++ {
		r = new(ui.Int).Rsh(new(ui.Int).Mul(r, r), 127)
		f := new(ui.Int).Rsh(r, 128)
		log2.Or(log2, new(ui.Int).Lsh(f, uint(63-i)))
		r.Rsh(r, uint(f.Uint64()))
	}

	logSqrt10001 := new(ui.Int).Mul(log2, magicSqrt10001)

	tickLow := int(int64(new(ui.Int).Rsh(new(ui.Int).Sub(logSqrt10001, magicTickLow), 128).Uint64()))
	tickHigh := int(int64(new(ui.Int).Rsh(new(ui.Int).Add(logSqrt10001, magicTickHigh), 128).Uint64()))

	if tickLow == tickHigh {
		return tickLow, nil
	}
	priceAtHigh, err := GetSqrtPriceAtTick(tickHigh)
	if err != nil {
		return 0, err
	}
	if !sqrtPriceX96.Lt(priceAtHigh) {
		return tickHigh, nil
	}
	return tickLow, nil
}

// Round returns the multiple of spacing nearest to tick, clamped to the
// usable range.
func Round(tick, spacing int) int {
	q, r := tick/spacing, tick%spacing
	if r < 0 {
		q--
		r += spacing
	}
	if 2*r >= spacing {
		q++
	}
	rounded := q * spacing
	if min := MinUsableTick(spacing); rounded < min {
		return min
	}
	if max := MaxUsableTick(spacing); rounded > max {
		return max
	}
	return rounded
}

// MaxUsableTick returns the largest multiple of spacing not above MaxTick.
func MaxUsableTick(spacing int) int {
	return (MaxTick / spacing) * spacing
}

// MinUsableTick returns the smallest multiple of spacing not below MinTick.
func MinUsableTick(spacing int) int {
	return (MinTick / spacing) * spacing
}

func mulShift(val, mulBy *ui.Int) *ui.Int {
	return new(ui.Int).Rsh(new(ui.Int).Mul(val, mulBy), 128)
}
