package constants

import (
	ui "github.com/holiman/uint256"
)

var (
	Zero          = new(ui.Int)
	One           = new(ui.Int).SetOne()
	MaxUint256, _ = ui.FromHex("0xffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff")
	MaxUint160    = new(ui.Int).Sub(new(ui.Int).Lsh(One, 160), One)
	MaxUint128    = new(ui.Int).Sub(new(ui.Int).Lsh(One, 128), One)

	// MaxInt128 and MinInt128 bound two's-complement signed values carried in a uint256.
	MaxInt128 = new(ui.Int).Sub(new(ui.Int).Lsh(One, 127), One)
	MinInt128 = new(ui.Int).Neg(new(ui.Int).Lsh(One, 127))

	Q32  = new(ui.Int).Lsh(One, 32)
	Q96  = new(ui.Int).Lsh(One, 96)
	Q128 = new(ui.Int).Lsh(One, 128)
	Q192 = new(ui.Int).Lsh(One, 192)
)

// FeePipsDenominator is the fee unit: hundredths of a basis point, 1e6 == 100%.
const FeePipsDenominator = 1_000_000
