// Package swapmath computes a single swap step between two sqrt prices.
package swapmath

import (
	cons "github.com/mklemme/clpool/lib/constants"
	fm "github.com/mklemme/clpool/lib/fullmath"
	sqrtmath "github.com/mklemme/clpool/lib/sqrtprice_math"

	ui "github.com/holiman/uint256"
)

// MaxSwapFee is the fee ceiling in hundredths of a basis point (100%).
const MaxSwapFee = cons.FeePipsDenominator

// GetSqrtPriceTarget picks the price the current step may move to: the
// nearer of the next initialized tick's price and the swap's limit price.
func GetSqrtPriceTarget(zeroForOne bool, sqrtPriceNextX96, sqrtPriceLimitX96 *ui.Int) *ui.Int {
	if zeroForOne {
		if sqrtPriceNextX96.Lt(sqrtPriceLimitX96) {
			return sqrtPriceLimitX96
		}
		return sqrtPriceNextX96
	}
	if sqrtPriceNextX96.Gt(sqrtPriceLimitX96) {
		return sqrtPriceLimitX96
	}
	return sqrtPriceNextX96
}

// ComputeSwapStep advances a swap from sqrtPriceCurrentX96 toward
// sqrtPriceTargetX96. amountRemaining is signed: negative means exact-input
// (amount left to pull from the swapper, fee inclusive), non-negative means
// exact-output (amount still owed to the swapper). Returns the price the
// step ends at, the input consumed, the output produced and the fee charged.
//
// The step ends at the target price unless the remaining amount runs out
// first. For exact-input the fee is carved out of the remaining amount before
// the price move, so when the target is not reached the entire unconsumed
// remainder is the fee.
func ComputeSwapStep(sqrtPriceCurrentX96, sqrtPriceTargetX96, liquidity, amountRemaining *ui.Int, feePips uint32) (sqrtPriceNextX96, amountIn, amountOut, feeAmount *ui.Int, err error) {
	if feePips > MaxSwapFee {
		return nil, nil, nil, nil, sqrtmath.ErrInvalidPrice
	}
	if liquidity.IsZero() {
		return nil, nil, nil, nil, sqrtmath.ErrNotEnoughLiquidity
	}

	zeroForOne := !sqrtPriceCurrentX96.Lt(sqrtPriceTargetX96)
	exactIn := amountRemaining.Sign() < 0
	feeBase := ui.NewInt(uint64(MaxSwapFee - feePips))

	if exactIn {
		amountRemainingAbs := new(ui.Int).Neg(amountRemaining)
		amountRemainingLessFee, mErr := fm.MulDiv(amountRemainingAbs, feeBase, ui.NewInt(MaxSwapFee))
		if mErr != nil {
			return nil, nil, nil, nil, mErr
		}
		if zeroForOne {
			amountIn, err = sqrtmath.GetAmount0Delta(sqrtPriceTargetX96, sqrtPriceCurrentX96, liquidity, true)
		} else {
			amountIn, err = sqrtmath.GetAmount1Delta(sqrtPriceCurrentX96, sqrtPriceTargetX96, liquidity, true)
		}
		if err != nil {
			return nil, nil, nil, nil, err
		}

		if !amountRemainingLessFee.Lt(amountIn) {
			// The whole distance to the target is affordable.
			sqrtPriceNextX96 = new(ui.Int).Set(sqrtPriceTargetX96)
			if feePips == MaxSwapFee {
				feeAmount = new(ui.Int).Set(amountIn)
			} else {
				feeAmount, err = fm.MulDivRoundingUp(amountIn, ui.NewInt(uint64(feePips)), feeBase)
				if err != nil {
					return nil, nil, nil, nil, err
				}
			}
		} else {
			sqrtPriceNextX96, err = sqrtmath.GetNextSqrtPriceFromInput(sqrtPriceCurrentX96, liquidity, amountRemainingLessFee, zeroForOne)
			if err != nil {
				return nil, nil, nil, nil, err
			}
			// Target not reached: everything beyond the post-fee input is fee.
			amountIn = amountRemainingLessFee
			feeAmount = new(ui.Int).Sub(amountRemainingAbs, amountRemainingLessFee)
		}

		if zeroForOne {
			amountOut, err = sqrtmath.GetAmount1Delta(sqrtPriceNextX96, sqrtPriceCurrentX96, liquidity, false)
		} else {
			amountOut, err = sqrtmath.GetAmount0Delta(sqrtPriceCurrentX96, sqrtPriceNextX96, liquidity, false)
		}
		if err != nil {
			return nil, nil, nil, nil, err
		}
		return sqrtPriceNextX96, amountIn, amountOut, feeAmount, nil
	}

	// Exact output.
	if zeroForOne {
		amountOut, err = sqrtmath.GetAmount1Delta(sqrtPriceTargetX96, sqrtPriceCurrentX96, liquidity, false)
	} else {
		amountOut, err = sqrtmath.GetAmount0Delta(sqrtPriceCurrentX96, sqrtPriceTargetX96, liquidity, false)
	}
	if err != nil {
		return nil, nil, nil, nil, err
	}

	if !amountRemaining.Lt(amountOut) {
		sqrtPriceNextX96 = new(ui.Int).Set(sqrtPriceTargetX96)
	} else {
		amountOut = new(ui.Int).Set(amountRemaining)
		sqrtPriceNextX96, err = sqrtmath.GetNextSqrtPriceFromOutput(sqrtPriceCurrentX96, liquidity, amountOut, zeroForOne)
		if err != nil {
			return nil, nil, nil, nil, err
		}
	}

	if zeroForOne {
		amountIn, err = sqrtmath.GetAmount0Delta(sqrtPriceNextX96, sqrtPriceCurrentX96, liquidity, true)
	} else {
		amountIn, err = sqrtmath.GetAmount1Delta(sqrtPriceCurrentX96, sqrtPriceNextX96, liquidity, true)
	}
	if err != nil {
		return nil, nil, nil, nil, err
	}
	feeAmount, err = fm.MulDivRoundingUp(amountIn, ui.NewInt(uint64(feePips)), feeBase)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return sqrtPriceNextX96, amountIn, amountOut, feeAmount, nil
}
