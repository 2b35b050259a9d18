// Package liquidity_amounts converts between token amounts and liquidity
// over a price range.
package liquidity_amounts

import (
	cons "github.com/mklemme/clpool/lib/constants"
	fm "github.com/mklemme/clpool/lib/fullmath"
	sqrtmath "github.com/mklemme/clpool/lib/sqrtprice_math"

	ui "github.com/holiman/uint256"
)

// GetLiquidityForAmount0 returns the largest liquidity amount0 can fund on
// [sqrtRatioAX96, sqrtRatioBX96].
func GetLiquidityForAmount0(sqrtRatioAX96, sqrtRatioBX96, amount0 *ui.Int) (*ui.Int, error) {
	if sqrtRatioAX96.Gt(sqrtRatioBX96) {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}
	intermediate, err := fm.MulDiv(sqrtRatioAX96, sqrtRatioBX96, cons.Q96)
	if err != nil {
		return nil, err
	}
	return fm.MulDiv(amount0, intermediate, new(ui.Int).Sub(sqrtRatioBX96, sqrtRatioAX96))
}

// GetLiquidityForAmount1 returns the largest liquidity amount1 can fund on
// [sqrtRatioAX96, sqrtRatioBX96].
func GetLiquidityForAmount1(sqrtRatioAX96, sqrtRatioBX96, amount1 *ui.Int) (*ui.Int, error) {
	if sqrtRatioAX96.Gt(sqrtRatioBX96) {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}
	return fm.MulDiv(amount1, cons.Q96, new(ui.Int).Sub(sqrtRatioBX96, sqrtRatioAX96))
}

// GetLiquidityForAmounts returns the largest liquidity both amounts can fund
// together, given the current price.
func GetLiquidityForAmounts(sqrtRatioX96, sqrtRatioAX96, sqrtRatioBX96, amount0, amount1 *ui.Int) (*ui.Int, error) {
	if sqrtRatioAX96.Gt(sqrtRatioBX96) {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}
	switch {
	case !sqrtRatioX96.Gt(sqrtRatioAX96):
		return GetLiquidityForAmount0(sqrtRatioAX96, sqrtRatioBX96, amount0)
	case sqrtRatioX96.Lt(sqrtRatioBX96):
		liquidity0, err := GetLiquidityForAmount0(sqrtRatioX96, sqrtRatioBX96, amount0)
		if err != nil {
			return nil, err
		}
		liquidity1, err := GetLiquidityForAmount1(sqrtRatioAX96, sqrtRatioX96, amount1)
		if err != nil {
			return nil, err
		}
		if liquidity0.Lt(liquidity1) {
			return liquidity0, nil
		}
		return liquidity1, nil
	default:
		return GetLiquidityForAmount1(sqrtRatioAX96, sqrtRatioBX96, amount1)
	}
}

// GetAmountsForLiquidity returns the token amounts a liquidity position on
// [sqrtRatioAX96, sqrtRatioBX96] holds at the given current price.
func GetAmountsForLiquidity(sqrtRatioX96, sqrtRatioAX96, sqrtRatioBX96, liquidity *ui.Int) (*ui.Int, *ui.Int, error) {
	if sqrtRatioAX96.Gt(sqrtRatioBX96) {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}
	amount0, amount1 := new(ui.Int), new(ui.Int)
	var err error
	switch {
	case !sqrtRatioX96.Gt(sqrtRatioAX96):
		amount0, err = sqrtmath.GetAmount0Delta(sqrtRatioAX96, sqrtRatioBX96, liquidity, false)
		if err != nil {
			return nil, nil, err
		}
	case sqrtRatioX96.Lt(sqrtRatioBX96):
		amount0, err = sqrtmath.GetAmount0Delta(sqrtRatioX96, sqrtRatioBX96, liquidity, false)
		if err != nil {
			return nil, nil, err
		}
		amount1, err = sqrtmath.GetAmount1Delta(sqrtRatioAX96, sqrtRatioX96, liquidity, false)
		if err != nil {
			return nil, nil, err
		}
	default:
		amount1, err = sqrtmath.GetAmount1Delta(sqrtRatioAX96, sqrtRatioBX96, liquidity, false)
		if err != nil {
			return nil, nil, err
		}
	}
	return amount0, amount1, nil
}
