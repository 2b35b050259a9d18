// Package sqrtprice_math relates sqrt prices, liquidity and token amounts.
// Rounding directions always favor the pool.
package sqrtprice_math

import (
	"errors"

	cons "github.com/mklemme/clpool/lib/constants"
	fm "github.com/mklemme/clpool/lib/fullmath"

	ui "github.com/holiman/uint256"
)

var (
	ErrInvalidPrice       = errors.New("sqrtprice_math: invalid sqrt price")
	ErrNotEnoughLiquidity = errors.New("sqrtprice_math: not enough liquidity")
	ErrPriceOverflow      = errors.New("sqrtprice_math: sqrt price overflow")
)

// GetAmount0Delta returns the token0 amount between two sqrt prices for the
// given liquidity: liquidity * 2^96 * (upper - lower) / (upper * lower).
// Order of the price arguments does not matter.
func GetAmount0Delta(sqrtPriceAX96, sqrtPriceBX96, liquidity *ui.Int, roundUp bool) (*ui.Int, error) {
	if sqrtPriceAX96.Gt(sqrtPriceBX96) {
		sqrtPriceAX96, sqrtPriceBX96 = sqrtPriceBX96, sqrtPriceAX96
	}
	if sqrtPriceAX96.IsZero() {
		return nil, ErrInvalidPrice
	}

	numerator1 := new(ui.Int).Lsh(liquidity, 96)
	numerator2 := new(ui.Int).Sub(sqrtPriceBX96, sqrtPriceAX96)

	if roundUp {
		interim, err := fm.MulDivRoundingUp(numerator1, numerator2, sqrtPriceBX96)
		if err != nil {
			return nil, err
		}
		return fm.DivRoundingUp(interim, sqrtPriceAX96)
	}
	res, err := fm.MulDiv(numerator1, numerator2, sqrtPriceBX96)
	if err != nil {
		return nil, err
	}
	return res.Div(res, sqrtPriceAX96), nil
}

// GetAmount1Delta returns the token1 amount between two sqrt prices:
// liquidity * (upper - lower) / 2^96.
func GetAmount1Delta(sqrtPriceAX96, sqrtPriceBX96, liquidity *ui.Int, roundUp bool) (*ui.Int, error) {
	if sqrtPriceAX96.Gt(sqrtPriceBX96) {
		sqrtPriceAX96, sqrtPriceBX96 = sqrtPriceBX96, sqrtPriceAX96
	}
	diff := new(ui.Int).Sub(sqrtPriceBX96, sqrtPriceAX96)
	if roundUp {
		return fm.MulDivRoundingUp(liquidity, diff, cons.Q96)
	}
	return fm.MulDiv(liquidity, diff, cons.Q96)
}

// GetAmount0DeltaSigned mirrors GetAmount0Delta for a signed liquidity value:
// negative liquidity rounds down and negates, positive rounds up.
func GetAmount0DeltaSigned(sqrtPriceAX96, sqrtPriceBX96, liquidity *ui.Int) (*ui.Int, error) {
	if liquidity.Sign() < 0 {
		res, err := GetAmount0Delta(sqrtPriceAX96, sqrtPriceBX96, new(ui.Int).Neg(liquidity), false)
		if err != nil {
			return nil, err
		}
		return res.Neg(res), nil
	}
	return GetAmount0Delta(sqrtPriceAX96, sqrtPriceBX96, liquidity, true)
}

// GetAmount1DeltaSigned mirrors GetAmount1Delta for a signed liquidity value.
func GetAmount1DeltaSigned(sqrtPriceAX96, sqrtPriceBX96, liquidity *ui.Int) (*ui.Int, error) {
	if liquidity.Sign() < 0 {
		res, err := GetAmount1Delta(sqrtPriceAX96, sqrtPriceBX96, new(ui.Int).Neg(liquidity), false)
		if err != nil {
			return nil, err
		}
		return res.Neg(res), nil
	}
	return GetAmount1Delta(sqrtPriceAX96, sqrtPriceBX96, liquidity, true)
}

// GetNextSqrtPriceFromInput returns the price after adding amountIn of the
// input token at the given liquidity.
func GetNextSqrtPriceFromInput(sqrtPX96, liquidity, amountIn *ui.Int, zeroForOne bool) (*ui.Int, error) {
	if sqrtPX96.IsZero() {
		return nil, ErrInvalidPrice
	}
	if liquidity.IsZero() {
		return nil, ErrNotEnoughLiquidity
	}
	if zeroForOne {
		return getNextSqrtPriceFromAmount0RoundingUp(sqrtPX96, liquidity, amountIn, true)
	}
	return getNextSqrtPriceFromAmount1RoundingDown(sqrtPX96, liquidity, amountIn, true)
}

// GetNextSqrtPriceFromOutput returns the price after removing amountOut of
// the output token at the given liquidity.
func GetNextSqrtPriceFromOutput(sqrtPX96, liquidity, amountOut *ui.Int, zeroForOne bool) (*ui.Int, error) {
	if sqrtPX96.IsZero() {
		return nil, ErrInvalidPrice
	}
	if liquidity.IsZero() {
		return nil, ErrNotEnoughLiquidity
	}
	if zeroForOne {
		return getNextSqrtPriceFromAmount1RoundingDown(sqrtPX96, liquidity, amountOut, false)
	}
	return getNextSqrtPriceFromAmount0RoundingUp(sqrtPX96, liquidity, amountOut, false)
}

// Solves liquidity * sqrtP * 2^96 / (liquidity * 2^96 +- amount * sqrtP) for
// the new price, falling back to the divide-first form when the product
// overflows 256 bits.
func getNextSqrtPriceFromAmount0RoundingUp(sqrtPX96, liquidity, amount *ui.Int, add bool) (*ui.Int, error) {
	if amount.IsZero() {
		return new(ui.Int).Set(sqrtPX96), nil
	}
	numerator1 := new(ui.Int).Lsh(liquidity, 96)
	product := new(ui.Int).Mul(amount, sqrtPX96)

	if add {
		if new(ui.Int).Div(product, amount).Eq(sqrtPX96) {
			denominator := new(ui.Int).Add(numerator1, product)
			if !denominator.Lt(numerator1) {
				return fm.MulDivRoundingUp(numerator1, sqrtPX96, denominator)
			}
		}
		// Product overflowed; exact as long as liquidity*2^96/sqrtP has no
		// remainder folded in, which DivRoundingUp compensates for.
		denominator := new(ui.Int).Add(new(ui.Int).Div(numerator1, sqrtPX96), amount)
		return fm.DivRoundingUp(numerator1, denominator)
	}

	// Removing token0 pushes the price up; the denominator must stay positive.
	if !new(ui.Int).Div(product, amount).Eq(sqrtPX96) || !numerator1.Gt(product) {
		return nil, ErrNotEnoughLiquidity
	}
	denominator := new(ui.Int).Sub(numerator1, product)
	next, err := fm.MulDivRoundingUp(numerator1, sqrtPX96, denominator)
	if err != nil {
		return nil, err
	}
	if next.Gt(cons.MaxUint160) {
		return nil, ErrPriceOverflow
	}
	return next, nil
}

// Solves sqrtP +- amount * 2^96 / liquidity for the new price.
func getNextSqrtPriceFromAmount1RoundingDown(sqrtPX96, liquidity, amount *ui.Int, add bool) (*ui.Int, error) {
	if add {
		var quotient *ui.Int
		if !amount.Gt(cons.MaxUint160) {
			quotient = new(ui.Int).Div(new(ui.Int).Lsh(amount, 96), liquidity)
		} else {
			q, err := fm.MulDiv(amount, cons.Q96, liquidity)
			if err != nil {
				return nil, err
			}
			quotient = q
		}
		next := new(ui.Int).Add(sqrtPX96, quotient)
		if next.Lt(sqrtPX96) || next.Gt(cons.MaxUint160) {
			return nil, ErrPriceOverflow
		}
		return next, nil
	}

	quotient, err := fm.MulDivRoundingUp(amount, cons.Q96, liquidity)
	if err != nil {
		return nil, err
	}
	if !sqrtPX96.Gt(quotient) {
		return nil, ErrNotEnoughLiquidity
	}
	return new(ui.Int).Sub(sqrtPX96, quotient), nil
}
