package swapmath

import (
	"testing"

	cons "github.com/mklemme/clpool/lib/constants"
	sqrtmath "github.com/mklemme/clpool/lib/sqrtprice_math"

	ui "github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

var (
	priceOne        = new(ui.Int).Set(cons.Q96)
	priceOneQuarter = new(ui.Int).Add(cons.Q96, new(ui.Int).Lsh(ui.NewInt(1), 94))
	priceTwo        = new(ui.Int).Lsh(ui.NewInt(1), 97)
	priceHalf       = new(ui.Int).Lsh(ui.NewInt(1), 95)
)

func exactIn(amount uint64) *ui.Int {
	return new(ui.Int).Neg(ui.NewInt(amount))
}

func TestGetSqrtPriceTarget(t *testing.T) {
	// Moving down: the limit binds only when it is above the next tick price.
	require.Equal(t, priceOne, GetSqrtPriceTarget(true, priceHalf, priceOne))
	require.Equal(t, priceOne, GetSqrtPriceTarget(true, priceOne, priceHalf))
	// Moving up: the limit binds only when it is below the next tick price.
	require.Equal(t, priceOneQuarter, GetSqrtPriceTarget(false, priceTwo, priceOneQuarter))
	require.Equal(t, priceOneQuarter, GetSqrtPriceTarget(false, priceOneQuarter, priceTwo))
}

func TestComputeSwapStepExactInReachesTarget(t *testing.T) {
	liquidity := ui.NewInt(1 << 20)

	// Moving 1.0 -> 1.25 needs exactly 2^18 of token1.
	next, amountIn, amountOut, feeAmount, err := ComputeSwapStep(priceOne, priceOneQuarter, liquidity, exactIn(1<<18), 0)
	require.NoError(t, err)
	require.Equal(t, priceOneQuarter, next)
	require.Equal(t, ui.NewInt(1<<18), amountIn)
	require.Equal(t, ui.NewInt(209715), amountOut)
	require.True(t, feeAmount.IsZero())
}

func TestComputeSwapStepExactInPartial(t *testing.T) {
	liquidity := ui.NewInt(1 << 20)

	// 1% fee, input runs out before the target: the fee is the exact
	// complement of the consumed input.
	next, amountIn, amountOut, feeAmount, err := ComputeSwapStep(priceOne, priceTwo, liquidity, exactIn(1_000_000), 10_000)
	require.NoError(t, err)
	require.True(t, next.Gt(priceOne))
	require.True(t, next.Lt(priceTwo))
	require.Equal(t, ui.NewInt(990_000), amountIn)
	require.Equal(t, ui.NewInt(10_000), feeAmount)
	require.Equal(t, ui.NewInt(1_000_000), new(ui.Int).Add(amountIn, feeAmount))
	require.Equal(t, 1, amountOut.Sign())
}

func TestComputeSwapStepExactOut(t *testing.T) {
	liquidity := ui.NewInt(1 << 20)

	// The full distance to the target yields exactly 209715 of token0.
	next, amountIn, amountOut, feeAmount, err := ComputeSwapStep(priceOne, priceOneQuarter, liquidity, ui.NewInt(209715), 10_000)
	require.NoError(t, err)
	require.Equal(t, priceOneQuarter, next)
	require.Equal(t, ui.NewInt(209715), amountOut)
	require.Equal(t, ui.NewInt(1<<18), amountIn)
	// ceil(262144 * 10000 / 990000)
	require.Equal(t, ui.NewInt(2648), feeAmount)
}

func TestComputeSwapStepExactOutCapped(t *testing.T) {
	liquidity := ui.NewInt(1 << 20)

	next, amountIn, amountOut, feeAmount, err := ComputeSwapStep(priceOne, priceOneQuarter, liquidity, ui.NewInt(100_000), 0)
	require.NoError(t, err)
	require.Equal(t, ui.NewInt(100_000), amountOut)
	require.True(t, next.Gt(priceOne))
	require.True(t, next.Lt(priceOneQuarter))
	require.Equal(t, 1, amountIn.Sign())
	require.True(t, feeAmount.IsZero())
}

func TestComputeSwapStepAllFee(t *testing.T) {
	liquidity := ui.NewInt(1 << 20)

	// At a 100% fee the whole exact-in amount is consumed as fee and the
	// price does not move.
	next, amountIn, amountOut, feeAmount, err := ComputeSwapStep(priceOne, priceTwo, liquidity, exactIn(1000), MaxSwapFee)
	require.NoError(t, err)
	require.Equal(t, priceOne, next)
	require.True(t, amountIn.IsZero())
	require.True(t, amountOut.IsZero())
	require.Equal(t, ui.NewInt(1000), feeAmount)
}

func TestComputeSwapStepErrors(t *testing.T) {
	liquidity := ui.NewInt(1 << 20)

	_, _, _, _, err := ComputeSwapStep(priceOne, priceTwo, liquidity, exactIn(1000), MaxSwapFee+1)
	require.Error(t, err)

	_, _, _, _, err = ComputeSwapStep(priceOne, priceTwo, new(ui.Int), exactIn(1000), 0)
	require.ErrorIs(t, err, sqrtmath.ErrNotEnoughLiquidity)
}
