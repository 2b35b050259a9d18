package manager

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	cons "github.com/mklemme/clpool/lib/constants"
	"github.com/mklemme/clpool/lib/fees"
	"github.com/mklemme/clpool/lib/hooks"
	"github.com/mklemme/clpool/lib/pool"
	"github.com/mklemme/clpool/lib/tickmath"

	ui "github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

var (
	token0 = common.HexToAddress("0x0000000000000000000000000000000000000001")
	token1 = common.HexToAddress("0x0000000000000000000000000000000000000002")
	alice  = common.HexToAddress("0x00000000000000000000000000000000000000a1")

	priceOne = new(ui.Int).Set(cons.Q96)
)

func testKey() PoolKey {
	return PoolKey{Token0: token0, Token1: token1, Fee: 3000, TickSpacing: 60}
}

func addLiquidity(t *testing.T, m *Manager, key PoolKey, amount uint64) {
	t.Helper()
	_, _, err := m.ModifyLiquidity(key, ModifyLiquidityParams{
		Owner:          alice,
		TickLower:      -6000,
		TickUpper:      6000,
		LiquidityDelta: new(ui.Int).Mul(ui.NewInt(amount), ui.NewInt(1_000_000)),
	})
	require.NoError(t, err)
}

func TestPoolKeyValidate(t *testing.T) {
	require.NoError(t, testKey().Validate())

	swapped := PoolKey{Token0: token1, Token1: token0, Fee: 3000, TickSpacing: 60}
	require.ErrorIs(t, swapped.Validate(), ErrCurrenciesOutOfOrder)

	same := PoolKey{Token0: token0, Token1: token0, Fee: 3000, TickSpacing: 60}
	require.ErrorIs(t, same.Validate(), ErrCurrenciesOutOfOrder)

	badSpacing := testKey()
	badSpacing.TickSpacing = 0
	require.ErrorIs(t, badSpacing.Validate(), ErrInvalidTickSpacing)
	badSpacing.TickSpacing = MaxTickSpacing + 1
	require.ErrorIs(t, badSpacing.Validate(), ErrInvalidTickSpacing)

	badFee := testKey()
	badFee.Fee = 1_000_001
	require.ErrorIs(t, badFee.Validate(), ErrInvalidFee)
}

func TestPoolKeyID(t *testing.T) {
	a := testKey()
	b := testKey()
	require.Equal(t, a.ID(), b.ID())

	b.Fee = 500
	require.NotEqual(t, a.ID(), b.ID())

	c := testKey()
	c.TickSpacing = 10
	require.NotEqual(t, a.ID(), c.ID())
}

func TestInitialize(t *testing.T) {
	m := New(nil)
	key := testKey()

	id, tick, err := m.Initialize(key, priceOne)
	require.NoError(t, err)
	require.Equal(t, key.ID(), id)
	require.Equal(t, 0, tick)

	_, ok := m.Pool(key)
	require.True(t, ok)

	_, _, err = m.Initialize(key, priceOne)
	require.ErrorIs(t, err, pool.ErrPoolAlreadyInitialized)
}

func TestOperationsRequirePool(t *testing.T) {
	m := New(nil)
	key := testKey()

	_, _, err := m.ModifyLiquidity(key, ModifyLiquidityParams{Owner: alice, TickLower: -60, TickUpper: 60, LiquidityDelta: ui.NewInt(1)})
	require.ErrorIs(t, err, ErrPoolNotFound)

	_, err = m.Swap(key, SwapRequest{ZeroForOne: true, AmountSpecified: ui.NewInt(1), SqrtPriceLimitX96: priceOne})
	require.ErrorIs(t, err, ErrPoolNotFound)

	_, err = m.Donate(key, ui.NewInt(1), ui.NewInt(1))
	require.ErrorIs(t, err, ErrPoolNotFound)
}

func TestSwapRejectsZeroAmount(t *testing.T) {
	m := New(nil)
	key := testKey()
	_, _, err := m.Initialize(key, priceOne)
	require.NoError(t, err)

	_, err = m.Swap(key, SwapRequest{ZeroForOne: true, AmountSpecified: new(ui.Int), SqrtPriceLimitX96: priceOne})
	require.ErrorIs(t, err, ErrSwapAmountZero)
}

func TestProtocolFeeAccrual(t *testing.T) {
	m := New(nil)
	key := testKey()
	_, _, err := m.Initialize(key, priceOne)
	require.NoError(t, err)
	require.NoError(t, m.SetProtocolFee(key, fees.NewProtocolFee(1000, 1000)))
	addLiquidity(t, m, key, 1_000_000_000)

	_, err = m.Swap(key, SwapRequest{
		ZeroForOne:        true,
		AmountSpecified:   new(ui.Int).Neg(ui.NewInt(1_000_000_000)),
		SqrtPriceLimitX96: new(ui.Int).AddUint64(tickmath.MinSqrtPrice, 1),
	})
	require.NoError(t, err)

	// zeroForOne swap fees accrue under token0.
	require.Equal(t, ui.NewInt(1_000_000), m.ProtocolFeesAccrued(token0))
	require.True(t, m.ProtocolFeesAccrued(token1).IsZero())

	got := m.CollectProtocolFees(token0, new(ui.Int))
	require.Equal(t, ui.NewInt(1_000_000), got)
	require.True(t, m.ProtocolFeesAccrued(token0).IsZero())
}

// recordingHook captures every callback and can abort, fail post-commit, or
// adjust the swap fee.
type recordingHook struct {
	calls       []string
	beforeErr   error
	afterErr    error
	feeOverride *uint32
}

func (h *recordingHook) Capabilities() hooks.Capabilities {
	return hooks.Capabilities{
		BeforeInitialize: true, AfterInitialize: true,
		BeforeModifyPosition: true, AfterModifyPosition: true,
		BeforeSwap: true, AfterSwap: true,
		BeforeDonate: true, AfterDonate: true,
	}
}

func (h *recordingHook) BeforeInitialize(common.Hash, *ui.Int) error {
	h.calls = append(h.calls, "beforeInitialize")
	return nil
}

func (h *recordingHook) AfterInitialize(common.Hash, *ui.Int, int) error {
	h.calls = append(h.calls, "afterInitialize")
	return nil
}

func (h *recordingHook) BeforeModifyPosition(common.Hash, common.Address, int, int, *ui.Int) error {
	h.calls = append(h.calls, "beforeModifyPosition")
	return h.beforeErr
}

func (h *recordingHook) AfterModifyPosition(common.Hash, common.Address, int, int, *ui.Int) error {
	h.calls = append(h.calls, "afterModifyPosition")
	return h.afterErr
}

func (h *recordingHook) BeforeSwap(common.Hash, bool, *ui.Int) (hooks.BeforeSwapResult, error) {
	h.calls = append(h.calls, "beforeSwap")
	return hooks.BeforeSwapResult{LPFeeOverride: h.feeOverride}, nil
}

func (h *recordingHook) AfterSwap(common.Hash, bool, *ui.Int) error {
	h.calls = append(h.calls, "afterSwap")
	return h.afterErr
}

func (h *recordingHook) BeforeDonate(common.Hash, *ui.Int, *ui.Int) error {
	h.calls = append(h.calls, "beforeDonate")
	return nil
}

func (h *recordingHook) AfterDonate(common.Hash, *ui.Int, *ui.Int) error {
	h.calls = append(h.calls, "afterDonate")
	return h.afterErr
}

func TestHookDispatch(t *testing.T) {
	m := New(nil)
	hook := &recordingHook{}
	key := testKey()
	key.Hook = hook

	_, _, err := m.Initialize(key, priceOne)
	require.NoError(t, err)
	addLiquidity(t, m, key, 1_000_000_000)

	_, err = m.Swap(key, SwapRequest{
		ZeroForOne:        true,
		AmountSpecified:   new(ui.Int).Neg(ui.NewInt(1_000_000)),
		SqrtPriceLimitX96: new(ui.Int).AddUint64(tickmath.MinSqrtPrice, 1),
	})
	require.NoError(t, err)

	_, err = m.Donate(key, ui.NewInt(10), ui.NewInt(10))
	require.NoError(t, err)

	require.Equal(t, []string{
		"beforeInitialize", "afterInitialize",
		"beforeModifyPosition", "afterModifyPosition",
		"beforeSwap", "afterSwap",
		"beforeDonate", "afterDonate",
	}, hook.calls)
}

func TestHookAbortLeavesPoolUntouched(t *testing.T) {
	m := New(nil)
	abort := errors.New("not allowed")
	hook := &recordingHook{beforeErr: abort}
	key := testKey()
	key.Hook = hook

	_, _, err := m.Initialize(key, priceOne)
	require.NoError(t, err)

	_, _, err = m.ModifyLiquidity(key, ModifyLiquidityParams{
		Owner:          alice,
		TickLower:      -60,
		TickUpper:      60,
		LiquidityDelta: ui.NewInt(1000),
	})
	require.ErrorIs(t, err, abort)

	p, ok := m.Pool(key)
	require.True(t, ok)
	require.True(t, p.Liquidity().IsZero())
	require.Equal(t, 0, p.TickCount())
}

// After-hook errors are post-commit: the caller gets the error together with
// the deltas that actually moved and still owes them.
func TestAfterHookErrorReturnsCommittedResult(t *testing.T) {
	m := New(nil)
	fail := errors.New("rejected after the fact")
	hook := &recordingHook{afterErr: fail}
	key := testKey()
	key.Hook = hook

	_, _, err := m.Initialize(key, priceOne)
	require.NoError(t, err)

	principal, _, err := m.ModifyLiquidity(key, ModifyLiquidityParams{
		Owner:          alice,
		TickLower:      -60,
		TickUpper:      60,
		LiquidityDelta: ui.NewInt(1_000_000),
	})
	require.ErrorIs(t, err, fail)
	require.Equal(t, -1, principal.Amount0.Sign())
	require.Equal(t, -1, principal.Amount1.Sign())

	p, ok := m.Pool(key)
	require.True(t, ok)
	require.Equal(t, ui.NewInt(1_000_000), p.Liquidity())

	amountIn := ui.NewInt(1000)
	delta, err := m.Swap(key, SwapRequest{
		ZeroForOne:        true,
		AmountSpecified:   new(ui.Int).Neg(amountIn),
		SqrtPriceLimitX96: new(ui.Int).AddUint64(tickmath.MinSqrtPrice, 1),
	})
	require.ErrorIs(t, err, fail)
	require.Equal(t, new(ui.Int).Neg(amountIn), delta.Amount0)
	require.True(t, p.SqrtPriceX96().Lt(priceOne))

	donated, err := m.Donate(key, ui.NewInt(10), ui.NewInt(20))
	require.ErrorIs(t, err, fail)
	require.Equal(t, new(ui.Int).Neg(ui.NewInt(10)), donated.Amount0)
	require.Equal(t, new(ui.Int).Neg(ui.NewInt(20)), donated.Amount1)
}

func TestHookLPFeeOverride(t *testing.T) {
	run := func(override *uint32) *ui.Int {
		m := New(nil)
		key := testKey()
		key.Hook = &recordingHook{feeOverride: override}
		_, _, err := m.Initialize(key, priceOne)
		require.NoError(t, err)
		addLiquidity(t, m, key, 1_000_000_000)

		delta, err := m.Swap(key, SwapRequest{
			ZeroForOne:        true,
			AmountSpecified:   new(ui.Int).Neg(ui.NewInt(1_000_000_000)),
			SqrtPriceLimitX96: new(ui.Int).AddUint64(tickmath.MinSqrtPrice, 1),
		})
		require.NoError(t, err)
		return delta.Amount1
	}

	zeroFee := uint32(0)
	require.True(t, run(&zeroFee).Gt(run(nil)))
}
