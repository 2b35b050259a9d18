package liquiditymath

import (
	"testing"

	cons "github.com/mklemme/clpool/lib/constants"

	ui "github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestAddDelta(t *testing.T) {
	res, err := AddDelta(ui.NewInt(100), ui.NewInt(25))
	require.NoError(t, err)
	require.Equal(t, ui.NewInt(125), res)

	res, err = AddDelta(ui.NewInt(100), new(ui.Int).Neg(ui.NewInt(25)))
	require.NoError(t, err)
	require.Equal(t, ui.NewInt(75), res)

	res, err = AddDelta(ui.NewInt(100), new(ui.Int).Neg(ui.NewInt(100)))
	require.NoError(t, err)
	require.True(t, res.IsZero())
}

func TestAddDeltaUnderflow(t *testing.T) {
	_, err := AddDelta(ui.NewInt(100), new(ui.Int).Neg(ui.NewInt(101)))
	require.ErrorIs(t, err, ErrInvalidLiquidity)

	_, err = AddDelta(new(ui.Int), new(ui.Int).Neg(ui.NewInt(1)))
	require.ErrorIs(t, err, ErrInvalidLiquidity)
}

func TestAddDeltaOverflow(t *testing.T) {
	_, err := AddDelta(cons.MaxUint128, ui.NewInt(1))
	require.ErrorIs(t, err, ErrInvalidLiquidity)

	res, err := AddDelta(new(ui.Int).Sub(cons.MaxUint128, cons.One), ui.NewInt(1))
	require.NoError(t, err)
	require.Equal(t, cons.MaxUint128, res)
}
