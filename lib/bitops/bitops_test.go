package bitops

import (
	"testing"

	ui "github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestMostSignificantBit(t *testing.T) {
	for _, tc := range []struct {
		shift uint
	}{{0}, {1}, {63}, {64}, {127}, {128}, {200}, {255}} {
		x := new(ui.Int).Lsh(ui.NewInt(1), tc.shift)
		msb, err := MostSignificantBit(x)
		require.NoError(t, err)
		require.Equal(t, tc.shift, msb)

		// Lower bits do not change the MSB.
		x.Or(x, ui.NewInt(1))
		msb, err = MostSignificantBit(x)
		require.NoError(t, err)
		require.Equal(t, tc.shift, msb)
	}

	_, err := MostSignificantBit(new(ui.Int))
	require.ErrorIs(t, err, ErrZeroValue)
}

func TestLeastSignificantBit(t *testing.T) {
	for _, tc := range []struct {
		shift uint
	}{{0}, {1}, {63}, {64}, {127}, {128}, {200}, {255}} {
		x := new(ui.Int).Lsh(ui.NewInt(1), tc.shift)
		lsb, err := LeastSignificantBit(x)
		require.NoError(t, err)
		require.Equal(t, tc.shift, lsb)

		// Higher bits do not change the LSB.
		if tc.shift < 255 {
			x.Or(x, new(ui.Int).Lsh(ui.NewInt(1), 255))
			lsb, err = LeastSignificantBit(x)
			require.NoError(t, err)
			require.Equal(t, tc.shift, lsb)
		}
	}

	_, err := LeastSignificantBit(new(ui.Int))
	require.ErrorIs(t, err, ErrZeroValue)
}
