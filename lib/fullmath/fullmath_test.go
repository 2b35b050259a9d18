package fullmath

import (
	"math/big"
	"math/rand"
	"testing"

	cons "github.com/mklemme/clpool/lib/constants"

	ui "github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestMulDiv(t *testing.T) {
	res, err := MulDiv(ui.NewInt(6), ui.NewInt(7), ui.NewInt(2))
	require.NoError(t, err)
	require.Equal(t, ui.NewInt(21), res)

	// 7*3/2 floors.
	res, err = MulDiv(ui.NewInt(7), ui.NewInt(3), ui.NewInt(2))
	require.NoError(t, err)
	require.Equal(t, ui.NewInt(10), res)

	// Intermediate product above 256 bits is fine as long as the quotient fits.
	res, err = MulDiv(cons.MaxUint256, cons.MaxUint256, cons.MaxUint256)
	require.NoError(t, err)
	require.Equal(t, cons.MaxUint256, res)
}

func TestMulDivErrors(t *testing.T) {
	_, err := MulDiv(ui.NewInt(1), ui.NewInt(1), cons.Zero)
	require.ErrorIs(t, err, ErrDivisionByZero)

	_, err = MulDiv(cons.MaxUint256, ui.NewInt(2), ui.NewInt(1))
	require.ErrorIs(t, err, ErrOverflow)

	_, err = MulDivRoundingUp(cons.MaxUint256, cons.MaxUint256, ui.NewInt(1))
	require.ErrorIs(t, err, ErrOverflow)
}

func TestMulDivRoundingUp(t *testing.T) {
	res, err := MulDivRoundingUp(ui.NewInt(7), ui.NewInt(3), ui.NewInt(2))
	require.NoError(t, err)
	require.Equal(t, ui.NewInt(11), res)

	// Exact division does not round.
	res, err = MulDivRoundingUp(ui.NewInt(8), ui.NewInt(3), ui.NewInt(2))
	require.NoError(t, err)
	require.Equal(t, ui.NewInt(12), res)
}

func TestDivRoundingUp(t *testing.T) {
	res, err := DivRoundingUp(ui.NewInt(10), ui.NewInt(3))
	require.NoError(t, err)
	require.Equal(t, ui.NewInt(4), res)

	res, err = DivRoundingUp(ui.NewInt(9), ui.NewInt(3))
	require.NoError(t, err)
	require.Equal(t, ui.NewInt(3), res)

	_, err = DivRoundingUp(ui.NewInt(1), cons.Zero)
	require.ErrorIs(t, err, ErrDivisionByZero)
}

// Cross-checks MulDiv and MulDivRoundingUp against big.Int arithmetic on
// random 256-bit operands.
func TestMulDivAgainstBig(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	buf := make([]byte, 32)
	randInt := func(bytes int) *ui.Int {
		rng.Read(buf[:bytes])
		for i := bytes; i < 32; i++ {
			buf[i] = 0
		}
		x := new(ui.Int).SetBytes(buf[:bytes])
		return x
	}

	for i := 0; i < 500; i++ {
		a := randInt(1 + rng.Intn(32))
		b := randInt(1 + rng.Intn(32))
		d := randInt(1 + rng.Intn(32))
		if d.IsZero() {
			continue
		}

		prod := new(big.Int).Mul(a.ToBig(), b.ToBig())
		quot, rem := new(big.Int).QuoRem(prod, d.ToBig(), new(big.Int))

		res, err := MulDiv(a, b, d)
		if quot.BitLen() > 256 {
			require.ErrorIs(t, err, ErrOverflow)
			continue
		}
		require.NoError(t, err)
		require.Equal(t, quot.String(), res.ToBig().String())

		up, err := MulDivRoundingUp(a, b, d)
		if rem.Sign() != 0 {
			quot.Add(quot, big.NewInt(1))
		}
		if quot.BitLen() > 256 {
			require.ErrorIs(t, err, ErrOverflow)
			continue
		}
		require.NoError(t, err)
		require.Equal(t, quot.String(), up.ToBig().String())
	}
}
