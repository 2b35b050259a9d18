package transaction

import (
	"encoding/json"
	"testing"

	ui "github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	in := TransactionInput{
		Type:       TypeSwap,
		ID:         "swap-1",
		Owner:      "alice",
		Amount:     "1000000",
		ZeroForOne: true,
		ExactInput: true,
	}
	trans, err := in.Decode()
	require.NoError(t, err)
	require.Equal(t, TypeSwap, trans.Type)
	require.Equal(t, ui.NewInt(1_000_000), trans.Amount)
	require.True(t, trans.ZeroForOne)
	require.True(t, trans.ExactInput)
	// Absent amounts decode to zero.
	require.True(t, trans.Amount0.IsZero())
	require.True(t, trans.SqrtPriceX96.IsZero())
}

func TestDecodeRejectsBadInput(t *testing.T) {
	_, err := TransactionInput{Type: "Quote"}.Decode()
	require.Error(t, err)

	_, err = TransactionInput{Type: TypeMint, Amount: "not-a-number"}.Decode()
	require.Error(t, err)

	_, err = TransactionInput{Type: TypeDonate, Amount0: "-5"}.Decode()
	require.Error(t, err)
}

func TestScriptRoundTrip(t *testing.T) {
	script := []Transaction{
		{Type: TypeInitialize, ID: "init", SqrtPriceX96: ui.NewInt(1), Amount: new(ui.Int), Amount0: new(ui.Int), Amount1: new(ui.Int)},
		{Type: TypeMint, ID: "mint", Owner: "alice", Amount: ui.NewInt(42), TickLower: -60, TickUpper: 60, Amount0: new(ui.Int), Amount1: new(ui.Int), SqrtPriceX96: new(ui.Int)},
	}

	data, err := json.Marshal(script)
	require.NoError(t, err)

	var inputs []TransactionInput
	require.NoError(t, json.Unmarshal(data, &inputs))
	decoded, err := DecodeScript(inputs)
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	require.Equal(t, ui.NewInt(42), decoded[1].Amount)
	require.Equal(t, -60, decoded[1].TickLower)
	require.Equal(t, "alice", decoded[1].Owner)
}
