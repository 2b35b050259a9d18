// Package transaction defines the operations a simulation script replays
// against a pool and their JSON wire form. Amounts travel as decimal strings
// since they exceed what JSON numbers can hold.
package transaction

import (
	"encoding/json"
	"fmt"

	ui "github.com/holiman/uint256"
)

const (
	TypeInitialize = "Initialize"
	TypeMint       = "Mint"
	TypeBurn       = "Burn"
	TypeSwap       = "Swap"
	TypeDonate     = "Donate"
)

// TransactionInput is the JSON shape of one scripted operation.
type TransactionInput struct {
	Type         string `json:"type"`
	ID           string `json:"id,omitempty"`
	Owner        string `json:"owner,omitempty"`
	Amount       string `json:"amount,omitempty"`
	Amount0      string `json:"amount0,omitempty"`
	Amount1      string `json:"amount1,omitempty"`
	SqrtPriceX96 string `json:"sqrtPriceX96,omitempty"`
	ZeroForOne   bool   `json:"zeroForOne,omitempty"`
	ExactInput   bool   `json:"exactInput,omitempty"`
	TickLower    int    `json:"tickLower,omitempty"`
	TickUpper    int    `json:"tickUpper,omitempty"`
}

// Transaction is the decoded operation.
//
// Mint and Burn use Amount as an unsigned liquidity amount on
// [TickLower, TickUpper]. Swap uses Amount as the unsigned specified amount,
// with ExactInput choosing the side and SqrtPriceX96 as the optional price
// limit. Initialize uses SqrtPriceX96 as the starting price. Donate uses
// Amount0 and Amount1.
type Transaction struct {
	Type         string
	ID           string
	Owner        string
	Amount       *ui.Int
	Amount0      *ui.Int
	Amount1      *ui.Int
	SqrtPriceX96 *ui.Int
	ZeroForOne   bool
	ExactInput   bool
	TickLower    int
	TickUpper    int
}

// Decode converts the wire form, rejecting malformed amounts.
func (in TransactionInput) Decode() (Transaction, error) {
	switch in.Type {
	case TypeInitialize, TypeMint, TypeBurn, TypeSwap, TypeDonate:
	default:
		return Transaction{}, fmt.Errorf("transaction %q: unknown type %q", in.ID, in.Type)
	}
	amount, err := parseAmount(in.Amount)
	if err != nil {
		return Transaction{}, fmt.Errorf("transaction %q: amount: %w", in.ID, err)
	}
	amount0, err := parseAmount(in.Amount0)
	if err != nil {
		return Transaction{}, fmt.Errorf("transaction %q: amount0: %w", in.ID, err)
	}
	amount1, err := parseAmount(in.Amount1)
	if err != nil {
		return Transaction{}, fmt.Errorf("transaction %q: amount1: %w", in.ID, err)
	}
	sqrtPrice, err := parseAmount(in.SqrtPriceX96)
	if err != nil {
		return Transaction{}, fmt.Errorf("transaction %q: sqrtPriceX96: %w", in.ID, err)
	}
	return Transaction{
		Type:         in.Type,
		ID:           in.ID,
		Owner:        in.Owner,
		Amount:       amount,
		Amount0:      amount0,
		Amount1:      amount1,
		SqrtPriceX96: sqrtPrice,
		ZeroForOne:   in.ZeroForOne,
		ExactInput:   in.ExactInput,
		TickLower:    in.TickLower,
		TickUpper:    in.TickUpper,
	}, nil
}

func (t Transaction) MarshalJSON() ([]byte, error) {
	switch t.Type {
	case TypeInitialize:
		return json.Marshal(&TransactionInput{
			Type:         t.Type,
			ID:           t.ID,
			SqrtPriceX96: t.SqrtPriceX96.Dec(),
		})
	case TypeMint, TypeBurn:
		return json.Marshal(&TransactionInput{
			Type:      t.Type,
			ID:        t.ID,
			Owner:     t.Owner,
			Amount:    t.Amount.Dec(),
			TickLower: t.TickLower,
			TickUpper: t.TickUpper,
		})
	case TypeSwap:
		return json.Marshal(&TransactionInput{
			Type:         t.Type,
			ID:           t.ID,
			Owner:        t.Owner,
			Amount:       t.Amount.Dec(),
			SqrtPriceX96: t.SqrtPriceX96.Dec(),
			ZeroForOne:   t.ZeroForOne,
			ExactInput:   t.ExactInput,
		})
	case TypeDonate:
		return json.Marshal(&TransactionInput{
			Type:    t.Type,
			ID:      t.ID,
			Owner:   t.Owner,
			Amount0: t.Amount0.Dec(),
			Amount1: t.Amount1.Dec(),
		})
	}
	return nil, fmt.Errorf("transaction %q: unknown type %q", t.ID, t.Type)
}

// DecodeScript converts a whole wire-form script.
func DecodeScript(inputs []TransactionInput) ([]Transaction, error) {
	transactions := make([]Transaction, 0, len(inputs))
	for _, in := range inputs {
		trans, err := in.Decode()
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, trans)
	}
	return transactions, nil
}

func parseAmount(s string) (*ui.Int, error) {
	if s == "" {
		return new(ui.Int), nil
	}
	return ui.FromDecimal(s)
}
