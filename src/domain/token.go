package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

type TokenFlags struct {
	OnGasTank  bool `json:"onGasTank"`
	IsFeeToken bool `json:"isFeeToken"`
}

// TokenResult is a fee token candidate as supplied by the portfolio.
type TokenResult struct {
	Address         common.Address `json:"address"`
	Symbol          string         `json:"symbol"`
	Decimals        uint8          `json:"decimals"`
	Amount          *big.Int       `json:"amount"`
	AvailableAmount *big.Int       `json:"availableAmount,omitempty"`
	Flags           TokenFlags     `json:"flags"`
}

// IsNative reports whether the token is the chain native asset held on-chain
func (t TokenResult) IsNative() bool {
	return t.Address == (common.Address{}) && !t.Flags.OnGasTank
}

func (t TokenResult) AmountOrZero() *big.Int {
	if t.Amount == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(t.Amount)
}

// SameAs compares tokens by address and gas tank placement
func (t TokenResult) SameAs(other TokenResult) bool {
	return t.Address == other.Address && t.Flags.OnGasTank == other.Flags.OnGasTank
}

// FeePaymentOption is a derived (payer, token, amount) tuple. Never persisted.
type FeePaymentOption struct {
	PaidBy          common.Address `json:"paidBy"`
	Token           TokenResult    `json:"token"`
	AvailableAmount *big.Int       `json:"availableAmount"`
	GasUsed         *big.Int       `json:"gasUsed"`
	AddedNative     *big.Int       `json:"addedNative"`
}
