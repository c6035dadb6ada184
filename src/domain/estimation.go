package domain

import (
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

type BroadcastKind string

const (
	BroadcastBySelf     BroadcastKind = "self"
	BroadcastBySelf7702 BroadcastKind = "self7702"
	BroadcastByBundler  BroadcastKind = "bundler"
	BroadcastByRelayer  BroadcastKind = "relayer"
	BroadcastByOtherEOA BroadcastKind = "otherEOA"
	BroadcastDelegation BroadcastKind = "delegation"
)

type AtomicStatus string

const (
	AtomicUnsupported AtomicStatus = "unsupported"
	AtomicSupported   AtomicStatus = "supported"
	AtomicReady       AtomicStatus = "ready"
)

type PaymasterType string

const (
	PaymasterNone    PaymasterType = "None"
	PaymasterAmbire  PaymasterType = "Ambire"
	PaymasterERC7677 PaymasterType = "ERC7677"
)

// Outcome is the result of one estimation source. A zero Outcome means the
// source does not apply, which is different from a failed attempt.
type Outcome[T any] struct {
	Value *T
	Err   error
}

func Success[T any](v *T) Outcome[T] {
	return Outcome[T]{Value: v}
}

func Failure[T any](err error) Outcome[T] {
	return Outcome[T]{Err: err}
}

func (o Outcome[T]) Ok() bool {
	return o.Err == nil && o.Value != nil
}

func (o Outcome[T]) Failed() bool {
	return o.Err != nil
}

func (o Outcome[T]) IsNull() bool {
	return o.Err == nil && o.Value == nil
}

func (o Outcome[T]) MarshalJSON() ([]byte, error) {
	switch {
	case o.Err != nil:
		return json.Marshal(struct {
			Error string `json:"error"`
		}{Error: o.Err.Error()})
	case o.Value == nil:
		return []byte("null"), nil
	default:
		return json.Marshal(o.Value)
	}
}

type FeeTokenOutcome struct {
	Address common.Address `json:"address"`
	Amount  *big.Int       `json:"amount"`
	GasUsed *big.Int       `json:"gasUsed"`
}

type EstimationFlags struct {
	HasNonceDiscrepancy bool `json:"hasNonceDiscrepancy"`
}

// AmbireEstimation is the decoded result of the deployless batch simulation.
type AmbireEstimation struct {
	GasUsed             *big.Int                    `json:"gasUsed"`
	DeploymentGas       *big.Int                    `json:"deploymentGas"`
	Nonce               *big.Int                    `json:"nonce"`
	FeeTokenOutcomes    []FeeTokenOutcome           `json:"feeTokenOutcomes"`
	NativeAssetBalances map[common.Address]*big.Int `json:"nativeAssetBalances"`
	L1Fee               *big.Int                    `json:"l1Fee"`
	Flags               EstimationFlags             `json:"flags"`
}

// FeeTokenOutcome looks up the simulated outcome for a fee token
func (e *AmbireEstimation) FeeTokenOutcome(token common.Address) (FeeTokenOutcome, bool) {
	for _, outcome := range e.FeeTokenOutcomes {
		if outcome.Address == token {
			return outcome, true
		}
	}
	return FeeTokenOutcome{}, false
}

type ProviderEstimation struct {
	GasUsed *big.Int `json:"gasUsed"`
}

type GasPrice struct {
	MaxFeePerGas         *big.Int `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *big.Int `json:"maxPriorityFeePerGas"`
}

type GasPriceTiers struct {
	Slow   GasPrice `json:"slow"`
	Medium GasPrice `json:"medium"`
	Fast   GasPrice `json:"fast"`
	Ape    GasPrice `json:"ape"`
}

// Erc4337GasLimits is the bundler estimate together with the paymaster and
// gas price context it was produced under.
type Erc4337GasLimits struct {
	PreVerificationGas            *big.Int       `json:"preVerificationGas"`
	VerificationGasLimit          *big.Int       `json:"verificationGasLimit"`
	CallGasLimit                  *big.Int       `json:"callGasLimit"`
	PaymasterVerificationGasLimit *big.Int       `json:"paymasterVerificationGasLimit"`
	PaymasterPostOpGasLimit       *big.Int       `json:"paymasterPostOpGasLimit"`
	GasPrice                      *GasPriceTiers `json:"gasPrice,omitempty"`
	Bundler                       BundlerID      `json:"bundler"`
	Paymaster                     PaymasterType  `json:"paymaster"`
	IsSponsored                   bool           `json:"isSponsored"`
}

// TotalGas sums every limit the bundler charges for
func (g *Erc4337GasLimits) TotalGas() *big.Int {
	total := new(big.Int)
	for _, v := range []*big.Int{
		g.PreVerificationGas,
		g.VerificationGasLimit,
		g.CallGasLimit,
		g.PaymasterVerificationGasLimit,
		g.PaymasterPostOpGasLimit,
	} {
		if v != nil {
			total.Add(total, v)
		}
	}
	return total
}

// PaymasterUsable reports whether fees can be collected through a paymaster
func (g *Erc4337GasLimits) PaymasterUsable() bool {
	return g.Paymaster == PaymasterAmbire || g.Paymaster == PaymasterERC7677
}

type FullEstimation struct {
	Ambire   Outcome[AmbireEstimation]
	Provider Outcome[ProviderEstimation]
	Bundler  Outcome[Erc4337GasLimits]
}

type FullEstimationSummary struct {
	AmbireEstimation   Outcome[AmbireEstimation]   `json:"ambireEstimation"`
	ProviderEstimation Outcome[ProviderEstimation] `json:"providerEstimation"`
	BundlerEstimation  Outcome[Erc4337GasLimits]   `json:"bundlerEstimation"`
	FeePaymentOptions  []FeePaymentOption          `json:"feePaymentOptions"`
	Flags              EstimationFlags             `json:"flags"`
}

func (s *FullEstimationSummary) Estimation() *FullEstimation {
	return &FullEstimation{
		Ambire:   s.AmbireEstimation,
		Provider: s.ProviderEstimation,
		Bundler:  s.BundlerEstimation,
	}
}
