// Package strategy holds the per account-type fee and broadcast rules.
//
// The set of strategies is closed: AccountStrategy carries an unexported
// method so only the four variants in this package implement it.
package strategy

import (
	"errors"
	"math/big"

	"github.com/ethaccount/walletcore/erc4337"
	"github.com/ethaccount/walletcore/src/contracts"
	"github.com/ethaccount/walletcore/src/domain"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"
)

var errNotDeployable = errors.New("account is not deployed and has no creation data")

type Kind string

const (
	KindEOA                Kind = "EOA"
	KindEOA7702            Kind = "EOA7702"
	KindLegacySmartAccount Kind = "LegacySmartAccount"
	KindSmartAccount       Kind = "SmartAccount"
)

type GasUsedOptions struct {
	FeeToken domain.TokenResult
	// PaidBy defaults to the account itself when zero
	PaidBy common.Address
	Op     *domain.AccountOp
}

type BroadcastOptions struct {
	Op          *domain.AccountOp
	IsSponsored bool
}

type AccountStrategy interface {
	Kind() Kind
	Account() domain.Account
	Network() *domain.Network
	State() *domain.AccountOnchainState

	GetEstimationCriticalError(est *domain.FullEstimation, op *domain.AccountOp) error
	SupportsBundlerEstimation() bool
	GetAvailableFeeOptions(est *domain.FullEstimation, options []domain.FeePaymentOption, op *domain.AccountOp) ([]domain.FeePaymentOption, error)
	GetGasUsed(est *domain.FullEstimation, opts GasUsedOptions) *big.Int
	GetBroadcastOption(feeOption domain.FeePaymentOption, opts BroadcastOptions) domain.BroadcastKind
	CanUseReceivingNativeForFee(amount *big.Int) bool
	GetBroadcastCalldata(op *domain.AccountOp) ([]byte, error)
	// GetBroadcastTarget is the address GetBroadcastCalldata is sent to
	GetBroadcastTarget() common.Address
	GetAtomicStatus() domain.AtomicStatus

	ShouldIncludeActivatorCall(kind domain.BroadcastKind) bool
	ShouldSignAuthorization(kind domain.BroadcastKind) bool
	ShouldSignDeployAuth(kind domain.BroadcastKind) bool
	ShouldBroadcastCallsSeparately(op *domain.AccountOp) bool
	GetBundlerStateOverride() erc4337.StateOverride
	IsSponsorable() bool

	// ProviderEstimateCall returns the transaction to run through eth_estimateGas,
	// false when a node estimate does not apply to this account
	ProviderEstimateCall(op *domain.AccountOp) (ethereum.CallMsg, bool, error)

	isAccountStrategy()
}

// Select picks the single strategy that applies to the account on this network
func Select(account domain.Account, network *domain.Network, state *domain.AccountOnchainState, contracts domain.Contracts) AccountStrategy {
	b := base{account: account, network: network, state: state, contracts: contracts}
	if state.IsEOA {
		if state.IsSmarterEoa || canBecomeSmarter(account, network) {
			return &EOA7702{base: b}
		}
		return &EOA{base: b}
	}
	if state.IsV2 {
		return &SmartAccount{base: b}
	}
	return &LegacySmartAccount{base: b}
}

func canBecomeSmarter(account domain.Account, network *domain.Network) bool {
	return network.Has7702 && !account.IsSmartAccount()
}

type base struct {
	account   domain.Account
	network   *domain.Network
	state     *domain.AccountOnchainState
	contracts domain.Contracts
}

func (b *base) Account() domain.Account            { return b.account }
func (b *base) Network() *domain.Network           { return b.network }
func (b *base) State() *domain.AccountOnchainState { return b.state }
func (b *base) isAccountStrategy()                 {}

func (b *base) payer(paidBy common.Address) common.Address {
	if paidBy == (common.Address{}) {
		return b.account.Addr
	}
	return paidBy
}

func (b *base) selfPaidNative(options []domain.FeePaymentOption) ([]domain.FeePaymentOption, error) {
	native, ok := lo.Find(options, func(o domain.FeePaymentOption) bool {
		return o.PaidBy == b.account.Addr && o.Token.IsNative()
	})
	if !ok {
		return nil, domain.ErrNativeFeeOptionMissing
	}
	return []domain.FeePaymentOption{native}, nil
}

// accountCalldata encodes executeBySender, or deployAndExecute through the
// factory when the account has no code yet
func (b *base) accountCalldata(op *domain.AccountOp) ([]byte, error) {
	if b.state.IsDeployed {
		return contracts.EncodeExecuteBySender(op.SignableCalls())
	}
	if b.account.Creation == nil {
		return nil, errNotDeployable
	}
	return contracts.EncodeDeployAndExecute(b.account.Creation, op.SignableCalls(), op.Signature)
}

// broadcastTarget is the factory while deployAndExecute is in use
func (b *base) broadcastTarget() common.Address {
	if !b.state.IsDeployed && b.account.Creation != nil {
		return b.account.Creation.FactoryAddr
	}
	return b.account.Addr
}

func ambireGas(est *domain.FullEstimation) *big.Int {
	if est.Ambire.Ok() && est.Ambire.Value.GasUsed != nil {
		return new(big.Int).Set(est.Ambire.Value.GasUsed)
	}
	return new(big.Int)
}

func providerGas(est *domain.FullEstimation) *big.Int {
	if est.Provider.Ok() && est.Provider.Value.GasUsed != nil {
		return new(big.Int).Set(est.Provider.Value.GasUsed)
	}
	return new(big.Int)
}

// feeCallGas is the gas of paying with token through the relayer
func feeCallGas(est *domain.FullEstimation, token domain.TokenResult) *big.Int {
	if token.Flags.OnGasTank {
		return new(big.Int).SetUint64(domain.GasTankFeeGas)
	}
	if !est.Ambire.Ok() {
		return new(big.Int)
	}
	outcome, ok := est.Ambire.Value.FeeTokenOutcome(token.Address)
	if !ok || outcome.GasUsed == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(outcome.GasUsed)
}

func maxBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}

func addUint64(v *big.Int, n uint64) *big.Int {
	return new(big.Int).Add(v, new(big.Int).SetUint64(n))
}

func paymasterUsable(est *domain.FullEstimation) bool {
	return est.Bundler.Ok() && est.Bundler.Value.PaymasterUsable()
}
