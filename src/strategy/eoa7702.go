package strategy

import (
	"math/big"

	"github.com/ethaccount/walletcore/erc4337"
	"github.com/ethaccount/walletcore/src/contracts"
	"github.com/ethaccount/walletcore/src/domain"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"
)

// delegationPrefix marks EIP-7702 delegated code: 0xef0100 followed by the implementation
var delegationPrefix = []byte{0xef, 0x01, 0x00}

// DelegationCode returns the account code installed by a 7702 authorization
func DelegationCode(impl common.Address) []byte {
	return append(append([]byte{}, delegationPrefix...), impl.Bytes()...)
}

// EOA7702 is a key account that already delegates to the smart account
// implementation, or is on a network where it can start to.
type EOA7702 struct {
	base
}

func (s *EOA7702) Kind() Kind { return KindEOA7702 }

func (s *EOA7702) smarter() bool { return s.state.IsSmarterEoa }

func (s *EOA7702) GetEstimationCriticalError(est *domain.FullEstimation, op *domain.AccountOp) error {
	if !s.smarter() && len(op.Calls) == 1 {
		if est.Provider.Failed() {
			return est.Provider.Err
		}
		return nil
	}
	if est.Ambire.Failed() {
		return est.Ambire.Err
	}
	return nil
}

func (s *EOA7702) SupportsBundlerEstimation() bool { return true }

func (s *EOA7702) GetAvailableFeeOptions(est *domain.FullEstimation, options []domain.FeePaymentOption, op *domain.AccountOp) ([]domain.FeePaymentOption, error) {
	if op.HasDelegationIntent() {
		return s.selfPaidNative(options)
	}
	withPaymaster := paymasterUsable(est)
	available := lo.Filter(options, func(o domain.FeePaymentOption, _ int) bool {
		if o.PaidBy != s.account.Addr || o.Token.Flags.OnGasTank {
			return false
		}
		return o.Token.IsNative() || withPaymaster
	})
	if len(available) == 0 {
		return nil, domain.ErrNativeFeeOptionMissing
	}
	return available, nil
}

func (s *EOA7702) GetGasUsed(est *domain.FullEstimation, opts GasUsedOptions) *big.Int {
	option := domain.FeePaymentOption{PaidBy: s.payer(opts.PaidBy), Token: opts.FeeToken}
	switch s.GetBroadcastOption(option, BroadcastOptions{Op: opts.Op}) {
	case domain.BroadcastByBundler:
		if est.Bundler.Ok() {
			return est.Bundler.Value.TotalGas()
		}
		return ambireGas(est)
	case domain.BroadcastDelegation:
		return addUint64(ambireGas(est), domain.ActivatorGasUsed)
	case domain.BroadcastBySelf:
		provider := providerGas(est)
		calls := opts.Op.Calls
		if len(calls) == 1 && len(calls[0].Data) == 0 && provider.Sign() > 0 {
			return provider
		}
		return maxBig(provider, ambireGas(est))
	default:
		return maxBig(providerGas(est), ambireGas(est))
	}
}

func (s *EOA7702) GetBroadcastOption(feeOption domain.FeePaymentOption, opts BroadcastOptions) domain.BroadcastKind {
	if !feeOption.Token.IsNative() || opts.IsSponsored {
		return domain.BroadcastByBundler
	}
	if feeOption.Token.AmountOrZero().Sign() == 0 {
		return domain.BroadcastByBundler
	}
	if opts.Op != nil && opts.Op.HasDelegationIntent() {
		return domain.BroadcastDelegation
	}
	if s.smarter() {
		return domain.BroadcastBySelf7702
	}
	if opts.Op != nil && len(opts.Op.Calls) == 1 {
		return domain.BroadcastBySelf
	}
	return domain.BroadcastByBundler
}

func (s *EOA7702) CanUseReceivingNativeForFee(*big.Int) bool { return s.smarter() }

func (s *EOA7702) GetBroadcastCalldata(op *domain.AccountOp) ([]byte, error) {
	return contracts.EncodeExecuteBySender(op.SignableCalls())
}

func (s *EOA7702) GetBroadcastTarget() common.Address { return s.account.Addr }

func (s *EOA7702) GetAtomicStatus() domain.AtomicStatus {
	if s.smarter() {
		return domain.AtomicSupported
	}
	return domain.AtomicReady
}

func (s *EOA7702) ShouldIncludeActivatorCall(domain.BroadcastKind) bool { return false }

func (s *EOA7702) ShouldSignAuthorization(kind domain.BroadcastKind) bool {
	return (kind == domain.BroadcastByBundler && !s.smarter()) || kind == domain.BroadcastDelegation
}

func (s *EOA7702) ShouldSignDeployAuth(domain.BroadcastKind) bool { return false }

func (s *EOA7702) ShouldBroadcastCallsSeparately(*domain.AccountOp) bool { return false }

// GetBundlerStateOverride pretends the delegation is already installed so the
// bundler can simulate an account that has no code yet
func (s *EOA7702) GetBundlerStateOverride() erc4337.StateOverride {
	if s.smarter() {
		return nil
	}
	return erc4337.StateOverride{
		s.account.Addr: {Code: DelegationCode(s.contracts.Eip7702Implementation)},
	}
}

func (s *EOA7702) IsSponsorable() bool { return true }

func (s *EOA7702) ProviderEstimateCall(op *domain.AccountOp) (ethereum.CallMsg, bool, error) {
	if !s.smarter() {
		if len(op.Calls) != 1 {
			return ethereum.CallMsg{}, false, nil
		}
		return directCallMsg(s.account, op.Calls[0]), true, nil
	}
	data, err := contracts.EncodeExecuteBySender(op.SignableCalls())
	if err != nil {
		return ethereum.CallMsg{}, false, err
	}
	to := s.account.Addr
	return ethereum.CallMsg{From: s.account.Addr, To: &to, Value: new(big.Int), Data: data}, true, nil
}
