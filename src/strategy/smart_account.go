package strategy

import (
	"math/big"

	"github.com/ethaccount/walletcore/erc4337"
	"github.com/ethaccount/walletcore/src/domain"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"
)

// SmartAccount is a v2 smart account. On networks with ERC-4337 it goes
// through a bundler, otherwise through the relayer.
type SmartAccount struct {
	base
}

func (s *SmartAccount) Kind() Kind { return KindSmartAccount }

func (s *SmartAccount) erc4337Enabled() bool {
	return s.network.Erc4337.Enabled
}

func (s *SmartAccount) GetEstimationCriticalError(est *domain.FullEstimation, _ *domain.AccountOp) error {
	if est.Ambire.Failed() {
		return est.Ambire.Err
	}
	return nil
}

func (s *SmartAccount) SupportsBundlerEstimation() bool { return s.erc4337Enabled() }

// GetAvailableFeeOptions limits an undeployed 4337 account to what the
// entry point can collect: its own native balance or a paymaster.
func (s *SmartAccount) GetAvailableFeeOptions(est *domain.FullEstimation, options []domain.FeePaymentOption, _ *domain.AccountOp) ([]domain.FeePaymentOption, error) {
	if !s.erc4337Enabled() || s.state.IsDeployed {
		return append([]domain.FeePaymentOption{}, options...), nil
	}
	withPaymaster := paymasterUsable(est)
	return lo.Filter(options, func(o domain.FeePaymentOption, _ int) bool {
		if o.PaidBy != s.account.Addr {
			return false
		}
		return o.Token.IsNative() || withPaymaster
	}), nil
}

func (s *SmartAccount) GetGasUsed(est *domain.FullEstimation, opts GasUsedOptions) *big.Int {
	option := domain.FeePaymentOption{PaidBy: s.payer(opts.PaidBy), Token: opts.FeeToken}
	switch s.GetBroadcastOption(option, BroadcastOptions{Op: opts.Op}) {
	case domain.BroadcastByOtherEOA:
		return ambireGas(est)
	case domain.BroadcastByBundler:
		if est.Bundler.Ok() {
			gas := est.Bundler.Value.TotalGas()
			if !s.state.IsDeployed {
				gas = addUint64(gas, domain.EntryPointDeploymentAdditionalGas)
			}
			return gas
		}
	}
	return new(big.Int).Add(ambireGas(est), feeCallGas(est, opts.FeeToken))
}

func (s *SmartAccount) GetBroadcastOption(feeOption domain.FeePaymentOption, opts BroadcastOptions) domain.BroadcastKind {
	if s.payer(feeOption.PaidBy) != s.account.Addr {
		return domain.BroadcastByOtherEOA
	}
	if opts.IsSponsored || s.erc4337Enabled() {
		return domain.BroadcastByBundler
	}
	return domain.BroadcastByRelayer
}

func (s *SmartAccount) CanUseReceivingNativeForFee(*big.Int) bool { return true }

func (s *SmartAccount) GetBroadcastCalldata(op *domain.AccountOp) ([]byte, error) {
	return s.accountCalldata(op)
}

func (s *SmartAccount) GetBroadcastTarget() common.Address { return s.broadcastTarget() }

func (s *SmartAccount) GetAtomicStatus() domain.AtomicStatus { return domain.AtomicSupported }

// ShouldIncludeActivatorCall is true when another key pays for an op of an
// account that has not granted the entry point privilege yet
func (s *SmartAccount) ShouldIncludeActivatorCall(kind domain.BroadcastKind) bool {
	return s.erc4337Enabled() && !s.state.IsErc4337Enabled && kind == domain.BroadcastByOtherEOA
}

func (s *SmartAccount) ShouldSignAuthorization(domain.BroadcastKind) bool { return false }

func (s *SmartAccount) ShouldSignDeployAuth(kind domain.BroadcastKind) bool {
	return kind == domain.BroadcastByBundler && !s.state.IsDeployed
}

func (s *SmartAccount) ShouldBroadcastCallsSeparately(*domain.AccountOp) bool { return false }
func (s *SmartAccount) GetBundlerStateOverride() erc4337.StateOverride        { return nil }
func (s *SmartAccount) IsSponsorable() bool                                   { return s.erc4337Enabled() }

func (s *SmartAccount) ProviderEstimateCall(*domain.AccountOp) (ethereum.CallMsg, bool, error) {
	return ethereum.CallMsg{}, false, nil
}
