package strategy

import (
	"math/big"

	"github.com/ethaccount/walletcore/erc4337"
	"github.com/ethaccount/walletcore/src/domain"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// LegacySmartAccount is a v1 smart account. It has no ERC-4337 support and
// broadcasts through the relayer or another key the user controls.
type LegacySmartAccount struct {
	base
}

func (s *LegacySmartAccount) Kind() Kind { return KindLegacySmartAccount }

func (s *LegacySmartAccount) GetEstimationCriticalError(est *domain.FullEstimation, _ *domain.AccountOp) error {
	if est.Ambire.Failed() {
		return est.Ambire.Err
	}
	return nil
}

func (s *LegacySmartAccount) SupportsBundlerEstimation() bool { return false }

func (s *LegacySmartAccount) GetAvailableFeeOptions(_ *domain.FullEstimation, options []domain.FeePaymentOption, _ *domain.AccountOp) ([]domain.FeePaymentOption, error) {
	return append([]domain.FeePaymentOption{}, options...), nil
}

func (s *LegacySmartAccount) GetGasUsed(est *domain.FullEstimation, opts GasUsedOptions) *big.Int {
	if s.payer(opts.PaidBy) != s.account.Addr {
		return ambireGas(est)
	}
	return new(big.Int).Add(ambireGas(est), feeCallGas(est, opts.FeeToken))
}

func (s *LegacySmartAccount) GetBroadcastOption(feeOption domain.FeePaymentOption, _ BroadcastOptions) domain.BroadcastKind {
	if s.payer(feeOption.PaidBy) != s.account.Addr {
		return domain.BroadcastByOtherEOA
	}
	return domain.BroadcastByRelayer
}

func (s *LegacySmartAccount) CanUseReceivingNativeForFee(*big.Int) bool { return true }

func (s *LegacySmartAccount) GetBroadcastCalldata(op *domain.AccountOp) ([]byte, error) {
	return s.accountCalldata(op)
}

func (s *LegacySmartAccount) GetBroadcastTarget() common.Address { return s.broadcastTarget() }

func (s *LegacySmartAccount) GetAtomicStatus() domain.AtomicStatus { return domain.AtomicSupported }

func (s *LegacySmartAccount) ShouldIncludeActivatorCall(domain.BroadcastKind) bool  { return false }
func (s *LegacySmartAccount) ShouldSignAuthorization(domain.BroadcastKind) bool     { return false }
func (s *LegacySmartAccount) ShouldSignDeployAuth(domain.BroadcastKind) bool        { return false }
func (s *LegacySmartAccount) ShouldBroadcastCallsSeparately(*domain.AccountOp) bool { return false }
func (s *LegacySmartAccount) GetBundlerStateOverride() erc4337.StateOverride        { return nil }
func (s *LegacySmartAccount) IsSponsorable() bool                                   { return false }

func (s *LegacySmartAccount) ProviderEstimateCall(*domain.AccountOp) (ethereum.CallMsg, bool, error) {
	return ethereum.CallMsg{}, false, nil
}
