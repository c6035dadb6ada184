package strategy

import (
	"math/big"

	"github.com/ethaccount/walletcore/erc4337"
	"github.com/ethaccount/walletcore/src/domain"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// EOA is a plain key account on a network without 7702. It pays native gas
// itself and sends each call as its own transaction.
type EOA struct {
	base
}

func (s *EOA) Kind() Kind { return KindEOA }

// GetEstimationCriticalError reads the node estimate for a single call and
// the simulation when the op carries more than one call.
func (s *EOA) GetEstimationCriticalError(est *domain.FullEstimation, op *domain.AccountOp) error {
	if len(op.Calls) > 1 {
		if est.Ambire.Failed() {
			return est.Ambire.Err
		}
		return nil
	}
	if est.Provider.Failed() {
		return est.Provider.Err
	}
	return nil
}

func (s *EOA) SupportsBundlerEstimation() bool { return false }

func (s *EOA) GetAvailableFeeOptions(_ *domain.FullEstimation, options []domain.FeePaymentOption, _ *domain.AccountOp) ([]domain.FeePaymentOption, error) {
	return s.selfPaidNative(options)
}

func (s *EOA) GetGasUsed(est *domain.FullEstimation, opts GasUsedOptions) *big.Int {
	calls := opts.Op.Calls
	if len(calls) > 1 {
		// every extra call is one more transaction
		return addUint64(ambireGas(est), domain.BaseTransactionGas*uint64(len(calls)-1))
	}
	provider := providerGas(est)
	if len(calls) == 1 && len(calls[0].Data) == 0 && provider.Sign() > 0 {
		return provider
	}
	return maxBig(provider, ambireGas(est))
}

func (s *EOA) GetBroadcastOption(domain.FeePaymentOption, BroadcastOptions) domain.BroadcastKind {
	return domain.BroadcastBySelf
}

func (s *EOA) CanUseReceivingNativeForFee(*big.Int) bool { return false }

func (s *EOA) GetBroadcastCalldata(op *domain.AccountOp) ([]byte, error) {
	if len(op.Calls) != 1 {
		return nil, domain.ErrMultipleCallsNotSupported
	}
	return op.Calls[0].Data, nil
}

// GetBroadcastTarget is the account; a lone call skips it and goes straight to its target
func (s *EOA) GetBroadcastTarget() common.Address { return s.account.Addr }

func (s *EOA) GetAtomicStatus() domain.AtomicStatus { return domain.AtomicUnsupported }

func (s *EOA) ShouldIncludeActivatorCall(domain.BroadcastKind) bool { return false }
func (s *EOA) ShouldSignAuthorization(domain.BroadcastKind) bool    { return false }
func (s *EOA) ShouldSignDeployAuth(domain.BroadcastKind) bool       { return false }

func (s *EOA) ShouldBroadcastCallsSeparately(op *domain.AccountOp) bool {
	return len(op.Calls) > 1
}

func (s *EOA) GetBundlerStateOverride() erc4337.StateOverride { return nil }

func (s *EOA) IsSponsorable() bool { return false }

func (s *EOA) ProviderEstimateCall(op *domain.AccountOp) (ethereum.CallMsg, bool, error) {
	if len(op.Calls) != 1 {
		return ethereum.CallMsg{}, false, nil
	}
	return directCallMsg(s.account, op.Calls[0]), true, nil
}

func directCallMsg(account domain.Account, call domain.Call) ethereum.CallMsg {
	to := call.To
	return ethereum.CallMsg{
		From:  account.Addr,
		To:    &to,
		Value: call.ValueOrZero(),
		Data:  call.Data,
	}
}
