package service

import (
	"context"
	"errors"
	"math/big"
	"strings"

	"github.com/ethaccount/walletcore/src/contracts"
	"github.com/ethaccount/walletcore/src/domain"
	"github.com/ethaccount/walletcore/src/strategy"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient/gethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// simulationAddress hosts the estimator code during the deployless call
var simulationAddress = common.HexToAddress("0x0000000000000000000000000000000000e5711a")

type SimulatorConfig struct {
	EstimatorBytecode     []byte
	EOASimulationBytecode []byte
	Contracts             domain.Contracts
}

// AmbireSimulator runs the whole batch through the estimator contract in a
// single eth_call with state overrides.
type AmbireSimulator struct {
	config SimulatorConfig
}

func NewAmbireSimulator(config SimulatorConfig) *AmbireSimulator {
	return &AmbireSimulator{config: config}
}

type SimulationInput struct {
	Strategy      strategy.AccountStrategy
	Op            *domain.AccountOp
	Calls         []domain.Call
	FeeTokens     []domain.TokenResult
	NativeToCheck []common.Address
}

func (s *AmbireSimulator) Simulate(ctx context.Context, provider Provider, in SimulationInput) (*domain.AmbireEstimation, error) {
	if len(s.config.EstimatorBytecode) == 0 {
		return nil, domain.NewEstimationError(domain.KindCodeError, "", domain.ErrSimulationUnavailable)
	}

	account := in.Strategy.Account()
	state := in.Strategy.State()

	var initCode []byte
	if account.Creation != nil && !state.IsDeployed {
		deploy, err := contracts.EncodeDeploy(account.Creation)
		if err != nil {
			return nil, domain.NewEstimationError(domain.KindCodeError, "", err)
		}
		initCode = append(account.Creation.FactoryAddr.Bytes(), deploy...)
	}

	var preCalls []domain.Call
	if in.Op.AccountOpToExecuteBefore != nil {
		preCalls = in.Op.AccountOpToExecuteBefore.Calls
	}

	feeTokens := simulatedFeeTokens(in.FeeTokens)
	calldata, err := contracts.EncodeEstimate(contracts.EstimatorInput{
		Account:       account.Addr,
		InitCode:      initCode,
		PreCalls:      preCalls,
		Calls:         in.Calls,
		FeeTokens:     feeTokens,
		NativeHolders: in.NativeToCheck,
		FeeCollector:  s.config.Contracts.FeeCollector,
	})
	if err != nil {
		return nil, domain.NewEstimationError(domain.KindCodeError, "", err)
	}

	overrides := map[common.Address]gethclient.OverrideAccount{
		simulationAddress: {Code: s.config.EstimatorBytecode},
	}
	if state.IsEOA && len(s.config.EOASimulationBytecode) > 0 {
		overrides[account.Addr] = gethclient.OverrideAccount{Code: s.config.EOASimulationBytecode}
	}

	to := simulationAddress
	result, err := provider.CallContractWithOverride(ctx, ethereum.CallMsg{From: account.Addr, To: &to, Data: calldata}, overrides)
	if err != nil {
		if data, ok := revertData(err); ok {
			return nil, s.innerCallFailure(data, in)
		}
		return nil, domain.NewEstimationError(domain.KindProviderError, "", err)
	}

	out, err := contracts.DecodeEstimate(result)
	if err != nil {
		return nil, domain.NewEstimationError(domain.KindCodeError, "", err)
	}

	switch {
	case !out.DeploymentSuccess:
		return nil, &domain.EstimationError{Kind: domain.KindInnerCallFailure, Cause: "account deployment failed"}
	case !out.PreOpSuccess:
		return nil, s.innerCallFailure(out.PreOpErr, in)
	case !out.OpSuccess:
		return nil, s.innerCallFailure(out.OpErr, in)
	}

	return buildEstimation(out, feeTokens, in.NativeToCheck), nil
}

func buildEstimation(out *contracts.EstimatorOutput, feeTokens, nativeHolders []common.Address) *domain.AmbireEstimation {
	gasUsed := new(big.Int)
	for _, g := range []*big.Int{out.DeploymentGasUsed, out.PreOpGasUsed, out.OpGasUsed} {
		if g != nil {
			gasUsed.Add(gasUsed, g)
		}
	}

	outcomes := make([]domain.FeeTokenOutcome, 0, len(feeTokens))
	for i, token := range feeTokens {
		outcome := domain.FeeTokenOutcome{Address: token, Amount: new(big.Int), GasUsed: new(big.Int)}
		if i < len(out.FeeTokenAmounts) {
			outcome.Amount = out.FeeTokenAmounts[i]
		}
		if i < len(out.FeeTokenGasUsed) {
			outcome.GasUsed = out.FeeTokenGasUsed[i]
		}
		outcomes = append(outcomes, outcome)
	}

	balances := make(map[common.Address]*big.Int, len(nativeHolders))
	for i, holder := range nativeHolders {
		if i < len(out.NativeAssetBalances) {
			balances[holder] = out.NativeAssetBalances[i]
		}
	}

	return &domain.AmbireEstimation{
		GasUsed:             gasUsed,
		DeploymentGas:       bigOrZero(out.DeploymentGasUsed),
		Nonce:               bigOrZero(out.Nonce),
		FeeTokenOutcomes:    outcomes,
		NativeAssetBalances: balances,
		L1Fee:               bigOrZero(out.L1Fee),
	}
}

// innerCallFailure classifies revert data of the simulated batch
func (s *AmbireSimulator) innerCallFailure(data []byte, in SimulationInput) error {
	estErr := &domain.EstimationError{Kind: domain.KindInnerCallFailure, Data: hexutil.Bytes(data)}
	if len(data) == 0 {
		if native, ok := knownNativeBalance(in.FeeTokens); ok && in.Op.TotalValue().Cmp(native) > 0 {
			estErr.Cause = domain.CauseInsufficientNativeForCalls
		}
		return estErr
	}
	if reason, err := abi.UnpackRevert(data); err == nil {
		estErr.Cause = reason
	} else if len(data) >= 4 {
		estErr.Cause = hexutil.Encode(data[:4])
	}
	return estErr
}

// simulatedFeeTokens lists the on-chain fee tokens whose outcome the estimator reports
func simulatedFeeTokens(tokens []domain.TokenResult) []common.Address {
	out := make([]common.Address, 0, len(tokens))
	for _, t := range tokens {
		if t.Flags.IsFeeToken && !t.Flags.OnGasTank {
			out = append(out, t.Address)
		}
	}
	return out
}

func knownNativeBalance(tokens []domain.TokenResult) (*big.Int, bool) {
	for _, t := range tokens {
		if t.IsNative() {
			return t.AmountOrZero(), true
		}
	}
	return nil, false
}

// revertData extracts the revert payload carried by a JSON-RPC error
func revertData(err error) ([]byte, bool) {
	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) {
		return nil, false
	}
	raw, ok := dataErr.ErrorData().(string)
	if !ok || !strings.HasPrefix(raw, "0x") {
		return nil, false
	}
	data, decodeErr := hexutil.Decode(raw)
	if decodeErr != nil {
		return nil, false
	}
	return data, true
}
