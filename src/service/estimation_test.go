package service

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethaccount/walletcore/erc4337"
	"github.com/ethaccount/walletcore/src/contracts"
	"github.com/ethaccount/walletcore/src/domain"
	"github.com/ethaccount/walletcore/src/strategy"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient/gethclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrchestrator(bundlers fakeBundlerSource, relayer RelayerSigner) *EstimationOrchestrator {
	c := domain.DefaultContracts()
	simulator := NewAmbireSimulator(SimulatorConfig{EstimatorBytecode: testBytecode, Contracts: c})
	gasPrices := NewGasPriceService(bundlers, fakeProviderSource{provider: &fakeProvider{baseFee: big.NewInt(1)}})
	paymasters := NewPaymasterFactory(NewMemoryFailedPaymasters(), relayer, c, nil)
	return NewEstimationOrchestrator(simulator, bundlers, gasPrices, paymasters, c, nil)
}

func eoaStrategy() strategy.AccountStrategy {
	network := testNetwork()
	network.Has7702 = false
	state := &domain.AccountOnchainState{IsEOA: true, Nonce: big.NewInt(3)}
	return strategy.Select(domain.Account{Addr: testAccount}, network, state, domain.DefaultContracts())
}

func deployedSmartAccount(network *domain.Network) strategy.AccountStrategy {
	return smartAccountStrategy(network, &domain.AccountOnchainState{
		IsDeployed:       true,
		IsErc4337Enabled: true,
		Nonce:            big.NewInt(3),
		Erc4337Nonce:     big.NewInt(0),
	})
}

func TestEstimate_EOA(t *testing.T) {
	o := newTestOrchestrator(fakeBundlerSource{}, nil)
	provider := simulatingProvider(t, successOutput(4))

	summary, err := o.Estimate(context.Background(), EstimateRequest{
		Strategy:  eoaStrategy(),
		Op:        testOp(),
		FeeTokens: testFeeTokens(),
		Provider:  provider,
	})
	require.NoError(t, err)

	assert.True(t, summary.AmbireEstimation.Ok())
	assert.True(t, summary.ProviderEstimation.Ok())
	assert.True(t, summary.BundlerEstimation.IsNull())
	assert.False(t, summary.Flags.HasNonceDiscrepancy)

	require.Len(t, summary.FeePaymentOptions, 1)
	option := summary.FeePaymentOptions[0]
	assert.Equal(t, testAccount, option.PaidBy)
	assert.True(t, option.Token.IsNative())
	// received native cannot pay the fee of a plain EOA
	assert.Equal(t, "1000000000000000000", option.AvailableAmount.String())
	assert.Equal(t, int64(21000), option.GasUsed.Int64())
}

func TestEstimate_NonceDiscrepancy(t *testing.T) {
	o := newTestOrchestrator(fakeBundlerSource{}, nil)

	summary, err := o.Estimate(context.Background(), EstimateRequest{
		Strategy:  eoaStrategy(),
		Op:        testOp(),
		FeeTokens: testFeeTokens(),
		Provider:  simulatingProvider(t, successOutput(3)),
	})
	require.NoError(t, err)
	assert.True(t, summary.Flags.HasNonceDiscrepancy)
	assert.True(t, summary.AmbireEstimation.Value.Flags.HasNonceDiscrepancy)
}

func TestEstimate_SimulationFailureIsNotCriticalForSingleCallEOA(t *testing.T) {
	o := newTestOrchestrator(fakeBundlerSource{}, nil)
	provider := &fakeProvider{
		callOverride: func(ethereum.CallMsg, map[common.Address]gethclient.OverrideAccount) ([]byte, error) {
			return nil, errors.New("method not supported")
		},
	}

	summary, err := o.Estimate(context.Background(), EstimateRequest{
		Strategy:  eoaStrategy(),
		Op:        testOp(),
		FeeTokens: testFeeTokens(),
		Provider:  provider,
	})
	require.NoError(t, err)
	assert.True(t, summary.AmbireEstimation.Failed())
	assert.True(t, summary.ProviderEstimation.Ok())
	require.Len(t, summary.FeePaymentOptions, 1)
	assert.Equal(t, "1000000000000000000", summary.FeePaymentOptions[0].AvailableAmount.String())
}

func TestEstimate_PanicBecomesCodeError(t *testing.T) {
	o := newTestOrchestrator(fakeBundlerSource{}, nil)
	provider := simulatingProvider(t, successOutput(4))
	provider.estimateGas = func(ethereum.CallMsg) (uint64, error) {
		panic("nil map")
	}

	_, err := o.Estimate(context.Background(), EstimateRequest{
		Strategy:  eoaStrategy(),
		Op:        testOp(),
		FeeTokens: testFeeTokens(),
		Provider:  provider,
	})
	kind, ok := domain.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, domain.KindCodeError, kind)
}

func TestEstimate_SmartAccountCriticalFailure(t *testing.T) {
	out := successOutput(4)
	out.OpSuccess = false
	out.OpErr = revertReason(t, "transfer amount exceeds balance")
	bundler := &fakeBundler{}
	o := newTestOrchestrator(fakeBundlerSource{"pimlico": bundler}, nil)

	_, err := o.Estimate(context.Background(), EstimateRequest{
		Strategy:  deployedSmartAccount(testNetwork("pimlico")),
		Op:        testOp(),
		FeeTokens: testFeeTokens(),
		Provider:  simulatingProvider(t, out),
	})
	var estErr *domain.EstimationError
	require.ErrorAs(t, err, &estErr)
	assert.Equal(t, domain.KindInnerCallFailure, estErr.Kind)
	assert.Equal(t, "transfer amount exceeds balance", estErr.Cause)
}

func TestEstimate_SmartAccountThroughBundler(t *testing.T) {
	bundler := &fakeBundler{}
	o := newTestOrchestrator(fakeBundlerSource{"pimlico": bundler}, nil)
	network := testNetwork("pimlico")

	summary, err := o.Estimate(context.Background(), EstimateRequest{
		Strategy:      deployedSmartAccount(network),
		Op:            testOp(),
		FeeTokens:     testFeeTokens(),
		NativeToCheck: []common.Address{testReceiver},
		Provider:      simulatingProvider(t, successOutput(4)),
	})
	require.NoError(t, err)
	require.True(t, summary.BundlerEstimation.Ok())

	limits := summary.BundlerEstimation.Value
	assert.Equal(t, domain.BundlerID("pimlico"), limits.Bundler)
	assert.Equal(t, domain.PaymasterNone, limits.Paymaster)
	assert.Equal(t, int64(20), limits.GasPrice.Medium.MaxFeePerGas.Int64())

	require.Len(t, summary.FeePaymentOptions, 3)
	byPayer := map[common.Address][]domain.FeePaymentOption{}
	for _, option := range summary.FeePaymentOptions {
		byPayer[option.PaidBy] = append(byPayer[option.PaidBy], option)
	}
	require.Len(t, byPayer[testAccount], 2)
	for _, option := range byPayer[testAccount] {
		assert.Equal(t, int64(230000), option.GasUsed.Int64())
	}
	require.Len(t, byPayer[testReceiver], 1)
	assert.Equal(t, int64(45000), byPayer[testReceiver][0].GasUsed.Int64())
	assert.Equal(t, "3000000000000000000", byPayer[testReceiver][0].AvailableAmount.String())

	// the probe op is estimated without a fee call
	calls, err := contracts.DecodeExecuteBySender(bundler.lastOp.CallData)
	require.NoError(t, err)
	assert.Len(t, calls, 1)
	assert.Nil(t, bundler.lastOp.Paymaster)
}

func TestEstimate_HostedPaymasterAddsFeeCall(t *testing.T) {
	bundler := &fakeBundler{}
	o := newTestOrchestrator(fakeBundlerSource{"pimlico": bundler}, &fakeRelayer{})

	summary, err := o.Estimate(context.Background(), EstimateRequest{
		Strategy:  deployedSmartAccount(testNetwork("pimlico")),
		Op:        testOp(),
		FeeTokens: testFeeTokens(),
		Provider:  simulatingProvider(t, successOutput(4)),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymasterAmbire, summary.BundlerEstimation.Value.Paymaster)
	assert.False(t, summary.BundlerEstimation.Value.IsSponsored)

	require.NotNil(t, bundler.lastOp.Paymaster)
	assert.Equal(t, domain.DefaultContracts().AmbirePaymaster, *bundler.lastOp.Paymaster)
	calls, err := contracts.DecodeExecuteBySender(bundler.lastOp.CallData)
	require.NoError(t, err)
	require.Len(t, calls, 2)
	assert.Equal(t, testUSDC, calls[1].To)
}

func TestEstimate_SwitchesBundlerOnOutage(t *testing.T) {
	down := &fakeBundler{estimate: func(*erc4337.UserOperation, erc4337.StateOverride) (*erc4337.GasEstimates, error) {
		return nil, errBundlerDown
	}}
	healthy := &fakeBundler{}
	o := newTestOrchestrator(fakeBundlerSource{"pimlico": down, "biconomy": healthy}, nil)
	network := testNetwork("pimlico", "biconomy")
	switcher := NewBundlerSwitcher(network, nil)

	var mu sync.Mutex
	var events []domain.RetryEvent
	summary, err := o.Estimate(context.Background(), EstimateRequest{
		Strategy:  deployedSmartAccount(network),
		Op:        testOp(),
		FeeTokens: testFeeTokens(),
		Provider:  simulatingProvider(t, successOutput(4)),
		Switcher:  switcher,
		OnRetry: func(e domain.RetryEvent) {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, e)
		},
	})
	require.NoError(t, err)
	require.True(t, summary.BundlerEstimation.Ok())
	assert.Equal(t, domain.BundlerID("biconomy"), summary.BundlerEstimation.Value.Bundler)
	assert.Equal(t, []domain.BundlerID{"pimlico", "biconomy"}, switcher.Used())
	assert.Equal(t, 1, down.Estimates())
	assert.Equal(t, 1, healthy.Estimates())

	require.Len(t, events, 1)
	assert.Equal(t, domain.EventLevelMajor, events[0].Level)
	assert.Equal(t, "Bundler is not responding. Retrying with another one...", events[0].Message)

	// a second estimation in the same session stays on the working bundler
	_, err = o.Estimate(context.Background(), EstimateRequest{
		Strategy:  deployedSmartAccount(network),
		Op:        testOp(),
		FeeTokens: testFeeTokens(),
		Provider:  simulatingProvider(t, successOutput(4)),
		Switcher:  switcher,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, down.Estimates())
	assert.Equal(t, 2, healthy.Estimates())
}

func TestEstimate_NoSwitchAfterCommit(t *testing.T) {
	down := &fakeBundler{estimate: func(*erc4337.UserOperation, erc4337.StateOverride) (*erc4337.GasEstimates, error) {
		return nil, errBundlerDown
	}}
	healthy := &fakeBundler{}
	o := newTestOrchestrator(fakeBundlerSource{"pimlico": down, "biconomy": healthy}, nil)
	network := testNetwork("pimlico", "biconomy")
	switcher := NewBundlerSwitcher(network, func() bool { return true })

	var events []domain.RetryEvent
	summary, err := o.Estimate(context.Background(), EstimateRequest{
		Strategy:  deployedSmartAccount(network),
		Op:        testOp(),
		FeeTokens: testFeeTokens(),
		Provider:  simulatingProvider(t, successOutput(4)),
		Switcher:  switcher,
		OnRetry:   func(e domain.RetryEvent) { events = append(events, e) },
	})
	require.NoError(t, err)
	require.True(t, summary.BundlerEstimation.Failed())
	kind, _ := domain.KindOf(summary.BundlerEstimation.Err)
	assert.Equal(t, domain.KindBundlerError, kind)

	var bundlerErr *domain.BundlerError
	require.ErrorAs(t, summary.BundlerEstimation.Err, &bundlerErr)
	assert.Equal(t, domain.BundlerID("pimlico"), bundlerErr.Bundler)
	assert.Equal(t, 0, healthy.Estimates())
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventLevelMinor, events[0].Level)
}

func TestEstimate_Idempotent(t *testing.T) {
	o := newTestOrchestrator(fakeBundlerSource{}, nil)
	req := EstimateRequest{
		Strategy:  eoaStrategy(),
		Op:        testOp(),
		FeeTokens: testFeeTokens(),
		Provider:  simulatingProvider(t, successOutput(4)),
	}

	first, err := o.Estimate(context.Background(), req)
	require.NoError(t, err)
	second, err := o.Estimate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first.FeePaymentOptions, second.FeePaymentOptions)
	assert.Equal(t, first.Flags, second.Flags)
	assert.Nil(t, req.Op.FeeCall)
}
