package service

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethaccount/walletcore/src/contracts"
	"github.com/ethaccount/walletcore/src/domain"
	"github.com/ethaccount/walletcore/src/strategy"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/gethclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testAccount  = common.HexToAddress("0x3333333333333333333333333333333333333333")
	testReceiver = common.HexToAddress("0x4444444444444444444444444444444444444444")
	testUSDC     = common.HexToAddress("0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48")
	testBytecode = []byte{0x60, 0x80, 0x60, 0x40}
)

// testDataError mimics a JSON-RPC error carrying revert data
type testDataError struct {
	data string
}

func (e testDataError) Error() string          { return "execution reverted" }
func (e testDataError) ErrorData() interface{} { return e.data }

func revertReason(t *testing.T, reason string) []byte {
	t.Helper()
	stringType, err := abi.NewType("string", "", nil)
	require.NoError(t, err)
	packed, err := abi.Arguments{{Type: stringType}}.Pack(reason)
	require.NoError(t, err)
	return append(crypto.Keccak256([]byte("Error(string)"))[:4], packed...)
}

func successOutput(nonce int64) *contracts.EstimatorOutput {
	return &contracts.EstimatorOutput{
		DeploymentGasUsed:   big.NewInt(0),
		DeploymentSuccess:   true,
		PreOpGasUsed:        big.NewInt(0),
		PreOpSuccess:        true,
		OpGasUsed:           big.NewInt(45000),
		OpSuccess:           true,
		Nonce:               big.NewInt(nonce),
		FeeTokenAmounts:     []*big.Int{big.NewInt(2_000_000_000_000_000_000), big.NewInt(500_000_000)},
		FeeTokenGasUsed:     []*big.Int{big.NewInt(0), big.NewInt(30000)},
		NativeAssetBalances: []*big.Int{big.NewInt(3_000_000_000_000_000_000)},
		L1Fee:               big.NewInt(0),
	}
}

// simulatingProvider answers the estimator call with out
func simulatingProvider(t *testing.T, out *contracts.EstimatorOutput) *fakeProvider {
	return &fakeProvider{
		callOverride: func(msg ethereum.CallMsg, overrides map[common.Address]gethclient.OverrideAccount) ([]byte, error) {
			assert.Contains(t, overrides, simulationAddress)
			return contracts.PackEstimateOutput(out)
		},
	}
}

func testFeeTokens() []domain.TokenResult {
	return []domain.TokenResult{
		{Symbol: "ETH", Decimals: 18, Amount: big.NewInt(1_000_000_000_000_000_000), Flags: domain.TokenFlags{IsFeeToken: true}},
		{Address: testUSDC, Symbol: "USDC", Decimals: 6, Amount: big.NewInt(100_000_000), Flags: domain.TokenFlags{IsFeeToken: true}},
	}
}

func smartAccountStrategy(network *domain.Network, state *domain.AccountOnchainState) strategy.AccountStrategy {
	state.IsV2 = true
	return strategy.Select(domain.Account{Addr: testAccount}, network, state, domain.DefaultContracts())
}

func testOp(calls ...domain.Call) *domain.AccountOp {
	if len(calls) == 0 {
		calls = []domain.Call{{To: testReceiver, Value: big.NewInt(1000), Data: hexutil.Bytes{}}}
	}
	return &domain.AccountOp{AccountAddr: testAccount, ChainID: 1, Nonce: big.NewInt(3), Calls: calls}
}

func simulate(t *testing.T, provider Provider, s strategy.AccountStrategy, op *domain.AccountOp) (*domain.AmbireEstimation, error) {
	sim := NewAmbireSimulator(SimulatorConfig{EstimatorBytecode: testBytecode, Contracts: domain.DefaultContracts()})
	return sim.Simulate(context.Background(), provider, SimulationInput{
		Strategy:      s,
		Op:            op,
		Calls:         op.Calls,
		FeeTokens:     testFeeTokens(),
		NativeToCheck: []common.Address{testReceiver},
	})
}

func TestSimulator_Success(t *testing.T) {
	s := smartAccountStrategy(testNetwork("pimlico"), &domain.AccountOnchainState{IsDeployed: true, Nonce: big.NewInt(3)})

	est, err := simulate(t, simulatingProvider(t, successOutput(4)), s, testOp())
	require.NoError(t, err)
	assert.Equal(t, int64(45000), est.GasUsed.Int64())
	assert.Equal(t, int64(4), est.Nonce.Int64())

	usdc, ok := est.FeeTokenOutcome(testUSDC)
	require.True(t, ok)
	assert.Equal(t, int64(500_000_000), usdc.Amount.Int64())
	assert.Equal(t, int64(30000), usdc.GasUsed.Int64())
	assert.Equal(t, "3000000000000000000", est.NativeAssetBalances[testReceiver].String())
}

func TestSimulator_InnerCallReverted(t *testing.T) {
	s := smartAccountStrategy(testNetwork("pimlico"), &domain.AccountOnchainState{IsDeployed: true, Nonce: big.NewInt(3)})
	out := successOutput(4)
	out.OpSuccess = false
	out.OpErr = revertReason(t, "transfer amount exceeds balance")

	_, err := simulate(t, simulatingProvider(t, out), s, testOp())
	var estErr *domain.EstimationError
	require.ErrorAs(t, err, &estErr)
	assert.Equal(t, domain.KindInnerCallFailure, estErr.Kind)
	assert.Equal(t, "transfer amount exceeds balance", estErr.Cause)
}

func TestSimulator_EmptyRevertWithTooMuchValue(t *testing.T) {
	s := smartAccountStrategy(testNetwork("pimlico"), &domain.AccountOnchainState{IsDeployed: true, Nonce: big.NewInt(3)})
	out := successOutput(4)
	out.OpSuccess = false

	op := testOp(domain.Call{To: testReceiver, Value: big.NewInt(5_000_000_000_000_000_000), Data: hexutil.Bytes{}})
	_, err := simulate(t, simulatingProvider(t, out), s, op)
	var estErr *domain.EstimationError
	require.ErrorAs(t, err, &estErr)
	assert.Equal(t, domain.CauseInsufficientNativeForCalls, estErr.Cause)
}

func TestSimulator_RevertFromNode(t *testing.T) {
	s := smartAccountStrategy(testNetwork("pimlico"), &domain.AccountOnchainState{IsDeployed: true, Nonce: big.NewInt(3)})
	provider := &fakeProvider{
		callOverride: func(ethereum.CallMsg, map[common.Address]gethclient.OverrideAccount) ([]byte, error) {
			return nil, testDataError{data: hexutil.Encode(revertReason(t, "paused"))}
		},
	}

	_, err := simulate(t, provider, s, testOp())
	kind, ok := domain.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, domain.KindInnerCallFailure, kind)
	assert.Contains(t, err.Error(), "paused")
}

func TestSimulator_NodeUnavailable(t *testing.T) {
	s := smartAccountStrategy(testNetwork("pimlico"), &domain.AccountOnchainState{IsDeployed: true})
	provider := &fakeProvider{
		callOverride: func(ethereum.CallMsg, map[common.Address]gethclient.OverrideAccount) ([]byte, error) {
			return nil, errors.New("connection refused")
		},
	}

	_, err := simulate(t, provider, s, testOp())
	kind, _ := domain.KindOf(err)
	assert.Equal(t, domain.KindProviderError, kind)
}

func TestSimulator_NotConfigured(t *testing.T) {
	s := smartAccountStrategy(testNetwork("pimlico"), &domain.AccountOnchainState{IsDeployed: true})
	sim := NewAmbireSimulator(SimulatorConfig{})

	_, err := sim.Simulate(context.Background(), &fakeProvider{}, SimulationInput{Strategy: s, Op: testOp()})
	assert.ErrorIs(t, err, domain.ErrSimulationUnavailable)
}

func TestSimulator_EOAOverride(t *testing.T) {
	network := testNetwork()
	network.Has7702 = false
	s := strategy.Select(domain.Account{Addr: testAccount}, network, &domain.AccountOnchainState{IsEOA: true}, domain.DefaultContracts())

	var seen map[common.Address]gethclient.OverrideAccount
	provider := &fakeProvider{
		callOverride: func(_ ethereum.CallMsg, overrides map[common.Address]gethclient.OverrideAccount) ([]byte, error) {
			seen = overrides
			return contracts.PackEstimateOutput(successOutput(1))
		},
	}
	sim := NewAmbireSimulator(SimulatorConfig{
		EstimatorBytecode:     testBytecode,
		EOASimulationBytecode: []byte{0xee},
		Contracts:             domain.DefaultContracts(),
	})
	_, err := sim.Simulate(context.Background(), provider, SimulationInput{Strategy: s, Op: testOp(), Calls: testOp().Calls})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xee}, seen[testAccount].Code)
}
