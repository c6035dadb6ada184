package service

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethaccount/walletcore/erc4337"
	"github.com/ethaccount/walletcore/src/contracts"
	"github.com/ethaccount/walletcore/src/domain"
	"github.com/ethaccount/walletcore/src/metrics"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sponsorPaymaster = common.HexToAddress("0x00000000000000000000000000000000000000f1")

func sponsoredOp() *domain.AccountOp {
	return &domain.AccountOp{
		AccountAddr: common.HexToAddress("0xaa"),
		ChainID:     1,
		Calls:       []domain.Call{{To: common.HexToAddress("0xbb"), Value: big.NewInt(1)}},
		Meta: &domain.AccountOpMeta{PaymasterService: &domain.PaymasterService{
			URL:     "https://paymaster.example",
			ChainID: 1,
			ID:      "dapp-1",
		}},
	}
}

func newTestPaymasterFactory(failed FailedPaymasters, relayer RelayerSigner, service *fakePaymasterService) *PaymasterFactory {
	f := NewPaymasterFactory(failed, relayer, domain.DefaultContracts(), metrics.NewNoopCollector())
	return f.WithDialer(func(context.Context, string) (erc4337.PaymasterService, error) {
		if service == nil {
			return nil, errors.New("no paymaster service")
		}
		return service, nil
	})
}

func sponsorStub(final bool) *erc4337.PaymasterStubData {
	return &erc4337.PaymasterStubData{
		Sponsor:                       &erc4337.PaymasterSponsor{Name: "Dapp"},
		Paymaster:                     sponsorPaymaster,
		PaymasterData:                 []byte{0x01},
		PaymasterVerificationGasLimit: hexBig(60000),
		PaymasterPostOpGasLimit:       hexBig(1000),
		IsFinal:                       final,
	}
}

func TestPaymaster_ERC7677Sponsorship(t *testing.T) {
	service := &fakePaymasterService{stub: sponsorStub(false)}
	factory := newTestPaymasterFactory(NewMemoryFailedPaymasters(), &fakeRelayer{}, service)

	pm := factory.New(nil)
	userOp := &erc4337.UserOperation{}
	pm.Init(context.Background(), sponsoredOp(), userOp, testNetwork("pimlico"), nil)

	assert.Equal(t, domain.PaymasterERC7677, pm.Type())
	assert.True(t, pm.IsSponsored())
	assert.True(t, pm.ShouldIncludePayment())
	assert.Equal(t, "Dapp", pm.Sponsor().Name)

	require.NoError(t, pm.ApplyEstimationData(userOp))
	require.NotNil(t, userOp.Paymaster)
	assert.Equal(t, sponsorPaymaster, *userOp.Paymaster)
	assert.Equal(t, int64(60000), userOp.PaymasterVerificationGasLimit.ToInt().Int64())

	data, err := pm.Call(context.Background(), userOp)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xaa}, []byte(data.PaymasterData))
	assert.Equal(t, 1, service.Calls())
}

func TestPaymaster_FinalStubSkipsDataCall(t *testing.T) {
	service := &fakePaymasterService{stub: sponsorStub(true)}
	pm := newTestPaymasterFactory(NewMemoryFailedPaymasters(), nil, service).New(nil)
	pm.Init(context.Background(), sponsoredOp(), &erc4337.UserOperation{}, testNetwork("pimlico"), nil)

	data, err := pm.Call(context.Background(), &erc4337.UserOperation{})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01}, []byte(data.PaymasterData))
	assert.Equal(t, 0, service.Calls())
}

func TestPaymaster_TimeoutsAreRetried(t *testing.T) {
	service := &fakePaymasterService{
		stub:     sponsorStub(false),
		dataErrs: []error{context.DeadlineExceeded, context.DeadlineExceeded},
	}
	var events []domain.RetryEvent
	pm := newTestPaymasterFactory(NewMemoryFailedPaymasters(), nil, service).
		New(func(e domain.RetryEvent) { events = append(events, e) })
	pm.Init(context.Background(), sponsoredOp(), &erc4337.UserOperation{}, testNetwork("pimlico"), nil)

	_, err := pm.Call(context.Background(), &erc4337.UserOperation{})
	require.NoError(t, err)
	assert.Equal(t, 3, service.Calls())
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventLevelMajor, events[0].Level)
}

func TestPaymaster_ExhaustedTimeoutsAreNotRemembered(t *testing.T) {
	ctx := context.Background()
	failed := NewMemoryFailedPaymasters()
	service := &fakePaymasterService{
		stub:     sponsorStub(false),
		dataErrs: []error{context.DeadlineExceeded, context.DeadlineExceeded, context.DeadlineExceeded},
	}
	factory := newTestPaymasterFactory(failed, &fakeRelayer{}, service)

	pm := factory.New(nil)
	pm.Init(ctx, sponsoredOp(), &erc4337.UserOperation{}, testNetwork("pimlico"), nil)
	_, err := pm.Call(ctx, &erc4337.UserOperation{})
	require.Error(t, err)
	kind, ok := domain.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, domain.KindPaymasterError, kind)
	assert.Equal(t, paymasterMaxAttempts, service.Calls())

	marked, err := failed.HasFailedSponsorship(ctx, "dapp-1")
	require.NoError(t, err)
	assert.False(t, marked)

	next := factory.New(nil)
	next.Init(ctx, sponsoredOp(), &erc4337.UserOperation{}, testNetwork("pimlico"), nil)
	assert.Equal(t, domain.PaymasterERC7677, next.Type())
}

func TestPaymaster_FailedSponsorshipIsRemembered(t *testing.T) {
	ctx := context.Background()
	failed := NewMemoryFailedPaymasters()
	service := &fakePaymasterService{
		stub:     sponsorStub(false),
		dataErrs: []error{errors.New("sponsorship policy rejected the operation")},
	}
	factory := newTestPaymasterFactory(failed, &fakeRelayer{}, service)

	pm := factory.New(nil)
	pm.Init(ctx, sponsoredOp(), &erc4337.UserOperation{}, testNetwork("pimlico"), nil)
	_, err := pm.Call(ctx, &erc4337.UserOperation{})
	require.Error(t, err)
	kind, ok := domain.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, domain.KindPaymasterSponsorshipError, kind)
	assert.Equal(t, 1, service.Calls())

	marked, err := failed.HasFailedSponsorship(ctx, "dapp-1")
	require.NoError(t, err)
	assert.True(t, marked)

	// the next op with the same sponsorship goes to the hosted paymaster
	next := factory.New(nil)
	next.Init(ctx, sponsoredOp(), &erc4337.UserOperation{}, testNetwork("pimlico"), nil)
	assert.Equal(t, domain.PaymasterAmbire, next.Type())
	assert.False(t, next.IsSponsored())
}

func TestPaymaster_OtherErrorsAreNotRetried(t *testing.T) {
	service := &fakePaymasterService{
		stub:     sponsorStub(false),
		dataErrs: []error{errors.New("policy rejected")},
	}
	pm := newTestPaymasterFactory(NewMemoryFailedPaymasters(), nil, service).New(nil)
	pm.Init(context.Background(), sponsoredOp(), &erc4337.UserOperation{}, testNetwork("pimlico"), nil)

	_, err := pm.Call(context.Background(), &erc4337.UserOperation{})
	require.Error(t, err)
	assert.Equal(t, 1, service.Calls())
}

func TestPaymaster_StubFailureFallsBack(t *testing.T) {
	service := &fakePaymasterService{stubErr: errors.New("unsupported chain")}
	pm := newTestPaymasterFactory(NewMemoryFailedPaymasters(), &fakeRelayer{}, service).New(nil)
	pm.Init(context.Background(), sponsoredOp(), &erc4337.UserOperation{}, testNetwork("pimlico"), nil)

	assert.Equal(t, domain.PaymasterAmbire, pm.Type())
}

func TestPaymaster_AmbireInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	failed := NewMemoryFailedPaymasters()
	relayer := &fakeRelayer{err: &RelayerError{StatusCode: 400, Message: "Insufficient funds on paymaster"}}
	factory := newTestPaymasterFactory(failed, relayer, nil)

	op := sponsoredOp()
	op.Meta = nil
	pm := factory.New(nil)
	pm.Init(ctx, op, &erc4337.UserOperation{}, testNetwork("pimlico"), nil)
	require.Equal(t, domain.PaymasterAmbire, pm.Type())
	assert.False(t, pm.IsSponsored())
	assert.True(t, pm.ShouldIncludePayment())

	userOp := &erc4337.UserOperation{}
	require.NoError(t, pm.ApplyEstimationData(userOp))
	assert.Equal(t, domain.DefaultContracts().AmbirePaymaster, *userOp.Paymaster)

	_, err := pm.Call(ctx, userOp)
	require.Error(t, err)
	kind, _ := domain.KindOf(err)
	assert.Equal(t, domain.KindPaymasterError, kind)

	_, insufficient, err := failed.InsufficientFunds(ctx, 1)
	require.NoError(t, err)
	assert.True(t, insufficient)

	next := factory.New(nil)
	next.Init(ctx, op, &erc4337.UserOperation{}, testNetwork("pimlico"), nil)
	assert.Equal(t, domain.PaymasterNone, next.Type())
	assert.False(t, next.IsUsable())
}

func TestPaymaster_CustomNetworkChecksDeposit(t *testing.T) {
	ctx := context.Background()
	failed := NewMemoryFailedPaymasters()
	deposit := big.NewInt(0)
	provider := &fakeProvider{call: func(msg ethereum.CallMsg) ([]byte, error) {
		return common.LeftPadBytes(deposit.Bytes(), 32), nil
	}}
	factory := newTestPaymasterFactory(failed, &fakeRelayer{}, nil)

	network := testNetwork("pimlico")
	network.Predefined = false
	network.Erc4337.HasPaymaster = false
	op := sponsoredOp()
	op.Meta = nil

	pm := factory.New(nil)
	pm.Init(ctx, op, &erc4337.UserOperation{}, network, provider)
	assert.Equal(t, domain.PaymasterNone, pm.Type())

	deposit = big.NewInt(1_000_000)
	pm.Init(ctx, op, &erc4337.UserOperation{}, network, provider)
	assert.Equal(t, domain.PaymasterAmbire, pm.Type())
}

func TestPaymaster_CustomNetworkWithHostedPaymaster(t *testing.T) {
	ctx := context.Background()
	calls := 0
	provider := &fakeProvider{call: func(msg ethereum.CallMsg) ([]byte, error) {
		calls++
		return common.LeftPadBytes(nil, 32), nil
	}}
	factory := newTestPaymasterFactory(NewMemoryFailedPaymasters(), &fakeRelayer{}, nil)

	network := testNetwork("pimlico")
	network.Predefined = false
	op := sponsoredOp()
	op.Meta = nil

	pm := factory.New(nil)
	pm.Init(ctx, op, &erc4337.UserOperation{}, network, provider)
	assert.Equal(t, domain.PaymasterAmbire, pm.Type())
	assert.Zero(t, calls)
}

func TestPaymaster_CallBeforeInit(t *testing.T) {
	pm := newTestPaymasterFactory(NewMemoryFailedPaymasters(), nil, nil).New(nil)
	_, err := pm.Call(context.Background(), &erc4337.UserOperation{})
	assert.ErrorIs(t, err, domain.ErrPaymasterNotInitialized)
}

func TestFeeCall(t *testing.T) {
	c := domain.DefaultContracts()
	amount := big.NewInt(5000)

	t.Run("native", func(t *testing.T) {
		call, err := FeeCall(c, domain.TokenResult{Symbol: "ETH"}, amount)
		require.NoError(t, err)
		assert.Equal(t, c.FeeCollector, call.To)
		assert.Equal(t, amount, call.Value)
		assert.Empty(t, call.Data)
	})

	t.Run("erc20", func(t *testing.T) {
		usdc := common.HexToAddress("0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48")
		call, err := FeeCall(c, domain.TokenResult{Address: usdc, Symbol: "USDC"}, amount)
		require.NoError(t, err)
		want, err := contracts.EncodeERC20Transfer(c.FeeCollector, amount)
		require.NoError(t, err)
		assert.Equal(t, usdc, call.To)
		assert.Equal(t, int64(0), call.Value.Int64())
		assert.Equal(t, want, []byte(call.Data))
	})

	t.Run("gas tank", func(t *testing.T) {
		call, err := FeeCall(c, domain.TokenResult{Symbol: "USDC", Flags: domain.TokenFlags{OnGasTank: true}}, amount)
		require.NoError(t, err)
		assert.Equal(t, c.FeeCollector, call.To)
		assert.Equal(t, int64(0), call.Value.Int64())
		assert.NotEmpty(t, call.Data)
	})
}
