package service

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethaccount/walletcore/erc4337"
	"github.com/ethaccount/walletcore/src/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGasPriceService_UsesBundler(t *testing.T) {
	bundler := &fakeBundler{}
	svc := NewGasPriceService(fakeBundlerSource{"pimlico": bundler}, fakeProviderSource{err: errors.New("node unused")})

	tiers, err := svc.Fetch(context.Background(), testNetwork("pimlico"))
	require.NoError(t, err)
	assert.Equal(t, int64(10), tiers.Slow.MaxFeePerGas.Int64())
	assert.Equal(t, int64(20), tiers.Medium.MaxFeePerGas.Int64())
	assert.Equal(t, int64(30), tiers.Fast.MaxFeePerGas.Int64())
	assert.Equal(t, tiers.Fast, tiers.Ape)
}

func TestGasPriceService_FirstBundlerWins(t *testing.T) {
	slow := &fakeBundler{gasPrice: func() (*erc4337.UserOperationGasPrice, error) {
		time.Sleep(200 * time.Millisecond)
		return testBundlerGasPrice(), nil
	}}
	failing := &fakeBundler{gasPrice: func() (*erc4337.UserOperationGasPrice, error) {
		return nil, errBundlerDown
	}}
	fast := &fakeBundler{gasPrice: func() (*erc4337.UserOperationGasPrice, error) {
		return &erc4337.UserOperationGasPrice{
			Slow:     erc4337.GasPriceTier{MaxFeePerGas: hexBig(7), MaxPriorityFeePerGas: hexBig(1)},
			Standard: erc4337.GasPriceTier{MaxFeePerGas: hexBig(7), MaxPriorityFeePerGas: hexBig(1)},
			Fast:     erc4337.GasPriceTier{MaxFeePerGas: hexBig(7), MaxPriorityFeePerGas: hexBig(1)},
		}, nil
	}}
	svc := NewGasPriceService(fakeBundlerSource{"a": slow, "b": failing, "c": fast}, fakeProviderSource{})

	tiers, err := svc.Fetch(context.Background(), testNetwork("a", "b", "c"))
	require.NoError(t, err)
	assert.Equal(t, int64(7), tiers.Medium.MaxFeePerGas.Int64())
}

func TestGasPriceService_FallsBackToNode(t *testing.T) {
	failing := &fakeBundler{gasPrice: func() (*erc4337.UserOperationGasPrice, error) {
		return nil, errBundlerDown
	}}
	provider := &fakeProvider{baseFee: big.NewInt(10_000_000_000), tip: big.NewInt(2_000_000_000)}
	svc := NewGasPriceService(fakeBundlerSource{"pimlico": failing}, fakeProviderSource{provider: provider})

	tiers, err := svc.Fetch(context.Background(), testNetwork("pimlico"))
	require.NoError(t, err)
	// tip + base fee * 110%
	assert.Equal(t, int64(13_000_000_000), tiers.Slow.MaxFeePerGas.Int64())
	assert.Equal(t, int64(22_000_000_000), tiers.Fast.MaxFeePerGas.Int64())
	assert.Equal(t, int64(2_000_000_000), tiers.Ape.MaxPriorityFeePerGas.Int64())
}

func TestSuggestGasPriceTiers_MinimumTip(t *testing.T) {
	provider := &fakeProvider{baseFee: big.NewInt(100), tip: big.NewInt(1)}

	tiers, err := SuggestGasPriceTiers(context.Background(), provider)
	require.NoError(t, err)
	assert.Equal(t, minPriorityFee.Int64(), tiers.Slow.MaxPriorityFeePerGas.Int64())
	assert.Equal(t, minPriorityFee.Int64()+110, tiers.Slow.MaxFeePerGas.Int64())
	assert.Equal(t, minPriorityFee.Int64()+250, tiers.Ape.MaxFeePerGas.Int64())
}

func TestGasPriceService_CachesPerChain(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	bundler := &fakeBundler{gasPrice: func() (*erc4337.UserOperationGasPrice, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		return testBundlerGasPrice(), nil
	}}
	svc := NewGasPriceService(fakeBundlerSource{"pimlico": bundler}, fakeProviderSource{})
	network := testNetwork("pimlico")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Fetch(context.Background(), network)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	_, err := svc.Fetch(context.Background(), network)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)
}

func TestGasPriceService_NodeOnlyNetwork(t *testing.T) {
	provider := &fakeProvider{baseFee: big.NewInt(0), tip: big.NewInt(1_000_000_000)}
	svc := NewGasPriceService(fakeBundlerSource{}, fakeProviderSource{provider: provider})

	network := testNetwork()
	network.ChainID = 10
	tiers, err := svc.Fetch(context.Background(), network)
	require.NoError(t, err)
	assert.Equal(t, domain.GasPrice{
		MaxFeePerGas:         big.NewInt(1_000_000_000),
		MaxPriorityFeePerGas: big.NewInt(1_000_000_000),
	}, tiers.Medium)
}

func TestGasPriceService_CancelledCallerDoesNotFailOthers(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	bundler := &fakeBundler{gasPrice: func() (*erc4337.UserOperationGasPrice, error) {
		once.Do(func() { close(started) })
		<-release
		return testBundlerGasPrice(), nil
	}}
	svc := NewGasPriceService(fakeBundlerSource{"pimlico": bundler}, fakeProviderSource{err: errors.New("node unused")})
	network := testNetwork("pimlico")

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.Fetch(firstCtx, network)
		firstErr <- err
	}()
	<-started

	type result struct {
		tiers *domain.GasPriceTiers
		err   error
	}
	second := make(chan result, 1)
	go func() {
		tiers, err := svc.Fetch(context.Background(), network)
		second <- result{tiers, err}
	}()

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	r := <-second
	require.NoError(t, r.err)
	assert.Equal(t, int64(20), r.tiers.Medium.MaxFeePerGas.Int64())
}
