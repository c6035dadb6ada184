package service

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethaccount/walletcore/erc4337"
	"github.com/ethaccount/walletcore/src/domain"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient/gethclient"
)

type fakeProvider struct {
	estimateGas  func(msg ethereum.CallMsg) (uint64, error)
	call         func(msg ethereum.CallMsg) ([]byte, error)
	callOverride func(msg ethereum.CallMsg, overrides map[common.Address]gethclient.OverrideAccount) ([]byte, error)
	baseFee      *big.Int
	tip          *big.Int
}

func (p *fakeProvider) EstimateGas(_ context.Context, msg ethereum.CallMsg) (uint64, error) {
	if p.estimateGas == nil {
		return 21000, nil
	}
	return p.estimateGas(msg)
}

func (p *fakeProvider) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if p.call == nil {
		return nil, nil
	}
	return p.call(msg)
}

func (p *fakeProvider) CallContractWithOverride(_ context.Context, msg ethereum.CallMsg, overrides map[common.Address]gethclient.OverrideAccount) ([]byte, error) {
	if p.callOverride == nil {
		return nil, nil
	}
	return p.callOverride(msg, overrides)
}

func (p *fakeProvider) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{BaseFee: p.baseFee}, nil
}

func (p *fakeProvider) SuggestGasTipCap(context.Context) (*big.Int, error) {
	if p.tip == nil {
		return big.NewInt(0), nil
	}
	return p.tip, nil
}

type fakeProviderSource struct {
	provider Provider
	err      error
}

func (s fakeProviderSource) GetProvider(context.Context, uint64) (Provider, error) {
	return s.provider, s.err
}

type fakeBundler struct {
	mu        sync.Mutex
	estimate  func(op *erc4337.UserOperation, overrides erc4337.StateOverride) (*erc4337.GasEstimates, error)
	gasPrice  func() (*erc4337.UserOperationGasPrice, error)
	estimates int
	lastOp    *erc4337.UserOperation
}

func (b *fakeBundler) ChainId(context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (b *fakeBundler) EstimateUserOperationGas(_ context.Context, op *erc4337.UserOperation, _ common.Address, overrides erc4337.StateOverride) (*erc4337.GasEstimates, error) {
	b.mu.Lock()
	b.estimates++
	b.lastOp = op.Copy()
	b.mu.Unlock()
	if b.estimate == nil {
		return testGasEstimates(), nil
	}
	return b.estimate(op, overrides)
}

func (b *fakeBundler) GetUserOperationGasPrice(context.Context) (*erc4337.UserOperationGasPrice, error) {
	if b.gasPrice == nil {
		return testBundlerGasPrice(), nil
	}
	return b.gasPrice()
}

func (b *fakeBundler) Estimates() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.estimates
}

type fakeBundlerSource map[domain.BundlerID]*fakeBundler

func (s fakeBundlerSource) GetBundlerClient(_ context.Context, network *domain.Network, id domain.BundlerID) (erc4337.Bundler, error) {
	b, ok := s[id]
	if !ok {
		return nil, domain.ErrUnknownBundler
	}
	return b, nil
}

type fakePaymasterService struct {
	mu       sync.Mutex
	stub     *erc4337.PaymasterStubData
	stubErr  error
	dataErrs []error
	calls    int
}

func (p *fakePaymasterService) GetPaymasterStubData(context.Context, *erc4337.UserOperation, common.Address, *big.Int, map[string]any) (*erc4337.PaymasterStubData, error) {
	return p.stub, p.stubErr
}

// GetPaymasterData pops one queued error per call and succeeds when the queue is empty
func (p *fakePaymasterService) GetPaymasterData(context.Context, *erc4337.UserOperation, common.Address, *big.Int, map[string]any) (*erc4337.PaymasterData, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if len(p.dataErrs) > 0 {
		err := p.dataErrs[0]
		p.dataErrs = p.dataErrs[1:]
		return nil, err
	}
	return &erc4337.PaymasterData{Paymaster: p.stub.Paymaster, PaymasterData: []byte{0xaa}}, nil
}

func (p *fakePaymasterService) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type fakeRelayer struct {
	err   error
	calls int
}

func (r *fakeRelayer) SignPaymaster(_ context.Context, _ uint64, _ *erc4337.UserOperation, paymaster common.Address) (*erc4337.PaymasterData, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return &erc4337.PaymasterData{Paymaster: paymaster, PaymasterData: []byte{0xbb}}, nil
}

func testNetwork(bundlers ...domain.BundlerID) *domain.Network {
	n := &domain.Network{
		ChainID:    1,
		Name:       "Ethereum",
		RPCURL:     "http://localhost:8545",
		Predefined: true,
		Has7702:    true,
		Erc4337: domain.Erc4337Settings{
			Enabled:      len(bundlers) > 0,
			HasPaymaster: true,
		},
	}
	for _, id := range bundlers {
		n.Erc4337.Bundlers = append(n.Erc4337.Bundlers, domain.BundlerConfig{ID: id, URL: "http://" + string(id)})
	}
	if len(bundlers) > 0 {
		n.Erc4337.DefaultBundler = bundlers[0]
	}
	return n
}

func hexBig(v int64) *hexutil.Big {
	return (*hexutil.Big)(big.NewInt(v))
}

func testGasEstimates() *erc4337.GasEstimates {
	return &erc4337.GasEstimates{
		PreVerificationGas:            hexBig(50000),
		VerificationGasLimit:          hexBig(100000),
		CallGasLimit:                  hexBig(80000),
		PaymasterVerificationGasLimit: hexBig(0),
		PaymasterPostOpGasLimit:       hexBig(0),
	}
}

func testBundlerGasPrice() *erc4337.UserOperationGasPrice {
	return &erc4337.UserOperationGasPrice{
		Slow:     erc4337.GasPriceTier{MaxFeePerGas: hexBig(10), MaxPriorityFeePerGas: hexBig(1)},
		Standard: erc4337.GasPriceTier{MaxFeePerGas: hexBig(20), MaxPriorityFeePerGas: hexBig(2)},
		Fast:     erc4337.GasPriceTier{MaxFeePerGas: hexBig(30), MaxPriorityFeePerGas: hexBig(3)},
	}
}
