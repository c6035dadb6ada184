package service

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/ethclient/gethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// Provider is the node surface the estimation core needs
type Provider interface {
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	CallContractWithOverride(ctx context.Context, msg ethereum.CallMsg, overrides map[common.Address]gethclient.OverrideAccount) ([]byte, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
}

// ChainClient serves the standard eth namespace and geth's state override
// extension over one connection.
type ChainClient struct {
	*ethclient.Client
	geth *gethclient.Client
	rpc  *rpc.Client
}

func NewChainClient(c *rpc.Client) *ChainClient {
	return &ChainClient{
		Client: ethclient.NewClient(c),
		geth:   gethclient.New(c),
		rpc:    c,
	}
}

func DialChainClient(ctx context.Context, url string) (*ChainClient, error) {
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rpc %s: %w", url, err)
	}
	return NewChainClient(c), nil
}

// CallContractWithOverride executes an eth_call at the latest block with the given state overrides
func (c *ChainClient) CallContractWithOverride(ctx context.Context, msg ethereum.CallMsg, overrides map[common.Address]gethclient.OverrideAccount) ([]byte, error) {
	return c.geth.CallContract(ctx, msg, nil, &overrides)
}

func (c *ChainClient) Close() {
	c.rpc.Close()
}
