package service

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethaccount/walletcore/erc4337"
	"github.com/ethaccount/walletcore/src/contracts"
	"github.com/ethaccount/walletcore/src/domain"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

// ProviderSource hands out the node client of a chain
type ProviderSource interface {
	GetProvider(ctx context.Context, chainID uint64) (Provider, error)
}

// BundlerSource hands out a bundler client of a network
type BundlerSource interface {
	GetBundlerClient(ctx context.Context, network *domain.Network, id domain.BundlerID) (erc4337.Bundler, error)
}

// BlockchainService pools node and bundler connections per chain.
type BlockchainService struct {
	networks    *NetworkRegistry
	clientPool  map[uint64]*ChainClient
	bundlerPool map[string]*erc4337.BundlerClient
	mu          sync.RWMutex
}

func NewBlockchainService(networks *NetworkRegistry) *BlockchainService {
	return &BlockchainService{
		networks:    networks,
		clientPool:  make(map[uint64]*ChainClient),
		bundlerPool: make(map[string]*erc4337.BundlerClient),
	}
}

// logger wraps the execution context with component info
func (b *BlockchainService) logger(ctx context.Context) *zerolog.Logger {
	l := zerolog.Ctx(ctx).With().Str("service", "blockchain").Logger()
	return &l
}

func (b *BlockchainService) GetClient(ctx context.Context, chainID uint64) (*ChainClient, error) {
	b.mu.RLock()
	if client, exists := b.clientPool[chainID]; exists {
		b.mu.RUnlock()
		return client, nil
	}
	b.mu.RUnlock()

	network, err := b.networks.Get(chainID)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	// Double-check pattern
	if client, exists := b.clientPool[chainID]; exists {
		return client, nil
	}

	client, err := DialChainClient(ctx, network.RPCURL)
	if err != nil {
		b.logger(ctx).Error().Err(err).
			Uint64("chain_id", chainID).
			Msg("failed to dial chain client")
		return nil, err
	}

	if b.clientPool == nil {
		b.clientPool = make(map[uint64]*ChainClient)
	}
	b.clientPool[chainID] = client

	return client, nil
}

func (b *BlockchainService) GetProvider(ctx context.Context, chainID uint64) (Provider, error) {
	client, err := b.GetClient(ctx, chainID)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// GetBundlerClient returns the pooled client of a configured bundler
func (b *BlockchainService) GetBundlerClient(ctx context.Context, network *domain.Network, id domain.BundlerID) (erc4337.Bundler, error) {
	cfg, ok := network.Bundler(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s on chain %d", domain.ErrUnknownBundler, id, network.ChainID)
	}

	b.mu.RLock()
	if client, exists := b.bundlerPool[cfg.URL]; exists {
		b.mu.RUnlock()
		return client, nil
	}
	b.mu.RUnlock()

	b.mu.Lock()
	defer b.mu.Unlock()

	if client, exists := b.bundlerPool[cfg.URL]; exists {
		return client, nil
	}

	b.logger(ctx).Debug().
		Uint64("chain_id", network.ChainID).
		Str("bundler", string(id)).
		Msg("creating bundler client")

	client, err := erc4337.DialContext(ctx, cfg.URL, cfg.GasPriceMethod)
	if err != nil {
		b.logger(ctx).Error().Err(err).
			Str("bundler", string(id)).
			Uint64("chain_id", network.ChainID).
			Msg("failed to create bundler client")
		return nil, fmt.Errorf("failed to create bundler client %s for chain %d: %w", id, network.ChainID, err)
	}

	if b.bundlerPool == nil {
		b.bundlerPool = make(map[string]*erc4337.BundlerClient)
	}
	b.bundlerPool[cfg.URL] = client

	return client, nil
}

// Close closes all client connections and cleans up the connection pools
func (b *BlockchainService) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, client := range b.clientPool {
		client.Close()
	}
	for _, client := range b.bundlerPool {
		client.Close()
	}
	b.clientPool = nil
	b.bundlerPool = nil
}

// EntryPointBalance reads the deposit an address holds in the entry point
func EntryPointBalance(ctx context.Context, provider Provider, entryPoint, holder common.Address) (*big.Int, error) {
	calldata, err := contracts.EncodeEntryPointBalanceOf(holder)
	if err != nil {
		return nil, err
	}
	result, err := provider.CallContract(ctx, ethereum.CallMsg{To: &entryPoint, Data: calldata}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call entry point balanceOf: %w", err)
	}
	return contracts.DecodeEntryPointBalance(result)
}
