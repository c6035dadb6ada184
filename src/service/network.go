package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ethaccount/walletcore/src/domain"
	"github.com/rs/zerolog"
)

// NetworkStore loads the configured networks with their bundlers
type NetworkStore interface {
	ListNetworks(ctx context.Context) ([]domain.Network, error)
}

// NetworkRegistry keeps an in-memory snapshot of the configured networks.
type NetworkRegistry struct {
	store    NetworkStore
	networks map[uint64]*domain.Network
	mu       sync.RWMutex
}

func NewNetworkRegistry(store NetworkStore) *NetworkRegistry {
	return &NetworkRegistry{
		store:    store,
		networks: make(map[uint64]*domain.Network),
	}
}

// logger wraps the execution context with component info
func (r *NetworkRegistry) logger(ctx context.Context) *zerolog.Logger {
	l := zerolog.Ctx(ctx).With().Str("service", "network-registry").Logger()
	return &l
}

// Load replaces the snapshot with what the store currently holds
func (r *NetworkRegistry) Load(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	networks, err := r.store.ListNetworks(ctx)
	if err != nil {
		return fmt.Errorf("failed to list networks: %w", err)
	}

	snapshot := make(map[uint64]*domain.Network, len(networks))
	for i := range networks {
		n := networks[i]
		snapshot[n.ChainID] = &n
	}

	r.mu.Lock()
	r.networks = snapshot
	r.mu.Unlock()

	r.logger(ctx).Debug().Int("network_count", len(snapshot)).Msg("network snapshot loaded")
	return nil
}

// Set adds or replaces networks without touching the store
func (r *NetworkRegistry) Set(networks ...domain.Network) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range networks {
		n := networks[i]
		r.networks[n.ChainID] = &n
	}
}

func (r *NetworkRegistry) Get(chainID uint64) (*domain.Network, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.networks[chainID]
	if !ok {
		return nil, fmt.Errorf("%w: chain id %d", domain.ErrUnknownNetwork, chainID)
	}
	return n, nil
}

// List returns the networks ordered by chain id
func (r *NetworkRegistry) List() []*domain.Network {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Network, 0, len(r.networks))
	for _, n := range r.networks {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChainID < out[j].ChainID })
	return out
}
