package service

import (
	"context"
	"math/big"
	"sync"
)

// FailedPaymasters remembers paymaster failures for the process lifetime.
// Writes are monotonic: a sponsorship is only ever marked failed, and the
// insufficient balance of a chain is only ever raised or cleared.
type FailedPaymasters interface {
	MarkSponsorshipFailed(ctx context.Context, id string) error
	HasFailedSponsorship(ctx context.Context, id string) (bool, error)
	MarkInsufficientFunds(ctx context.Context, chainID uint64, balance *big.Int) error
	// InsufficientFunds returns the last balance seen as insufficient on the chain
	InsufficientFunds(ctx context.Context, chainID uint64) (*big.Int, bool, error)
	ClearInsufficientFunds(ctx context.Context, chainID uint64) error
}

type MemoryFailedPaymasters struct {
	mu                   sync.RWMutex
	failedSponsorships   map[string]struct{}
	insufficientNetworks map[uint64]*big.Int
}

func NewMemoryFailedPaymasters() *MemoryFailedPaymasters {
	return &MemoryFailedPaymasters{
		failedSponsorships:   make(map[string]struct{}),
		insufficientNetworks: make(map[uint64]*big.Int),
	}
}

func (m *MemoryFailedPaymasters) MarkSponsorshipFailed(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failedSponsorships[id] = struct{}{}
	return nil
}

func (m *MemoryFailedPaymasters) HasFailedSponsorship(_ context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.failedSponsorships[id]
	return ok, nil
}

func (m *MemoryFailedPaymasters) MarkInsufficientFunds(_ context.Context, chainID uint64, balance *big.Int) error {
	if balance == nil {
		balance = new(big.Int)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.insufficientNetworks[chainID]; ok && prev.Cmp(balance) >= 0 {
		return nil
	}
	m.insufficientNetworks[chainID] = new(big.Int).Set(balance)
	return nil
}

func (m *MemoryFailedPaymasters) InsufficientFunds(_ context.Context, chainID uint64) (*big.Int, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	balance, ok := m.insufficientNetworks[chainID]
	if !ok {
		return nil, false, nil
	}
	return new(big.Int).Set(balance), true, nil
}

func (m *MemoryFailedPaymasters) ClearInsufficientFunds(_ context.Context, chainID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.insufficientNetworks, chainID)
	return nil
}
