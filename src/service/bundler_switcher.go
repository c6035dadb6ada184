package service

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/ethaccount/walletcore/src/domain"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/samber/lo"
)

// rpcInternalErrorCode is returned by bundlers for their own failures
const rpcInternalErrorCode = -32603

// BundlerSwitcher tracks the bundlers tried within one signing session. The
// tried set only grows, so a bundler is never picked twice.
type BundlerSwitcher struct {
	network   *domain.Network
	committed func() bool

	mu      sync.Mutex
	current domain.BundlerID
	used    []domain.BundlerID
}

// NewBundlerSwitcher starts on the network's default bundler. committed
// reports whether the user already started signing; it may be nil.
func NewBundlerSwitcher(network *domain.Network, committed func() bool) *BundlerSwitcher {
	s := &BundlerSwitcher{network: network, committed: committed}
	if ids := network.BundlerIDs(); len(ids) > 0 {
		s.current = ids[0]
		s.used = []domain.BundlerID{ids[0]}
	}
	return s
}

func (s *BundlerSwitcher) Network() *domain.Network {
	return s.network
}

func (s *BundlerSwitcher) Current() domain.BundlerID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *BundlerSwitcher) Used() []domain.BundlerID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.BundlerID{}, s.used...)
}

// CanSwitch reports whether err allows moving to an untried bundler
func (s *BundlerSwitcher) CanSwitch(err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.untried()) == 0 {
		return false
	}
	if s.committed != nil && s.committed() {
		return false
	}
	return IsBundlerInfraError(err)
}

// Switch moves to the first configured bundler not tried yet
func (s *BundlerSwitcher) Switch() (domain.BundlerID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	untried := s.untried()
	if len(untried) == 0 {
		return "", domain.ErrNoBundlerAvailable
	}
	s.current = untried[0]
	s.used = append(s.used, s.current)
	return s.current, nil
}

func (s *BundlerSwitcher) untried() []domain.BundlerID {
	ids := s.network.BundlerIDs()
	if len(ids) <= 1 {
		return nil
	}
	return lo.Without(ids, s.used...)
}

// IsBundlerInfraError classifies failures of the bundler service itself, as
// opposed to the user operation being rejected.
func IsBundlerInfraError(err error) bool {
	if err == nil {
		return false
	}
	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 500 || httpErr.StatusCode == 429
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr.ErrorCode() == rpcInternalErrorCode
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
