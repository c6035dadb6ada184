package service

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethaccount/walletcore/src/domain"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultSessionTTL  = 30 * time.Minute
	DefaultSessionSize = 10000
)

// Session is one signing flow. The bundler switcher lives here so retries
// across estimations never pick the same bundler twice.
type Session struct {
	ID       string
	ChainID  uint64
	Switcher *BundlerSwitcher

	committed atomic.Bool

	mu         sync.Mutex
	estimation *domain.FullEstimationSummary
}

// Commit marks that the user started signing. Bundlers are not switched
// after this point.
func (s *Session) Commit() {
	s.committed.Store(true)
}

func (s *Session) Committed() bool {
	return s.committed.Load()
}

// SetEstimation keeps the latest estimation for planning the broadcast
func (s *Session) SetEstimation(summary *domain.FullEstimationSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.estimation = summary
}

func (s *Session) Estimation() (*domain.FullEstimationSummary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.estimation, s.estimation != nil
}

// SessionStore keeps signing sessions in memory until they expire.
type SessionStore struct {
	sessions *expirable.LRU[string, *Session]
}

func NewSessionStore(size int, ttl time.Duration) *SessionStore {
	if size <= 0 {
		size = DefaultSessionSize
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{sessions: expirable.NewLRU[string, *Session](size, nil, ttl)}
}

// Open starts a session on network with its default bundler
func (st *SessionStore) Open(network *domain.Network) *Session {
	session := &Session{ID: uuid.NewString(), ChainID: network.ChainID}
	session.Switcher = NewBundlerSwitcher(network, session.Committed)
	st.sessions.Add(session.ID, session)
	return session
}

func (st *SessionStore) Get(id string) (*Session, error) {
	session, ok := st.sessions.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	return session, nil
}

// Resume returns the session id names, or a fresh one when id is empty. A
// session opened for another chain is an error.
func (st *SessionStore) Resume(id string, network *domain.Network) (*Session, error) {
	if id == "" {
		return st.Open(network), nil
	}
	session, err := st.Get(id)
	if err != nil {
		return nil, err
	}
	if session.ChainID != network.ChainID {
		return nil, fmt.Errorf("session %s belongs to chain %d", id, session.ChainID)
	}
	return session, nil
}

func (st *SessionStore) Commit(id string) error {
	session, err := st.Get(id)
	if err != nil {
		return err
	}
	session.Commit()
	return nil
}

func (st *SessionStore) Close(id string) {
	st.sessions.Remove(id)
}
