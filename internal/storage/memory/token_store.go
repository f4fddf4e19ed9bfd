package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"dex-ledger/internal/domain"
	"dex-ledger/internal/storage"
)

// TokenStore is an in-memory implementation of storage.TokenStore.
type TokenStore struct {
	mu   sync.RWMutex
	data map[common.Address]*domain.Token
}

// NewTokenStore creates a new in-memory token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{
		data: make(map[common.Address]*domain.Token),
	}
}

// Get retrieves a token by address. Returns ErrNotFound if not exists.
func (s *TokenStore) Get(_ context.Context, addr common.Address) (*domain.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.data[addr]
	if !exists {
		return nil, storage.ErrNotFound
	}

	tokenCopy := *t
	return &tokenCopy, nil
}

// Put inserts or replaces the token.
func (s *TokenStore) Put(_ context.Context, t *domain.Token) error {
	if t == nil || t.Address == (common.Address{}) {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tokenCopy := *t
	s.data[t.Address] = &tokenCopy
	return nil
}

var _ storage.TokenStore = (*TokenStore)(nil)

func (s *TokenStore) snapshot() func() {
	s.mu.RLock()
	saved := maps.Clone(s.data)
	s.mu.RUnlock()
	return func() {
		s.mu.Lock()
		s.data = saved
		s.mu.Unlock()
	}
}
