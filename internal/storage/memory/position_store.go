package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"dex-ledger/internal/domain"
	"dex-ledger/internal/storage"
)

type positionKey struct {
	user  common.Address
	token common.Address
}

// PositionStore is an in-memory implementation of storage.PositionStore.
type PositionStore struct {
	mu   sync.RWMutex
	data map[positionKey]*domain.Position
}

// NewPositionStore creates a new in-memory position store.
func NewPositionStore() *PositionStore {
	return &PositionStore{
		data: make(map[positionKey]*domain.Position),
	}
}

// Get retrieves the position for (user, token). Returns ErrNotFound if not exists.
func (s *PositionStore) Get(_ context.Context, user, token common.Address) (*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.data[positionKey{user: user, token: token}]
	if !exists {
		return nil, storage.ErrNotFound
	}

	posCopy := *p
	return &posCopy, nil
}

// Put inserts or replaces the position.
func (s *PositionStore) Put(_ context.Context, p *domain.Position) error {
	if p == nil || p.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	posCopy := *p
	s.data[positionKey{user: p.User, token: p.Token}] = &posCopy
	return nil
}

// Len returns the number of stored positions.
func (s *PositionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// All returns copies of every stored position.
func (s *PositionStore) All() []*domain.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Position, 0, len(s.data))
	for _, p := range s.data {
		posCopy := *p
		out = append(out, &posCopy)
	}
	return out
}

var _ storage.PositionStore = (*PositionStore)(nil)

func (s *PositionStore) snapshot() func() {
	s.mu.RLock()
	saved := maps.Clone(s.data)
	s.mu.RUnlock()
	return func() {
		s.mu.Lock()
		s.data = saved
		s.mu.Unlock()
	}
}
