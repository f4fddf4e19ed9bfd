package memory

import (
	"context"
	"maps"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"dex-ledger/internal/domain"
	"dex-ledger/internal/storage"
)

// SwapLegStore is an in-memory implementation of storage.SwapLegStore.
type SwapLegStore struct {
	mu   sync.RWMutex
	data map[string]*domain.SwapLeg
	byTx map[common.Hash][]string
}

// NewSwapLegStore creates a new in-memory swap leg store.
func NewSwapLegStore() *SwapLegStore {
	return &SwapLegStore{
		data: make(map[string]*domain.SwapLeg),
		byTx: make(map[common.Hash][]string),
	}
}

// Get retrieves a leg by ID. Returns ErrNotFound if not exists.
func (s *SwapLegStore) Get(_ context.Context, id string) (*domain.SwapLeg, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}

	legCopy := *l
	return &legCopy, nil
}

// Put inserts or replaces the leg.
func (s *SwapLegStore) Put(_ context.Context, l *domain.SwapLeg) error {
	if l == nil || l.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[l.ID]; !exists {
		s.byTx[l.Transaction] = append(s.byTx[l.Transaction], l.ID)
	}
	legCopy := *l
	s.data[l.ID] = &legCopy
	return nil
}

// GetByTransaction retrieves all legs of a transaction ordered by log index.
func (s *SwapLegStore) GetByTransaction(_ context.Context, hash common.Hash) ([]*domain.SwapLeg, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byTx[hash]
	out := make([]*domain.SwapLeg, 0, len(ids))
	for _, id := range ids {
		legCopy := *s.data[id]
		out = append(out, &legCopy)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].LogIndex < out[j].LogIndex
	})
	return out, nil
}

var _ storage.SwapLegStore = (*SwapLegStore)(nil)

func (s *SwapLegStore) snapshot() func() {
	s.mu.RLock()
	data, byTx := maps.Clone(s.data), maps.Clone(s.byTx)
	s.mu.RUnlock()
	return func() {
		s.mu.Lock()
		s.data, s.byTx = data, byTx
		s.mu.Unlock()
	}
}
