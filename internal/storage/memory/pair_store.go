package memory

import (
	"bytes"
	"context"
	"maps"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"dex-ledger/internal/domain"
	"dex-ledger/internal/storage"
)

// PairStore is an in-memory implementation of storage.PairStore.
type PairStore struct {
	mu   sync.RWMutex
	data map[common.Address]*domain.Pair
}

// NewPairStore creates a new in-memory pair store.
func NewPairStore() *PairStore {
	return &PairStore{
		data: make(map[common.Address]*domain.Pair),
	}
}

// Get retrieves a pair by address. Returns ErrNotFound if not exists.
func (s *PairStore) Get(_ context.Context, addr common.Address) (*domain.Pair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.data[addr]
	if !exists {
		return nil, storage.ErrNotFound
	}

	pairCopy := *p
	return &pairCopy, nil
}

// Put inserts or replaces the pair.
func (s *PairStore) Put(_ context.Context, p *domain.Pair) error {
	if p == nil || p.Address == (common.Address{}) {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pairCopy := *p
	s.data[p.Address] = &pairCopy
	return nil
}

// All returns copies of every stored pair.
func (s *PairStore) All() []*domain.Pair {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Pair, 0, len(s.data))
	for _, p := range s.data {
		pairCopy := *p
		out = append(out, &pairCopy)
	}
	return out
}

// Addresses returns every stored pair address in ascending order.
func (s *PairStore) Addresses(_ context.Context) ([]common.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]common.Address, 0, len(s.data))
	for addr := range s.data {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i][:], out[j][:]) < 0 })
	return out, nil
}

var (
	_ storage.PairStore  = (*PairStore)(nil)
	_ storage.PairLister = (*PairStore)(nil)
)

func (s *PairStore) snapshot() func() {
	s.mu.RLock()
	saved := maps.Clone(s.data)
	s.mu.RUnlock()
	return func() {
		s.mu.Lock()
		s.data = saved
		s.mu.Unlock()
	}
}
