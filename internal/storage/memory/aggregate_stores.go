package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"dex-ledger/internal/domain"
	"dex-ledger/internal/storage"
)

// FactoryStore is an in-memory implementation of storage.FactoryStore.
type FactoryStore struct {
	mu   sync.RWMutex
	data map[common.Address]*domain.Factory
}

// NewFactoryStore creates a new in-memory factory store.
func NewFactoryStore() *FactoryStore {
	return &FactoryStore{
		data: make(map[common.Address]*domain.Factory),
	}
}

// Get retrieves the factory. Returns ErrNotFound if not exists.
func (s *FactoryStore) Get(_ context.Context, addr common.Address) (*domain.Factory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, exists := s.data[addr]
	if !exists {
		return nil, storage.ErrNotFound
	}

	factoryCopy := *f
	return &factoryCopy, nil
}

// Put inserts or replaces the factory.
func (s *FactoryStore) Put(_ context.Context, f *domain.Factory) error {
	if f == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	factoryCopy := *f
	s.data[f.Address] = &factoryCopy
	return nil
}

// BundleStore is an in-memory implementation of storage.BundleStore.
type BundleStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Bundle
}

// NewBundleStore creates a new in-memory bundle store.
func NewBundleStore() *BundleStore {
	return &BundleStore{
		data: make(map[string]*domain.Bundle),
	}
}

// Get retrieves a bundle by ID. Returns ErrNotFound if not exists.
func (s *BundleStore) Get(_ context.Context, id string) (*domain.Bundle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}

	bundleCopy := *b
	return &bundleCopy, nil
}

// Put inserts or replaces the bundle.
func (s *BundleStore) Put(_ context.Context, b *domain.Bundle) error {
	if b == nil || b.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bundleCopy := *b
	s.data[b.ID] = &bundleCopy
	return nil
}

var (
	_ storage.FactoryStore = (*FactoryStore)(nil)
	_ storage.BundleStore  = (*BundleStore)(nil)
)

func (s *FactoryStore) snapshot() func() {
	s.mu.RLock()
	saved := maps.Clone(s.data)
	s.mu.RUnlock()
	return func() {
		s.mu.Lock()
		s.data = saved
		s.mu.Unlock()
	}
}

func (s *BundleStore) snapshot() func() {
	s.mu.RLock()
	saved := maps.Clone(s.data)
	s.mu.RUnlock()
	return func() {
		s.mu.Lock()
		s.data = saved
		s.mu.Unlock()
	}
}
