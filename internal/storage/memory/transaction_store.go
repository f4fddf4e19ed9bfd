package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"dex-ledger/internal/domain"
	"dex-ledger/internal/storage"
)

// TransactionStore is an in-memory implementation of storage.TransactionStore.
type TransactionStore struct {
	mu   sync.RWMutex
	data map[common.Hash]*domain.Transaction
}

// NewTransactionStore creates a new in-memory transaction store.
func NewTransactionStore() *TransactionStore {
	return &TransactionStore{
		data: make(map[common.Hash]*domain.Transaction),
	}
}

// Get retrieves a transaction by hash. Returns ErrNotFound if not exists.
func (s *TransactionStore) Get(_ context.Context, hash common.Hash) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.data[hash]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return t.Clone(), nil
}

// Put inserts or replaces the transaction.
func (s *TransactionStore) Put(_ context.Context, t *domain.Transaction) error {
	if t == nil || t.Hash == (common.Hash{}) {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[t.Hash] = t.Clone()
	return nil
}

var _ storage.TransactionStore = (*TransactionStore)(nil)

func (s *TransactionStore) snapshot() func() {
	s.mu.RLock()
	saved := maps.Clone(s.data)
	s.mu.RUnlock()
	return func() {
		s.mu.Lock()
		s.data = saved
		s.mu.Unlock()
	}
}
