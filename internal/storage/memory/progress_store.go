package memory

import (
	"context"
	"sync"

	"dex-ledger/internal/storage"
)

// ProgressStore is an in-memory implementation of storage.ProgressStore.
type ProgressStore struct {
	mu       sync.RWMutex
	progress *storage.Progress
}

// NewProgressStore creates a new in-memory progress store.
func NewProgressStore() *ProgressStore {
	return &ProgressStore{}
}

// GetLastProcessed returns the saved progress.
func (s *ProgressStore) GetLastProcessed(_ context.Context) (*storage.Progress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.progress == nil {
		return nil, storage.ErrNotFound
	}

	p := *s.progress
	return &p, nil
}

// SetLastProcessed saves progress.
func (s *ProgressStore) SetLastProcessed(_ context.Context, progress *storage.Progress) error {
	if progress == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := *progress
	s.progress = &p
	return nil
}

var _ storage.ProgressStore = (*ProgressStore)(nil)

func (s *ProgressStore) snapshot() func() {
	s.mu.RLock()
	saved := s.progress
	s.mu.RUnlock()
	return func() {
		s.mu.Lock()
		s.progress = saved
		s.mu.Unlock()
	}
}
