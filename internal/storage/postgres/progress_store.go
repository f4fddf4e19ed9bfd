package postgres

import (
	"context"
	"fmt"

	"dex-ledger/internal/storage"
)

// ProgressStore implements storage.ProgressStore in the ledger database, so
// a checkpoint commits atomically with the window it records.
type ProgressStore struct {
	pool *Pool
	name string
}

// NewProgressStore creates a checkpoint named name, typically one per
// follower.
func NewProgressStore(pool *Pool, name string) *ProgressStore {
	return &ProgressStore{pool: pool, name: name}
}

// Compile-time interface check.
var _ storage.ProgressStore = (*ProgressStore)(nil)

// GetLastProcessed returns the saved progress.
// Returns ErrNotFound if no progress has been saved yet.
func (s *ProgressStore) GetLastProcessed(ctx context.Context) (*storage.Progress, error) {
	query := `SELECT block, updated_at FROM checkpoints WHERE name = $1`

	var block, updatedAt int64
	err := s.pool.db(ctx).QueryRow(ctx, query, s.name).Scan(&block, &updatedAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get checkpoint: %w", err)
	}
	return &storage.Progress{Block: uint64(block), UpdatedAt: updatedAt}, nil
}

// SetLastProcessed saves progress.
func (s *ProgressStore) SetLastProcessed(ctx context.Context, p *storage.Progress) error {
	if p == nil {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO checkpoints (name, block, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET
			block = EXCLUDED.block,
			updated_at = EXCLUDED.updated_at
	`

	if _, err := s.pool.db(ctx).Exec(ctx, query, s.name, int64(p.Block), p.UpdatedAt); err != nil {
		return fmt.Errorf("set checkpoint: %w", err)
	}
	return nil
}
