package storage

import "context"

// Progress is the last fully applied position in the log stream.
type Progress struct {
	Block     uint64 // last fully processed block
	UpdatedAt int64  // unix milliseconds
}

// ProgressStore persists indexing progress so restarts resume after the
// last applied block instead of replaying from scratch.
type ProgressStore interface {
	// GetLastProcessed returns the saved progress.
	// Returns ErrNotFound if no progress has been saved yet.
	GetLastProcessed(ctx context.Context) (*Progress, error)

	// SetLastProcessed saves progress.
	SetLastProcessed(ctx context.Context, p *Progress) error
}

// BlockTimeStore remembers the timestamps of confirmed blocks.
type BlockTimeStore interface {
	// GetBlockTime returns the unix timestamp of block number.
	// Returns ErrNotFound if the block is unknown.
	GetBlockTime(ctx context.Context, number uint64) (int64, error)

	// PutBlockTime saves the timestamp of block number.
	PutBlockTime(ctx context.Context, number uint64, timestamp int64) error
}
