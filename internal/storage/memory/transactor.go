package memory

import (
	"context"
	"sync"

	"dex-ledger/internal/storage"
)

// snapshotter is implemented by every memory store. Stored records are
// replaced on write, never mutated, so a shallow copy of the index is a
// complete snapshot.
type snapshotter interface {
	snapshot() (restore func())
}

// Transactor gives memory stores all-or-nothing units of work: each store is
// snapshotted before fn runs and restored if fn fails. Stores that are not
// memory-backed are written through without rollback.
type Transactor struct {
	mu     sync.Mutex
	stores []snapshotter
}

// NewTransactor covers every memory store in stores plus progress.
func NewTransactor(stores storage.Stores, progress storage.ProgressStore) *Transactor {
	candidates := []any{
		stores.Positions, stores.Users, stores.Pairs, stores.Tokens,
		stores.Factories, stores.Bundles, stores.Transactions, stores.SwapLegs,
		progress,
	}
	t := &Transactor{}
	for _, c := range candidates {
		if s, ok := c.(snapshotter); ok {
			t.stores = append(t.stores, s)
		}
	}
	return t
}

// WithinTx runs fn and rolls every covered store back when it fails.
func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	restores := make([]func(), len(t.stores))
	for i, s := range t.stores {
		restores[i] = s.snapshot()
	}
	if err := fn(ctx); err != nil {
		for _, restore := range restores {
			restore()
		}
		return err
	}
	return nil
}

var _ storage.Transactor = (*Transactor)(nil)
