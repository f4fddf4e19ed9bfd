// Package txchain loads and saves the per-transaction chain state shared by
// every swap and transfer of one transaction.
package txchain

import (
	"context"
	"errors"
	"fmt"

	"dex-ledger/internal/domain"
	"dex-ledger/internal/storage"
)

// Tracker wraps the transaction store.
type Tracker struct {
	store storage.TransactionStore
}

// NewTracker creates a tracker over store.
func NewTracker(store storage.TransactionStore) *Tracker {
	return &Tracker{store: store}
}

// Begin returns the stored state for the event's transaction, or a fresh one
// stamped with the event's block and timestamp. The result is not saved.
func (t *Tracker) Begin(ctx context.Context, meta domain.EventMeta) (*domain.Transaction, error) {
	tx, err := t.store.Get(ctx, meta.TxHash)
	if err == nil {
		return tx, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load transaction %s: %w", meta.TxHash.Hex(), err)
	}
	return &domain.Transaction{
		Hash:        meta.TxHash,
		BlockNumber: meta.BlockNumber,
		Timestamp:   meta.Timestamp,
		SwapIDs:     []string{},
	}, nil
}

// Save persists tx.
func (t *Tracker) Save(ctx context.Context, tx *domain.Transaction) error {
	if err := t.store.Put(ctx, tx); err != nil {
		return fmt.Errorf("save transaction %s: %w", tx.Hash.Hex(), err)
	}
	return nil
}
