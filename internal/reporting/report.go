// Package reporting renders ledger state as Markdown and CSV.
package reporting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"dex-ledger/internal/domain"
	"dex-ledger/internal/processor"
	"dex-ledger/internal/storage"
)

// Report is the ledger state after a replay.
type Report struct {
	GeneratedAt time.Time `json:"generated_at"`

	// Replay scope
	Source    string          `json:"source"`
	FromBlock uint64          `json:"from_block"`
	ToBlock   uint64          `json:"to_block"`
	Events    int             `json:"events"`
	Stats     processor.Stats `json:"stats"`

	Factory   *domain.Factory    `json:"factory,omitempty"`
	Pairs     []*domain.Pair     `json:"pairs"`               // ascending by address
	Positions []*domain.Position `json:"positions,omitempty"` // one per traded token the user holds
}

// Builder collects records for a Report.
type Builder struct {
	stores  storage.Stores
	pairs   storage.PairLister
	factory common.Address
	clock   func() time.Time
}

// NewBuilder creates a report builder.
func NewBuilder(stores storage.Stores, pairs storage.PairLister, factory common.Address) *Builder {
	return &Builder{stores: stores, pairs: pairs, factory: factory, clock: time.Now}
}

// Build loads the factory, every pair and, when user is non-nil, the user's
// position in each token traded on those pairs.
func (b *Builder) Build(ctx context.Context, user *common.Address) (*Report, error) {
	r := &Report{GeneratedAt: b.clock().UTC()}

	factory, err := b.stores.Factories.Get(ctx, b.factory)
	switch {
	case err == nil:
		r.Factory = factory
	case !errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("load factory: %w", err)
	}

	addrs, err := b.pairs.Addresses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pairs: %w", err)
	}

	seen := make(map[common.Address]struct{})
	var tokens []common.Address
	for _, addr := range addrs {
		p, err := b.stores.Pairs.Get(ctx, addr)
		if err != nil {
			return nil, fmt.Errorf("load pair %s: %w", addr.Hex(), err)
		}
		r.Pairs = append(r.Pairs, p)
		for _, t := range []common.Address{p.Token0, p.Token1} {
			if _, ok := seen[t]; !ok {
				seen[t] = struct{}{}
				tokens = append(tokens, t)
			}
		}
	}

	if user == nil {
		return r, nil
	}
	for _, t := range tokens {
		pos, err := b.stores.Positions.Get(ctx, *user, t)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load position %s/%s: %w", user.Hex(), t.Hex(), err)
		}
		r.Positions = append(r.Positions, pos)
	}
	return r, nil
}
