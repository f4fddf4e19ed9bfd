package replay

import (
	"context"
	"fmt"
)

// Source provides decoded events for an inclusive block range.
// Events may be unordered; the Runner enforces deterministic ordering.
type Source interface {
	Fetch(ctx context.Context, fromBlock, toBlock uint64) ([]*Event, error)
}

// Runner loads events from a source and replays them in deterministic order.
type Runner struct {
	source Source
}

// NewRunner creates a new replay runner.
func NewRunner(source Source) *Runner {
	return &Runner{source: source}
}

// Run loads events for [fromBlock, toBlock] and replays them through the
// engine. It returns the number of events applied.
func (r *Runner) Run(ctx context.Context, fromBlock, toBlock uint64, engine Engine) (int, error) {
	events, err := r.source.Fetch(ctx, fromBlock, toBlock)
	if err != nil {
		return 0, fmt.Errorf("fetch blocks %d-%d: %w", fromBlock, toBlock, err)
	}
	SortEvents(events)
	return Apply(ctx, events, engine)
}

// Apply replays already sorted events strictly in sequence and stops at the
// first failure. Duplicate or out-of-order events are rejected up front.
func Apply(ctx context.Context, events []*Event, engine Engine) (int, error) {
	if err := ValidateOrdering(events); err != nil {
		return 0, err
	}
	for i, event := range events {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if err := engine.OnEvent(ctx, event); err != nil {
			return i, fmt.Errorf("%s at block %d tx %s log %d: %w",
				event.Type, event.BlockNumber, event.TxHash.Hex(), event.LogIndex, err)
		}
	}
	return len(events), nil
}
