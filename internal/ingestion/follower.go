package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"dex-ledger/internal/observability"
	"dex-ledger/internal/replay"
	"dex-ledger/internal/storage"
)

// Follower applies block windows from the last checkpoint up to the
// confirmed chain head, then polls for new blocks.
type Follower struct {
	head          HeadReader
	source        replay.Source
	engine        replay.Engine
	progress      storage.ProgressStore
	tx            storage.Transactor
	startBlock    uint64
	batchBlocks   uint64
	confirmations uint64
	pollInterval  time.Duration
	clock         func() time.Time
	log           logrus.FieldLogger
}

// FollowerOptions contains configuration for creating a Follower.
type FollowerOptions struct {
	Head          HeadReader
	Source        replay.Source
	Engine        replay.Engine
	Progress      storage.ProgressStore
	Tx            storage.Transactor // scopes a window with its checkpoint, default storage.Direct
	StartBlock    uint64             // first block when no checkpoint exists
	BatchBlocks   uint64             // blocks per window, default 1000
	Confirmations uint64             // blocks behind head treated as final
	PollInterval  time.Duration      // default 12s
	Clock         func() time.Time
	Logger        logrus.FieldLogger
}

// NewFollower creates a new chain follower.
func NewFollower(opts FollowerOptions) *Follower {
	batch := opts.BatchBlocks
	if batch == 0 {
		batch = 1000
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = 12 * time.Second
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	var tx storage.Transactor = storage.Direct{}
	if opts.Tx != nil {
		tx = opts.Tx
	}

	return &Follower{
		head:          opts.Head,
		source:        opts.Source,
		engine:        opts.Engine,
		progress:      opts.Progress,
		tx:            tx,
		startBlock:    opts.StartBlock,
		batchBlocks:   batch,
		confirmations: opts.Confirmations,
		pollInterval:  poll,
		clock:         clock,
		log:           log,
	}
}

// SyncResult contains statistics from one catch-up pass.
type SyncResult struct {
	FromBlock uint64
	ToBlock   uint64
	Windows   int
	Events    int
	Duration  time.Duration
}

// SyncOnce applies every confirmed block after the checkpoint. Each window's
// writes and its checkpoint are committed in one transaction, so a failure
// leaves no partial window behind and a retry resumes at its start.
func (f *Follower) SyncOnce(ctx context.Context) (*SyncResult, error) {
	start := f.clock()

	next, err := f.nextBlock(ctx)
	if err != nil {
		return nil, err
	}

	head, err := f.head.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain head: %w", err)
	}
	observability.UpdateChainHead(head)

	result := &SyncResult{FromBlock: next}
	if head < f.confirmations || head-f.confirmations < next {
		result.Duration = f.clock().Sub(start)
		return result, nil
	}
	target := head - f.confirmations

	for from := next; from <= target; {
		to := from + f.batchBlocks - 1
		if to > target {
			to = target
		}

		n, err := f.applyWindow(ctx, from, to)
		if err != nil {
			return result, fmt.Errorf("window %d-%d: %w", from, to, err)
		}
		result.Events += n
		observability.RecordWindow(to, f.clock().Unix())

		f.log.WithFields(logrus.Fields{
			"from":   from,
			"to":     to,
			"events": n,
		}).Info("window applied")

		result.Windows++
		result.ToBlock = to
		from = to + 1
	}

	result.Duration = f.clock().Sub(start)
	return result, nil
}

// applyWindow fetches [from, to] and applies it with its checkpoint as one
// unit of work. Fetching happens outside the transaction.
func (f *Follower) applyWindow(ctx context.Context, from, to uint64) (int, error) {
	events, err := f.source.Fetch(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("fetch: %w", err)
	}
	replay.SortEvents(events)

	var applied int
	err = f.tx.WithinTx(ctx, func(ctx context.Context) error {
		n, err := replay.Apply(ctx, events, f.engine)
		if err != nil {
			return err
		}
		applied = n
		progress := &storage.Progress{Block: to, UpdatedAt: f.clock().UnixMilli()}
		if err := f.progress.SetLastProcessed(ctx, progress); err != nil {
			return fmt.Errorf("save checkpoint %d: %w", to, err)
		}
		return nil
	})
	return applied, err
}

// Run syncs until ctx is cancelled, sleeping for the poll interval whenever
// it is caught up. It returns the first sync error.
func (f *Follower) Run(ctx context.Context) error {
	for {
		result, err := f.SyncOnce(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if result.Windows > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(f.pollInterval):
		}
	}
}

func (f *Follower) nextBlock(ctx context.Context) (uint64, error) {
	p, err := f.progress.GetLastProcessed(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return f.startBlock, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load checkpoint: %w", err)
	}
	if p.Block+1 < f.startBlock {
		return f.startBlock, nil
	}
	return p.Block + 1, nil
}
