// Package processor routes replay events to the reserve tracker and the
// swap attributor, and bootstraps factory, bundle, token and pair records
// from factory events.
package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"dex-ledger/internal/attribution"
	"dex-ledger/internal/domain"
	"dex-ledger/internal/identity"
	"dex-ledger/internal/ledger"
	"dex-ledger/internal/observability"
	"dex-ledger/internal/pricing"
	"dex-ledger/internal/replay"
	"dex-ledger/internal/reserves"
	"dex-ledger/internal/storage"
)

// MetadataFetcher resolves token metadata. An error means the metadata
// could not be reached, not that the token lacks it.
type MetadataFetcher interface {
	Fetch(ctx context.Context, token common.Address) (domain.TokenMetadata, error)
}

// Options configures a Processor.
type Options struct {
	Stores     storage.Stores
	Resolver   *identity.Resolver
	Oracle     pricing.Oracle
	Classifier pricing.Classifier
	Metadata   MetadataFetcher
	Factory    common.Address
	Logger     logrus.FieldLogger
}

// Stats counts applied events by type.
type Stats struct {
	PairsCreated int
	Transfers    int
	Syncs        int
	Swaps        int
}

// Processor applies events one at a time. It is not safe for concurrent use;
// ordering is the caller's responsibility.
type Processor struct {
	stores   storage.Stores
	reserves *reserves.Tracker
	swaps    *attribution.Attributor
	metadata MetadataFetcher
	factory  common.Address
	log      logrus.FieldLogger
	stats    Stats
}

// New wires the tracker, ledger and attributor over opts.Stores.
func New(opts Options) *Processor {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Processor{
		stores: opts.Stores,
		reserves: reserves.NewTracker(reserves.Options{
			Stores:     opts.Stores,
			Oracle:     opts.Oracle,
			Classifier: opts.Classifier,
			Factory:    opts.Factory,
			Logger:     log.WithField("component", "reserves"),
		}),
		swaps: attribution.New(attribution.Options{
			Stores:     opts.Stores,
			Ledger:     ledger.New(opts.Stores.Positions, opts.Stores.Users, log.WithField("component", "ledger")),
			Resolver:   opts.Resolver,
			Classifier: opts.Classifier,
			Factory:    opts.Factory,
			Logger:     log.WithField("component", "attribution"),
		}),
		metadata: opts.Metadata,
		factory:  opts.Factory,
		log:      log,
	}
}

// Stats returns the counts applied so far.
func (p *Processor) Stats() Stats { return p.stats }

// OnEvent applies one event.
func (p *Processor) OnEvent(ctx context.Context, ev *replay.Event) error {
	start := time.Now()

	var err error
	switch ev.Type {
	case replay.EventTypePairCreated:
		err = p.handlePairCreated(ctx, ev.PairCreated)
		if err == nil {
			p.stats.PairsCreated++
			observability.RecordPairCreated()
		}
	case replay.EventTypeTransfer:
		err = p.reserves.HandleTransfer(ctx, ev.Transfer)
		if err == nil {
			p.stats.Transfers++
		}
	case replay.EventTypeSync:
		err = p.reserves.HandleSync(ctx, ev.Sync)
		if err == nil {
			p.stats.Syncs++
		}
	case replay.EventTypeSwap:
		var out *attribution.Outcome
		out, err = p.swaps.HandleSwap(ctx, ev.Swap)
		if err == nil {
			p.stats.Swaps++
			observability.RecordSwap(observability.SwapOutcome{
				SaleRecognized: out.Sale != nil,
				SaleSkipped:    out.SaleSkipped,
				ChainOpened:    out.ChainOpened,
				ChainClosed:    out.ChainClosed,
			})
		}
	default:
		err = fmt.Errorf("unsupported event type %q", ev.Type)
	}

	if err != nil {
		kind := "store"
		if errors.Is(err, storage.ErrMissingRecord) {
			kind = "missing_record"
			p.log.WithFields(logrus.Fields{
				"event": string(ev.Type),
				"block": ev.BlockNumber,
				"tx":    ev.TxHash.Hex(),
			}).WithError(err).Error("required record missing, halting")
		}
		observability.RecordEventError(string(ev.Type), kind)
		return err
	}

	observability.RecordEvent(string(ev.Type), time.Since(start).Seconds())
	return nil
}

// handlePairCreated registers a pair, creating the factory aggregate, the
// price bundle and either token on first sight.
func (p *Processor) handlePairCreated(ctx context.Context, ev *domain.PairCreated) error {
	// Metadata is resolved before any write so an unreachable node leaves
	// no partial bootstrap behind.
	tokens, err := p.newTokens(ctx, ev.Token0, ev.Token1)
	if err != nil {
		return err
	}

	factory, err := p.stores.Factories.Get(ctx, p.factory)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		factory = &domain.Factory{Address: p.factory}
		if err := p.stores.Bundles.Put(ctx, &domain.Bundle{ID: domain.BundleID}); err != nil {
			return fmt.Errorf("create bundle: %w", err)
		}
	case err != nil:
		return fmt.Errorf("load factory: %w", err)
	}
	factory.PairCount++
	if err := p.stores.Factories.Put(ctx, factory); err != nil {
		return fmt.Errorf("save factory: %w", err)
	}

	for _, token := range tokens {
		if err := p.stores.Tokens.Put(ctx, token); err != nil {
			return fmt.Errorf("create token %s: %w", token.Address.Hex(), err)
		}
	}

	pair := &domain.Pair{
		Address:            ev.Pair,
		Token0:             ev.Token0,
		Token1:             ev.Token1,
		CreatedAtTimestamp: ev.Meta.Timestamp,
		CreatedAtBlock:     ev.Meta.BlockNumber,
	}
	if err := p.stores.Pairs.Put(ctx, pair); err != nil {
		return fmt.Errorf("create pair %s: %w", ev.Pair.Hex(), err)
	}

	p.log.WithFields(logrus.Fields{
		"pair":   ev.Pair.Hex(),
		"token0": ev.Token0.Hex(),
		"token1": ev.Token1.Hex(),
		"block":  ev.Meta.BlockNumber,
	}).Info("pair created")
	return nil
}

// newTokens builds records for the addresses not yet stored.
func (p *Processor) newTokens(ctx context.Context, addrs ...common.Address) ([]*domain.Token, error) {
	var out []*domain.Token
	for _, addr := range addrs {
		_, err := p.stores.Tokens.Get(ctx, addr)
		if err == nil {
			continue
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("load token %s: %w", addr.Hex(), err)
		}

		md, err := p.metadata.Fetch(ctx, addr)
		if err != nil {
			return nil, fmt.Errorf("token metadata: %w", err)
		}
		out = append(out, &domain.Token{
			Address:     addr,
			Symbol:      md.Symbol,
			Name:        md.Name,
			Decimals:    md.Decimals,
			TotalSupply: md.TotalSupply,
		})
	}
	return out, nil
}

var _ replay.Engine = (*Processor)(nil)
