// Package orchestrator assembles stores, pricing, metadata and the event
// processor from configuration.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"dex-ledger/internal/config"
	"dex-ledger/internal/identity"
	"dex-ledger/internal/metadata"
	"dex-ledger/internal/pricing"
	"dex-ledger/internal/processor"
	"dex-ledger/internal/storage"
	"dex-ledger/internal/storage/badgerkv"
	chstore "dex-ledger/internal/storage/clickhouse"
	"dex-ledger/internal/storage/memory"
	"dex-ledger/internal/storage/migrations"
	pgstore "dex-ledger/internal/storage/postgres"
)

// metadataTTL bounds how long resolved token metadata is reused.
const metadataTTL = time.Hour

// Orchestrator owns the assembled components and their connections.
type Orchestrator struct {
	Stores    storage.Stores
	Pairs     storage.PairLister
	Progress  storage.ProgressStore
	Processor *processor.Processor

	// Tx commits a follower window together with its checkpoint.
	Tx storage.Transactor
	// BlockTimes is nil unless a header cache path is configured.
	BlockTimes storage.BlockTimeStore

	log     logrus.FieldLogger
	closers []func() error
}

// Options for creating Orchestrator.
type Options struct {
	Config *config.Config

	// Caller enables on-chain metadata lookups. Nil uses configured
	// overrides only.
	Caller ethereum.ContractCaller

	Logger logrus.FieldLogger
}

// New opens the configured stores and wires the processor over them.
// Postgres and ClickHouse schemas are migrated on open.
func New(ctx context.Context, opts Options) (*Orchestrator, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("orchestrator: config is required")
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	o := &Orchestrator{log: log}
	if err := o.openStores(ctx, cfg); err != nil {
		o.Close()
		return nil, err
	}

	oracle, err := pricing.ParseStaticOracle(cfg.Pricing.EthPriceUSD, cfg.Pricing.DerivedETH)
	if err != nil {
		o.Close()
		return nil, err
	}

	o.Processor = processor.New(processor.Options{
		Stores:     o.Stores,
		Resolver:   identity.NewResolver(cfg.Intermediaries()),
		Oracle:     oracle,
		Classifier: pricing.NewWhitelist(cfg.Whitelist(), cfg.Untracked()),
		Metadata:   newMetadata(cfg, opts.Caller, log),
		Factory:    cfg.Factory(),
		Logger:     log.WithField("component", "processor"),
	})
	return o, nil
}

// Close releases every opened connection in reverse order.
func (o *Orchestrator) Close() error {
	var errs []error
	for i := len(o.closers) - 1; i >= 0; i-- {
		if err := o.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	o.closers = nil
	return errors.Join(errs...)
}

func (o *Orchestrator) openStores(ctx context.Context, cfg *config.Config) error {
	switch cfg.Storage.Backend {
	case "postgres":
		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return err
		}
		o.closers = append(o.closers, func() error { pool.Close(); return nil })

		applied, err := migrations.RunPostgresMigrations(ctx, pool)
		if err != nil {
			return fmt.Errorf("postgres migrations: %w", err)
		}
		o.log.WithField("files", applied).Info("postgres schema ready")

		o.Stores = pgstore.NewStores(pool)
		o.Progress = pgstore.NewProgressStore(pool, "follower")
		o.Tx = pool
	default:
		o.Stores = memory.NewStores()
		// state does not survive a restart, so neither may the checkpoint
		o.Progress = memory.NewProgressStore()
	}

	if cfg.Storage.HeaderCachePath != "" {
		times, err := badgerkv.Open(badgerkv.OpenOptions{Path: cfg.Storage.HeaderCachePath})
		if err != nil {
			return err
		}
		o.closers = append(o.closers, times.Close)
		o.BlockTimes = times
	}

	lister, ok := o.Stores.Pairs.(storage.PairLister)
	if !ok {
		return fmt.Errorf("pair store %T cannot list addresses", o.Stores.Pairs)
	}
	o.Pairs = lister

	if cfg.Storage.ClickhouseDSN != "" {
		conn, err := chstore.NewConn(ctx, cfg.Storage.ClickhouseDSN)
		if err != nil {
			return err
		}
		o.closers = append(o.closers, conn.Close)
		if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
			return fmt.Errorf("clickhouse migrations: %w", err)
		}
		o.Stores.SwapLegs = chstore.NewSwapLegStore(conn)
		o.log.Info("swap legs journaled to clickhouse")
	}

	if o.Tx == nil {
		// journaled legs are keyed by tx hash and index, so a rolled back
		// window rewrites the same rows
		o.Tx = memory.NewTransactor(o.Stores, o.Progress)
	}
	return nil
}

func newMetadata(cfg *config.Config, caller ethereum.ContractCaller, log logrus.FieldLogger) *metadata.Chain {
	overrides := make([]metadata.Override, 0, len(cfg.TokenOverrides))
	for _, t := range cfg.TokenOverrides {
		overrides = append(overrides, metadata.Override{
			Address:  common.HexToAddress(t.Address),
			Symbol:   t.Symbol,
			Name:     t.Name,
			Decimals: t.Decimals,
		})
	}

	sources := []metadata.Source{metadata.NewStatic(overrides)}
	if caller != nil {
		sources = append(sources, metadata.NewContractReader(caller, log.WithField("component", "metadata")))
	}
	return metadata.NewChain(log, metadataTTL, sources...)
}
