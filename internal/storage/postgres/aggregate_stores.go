package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"dex-ledger/internal/domain"
	"dex-ledger/internal/storage"
)

// FactoryStore implements storage.FactoryStore using PostgreSQL.
type FactoryStore struct {
	pool *Pool
}

// NewFactoryStore creates a new FactoryStore.
func NewFactoryStore(pool *Pool) *FactoryStore {
	return &FactoryStore{pool: pool}
}

// BundleStore implements storage.BundleStore using PostgreSQL.
type BundleStore struct {
	pool *Pool
}

// NewBundleStore creates a new BundleStore.
func NewBundleStore(pool *Pool) *BundleStore {
	return &BundleStore{pool: pool}
}

// Compile-time interface checks.
var (
	_ storage.FactoryStore = (*FactoryStore)(nil)
	_ storage.BundleStore  = (*BundleStore)(nil)
)

// Get retrieves the factory. Returns ErrNotFound if not exists.
func (s *FactoryStore) Get(ctx context.Context, addr common.Address) (*domain.Factory, error) {
	query := `
		SELECT pair_count, total_volume_usd::text, total_volume_eth::text, untracked_volume_usd::text,
			total_liquidity_usd::text, total_liquidity_eth::text, tx_count
		FROM factories
		WHERE address = $1
	`

	f := domain.Factory{Address: addr}
	var dec decimalScanner
	err := s.pool.db(ctx).QueryRow(ctx, query, addrText(addr)).Scan(
		&f.PairCount,
		dec.col(&f.TotalVolumeUSD),
		dec.col(&f.TotalVolumeETH),
		dec.col(&f.UntrackedVolumeUSD),
		dec.col(&f.TotalLiquidityUSD),
		dec.col(&f.TotalLiquidityETH),
		&f.TxCount,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get factory: %w", err)
	}
	if err := dec.parse(); err != nil {
		return nil, fmt.Errorf("get factory: %w", err)
	}
	return &f, nil
}

// Put inserts or replaces the factory.
func (s *FactoryStore) Put(ctx context.Context, f *domain.Factory) error {
	if f == nil {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO factories (
			address, pair_count, total_volume_usd, total_volume_eth, untracked_volume_usd,
			total_liquidity_usd, total_liquidity_eth, tx_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (address) DO UPDATE SET
			pair_count = EXCLUDED.pair_count,
			total_volume_usd = EXCLUDED.total_volume_usd,
			total_volume_eth = EXCLUDED.total_volume_eth,
			untracked_volume_usd = EXCLUDED.untracked_volume_usd,
			total_liquidity_usd = EXCLUDED.total_liquidity_usd,
			total_liquidity_eth = EXCLUDED.total_liquidity_eth,
			tx_count = EXCLUDED.tx_count
	`

	_, err := s.pool.db(ctx).Exec(ctx, query,
		addrText(f.Address),
		f.PairCount,
		decText(f.TotalVolumeUSD),
		decText(f.TotalVolumeETH),
		decText(f.UntrackedVolumeUSD),
		decText(f.TotalLiquidityUSD),
		decText(f.TotalLiquidityETH),
		f.TxCount,
	)
	if err != nil {
		return fmt.Errorf("put factory: %w", err)
	}
	return nil
}

// Get retrieves a bundle by ID. Returns ErrNotFound if not exists.
func (s *BundleStore) Get(ctx context.Context, id string) (*domain.Bundle, error) {
	b := domain.Bundle{ID: id}
	var dec decimalScanner

	err := s.pool.db(ctx).QueryRow(ctx, `SELECT eth_price_usd::text FROM bundles WHERE id = $1`, id).
		Scan(dec.col(&b.EthPriceUSD))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get bundle: %w", err)
	}
	if err := dec.parse(); err != nil {
		return nil, fmt.Errorf("get bundle: %w", err)
	}
	return &b, nil
}

// Put inserts or replaces the bundle.
func (s *BundleStore) Put(ctx context.Context, b *domain.Bundle) error {
	if b == nil || b.ID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO bundles (id, eth_price_usd) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET eth_price_usd = EXCLUDED.eth_price_usd
	`

	if _, err := s.pool.db(ctx).Exec(ctx, query, b.ID, decText(b.EthPriceUSD)); err != nil {
		return fmt.Errorf("put bundle: %w", err)
	}
	return nil
}
