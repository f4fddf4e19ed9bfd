package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"

	"dex-ledger/internal/domain"
	"dex-ledger/internal/storage"
)

// PairStore implements storage.PairStore using PostgreSQL.
type PairStore struct {
	pool *Pool
}

// NewPairStore creates a new PairStore.
func NewPairStore(pool *Pool) *PairStore {
	return &PairStore{pool: pool}
}

// Compile-time interface check.
var (
	_ storage.PairStore  = (*PairStore)(nil)
	_ storage.PairLister = (*PairStore)(nil)
)

// Get retrieves a pair by address. Returns ErrNotFound if not exists.
func (s *PairStore) Get(ctx context.Context, addr common.Address) (*domain.Pair, error) {
	query := `
		SELECT address, token0, token1,
			reserve0::text, reserve1::text, total_supply::text,
			reserve_eth::text, reserve_usd::text, tracked_reserve_eth::text,
			token0_price::text, token1_price::text,
			volume_token0::text, volume_token1::text, volume_usd::text, untracked_volume_usd::text,
			tx_count, created_at_timestamp, created_at_block
		FROM pairs
		WHERE address = $1
	`

	p, err := scanPair(s.pool.db(ctx).QueryRow(ctx, query, addrText(addr)))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get pair: %w", err)
	}
	return p, nil
}

// Put inserts or replaces the pair.
func (s *PairStore) Put(ctx context.Context, p *domain.Pair) error {
	if p == nil || p.Address == (common.Address{}) {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO pairs (
			address, token0, token1,
			reserve0, reserve1, total_supply,
			reserve_eth, reserve_usd, tracked_reserve_eth,
			token0_price, token1_price,
			volume_token0, volume_token1, volume_usd, untracked_volume_usd,
			tx_count, created_at_timestamp, created_at_block
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (address) DO UPDATE SET
			reserve0 = EXCLUDED.reserve0,
			reserve1 = EXCLUDED.reserve1,
			total_supply = EXCLUDED.total_supply,
			reserve_eth = EXCLUDED.reserve_eth,
			reserve_usd = EXCLUDED.reserve_usd,
			tracked_reserve_eth = EXCLUDED.tracked_reserve_eth,
			token0_price = EXCLUDED.token0_price,
			token1_price = EXCLUDED.token1_price,
			volume_token0 = EXCLUDED.volume_token0,
			volume_token1 = EXCLUDED.volume_token1,
			volume_usd = EXCLUDED.volume_usd,
			untracked_volume_usd = EXCLUDED.untracked_volume_usd,
			tx_count = EXCLUDED.tx_count
	`

	_, err := s.pool.db(ctx).Exec(ctx, query,
		addrText(p.Address),
		addrText(p.Token0),
		addrText(p.Token1),
		decText(p.Reserve0),
		decText(p.Reserve1),
		decText(p.TotalSupply),
		decText(p.ReserveETH),
		decText(p.ReserveUSD),
		decText(p.TrackedReserveETH),
		decText(p.Token0Price),
		decText(p.Token1Price),
		decText(p.VolumeToken0),
		decText(p.VolumeToken1),
		decText(p.VolumeUSD),
		decText(p.UntrackedVolumeUSD),
		p.TxCount,
		p.CreatedAtTimestamp,
		int64(p.CreatedAtBlock),
	)
	if err != nil {
		return fmt.Errorf("put pair: %w", err)
	}
	return nil
}

func scanPair(row pgx.Row) (*domain.Pair, error) {
	var (
		p                       domain.Pair
		address, token0, token1 string
		createdAtBlock          int64
		dec                     decimalScanner
	)

	err := row.Scan(
		&address,
		&token0,
		&token1,
		dec.col(&p.Reserve0),
		dec.col(&p.Reserve1),
		dec.col(&p.TotalSupply),
		dec.col(&p.ReserveETH),
		dec.col(&p.ReserveUSD),
		dec.col(&p.TrackedReserveETH),
		dec.col(&p.Token0Price),
		dec.col(&p.Token1Price),
		dec.col(&p.VolumeToken0),
		dec.col(&p.VolumeToken1),
		dec.col(&p.VolumeUSD),
		dec.col(&p.UntrackedVolumeUSD),
		&p.TxCount,
		&p.CreatedAtTimestamp,
		&createdAtBlock,
	)
	if err != nil {
		return nil, err
	}
	if err := dec.parse(); err != nil {
		return nil, err
	}

	p.Address = common.HexToAddress(address)
	p.Token0 = common.HexToAddress(token0)
	p.Token1 = common.HexToAddress(token1)
	p.CreatedAtBlock = uint64(createdAtBlock)
	return &p, nil
}

// Addresses returns every stored pair address in ascending order.
func (s *PairStore) Addresses(ctx context.Context) ([]common.Address, error) {
	rows, err := s.pool.db(ctx).Query(ctx, `SELECT address FROM pairs ORDER BY address`)
	if err != nil {
		return nil, fmt.Errorf("list pairs: %w", err)
	}
	defer rows.Close()

	var out []common.Address
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, fmt.Errorf("scan pair address: %w", err)
		}
		out = append(out, common.HexToAddress(addr))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pairs: %w", err)
	}
	return out, nil
}
