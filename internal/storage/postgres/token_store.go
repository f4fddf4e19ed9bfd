package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"

	"dex-ledger/internal/domain"
	"dex-ledger/internal/storage"
)

// TokenStore implements storage.TokenStore using PostgreSQL.
type TokenStore struct {
	pool *Pool
}

// NewTokenStore creates a new TokenStore.
func NewTokenStore(pool *Pool) *TokenStore {
	return &TokenStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TokenStore = (*TokenStore)(nil)

// Get retrieves a token by address. Returns ErrNotFound if not exists.
func (s *TokenStore) Get(ctx context.Context, addr common.Address) (*domain.Token, error) {
	query := `
		SELECT address, symbol, name, decimals, total_supply::text,
			trade_volume::text, trade_volume_usd::text, untracked_volume_usd::text, tx_count,
			total_liquidity::text, derived_eth::text
		FROM tokens
		WHERE address = $1
	`

	t, err := scanToken(s.pool.db(ctx).QueryRow(ctx, query, addrText(addr)))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token: %w", err)
	}
	return t, nil
}

// Put inserts or replaces the token.
func (s *TokenStore) Put(ctx context.Context, t *domain.Token) error {
	if t == nil || t.Address == (common.Address{}) {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO tokens (
			address, symbol, name, decimals, total_supply,
			trade_volume, trade_volume_usd, untracked_volume_usd, tx_count,
			total_liquidity, derived_eth
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (address) DO UPDATE SET
			symbol = EXCLUDED.symbol,
			name = EXCLUDED.name,
			decimals = EXCLUDED.decimals,
			total_supply = EXCLUDED.total_supply,
			trade_volume = EXCLUDED.trade_volume,
			trade_volume_usd = EXCLUDED.trade_volume_usd,
			untracked_volume_usd = EXCLUDED.untracked_volume_usd,
			tx_count = EXCLUDED.tx_count,
			total_liquidity = EXCLUDED.total_liquidity,
			derived_eth = EXCLUDED.derived_eth
	`

	_, err := s.pool.db(ctx).Exec(ctx, query,
		addrText(t.Address),
		t.Symbol,
		t.Name,
		int16(t.Decimals),
		decText(t.TotalSupply),
		decText(t.TradeVolume),
		decText(t.TradeVolumeUSD),
		decText(t.UntrackedVolumeUSD),
		t.TxCount,
		decText(t.TotalLiquidity),
		decText(t.DerivedETH),
	)
	if err != nil {
		return fmt.Errorf("put token: %w", err)
	}
	return nil
}

func scanToken(row pgx.Row) (*domain.Token, error) {
	var (
		t        domain.Token
		address  string
		decimals int16
		dec      decimalScanner
	)

	err := row.Scan(
		&address,
		&t.Symbol,
		&t.Name,
		&decimals,
		dec.col(&t.TotalSupply),
		dec.col(&t.TradeVolume),
		dec.col(&t.TradeVolumeUSD),
		dec.col(&t.UntrackedVolumeUSD),
		&t.TxCount,
		dec.col(&t.TotalLiquidity),
		dec.col(&t.DerivedETH),
	)
	if err != nil {
		return nil, err
	}
	if err := dec.parse(); err != nil {
		return nil, err
	}

	t.Address = common.HexToAddress(address)
	t.Decimals = uint8(decimals)
	return &t, nil
}
