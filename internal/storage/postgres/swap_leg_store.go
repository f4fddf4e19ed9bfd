package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"

	"dex-ledger/internal/domain"
	"dex-ledger/internal/storage"
)

// SwapLegStore implements storage.SwapLegStore using PostgreSQL.
type SwapLegStore struct {
	pool *Pool
}

// NewSwapLegStore creates a new SwapLegStore.
func NewSwapLegStore(pool *Pool) *SwapLegStore {
	return &SwapLegStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SwapLegStore = (*SwapLegStore)(nil)

const swapLegColumns = `
	id, tx_hash, log_index, block_number, timestamp, pair, sender, from_address, to_address, destination,
	amount0_in::text, amount1_in::text, amount0_out::text, amount1_out::text, amount_usd::text,
	router_swap, accounted, cost_basis_ref
`

// Get retrieves a leg by ID. Returns ErrNotFound if not exists.
func (s *SwapLegStore) Get(ctx context.Context, id string) (*domain.SwapLeg, error) {
	query := `SELECT ` + swapLegColumns + ` FROM swap_legs WHERE id = $1`

	l, err := scanSwapLeg(s.pool.db(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get swap leg: %w", err)
	}
	return l, nil
}

// GetByTransaction retrieves all legs of a transaction ordered by log index.
func (s *SwapLegStore) GetByTransaction(ctx context.Context, hash common.Hash) ([]*domain.SwapLeg, error) {
	query := `SELECT ` + swapLegColumns + ` FROM swap_legs WHERE tx_hash = $1 ORDER BY log_index ASC`

	rows, err := s.pool.db(ctx).Query(ctx, query, hashText(hash))
	if err != nil {
		return nil, fmt.Errorf("query swap legs: %w", err)
	}
	defer rows.Close()

	var legs []*domain.SwapLeg
	for rows.Next() {
		l, err := scanSwapLeg(rows)
		if err != nil {
			return nil, fmt.Errorf("scan swap leg: %w", err)
		}
		legs = append(legs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate swap legs: %w", err)
	}
	return legs, nil
}

// Put inserts or replaces the leg.
func (s *SwapLegStore) Put(ctx context.Context, l *domain.SwapLeg) error {
	if l == nil || l.ID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO swap_legs (
			id, tx_hash, log_index, block_number, timestamp, pair, sender, from_address, to_address, destination,
			amount0_in, amount1_in, amount0_out, amount1_out, amount_usd,
			router_swap, accounted, cost_basis_ref
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (id) DO UPDATE SET
			accounted = EXCLUDED.accounted,
			cost_basis_ref = EXCLUDED.cost_basis_ref
	`

	var costBasisRef *string
	if l.CostBasisRef != "" {
		costBasisRef = &l.CostBasisRef
	}

	_, err := s.pool.db(ctx).Exec(ctx, query,
		l.ID,
		hashText(l.Transaction),
		int64(l.LogIndex),
		int64(l.BlockNumber),
		l.Timestamp,
		addrText(l.Pair),
		addrText(l.Sender),
		addrText(l.From),
		addrText(l.To),
		addrText(l.Destination),
		decText(l.Amount0In),
		decText(l.Amount1In),
		decText(l.Amount0Out),
		decText(l.Amount1Out),
		decText(l.AmountUSD),
		l.RouterSwap,
		l.Accounted,
		costBasisRef,
	)
	if err != nil {
		return fmt.Errorf("put swap leg: %w", err)
	}
	return nil
}

func scanSwapLeg(row pgx.Row) (*domain.SwapLeg, error) {
	var (
		l                                    domain.SwapLeg
		txHash, pair, sender, from, to, dest string
		logIndex, block                      int64
		costBasisRef                         *string
		dec                                  decimalScanner
	)

	err := row.Scan(
		&l.ID,
		&txHash,
		&logIndex,
		&block,
		&l.Timestamp,
		&pair,
		&sender,
		&from,
		&to,
		&dest,
		dec.col(&l.Amount0In),
		dec.col(&l.Amount1In),
		dec.col(&l.Amount0Out),
		dec.col(&l.Amount1Out),
		dec.col(&l.AmountUSD),
		&l.RouterSwap,
		&l.Accounted,
		&costBasisRef,
	)
	if err != nil {
		return nil, err
	}
	if err := dec.parse(); err != nil {
		return nil, err
	}

	l.Transaction = common.HexToHash(txHash)
	l.LogIndex = uint(logIndex)
	l.BlockNumber = uint64(block)
	l.Pair = common.HexToAddress(pair)
	l.Sender = common.HexToAddress(sender)
	l.From = common.HexToAddress(from)
	l.To = common.HexToAddress(to)
	l.Destination = common.HexToAddress(dest)
	if costBasisRef != nil {
		l.CostBasisRef = *costBasisRef
	}
	return &l, nil
}
