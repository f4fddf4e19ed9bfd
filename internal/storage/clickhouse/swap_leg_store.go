package clickhouse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"dex-ledger/internal/domain"
	"dex-ledger/internal/storage"
)

// journalScale is the scale of the Decimal(76, 18) amount columns.
const journalScale = 18

// SwapLegStore implements storage.SwapLegStore as a ClickHouse journal.
// Rows are versioned so a re-written leg replaces the earlier row on merge;
// reads use FINAL.
type SwapLegStore struct {
	conn  *Conn
	clock func() time.Time
}

// NewSwapLegStore creates a new SwapLegStore.
func NewSwapLegStore(conn *Conn) *SwapLegStore {
	return &SwapLegStore{conn: conn, clock: time.Now}
}

// Compile-time interface check.
var _ storage.SwapLegStore = (*SwapLegStore)(nil)

// Put appends a new version of the leg.
func (s *SwapLegStore) Put(ctx context.Context, l *domain.SwapLeg) error {
	if l == nil || l.ID == "" {
		return storage.ErrInvalidInput
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO swap_legs (
			id, tx_hash, log_index, block_number, timestamp, pair, sender, from_address, to_address, destination,
			amount0_in, amount1_in, amount0_out, amount1_out, amount_usd,
			router_swap, accounted, cost_basis_ref, version
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
		l.ID,
		lower(l.Transaction.Hex()),
		uint32(l.LogIndex),
		l.BlockNumber,
		time.Unix(l.Timestamp, 0).UTC(),
		lower(l.Pair.Hex()),
		lower(l.Sender.Hex()),
		lower(l.From.Hex()),
		lower(l.To.Hex()),
		lower(l.Destination.Hex()),
		l.Amount0In.Round(journalScale),
		l.Amount1In.Round(journalScale),
		l.Amount0Out.Round(journalScale),
		l.Amount1Out.Round(journalScale),
		l.AmountUSD.Round(journalScale),
		l.RouterSwap,
		l.Accounted,
		l.CostBasisRef,
		uint64(s.clock().UnixNano()),
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// Get retrieves the latest version of a leg. Returns ErrNotFound if not exists.
func (s *SwapLegStore) Get(ctx context.Context, id string) (*domain.SwapLeg, error) {
	legs, err := s.query(ctx, `WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(legs) == 0 {
		return nil, storage.ErrNotFound
	}
	return legs[0], nil
}

// GetByTransaction retrieves all legs of a transaction ordered by log index.
func (s *SwapLegStore) GetByTransaction(ctx context.Context, hash common.Hash) ([]*domain.SwapLeg, error) {
	return s.query(ctx, `WHERE tx_hash = ? ORDER BY log_index ASC`, lower(hash.Hex()))
}

func (s *SwapLegStore) query(ctx context.Context, where string, arg any) ([]*domain.SwapLeg, error) {
	query := `
		SELECT id, tx_hash, log_index, block_number, timestamp, pair, sender, from_address, to_address, destination,
			amount0_in, amount1_in, amount0_out, amount1_out, amount_usd,
			router_swap, accounted, cost_basis_ref
		FROM swap_legs FINAL
	` + where

	rows, err := s.conn.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query swap legs: %w", err)
	}
	defer rows.Close()

	var legs []*domain.SwapLeg
	for rows.Next() {
		var (
			l                                    domain.SwapLeg
			txHash, pair, sender, from, to, dest string
			logIndex                             uint32
			ts                                   time.Time
			a0In, a1In, a0Out, a1Out, usd        decimal.Decimal
		)
		if err := rows.Scan(
			&l.ID, &txHash, &logIndex, &l.BlockNumber, &ts, &pair, &sender, &from, &to, &dest,
			&a0In, &a1In, &a0Out, &a1Out, &usd,
			&l.RouterSwap, &l.Accounted, &l.CostBasisRef,
		); err != nil {
			return nil, fmt.Errorf("scan swap leg: %w", err)
		}

		l.Transaction = common.HexToHash(txHash)
		l.LogIndex = uint(logIndex)
		l.Timestamp = ts.Unix()
		l.Pair = common.HexToAddress(pair)
		l.Sender = common.HexToAddress(sender)
		l.From = common.HexToAddress(from)
		l.To = common.HexToAddress(to)
		l.Destination = common.HexToAddress(dest)
		l.Amount0In, l.Amount1In, l.Amount0Out, l.Amount1Out, l.AmountUSD = a0In, a1In, a0Out, a1Out, usd
		legs = append(legs, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate swap legs: %w", err)
	}
	return legs, nil
}

func lower(s string) string {
	return strings.ToLower(s)
}
