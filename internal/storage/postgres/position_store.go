package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"

	"dex-ledger/internal/domain"
	"dex-ledger/internal/storage"
)

// PositionStore implements storage.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *Pool
}

// NewPositionStore creates a new PositionStore.
func NewPositionStore(pool *Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PositionStore = (*PositionStore)(nil)

// Get retrieves the position for (user, token). Returns ErrNotFound if not exists.
func (s *PositionStore) Get(ctx context.Context, user, token common.Address) (*domain.Position, error) {
	query := `
		SELECT id, user_address, token_address,
			outstanding_quantity::text, weighted_average_cost_usd::text, consumed_quantity::text,
			realized_profit_usd::text, realized_loss_usd::text, realized_net_proceeds_usd::text,
			unrecognizable_quantity::text, sale_count, contract_attribution_disproven
		FROM positions
		WHERE user_address = $1 AND token_address = $2
	`

	row := s.pool.db(ctx).QueryRow(ctx, query, addrText(user), addrText(token))
	p, err := scanPosition(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get position: %w", err)
	}
	return p, nil
}

// Put inserts or replaces the position.
func (s *PositionStore) Put(ctx context.Context, p *domain.Position) error {
	if p == nil || p.ID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO positions (
			id, user_address, token_address,
			outstanding_quantity, weighted_average_cost_usd, consumed_quantity,
			realized_profit_usd, realized_loss_usd, realized_net_proceeds_usd,
			unrecognizable_quantity, sale_count, contract_attribution_disproven
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			outstanding_quantity = EXCLUDED.outstanding_quantity,
			weighted_average_cost_usd = EXCLUDED.weighted_average_cost_usd,
			consumed_quantity = EXCLUDED.consumed_quantity,
			realized_profit_usd = EXCLUDED.realized_profit_usd,
			realized_loss_usd = EXCLUDED.realized_loss_usd,
			realized_net_proceeds_usd = EXCLUDED.realized_net_proceeds_usd,
			unrecognizable_quantity = EXCLUDED.unrecognizable_quantity,
			sale_count = EXCLUDED.sale_count,
			contract_attribution_disproven = EXCLUDED.contract_attribution_disproven
	`

	_, err := s.pool.db(ctx).Exec(ctx, query,
		p.ID,
		addrText(p.User),
		addrText(p.Token),
		decText(p.OutstandingQuantity),
		decText(p.WeightedAverageCostUSD),
		decText(p.ConsumedQuantity),
		decText(p.RealizedProfitUSD),
		decText(p.RealizedLossUSD),
		decText(p.RealizedNetProceedsUSD),
		decText(p.UnrecognizableQuantity),
		p.SaleCount,
		p.ContractAttributionDisproven,
	)
	if err != nil {
		return fmt.Errorf("put position: %w", err)
	}
	return nil
}

func scanPosition(row pgx.Row) (*domain.Position, error) {
	var (
		p           domain.Position
		user, token string
		dec         decimalScanner
	)

	err := row.Scan(
		&p.ID,
		&user,
		&token,
		dec.col(&p.OutstandingQuantity),
		dec.col(&p.WeightedAverageCostUSD),
		dec.col(&p.ConsumedQuantity),
		dec.col(&p.RealizedProfitUSD),
		dec.col(&p.RealizedLossUSD),
		dec.col(&p.RealizedNetProceedsUSD),
		dec.col(&p.UnrecognizableQuantity),
		&p.SaleCount,
		&p.ContractAttributionDisproven,
	)
	if err != nil {
		return nil, err
	}
	if err := dec.parse(); err != nil {
		return nil, err
	}

	p.User = common.HexToAddress(user)
	p.Token = common.HexToAddress(token)
	return &p, nil
}
