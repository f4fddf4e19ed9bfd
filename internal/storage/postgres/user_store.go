package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"dex-ledger/internal/domain"
	"dex-ledger/internal/storage"
)

// UserStore implements storage.UserStore using PostgreSQL.
type UserStore struct {
	pool *Pool
}

// NewUserStore creates a new UserStore.
func NewUserStore(pool *Pool) *UserStore {
	return &UserStore{pool: pool}
}

// Compile-time interface check.
var _ storage.UserStore = (*UserStore)(nil)

// Get retrieves a user. Returns ErrNotFound if not exists.
func (s *UserStore) Get(ctx context.Context, addr common.Address) (*domain.User, error) {
	query := `SELECT address, usd_swapped::text FROM users WHERE address = $1`

	var (
		u       domain.User
		address string
		dec     decimalScanner
	)
	err := s.pool.db(ctx).QueryRow(ctx, query, addrText(addr)).Scan(&address, dec.col(&u.USDSwapped))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if err := dec.parse(); err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	u.Address = common.HexToAddress(address)
	return &u, nil
}

// Put inserts or replaces the user.
func (s *UserStore) Put(ctx context.Context, u *domain.User) error {
	if u == nil {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO users (address, usd_swapped) VALUES ($1, $2)
		ON CONFLICT (address) DO UPDATE SET usd_swapped = EXCLUDED.usd_swapped
	`

	if _, err := s.pool.db(ctx).Exec(ctx, query, addrText(u.Address), decText(u.USDSwapped)); err != nil {
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}
