package storage

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"dex-ledger/internal/domain"
)

// PositionStore provides access to positions storage.
type PositionStore interface {
	// Get retrieves the position for (user, token). Returns ErrNotFound if not exists.
	Get(ctx context.Context, user, token common.Address) (*domain.Position, error)

	// Put inserts or replaces the position.
	Put(ctx context.Context, p *domain.Position) error
}

// UserStore provides access to users storage.
type UserStore interface {
	// Get retrieves a user. Returns ErrNotFound if not exists.
	Get(ctx context.Context, addr common.Address) (*domain.User, error)

	// Put inserts or replaces the user.
	Put(ctx context.Context, u *domain.User) error
}

// PairStore provides access to pairs storage.
type PairStore interface {
	// Get retrieves a pair by contract address. Returns ErrNotFound if not exists.
	Get(ctx context.Context, addr common.Address) (*domain.Pair, error)

	// Put inserts or replaces the pair.
	Put(ctx context.Context, p *domain.Pair) error
}

// PairLister enumerates known pair addresses. Ingestion uses it to seed the
// set of contracts whose logs are fetched after a restart.
type PairLister interface {
	// Addresses returns every stored pair address in ascending order.
	Addresses(ctx context.Context) ([]common.Address, error)
}

// TokenStore provides access to tokens storage.
type TokenStore interface {
	// Get retrieves a token by contract address. Returns ErrNotFound if not exists.
	Get(ctx context.Context, addr common.Address) (*domain.Token, error)

	// Put inserts or replaces the token.
	Put(ctx context.Context, t *domain.Token) error
}

// FactoryStore provides access to the factory aggregate.
type FactoryStore interface {
	// Get retrieves the factory. Returns ErrNotFound if not exists.
	Get(ctx context.Context, addr common.Address) (*domain.Factory, error)

	// Put inserts or replaces the factory.
	Put(ctx context.Context, f *domain.Factory) error
}

// BundleStore provides access to the price bundle.
type BundleStore interface {
	// Get retrieves a bundle by ID. Returns ErrNotFound if not exists.
	Get(ctx context.Context, id string) (*domain.Bundle, error)

	// Put inserts or replaces the bundle.
	Put(ctx context.Context, b *domain.Bundle) error
}

// TransactionStore provides access to transaction chain state.
type TransactionStore interface {
	// Get retrieves a transaction by hash. Returns ErrNotFound if not exists.
	Get(ctx context.Context, hash common.Hash) (*domain.Transaction, error)

	// Put inserts or replaces the transaction.
	Put(ctx context.Context, t *domain.Transaction) error
}

// SwapLegStore provides access to swap_legs storage.
type SwapLegStore interface {
	// Get retrieves a leg by ID. Returns ErrNotFound if not exists.
	Get(ctx context.Context, id string) (*domain.SwapLeg, error)

	// Put inserts or replaces the leg.
	Put(ctx context.Context, l *domain.SwapLeg) error

	// GetByTransaction retrieves all legs of a transaction ordered by log index.
	GetByTransaction(ctx context.Context, hash common.Hash) ([]*domain.SwapLeg, error)
}

// Stores bundles every record store the processor writes to.
type Stores struct {
	Positions    PositionStore
	Users        UserStore
	Pairs        PairStore
	Tokens       TokenStore
	Factories    FactoryStore
	Bundles      BundleStore
	Transactions TransactionStore
	SwapLegs     SwapLegStore
}
