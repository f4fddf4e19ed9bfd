package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"dex-ledger/internal/domain"
)

// MustPair loads a pair that must already exist.
func MustPair(ctx context.Context, s PairStore, addr common.Address) (*domain.Pair, error) {
	p, err := s.Get(ctx, addr)
	if err != nil {
		return nil, missing("pair", addr.Hex(), err)
	}
	return p, nil
}

// MustToken loads a token that must already exist.
func MustToken(ctx context.Context, s TokenStore, addr common.Address) (*domain.Token, error) {
	t, err := s.Get(ctx, addr)
	if err != nil {
		return nil, missing("token", addr.Hex(), err)
	}
	return t, nil
}

// MustFactory loads the factory aggregate, which must already exist.
func MustFactory(ctx context.Context, s FactoryStore, addr common.Address) (*domain.Factory, error) {
	f, err := s.Get(ctx, addr)
	if err != nil {
		return nil, missing("factory", addr.Hex(), err)
	}
	return f, nil
}

// MustBundle loads the price bundle, which must already exist.
func MustBundle(ctx context.Context, s BundleStore, id string) (*domain.Bundle, error) {
	b, err := s.Get(ctx, id)
	if err != nil {
		return nil, missing("bundle", id, err)
	}
	return b, nil
}

// EnsureUser creates the user record for addr if it does not exist.
func EnsureUser(ctx context.Context, users UserStore, addr common.Address) error {
	_, err := users.Get(ctx, addr)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("load user: %w", err)
	}
	if err := users.Put(ctx, &domain.User{Address: addr}); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func missing(kind, key string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: %s %s", ErrMissingRecord, kind, key)
	}
	return fmt.Errorf("load %s %s: %w", kind, key, err)
}
