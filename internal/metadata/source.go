// Package metadata resolves ERC-20 display metadata through an ordered chain
// of sources: static overrides, live contract calls, then a sentinel default.
package metadata

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Unknown is the symbol and name used when no source answers.
const Unknown = "unknown"

// Source answers metadata lookups for a token. A false result means the
// source has no answer and the next source is asked. An error means the
// source could not be reached and the lookup must be retried later.
type Source interface {
	Name() string
	Symbol(ctx context.Context, token common.Address) (string, bool, error)
	TokenName(ctx context.Context, token common.Address) (string, bool, error)
	Decimals(ctx context.Context, token common.Address) (uint8, bool, error)
	TotalSupply(ctx context.Context, token common.Address) (*big.Int, bool, error)
}

// Override is a fixed definition for a token whose contract misreports.
type Override struct {
	Address  common.Address
	Symbol   string
	Name     string
	Decimals *uint8
}

// Static serves configured overrides.
type Static struct {
	entries map[common.Address]Override
}

// NewStatic indexes overrides by address.
func NewStatic(overrides []Override) *Static {
	m := make(map[common.Address]Override, len(overrides))
	for _, o := range overrides {
		m[o.Address] = o
	}
	return &Static{entries: m}
}

func (s *Static) Name() string { return "static" }

func (s *Static) Symbol(_ context.Context, token common.Address) (string, bool, error) {
	o, ok := s.entries[token]
	if !ok || o.Symbol == "" {
		return "", false, nil
	}
	return o.Symbol, true, nil
}

func (s *Static) TokenName(_ context.Context, token common.Address) (string, bool, error) {
	o, ok := s.entries[token]
	if !ok || o.Name == "" {
		return "", false, nil
	}
	return o.Name, true, nil
}

func (s *Static) Decimals(_ context.Context, token common.Address) (uint8, bool, error) {
	o, ok := s.entries[token]
	if !ok || o.Decimals == nil {
		return 0, false, nil
	}
	return *o.Decimals, true, nil
}

// TotalSupply is never overridden.
func (s *Static) TotalSupply(context.Context, common.Address) (*big.Int, bool, error) {
	return nil, false, nil
}

var _ Source = (*Static)(nil)
