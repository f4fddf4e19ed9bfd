package metadata

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"dex-ledger/internal/domain"
)

// Chain asks each source in order, field by field, and falls back to
// Unknown and zero.
type Chain struct {
	sources []Source
	cache   *cache.Cache
	log     logrus.FieldLogger
}

// NewChain creates a resolver. A ttl of zero caches results for the life of
// the process.
func NewChain(log logrus.FieldLogger, ttl time.Duration, sources ...Source) *Chain {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	return &Chain{
		sources: sources,
		cache:   cache.New(ttl, 10*time.Minute),
		log:     log,
	}
}

// Fetch resolves metadata for token. Unanswered fields take their sentinel
// values. A source that cannot be reached fails the whole lookup and nothing
// is cached, so a later call retries.
func (c *Chain) Fetch(ctx context.Context, token common.Address) (domain.TokenMetadata, error) {
	key := token.Hex()
	if v, ok := c.cache.Get(key); ok {
		return v.(domain.TokenMetadata), nil
	}

	md := domain.TokenMetadata{Symbol: Unknown, Name: Unknown, TotalSupply: decimal.Zero}
	log := c.log.WithField("token", key)

	symbol, src, ok, err := first(c.sources, func(s Source) (string, bool, error) { return s.Symbol(ctx, token) })
	if err != nil {
		return md, fmt.Errorf("token %s symbol: %w", key, err)
	}
	if ok {
		md.Symbol = symbol
		log = log.WithField("symbol_source", src)
	} else {
		log.Debug("symbol unavailable, using default")
	}

	name, _, ok, err := first(c.sources, func(s Source) (string, bool, error) { return s.TokenName(ctx, token) })
	if err != nil {
		return md, fmt.Errorf("token %s name: %w", key, err)
	}
	if ok {
		md.Name = name
	} else {
		log.Debug("name unavailable, using default")
	}

	decimals, _, ok, err := first(c.sources, func(s Source) (uint8, bool, error) { return s.Decimals(ctx, token) })
	if err != nil {
		return md, fmt.Errorf("token %s decimals: %w", key, err)
	}
	if ok {
		md.Decimals = decimals
	} else {
		log.Debug("decimals unavailable, using 0")
	}

	supply, _, ok, err := first(c.sources, func(s Source) (*big.Int, bool, error) { return s.TotalSupply(ctx, token) })
	if err != nil {
		return md, fmt.Errorf("token %s total supply: %w", key, err)
	}
	if ok && supply != nil {
		md.TotalSupply = decimal.NewFromBigInt(supply, 0)
	}

	c.cache.Set(key, md, cache.DefaultExpiration)
	return md, nil
}

// first returns the first answer in source order. It stops at the first
// unreachable source.
func first[T any](sources []Source, get func(Source) (T, bool, error)) (T, string, bool, error) {
	var zero T
	for _, s := range sources {
		v, ok, err := get(s)
		if err != nil {
			return zero, s.Name(), false, fmt.Errorf("%s: %w", s.Name(), err)
		}
		if ok {
			return v, s.Name(), true, nil
		}
	}
	return zero, "", false, nil
}
