// Package pricing supplies reference prices and the tracked-value classifier
// consumed by reserve and swap processing.
package pricing

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"dex-ledger/internal/domain"
	"dex-ledger/internal/units"
)

// Oracle provides the global reference price and per-token ETH prices.
type Oracle interface {
	// EthPriceUSD returns the current ETH price in USD.
	EthPriceUSD(ctx context.Context) (decimal.Decimal, error)

	// DerivedETH returns the price of token in ETH, zero when unknown.
	DerivedETH(ctx context.Context, token common.Address) (decimal.Decimal, error)
}

// Classifier decides how much of a trade or of a pair's liquidity counts
// toward tracked USD totals.
type Classifier interface {
	TrackedVolumeUSD(pair common.Address, amount0 decimal.Decimal, token0 *domain.Token,
		amount1 decimal.Decimal, token1 *domain.Token, ethPrice decimal.Decimal) decimal.Decimal

	TrackedLiquidityUSD(amount0 decimal.Decimal, token0 *domain.Token,
		amount1 decimal.Decimal, token1 *domain.Token, ethPrice decimal.Decimal) decimal.Decimal
}

// StaticOracle serves fixed prices.
type StaticOracle struct {
	ethPrice decimal.Decimal
	derived  map[common.Address]decimal.Decimal
}

// NewStaticOracle creates an oracle with fixed prices.
func NewStaticOracle(ethPrice decimal.Decimal, derived map[common.Address]decimal.Decimal) *StaticOracle {
	if derived == nil {
		derived = make(map[common.Address]decimal.Decimal)
	}
	return &StaticOracle{ethPrice: ethPrice, derived: derived}
}

// ParseStaticOracle builds a StaticOracle from decimal strings.
func ParseStaticOracle(ethPrice string, derived map[string]string) (*StaticOracle, error) {
	eth := decimal.Zero
	if ethPrice != "" {
		var err error
		if eth, err = decimal.NewFromString(ethPrice); err != nil {
			return nil, fmt.Errorf("parse eth price %q: %w", ethPrice, err)
		}
	}

	prices := make(map[common.Address]decimal.Decimal, len(derived))
	for addr, s := range derived {
		v, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("parse derived price for %s: %w", addr, err)
		}
		prices[common.HexToAddress(addr)] = v
	}
	return NewStaticOracle(eth, prices), nil
}

// EthPriceUSD returns the fixed ETH price.
func (o *StaticOracle) EthPriceUSD(context.Context) (decimal.Decimal, error) {
	return o.ethPrice, nil
}

// DerivedETH returns the fixed ETH price of token, zero when not configured.
func (o *StaticOracle) DerivedETH(_ context.Context, token common.Address) (decimal.Decimal, error) {
	return o.derived[token], nil
}

// Whitelist counts value only for whitelisted tokens and never for
// explicitly untracked pairs.
type Whitelist struct {
	tokens    map[common.Address]struct{}
	untracked map[common.Address]struct{}
}

// NewWhitelist creates a whitelist classifier.
func NewWhitelist(tokens, untrackedPairs []common.Address) *Whitelist {
	w := &Whitelist{
		tokens:    make(map[common.Address]struct{}, len(tokens)),
		untracked: make(map[common.Address]struct{}, len(untrackedPairs)),
	}
	for _, t := range tokens {
		w.tokens[t] = struct{}{}
	}
	for _, p := range untrackedPairs {
		w.untracked[p] = struct{}{}
	}
	return w
}

// TrackedVolumeUSD averages both sides when both tokens are whitelisted,
// uses the whitelisted side when only one is, and is zero otherwise.
func (w *Whitelist) TrackedVolumeUSD(
	pair common.Address,
	amount0 decimal.Decimal, token0 *domain.Token,
	amount1 decimal.Decimal, token1 *domain.Token,
	ethPrice decimal.Decimal,
) decimal.Decimal {
	if _, skip := w.untracked[pair]; skip {
		return decimal.Zero
	}

	v0 := amount0.Mul(token0.DerivedETH).Mul(ethPrice)
	v1 := amount1.Mul(token1.DerivedETH).Mul(ethPrice)

	switch in0, in1 := w.listed(token0), w.listed(token1); {
	case in0 && in1:
		return units.Div(v0.Add(v1), decimal.NewFromInt(2))
	case in0:
		return v0
	case in1:
		return v1
	default:
		return decimal.Zero
	}
}

// TrackedLiquidityUSD sums both sides when both tokens are whitelisted,
// doubles the whitelisted side when only one is, and is zero otherwise.
func (w *Whitelist) TrackedLiquidityUSD(
	amount0 decimal.Decimal, token0 *domain.Token,
	amount1 decimal.Decimal, token1 *domain.Token,
	ethPrice decimal.Decimal,
) decimal.Decimal {
	v0 := amount0.Mul(token0.DerivedETH).Mul(ethPrice)
	v1 := amount1.Mul(token1.DerivedETH).Mul(ethPrice)
	two := decimal.NewFromInt(2)

	switch in0, in1 := w.listed(token0), w.listed(token1); {
	case in0 && in1:
		return v0.Add(v1)
	case in0:
		return v0.Mul(two)
	case in1:
		return v1.Mul(two)
	default:
		return decimal.Zero
	}
}

func (w *Whitelist) listed(t *domain.Token) bool {
	_, ok := w.tokens[t.Address]
	return ok
}

var (
	_ Oracle     = (*StaticOracle)(nil)
	_ Classifier = (*Whitelist)(nil)
)
