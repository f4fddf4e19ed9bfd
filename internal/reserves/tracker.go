// Package reserves maintains pair reserves, spot prices, liquidity-token
// supply and the ETH-denominated liquidity totals derived from them.
package reserves

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"dex-ledger/internal/domain"
	"dex-ledger/internal/pricing"
	"dex-ledger/internal/storage"
	"dex-ledger/internal/txchain"
	"dex-ledger/internal/units"
)

// minimumLiquidity is the amount a pair locks to the zero address on its
// first mint.
var minimumLiquidity = big.NewInt(1000)

// Tracker applies Transfer and Sync events.
type Tracker struct {
	stores     storage.Stores
	txs        *txchain.Tracker
	oracle     pricing.Oracle
	classifier pricing.Classifier
	factory    common.Address
	log        logrus.FieldLogger
}

// Options configures a Tracker.
type Options struct {
	Stores     storage.Stores
	Oracle     pricing.Oracle
	Classifier pricing.Classifier
	Factory    common.Address
	Logger     logrus.FieldLogger
}

// NewTracker creates a reserve tracker.
func NewTracker(opts Options) *Tracker {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Tracker{
		stores:     opts.Stores,
		txs:        txchain.NewTracker(opts.Stores.Transactions),
		oracle:     opts.Oracle,
		classifier: opts.Classifier,
		factory:    opts.Factory,
		log:        log,
	}
}

// HandleTransfer adjusts the pair's liquidity-token supply for mints and burns.
func (t *Tracker) HandleTransfer(ctx context.Context, ev *domain.LiquidityTransfer) error {
	if ev.To == (common.Address{}) && ev.Value != nil && ev.Value.Cmp(minimumLiquidity) == 0 {
		return nil
	}

	for _, addr := range []common.Address{ev.From, ev.To} {
		if err := storage.EnsureUser(ctx, t.stores.Users, addr); err != nil {
			return err
		}
	}

	pair, err := storage.MustPair(ctx, t.stores.Pairs, ev.Meta.Contract)
	if err != nil {
		return err
	}

	tx, err := t.txs.Begin(ctx, ev.Meta)
	if err != nil {
		return err
	}

	value := units.ConvertTokenToDecimal(ev.Value, units.LPDecimals)
	changed := false

	if ev.From == (common.Address{}) {
		pair.TotalSupply = pair.TotalSupply.Add(value)
		changed = true
	}
	if ev.To == (common.Address{}) && ev.From == pair.Address {
		pair.TotalSupply = pair.TotalSupply.Sub(value)
		changed = true
	}

	if changed {
		if err := t.stores.Pairs.Put(ctx, pair); err != nil {
			return fmt.Errorf("save pair %s: %w", pair.Address.Hex(), err)
		}
	}
	return t.txs.Save(ctx, tx)
}

// HandleSync replaces the pair's reserves and re-derives prices and
// liquidity. The pair's previous contribution is removed from the factory
// and token totals before the new one is computed and added back.
func (t *Tracker) HandleSync(ctx context.Context, ev *domain.ReserveSync) error {
	pair, err := storage.MustPair(ctx, t.stores.Pairs, ev.Meta.Contract)
	if err != nil {
		return err
	}
	factory, err := storage.MustFactory(ctx, t.stores.Factories, t.factory)
	if err != nil {
		return err
	}
	token0, err := storage.MustToken(ctx, t.stores.Tokens, pair.Token0)
	if err != nil {
		return err
	}
	token1, err := storage.MustToken(ctx, t.stores.Tokens, pair.Token1)
	if err != nil {
		return err
	}
	bundle, err := storage.MustBundle(ctx, t.stores.Bundles, domain.BundleID)
	if err != nil {
		return err
	}

	// subtract
	factory.TotalLiquidityETH = factory.TotalLiquidityETH.Sub(pair.TrackedReserveETH)
	token0.TotalLiquidity = token0.TotalLiquidity.Sub(pair.Reserve0)
	token1.TotalLiquidity = token1.TotalLiquidity.Sub(pair.Reserve1)

	// recompute
	pair.Reserve0 = units.ConvertTokenToDecimal(ev.Reserve0, token0.Decimals)
	pair.Reserve1 = units.ConvertTokenToDecimal(ev.Reserve1, token1.Decimals)
	pair.Token0Price = units.SafeDiv(pair.Reserve0, pair.Reserve1)
	pair.Token1Price = units.SafeDiv(pair.Reserve1, pair.Reserve0)
	if pair.Reserve0.IsZero() || pair.Reserve1.IsZero() {
		t.log.WithField("pair", pair.Address.Hex()).Debug("empty reserve, spot price set to zero")
	}

	if bundle.EthPriceUSD, err = t.oracle.EthPriceUSD(ctx); err != nil {
		return fmt.Errorf("eth price: %w", err)
	}
	if token0.DerivedETH, err = t.oracle.DerivedETH(ctx, token0.Address); err != nil {
		return fmt.Errorf("derived price %s: %w", token0.Address.Hex(), err)
	}
	if token1.DerivedETH, err = t.oracle.DerivedETH(ctx, token1.Address); err != nil {
		return fmt.Errorf("derived price %s: %w", token1.Address.Hex(), err)
	}

	trackedLiquidityETH := decimal.Zero
	if !bundle.EthPriceUSD.IsZero() {
		trackedUSD := t.classifier.TrackedLiquidityUSD(pair.Reserve0, token0, pair.Reserve1, token1, bundle.EthPriceUSD)
		trackedLiquidityETH = units.Div(trackedUSD, bundle.EthPriceUSD)
	}

	pair.TrackedReserveETH = trackedLiquidityETH
	pair.ReserveETH = pair.Reserve0.Mul(token0.DerivedETH).Add(pair.Reserve1.Mul(token1.DerivedETH))
	pair.ReserveUSD = pair.ReserveETH.Mul(bundle.EthPriceUSD)

	// add back
	factory.TotalLiquidityETH = factory.TotalLiquidityETH.Add(trackedLiquidityETH)
	factory.TotalLiquidityUSD = factory.TotalLiquidityETH.Mul(bundle.EthPriceUSD)
	token0.TotalLiquidity = token0.TotalLiquidity.Add(pair.Reserve0)
	token1.TotalLiquidity = token1.TotalLiquidity.Add(pair.Reserve1)

	if err := t.stores.Pairs.Put(ctx, pair); err != nil {
		return fmt.Errorf("save pair %s: %w", pair.Address.Hex(), err)
	}
	if err := t.stores.Factories.Put(ctx, factory); err != nil {
		return fmt.Errorf("save factory: %w", err)
	}
	if err := t.stores.Bundles.Put(ctx, bundle); err != nil {
		return fmt.Errorf("save bundle: %w", err)
	}
	if err := t.stores.Tokens.Put(ctx, token0); err != nil {
		return fmt.Errorf("save token %s: %w", token0.Address.Hex(), err)
	}
	if err := t.stores.Tokens.Put(ctx, token1); err != nil {
		return fmt.Errorf("save token %s: %w", token1.Address.Hex(), err)
	}
	return nil
}
