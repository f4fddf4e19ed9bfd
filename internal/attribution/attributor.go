// Package attribution applies swap events: it rolls up traded volume,
// decides who sold and who bought, and feeds the cost-basis ledger.
package attribution

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"dex-ledger/internal/domain"
	"dex-ledger/internal/identity"
	"dex-ledger/internal/ledger"
	"dex-ledger/internal/pricing"
	"dex-ledger/internal/storage"
	"dex-ledger/internal/txchain"
	"dex-ledger/internal/units"
)

// Side names one of a pair's two tokens.
type Side int

const (
	Token0 Side = iota
	Token1
)

func (s Side) String() string {
	if s == Token0 {
		return "token0"
	}
	return "token1"
}

// DisposedToken picks the token that was sold. When both out amounts are
// non-zero the smaller one is assumed to be the sold side; this is a
// heuristic for gas-optimized or malformed trades, not a derivation.
func DisposedToken(amount0Out, amount1Out decimal.Decimal) Side {
	if amount0Out.LessThan(amount1Out) {
		return Token0
	}
	return Token1
}

// Outcome summarizes one applied swap.
type Outcome struct {
	Leg         *domain.SwapLeg
	Sale        *domain.Position // nil when no sale was recognized
	SaleSkipped bool             // a chain was already open
	ChainOpened bool
	ChainClosed bool
}

// Options configures an Attributor.
type Options struct {
	Stores     storage.Stores
	Ledger     *ledger.Ledger
	Resolver   *identity.Resolver
	Classifier pricing.Classifier
	Factory    common.Address
	Logger     logrus.FieldLogger
}

// Attributor applies Swap events.
type Attributor struct {
	stores     storage.Stores
	ledger     *ledger.Ledger
	resolver   *identity.Resolver
	classifier pricing.Classifier
	txs        *txchain.Tracker
	factory    common.Address
	log        logrus.FieldLogger
}

// New creates an attributor.
func New(opts Options) *Attributor {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Attributor{
		stores:     opts.Stores,
		ledger:     opts.Ledger,
		resolver:   opts.Resolver,
		classifier: opts.Classifier,
		txs:        txchain.NewTracker(opts.Stores.Transactions),
		factory:    opts.Factory,
		log:        log,
	}
}

// amounts holds one swap's normalized quantities and valuations.
type amounts struct {
	in0, in1, out0, out1 decimal.Decimal
	total0, total1       decimal.Decimal
	trackedUSD           decimal.Decimal
	trackedETH           decimal.Decimal
	derivedUSD           decimal.Decimal
}

// legUSD is the tracked value when there is one, otherwise the derived value.
func (a amounts) legUSD() decimal.Decimal {
	if a.trackedUSD.IsZero() {
		return a.derivedUSD
	}
	return a.trackedUSD
}

// HandleSwap applies one swap event.
func (a *Attributor) HandleSwap(ctx context.Context, ev *domain.Swap) (*Outcome, error) {
	pair, err := storage.MustPair(ctx, a.stores.Pairs, ev.Meta.Contract)
	if err != nil {
		return nil, err
	}
	token0, err := storage.MustToken(ctx, a.stores.Tokens, pair.Token0)
	if err != nil {
		return nil, err
	}
	token1, err := storage.MustToken(ctx, a.stores.Tokens, pair.Token1)
	if err != nil {
		return nil, err
	}
	bundle, err := storage.MustBundle(ctx, a.stores.Bundles, domain.BundleID)
	if err != nil {
		return nil, err
	}
	factory, err := storage.MustFactory(ctx, a.stores.Factories, a.factory)
	if err != nil {
		return nil, err
	}

	amt := a.value(ev, pair, token0, token1, bundle.EthPriceUSD)
	if err := a.rollUpVolume(ctx, amt, pair, token0, token1, factory); err != nil {
		return nil, err
	}

	tx, err := a.txs.Begin(ctx, ev.Meta)
	if err != nil {
		return nil, err
	}

	leg := &domain.SwapLeg{
		ID:          tx.NextLegID(),
		Transaction: ev.Meta.TxHash,
		LogIndex:    ev.Meta.LogIndex,
		BlockNumber: ev.Meta.BlockNumber,
		Timestamp:   tx.Timestamp,
		Pair:        pair.Address,
		Sender:      ev.Sender,
		From:        ev.Meta.TxFrom,
		To:          ev.To,
		Amount0In:   amt.in0,
		Amount1In:   amt.in1,
		Amount0Out:  amt.out0,
		Amount1Out:  amt.out1,
		AmountUSD:   amt.legUSD(),
		RouterSwap:  a.resolver.IsIntermediary(ev.Sender),
	}

	// swapExactTokensForETH: the router receives WETH and forwards ETH to the trader.
	leg.Destination = ev.To
	if a.resolver.IsIntermediary(ev.To) {
		leg.Destination = ev.Meta.TxFrom
	}

	nextHopIsPair, err := a.isIntermediateHop(ctx, leg)
	if err != nil {
		return nil, err
	}

	out := &Outcome{Leg: leg}
	log := a.log.WithFields(logrus.Fields{
		"tx":   ev.Meta.TxHash.Hex(),
		"pair": pair.Address.Hex(),
		"leg":  leg.ID,
	})

	if tx.ChainInProgress {
		out.SaleSkipped = true
		log.Debug("chain in progress, sale already recognized")
	} else {
		sale, err := a.recognizeSale(ctx, ev, pair, amt, leg.AmountUSD)
		if err != nil {
			return nil, err
		}
		if sale != nil {
			leg.CostBasisRef = sale.ID
			out.Sale = sale
		}
	}

	if nextHopIsPair {
		leg.Accounted = false
		tx.OpenChain()
		out.ChainOpened = true
		log.WithField("next_pair", leg.Destination.Hex()).Debug("multi-hop swap opened")
	} else {
		leg.Accounted = true
		out.ChainClosed = tx.ChainInProgress
		tx.CloseChain(leg.Destination)
		if err := a.ledger.RecognizePurchase(ctx, leg.Destination, pair.Token0, amt.out0, leg.AmountUSD, false); err != nil {
			return nil, fmt.Errorf("recognize purchase of token0: %w", err)
		}
		if err := a.ledger.RecognizePurchase(ctx, leg.Destination, pair.Token1, amt.out1, leg.AmountUSD, false); err != nil {
			return nil, fmt.Errorf("recognize purchase of token1: %w", err)
		}
	}

	if err := a.stores.SwapLegs.Put(ctx, leg); err != nil {
		return nil, fmt.Errorf("save swap leg %s: %w", leg.ID, err)
	}
	tx.AppendLeg(leg.ID)
	if err := a.txs.Save(ctx, tx); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *Attributor) value(ev *domain.Swap, pair *domain.Pair, token0, token1 *domain.Token, ethPrice decimal.Decimal) amounts {
	amt := amounts{
		in0:  units.ConvertTokenToDecimal(ev.Amount0In, token0.Decimals),
		in1:  units.ConvertTokenToDecimal(ev.Amount1In, token1.Decimals),
		out0: units.ConvertTokenToDecimal(ev.Amount0Out, token0.Decimals),
		out1: units.ConvertTokenToDecimal(ev.Amount1Out, token1.Decimals),
	}
	amt.total0 = amt.in0.Add(amt.out0)
	amt.total1 = amt.in1.Add(amt.out1)

	derivedETH := units.Div(
		token1.DerivedETH.Mul(amt.total1).Add(token0.DerivedETH.Mul(amt.total0)),
		decimal.NewFromInt(2),
	)
	amt.derivedUSD = derivedETH.Mul(ethPrice)

	amt.trackedUSD = a.classifier.TrackedVolumeUSD(pair.Address, amt.total0, token0, amt.total1, token1, ethPrice)
	amt.trackedETH = units.SafeDiv(amt.trackedUSD, ethPrice)
	return amt
}

func (a *Attributor) rollUpVolume(
	ctx context.Context,
	amt amounts,
	pair *domain.Pair,
	token0, token1 *domain.Token,
	factory *domain.Factory,
) error {
	token0.TradeVolume = token0.TradeVolume.Add(amt.total0)
	token0.TradeVolumeUSD = token0.TradeVolumeUSD.Add(amt.trackedUSD)
	token0.UntrackedVolumeUSD = token0.UntrackedVolumeUSD.Add(amt.derivedUSD)
	token0.TxCount++

	token1.TradeVolume = token1.TradeVolume.Add(amt.total1)
	token1.TradeVolumeUSD = token1.TradeVolumeUSD.Add(amt.trackedUSD)
	token1.UntrackedVolumeUSD = token1.UntrackedVolumeUSD.Add(amt.derivedUSD)
	token1.TxCount++

	pair.VolumeToken0 = pair.VolumeToken0.Add(amt.total0)
	pair.VolumeToken1 = pair.VolumeToken1.Add(amt.total1)
	pair.VolumeUSD = pair.VolumeUSD.Add(amt.trackedUSD)
	pair.UntrackedVolumeUSD = pair.UntrackedVolumeUSD.Add(amt.derivedUSD)
	pair.TxCount++

	factory.TotalVolumeUSD = factory.TotalVolumeUSD.Add(amt.trackedUSD)
	factory.TotalVolumeETH = factory.TotalVolumeETH.Add(amt.trackedETH)
	factory.UntrackedVolumeUSD = factory.UntrackedVolumeUSD.Add(amt.derivedUSD)
	factory.TxCount++

	if err := a.stores.Pairs.Put(ctx, pair); err != nil {
		return fmt.Errorf("save pair %s: %w", pair.Address.Hex(), err)
	}
	if err := a.stores.Tokens.Put(ctx, token0); err != nil {
		return fmt.Errorf("save token %s: %w", token0.Address.Hex(), err)
	}
	if err := a.stores.Tokens.Put(ctx, token1); err != nil {
		return fmt.Errorf("save token %s: %w", token1.Address.Hex(), err)
	}
	if err := a.stores.Factories.Put(ctx, factory); err != nil {
		return fmt.Errorf("save factory: %w", err)
	}
	return nil
}

// isIntermediateHop reports whether the leg pays out to another pair on the
// way to a different final recipient.
func (a *Attributor) isIntermediateHop(ctx context.Context, leg *domain.SwapLeg) (bool, error) {
	if leg.Destination == leg.Sender || leg.Destination == leg.From {
		return false, nil
	}
	_, err := a.stores.Pairs.Get(ctx, leg.Destination)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, storage.ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("load pair %s: %w", leg.Destination.Hex(), err)
	}
}

func (a *Attributor) recognizeSale(
	ctx context.Context,
	ev *domain.Swap,
	pair *domain.Pair,
	amt amounts,
	usd decimal.Decimal,
) (*domain.Position, error) {
	debitor := a.resolver.ResolveCreditor(ev.Sender, ev.Meta.TxFrom, ev.Meta.TxTarget())
	verifiedWallet := debitor == ev.Meta.TxFrom

	token, qty := pair.Token1, amt.in1
	if DisposedToken(amt.out0, amt.out1) == Token0 {
		token, qty = pair.Token0, amt.in0
	}

	p, err := a.ledger.RecognizeSale(ctx, token, qty, usd, debitor, verifiedWallet)
	if err != nil {
		return nil, fmt.Errorf("recognize sale: %w", err)
	}
	return p, nil
}
