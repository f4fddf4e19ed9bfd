// Package ledger maintains per-(user, token) weighted-average cost positions
// and realizes profit and loss on disposal.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"dex-ledger/internal/domain"
	"dex-ledger/internal/idhash"
	"dex-ledger/internal/storage"
	"dex-ledger/internal/units"
)

// Ledger applies purchase and sale recognition to stored positions.
type Ledger struct {
	positions storage.PositionStore
	users     storage.UserStore
	log       logrus.FieldLogger
}

// New creates a ledger. users may be nil when trader registration is not wanted.
func New(positions storage.PositionStore, users storage.UserStore, log logrus.FieldLogger) *Ledger {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Ledger{positions: positions, users: users, log: log}
}

// RecognizePurchase blends an acquisition into the running average cost of
// (user, token). A zero quantity is a no-op.
func (l *Ledger) RecognizePurchase(
	ctx context.Context,
	user, token common.Address,
	quantity, usdValue decimal.Decimal,
	verifiedWallet bool,
) error {
	if quantity.IsZero() {
		return nil
	}

	p, err := l.loadOrCreate(ctx, user, token, verifiedWallet)
	if err != nil {
		return err
	}

	// unitCost*(q/total) + avg*(old/total), with a single division.
	newTotal := p.OutstandingQuantity.Add(quantity)
	p.WeightedAverageCostUSD = units.Div(
		usdValue.Add(p.WeightedAverageCostUSD.Mul(p.OutstandingQuantity)),
		newTotal,
	)
	p.OutstandingQuantity = newTotal

	if err := l.positions.Put(ctx, p); err != nil {
		return fmt.Errorf("save position after purchase: %w", err)
	}
	return nil
}

// RecognizeSale depletes the creditor's position in token and realizes the
// gain or loss against the average cost held before the sale. Quantity sold
// beyond the outstanding balance is counted as unrecognizable and resets the
// average cost. A zero quantity returns nil without touching any position.
func (l *Ledger) RecognizeSale(
	ctx context.Context,
	token common.Address,
	quantity, usdValue decimal.Decimal,
	creditor common.Address,
	verifiedWallet bool,
) (*domain.Position, error) {
	if quantity.IsZero() {
		return nil, nil
	}

	p, err := l.loadOrCreate(ctx, creditor, token, verifiedWallet)
	if err != nil {
		return nil, err
	}

	priorAverage := p.WeightedAverageCostUSD

	attributable := quantity
	if quantity.GreaterThan(p.OutstandingQuantity) {
		attributable = p.OutstandingQuantity
		overflow := quantity.Sub(p.OutstandingQuantity)
		p.UnrecognizableQuantity = p.UnrecognizableQuantity.Add(overflow)
		p.OutstandingQuantity = decimal.Zero
		p.WeightedAverageCostUSD = decimal.Zero

		l.log.WithFields(logrus.Fields{
			"user":     creditor.Hex(),
			"token":    token.Hex(),
			"overflow": overflow.String(),
		}).Debug("sale exceeds known holdings")
	} else {
		p.OutstandingQuantity = p.OutstandingQuantity.Sub(quantity)
	}
	p.ConsumedQuantity = p.ConsumedQuantity.Add(attributable)

	realizedPrice := units.Div(usdValue, quantity)
	delta := attributable.Mul(realizedPrice.Sub(priorAverage))
	if realizedPrice.GreaterThan(priorAverage) {
		p.RealizedProfitUSD = p.RealizedProfitUSD.Add(delta)
	} else {
		p.RealizedLossUSD = p.RealizedLossUSD.Add(delta)
	}
	p.RealizedNetProceedsUSD = p.RealizedNetProceedsUSD.Add(delta)
	p.SaleCount++

	if err := l.positions.Put(ctx, p); err != nil {
		return nil, fmt.Errorf("save position after sale: %w", err)
	}
	return p, nil
}

// loadOrCreate returns the position for (user, token), creating an empty one
// seeded with verifiedWallet when absent. Once any recognition claims a
// verified wallet the flag stays set, and that change is saved immediately.
func (l *Ledger) loadOrCreate(ctx context.Context, user, token common.Address, verifiedWallet bool) (*domain.Position, error) {
	p, err := l.positions.Get(ctx, user, token)
	switch {
	case err == nil:
		if verifiedWallet && !p.ContractAttributionDisproven {
			p.ContractAttributionDisproven = true
			if err := l.positions.Put(ctx, p); err != nil {
				return nil, fmt.Errorf("save attribution flag: %w", err)
			}
		}
		return p, nil
	case errors.Is(err, storage.ErrNotFound):
	default:
		return nil, fmt.Errorf("load position: %w", err)
	}

	if err := l.registerUser(ctx, user); err != nil {
		return nil, err
	}

	p = domain.NewPosition(idhash.PositionID(user, token), user, token, verifiedWallet)
	if err := l.positions.Put(ctx, p); err != nil {
		return nil, fmt.Errorf("create position: %w", err)
	}
	return p, nil
}

func (l *Ledger) registerUser(ctx context.Context, addr common.Address) error {
	if l.users == nil {
		return nil
	}
	return storage.EnsureUser(ctx, l.users, addr)
}
