package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"dex-ledger/internal/domain"
	"dex-ledger/internal/storage"
)

func TestTransactor_RollsBackEveryStoreOnFailure(t *testing.T) {
	stores := NewStores()
	progress := NewProgressStore()
	tx := NewTransactor(stores, progress)
	ctx := context.Background()
	hash := common.HexToHash("0x01")

	// committed baseline
	if err := stores.Pairs.Put(ctx, &domain.Pair{Address: pairA, TxCount: 1}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := stores.SwapLegs.Put(ctx, &domain.SwapLeg{ID: "a", Transaction: hash}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := progress.SetLastProcessed(ctx, &storage.Progress{Block: 5}); err != nil {
		t.Fatalf("SetLastProcessed failed: %v", err)
	}

	boom := errors.New("boom")
	err := tx.WithinTx(ctx, func(ctx context.Context) error {
		_ = stores.Pairs.Put(ctx, &domain.Pair{Address: pairA, TxCount: 2})
		_ = stores.Positions.Put(ctx, domain.NewPosition("pos1", alice, tokA, false))
		_ = stores.SwapLegs.Put(ctx, &domain.SwapLeg{ID: "b", Transaction: hash})
		_ = stores.Users.Put(ctx, &domain.User{Address: alice, USDSwapped: decimal.NewFromInt(3)})
		_ = progress.SetLastProcessed(ctx, &storage.Progress{Block: 9})
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	pair, _ := stores.Pairs.Get(ctx, pairA)
	if pair.TxCount != 1 {
		t.Errorf("pair not rolled back: tx count %d", pair.TxCount)
	}
	if _, err := stores.Positions.Get(ctx, alice, tokA); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("position not rolled back: %v", err)
	}
	if _, err := stores.Users.Get(ctx, alice); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("user not rolled back: %v", err)
	}
	legs, _ := stores.SwapLegs.GetByTransaction(ctx, hash)
	if len(legs) != 1 || legs[0].ID != "a" {
		t.Errorf("legs not rolled back: %+v", legs)
	}
	p, _ := progress.GetLastProcessed(ctx)
	if p.Block != 5 {
		t.Errorf("checkpoint not rolled back: %d", p.Block)
	}
}

func TestTransactor_KeepsWritesOnSuccess(t *testing.T) {
	stores := NewStores()
	progress := NewProgressStore()
	tx := NewTransactor(stores, progress)
	ctx := context.Background()

	err := tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := stores.Pairs.Put(ctx, &domain.Pair{Address: pairA, TxCount: 2}); err != nil {
			return err
		}
		return progress.SetLastProcessed(ctx, &storage.Progress{Block: 9})
	})
	if err != nil {
		t.Fatalf("WithinTx failed: %v", err)
	}

	pair, err := stores.Pairs.Get(ctx, pairA)
	if err != nil || pair.TxCount != 2 {
		t.Errorf("pair not committed: %+v, %v", pair, err)
	}
	p, err := progress.GetLastProcessed(ctx)
	if err != nil || p.Block != 9 {
		t.Errorf("checkpoint not committed: %+v, %v", p, err)
	}
}
