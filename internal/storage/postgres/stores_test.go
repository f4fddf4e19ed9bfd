package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dex-ledger/internal/domain"
	"dex-ledger/internal/storage"
)

var (
	testUser  = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	testToken = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	testPair  = common.HexToAddress("0xB4e16d0168e52d35CaCD2c6185b44281Ec28C9Dc")
)

func TestPositionStore_PutGetUpsert(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPositionStore(pool)

	_, err := store.Get(ctx, testUser, testToken)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	p := domain.NewPosition("pos-1", testUser, testToken, true)
	p.OutstandingQuantity = decimal.RequireFromString("12.345678901234567890")
	p.WeightedAverageCostUSD = decimal.RequireFromString("1850.25")
	require.NoError(t, store.Put(ctx, p))

	got, err := store.Get(ctx, testUser, testToken)
	require.NoError(t, err)
	assert.Equal(t, "pos-1", got.ID)
	assert.Equal(t, testUser, got.User)
	assert.Equal(t, testToken, got.Token)
	assert.True(t, got.OutstandingQuantity.Equal(p.OutstandingQuantity))
	assert.True(t, got.ContractAttributionDisproven)

	p.SaleCount = 3
	p.RealizedLossUSD = decimal.RequireFromString("-4.5")
	require.NoError(t, store.Put(ctx, p))

	got, err = store.Get(ctx, testUser, testToken)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.SaleCount)
	assert.True(t, got.RealizedLossUSD.Equal(decimal.RequireFromString("-4.5")))
}

func TestPairAndTokenStores(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	pairs := NewPairStore(pool)
	tokens := NewTokenStore(pool)

	pair := &domain.Pair{
		Address:        testPair,
		Token0:         common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"),
		Token1:         testToken,
		Reserve0:       decimal.RequireFromString("1000000.5"),
		Reserve1:       decimal.RequireFromString("500"),
		TxCount:        7,
		CreatedAtBlock: 10008355,
	}
	require.NoError(t, pairs.Put(ctx, pair))

	gotPair, err := pairs.Get(ctx, testPair)
	require.NoError(t, err)
	assert.Equal(t, pair.Token0, gotPair.Token0)
	assert.True(t, gotPair.Reserve0.Equal(pair.Reserve0))
	assert.Equal(t, int64(7), gotPair.TxCount)
	assert.Equal(t, uint64(10008355), gotPair.CreatedAtBlock)

	addrs, err := pairs.Addresses(ctx)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{testPair}, addrs)

	token := &domain.Token{Address: testToken, Symbol: "WETH", Name: "Wrapped Ether", Decimals: 18}
	require.NoError(t, tokens.Put(ctx, token))

	gotToken, err := tokens.Get(ctx, testToken)
	require.NoError(t, err)
	assert.Equal(t, "WETH", gotToken.Symbol)
	assert.Equal(t, uint8(18), gotToken.Decimals)
	assert.True(t, gotToken.TradeVolume.IsZero())
}

func TestTransactionAndSwapLegStores(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	txs := NewTransactionStore(pool)
	legs := NewSwapLegStore(pool)
	hash := common.HexToHash("0xfeed")

	tx := &domain.Transaction{Hash: hash, BlockNumber: 42, Timestamp: 1700000000}
	tx.OpenChain()
	tx.AppendLeg(tx.NextLegID())
	require.NoError(t, txs.Put(ctx, tx))

	got, err := txs.Get(ctx, hash)
	require.NoError(t, err)
	assert.True(t, got.ChainInProgress)
	assert.Equal(t, []string{hash.Hex() + "-0"}, got.SwapIDs)
	assert.Nil(t, got.ChainBeneficiary)

	got.CloseChain(testUser)
	require.NoError(t, txs.Put(ctx, got))
	got, err = txs.Get(ctx, hash)
	require.NoError(t, err)
	require.NotNil(t, got.ChainBeneficiary)
	assert.Equal(t, testUser, *got.ChainBeneficiary)

	leg := &domain.SwapLeg{
		ID:          hash.Hex() + "-0",
		Transaction: hash,
		LogIndex:    5,
		Pair:        testPair,
		Amount0In:   decimal.NewFromInt(1),
		AmountUSD:   decimal.RequireFromString("2000.5"),
		RouterSwap:  true,
	}
	require.NoError(t, legs.Put(ctx, leg))

	leg.Accounted = true
	leg.CostBasisRef = "pos-1"
	require.NoError(t, legs.Put(ctx, leg))

	byTx, err := legs.GetByTransaction(ctx, hash)
	require.NoError(t, err)
	require.Len(t, byTx, 1)
	assert.True(t, byTx[0].Accounted)
	assert.Equal(t, "pos-1", byTx[0].CostBasisRef)
	assert.True(t, byTx[0].AmountUSD.Equal(decimal.RequireFromString("2000.5")))
}

func TestFactoryBundleUserStores(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	stores := NewStores(pool)

	factory := &domain.Factory{Address: testPair, PairCount: 1, TotalLiquidityETH: decimal.NewFromInt(10)}
	require.NoError(t, stores.Factories.Put(ctx, factory))
	gotFactory, err := stores.Factories.Get(ctx, testPair)
	require.NoError(t, err)
	assert.True(t, gotFactory.TotalLiquidityETH.Equal(decimal.NewFromInt(10)))

	require.NoError(t, stores.Bundles.Put(ctx, &domain.Bundle{ID: domain.BundleID, EthPriceUSD: decimal.NewFromInt(1800)}))
	gotBundle, err := stores.Bundles.Get(ctx, domain.BundleID)
	require.NoError(t, err)
	assert.True(t, gotBundle.EthPriceUSD.Equal(decimal.NewFromInt(1800)))

	require.NoError(t, stores.Users.Put(ctx, &domain.User{Address: testUser}))
	gotUser, err := stores.Users.Get(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, testUser, gotUser.Address)
}

func TestWithinTx_RollsBackWritesAndCheckpoint(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	stores := NewStores(pool)
	progress := NewProgressStore(pool, "test")

	boom := errors.New("engine failed")
	err := pool.WithinTx(ctx, func(ctx context.Context) error {
		require.NoError(t, stores.Users.Put(ctx, &domain.User{Address: testUser}))
		require.NoError(t, progress.SetLastProcessed(ctx, &storage.Progress{Block: 9}))

		// visible inside the transaction
		_, err := stores.Users.Get(ctx, testUser)
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = stores.Users.Get(ctx, testUser)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = progress.GetLastProcessed(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestWithinTx_CommitsWritesAndCheckpoint(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	stores := NewStores(pool)
	progress := NewProgressStore(pool, "test")

	err := pool.WithinTx(ctx, func(ctx context.Context) error {
		if err := stores.Users.Put(ctx, &domain.User{Address: testUser}); err != nil {
			return err
		}
		return progress.SetLastProcessed(ctx, &storage.Progress{Block: 9, UpdatedAt: 5})
	})
	require.NoError(t, err)

	_, err = stores.Users.Get(ctx, testUser)
	require.NoError(t, err)
	got, err := progress.GetLastProcessed(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), got.Block)
	assert.Equal(t, int64(5), got.UpdatedAt)

	// other checkpoint names are independent
	_, err = NewProgressStore(pool, "other").GetLastProcessed(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
