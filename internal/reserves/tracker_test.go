package reserves

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dex-ledger/internal/domain"
	"dex-ledger/internal/logging"
	"dex-ledger/internal/pricing"
	"dex-ledger/internal/storage"
	"dex-ledger/internal/storage/memory"
)

var (
	factoryAddr = common.HexToAddress("0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f")
	weth        = common.HexToAddress("0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2")
	usdc        = common.HexToAddress("0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48")
	pairAddr    = common.HexToAddress("0xb4e16d0168e52d35cacd2c6185b44281ec28c9dc")
	lp          = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func pow10(n int64) *big.Int { return new(big.Int).Exp(big.NewInt(10), big.NewInt(n), nil) }

func rawUnits(whole int64, decimals int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(whole), pow10(decimals))
}

type fixture struct {
	ctx     context.Context
	stores  storage.Stores
	tracker *Tracker
}

func newFixture(t *testing.T, ethPrice string) *fixture {
	t.Helper()
	ctx := context.Background()
	stores := memory.NewStores()

	require.NoError(t, stores.Factories.Put(ctx, &domain.Factory{Address: factoryAddr}))
	require.NoError(t, stores.Bundles.Put(ctx, &domain.Bundle{ID: domain.BundleID}))
	require.NoError(t, stores.Tokens.Put(ctx, &domain.Token{Address: usdc, Symbol: "USDC", Decimals: 6}))
	require.NoError(t, stores.Tokens.Put(ctx, &domain.Token{Address: weth, Symbol: "WETH", Decimals: 18}))
	require.NoError(t, stores.Pairs.Put(ctx, &domain.Pair{Address: pairAddr, Token0: usdc, Token1: weth}))

	oracle := pricing.NewStaticOracle(d(ethPrice), map[common.Address]decimal.Decimal{
		weth: d("1"),
		usdc: d("0.0005"),
	})

	tracker := NewTracker(Options{
		Stores:     stores,
		Oracle:     oracle,
		Classifier: pricing.NewWhitelist([]common.Address{weth, usdc}, nil),
		Factory:    factoryAddr,
		Logger:     logging.Discard(),
	})
	return &fixture{ctx: ctx, stores: stores, tracker: tracker}
}

func meta(tx string) domain.EventMeta {
	return domain.EventMeta{Contract: pairAddr, TxHash: common.HexToHash(tx), BlockNumber: 100, Timestamp: 1600000000}
}

func (f *fixture) pair(t *testing.T) *domain.Pair {
	t.Helper()
	p, err := f.stores.Pairs.Get(f.ctx, pairAddr)
	require.NoError(t, err)
	return p
}

func TestHandleTransfer_SkipsMinimumLiquidityLock(t *testing.T) {
	f := newFixture(t, "2000")

	err := f.tracker.HandleTransfer(f.ctx, &domain.LiquidityTransfer{
		Meta: meta("0x01"), From: common.Address{}, To: common.Address{}, Value: big.NewInt(1000),
	})
	require.NoError(t, err)

	assert.True(t, f.pair(t).TotalSupply.IsZero())
	_, err = f.stores.Transactions.Get(f.ctx, common.HexToHash("0x01"))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestHandleTransfer_MintAndBurn(t *testing.T) {
	f := newFixture(t, "2000")

	require.NoError(t, f.tracker.HandleTransfer(f.ctx, &domain.LiquidityTransfer{
		Meta: meta("0x01"), From: common.Address{}, To: lp, Value: rawUnits(5, 18),
	}))
	assert.True(t, f.pair(t).TotalSupply.Equal(d("5")))

	// LP sends tokens back to the pair, then the pair burns them
	require.NoError(t, f.tracker.HandleTransfer(f.ctx, &domain.LiquidityTransfer{
		Meta: meta("0x02"), From: lp, To: pairAddr, Value: rawUnits(2, 18),
	}))
	assert.True(t, f.pair(t).TotalSupply.Equal(d("5")))

	require.NoError(t, f.tracker.HandleTransfer(f.ctx, &domain.LiquidityTransfer{
		Meta: meta("0x02"), From: pairAddr, To: common.Address{}, Value: rawUnits(2, 18),
	}))
	assert.True(t, f.pair(t).TotalSupply.Equal(d("3")))

	// burn to zero from someone other than the pair leaves supply alone
	require.NoError(t, f.tracker.HandleTransfer(f.ctx, &domain.LiquidityTransfer{
		Meta: meta("0x03"), From: lp, To: common.Address{}, Value: rawUnits(1, 18),
	}))
	assert.True(t, f.pair(t).TotalSupply.Equal(d("3")))

	tx, err := f.stores.Transactions.Get(f.ctx, common.HexToHash("0x02"))
	require.NoError(t, err)
	assert.Equal(t, uint64(100), tx.BlockNumber)

	_, err = f.stores.Users.Get(f.ctx, lp)
	assert.NoError(t, err)
}

func TestHandleTransfer_MissingPairIsFatal(t *testing.T) {
	f := newFixture(t, "2000")
	m := meta("0x01")
	m.Contract = common.HexToAddress("0xdead")

	err := f.tracker.HandleTransfer(f.ctx, &domain.LiquidityTransfer{Meta: m, From: common.Address{}, To: lp, Value: big.NewInt(5)})
	require.ErrorIs(t, err, storage.ErrMissingRecord)
	assert.Contains(t, err.Error(), m.Contract.Hex())
}

func TestHandleSync_ReservesPricesAndLiquidity(t *testing.T) {
	f := newFixture(t, "2000")

	// 2,000,000 USDC vs 1,000 WETH
	require.NoError(t, f.tracker.HandleSync(f.ctx, &domain.ReserveSync{
		Meta: meta("0x01"), Reserve0: rawUnits(2_000_000, 6), Reserve1: rawUnits(1_000, 18),
	}))

	p := f.pair(t)
	assert.True(t, p.Reserve0.Equal(d("2000000")))
	assert.True(t, p.Reserve1.Equal(d("1000")))
	assert.True(t, p.Token0Price.Equal(d("2000")), "token0Price %s", p.Token0Price)
	assert.True(t, p.Token1Price.Equal(d("0.0005")), "token1Price %s", p.Token1Price)
	// 2,000,000 * 0.0005 + 1,000 * 1
	assert.True(t, p.ReserveETH.Equal(d("2000")), "reserveETH %s", p.ReserveETH)
	assert.True(t, p.ReserveUSD.Equal(d("4000000")))
	assert.True(t, p.TrackedReserveETH.Equal(d("2000")))

	factory, err := f.stores.Factories.Get(f.ctx, factoryAddr)
	require.NoError(t, err)
	assert.True(t, factory.TotalLiquidityETH.Equal(d("2000")))
	assert.True(t, factory.TotalLiquidityUSD.Equal(d("4000000")))

	bundle, err := f.stores.Bundles.Get(f.ctx, domain.BundleID)
	require.NoError(t, err)
	assert.True(t, bundle.EthPriceUSD.Equal(d("2000")))

	token1, err := f.stores.Tokens.Get(f.ctx, weth)
	require.NoError(t, err)
	assert.True(t, token1.TotalLiquidity.Equal(d("1000")))
	assert.True(t, token1.DerivedETH.Equal(d("1")))
}

func TestHandleSync_ReplacesPriorContribution(t *testing.T) {
	f := newFixture(t, "2000")

	require.NoError(t, f.tracker.HandleSync(f.ctx, &domain.ReserveSync{
		Meta: meta("0x01"), Reserve0: rawUnits(2_000_000, 6), Reserve1: rawUnits(1_000, 18),
	}))
	require.NoError(t, f.tracker.HandleSync(f.ctx, &domain.ReserveSync{
		Meta: meta("0x02"), Reserve0: rawUnits(1_000_000, 6), Reserve1: rawUnits(500, 18),
	}))

	factory, err := f.stores.Factories.Get(f.ctx, factoryAddr)
	require.NoError(t, err)
	assert.True(t, factory.TotalLiquidityETH.Equal(d("1000")), "got %s", factory.TotalLiquidityETH)

	token0, err := f.stores.Tokens.Get(f.ctx, usdc)
	require.NoError(t, err)
	assert.True(t, token0.TotalLiquidity.Equal(d("1000000")), "got %s", token0.TotalLiquidity)
}

func TestHandleSync_ZeroReserveAndZeroEthPrice(t *testing.T) {
	f := newFixture(t, "0")

	require.NoError(t, f.tracker.HandleSync(f.ctx, &domain.ReserveSync{
		Meta: meta("0x01"), Reserve0: big.NewInt(0), Reserve1: rawUnits(3, 18),
	}))

	p := f.pair(t)
	assert.True(t, p.Token0Price.IsZero())
	assert.True(t, p.Token1Price.IsZero())
	assert.True(t, p.TrackedReserveETH.IsZero())
	assert.True(t, p.ReserveUSD.IsZero())
	assert.True(t, p.ReserveETH.Equal(d("3")))
}

func TestHandleSync_MissingRecordsAreFatal(t *testing.T) {
	tests := []struct {
		name   string
		remove func(f *fixture)
		key    string
	}{
		{"factory", func(f *fixture) { f.stores.Factories = memory.NewFactoryStore() }, factoryAddr.Hex()},
		{"bundle", func(f *fixture) { f.stores.Bundles = memory.NewBundleStore() }, domain.BundleID},
		{"token", func(f *fixture) { f.stores.Tokens = memory.NewTokenStore() }, usdc.Hex()},
		{"pair", func(f *fixture) { f.stores.Pairs = memory.NewPairStore() }, pairAddr.Hex()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "2000")
			tt.remove(f)
			f.tracker = NewTracker(Options{
				Stores:     f.stores,
				Oracle:     pricing.NewStaticOracle(d("2000"), nil),
				Classifier: pricing.NewWhitelist(nil, nil),
				Factory:    factoryAddr,
				Logger:     logging.Discard(),
			})

			err := f.tracker.HandleSync(f.ctx, &domain.ReserveSync{Meta: meta("0x01"), Reserve0: big.NewInt(1), Reserve1: big.NewInt(1)})
			require.ErrorIs(t, err, storage.ErrMissingRecord)
			assert.Contains(t, err.Error(), tt.name)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}
