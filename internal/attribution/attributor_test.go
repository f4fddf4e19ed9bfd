package attribution

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dex-ledger/internal/domain"
	"dex-ledger/internal/identity"
	"dex-ledger/internal/idhash"
	"dex-ledger/internal/ledger"
	"dex-ledger/internal/logging"
	"dex-ledger/internal/pricing"
	"dex-ledger/internal/storage"
	"dex-ledger/internal/storage/memory"
)

var (
	factoryAddr = common.HexToAddress("0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f")
	router      = common.HexToAddress("0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D")
	router2     = common.HexToAddress("0xd9e1cE17f2641f24aE83637ab66a2cca9C378B9F")

	tokenA = common.HexToAddress("0x00000000000000000000000000000000000000aa") // whitelisted
	tokenB = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	tokenC = common.HexToAddress("0x00000000000000000000000000000000000000cc")

	pairAB = common.HexToAddress("0x0000000000000000000000000000000000000a0b")
	pairBC = common.HexToAddress("0x0000000000000000000000000000000000000b0c")

	wallet    = common.HexToAddress("0x0000000000000000000000000000000000001111")
	recipient = common.HexToAddress("0x0000000000000000000000000000000000002222")
	vault     = common.HexToAddress("0x0000000000000000000000000000000000003333")
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func wei(whole int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(whole), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

type fixture struct {
	ctx    context.Context
	stores storage.Stores
	attr   *Attributor
}

func newFixture(t *testing.T, ethPrice string) *fixture {
	t.Helper()
	ctx := context.Background()
	stores := memory.NewStores()

	require.NoError(t, stores.Factories.Put(ctx, &domain.Factory{Address: factoryAddr}))
	require.NoError(t, stores.Bundles.Put(ctx, &domain.Bundle{ID: domain.BundleID, EthPriceUSD: d(ethPrice)}))
	for addr, derived := range map[common.Address]string{tokenA: "1", tokenB: "0.5", tokenC: "0.25"} {
		require.NoError(t, stores.Tokens.Put(ctx, &domain.Token{Address: addr, Decimals: 18, DerivedETH: d(derived)}))
	}
	require.NoError(t, stores.Pairs.Put(ctx, &domain.Pair{Address: pairAB, Token0: tokenA, Token1: tokenB}))
	require.NoError(t, stores.Pairs.Put(ctx, &domain.Pair{Address: pairBC, Token0: tokenB, Token1: tokenC}))

	log := logging.Discard()
	attr := New(Options{
		Stores:     stores,
		Ledger:     ledger.New(stores.Positions, stores.Users, log),
		Resolver:   identity.NewResolver([]common.Address{router, router2}),
		Classifier: pricing.NewWhitelist([]common.Address{tokenA}, nil),
		Factory:    factoryAddr,
		Logger:     log,
	})
	return &fixture{ctx: ctx, stores: stores, attr: attr}
}

func swapMeta(pair common.Address, txTo *common.Address, logIndex uint) domain.EventMeta {
	return domain.EventMeta{
		Contract:    pair,
		TxHash:      common.HexToHash("0xabc"),
		TxFrom:      wallet,
		TxTo:        txTo,
		BlockNumber: 10,
		Timestamp:   1600000000,
		LogIndex:    logIndex,
	}
}

func zero() *big.Int { return big.NewInt(0) }

func (f *fixture) position(t *testing.T, user, token common.Address) *domain.Position {
	t.Helper()
	p, err := f.stores.Positions.Get(f.ctx, user, token)
	require.NoError(t, err)
	return p
}

func (f *fixture) noPosition(t *testing.T, user, token common.Address) {
	t.Helper()
	_, err := f.stores.Positions.Get(f.ctx, user, token)
	assert.ErrorIs(t, err, storage.ErrNotFound, "unexpected position %s/%s", user.Hex(), token.Hex())
}

func TestDisposedToken(t *testing.T) {
	tests := []struct {
		out0, out1 string
		want       Side
	}{
		{"5", "3", Token1}, // both non-zero: the smaller out amount is the sold side
		{"3", "5", Token0},
		{"0", "7", Token0},
		{"7", "0", Token1},
		{"4", "4", Token1},
		{"0", "0", Token1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DisposedToken(d(tt.out0), d(tt.out1)), "out0=%s out1=%s", tt.out0, tt.out1)
	}
}

func TestHandleSwap_MultiHopChain(t *testing.T) {
	f := newFixture(t, "2000")

	// A -> B on pairAB, paid straight into pairBC
	first, err := f.attr.HandleSwap(f.ctx, &domain.Swap{
		Meta:       swapMeta(pairAB, &router, 1),
		Sender:     router,
		Amount0In:  wei(10),
		Amount1In:  zero(),
		Amount0Out: zero(),
		Amount1Out: wei(20),
		To:         pairBC,
	})
	require.NoError(t, err)

	assert.False(t, first.Leg.Accounted)
	assert.True(t, first.ChainOpened)
	assert.False(t, first.SaleSkipped)
	require.NotNil(t, first.Sale)
	assert.Equal(t, idhash.PositionID(wallet, tokenA), first.Leg.CostBasisRef)
	assert.Equal(t, pairBC, first.Leg.Destination)
	assert.True(t, first.Leg.RouterSwap)
	assert.True(t, first.Leg.AmountUSD.Equal(d("20000")))

	tx, err := f.stores.Transactions.Get(f.ctx, common.HexToHash("0xabc"))
	require.NoError(t, err)
	assert.True(t, tx.ChainInProgress)

	// B -> C on pairBC, paid to the final recipient
	second, err := f.attr.HandleSwap(f.ctx, &domain.Swap{
		Meta:       swapMeta(pairBC, &router, 4),
		Sender:     router,
		Amount0In:  wei(20),
		Amount1In:  zero(),
		Amount0Out: zero(),
		Amount1Out: wei(40),
		To:         recipient,
	})
	require.NoError(t, err)

	assert.True(t, second.Leg.Accounted)
	assert.True(t, second.SaleSkipped)
	assert.True(t, second.ChainClosed)
	assert.Nil(t, second.Sale)
	assert.Empty(t, second.Leg.CostBasisRef)
	// neither side is whitelisted, so the derived value is used
	assert.True(t, second.Leg.AmountUSD.Equal(d("20000")), "amountUSD %s", second.Leg.AmountUSD)

	sold := f.position(t, wallet, tokenA)
	assert.Equal(t, int64(1), sold.SaleCount)
	assert.True(t, sold.UnrecognizableQuantity.Equal(d("10")))
	assert.True(t, sold.ContractAttributionDisproven)

	bought := f.position(t, recipient, tokenC)
	assert.True(t, bought.OutstandingQuantity.Equal(d("40")))
	assert.True(t, bought.WeightedAverageCostUSD.Equal(d("500")))

	f.noPosition(t, wallet, tokenB)
	f.noPosition(t, recipient, tokenB)
	f.noPosition(t, pairBC, tokenB)

	tx, err = f.stores.Transactions.Get(f.ctx, common.HexToHash("0xabc"))
	require.NoError(t, err)
	assert.False(t, tx.ChainInProgress)
	require.NotNil(t, tx.ChainBeneficiary)
	assert.Equal(t, recipient, *tx.ChainBeneficiary)
	assert.Equal(t, []string{first.Leg.ID, second.Leg.ID}, tx.SwapIDs)

	legs, err := f.stores.SwapLegs.GetByTransaction(f.ctx, tx.Hash)
	require.NoError(t, err)
	require.Len(t, legs, 2)
	assert.Equal(t, tx.Hash.Hex()+"-0", legs[0].ID)
	assert.Equal(t, tx.Hash.Hex()+"-1", legs[1].ID)
}

func TestHandleSwap_VolumeRollups(t *testing.T) {
	f := newFixture(t, "2000")

	_, err := f.attr.HandleSwap(f.ctx, &domain.Swap{
		Meta: swapMeta(pairAB, &router, 1), Sender: router,
		Amount0In: wei(10), Amount1In: zero(), Amount0Out: zero(), Amount1Out: wei(20),
		To: pairBC,
	})
	require.NoError(t, err)
	_, err = f.attr.HandleSwap(f.ctx, &domain.Swap{
		Meta: swapMeta(pairBC, &router, 2), Sender: router,
		Amount0In: wei(20), Amount1In: zero(), Amount0Out: zero(), Amount1Out: wei(40),
		To: recipient,
	})
	require.NoError(t, err)

	factory, err := f.stores.Factories.Get(f.ctx, factoryAddr)
	require.NoError(t, err)
	assert.Equal(t, int64(2), factory.TxCount)
	assert.True(t, factory.TotalVolumeUSD.Equal(d("20000")), "volumeUSD %s", factory.TotalVolumeUSD)
	assert.True(t, factory.TotalVolumeETH.Equal(d("10")), "volumeETH %s", factory.TotalVolumeETH)
	assert.True(t, factory.UntrackedVolumeUSD.Equal(d("40000")), "untracked %s", factory.UntrackedVolumeUSD)

	b, err := f.stores.Tokens.Get(f.ctx, tokenB)
	require.NoError(t, err)
	assert.Equal(t, int64(2), b.TxCount)
	assert.True(t, b.TradeVolume.Equal(d("40")))

	p, err := f.stores.Pairs.Get(f.ctx, pairAB)
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.TxCount)
	assert.True(t, p.VolumeToken0.Equal(d("10")))
	assert.True(t, p.VolumeToken1.Equal(d("20")))
	assert.True(t, p.VolumeUSD.Equal(d("20000")))
}

func TestHandleSwap_DualOutTieBreak(t *testing.T) {
	f := newFixture(t, "2000")

	out, err := f.attr.HandleSwap(f.ctx, &domain.Swap{
		Meta:       swapMeta(pairAB, nil, 1),
		Sender:     wallet,
		Amount0In:  wei(1),
		Amount1In:  wei(2),
		Amount0Out: wei(5),
		Amount1Out: wei(3),
		To:         wallet,
	})
	require.NoError(t, err)

	// token1 has the smaller out amount, so its in amount is the sale
	require.NotNil(t, out.Sale)
	assert.Equal(t, tokenB, out.Sale.Token)
	assert.Equal(t, idhash.PositionID(wallet, tokenB), out.Leg.CostBasisRef)
	assert.True(t, out.Leg.Accounted)
	assert.False(t, out.Leg.RouterSwap)

	pos := f.position(t, wallet, tokenB)
	assert.True(t, pos.UnrecognizableQuantity.Equal(d("2")))
	assert.True(t, pos.OutstandingQuantity.Equal(d("3")))
	assert.Equal(t, int64(1), pos.SaleCount)

	a := f.position(t, wallet, tokenA)
	assert.Zero(t, a.SaleCount)
	assert.True(t, a.OutstandingQuantity.Equal(d("5")))
}

func TestHandleSwap_RouterRecipientResolvesToOrigin(t *testing.T) {
	f := newFixture(t, "2000")

	out, err := f.attr.HandleSwap(f.ctx, &domain.Swap{
		Meta:       swapMeta(pairAB, &router, 1),
		Sender:     router,
		Amount0In:  zero(),
		Amount1In:  wei(4),
		Amount0Out: wei(2),
		Amount1Out: zero(),
		To:         router2,
	})
	require.NoError(t, err)

	assert.Equal(t, router2, out.Leg.To)
	assert.Equal(t, wallet, out.Leg.Destination)
	assert.True(t, out.Leg.Accounted)
	assert.False(t, out.ChainOpened)

	bought := f.position(t, wallet, tokenA)
	assert.True(t, bought.OutstandingQuantity.Equal(d("2")))
	f.noPosition(t, router2, tokenA)
}

func TestHandleSwap_ContractTargetIsDebitor(t *testing.T) {
	f := newFixture(t, "2000")

	out, err := f.attr.HandleSwap(f.ctx, &domain.Swap{
		Meta:       swapMeta(pairAB, &vault, 1),
		Sender:     router,
		Amount0In:  zero(),
		Amount1In:  wei(4),
		Amount0Out: wei(2),
		Amount1Out: zero(),
		To:         vault,
	})
	require.NoError(t, err)

	require.NotNil(t, out.Sale)
	assert.Equal(t, vault, out.Sale.User)
	assert.False(t, out.Sale.ContractAttributionDisproven)
	f.noPosition(t, wallet, tokenB)
}

func TestHandleSwap_ZeroEthPrice(t *testing.T) {
	f := newFixture(t, "0")

	out, err := f.attr.HandleSwap(f.ctx, &domain.Swap{
		Meta:       swapMeta(pairAB, nil, 1),
		Sender:     wallet,
		Amount0In:  wei(1),
		Amount1In:  zero(),
		Amount0Out: zero(),
		Amount1Out: wei(2),
		To:         wallet,
	})
	require.NoError(t, err)
	assert.True(t, out.Leg.AmountUSD.IsZero())

	factory, err := f.stores.Factories.Get(f.ctx, factoryAddr)
	require.NoError(t, err)
	assert.True(t, factory.TotalVolumeETH.IsZero())
	assert.Equal(t, int64(1), factory.TxCount)
}

func TestHandleSwap_MissingRecords(t *testing.T) {
	t.Run("pair", func(t *testing.T) {
		f := newFixture(t, "2000")
		unknown := common.HexToAddress("0xdead")
		_, err := f.attr.HandleSwap(f.ctx, &domain.Swap{
			Meta: swapMeta(unknown, nil, 1), Sender: wallet,
			Amount0In: zero(), Amount1In: zero(), Amount0Out: zero(), Amount1Out: zero(),
			To: wallet,
		})
		require.ErrorIs(t, err, storage.ErrMissingRecord)
		assert.Contains(t, err.Error(), unknown.Hex())
	})

	t.Run("bundle", func(t *testing.T) {
		f := newFixture(t, "2000")
		f.stores.Bundles = memory.NewBundleStore()
		f.attr = New(Options{
			Stores:     f.stores,
			Ledger:     ledger.New(f.stores.Positions, nil, nil),
			Resolver:   identity.NewResolver(nil),
			Classifier: pricing.NewWhitelist(nil, nil),
			Factory:    factoryAddr,
			Logger:     logging.Discard(),
		})
		_, err := f.attr.HandleSwap(f.ctx, &domain.Swap{
			Meta: swapMeta(pairAB, nil, 1), Sender: wallet,
			Amount0In: wei(1), Amount1In: zero(), Amount0Out: zero(), Amount1Out: wei(1),
			To: wallet,
		})
		require.ErrorIs(t, err, storage.ErrMissingRecord)
		assert.Contains(t, err.Error(), "bundle")

		_, err = f.stores.Transactions.Get(f.ctx, common.HexToHash("0xabc"))
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}
