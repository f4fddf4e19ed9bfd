package ethlog

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dex-ledger/internal/replay"
)

var (
	factory = common.HexToAddress("0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f")
	pair    = common.HexToAddress("0xB4e16d0168e52d35CaCD2c6185b44281Ec28C9Dc")
	router  = common.HexToAddress("0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D")
	trader  = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	usdc    = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	weth    = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
)

func addrTopic(a common.Address) common.Hash { return common.BytesToHash(a.Bytes()) }

func packData(t *testing.T, event string, values ...interface{}) []byte {
	t.Helper()
	data, err := EventsABI.Events[event].Inputs.NonIndexed().Pack(values...)
	require.NoError(t, err)
	return data
}

func baseLog(topics []common.Hash, data []byte) types.Log {
	return types.Log{
		Address:     pair,
		Topics:      topics,
		Data:        data,
		BlockNumber: 10_000_835,
		TxHash:      common.HexToHash("0x01"),
		TxIndex:     4,
		Index:       17,
	}
}

func txCtx() TxContext {
	return TxContext{From: trader, To: &router, Timestamp: 1589000000}
}

func TestDecode_Swap(t *testing.T) {
	lg := baseLog(
		[]common.Hash{SwapTopic, addrTopic(router), addrTopic(trader)},
		packData(t, "Swap", big.NewInt(0), big.NewInt(1e18), big.NewInt(2000e6), big.NewInt(0)),
	)

	ev, err := NewDecoder(factory).Decode(lg, txCtx())
	require.NoError(t, err)

	assert.Equal(t, replay.EventTypeSwap, ev.Type)
	require.NotNil(t, ev.Swap)
	assert.Equal(t, router, ev.Swap.Sender)
	assert.Equal(t, trader, ev.Swap.To)
	assert.Equal(t, int64(1e18), ev.Swap.Amount1In.Int64())
	assert.Equal(t, int64(2000e6), ev.Swap.Amount0Out.Int64())
	assert.Zero(t, ev.Swap.Amount0In.Sign())

	meta := ev.Swap.Meta
	assert.Equal(t, pair, meta.Contract)
	assert.Equal(t, trader, meta.TxFrom)
	assert.Equal(t, router, meta.TxTarget())
	assert.Equal(t, uint64(10_000_835), ev.BlockNumber)
	assert.Equal(t, uint(4), ev.TxIndex)
	assert.Equal(t, uint(17), ev.LogIndex)
	assert.Equal(t, int64(1589000000), ev.Timestamp)
}

func TestDecode_Sync(t *testing.T) {
	lg := baseLog([]common.Hash{SyncTopic}, packData(t, "Sync", big.NewInt(5), big.NewInt(7)))

	ev, err := NewDecoder(factory).Decode(lg, TxContext{})
	require.NoError(t, err)
	require.NotNil(t, ev.Sync)
	assert.Equal(t, int64(5), ev.Sync.Reserve0.Int64())
	assert.Equal(t, int64(7), ev.Sync.Reserve1.Int64())
	assert.Equal(t, common.Address{}, ev.Sync.Meta.TxTarget())
}

func TestDecode_Transfer(t *testing.T) {
	lg := baseLog(
		[]common.Hash{TransferTopic, addrTopic(common.Address{}), addrTopic(trader)},
		packData(t, "Transfer", big.NewInt(1000)),
	)

	ev, err := NewDecoder(factory).Decode(lg, txCtx())
	require.NoError(t, err)
	require.NotNil(t, ev.Transfer)
	assert.Equal(t, common.Address{}, ev.Transfer.From)
	assert.Equal(t, trader, ev.Transfer.To)
	assert.Equal(t, int64(1000), ev.Transfer.Value.Int64())
}

func TestDecode_PairCreated(t *testing.T) {
	lg := baseLog(
		[]common.Hash{PairCreatedTopic, addrTopic(usdc), addrTopic(weth)},
		packData(t, "PairCreated", pair, big.NewInt(1)),
	)
	lg.Address = factory

	ev, err := NewDecoder(factory).Decode(lg, txCtx())
	require.NoError(t, err)
	require.NotNil(t, ev.PairCreated)
	assert.Equal(t, usdc, ev.PairCreated.Token0)
	assert.Equal(t, weth, ev.PairCreated.Token1)
	assert.Equal(t, pair, ev.PairCreated.Pair)
	assert.Equal(t, int64(1), ev.PairCreated.Index.Int64())
}

func TestDecode_PairCreatedFromOtherFactory(t *testing.T) {
	lg := baseLog(
		[]common.Hash{PairCreatedTopic, addrTopic(usdc), addrTopic(weth)},
		packData(t, "PairCreated", pair, big.NewInt(1)),
	)
	lg.Address = common.HexToAddress("0xC0AEe478e3658e2610c5F7A4A2E1777cE9e4f2Ac")

	_, err := NewDecoder(factory).Decode(lg, txCtx())
	assert.ErrorIs(t, err, ErrUnknownEvent)
}

func TestDecode_Unknown(t *testing.T) {
	d := NewDecoder(factory)

	_, err := d.Decode(baseLog(nil, nil), txCtx())
	assert.ErrorIs(t, err, ErrUnknownEvent)

	approval := common.HexToHash("0x8c5be1e5ebec7d5bd14f71427d1e84f3dd0314c0f7b2291e5b200ac8c7c3b925")
	_, err = d.Decode(baseLog([]common.Hash{approval}, nil), txCtx())
	assert.ErrorIs(t, err, ErrUnknownEvent)
}

func TestDecode_Malformed(t *testing.T) {
	d := NewDecoder(factory)

	// ERC-20 style transfer with a single indexed topic
	_, err := d.Decode(baseLog([]common.Hash{TransferTopic, addrTopic(trader)}, nil), txCtx())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnknownEvent)

	_, err = d.Decode(baseLog([]common.Hash{SyncTopic}, []byte{0x01}), txCtx())
	require.Error(t, err)
}

func TestTopics(t *testing.T) {
	assert.Equal(t, "0xd78ad95fa46c994b6551d0da85fc275fe613ce37657fb8d5e3d130840159d822", SwapTopic.Hex())
	assert.Equal(t, "0x1c411e9a96e071241c2f21f7726b17ae89e3cab4c78be50e062b03a9fffbbad1", SyncTopic.Hex())
	assert.Equal(t, "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef", TransferTopic.Hex())
	assert.Equal(t, "0x0d3648bd0f6ba80134a33ba9275ac585d9d315f0ad8355cddefde31afa28d0e9", PairCreatedTopic.Hex())
	assert.Len(t, PairTopics(), 3)
}
