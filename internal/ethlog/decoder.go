// Package ethlog decodes Uniswap v2 pair and factory logs into replay events.
package ethlog

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"dex-ledger/internal/domain"
	"dex-ledger/internal/replay"
)

// ErrUnknownEvent is returned for logs this package does not decode.
var ErrUnknownEvent = errors.New("unknown event")

const eventsABIJSON = `[
	{"anonymous":false,"name":"Swap","type":"event","inputs":[
		{"indexed":true,"name":"sender","type":"address"},
		{"indexed":false,"name":"amount0In","type":"uint256"},
		{"indexed":false,"name":"amount1In","type":"uint256"},
		{"indexed":false,"name":"amount0Out","type":"uint256"},
		{"indexed":false,"name":"amount1Out","type":"uint256"},
		{"indexed":true,"name":"to","type":"address"}]},
	{"anonymous":false,"name":"Sync","type":"event","inputs":[
		{"indexed":false,"name":"reserve0","type":"uint112"},
		{"indexed":false,"name":"reserve1","type":"uint112"}]},
	{"anonymous":false,"name":"Transfer","type":"event","inputs":[
		{"indexed":true,"name":"from","type":"address"},
		{"indexed":true,"name":"to","type":"address"},
		{"indexed":false,"name":"value","type":"uint256"}]},
	{"anonymous":false,"name":"PairCreated","type":"event","inputs":[
		{"indexed":true,"name":"token0","type":"address"},
		{"indexed":true,"name":"token1","type":"address"},
		{"indexed":false,"name":"pair","type":"address"},
		{"indexed":false,"name":"","type":"uint256"}]}
]`

// EventsABI holds the decoded event definitions.
var EventsABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(eventsABIJSON))
	if err != nil {
		panic(fmt.Sprintf("parse events abi: %v", err))
	}
	return parsed
}()

// Topic hashes.
var (
	SwapTopic        = EventsABI.Events["Swap"].ID
	SyncTopic        = EventsABI.Events["Sync"].ID
	TransferTopic    = EventsABI.Events["Transfer"].ID
	PairCreatedTopic = EventsABI.Events["PairCreated"].ID
)

// PairTopics is the topic0 filter for pair logs.
func PairTopics() []common.Hash {
	return []common.Hash{TransferTopic, SyncTopic, SwapTopic}
}

// TxContext is the transaction and block data a log does not carry.
type TxContext struct {
	From      common.Address
	To        *common.Address
	Timestamp int64
}

// Decoder turns raw logs into events. PairCreated is accepted only from the
// configured factory.
type Decoder struct {
	factory common.Address
}

// NewDecoder creates a decoder for the given factory.
func NewDecoder(factory common.Address) *Decoder {
	return &Decoder{factory: factory}
}

// Decode converts one log. It returns ErrUnknownEvent for other topics and
// for PairCreated logs not emitted by the factory.
func (d *Decoder) Decode(lg types.Log, tx TxContext) (*replay.Event, error) {
	if len(lg.Topics) == 0 {
		return nil, ErrUnknownEvent
	}
	meta := domain.EventMeta{
		Contract:    lg.Address,
		TxHash:      lg.TxHash,
		TxIndex:     lg.TxIndex,
		TxFrom:      tx.From,
		TxTo:        tx.To,
		BlockNumber: lg.BlockNumber,
		Timestamp:   tx.Timestamp,
		LogIndex:    lg.Index,
	}

	var (
		payload interface{}
		err     error
	)
	switch lg.Topics[0] {
	case SwapTopic:
		payload, err = decodeSwap(lg, meta)
	case SyncTopic:
		payload, err = decodeSync(lg, meta)
	case TransferTopic:
		payload, err = decodeTransfer(lg, meta)
	case PairCreatedTopic:
		if lg.Address != d.factory {
			return nil, ErrUnknownEvent
		}
		payload, err = decodePairCreated(lg, meta)
	default:
		return nil, ErrUnknownEvent
	}
	if err != nil {
		return nil, fmt.Errorf("decode log %d in tx %s: %w", lg.Index, lg.TxHash.Hex(), err)
	}
	return replay.NewEvent(meta, payload), nil
}

func decodeSwap(lg types.Log, meta domain.EventMeta) (*domain.Swap, error) {
	if len(lg.Topics) != 3 {
		return nil, fmt.Errorf("swap: want 3 topics, got %d", len(lg.Topics))
	}
	var body struct {
		Amount0In  *big.Int
		Amount1In  *big.Int
		Amount0Out *big.Int
		Amount1Out *big.Int
	}
	if err := EventsABI.UnpackIntoInterface(&body, "Swap", lg.Data); err != nil {
		return nil, fmt.Errorf("swap: %w", err)
	}
	return &domain.Swap{
		Meta:       meta,
		Sender:     common.BytesToAddress(lg.Topics[1].Bytes()),
		Amount0In:  body.Amount0In,
		Amount1In:  body.Amount1In,
		Amount0Out: body.Amount0Out,
		Amount1Out: body.Amount1Out,
		To:         common.BytesToAddress(lg.Topics[2].Bytes()),
	}, nil
}

func decodeSync(lg types.Log, meta domain.EventMeta) (*domain.ReserveSync, error) {
	var body struct {
		Reserve0 *big.Int
		Reserve1 *big.Int
	}
	if err := EventsABI.UnpackIntoInterface(&body, "Sync", lg.Data); err != nil {
		return nil, fmt.Errorf("sync: %w", err)
	}
	return &domain.ReserveSync{Meta: meta, Reserve0: body.Reserve0, Reserve1: body.Reserve1}, nil
}

func decodeTransfer(lg types.Log, meta domain.EventMeta) (*domain.LiquidityTransfer, error) {
	if len(lg.Topics) != 3 {
		return nil, fmt.Errorf("transfer: want 3 topics, got %d", len(lg.Topics))
	}
	var body struct {
		Value *big.Int
	}
	if err := EventsABI.UnpackIntoInterface(&body, "Transfer", lg.Data); err != nil {
		return nil, fmt.Errorf("transfer: %w", err)
	}
	return &domain.LiquidityTransfer{
		Meta:  meta,
		From:  common.BytesToAddress(lg.Topics[1].Bytes()),
		To:    common.BytesToAddress(lg.Topics[2].Bytes()),
		Value: body.Value,
	}, nil
}

func decodePairCreated(lg types.Log, meta domain.EventMeta) (*domain.PairCreated, error) {
	if len(lg.Topics) != 3 {
		return nil, fmt.Errorf("pair created: want 3 topics, got %d", len(lg.Topics))
	}
	values, err := EventsABI.Unpack("PairCreated", lg.Data)
	if err != nil {
		return nil, fmt.Errorf("pair created: %w", err)
	}
	if len(values) != 2 {
		return nil, fmt.Errorf("pair created: want 2 values, got %d", len(values))
	}
	pair, ok := values[0].(common.Address)
	if !ok {
		return nil, fmt.Errorf("pair created: unexpected pair type %T", values[0])
	}
	index, ok := values[1].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("pair created: unexpected index type %T", values[1])
	}
	return &domain.PairCreated{
		Meta:   meta,
		Token0: common.BytesToAddress(lg.Topics[1].Bytes()),
		Token1: common.BytesToAddress(lg.Topics[2].Bytes()),
		Pair:   pair,
		Index:  index,
	}, nil
}
