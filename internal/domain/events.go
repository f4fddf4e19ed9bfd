package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// EventMeta locates an event on chain and carries its transaction context.
type EventMeta struct {
	Contract    common.Address // emitting contract
	TxHash      common.Hash
	TxIndex     uint
	TxFrom      common.Address  // originating account
	TxTo        *common.Address // top-level target, nil for contract creation
	BlockNumber uint64
	Timestamp   int64 // block timestamp, unix seconds
	LogIndex    uint
}

// TxTarget returns the top-level target, or the zero address when absent.
func (m EventMeta) TxTarget() common.Address {
	if m.TxTo == nil {
		return common.Address{}
	}
	return *m.TxTo
}

// LiquidityTransfer is an LP token Transfer emitted by a pair.
type LiquidityTransfer struct {
	Meta  EventMeta
	From  common.Address
	To    common.Address
	Value *big.Int
}

// ReserveSync is a pair Sync with raw reserves.
type ReserveSync struct {
	Meta     EventMeta
	Reserve0 *big.Int
	Reserve1 *big.Int
}

// Swap is a pair Swap with raw amounts.
type Swap struct {
	Meta       EventMeta
	Sender     common.Address
	Amount0In  *big.Int
	Amount1In  *big.Int
	Amount0Out *big.Int
	Amount1Out *big.Int
	To         common.Address
}

// PairCreated is the factory event that registers a new pair.
type PairCreated struct {
	Meta   EventMeta
	Token0 common.Address
	Token1 common.Address
	Pair   common.Address
	Index  *big.Int // pair count after creation
}
