package replay

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"dex-ledger/internal/domain"
)

// EventType represents the type of event.
type EventType string

// Event type constants.
const (
	EventTypePairCreated EventType = "pair_created"
	EventTypeTransfer    EventType = "transfer"
	EventTypeSync        EventType = "sync"
	EventTypeSwap        EventType = "swap"
)

// Event is one decoded log in chain order.
// Exactly one payload field is set, matching Type.
type Event struct {
	Type        EventType
	BlockNumber uint64
	TxIndex     uint
	LogIndex    uint
	TxHash      common.Hash
	Timestamp   int64

	PairCreated *domain.PairCreated
	Transfer    *domain.LiquidityTransfer
	Sync        *domain.ReserveSync
	Swap        *domain.Swap
}

// NewEvent wraps a payload, copying its position from meta.
func NewEvent(meta domain.EventMeta, payload interface{}) *Event {
	e := &Event{
		BlockNumber: meta.BlockNumber,
		TxIndex:     meta.TxIndex,
		LogIndex:    meta.LogIndex,
		TxHash:      meta.TxHash,
		Timestamp:   meta.Timestamp,
	}
	switch p := payload.(type) {
	case *domain.PairCreated:
		e.Type, e.PairCreated = EventTypePairCreated, p
	case *domain.LiquidityTransfer:
		e.Type, e.Transfer = EventTypeTransfer, p
	case *domain.ReserveSync:
		e.Type, e.Sync = EventTypeSync, p
	case *domain.Swap:
		e.Type, e.Swap = EventTypeSwap, p
	}
	return e
}

// Engine processes events in deterministic order.
type Engine interface {
	// OnEvent is called for each event in order.
	// Events are guaranteed to be ordered by (block, tx_index, log_index).
	OnEvent(ctx context.Context, event *Event) error
}

// EngineFunc adapts a function to Engine.
type EngineFunc func(ctx context.Context, event *Event) error

func (f EngineFunc) OnEvent(ctx context.Context, event *Event) error { return f(ctx, event) }
