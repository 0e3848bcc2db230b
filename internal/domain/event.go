package domain

import "time"

// EventType tags the variants of the engine's event stream.
type EventType string

const (
	EventOrderAccepted    EventType = "order_accepted"
	EventOrderRejected    EventType = "order_rejected"
	EventOrderCancelled   EventType = "order_cancelled"
	EventTradeExecuted    EventType = "trade_executed"
	EventBookLevelChanged EventType = "book_level_changed"
)

// BookLevelChange describes the new aggregate state of one price level
// after an operation. Quantity 0 means the level was removed.
type BookLevelChange struct {
	Side     OrderSide `json:"side"`
	Price    int64     `json:"price"`
	Quantity int64     `json:"quantity"`
}

// Event is one entry in the engine's append-only ordered stream. It is a
// closed tagged variant: Type selects which optional payload fields are
// set. Events carry the same sequence domain as order arrivals and
// trades, so replaying the stream from offset 0 reconstructs book state.
type Event struct {
	Sequence   uint64           `json:"sequence"`
	Type       EventType        `json:"type"`
	Symbol     string           `json:"symbol"`
	OrderID    string           `json:"order_id,omitempty"`
	Reason     string           `json:"reason,omitempty"` // order_rejected only
	Trade      *Trade           `json:"trade,omitempty"`  // trade_executed only
	Level      *BookLevelChange `json:"level,omitempty"`  // book_level_changed only
	OccurredAt time.Time        `json:"occurred_at"`
}
