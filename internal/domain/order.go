package domain

import "time"

// OrderType distinguishes the four supported order types.
type OrderType string

const (
	OrderTypeLimit  OrderType = "limit"
	OrderTypeMarket OrderType = "market"
	OrderTypeIOC    OrderType = "ioc"
	OrderTypeFOK    OrderType = "fok"
)

// Rests reports whether an unfilled remainder of this order type is
// placed on the book. Market, IOC, and FOK remainders never rest.
func (t OrderType) Rests() bool {
	return t == OrderTypeLimit
}

// OrderSide indicates whether an order is a bid (buy) or ask (sell).
type OrderSide string

const (
	OrderSideBid OrderSide = "bid"
	OrderSideAsk OrderSide = "ask"
)

// Opposite returns the other side of the book.
func (s OrderSide) Opposite() OrderSide {
	if s == OrderSideBid {
		return OrderSideAsk
	}
	return OrderSideBid
}

// OrderStatus represents the lifecycle state of an order. Transitions are
// one-directional: a terminal status never reopens.
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "pending"
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	OrderStatusFilled          OrderStatus = "filled"
	OrderStatusCancelled       OrderStatus = "cancelled"
	OrderStatusRejected        OrderStatus = "rejected"
)

// Terminal reports whether the status permits no further transitions.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected:
		return true
	}
	return false
}

// Order represents a single submitted instruction. Once accepted it is
// owned exclusively by its symbol's order book: all mutation happens
// inside the book's single-writer boundary, and RemainingQuantity only
// ever decreases.
type Order struct {
	OrderID           string
	Type              OrderType
	Side              OrderSide
	Symbol            string
	Price             int64 // cents; 0 means no price bound (market, unpriced IOC/FOK)
	Quantity          int64
	FilledQuantity    int64
	RemainingQuantity int64
	CancelledQuantity int64
	Sequence          uint64 // arrival sequence, assigned at acceptance
	Status            OrderStatus
	RejectReason      string // set when Status is rejected
	CreatedAt         time.Time
	CancelledAt       *time.Time
	Trades            []*Trade
}

// AveragePrice computes the volume-weighted average execution price
// as sum(trade.price × trade.quantity) / filled_quantity using integer
// arithmetic. Returns (price, true) when trades exist, or (0, false)
// when no trades have been executed.
func (o *Order) AveragePrice() (int64, bool) {
	if len(o.Trades) == 0 || o.FilledQuantity == 0 {
		return 0, false
	}
	var total int64
	for _, t := range o.Trades {
		total += t.Price * t.Quantity
	}
	return total / o.FilledQuantity, true
}
