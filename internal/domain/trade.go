package domain

import "time"

// Trade represents a matched execution between a resting (maker) order
// and an incoming (taker) order. The price is always the maker's resting
// price. Trades are immutable once created.
type Trade struct {
	TradeID       string    `json:"trade_id"`
	Symbol        string    `json:"symbol"`
	Price         int64     `json:"price"` // cents, the maker's price
	Quantity      int64     `json:"quantity"`
	MakerOrderID  string    `json:"maker_order_id"`
	TakerOrderID  string    `json:"taker_order_id"`
	AggressorSide OrderSide `json:"aggressor_side"`
	Sequence      uint64    `json:"sequence"`
	ExecutedAt    time.Time `json:"executed_at"`
}
