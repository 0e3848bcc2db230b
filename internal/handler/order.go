package handler

import (
	"errors"
	"net/http"

	"github.com/efreitasn/nmsbook/internal/domain"
	"github.com/efreitasn/nmsbook/internal/service"
	"github.com/go-chi/chi/v5"
)

const timestampLayout = "2006-01-02T15:04:05Z"

// OrderHandler handles HTTP requests for order endpoints.
type OrderHandler struct {
	orderSvc *service.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orderSvc *service.OrderService) *OrderHandler {
	return &OrderHandler{orderSvc: orderSvc}
}

// submitOrderRequest is the JSON request body for POST /orders.
type submitOrderRequest struct {
	OrderID  string   `json:"order_id"`
	Type     string   `json:"type"`
	Side     string   `json:"side"`
	Symbol   string   `json:"symbol"`
	Price    *float64 `json:"price"`
	Quantity int64    `json:"quantity"`
}

// orderResponse is the JSON representation of an order. Price is omitted
// for unpriced orders (market, unbounded ioc/fok); nullable fields use
// pointers.
type orderResponse struct {
	OrderID           string          `json:"order_id"`
	Type              string          `json:"type"`
	Side              string          `json:"side"`
	Symbol            string          `json:"symbol"`
	Price             *float64        `json:"price,omitempty"`
	Quantity          int64           `json:"quantity"`
	FilledQuantity    int64           `json:"filled_quantity"`
	RemainingQuantity int64           `json:"remaining_quantity"`
	CancelledQuantity int64           `json:"cancelled_quantity"`
	Sequence          uint64          `json:"sequence,omitempty"`
	Status            string          `json:"status"`
	RejectReason      string          `json:"reject_reason,omitempty"`
	CreatedAt         string          `json:"created_at"`
	CancelledAt       *string         `json:"cancelled_at"`
	AveragePrice      *float64        `json:"average_price"`
	Trades            []tradeResponse `json:"trades"`
}

// tradeResponse is a single trade in the order response.
type tradeResponse struct {
	TradeID       string  `json:"trade_id"`
	Price         float64 `json:"price"`
	Quantity      int64   `json:"quantity"`
	MakerOrderID  string  `json:"maker_order_id"`
	TakerOrderID  string  `json:"taker_order_id"`
	AggressorSide string  `json:"aggressor_side"`
	ExecutedAt    string  `json:"executed_at"`
}

// SubmitOrder handles POST /orders.
func (h *OrderHandler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req submitOrderRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	order, err := h.orderSvc.SubmitOrder(service.SubmitOrderRequest{
		OrderID:  req.OrderID,
		Type:     domain.OrderType(req.Type),
		Side:     domain.OrderSide(req.Side),
		Symbol:   req.Symbol,
		Price:    req.Price,
		Quantity: req.Quantity,
	})
	if err != nil {
		mapOrderError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, buildOrderResponse(order))
}

// GetOrder handles GET /orders/{order_id}.
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "order_id")

	order, err := h.orderSvc.GetOrder(orderID)
	if err != nil {
		mapOrderError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildOrderResponse(order))
}

// CancelOrder handles DELETE /orders/{order_id}.
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "order_id")

	order, err := h.orderSvc.CancelOrder(orderID)
	if err != nil {
		mapOrderError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildOrderResponse(order))
}

// buildOrderResponse converts a domain order to its JSON shape.
func buildOrderResponse(o *domain.Order) orderResponse {
	trades := buildTradeResponses(o.Trades)

	var avgPrice *float64
	if avg, ok := o.AveragePrice(); ok {
		v := domain.CentsToDollars(avg)
		avgPrice = &v
	}

	resp := orderResponse{
		OrderID:           o.OrderID,
		Type:              string(o.Type),
		Side:              string(o.Side),
		Symbol:            o.Symbol,
		Quantity:          o.Quantity,
		FilledQuantity:    o.FilledQuantity,
		RemainingQuantity: o.RemainingQuantity,
		CancelledQuantity: o.CancelledQuantity,
		Sequence:          o.Sequence,
		Status:            string(o.Status),
		RejectReason:      o.RejectReason,
		CreatedAt:         o.CreatedAt.UTC().Format(timestampLayout),
		AveragePrice:      avgPrice,
		Trades:            trades,
	}

	if o.Price > 0 {
		p := domain.CentsToDollars(o.Price)
		resp.Price = &p
	}
	if o.CancelledAt != nil {
		s := o.CancelledAt.UTC().Format(timestampLayout)
		resp.CancelledAt = &s
	}

	return resp
}

// buildTradeResponses converts domain trades to response trades.
func buildTradeResponses(trades []*domain.Trade) []tradeResponse {
	result := make([]tradeResponse, len(trades))
	for i, t := range trades {
		result[i] = tradeResponse{
			TradeID:       t.TradeID,
			Price:         domain.CentsToDollars(t.Price),
			Quantity:      t.Quantity,
			MakerOrderID:  t.MakerOrderID,
			TakerOrderID:  t.TakerOrderID,
			AggressorSide: string(t.AggressorSide),
			ExecutedAt:    t.ExecutedAt.UTC().Format(timestampLayout),
		}
	}
	return result
}

// mapOrderError maps domain errors to HTTP responses for order endpoints.
func mapOrderError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
		return
	}

	switch {
	case errors.Is(err, domain.ErrInvalidOrder):
		WriteError(w, http.StatusBadRequest, "invalid_order", err.Error())
	case errors.Is(err, domain.ErrDuplicateOrderID):
		WriteError(w, http.StatusConflict, "duplicate_order_id", err.Error())
	case errors.Is(err, domain.ErrOrderNotFound):
		WriteError(w, http.StatusNotFound, "order_not_found", err.Error())
	case errors.Is(err, domain.ErrUnfillable):
		WriteError(w, http.StatusConflict, "unfillable", err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
