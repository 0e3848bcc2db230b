package service

import (
	"fmt"
	"regexp"

	"github.com/efreitasn/nmsbook/internal/domain"
	"github.com/efreitasn/nmsbook/internal/engine"
	"github.com/efreitasn/nmsbook/internal/store"
)

var (
	orderIDRegex     = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)
	orderSymbolRegex = regexp.MustCompile(`^[A-Z]{1,10}$`)
)

// ValidOrderTypes lists the supported order type values for validation.
var ValidOrderTypes = map[domain.OrderType]bool{
	domain.OrderTypeLimit:  true,
	domain.OrderTypeMarket: true,
	domain.OrderTypeIOC:    true,
	domain.OrderTypeFOK:    true,
}

// SubmitOrderRequest represents the input for order submission.
type SubmitOrderRequest struct {
	OrderID  string // optional client-chosen id; empty means engine-assigned
	Type     domain.OrderType
	Side     domain.OrderSide
	Symbol   string
	Price    *float64 // dollars; required for limit, optional for ioc/fok, must be nil for market
	Quantity int64
}

// OrderService handles order submission, retrieval, and cancellation.
type OrderService struct {
	matcher    *engine.Matcher
	orderStore *store.OrderStore
}

// NewOrderService creates a new OrderService with the given dependencies.
func NewOrderService(matcher *engine.Matcher, orderStore *store.OrderStore) *OrderService {
	return &OrderService{
		matcher:    matcher,
		orderStore: orderStore,
	}
}

// SubmitOrder validates the request, converts it to a domain order, and
// runs it through the matching engine. Validation failures here are
// caller-shape problems and return before the engine is involved; the
// engine performs its own final validation and rejection accounting.
func (s *OrderService) SubmitOrder(req SubmitOrderRequest) (*domain.Order, error) {
	if !ValidOrderTypes[req.Type] {
		return nil, &domain.ValidationError{
			Message: fmt.Sprintf("Unknown order type: %s. Must be one of: limit, market, ioc, fok", req.Type),
		}
	}
	if req.OrderID != "" && !orderIDRegex.MatchString(req.OrderID) {
		return nil, &domain.ValidationError{
			Message: "order_id must match ^[a-zA-Z0-9_-]{1,64}$",
		}
	}
	if req.Side != domain.OrderSideBid && req.Side != domain.OrderSideAsk {
		return nil, &domain.ValidationError{
			Message: "side must be 'bid' or 'ask'",
		}
	}
	if !orderSymbolRegex.MatchString(req.Symbol) {
		return nil, &domain.ValidationError{
			Message: "symbol must match ^[A-Z]{1,10}$",
		}
	}
	if req.Quantity <= 0 {
		return nil, &domain.ValidationError{
			Message: "quantity must be a positive integer",
		}
	}

	priceCents, err := s.priceCents(req)
	if err != nil {
		return nil, err
	}

	order := &domain.Order{
		OrderID:  req.OrderID,
		Type:     req.Type,
		Side:     req.Side,
		Symbol:   req.Symbol,
		Price:    priceCents,
		Quantity: req.Quantity,
	}

	if _, err := s.matcher.Submit(order); err != nil {
		return nil, err
	}
	return order, nil
}

// priceCents applies the per-type price rules and converts dollars to
// cents. Market orders must not carry a price; limit orders must; IOC
// and FOK may omit it to run unbounded.
func (s *OrderService) priceCents(req SubmitOrderRequest) (int64, error) {
	switch req.Type {
	case domain.OrderTypeMarket:
		if req.Price != nil {
			return 0, &domain.ValidationError{
				Message: "market orders must not include price",
			}
		}
		return 0, nil
	case domain.OrderTypeLimit:
		if req.Price == nil {
			return 0, &domain.ValidationError{
				Message: "price is required for limit orders",
			}
		}
	}

	if req.Price == nil {
		// Unpriced IOC/FOK: no bound.
		return 0, nil
	}
	if *req.Price <= 0 {
		return 0, &domain.ValidationError{
			Message: "price must be greater than 0",
		}
	}
	cents, err := domain.DollarsToCents(*req.Price)
	if err != nil {
		return 0, &domain.ValidationError{
			Message: "price must have at most 2 decimal places",
		}
	}
	return cents, nil
}

// GetOrder retrieves an order by ID with all its trades.
func (s *OrderService) GetOrder(orderID string) (*domain.Order, error) {
	return s.orderStore.Get(orderID)
}

// CancelOrder cancels a resting order.
func (s *OrderService) CancelOrder(orderID string) (*domain.Order, error) {
	return s.matcher.Cancel(orderID)
}
