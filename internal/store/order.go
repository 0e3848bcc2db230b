package store

import (
	"sync"

	"github.com/efreitasn/nmsbook/internal/domain"
)

// OrderStore is a thread-safe in-memory index of every order the engine
// has seen, including filled, cancelled, and rejected ones. Orders are
// removed from the book when terminal, never from here.
type OrderStore struct {
	mu     sync.RWMutex
	orders map[string]*domain.Order
}

// NewOrderStore creates an empty OrderStore.
func NewOrderStore() *OrderStore {
	return &OrderStore{
		orders: make(map[string]*domain.Order),
	}
}

// Create adds an order to the store.
func (s *OrderStore) Create(o *domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders[o.OrderID] = o
}

// Get retrieves an order by ID. It returns
// domain.ErrOrderNotFound if the order does not exist.
func (s *OrderStore) Get(id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return o, nil
}

// Exists reports whether an order id is already known. Used for
// duplicate-id rejection.
func (s *OrderStore) Exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.orders[id]
	return ok
}
