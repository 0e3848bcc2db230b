package feed

import "sync"

// Subscription is one subscriber's buffered view of a hub.
type Subscription[T any] struct {
	ch chan T
}

// C returns the subscription's receive channel. It is closed by
// Unsubscribe.
func (s *Subscription[T]) C() <-chan T {
	return s.ch
}

// Hub fans values out to any number of subscribers. Delivery is
// best-effort: a subscriber whose buffer is full misses the value
// rather than blocking the publisher, which keeps slow WebSocket
// clients from ever stalling the matching path.
type Hub[T any] struct {
	mu   sync.RWMutex
	subs map[*Subscription[T]]struct{}
}

// NewHub creates an empty hub.
func NewHub[T any]() *Hub[T] {
	return &Hub[T]{subs: make(map[*Subscription[T]]struct{})}
}

// Subscribe registers a subscriber with the given channel buffer.
func (h *Hub[T]) Subscribe(buffer int) *Subscription[T] {
	sub := &Subscription[T]{ch: make(chan T, buffer)}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub[T]) Unsubscribe(sub *Subscription[T]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub]; !ok {
		return
	}
	delete(h.subs, sub)
	close(sub.ch)
}

// Broadcast delivers value to every subscriber with buffer room.
func (h *Hub[T]) Broadcast(value T) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		select {
		case sub.ch <- value:
		default:
		}
	}
}
