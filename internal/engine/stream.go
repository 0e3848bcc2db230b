package engine

import (
	"sync"

	"github.com/efreitasn/nmsbook/internal/domain"
)

// Subscription is one consumer's view of the event stream. Events arrive
// on a buffered channel in append order.
type Subscription struct {
	ch chan domain.Event
}

// Events returns the subscription's receive channel. It is closed by
// Unsubscribe.
func (s *Subscription) Events() <-chan domain.Event {
	return s.ch
}

// EventLog is the engine's append-only, ordered stream of domain events.
// The matcher appends synchronously within each operation, while still
// holding the symbol's book lock, so stream order is exactly the order
// operations committed. A consumer replaying from offset 0 reconstructs
// book state identically to the live book.
//
// Fan-out is best-effort: a subscriber whose buffer is full misses the
// event rather than blocking matching. Consumers that need every event
// replay from the log instead of relying on their channel.
type EventLog struct {
	mu     sync.RWMutex
	events []domain.Event
	subs   map[*Subscription]struct{}
}

// NewEventLog creates an empty EventLog.
func NewEventLog() *EventLog {
	return &EventLog{
		subs: make(map[*Subscription]struct{}),
	}
}

// Append adds events to the log in order and broadcasts them to all
// subscribers.
func (l *EventLog) Append(events ...domain.Event) {
	if len(events) == 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, events...)
	for _, ev := range events {
		for sub := range l.subs {
			select {
			case sub.ch <- ev:
			default:
			}
		}
	}
}

// Subscribe registers a new consumer with the given channel buffer.
func (l *EventLog) Subscribe(buffer int) *Subscription {
	sub := &Subscription{ch: make(chan domain.Event, buffer)}
	l.mu.Lock()
	l.subs[sub] = struct{}{}
	l.mu.Unlock()
	return sub
}

// Unsubscribe removes a consumer and closes its channel.
func (l *EventLog) Unsubscribe(sub *Subscription) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.subs[sub]; !ok {
		return
	}
	delete(l.subs, sub)
	close(sub.ch)
}

// Since returns a copy of all events at log offset >= offset, oldest
// first. Since(0) replays the whole stream.
func (l *EventLog) Since(offset int) []domain.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if offset < 0 {
		offset = 0
	}
	if offset >= len(l.events) {
		return []domain.Event{}
	}
	out := make([]domain.Event, len(l.events)-offset)
	copy(out, l.events[offset:])
	return out
}

// Len returns the number of events appended so far.
func (l *EventLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}
