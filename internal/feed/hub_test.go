package feed

import "testing"

func TestHub_BroadcastToAllSubscribers(t *testing.T) {
	hub := NewHub[int]()
	a := hub.Subscribe(4)
	b := hub.Subscribe(4)
	defer hub.Unsubscribe(a)
	defer hub.Unsubscribe(b)

	hub.Broadcast(1)
	hub.Broadcast(2)

	for _, sub := range []*Subscription[int]{a, b} {
		if got := <-sub.C(); got != 1 {
			t.Errorf("expected 1, got %d", got)
		}
		if got := <-sub.C(); got != 2 {
			t.Errorf("expected 2, got %d", got)
		}
	}
}

func TestHub_FullSubscriberDropsValue(t *testing.T) {
	hub := NewHub[int]()
	sub := hub.Subscribe(1)
	defer hub.Unsubscribe(sub)

	hub.Broadcast(1)
	hub.Broadcast(2)

	if got := <-sub.C(); got != 1 {
		t.Fatalf("expected the buffered value, got %d", got)
	}
	select {
	case got := <-sub.C():
		t.Fatalf("expected the overflow value dropped, got %d", got)
	default:
	}
}

func TestHub_UnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub[int]()
	sub := hub.Subscribe(1)

	hub.Unsubscribe(sub)
	if _, ok := <-sub.C(); ok {
		t.Error("expected channel closed after unsubscribe")
	}

	// Repeat unsubscribe is a no-op.
	hub.Unsubscribe(sub)

	// Broadcasting with no subscribers must not panic.
	hub.Broadcast(1)
}
