package engine

import (
	"testing"

	"github.com/efreitasn/nmsbook/internal/domain"
)

func streamEvent(seq uint64) domain.Event {
	return domain.Event{
		Sequence: seq,
		Type:     domain.EventOrderAccepted,
		Symbol:   "TEST",
	}
}

func TestEventLog_AppendAndReplay(t *testing.T) {
	log := NewEventLog()

	log.Append(streamEvent(1), streamEvent(2))
	log.Append(streamEvent(3))

	if log.Len() != 3 {
		t.Fatalf("expected length 3, got %d", log.Len())
	}

	all := log.Since(0)
	if len(all) != 3 {
		t.Fatalf("expected 3 events from offset 0, got %d", len(all))
	}
	for i, ev := range all {
		if ev.Sequence != uint64(i+1) {
			t.Errorf("expected sequence %d at index %d, got %d", i+1, i, ev.Sequence)
		}
	}

	tail := log.Since(2)
	if len(tail) != 1 || tail[0].Sequence != 3 {
		t.Errorf("expected only the third event from offset 2, got %+v", tail)
	}

	if got := log.Since(10); len(got) != 0 {
		t.Errorf("expected no events past the end, got %d", len(got))
	}
	if got := log.Since(-5); len(got) != 3 {
		t.Errorf("expected negative offset to replay everything, got %d", len(got))
	}
}

func TestEventLog_SinceReturnsCopy(t *testing.T) {
	log := NewEventLog()
	log.Append(streamEvent(1))

	got := log.Since(0)
	got[0].Sequence = 99

	if log.Since(0)[0].Sequence != 1 {
		t.Error("mutating a replay slice must not affect the log")
	}
}

func TestEventLog_SubscribeReceivesInOrder(t *testing.T) {
	log := NewEventLog()
	sub := log.Subscribe(8)
	defer log.Unsubscribe(sub)

	log.Append(streamEvent(1), streamEvent(2), streamEvent(3))

	for want := uint64(1); want <= 3; want++ {
		ev := <-sub.Events()
		if ev.Sequence != want {
			t.Fatalf("expected sequence %d, got %d", want, ev.Sequence)
		}
	}
}

func TestEventLog_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	log := NewEventLog()
	sub := log.Subscribe(1)
	defer log.Unsubscribe(sub)

	// Second append overflows the buffer; Append must not block.
	log.Append(streamEvent(1))
	log.Append(streamEvent(2))

	ev := <-sub.Events()
	if ev.Sequence != 1 {
		t.Fatalf("expected the buffered event, got %d", ev.Sequence)
	}
	select {
	case ev := <-sub.Events():
		t.Fatalf("expected the overflow event to be dropped, got %d", ev.Sequence)
	default:
	}

	// The log itself keeps everything.
	if log.Len() != 2 {
		t.Errorf("expected both events in the log, got %d", log.Len())
	}
}

func TestEventLog_UnsubscribeClosesChannel(t *testing.T) {
	log := NewEventLog()
	sub := log.Subscribe(1)

	log.Unsubscribe(sub)
	if _, ok := <-sub.Events(); ok {
		t.Error("expected the channel closed after unsubscribe")
	}

	// Double unsubscribe is a no-op, not a double close.
	log.Unsubscribe(sub)
}
