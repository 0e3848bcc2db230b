package store

import (
	"fmt"
	"testing"

	"github.com/efreitasn/nmsbook/internal/domain"
)

func storeTrade(seq uint64) *domain.Trade {
	return &domain.Trade{
		TradeID:  fmt.Sprintf("t%d", seq),
		Symbol:   "AAPL",
		Sequence: seq,
	}
}

func TestTradeStore_AppendAndGetBySymbol(t *testing.T) {
	s := NewTradeStore(0)

	s.Append("AAPL", storeTrade(1))
	s.Append("AAPL", storeTrade(2))
	s.Append("MSFT", storeTrade(3))

	aapl := s.GetBySymbol("AAPL")
	if len(aapl) != 2 {
		t.Fatalf("expected 2 AAPL trades, got %d", len(aapl))
	}
	if aapl[0].Sequence != 1 || aapl[1].Sequence != 2 {
		t.Error("expected chronological order")
	}

	if got := s.GetBySymbol("GOOG"); len(got) != 0 {
		t.Errorf("expected empty slice for unknown symbol, got %d", len(got))
	}
}

func TestTradeStore_WindowEvictsOldest(t *testing.T) {
	s := NewTradeStore(3)

	for seq := uint64(1); seq <= 5; seq++ {
		s.Append("AAPL", storeTrade(seq))
	}

	got := s.GetBySymbol("AAPL")
	if len(got) != 3 {
		t.Fatalf("expected window of 3, got %d", len(got))
	}
	if got[0].Sequence != 3 || got[2].Sequence != 5 {
		t.Errorf("expected trades 3..5 retained, got %d..%d", got[0].Sequence, got[2].Sequence)
	}
}

func TestTradeStore_RecentNewestFirst(t *testing.T) {
	s := NewTradeStore(0)
	for seq := uint64(1); seq <= 5; seq++ {
		s.Append("AAPL", storeTrade(seq))
	}

	got := s.Recent("AAPL", 3)
	if len(got) != 3 {
		t.Fatalf("expected 3 trades, got %d", len(got))
	}
	for i, want := range []uint64{5, 4, 3} {
		if got[i].Sequence != want {
			t.Errorf("expected sequence %d at index %d, got %d", want, i, got[i].Sequence)
		}
	}

	// Asking for more than retained returns everything.
	if got := s.Recent("AAPL", 100); len(got) != 5 {
		t.Errorf("expected all 5 trades, got %d", len(got))
	}
	if got := s.Recent("GOOG", 10); len(got) != 0 {
		t.Errorf("expected no trades for unknown symbol, got %d", len(got))
	}
}

func TestTradeStore_GetBySymbolReturnsCopy(t *testing.T) {
	s := NewTradeStore(0)
	s.Append("AAPL", storeTrade(1))
	s.Append("AAPL", storeTrade(2))

	got := s.GetBySymbol("AAPL")
	got[0] = storeTrade(99)

	if s.GetBySymbol("AAPL")[0].Sequence != 1 {
		t.Error("mutating the returned slice must not affect the store")
	}
}
