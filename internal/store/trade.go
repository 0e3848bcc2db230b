package store

import (
	"sync"

	"github.com/efreitasn/nmsbook/internal/domain"
)

// TradeStore is a thread-safe in-memory store for executed trades,
// keyed by symbol. Trades are append-only and chronological, with a
// rolling window per symbol so long-running processes don't grow
// without bound. Window 0 means unbounded.
type TradeStore struct {
	mu     sync.RWMutex
	window int
	trades map[string][]*domain.Trade // symbol → trades (chronological)
}

// NewTradeStore creates an empty TradeStore keeping at most window
// trades per symbol.
func NewTradeStore(window int) *TradeStore {
	return &TradeStore{
		window: window,
		trades: make(map[string][]*domain.Trade),
	}
}

// Append adds a trade to the symbol's chronological list, evicting the
// oldest trade when the window is full.
func (s *TradeStore) Append(symbol string, t *domain.Trade) {
	s.mu.Lock()
	defer s.mu.Unlock()

	trades := append(s.trades[symbol], t)
	if s.window > 0 && len(trades) > s.window {
		trades = trades[len(trades)-s.window:]
	}
	s.trades[symbol] = trades
}

// GetBySymbol returns all retained trades for a symbol in chronological
// order. Returns an empty slice if no trades exist for the symbol.
func (s *TradeStore) GetBySymbol(symbol string) []*domain.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trades := s.trades[symbol]
	if trades == nil {
		return []*domain.Trade{}
	}

	// Return a copy to avoid callers mutating the internal slice.
	result := make([]*domain.Trade, len(trades))
	copy(result, trades)
	return result
}

// Recent returns up to n trades for a symbol, newest first.
func (s *TradeStore) Recent(symbol string, n int) []*domain.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trades := s.trades[symbol]
	if n > len(trades) {
		n = len(trades)
	}
	result := make([]*domain.Trade, 0, n)
	for i := len(trades) - 1; i >= len(trades)-n; i-- {
		result = append(result, trades[i])
	}
	return result
}
