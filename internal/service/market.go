package service

import (
	"time"

	"github.com/efreitasn/nmsbook/internal/domain"
	"github.com/efreitasn/nmsbook/internal/engine"
	"github.com/efreitasn/nmsbook/internal/store"
)

// BookPriceLevel represents an aggregated price level in the book response.
type BookPriceLevel struct {
	Price         int64
	TotalQuantity int64
	OrderCount    int
}

// BookResponse represents a depth snapshot of one symbol's book.
type BookResponse struct {
	Symbol     string
	Bids       []BookPriceLevel
	Asks       []BookPriceLevel
	Spread     *int64 // nil if either side empty
	SnapshotAt time.Time
}

// BBOResponse represents the best bid and offer for a symbol.
// Spread and mid price are nil unless both sides have liquidity.
type BBOResponse struct {
	Symbol   string
	BestBid  *int64
	BestAsk  *int64
	Spread   *int64
	MidPrice *int64
	At       time.Time
}

// QuotePriceLevel represents a single price level in the quote response.
type QuotePriceLevel struct {
	Price    int64
	Quantity int64
}

// QuoteResponse represents a simulated market-order fill.
type QuoteResponse struct {
	Symbol            string
	Side              domain.OrderSide
	QuantityRequested int64
	QuantityAvailable int64
	FullyFillable     bool
	EstimatedAvgPrice *int64 // nil when no liquidity
	EstimatedTotal    *int64 // nil when no liquidity
	PriceLevels       []QuotePriceLevel
	QuotedAt          time.Time
}

// MarketService serves read-only market data: depth snapshots, BBO,
// quote simulations, recent trades, and engine statistics.
type MarketService struct {
	tradeStore *store.TradeStore
	books      *engine.BookManager
	matcher    *engine.Matcher
	symbols    *domain.SymbolRegistry
}

// NewMarketService creates a new MarketService with the given dependencies.
func NewMarketService(
	tradeStore *store.TradeStore,
	books *engine.BookManager,
	matcher *engine.Matcher,
	symbols *domain.SymbolRegistry,
) *MarketService {
	return &MarketService{
		tradeStore: tradeStore,
		books:      books,
		matcher:    matcher,
		symbols:    symbols,
	}
}

// Snapshot returns the top N price levels on each side of a symbol's
// book. The read lock serializes against writers only, so the snapshot
// never observes a level mid-mutation.
func (s *MarketService) Snapshot(symbol string, depth int) (*BookResponse, error) {
	if !s.symbols.Exists(symbol) {
		return nil, domain.ErrSymbolNotFound
	}

	if depth < 1 || depth > 50 {
		return nil, &domain.ValidationError{
			Message: "depth must be between 1 and 50",
		}
	}

	book := s.books.GetOrCreate(symbol)

	book.RLock()
	defer book.RUnlock()

	topBids := book.TopBids(depth)
	topAsks := book.TopAsks(depth)

	bids := make([]BookPriceLevel, len(topBids))
	for i, pl := range topBids {
		bids[i] = BookPriceLevel{
			Price:         pl.Price,
			TotalQuantity: pl.TotalQuantity,
			OrderCount:    pl.OrderCount,
		}
	}

	asks := make([]BookPriceLevel, len(topAsks))
	for i, pl := range topAsks {
		asks[i] = BookPriceLevel{
			Price:         pl.Price,
			TotalQuantity: pl.TotalQuantity,
			OrderCount:    pl.OrderCount,
		}
	}

	resp := &BookResponse{
		Symbol:     symbol,
		Bids:       bids,
		Asks:       asks,
		SnapshotAt: time.Now(),
	}

	if len(topBids) > 0 && len(topAsks) > 0 {
		spread := topAsks[0].Price - topBids[0].Price
		resp.Spread = &spread
	}

	return resp, nil
}

// BBO returns the best bid and offer with spread and mid price.
func (s *MarketService) BBO(symbol string) (*BBOResponse, error) {
	if !s.symbols.Exists(symbol) {
		return nil, domain.ErrSymbolNotFound
	}

	book := s.books.GetOrCreate(symbol)

	book.RLock()
	defer book.RUnlock()

	resp := &BBOResponse{
		Symbol: symbol,
		At:     time.Now(),
	}

	if entry, ok := book.BestBid(); ok {
		p := entry.Price
		resp.BestBid = &p
	}
	if entry, ok := book.BestAsk(); ok {
		p := entry.Price
		resp.BestAsk = &p
	}
	if resp.BestBid != nil && resp.BestAsk != nil {
		spread := *resp.BestAsk - *resp.BestBid
		mid := (*resp.BestAsk + *resp.BestBid) / 2
		resp.Spread = &spread
		resp.MidPrice = &mid
	}

	return resp, nil
}

// Quote simulates a market order against the current book and returns
// the estimated result without placing an order.
func (s *MarketService) Quote(symbol string, side domain.OrderSide, quantity int64) (*QuoteResponse, error) {
	if !s.symbols.Exists(symbol) {
		return nil, domain.ErrSymbolNotFound
	}

	if side != domain.OrderSideBid && side != domain.OrderSideAsk {
		return nil, &domain.ValidationError{
			Message: "side must be 'bid' or 'ask'",
		}
	}

	if quantity <= 0 {
		return nil, &domain.ValidationError{
			Message: "quantity must be a positive integer",
		}
	}

	result := s.matcher.SimulateMarketOrder(symbol, side, quantity)

	priceLevels := make([]QuotePriceLevel, len(result.PriceLevels))
	for i, pl := range result.PriceLevels {
		priceLevels[i] = QuotePriceLevel{
			Price:    pl.Price,
			Quantity: pl.Quantity,
		}
	}

	return &QuoteResponse{
		Symbol:            symbol,
		Side:              side,
		QuantityRequested: quantity,
		QuantityAvailable: result.QuantityAvailable,
		FullyFillable:     result.FullyFillable,
		EstimatedAvgPrice: result.EstimatedAvgPrice,
		EstimatedTotal:    result.EstimatedTotal,
		PriceLevels:       priceLevels,
		QuotedAt:          time.Now(),
	}, nil
}

// RecentTrades returns up to limit trades for a symbol, newest first.
func (s *MarketService) RecentTrades(symbol string, limit int) ([]*domain.Trade, error) {
	if !s.symbols.Exists(symbol) {
		return nil, domain.ErrSymbolNotFound
	}
	if limit < 1 || limit > 500 {
		return nil, &domain.ValidationError{
			Message: "limit must be between 1 and 500",
		}
	}
	return s.tradeStore.Recent(symbol, limit), nil
}

// Stats returns the engine activity counters.
func (s *MarketService) Stats() engine.Statistics {
	return s.matcher.Stats()
}
