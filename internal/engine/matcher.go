package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/efreitasn/nmsbook/internal/domain"
	"github.com/efreitasn/nmsbook/internal/store"
)

// QuotePriceLevel represents a single price level in a quote simulation.
type QuotePriceLevel struct {
	Price    int64
	Quantity int64
}

// QuoteResult holds the result of a market order simulation.
type QuoteResult struct {
	QuantityAvailable int64
	FullyFillable     bool
	EstimatedAvgPrice *int64 // nil when no liquidity
	EstimatedTotal    *int64 // nil when no liquidity
	PriceLevels       []QuotePriceLevel
}

// Statistics counts engine activity since process start.
type Statistics struct {
	OrdersProcessed uint64
	OrdersFilled    uint64
	OrdersPartial   uint64
	OrdersCancelled uint64
	OrdersRejected  uint64
	TradesExecuted  uint64
	TotalVolume     int64
}

// Matcher implements price-time-priority matching for limit, market,
// IOC, and FOK orders. Every trade executes at the resting (maker)
// order's price, and the loop only advances to a worse price level once
// the better one is exhausted, so a taker can never receive a price
// worse than the best displayed opposite quote at match time.
type Matcher struct {
	books      *BookManager
	orderStore *store.OrderStore
	tradeStore *store.TradeStore
	stream     *EventLog
	seq        *Sequencer
	symbols    *domain.SymbolRegistry

	statsMu sync.Mutex
	stats   Statistics
}

// NewMatcher creates a new Matcher with the given dependencies.
func NewMatcher(
	books *BookManager,
	orderStore *store.OrderStore,
	tradeStore *store.TradeStore,
	stream *EventLog,
	seq *Sequencer,
	symbols *domain.SymbolRegistry,
) *Matcher {
	return &Matcher{
		books:      books,
		orderStore: orderStore,
		tradeStore: tradeStore,
		stream:     stream,
		seq:        seq,
		symbols:    symbols,
	}
}

// Submit processes an incoming order through the matching engine and
// returns the trades it produced. The caller provides Type, Side,
// Symbol, Price, and Quantity, plus optionally a client-chosen OrderID;
// the matcher assigns the id (when absent), the arrival sequence, and
// all status transitions.
//
// The per-symbol write lock is held for the entire pass, so price-time
// ordering is a direct consequence of submission order, and the event
// stream is appended before the lock is released. Every rejection emits
// an order_rejected event and returns the matching sentinel error.
func (m *Matcher) Submit(order *domain.Order) ([]*domain.Trade, error) {
	book := m.books.GetOrCreate(order.Symbol)

	book.mu.Lock()
	defer book.mu.Unlock()

	if err := validateOrder(order); err != nil {
		return nil, m.reject(order, err)
	}
	if order.OrderID != "" && m.orderStore.Exists(order.OrderID) {
		return nil, m.reject(order, domain.ErrDuplicateOrderID)
	}

	// FOK feasibility is decided before anything is accepted or mutated:
	// an unfillable order leaves the book, the stores, and the stream
	// untouched apart from its order_rejected event.
	if order.Type == domain.OrderTypeFOK && !canFill(book, order) {
		return nil, m.reject(order, domain.ErrUnfillable)
	}

	if order.OrderID == "" {
		order.OrderID = uuid.New().String()
	}
	order.Sequence = m.seq.Next()
	order.CreatedAt = time.Now()
	order.RemainingQuantity = order.Quantity
	order.FilledQuantity = 0
	order.CancelledQuantity = 0
	order.Status = domain.OrderStatusPending
	order.Trades = []*domain.Trade{}

	m.symbols.Register(order.Symbol)
	m.orderStore.Create(order)

	touched := newLevelTracker()
	events := []domain.Event{m.newEvent(domain.EventOrderAccepted, order.Symbol, order.OrderID)}

	// Market orders carry no bound; a zero price on IOC/FOK means the
	// caller chose not to bound them either.
	trades, err := m.fill(book, order, order.Price, touched, &events)
	if err != nil {
		// Invariant violation mid-pass. Abort without emitting events:
		// this is a core defect, not a caller-visible state transition.
		return trades, err
	}

	if order.RemainingQuantity > 0 {
		if order.Type.Rests() {
			book.Insert(OrderBookEntry{
				Price:   order.Price,
				Seq:     order.Sequence,
				OrderID: order.OrderID,
				Order:   order,
			})
			touched.mark(order.Side, order.Price)
		} else {
			// Market and IOC remainders are discarded, never rested.
			order.CancelledQuantity = order.RemainingQuantity
			order.RemainingQuantity = 0
			order.Status = domain.OrderStatusCancelled
			now := time.Now()
			order.CancelledAt = &now
			events = append(events, m.newEvent(domain.EventOrderCancelled, order.Symbol, order.OrderID))
		}
	}

	events = append(events, m.levelEvents(book, order.Symbol, touched)...)
	m.stream.Append(events...)
	m.recordSubmit(order, trades)

	return trades, nil
}

// Cancel removes a resting order from its book. It fails with
// ErrOrderNotFound when the id is unknown or the order is already
// terminal, so cancelling the same id twice succeeds exactly once.
// Cancellation racing the order's own matching is resolved by the book
// lock: it lands entirely before or entirely after the matching pass.
func (m *Matcher) Cancel(orderID string) (*domain.Order, error) {
	order, err := m.orderStore.Get(orderID)
	if err != nil {
		return nil, domain.ErrOrderNotFound
	}

	book := m.books.GetOrCreate(order.Symbol)
	book.mu.Lock()
	defer book.mu.Unlock()

	// Re-check under lock: the order may have filled or been cancelled
	// since the store lookup.
	if order.Status.Terminal() || !book.Contains(orderID) {
		return nil, domain.ErrOrderNotFound
	}

	book.Remove(orderID)

	now := time.Now()
	order.CancelledQuantity = order.RemainingQuantity
	order.RemainingQuantity = 0
	order.Status = domain.OrderStatusCancelled
	order.CancelledAt = &now

	qty, _ := book.LevelQuantity(order.Side, order.Price)
	level := m.newEvent(domain.EventBookLevelChanged, order.Symbol, "")
	level.Level = &domain.BookLevelChange{Side: order.Side, Price: order.Price, Quantity: qty}
	m.stream.Append(m.newEvent(domain.EventOrderCancelled, order.Symbol, orderID), level)

	m.statsMu.Lock()
	m.stats.OrdersCancelled++
	m.statsMu.Unlock()

	return order, nil
}

// fill matches the incoming order against the opposite side of the book,
// best price level first and oldest order first within a level, while
// the price bound is satisfied. A bound of 0 means unbounded. Trades
// always execute at the resting order's price; partially consumed
// resting orders keep their queue position.
func (m *Matcher) fill(
	book *OrderBook,
	order *domain.Order,
	bound int64,
	touched *levelTracker,
	events *[]domain.Event,
) ([]*domain.Trade, error) {
	var trades []*domain.Trade

	for order.RemainingQuantity > 0 {
		bestEntry, found := book.BestOpposite(order.Side)
		if !found {
			break
		}
		if bound > 0 {
			if order.Side == domain.OrderSideBid && bestEntry.Price > bound {
				break
			}
			if order.Side == domain.OrderSideAsk && bestEntry.Price < bound {
				break
			}
		}

		resting := bestEntry.Order

		fillQty := order.RemainingQuantity
		if resting.RemainingQuantity < fillQty {
			fillQty = resting.RemainingQuantity
		}
		if fillQty <= 0 {
			return trades, fmt.Errorf("%w: non-positive fill against resting order %s",
				domain.ErrBookCorrupted, resting.OrderID)
		}

		order.RemainingQuantity -= fillQty
		order.FilledQuantity += fillQty
		resting.RemainingQuantity -= fillQty
		resting.FilledQuantity += fillQty
		if order.RemainingQuantity < 0 || resting.RemainingQuantity < 0 {
			return trades, fmt.Errorf("%w: negative remaining quantity after fill of %d",
				domain.ErrBookCorrupted, fillQty)
		}

		if order.RemainingQuantity == 0 {
			order.Status = domain.OrderStatusFilled
		} else {
			order.Status = domain.OrderStatusPartiallyFilled
		}
		if resting.RemainingQuantity == 0 {
			resting.Status = domain.OrderStatusFilled
		} else {
			resting.Status = domain.OrderStatusPartiallyFilled
		}

		trade := &domain.Trade{
			TradeID:       uuid.New().String(),
			Symbol:        order.Symbol,
			Price:         resting.Price,
			Quantity:      fillQty,
			MakerOrderID:  resting.OrderID,
			TakerOrderID:  order.OrderID,
			AggressorSide: order.Side,
			Sequence:      m.seq.Next(),
			ExecutedAt:    time.Now(),
		}
		order.Trades = append(order.Trades, trade)
		resting.Trades = append(resting.Trades, trade)
		trades = append(trades, trade)
		m.tradeStore.Append(order.Symbol, trade)

		ev := m.newEvent(domain.EventTradeExecuted, order.Symbol, order.OrderID)
		ev.Trade = trade
		*events = append(*events, ev)
		touched.mark(resting.Side, resting.Price)

		if resting.RemainingQuantity == 0 {
			book.Remove(resting.OrderID)
		}
	}

	return trades, nil
}

// canFill reports whether the opposite side currently holds enough
// price-qualifying quantity to fill the order completely. Read-only:
// it walks the book without mutating anything.
func canFill(book *OrderBook, order *domain.Order) bool {
	remaining := order.Quantity
	book.WalkOpposite(order.Side, func(entry OrderBookEntry) bool {
		if order.Price > 0 {
			if order.Side == domain.OrderSideBid && entry.Price > order.Price {
				return false
			}
			if order.Side == domain.OrderSideAsk && entry.Price < order.Price {
				return false
			}
		}
		remaining -= entry.Order.RemainingQuantity
		return remaining > 0
	})
	return remaining <= 0
}

// SimulateMarketOrder performs a read-only walk of the opposite side of
// the book to estimate the result of a market order without placing it.
// For bid quotes it walks asks (lowest first); for ask quotes it walks
// bids (highest first).
func (m *Matcher) SimulateMarketOrder(symbol string, side domain.OrderSide, quantity int64) *QuoteResult {
	book := m.books.GetOrCreate(symbol)

	book.mu.RLock()
	defer book.mu.RUnlock()

	result := &QuoteResult{
		PriceLevels: make([]QuotePriceLevel, 0),
	}

	remaining := quantity
	var totalCost int64

	book.WalkOpposite(side, func(entry OrderBookEntry) bool {
		if remaining <= 0 {
			return false
		}
		fillQty := entry.Order.RemainingQuantity
		if fillQty > remaining {
			fillQty = remaining
		}
		totalCost += entry.Price * fillQty
		result.QuantityAvailable += fillQty
		remaining -= fillQty

		// Aggregate into price levels.
		if n := len(result.PriceLevels); n > 0 && result.PriceLevels[n-1].Price == entry.Price {
			result.PriceLevels[n-1].Quantity += fillQty
		} else {
			result.PriceLevels = append(result.PriceLevels, QuotePriceLevel{
				Price:    entry.Price,
				Quantity: fillQty,
			})
		}
		return true
	})

	if result.QuantityAvailable > 0 {
		avgPrice := totalCost / result.QuantityAvailable
		result.EstimatedAvgPrice = &avgPrice
		result.EstimatedTotal = &totalCost
	}
	result.FullyFillable = result.QuantityAvailable >= quantity

	return result
}

// Stats returns a copy of the engine counters.
func (m *Matcher) Stats() Statistics {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	return m.stats
}

// validateOrder checks the order's local shape before any book
// interaction. Priced types require a positive price; market orders
// must not carry one.
func validateOrder(o *domain.Order) error {
	if o.Side != domain.OrderSideBid && o.Side != domain.OrderSideAsk {
		return fmt.Errorf("%w: side must be bid or ask", domain.ErrInvalidOrder)
	}
	if o.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", domain.ErrInvalidOrder)
	}
	switch o.Type {
	case domain.OrderTypeLimit:
		if o.Price <= 0 {
			return fmt.Errorf("%w: limit orders require a positive price", domain.ErrInvalidOrder)
		}
	case domain.OrderTypeMarket:
		if o.Price != 0 {
			return fmt.Errorf("%w: market orders must not carry a price", domain.ErrInvalidOrder)
		}
	case domain.OrderTypeIOC, domain.OrderTypeFOK:
		if o.Price < 0 {
			return fmt.Errorf("%w: price must not be negative", domain.ErrInvalidOrder)
		}
	default:
		return fmt.Errorf("%w: unknown order type %q", domain.ErrInvalidOrder, o.Type)
	}
	return nil
}

// reject marks the order rejected, keeps it queryable, and emits the
// order_rejected event. Duplicate-id rejections are not stored, since
// storing them would clobber the live order under that id.
func (m *Matcher) reject(order *domain.Order, err error) error {
	if order.OrderID == "" {
		order.OrderID = uuid.New().String()
	}
	order.Status = domain.OrderStatusRejected
	order.RejectReason = err.Error()
	order.RemainingQuantity = 0
	if order.Trades == nil {
		order.Trades = []*domain.Trade{}
	}
	if !m.orderStore.Exists(order.OrderID) {
		m.orderStore.Create(order)
	}

	ev := m.newEvent(domain.EventOrderRejected, order.Symbol, order.OrderID)
	ev.Reason = order.RejectReason
	m.stream.Append(ev)

	m.statsMu.Lock()
	m.stats.OrdersProcessed++
	m.stats.OrdersRejected++
	m.statsMu.Unlock()

	return err
}

func (m *Matcher) newEvent(t domain.EventType, symbol, orderID string) domain.Event {
	return domain.Event{
		Sequence:   m.seq.Next(),
		Type:       t,
		Symbol:     symbol,
		OrderID:    orderID,
		OccurredAt: time.Now(),
	}
}

// levelEvents emits one book_level_changed event per touched level,
// carrying the level's final aggregate quantity (0 = removed), in
// first-touch order.
func (m *Matcher) levelEvents(book *OrderBook, symbol string, touched *levelTracker) []domain.Event {
	events := make([]domain.Event, 0, len(touched.keys))
	for _, k := range touched.keys {
		qty, _ := book.LevelQuantity(k.side, k.price)
		ev := m.newEvent(domain.EventBookLevelChanged, symbol, "")
		ev.Level = &domain.BookLevelChange{Side: k.side, Price: k.price, Quantity: qty}
		events = append(events, ev)
	}
	return events
}

// recordSubmit updates the engine counters after a completed pass.
func (m *Matcher) recordSubmit(order *domain.Order, trades []*domain.Trade) {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	m.stats.OrdersProcessed++
	switch {
	case order.FilledQuantity == order.Quantity:
		m.stats.OrdersFilled++
	case order.FilledQuantity > 0:
		m.stats.OrdersPartial++
	case order.Status == domain.OrderStatusCancelled:
		m.stats.OrdersCancelled++
	}
	m.stats.TradesExecuted += uint64(len(trades))
	for _, t := range trades {
		m.stats.TotalVolume += t.Quantity
	}
}

type levelKey struct {
	side  domain.OrderSide
	price int64
}

// levelTracker records which price levels a matching pass touched so
// the pass emits exactly one book_level_changed event per level.
type levelTracker struct {
	seen map[levelKey]struct{}
	keys []levelKey
}

func newLevelTracker() *levelTracker {
	return &levelTracker{seen: make(map[levelKey]struct{})}
}

func (t *levelTracker) mark(side domain.OrderSide, price int64) {
	k := levelKey{side: side, price: price}
	if _, ok := t.seen[k]; ok {
		return
	}
	t.seen[k] = struct{}{}
	t.keys = append(t.keys, k)
}
