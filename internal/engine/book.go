package engine

import (
	"sync"

	"github.com/efreitasn/nmsbook/internal/domain"
	"github.com/google/btree"
)

// OrderBookEntry represents a single order resting on the book.
type OrderBookEntry struct {
	Price   int64
	Seq     uint64
	OrderID string
	Order   *domain.Order
}

// PriceLevel represents an aggregated price level in the order book.
type PriceLevel struct {
	Price         int64
	TotalQuantity int64
	OrderCount    int
}

// bidLess defines ordering for the bid side: price descending, then
// arrival sequence ascending. Min() returns the best bid (highest
// price, oldest arrival). Sequence numbers are unique, so price-time
// priority needs no further tiebreak.
func bidLess(a, b OrderBookEntry) bool {
	if a.Price != b.Price {
		return a.Price > b.Price
	}
	return a.Seq < b.Seq
}

// askLess defines ordering for the ask side: price ascending, then
// arrival sequence ascending. Min() returns the best ask (lowest price,
// oldest arrival).
func askLess(a, b OrderBookEntry) bool {
	if a.Price != b.Price {
		return a.Price < b.Price
	}
	return a.Seq < b.Seq
}

// OrderBook maintains the bid and ask sides for a single symbol using
// B-trees with a secondary index for O(log n) removal by order ID.
// Price levels are derived from entries, so an empty level cannot exist.
//
// The book is a single-writer resource: the matcher holds mu exclusively
// for every mutating pass, and readers take the read lock.
type OrderBook struct {
	symbol string
	mu     sync.RWMutex
	bids   *btree.BTreeG[OrderBookEntry]
	asks   *btree.BTreeG[OrderBookEntry]
	index  map[string]OrderBookEntry // order_id → entry
}

// NewOrderBook creates an order book for the given symbol.
func NewOrderBook(symbol string) *OrderBook {
	const degree = 32
	return &OrderBook{
		symbol: symbol,
		bids:   btree.NewG[OrderBookEntry](degree, bidLess),
		asks:   btree.NewG[OrderBookEntry](degree, askLess),
		index:  make(map[string]OrderBookEntry),
	}
}

// RLock acquires the read lock on the order book.
func (ob *OrderBook) RLock() {
	ob.mu.RLock()
}

// RUnlock releases the read lock on the order book.
func (ob *OrderBook) RUnlock() {
	ob.mu.RUnlock()
}

// Insert adds an entry to the side matching its order.
func (ob *OrderBook) Insert(entry OrderBookEntry) {
	if entry.Order.Side == domain.OrderSideBid {
		ob.bids.ReplaceOrInsert(entry)
	} else {
		ob.asks.ReplaceOrInsert(entry)
	}
	ob.index[entry.OrderID] = entry
}

// Remove deletes an order from the book by order ID using the
// secondary index. Removing the last entry at a price removes the
// level, since levels only exist through their entries.
func (ob *OrderBook) Remove(orderID string) {
	entry, ok := ob.index[orderID]
	if !ok {
		return
	}
	delete(ob.index, orderID)
	if entry.Order.Side == domain.OrderSideBid {
		ob.bids.Delete(entry)
	} else {
		ob.asks.Delete(entry)
	}
}

// Contains reports whether an order is currently resting on the book.
func (ob *OrderBook) Contains(orderID string) bool {
	_, ok := ob.index[orderID]
	return ok
}

// BestBid returns the highest-priority bid (highest price, oldest arrival).
func (ob *OrderBook) BestBid() (OrderBookEntry, bool) {
	return ob.bids.Min()
}

// BestAsk returns the highest-priority ask (lowest price, oldest arrival).
func (ob *OrderBook) BestAsk() (OrderBookEntry, bool) {
	return ob.asks.Min()
}

// BestOpposite returns the top entry of the side an incoming order on
// `side` would trade against.
func (ob *OrderBook) BestOpposite(side domain.OrderSide) (OrderBookEntry, bool) {
	if side == domain.OrderSideBid {
		return ob.BestAsk()
	}
	return ob.BestBid()
}

// TopBids returns up to n aggregated price levels from the bid side,
// ordered by price descending.
func (ob *OrderBook) TopBids(n int) []PriceLevel {
	return topLevels(ob.bids, n)
}

// TopAsks returns up to n aggregated price levels from the ask side,
// ordered by price ascending.
func (ob *OrderBook) TopAsks(n int) []PriceLevel {
	return topLevels(ob.asks, n)
}

// topLevels iterates the B-tree in order and aggregates entries into
// at most n price levels.
func topLevels(tree *btree.BTreeG[OrderBookEntry], n int) []PriceLevel {
	if n <= 0 {
		return nil
	}
	levels := make([]PriceLevel, 0, n)
	tree.Ascend(func(entry OrderBookEntry) bool {
		if len(levels) > 0 && levels[len(levels)-1].Price == entry.Price {
			levels[len(levels)-1].TotalQuantity += entry.Order.RemainingQuantity
			levels[len(levels)-1].OrderCount++
			return true
		}
		if len(levels) >= n {
			return false
		}
		levels = append(levels, PriceLevel{
			Price:         entry.Price,
			TotalQuantity: entry.Order.RemainingQuantity,
			OrderCount:    1,
		})
		return true
	})
	return levels
}

// LevelQuantity returns the aggregate remaining quantity and order count
// at one price on one side. Both are zero when the level is gone. The
// pivot's zero sequence sorts before every real entry at the price, so
// iteration starts at the level's head on either side.
func (ob *OrderBook) LevelQuantity(side domain.OrderSide, price int64) (int64, int) {
	tree := ob.asks
	if side == domain.OrderSideBid {
		tree = ob.bids
	}
	var qty int64
	var count int
	tree.AscendGreaterOrEqual(OrderBookEntry{Price: price}, func(entry OrderBookEntry) bool {
		if entry.Price != price {
			return false
		}
		qty += entry.Order.RemainingQuantity
		count++
		return true
	})
	return qty, count
}

// WalkAsks iterates asks in order (lowest price first). The callback
// returns true to continue, false to stop.
func (ob *OrderBook) WalkAsks(fn func(OrderBookEntry) bool) {
	ob.asks.Ascend(fn)
}

// WalkBids iterates bids in order (highest price first). The callback
// returns true to continue, false to stop.
func (ob *OrderBook) WalkBids(fn func(OrderBookEntry) bool) {
	ob.bids.Ascend(fn)
}

// WalkOpposite iterates the side an order on `side` would trade against,
// best price first. Used for FOK feasibility scans and quote simulation.
func (ob *OrderBook) WalkOpposite(side domain.OrderSide, fn func(OrderBookEntry) bool) {
	if side == domain.OrderSideBid {
		ob.asks.Ascend(fn)
	} else {
		ob.bids.Ascend(fn)
	}
}

// BidCount returns the number of individual bid orders on the book.
func (ob *OrderBook) BidCount() int {
	return ob.bids.Len()
}

// AskCount returns the number of individual ask orders on the book.
func (ob *OrderBook) AskCount() int {
	return ob.asks.Len()
}

// BookManager is a thread-safe map of symbol → OrderBook. Distinct
// symbols have fully independent books and match in parallel.
type BookManager struct {
	mu    sync.RWMutex
	books map[string]*OrderBook
}

// NewBookManager creates a new BookManager.
func NewBookManager() *BookManager {
	return &BookManager{
		books: make(map[string]*OrderBook),
	}
}

// GetOrCreate returns the order book for the given symbol, creating
// one if it doesn't already exist.
func (bm *BookManager) GetOrCreate(symbol string) *OrderBook {
	bm.mu.RLock()
	book, ok := bm.books[symbol]
	bm.mu.RUnlock()
	if ok {
		return book
	}

	bm.mu.Lock()
	defer bm.mu.Unlock()
	// Double-check after acquiring write lock.
	if book, ok = bm.books[symbol]; ok {
		return book
	}
	book = NewOrderBook(symbol)
	bm.books[symbol] = book
	return book
}
