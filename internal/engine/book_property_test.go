package engine

import (
	"fmt"
	"testing"

	"github.com/efreitasn/nmsbook/internal/domain"
	"pgregory.net/rapid"
)

// genEntry generates a random book entry. Sequence numbers are unique
// per entry; prices come from a small range to force collisions and
// exercise the FIFO tiebreak.
func genEntry(side domain.OrderSide, seq uint64) *rapid.Generator[OrderBookEntry] {
	return rapid.Custom(func(t *rapid.T) OrderBookEntry {
		price := rapid.Int64Range(1, 20).Draw(t, "price")
		id := fmt.Sprintf("order-%d", seq)
		return newBookEntry(id, side, price, seq, rapid.Int64Range(1, 100).Draw(t, "qty"))
	})
}

func TestProperty_BidSideSortingInvariant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 50).Draw(t, "numEntries")
		book := NewOrderBook("TEST")

		for i := 0; i < n; i++ {
			book.Insert(genEntry(domain.OrderSideBid, uint64(i+1)).Draw(t, fmt.Sprintf("bid-%d", i)))
		}

		// Walk bids and verify ordering: price descending, then sequence ascending.
		var prev *OrderBookEntry
		book.WalkBids(func(entry OrderBookEntry) bool {
			if prev != nil {
				if entry.Price > prev.Price {
					t.Fatalf("bid side: price should be descending, got %d after %d", entry.Price, prev.Price)
				}
				if entry.Price == prev.Price && entry.Seq < prev.Seq {
					t.Fatalf("bid side: same price %d, sequence should be ascending, got %d after %d",
						entry.Price, entry.Seq, prev.Seq)
				}
			}
			cur := entry
			prev = &cur
			return true
		})
	})
}

func TestProperty_AskSideSortingInvariant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 50).Draw(t, "numEntries")
		book := NewOrderBook("TEST")

		for i := 0; i < n; i++ {
			book.Insert(genEntry(domain.OrderSideAsk, uint64(i+1)).Draw(t, fmt.Sprintf("ask-%d", i)))
		}

		// Walk asks and verify ordering: price ascending, then sequence ascending.
		var prev *OrderBookEntry
		book.WalkAsks(func(entry OrderBookEntry) bool {
			if prev != nil {
				if entry.Price < prev.Price {
					t.Fatalf("ask side: price should be ascending, got %d after %d", entry.Price, prev.Price)
				}
				if entry.Price == prev.Price && entry.Seq < prev.Seq {
					t.Fatalf("ask side: same price %d, sequence should be ascending, got %d after %d",
						entry.Price, entry.Seq, prev.Seq)
				}
			}
			cur := entry
			prev = &cur
			return true
		})
	})
}

func TestProperty_RemoveKeepsIndexConsistent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 30).Draw(t, "numEntries")
		book := NewOrderBook("TEST")

		ids := make([]string, 0, n)
		for i := 0; i < n; i++ {
			e := genEntry(domain.OrderSideBid, uint64(i+1)).Draw(t, fmt.Sprintf("bid-%d", i))
			book.Insert(e)
			ids = append(ids, e.OrderID)
		}

		removals := rapid.IntRange(0, n).Draw(t, "removals")
		for i := 0; i < removals; i++ {
			book.Remove(ids[i])
		}

		if got := book.BidCount(); got != n-removals {
			t.Fatalf("expected %d bids after removals, got %d", n-removals, got)
		}
		for i, id := range ids {
			if i < removals && book.Contains(id) {
				t.Fatalf("expected %q removed", id)
			}
			if i >= removals && !book.Contains(id) {
				t.Fatalf("expected %q present", id)
			}
		}
	})
}
