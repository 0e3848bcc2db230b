package store

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/efreitasn/nmsbook/internal/domain"
)

const tradeKeyPrefix = "trade/"

// TradeJournal is a durable append-only record of executed trades backed
// by pebble. Keys embed the trade sequence zero-padded so iteration
// order is execution order. It lives outside the matching core: a feed
// consumer drains the event stream into it.
type TradeJournal struct {
	db *pebble.DB
}

// OpenTradeJournal opens (or creates) a journal at dir.
func OpenTradeJournal(dir string) (*TradeJournal, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open trade journal: %w", err)
	}
	return &TradeJournal{db: db}, nil
}

// Close closes the underlying database.
func (j *TradeJournal) Close() error {
	return j.db.Close()
}

// Append durably records one trade.
func (j *TradeJournal) Append(t *domain.Trade) error {
	value, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode trade %s: %w", t.TradeID, err)
	}
	return j.db.Set(tradeKey(t.Sequence), value, pebble.Sync)
}

// Scan iterates all journaled trades in execution order. The callback
// returning an error stops the scan.
func (j *TradeJournal) Scan(fn func(*domain.Trade) error) error {
	iter, err := j.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(tradeKeyPrefix),
		UpperBound: []byte(tradeKeyPrefix + "~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		var t domain.Trade
		if err := json.Unmarshal(iter.Value(), &t); err != nil {
			return fmt.Errorf("decode trade at %q: %w", iter.Key(), err)
		}
		if err := fn(&t); err != nil {
			return err
		}
	}
	return iter.Error()
}

func tradeKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", tradeKeyPrefix, seq))
}
