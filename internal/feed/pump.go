package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/efreitasn/nmsbook/internal/domain"
	"github.com/efreitasn/nmsbook/internal/engine"
	"github.com/efreitasn/nmsbook/internal/service"
	"github.com/efreitasn/nmsbook/internal/store"
)

// PriceLevel is one aggregated level in a broadcast book frame.
type PriceLevel struct {
	Price    int64 `json:"price"`
	Quantity int64 `json:"quantity"`
	Orders   int   `json:"orders"`
}

// BookUpdate is the frame broadcast to book subscribers whenever a
// symbol's book changes.
type BookUpdate struct {
	Symbol string       `json:"symbol"`
	Bids   []PriceLevel `json:"bids"`
	Asks   []PriceLevel `json:"asks"`
	At     time.Time    `json:"at"`
}

// Pump drains the engine's event stream and republishes it outside the
// matching core: executed trades go to the trade hub and the durable
// journal, book changes become snapshot frames on the book hub, and
// every event is optionally mirrored to Kafka. The journal and
// publisher may be nil when those sinks are disabled.
type Pump struct {
	stream  *engine.EventLog
	market  *service.MarketService
	trades  *Hub[*domain.Trade]
	books   *Hub[BookUpdate]
	journal *store.TradeJournal
	kafka   *Publisher
	depth   int
	logger  *slog.Logger
}

// NewPump creates a pump over the given stream and sinks.
func NewPump(
	stream *engine.EventLog,
	market *service.MarketService,
	trades *Hub[*domain.Trade],
	books *Hub[BookUpdate],
	journal *store.TradeJournal,
	kafka *Publisher,
	depth int,
	logger *slog.Logger,
) *Pump {
	return &Pump{
		stream:  stream,
		market:  market,
		trades:  trades,
		books:   books,
		journal: journal,
		kafka:   kafka,
		depth:   depth,
		logger:  logger,
	}
}

// Run consumes events until ctx is cancelled. It must be started before
// traffic arrives if no event is to be missed; consumers needing exact
// history replay from the stream itself.
func (p *Pump) Run(ctx context.Context) {
	sub := p.stream.Subscribe(1024)
	defer p.stream.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			p.handle(ctx, ev)
		}
	}
}

func (p *Pump) handle(ctx context.Context, ev domain.Event) {
	switch ev.Type {
	case domain.EventTradeExecuted:
		if ev.Trade != nil {
			p.trades.Broadcast(ev.Trade)
			if p.journal != nil {
				if err := p.journal.Append(ev.Trade); err != nil {
					p.logger.Error("journal append failed",
						slog.String("trade_id", ev.Trade.TradeID),
						slog.String("error", err.Error()))
				}
			}
		}
	case domain.EventBookLevelChanged:
		p.broadcastBook(ev.Symbol)
	}

	if p.kafka != nil {
		if err := p.kafka.Publish(ctx, ev); err != nil {
			p.logger.Warn("kafka publish failed",
				slog.Uint64("sequence", ev.Sequence),
				slog.String("error", err.Error()))
		}
	}
}

func (p *Pump) broadcastBook(symbol string) {
	snap, err := p.market.Snapshot(symbol, p.depth)
	if err != nil {
		p.logger.Error("book snapshot failed",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()))
		return
	}
	p.books.Broadcast(NewBookUpdate(snap))
}

// NewBookUpdate converts a depth snapshot into the broadcast frame.
func NewBookUpdate(snap *service.BookResponse) BookUpdate {
	update := BookUpdate{
		Symbol: snap.Symbol,
		Bids:   make([]PriceLevel, len(snap.Bids)),
		Asks:   make([]PriceLevel, len(snap.Asks)),
		At:     snap.SnapshotAt,
	}
	for i, l := range snap.Bids {
		update.Bids[i] = PriceLevel{Price: l.Price, Quantity: l.TotalQuantity, Orders: l.OrderCount}
	}
	for i, l := range snap.Asks {
		update.Asks[i] = PriceLevel{Price: l.Price, Quantity: l.TotalQuantity, Orders: l.OrderCount}
	}
	return update
}
