package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/efreitasn/nmsbook/internal/domain"
	"github.com/efreitasn/nmsbook/internal/feed"
	"github.com/efreitasn/nmsbook/internal/service"
)

// outboundMessage is the envelope for every WebSocket frame.
type outboundMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// WSHandler serves the WebSocket market data and trade feeds. Each
// connection subscribes to the corresponding hub and filters frames by
// the symbol in the path.
type WSHandler struct {
	marketSvc *service.MarketService
	trades    *feed.Hub[*domain.Trade]
	books     *feed.Hub[feed.BookUpdate]
	depth     int
	buffer    int
	upgrader  websocket.Upgrader
	logger    *slog.Logger
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(
	marketSvc *service.MarketService,
	trades *feed.Hub[*domain.Trade],
	books *feed.Hub[feed.BookUpdate],
	depth int,
	buffer int,
	logger *slog.Logger,
) *WSHandler {
	return &WSHandler{
		marketSvc: marketSvc,
		trades:    trades,
		books:     books,
		depth:     depth,
		buffer:    buffer,
		upgrader:  websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		logger:    logger,
	}
}

// ServeBook handles GET /ws/book/{symbol}: an initial depth snapshot
// followed by a frame after every book change.
func (h *WSHandler) ServeBook(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	// Resolve the snapshot before upgrading so unknown symbols get a
	// plain HTTP error instead of an immediately-closed socket.
	snap, err := h.marketSvc.Snapshot(symbol, h.depth)
	if err != nil {
		mapMarketError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	sub := h.books.Subscribe(h.buffer)
	defer h.books.Unsubscribe(sub)

	if err := conn.WriteJSON(outboundMessage{Type: "book", Data: feed.NewBookUpdate(snap)}); err != nil {
		return
	}

	done := h.watchClose(conn)
	for {
		select {
		case <-done:
			return
		case update, ok := <-sub.C():
			if !ok {
				return
			}
			if update.Symbol != symbol {
				continue
			}
			if err := conn.WriteJSON(outboundMessage{Type: "book", Data: update}); err != nil {
				return
			}
		}
	}
}

// ServeTrades handles GET /ws/trades/{symbol}: one frame per executed
// trade on the symbol.
func (h *WSHandler) ServeTrades(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	sub := h.trades.Subscribe(h.buffer)
	defer h.trades.Unsubscribe(sub)

	done := h.watchClose(conn)
	for {
		select {
		case <-done:
			return
		case trade, ok := <-sub.C():
			if !ok {
				return
			}
			if trade.Symbol != symbol {
				continue
			}
			if err := conn.WriteJSON(outboundMessage{Type: "trade", Data: trade}); err != nil {
				return
			}
		}
	}
}

// watchClose drains inbound frames so the peer's close handshake is
// noticed, signalling done when the connection drops.
func (h *WSHandler) watchClose(conn *websocket.Conn) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return done
}
