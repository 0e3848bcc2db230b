package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/efreitasn/nmsbook/internal/domain"
	"github.com/efreitasn/nmsbook/internal/engine"
	"github.com/efreitasn/nmsbook/internal/feed"
	"github.com/efreitasn/nmsbook/internal/service"
	"github.com/efreitasn/nmsbook/internal/store"
)

// testEnv wires a full engine behind the HTTP router.
type testEnv struct {
	t      *testing.T
	server *httptest.Server
	trades *feed.Hub[*domain.Trade]
	books  *feed.Hub[feed.BookUpdate]
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	symbols := domain.NewSymbolRegistry()
	books := engine.NewBookManager()
	orders := store.NewOrderStore()
	trades := store.NewTradeStore(0)
	stream := engine.NewEventLog()
	matcher := engine.NewMatcher(books, orders, trades, stream, engine.NewSequencer(), symbols)

	orderSvc := service.NewOrderService(matcher, orders)
	marketSvc := service.NewMarketService(trades, books, matcher, symbols)

	tradeHub := feed.NewHub[*domain.Trade]()
	bookHub := feed.NewHub[feed.BookUpdate]()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := NewRouter(
		NewOrderHandler(orderSvc),
		NewMarketHandler(marketSvc, 10),
		NewWSHandler(marketSvc, tradeHub, bookHub, 10, 64, logger),
		logger,
	)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testEnv{t: t, server: server, trades: tradeHub, books: bookHub}
}

// request performs an HTTP request and decodes the JSON response body.
func (e *testEnv) request(method, path string, body any) (int, map[string]any) {
	e.t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			e.t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		e.t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		e.t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		e.t.Fatalf("decode response body: %v", err)
	}
	return resp.StatusCode, decoded
}

func (e *testEnv) submitLimit(side string, price float64, qty int64) map[string]any {
	e.t.Helper()
	status, body := e.request(http.MethodPost, "/orders", map[string]any{
		"type": "limit", "side": side, "symbol": "AAPL",
		"price": price, "quantity": qty,
	})
	if status != http.StatusCreated {
		e.t.Fatalf("submit limit order: status %d, body %v", status, body)
	}
	return body
}

func TestSubmitOrder_Created(t *testing.T) {
	env := newTestEnv(t)

	body := env.submitLimit("bid", 150.25, 10)
	if body["status"] != "pending" {
		t.Errorf("expected pending, got %v", body["status"])
	}
	if body["price"] != 150.25 {
		t.Errorf("expected price 150.25, got %v", body["price"])
	}
	if body["remaining_quantity"] != float64(10) {
		t.Errorf("expected remaining 10, got %v", body["remaining_quantity"])
	}
	if body["order_id"] == "" || body["order_id"] == nil {
		t.Error("expected an order_id")
	}
}

func TestSubmitOrder_MatchReturnsTrades(t *testing.T) {
	env := newTestEnv(t)

	ask := env.submitLimit("ask", 150, 5)
	body := env.submitLimit("bid", 151, 5)

	if body["status"] != "filled" {
		t.Errorf("expected filled, got %v", body["status"])
	}
	trades, ok := body["trades"].([]any)
	if !ok || len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %v", body["trades"])
	}
	trade := trades[0].(map[string]any)
	if trade["price"] != float64(150) {
		t.Errorf("expected maker price 150, got %v", trade["price"])
	}
	if trade["maker_order_id"] != ask["order_id"] {
		t.Error("expected the resting ask as maker")
	}
	if body["average_price"] != float64(150) {
		t.Errorf("expected average_price 150, got %v", body["average_price"])
	}
}

func TestSubmitOrder_ContentTypeRequired(t *testing.T) {
	env := newTestEnv(t)

	req, _ := http.NewRequest(http.MethodPost, env.server.URL+"/orders",
		strings.NewReader(`{"type":"limit","side":"bid","symbol":"AAPL","price":150,"quantity":5}`))
	req.Header.Set("Content-Type", "text/plain")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for wrong content type, got %d", resp.StatusCode)
	}
}

func TestSubmitOrder_MalformedJSON(t *testing.T) {
	env := newTestEnv(t)

	req, _ := http.NewRequest(http.MethodPost, env.server.URL+"/orders", strings.NewReader(`{not json`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed JSON, got %d", resp.StatusCode)
	}
}

func TestSubmitOrder_ValidationError(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.request(http.MethodPost, "/orders", map[string]any{
		"type": "limit", "side": "bid", "symbol": "AAPL", "quantity": 5,
	})
	if status != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", status)
	}
	if body["error"] != "validation_error" {
		t.Errorf("expected validation_error, got %v", body["error"])
	}
}

func TestSubmitOrder_DuplicateID(t *testing.T) {
	env := newTestEnv(t)

	req := map[string]any{
		"order_id": "client-1", "type": "limit", "side": "bid",
		"symbol": "AAPL", "price": 150.0, "quantity": 5,
	}
	if status, _ := env.request(http.MethodPost, "/orders", req); status != http.StatusCreated {
		t.Fatalf("first submit: status %d", status)
	}

	status, body := env.request(http.MethodPost, "/orders", req)
	if status != http.StatusConflict {
		t.Errorf("expected 409, got %d", status)
	}
	if body["error"] != "duplicate_order_id" {
		t.Errorf("expected duplicate_order_id, got %v", body["error"])
	}
}

func TestSubmitOrder_FOKUnfillable(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.request(http.MethodPost, "/orders", map[string]any{
		"type": "fok", "side": "bid", "symbol": "AAPL", "price": 150.0, "quantity": 10,
	})
	if status != http.StatusConflict {
		t.Errorf("expected 409, got %d", status)
	}
	if body["error"] != "unfillable" {
		t.Errorf("expected unfillable, got %v", body["error"])
	}
}

func TestGetOrder(t *testing.T) {
	env := newTestEnv(t)

	submitted := env.submitLimit("bid", 150, 5)
	id := submitted["order_id"].(string)

	status, body := env.request(http.MethodGet, "/orders/"+id, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if body["order_id"] != id {
		t.Errorf("expected order %s back, got %v", id, body["order_id"])
	}

	status, body = env.request(http.MethodGet, "/orders/missing", nil)
	if status != http.StatusNotFound {
		t.Errorf("expected 404, got %d", status)
	}
	if body["error"] != "order_not_found" {
		t.Errorf("expected order_not_found, got %v", body["error"])
	}
}

func TestCancelOrder(t *testing.T) {
	env := newTestEnv(t)

	submitted := env.submitLimit("bid", 150, 5)
	id := submitted["order_id"].(string)

	status, body := env.request(http.MethodDelete, "/orders/"+id, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", status, body)
	}
	if body["status"] != "cancelled" {
		t.Errorf("expected cancelled, got %v", body["status"])
	}
	if body["cancelled_at"] == nil {
		t.Error("expected cancelled_at set")
	}

	if status, _ := env.request(http.MethodDelete, "/orders/"+id, nil); status != http.StatusNotFound {
		t.Errorf("expected 404 on repeat cancel, got %d", status)
	}
}

func TestGetBook(t *testing.T) {
	env := newTestEnv(t)
	env.submitLimit("bid", 149, 10)
	env.submitLimit("ask", 150, 8)

	status, body := env.request(http.MethodGet, "/symbols/AAPL/book", nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	bids := body["bids"].([]any)
	asks := body["asks"].([]any)
	if len(bids) != 1 || len(asks) != 1 {
		t.Fatalf("expected 1 level each side, got %d / %d", len(bids), len(asks))
	}
	top := bids[0].(map[string]any)
	if top["price"] != float64(149) || top["total_quantity"] != float64(10) {
		t.Errorf("unexpected top bid: %v", top)
	}
	if body["spread"] != float64(1) {
		t.Errorf("expected spread 1.00, got %v", body["spread"])
	}
}

func TestGetBook_Errors(t *testing.T) {
	env := newTestEnv(t)
	env.submitLimit("bid", 149, 10)

	if status, _ := env.request(http.MethodGet, "/symbols/GOOG/book", nil); status != http.StatusNotFound {
		t.Errorf("expected 404 for unknown symbol, got %d", status)
	}
	if status, _ := env.request(http.MethodGet, "/symbols/AAPL/book?depth=0", nil); status != http.StatusBadRequest {
		t.Errorf("expected 400 for depth 0, got %d", status)
	}
	if status, _ := env.request(http.MethodGet, "/symbols/AAPL/book?depth=abc", nil); status != http.StatusBadRequest {
		t.Errorf("expected 400 for non-integer depth, got %d", status)
	}
}

func TestGetBBO(t *testing.T) {
	env := newTestEnv(t)
	env.submitLimit("bid", 149, 10)
	env.submitLimit("ask", 150, 8)

	status, body := env.request(http.MethodGet, "/symbols/AAPL/bbo", nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if body["best_bid"] != float64(149) || body["best_ask"] != float64(150) {
		t.Errorf("unexpected bbo: %v / %v", body["best_bid"], body["best_ask"])
	}
	if body["mid_price"] != 149.5 {
		t.Errorf("expected mid 149.5, got %v", body["mid_price"])
	}
}

func TestGetQuote(t *testing.T) {
	env := newTestEnv(t)
	env.submitLimit("ask", 150, 8)
	env.submitLimit("ask", 150.5, 3)

	status, body := env.request(http.MethodGet, "/symbols/AAPL/quote?side=bid&quantity=10", nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if body["fully_fillable"] != true || body["quantity_available"] != float64(10) {
		t.Errorf("unexpected quote: %v", body)
	}
	levels := body["price_levels"].([]any)
	if len(levels) != 2 {
		t.Errorf("expected 2 levels, got %d", len(levels))
	}

	if status, _ := env.request(http.MethodGet, "/symbols/AAPL/quote?side=bid", nil); status != http.StatusBadRequest {
		t.Errorf("expected 400 for missing quantity, got %d", status)
	}
	if status, _ := env.request(http.MethodGet, "/symbols/AAPL/quote?side=buy&quantity=5", nil); status != http.StatusBadRequest {
		t.Errorf("expected 400 for bad side, got %d", status)
	}
}

func TestGetTrades(t *testing.T) {
	env := newTestEnv(t)
	env.submitLimit("ask", 150, 5)
	env.submitLimit("bid", 150, 2)

	status, body := env.request(http.MethodGet, "/symbols/AAPL/trades", nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	trades := body["trades"].([]any)
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	trade := trades[0].(map[string]any)
	if trade["price"] != float64(150) || trade["quantity"] != float64(2) {
		t.Errorf("unexpected trade: %v", trade)
	}

	if status, _ := env.request(http.MethodGet, "/symbols/AAPL/trades?limit=0", nil); status != http.StatusBadRequest {
		t.Errorf("expected 400 for limit 0, got %d", status)
	}
}

func TestGetStats(t *testing.T) {
	env := newTestEnv(t)
	env.submitLimit("ask", 150, 5)
	env.submitLimit("bid", 150, 5)

	status, body := env.request(http.MethodGet, "/stats", nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if body["orders_processed"] != float64(2) {
		t.Errorf("expected 2 orders processed, got %v", body["orders_processed"])
	}
	if body["trades_executed"] != float64(1) || body["total_volume"] != float64(5) {
		t.Errorf("unexpected trade stats: %v", body)
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.request(http.MethodGet, "/healthz", nil)
	if status != http.StatusOK || body["status"] != "ok" {
		t.Errorf("expected healthy, got %d %v", status, body)
	}
}

func (e *testEnv) wsURL(path string) string {
	return "ws" + strings.TrimPrefix(e.server.URL, "http") + path
}

func TestWSBook_InitialSnapshot(t *testing.T) {
	env := newTestEnv(t)
	env.submitLimit("bid", 149, 10)
	env.submitLimit("ask", 150, 8)

	conn, _, err := websocket.DefaultDialer.Dial(env.wsURL("/ws/book/AAPL"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type string          `json:"type"`
		Data feed.BookUpdate `json:"data"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read snapshot frame: %v", err)
	}
	if msg.Type != "book" || msg.Data.Symbol != "AAPL" {
		t.Fatalf("unexpected frame: %+v", msg)
	}
	if len(msg.Data.Bids) != 1 || msg.Data.Bids[0].Price != 14900 {
		t.Errorf("unexpected snapshot bids: %+v", msg.Data.Bids)
	}
}

func TestWSBook_UnknownSymbol(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.server.URL + "/ws/book/GOOG")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected plain 404 before upgrade, got %d", resp.StatusCode)
	}
}

func TestWSTrades_ReceivesBroadcast(t *testing.T) {
	env := newTestEnv(t)

	conn, _, err := websocket.DefaultDialer.Dial(env.wsURL("/ws/trades/AAPL"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	trade := &domain.Trade{
		TradeID: "t1", Symbol: "AAPL", Price: 15000, Quantity: 3,
		AggressorSide: domain.OrderSideBid, Sequence: 1,
	}
	// The server subscribes after the handshake; rebroadcast until the
	// frame lands.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
				env.trades.Broadcast(trade)
				time.Sleep(10 * time.Millisecond)
			}
		}
	}()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type string       `json:"type"`
		Data domain.Trade `json:"data"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read trade frame: %v", err)
	}
	if msg.Type != "trade" || msg.Data.TradeID != "t1" || msg.Data.Price != 15000 {
		t.Errorf("unexpected frame: %+v", msg)
	}
}

func TestWSTrades_FiltersOtherSymbols(t *testing.T) {
	env := newTestEnv(t)

	conn, _, err := websocket.DefaultDialer.Dial(env.wsURL("/ws/trades/AAPL"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	msft := &domain.Trade{TradeID: "m1", Symbol: "MSFT", Price: 30000, Quantity: 1}
	aapl := &domain.Trade{TradeID: "a1", Symbol: "AAPL", Price: 15000, Quantity: 1}
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
				env.trades.Broadcast(msft)
				env.trades.Broadcast(aapl)
				time.Sleep(10 * time.Millisecond)
			}
		}
	}()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type string       `json:"type"`
		Data domain.Trade `json:"data"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if msg.Data.Symbol != "AAPL" {
		t.Errorf("expected only AAPL trades on this feed, got %s", msg.Data.Symbol)
	}
}

func TestRequestIDsAreDistinct(t *testing.T) {
	env := newTestEnv(t)

	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		body := env.submitLimit("bid", 149-float64(i), 1)
		id := body["order_id"].(string)
		if seen[id] {
			t.Fatalf("order id %q assigned twice", id)
		}
		seen[id] = true
	}
}
