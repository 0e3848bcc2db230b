package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/efreitasn/nmsbook/internal/domain"
	"github.com/efreitasn/nmsbook/internal/service"
	"github.com/go-chi/chi/v5"
)

// MarketHandler handles HTTP requests for market data endpoints.
type MarketHandler struct {
	marketSvc    *service.MarketService
	defaultDepth int
}

// NewMarketHandler creates a new MarketHandler.
func NewMarketHandler(marketSvc *service.MarketService, defaultDepth int) *MarketHandler {
	return &MarketHandler{marketSvc: marketSvc, defaultDepth: defaultDepth}
}

// bookLevelResponse is one aggregated level in the book response.
type bookLevelResponse struct {
	Price         float64 `json:"price"`
	TotalQuantity int64   `json:"total_quantity"`
	OrderCount    int     `json:"order_count"`
}

// bookResponse is the JSON response for GET /symbols/{symbol}/book.
type bookResponse struct {
	Symbol     string              `json:"symbol"`
	Bids       []bookLevelResponse `json:"bids"`
	Asks       []bookLevelResponse `json:"asks"`
	Spread     *float64            `json:"spread"`
	SnapshotAt string              `json:"snapshot_at"`
}

// bboResponse is the JSON response for GET /symbols/{symbol}/bbo.
type bboResponse struct {
	Symbol   string   `json:"symbol"`
	BestBid  *float64 `json:"best_bid"`
	BestAsk  *float64 `json:"best_ask"`
	Spread   *float64 `json:"spread"`
	MidPrice *float64 `json:"mid_price"`
	At       string   `json:"at"`
}

// quoteLevelResponse is one level in the quote response.
type quoteLevelResponse struct {
	Price    float64 `json:"price"`
	Quantity int64   `json:"quantity"`
}

// quoteResponse is the JSON response for GET /symbols/{symbol}/quote.
type quoteResponse struct {
	Symbol            string               `json:"symbol"`
	Side              string               `json:"side"`
	QuantityRequested int64                `json:"quantity_requested"`
	QuantityAvailable int64                `json:"quantity_available"`
	FullyFillable     bool                 `json:"fully_fillable"`
	EstimatedAvgPrice *float64             `json:"estimated_avg_price"`
	EstimatedTotal    *float64             `json:"estimated_total"`
	PriceLevels       []quoteLevelResponse `json:"price_levels"`
	QuotedAt          string               `json:"quoted_at"`
}

// statsResponse is the JSON response for GET /stats.
type statsResponse struct {
	OrdersProcessed uint64 `json:"orders_processed"`
	OrdersFilled    uint64 `json:"orders_filled"`
	OrdersPartial   uint64 `json:"orders_partial"`
	OrdersCancelled uint64 `json:"orders_cancelled"`
	OrdersRejected  uint64 `json:"orders_rejected"`
	TradesExecuted  uint64 `json:"trades_executed"`
	TotalVolume     int64  `json:"total_volume"`
}

// GetBook handles GET /symbols/{symbol}/book.
func (h *MarketHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	depth := h.defaultDepth
	if v := r.URL.Query().Get("depth"); v != "" {
		d, err := strconv.Atoi(v)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "depth must be an integer")
			return
		}
		depth = d
	}

	book, err := h.marketSvc.Snapshot(symbol, depth)
	if err != nil {
		mapMarketError(w, err)
		return
	}

	resp := bookResponse{
		Symbol:     book.Symbol,
		Bids:       buildBookLevels(book.Bids),
		Asks:       buildBookLevels(book.Asks),
		SnapshotAt: book.SnapshotAt.UTC().Format(timestampLayout),
	}
	if book.Spread != nil {
		s := domain.CentsToDollars(*book.Spread)
		resp.Spread = &s
	}

	WriteJSON(w, http.StatusOK, resp)
}

// GetBBO handles GET /symbols/{symbol}/bbo.
func (h *MarketHandler) GetBBO(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	bbo, err := h.marketSvc.BBO(symbol)
	if err != nil {
		mapMarketError(w, err)
		return
	}

	resp := bboResponse{
		Symbol:   bbo.Symbol,
		BestBid:  centsPtrToDollars(bbo.BestBid),
		BestAsk:  centsPtrToDollars(bbo.BestAsk),
		Spread:   centsPtrToDollars(bbo.Spread),
		MidPrice: centsPtrToDollars(bbo.MidPrice),
		At:       bbo.At.UTC().Format(timestampLayout),
	}

	WriteJSON(w, http.StatusOK, resp)
}

// GetQuote handles GET /symbols/{symbol}/quote?side=bid&quantity=100.
func (h *MarketHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	side := r.URL.Query().Get("side")

	quantity, err := strconv.ParseInt(r.URL.Query().Get("quantity"), 10, 64)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", "quantity must be a positive integer")
		return
	}

	quote, err := h.marketSvc.Quote(symbol, domain.OrderSide(side), quantity)
	if err != nil {
		mapMarketError(w, err)
		return
	}

	levels := make([]quoteLevelResponse, len(quote.PriceLevels))
	for i, pl := range quote.PriceLevels {
		levels[i] = quoteLevelResponse{
			Price:    domain.CentsToDollars(pl.Price),
			Quantity: pl.Quantity,
		}
	}

	WriteJSON(w, http.StatusOK, quoteResponse{
		Symbol:            quote.Symbol,
		Side:              string(quote.Side),
		QuantityRequested: quote.QuantityRequested,
		QuantityAvailable: quote.QuantityAvailable,
		FullyFillable:     quote.FullyFillable,
		EstimatedAvgPrice: centsPtrToDollars(quote.EstimatedAvgPrice),
		EstimatedTotal:    centsPtrToDollars(quote.EstimatedTotal),
		PriceLevels:       levels,
		QuotedAt:          quote.QuotedAt.UTC().Format(timestampLayout),
	})
}

// GetTrades handles GET /symbols/{symbol}/trades?limit=50.
func (h *MarketHandler) GetTrades(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "limit must be an integer")
			return
		}
		limit = n
	}

	trades, err := h.marketSvc.RecentTrades(symbol, limit)
	if err != nil {
		mapMarketError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"symbol": symbol,
		"trades": buildTradeResponses(trades),
	})
}

// GetStats handles GET /stats.
func (h *MarketHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := h.marketSvc.Stats()
	WriteJSON(w, http.StatusOK, statsResponse{
		OrdersProcessed: stats.OrdersProcessed,
		OrdersFilled:    stats.OrdersFilled,
		OrdersPartial:   stats.OrdersPartial,
		OrdersCancelled: stats.OrdersCancelled,
		OrdersRejected:  stats.OrdersRejected,
		TradesExecuted:  stats.TradesExecuted,
		TotalVolume:     stats.TotalVolume,
	})
}

func buildBookLevels(levels []service.BookPriceLevel) []bookLevelResponse {
	result := make([]bookLevelResponse, len(levels))
	for i, l := range levels {
		result[i] = bookLevelResponse{
			Price:         domain.CentsToDollars(l.Price),
			TotalQuantity: l.TotalQuantity,
			OrderCount:    l.OrderCount,
		}
	}
	return result
}

func centsPtrToDollars(c *int64) *float64 {
	if c == nil {
		return nil
	}
	v := domain.CentsToDollars(*c)
	return &v
}

// mapMarketError maps domain errors to HTTP responses for market data
// endpoints.
func mapMarketError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
		return
	}

	switch {
	case errors.Is(err, domain.ErrSymbolNotFound):
		WriteError(w, http.StatusNotFound, "symbol_not_found", err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
