package handler

import (
	"log/slog"
	"net/http"

	"tradesim/internal/domain"
)

// MarketData defines the simulator methods the market handler requires.
type MarketData interface {
	Symbols() []string
	NextQuote(symbol string) domain.Quote
	History(symbol string) []domain.Candle
	Trades(symbol string) []domain.TradePrint
}

// MarketHandler serves watchlist quotes, candle history, and the trade tape.
type MarketHandler struct {
	sim    MarketData
	logger *slog.Logger
}

// NewMarketHandler creates a MarketHandler over the given simulator.
func NewMarketHandler(sim MarketData, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		sim:    sim,
		logger: logger,
	}
}

// listQuotesResponse wraps the watchlist response.
type listQuotesResponse struct {
	Quotes []domain.Quote `json:"quotes"`
}

// ListQuotes returns a fresh quote for every known symbol.
// GET /api/quotes
func (h *MarketHandler) ListQuotes(w http.ResponseWriter, r *http.Request) {
	symbols := h.sim.Symbols()
	quotes := make([]domain.Quote, 0, len(symbols))
	for _, sym := range symbols {
		quotes = append(quotes, h.sim.NextQuote(sym))
	}
	writeJSON(w, http.StatusOK, listQuotesResponse{Quotes: quotes})
}

// GetHistory returns the seeded one-minute candles for a symbol.
// GET /api/history?symbol=AAPL
func (h *MarketHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol query parameter required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"symbol":  symbol,
		"candles": h.sim.History(symbol),
	})
}

// GetTrades returns the recent trade tape for a symbol, newest first.
// GET /api/trades?symbol=AAPL
func (h *MarketHandler) GetTrades(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol query parameter required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"symbol": symbol,
		"trades": h.sim.Trades(symbol),
	})
}
