package handler

import (
	"log/slog"
	"net/http"

	"tradesim/internal/domain"
)

// PositionSource defines the methods that the position handler requires.
type PositionSource interface {
	Positions(mark func(symbol string) float64) []domain.Position
}

// Pricer supplies live simulated prices for marking positions.
type Pricer interface {
	BasePrice(symbol string) float64
}

// PositionHandler serves position and account endpoints.
type PositionHandler struct {
	book    PositionSource
	pricer  Pricer
	account domain.AccountSummary
	logger  *slog.Logger
}

// NewPositionHandler creates a PositionHandler with the given sources.
func NewPositionHandler(book PositionSource, pricer Pricer, account domain.AccountSummary, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{
		book:    book,
		pricer:  pricer,
		account: account,
		logger:  logger,
	}
}

// listPositionsResponse wraps the list positions response.
type listPositionsResponse struct {
	Positions []domain.Position `json:"positions"`
}

// ListPositions returns all open positions with open PnL marked against the
// live simulated price.
// GET /api/positions
func (h *PositionHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	positions := h.book.Positions(h.pricer.BasePrice)
	if positions == nil {
		positions = []domain.Position{}
	}
	writeJSON(w, http.StatusOK, listPositionsResponse{Positions: positions})
}

// GetAccount returns the account summary snapshot.
// GET /api/account
func (h *PositionHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.account)
}
