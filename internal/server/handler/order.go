package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"tradesim/internal/domain"
)

// OrderService defines the methods that the order handler requires from the
// intake layer.
type OrderService interface {
	Place(draft domain.OrderDraft) (domain.Order, error)
	Cancel(id string) error
	Orders() []domain.Order
	Fills() []domain.Fill
}

// OrderHandler serves order-related HTTP endpoints.
type OrderHandler struct {
	orders OrderService
	logger *slog.Logger
}

// NewOrderHandler creates an OrderHandler with the given service and logger.
func NewOrderHandler(orders OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		orders: orders,
		logger: logger,
	}
}

// listOrdersResponse wraps the list orders response.
type listOrdersResponse struct {
	Orders []domain.Order `json:"orders"`
}

// listFillsResponse wraps the list fills response.
type listFillsResponse struct {
	Fills []domain.Fill `json:"fills"`
}

// ListOrders returns all orders, newest first.
// GET /api/orders
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders := h.orders.Orders()
	if orders == nil {
		orders = []domain.Order{}
	}
	writeJSON(w, http.StatusOK, listOrdersResponse{Orders: orders})
}

// PlaceOrder creates a new order from an order draft JSON body. Validation
// failures come back as 400 with the human-readable reason.
// POST /api/orders
func (h *OrderHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var draft domain.OrderDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	order, err := h.orders.Place(draft)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidOrder) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: place order failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to place order")
		return
	}

	writeJSON(w, http.StatusCreated, order)
}

// CancelOrder cancels a working order by its ID.
// DELETE /api/orders/{id}
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	if err := h.orders.Cancel(id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		if errors.Is(err, domain.ErrInvalidOrder) {
			writeError(w, http.StatusConflict, "order is not working")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: cancel order failed",
			slog.String("order_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to cancel order")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "canceled",
		"order_id": id,
	})
}

// ListFills returns all fills, newest first.
// GET /api/fills
func (h *OrderHandler) ListFills(w http.ResponseWriter, r *http.Request) {
	fills := h.orders.Fills()
	if fills == nil {
		fills = []domain.Fill{}
	}
	writeJSON(w, http.StatusOK, listFillsResponse{Fills: fills})
}
