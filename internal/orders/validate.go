// Package orders implements order validation and the order-intake service
// that turns accepted drafts into Order/Fill records.
package orders

import (
	"math"
	"strings"

	"tradesim/internal/domain"
)

// ValidationError carries the human-readable reason an order draft was
// rejected. It unwraps to domain.ErrInvalidOrder so callers can branch with
// errors.Is.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func (e *ValidationError) Unwrap() error { return domain.ErrInvalidOrder }

// Validate checks an order draft before submission. Rules are applied in
// order and the first failure wins. Pure; safe to call speculatively.
func Validate(draft domain.OrderDraft) error {
	if strings.TrimSpace(draft.Symbol) == "" {
		return &ValidationError{Reason: "Symbol is required"}
	}
	if !isFinite(draft.Qty) || draft.Qty <= 0 {
		return &ValidationError{Reason: "Quantity must be greater than zero"}
	}
	if draft.Side != domain.SideBuy && draft.Side != domain.SideSell {
		return &ValidationError{Reason: "Side must be buy or sell"}
	}
	if draft.Type != domain.OrderTypeMarket && draft.Type != domain.OrderTypeLimit {
		return &ValidationError{Reason: "Type must be market or limit"}
	}
	if draft.Type == domain.OrderTypeLimit {
		if draft.LimitPrice == nil || !isFinite(*draft.LimitPrice) {
			return &ValidationError{Reason: "Limit price required for limit orders"}
		}
		if *draft.LimitPrice <= 0 {
			return &ValidationError{Reason: "Limit price must be positive"}
		}
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
