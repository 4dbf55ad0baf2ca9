package orders

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"tradesim/internal/domain"
	"tradesim/internal/ledger"
)

// Pricer supplies the current simulated price used to fill market orders.
type Pricer interface {
	BasePrice(symbol string) float64
}

// Intake accepts order drafts, validates them, and records the resulting
// Order/Fill pairs in memory. Market orders transition directly to filled;
// limit orders rest as working. Nothing survives a restart.
type Intake struct {
	pricer Pricer
	book   *ledger.Book
	logger *slog.Logger

	mu     sync.Mutex
	orders []domain.Order // newest first
	fills  []domain.Fill  // newest first
}

// NewIntake creates an Intake that prices market fills off the given pricer
// and applies fills to the given position book.
func NewIntake(pricer Pricer, book *ledger.Book, logger *slog.Logger) *Intake {
	return &Intake{
		pricer: pricer,
		book:   book,
		logger: logger.With(slog.String("component", "orders")),
	}
}

// Seed preloads orders and fills so the API surface is non-empty on boot.
func (in *Intake) Seed(orders []domain.Order, fills []domain.Fill) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.orders = append(in.orders, orders...)
	in.fills = append(in.fills, fills...)
}

// Place validates a draft and creates an order. A validation failure is
// returned as a typed error carrying the reason; it is never a fault. On a
// market order the fill is created in the same step and applied to the
// position book.
func (in *Intake) Place(draft domain.OrderDraft) (domain.Order, error) {
	if err := Validate(draft); err != nil {
		return domain.Order{}, err
	}

	now := time.Now().UnixMilli()
	order := domain.Order{
		ID:          fmt.Sprintf("ORD-%s", uuid.NewString()),
		Symbol:      draft.Symbol,
		Qty:         draft.Qty,
		Side:        draft.Side,
		Type:        draft.Type,
		LimitPrice:  draft.LimitPrice,
		Status:      domain.OrderStatusWorking,
		SubmittedAt: now,
	}

	var fill *domain.Fill
	if draft.Type == domain.OrderTypeMarket {
		order.Status = domain.OrderStatusFilled
		price := in.pricer.BasePrice(draft.Symbol)
		if draft.LimitPrice != nil {
			price = *draft.LimitPrice
		}
		fill = &domain.Fill{
			ID:        fmt.Sprintf("FILL-%s", uuid.NewString()),
			OrderID:   order.ID,
			Symbol:    order.Symbol,
			Qty:       order.Qty,
			Price:     price,
			Side:      order.Side,
			Timestamp: now,
		}
	}

	in.mu.Lock()
	in.orders = append([]domain.Order{order}, in.orders...)
	if fill != nil {
		in.fills = append([]domain.Fill{*fill}, in.fills...)
	}
	in.mu.Unlock()

	if fill != nil && in.book != nil {
		in.book.ApplyFill(*fill)
	}

	in.logger.Info("order accepted",
		slog.String("order_id", order.ID),
		slog.String("symbol", order.Symbol),
		slog.String("status", string(order.Status)),
	)
	return order, nil
}

// Cancel moves a working order to canceled. Returns domain.ErrNotFound for
// unknown IDs and domain.ErrInvalidOrder for orders that are no longer
// working.
func (in *Intake) Cancel(id string) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	for i := range in.orders {
		if in.orders[i].ID != id {
			continue
		}
		if in.orders[i].Status != domain.OrderStatusWorking {
			return fmt.Errorf("orders: cancel %s in status %s: %w",
				id, in.orders[i].Status, domain.ErrInvalidOrder)
		}
		in.orders[i].Status = domain.OrderStatusCanceled
		return nil
	}
	return fmt.Errorf("orders: cancel %s: %w", id, domain.ErrNotFound)
}

// Orders returns all orders, newest first.
func (in *Intake) Orders() []domain.Order {
	in.mu.Lock()
	defer in.mu.Unlock()
	out := make([]domain.Order, len(in.orders))
	copy(out, in.orders)
	return out
}

// Fills returns all fills, newest first.
func (in *Intake) Fills() []domain.Fill {
	in.mu.Lock()
	defer in.mu.Unlock()
	out := make([]domain.Fill, len(in.fills))
	copy(out, in.fills)
	return out
}
