package orders

import (
	"errors"
	"log/slog"
	"strings"
	"testing"

	"tradesim/internal/domain"
	"tradesim/internal/ledger"
)

type stubPricer struct{ price float64 }

func (s stubPricer) BasePrice(string) float64 { return s.price }

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestPlaceMarketOrderFillsImmediately(t *testing.T) {
	book := ledger.NewBook()
	in := NewIntake(stubPricer{price: 123.45}, book, testLogger())

	order, err := in.Place(domain.OrderDraft{
		Symbol: "AAPL",
		Qty:    10,
		Side:   domain.SideBuy,
		Type:   domain.OrderTypeMarket,
	})
	if err != nil {
		t.Fatalf("Place() error = %v", err)
	}
	if order.Status != domain.OrderStatusFilled {
		t.Errorf("status = %q, want filled", order.Status)
	}
	if !strings.HasPrefix(order.ID, "ORD-") {
		t.Errorf("order id = %q, want ORD- prefix", order.ID)
	}

	fills := in.Fills()
	if len(fills) != 1 {
		t.Fatalf("fills = %d, want 1", len(fills))
	}
	if fills[0].OrderID != order.ID || fills[0].Price != 123.45 {
		t.Errorf("fill = %+v, want order %s at 123.45", fills[0], order.ID)
	}
	if !strings.HasPrefix(fills[0].ID, "FILL-") {
		t.Errorf("fill id = %q, want FILL- prefix", fills[0].ID)
	}

	positions := book.Positions(nil)
	if len(positions) != 1 || positions[0].Qty != 10 || positions[0].AvgPrice != 123.45 {
		t.Errorf("positions = %+v, want one 10 @ 123.45", positions)
	}
}

func TestPlaceLimitOrderRestsWorking(t *testing.T) {
	in := NewIntake(stubPricer{price: 100}, ledger.NewBook(), testLogger())

	price := 95.50
	order, err := in.Place(domain.OrderDraft{
		Symbol:     "MSFT",
		Qty:        5,
		Side:       domain.SideBuy,
		Type:       domain.OrderTypeLimit,
		LimitPrice: &price,
	})
	if err != nil {
		t.Fatalf("Place() error = %v", err)
	}
	if order.Status != domain.OrderStatusWorking {
		t.Errorf("status = %q, want working", order.Status)
	}
	if len(in.Fills()) != 0 {
		t.Error("limit order produced a fill")
	}
}

func TestPlaceRejectsInvalidDraft(t *testing.T) {
	in := NewIntake(stubPricer{price: 100}, ledger.NewBook(), testLogger())

	_, err := in.Place(domain.OrderDraft{Symbol: "", Qty: 1, Side: domain.SideBuy, Type: domain.OrderTypeMarket})
	if !errors.Is(err, domain.ErrInvalidOrder) {
		t.Fatalf("Place() error = %v, want ErrInvalidOrder", err)
	}
	if len(in.Orders()) != 0 {
		t.Error("rejected draft was recorded")
	}
}

func TestOrdersNewestFirst(t *testing.T) {
	in := NewIntake(stubPricer{price: 100}, ledger.NewBook(), testLogger())

	first, _ := in.Place(domain.OrderDraft{Symbol: "AAPL", Qty: 1, Side: domain.SideBuy, Type: domain.OrderTypeMarket})
	second, _ := in.Place(domain.OrderDraft{Symbol: "MSFT", Qty: 1, Side: domain.SideBuy, Type: domain.OrderTypeMarket})

	orders := in.Orders()
	if len(orders) != 2 || orders[0].ID != second.ID || orders[1].ID != first.ID {
		t.Errorf("orders not newest first: %+v", orders)
	}
}

func TestCancel(t *testing.T) {
	in := NewIntake(stubPricer{price: 100}, ledger.NewBook(), testLogger())

	price := 95.0
	order, _ := in.Place(domain.OrderDraft{
		Symbol:     "AAPL",
		Qty:        1,
		Side:       domain.SideBuy,
		Type:       domain.OrderTypeLimit,
		LimitPrice: &price,
	})

	if err := in.Cancel(order.ID); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if got := in.Orders()[0].Status; got != domain.OrderStatusCanceled {
		t.Errorf("status = %q, want canceled", got)
	}

	// A second cancel hits an order that is no longer working.
	if err := in.Cancel(order.ID); !errors.Is(err, domain.ErrInvalidOrder) {
		t.Errorf("second Cancel() error = %v, want ErrInvalidOrder", err)
	}

	if err := in.Cancel("ORD-missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Cancel(unknown) error = %v, want ErrNotFound", err)
	}
}
