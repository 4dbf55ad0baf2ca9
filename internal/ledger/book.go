package ledger

import (
	"sort"
	"sync"

	"tradesim/internal/domain"
)

// Book is the in-memory position book. Positions are mutated only by fills
// flowing through order intake; PlOpen is derived and recomputed from live
// prices on every read.
type Book struct {
	mu        sync.Mutex
	positions map[string]*domain.Position
}

// NewBook creates an empty position book.
func NewBook() *Book {
	return &Book{positions: make(map[string]*domain.Position)}
}

// Seed preloads positions so the API surface is non-empty on boot.
func (b *Book) Seed(positions []domain.Position) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range positions {
		cp := p
		b.positions[p.Symbol] = &cp
	}
}

// ApplyFill folds one execution into the symbol's position. Adding to a
// position in the same direction reprices the average; reducing or flipping
// keeps the remaining side's basis.
func (b *Book) ApplyFill(fill domain.Fill) {
	qty := fill.Qty
	if fill.Side == domain.SideSell {
		qty = -qty
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	pos, ok := b.positions[fill.Symbol]
	if !ok {
		b.positions[fill.Symbol] = &domain.Position{
			Symbol:   fill.Symbol,
			Qty:      qty,
			AvgPrice: fill.Price,
		}
		return
	}

	newQty := pos.Qty + qty
	switch {
	case newQty == 0:
		delete(b.positions, fill.Symbol)
	case (pos.Qty > 0) == (newQty > 0) && (pos.Qty > 0) == (qty > 0):
		// Same-direction add: volume-weighted average price.
		pos.AvgPrice = (pos.AvgPrice*abs(pos.Qty) + fill.Price*abs(qty)) / abs(newQty)
		pos.Qty = newQty
	case (pos.Qty > 0) == (newQty > 0):
		// Partial reduce: basis unchanged.
		pos.Qty = newQty
	default:
		// Flip: the surviving side was opened by this fill.
		pos.Qty = newQty
		pos.AvgPrice = fill.Price
	}
}

// Positions returns every open position with PlOpen recomputed from the
// given mark price, sorted by symbol.
func (b *Book) Positions(mark func(symbol string) float64) []domain.Position {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]domain.Position, 0, len(b.positions))
	for _, pos := range b.positions {
		p := *pos
		if mark != nil {
			p.PlOpen = OpenPnl(p.Qty, p.AvgPrice, mark(p.Symbol))
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
