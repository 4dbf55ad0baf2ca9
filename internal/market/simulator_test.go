package market

import (
	"math"
	"testing"
)

func TestNextQuoteWalk(t *testing.T) {
	sim := New(map[string]float64{"AAPL": 186.42})

	var lastTS int64
	prev := sim.BasePrice("AAPL")
	for i := 0; i < 500; i++ {
		q := sim.NextQuote("AAPL")

		if q.Symbol != "AAPL" {
			t.Fatalf("quote symbol = %q, want AAPL", q.Symbol)
		}
		if q.Last < priceFloor {
			t.Fatalf("iteration %d: last %v below floor %v", i, q.Last, priceFloor)
		}
		if step := math.Abs(q.Last - prev); step > maxDrift+0.01 {
			t.Fatalf("iteration %d: step %v exceeds max drift %v", i, step, maxDrift)
		}
		if q.Bid > q.Ask {
			t.Fatalf("iteration %d: bid %v above ask %v", i, q.Bid, q.Ask)
		}
		if q.Bid > q.Last || q.Ask < q.Last {
			t.Fatalf("iteration %d: last %v outside [%v, %v]", i, q.Last, q.Bid, q.Ask)
		}
		if q.Timestamp <= lastTS {
			t.Fatalf("iteration %d: timestamp %d not after %d", i, q.Timestamp, lastTS)
		}
		lastTS = q.Timestamp
		prev = q.Last
	}
}

func TestNextQuoteChangeFields(t *testing.T) {
	sim := New(map[string]float64{"MSFT": 400})

	prev := sim.BasePrice("MSFT")
	q := sim.NextQuote("MSFT")

	wantChange := math.Round((q.Last-prev)*100) / 100
	if q.Change != wantChange {
		t.Errorf("change = %v, want %v", q.Change, wantChange)
	}
	wantPct := math.Round(q.Change/prev*100*100) / 100
	if q.ChangePercent != wantPct {
		t.Errorf("changePercent = %v, want %v", q.ChangePercent, wantPct)
	}
}

func TestNextOrderBookShape(t *testing.T) {
	sim := New(nil)

	for i := 0; i < 100; i++ {
		book := sim.NextOrderBook("SPY")

		if len(book.Bids) != bookDepth || len(book.Asks) != bookDepth {
			t.Fatalf("depth = %d/%d, want %d per side", len(book.Bids), len(book.Asks), bookDepth)
		}
		if book.Spread < 0 {
			t.Fatalf("iteration %d: negative spread %v", i, book.Spread)
		}
		if book.Bids[0].Price > book.Mid || book.Asks[0].Price < book.Mid {
			t.Fatalf("iteration %d: mid %v outside [%v, %v]",
				i, book.Mid, book.Bids[0].Price, book.Asks[0].Price)
		}
		for lvl := 1; lvl < bookDepth; lvl++ {
			if book.Bids[lvl].Price >= book.Bids[lvl-1].Price {
				t.Fatalf("bids not strictly descending at level %d", lvl)
			}
			if book.Asks[lvl].Price <= book.Asks[lvl-1].Price {
				t.Fatalf("asks not strictly ascending at level %d", lvl)
			}
		}
		for _, lvl := range append(book.Bids, book.Asks...) {
			if lvl.Size < 50 || lvl.Size >= 800 {
				t.Fatalf("level size %d outside [50, 800)", lvl.Size)
			}
		}
	}
}

func TestUnknownSymbolSeedsDefaultSeries(t *testing.T) {
	sim := New(nil)

	q := sim.NextQuote("ZZZZ")
	if q.Last < priceFloor {
		t.Fatalf("unknown symbol last = %v, want >= %v", q.Last, priceFloor)
	}
	if math.Abs(q.Last-defaultBasePrice) > maxDrift {
		t.Errorf("unknown symbol last = %v, want within one step of %v", q.Last, defaultBasePrice)
	}

	found := false
	for _, sym := range sim.Symbols() {
		if sym == "ZZZZ" {
			found = true
		}
	}
	if !found {
		t.Error("unknown symbol not added to the listing")
	}
}

func TestTradesTape(t *testing.T) {
	sim := New(nil)

	var latest int64
	for i := 0; i < tapeCap+10; i++ {
		p := sim.NextTrade("TSLA")
		if p.Size < 25 || p.Size >= 500 {
			t.Fatalf("trade size %d outside [25, 500)", p.Size)
		}
		if p.Price < priceFloor {
			t.Fatalf("trade price %v below floor", p.Price)
		}
		latest = p.TS
	}

	tape := sim.Trades("TSLA")
	if len(tape) != tapeCap {
		t.Fatalf("tape length = %d, want capped at %d", len(tape), tapeCap)
	}
	// Trades generates one fresh print before returning the tape, so the head
	// must be newer than anything printed before.
	if tape[0].TS <= latest {
		t.Errorf("tape head ts = %d, want newer than %d", tape[0].TS, latest)
	}
	for i := 1; i < len(tape); i++ {
		if tape[i].TS >= tape[i-1].TS {
			t.Fatalf("tape not newest-first at index %d", i)
		}
	}
}

func TestHistorySeededOnce(t *testing.T) {
	sim := New(nil)

	first := sim.History("NVDA")
	if len(first) != historyBars {
		t.Fatalf("history length = %d, want %d", len(first), historyBars)
	}
	for i, c := range first {
		if c.High < c.Open || c.High < c.Close {
			t.Fatalf("bar %d: high %v below body", i, c.High)
		}
		if c.Low > c.Open || c.Low > c.Close {
			t.Fatalf("bar %d: low %v above body", i, c.Low)
		}
		if c.Low < priceFloor {
			t.Fatalf("bar %d: low %v below floor", i, c.Low)
		}
		if i > 0 && c.Time-first[i-1].Time != 60_000 {
			t.Fatalf("bar %d: spacing %dms, want 60000ms", i, c.Time-first[i-1].Time)
		}
	}

	second := sim.History("NVDA")
	if second[0] != first[0] || second[len(second)-1] != first[len(first)-1] {
		t.Error("history reseeded on second request")
	}
}
