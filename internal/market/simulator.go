// Package market generates economically plausible synthetic market data:
// quotes from a bounded random walk, depth snapshots built around the walk
// price, sparse trade prints, and seeded candle history. It never needs
// external input and never fails; unknown symbols start a fresh series from
// a default base price.
package market

import (
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"tradesim/internal/domain"
)

const (
	// priceFloor keeps the random walk strictly positive.
	priceFloor = 1.0

	// maxDrift bounds the per-quote random walk step.
	maxDrift = 1.5

	// defaultBasePrice seeds series for symbols we have never seen.
	defaultBasePrice = 100.0

	// bookDepth is the number of levels generated per side.
	bookDepth = 10

	// tapeCap is the number of trade prints retained per symbol.
	tapeCap = 50

	// historyBars is the number of seeded one-minute candles per symbol.
	historyBars = 61
)

// defaultBasePrices match the seeded watchlist of the trading UI.
var defaultBasePrices = map[string]float64{
	"AAPL": 186.42,
	"MSFT": 415.23,
	"SPY":  520.11,
	"TSLA": 182.35,
	"NVDA": 905.12,
	"AMD":  176.40,
}

// series is the mutable per-symbol state. One series is shared by all
// subscribers of a symbol, so every connection converges on the same price
// path.
type series struct {
	price   float64
	lastTS  int64
	tape    []domain.TradePrint
	history []domain.Candle
}

// Simulator owns all per-symbol price state. Safe for concurrent use.
type Simulator struct {
	mu     sync.Mutex
	rng    *rand.Rand
	series map[string]*series
	order  []string // symbol listing order
}

// New creates a Simulator seeded with the given base prices. A nil or empty
// map falls back to the default watchlist.
func New(basePrices map[string]float64) *Simulator {
	if len(basePrices) == 0 {
		basePrices = defaultBasePrices
	}
	s := &Simulator{
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		series: make(map[string]*series, len(basePrices)),
	}
	for sym, price := range basePrices {
		if price <= 0 {
			price = defaultBasePrice
		}
		s.series[sym] = &series{price: price}
		s.order = append(s.order, sym)
	}
	sort.Strings(s.order)
	return s
}

// Symbols returns the known symbols in stable order.
func (s *Simulator) Symbols() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// NextQuote advances the symbol's random walk and returns the resulting
// quote. The price never drops below priceFloor.
func (s *Simulator) NextQuote(symbol string) domain.Quote {
	s.mu.Lock()
	defer s.mu.Unlock()

	ser := s.getSeries(symbol)
	prev := ser.price
	ser.price = math.Max(priceFloor, ser.price+s.uniform(-maxDrift, maxDrift))

	last := round2(ser.price)
	change := round2(last - prev)
	changePct := round2(change / prev * 100)

	spread := s.uniform(0.01, 0.25)
	return domain.Quote{
		Symbol:        symbol,
		Last:          last,
		Change:        change,
		ChangePercent: changePct,
		Bid:           round2(last - spread/2),
		Ask:           round2(last + spread/2),
		Timestamp:     s.stamp(ser),
	}
}

// NextOrderBook advances the walk and builds a fresh depth snapshot around
// the new price. Asks start strictly above mid and bids strictly below, so
// the spread is non-negative by construction.
func (s *Simulator) NextOrderBook(symbol string) domain.OrderBookSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	ser := s.getSeries(symbol)
	ser.price = math.Max(priceFloor, ser.price+s.uniform(-maxDrift, maxDrift))
	mid := round2(ser.price)

	bids := make([]domain.OrderBookLevel, 0, bookDepth)
	asks := make([]domain.OrderBookLevel, 0, bookDepth)
	bid, ask := mid, mid
	for i := 0; i < bookDepth; i++ {
		bid -= s.uniform(0.05, 0.20)
		ask += s.uniform(0.05, 0.20)
		bids = append(bids, domain.OrderBookLevel{Price: round2(bid), Size: s.size(50, 800)})
		asks = append(asks, domain.OrderBookLevel{Price: round2(ask), Size: s.size(50, 800)})
	}

	return domain.OrderBookSnapshot{
		Bids:   bids,
		Asks:   asks,
		Mid:    mid,
		Spread: round2(asks[0].Price - bids[0].Price),
		TS:     s.stamp(ser),
	}
}

// NextTrade emits one print near the current walk price with a random side
// and records it on the symbol's tape.
func (s *Simulator) NextTrade(symbol string) domain.TradePrint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextTradeLocked(symbol)
}

func (s *Simulator) nextTradeLocked(symbol string) domain.TradePrint {
	ser := s.getSeries(symbol)
	side := domain.SideBuy
	if s.rng.Float64() > 0.5 {
		side = domain.SideSell
	}
	print := domain.TradePrint{
		Price: round2(math.Max(priceFloor, ser.price+s.uniform(-1, 1))),
		Size:  s.size(25, 500),
		Side:  side,
		TS:    s.stamp(ser),
	}
	ser.tape = append([]domain.TradePrint{print}, ser.tape...)
	if len(ser.tape) > tapeCap {
		ser.tape = ser.tape[:tapeCap]
	}
	return print
}

// Trades generates one fresh print and returns the symbol's recent tape,
// newest first.
func (s *Simulator) Trades(symbol string) []domain.TradePrint {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextTradeLocked(symbol)
	ser := s.getSeries(symbol)
	out := make([]domain.TradePrint, len(ser.tape))
	copy(out, ser.tape)
	return out
}

// History returns the symbol's seeded one-minute candles, seeding them on
// first request.
func (s *Simulator) History(symbol string) []domain.Candle {
	s.mu.Lock()
	defer s.mu.Unlock()

	ser := s.getSeries(symbol)
	if ser.history == nil {
		ser.history = s.seedHistory(ser)
	}
	out := make([]domain.Candle, len(ser.history))
	copy(out, ser.history)
	return out
}

// BasePrice returns the symbol's current walk price without advancing it.
// Used by order intake to price market fills.
func (s *Simulator) BasePrice(symbol string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return round2(s.getSeries(symbol).price)
}

// getSeries returns the series for symbol, creating a default-seeded one for
// symbols we have never seen. Caller must hold s.mu.
func (s *Simulator) getSeries(symbol string) *series {
	ser, ok := s.series[symbol]
	if !ok {
		ser = &series{price: defaultBasePrice}
		s.series[symbol] = ser
		s.order = append(s.order, symbol)
		sort.Strings(s.order)
	}
	return ser
}

// stamp returns a per-series monotonic epoch-ms timestamp. Caller must hold
// s.mu.
func (s *Simulator) stamp(ser *series) int64 {
	now := time.Now().UnixMilli()
	if now <= ser.lastTS {
		now = ser.lastTS + 1
	}
	ser.lastTS = now
	return now
}

func (s *Simulator) seedHistory(ser *series) []domain.Candle {
	candles := make([]domain.Candle, 0, historyBars)
	cursor := math.Max(priceFloor, ser.price-s.uniform(0, 3))
	now := time.Now().UnixMilli()
	for i := historyBars - 1; i >= 0; i-- {
		open := math.Max(priceFloor, cursor+s.uniform(-1, 1))
		close := math.Max(priceFloor, open+s.uniform(-0.8, 0.8))
		high := math.Max(open, close) + s.uniform(0, 0.6)
		low := math.Max(priceFloor, math.Min(open, close)-s.uniform(0, 0.6))
		candles = append(candles, domain.Candle{
			Time:   now - int64(i)*60_000,
			Open:   round2(open),
			High:   round2(high),
			Low:    round2(low),
			Close:  round2(close),
			Volume: s.size(10_000, 80_000),
		})
		cursor = close
	}
	return candles
}

func (s *Simulator) uniform(min, max float64) float64 {
	return min + s.rng.Float64()*(max-min)
}

func (s *Simulator) size(min, max int64) int64 {
	return min + s.rng.Int63n(max-min)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
