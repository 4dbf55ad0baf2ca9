package domain

// Quote is a best bid/ask/last snapshot for one symbol. Change and
// ChangePercent are measured against the previous last price.
type Quote struct {
	Symbol        string  `json:"symbol"`
	Last          float64 `json:"last"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
	Bid           float64 `json:"bid"`
	Ask           float64 `json:"ask"`
	Timestamp     int64   `json:"timestamp"` // epoch ms, monotonic per symbol
}

// OrderBookLevel is a single price level with available size.
type OrderBookLevel struct {
	Price float64 `json:"price"`
	Size  int64   `json:"size"`
}

// OrderBookSnapshot is a full depth snapshot. Bids are ordered by descending
// price, asks by ascending price; Spread = bestAsk - bestBid and is never
// negative.
type OrderBookSnapshot struct {
	Bids   []OrderBookLevel `json:"bids"`
	Asks   []OrderBookLevel `json:"asks"`
	Mid    float64          `json:"mid"`
	Spread float64          `json:"spread"`
	TS     int64            `json:"ts"`
}

// TradePrint is a single executed-trade record. Immutable once emitted.
type TradePrint struct {
	Price float64 `json:"price"`
	Size  int64   `json:"size"`
	Side  Side    `json:"side"`
	TS    int64   `json:"ts"`
}

// Candle is one OHLCV bar of seeded price history.
type Candle struct {
	Time   int64   `json:"time"` // epoch ms of bar open
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// ConnectionState is the client-observable lifecycle of a stream connection.
type ConnectionState string

const (
	StateConnecting   ConnectionState = "connecting"
	StateOpen         ConnectionState = "open"
	StateClosed       ConnectionState = "closed"
	StateError        ConnectionState = "error"
	StateReconnecting ConnectionState = "reconnecting"
)
