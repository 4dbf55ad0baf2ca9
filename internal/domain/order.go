package domain

// Side indicates whether this is a buy or sell.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderType selects between immediate execution and a resting limit order.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// OrderStatus tracks the order lifecycle. Market orders transition directly
// to filled; limit orders rest as working until canceled.
type OrderStatus string

const (
	OrderStatusWorking  OrderStatus = "working"
	OrderStatusFilled   OrderStatus = "filled"
	OrderStatusRejected OrderStatus = "rejected"
	OrderStatusCanceled OrderStatus = "canceled"
	OrderStatusPartial  OrderStatus = "partial"
)

// OrderDraft is what a client submits before validation. LimitPrice is
// required iff Type is limit.
type OrderDraft struct {
	Symbol     string    `json:"symbol"`
	Qty        float64   `json:"qty"`
	Side       Side      `json:"side"`
	Type       OrderType `json:"type"`
	LimitPrice *float64  `json:"limitPrice,omitempty"`
}

// Order is an accepted order.
type Order struct {
	ID          string      `json:"id"`
	Symbol      string      `json:"symbol"`
	Qty         float64     `json:"qty"`
	Side        Side        `json:"side"`
	Type        OrderType   `json:"type"`
	LimitPrice  *float64    `json:"limitPrice,omitempty"`
	Status      OrderStatus `json:"status"`
	SubmittedAt int64       `json:"submittedAt"` // epoch ms
}

// Fill records an execution. Created only alongside an order transitioning
// to filled.
type Fill struct {
	ID        string  `json:"id"`
	OrderID   string  `json:"orderId"`
	Symbol    string  `json:"symbol"`
	Qty       float64 `json:"qty"`
	Price     float64 `json:"price"`
	Side      Side    `json:"side"`
	Timestamp int64   `json:"timestamp"` // epoch ms
}

// AccountSummary is a static snapshot of account-level figures.
type AccountSummary struct {
	BuyingPower    float64 `json:"buyingPower"`
	Cash           float64 `json:"cash"`
	Equity         float64 `json:"equity"`
	MaintenanceReq float64 `json:"maintenanceReq"`
}
