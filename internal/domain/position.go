package domain

// Position is a held position. Qty is signed: negative means short.
// PlOpen is derived and recomputed from the live price; PlDay is the
// unrealized change since the prior session.
type Position struct {
	Symbol   string  `json:"symbol"`
	Qty      float64 `json:"qty"`
	AvgPrice float64 `json:"avgPrice"`
	PlOpen   float64 `json:"plOpen"`
	PlDay    float64 `json:"plDay"`
}
