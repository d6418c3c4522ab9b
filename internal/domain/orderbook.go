package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side of the order book.
type Side string

const (
	SideBid Side = "bid"
	SideAsk Side = "ask"
)

// IsValid checks if the Side value is valid.
func (s Side) IsValid() bool {
	return s == SideBid || s == SideAsk
}

// OrderLevel raw price level as returned by the exchange.
type OrderLevel struct {
	Price    string `json:"price"`
	Quantity string `json:"quantity"`
}

// AggregatedLevel price bucket with the summed quantity of all levels inside it.
type AggregatedLevel struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

// OrderbookRow display row of the aggregated book.
type OrderbookRow struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
	// Total is Price*Quantity in quote currency.
	Total decimal.Decimal `json:"total"`
	// DepthRatio is Quantity relative to the largest shown quantity, 0..1.
	DepthRatio float64 `json:"depth_ratio"`
}

// OrderbookView aggregated top of book shown next to the chart.
type OrderbookView struct {
	Pair        string          `json:"pair"`
	Step        decimal.Decimal `json:"step"`
	Bids        []OrderbookRow  `json:"bids"`
	Asks        []OrderbookRow  `json:"asks"`
	MidPrice    string          `json:"mid_price"`
	MaxQuantity decimal.Decimal `json:"max_quantity"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// DepthSnapshot full order book snapshot.
type DepthSnapshot struct {
	Bids []OrderLevel
	Asks []OrderLevel
}
