package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Lot single purchase contributing to the cost basis of an asset.
type Lot struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
	Date     time.Time       `json:"date"`
}

// Cost returns Price*Quantity.
func (l Lot) Cost() decimal.Decimal {
	return l.Price.Mul(l.Quantity)
}

// Asset held cryptocurrency.
type Asset struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	// Amount held, in base units.
	Amount        decimal.Decimal `json:"amount"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	PreviousPrice decimal.Decimal `json:"previous_price"`
	// Value is Amount*CurrentPrice, recomputed on every tick.
	Value decimal.Decimal `json:"value"`
	// Investment is the total amount spent, in quote currency.
	Investment      decimal.Decimal `json:"investment"`
	PurchaseHistory []Lot           `json:"purchase_history"`
}

// Clone returns a deep copy of the asset.
func (a Asset) Clone() Asset {
	a.PurchaseHistory = append([]Lot(nil), a.PurchaseHistory...)
	return a
}

// PriceDirection compares current and previous price for up/down coloring.
func (a Asset) PriceDirection() int {
	if a.PreviousPrice.IsZero() {
		return 0
	}
	return a.CurrentPrice.Cmp(a.PreviousPrice)
}

// PriceTick single trade price from the stream.
type PriceTick struct {
	Symbol string
	Price  decimal.Decimal
}

// PortfolioTotals aggregate figures in display currency.
type PortfolioTotals struct {
	Balance           decimal.Decimal `json:"balance"`
	Invested          decimal.Decimal `json:"invested"`
	ProfitLoss        decimal.Decimal `json:"profit_loss"`
	ProfitLossPercent decimal.Decimal `json:"profit_loss_percent"`
}

// DailyChange movement of a position since the previous daily close.
type DailyChange struct {
	// GainLoss in display currency.
	GainLoss decimal.Decimal `json:"gain_loss"`
	Percent  decimal.Decimal `json:"percent"`
}

// PortfolioSnapshot state published after every portfolio mutation.
type PortfolioSnapshot struct {
	Timestamp    time.Time              `json:"ts"`
	Assets       []Asset                `json:"assets"`
	Daily        map[string]DailyChange `json:"daily,omitempty"`
	Totals       PortfolioTotals        `json:"totals"`
	ExchangeRate decimal.Decimal        `json:"exchange_rate"`
}
