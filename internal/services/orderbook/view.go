package orderbook

import (
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/deskfolio/internal/domain"
)

// DepthRows is how many aggregated levels per side the view shows.
const DepthRows = 10

// BuildView aggregates both sides of a depth snapshot and keeps the levels nearest to the spread.
// The mid price is rounded to pricePrecision+2 decimals.
func BuildView(pair string, snapshot domain.DepthSnapshot, step decimal.Decimal, pricePrecision int32) (domain.OrderbookView, error) {
	if pricePrecision < 0 {
		return domain.OrderbookView{}, errors.Wrapf(domain.ErrInvalidArgument, "price precision must be >= 0, got %d", pricePrecision)
	}

	bids, err := Aggregate(snapshot.Bids, step, domain.SideBid)
	if err != nil {
		return domain.OrderbookView{}, errors.Wrap(err, "aggregate bids")
	}
	asks, err := Aggregate(snapshot.Asks, step, domain.SideAsk)
	if err != nil {
		return domain.OrderbookView{}, errors.Wrap(err, "aggregate asks")
	}
	if len(bids) == 0 || len(asks) == 0 {
		return domain.OrderbookView{}, errors.Wrapf(domain.ErrEmptyOrderbook, "%s: %d bids, %d asks", pair, len(bids), len(asks))
	}

	bids = head(bids, DepthRows)
	asks = head(asks, DepthRows)

	maxQty := decimal.Zero
	for _, l := range bids {
		maxQty = decimal.Max(maxQty, l.Quantity)
	}
	for _, l := range asks {
		maxQty = decimal.Max(maxQty, l.Quantity)
	}

	mid := bids[0].Price.Add(asks[0].Price).Div(decimal.NewFromInt(2))

	return domain.OrderbookView{
		Pair:        pair,
		Step:        step,
		Bids:        toRows(bids, maxQty),
		Asks:        toRows(asks, maxQty),
		MidPrice:    mid.StringFixed(pricePrecision + 2),
		MaxQuantity: maxQty,
		UpdatedAt:   time.Now(),
	}, nil
}

func head(levels []domain.AggregatedLevel, n int) []domain.AggregatedLevel {
	if len(levels) > n {
		return levels[:n]
	}
	return levels
}

func toRows(levels []domain.AggregatedLevel, maxQty decimal.Decimal) []domain.OrderbookRow {
	rows := make([]domain.OrderbookRow, len(levels))
	for i, l := range levels {
		ratio := 0.0
		if maxQty.IsPositive() {
			ratio = l.Quantity.Div(maxQty).InexactFloat64()
		}
		rows[i] = domain.OrderbookRow{
			Price:      l.Price,
			Quantity:   l.Quantity,
			Total:      l.Price.Mul(l.Quantity),
			DepthRatio: ratio,
		}
	}
	return rows
}
