// Package orderbook groups raw depth levels into price buckets and builds the
// top-of-book view shown next to the chart.
package orderbook

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/deskfolio/internal/domain"
)

// Aggregate groups levels into buckets of width step.
// Every level lands in the bucket floor(price/step)*step and quantities inside a bucket are summed,
// so the total quantity of the side is preserved exactly. Bids come back highest price first,
// asks lowest price first.
func Aggregate(levels []domain.OrderLevel, step decimal.Decimal, side domain.Side) ([]domain.AggregatedLevel, error) {
	if !step.IsPositive() {
		return nil, errors.Wrapf(domain.ErrInvalidArgument, "aggregation step must be positive, got %s", step)
	}
	if !side.IsValid() {
		return nil, errors.Wrapf(domain.ErrInvalidArgument, "unknown side %q", side)
	}
	if len(levels) == 0 {
		return []domain.AggregatedLevel{}, nil
	}

	buckets := make(map[string]*domain.AggregatedLevel, len(levels))
	for i, level := range levels {
		price, err := decimal.NewFromString(level.Price)
		if err != nil {
			return nil, errors.Wrapf(domain.ErrInvalidArgument, "parse price %q at index %d: %v", level.Price, i, err)
		}
		qty, err := decimal.NewFromString(level.Quantity)
		if err != nil {
			return nil, errors.Wrapf(domain.ErrInvalidArgument, "parse quantity %q at index %d: %v", level.Quantity, i, err)
		}

		bucket := BucketPrice(price, step)
		// decimal values are not comparable map keys, String() is canonical for equal values
		key := bucket.String()
		if b, ok := buckets[key]; ok {
			b.Quantity = b.Quantity.Add(qty)
			continue
		}
		buckets[key] = &domain.AggregatedLevel{Price: bucket, Quantity: qty}
	}

	result := make([]domain.AggregatedLevel, 0, len(buckets))
	for _, b := range buckets {
		result = append(result, *b)
	}

	sort.Slice(result, func(i, j int) bool {
		if side == domain.SideBid {
			return result[i].Price.GreaterThan(result[j].Price)
		}
		return result[i].Price.LessThan(result[j].Price)
	})

	return result, nil
}

// BucketPrice returns floor(price/step)*step.
func BucketPrice(price, step decimal.Decimal) decimal.Decimal {
	return price.Div(step).Floor().Mul(step)
}
