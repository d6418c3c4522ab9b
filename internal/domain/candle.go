package domain

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Candle single OHLCV candlestick. Time is the bar open time in epoch seconds.
type Candle struct {
	Time   int64           `json:"time"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume decimal.Decimal `json:"volume"`
}

// IsBullish reports whether the candle closed above its open.
func (c Candle) IsBullish() bool {
	return c.Close.GreaterThan(c.Open)
}

// SeriesKey identifies a candle series.
type SeriesKey struct {
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
}

// String returns the string representation.
func (k SeriesKey) String() string {
	return fmt.Sprintf("%s_%s", k.Symbol, k.Timeframe)
}

// ValidateCandles checks that candle times are strictly increasing.
func ValidateCandles(candles []Candle) error {
	for i := 1; i < len(candles); i++ {
		if candles[i].Time <= candles[i-1].Time {
			return errors.Wrapf(ErrInvalidArgument,
				"candle times must be strictly increasing, got %d after %d at index %d",
				candles[i].Time, candles[i-1].Time, i)
		}
	}
	return nil
}
