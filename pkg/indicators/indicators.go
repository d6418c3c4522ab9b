// Package indicators provides moving averages used by the chart overlays.
package indicators

import (
	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Point single indicator value aligned with the candle it was computed for.
type Point struct {
	Time  int64
	Value decimal.Decimal
}

// CalculateSMA calculates the Simple Moving Average for the given period.
// The result is period-1 values shorter than closes: the first value belongs to closes[period-1].
func CalculateSMA(closes []decimal.Decimal, period int) ([]decimal.Decimal, error) {
	if period <= 0 {
		return nil, errors.Errorf("period must be positive, got %d", period)
	}
	if len(closes) < period {
		return nil, errors.Errorf("not enough data points: need %d, got %d", period, len(closes))
	}

	closesFloat := decimalsToFloat64(closes)

	sma := trend.NewSmaWithPeriod[float64](period)
	inputChan := helper.SliceToChan(closesFloat)
	outputChan := sma.Compute(inputChan)
	smaFloat := helper.ChanToSlice(outputChan)

	return float64ToDecimals(smaFloat), nil
}

// MovingAverage aligns an SMA over closes with the given times.
// Series shorter than the period produce no points.
func MovingAverage(times []int64, closes []decimal.Decimal, period int) ([]Point, error) {
	if len(times) != len(closes) {
		return nil, errors.Errorf("times and closes differ in length: %d != %d", len(times), len(closes))
	}
	if len(closes) < period {
		return nil, nil
	}

	values, err := CalculateSMA(closes, period)
	if err != nil {
		return nil, errors.Wrapf(err, "sma%d", period)
	}

	// warmup differences are trimmed from the front
	offset := len(times) - len(values)
	points := make([]Point, len(values))
	for i, v := range values {
		points[i] = Point{Time: times[offset+i], Value: v}
	}

	return points, nil
}

// decimalsToFloat64 converts a slice of decimal.Decimal to []float64.
func decimalsToFloat64(decimals []decimal.Decimal) []float64 {
	result := make([]float64, len(decimals))
	for i, d := range decimals {
		result[i], _ = d.Float64()
	}
	return result
}

// float64ToDecimals converts a slice of float64 to []decimal.Decimal.
func float64ToDecimals(floats []float64) []decimal.Decimal {
	result := make([]decimal.Decimal, len(floats))
	for i, f := range floats {
		result[i] = decimal.NewFromFloat(f)
	}
	return result
}
