package indicators

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decimals(values ...int64) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		out[i] = decimal.NewFromInt(v)
	}
	return out
}

func TestCalculateSMA(t *testing.T) {
	got, err := CalculateSMA(decimals(1, 2, 3, 4, 5), 3)
	require.NoError(t, err)
	require.Len(t, got, 3)

	expected := []float64{2, 3, 4}
	for i, v := range got {
		assert.InDelta(t, expected[i], v.InexactFloat64(), 1e-9)
	}
}

func TestCalculateSMA_NotEnoughData(t *testing.T) {
	_, err := CalculateSMA(decimals(1, 2), 3)
	assert.Error(t, err)

	_, err = CalculateSMA(decimals(1, 2), 0)
	assert.Error(t, err)
}

func TestMovingAverage_AlignsTimes(t *testing.T) {
	times := []int64{10, 20, 30, 40}
	points, err := MovingAverage(times, decimals(2, 4, 6, 8), 2)
	require.NoError(t, err)
	require.Len(t, points, 3)

	assert.Equal(t, int64(20), points[0].Time)
	assert.InDelta(t, 3.0, points[0].Value.InexactFloat64(), 1e-9)
	assert.Equal(t, int64(40), points[2].Time)
	assert.InDelta(t, 7.0, points[2].Value.InexactFloat64(), 1e-9)
}

func TestMovingAverage_ShortSeries(t *testing.T) {
	points, err := MovingAverage([]int64{1}, decimals(1), 25)
	require.NoError(t, err)
	assert.Empty(t, points)

	_, err = MovingAverage([]int64{1, 2}, decimals(1), 1)
	assert.Error(t, err)
}
