package chart

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/deskfolio/internal/domain"
)

const baseTime = int64(1_700_000_000)

// hourlyCandles builds n hourly candles whose low/high are close-1/close+1 around 100+i.
func hourlyCandles(n int) []domain.Candle {
	candles := make([]domain.Candle, n)
	for i := range candles {
		c := decimal.NewFromInt(int64(100 + i))
		open := c.Sub(decimal.RequireFromString("0.5"))
		if i%2 == 1 {
			open = c.Add(decimal.RequireFromString("0.5"))
		}
		candles[i] = domain.Candle{
			Time:   baseTime + int64(i)*3600,
			Open:   open,
			High:   c.Add(decimal.NewFromInt(1)),
			Low:    c.Sub(decimal.NewFromInt(1)),
			Close:  c,
			Volume: decimal.NewFromInt(int64(10 + i)),
		}
	}
	return candles
}

func newLoadedChart(t *testing.T, n int) *Chart {
	t.Helper()
	c := NewChart(DefaultOptions())
	require.NoError(t, c.SetData(hourlyCandles(n), time.Hour))
	return c
}

func TestChart_NoDataMisses(t *testing.T) {
	c := NewChart(DefaultOptions())

	_, ok := c.TimeToX(float64(baseTime))
	assert.False(t, ok)
	_, ok = c.YToPrice(10)
	assert.False(t, ok)
	_, _, ok = c.VisibleRange()
	assert.False(t, ok)
}

func TestChart_ZeroSizeMisses(t *testing.T) {
	c := NewChart(Options{Width: 0, Height: 600})
	require.NoError(t, c.SetData(hourlyCandles(3), time.Hour))

	_, ok := c.TimeToX(float64(baseTime))
	assert.False(t, ok)

	assert.ErrorIs(t, c.Resize(0, 10), domain.ErrInvalidArgument)
	require.NoError(t, c.Resize(800, 400))
	_, ok = c.TimeToX(float64(baseTime))
	assert.True(t, ok)
}

func TestChart_TimeScale(t *testing.T) {
	c := newLoadedChart(t, 10)

	// last bar sits right offset + half a bar from the right edge
	x, ok := c.TimeToX(float64(baseTime + 9*3600))
	require.True(t, ok)
	assert.InDelta(t, 1200-50.5*12, x, 1e-9)

	prev, ok := c.TimeToX(float64(baseTime + 8*3600))
	require.True(t, ok)
	assert.InDelta(t, 12, x-prev, 1e-9)

	mid, ok := c.TimeToX(float64(baseTime + 8*3600 + 1800))
	require.True(t, ok)
	assert.InDelta(t, prev+6, mid, 1e-9)

	future, ok := c.TimeToX(float64(baseTime + 12*3600))
	require.True(t, ok)
	assert.InDelta(t, x+36, future, 1e-9)

	past, ok := c.TimeToX(float64(baseTime - 3600))
	require.True(t, ok)
	first, _ := c.TimeToX(float64(baseTime))
	assert.InDelta(t, first-12, past, 1e-9)
}

func TestChart_PriceScale(t *testing.T) {
	c := newLoadedChart(t, 10)

	// visible lows/highs span 99..110, margins take 10% of 600px on each side
	top, ok := c.PriceToY(110)
	require.True(t, ok)
	assert.InDelta(t, 60, top, 1e-9)

	bottom, ok := c.PriceToY(99)
	require.True(t, ok)
	assert.InDelta(t, 540, bottom, 1e-9)

	price, ok := c.YToPrice(300)
	require.True(t, ok)
	assert.InDelta(t, 104.5, price, 1e-9)
}

func TestChart_FlatRangeIsPadded(t *testing.T) {
	flat := []domain.Candle{
		{Time: baseTime, Open: decimal.NewFromInt(100), High: decimal.NewFromInt(100), Low: decimal.NewFromInt(100), Close: decimal.NewFromInt(100)},
		{Time: baseTime + 60, Open: decimal.NewFromInt(100), High: decimal.NewFromInt(100), Low: decimal.NewFromInt(100), Close: decimal.NewFromInt(100)},
	}
	c := NewChart(DefaultOptions())
	require.NoError(t, c.SetData(flat, 0))

	y, ok := c.PriceToY(100)
	require.True(t, ok)
	assert.InDelta(t, 300, y, 1e-9)
}

func TestChart_RoundTrip(t *testing.T) {
	c := newLoadedChart(t, 30)
	c.ScrollBars(3.5)
	c.Zoom(1.7)

	points := []domain.DrawingPoint{
		{Time: float64(baseTime + 20*3600), Price: 120},
		{Time: float64(baseTime+25*3600) + 1234.5, Price: 118.25},
		{Time: float64(baseTime + 40*3600), Price: 131},
		{Time: float64(baseTime - 5*3600), Price: 90},
	}

	for _, p := range points {
		x, ok := c.TimeToX(p.Time)
		require.True(t, ok)
		y, ok := c.PriceToY(p.Price)
		require.True(t, ok)

		back, ok := c.XToTime(x)
		require.True(t, ok)
		price, ok := c.YToPrice(y)
		require.True(t, ok)

		assert.InDelta(t, p.Time, back, 1e-3)
		assert.InDelta(t, p.Price, price, 1e-6)
	}
}

func TestChart_NonFiniteMisses(t *testing.T) {
	c := newLoadedChart(t, 5)

	_, ok := c.TimeToX(math.NaN())
	assert.False(t, ok)
	_, ok = c.PriceToY(math.Inf(1))
	assert.False(t, ok)
	_, ok = c.XToTime(math.Inf(-1))
	assert.False(t, ok)
}

func TestChart_RejectsUnorderedData(t *testing.T) {
	c := NewChart(DefaultOptions())
	candles := hourlyCandles(3)
	candles[2].Time = candles[1].Time

	assert.ErrorIs(t, c.SetData(candles, time.Hour), domain.ErrInvalidArgument)
	assert.Equal(t, 0, c.Len())
}

func TestChart_Listeners(t *testing.T) {
	c := NewChart(DefaultOptions())
	calls := 0
	unsubscribe := c.Subscribe(func() { calls++ })

	require.NoError(t, c.SetData(hourlyCandles(5), time.Hour))
	c.ScrollBars(1)
	c.Zoom(2)
	require.NoError(t, c.Resize(100, 100))
	c.FitContent()
	assert.Equal(t, 5, calls)

	unsubscribe()
	c.Zoom(0.5)
	assert.Equal(t, 5, calls)
}

func TestChart_ZoomClamped(t *testing.T) {
	c := NewChart(DefaultOptions())

	c.Zoom(1000)
	assert.Equal(t, float64(maxBarSpacing), c.BarSpacing())

	c.Zoom(0.00001)
	assert.Equal(t, minBarSpacing, c.BarSpacing())

	c.Zoom(-1)
	assert.Equal(t, minBarSpacing, c.BarSpacing())
}

func TestChart_ScrolledViewStaysOnAppend(t *testing.T) {
	c := newLoadedChart(t, 10)
	c.ScrollBars(2)

	before, ok := c.TimeToX(float64(baseTime + 5*3600))
	require.True(t, ok)

	require.NoError(t, c.SetData(hourlyCandles(11), time.Hour))

	after, ok := c.TimeToX(float64(baseTime + 5*3600))
	require.True(t, ok)
	assert.InDelta(t, before, after, 1e-9)
}

func TestChart_Dispose(t *testing.T) {
	c := newLoadedChart(t, 5)
	calls := 0
	c.Subscribe(func() { calls++ })

	c.Dispose()
	c.Dispose()

	_, ok := c.TimeToX(float64(baseTime))
	assert.False(t, ok)
	c.Zoom(2)
	assert.Equal(t, 0, calls)
	assert.Error(t, c.SetData(hourlyCandles(2), time.Hour))
}
