// Package chart implements the candlestick chart: its time and price scales,
// the coordinate mapper used by the drawing layer and the frame renderer.
package chart

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/deskfolio/internal/domain"
)

const (
	defaultBarSpacing  = 12
	defaultRightOffset = 50
	minBarSpacing      = 0.5
	maxBarSpacing      = 50
	// scaleMargin is the share of the height kept free above and below the price range.
	scaleMargin = 0.1
	// flatRangePad widens a zero-height price range by 1% of the price.
	flatRangePad = 0.01
	fallbackStep = 60
)

// Options initial chart geometry.
type Options struct {
	Width       float64
	Height      float64
	BarSpacing  float64
	RightOffset float64
}

// DefaultOptions returns the dashboard chart defaults.
func DefaultOptions() Options {
	return Options{
		Width:       1200,
		Height:      600,
		BarSpacing:  defaultBarSpacing,
		RightOffset: defaultRightOffset,
	}
}

// Chart holds the time and price scales of a single candle series.
// Time is mapped through a fractional logical bar index: times between bars are
// interpolated and times outside the series are extrapolated with the series interval,
// so the time scale stays invertible everywhere.
type Chart struct {
	mu sync.Mutex

	width       float64
	height      float64
	barSpacing  float64
	rightOffset float64
	// scroll is the number of bars the view is moved into history.
	scroll float64

	times    []float64
	lows     []float64
	highs    []float64
	interval float64

	listeners map[uint64]func()
	nextID    uint64
	disposed  bool
}

// NewChart creates a chart without data.
func NewChart(opts Options) *Chart {
	if opts.BarSpacing <= 0 {
		opts.BarSpacing = defaultBarSpacing
	}
	if opts.RightOffset < 0 {
		opts.RightOffset = 0
	}

	return &Chart{
		width:       opts.Width,
		height:      opts.Height,
		barSpacing:  clamp(opts.BarSpacing, minBarSpacing, maxBarSpacing),
		rightOffset: opts.RightOffset,
		listeners:   make(map[uint64]func()),
	}
}

// SetData replaces the series. interval is the bar duration; when zero it is derived from the data.
func (c *Chart) SetData(candles []domain.Candle, interval time.Duration) error {
	if err := domain.ValidateCandles(candles); err != nil {
		return err
	}

	times := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	highs := make([]float64, len(candles))
	for i, candle := range candles {
		times[i] = float64(candle.Time)
		lows[i] = candle.Low.InexactFloat64()
		highs[i] = candle.High.InexactFloat64()
	}

	step := interval.Seconds()
	if step <= 0 {
		step = fallbackStep
		if n := len(times); n > 1 {
			step = times[n-1] - times[n-2]
		}
	}

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return errors.New("chart is disposed")
	}
	// a scrolled view stays on the same bars when new ones are appended
	if c.scroll != 0 && len(c.times) > 0 && len(times) > len(c.times) {
		c.scroll += float64(len(times) - len(c.times))
	}
	c.times, c.lows, c.highs, c.interval = times, lows, highs, step
	c.clampScroll()
	c.mu.Unlock()

	c.notify()
	return nil
}

// Size returns the chart dimensions in pixels.
func (c *Chart) Size() (float64, float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.width, c.height
}

// BarSpacing returns the distance between bar centers in pixels.
func (c *Chart) BarSpacing() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.barSpacing
}

// Len returns the number of bars.
func (c *Chart) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.times)
}

// Resize changes the chart dimensions.
func (c *Chart) Resize(width, height float64) error {
	if width <= 0 || height <= 0 || !finite(width) || !finite(height) {
		return errors.Wrapf(domain.ErrInvalidArgument, "chart size must be positive, got %vx%v", width, height)
	}

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return errors.New("chart is disposed")
	}
	c.width, c.height = width, height
	c.mu.Unlock()

	c.notify()
	return nil
}

// ScrollBars pans the view by bars; positive values move into history.
func (c *Chart) ScrollBars(bars float64) {
	if !finite(bars) {
		return
	}

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.scroll += bars
	c.clampScroll()
	c.mu.Unlock()

	c.notify()
}

// Zoom multiplies the bar spacing by factor.
func (c *Chart) Zoom(factor float64) {
	if factor <= 0 || !finite(factor) {
		return
	}

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.barSpacing = clamp(c.barSpacing*factor, minBarSpacing, maxBarSpacing)
	c.mu.Unlock()

	c.notify()
}

// FitContent sizes the bars so the whole series plus the right offset fits the width.
func (c *Chart) FitContent() {
	c.mu.Lock()
	if c.disposed || len(c.times) == 0 || c.width <= 0 {
		c.mu.Unlock()
		return
	}
	c.barSpacing = clamp(c.width/(float64(len(c.times))+c.rightOffset), minBarSpacing, maxBarSpacing)
	c.scroll = 0
	c.mu.Unlock()

	c.notify()
}

// Subscribe registers fn to be called after every scale change.
// The returned function removes the listener.
func (c *Chart) Subscribe(fn func()) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return func() {}
	}

	id := c.nextID
	c.nextID++
	c.listeners[id] = fn

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Dispose releases the series; every conversion misses afterwards.
func (c *Chart) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.disposed = true
	c.listeners = make(map[uint64]func())
	c.times, c.lows, c.highs = nil, nil, nil
}

// TimeToX converts epoch seconds into an x coordinate.
func (c *Chart) TimeToX(t float64) (float64, bool) {
	if !finite(t) {
		return 0, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.valid() {
		return 0, false
	}
	return checked(c.indexToX(c.timeToIndex(t)))
}

// XToTime converts an x coordinate into epoch seconds.
func (c *Chart) XToTime(x float64) (float64, bool) {
	if !finite(x) {
		return 0, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.valid() {
		return 0, false
	}
	return checked(c.indexToTime(c.xToIndex(x)))
}

// IndexToX converts a logical bar index into an x coordinate.
func (c *Chart) IndexToX(i float64) (float64, bool) {
	if !finite(i) {
		return 0, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.valid() {
		return 0, false
	}
	return checked(c.indexToX(i))
}

// PriceToY converts a price into a y coordinate using the auto-scaled visible range.
func (c *Chart) PriceToY(p float64) (float64, bool) {
	if !finite(p) {
		return 0, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.valid() {
		return 0, false
	}
	lo, hi, ok := c.priceRange()
	if !ok {
		return 0, false
	}

	top := c.height * scaleMargin
	inner := c.height * (1 - 2*scaleMargin)
	return checked(top + (hi-p)/(hi-lo)*inner)
}

// YToPrice converts a y coordinate into a price.
func (c *Chart) YToPrice(y float64) (float64, bool) {
	if !finite(y) {
		return 0, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.valid() {
		return 0, false
	}
	lo, hi, ok := c.priceRange()
	if !ok {
		return 0, false
	}

	top := c.height * scaleMargin
	inner := c.height * (1 - 2*scaleMargin)
	return checked(hi - (y-top)/inner*(hi-lo))
}

// VisibleRange returns the first and last bar indexes inside the viewport.
func (c *Chart) VisibleRange() (int, int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.valid() {
		return 0, 0, false
	}
	return c.visibleRange()
}

func (c *Chart) valid() bool {
	return !c.disposed && c.width > 0 && c.height > 0 && c.barSpacing > 0 && len(c.times) > 0
}

func (c *Chart) rightEdge() float64 {
	return float64(len(c.times)-1) + c.rightOffset - c.scroll
}

func (c *Chart) indexToX(i float64) float64 {
	return c.width - (c.rightEdge()-i+0.5)*c.barSpacing
}

func (c *Chart) xToIndex(x float64) float64 {
	return c.rightEdge() + 0.5 - (c.width-x)/c.barSpacing
}

func (c *Chart) timeToIndex(t float64) float64 {
	n := len(c.times)
	first, last := c.times[0], c.times[n-1]

	switch {
	case t <= first:
		return (t - first) / c.interval
	case t >= last:
		return float64(n-1) + (t-last)/c.interval
	}

	// times[k] <= t < times[k+1]
	k := sort.SearchFloat64s(c.times, t)
	if c.times[k] > t {
		k--
	}
	t0, t1 := c.times[k], c.times[k+1]
	return float64(k) + (t-t0)/(t1-t0)
}

func (c *Chart) indexToTime(i float64) float64 {
	n := len(c.times)
	lastIdx := float64(n - 1)

	switch {
	case i <= 0:
		return c.times[0] + i*c.interval
	case i >= lastIdx:
		return c.times[n-1] + (i-lastIdx)*c.interval
	}

	k := int(math.Floor(i))
	frac := i - float64(k)
	return c.times[k] + frac*(c.times[k+1]-c.times[k])
}

func (c *Chart) visibleRange() (int, int, bool) {
	from := int(math.Ceil(c.xToIndex(0)))
	to := int(math.Floor(c.xToIndex(c.width)))
	if from < 0 {
		from = 0
	}
	if last := len(c.times) - 1; to > last {
		to = last
	}
	if from > to {
		return 0, 0, false
	}
	return from, to, true
}

func (c *Chart) priceRange() (float64, float64, bool) {
	from, to, ok := c.visibleRange()
	if !ok {
		return 0, 0, false
	}

	lo, hi := c.lows[from], c.highs[from]
	for i := from + 1; i <= to; i++ {
		lo = math.Min(lo, c.lows[i])
		hi = math.Max(hi, c.highs[i])
	}

	if hi-lo <= 0 {
		pad := math.Abs(hi) * flatRangePad
		if pad == 0 {
			pad = 1
		}
		lo, hi = lo-pad, hi+pad
	}
	return lo, hi, true
}

func (c *Chart) clampScroll() {
	lower := -c.rightOffset
	upper := float64(len(c.times)-1) + c.rightOffset
	if upper < lower {
		upper = lower
	}
	c.scroll = clamp(c.scroll, lower, upper)
}

func (c *Chart) notify() {
	c.mu.Lock()
	fns := make([]func(), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func checked(v float64) (float64, bool) {
	if !finite(v) {
		return 0, false
	}
	return v, true
}
