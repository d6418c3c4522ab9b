package chart

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/deskfolio/internal/domain"
	"github.com/vadiminshakov/deskfolio/pkg/indicators"
	"go.uber.org/zap"
)

const (
	upColor   = "#22c55e"
	downColor = "#ef4444"
	ma25Color = "#e91e63"
	ma99Color = "#3b82f6"

	candleBodyShare = 0.8
	// volumeShare is the part of the chart height used by the volume histogram.
	volumeShare = 0.2
)

var movingAverages = []struct {
	name   string
	period int
	color  string
}{
	{name: "MA25", period: 25, color: ma25Color},
	{name: "MA99", period: 99, color: ma99Color},
}

var palettes = map[domain.Theme]struct{ text, grid string }{
	domain.ThemeDark:  {text: "#d1d5db", grid: "#1f2937"},
	domain.ThemeLight: {text: "#111827", grid: "#e5e7eb"},
}

// DrawingLayer annotation layer painted over the candles.
type DrawingLayer interface {
	Primitives() []domain.Primitive
	Lines() []domain.DrawingLine
	Restore(lines []domain.DrawingLine)
}

// DrawingStore persists drawings per series.
type DrawingStore interface {
	Load(key domain.SeriesKey) ([]domain.DrawingLine, error)
	Save(key domain.SeriesKey, lines []domain.DrawingLine) error
}

// Observer is detached when the renderer is disposed.
type Observer interface {
	Disconnect()
}

type averageSeries struct {
	name   string
	color  string
	points []indicators.Point
}

// Renderer owns the chart and composes frames out of candles, volume, moving averages
// and the drawing layer.
type Renderer struct {
	mu     sync.Mutex
	logger *zap.Logger

	chart  *Chart
	mapper *Mapper

	drawings DrawingLayer
	store    DrawingStore

	key      domain.SeriesKey
	candles  []domain.Candle
	averages []averageSeries
	theme    domain.Theme

	listeners   map[uint64]func()
	nextID      uint64
	unsubChart  func()
	observers   []Observer
	disposeOnce sync.Once
	disposed    bool
}

// NewRenderer creates a renderer with its own chart.
func NewRenderer(logger *zap.Logger, opts Options) *Renderer {
	c := NewChart(opts)
	r := &Renderer{
		logger:    logger,
		chart:     c,
		mapper:    NewMapper(c),
		theme:     domain.ThemeDark,
		listeners: make(map[uint64]func()),
	}
	r.unsubChart = c.Subscribe(r.notify)
	return r
}

// Mapper returns the coordinate mapper bound to the chart scales.
func (r *Renderer) Mapper() *Mapper {
	return r.mapper
}

// AttachDrawings sets the drawing layer and the optional store used to swap drawings on series change.
func (r *Renderer) AttachDrawings(layer DrawingLayer, store DrawingStore) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drawings = layer
	r.store = store
}

// SetCandles replaces the series. Switching to another key saves the current drawings and
// loads the ones stored for the new key.
func (r *Renderer) SetCandles(key domain.SeriesKey, candles []domain.Candle) error {
	if err := domain.ValidateCandles(candles); err != nil {
		return errors.Wrapf(err, "candles for %s", key)
	}

	averages, err := computeAverages(candles)
	if err != nil {
		return err
	}

	// unknown timeframes fall back to the spacing of the data
	interval, _ := domain.Timeframe(key.Timeframe).Duration()

	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return errors.New("renderer is disposed")
	}
	prevKey := r.key
	r.key = key
	r.candles = append([]domain.Candle(nil), candles...)
	r.averages = averages
	layer, store := r.drawings, r.store
	r.mu.Unlock()

	if prevKey != key && layer != nil {
		r.swapDrawings(layer, store, prevKey, key)
	}

	return r.chart.SetData(candles, interval)
}

func (r *Renderer) swapDrawings(layer DrawingLayer, store DrawingStore, from, to domain.SeriesKey) {
	if store == nil {
		layer.Restore(nil)
		return
	}

	if from != (domain.SeriesKey{}) {
		if err := store.Save(from, layer.Lines()); err != nil {
			r.logger.Error("failed to save drawings", zap.String("series", from.String()), zap.Error(err))
		}
	}

	lines, err := store.Load(to)
	if err != nil {
		r.logger.Error("failed to load drawings", zap.String("series", to.String()), zap.Error(err))
	}
	layer.Restore(lines)
}

// PersistDrawings saves lines under the current series key.
func (r *Renderer) PersistDrawings(lines []domain.DrawingLine) {
	r.mu.Lock()
	key, store := r.key, r.store
	r.mu.Unlock()

	if store == nil || key == (domain.SeriesKey{}) {
		return
	}
	if err := store.Save(key, lines); err != nil {
		r.logger.Error("failed to save drawings", zap.String("series", key.String()), zap.Error(err))
	}
	r.notify()
}

// Series returns the current series key.
func (r *Renderer) Series() domain.SeriesKey {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.key
}

// Candles returns a copy of the current candles.
func (r *Renderer) Candles() []domain.Candle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Candle(nil), r.candles...)
}

// SetTheme switches frame colors.
func (r *Renderer) SetTheme(theme domain.Theme) {
	r.mu.Lock()
	if r.disposed || r.theme == theme || !theme.IsValid() {
		r.mu.Unlock()
		return
	}
	r.theme = theme
	r.mu.Unlock()

	r.notify()
}

// Pan scrolls the chart by bars; positive values move into history.
func (r *Renderer) Pan(bars float64) {
	r.chart.ScrollBars(bars)
}

// Zoom scales the bar spacing.
func (r *Renderer) Zoom(factor float64) {
	r.chart.Zoom(factor)
}

// Resize changes the chart size.
func (r *Renderer) Resize(width, height float64) error {
	return r.chart.Resize(width, height)
}

// FitContent fits the whole series into the viewport.
func (r *Renderer) FitContent() {
	r.chart.FitContent()
}

// Subscribe registers fn to be called whenever the frame may have changed.
func (r *Renderer) Subscribe(fn func()) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.disposed {
		return func() {}
	}

	id := r.nextID
	r.nextID++
	r.listeners[id] = fn

	return func() {
		r.mu.Lock()
		delete(r.listeners, id)
		r.mu.Unlock()
	}
}

// Observe attaches an observer that is disconnected on Dispose.
func (r *Renderer) Observe(o Observer) {
	r.mu.Lock()
	if !r.disposed {
		r.observers = append(r.observers, o)
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	o.Disconnect()
}

// Frame composes the current frame. Every coordinate goes through the mapper at call time.
func (r *Renderer) Frame() domain.Frame {
	r.mu.Lock()
	candles := r.candles
	averages := r.averages
	key := r.key
	theme := r.theme
	layer := r.drawings
	r.mu.Unlock()

	width, height := r.chart.Size()
	palette := palettes[theme]

	frame := domain.Frame{
		Width:     width,
		Height:    height,
		Series:    key,
		Theme:     theme,
		TextColor: palette.text,
		GridColor: palette.grid,
	}

	from, to, ok := r.chart.VisibleRange()
	if !ok || to >= len(candles) {
		return frame
	}
	visible := candles[from : to+1]

	frame.Candles = r.candleShapes(visible)
	frame.Volume = r.volumeBars(visible, height)
	frame.Averages = r.polylines(averages, visible[0].Time, visible[len(visible)-1].Time)
	if layer != nil {
		frame.Drawings = layer.Primitives()
	}

	return frame
}

func (r *Renderer) candleShapes(candles []domain.Candle) []domain.CandleShape {
	bodyWidth := r.chart.BarSpacing() * candleBodyShare

	shapes := make([]domain.CandleShape, 0, len(candles))
	for _, c := range candles {
		t := float64(c.Time)
		open, okO := r.mapper.DomainToPixel(domain.DrawingPoint{Time: t, Price: c.Open.InexactFloat64()})
		high, okH := r.mapper.DomainToPixel(domain.DrawingPoint{Time: t, Price: c.High.InexactFloat64()})
		low, okL := r.mapper.DomainToPixel(domain.DrawingPoint{Time: t, Price: c.Low.InexactFloat64()})
		cl, okC := r.mapper.DomainToPixel(domain.DrawingPoint{Time: t, Price: c.Close.InexactFloat64()})
		if !okO || !okH || !okL || !okC {
			continue
		}

		shapes = append(shapes, domain.CandleShape{
			Time:    c.Time,
			X:       open.X,
			Open:    open.Y,
			High:    high.Y,
			Low:     low.Y,
			Close:   cl.Y,
			Width:   bodyWidth,
			Bullish: c.IsBullish(),
		})
	}

	return shapes
}

func (r *Renderer) volumeBars(candles []domain.Candle, height float64) []domain.VolumeBar {
	maxVol := decimal.Zero
	for _, c := range candles {
		maxVol = decimal.Max(maxVol, c.Volume)
	}
	if !maxVol.IsPositive() {
		return nil
	}

	bodyWidth := r.chart.BarSpacing() * candleBodyShare
	area := height * volumeShare

	bars := make([]domain.VolumeBar, 0, len(candles))
	for _, c := range candles {
		x, ok := r.chart.TimeToX(float64(c.Time))
		if !ok {
			continue
		}
		color := downColor
		if c.IsBullish() {
			color = upColor
		}
		bars = append(bars, domain.VolumeBar{
			X:      x,
			Top:    height - c.Volume.Div(maxVol).InexactFloat64()*area,
			Bottom: height,
			Width:  bodyWidth,
			Color:  color,
		})
	}

	return bars
}

func (r *Renderer) polylines(averages []averageSeries, from, to int64) []domain.Polyline {
	lines := make([]domain.Polyline, 0, len(averages))
	for _, avg := range averages {
		line := domain.Polyline{Name: avg.name, Color: avg.color}
		for _, p := range avg.points {
			if p.Time < from || p.Time > to {
				continue
			}
			at, ok := r.mapper.DomainToPixel(domain.DrawingPoint{Time: float64(p.Time), Price: p.Value.InexactFloat64()})
			if !ok {
				continue
			}
			line.Points = append(line.Points, at)
		}
		lines = append(lines, line)
	}
	return lines
}

// Dispose releases the chart exactly once: listeners first, then observers, then the chart itself.
func (r *Renderer) Dispose() {
	r.disposeOnce.Do(func() {
		r.mu.Lock()
		r.disposed = true
		r.listeners = make(map[uint64]func())
		observers := r.observers
		r.observers = nil
		unsub := r.unsubChart
		r.mu.Unlock()

		if unsub != nil {
			unsub()
		}
		for _, o := range observers {
			o.Disconnect()
		}
		r.chart.Dispose()

		r.logger.Info("chart renderer disposed")
	})
}

func (r *Renderer) notify() {
	r.mu.Lock()
	fns := make([]func(), 0, len(r.listeners))
	for _, fn := range r.listeners {
		fns = append(fns, fn)
	}
	r.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func computeAverages(candles []domain.Candle) ([]averageSeries, error) {
	times := make([]int64, len(candles))
	closes := make([]decimal.Decimal, len(candles))
	for i, c := range candles {
		times[i] = c.Time
		closes[i] = c.Close
	}

	out := make([]averageSeries, 0, len(movingAverages))
	for _, ma := range movingAverages {
		points, err := indicators.MovingAverage(times, closes, ma.period)
		if err != nil {
			return nil, errors.Wrapf(err, "calculate %s", ma.name)
		}
		out = append(out, averageSeries{name: ma.name, color: ma.color, points: points})
	}
	return out, nil
}
