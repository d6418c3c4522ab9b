package chart

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/deskfolio/internal/domain"
	"go.uber.org/zap"
)

type fakeLayer struct {
	lines    []domain.DrawingLine
	restored [][]domain.DrawingLine
}

func (f *fakeLayer) Primitives() []domain.Primitive {
	return []domain.Primitive{{Kind: domain.PrimitiveSegment}}
}

func (f *fakeLayer) Lines() []domain.DrawingLine {
	return f.lines
}

func (f *fakeLayer) Restore(lines []domain.DrawingLine) {
	f.restored = append(f.restored, lines)
	f.lines = lines
}

type fakeStore struct {
	mu    sync.Mutex
	saved map[domain.SeriesKey][]domain.DrawingLine
}

func newFakeStore() *fakeStore {
	return &fakeStore{saved: make(map[domain.SeriesKey][]domain.DrawingLine)}
}

func (s *fakeStore) Load(key domain.SeriesKey) ([]domain.DrawingLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved[key], nil
}

func (s *fakeStore) Save(key domain.SeriesKey, lines []domain.DrawingLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved[key] = lines
	return nil
}

type countingObserver struct {
	disconnects int
}

func (o *countingObserver) Disconnect() {
	o.disconnects++
}

var btcHourly = domain.SeriesKey{Symbol: "BTCUSDT", Timeframe: "1h"}

func TestRenderer_Frame(t *testing.T) {
	r := NewRenderer(zap.NewNop(), DefaultOptions())
	r.AttachDrawings(&fakeLayer{}, nil)

	candles := hourlyCandles(120)
	require.NoError(t, r.SetCandles(btcHourly, candles))

	frame := r.Frame()
	assert.Equal(t, btcHourly, frame.Series)
	assert.Equal(t, domain.ThemeDark, frame.Theme)
	assert.Equal(t, 1200.0, frame.Width)

	// 50 right-offset bars leave room for the last 50 candles
	require.Len(t, frame.Candles, 50)
	require.Len(t, frame.Volume, 50)
	assert.Equal(t, candles[70].Time, frame.Candles[0].Time)

	last := frame.Volume[len(frame.Volume)-1]
	assert.InDelta(t, 600-0.2*600, last.Top, 1e-9)
	assert.Equal(t, 600.0, last.Bottom)

	for i, bar := range frame.Volume {
		want := downColor
		if candles[70+i].IsBullish() {
			want = upColor
		}
		assert.Equal(t, want, bar.Color)
	}

	require.Len(t, frame.Averages, 2)
	assert.Equal(t, "MA25", frame.Averages[0].Name)
	assert.Len(t, frame.Averages[0].Points, 50)
	assert.Equal(t, "MA99", frame.Averages[1].Name)
	assert.Len(t, frame.Averages[1].Points, 22)

	assert.Len(t, frame.Drawings, 1)
}

func TestRenderer_ShortSeriesHasNoAverages(t *testing.T) {
	r := NewRenderer(zap.NewNop(), DefaultOptions())
	require.NoError(t, r.SetCandles(btcHourly, hourlyCandles(10)))

	frame := r.Frame()
	assert.Len(t, frame.Candles, 10)
	for _, avg := range frame.Averages {
		assert.Empty(t, avg.Points)
	}
}

func TestRenderer_RejectsUnordered(t *testing.T) {
	r := NewRenderer(zap.NewNop(), DefaultOptions())
	candles := hourlyCandles(3)
	candles[0], candles[1] = candles[1], candles[0]

	assert.ErrorIs(t, r.SetCandles(btcHourly, candles), domain.ErrInvalidArgument)
	assert.Empty(t, r.Candles())
}

func TestRenderer_SwapsDrawingsPerSeries(t *testing.T) {
	store := newFakeStore()
	layer := &fakeLayer{}
	r := NewRenderer(zap.NewNop(), DefaultOptions())
	r.AttachDrawings(layer, store)

	ethDaily := domain.SeriesKey{Symbol: "ETHUSDT", Timeframe: "1d"}
	stored := []domain.DrawingLine{{ID: "line-eth"}}
	require.NoError(t, store.Save(ethDaily, stored))

	require.NoError(t, r.SetCandles(btcHourly, hourlyCandles(5)))
	layer.lines = []domain.DrawingLine{{ID: "line-btc"}}

	// same key keeps the layer untouched
	require.NoError(t, r.SetCandles(btcHourly, hourlyCandles(6)))
	require.Len(t, layer.restored, 1)

	require.NoError(t, r.SetCandles(ethDaily, hourlyCandles(5)))
	require.Len(t, layer.restored, 2)
	assert.Equal(t, stored, layer.restored[1])

	saved, err := store.Load(btcHourly)
	require.NoError(t, err)
	assert.Equal(t, []domain.DrawingLine{{ID: "line-btc"}}, saved)
}

func TestRenderer_PersistDrawings(t *testing.T) {
	store := newFakeStore()
	r := NewRenderer(zap.NewNop(), DefaultOptions())
	r.AttachDrawings(&fakeLayer{}, store)

	r.PersistDrawings([]domain.DrawingLine{{ID: "line-1"}})
	assert.Empty(t, store.saved, "nothing is saved before a series is set")

	require.NoError(t, r.SetCandles(btcHourly, hourlyCandles(5)))
	r.PersistDrawings([]domain.DrawingLine{{ID: "line-1"}})

	saved, _ := store.Load(btcHourly)
	require.Len(t, saved, 1)
}

func TestRenderer_ThemeNotifies(t *testing.T) {
	r := NewRenderer(zap.NewNop(), DefaultOptions())
	calls := 0
	r.Subscribe(func() { calls++ })

	r.SetTheme(domain.ThemeLight)
	r.SetTheme(domain.ThemeLight)
	assert.Equal(t, 1, calls)

	frame := r.Frame()
	assert.Equal(t, domain.ThemeLight, frame.Theme)
	assert.Equal(t, palettes[domain.ThemeLight].text, frame.TextColor)
}

func TestRenderer_DisposeOnce(t *testing.T) {
	r := NewRenderer(zap.NewNop(), DefaultOptions())
	require.NoError(t, r.SetCandles(btcHourly, hourlyCandles(5)))

	calls := 0
	r.Subscribe(func() { calls++ })
	obs := &countingObserver{}
	r.Observe(obs)

	r.Dispose()
	r.Dispose()

	assert.Equal(t, 1, obs.disconnects)

	_, ok := r.Mapper().DomainToPixel(domain.DrawingPoint{Time: float64(baseTime), Price: 100})
	assert.False(t, ok)

	r.Pan(3)
	r.SetTheme(domain.ThemeLight)
	assert.Equal(t, 0, calls)
	assert.Empty(t, r.Frame().Candles)
	assert.Error(t, r.SetCandles(btcHourly, hourlyCandles(5)))

	late := &countingObserver{}
	r.Observe(late)
	assert.Equal(t, 1, late.disconnects)
}
