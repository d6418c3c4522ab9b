package poller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/deskfolio/internal/domain"
)

type fakeSource struct {
	mu       sync.Mutex
	depth    map[string]domain.DepthSnapshot
	candles  []domain.Candle
	depthErr error
	// gate, when set for a symbol, blocks Depth until closed.
	gate    map[string]chan struct{}
	entered chan string
	calls   int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		depth: map[string]domain.DepthSnapshot{
			"BTCUSDT": {
				Bids: []domain.OrderLevel{{Price: "100.04", Quantity: "1"}, {Price: "100.02", Quantity: "2"}},
				Asks: []domain.OrderLevel{{Price: "100.30", Quantity: "4"}},
			},
			"ETHUSDT": {
				Bids: []domain.OrderLevel{{Price: "2000", Quantity: "1"}},
				Asks: []domain.OrderLevel{{Price: "2001", Quantity: "1"}},
			},
		},
		candles: []domain.Candle{
			{Time: 60, Open: decimal.NewFromInt(1), High: decimal.NewFromInt(2), Low: decimal.NewFromInt(1), Close: decimal.NewFromInt(2)},
			{Time: 120, Open: decimal.NewFromInt(2), High: decimal.NewFromInt(3), Low: decimal.NewFromInt(1), Close: decimal.NewFromInt(1)},
		},
		gate:    map[string]chan struct{}{},
		entered: make(chan string, 8),
	}
}

func (f *fakeSource) Depth(ctx context.Context, symbol string, _ int) (domain.DepthSnapshot, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gate[symbol]
	err := f.depthErr
	snap := f.depth[symbol]
	f.mu.Unlock()

	f.entered <- symbol
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return domain.DepthSnapshot{}, ctx.Err()
		}
	}
	return snap, err
}

func (f *fakeSource) Klines(context.Context, string, domain.Timeframe, int) ([]domain.Candle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Candle(nil), f.candles...), nil
}

func (f *fakeSource) setDepthErr(err error) {
	f.mu.Lock()
	f.depthErr = err
	f.mu.Unlock()
}

type recordingSink struct {
	mu    sync.Mutex
	views []domain.OrderbookView
	keys  []domain.SeriesKey
}

func (s *recordingSink) OnOrderbook(v domain.OrderbookView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.views = append(s.views, v)
}

func (s *recordingSink) OnCandles(key domain.SeriesKey, _ []domain.Candle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, key)
}

func (s *recordingSink) viewCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.views)
}

func btcSettings() Settings {
	return Settings{
		Pair:           domain.Pair{From: "BTC", To: "USDT"},
		Timeframe:      domain.Timeframe1h,
		Step:           decimal.RequireFromString("0.05"),
		PricePrecision: 2,
	}
}

func ethSettings() Settings {
	s := btcSettings()
	s.Pair = domain.Pair{From: "ETH", To: "USDT"}
	s.Step = decimal.NewFromInt(1)
	return s
}

func TestPoll_DeliversViewAndCandles(t *testing.T) {
	src := newFakeSource()
	sink := &recordingSink{}
	p, err := New(zap.NewNop(), src, sink, btcSettings())
	require.NoError(t, err)

	require.NoError(t, p.Poll(context.Background()))

	view, ok := p.View()
	require.True(t, ok)
	assert.Equal(t, "BTCUSDT", view.Pair)
	require.Len(t, view.Bids, 1)
	assert.True(t, view.Bids[0].Price.Equal(decimal.NewFromInt(100)))
	assert.True(t, view.Bids[0].Quantity.Equal(decimal.NewFromInt(3)))
	assert.Len(t, p.Candles(), 2)

	require.Equal(t, 1, sink.viewCount())
	assert.Equal(t, []domain.SeriesKey{{Symbol: "BTCUSDT", Timeframe: "1h"}}, sink.keys)
	assert.NoError(t, p.Status().Err)
}

func TestPoll_FailureKeepsPreviousData(t *testing.T) {
	src := newFakeSource()
	sink := &recordingSink{}
	p, err := New(zap.NewNop(), src, sink, btcSettings())
	require.NoError(t, err)
	require.NoError(t, p.Poll(context.Background()))
	before, _ := p.View()

	src.setDepthErr(errors.New("503 service unavailable"))
	err = p.Poll(context.Background())
	require.Error(t, err)

	status := p.Status()
	require.Error(t, status.Err)
	assert.Contains(t, status.Err.Error(), "fetch depth")
	assert.Equal(t, 1, status.Failures)

	after, ok := p.View()
	require.True(t, ok)
	assert.Equal(t, before, after)
	assert.Equal(t, 1, sink.viewCount())

	src.setDepthErr(nil)
	require.NoError(t, p.Poll(context.Background()))
	assert.NoError(t, p.Status().Err)
	assert.Equal(t, 0, p.Status().Failures)
}

func TestPoll_EmptyBookIsFailure(t *testing.T) {
	src := newFakeSource()
	src.depth["BTCUSDT"] = domain.DepthSnapshot{}
	p, err := New(zap.NewNop(), src, nil, btcSettings())
	require.NoError(t, err)

	err = p.Poll(context.Background())
	assert.ErrorIs(t, err, domain.ErrEmptyOrderbook)
	_, ok := p.View()
	assert.False(t, ok)
}

func TestPoll_StaleResultDiscarded(t *testing.T) {
	src := newFakeSource()
	gate := make(chan struct{})
	src.gate["BTCUSDT"] = gate
	sink := &recordingSink{}
	p, err := New(zap.NewNop(), src, sink, btcSettings())
	require.NoError(t, err)

	first := make(chan error, 1)
	go func() { first <- p.Poll(context.Background()) }()
	require.Equal(t, "BTCUSDT", <-src.entered)

	require.NoError(t, p.UpdateSettings(ethSettings()))
	require.NoError(t, p.Poll(context.Background()))
	require.Equal(t, "ETHUSDT", <-src.entered)

	close(gate)
	assert.ErrorIs(t, <-first, ErrStalePoll)

	view, ok := p.View()
	require.True(t, ok)
	assert.Equal(t, "ETHUSDT", view.Pair)
	require.Equal(t, 1, sink.viewCount())
	assert.Equal(t, "ETHUSDT", sink.views[0].Pair)
}

func TestUpdateSettings_Validates(t *testing.T) {
	p, err := New(zap.NewNop(), newFakeSource(), nil, btcSettings())
	require.NoError(t, err)

	bad := btcSettings()
	bad.Step = decimal.Zero
	assert.ErrorIs(t, p.UpdateSettings(bad), domain.ErrInvalidArgument)

	bad = btcSettings()
	bad.Timeframe = "2y"
	assert.ErrorIs(t, p.UpdateSettings(bad), domain.ErrInvalidArgument)

	bad = btcSettings()
	bad.Pair = domain.Pair{}
	assert.ErrorIs(t, p.UpdateSettings(bad), domain.ErrInvalidArgument)

	assert.Equal(t, btcSettings(), p.Settings())

	_, err = New(zap.NewNop(), newFakeSource(), nil, bad)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestRun_PollsOnStartAndOnSettingsChange(t *testing.T) {
	src := newFakeSource()
	sink := &recordingSink{}
	p, err := New(zap.NewNop(), src, sink, btcSettings(), WithInterval(time.Hour))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	assert.Equal(t, "BTCUSDT", <-src.entered)
	require.Eventually(t, func() bool { return sink.viewCount() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, p.UpdateSettings(ethSettings()))
	assert.Equal(t, "ETHUSDT", <-src.entered)
	require.Eventually(t, func() bool {
		v, ok := p.View()
		return ok && v.Pair == "ETHUSDT"
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}

// slowSource answers every request after delay, failing with err when set.
type slowSource struct {
	delay time.Duration
	err   error
	fake  *fakeSource
}

func (s *slowSource) wait(ctx context.Context) error {
	select {
	case <-time.After(s.delay):
		return s.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *slowSource) Depth(ctx context.Context, symbol string, _ int) (domain.DepthSnapshot, error) {
	if err := s.wait(ctx); err != nil {
		return domain.DepthSnapshot{}, err
	}
	return s.fake.depth[symbol], nil
}

func (s *slowSource) Klines(ctx context.Context, _ string, _ domain.Timeframe, _ int) ([]domain.Candle, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	return append([]domain.Candle(nil), s.fake.candles...), nil
}

func runPoller(t *testing.T, p *Poller) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestRun_SourceSlowerThanIntervalStillDelivers(t *testing.T) {
	src := &slowSource{delay: 50 * time.Millisecond, fake: newFakeSource()}
	sink := &recordingSink{}
	p, err := New(zap.NewNop(), src, sink, btcSettings(), WithInterval(10*time.Millisecond))
	require.NoError(t, err)

	runPoller(t, p)

	require.Eventually(t, func() bool { return sink.viewCount() >= 2 }, 2*time.Second, 5*time.Millisecond)
	view, ok := p.View()
	require.True(t, ok)
	assert.Equal(t, "BTCUSDT", view.Pair)
	assert.NoError(t, p.Status().Err)
}

func TestRun_SlowFailuresReachStatus(t *testing.T) {
	src := &slowSource{delay: 50 * time.Millisecond, err: errors.New("gateway timeout"), fake: newFakeSource()}
	p, err := New(zap.NewNop(), src, nil, btcSettings(), WithInterval(10*time.Millisecond))
	require.NoError(t, err)

	runPoller(t, p)

	require.Eventually(t, func() bool { return p.Status().Failures >= 2 }, 2*time.Second, 5*time.Millisecond)
	status := p.Status()
	require.Error(t, status.Err)
	assert.Contains(t, status.Err.Error(), "gateway timeout")
}

func TestPoll_TimeoutIsRecordedAsFailure(t *testing.T) {
	src := &slowSource{delay: time.Hour, fake: newFakeSource()}
	p, err := New(zap.NewNop(), src, nil, btcSettings(), WithTimeout(20*time.Millisecond))
	require.NoError(t, err)

	err = p.Poll(context.Background())

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, p.Status().Err, context.DeadlineExceeded)
	assert.Equal(t, 1, p.Status().Failures)
}

func TestPoll_CancelledPollRecordsNothing(t *testing.T) {
	src := &slowSource{delay: time.Hour, fake: newFakeSource()}
	p, err := New(zap.NewNop(), src, nil, btcSettings())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, p.Poll(ctx), context.Canceled)
	assert.NoError(t, p.Status().Err)
	assert.Zero(t, p.Status().Failures)
}

func TestPoll_OlderResultOfSameSettingsDiscarded(t *testing.T) {
	src := newFakeSource()
	gate := make(chan struct{})
	src.gate["BTCUSDT"] = gate
	sink := &recordingSink{}
	p, err := New(zap.NewNop(), src, sink, btcSettings())
	require.NoError(t, err)

	first := make(chan error, 1)
	go func() { first <- p.Poll(context.Background()) }()
	require.Equal(t, "BTCUSDT", <-src.entered)

	src.mu.Lock()
	delete(src.gate, "BTCUSDT")
	src.mu.Unlock()
	require.NoError(t, p.Poll(context.Background()))
	<-src.entered

	close(gate)
	assert.ErrorIs(t, <-first, ErrStalePoll)
	assert.Equal(t, 1, sink.viewCount())
}
