// Package poller periodically fetches the order book and candles of the selected pair.
package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/deskfolio/internal/domain"
	"github.com/vadiminshakov/deskfolio/internal/services/orderbook"
)

// ErrStalePoll is returned by Poll when the settings changed or a newer poll was applied
// before this one completed.
var ErrStalePoll = errors.New("poll superseded by a newer one")

const (
	defaultInterval   = 3 * time.Second
	defaultTimeout    = 10 * time.Second
	defaultDepthLimit = 1000
	defaultKlineLimit = 1000
)

// Source fetches raw market data.
type Source interface {
	Depth(ctx context.Context, symbol string, limit int) (domain.DepthSnapshot, error)
	Klines(ctx context.Context, symbol string, tf domain.Timeframe, limit int) ([]domain.Candle, error)
}

// Sink receives the results of successful polls.
type Sink interface {
	OnOrderbook(view domain.OrderbookView)
	OnCandles(key domain.SeriesKey, candles []domain.Candle)
}

// Settings selects what is polled and how the book is aggregated.
type Settings struct {
	Pair              domain.Pair      `json:"pair"`
	Timeframe         domain.Timeframe `json:"timeframe"`
	Step              decimal.Decimal  `json:"step"`
	PricePrecision    int32            `json:"price_precision"`
	QuantityPrecision int32            `json:"quantity_precision"`
}

// Validate checks the settings.
func (s Settings) Validate() error {
	if s.Pair.From == "" || s.Pair.To == "" {
		return errors.Wrapf(domain.ErrInvalidArgument, "invalid pair %q", s.Pair)
	}
	if !s.Timeframe.IsValid() {
		return errors.Wrapf(domain.ErrInvalidArgument, "unsupported timeframe %q", s.Timeframe)
	}
	if !s.Step.IsPositive() {
		return errors.Wrapf(domain.ErrInvalidArgument, "step must be positive, got %s", s.Step)
	}
	if s.PricePrecision < 0 || s.QuantityPrecision < 0 {
		return errors.Wrap(domain.ErrInvalidArgument, "precision must be >= 0")
	}
	return nil
}

// SeriesKey returns the candle series the settings select.
func (s Settings) SeriesKey() domain.SeriesKey {
	return domain.SeriesKey{Symbol: s.Pair.Symbol(), Timeframe: s.Timeframe.String()}
}

// Status describes the outcome of the most recent completed poll.
type Status struct {
	Settings Settings
	// Err is the last fetch failure; nil after a successful poll.
	Err         error
	LastSuccess time.Time
	Failures    int
}

// Option configures Poller.
type Option func(*Poller)

// WithInterval sets the polling period.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithTimeout bounds a single poll. A poll that runs out of time is recorded as a failure.
func WithTimeout(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithDepthLimit sets how many levels per side are requested.
func WithDepthLimit(n int) Option {
	return func(p *Poller) {
		if n > 0 {
			p.depthLimit = n
		}
	}
}

// WithKlineLimit sets how many candles are requested.
func WithKlineLimit(n int) Option {
	return func(p *Poller) {
		if n > 0 {
			p.klineLimit = n
		}
	}
}

// Poller fetches depth and candles on a fixed period and whenever the settings change.
// A result is applied only if the settings are unchanged and no newer poll was applied.
type Poller struct {
	logger     *zap.Logger
	source     Source
	sink       Sink
	interval   time.Duration
	timeout    time.Duration
	depthLimit int
	klineLimit int

	seq     atomic.Uint64
	trigger chan struct{}

	// deliverMu serializes the staleness check with delivery to the sink.
	deliverMu sync.Mutex

	mu         sync.RWMutex
	settings   Settings
	generation uint64 // bumped on every settings change
	applied    uint64 // seq of the last applied result
	status     Status
	view       *domain.OrderbookView
	candles    []domain.Candle
}

// New creates a poller for the initial settings.
func New(logger *zap.Logger, source Source, sink Sink, settings Settings, opts ...Option) (*Poller, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	p := &Poller{
		logger:     logger,
		source:     source,
		sink:       sink,
		interval:   defaultInterval,
		timeout:    defaultTimeout,
		depthLimit: defaultDepthLimit,
		klineLimit: defaultKlineLimit,
		trigger:    make(chan struct{}, 1),
		settings:   settings,
	}
	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// Run polls immediately, then every interval and on every settings change, until ctx is done.
// At most one poll is in flight: ticks are skipped while a poll runs and a settings change
// cancels the running poll.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var (
		wg       sync.WaitGroup
		inflight atomic.Int32
		cancel   context.CancelFunc = func() {}
	)
	defer wg.Wait()
	defer func() { cancel() }()

	poll := func() {
		pctx, pcancel := context.WithCancel(ctx)
		cancel = pcancel
		inflight.Add(1)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer inflight.Add(-1)
			defer pcancel()
			err := p.Poll(pctx)
			if err == nil || errors.Is(err, ErrStalePoll) || pctx.Err() != nil {
				return
			}
			p.logger.Warn("poll failed", zap.Error(err))
		}()
	}

	p.logger.Info("poller started", zap.Duration("interval", p.interval), zap.Duration("timeout", p.timeout))
	poll()
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poller stopped")
			return nil
		case <-ticker.C:
			if inflight.Load() > 0 {
				p.logger.Debug("previous poll still running, skipping tick")
				continue
			}
			poll()
		case <-p.trigger:
			cancel()
			poll()
		}
	}
}

// UpdateSettings switches pair, timeframe, step or precisions and schedules an immediate poll.
// Data of the previous settings stays available until the next successful poll.
func (p *Poller) UpdateSettings(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}

	p.mu.Lock()
	p.settings = s
	p.generation++
	p.mu.Unlock()

	select {
	case p.trigger <- struct{}{}:
	default:
		// a poll is already pending
	}
	return nil
}

// Settings returns the current settings.
func (p *Poller) Settings() Settings {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.settings
}

// Poll performs one fetch of depth and candles for the current settings.
// Fetch failures, timeouts included, are recorded in Status unless a newer result was applied.
// Cancelling ctx abandons the poll without recording anything.
func (p *Poller) Poll(ctx context.Context) error {
	seq := p.seq.Add(1)
	p.mu.RLock()
	settings, generation := p.settings, p.generation
	p.mu.RUnlock()
	symbol := settings.Pair.Symbol()
	logger := p.logger.With(zap.String("pair", settings.Pair.String()), zap.Uint64("seq", seq))

	pctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var (
		snapshot domain.DepthSnapshot
		candles  []domain.Candle
	)
	g, gctx := errgroup.WithContext(pctx)
	g.Go(func() error {
		var err error
		snapshot, err = p.source.Depth(gctx, symbol, p.depthLimit)
		return errors.Wrap(err, "fetch depth")
	})
	g.Go(func() error {
		var err error
		candles, err = p.source.Klines(gctx, symbol, settings.Timeframe, p.klineLimit)
		return errors.Wrap(err, "fetch klines")
	})
	err := g.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var view domain.OrderbookView
	if err == nil {
		view, err = orderbook.BuildView(symbol, snapshot, settings.Step, settings.PricePrecision)
	}
	if err == nil {
		err = domain.ValidateCandles(candles)
	}

	p.deliverMu.Lock()
	defer p.deliverMu.Unlock()

	p.mu.Lock()
	if generation != p.generation || seq <= p.applied {
		p.mu.Unlock()
		logger.Debug("discarding stale poll result")
		return ErrStalePoll
	}
	p.applied = seq
	p.status.Settings = settings
	if err != nil {
		p.status.Err = err
		p.status.Failures++
		p.mu.Unlock()
		return err
	}
	p.status.Err = nil
	p.status.Failures = 0
	p.status.LastSuccess = view.UpdatedAt
	p.view = &view
	p.candles = candles
	p.mu.Unlock()

	if p.sink != nil {
		p.sink.OnOrderbook(view)
		p.sink.OnCandles(settings.SeriesKey(), candles)
	}

	logger.Debug("poll delivered", zap.Int("candles", len(candles)))
	return nil
}

// Status returns the outcome of the most recent completed poll.
func (p *Poller) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

// View returns the last successfully built order book view.
func (p *Poller) View() (domain.OrderbookView, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.view == nil {
		return domain.OrderbookView{}, false
	}
	return *p.view, true
}

// Candles returns the last successfully fetched candles.
func (p *Poller) Candles() []domain.Candle {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]domain.Candle(nil), p.candles...)
}
