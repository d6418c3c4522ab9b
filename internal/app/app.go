// Package app wires the dashboard services together and runs them.
package app

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/deskfolio/config"
	"github.com/vadiminshakov/deskfolio/internal/domain"
	"github.com/vadiminshakov/deskfolio/internal/events"
	"github.com/vadiminshakov/deskfolio/internal/services/chart"
	"github.com/vadiminshakov/deskfolio/internal/services/drawing"
	"github.com/vadiminshakov/deskfolio/internal/services/market"
	"github.com/vadiminshakov/deskfolio/internal/services/marketdata"
	"github.com/vadiminshakov/deskfolio/internal/services/poller"
	"github.com/vadiminshakov/deskfolio/internal/services/portfolio"
	"github.com/vadiminshakov/deskfolio/internal/shell"
	drawingstore "github.com/vadiminshakov/deskfolio/internal/storage/drawings"
	"github.com/vadiminshakov/deskfolio/internal/storage/eventstore"
	"github.com/vadiminshakov/deskfolio/pkg/retrier"
)

const (
	dailyCloseWorkers = 4
	// two daily candles: the last completed one and the one in progress
	dailyCloseCandles = 2
	snapshotBuffer    = 64
)

// Option configures App.
type Option func(*App)

// WithProvider replaces the exchange REST provider selected by the platform.
func WithProvider(p market.Provider) Option {
	return func(a *App) {
		a.provider = p
	}
}

// WithRetrier replaces the retrier used for startup fetches.
func WithRetrier(r *retrier.Retrier) Option {
	return func(a *App) {
		a.retrier = r
	}
}

// WithClock replaces time.Now for pointer events.
func WithClock(now func() time.Time) Option {
	return func(a *App) {
		a.now = now
	}
}

// App the running dashboard: portfolio valuation fed by the trade stream, order book polling,
// the chart with its drawing layer, the event calendar and window control.
type App struct {
	cfg    config.Config
	logger *zap.Logger
	now    func() time.Time

	loop       *Loop
	state      *State
	provider   market.Provider
	retrier    *retrier.Retrier
	portfolio  *portfolio.Engine
	snapshots  *events.Broadcaster[domain.PortfolioSnapshot]
	orderbooks *events.Broadcaster[domain.OrderbookView]
	feed       *marketdata.Feed
	poller     *poller.Poller
	renderer   *chart.Renderer
	drawing    *drawing.Engine
	events     *eventstore.WALStore
	drawings   *drawingstore.WALStore
	host       *shell.Host

	// subMu serializes symbol set reads with feed reconnects.
	subMu    sync.Mutex
	streamed []string

	runMu  sync.Mutex
	runCtx context.Context
	cancel context.CancelFunc
}

// New builds the application from the configuration.
func New(cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	a := &App{
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
		loop:       NewLoop(defaultQueueSize),
		state:      NewState(cfg.Theme),
		snapshots:  events.NewReplayBroadcaster[domain.PortfolioSnapshot](snapshotBuffer),
		orderbooks: events.NewReplayBroadcaster[domain.OrderbookView](snapshotBuffer),
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.provider == nil {
		p, err := market.NewProvider(cfg.Platform, cfg.RESTBaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create market provider")
		}
		a.provider = p
	}
	if a.retrier == nil {
		a.retrier = retrier.New(
			retrier.WithInitialInterval(500*time.Millisecond),
			retrier.WithMaxInterval(5*time.Second),
			retrier.WithMaxRetries(3),
			retrier.WithRetryIf(func(err error) bool {
				return !errors.Is(err, domain.ErrInvalidArgument)
			}),
			retrier.WithOnRetry(func(attempt int, err error, wait time.Duration) {
				logger.Warn("retrying market request",
					zap.Int("attempt", attempt), zap.Duration("wait", wait), zap.Error(err))
			}),
		)
	}

	assets := cfg.Portfolio.Assets
	if len(assets) == 0 {
		assets = portfolio.DefaultAssets()
	}
	portfolioOpts := []portfolio.Option{portfolio.WithPublisher(a.snapshots)}
	if cfg.Portfolio.Scales != nil {
		portfolioOpts = append(portfolioOpts, portfolio.WithScales(cfg.Portfolio.Scales))
	}
	engine, err := portfolio.NewEngine(logger.Named("portfolio"), assets, portfolioOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create portfolio engine")
	}
	a.portfolio = engine

	a.feed = marketdata.NewFeed(logger.Named("feed"), cfg.StreamURL,
		marketdata.WithStateHandler(a.state.SetFeedState))

	chartOpts := chart.DefaultOptions()
	if cfg.Chart.Width > 0 && cfg.Chart.Height > 0 {
		chartOpts.Width, chartOpts.Height = cfg.Chart.Width, cfg.Chart.Height
	}
	a.renderer = chart.NewRenderer(logger.Named("chart"), chartOpts)
	a.renderer.SetTheme(a.state.Theme())
	unsubscribe := a.state.OnTheme(a.renderer.SetTheme)
	a.renderer.Observe(themeObserver{unsubscribe: unsubscribe})

	a.drawing = drawing.NewEngine(logger.Named("drawing"), a.renderer.Mapper(),
		drawing.WithChangeHook(a.renderer.PersistDrawings))

	if a.events, err = eventstore.NewWALStore(cfg.Storage.EventsDir); err != nil {
		return nil, errors.Wrap(err, "failed to open event store")
	}
	if a.drawings, err = drawingstore.NewWALStore(cfg.Storage.DrawingsDir); err != nil {
		_ = a.events.Close()
		return nil, errors.Wrap(err, "failed to open drawings store")
	}
	a.renderer.AttachDrawings(a.drawing, a.drawings)

	ob := cfg.Orderbook
	a.poller, err = poller.New(logger.Named("poller"), a.provider, pollSink{a: a}, poller.Settings{
		Pair:              ob.Pair,
		Timeframe:         ob.Timeframe,
		Step:              ob.Step,
		PricePrecision:    ob.PricePrecision,
		QuantityPrecision: ob.QuantityPrecision,
	},
		poller.WithInterval(ob.PollInterval),
		poller.WithDepthLimit(ob.DepthLimit),
		poller.WithKlineLimit(ob.KlineLimit),
	)
	if err != nil {
		a.closeStores()
		return nil, errors.Wrap(err, "failed to create orderbook poller")
	}

	a.host = shell.NewHost(logger.Named("shell"), shell.WithCloseHandler(a.Stop))

	return a, nil
}

// Run starts the services and blocks until ctx is done, Stop is called or a close
// window command arrives. Stores are closed and the renderer disposed on return.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.runMu.Lock()
	if a.runCtx != nil {
		a.runMu.Unlock()
		return errors.New("app is already running")
	}
	a.runCtx, a.cancel = ctx, cancel
	a.runMu.Unlock()

	defer a.shutdown()

	a.logger.Info("starting dashboard",
		zap.String("platform", a.cfg.Platform),
		zap.String("pair", a.cfg.Orderbook.Pair.String()),
		zap.Strings("symbols", a.portfolio.Symbols()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.loop.Run(gctx)
	})
	g.Go(func() error {
		return a.poller.Run(gctx)
	})
	g.Go(func() error {
		a.loadDailyCloses(gctx, a.portfolio.Symbols())
		return nil
	})
	g.Go(func() error {
		a.refreshExchangeRate(gctx)
		return nil
	})

	if err := a.subscribe(gctx); err != nil {
		a.logger.Error("failed to subscribe to trade stream", zap.Error(err))
	}

	err := g.Wait()
	a.logger.Info("dashboard stopped")
	return err
}

// Stop ends Run. It is a no-op when the app is not running.
func (a *App) Stop() {
	a.runMu.Lock()
	cancel := a.cancel
	a.runMu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (a *App) shutdown() {
	a.feed.Close()
	a.renderer.Dispose()
	a.closeStores()
}

func (a *App) closeStores() {
	if err := a.events.Close(); err != nil {
		a.logger.Error("failed to close event store", zap.Error(err))
	}
	if err := a.drawings.Close(); err != nil {
		a.logger.Error("failed to close drawings store", zap.Error(err))
	}
}

// running returns the context of the current Run, if any.
func (a *App) running() (context.Context, bool) {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if a.runCtx == nil {
		return context.Background(), false
	}
	return a.runCtx, true
}

// subscribe (re)connects the trade stream to the current symbol set.
func (a *App) subscribe(ctx context.Context) error {
	a.subMu.Lock()
	defer a.subMu.Unlock()

	symbols := a.portfolio.Symbols()
	a.streamed = symbols
	if len(symbols) == 0 {
		a.feed.Close()
		a.logger.Info("no assets to stream")
		return nil
	}

	_, err := a.feed.Connect(ctx, symbols, func(t domain.PriceTick) {
		err := a.loop.Post(ctx, func() {
			a.portfolio.UpdatePrice(t.Symbol, t.Price)
		})
		if err != nil {
			a.logger.Debug("tick dropped on shutdown", zap.String("symbol", t.Symbol))
		}
	})
	return err
}

// streamedSymbols returns the symbol set of the latest trade stream subscription.
func (a *App) streamedSymbols() []string {
	a.subMu.Lock()
	defer a.subMu.Unlock()
	return append([]string(nil), a.streamed...)
}

func (a *App) loadDailyCloses(ctx context.Context, symbols []string) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(dailyCloseWorkers)

	for _, symbol := range symbols {
		g.Go(func() error {
			candles, err := retrier.DoWithData(a.retrier, gctx, func(ctx context.Context) ([]domain.Candle, error) {
				return a.provider.Klines(ctx, symbol, domain.Timeframe1d, dailyCloseCandles)
			})
			if err != nil {
				if gctx.Err() == nil {
					a.logger.Warn("failed to load daily close", zap.String("symbol", symbol), zap.Error(err))
				}
				return nil
			}

			price, ok := previousClose(candles)
			if !ok {
				return nil
			}
			_ = a.loop.Post(gctx, func() {
				a.portfolio.SetDailyClose(symbol, price)
			})
			return nil
		})
	}

	_ = g.Wait()
}

// previousClose returns the close of the last completed daily candle, or the open of the
// current one when the exchange returned a single candle.
func previousClose(candles []domain.Candle) (decimal.Decimal, bool) {
	switch n := len(candles); {
	case n >= 2:
		return candles[n-2].Close, true
	case n == 1:
		return candles[0].Open, true
	default:
		return decimal.Zero, false
	}
}

func (a *App) refreshExchangeRate(ctx context.Context) {
	cfg := a.cfg.Portfolio
	if cfg.ExchangeRateSymbol == "" {
		return
	}

	update := func() {
		price, err := retrier.DoWithData(a.retrier, ctx, func(ctx context.Context) (decimal.Decimal, error) {
			return a.provider.Price(ctx, cfg.ExchangeRateSymbol)
		})
		if err != nil {
			if ctx.Err() == nil {
				a.logger.Warn("failed to refresh exchange rate",
					zap.String("symbol", cfg.ExchangeRateSymbol), zap.Error(err))
			}
			return
		}

		rate := price
		if cfg.InvertExchangeRate {
			if !price.IsPositive() {
				a.logger.Warn("exchange rate price is not positive", zap.String("price", price.String()))
				return
			}
			rate = decimal.NewFromInt(1).DivRound(price, 8)
		}

		_ = a.loop.Post(ctx, func() {
			if err := a.portfolio.SetExchangeRate(rate); err != nil {
				a.logger.Warn("rejected exchange rate", zap.Error(err))
			}
		})
	}

	update()

	if cfg.ExchangeRateInterval <= 0 {
		return
	}
	ticker := time.NewTicker(cfg.ExchangeRateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			update()
		}
	}
}

// pollSink hands poll results to the renderer on the event loop.
type pollSink struct {
	a *App
}

func (s pollSink) OnOrderbook(view domain.OrderbookView) {
	s.a.orderbooks.Publish(view)
}

func (s pollSink) OnCandles(key domain.SeriesKey, candles []domain.Candle) {
	ctx, _ := s.a.running()
	err := s.a.loop.Post(ctx, func() {
		if err := s.a.renderer.SetCandles(key, candles); err != nil {
			s.a.logger.Error("failed to set candles", zap.String("series", key.String()), zap.Error(err))
		}
	})
	if err != nil {
		s.a.logger.Debug("candles dropped on shutdown", zap.String("series", key.String()))
	}
}
