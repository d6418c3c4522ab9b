package app

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/deskfolio/internal/domain"
	"github.com/vadiminshakov/deskfolio/internal/services/drawing"
	"github.com/vadiminshakov/deskfolio/internal/services/poller"
	"github.com/vadiminshakov/deskfolio/internal/shell"
)

// PointerKind kind of a pointer event on the chart.
type PointerKind string

const (
	PointerDown  PointerKind = "down"
	PointerMove  PointerKind = "move"
	PointerClick PointerKind = "click"
)

// PointerEvent pointer input in chart pixel space.
type PointerEvent struct {
	Kind PointerKind `json:"kind"`
	X    float64     `json:"x"`
	Y    float64     `json:"y"`
}

// Portfolio returns the latest portfolio snapshot.
func (a *App) Portfolio() domain.PortfolioSnapshot {
	return a.portfolio.Snapshot()
}

// SubscribePortfolio streams portfolio snapshots starting with the latest one.
func (a *App) SubscribePortfolio() (<-chan domain.PortfolioSnapshot, func()) {
	ch := a.snapshots.Subscribe()
	return ch, func() { a.snapshots.Unsubscribe(ch) }
}

// AddLot records a purchase of symbol.
func (a *App) AddLot(ctx context.Context, symbol string, lot domain.Lot) error {
	return a.loop.Do(ctx, func() error {
		return a.portfolio.AddLot(symbol, lot)
	})
}

// AddAsset starts tracking an asset and resubscribes the trade stream.
func (a *App) AddAsset(ctx context.Context, asset domain.Asset) error {
	err := a.loop.Do(ctx, func() error {
		return a.portfolio.AddAsset(asset)
	})
	if err != nil {
		return err
	}

	runCtx, ok := a.running()
	if !ok {
		return nil
	}
	go a.loadDailyCloses(runCtx, []string{asset.Symbol})
	return a.subscribe(runCtx)
}

// RemoveAsset stops tracking symbol and resubscribes the trade stream.
func (a *App) RemoveAsset(ctx context.Context, symbol string) (bool, error) {
	var removed bool
	err := a.loop.Do(ctx, func() error {
		removed = a.portfolio.RemoveAsset(symbol)
		return nil
	})
	if err != nil || !removed {
		return removed, err
	}

	if runCtx, ok := a.running(); ok {
		return true, a.subscribe(runCtx)
	}
	return true, nil
}

// Orderbook returns the last successfully polled book.
func (a *App) Orderbook() (domain.OrderbookView, bool) {
	return a.poller.View()
}

// SubscribeOrderbook streams polled books starting with the latest one.
func (a *App) SubscribeOrderbook() (<-chan domain.OrderbookView, func()) {
	ch := a.orderbooks.Subscribe()
	return ch, func() { a.orderbooks.Unsubscribe(ch) }
}

// PollStatus returns the poller status including the last error.
func (a *App) PollStatus() poller.Status {
	return a.poller.Status()
}

// UpdateOrderbookSettings changes the polled pair, timeframe or aggregation and triggers a poll.
func (a *App) UpdateOrderbookSettings(s poller.Settings) error {
	if err := a.poller.UpdateSettings(s); err != nil {
		return err
	}
	a.logger.Info("orderbook settings changed",
		zap.String("pair", s.Pair.String()), zap.String("timeframe", s.Timeframe.String()),
		zap.String("step", s.Step.String()))
	return nil
}

// Frame composes the chart frame.
func (a *App) Frame() domain.Frame {
	return a.renderer.Frame()
}

// Pan scrolls the chart by bars; positive values move into history.
func (a *App) Pan(ctx context.Context, bars float64) error {
	return a.loop.Do(ctx, func() error {
		a.renderer.Pan(bars)
		return nil
	})
}

// Zoom scales the bar spacing by factor.
func (a *App) Zoom(ctx context.Context, factor float64) error {
	if factor <= 0 {
		return errors.Wrapf(domain.ErrInvalidArgument, "zoom factor must be positive, got %v", factor)
	}
	return a.loop.Do(ctx, func() error {
		a.renderer.Zoom(factor)
		return nil
	})
}

// Resize changes the chart size in pixels.
func (a *App) Resize(ctx context.Context, width, height float64) error {
	return a.loop.Do(ctx, func() error {
		return a.renderer.Resize(width, height)
	})
}

// FitContent shows the whole series.
func (a *App) FitContent(ctx context.Context) error {
	return a.loop.Do(ctx, func() error {
		a.renderer.FitContent()
		return nil
	})
}

// Drawing returns the drawing engine state and settings.
func (a *App) Drawing() (domain.DrawingState, domain.DrawingSettings) {
	return a.drawing.State(), a.drawing.Settings()
}

// SelectTool arms a drawing tool; LineNone disarms it.
func (a *App) SelectTool(ctx context.Context, tool domain.LineType) error {
	return a.loop.Do(ctx, func() error {
		return a.drawing.SelectTool(tool)
	})
}

// Pointer feeds a pointer event into the drawing engine.
func (a *App) Pointer(ctx context.Context, ev PointerEvent) (domain.DrawingState, error) {
	px := domain.PixelCoordinate{X: ev.X, Y: ev.Y}

	var state domain.DrawingState
	err := a.loop.Do(ctx, func() error {
		switch ev.Kind {
		case PointerDown:
			a.drawing.PointerDown(px, a.now())
		case PointerMove:
			a.drawing.PointerMove(px)
		case PointerClick:
			a.drawing.Click(px, a.now())
		default:
			return errors.Wrapf(domain.ErrInvalidArgument, "unknown pointer event %q", ev.Kind)
		}
		state = a.drawing.State()
		return nil
	})
	return state, err
}

// BeginDrag starts dragging a handle of the selected line. It reports whether a handle was hit.
func (a *App) BeginDrag(ctx context.Context, px domain.PixelCoordinate) (bool, error) {
	var started bool
	err := a.loop.Do(ctx, func() error {
		started = a.drawing.BeginDrag(px)
		return nil
	})
	return started, err
}

// EndDrag finishes a handle drag.
func (a *App) EndDrag(ctx context.Context) error {
	return a.loop.Do(ctx, func() error {
		a.drawing.EndDrag()
		return nil
	})
}

// DeleteLine removes a line by id and reports whether it existed.
func (a *App) DeleteLine(ctx context.Context, id string) (bool, error) {
	var deleted bool
	err := a.loop.Do(ctx, func() error {
		deleted = a.drawing.DeleteLine(id)
		return nil
	})
	return deleted, err
}

// ClearDrawings removes every line of the current series.
func (a *App) ClearDrawings(ctx context.Context) error {
	return a.loop.Do(ctx, func() error {
		a.drawing.ClearAllLines()
		return nil
	})
}

// ToggleDrawings shows or hides the drawing layer and returns the new visibility.
func (a *App) ToggleDrawings(ctx context.Context) (bool, error) {
	var visible bool
	err := a.loop.Do(ctx, func() error {
		visible = a.drawing.ToggleVisibility()
		return nil
	})
	return visible, err
}

// UpdateDrawingSettings changes the style of lines drawn from now on.
func (a *App) UpdateDrawingSettings(ctx context.Context, u drawing.SettingsUpdate) error {
	return a.loop.Do(ctx, func() error {
		return a.drawing.UpdateSettings(u)
	})
}

// Events returns calendar events, all of them when year is zero.
func (a *App) Events(year int, month time.Month) ([]domain.Event, error) {
	if year == 0 {
		return a.events.GetAll()
	}
	return a.events.EventsForMonth(year, month)
}

// PutEvent creates or replaces an event.
func (a *App) PutEvent(e domain.Event) (domain.Event, error) {
	return a.events.Put(e)
}

// DeleteEvent removes an event and returns its id.
func (a *App) DeleteEvent(id string) (string, error) {
	return a.events.DeleteByID(id)
}

// SendWindowCommand relays a window-control command to the shell.
func (a *App) SendWindowCommand(raw string) error {
	return a.host.Send(raw)
}

// SubscribeWindow streams relayed window commands.
func (a *App) SubscribeWindow() (<-chan shell.Command, func()) {
	return a.host.Subscribe()
}

// Theme returns the current theme.
func (a *App) Theme() domain.Theme {
	return a.state.Theme()
}

// ToggleTheme flips the theme.
func (a *App) ToggleTheme() domain.Theme {
	return a.state.ToggleTheme()
}

// FeedState returns the trade stream connection state.
func (a *App) FeedState() string {
	return a.state.FeedState().String()
}

// OrderbookSettings returns the settings used by the next poll.
func (a *App) OrderbookSettings() poller.Settings {
	return a.poller.Settings()
}
