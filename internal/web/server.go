// Package web serves the dashboard UI, its JSON API and the SSE streams.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/deskfolio/internal/app"
	"github.com/vadiminshakov/deskfolio/internal/domain"
	"github.com/vadiminshakov/deskfolio/internal/services/drawing"
	"github.com/vadiminshakov/deskfolio/internal/services/poller"
	"github.com/vadiminshakov/deskfolio/internal/shell"
)

const (
	heartbeatInterval = 30 * time.Second
	maxBodyBytes      = 1 << 20
)

type portfolioService interface {
	Portfolio() domain.PortfolioSnapshot
	SubscribePortfolio() (<-chan domain.PortfolioSnapshot, func())
	AddLot(ctx context.Context, symbol string, lot domain.Lot) error
	AddAsset(ctx context.Context, asset domain.Asset) error
	RemoveAsset(ctx context.Context, symbol string) (bool, error)
}

type orderbookService interface {
	Orderbook() (domain.OrderbookView, bool)
	SubscribeOrderbook() (<-chan domain.OrderbookView, func())
	PollStatus() poller.Status
	OrderbookSettings() poller.Settings
	UpdateOrderbookSettings(s poller.Settings) error
}

type chartService interface {
	Frame() domain.Frame
	Pan(ctx context.Context, bars float64) error
	Zoom(ctx context.Context, factor float64) error
	Resize(ctx context.Context, width, height float64) error
	FitContent(ctx context.Context) error
}

type drawingService interface {
	Drawing() (domain.DrawingState, domain.DrawingSettings)
	SelectTool(ctx context.Context, tool domain.LineType) error
	Pointer(ctx context.Context, ev app.PointerEvent) (domain.DrawingState, error)
	BeginDrag(ctx context.Context, px domain.PixelCoordinate) (bool, error)
	EndDrag(ctx context.Context) error
	DeleteLine(ctx context.Context, id string) (bool, error)
	ClearDrawings(ctx context.Context) error
	ToggleDrawings(ctx context.Context) (bool, error)
	UpdateDrawingSettings(ctx context.Context, u drawing.SettingsUpdate) error
}

type eventService interface {
	Events(year int, month time.Month) ([]domain.Event, error)
	PutEvent(e domain.Event) (domain.Event, error)
	DeleteEvent(id string) (string, error)
}

type windowService interface {
	SendWindowCommand(raw string) error
	SubscribeWindow() (<-chan shell.Command, func())
}

type themeService interface {
	Theme() domain.Theme
	ToggleTheme() domain.Theme
	FeedState() string
}

// Dashboard everything the UI talks to.
type Dashboard interface {
	portfolioService
	orderbookService
	chartService
	drawingService
	eventService
	windowService
	themeService
}

// Server exposes HTTP endpoints serving the HTML UI, the JSON API and SSE streams.
// Nil services answer 503.
type Server struct {
	Addr      string
	Logger    *zap.Logger
	Portfolio portfolioService
	Orderbook orderbookService
	Chart     chartService
	Drawing   drawingService
	Events    eventService
	Window    windowService
	Theme     themeService
}

// NewServer creates a new web server instance backed by d.
func NewServer(addr string, logger *zap.Logger, d Dashboard) *Server {
	return &Server{
		Addr:      addr,
		Logger:    logger,
		Portfolio: d,
		Orderbook: d,
		Chart:     d,
		Drawing:   d,
		Events:    d,
		Window:    d,
		Theme:     d,
	}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /status", s.handleStatus)

	mux.HandleFunc("GET /portfolio", s.handlePortfolio)
	mux.HandleFunc("GET /portfolio/stream", s.handlePortfolioStream)
	mux.HandleFunc("POST /portfolio/lots", s.handleAddLot)
	mux.HandleFunc("POST /portfolio/assets", s.handleAddAsset)
	mux.HandleFunc("DELETE /portfolio/assets/{symbol}", s.handleRemoveAsset)

	mux.HandleFunc("GET /orderbook", s.handleOrderbook)
	mux.HandleFunc("GET /orderbook/stream", s.handleOrderbookStream)
	mux.HandleFunc("PUT /orderbook/settings", s.handleOrderbookSettings)

	mux.HandleFunc("GET /chart/frame", s.handleFrame)
	mux.HandleFunc("POST /chart/pan", s.handlePan)
	mux.HandleFunc("POST /chart/zoom", s.handleZoom)
	mux.HandleFunc("POST /chart/resize", s.handleResize)
	mux.HandleFunc("POST /chart/fit", s.handleFit)

	mux.HandleFunc("GET /drawing", s.handleDrawing)
	mux.HandleFunc("POST /drawing/tool", s.handleTool)
	mux.HandleFunc("POST /drawing/pointer", s.handlePointer)
	mux.HandleFunc("POST /drawing/drag", s.handleDrag)
	mux.HandleFunc("POST /drawing/clear", s.handleClear)
	mux.HandleFunc("POST /drawing/visibility", s.handleVisibility)
	mux.HandleFunc("PUT /drawing/settings", s.handleDrawingSettings)
	mux.HandleFunc("DELETE /drawing/lines/{id}", s.handleDeleteLine)

	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("PUT /events", s.handlePutEvent)
	mux.HandleFunc("DELETE /events/{id}", s.handleDeleteEvent)

	mux.HandleFunc("POST /window/{command}", s.handleWindowCommand)
	mux.HandleFunc("GET /window/stream", s.handleWindowStream)

	mux.HandleFunc("GET /theme", s.handleTheme)
	mux.HandleFunc("POST /theme/toggle", s.handleToggleTheme)

	return mux
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	server := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger().Info("web ui listening", zap.String("addr", s.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexHTML)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.Theme == nil {
		unavailable(w, "status")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"theme": string(s.Theme.Theme()),
		"feed":  s.Theme.FeedState(),
	})
}

func unavailable(w http.ResponseWriter, what string) {
	w.WriteHeader(http.StatusServiceUnavailable)
	fmt.Fprintf(w, "%s not available", what)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps argument errors to 400 and everything else to 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded), errors.Is(err, app.ErrLoopStopped):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		s.logger().Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Wrapf(domain.ErrInvalidArgument, "malformed request body: %v", err)
	}
	return nil
}
