package web

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/deskfolio/internal/app"
	"github.com/vadiminshakov/deskfolio/internal/domain"
	"github.com/vadiminshakov/deskfolio/internal/services/drawing"
	"github.com/vadiminshakov/deskfolio/internal/services/poller"
)

// lotDateLayout date format of lots posted by the UI.
const lotDateLayout = "2006-01-02"

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	if s.Portfolio == nil {
		unavailable(w, "portfolio")
		return
	}
	writeJSON(w, http.StatusOK, s.Portfolio.Portfolio())
}

type lotRequest struct {
	Symbol   string          `json:"symbol"`
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
	// Date is YYYY-MM-DD; empty means today.
	Date string `json:"date"`
}

func (s *Server) handleAddLot(w http.ResponseWriter, r *http.Request) {
	if s.Portfolio == nil {
		unavailable(w, "portfolio")
		return
	}

	var req lotRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	date := time.Now().UTC().Truncate(24 * time.Hour)
	if req.Date != "" {
		parsed, err := time.Parse(lotDateLayout, req.Date)
		if err != nil {
			s.writeError(w, r, errors.Wrapf(domain.ErrInvalidArgument, "invalid lot date %q", req.Date))
			return
		}
		date = parsed
	}

	lot := domain.Lot{Price: req.Price, Quantity: req.Quantity, Date: date}
	if err := s.Portfolio.AddLot(r.Context(), strings.ToUpper(req.Symbol), lot); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.Portfolio.Portfolio())
}

type assetRequest struct {
	Symbol     string          `json:"symbol"`
	Name       string          `json:"name"`
	Amount     decimal.Decimal `json:"amount"`
	Investment decimal.Decimal `json:"investment"`
}

func (s *Server) handleAddAsset(w http.ResponseWriter, r *http.Request) {
	if s.Portfolio == nil {
		unavailable(w, "portfolio")
		return
	}

	var req assetRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	asset := domain.Asset{
		Symbol:     strings.ToUpper(strings.TrimSpace(req.Symbol)),
		Name:       req.Name,
		Amount:     req.Amount,
		Investment: req.Investment,
	}
	if err := s.Portfolio.AddAsset(r.Context(), asset); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.Portfolio.Portfolio())
}

func (s *Server) handleRemoveAsset(w http.ResponseWriter, r *http.Request) {
	if s.Portfolio == nil {
		unavailable(w, "portfolio")
		return
	}

	removed, err := s.Portfolio.RemoveAsset(r.Context(), strings.ToUpper(r.PathValue("symbol")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !removed {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "asset not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type settingsResponse struct {
	Pair              string `json:"pair"`
	Timeframe         string `json:"timeframe"`
	Step              string `json:"step"`
	PricePrecision    int32  `json:"price_precision"`
	QuantityPrecision int32  `json:"quantity_precision"`
}

func toSettingsResponse(s poller.Settings) settingsResponse {
	return settingsResponse{
		Pair:              s.Pair.String(),
		Timeframe:         s.Timeframe.String(),
		Step:              s.Step.String(),
		PricePrecision:    s.PricePrecision,
		QuantityPrecision: s.QuantityPrecision,
	}
}

type orderbookResponse struct {
	View        *domain.OrderbookView `json:"view"`
	Settings    settingsResponse      `json:"settings"`
	Error       string                `json:"error,omitempty"`
	LastSuccess *time.Time            `json:"last_success,omitempty"`
	Failures    int                   `json:"failures"`
}

func (s *Server) handleOrderbook(w http.ResponseWriter, r *http.Request) {
	if s.Orderbook == nil {
		unavailable(w, "orderbook")
		return
	}

	status := s.Orderbook.PollStatus()
	resp := orderbookResponse{
		Settings: toSettingsResponse(s.Orderbook.OrderbookSettings()),
		Failures: status.Failures,
	}
	if view, ok := s.Orderbook.Orderbook(); ok {
		resp.View = &view
	}
	if status.Err != nil {
		resp.Error = status.Err.Error()
	}
	if !status.LastSuccess.IsZero() {
		resp.LastSuccess = &status.LastSuccess
	}
	writeJSON(w, http.StatusOK, resp)
}

// settingsRequest partial change of the orderbook settings; empty fields are kept.
type settingsRequest struct {
	Pair              string `json:"pair,omitempty"`
	Timeframe         string `json:"timeframe,omitempty"`
	Step              string `json:"step,omitempty"`
	PricePrecision    *int32 `json:"price_precision,omitempty"`
	QuantityPrecision *int32 `json:"quantity_precision,omitempty"`
}

func (req settingsRequest) apply(cur poller.Settings) (poller.Settings, error) {
	next := cur
	if req.Pair != "" {
		pair, err := domain.ParsePair(req.Pair)
		if err != nil {
			return cur, err
		}
		next.Pair = pair
	}
	if req.Timeframe != "" {
		next.Timeframe = domain.Timeframe(req.Timeframe)
	}
	if req.Step != "" {
		step, err := decimal.NewFromString(req.Step)
		if err != nil {
			return cur, errors.Wrapf(domain.ErrInvalidArgument, "invalid step %q", req.Step)
		}
		next.Step = step
	}
	if req.PricePrecision != nil {
		next.PricePrecision = *req.PricePrecision
	}
	if req.QuantityPrecision != nil {
		next.QuantityPrecision = *req.QuantityPrecision
	}
	return next, next.Validate()
}

func (s *Server) handleOrderbookSettings(w http.ResponseWriter, r *http.Request) {
	if s.Orderbook == nil {
		unavailable(w, "orderbook")
		return
	}

	var req settingsRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	next, err := req.apply(s.Orderbook.OrderbookSettings())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.Orderbook.UpdateOrderbookSettings(next); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingsResponse(next))
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	if s.Chart == nil {
		unavailable(w, "chart")
		return
	}
	writeJSON(w, http.StatusOK, s.Chart.Frame())
}

func (s *Server) handlePan(w http.ResponseWriter, r *http.Request) {
	if s.Chart == nil {
		unavailable(w, "chart")
		return
	}
	var req struct {
		Bars float64 `json:"bars"`
	}
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.Chart.Pan(r.Context(), req.Bars); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Chart.Frame())
}

func (s *Server) handleZoom(w http.ResponseWriter, r *http.Request) {
	if s.Chart == nil {
		unavailable(w, "chart")
		return
	}
	var req struct {
		Factor float64 `json:"factor"`
	}
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.Chart.Zoom(r.Context(), req.Factor); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Chart.Frame())
}

func (s *Server) handleResize(w http.ResponseWriter, r *http.Request) {
	if s.Chart == nil {
		unavailable(w, "chart")
		return
	}
	var req struct {
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	}
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.Chart.Resize(r.Context(), req.Width, req.Height); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Chart.Frame())
}

func (s *Server) handleFit(w http.ResponseWriter, r *http.Request) {
	if s.Chart == nil {
		unavailable(w, "chart")
		return
	}
	if err := s.Chart.FitContent(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Chart.Frame())
}

type drawingResponse struct {
	State    domain.DrawingState    `json:"state"`
	Settings domain.DrawingSettings `json:"settings"`
}

func (s *Server) writeDrawing(w http.ResponseWriter, status int) {
	state, settings := s.Drawing.Drawing()
	writeJSON(w, status, drawingResponse{State: state, Settings: settings})
}

func (s *Server) handleDrawing(w http.ResponseWriter, r *http.Request) {
	if s.Drawing == nil {
		unavailable(w, "drawing")
		return
	}
	s.writeDrawing(w, http.StatusOK)
}

func (s *Server) handleTool(w http.ResponseWriter, r *http.Request) {
	if s.Drawing == nil {
		unavailable(w, "drawing")
		return
	}
	var req struct {
		Tool domain.LineType `json:"tool"`
	}
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.Drawing.SelectTool(r.Context(), req.Tool); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeDrawing(w, http.StatusOK)
}

func (s *Server) handlePointer(w http.ResponseWriter, r *http.Request) {
	if s.Drawing == nil {
		unavailable(w, "drawing")
		return
	}
	var ev app.PointerEvent
	if err := decode(w, r, &ev); err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, err := s.Drawing.Pointer(r.Context(), ev); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeDrawing(w, http.StatusOK)
}

func (s *Server) handleDrag(w http.ResponseWriter, r *http.Request) {
	if s.Drawing == nil {
		unavailable(w, "drawing")
		return
	}
	var req struct {
		Action string  `json:"action"`
		X      float64 `json:"x"`
		Y      float64 `json:"y"`
	}
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	var (
		dragging bool
		err      error
	)
	switch req.Action {
	case "begin":
		dragging, err = s.Drawing.BeginDrag(r.Context(), domain.PixelCoordinate{X: req.X, Y: req.Y})
	case "end":
		err = s.Drawing.EndDrag(r.Context())
	default:
		err = errors.Wrapf(domain.ErrInvalidArgument, "unknown drag action %q", req.Action)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"dragging": dragging})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if s.Drawing == nil {
		unavailable(w, "drawing")
		return
	}
	if err := s.Drawing.ClearDrawings(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeDrawing(w, http.StatusOK)
}

func (s *Server) handleVisibility(w http.ResponseWriter, r *http.Request) {
	if s.Drawing == nil {
		unavailable(w, "drawing")
		return
	}
	visible, err := s.Drawing.ToggleDrawings(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"visible": visible})
}

func (s *Server) handleDrawingSettings(w http.ResponseWriter, r *http.Request) {
	if s.Drawing == nil {
		unavailable(w, "drawing")
		return
	}
	var u drawing.SettingsUpdate
	if err := decode(w, r, &u); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.Drawing.UpdateDrawingSettings(r.Context(), u); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeDrawing(w, http.StatusOK)
}

func (s *Server) handleDeleteLine(w http.ResponseWriter, r *http.Request) {
	if s.Drawing == nil {
		unavailable(w, "drawing")
		return
	}
	deleted, err := s.Drawing.DeleteLine(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !deleted {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "line not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleEvents lists all events, or those of one month with ?year=2024&month=3.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.Events == nil {
		unavailable(w, "event store")
		return
	}

	var (
		year  int
		month int
		err   error
	)
	q := r.URL.Query()
	if y := q.Get("year"); y != "" {
		if year, err = strconv.Atoi(y); err != nil {
			s.writeError(w, r, errors.Wrapf(domain.ErrInvalidArgument, "invalid year %q", y))
			return
		}
		if month, err = strconv.Atoi(q.Get("month")); err != nil {
			s.writeError(w, r, errors.Wrapf(domain.ErrInvalidArgument, "invalid month %q", q.Get("month")))
			return
		}
	}

	list, err := s.Events.Events(year, time.Month(month))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []domain.Event{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handlePutEvent(w http.ResponseWriter, r *http.Request) {
	if s.Events == nil {
		unavailable(w, "event store")
		return
	}
	var e domain.Event
	if err := decode(w, r, &e); err != nil {
		s.writeError(w, r, err)
		return
	}
	stored, err := s.Events.PutEvent(e)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stored)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	if s.Events == nil {
		unavailable(w, "event store")
		return
	}
	id, err := s.Events.DeleteEvent(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (s *Server) handleWindowCommand(w http.ResponseWriter, r *http.Request) {
	if s.Window == nil {
		unavailable(w, "window control")
		return
	}
	if err := s.Window.SendWindowCommand(r.PathValue("command")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleTheme(w http.ResponseWriter, r *http.Request) {
	if s.Theme == nil {
		unavailable(w, "theme")
		return
	}
	writeJSON(w, http.StatusOK, map[string]domain.Theme{"theme": s.Theme.Theme()})
}

func (s *Server) handleToggleTheme(w http.ResponseWriter, r *http.Request) {
	if s.Theme == nil {
		unavailable(w, "theme")
		return
	}
	writeJSON(w, http.StatusOK, map[string]domain.Theme{"theme": s.Theme.ToggleTheme()})
}
