// Package drawing implements the chart annotation layer: tool state machine,
// hit testing, endpoint dragging and rendering into frame primitives.
package drawing

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/deskfolio/internal/domain"
	"go.uber.org/zap"
)

const (
	// HitTolerance is the max distance in pixels between a click and a line to select it.
	HitTolerance = 10
	// HandleRadius radius of the endpoint handles of the selected line.
	HandleRadius = 4

	defaultDoubleClickInterval = 500 * time.Millisecond
)

type mapper interface {
	DomainToPixel(p domain.DrawingPoint) (domain.PixelCoordinate, bool)
	PixelToDomain(px domain.PixelCoordinate) (domain.DrawingPoint, bool)
	Size() (float64, float64)
}

// Option configures the Engine.
type Option func(*Engine)

// WithDoubleClickInterval sets the max delay between two clicks on a line that deletes it.
func WithDoubleClickInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.doubleClick = d
	}
}

// WithIDGenerator replaces the line id generator.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		e.newID = fn
	}
}

// WithChangeHook registers fn to receive the committed lines after every change to them.
func WithChangeHook(fn func(lines []domain.DrawingLine)) Option {
	return func(e *Engine) {
		e.onChange = fn
	}
}

// Engine drawing tool state machine with two states: idle and drawing.
type Engine struct {
	mu     sync.Mutex
	logger *zap.Logger
	mapper mapper

	state    domain.DrawingState
	settings domain.DrawingSettings
	// temp holds the first point and, once the pointer moved, the tracked second point.
	temp []domain.DrawingPoint

	lastClickID string
	lastClickAt time.Time
	doubleClick time.Duration

	newID    func() string
	onChange func(lines []domain.DrawingLine)
}

// NewEngine creates an idle engine without lines.
func NewEngine(logger *zap.Logger, m mapper, opts ...Option) *Engine {
	e := &Engine{
		logger:      logger,
		mapper:      m,
		settings:    domain.DefaultDrawingSettings(),
		doubleClick: defaultDoubleClickInterval,
		newID: func() string {
			return fmt.Sprintf("line-%s", uuid.NewString())
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SelectTool switches the current tool. LineNone cancels an in-progress drawing.
// Any tool change clears the selection.
func (e *Engine) SelectTool(tool domain.LineType) error {
	if tool != domain.LineNone && !tool.IsValid() {
		return errors.Wrapf(domain.ErrInvalidArgument, "unknown drawing tool %q", tool)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.state.CurrentTool = tool
	e.state.IsDrawing = false
	e.temp = nil
	e.state.Drag = domain.DragState{}
	e.clearSelection()

	return nil
}

// StartDrawing begins a new line at px. It does nothing without a tool or when px cannot be converted.
func (e *Engine) StartDrawing(px domain.PixelCoordinate) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.startDrawing(px)
}

// UpdateDrawing moves the provisional second point.
func (e *Engine) UpdateDrawing(px domain.PixelCoordinate) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.updateDrawing(px)
}

// FinishDrawing commits the line. With fewer than two points nothing is committed.
// It returns the committed line, if any.
func (e *Engine) FinishDrawing() (domain.DrawingLine, bool) {
	e.mu.Lock()
	line, ok := e.finishDrawing()
	lines := e.linesLocked()
	e.mu.Unlock()

	if ok {
		e.changed(lines)
	}
	return line, ok
}

// PointerDown handles a click on the chart at time at.
// While drawing the click sets the final point and commits the line; idle with a tool it starts a
// new line; idle without a tool it selects the line under the pointer.
func (e *Engine) PointerDown(px domain.PixelCoordinate, at time.Time) {
	e.mu.Lock()

	switch {
	case e.state.IsDrawing:
		if !e.updateDrawing(px) {
			// the final point is off the chart; nothing valid to commit
			e.state.IsDrawing = false
			e.temp = nil
			e.mu.Unlock()
			e.logger.Debug("drawing discarded, final point could not be converted")
			return
		}
		_, committed := e.finishDrawing()
		lines := e.linesLocked()
		e.mu.Unlock()
		if committed {
			e.changed(lines)
		}
		return
	case e.state.CurrentTool != domain.LineNone:
		e.startDrawing(px)
		e.mu.Unlock()
		return
	}

	deleted := e.click(px, at)
	lines := e.linesLocked()
	e.mu.Unlock()

	if deleted {
		e.changed(lines)
	}
}

// PointerMove tracks the pointer: it moves the provisional point while drawing and the
// dragged endpoint while dragging.
func (e *Engine) PointerMove(px domain.PixelCoordinate) {
	e.mu.Lock()

	if e.state.IsDrawing {
		e.updateDrawing(px)
		e.mu.Unlock()
		return
	}

	if e.state.Drag.IsDragging {
		e.drag(px)
	}
	e.mu.Unlock()
}

// Click selects the nearest visible line within HitTolerance of px, or clears the selection.
// A second click on the same line within the double-click interval deletes it.
func (e *Engine) Click(px domain.PixelCoordinate, at time.Time) (string, bool) {
	e.mu.Lock()
	deleted := e.click(px, at)
	selected := e.state.SelectedLineID
	lines := e.linesLocked()
	e.mu.Unlock()

	if deleted {
		e.changed(lines)
	}
	return selected, deleted
}

// BeginDrag starts dragging an endpoint of the selected line if px is on one of its handles.
func (e *Engine) BeginDrag(px domain.PixelCoordinate) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.IsDrawing || e.state.SelectedLineID == "" || !e.settings.IsVisible {
		return false
	}

	idx := e.indexOf(e.state.SelectedLineID)
	if idx < 0 {
		return false
	}

	for i, p := range e.state.Lines[idx].Points {
		handle, ok := e.mapper.DomainToPixel(p)
		if !ok {
			continue
		}
		if distance(handle, px) <= HitTolerance {
			e.state.Drag = domain.DragState{
				IsDragging: true,
				LineID:     e.state.SelectedLineID,
				PointIndex: i,
				Start:      px,
			}
			return true
		}
	}

	return false
}

// EndDrag finishes an endpoint drag.
func (e *Engine) EndDrag() {
	e.mu.Lock()
	wasDragging := e.state.Drag.IsDragging
	e.state.Drag = domain.DragState{}
	lines := e.linesLocked()
	e.mu.Unlock()

	if wasDragging {
		e.changed(lines)
	}
}

// DeleteLine removes the line with the given id. The selection is cleared if it pointed at it.
func (e *Engine) DeleteLine(id string) bool {
	e.mu.Lock()
	ok := e.deleteLine(id)
	lines := e.linesLocked()
	e.mu.Unlock()

	if ok {
		e.changed(lines)
	}
	return ok
}

// ClearAllLines removes all lines and cancels an in-progress drawing.
func (e *Engine) ClearAllLines() {
	e.mu.Lock()
	e.state.Lines = nil
	e.state.SelectedLineID = ""
	e.state.IsDrawing = false
	e.state.Drag = domain.DragState{}
	e.temp = nil
	e.mu.Unlock()

	e.changed(nil)
}

// ToggleVisibility flips the visibility of the whole layer and returns the new value.
func (e *Engine) ToggleVisibility() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.settings.IsVisible = !e.settings.IsVisible
	return e.settings.IsVisible
}

// SettingsUpdate partial settings change; nil fields are kept.
type SettingsUpdate struct {
	Color     *string           `json:"color,omitempty"`
	LineWidth *float64          `json:"line_width,omitempty"`
	LineStyle *domain.LineStyle `json:"line_style,omitempty"`
}

// UpdateSettings changes the style used for lines committed from now on.
func (e *Engine) UpdateSettings(u SettingsUpdate) error {
	if u.LineWidth != nil && *u.LineWidth <= 0 {
		return errors.Wrapf(domain.ErrInvalidArgument, "line width must be positive, got %v", *u.LineWidth)
	}
	if u.LineStyle != nil && !u.LineStyle.IsValid() {
		return errors.Wrapf(domain.ErrInvalidArgument, "unknown line style %q", *u.LineStyle)
	}
	if u.Color != nil && *u.Color == "" {
		return errors.Wrap(domain.ErrInvalidArgument, "color must not be empty")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if u.Color != nil {
		e.settings.Color = *u.Color
	}
	if u.LineWidth != nil {
		e.settings.LineWidth = *u.LineWidth
	}
	if u.LineStyle != nil {
		e.settings.LineStyle = *u.LineStyle
	}
	return nil
}

// Settings returns the current settings.
func (e *Engine) Settings() domain.DrawingSettings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings
}

// State returns a copy of the engine state.
func (e *Engine) State() domain.DrawingState {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.state
	s.Lines = e.linesLocked()
	return s
}

// TempPoints returns a copy of the in-progress points.
func (e *Engine) TempPoints() []domain.DrawingPoint {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.DrawingPoint(nil), e.temp...)
}

// Lines returns a copy of the committed lines.
func (e *Engine) Lines() []domain.DrawingLine {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.linesLocked()
}

// Restore replaces the committed lines, e.g. after switching the series.
// The in-progress drawing and the selection are dropped. The change hook is not called.
func (e *Engine) Restore(lines []domain.DrawingLine) {
	restored := make([]domain.DrawingLine, 0, len(lines))
	for _, l := range lines {
		if !l.Type.IsValid() || len(l.Points) != 2 {
			e.logger.Warn("skip malformed drawing line", zap.String("id", l.ID), zap.String("type", string(l.Type)))
			continue
		}
		l = l.Clone()
		l.IsSelected = false
		restored = append(restored, l)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.state.Lines = restored
	e.state.SelectedLineID = ""
	e.state.IsDrawing = false
	e.state.Drag = domain.DragState{}
	e.temp = nil
}

func (e *Engine) startDrawing(px domain.PixelCoordinate) bool {
	if e.state.CurrentTool == domain.LineNone {
		return false
	}

	p, ok := e.mapper.PixelToDomain(px)
	if !ok {
		return false
	}

	e.state.IsDrawing = true
	e.temp = []domain.DrawingPoint{p}
	return true
}

func (e *Engine) updateDrawing(px domain.PixelCoordinate) bool {
	if !e.state.IsDrawing || len(e.temp) == 0 {
		return false
	}

	p, ok := e.mapper.PixelToDomain(px)
	if !ok {
		return false
	}

	if e.state.CurrentTool == domain.LineHorizontal {
		p.Price = e.temp[0].Price
	}
	e.temp = []domain.DrawingPoint{e.temp[0], p}
	return true
}

func (e *Engine) finishDrawing() (domain.DrawingLine, bool) {
	defer func() {
		e.state.IsDrawing = false
		e.temp = nil
	}()

	if !e.state.IsDrawing || e.state.CurrentTool == domain.LineNone || len(e.temp) < 2 {
		return domain.DrawingLine{}, false
	}

	line := domain.DrawingLine{
		ID:         e.newID(),
		Type:       e.state.CurrentTool,
		Points:     append([]domain.DrawingPoint(nil), e.temp...),
		Color:      e.settings.Color,
		LineWidth:  e.settings.LineWidth,
		LineStyle:  e.settings.LineStyle,
		IsSelected: false,
		IsVisible:  true,
	}
	e.state.Lines = append(e.state.Lines, line)

	e.logger.Debug("drawing line committed", zap.String("id", line.ID), zap.String("type", string(line.Type)))

	return line.Clone(), true
}

func (e *Engine) click(px domain.PixelCoordinate, at time.Time) bool {
	hit := e.hitTest(px)

	if hit != "" && hit == e.lastClickID && at.Sub(e.lastClickAt) <= e.doubleClick {
		e.lastClickID = ""
		return e.deleteLine(hit)
	}
	e.lastClickID, e.lastClickAt = hit, at

	e.clearSelection()
	if hit != "" {
		e.state.SelectedLineID = hit
		e.state.Lines[e.indexOf(hit)].IsSelected = true
	}
	return false
}

// hitTest returns the id of the nearest visible line within HitTolerance. On equal distance the
// line committed first wins. Lines that cannot be projected are skipped.
func (e *Engine) hitTest(px domain.PixelCoordinate) string {
	if !e.settings.IsVisible {
		return ""
	}

	best, bestDist := "", float64(HitTolerance)
	for _, line := range e.state.Lines {
		if !line.IsVisible || len(line.Points) < 2 {
			continue
		}
		a, okA := e.mapper.DomainToPixel(line.Points[0])
		b, okB := e.mapper.DomainToPixel(line.Points[1])
		if !okA || !okB {
			continue
		}

		d := DistanceToSegment(px, a, b)
		if d < bestDist || (best == "" && d <= bestDist) {
			best, bestDist = line.ID, d
		}
	}

	return best
}

func (e *Engine) drag(px domain.PixelCoordinate) {
	idx := e.indexOf(e.state.Drag.LineID)
	if idx < 0 {
		e.state.Drag = domain.DragState{}
		return
	}

	p, ok := e.mapper.PixelToDomain(px)
	if !ok {
		return
	}

	line := &e.state.Lines[idx]
	if line.Type == domain.LineHorizontal {
		// both endpoints share one price
		line.Points[0].Price = p.Price
		line.Points[1].Price = p.Price
		line.Points[e.state.Drag.PointIndex].Time = p.Time
		return
	}
	line.Points[e.state.Drag.PointIndex] = p
}

func (e *Engine) deleteLine(id string) bool {
	idx := e.indexOf(id)
	if idx < 0 {
		return false
	}

	e.state.Lines = append(e.state.Lines[:idx], e.state.Lines[idx+1:]...)
	if e.state.SelectedLineID == id {
		e.state.SelectedLineID = ""
	}
	if e.state.Drag.LineID == id {
		e.state.Drag = domain.DragState{}
	}
	return true
}

func (e *Engine) clearSelection() {
	e.state.SelectedLineID = ""
	for i := range e.state.Lines {
		e.state.Lines[i].IsSelected = false
	}
}

func (e *Engine) indexOf(id string) int {
	for i, l := range e.state.Lines {
		if l.ID == id {
			return i
		}
	}
	return -1
}

func (e *Engine) linesLocked() []domain.DrawingLine {
	if len(e.state.Lines) == 0 {
		return nil
	}
	out := make([]domain.DrawingLine, len(e.state.Lines))
	for i, l := range e.state.Lines {
		out[i] = l.Clone()
	}
	return out
}

func (e *Engine) changed(lines []domain.DrawingLine) {
	if e.onChange != nil {
		e.onChange(lines)
	}
}
