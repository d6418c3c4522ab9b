package domain

// LineType drawing tool / shape kind.
type LineType string

const (
	// LineNone means no tool is selected.
	LineNone       LineType = ""
	LineTrendline  LineType = "trendline"
	LineHorizontal LineType = "horizontal"
	LineVertical   LineType = "vertical"
	LineRectangle  LineType = "rectangle"
	LineFibonacci  LineType = "fibonacci"
)

// IsValid checks if the LineType is a drawable shape.
func (t LineType) IsValid() bool {
	switch t {
	case LineTrendline, LineHorizontal, LineVertical, LineRectangle, LineFibonacci:
		return true
	}
	return false
}

// LineStyle stroke pattern.
type LineStyle string

const (
	LineStyleSolid  LineStyle = "solid"
	LineStyleDashed LineStyle = "dashed"
	LineStyleDotted LineStyle = "dotted"
)

// IsValid checks if the LineStyle value is valid.
func (s LineStyle) IsValid() bool {
	return s == LineStyleSolid || s == LineStyleDashed || s == LineStyleDotted
}

// DrawingPoint point in chart domain space (epoch seconds, price).
type DrawingPoint struct {
	Time  float64 `json:"time"`
	Price float64 `json:"price"`
}

// PixelCoordinate point in chart pixel space.
type PixelCoordinate struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DrawingLine committed annotation.
type DrawingLine struct {
	ID         string         `json:"id"`
	Type       LineType       `json:"type"`
	Points     []DrawingPoint `json:"points"`
	Color      string         `json:"color"`
	LineWidth  float64        `json:"line_width"`
	LineStyle  LineStyle      `json:"line_style"`
	IsSelected bool           `json:"is_selected"`
	IsVisible  bool           `json:"is_visible"`
}

// Clone returns a deep copy of the line.
func (l DrawingLine) Clone() DrawingLine {
	l.Points = append([]DrawingPoint(nil), l.Points...)
	return l
}

// DrawingSettings styling applied to new lines plus layer visibility.
type DrawingSettings struct {
	Color     string    `json:"color"`
	LineWidth float64   `json:"line_width"`
	LineStyle LineStyle `json:"line_style"`
	IsVisible bool      `json:"is_visible"`
}

// DefaultDrawingSettings mirrors the toolbar defaults.
func DefaultDrawingSettings() DrawingSettings {
	return DrawingSettings{
		Color:     "#3b82f6",
		LineWidth: 2,
		LineStyle: LineStyleSolid,
		IsVisible: true,
	}
}

// DragState endpoint drag in progress.
type DragState struct {
	IsDragging bool            `json:"is_dragging"`
	LineID     string          `json:"line_id,omitempty"`
	PointIndex int             `json:"point_index"`
	Start      PixelCoordinate `json:"start"`
}

// DrawingState snapshot of the drawing engine.
type DrawingState struct {
	IsDrawing      bool          `json:"is_drawing"`
	CurrentTool    LineType      `json:"current_tool"`
	Lines          []DrawingLine `json:"lines"`
	SelectedLineID string        `json:"selected_line_id,omitempty"`
	Drag           DragState     `json:"drag"`
}
