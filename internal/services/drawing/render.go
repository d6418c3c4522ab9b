package drawing

import (
	"fmt"

	"github.com/vadiminshakov/deskfolio/internal/domain"
)

const (
	tempLineAlpha  = 0.7
	fibonacciAlpha = 0.6
	handleFill     = "#ffffff"
	handleStroke   = "#000000"
	labelOffset    = 5
)

// DashPattern returns the dash pattern for a line style, nil for solid lines.
func DashPattern(s domain.LineStyle) []float64 {
	switch s {
	case domain.LineStyleDashed:
		return []float64{5, 5}
	case domain.LineStyleDotted:
		return []float64{2, 2}
	}
	return nil
}

// Primitives renders the committed lines and the in-progress line.
// Every point is projected through the mapper at call time; lines that cannot be projected
// are skipped for this frame. A hidden layer renders nothing.
func (e *Engine) Primitives() []domain.Primitive {
	e.mu.Lock()
	if !e.settings.IsVisible {
		e.mu.Unlock()
		return nil
	}

	lines := e.linesLocked()
	selected := e.state.SelectedLineID
	var temp *domain.DrawingLine
	if e.state.IsDrawing && len(e.temp) == 2 {
		temp = &domain.DrawingLine{
			Type:      e.state.CurrentTool,
			Points:    append([]domain.DrawingPoint(nil), e.temp...),
			Color:     e.settings.Color,
			LineWidth: e.settings.LineWidth,
			LineStyle: e.settings.LineStyle,
		}
	}
	e.mu.Unlock()

	width, height := e.mapper.Size()

	var out []domain.Primitive
	for _, line := range lines {
		if !line.IsVisible {
			continue
		}
		out = append(out, e.renderLine(line, 1, width, height, line.ID == selected)...)
	}
	if temp != nil {
		out = append(out, e.renderLine(*temp, tempLineAlpha, width, height, false)...)
	}

	return out
}

func (e *Engine) renderLine(line domain.DrawingLine, alpha, width, height float64, selected bool) []domain.Primitive {
	if len(line.Points) < 2 {
		return nil
	}
	start, ok := e.mapper.DomainToPixel(line.Points[0])
	if !ok {
		return nil
	}
	end, ok := e.mapper.DomainToPixel(line.Points[1])
	if !ok {
		return nil
	}

	style := domain.Style{
		Color: line.Color,
		Width: line.LineWidth,
		Dash:  DashPattern(line.LineStyle),
		Alpha: alpha,
	}

	var out []domain.Primitive
	switch line.Type {
	case domain.LineTrendline:
		out = append(out, segment(line.ID, start, end, style))
	case domain.LineHorizontal:
		out = append(out, segment(line.ID,
			domain.PixelCoordinate{X: 0, Y: start.Y},
			domain.PixelCoordinate{X: width, Y: start.Y}, style))
	case domain.LineVertical:
		out = append(out, segment(line.ID,
			domain.PixelCoordinate{X: start.X, Y: 0},
			domain.PixelCoordinate{X: start.X, Y: height}, style))
	case domain.LineRectangle:
		out = append(out, domain.Primitive{
			Kind:   domain.PrimitiveRect,
			LineID: line.ID,
			From:   start,
			To:     end,
			Style:  style,
		})
	case domain.LineFibonacci:
		fibStyle := style
		fibStyle.Alpha = fibonacciAlpha
		for _, level := range FibonacciLevels(line.Points[0].Price, line.Points[1].Price) {
			at, ok := e.mapper.DomainToPixel(domain.DrawingPoint{Time: line.Points[0].Time, Price: level.Price})
			if !ok {
				continue
			}
			out = append(out,
				segment(line.ID,
					domain.PixelCoordinate{X: 0, Y: at.Y},
					domain.PixelCoordinate{X: width, Y: at.Y}, fibStyle),
				domain.Primitive{
					Kind:   domain.PrimitiveLabel,
					LineID: line.ID,
					From:   domain.PixelCoordinate{X: labelOffset, Y: at.Y - labelOffset},
					Text:   fmt.Sprintf("%.1f%%", level.Ratio*100),
					Style:  fibStyle,
				})
		}
	}

	if selected {
		for _, c := range []domain.PixelCoordinate{start, end} {
			out = append(out, domain.Primitive{
				Kind:   domain.PrimitiveHandle,
				LineID: line.ID,
				From:   c,
				Radius: HandleRadius,
				Style:  domain.Style{Color: handleStroke, Fill: handleFill, Width: 1, Alpha: 1},
			})
		}
	}

	return out
}

func segment(id string, from, to domain.PixelCoordinate, style domain.Style) domain.Primitive {
	return domain.Primitive{
		Kind:   domain.PrimitiveSegment,
		LineID: id,
		From:   from,
		To:     to,
		Style:  style,
	}
}
