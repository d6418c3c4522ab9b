package drawing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/deskfolio/internal/domain"
)

func TestFibonacciLevels(t *testing.T) {
	levels := FibonacciLevels(100, 200)
	require.Len(t, levels, 7)

	assert.Equal(t, 100.0, levels[0].Price)
	assert.InDelta(t, 150.0, levels[3].Price, 1e-9)
	assert.Equal(t, 0.5, levels[3].Ratio)
	assert.Equal(t, 200.0, levels[6].Price)
}

func TestDistanceToSegment(t *testing.T) {
	a, b := px(0, 0), px(10, 0)
	assert.InDelta(t, 5.0, DistanceToSegment(px(5, 5), a, b), 1e-9)
	assert.InDelta(t, 5.0, DistanceToSegment(px(-3, 4), a, b), 1e-9)
	assert.InDelta(t, 5.0, DistanceToSegment(px(3, 4), a, a), 1e-9)
}

func TestDashPattern(t *testing.T) {
	assert.Nil(t, DashPattern(domain.LineStyleSolid))
	assert.Equal(t, []float64{5, 5}, DashPattern(domain.LineStyleDashed))
	assert.Equal(t, []float64{2, 2}, DashPattern(domain.LineStyleDotted))
}

func TestPrimitives_PerType(t *testing.T) {
	tests := []struct {
		tool     domain.LineType
		wantKind domain.PrimitiveKind
		from, to domain.PixelCoordinate
	}{
		{domain.LineTrendline, domain.PrimitiveSegment, px(10, 20), px(30, 40)},
		{domain.LineHorizontal, domain.PrimitiveSegment, px(0, 20), px(1000, 20)},
		{domain.LineVertical, domain.PrimitiveSegment, px(10, 0), px(10, 1000)},
		{domain.LineRectangle, domain.PrimitiveRect, px(10, 20), px(30, 40)},
	}

	for _, tt := range tests {
		t.Run(string(tt.tool), func(t *testing.T) {
			e, _ := newTestEngine(t)
			drawLine(t, e, tt.tool, px(10, 20), px(30, 40))

			prims := e.Primitives()
			require.Len(t, prims, 1)
			assert.Equal(t, tt.wantKind, prims[0].Kind)
			assert.Equal(t, tt.from, prims[0].From)
			assert.Equal(t, tt.to, prims[0].To)
			assert.Equal(t, 1.0, prims[0].Style.Alpha)
		})
	}
}

func TestPrimitives_Fibonacci(t *testing.T) {
	e, _ := newTestEngine(t)
	drawLine(t, e, domain.LineFibonacci, px(10, 900), px(50, 800))

	prims := e.Primitives()
	require.Len(t, prims, 14)

	var labels []string
	for _, p := range prims {
		assert.Equal(t, 0.6, p.Style.Alpha)
		if p.Kind == domain.PrimitiveLabel {
			labels = append(labels, p.Text)
		}
	}
	assert.Equal(t, []string{"0.0%", "23.6%", "38.2%", "50.0%", "61.8%", "78.6%", "100.0%"}, labels)

	// 50% level between price 100 and 200
	assert.Equal(t, domain.PrimitiveSegment, prims[6].Kind)
	assert.InDelta(t, 850.0, prims[6].From.Y, 1e-9)
	assert.InDelta(t, 845.0, prims[7].From.Y, 1e-9)
}

func TestPrimitives_TempLineAndHandles(t *testing.T) {
	e, _ := newTestEngine(t)
	drawLine(t, e, domain.LineTrendline, px(0, 500), px(100, 500))
	require.NoError(t, e.SelectTool(domain.LineNone))
	e.Click(px(50, 500), time.Now())

	prims := e.Primitives()
	require.Len(t, prims, 3)
	assert.Equal(t, domain.PrimitiveHandle, prims[1].Kind)
	assert.Equal(t, float64(HandleRadius), prims[1].Radius)
	assert.Equal(t, px(100, 500), prims[2].From)

	require.NoError(t, e.SelectTool(domain.LineTrendline))
	require.True(t, e.StartDrawing(px(1, 1)))
	require.True(t, e.UpdateDrawing(px(2, 2)))

	prims = e.Primitives()
	require.Len(t, prims, 2)
	assert.Equal(t, 0.7, prims[1].Style.Alpha)
	assert.Empty(t, prims[1].LineID)
}

func TestPrimitives_SkipsMisses(t *testing.T) {
	e, m := newTestEngine(t)
	drawLine(t, e, domain.LineTrendline, px(0, 500), px(100, 500))

	m.miss = true
	assert.Empty(t, e.Primitives())
}
