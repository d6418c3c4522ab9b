package drawing

import (
	"math"

	"github.com/vadiminshakov/deskfolio/internal/domain"
)

// FibonacciRatios retracement levels drawn by the fibonacci tool.
var FibonacciRatios = []float64{0, 0.236, 0.382, 0.5, 0.618, 0.786, 1}

// FibonacciLevel single retracement level.
type FibonacciLevel struct {
	Ratio float64
	Price float64
}

// FibonacciLevels returns p0 + (p1-p0)*ratio for every ratio.
func FibonacciLevels(p0, p1 float64) []FibonacciLevel {
	levels := make([]FibonacciLevel, len(FibonacciRatios))
	for i, r := range FibonacciRatios {
		levels[i] = FibonacciLevel{Ratio: r, Price: p0 + (p1-p0)*r}
	}
	return levels
}

// DistanceToSegment returns the distance from p to the segment [a, b].
func DistanceToSegment(p, a, b domain.PixelCoordinate) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return math.Hypot(p.X-a.X, p.Y-a.Y)
	}

	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / lenSq
	t = math.Max(0, math.Min(1, t))

	return math.Hypot(p.X-(a.X+t*dx), p.Y-(a.Y+t*dy))
}

func distance(a, b domain.PixelCoordinate) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
