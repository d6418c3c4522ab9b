package chart

import "github.com/vadiminshakov/deskfolio/internal/domain"

// Scales read access to the chart scales.
type Scales interface {
	TimeToX(t float64) (float64, bool)
	XToTime(x float64) (float64, bool)
	PriceToY(p float64) (float64, bool)
	YToPrice(y float64) (float64, bool)
	Size() (float64, float64)
}

// Mapper converts between chart domain space and pixel space.
// It keeps no state of its own: every call reads the scales again, so results
// follow pans, zooms and data updates immediately.
type Mapper struct {
	scales Scales
}

// NewMapper creates a mapper over the given scales.
func NewMapper(scales Scales) *Mapper {
	return &Mapper{scales: scales}
}

// DomainToPixel projects a (time, price) point. ok is false when the chart has no usable scale
// or the point cannot be projected.
func (m *Mapper) DomainToPixel(p domain.DrawingPoint) (domain.PixelCoordinate, bool) {
	x, ok := m.scales.TimeToX(p.Time)
	if !ok {
		return domain.PixelCoordinate{}, false
	}
	y, ok := m.scales.PriceToY(p.Price)
	if !ok {
		return domain.PixelCoordinate{}, false
	}
	return domain.PixelCoordinate{X: x, Y: y}, true
}

// PixelToDomain is the inverse of DomainToPixel.
func (m *Mapper) PixelToDomain(px domain.PixelCoordinate) (domain.DrawingPoint, bool) {
	t, ok := m.scales.XToTime(px.X)
	if !ok {
		return domain.DrawingPoint{}, false
	}
	price, ok := m.scales.YToPrice(px.Y)
	if !ok {
		return domain.DrawingPoint{}, false
	}
	return domain.DrawingPoint{Time: t, Price: price}, true
}

// Size returns the pixel dimensions of the chart.
func (m *Mapper) Size() (float64, float64) {
	return m.scales.Size()
}
