package domain

// Style stroke/fill attributes of a frame primitive.
type Style struct {
	Color string    `json:"color"`
	Fill  string    `json:"fill,omitempty"`
	Width float64   `json:"width"`
	Dash  []float64 `json:"dash,omitempty"`
	Alpha float64   `json:"alpha"`
}

// PrimitiveKind discriminates Primitive values.
type PrimitiveKind string

const (
	PrimitiveSegment PrimitiveKind = "segment"
	PrimitiveRect    PrimitiveKind = "rect"
	PrimitiveLabel   PrimitiveKind = "label"
	PrimitiveHandle  PrimitiveKind = "handle"
)

// Primitive single drawable element in pixel space.
// Segment uses From/To, Rect uses From as one corner and To as the opposite one,
// Label uses From as anchor and Text, Handle uses From as center and Radius.
type Primitive struct {
	Kind   PrimitiveKind   `json:"kind"`
	LineID string          `json:"line_id,omitempty"`
	From   PixelCoordinate `json:"from"`
	To     PixelCoordinate `json:"to"`
	Text   string          `json:"text,omitempty"`
	Radius float64         `json:"radius,omitempty"`
	Style  Style           `json:"style"`
}

// CandleShape projected candlestick.
type CandleShape struct {
	Time    int64   `json:"time"`
	X       float64 `json:"x"`
	Open    float64 `json:"open"`
	High    float64 `json:"high"`
	Low     float64 `json:"low"`
	Close   float64 `json:"close"`
	Width   float64 `json:"width"`
	Bullish bool    `json:"bullish"`
}

// VolumeBar projected volume histogram bar.
type VolumeBar struct {
	X      float64 `json:"x"`
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
	Width  float64 `json:"width"`
	Color  string  `json:"color"`
}

// Polyline projected line series such as a moving average.
type Polyline struct {
	Name   string            `json:"name"`
	Color  string            `json:"color"`
	Points []PixelCoordinate `json:"points"`
}

// Frame everything needed to paint the chart once.
type Frame struct {
	Width  float64   `json:"width"`
	Height float64   `json:"height"`
	Series SeriesKey `json:"series"`
	Theme  Theme     `json:"theme"`
	// TextColor and GridColor follow the theme.
	TextColor string        `json:"text_color"`
	GridColor string        `json:"grid_color"`
	Candles   []CandleShape `json:"candles"`
	Volume    []VolumeBar   `json:"volume"`
	Averages  []Polyline    `json:"averages"`
	Drawings  []Primitive   `json:"drawings"`
}
