package models

// Point is a canvas coordinate
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ShapeType enumerates the drawable shape kinds
type ShapeType string

const (
	ShapeRectangle ShapeType = "rectangle"
	ShapeCircle    ShapeType = "circle"
	ShapeLine      ShapeType = "line"
	ShapeArrow     ShapeType = "arrow"
	ShapeText      ShapeType = "text"
	ShapeFreehand  ShapeType = "freehand"
)

// ShapeStyle carries the visual attributes of a stroke
type ShapeStyle struct {
	StrokeColor string  `json:"strokeColor"`
	FillColor   string  `json:"fillColor"`
	StrokeWidth float64 `json:"strokeWidth"`
	Opacity     float64 `json:"opacity"`
}

// Stroke is one discrete or in-progress drawable shape.
// A stroke is immutable once broadcast; a later stroke with the same id
// is a deliberate update (an in-progress drag), not a duplicate.
type Stroke struct {
	ID         string     `json:"id"`
	UserID     string     `json:"userId"`
	Type       ShapeType  `json:"type"`
	StartPoint Point      `json:"startPoint"`
	EndPoint   Point      `json:"endPoint"`
	Points     []Point    `json:"points,omitempty"` // freehand only
	Text       string     `json:"text,omitempty"`   // text only
	Style      ShapeStyle `json:"style"`
	IsSelected bool       `json:"isSelected"`
}
