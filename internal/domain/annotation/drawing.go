package annotation

// Point is a 2D coordinate in frame space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an axis-aligned region in frame space.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Tool selects the stroke style of a freehand path.
type Tool string

const (
	ToolPen         Tool = "pen"
	ToolHighlighter Tool = "highlighter"
	ToolArrow       Tool = "arrow"
)

// ShapeKind selects a drawing shape.
type ShapeKind string

const (
	ShapeRectangle ShapeKind = "rectangle"
	ShapeCircle    ShapeKind = "circle"
	ShapeArrow     ShapeKind = "arrow"
	ShapeText      ShapeKind = "text"
)

// DrawingPath is a committed freehand stroke.
type DrawingPath struct {
	Points []Point `json:"points"`
	Tool   Tool    `json:"tool"`
	Width  float64 `json:"width"`
	Color  string  `json:"color,omitempty"`
}

// DrawingShape is a committed geometric shape or text box.
type DrawingShape struct {
	Kind  ShapeKind `json:"kind"`
	Start Point     `json:"start"`
	End   *Point    `json:"end,omitempty"`
	Text  *string   `json:"text,omitempty"`
	Color string    `json:"color,omitempty"`
}

// NeedsEnd reports whether the shape kind is defined by two points.
func (k ShapeKind) NeedsEnd() bool {
	switch k {
	case ShapeRectangle, ShapeCircle, ShapeArrow:
		return true
	default:
		return false
	}
}
