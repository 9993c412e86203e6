package graphics

import "math"

// epsilon is the tolerance for floating-point comparisons.
const epsilon = 0.0001

// Size represents width and height dimensions in pixels.
type Size struct {
	Width  float64
	Height float64
}

// Rect represents a rectangle using left, top, right, bottom coordinates.
type Rect struct {
	Left   float64
	Top    float64
	Right  float64
	Bottom float64
}

// RectFromLTWH constructs a Rect from left, top, width, height values.
func RectFromLTWH(left, top, width, height float64) Rect {
	return Rect{
		Left:   left,
		Top:    top,
		Right:  left + width,
		Bottom: top + height,
	}
}

// Width returns the width of the rectangle.
func (r Rect) Width() float64 {
	return r.Right - r.Left
}

// Height returns the height of the rectangle.
func (r Rect) Height() float64 {
	return r.Bottom - r.Top
}

// Size returns the size of the rectangle.
func (r Rect) Size() Size {
	return Size{Width: r.Width(), Height: r.Height()}
}

// Equal reports whether both rectangles match within epsilon.
func (r Rect) Equal(other Rect) bool {
	return floatEqual(r.Left, other.Left) &&
		floatEqual(r.Top, other.Top) &&
		floatEqual(r.Right, other.Right) &&
		floatEqual(r.Bottom, other.Bottom)
}

// Bounds returns the wire form [left, top, width, height].
func (r Rect) Bounds() []any {
	return []any{r.Left, r.Top, r.Width(), r.Height()}
}

// RectFromBounds decodes the wire form [left, top, width, height].
func RectFromBounds(b []float64) (Rect, bool) {
	if len(b) != 4 {
		return Rect{}, false
	}
	for _, v := range b {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Rect{}, false
		}
	}
	return RectFromLTWH(b[0], b[1], b[2], b[3]), true
}

// floatEqual returns true if two float64 values are approximately equal.
func floatEqual(a, b float64) bool {
	return math.Abs(a-b) <= epsilon
}
