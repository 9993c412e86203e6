package layout

import (
	"fmt"

	"github.com/go-drift/tether/pkg/graphics"
)

// Alignment is the horizontal placement of children in a StackLayout.
type Alignment string

const (
	AlignLeft     Alignment = "left"
	AlignCenterX  Alignment = "centerX"
	AlignStretchX Alignment = "stretchX"
	AlignRight    Alignment = "right"
)

// ParseAlignment validates an alignment name.
func ParseAlignment(s string) (Alignment, error) {
	switch a := Alignment(s); a {
	case AlignLeft, AlignCenterX, AlignStretchX, AlignRight:
		return a, nil
	}
	return "", fmt.Errorf("invalid alignment %q", s)
}

// StackLayout stacks children top to bottom, Spacing pixels apart. The
// offset of a child's top constraint is added to the spacing before it, and
// the offsets of left and right constraints inset it horizontally.
type StackLayout struct {
	Spacing   float64
	Alignment Alignment
}

// Arrange implements Layout.
func (l StackLayout) Arrange(children []Node, size graphics.Size, _ func(error)) []Placement {
	out := make([]Placement, len(children))
	y := 0.0
	prev := ""
	for i, c := range children {
		d := c.LayoutData()
		top, left, right := 0.0, 0.0, 0.0
		if d.Top != nil {
			top = d.Top.Offset()
		}
		if d.Left != nil {
			left = d.Left.Offset()
		}
		if d.Right != nil {
			right = d.Right.Offset()
		}
		if i > 0 {
			y += l.Spacing
		}
		y += top

		resolved := map[string]any{}
		if prev == "" {
			resolved["top"] = []any{0.0, top}
		} else {
			resolved["top"] = []any{prev, l.Spacing + top}
		}

		avail := size.Width - left - right
		var x, w float64
		switch l.Alignment {
		case AlignStretchX:
			x, w = left, max(avail, 0)
			resolved["left"] = []any{0.0, left}
			resolved["right"] = []any{0.0, right}
		default:
			if d.Width != nil {
				w = *d.Width
				resolved["width"] = w
			} else {
				w = c.IntrinsicSize(max(avail, 0)).Width
			}
			switch l.Alignment {
			case AlignCenterX:
				x = (size.Width-w)/2 + left - right
				resolved["centerX"] = left - right
			case AlignRight:
				x = size.Width - right - w
				resolved["right"] = []any{0.0, right}
			default:
				x = left
				resolved["left"] = []any{0.0, left}
			}
		}

		var h float64
		if d.Height != nil {
			h = *d.Height
			resolved["height"] = h
		} else {
			h = c.IntrinsicSize(w).Height
		}

		out[i] = Placement{Node: c, Bounds: graphics.RectFromLTWH(x, y, w, h), Resolved: resolved}
		y += h
		prev = c.CID()
	}
	return out
}
