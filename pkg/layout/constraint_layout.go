package layout

import (
	"fmt"

	"github.com/go-drift/tether/pkg/constraint"
	"github.com/go-drift/tether/pkg/errors"
	"github.com/go-drift/tether/pkg/graphics"
)

// ConstraintLayout positions each child from its layout data. Edges are
// anchored to a percentage of the parent or to an edge of a sibling;
// references to siblings are resolved against child order.
//
// Per axis, centerX (centerY, baseline) takes precedence over the edges,
// and two edges take precedence over a fixed size. A missing extent falls
// back to the intrinsic size of the child. Unresolvable and circular sibling
// references are reported and anchored to the parent edge instead.
type ConstraintLayout struct{}

// DefaultLayout is the layout used by composites unless configured otherwise.
var DefaultLayout Layout = ConstraintLayout{}

// BaselineNode is implemented by nodes with a text baseline. The value is
// the distance from the top of a box of the given height to the baseline.
type BaselineNode interface {
	Baseline(height float64) float64
}

type span struct {
	start, size float64
}

type visit uint8

const (
	unvisited visit = iota
	visiting
	visited
)

type arranger struct {
	children []Node
	data     []Data
	size     graphics.Size
	report   func(error)
	index    map[string]int

	xs, ys         []span
	xstate, ystate []visit
	resolved       []map[string]any
}

// Arrange implements Layout.
func (ConstraintLayout) Arrange(children []Node, size graphics.Size, report func(error)) []Placement {
	n := len(children)
	a := &arranger{
		children: children,
		data:     make([]Data, n),
		size:     size,
		report:   report,
		index:    make(map[string]int, n),
		xs:       make([]span, n),
		ys:       make([]span, n),
		xstate:   make([]visit, n),
		ystate:   make([]visit, n),
		resolved: make([]map[string]any, n),
	}
	for i, c := range children {
		a.data[i] = c.LayoutData()
		a.index[c.CID()] = i
		a.resolved[i] = make(map[string]any)
	}
	for i := range children {
		a.computeX(i)
	}
	for i := range children {
		a.computeY(i)
	}

	out := make([]Placement, n)
	for i, c := range children {
		if d := a.data[i]; d.Width != nil {
			a.resolved[i]["width"] = *d.Width
		}
		if d := a.data[i]; d.Height != nil {
			a.resolved[i]["height"] = *d.Height
		}
		out[i] = Placement{
			Node:     c,
			Bounds:   graphics.RectFromLTWH(a.xs[i].start, a.ys[i].start, a.xs[i].size, a.ys[i].size),
			Resolved: a.resolved[i],
		}
	}
	return out
}

// sibling resolves the reference of c for child i. It returns the index of
// the referenced sibling, already computed on the axis, or -1 and the
// percentage of the parent to anchor to.
func (a *arranger) sibling(i int, attr string, c *constraint.Constraint, state []visit, compute func(int)) (int, float64) {
	ref := c.Reference()
	j := -1
	switch ref.Kind() {
	case constraint.RefPercent:
		p, _ := ref.Percent()
		return -1, p.Value()
	case constraint.RefPrev:
		if i == 0 {
			return -1, 0
		}
		j = i - 1
	case constraint.RefNext:
		if i == len(a.children)-1 {
			return -1, 0
		}
		j = i + 1
	case constraint.RefWidget:
		w, _ := ref.Widget()
		if w != nil {
			if k, ok := a.index[w.CID()]; ok && k != i {
				j = k
			}
		}
	case constraint.RefSelector:
		sel, _ := ref.Selector()
		for k, child := range a.children {
			if k != i && child.Matches(sel) {
				j = k
				break
			}
		}
	}
	if j < 0 {
		a.fail(i, attr, "Could not resolve %s reference %s of %s", attr, ref, constraint.WidgetRef(a.children[i]))
		return -1, 0
	}
	if state[j] == visiting {
		a.fail(i, attr, "Circular %s reference %s of %s", attr, ref, constraint.WidgetRef(a.children[i]))
		return -1, 0
	}
	compute(j)
	return j, 0
}

func (a *arranger) fail(i int, attr, format string, args ...any) {
	if a.report == nil {
		return
	}
	a.report(&errors.TetherError{
		Op:       "layout.Arrange",
		Kind:     errors.KindLayout,
		Target:   a.children[i].CID(),
		Property: attr,
		Err:      fmt.Errorf(format, args...),
	})
}

// edge resolves a leading (left, top) or trailing (right, bottom) edge on
// an axis of the given extent and records the resolved wire form.
func (a *arranger) edge(i int, attr string, c *constraint.Constraint, trailing bool, extent float64,
	spans []span, state []visit, compute func(int)) (float64, bool) {
	if c == nil {
		return 0, false
	}
	off := c.Offset()
	j, pct := a.sibling(i, attr, c, state, compute)
	if j < 0 {
		a.resolved[i][attr] = []any{pct, off}
		if trailing {
			return extent - pct/100*extent - off, true
		}
		return pct/100*extent + off, true
	}
	a.resolved[i][attr] = []any{a.children[j].CID(), off}
	if trailing {
		return spans[j].start - off, true
	}
	return spans[j].start + spans[j].size + off, true
}

func (a *arranger) computeX(i int) {
	if a.xstate[i] != unvisited {
		return
	}
	a.xstate[i] = visiting
	defer func() { a.xstate[i] = visited }()

	d := a.data[i]
	w := a.size.Width
	left, hasLeft := a.edge(i, "left", d.Left, false, w, a.xs, a.xstate, a.computeX)
	right, hasRight := a.edge(i, "right", d.Right, true, w, a.xs, a.xstate, a.computeX)

	width := func(avail float64) float64 {
		if d.Width != nil {
			return *d.Width
		}
		return a.children[i].IntrinsicSize(max(avail, 0)).Width
	}

	var s span
	switch {
	case d.CenterX != nil:
		s.size = width(w)
		s.start = (w-s.size)/2 + d.CenterX.Offset()
		a.resolved[i]["centerX"] = d.CenterX.Offset()
		delete(a.resolved[i], "left")
		delete(a.resolved[i], "right")
	case hasLeft && hasRight:
		s.start = left
		s.size = max(right-left, 0)
	case hasLeft:
		s.start = left
		s.size = width(w - left)
	case hasRight:
		s.size = width(right)
		s.start = right - s.size
	default:
		s.size = width(w)
	}
	a.xs[i] = s
}

func (a *arranger) computeY(i int) {
	if a.ystate[i] != unvisited {
		return
	}
	a.ystate[i] = visiting
	defer func() { a.ystate[i] = visited }()

	d := a.data[i]
	h := a.size.Height
	top, hasTop := a.edge(i, "top", d.Top, false, h, a.ys, a.ystate, a.computeY)
	bottom, hasBottom := a.edge(i, "bottom", d.Bottom, true, h, a.ys, a.ystate, a.computeY)

	height := func() float64 {
		if d.Height != nil {
			return *d.Height
		}
		return a.children[i].IntrinsicSize(a.xs[i].size).Height
	}

	var s span
	switch {
	case d.CenterY != nil:
		s.size = height()
		s.start = (h-s.size)/2 + d.CenterY.Offset()
		a.resolved[i]["centerY"] = d.CenterY.Offset()
		delete(a.resolved[i], "top")
		delete(a.resolved[i], "bottom")
	case d.Baseline != nil:
		s.size = height()
		s.start = a.baseline(i, d.Baseline, s.size, h)
		delete(a.resolved[i], "top")
		delete(a.resolved[i], "bottom")
	case hasTop && hasBottom:
		s.start = top
		s.size = max(bottom-top, 0)
	case hasTop:
		s.start = top
		s.size = height()
	case hasBottom:
		s.size = height()
		s.start = bottom - s.size
	default:
		s.size = height()
	}
	a.ys[i] = s
}

// baseline aligns the baseline of child i with that of the referenced
// sibling. A parent anchor behaves like top.
func (a *arranger) baseline(i int, c *constraint.Constraint, height, extent float64) float64 {
	off := c.Offset()
	j, pct := a.sibling(i, "baseline", c, a.ystate, a.computeY)
	if j < 0 {
		a.resolved[i]["baseline"] = []any{pct, off}
		return pct/100*extent + off
	}
	a.resolved[i]["baseline"] = []any{a.children[j].CID(), off}
	return a.ys[j].start + baselineOf(a.children[j], a.ys[j].size) - baselineOf(a.children[i], height) + off
}

func baselineOf(n Node, height float64) float64 {
	if b, ok := n.(BaselineNode); ok {
		return b.Baseline(height)
	}
	return height
}
