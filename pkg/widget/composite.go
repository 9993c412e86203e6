package widget

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"github.com/go-drift/tether/pkg/constraint"
	"github.com/go-drift/tether/pkg/errors"
	"github.com/go-drift/tether/pkg/graphics"
	"github.com/go-drift/tether/pkg/internal/convert"
	"github.com/go-drift/tether/pkg/layout"
)

// Composite is a widget containing other widgets, arranged by its layout.
type Composite struct {
	Base
	children []Widget
	layout   layout.Layout
}

// NewComposite creates a composite with the default constraint layout.
func NewComposite(t *Tree, props map[string]any) (*Composite, error) {
	c := &Composite{layout: layout.DefaultLayout}
	if err := c.initComposite(t, c, TypeComposite, "Composite", props); err != nil {
		return nil, err
	}
	return c, nil
}

// initComposite pulls the host-side "layout" property out of props before
// the native object is created.
func (c *Composite) initComposite(t *Tree, self Widget, typeTag, typeName string, props map[string]any) error {
	if raw, ok := props["layout"]; ok {
		l, err := LayoutFrom(raw)
		if err != nil {
			return err
		}
		c.layout = l
		props = maps.Clone(props)
		delete(props, "layout")
	}
	return c.init(t, self, typeTag, typeName, props)
}

// Children implements layout.Container.
func (c *Composite) Children() []layout.Node {
	out := make([]layout.Node, len(c.children))
	for i, w := range c.children {
		out[i] = w
	}
	return out
}

// Widgets returns the direct children matching selector, all of them when
// selector is empty.
func (c *Composite) Widgets(selector string) []Widget {
	if selector == "" {
		return slices.Clone(c.children)
	}
	var out []Widget
	for _, w := range c.children {
		if w.Matches(selector) {
			out = append(out, w)
		}
	}
	return out
}

// Find returns the descendants matching selector in depth-first order.
func (c *Composite) Find(selector string) []Widget {
	var out []Widget
	c.walk(func(w Widget) {
		if selector == "" || w.Matches(selector) {
			out = append(out, w)
		}
	})
	return out
}

func (c *Composite) walk(fn func(Widget)) {
	for _, w := range c.children {
		fn(w)
		if sub, ok := w.(interface{ composite() *Composite }); ok {
			sub.composite().walk(fn)
		}
	}
}

func (c *Composite) composite() *Composite { return c }

// Layout implements layout.Container. Disposed composites have none.
func (c *Composite) Layout() layout.Layout {
	if c.IsDisposed() {
		return nil
	}
	return c.layout
}

// SetLayout replaces the layout and queues the composite for layout.
func (c *Composite) SetLayout(l layout.Layout) {
	c.layout = l
	c.tree.queue.Add(c.self.(layout.Container))
}

// Depth implements layout.Container.
func (c *Composite) Depth() int {
	d := 0
	for p := c.parent; p != nil; p = p.parent {
		d++
	}
	return d
}

// IntrinsicSize is the extent of the children arranged at maxWidth.
func (c *Composite) IntrinsicSize(maxWidth float64) graphics.Size {
	if c.layout == nil || len(c.children) == 0 {
		return graphics.Size{}
	}
	var size graphics.Size
	for _, p := range c.layout.Arrange(c.Children(), graphics.Size{Width: max(maxWidth, 0)}, nil) {
		size.Width = max(size.Width, p.Bounds.Right)
		size.Height = max(size.Height, p.Bounds.Bottom)
	}
	return size
}

// Append adds widgets as the last children, detaching them from their
// previous parent. The native "parent" property of each child is set.
func (c *Composite) Append(widgets ...Widget) error {
	if c.IsDisposed() {
		return disposed("widget.Append", c.CID(), "")
	}
	for _, w := range widgets {
		switch {
		case w == nil:
			return &errors.TetherError{Op: "widget.Append", Kind: errors.KindInput, Target: c.CID(),
				Err: errors.New("Cannot append non-widget")}
		case w.base() == c.base():
			return &errors.TetherError{Op: "widget.Append", Kind: errors.KindMisuse, Target: c.CID(),
				Err: errors.New("Cannot append widget to itself")}
		case w.base().IsDisposed():
			return disposed("widget.Append", w.CID(), "")
		case c.hasAncestor(w):
			return &errors.TetherError{Op: "widget.Append", Kind: errors.KindMisuse, Target: c.CID(),
				Err: fmt.Errorf("Cannot append an ancestor %s", constraint.WidgetRef(w))}
		}
	}
	for _, w := range widgets {
		b := w.base()
		if b.parent != nil {
			b.parent.remove(w)
		}
		b.parent = c
		c.children = append(c.children, w)
		c.tree.ctx.Bridge().Set(w.CID(), "parent", c.CID())
	}
	c.dirty()
	return nil
}

func (c *Composite) hasAncestor(w Widget) bool {
	for p := c.parent; p != nil; p = p.parent {
		if p.base() == w.base() {
			return true
		}
	}
	return false
}

func (c *Composite) remove(w Widget) {
	i := slices.IndexFunc(c.children, func(x Widget) bool { return x.base() == w.base() })
	if i < 0 {
		return
	}
	c.children = slices.Delete(c.children, i, i+1)
	if !c.IsDisposed() {
		c.dirty()
	}
}

// dirty queues the composite and its parent: the children move and the
// composite's own intrinsic size may change.
func (c *Composite) dirty() {
	c.tree.queue.Add(c.self.(layout.Container))
	c.markParentDirty()
}

// Set handles the host-side "layout" property and defers everything else
// to Base.
func (c *Composite) Set(name string, value any) error {
	if name != "layout" {
		return c.Base.Set(name, value)
	}
	if c.IsDisposed() {
		return disposed("widget.Set", c.CID(), name)
	}
	l, err := LayoutFrom(value)
	if err != nil {
		return withTarget(err, c.CID())
	}
	c.SetLayout(l)
	return nil
}

// SetAll is like Base.SetAll and also accepts "layout".
func (c *Composite) SetAll(props map[string]any) error {
	raw, ok := props["layout"]
	if !ok {
		return c.Base.SetAll(props)
	}
	l, err := LayoutFrom(raw)
	if err != nil {
		return withTarget(err, c.CID())
	}
	rest := maps.Clone(props)
	delete(rest, "layout")
	if err := c.Base.SetAll(rest); err != nil {
		return err
	}
	c.SetLayout(l)
	return nil
}

// Get answers "layout" locally.
func (c *Composite) Get(name string) (any, error) {
	if name == "layout" && !c.IsDisposed() {
		return c.layout, nil
	}
	return c.Base.Get(name)
}

// Dispose disposes the children first, then the composite.
func (c *Composite) Dispose() {
	if c.IsDisposed() {
		return
	}
	for _, w := range slices.Clone(c.children) {
		w.Dispose()
	}
	c.children = nil
	c.Base.Dispose()
}

// Apply sets properties on the descendants matching each selector. Rules
// are applied by ascending specificity ("*", type, ".class", "#id") so more
// specific rules win; selectors are validated before anything is set.
func (c *Composite) Apply(rules map[string]map[string]any) error {
	if c.IsDisposed() {
		return disposed("widget.Apply", c.CID(), "")
	}
	selectors := slices.Collect(maps.Keys(rules))
	for _, sel := range selectors {
		if !constraint.IsSelector(sel) {
			return &errors.TetherError{Op: "widget.Apply", Kind: errors.KindReference, Target: c.CID(),
				Err: fmt.Errorf("Invalid selector %s", errors.ValueString(sel))}
		}
	}
	slices.SortFunc(selectors, func(a, b string) int {
		return cmp.Or(cmp.Compare(specificity(a), specificity(b)), cmp.Compare(a, b))
	})
	for _, sel := range selectors {
		for _, w := range c.Find(sel) {
			if err := w.SetAll(rules[sel]); err != nil {
				return err
			}
		}
	}
	return nil
}

func specificity(sel string) int {
	switch sel[0] {
	case '*':
		return 0
	case '.':
		return 2
	case '#':
		return 3
	}
	return 1
}

// LayoutFrom converts a layout value: a layout.Layout, nil (no layout),
// "constraint", "stack", or a map with "type" and, for stacks, "spacing"
// and "alignment".
func LayoutFrom(value any) (layout.Layout, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case layout.Layout:
		return v, nil
	case string:
		return LayoutFrom(map[string]any{"type": v})
	}
	m, ok := convert.ToMap(value)
	if !ok {
		return nil, invalidLayout(value)
	}
	switch m["type"] {
	case "constraint", "ConstraintLayout", nil:
		return layout.ConstraintLayout{}, nil
	case "stack", "StackLayout":
		l := layout.StackLayout{Alignment: layout.AlignLeft}
		if raw, ok := m["spacing"]; ok && raw != nil {
			s, ok := convert.ToFloat64(raw)
			if !ok {
				return nil, invalidLayout(value)
			}
			l.Spacing = s
		}
		if raw, ok := m["alignment"]; ok && raw != nil {
			s, _ := raw.(string)
			a, err := layout.ParseAlignment(s)
			if err != nil {
				return nil, &errors.TetherError{Op: "widget.LayoutFrom", Kind: errors.KindInput, Err: err}
			}
			l.Alignment = a
		}
		return l, nil
	}
	return nil, invalidLayout(value)
}

func invalidLayout(value any) error {
	return &errors.TetherError{
		Op:       "widget.LayoutFrom",
		Kind:     errors.KindInput,
		Property: "layout",
		Err:      fmt.Errorf("Invalid layout %s", errors.ValueString(value)),
	}
}
