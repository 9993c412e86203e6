// Package widget provides the widget tree on top of native objects: widgets
// with ids, classes and layout data, composites that arrange children with
// a layout, the content view at the root, and text widgets that size
// themselves from their text.
//
// Layout related properties (layoutData and its attributes, id and class)
// live on the host. Native code only ever receives resolved layout data,
// produced by the layout queue right before the bridge flushes.
package widget

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/go-drift/tether/pkg/constraint"
	"github.com/go-drift/tether/pkg/errors"
	"github.com/go-drift/tether/pkg/graphics"
	"github.com/go-drift/tether/pkg/internal/convert"
	"github.com/go-drift/tether/pkg/layout"
	"github.com/go-drift/tether/pkg/object"
)

// Widget is implemented by every widget of this package.
type Widget interface {
	layout.Node
	Object() *object.NativeObject
	Parent() *Composite
	Set(name string, value any) error
	SetAll(props map[string]any) error
	Get(name string) (any, error)
	Dispose()
	base() *Base
}

// syncer is implemented by widgets that mirror native properties on the
// host, such as the text of a TextView.
type syncer interface {
	sync(name string, value any)
}

// Base holds what all widgets share. It is embedded by concrete widgets.
type Base struct {
	*object.NativeObject
	tree     *Tree
	self     Widget
	typeName string

	id      string
	classes []string
	data    layout.Data
	bounds  graphics.Rect
	parent  *Composite
}

// hostProps are handled by Base rather than sent to native code.
var hostProps = map[string]bool{"id": true, "class": true, "layoutData": true}

func isHostProp(name string) bool {
	return hostProps[name] || slices.Contains(layout.Attributes, name)
}

// hostChange is a validated host property assignment.
type hostChange struct {
	name  string
	id    *string
	class []string
	data  *layout.Data
}

func parseHost(name string, value any) (hostChange, error) {
	c := hostChange{name: name}
	switch name {
	case "id":
		s, ok := value.(string)
		if !ok && value != nil {
			return c, invalidHost(name, value)
		}
		c.id = &s
	case "class":
		switch v := value.(type) {
		case nil:
			c.class = []string{}
		case string:
			c.class = strings.Fields(v)
		default:
			items, ok := convert.ToSlice(value)
			if !ok {
				return c, invalidHost(name, value)
			}
			c.class = []string{}
			for _, item := range items {
				s, ok := item.(string)
				if !ok {
					return c, invalidHost(name, value)
				}
				c.class = append(c.class, s)
			}
		}
	case "layoutData":
		d, err := layout.DataFrom(value)
		if err != nil {
			return c, err
		}
		c.data = &d
	default:
		d, err := layout.DataFrom(map[string]any{name: value})
		if err != nil {
			return c, err
		}
		c.data = &d
	}
	return c, nil
}

func invalidHost(name string, value any) error {
	return &errors.TetherError{
		Op:       "widget.Set",
		Kind:     errors.KindInput,
		Property: name,
		Err:      fmt.Errorf("Invalid value for property %q: %s", name, errors.ValueString(value)),
	}
}

// splitProps separates host properties from native ones and validates the
// host ones.
func splitProps(props map[string]any) (map[string]any, []hostChange, error) {
	native := make(map[string]any, len(props))
	var host []hostChange
	for _, name := range slices.Sorted(maps.Keys(props)) {
		if !isHostProp(name) {
			native[name] = props[name]
			continue
		}
		c, err := parseHost(name, props[name])
		if err != nil {
			return nil, nil, err
		}
		host = append(host, c)
	}
	// layoutData replaces, attributes merge; apply the replacement first.
	slices.SortStableFunc(host, func(a, b hostChange) int {
		return boolRank(b.name == "layoutData") - boolRank(a.name == "layoutData")
	})
	return native, host, nil
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

// init creates the native object for a widget and applies initial
// properties. Nothing is queued when validation fails.
func (b *Base) init(t *Tree, self Widget, typeTag, typeName string, props map[string]any) error {
	native, host, err := splitProps(props)
	if err != nil {
		return err
	}
	o, err := object.New(t.ctx, typeTag, native)
	if err != nil {
		return err
	}
	b.NativeObject = o
	b.tree = t
	b.self = self
	b.typeName = typeName
	o.SetOwner(self)
	for _, c := range host {
		b.applyHost(c)
	}
	if s, ok := self.(syncer); ok {
		for name, v := range native {
			s.sync(name, v)
		}
	}
	return nil
}

func (b *Base) base() *Base { return b }

// Object returns the underlying native object.
func (b *Base) Object() *object.NativeObject { return b.NativeObject }

// Tree returns the tree the widget belongs to.
func (b *Base) Tree() *Tree { return b.tree }

// TypeName returns the name selectors match against, e.g. "TextView".
func (b *Base) TypeName() string { return b.typeName }

// ID returns the id used by "#id" selectors.
func (b *Base) ID() string { return b.id }

// Classes returns the class names used by ".class" selectors.
func (b *Base) Classes() []string { return slices.Clone(b.classes) }

// Parent returns the composite the widget is appended to, or nil.
func (b *Base) Parent() *Composite { return b.parent }

// LayoutData implements layout.Node.
func (b *Base) LayoutData() layout.Data { return b.data }

// Bounds implements layout.Node.
func (b *Base) Bounds() graphics.Rect { return b.bounds }

// SetBounds records the bounds computed by the parent layout and fires a
// local "resize" event when the size changed.
func (b *Base) SetBounds(r graphics.Rect) {
	old := b.bounds
	b.bounds = r
	if old.Size() != r.Size() && !b.IsDisposed() {
		b.Trigger("resize", map[string]any{"width": r.Width(), "height": r.Height()})
	}
}

// IntrinsicSize implements layout.Node. Plain widgets have no content.
func (b *Base) IntrinsicSize(float64) graphics.Size { return graphics.Size{} }

// Matches reports whether the widget matches a single selector: "*",
// "#id", ".class" or a type name.
func (b *Base) Matches(selector string) bool {
	switch {
	case selector == "*":
		return true
	case strings.HasPrefix(selector, "#"):
		return b.id != "" && b.id == selector[1:]
	case strings.HasPrefix(selector, "."):
		return slices.Contains(b.classes, selector[1:])
	}
	return selector == b.typeName
}

// Set assigns a property. Layout attributes and layoutData mark the parent
// for layout; other properties go through the native property table.
func (b *Base) Set(name string, value any) error {
	if !isHostProp(name) {
		if err := b.NativeObject.Set(name, value); err != nil {
			return err
		}
		if s, ok := b.self.(syncer); ok {
			s.sync(name, value)
		}
		return nil
	}
	if b.IsDisposed() {
		return disposed("widget.Set", b.CID(), name)
	}
	c, err := parseHost(name, value)
	if err != nil {
		return withTarget(err, b.CID())
	}
	b.applyHost(c)
	return nil
}

// SetAll assigns several properties. Every value is validated before any
// is applied.
func (b *Base) SetAll(props map[string]any) error {
	if b.IsDisposed() {
		return disposed("widget.SetAll", b.CID(), "")
	}
	native, host, err := splitProps(props)
	if err != nil {
		return withTarget(err, b.CID())
	}
	if err := b.NativeObject.SetAll(native); err != nil {
		return err
	}
	for _, c := range host {
		b.applyHost(c)
	}
	if s, ok := b.self.(syncer); ok {
		for _, name := range slices.Sorted(maps.Keys(native)) {
			s.sync(name, native[name])
		}
	}
	return nil
}

func (b *Base) applyHost(c hostChange) {
	switch {
	case c.id != nil:
		b.id = *c.id
		b.Trigger("change:id", b.id)
	case c.class != nil:
		b.classes = c.class
		b.Trigger("change:class", strings.Join(b.classes, " "))
	case c.data != nil:
		if c.name == "layoutData" {
			b.data = *c.data
		} else {
			b.data = b.data.Merge(*c.data)
			if c.data.IsZero() {
				b.clearAttribute(c.name)
			}
		}
		b.markParentDirty()
		b.Trigger("change:layoutData", b.data)
	}
}

// clearAttribute resets an attribute assigned "auto" or nil.
func (b *Base) clearAttribute(name string) {
	d := b.data
	switch name {
	case "left":
		d.Left = nil
	case "right":
		d.Right = nil
	case "top":
		d.Top = nil
	case "bottom":
		d.Bottom = nil
	case "centerX":
		d.CenterX = nil
	case "centerY":
		d.CenterY = nil
	case "baseline":
		d.Baseline = nil
	case "width":
		d.Width = nil
	case "height":
		d.Height = nil
	}
	b.data = d
}

// Get returns a property value. Host properties are answered locally;
// "bounds" returns the last computed graphics.Rect.
func (b *Base) Get(name string) (any, error) {
	if b.IsDisposed() {
		return nil, disposed("widget.Get", b.CID(), name)
	}
	switch name {
	case "id":
		return b.id, nil
	case "class":
		return strings.Join(b.classes, " "), nil
	case "layoutData":
		return b.data, nil
	case "bounds":
		return b.bounds, nil
	case "width":
		if b.data.Width == nil {
			return nil, nil
		}
		return *b.data.Width, nil
	case "height":
		if b.data.Height == nil {
			return nil, nil
		}
		return *b.data.Height, nil
	}
	if slices.Contains(layout.Attributes, name) {
		if c := attribute(b.data, name); c != nil {
			return *c, nil
		}
		return nil, nil
	}
	return b.NativeObject.Get(name)
}

func attribute(d layout.Data, name string) *constraint.Constraint {
	switch name {
	case "left":
		return d.Left
	case "right":
		return d.Right
	case "top":
		return d.Top
	case "bottom":
		return d.Bottom
	case "centerX":
		return d.CenterX
	case "centerY":
		return d.CenterY
	case "baseline":
		return d.Baseline
	}
	return nil
}

// markParentDirty queues the parent for layout; the geometry of this
// widget is decided there.
func (b *Base) markParentDirty() {
	if b.parent != nil {
		b.tree.queue.Add(b.parent.self.(layout.Container))
	}
}

// Detach removes the widget from its parent without disposing it.
func (b *Base) Detach() {
	p := b.parent
	if p == nil {
		return
	}
	p.remove(b.self)
	b.parent = nil
	if !b.IsDisposed() {
		b.tree.ctx.Bridge().Set(b.CID(), "parent", nil)
	}
}

// Dispose detaches the widget and destroys its native object.
func (b *Base) Dispose() {
	if b.IsDisposed() {
		return
	}
	p := b.parent
	b.NativeObject.Dispose()
	if p != nil {
		p.remove(b.self)
		b.parent = nil
	}
	b.tree.queue.Forget(b.CID())
}

func disposed(op, cid, name string) error {
	return &errors.TetherError{Op: op, Kind: errors.KindMisuse, Target: cid, Property: name, Err: errors.ErrDisposed}
}

func withTarget(err error, cid string) error {
	var te *errors.TetherError
	if errors.As(err, &te) && te.Target == "" {
		te.Target = cid
	}
	return err
}
