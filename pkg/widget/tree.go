package widget

import (
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/go-drift/tether/pkg/errors"
	"github.com/go-drift/tether/pkg/graphics"
	"github.com/go-drift/tether/pkg/layout"
	"github.com/go-drift/tether/pkg/measure"
	"github.com/go-drift/tether/pkg/object"
	"github.com/go-drift/tether/pkg/property"
)

// Native type tags.
const (
	TypeWidget      = "tether.Widget"
	TypeComposite   = "tether.Composite"
	TypeContentView = "tether.ContentView"
	TypeTextView    = "tether.TextView"
	TypeButton      = "tether.Button"
)

var alignment = property.Choice("left", "centerX", "right")

// WidgetProperties are the native properties every widget has.
var WidgetProperties = property.NewTable(
	property.Descriptor{Name: "background", Type: property.Color},
	property.Descriptor{Name: "opacity", Type: property.Opacity, Default: 1.0},
	property.Descriptor{Name: "visible", Type: property.Boolean, Default: true},
	property.Descriptor{Name: "enabled", Type: property.Boolean, Default: true},
	property.Descriptor{Name: "cornerRadius", Type: property.Dimension, Default: 0.0},
	property.Descriptor{Name: "bounds", Type: property.Bounds, ReadOnly: true},
)

// TextViewProperties are added to WidgetProperties by TextView.
var TextViewProperties = property.NewTable(
	property.Descriptor{Name: "text", Type: property.String, Default: ""},
	property.Descriptor{Name: "font", Type: property.Font},
	property.Descriptor{Name: "textColor", Type: property.Color},
	property.Descriptor{Name: "alignment", Type: alignment, Default: "left"},
	property.Descriptor{Name: "markupEnabled", Type: property.Boolean, Default: false, Const: true},
	property.Descriptor{Name: "maxLines", Type: property.Natural},
)

// ButtonProperties are added to WidgetProperties by Button.
var ButtonProperties = property.NewTable(
	property.Descriptor{Name: "text", Type: property.String, Default: ""},
	property.Descriptor{Name: "font", Type: property.Font},
	property.Descriptor{Name: "textColor", Type: property.Color},
	property.Descriptor{Name: "image", Type: property.Image},
	property.Descriptor{Name: "alignment", Type: alignment, Default: "centerX"},
)

// Register adds the widget property tables to r. Each type extends one
// registered before it.
func Register(r *property.Registry) error {
	r.Register(TypeWidget, WidgetProperties)
	for _, ext := range []struct {
		typ, base string
		table     property.Table
	}{
		{TypeComposite, TypeWidget, property.Table{}},
		{TypeContentView, TypeComposite, property.Table{}},
		{TypeTextView, TypeWidget, TextViewProperties},
		{TypeButton, TypeWidget, ButtonProperties},
	} {
		if err := r.Extend(ext.typ, ext.base, ext.table); err != nil {
			return fmt.Errorf("widget: register %s: %w", ext.typ, err)
		}
	}
	return nil
}

// Factory creates a widget of one type.
type Factory func(t *Tree, props map[string]any) (Widget, error)

// Tree ties widgets to the object arena, the layout queue and the text
// measurer.
type Tree struct {
	ctx      *object.Context
	queue    *layout.Queue
	measurer *measure.Measurer
	logger   *zap.Logger
	font     graphics.Font
	layout   layout.Layout
	root     *ContentView

	factories map[string]Factory
}

// NewTree returns a tree creating its native objects in ctx. The widget
// property tables are registered in the context registry when missing. A
// nil measurer uses the bundled fonts.
func NewTree(ctx *object.Context, queue *layout.Queue, m *measure.Measurer) *Tree {
	if _, ok := ctx.Registry().Lookup(TypeWidget); !ok {
		Register(ctx.Registry())
	}
	if m == nil {
		m = measure.New(nil)
	}
	t := &Tree{
		ctx:      ctx,
		queue:    queue,
		measurer: m,
		logger:   zap.NewNop(),
		font:     graphics.DefaultFont,
		layout:   layout.DefaultLayout,
	}
	t.factories = map[string]Factory{
		"Composite": func(t *Tree, p map[string]any) (Widget, error) { return NewComposite(t, p) },
		"TextView":  func(t *Tree, p map[string]any) (Widget, error) { return NewTextView(t, p) },
		"Button":    func(t *Tree, p map[string]any) (Widget, error) { return NewButton(t, p) },
	}
	return t
}

// SetLogger replaces the logger. Nil restores the no-op logger.
func (t *Tree) SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	t.logger = l
}

// SetFont sets the font used by text widgets without a font of their own.
func (t *Tree) SetFont(f graphics.Font) {
	t.font = f
}

// Context returns the object arena.
func (t *Tree) Context() *object.Context { return t.ctx }

// Queue returns the layout queue.
func (t *Tree) Queue() *layout.Queue { return t.queue }

// Measurer returns the text measurer.
func (t *Tree) Measurer() *measure.Measurer { return t.measurer }

// Root returns the content view, or nil before NewContentView.
func (t *Tree) Root() *ContentView { return t.root }

func (t *Tree) defaultLayout() layout.Layout { return t.layout }

// RegisterFactory makes a widget type creatable by name through Create.
func (t *Tree) RegisterFactory(typeName string, f Factory) {
	t.factories[typeName] = f
}

// Types returns the names accepted by Create, sorted.
func (t *Tree) Types() []string {
	names := make([]string, 0, len(t.factories))
	for name := range t.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Create creates a widget by type name, e.g. "TextView".
func (t *Tree) Create(typeName string, props map[string]any) (Widget, error) {
	f, ok := t.factories[typeName]
	if !ok {
		return nil, &errors.TetherError{
			Op:   "widget.Create",
			Kind: errors.KindInput,
			Err:  fmt.Errorf("unknown widget type %q", typeName),
		}
	}
	return f(t, props)
}

// Lookup returns the live widget with the given cid.
func (t *Tree) Lookup(cid string) (Widget, bool) {
	o, ok := t.ctx.Find(cid)
	if !ok {
		return nil, false
	}
	w, ok := o.Owner().(Widget)
	return w, ok
}
