package widget

import (
	"go.uber.org/zap"

	"github.com/go-drift/tether/pkg/graphics"
	"github.com/go-drift/tether/pkg/internal/convert"
	"github.com/go-drift/tether/pkg/measure"
	"github.com/go-drift/tether/pkg/property"
)

// TextView displays text and sizes itself from it.
type TextView struct {
	Base
	text     string
	font     graphics.Font
	markup   bool
	maxLines int
}

// NewTextView creates a text view.
func NewTextView(t *Tree, props map[string]any) (*TextView, error) {
	tv := &TextView{}
	if err := tv.init(t, tv, TypeTextView, "TextView", props); err != nil {
		return nil, err
	}
	return tv, nil
}

// Text returns the current text.
func (tv *TextView) Text() string { return tv.text }

func (tv *TextView) sync(name string, value any) {
	if tv.mirror(name, value) {
		tv.markParentDirty()
	}
}

// mirror records a text property and reports whether it affects the size.
func (tv *TextView) mirror(name string, value any) bool {
	switch name {
	case "text":
		s, _ := property.String.Encode(value)
		tv.text, _ = s.(string)
	case "font":
		tv.font = fontOf(value)
	case "markupEnabled":
		b, _ := property.Boolean.Encode(value)
		tv.markup, _ = b.(bool)
	case "maxLines":
		tv.maxLines = 0
		if n, ok := convert.ToInt(value); ok && n > 0 {
			tv.maxLines = n
		}
	default:
		return false
	}
	return true
}

func fontOf(value any) graphics.Font {
	wire, err := property.Font.Encode(value)
	if err != nil || wire == nil {
		return graphics.Font{}
	}
	f, err := graphics.FontFromWire(wire.(map[string]any))
	if err != nil {
		return graphics.Font{}
	}
	return f
}

func (tv *TextView) effectiveFont() graphics.Font {
	f := tv.font
	if f.Size == 0 {
		f.Size = tv.tree.font.Size
	}
	if len(f.Family) == 0 {
		f.Family = tv.tree.font.Family
	}
	return f
}

// IntrinsicSize measures the text, wrapped at maxWidth when positive and
// limited to maxLines lines.
func (tv *TextView) IntrinsicSize(maxWidth float64) graphics.Size {
	cfg := measure.Config{Text: tv.text, Font: tv.effectiveFont(), MarkupEnabled: tv.markup}
	if maxWidth > 0 {
		cfg.MaxWidth = &maxWidth
	}
	size, err := tv.tree.measurer.Measure(cfg)
	if err != nil {
		tv.tree.logger.Warn("text measurement failed", zap.String("target", tv.CID()), zap.Error(err))
		return graphics.Size{}
	}
	if tv.maxLines > 0 {
		line, err := tv.tree.measurer.Measure(measure.Config{Font: cfg.Font})
		if err == nil {
			size.Height = min(size.Height, line.Height*float64(tv.maxLines))
		}
	}
	return size
}

// Baseline implements layout.BaselineNode.
func (tv *TextView) Baseline(float64) float64 {
	b, err := tv.tree.measurer.Baseline(tv.effectiveFont())
	if err != nil {
		return 0
	}
	return b
}

// Button is a push button with a text. Native code fires "select" when it
// is pressed.
type Button struct {
	Base
	text string
	font graphics.Font
}

// ButtonPadding is added around the text of a button.
var ButtonPadding = graphics.Size{Width: 32, Height: 16}

// NewButton creates a button.
func NewButton(t *Tree, props map[string]any) (*Button, error) {
	b := &Button{}
	if err := b.init(t, b, TypeButton, "Button", props); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Button) sync(name string, value any) {
	switch name {
	case "text":
		s, _ := property.String.Encode(value)
		b.text, _ = s.(string)
	case "font":
		b.font = fontOf(value)
	default:
		return
	}
	b.markParentDirty()
}

// IntrinsicSize is the measured text plus ButtonPadding.
func (b *Button) IntrinsicSize(maxWidth float64) graphics.Size {
	f := b.font
	if f.Size == 0 {
		f = b.tree.font
	}
	cfg := measure.Config{Text: b.text, Font: f}
	if maxWidth > ButtonPadding.Width {
		w := maxWidth - ButtonPadding.Width
		cfg.MaxWidth = &w
	}
	size, err := b.tree.measurer.Measure(cfg)
	if err != nil {
		return ButtonPadding
	}
	return graphics.Size{Width: size.Width + ButtonPadding.Width, Height: size.Height + ButtonPadding.Height}
}
