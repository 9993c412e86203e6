// Package measure computes the intrinsic size of text, which layouts use
// for widgets without a fixed width or height.
//
//	m := measure.New(nil) // bundled Go fonts
//	sizes, err := m.MeasureTexts([]any{
//		map[string]any{"text": "Hello", "font": "bold 16px sans-serif"},
//		map[string]any{"text": "<b>wrapped</b> text", "font": "12px", "markupEnabled": true, "maxWidth": 40},
//	})
package measure

import (
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/go-drift/tether/pkg/errors"
	"github.com/go-drift/tether/pkg/graphics"
	"github.com/go-drift/tether/pkg/internal/convert"
	"github.com/go-drift/tether/pkg/property"
)

// Config describes one text to measure.
type Config struct {
	Text          string
	Font          graphics.Font
	MarkupEnabled bool
	// MaxWidth wraps lines at word boundaries when set.
	MaxWidth *float64
}

// Measurer measures text with faces from a FaceSource.
type Measurer struct {
	faces  FaceSource
	logger *zap.Logger
}

// New returns a measurer using faces. Nil uses the bundled Go fonts.
func New(faces FaceSource) *Measurer {
	if faces == nil {
		faces = &GoFonts{}
	}
	return &Measurer{faces: faces, logger: zap.NewNop()}
}

// SetLogger replaces the logger. Nil restores the no-op logger.
func (m *Measurer) SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	m.logger = l
}

// Measure returns the size of the text block described by c. Every line,
// including the last and an empty one, takes the full line height of the
// face.
func (m *Measurer) Measure(c Config) (graphics.Size, error) {
	face, err := m.faces.Face(c.Font)
	if err != nil {
		return graphics.Size{}, err
	}
	text := c.Text
	if c.MarkupEnabled {
		text = StripMarkup(text)
	}
	maxWidth := -1.0
	if c.MaxWidth != nil {
		maxWidth = *c.MaxWidth
	}
	lines := wrap(face, text, maxWidth)
	var width fixed.Int26_6
	for _, line := range lines {
		width = max(width, font.MeasureString(face, line))
	}
	lineHeight := face.Metrics().Height
	return graphics.Size{
		Width:  float64(width.Ceil()),
		Height: float64(lineHeight.Ceil() * len(lines)),
	}, nil
}

// Baseline returns the distance from the top of the first line to its
// baseline.
func (m *Measurer) Baseline(f graphics.Font) (float64, error) {
	face, err := m.faces.Face(f)
	if err != nil {
		return 0, err
	}
	return float64(face.Metrics().Ascent.Ceil()), nil
}

// MeasureTexts validates a list of measurement configurations and measures
// each of them. args mirrors a script call: exactly one argument, the list,
// whose elements are Config values or maps with "text", "font",
// "markupEnabled" and "maxWidth".
func (m *Measurer) MeasureTexts(args ...any) ([]graphics.Size, error) {
	configs, err := Configs(args...)
	if err != nil {
		return nil, err
	}
	out := make([]graphics.Size, len(configs))
	for i, c := range configs {
		if out[i], err = m.Measure(c); err != nil {
			return nil, &errors.TetherError{Op: "measure.MeasureTexts", Kind: errors.KindInput, Err: err}
		}
	}
	m.logger.Debug("texts measured", zap.Int("count", len(out)))
	return out, nil
}

// Configs converts the arguments of MeasureTexts.
func Configs(args ...any) ([]Config, error) {
	if len(args) < 1 {
		return nil, invalidConfig("Not enough arguments to measure texts")
	}
	if cs, ok := args[0].([]Config); ok {
		for _, c := range cs {
			if c.Font.Size == 0 {
				return nil, invalidConfig(`A text measurement configuration has to provide a font size via the "font" property`)
			}
		}
		return cs, nil
	}
	items, ok := configList(args[0])
	if !ok {
		return nil, invalidConfig("The text measurement configs have to be an array")
	}
	out := make([]Config, len(items))
	for i, item := range items {
		c, err := configFrom(item)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

func configList(v any) ([]any, bool) {
	if s, ok := convert.ToSlice(v); ok {
		return s, true
	}
	if ms, ok := v.([]map[string]any); ok {
		out := make([]any, len(ms))
		for i, m := range ms {
			out[i] = m
		}
		return out, true
	}
	return nil, false
}

func configFrom(item any) (Config, error) {
	if c, ok := item.(Config); ok {
		if c.Font.Size == 0 {
			return Config{}, invalidConfig(`A text measurement configuration has to provide a font size via the "font" property`)
		}
		return c, nil
	}
	m, _ := convert.ToMap(item)
	text, ok := m["text"].(string)
	if !ok {
		return Config{}, invalidConfig(`A text measurement configuration has to provide a "text" string`)
	}
	c := Config{Text: text, MarkupEnabled: truthy(m["markupEnabled"])}

	var f graphics.Font
	if wire, err := property.Font.Encode(m["font"]); err == nil && wire != nil {
		f, _ = graphics.FontFromWire(wire.(map[string]any))
	}
	if f.Size == 0 {
		return Config{}, invalidConfig(`A text measurement configuration has to provide a font size via the "font" property`)
	}
	c.Font = f

	if raw, ok := m["maxWidth"]; ok {
		w, err := property.Dimension.Encode(raw)
		if err != nil {
			return Config{}, invalidConfig("Invalid maxWidth: %v", err)
		}
		mw := w.(float64)
		c.MaxWidth = &mw
	}
	return c, nil
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	}
	if n, ok := convert.ToFloat64(v); ok {
		return n != 0 && !math.IsNaN(n)
	}
	return true
}

func invalidConfig(format string, args ...any) error {
	return &errors.TetherError{
		Op:   "measure.MeasureTexts",
		Kind: errors.KindInput,
		Err:  fmt.Errorf(format, args...),
	}
}

// wrap splits text into lines at newlines and, when maxWidth is not
// negative, greedily at spaces so no line is wider than maxWidth. A word
// wider than maxWidth gets a line of its own.
func wrap(face font.Face, text string, maxWidth float64) []string {
	paragraphs := strings.Split(text, "\n")
	if maxWidth < 0 {
		return paragraphs
	}
	limit := fixed.Int26_6(maxWidth * 64)
	var lines []string
	for _, p := range paragraphs {
		words := strings.Fields(p)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		line := words[0]
		for _, w := range words[1:] {
			candidate := line + " " + w
			if font.MeasureString(face, candidate) > limit {
				lines = append(lines, line)
				line = w
				continue
			}
			line = candidate
		}
		lines = append(lines, line)
	}
	return lines
}
