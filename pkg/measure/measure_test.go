package measure

import (
	"strings"
	"testing"

	"github.com/go-drift/tether/pkg/errors"
	"github.com/go-drift/tether/pkg/graphics"
)

func basicFont() graphics.Font {
	return graphics.Font{Size: 13, Weight: graphics.FontWeightNormal}
}

func ptr(v float64) *float64 { return &v }

func TestMeasureBasicFace(t *testing.T) {
	m := New(Basic{})
	tests := []struct {
		name string
		cfg  Config
		want graphics.Size
	}{
		{"single line", Config{Text: "Hello"}, graphics.Size{Width: 35, Height: 13}},
		{"empty", Config{Text: ""}, graphics.Size{Width: 0, Height: 13}},
		{"newline", Config{Text: "ab\ncdef"}, graphics.Size{Width: 28, Height: 26}},
		{"wrapped", Config{Text: "aa bb cc", MaxWidth: ptr(40)}, graphics.Size{Width: 35, Height: 26}},
		{"wide word", Config{Text: "abcdefgh ij", MaxWidth: ptr(20)}, graphics.Size{Width: 56, Height: 26}},
		{"markup", Config{Text: "<b>ab</b><br/>cde", MarkupEnabled: true}, graphics.Size{Width: 21, Height: 26}},
		{"markup disabled", Config{Text: "<b>ab</b>"}, graphics.Size{Width: 63, Height: 13}},
		{"entity", Config{Text: "a&amp;b", MarkupEnabled: true}, graphics.Size{Width: 21, Height: 13}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.Font = basicFont()
			got, err := m.Measure(tt.cfg)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Measure = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBaseline(t *testing.T) {
	b, err := New(Basic{}).Baseline(basicFont())
	if err != nil {
		t.Fatal(err)
	}
	if b != 11 {
		t.Errorf("Baseline = %v, want 11", b)
	}
}

func TestGoFontsScaleWithSize(t *testing.T) {
	m := New(nil)
	small, err := m.Measure(Config{Text: "Hello world", Font: graphics.Font{Size: 8}})
	if err != nil {
		t.Fatal(err)
	}
	large, err := m.Measure(Config{Text: "Hello world", Font: graphics.Font{Size: 16, Weight: graphics.FontWeightBold}})
	if err != nil {
		t.Fatal(err)
	}
	if small.Width <= 0 || small.Height <= 0 {
		t.Fatalf("small = %v", small)
	}
	if large.Width <= small.Width || large.Height <= small.Height {
		t.Errorf("16px %v should exceed 8px %v", large, small)
	}
}

func TestMeasureTexts(t *testing.T) {
	m := New(Basic{})
	sizes, err := m.MeasureTexts([]any{
		map[string]any{"text": "abc", "font": "13px sans-serif"},
		map[string]any{"text": "<i>x</i> yz", "font": "italic 13px", "markupEnabled": true, "maxWidth": "10"},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []graphics.Size{{Width: 21, Height: 13}, {Width: 14, Height: 26}}
	if len(sizes) != len(want) {
		t.Fatalf("got %d sizes", len(sizes))
	}
	for i := range want {
		if sizes[i] != want[i] {
			t.Errorf("size %d = %v, want %v", i, sizes[i], want[i])
		}
	}
}

func TestMeasureTextsErrors(t *testing.T) {
	m := New(Basic{})
	tests := []struct {
		name string
		args []any
		msg  string
	}{
		{"no arguments", nil, "Not enough arguments to measure texts"},
		{"not an array", []any{"abc"}, "The text measurement configs have to be an array"},
		{"missing text", []any{[]any{map[string]any{"font": "12px"}}}, `has to provide a "text" string`},
		{"non-string text", []any{[]any{map[string]any{"text": 12, "font": "12px"}}}, `has to provide a "text" string`},
		{"missing font", []any{[]any{map[string]any{"text": "a"}}}, `has to provide a font size via the "font" property`},
		{"font without size", []any{[]any{map[string]any{"text": "a", "font": "bold"}}}, `font size`},
		{"config without size", []any{[]Config{{Text: "a"}}}, `font size`},
		{"bad maxWidth", []any{[]any{map[string]any{"text": "a", "font": "12px", "maxWidth": "wide"}}}, "Not a number"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.MeasureTexts(tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.msg) {
				t.Errorf("error = %q, want it to contain %q", err, tt.msg)
			}
			if errors.KindOf(err) != errors.KindInput {
				t.Errorf("kind = %v, want input", errors.KindOf(err))
			}
		})
	}
}

func TestStripMarkup(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"<b>bold</b> and <i>italic</i>", "bold and italic"},
		{"one<br>two<br/>three", "one\ntwo\nthree"},
		{`<a href="x">link</a>`, "link"},
		{"&lt;tag&gt;", "<tag>"},
	}
	for _, tt := range tests {
		if got := StripMarkup(tt.in); got != tt.want {
			t.Errorf("StripMarkup(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
