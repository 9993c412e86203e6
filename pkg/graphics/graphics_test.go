package graphics

import (
	"reflect"
	"testing"
)

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want Color
	}{
		{"#f00", ColorRed},
		{"#f008", RGBA8(255, 0, 0, 0x88)},
		{"#00ff00", RGB(0, 255, 0)},
		{"#0000ff80", RGBA8(0, 0, 255, 0x80)},
		{"rgb(1, 2, 3)", RGB(1, 2, 3)},
		{"rgba(255, 0, 0, 0.5)", RGBA(255, 0, 0, 0.5)},
		{" Red ", ColorRed},
		{"transparent", ColorTransparent},
	}
	for _, tt := range tests {
		got, err := ParseColor(tt.in)
		if err != nil {
			t.Errorf("ParseColor(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseColor(%q) = %08x, want %08x", tt.in, uint32(got), uint32(tt.want))
		}
	}

	for _, bad := range []string{"", "#12", "#ggg", "rgb(256, 0, 0)", "rgba(1, 2, 3)", "rgb(1, 2, 3, 0.5)", "rgba(0, 0, 0, 2)", "chartreuse-ish"} {
		if _, err := ParseColor(bad); err == nil {
			t.Errorf("ParseColor(%q) expected error", bad)
		}
	}
}

func TestColorWireForms(t *testing.T) {
	c := RGBA8(170, 187, 204, 255)
	if got := c.Array(); !reflect.DeepEqual(got, []any{170, 187, 204, 255}) {
		t.Errorf("Array = %v", got)
	}
	if got := c.String(); got != "rgba(170, 187, 204, 1)" {
		t.Errorf("String = %q", got)
	}
	if got := RGBA(0, 0, 0, 0.5).String(); got != "rgba(0, 0, 0, 0.502)" {
		t.Errorf("String = %q", got)
	}
}

func TestParseFont(t *testing.T) {
	tests := []struct {
		in   string
		want Font
	}{
		{"12px Arial", Font{Family: []string{"Arial"}, Size: 12, Weight: FontWeightNormal}},
		{"bold italic 16px Arial, sans-serif", Font{
			Family: []string{"Arial", "sans-serif"}, Size: 16,
			Style: FontStyleItalic, Weight: FontWeightBold,
		}},
		{"italic thin 9.5px", Font{Size: 9.5, Style: FontStyleItalic, Weight: FontWeightThin}},
		{`normal 20px "Times New Roman"`, Font{Family: []string{"Times New Roman"}, Size: 20, Weight: FontWeightNormal}},
	}
	for _, tt := range tests {
		got, err := ParseFont(tt.in)
		if err != nil {
			t.Errorf("ParseFont(%q) error: %v", tt.in, err)
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseFont(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}

	for _, bad := range []string{"", "Arial", "bold", "12 Arial", "-3px Arial"} {
		if _, err := ParseFont(bad); err == nil {
			t.Errorf("ParseFont(%q) expected error", bad)
		}
	}
}

func TestFontWireRoundTrip(t *testing.T) {
	f := Font{Family: []string{"serif"}, Size: 14, Style: FontStyleItalic, Weight: FontWeightMedium}
	back, err := FontFromWire(f.WireValue())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(back, f) {
		t.Errorf("round trip = %+v, want %+v", back, f)
	}
	if got := f.String(); got != "italic medium 14px serif" {
		t.Errorf("String = %q", got)
	}
}

func TestRectBounds(t *testing.T) {
	r := RectFromLTWH(10, 20, 100, 50)
	if r.Width() != 100 || r.Height() != 50 {
		t.Errorf("size = %v", r.Size())
	}
	if got := r.Bounds(); !reflect.DeepEqual(got, []any{10.0, 20.0, 100.0, 50.0}) {
		t.Errorf("Bounds = %v", got)
	}
	back, ok := RectFromBounds([]float64{10, 20, 100, 50})
	if !ok || !back.Equal(r) {
		t.Errorf("RectFromBounds = %v, %v", back, ok)
	}
	if _, ok := RectFromBounds([]float64{1, 2, 3}); ok {
		t.Error("expected failure for short bounds")
	}
}
