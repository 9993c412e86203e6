package graphics

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// defaultFontSize is used when no font size is specified.
	defaultFontSize = 16
)

// FontWeight represents a numeric font weight.
type FontWeight int

const (
	FontWeightThin   FontWeight = 100
	FontWeightLight  FontWeight = 300
	FontWeightNormal FontWeight = 400
	FontWeightMedium FontWeight = 500
	FontWeightBold   FontWeight = 700
	FontWeightBlack  FontWeight = 900
)

// String returns the wire name of the font weight.
func (w FontWeight) String() string {
	switch w {
	case FontWeightThin:
		return "thin"
	case FontWeightLight:
		return "light"
	case FontWeightNormal:
		return "normal"
	case FontWeightMedium:
		return "medium"
	case FontWeightBold:
		return "bold"
	case FontWeightBlack:
		return "black"
	default:
		return fmt.Sprintf("FontWeight(%d)", int(w))
	}
}

var fontWeights = map[string]FontWeight{
	"thin":   FontWeightThin,
	"light":  FontWeightLight,
	"normal": FontWeightNormal,
	"medium": FontWeightMedium,
	"bold":   FontWeightBold,
	"black":  FontWeightBlack,
}

// FontStyle represents normal or italic text.
type FontStyle int

const (
	FontStyleNormal FontStyle = iota
	FontStyleItalic
)

// String returns the wire name of the font style.
func (s FontStyle) String() string {
	switch s {
	case FontStyleNormal:
		return "normal"
	case FontStyleItalic:
		return "italic"
	default:
		return fmt.Sprintf("FontStyle(%d)", int(s))
	}
}

// Font describes a text face: families in fallback order, a pixel size, a
// style and a weight.
type Font struct {
	Family []string
	Size   float64
	Style  FontStyle
	Weight FontWeight
}

// DefaultFont is used for zero sizes and missing families.
var DefaultFont = Font{Family: []string{"sans-serif"}, Size: defaultFontSize, Weight: FontWeightNormal}

// ParseFont parses the CSS-like shorthand "[style] [weight] <size>px
// <family>[, <family>...]", for instance "bold italic 16px Arial, sans-serif".
// Style and weight may appear in either order and default to normal.
func ParseFont(s string) (Font, error) {
	f := Font{Style: FontStyleNormal, Weight: FontWeightNormal}
	fields := strings.Fields(s)
	i := 0
	seenStyle, seenWeight := false, false
	for ; i < len(fields); i++ {
		word := strings.ToLower(fields[i])
		if word == "italic" && !seenStyle {
			f.Style, seenStyle = FontStyleItalic, true
			continue
		}
		if w, ok := fontWeights[word]; ok && !seenWeight {
			f.Weight, seenWeight = w, true
			continue
		}
		if word == "normal" && !seenStyle {
			seenStyle = true
			continue
		}
		break
	}
	if i >= len(fields) || !strings.HasSuffix(fields[i], "px") {
		return Font{}, fmt.Errorf("invalid font %q: missing size", s)
	}
	size, err := strconv.ParseFloat(strings.TrimSuffix(fields[i], "px"), 64)
	if err != nil || size < 0 {
		return Font{}, fmt.Errorf("invalid font %q: bad size %q", s, fields[i])
	}
	f.Size = size
	rest := strings.Join(fields[i+1:], " ")
	for _, family := range strings.Split(rest, ",") {
		family = strings.Trim(strings.TrimSpace(family), `"'`)
		if family != "" {
			f.Family = append(f.Family, family)
		}
	}
	return f, nil
}

// String renders the shorthand form accepted by ParseFont.
func (f Font) String() string {
	var parts []string
	if f.Style == FontStyleItalic {
		parts = append(parts, "italic")
	}
	if f.Weight != FontWeightNormal && f.Weight != 0 {
		parts = append(parts, f.Weight.String())
	}
	parts = append(parts, strconv.FormatFloat(f.Size, 'f', -1, 64)+"px")
	if len(f.Family) > 0 {
		parts = append(parts, strings.Join(f.Family, ", "))
	}
	return strings.Join(parts, " ")
}

// WireValue returns the {family, size, style, weight} record sent to
// native code.
func (f Font) WireValue() map[string]any {
	family := make([]any, len(f.Family))
	for i, name := range f.Family {
		family[i] = name
	}
	weight := f.Weight
	if weight == 0 {
		weight = FontWeightNormal
	}
	return map[string]any{
		"family": family,
		"size":   f.Size,
		"style":  f.Style.String(),
		"weight": weight.String(),
	}
}

// FontFromWire decodes the record produced by WireValue.
func FontFromWire(m map[string]any) (Font, error) {
	f := Font{Style: FontStyleNormal, Weight: FontWeightNormal}
	switch fam := m["family"].(type) {
	case []any:
		for _, v := range fam {
			if s, ok := v.(string); ok {
				f.Family = append(f.Family, s)
			}
		}
	case []string:
		f.Family = append(f.Family, fam...)
	case string:
		f.Family = []string{fam}
	}
	switch size := m["size"].(type) {
	case float64:
		f.Size = size
	case int:
		f.Size = float64(size)
	case nil:
	default:
		return Font{}, fmt.Errorf("invalid font size %v", size)
	}
	if style, ok := m["style"].(string); ok && style == "italic" {
		f.Style = FontStyleItalic
	}
	if weight, ok := m["weight"].(string); ok {
		w, known := fontWeights[weight]
		if !known {
			return Font{}, fmt.Errorf("invalid font weight %q", weight)
		}
		f.Weight = w
	}
	return f, nil
}
