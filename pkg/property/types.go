package property

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/go-drift/tether/pkg/errors"
	"github.com/go-drift/tether/pkg/graphics"
	"github.com/go-drift/tether/pkg/internal/convert"
)

// Any passes values through unchanged.
var Any = Type{Name: "any"}

// Boolean converts any value to its truthiness.
var Boolean = Type{
	Name:   "boolean",
	Encode: func(v any) (any, error) { return truthy(v), nil },
}

// String accepts strings, numbers and booleans. Nil becomes "".
var String = Type{
	Name: "string",
	Encode: func(v any) (any, error) {
		switch s := v.(type) {
		case nil:
			return "", nil
		case string:
			return s, nil
		case bool:
			return strconv.FormatBool(s), nil
		case fmt.Stringer:
			return s.String(), nil
		}
		if f, ok := convert.ToFloat64(v); ok {
			return strconv.FormatFloat(f, 'f', -1, 64), nil
		}
		return nil, fmt.Errorf("%s is not a string", errors.ValueString(v))
	},
}

// Number accepts finite numbers and numeric strings.
var Number = Type{
	Name:   "number",
	Encode: func(v any) (any, error) { return toNumber(v) },
}

// Natural accepts numbers, rounded and clamped at zero.
var Natural = Type{
	Name: "natural",
	Encode: func(v any) (any, error) {
		f, err := toNumber(v)
		if err != nil {
			return nil, err
		}
		return math.Max(0, math.Round(f)), nil
	},
}

// Dimension accepts finite pixel values.
var Dimension = Type{
	Name:   "dimension",
	Encode: func(v any) (any, error) { return toNumber(v) },
}

// Opacity accepts numbers between 0 and 1.
var Opacity = Type{
	Name: "opacity",
	Encode: func(v any) (any, error) {
		f, err := toNumber(v)
		if err != nil {
			return nil, err
		}
		if f < 0 || f > 1 {
			return nil, fmt.Errorf("Number is not between 0 and 1: %s", errors.ValueString(v))
		}
		return f, nil
	},
}

// Color accepts color strings and graphics.Color values and encodes them as
// [r, g, b, a]. "initial" and nil reset the property.
var Color = Type{
	Name: "ColorValue",
	Encode: func(v any) (any, error) {
		switch c := v.(type) {
		case nil:
			return nil, nil
		case graphics.Color:
			return c.Array(), nil
		case string:
			if strings.TrimSpace(c) == "initial" {
				return nil, nil
			}
			parsed, err := graphics.ParseColor(c)
			if err != nil {
				return nil, err
			}
			return parsed.Array(), nil
		}
		if arr, ok := convert.ToSlice(v); ok {
			if c, ok := colorFromArray(arr); ok {
				return c.Array(), nil
			}
		}
		return nil, fmt.Errorf("%s is not a valid color", errors.ValueString(v))
	},
	Decode: func(wire any) any {
		arr, ok := convert.ToSlice(wire)
		if !ok {
			return wire
		}
		c, ok := colorFromArray(arr)
		if !ok {
			return wire
		}
		return c.String()
	},
}

func colorFromArray(arr []any) (graphics.Color, bool) {
	if len(arr) != 3 && len(arr) != 4 {
		return 0, false
	}
	ch := [4]uint8{0, 0, 0, 255}
	for i, v := range arr {
		n, ok := convert.ToFloat64(v)
		if !ok || n < 0 || n > 255 {
			return 0, false
		}
		ch[i] = uint8(n)
	}
	return graphics.RGBA8(ch[0], ch[1], ch[2], ch[3]), true
}

// Image accepts an image source string or a {src, width, height, scale}
// map and encodes it as {type: "uri", src, width, height, scale}. Width and
// height exclude scale.
var Image = Type{
	Name: "ImageValue",
	Encode: func(v any) (any, error) {
		if v == nil {
			return nil, nil
		}
		if src, ok := v.(string); ok {
			v = map[string]any{"src": src}
		}
		m, ok := convert.ToMap(v)
		if !ok {
			return nil, fmt.Errorf("%s is not a valid image", errors.ValueString(v))
		}
		src, _ := m["src"].(string)
		if src == "" {
			return nil, fmt.Errorf("image \"src\" must be a non-empty string")
		}
		out := map[string]any{"type": "uri", "src": src, "width": nil, "height": nil, "scale": nil}
		for _, key := range []string{"width", "height", "scale"} {
			raw, present := m[key]
			if !present || raw == nil || raw == "auto" {
				continue
			}
			f, ok := convert.ToFloat64(raw)
			if !ok || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || (key == "scale" && f == 0) {
				return nil, fmt.Errorf("image %q is not a valid value: %s", key, errors.ValueString(raw))
			}
			out[key] = f
		}
		if out["scale"] != nil && (out["width"] != nil || out["height"] != nil) {
			return nil, fmt.Errorf("image \"scale\" cannot be used with \"width\" and \"height\"")
		}
		return out, nil
	},
	Decode: func(wire any) any {
		m, ok := convert.ToMap(wire)
		if !ok {
			return wire
		}
		out := map[string]any{"src": m["src"]}
		for _, key := range []string{"width", "height", "scale"} {
			if m[key] != nil {
				out[key] = m[key]
			}
		}
		return out
	},
}

// Font accepts the shorthand string "bold 16px Arial" or a graphics.Font and
// encodes it as {family, size, style, weight}. Decoding yields the shorthand.
var Font = Type{
	Name: "FontValue",
	Encode: func(v any) (any, error) {
		switch f := v.(type) {
		case nil:
			return nil, nil
		case graphics.Font:
			return f.WireValue(), nil
		case string:
			if strings.TrimSpace(f) == "initial" {
				return nil, nil
			}
			parsed, err := graphics.ParseFont(f)
			if err != nil {
				return nil, err
			}
			return parsed.WireValue(), nil
		}
		if m, ok := convert.ToMap(v); ok {
			parsed, err := graphics.FontFromWire(m)
			if err != nil {
				return nil, err
			}
			return parsed.WireValue(), nil
		}
		return nil, fmt.Errorf("%s is not a valid font", errors.ValueString(v))
	},
	Decode: func(wire any) any {
		m, ok := convert.ToMap(wire)
		if !ok {
			return wire
		}
		f, err := graphics.FontFromWire(m)
		if err != nil {
			return wire
		}
		return f.String()
	},
}

// Bounds decodes [left, top, width, height] into a map with those keys.
var Bounds = Type{
	Name: "bounds",
	Encode: func(v any) (any, error) {
		if r, ok := v.(graphics.Rect); ok {
			return r.Bounds(), nil
		}
		if r, ok := boundsRect(v); ok {
			return r.Bounds(), nil
		}
		return nil, fmt.Errorf("%s is not a valid bounds value", errors.ValueString(v))
	},
	Decode: func(wire any) any {
		r, ok := boundsRect(wire)
		if !ok {
			return wire
		}
		return map[string]any{"left": r.Left, "top": r.Top, "width": r.Width(), "height": r.Height()}
	},
}

func boundsRect(v any) (graphics.Rect, bool) {
	arr, ok := convert.ToSlice(v)
	if !ok || len(arr) != 4 {
		return graphics.Rect{}, false
	}
	nums := make([]float64, 4)
	for i, e := range arr {
		f, ok := convert.ToFloat64(e)
		if !ok {
			return graphics.Rect{}, false
		}
		nums[i] = f
	}
	return graphics.RectFromBounds(nums)
}

// Choice accepts one of the given strings.
func Choice(values ...string) Type {
	return Type{
		Name: "choice",
		Encode: func(v any) (any, error) {
			s, ok := v.(string)
			if !ok || !slices.Contains(values, s) {
				return nil, fmt.Errorf("%s must be one of %s", errors.ValueString(v), strings.Join(quoteAll(values), ", "))
			}
			return s, nil
		},
	}
}

func quoteAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strconv.Quote(v)
	}
	return out
}

// Array accepts a slice and converts each element with of. Nil becomes an
// empty array.
func Array(of Type) Type {
	return Type{
		Name: "array",
		Encode: func(v any) (any, error) {
			if v == nil {
				return []any{}, nil
			}
			arr, ok := convert.ToSlice(v)
			if !ok {
				return nil, fmt.Errorf("%s is not an array", errors.ValueString(v))
			}
			out := make([]any, len(arr))
			for i, e := range arr {
				w, err := of.encode(e)
				if err != nil {
					return nil, fmt.Errorf("element %d: %w", i, err)
				}
				out[i] = w
			}
			return out, nil
		},
		Decode: func(wire any) any {
			arr, ok := convert.ToSlice(wire)
			if !ok {
				return wire
			}
			out := make([]any, len(arr))
			for i, e := range arr {
				out[i] = of.decode(e)
			}
			return out
		},
	}
}

// Identifiable is anything with a native identifier.
type Identifiable interface {
	CID() string
}

// ObjectRef encodes native objects as their cid. Strings that already look
// like a cid pass through.
var ObjectRef = Type{
	Name: "NativeObject",
	Encode: func(v any) (any, error) {
		switch o := v.(type) {
		case nil:
			return nil, nil
		case Identifiable:
			return o.CID(), nil
		case string:
			if strings.HasPrefix(o, "$") {
				return o, nil
			}
		}
		return nil, fmt.Errorf("%s is not a native object", errors.ValueString(v))
	},
}

func toNumber(v any) (float64, error) {
	var f float64
	switch n := v.(type) {
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("Not a number: %s", errors.ValueString(v))
		}
		f = parsed
	default:
		parsed, ok := convert.ToFloat64(v)
		if !ok {
			return 0, fmt.Errorf("Not a number: %s", errors.ValueString(v))
		}
		f = parsed
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("Invalid number: %s", errors.ValueString(v))
	}
	return f, nil
}

func truthy(v any) bool {
	switch b := v.(type) {
	case nil:
		return false
	case bool:
		return b
	case string:
		return b != ""
	}
	if f, ok := convert.ToFloat64(v); ok {
		return f != 0 && !math.IsNaN(f)
	}
	return true
}
