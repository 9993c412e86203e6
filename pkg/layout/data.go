package layout

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"

	"github.com/go-drift/tether/pkg/constraint"
	"github.com/go-drift/tether/pkg/errors"
	"github.com/go-drift/tether/pkg/internal/convert"
)

// Data is the layout data of one widget. Nil fields are "auto".
type Data struct {
	Left     *constraint.Constraint
	Right    *constraint.Constraint
	Top      *constraint.Constraint
	Bottom   *constraint.Constraint
	CenterX  *constraint.Constraint
	CenterY  *constraint.Constraint
	Baseline *constraint.Constraint
	Width    *float64
	Height   *float64
}

// Anchor returns a pointer to c, for building Data literals.
func Anchor(c constraint.Constraint) *constraint.Constraint {
	return &c
}

// Fixed returns a pointer to v, for building Data literals.
func Fixed(v float64) *float64 {
	return &v
}

// Shorthand layout data values.
var (
	Center   = Data{CenterX: Anchor(constraint.Zero), CenterY: Anchor(constraint.Zero)}
	Stretch  = Data{Left: Anchor(constraint.Zero), Top: Anchor(constraint.Zero), Right: Anchor(constraint.Zero), Bottom: Anchor(constraint.Zero)}
	StretchX = Data{Left: Anchor(constraint.Zero), Right: Anchor(constraint.Zero)}
	StretchY = Data{Top: Anchor(constraint.Zero), Bottom: Anchor(constraint.Zero)}
)

var shorthands = map[string]Data{
	"center":   Center,
	"stretch":  Stretch,
	"stretchX": StretchX,
	"stretchY": StretchY,
}

// Attributes lists the layout data keys in canonical order.
var Attributes = []string{"left", "right", "top", "bottom", "centerX", "centerY", "baseline", "width", "height"}

// DataFrom parses a Data, a shorthand string ("center", "stretch",
// "stretchX", "stretchY"), or a map of attributes. Constraint attributes
// accept every shape constraint.From accepts, including true; "auto" and
// nil leave an attribute unset.
func DataFrom(value any) (Data, error) {
	switch v := value.(type) {
	case nil:
		return Data{}, nil
	case Data:
		return v, nil
	case *Data:
		if v == nil {
			return Data{}, nil
		}
		return *v, nil
	case string:
		if d, ok := shorthands[strings.TrimSpace(v)]; ok {
			return d, nil
		}
		return Data{}, invalidData("Invalid layoutData %s", errors.ValueString(v))
	}
	m, ok := convert.ToMap(value)
	if !ok {
		return Data{}, invalidData("Invalid layoutData %s", errors.ValueString(value))
	}
	var d Data
	for _, key := range slices.Sorted(maps.Keys(m)) {
		raw := m[key]
		if raw == nil || raw == "auto" {
			continue
		}
		switch key {
		case "width", "height":
			f, ok := convert.ToFloat64(raw)
			if !ok || f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
				return Data{}, invalidData("Invalid %s %s", key, errors.ValueString(raw))
			}
			if key == "width" {
				d.Width = Fixed(f)
			} else {
				d.Height = Fixed(f)
			}
		case "left", "right", "top", "bottom", "centerX", "centerY", "baseline":
			c, err := constraint.From(raw)
			if err != nil {
				return Data{}, err
			}
			*d.slot(key) = &c
		default:
			return Data{}, invalidData("Invalid layoutData property %q", key)
		}
	}
	return d, nil
}

func (d *Data) slot(key string) **constraint.Constraint {
	switch key {
	case "left":
		return &d.Left
	case "right":
		return &d.Right
	case "top":
		return &d.Top
	case "bottom":
		return &d.Bottom
	case "centerX":
		return &d.CenterX
	case "centerY":
		return &d.CenterY
	case "baseline":
		return &d.Baseline
	}
	return nil
}

// Merge returns d with every attribute set in o overriding d.
func (d Data) Merge(o Data) Data {
	for _, key := range Attributes[:7] {
		if c := *o.slot(key); c != nil {
			*d.slot(key) = c
		}
	}
	if o.Width != nil {
		d.Width = o.Width
	}
	if o.Height != nil {
		d.Height = o.Height
	}
	return d
}

// IsZero reports whether every attribute is auto.
func (d Data) IsZero() bool {
	return d == Data{}
}

// Map returns the attributes that are set, constraints as [reference,
// offset] arrays.
func (d Data) Map() map[string]any {
	out := make(map[string]any)
	for _, key := range Attributes[:7] {
		if c := *d.slot(key); c != nil {
			out[key] = c.ToArray()
		}
	}
	if d.Width != nil {
		out["width"] = *d.Width
	}
	if d.Height != nil {
		out["height"] = *d.Height
	}
	return out
}

// String renders the set attributes in canonical order.
func (d Data) String() string {
	var parts []string
	for _, key := range Attributes[:7] {
		if c := *d.slot(key); c != nil {
			parts = append(parts, fmt.Sprintf("%s: %s", key, c))
		}
	}
	if d.Width != nil {
		parts = append(parts, fmt.Sprintf("width: %s", errors.ValueString(*d.Width)))
	}
	if d.Height != nil {
		parts = append(parts, fmt.Sprintf("height: %s", errors.ValueString(*d.Height)))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func invalidData(format string, args ...any) error {
	return &errors.TetherError{
		Op:   "layout.DataFrom",
		Kind: errors.KindInput,
		Err:  fmt.Errorf(format, args...),
	}
}
