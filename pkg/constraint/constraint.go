// Package constraint implements the symbolic layout anchor used by layout
// data: a reference (percentage, sibling object, selector, or the prev()/
// next() sentinels) plus a pixel offset.
//
// From is the single entry point for every literal shape a caller may use:
//
//	constraint.From(16)             // 16px from the parent edge
//	constraint.From("50% 10")       // 10px past the parent's midpoint
//	constraint.From("#header 8")    // 8px from the sibling with id "header"
//	constraint.From("prev()")       // flush against the previous sibling
//	constraint.From([]any{constraint.MustPercent(25), 0})
//
// Sentinel references are resolved against sibling order at layout time,
// not when the constraint is built.
package constraint

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-drift/tether/pkg/errors"
	"github.com/go-drift/tether/pkg/internal/convert"
)

var numberPattern = regexp.MustCompile(`^[+-]?([0-9]+|[0-9]*\.[0-9]+)$`)

var whitespace = regexp.MustCompile(`\s+`)

// Constraint is an immutable anchor plus offset.
type Constraint struct {
	reference Reference
	offset    float64
}

// Zero is the zero-percent, zero-offset constraint.
var Zero = Constraint{reference: PercentRef(Percent{}), offset: 0}

// New validates reference and offset and builds a Constraint. reference may
// be a Reference, a Percent, a selector string or an Identifiable; offset
// must be a finite number.
func New(reference any, offset any) (Constraint, error) {
	ref, err := checkSiblingReference(reference)
	if err != nil {
		return Constraint{}, err
	}
	n, ok := convert.ToFloat64(offset)
	if !ok || math.IsNaN(n) || math.IsInf(n, 0) {
		return Constraint{}, invalid("constraint.New", errors.KindInput,
			"Invalid number %s", errors.ValueString(offset))
	}
	return Constraint{reference: ref, offset: n}, nil
}

// Reference returns the anchor.
func (c Constraint) Reference() Reference { return c.reference }

// Offset returns the pixel offset from the anchor.
func (c Constraint) Offset() float64 { return c.offset }

// Equal reports whether both constraints have equal references and offsets.
func (c Constraint) Equal(o Constraint) bool {
	return c.offset == o.offset && c.reference.Equal(o.reference)
}

func (c Constraint) String() string {
	return ReferenceString(c.reference) + " " + strconv.FormatFloat(c.offset, 'f', -1, 64)
}

// ToArray returns [reference, offset]; From accepts the result.
func (c Constraint) ToArray() []any {
	return []any{c.reference, c.offset}
}

// From parses any accepted constraint literal. Shapes are tried in order:
// true, string, two-element array, number, reference-like value, and an
// object with "reference"/"offset" keys.
func From(value any) (Constraint, error) {
	switch v := value.(type) {
	case bool:
		if v {
			return Zero, nil
		}
	case Constraint:
		return v, nil
	case *Constraint:
		if v != nil {
			return *v, nil
		}
	case string:
		return fromString(v)
	}
	if arr, ok := convert.ToSlice(value); ok {
		return fromArray(arr)
	}
	if n, ok := convert.ToFloat64(value); ok {
		if n == 0 {
			return Zero, nil
		}
		return New(PercentRef(Percent{}), NormalizeNumber(n))
	}
	if isReferenceLike(value) {
		ref, err := NormalizeReference(value)
		if err != nil {
			return Constraint{}, err
		}
		return Constraint{reference: ref}, nil
	}
	if m, ok := convert.ToMap(value); ok {
		_, hasRef := m["reference"]
		_, hasOffset := m["offset"]
		if hasRef || hasOffset {
			ref := m["reference"]
			if isFalsy(ref) {
				ref = PercentRef(Percent{})
			}
			offset := m["offset"]
			if isFalsy(offset) {
				offset = 0.0
			}
			return fromArray([]any{ref, offset})
		}
	}
	return Constraint{}, invalid("constraint.From", errors.KindInput,
		"Invalid constraint %s", errors.ValueString(value))
}

// MustFrom is like From but panics on error. Intended for literals.
func MustFrom(value any) Constraint {
	c, err := From(value)
	if err != nil {
		panic(err)
	}
	return c
}

// NormalizeNumber parses numeric strings and returns every other value
// unchanged; New reports non-numbers.
func NormalizeNumber(value any) any {
	if s, ok := value.(string); ok && numberPattern.MatchString(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return value
}

func fromString(s string) (Constraint, error) {
	str := strings.TrimSpace(s)
	if strings.Contains(str, " ") {
		parts := whitespace.Split(str, -1)
		arr := make([]any, len(parts))
		for i, p := range parts {
			arr[i] = p
		}
		return fromArray(arr)
	}
	if numberPattern.MatchString(str) {
		f, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return Constraint{}, invalid("constraint.From", errors.KindInput,
				"Invalid number %s", errors.ValueString(str))
		}
		return Constraint{reference: PercentRef(Percent{}), offset: f}, nil
	}
	ref, err := NormalizeReference(str)
	if err != nil {
		return Constraint{}, err
	}
	return Constraint{reference: ref}, nil
}

func fromArray(arr []any) (Constraint, error) {
	if len(arr) != 2 {
		return Constraint{}, invalid("constraint.From", errors.KindInput,
			"Constraint array requires exactly 2 elements but has %d", len(arr))
	}
	ref, err := NormalizeReference(arr[0])
	if err != nil {
		return Constraint{}, err
	}
	return New(ref, NormalizeNumber(arr[1]))
}

func isReferenceLike(value any) bool {
	switch v := value.(type) {
	case Reference, *Reference:
		return true
	case Identifiable:
		return v != nil
	}
	return IsValidPercentValue(value)
}

func isFalsy(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case bool:
		return !x
	case string:
		return x == ""
	}
	if n, ok := convert.ToFloat64(v); ok {
		return n == 0 || math.IsNaN(n)
	}
	return false
}
