package constraint

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-drift/tether/pkg/errors"
	"github.com/go-drift/tether/pkg/internal/convert"
)

// Percent is a percentage of the parent's extent along the constrained axis.
// Values are nominally 0-100 but are not clamped.
type Percent struct {
	percent float64
}

// leadingInt matches the integer prefix a percent string is read from, so
// "42.7%" yields 42.
var leadingInt = regexp.MustCompile(`^\s*[+-]?[0-9]+`)

// NewPercent returns a Percent for value. NaN is rejected.
func NewPercent(value float64) (Percent, error) {
	if math.IsNaN(value) {
		return Percent{}, invalid("constraint.NewPercent", errors.KindInput,
			"Invalid Percent %s", errors.ValueString(value))
	}
	return Percent{percent: value}, nil
}

// MustPercent is like NewPercent but panics on error.
func MustPercent(value float64) Percent {
	p, err := NewPercent(value)
	if err != nil {
		panic(err)
	}
	return p
}

// Value returns the percentage number (42 for 42%).
func (p Percent) Value() float64 {
	return p.percent
}

// Of returns the share of extent this percentage represents.
func (p Percent) Of(extent float64) float64 {
	return extent * p.percent / 100
}

func (p Percent) String() string {
	return strconv.FormatFloat(p.percent, 'f', -1, 64) + "%"
}

// PercentFrom converts a percent-like value: a Percent, a *Percent, a map
// with a "percent" number, or a string of a number followed by "%".
func PercentFrom(value any) (Percent, error) {
	switch v := value.(type) {
	case Percent:
		return v, nil
	case *Percent:
		if v != nil {
			return *v, nil
		}
	case string:
		return parsePercentString(v)
	case map[string]any:
		raw, ok := v["percent"]
		if !ok {
			return Percent{}, invalid("constraint.PercentFrom", errors.KindInput,
				"Percent-like object missing percent value")
		}
		n, ok := convert.ToFloat64(raw)
		if !ok {
			return Percent{}, invalid("constraint.PercentFrom", errors.KindInput,
				"Invalid Percent %s", errors.ValueString(raw))
		}
		return NewPercent(n)
	}
	return Percent{}, invalid("constraint.PercentFrom", errors.KindInput,
		"%s is not a valid PercentValue", errors.ValueString(value))
}

// IsValidPercentValue reports whether PercentFrom accepts value.
func IsValidPercentValue(value any) bool {
	_, err := PercentFrom(value)
	return err == nil
}

func parsePercentString(s string) (Percent, error) {
	if !strings.HasSuffix(s, "%") {
		return Percent{}, badPercentString(s)
	}
	digits := leadingInt.FindString(strings.TrimSuffix(s, "%"))
	if digits == "" {
		return Percent{}, badPercentString(s)
	}
	n, err := strconv.ParseInt(strings.TrimSpace(digits), 10, 64)
	if err != nil {
		return Percent{}, badPercentString(s)
	}
	return Percent{percent: float64(n)}, nil
}

func badPercentString(s string) error {
	return invalid("constraint.PercentFrom", errors.KindInput,
		"Invalid percent string %s: It must be a number followed by \"%%\".", s)
}

// parseError carries the exact validation message and matches
// errors.ErrInvalidConstraint.
type parseError struct {
	msg string
}

func (e *parseError) Error() string { return e.msg }

func (e *parseError) Is(target error) bool { return target == errors.ErrInvalidConstraint }

func invalid(op string, kind errors.Kind, format string, args ...any) error {
	return &errors.TetherError{
		Op:   op,
		Kind: kind,
		Err:  &parseError{msg: fmt.Sprintf(format, args...)},
	}
}

// Message returns the validation message of a constraint error without the
// operation prefix, or err.Error() for other errors.
func Message(err error) string {
	var pe *parseError
	if errors.As(err, &pe) {
		return pe.msg
	}
	return err.Error()
}
