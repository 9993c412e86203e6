// Package convert holds the loose numeric and map coercions shared by the
// property codecs, the constraint parser and the notification decoder.
package convert

import (
	"encoding/json"
)

// ToFloat64 converts the numeric kinds produced by Go callers, JSON decoding
// and the script runtime to float64.
func ToFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// ToInt converts various numeric types to int, truncating floats.
func ToInt(v any) (int, bool) {
	f, ok := ToFloat64(v)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// ToSlice returns v as []any when it is a slice of interface values, of
// strings, float64s or ints, or a two-element [2]any pair.
func ToSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case [2]any:
		return s[:], true
	case []string:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out, true
	case []float64:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out, true
	case []int:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out, true
	default:
		return nil, false
	}
}

// ToMap extracts a map[string]any from an any value.
func ToMap(value any) (map[string]any, bool) {
	switch m := value.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		converted := make(map[string]any, len(m))
		for key, val := range m {
			if keyString, ok := key.(string); ok {
				converted[keyString] = val
			}
		}
		return converted, true
	default:
		return nil, false
	}
}
