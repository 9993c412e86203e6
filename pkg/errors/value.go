package errors

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// ValueString renders v for use in validation messages. Strings are quoted,
// nil renders as null, and maps and slices render as compact literals.
func ValueString(v any) string {
	var sb strings.Builder
	writeValue(&sb, v, 0)
	return sb.String()
}

func writeValue(sb *strings.Builder, v any, depth int) {
	if depth > 3 {
		sb.WriteString("...")
		return
	}
	switch x := v.(type) {
	case nil:
		sb.WriteString("null")
	case string:
		sb.WriteString(strconv.Quote(x))
	case bool:
		sb.WriteString(strconv.FormatBool(x))
	case float64:
		sb.WriteString(formatFloat(x))
	case float32:
		sb.WriteString(formatFloat(float64(x)))
	case int:
		sb.WriteString(strconv.Itoa(x))
	case fmt.Stringer:
		sb.WriteString(x.String())
	case error:
		sb.WriteString(x.Error())
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteString("{")
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(k)
			sb.WriteString(": ")
			writeValue(sb, x[k], depth+1)
		}
		sb.WriteString("}")
	case []any:
		sb.WriteString("[")
		for i, e := range x {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeValue(sb, e, depth+1)
		}
		sb.WriteString("]")
	default:
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Slice, reflect.Array:
			sb.WriteString("[")
			for i := 0; i < rv.Len(); i++ {
				if i > 0 {
					sb.WriteString(", ")
				}
				writeValue(sb, rv.Index(i).Interface(), depth+1)
			}
			sb.WriteString("]")
		default:
			fmt.Fprintf(sb, "%v", v)
		}
	}
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
