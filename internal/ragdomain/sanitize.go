package ragdomain

import (
	"encoding/json"
	"time"
)

const (
	maxPropStringChars = 200
	maxSanitizeDepth    = 10
)

// Sanitize coerces a value to a graph-compatible primitive per §4.4's
// metadata sanitization rules: nil becomes "", time.Time becomes an ISO
// 8601 string, homogeneous scalar slices stay as slices, anything else
// (mixed slices, nested maps) becomes a JSON string. Recursion is capped
// at maxSanitizeDepth to guard against cycles. Sanitize is idempotent:
// Sanitize(Sanitize(v)) == Sanitize(v).
func Sanitize(v any) any {
	return sanitizeDepth(v, 0)
}

func sanitizeDepth(v any, depth int) any {
	if depth >= maxSanitizeDepth {
		return jsonString(v)
	}
	switch t := v.(type) {
	case nil:
		return ""
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case *time.Time:
		if t == nil {
			return ""
		}
		return t.UTC().Format(time.RFC3339)
	case string, bool, int, int32, int64, float32, float64:
		return t
	case []string:
		return t
	case []int:
		return t
	case []int64:
		return t
	case []float64:
		return t
	case map[string]any:
		// Maps are never kept as native graph properties; always JSON.
		sanitized := make(map[string]any, len(t))
		for k, val := range t {
			sanitized[k] = sanitizeDepth(val, depth+1)
		}
		return jsonString(sanitized)
	case []any:
		if homogeneous(t) {
			return t
		}
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = sanitizeDepth(e, depth+1)
		}
		return jsonString(out)
	default:
		return jsonString(t)
	}
}

// homogeneous reports whether every element of a []any slice has the same
// underlying scalar kind (all strings, all numbers, …), per §3.1.
func homogeneous(vals []any) bool {
	if len(vals) == 0 {
		return true
	}
	kind := scalarKind(vals[0])
	if kind == "" {
		return false
	}
	for _, v := range vals[1:] {
		if scalarKind(v) != kind {
			return false
		}
	}
	return true
}

func scalarKind(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "bool"
	case int, int32, int64, float32, float64:
		return "number"
	default:
		return ""
	}
}

func jsonString(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// TruncateProp caps a scalar string property at maxPropStringChars,
// matching §4.4's "values > 200 chars truncated" rule.
func TruncateProp(s string) string {
	r := []rune(s)
	if len(r) <= maxPropStringChars {
		return s
	}
	return string(r[:maxPropStringChars])
}
