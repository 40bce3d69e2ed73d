package util

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// IsJSON reports whether s is a well-formed JSON document.
func IsJSON(s string) bool {
	b := bytes.TrimSpace([]byte(s))
	return len(b) > 0 && json.Valid(b)
}

// AnyToString renders scalars the way they appear in URLs and templates:
// integral floats without a decimal point, composites as compact JSON.
func AnyToString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case fmt.Stringer:
		return val.String()
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return AnyToString(float64(val))
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		b = bytes.TrimSpace(b)
		if len(b) >= 2 && b[0] == '"' && b[len(b)-1] == '"' {
			return string(b[1 : len(b)-1])
		}
		return string(b)
	}
}

// MapStrings returns a copy of v with fn applied to every string leaf of
// nested maps and slices. Other scalars are returned as is.
func MapStrings(v any, fn func(string) string) any {
	switch t := v.(type) {
	case string:
		return fn(t)
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[k] = MapStrings(vv, fn)
		}
		return m
	case map[string]string:
		m := make(map[string]string, len(t))
		for k, vv := range t {
			m[k] = fn(vv)
		}
		return m
	case []any:
		arr := make([]any, len(t))
		for i := range t {
			arr[i] = MapStrings(t[i], fn)
		}
		return arr
	case []string:
		arr := make([]string, len(t))
		for i := range t {
			arr[i] = fn(t[i])
		}
		return arr
	default:
		return v
	}
}

// NormalizeKeys converts map[any]any nodes (YAML mappings with non-string
// keys) into map[string]any, recursively.
func NormalizeKeys(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, vv := range t {
			t[k] = NormalizeKeys(vv)
		}
		return t
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[fmt.Sprint(k)] = NormalizeKeys(vv)
		}
		return m
	case []any:
		for i := range t {
			t[i] = NormalizeKeys(t[i])
		}
		return t
	default:
		return v
	}
}
