package vars

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

// gjsonSpecial are the characters with a meaning in gjson path syntax.
const gjsonSpecial = `\.*?|#@!=<>%{}[]()"',:`

// jsonPath turns plain key/index segments into a gjson path that matches
// them literally. Numeric segments index arrays and name keys of objects.
func jsonPath(segments []string) (string, bool) {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if seg == "" {
			return "", false
		}
		var b strings.Builder
		for _, r := range seg {
			if strings.ContainsRune(gjsonSpecial, r) {
				b.WriteByte('\\')
			}
			b.WriteRune(r)
		}
		parts = append(parts, b.String())
	}
	return strings.Join(parts, "."), true
}

// lookupJSON walks segments through the JSON document raw.
func lookupJSON(raw string, segments []string) (gjson.Result, bool) {
	if !gjson.Valid(raw) {
		return gjson.Result{}, false
	}
	if len(segments) == 0 {
		res := gjson.Parse(raw)
		return res, res.Type != gjson.Null
	}
	path, ok := jsonPath(segments)
	if !ok {
		return gjson.Result{}, false
	}
	res := gjson.Get(raw, path)
	if !res.Exists() || res.Type == gjson.Null {
		return gjson.Result{}, false
	}
	return res, true
}

// text renders a JSON value for substitution into a string.
func text(res gjson.Result) string {
	switch res.Type {
	case gjson.String:
		return res.Str
	case gjson.JSON:
		return compact(res.Raw)
	default:
		return res.Raw
	}
}

// value converts a JSON value into what the variable store keeps.
func value(res gjson.Result) any {
	switch res.Type {
	case gjson.String:
		return res.Str
	case gjson.Number:
		return json.Number(res.Raw)
	case gjson.True:
		return true
	case gjson.False:
		return false
	default:
		return compact(res.Raw)
	}
}

func compact(raw string) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(raw)); err != nil {
		return raw
	}
	return buf.String()
}
