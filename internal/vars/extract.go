package vars

import "strings"

// Extract walks each dot-separated path of rules through the JSON body and
// returns the values that resolved. Paths that do not resolve are skipped.
func Extract(body string, rules map[string]string) map[string]any {
	out := map[string]any{}
	for name, path := range rules {
		path = strings.TrimSpace(path)
		if name == "" || path == "" {
			continue
		}
		res, ok := lookupJSON(body, strings.Split(path, "."))
		if !ok {
			continue
		}
		out[name] = value(res)
	}
	return out
}
