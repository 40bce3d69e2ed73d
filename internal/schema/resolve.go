package schema

import "strings"

const refKey = "$ref"

// Resolve returns a copy of node with every internal "#/..." reference
// replaced by its target. Keys next to a $ref only fill gaps in the resolved
// target. References that cannot be followed, or that point back into a
// chain already being resolved, are left in place.
func (d *Document) Resolve(node any) any {
	return d.resolve(node, nil)
}

func (d *Document) resolve(node any, visiting map[string]bool) any {
	switch n := node.(type) {
	case map[string]any:
		if ref, ok := n[refKey].(string); ok {
			return d.resolveRef(n, ref, visiting)
		}
		out := make(map[string]any, len(n))
		for k, v := range n {
			out[k] = d.resolve(v, visiting)
		}
		return out
	case []any:
		out := make([]any, len(n))
		for i, item := range n {
			if m, ok := item.(map[string]any); ok {
				out[i] = d.resolve(m, visiting)
			} else {
				out[i] = item
			}
		}
		return out
	default:
		return node
	}
}

func (d *Document) resolveRef(n map[string]any, ref string, visiting map[string]bool) any {
	if visiting[ref] {
		return n
	}
	target, ok := d.lookup(ref)
	if !ok {
		return n
	}
	next := make(map[string]bool, len(visiting)+1)
	for k := range visiting {
		next[k] = true
	}
	next[ref] = true

	resolved, ok := d.resolve(target, next).(map[string]any)
	if !ok {
		return n
	}
	out := make(map[string]any, len(resolved)+len(n))
	for k, v := range resolved {
		out[k] = v
	}
	for k, v := range n {
		if k == refKey {
			continue
		}
		if _, exists := out[k]; !exists {
			out[k] = d.resolve(v, visiting)
		}
	}
	return out
}

// lookup follows a "#/a/b" pointer from the document root. Only mapping
// targets are accepted.
func (d *Document) lookup(ref string) (map[string]any, bool) {
	if !strings.HasPrefix(ref, "#/") {
		return nil, false
	}
	var cur any = d.root
	for _, part := range strings.Split(strings.TrimPrefix(ref, "#/"), "/") {
		if part == "" {
			continue
		}
		part = strings.ReplaceAll(strings.ReplaceAll(part, "~1", "/"), "~0", "~")
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	target, ok := cur.(map[string]any)
	return target, ok
}
