package schema

import (
	"sort"
	"strings"

	"github.com/loykin/apiload/internal/constants"
	"github.com/loykin/apiload/internal/util"
)

// Methods lists the operation keys recognized under a path item, in index order.
var Methods = []string{"get", "post", "put", "patch", "delete", "head", "options", "trace"}

// Parameter is a non-body operation parameter.
type Parameter struct {
	Name        string `json:"name"`
	In          string `json:"in"`
	Required    bool   `json:"required"`
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
}

// Endpoint describes one (path, method) operation.
type Endpoint struct {
	Path        string         `json:"path"`
	Method      string         `json:"method"`
	OperationID string         `json:"operation_id"`
	Summary     string         `json:"summary,omitempty"`
	Description string         `json:"description,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Parameters  []Parameter    `json:"parameters"`
	RequestBody map[string]any `json:"request_body,omitempty"`
	Responses   map[string]any `json:"responses,omitempty"`
}

// EndpointIndex is an immutable, ordered set of endpoints keyed by (path, method).
type EndpointIndex struct {
	endpoints []*Endpoint
	byKey     map[string]*Endpoint
}

func indexKey(path, method string) string {
	return strings.ToUpper(method) + " " + path
}

// Lookup finds the endpoint for path and method (any case).
func (x *EndpointIndex) Lookup(path, method string) (*Endpoint, bool) {
	if x == nil {
		return nil, false
	}
	ep, ok := x.byKey[indexKey(path, method)]
	return ep, ok
}

// Match is Lookup for a concrete path: an exact key wins, otherwise a
// templated segment such as {id} matches any single non-empty segment.
func (x *EndpointIndex) Match(path, method string) (*Endpoint, bool) {
	if ep, ok := x.Lookup(path, method); ok {
		return ep, true
	}
	want := strings.Split(strings.Trim(path, "/"), "/")
	for _, ep := range x.All() {
		if !strings.EqualFold(ep.Method, method) {
			continue
		}
		if segmentsMatch(strings.Split(strings.Trim(ep.Path, "/"), "/"), want) {
			return ep, true
		}
	}
	return nil, false
}

func segmentsMatch(tmpl, segs []string) bool {
	if len(tmpl) != len(segs) {
		return false
	}
	for i, t := range tmpl {
		if strings.HasPrefix(t, "{") && strings.HasSuffix(t, "}") {
			if segs[i] == "" {
				return false
			}
			continue
		}
		if t != segs[i] {
			return false
		}
	}
	return true
}

// All returns every endpoint sorted by path, then method order.
func (x *EndpointIndex) All() []*Endpoint {
	if x == nil {
		return nil
	}
	return append([]*Endpoint(nil), x.endpoints...)
}

// Len returns the number of endpoints.
func (x *EndpointIndex) Len() int {
	if x == nil {
		return 0
	}
	return len(x.endpoints)
}

// ByTag returns the endpoints carrying tag.
func (x *EndpointIndex) ByTag(tag string) []*Endpoint {
	var out []*Endpoint
	for _, ep := range x.All() {
		for _, t := range ep.Tags {
			if t == tag {
				out = append(out, ep)
				break
			}
		}
	}
	return out
}

func (d *Document) buildIndex() *EndpointIndex {
	idx := &EndpointIndex{byKey: map[string]*Endpoint{}}
	paths, _ := d.root["paths"].(map[string]any)
	names := make([]string, 0, len(paths))
	for p := range paths {
		names = append(names, p)
	}
	sort.Strings(names)

	for _, path := range names {
		item, ok := paths[path].(map[string]any)
		if !ok {
			continue
		}
		if _, hasRef := item[refKey]; hasRef {
			if resolved, ok := d.Resolve(item).(map[string]any); ok {
				item = resolved
			}
		}
		shared := d.parameters(item["parameters"])
		for _, m := range Methods {
			op, ok := item[m].(map[string]any)
			if !ok {
				continue
			}
			ep := d.endpoint(path, m, op, shared)
			idx.endpoints = append(idx.endpoints, ep)
			idx.byKey[indexKey(path, m)] = ep
		}
	}
	return idx
}

func (d *Document) endpoint(path, method string, op map[string]any, shared []map[string]any) *Endpoint {
	ep := &Endpoint{
		Path:        path,
		Method:      strings.ToUpper(method),
		OperationID: util.TrimWithDefault(str(op["operationId"]), method+"_"+path),
		Summary:     str(op["summary"]),
		Description: str(op["description"]),
		Parameters:  []Parameter{},
	}
	if tags, ok := op["tags"].([]any); ok {
		for _, t := range tags {
			ep.Tags = append(ep.Tags, util.AnyToString(t))
		}
	}

	for _, p := range mergeParameters(shared, d.parameters(op["parameters"])) {
		if str(p["in"]) == "body" {
			schema, ok := d.Resolve(p["schema"]).(map[string]any)
			if !ok {
				schema = map[string]any{}
			}
			ep.RequestBody = jsonEnvelope(schema)
			continue
		}
		ep.Parameters = append(ep.Parameters, Parameter{
			Name:        str(p["name"]),
			In:          str(p["in"]),
			Required:    p["required"] == true,
			Type:        parameterType(p),
			Description: str(p["description"]),
		})
	}

	if d.Version == V3 {
		if rb, ok := op["requestBody"].(map[string]any); ok {
			if resolved, ok := d.Resolve(rb).(map[string]any); ok {
				ep.RequestBody = resolved
			}
		}
	}
	if responses, ok := d.Resolve(op["responses"]).(map[string]any); ok {
		ep.Responses = responses
	}
	return ep
}

func jsonEnvelope(schema map[string]any) map[string]any {
	return map[string]any{
		"content": map[string]any{
			constants.ContentTypeJSON: map[string]any{"schema": schema},
		},
	}
}

// parameters resolves every parameter node of a parameter list.
func (d *Document) parameters(v any) []map[string]any {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := d.Resolve(item).(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// mergeParameters keeps path-level parameters not overridden by the
// operation on (name, in), followed by the operation's own parameters.
func mergeParameters(shared, own []map[string]any) []map[string]any {
	if len(shared) == 0 {
		return own
	}
	seen := map[string]bool{}
	for _, p := range own {
		seen[str(p["name"])+"|"+str(p["in"])] = true
	}
	out := make([]map[string]any, 0, len(shared)+len(own))
	for _, p := range shared {
		if !seen[str(p["name"])+"|"+str(p["in"])] {
			out = append(out, p)
		}
	}
	return append(out, own...)
}

func parameterType(p map[string]any) string {
	if t := str(p["type"]); t != "" {
		return t
	}
	if s, ok := p["schema"].(map[string]any); ok {
		return str(s["type"])
	}
	return ""
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
