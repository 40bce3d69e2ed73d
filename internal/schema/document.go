package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/loykin/apiload/internal/util"
)

var (
	ErrUnsupportedFormat = errors.New("document is neither valid JSON nor YAML")
	ErrEmptyDocument     = errors.New("document is empty")
	ErrNotOpenAPI        = errors.New("not an OpenAPI 2 or 3 document")
)

// SchemaError is returned when a document cannot be parsed. Kind is one of
// the sentinel errors above.
type SchemaError struct {
	Source string
	Kind   error
	Cause  error
}

func (e *SchemaError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("schema %s: %v: %v", e.Source, e.Kind, e.Cause)
	}
	return fmt.Sprintf("schema %s: %v", e.Source, e.Kind)
}

func (e *SchemaError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// Version is the OpenAPI major version of a document.
type Version int

const (
	V2 Version = 2
	V3 Version = 3
)

func (v Version) String() string {
	switch v {
	case V2:
		return "swagger 2"
	case V3:
		return "openapi 3"
	default:
		return "unknown"
	}
}

// Document is a parsed OpenAPI document with its endpoint index.
type Document struct {
	Source        string
	Version       Version
	VersionString string
	Title         string
	APIVersion    string

	root  map[string]any
	index *EndpointIndex
}

// ParseFile reads and parses the document at path.
func ParseFile(path string) (*Document, error) {
	clean := filepath.Clean(path)
	// #nosec G304 -- path is supplied by the operator
	data, err := os.ReadFile(clean)
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", clean, err)
	}
	return Parse(clean, data)
}

// Parse decodes data as an OpenAPI document. The extension of name selects
// the encoding; without a known extension JSON is tried before YAML.
func Parse(name string, data []byte) (*Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &SchemaError{Source: name, Kind: ErrEmptyDocument}
	}
	raw, err := decode(name, data)
	if err != nil {
		return nil, &SchemaError{Source: name, Kind: ErrUnsupportedFormat, Cause: err}
	}
	if raw == nil {
		return nil, &SchemaError{Source: name, Kind: ErrEmptyDocument}
	}
	root, ok := raw.(map[string]any)
	if !ok {
		return nil, &SchemaError{Source: name, Kind: ErrNotOpenAPI, Cause: fmt.Errorf("top level is %T, not a mapping", raw)}
	}
	if len(root) == 0 {
		return nil, &SchemaError{Source: name, Kind: ErrEmptyDocument}
	}

	d := &Document{Source: name, root: root}
	switch {
	case hasVersionPrefix(root["openapi"], "3"):
		d.Version = V3
		d.VersionString = util.AnyToString(root["openapi"])
	case hasVersionPrefix(root["swagger"], "2"):
		d.Version = V2
		d.VersionString = util.AnyToString(root["swagger"])
	default:
		return nil, &SchemaError{Source: name, Kind: ErrNotOpenAPI}
	}
	if info, ok := root["info"].(map[string]any); ok {
		d.Title = util.AnyToString(info["title"])
		d.APIVersion = util.AnyToString(info["version"])
	}
	d.index = d.buildIndex()
	return d, nil
}

func hasVersionPrefix(v any, major string) bool {
	if v == nil {
		return false
	}
	return strings.HasPrefix(strings.TrimSpace(util.AnyToString(v)), major)
}

func decode(name string, data []byte) (any, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return decodeYAML(data)
	case ".json":
		return decodeJSON(data)
	}
	v, jerr := decodeJSON(data)
	if jerr == nil {
		return v, nil
	}
	v, yerr := decodeYAML(data)
	if yerr == nil {
		return v, nil
	}
	return nil, errors.Join(jerr, yerr)
}

func decodeJSON(data []byte) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func decodeYAML(data []byte) (any, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return util.NormalizeKeys(v), nil
}

// Root exposes the raw document tree. Callers must treat it as read-only.
func (d *Document) Root() map[string]any { return d.root }

// Endpoints returns the endpoint index built at parse time.
func (d *Document) Endpoints() *EndpointIndex { return d.index }

// BaseURL returns the first server URL (OpenAPI 3) or scheme://host+basePath
// (Swagger 2). Server variables are replaced by their defaults.
func (d *Document) BaseURL() (string, bool) {
	if servers, ok := d.root["servers"].([]any); ok && len(servers) > 0 {
		if srv, ok := servers[0].(map[string]any); ok {
			if u, ok := srv["url"].(string); ok && u != "" {
				return expandServerVariables(u, srv["variables"]), true
			}
		}
	}
	host, _ := d.root["host"].(string)
	if host == "" {
		return "", false
	}
	scheme := "http"
	if schemes, ok := d.root["schemes"].([]any); ok && len(schemes) > 0 {
		if s, ok := schemes[0].(string); ok && s != "" {
			scheme = s
		}
	}
	basePath, _ := d.root["basePath"].(string)
	return scheme + "://" + host + basePath, true
}

func expandServerVariables(u string, vars any) string {
	m, ok := vars.(map[string]any)
	if !ok {
		return u
	}
	for name, v := range m {
		def, ok := v.(map[string]any)
		if !ok || def["default"] == nil {
			continue
		}
		u = strings.ReplaceAll(u, "{"+name+"}", util.AnyToString(def["default"]))
	}
	return u
}
