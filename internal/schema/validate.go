package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi2conv"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/xeipuuv/gojsonschema"
)

// Validate checks the document structurally. Swagger 2 documents are
// converted to OpenAPI 3 first.
func (d *Document) Validate(ctx context.Context) error {
	data, err := json.Marshal(d.root)
	if err != nil {
		return fmt.Errorf("encode %s: %w", d.Source, err)
	}

	var doc *openapi3.T
	switch d.Version {
	case V3:
		loader := openapi3.NewLoader()
		loader.Context = ctx
		doc, err = loader.LoadFromData(data)
		if err != nil {
			return fmt.Errorf("load %s: %w", d.Source, err)
		}
	case V2:
		var doc2 openapi2.T
		if err := json.Unmarshal(data, &doc2); err != nil {
			return fmt.Errorf("load %s: %w", d.Source, err)
		}
		doc, err = openapi2conv.ToV3(&doc2)
		if err != nil {
			return fmt.Errorf("convert %s to openapi 3: %w", d.Source, err)
		}
	default:
		return fmt.Errorf("validate %s: unknown version", d.Source)
	}

	if err := doc.Validate(ctx); err != nil {
		return fmt.Errorf("invalid document %s: %w", d.Source, err)
	}
	return nil
}

// BodyValidationError lists the schema violations of a request body.
type BodyValidationError struct {
	Method   string
	Path     string
	Problems []string
}

func (e *BodyValidationError) Error() string {
	return fmt.Sprintf("%s %s: request body does not match schema: %s", e.Method, e.Path, strings.Join(e.Problems, "; "))
}

// JSONSchema returns the JSON request body schema of the endpoint, if any.
func (e *Endpoint) JSONSchema() (map[string]any, bool) {
	content, ok := e.RequestBody["content"].(map[string]any)
	if !ok {
		return nil, false
	}
	for mediaType, v := range content {
		if !strings.Contains(strings.ToLower(mediaType), "json") {
			continue
		}
		mt, ok := v.(map[string]any)
		if !ok {
			continue
		}
		if schema, ok := mt["schema"].(map[string]any); ok && len(schema) > 0 {
			return schema, true
		}
	}
	return nil, false
}

// ValidateBody checks body against the endpoint's JSON request schema.
// Endpoints without one accept any body.
func (e *Endpoint) ValidateBody(body string) error {
	schema, ok := e.JSONSchema()
	if !ok {
		return nil
	}
	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewStringLoader(body))
	if err != nil {
		return fmt.Errorf("%s %s: validate body: %w", e.Method, e.Path, err)
	}
	if result.Valid() {
		return nil
	}
	verr := &BodyValidationError{Method: e.Method, Path: e.Path}
	for _, re := range result.Errors() {
		verr.Problems = append(verr.Problems, re.String())
	}
	return verr
}
