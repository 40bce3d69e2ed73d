package schema

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpoints_OpenAPI3(t *testing.T) {
	doc, err := ParseFile(filepath.Join("testdata", "petstore3.yaml"))
	require.NoError(t, err)

	idx := doc.Endpoints()
	require.Equal(t, 3, idx.Len(), "path without methods must be skipped")

	var keys []string
	for _, ep := range idx.All() {
		keys = append(keys, ep.Method+" "+ep.Path)
	}
	assert.Equal(t, []string{"GET /pets", "POST /pets", "GET /pets/{id}"}, keys)

	list, ok := idx.Lookup("/pets", "get")
	require.True(t, ok)
	assert.Equal(t, "listPets", list.OperationID)
	assert.Equal(t, "List pets", list.Summary)
	assert.Equal(t, []string{"pets"}, list.Tags)
	assert.Equal(t, []Parameter{
		{Name: "X-Trace", In: "header", Type: "string"},
		{Name: "limit", In: "query", Type: "integer"},
	}, list.Parameters)
	assert.Nil(t, list.RequestBody)

	items := list.Responses["200"].(map[string]any)["content"].(map[string]any)["application/json"].(map[string]any)["schema"].(map[string]any)["items"]
	assert.Equal(t, "object", items.(map[string]any)["type"])

	create, ok := idx.Lookup("/pets", "POST")
	require.True(t, ok)
	assert.Equal(t, "post_/pets", create.OperationID)
	schema, ok := create.JSONSchema()
	require.True(t, ok)
	assert.Equal(t, "object", schema["type"])

	byID, ok := idx.Lookup("/pets/{id}", "GET")
	require.True(t, ok)
	assert.Equal(t, []Parameter{{Name: "id", In: "path", Required: true, Type: "string"}}, byID.Parameters)

	assert.Len(t, idx.ByTag("pets"), 2)
	_, ok = idx.Lookup("/pets", "DELETE")
	assert.False(t, ok)
}

func TestEndpoints_Swagger2BodyMatchesOpenAPI3(t *testing.T) {
	v2, err := ParseFile(filepath.Join("testdata", "petstore2.json"))
	require.NoError(t, err)
	v3, err := ParseFile(filepath.Join("testdata", "petstore3.yaml"))
	require.NoError(t, err)

	ep2, ok := v2.Endpoints().Lookup("/pets", "POST")
	require.True(t, ok)
	ep3, ok := v3.Endpoints().Lookup("/pets", "POST")
	require.True(t, ok)

	assert.Equal(t, ep3.RequestBody, ep2.RequestBody)
	assert.Equal(t, []Parameter{{Name: "X-Trace", In: "header", Type: "string"}}, ep2.Parameters,
		"body parameter must be lifted out of the parameter list")
}

func TestEndpoints_OperationOverridesPathParameter(t *testing.T) {
	doc := mustParse(t, `
openapi: 3.0.0
paths:
  /items:
    parameters:
      - {name: q, in: query, description: shared}
      - {name: page, in: query}
    get:
      parameters:
        - {name: q, in: query, required: true, description: own}
`)
	ep, ok := doc.Endpoints().Lookup("/items", "GET")
	require.True(t, ok)
	assert.Equal(t, []Parameter{
		{Name: "page", In: "query"},
		{Name: "q", In: "query", Required: true, Description: "own"},
	}, ep.Parameters)
}

func TestEndpoints_NilIndex(t *testing.T) {
	var idx *EndpointIndex
	assert.Equal(t, 0, idx.Len())
	assert.Nil(t, idx.All())
	_, ok := idx.Lookup("/", "GET")
	assert.False(t, ok)
}

func TestEndpoints_MatchTemplatedPath(t *testing.T) {
	doc, err := ParseFile(filepath.Join("testdata", "petstore3.yaml"))
	require.NoError(t, err)
	idx := doc.Endpoints()

	ep, ok := idx.Match("/pets/42", "get")
	require.True(t, ok)
	assert.Equal(t, "/pets/{id}", ep.Path)

	ep, ok = idx.Match("pets", "POST")
	require.True(t, ok)
	assert.Equal(t, "/pets", ep.Path)

	_, ok = idx.Match("/pets/42/toys", "GET")
	assert.False(t, ok)
	_, ok = idx.Match("/pets/42", "DELETE")
	assert.False(t, ok)
}
