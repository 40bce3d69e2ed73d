package vars

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/apiload/internal/task"
	"github.com/loykin/apiload/internal/transport"
)

func history(results ...*task.Result) task.History {
	return task.History(results)
}

func ok(body string) *task.Result {
	return &task.Result{Response: &transport.Response{
		StatusCode: 201,
		Headers:    map[string]string{"content-type": "application/json", "x-request-id": "r-1"},
		Body:       body,
		URL:        "http://api.test/users",
		Method:     "POST",
	}}
}

func failed() *task.Result {
	return &task.Result{Err: errors.New("boom")}
}

func TestSubstituter_CrossTaskJSON(t *testing.T) {
	s := &Substituter{
		Vars:    NewStore(),
		History: history(ok(`{"id":42,"name":"ann","tags":["a","b"],"meta":{"k": "v"},"gone":null}`)),
	}

	cases := map[string]string{
		"user/{{0.response.json.id}}":         "user/42",
		"{{ 0.response.json.name }}":          "ann",
		"{{0.response.json.tags.1}}":          "b",
		"{{0.response.json.meta}}":            `{"k":"v"}`,
		"{{0.response.status_code}}":          "201",
		"{{0.response.headers.X-Request-Id}}": "r-1",
		"{{0.response.url}}":                  "http://api.test/users",
		"{{0.response.method}}":               "POST",
		"{{0.response.json.missing}}":         "{{0.response.json.missing}}",
		"{{0.response.json.gone}}":            "{{0.response.json.gone}}",
		"{{0.response.json.tags.5}}":          "{{0.response.json.tags.5}}",
		"{{0.response.body.extra}}":           "{{0.response.body.extra}}",
		"{{1.response.json.id}}":              "{{1.response.json.id}}",
		"a={{0.response.json.id}}&b={{nope}}": "a=42&b={{nope}}",
	}
	for in, want := range cases {
		assert.Equal(t, want, s.String(in), in)
	}
}

func TestSubstituter_WholeBody(t *testing.T) {
	s := &Substituter{History: history(ok(`{ "a": [1, 2] }`))}
	assert.Equal(t, `{"a":[1,2]}`, s.String("{{0.response.json}}"))
	assert.Equal(t, `{ "a": [1, 2] }`, s.String("{{0.response.body}}"))
}

func TestSubstituter_NonJSONBody(t *testing.T) {
	s := &Substituter{History: history(ok("plain text"))}
	assert.Equal(t, "{{0.response.json.id}}", s.String("{{0.response.json.id}}"))
	assert.Equal(t, "plain text", s.String("{{0.response.body}}"))
}

func TestSubstituter_FailedEntryIsUnresolved(t *testing.T) {
	s := &Substituter{Vars: NewStore(), History: history(failed(), ok(`{"id":7}`))}
	assert.Equal(t, "{{0.response.json.id}}", s.String("{{0.response.json.id}}"))
	assert.Equal(t, "7", s.String("{{1.response.json.id}}"))
}

func TestSubstituter_CrossTaskDoesNotFallBackToVars(t *testing.T) {
	st := NewStore()
	st.Set("0.response.json.id", "shadow")
	s := &Substituter{Vars: st, History: history()}
	assert.Equal(t, "{{0.response.json.id}}", s.String("{{0.response.json.id}}"))
}

func TestSubstituter_Variables(t *testing.T) {
	st := NewStore()
	st.Set("token", "abc")
	st.Set("count", json.Number("3"))
	st.Set("ratio", 2.0)
	st.Set("on", true)
	s := &Substituter{Vars: st}

	assert.Equal(t, "Bearer abc", s.String("Bearer {{token}}"))
	assert.Equal(t, "3 2 true", s.String("{{count}} {{ratio}} {{on}}"))
	assert.Equal(t, "{{unknown_var}}", s.String("{{unknown_var}}"))
	assert.Equal(t, "no templates", s.String("no templates"))
}

func TestSubstituter_BuiltIns(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	s := &Substituter{Now: func() time.Time { return fixed }}

	assert.Equal(t, "2024-03-01T12:30:00Z", s.String("{{timestamp}}"))
	assert.Equal(t, "1709296200", s.String("{{unix_timestamp}}"))

	st := NewStore()
	st.Set("timestamp", "mine")
	s.Vars = st
	assert.Equal(t, "mine", s.String("{{timestamp}}"))
}

func TestSubstituter_Value(t *testing.T) {
	st := NewStore()
	st.Set("id", "9")
	s := &Substituter{Vars: st}

	in := map[string]any{
		"id":    "{{id}}",
		"n":     3,
		"items": []any{"{{id}}", map[string]any{"x": "{{missing}}"}},
	}
	out, isMap := s.Value(in).(map[string]any)
	require.True(t, isMap)
	assert.Equal(t, "9", out["id"])
	assert.Equal(t, 3, out["n"])
	assert.Equal(t, []any{"9", map[string]any{"x": "{{missing}}"}}, out["items"])
	assert.Equal(t, "{{id}}", in["id"])
}

func TestSubstituter_Lookup(t *testing.T) {
	s := &Substituter{History: history(ok(`{"id":1}`))}

	v, found := s.Lookup("0.response.json.id")
	assert.True(t, found)
	assert.Equal(t, "1", v)

	_, found = s.Lookup("x.response.json.id")
	assert.False(t, found)
	_, found = s.Lookup("")
	assert.False(t, found)
	_, found = s.Lookup("0.response.cookies")
	assert.False(t, found)
}
