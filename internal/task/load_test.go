package task

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func TestLoad_SkipsMalformedEntry(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "tasks.yaml", `
tasks:
  - config_name: users
    method: post
    path: /users
    headers:
      X-Count: 5
    body:
      name: alice
    delay_before: 0.5
    delay_after: 2
    extract:
      user_id: data.id
    expect_status: [200, 201]
  - config_name: users
    path: /missing-method
`)
	res, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(res.Tasks) != 1 || len(res.Errors) != 1 {
		t.Fatalf("tasks=%d errors=%d", len(res.Tasks), len(res.Errors))
	}

	got := res.Tasks[0]
	if got.Method != "POST" || got.Path != "/users" || got.ConfigName != "users" {
		t.Fatalf("unexpected task: %+v", got)
	}
	if got.Headers["X-Count"] != "5" {
		t.Fatalf("headers = %v", got.Headers)
	}
	if got.DelayBefore != 500*time.Millisecond || got.DelayAfter != 2*time.Second {
		t.Fatalf("delays = %v / %v", got.DelayBefore, got.DelayAfter)
	}
	if got.Extract["user_id"] != "data.id" {
		t.Fatalf("extract = %v", got.Extract)
	}
	if !got.StatusAllowed(201) || got.StatusAllowed(404) {
		t.Fatalf("expect_status not applied: %v", got.ExpectStatus)
	}
	body, ok := got.Body.(map[string]any)
	if !ok || body["name"] != "alice" {
		t.Fatalf("body = %#v", got.Body)
	}

	perr := res.Errors[0]
	if perr.Index != 1 || perr.Task.Path != "/missing-method" {
		t.Fatalf("unexpected parse error: %+v", perr)
	}
	if !strings.Contains(perr.Error(), "method is required") {
		t.Fatalf("error = %v", perr)
	}
}

func TestLoad_JSONDocument(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "tasks.json", "{\n\t\"tasks\": [\n\t\t{\"config_name\": \"a\", \"method\": \"GET\", \"path\": \"/x\", \"params\": {\"limit\": 10}}\n\t]\n}")
	res, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(res.Tasks) != 1 || res.Tasks[0].Params["limit"] != float64(10) {
		t.Fatalf("unexpected result: %+v", res.Tasks)
	}
}

func TestLoad_BodyFileRelativeAndWins(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bodies/user.json", "{\n  \"name\": \"bob\"\n}\n")
	writeFile(t, dir, "bodies/user.yaml", "name: carol\nage: 3\n")
	writeFile(t, dir, "bodies/raw.txt", "plain text")
	p := writeFile(t, dir, "tasks.yaml", `
- {config_name: a, method: POST, path: /u, body: inline, body_file: bodies/user.json}
- {config_name: a, method: POST, path: /u, body_file: bodies/user.yaml}
- {config_name: a, method: POST, path: /u, body_file: bodies/raw.txt}
- {config_name: a, method: POST, path: /u, body_file: bodies/nope.json}
`)
	res, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(res.Tasks) != 3 || len(res.Errors) != 1 {
		t.Fatalf("tasks=%d errors=%d", len(res.Tasks), len(res.Errors))
	}
	want := []string{`{"name":"bob"}`, `{"age":3,"name":"carol"}`, "plain text"}
	for i, w := range want {
		if res.Tasks[i].Body != w {
			t.Errorf("task %d body = %#v, want %q", i, res.Tasks[i].Body, w)
		}
	}
	if !errors.Is(res.Errors[0], os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", res.Errors[0])
	}
}

func TestLoad_InvalidEntries(t *testing.T) {
	tests := []struct {
		name  string
		entry string
		want  string
	}{
		{"not a mapping", `- just a string`, "must be a mapping"},
		{"negative delay", `- {config_name: a, method: GET, path: /, delay_before: -1}`, "delay_before"},
		{"bad delay", `- {config_name: a, method: GET, path: /, delay_after: soon}`, "delay_after"},
		{"missing config", `- {method: GET, path: /}`, "config_name is required"},
		{"headers not a map", `- {config_name: a, method: GET, path: /, headers: [1]}`, "headers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := LoadFromReader(strings.NewReader(tt.entry), ".")
			if err != nil {
				t.Fatalf("load must not fail for the whole file: %v", err)
			}
			if len(res.Tasks) != 0 || len(res.Errors) != 1 {
				t.Fatalf("tasks=%d errors=%d", len(res.Tasks), len(res.Errors))
			}
			if !strings.Contains(res.Errors[0].Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", res.Errors[0], tt.want)
			}
		})
	}
}

func TestLoad_FatalDocuments(t *testing.T) {
	for _, doc := range []string{"tasks: {a: 1}", "other: []", "42", "tasks: [\n  - a\n -b"} {
		if _, err := LoadFromReader(strings.NewReader(doc), "."); err == nil {
			t.Errorf("expected error for %q", doc)
		}
	}
	for _, doc := range []string{"", "tasks:", "[]"} {
		res, err := LoadFromReader(strings.NewReader(doc), ".")
		if err != nil || len(res.Tasks) != 0 {
			t.Errorf("doc %q: res=%+v err=%v", doc, res, err)
		}
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
