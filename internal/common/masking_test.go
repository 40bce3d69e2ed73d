package common

import (
	"log/slog"
	"strings"
	"testing"
)

func TestMasker_MaskString(t *testing.T) {
	m := NewMasker()
	tests := []struct {
		name  string
		input string
		leak  string
	}{
		{"bearer", "Authorization: Bearer eyJhbGciOi.abc", "eyJhbGciOi"},
		{"basic", "Basic dXNlcjpwYXNz", "dXNlcjpwYXNz"},
		{"password json", `{"password":"hunter2"}`, "hunter2"},
		{"client secret", "client_secret=s3cr3t", "s3cr3t"},
		{"api key", "api_key: k-123", "k-123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.MaskString(tt.input)
			if strings.Contains(got, tt.leak) {
				t.Fatalf("leaked %q in %q", tt.leak, got)
			}
			if !strings.Contains(got, Masked) {
				t.Fatalf("expected mask marker in %q", got)
			}
		})
	}
}

func TestMasker_Disabled(t *testing.T) {
	m := NewMasker()
	m.SetEnabled(false)
	in := "Bearer abc"
	if got := m.MaskString(in); got != in {
		t.Fatalf("disabled masker changed input: %q", got)
	}
	if m.MaskValue("password", "x") != "x" {
		t.Fatal("disabled masker masked value")
	}
	var nilMasker *Masker
	if nilMasker.IsEnabled() {
		t.Fatal("nil masker must report disabled")
	}
}

func TestMasker_MaskHeadersAndAttr(t *testing.T) {
	m := NewMasker()
	h := m.MaskHeaders(map[string]string{"Authorization": "Bearer t", "X-Trace": "1"})
	if h["Authorization"] != Masked || h["X-Trace"] != "1" {
		t.Fatalf("unexpected headers: %v", h)
	}

	a := m.MaskAttr(slog.Group("req", slog.String("token", "abc"), slog.Int("n", 1)))
	group := a.Value.Group()
	if group[0].Value.String() != Masked || group[1].Value.Int64() != 1 {
		t.Fatalf("unexpected group: %v", group)
	}
}

func TestMasker_AddPattern(t *testing.T) {
	m := NewMaskerWithPatterns(nil)
	m.AddPattern(SensitivePattern{Name: "session", Keys: []string{"session_id"}})
	got := m.MaskString("session_id=abc123 other=1")
	if strings.Contains(got, "abc123") {
		t.Fatalf("custom pattern not applied: %q", got)
	}
	if !m.IsSensitiveKey("SESSION_ID") {
		t.Fatal("key match should be case-insensitive")
	}
}
