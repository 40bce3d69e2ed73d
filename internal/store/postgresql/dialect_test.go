package postgresql

import (
	"testing"
	"time"
)

func TestDialect_Placeholder(t *testing.T) {
	dialect := NewDialect()

	tests := []struct {
		name  string
		index int
		want  string
	}{
		{name: "first placeholder", index: 1, want: "$1"},
		{name: "tenth placeholder", index: 10, want: "$10"},
		{name: "hundredth placeholder", index: 100, want: "$100"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := dialect.Placeholder(tt.index); got != tt.want {
				t.Errorf("Placeholder() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfig_ConnString(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"explicit dsn wins", Config{DSN: " postgres://a@b/c ", Host: "ignored"}, "postgres://a@b/c"},
		{"components with defaults", Config{Host: "db", User: "u", Password: "p", DBName: "runs"}, "postgres://u:p@db:5432/runs?sslmode=disable"},
		{"custom port and sslmode", Config{Host: "db", Port: 6543, User: "u", Password: "p", DBName: "runs", SSLMode: "require"}, "postgres://u:p@db:6543/runs?sslmode=require"},
		{"nothing configured", Config{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.ConnString(); got != tt.want {
				t.Errorf("ConnString() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDialect_Conversions(t *testing.T) {
	d := NewDialect()
	if d.BoolToStorage(true) != true || !d.BoolFromStorage(true) || d.BoolFromStorage(1) {
		t.Fatalf("bool conversions")
	}
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.FixedZone("x", 3600))
	if got := d.TimeFromStorage(d.TimeToStorage(at)); !got.Equal(at) || got.Location() != time.UTC {
		t.Fatalf("time conversion: %v", got)
	}
}
