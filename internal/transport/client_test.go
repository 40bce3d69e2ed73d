package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/loykin/apiload/internal/retry"
)

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) Sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return nil
}

func newClient(t *testing.T, base string, rec *sleepRecorder) *Client {
	t.Helper()
	c, err := New(Options{BaseURL: base, Retry: retry.DefaultPolicy(), Sleep: rec.Sleep, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestExecute_RetriesRetryableStatusExactly(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"busy"}`))
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	resp, err := newClient(t, srv.URL, rec).Execute(context.Background(), Request{Method: "get", Path: "/health"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("server contacted %d times, want 3", calls)
	}
	if resp.StatusCode != http.StatusServiceUnavailable || resp.Attempts != 3 {
		t.Fatalf("status=%d attempts=%d", resp.StatusCode, resp.Attempts)
	}
	if len(rec.delays) != 2 || rec.delays[0] != time.Second || rec.delays[1] != 2*time.Second {
		t.Fatalf("delays = %v, want [1s 2s]", rec.delays)
	}
}

func TestExecute_NonRetryableStatusReturnsImmediately(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	resp, err := newClient(t, srv.URL, rec).Execute(context.Background(), Request{Method: "GET", Path: "missing"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 || resp.StatusCode != 404 || len(rec.delays) != 0 {
		t.Fatalf("calls=%d status=%d delays=%v", calls, resp.StatusCode, rec.delays)
	}
}

func TestExecute_RecoversAfterRetry(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	resp, err := newClient(t, srv.URL, rec).Execute(context.Background(), Request{Method: "GET", Path: "/"})
	if err != nil || resp.StatusCode != 200 || resp.Attempts != 2 {
		t.Fatalf("resp=%+v err=%v", resp, err)
	}
	if len(rec.delays) != 1 {
		t.Fatalf("delays = %v", rec.delays)
	}
}

func TestExecute_TransportErrorExhausts(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	rec := &sleepRecorder{}
	resp, err := newClient(t, "http://"+addr, rec).Execute(context.Background(), Request{Method: "GET", Path: "/"})
	if resp != nil {
		t.Fatalf("expected nil response, got %+v", resp)
	}
	if !errors.Is(err, retry.ErrExhausted) || !IsTransportError(err) {
		t.Fatalf("expected exhausted transport error, got %v", err)
	}
	if len(rec.delays) != 2 {
		t.Fatalf("expected 2 sleeps, got %v", rec.delays)
	}
}

func TestExecute_CancelledContextIsNotRetried(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := &sleepRecorder{}
	_, err := newClient(t, srv.URL, rec).Execute(ctx, Request{Method: "GET", Path: "/"})
	if err == nil || errors.Is(err, retry.ErrExhausted) {
		t.Fatalf("expected plain cancellation error, got %v", err)
	}
	if len(rec.delays) != 0 {
		t.Fatalf("should not sleep after cancellation: %v", rec.delays)
	}
}

func TestExecute_BodyContentType(t *testing.T) {
	type seen struct {
		contentType string
		body        string
	}
	var got seen
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		got = seen{contentType: r.Header.Get("Content-Type"), body: string(b)}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := newClient(t, srv.URL, &sleepRecorder{})
	tests := []struct {
		name string
		body string
		want string
	}{
		{"json object", `{"name":"a"}`, "application/json"},
		{"json array", `[1,2]`, "application/json"},
		{"plain text", `name=a`, "text/plain"},
		{"broken json", `{"name":`, "text/plain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := Request{Method: "POST", Path: "/items", Body: tt.body, Headers: map[string]string{"content-type": "application/xml"}}
			if tt.want == "application/json" {
				req.Headers = nil
			}
			if _, err := c.Execute(context.Background(), req); err != nil {
				t.Fatalf("execute: %v", err)
			}
			if got.contentType != tt.want || got.body != tt.body {
				t.Fatalf("content-type=%q body=%q", got.contentType, got.body)
			}
		})
	}
}

func TestExecute_NormalizesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-Id", "abc")
		w.Header().Add("X-Multi", "a")
		w.Header().Add("X-Multi", "b")
		if r.URL.Path == "/text" {
			_, _ = w.Write([]byte("hello"))
			return
		}
		_, _ = w.Write([]byte(`{"id":42,"tags":["a"]}`))
	}))
	defer srv.Close()

	c := newClient(t, srv.URL, &sleepRecorder{})
	resp, err := c.Execute(context.Background(), Request{Method: "delete", Path: "/json"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if resp.Method != "DELETE" || resp.URL != srv.URL+"/json" {
		t.Fatalf("method=%q url=%q", resp.Method, resp.URL)
	}
	if resp.Headers["x-request-id"] != "abc" || resp.Header("X-Multi") != "a, b" {
		t.Fatalf("headers = %v", resp.Headers)
	}
	m, ok := resp.JSON.(map[string]any)
	if !ok || m["id"] != float64(42) || resp.DecodeErr != nil {
		t.Fatalf("json = %#v decodeErr=%v", resp.JSON, resp.DecodeErr)
	}

	resp, err = c.Execute(context.Background(), Request{Method: "GET", Path: "/text"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if resp.JSON != nil || resp.DecodeErr == nil || resp.Body != "hello" || resp.Size() != 5 {
		t.Fatalf("unexpected text response: %+v", resp)
	}
}

func TestExecute_HeadersAndQuery(t *testing.T) {
	var r0 *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r0 = r.Clone(context.Background())
	}))
	defer srv.Close()

	c, err := New(Options{BaseURL: srv.URL + "/api/v1/", Headers: map[string]string{"Authorization": "Bearer t", "X-Env": "dev"}})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	_, err = c.Execute(context.Background(), Request{
		Method:  "GET",
		Path:    "users",
		Query:   map[string]any{"limit": 10.0, "q": "a b", "tag": []any{"x", "y"}},
		Headers: map[string]string{"X-Env": "prod"},
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if r0.URL.Path != "/api/v1/users" {
		t.Fatalf("path = %q", r0.URL.Path)
	}
	if r0.URL.RawQuery != "limit=10&q=a+b&tag=x&tag=y" {
		t.Fatalf("query = %q", r0.URL.RawQuery)
	}
	if r0.Header.Get("Authorization") != "Bearer t" || r0.Header.Get("X-Env") != "prod" {
		t.Fatalf("headers = %v", r0.Header)
	}
	if r0.Header.Get("Accept") != "application/json" {
		t.Fatalf("accept = %q", r0.Header.Get("Accept"))
	}
}

func TestExecute_NoConnectionReuse(t *testing.T) {
	var mu sync.Mutex
	remotes := map[string]bool{}
	closes := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		remotes[r.RemoteAddr] = true
		if r.Close {
			closes++
		}
		mu.Unlock()
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newClient(t, srv.URL, &sleepRecorder{})
	for i := 0; i < 2; i++ {
		if _, err := c.Execute(context.Background(), Request{Method: "GET", Path: "/"}); err != nil {
			t.Fatalf("execute: %v", err)
		}
	}
	if len(remotes) != 6 || closes != 6 {
		t.Fatalf("expected 6 distinct connections, got %d (close=%d)", len(remotes), closes)
	}
}

func TestClient_URL(t *testing.T) {
	c, err := New(Options{BaseURL: "http://example.com/base/"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	cases := map[string]string{
		"/users":  "http://example.com/base/users",
		"users":   "http://example.com/base/users",
		"//users": "http://example.com/base/users",
		"":        "http://example.com/base/",
	}
	for in, want := range cases {
		if got := c.URL(in, nil); got != want {
			t.Errorf("URL(%q) = %q, want %q", in, got, want)
		}
	}
	if c.BaseURL() != "http://example.com/base" {
		t.Fatalf("base = %q", c.BaseURL())
	}
}

func TestNew_Validation(t *testing.T) {
	for _, base := range []string{"", "ftp://x", "http://", "://bad"} {
		if _, err := New(Options{BaseURL: base}); err == nil {
			t.Errorf("expected error for %q", base)
		}
	}
	c, err := New(Options{BaseURL: "https://api.example.com"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if p := c.Policy(); p.MaxAttempts != 3 || p.BackoffFactor != time.Second {
		t.Fatalf("default policy not applied: %+v", p)
	}
}
