package transport

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
)

// Request describes one call relative to a client's base URL.
type Request struct {
	Method  string
	Path    string
	Query   map[string]any
	Headers map[string]string
	Body    string
}

// Response is the normalized outcome of a completed exchange.
type Response struct {
	StatusCode int               `json:"status_code"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
	JSON       any               `json:"json"`
	URL        string            `json:"url"`
	Method     string            `json:"method"`
	Attempts   int               `json:"attempts,omitempty"`

	// DecodeErr is set when a non-empty body was not valid JSON.
	DecodeErr error `json:"-"`
}

// Size is the length of the raw body in bytes.
func (r *Response) Size() int {
	if r == nil {
		return 0
	}
	return len(r.Body)
}

// IsSuccess reports a 2xx status.
func (r *Response) IsSuccess() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Header returns the value of a response header, case-insensitively.
func (r *Response) Header(name string) string {
	if r == nil {
		return ""
	}
	return r.Headers[strings.ToLower(name)]
}

func normalize(status int, header http.Header, body []byte, url, method string) *Response {
	out := &Response{
		StatusCode: status,
		Headers:    make(map[string]string, len(header)),
		Body:       strings.ToValidUTF8(string(body), "\uFFFD"),
		URL:        url,
		Method:     method,
	}
	for k, vs := range header {
		out.Headers[strings.ToLower(k)] = strings.Join(vs, ", ")
	}
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 {
		var v any
		if err := json.Unmarshal(trimmed, &v); err != nil {
			out.DecodeErr = err
		} else {
			out.JSON = v
		}
	}
	return out
}
