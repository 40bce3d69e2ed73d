package task

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/loykin/apiload/internal/transport"
)

// Task is one request of a batch. Path, params, headers and body may carry
// {{...}} expressions that are substituted right before the request is sent.
type Task struct {
	ConfigName   string            `json:"config_name" yaml:"config_name"`
	Method       string            `json:"method" yaml:"method"`
	Path         string            `json:"path" yaml:"path"`
	Params       map[string]any    `json:"params,omitempty" yaml:"params,omitempty"`
	Headers      map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body         any               `json:"body,omitempty" yaml:"body,omitempty"`
	BodyFile     string            `json:"body_file,omitempty" yaml:"body_file,omitempty"`
	DelayBefore  time.Duration     `json:"delay_before,omitempty" yaml:"delay_before,omitempty"`
	DelayAfter   time.Duration     `json:"delay_after,omitempty" yaml:"delay_after,omitempty"`
	Extract      map[string]string `json:"extract,omitempty" yaml:"extract,omitempty"`
	ExpectStatus []int             `json:"expect_status,omitempty" yaml:"expect_status,omitempty"`

	// Result is the outcome of the most recent execution.
	Result *Result `json:"-" yaml:"-"`
}

func (t *Task) String() string {
	return fmt.Sprintf("%s %s (%s)", t.Method, t.Path, t.ConfigName)
}

// Validate checks the fields every executable task needs.
func (t *Task) Validate() error {
	var errs []error
	if strings.TrimSpace(t.ConfigName) == "" {
		errs = append(errs, errors.New("config_name is required"))
	}
	if strings.TrimSpace(t.Method) == "" {
		errs = append(errs, errors.New("method is required"))
	}
	if strings.TrimSpace(t.Path) == "" {
		errs = append(errs, errors.New("path is required"))
	}
	if t.DelayBefore < 0 {
		errs = append(errs, errors.New("delay_before must not be negative"))
	}
	if t.DelayAfter < 0 {
		errs = append(errs, errors.New("delay_after must not be negative"))
	}
	return errors.Join(errs...)
}

// StatusAllowed reports whether code satisfies ExpectStatus. An empty list allows everything.
func (t *Task) StatusAllowed(code int) bool {
	if len(t.ExpectStatus) == 0 {
		return true
	}
	for _, c := range t.ExpectStatus {
		if c == code {
			return true
		}
	}
	return false
}

// Substituter expands {{...}} expressions.
type Substituter interface {
	String(s string) string
	Value(v any) any
}

// Render substitutes every templated field and returns the request to send.
func (t *Task) Render(s Substituter) (transport.Request, error) {
	req := transport.Request{
		Method: strings.ToUpper(strings.TrimSpace(t.Method)),
		Path:   s.String(t.Path),
	}
	if len(t.Params) > 0 {
		req.Query, _ = s.Value(t.Params).(map[string]any)
	}
	if len(t.Headers) > 0 {
		req.Headers, _ = s.Value(t.Headers).(map[string]string)
	}
	body, err := encodeBody(s.Value(t.Body))
	if err != nil {
		return req, err
	}
	req.Body = body
	return req, nil
}

func encodeBody(v any) (string, error) {
	switch b := v.(type) {
	case nil:
		return "", nil
	case string:
		return b, nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return "", fmt.Errorf("encode body: %w", err)
		}
		return string(data), nil
	}
}

// History is the ordered list of results of a run.
type History []*Result

// Len returns the number of recorded results.
func (h History) Len() int { return len(h) }

// Response returns the response of entry i when that entry succeeded.
func (h History) Response(i int) (*transport.Response, bool) {
	if i < 0 || i >= len(h) || !h[i].Succeeded() {
		return nil, false
	}
	return h[i].Response, true
}
