package task

import (
	"time"

	"github.com/loykin/apiload/internal/transport"
)

// Result is the outcome of one task execution: either a response
// (Succeeded) or an error, never both.
type Result struct {
	Index      int
	Task       *Task
	Request    transport.Request
	ExecutedAt time.Time
	Duration   time.Duration
	Response   *transport.Response
	Err        error
}

// NewSuccess records a completed exchange.
func NewSuccess(index int, t *Task, req transport.Request, at time.Time, d time.Duration, resp *transport.Response) *Result {
	return &Result{Index: index, Task: t, Request: req, ExecutedAt: at, Duration: d, Response: resp}
}

// NewFailure records a task that produced no usable response.
func NewFailure(index int, t *Task, req transport.Request, at time.Time, d time.Duration, err error) *Result {
	return &Result{Index: index, Task: t, Request: req, ExecutedAt: at, Duration: d, Err: err}
}

// Succeeded reports whether the result carries a response.
func (r *Result) Succeeded() bool {
	return r != nil && r.Err == nil && r.Response != nil
}

// Message returns the failure description, or "" on success.
func (r *Result) Message() string {
	if r == nil || r.Err == nil {
		return ""
	}
	return r.Err.Error()
}
