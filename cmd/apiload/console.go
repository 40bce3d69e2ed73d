package main

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"

	"github.com/loykin/apiload/internal/engine"
	"github.com/loykin/apiload/internal/task"
)

// consoleSink prints run progress for a terminal.
type consoleSink struct {
	out io.Writer

	mu     sync.Mutex
	failed int

	ok, bad, dim *color.Color
}

func newConsoleSink(out io.Writer) *consoleSink {
	return &consoleSink{
		out: out,
		ok:  color.New(color.FgGreen),
		bad: color.New(color.FgRed),
		dim: color.New(color.FgHiBlack),
	}
}

// Failures counts TaskFailed events, including entries that never parsed.
func (c *consoleSink) Failures() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failed
}

func (c *consoleSink) Progress(msg string) {
	_, _ = fmt.Fprintln(c.out, msg)
}

func (c *consoleSink) TaskCompleted(res *task.Result) {
	if res == nil {
		return
	}
	elapsed := c.dim.Sprintf("(%dms)", res.Duration.Milliseconds())
	if res.Succeeded() {
		_, _ = fmt.Fprintf(c.out, "  %s %d %s %s\n", c.ok.Sprint("OK  "), res.Response.StatusCode, res.Request.Path, elapsed)
		return
	}
	_, _ = fmt.Fprintf(c.out, "  %s %s %s\n", c.bad.Sprint("FAIL"), res.Message(), elapsed)
}

func (c *consoleSink) BatchCompleted(r *engine.Report) {
	if r == nil {
		return
	}
	summary := fmt.Sprintf("%d succeeded, %d failed", r.Summary.Succeeded, r.Summary.Failed)
	if r.Summary.Failed > 0 {
		summary = c.bad.Sprint(summary)
	} else {
		summary = c.ok.Sprint(summary)
	}
	_, _ = fmt.Fprintf(c.out, "Run %s: %d of %d task(s) executed, %s\n", r.RunID, r.Summary.Total, r.TotalTasks, summary)
}

func (c *consoleSink) TaskFailed(_ *task.Task, err error) {
	c.mu.Lock()
	c.failed++
	c.mu.Unlock()

	var pe *task.ParseError
	if errors.As(err, &pe) {
		_, _ = fmt.Fprintf(c.out, "  %s %v\n", c.bad.Sprint("SKIP"), err)
	}
}
