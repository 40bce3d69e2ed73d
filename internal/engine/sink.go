package engine

import (
	"github.com/loykin/apiload/internal/common"
	"github.com/loykin/apiload/internal/task"
)

// EventSink receives engine events. Calls happen on the goroutine running
// the batch, in order.
type EventSink interface {
	Progress(msg string)
	TaskCompleted(res *task.Result)
	BatchCompleted(report *Report)
	TaskFailed(t *task.Task, err error)
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) Progress(string) {}
func (NopSink) TaskCompleted(*task.Result) {}
func (NopSink) BatchCompleted(*Report) {}
func (NopSink) TaskFailed(*task.Task, error) {}

// MultiSink forwards each event to every sink in order.
type MultiSink []EventSink

func (m MultiSink) Progress(msg string) {
	for _, s := range m {
		s.Progress(msg)
	}
}

func (m MultiSink) TaskCompleted(res *task.Result) {
	for _, s := range m {
		s.TaskCompleted(res)
	}
}

func (m MultiSink) BatchCompleted(report *Report) {
	for _, s := range m {
		s.BatchCompleted(report)
	}
}

func (m MultiSink) TaskFailed(t *task.Task, err error) {
	for _, s := range m {
		s.TaskFailed(t, err)
	}
}

// SinkFuncs is an EventSink built from optional callbacks.
type SinkFuncs struct {
	OnProgress       func(msg string)
	OnTaskCompleted  func(res *task.Result)
	OnBatchCompleted func(report *Report)
	OnTaskFailed     func(t *task.Task, err error)
}

func (f SinkFuncs) Progress(msg string) {
	if f.OnProgress != nil {
		f.OnProgress(msg)
	}
}

func (f SinkFuncs) TaskCompleted(res *task.Result) {
	if f.OnTaskCompleted != nil {
		f.OnTaskCompleted(res)
	}
}

func (f SinkFuncs) BatchCompleted(report *Report) {
	if f.OnBatchCompleted != nil {
		f.OnBatchCompleted(report)
	}
}

func (f SinkFuncs) TaskFailed(t *task.Task, err error) {
	if f.OnTaskFailed != nil {
		f.OnTaskFailed(t, err)
	}
}

// LogSink writes events to a structured logger.
type LogSink struct {
	Logger *common.Logger
}

func (s LogSink) log() *common.Logger {
	return common.OrDefault(s.Logger).WithComponent("events")
}

func (s LogSink) Progress(msg string) {
	s.log().Info(msg)
}

func (s LogSink) TaskCompleted(res *task.Result) {
	if res == nil {
		return
	}
	l := s.log().WithTask(res.Index)
	if res.Succeeded() {
		l.Info("task result", "success", true, "status_code", res.Response.StatusCode, "response_size", res.Response.Size())
		return
	}
	l.Info("task result", "success", false, "error", res.Message())
}

func (s LogSink) BatchCompleted(r *Report) {
	if r == nil {
		return
	}
	s.log().WithRun(r.RunID).Info("batch completed", "total", r.Summary.Total, "succeeded", r.Summary.Succeeded, "failed", r.Summary.Failed)
}

func (s LogSink) TaskFailed(t *task.Task, err error) {
	attrs := []any{"error", err}
	if t != nil {
		attrs = append(attrs, "config", t.ConfigName, "method", t.Method, "path", t.Path)
	}
	s.log().Error("task failed", attrs...)
}
