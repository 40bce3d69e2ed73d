package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/loykin/apiload/internal/common"
	"github.com/loykin/apiload/internal/retry"
	"github.com/loykin/apiload/internal/task"
	"github.com/loykin/apiload/internal/transport"
	"github.com/loykin/apiload/internal/vars"
)

var (
	// ErrConfigNotFound is returned by a Lookup for an unknown API name.
	ErrConfigNotFound = errors.New("api configuration not found")
	// ErrClientNotInitialized is returned by a Lookup for an API that has no usable client.
	ErrClientNotInitialized = errors.New("api client not initialized")
	// ErrAlreadyRunning rejects a second concurrent run.
	ErrAlreadyRunning = errors.New("engine is already running")
	// ErrUnexpectedStatus fails a task whose response status is not in its expect_status list.
	ErrUnexpectedStatus = errors.New("unexpected response status")
)

// Lookup resolves a task's config_name to an executor.
type Lookup interface {
	Lookup(name string) (transport.Executor, error)
}

// LookupFunc adapts a function to Lookup.
type LookupFunc func(name string) (transport.Executor, error)

func (f LookupFunc) Lookup(name string) (transport.Executor, error) { return f(name) }

// Option configures an Engine.
type Option func(*Engine)

// WithSink sets the receiver of progress and result events.
func WithSink(s EventSink) Option {
	return func(e *Engine) {
		if s != nil {
			e.sink = s
		}
	}
}

// WithSleeper replaces the wait used for delay_before and delay_after.
func WithSleeper(s retry.Sleeper) Option {
	return func(e *Engine) {
		if s != nil {
			e.sleep = s
		}
	}
}

// WithClock replaces time.Now for timestamps, durations and built-in variables.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *common.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithVariables seeds the variable store.
func WithVariables(v map[string]any) Option {
	return func(e *Engine) {
		e.vars.Merge(v)
	}
}

// Engine runs tasks sequentially. Results of the current run are kept in
// order and can be referenced by later tasks as {{N.response...}}; values
// pulled out by extract rules live in the variable store across runs.
type Engine struct {
	lookup Lookup
	sink   EventSink
	sleep  retry.Sleeper
	now    func() time.Time
	logger *common.Logger

	mu      sync.Mutex
	tasks   []*task.Task
	history task.History
	vars    *vars.Store

	running atomic.Bool
	stopped atomic.Bool
}

// New returns an idle engine resolving APIs through lookup.
func New(lookup Lookup, opts ...Option) *Engine {
	e := &Engine{
		lookup: lookup,
		sink:   NopSink{},
		sleep:  retry.ContextSleep,
		now:    time.Now,
		vars:   vars.NewStore(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = common.OrDefault(e.logger).WithComponent("engine")
	return e
}

// Load reads a task file. Entries that fail to decode are reported through
// the sink's TaskFailed and left out of the returned list.
func (e *Engine) Load(path string) ([]*task.Task, error) {
	res, err := task.Load(path)
	if err != nil {
		return nil, err
	}
	for _, pe := range res.Errors {
		e.logger.Warn("skipping task entry", "file", path, "index", pe.Index, "error", pe.Err)
		e.sink.TaskFailed(pe.Task, fmt.Errorf("failed to parse task: %w", pe))
	}
	e.logger.Info("tasks loaded", "file", path, "count", len(res.Tasks), "skipped", len(res.Errors))
	return res.Tasks, nil
}

// AddTasks appends to the task list.
func (e *Engine) AddTasks(tasks ...*task.Task) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tasks = append(e.tasks, tasks...)
}

// SetTasks replaces the task list.
func (e *Engine) SetTasks(tasks []*task.Task) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tasks = append([]*task.Task(nil), tasks...)
}

// ClearTasks drops the task list and the history of the last run.
func (e *Engine) ClearTasks() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tasks = nil
	e.history = nil
}

// Tasks returns a copy of the task list.
func (e *Engine) Tasks() []*task.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*task.Task(nil), e.tasks...)
}

// History returns a copy of the results recorded so far.
func (e *Engine) History() task.History {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append(task.History(nil), e.history...)
}

// SetVar assigns a variable.
func (e *Engine) SetVar(name string, v any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vars.Set(name, v)
}

// Vars returns a copy of the variable store.
func (e *Engine) Vars() map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.vars.Snapshot()
}

// ClearVars empties the variable store.
func (e *Engine) ClearVars() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vars.Clear()
}

// Running reports whether a run is in progress.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Stop asks the current run to end before its next task. The task in
// flight is not interrupted.
func (e *Engine) Stop() {
	if e.running.Load() {
		e.logger.Info("stop requested")
	}
	e.stopped.Store(true)
}

// Run executes the engine's task list.
func (e *Engine) Run(ctx context.Context, stopOnError bool) (*Report, error) {
	return e.RunTasks(ctx, e.Tasks(), stopOnError)
}

// RunTasks executes tasks in order and returns the report of the run. The
// history is reset first. With stopOnError the first failed task ends the
// run. A cancelled context ends the run before the next task and its error
// is returned along with the partial report.
func (e *Engine) RunTasks(ctx context.Context, tasks []*task.Task, stopOnError bool) (*Report, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRunning
	}
	defer e.running.Store(false)
	e.stopped.Store(false)

	runID := uuid.NewString()
	startedAt := e.now()
	logger := e.logger.WithRun(runID)
	logger.Info("run started", "tasks", len(tasks), "stop_on_error", stopOnError)

	e.mu.Lock()
	e.history = nil
	e.mu.Unlock()

	total := len(tasks)
	for i, t := range tasks {
		if e.stopped.Load() {
			logger.Info("run stopped", "remaining", total-i)
			break
		}
		if ctx.Err() != nil {
			logger.Warn("run cancelled", "remaining", total-i, "error", ctx.Err())
			break
		}
		e.sink.Progress(fmt.Sprintf("Executing task %d/%d: %s %s (%s)", i+1, total, t.Method, t.Path, t.ConfigName))
		res := e.execute(ctx, t, logger)
		if stopOnError && !res.Succeeded() {
			e.sink.Progress("Stopped due to error: " + res.Message())
			break
		}
	}

	history := e.History()
	report := BuildReport(runID, startedAt, total, history)
	logger.Info("run finished", "executed", report.Summary.Total, "succeeded", report.Summary.Succeeded, "failed", report.Summary.Failed)
	e.sink.BatchCompleted(report)
	e.sink.Progress(fmt.Sprintf("Completed %d task(s)", len(history)))
	return report, ctx.Err()
}

// ExecuteOne runs a single task against the current history and appends
// its result. It does not reset the history and may not overlap a run.
func (e *Engine) ExecuteOne(ctx context.Context, t *task.Task) (*task.Result, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRunning
	}
	defer e.running.Store(false)
	return e.execute(ctx, t, e.logger), nil
}

// execute performs delay_before, substitution, lookup, the request,
// extraction and delay_after, then records the result.
func (e *Engine) execute(ctx context.Context, t *task.Task, logger *common.Logger) *task.Result {
	e.mu.Lock()
	index := len(e.history)
	sub := &vars.Substituter{
		Vars:    storeOf(e.vars.Snapshot()),
		History: append(task.History(nil), e.history...),
		Now:     e.now,
	}
	e.mu.Unlock()

	logger = logger.WithTask(index).WithConfig(t.ConfigName)

	if err := e.sleep(ctx, t.DelayBefore); err != nil {
		return e.record(t, task.NewFailure(index, t, transport.Request{Method: t.Method, Path: t.Path}, e.now(), 0,
			fmt.Errorf("delay_before interrupted: %w", err)), logger)
	}

	req, err := t.Render(sub)
	if err != nil {
		return e.record(t, task.NewFailure(index, t, req, e.now(), 0, err), logger)
	}

	exec, err := e.resolve(t.ConfigName)
	if err != nil {
		return e.record(t, task.NewFailure(index, t, req, e.now(), 0, err), logger)
	}

	logger.WithRequest(req.Method, req.Path).Debug("sending request")
	start := e.now()
	resp, err := exec.Execute(ctx, req)
	elapsed := e.now().Sub(start)

	var res *task.Result
	switch {
	case err != nil:
		res = task.NewFailure(index, t, req, start, elapsed, err)
	case resp == nil:
		res = task.NewFailure(index, t, req, start, elapsed, errors.New("executor returned no response"))
	case !t.StatusAllowed(resp.StatusCode):
		res = task.NewFailure(index, t, req, start, elapsed,
			fmt.Errorf("%w: got %d, expected one of %v", ErrUnexpectedStatus, resp.StatusCode, t.ExpectStatus))
	default:
		res = task.NewSuccess(index, t, req, start, elapsed, resp)
		if len(t.Extract) > 0 {
			extracted := vars.Extract(resp.Body, t.Extract)
			e.mu.Lock()
			e.vars.Merge(extracted)
			e.mu.Unlock()
			logger.Debug("variables extracted", "count", len(extracted), "rules", len(t.Extract))
		}
	}

	if err := e.sleep(ctx, t.DelayAfter); err != nil {
		logger.Debug("delay_after interrupted", "error", err)
	}
	return e.record(t, res, logger)
}

func (e *Engine) resolve(name string) (transport.Executor, error) {
	if e.lookup == nil {
		return nil, fmt.Errorf("%w: %q", ErrConfigNotFound, name)
	}
	exec, err := e.lookup.Lookup(name)
	if err != nil {
		return nil, err
	}
	if exec == nil {
		return nil, fmt.Errorf("%w: %q", ErrClientNotInitialized, name)
	}
	return exec, nil
}

func (e *Engine) record(t *task.Task, res *task.Result, logger *common.Logger) *task.Result {
	t.Result = res
	e.mu.Lock()
	e.history = append(e.history, res)
	e.mu.Unlock()

	if res.Succeeded() {
		logger.Info("task completed", "status_code", res.Response.StatusCode, "size", res.Response.Size(), "duration", res.Duration)
	} else {
		logger.Warn("task failed", "error", res.Err)
		e.sink.TaskFailed(t, res.Err)
	}
	e.sink.TaskCompleted(res)
	return res
}

func storeOf(m map[string]any) *vars.Store {
	s := vars.NewStore()
	s.Merge(m)
	return s
}
