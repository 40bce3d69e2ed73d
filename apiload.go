package apiload

import (
	"context"

	"github.com/loykin/apiload/internal/auth"
	"github.com/loykin/apiload/internal/config"
	"github.com/loykin/apiload/internal/engine"
	"github.com/loykin/apiload/internal/schema"
	"github.com/loykin/apiload/internal/store"
	"github.com/loykin/apiload/internal/task"
	"github.com/loykin/apiload/internal/transport"
)

// Re-export commonly used types for public API

// Engine runs task batches.
type Engine = engine.Engine

// EngineOption configures an Engine.
type EngineOption = engine.Option

// EventSink receives engine events.
type EventSink = engine.EventSink

// SinkFuncs adapts plain functions to an EventSink.
type SinkFuncs = engine.SinkFuncs

// Report summarizes one run.
type Report = engine.Report

// Task is one request of a batch.
type Task = task.Task

// Result is the outcome of one task.
type Result = task.Result

// Request and Response are the transport's view of one exchange.
type (
	Request  = transport.Request
	Response = transport.Response
)

// APIConfig describes one target API.
type APIConfig = config.APIConfig

// Registry holds configured APIs and builds their clients lazily.
type Registry = config.Registry

// Document is a parsed OpenAPI document.
type Document = schema.Document

// Store archives run reports.
type Store = store.Store

// StoreConfig selects and configures the archive backend.
type StoreConfig = store.Config

var (
	ErrConfigNotFound       = engine.ErrConfigNotFound
	ErrClientNotInitialized = engine.ErrClientNotInitialized
	ErrAlreadyRunning       = engine.ErrAlreadyRunning
)

// Engine options.
var (
	WithSink      = engine.WithSink
	WithVariables = engine.WithVariables
)

// NewRegistry returns a registry holding apis; the first one is active.
func NewRegistry(apis ...APIConfig) (*Registry, error) {
	r := config.NewRegistry()
	for _, api := range apis {
		if err := r.Add(api); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// LoadRegistry reads an apiload config file and registers its APIs.
func LoadRegistry(path string) (*Registry, error) {
	doc, err := config.Load(nil, path)
	if err != nil {
		return nil, err
	}
	return config.FromDocument(doc)
}

// NewEngine returns an engine resolving config names through apis.
func NewEngine(apis *Registry, opts ...EngineOption) *Engine {
	return engine.New(apis, opts...)
}

// RunFile loads the tasks of path into a fresh engine and runs them.
func RunFile(ctx context.Context, apis *Registry, path string, stopOnError bool, opts ...EngineOption) (*Report, error) {
	e := NewEngine(apis, opts...)
	tasks, err := e.Load(path)
	if err != nil {
		return nil, err
	}
	e.SetTasks(tasks)
	return e.Run(ctx, stopOnError)
}

// ParseSpec reads an OpenAPI 2 or 3 document.
func ParseSpec(path string) (*Document, error) { return schema.ParseFile(path) }

// AuthMethod Plugin-style provider interface and registration
type AuthMethod = auth.Method

type AuthFactory = auth.Factory

// RegisterAuthProvider adds a provider type to the default auth registry.
func RegisterAuthProvider(typ string, f AuthFactory) { auth.Default.Register(typ, f) }

// OpenStore opens (and initializes) the archive described by cfg.
func OpenStore(ctx context.Context, cfg StoreConfig) (*Store, error) { return store.Open(ctx, cfg) }
