package config

import (
	"context"
	"fmt"
	"sync"

	"github.com/loykin/apiload/internal/auth"
	"github.com/loykin/apiload/internal/common"
	"github.com/loykin/apiload/internal/constants"
	"github.com/loykin/apiload/internal/engine"
	"github.com/loykin/apiload/internal/httpc"
	"github.com/loykin/apiload/internal/retry"
	"github.com/loykin/apiload/internal/schema"
	"github.com/loykin/apiload/internal/transport"
)

// Registry holds the configured APIs and builds their clients on first use.
type Registry struct {
	mu     sync.RWMutex
	order  []string
	apis   map[string]*entry
	active string

	auth   *auth.Registry
	sleep  retry.Sleeper
	logger *common.Logger
}

type entry struct {
	cfg APIConfig

	once   sync.Once
	client *transport.Client
	doc    *schema.Document
	err    error
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithAuthRegistry replaces the auth provider registry.
func WithAuthRegistry(a *auth.Registry) RegistryOption {
	return func(r *Registry) { r.auth = a }
}

// WithRetrySleeper replaces the backoff wait of every client.
func WithRetrySleeper(s retry.Sleeper) RegistryOption {
	return func(r *Registry) { r.sleep = s }
}

// WithRegistryLogger sets the logger.
func WithRegistryLogger(l *common.Logger) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{apis: map[string]*entry{}, auth: auth.Default}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = common.OrDefault(r.logger).WithComponent("config")
	return r
}

// FromDocument registers every API of doc and selects its active API.
func FromDocument(doc *Document, opts ...RegistryOption) (*Registry, error) {
	r := NewRegistry(opts...)
	for _, api := range doc.APIs {
		if err := r.Add(api); err != nil {
			return nil, err
		}
	}
	if doc.Active != "" {
		if err := r.SetActive(doc.Active); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add validates cfg and registers it, replacing an API of the same name.
// The first API added becomes active.
func (r *Registry) Add(cfg APIConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.apis[cfg.Name]; !exists {
		r.order = append(r.order, cfg.Name)
	}
	r.apis[cfg.Name] = &entry{cfg: cfg}
	if r.active == "" {
		r.active = cfg.Name
	}
	return nil
}

// Remove unregisters name and reports whether it existed.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.apis[name]; !ok {
		return false
	}
	delete(r.apis, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	if r.active == name {
		r.active = ""
		if len(r.order) > 0 {
			r.active = r.order[0]
		}
	}
	return true
}

// Get returns the configuration of name.
func (r *Registry) Get(name string) (APIConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.apis[name]
	if !ok {
		return APIConfig{}, false
	}
	return e.cfg, true
}

// Names lists the APIs in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// SetActive selects the API used when none is named.
func (r *Registry) SetActive(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.apis[name]; !ok {
		return fmt.Errorf("%w: %q", engine.ErrConfigNotFound, name)
	}
	r.active = name
	return nil
}

// Active returns the active API.
func (r *Registry) Active() (APIConfig, bool) {
	r.mu.RLock()
	name := r.active
	r.mu.RUnlock()
	if name == "" {
		return APIConfig{}, false
	}
	return r.Get(name)
}

// Lookup returns the client of name, building it on first use.
func (r *Registry) Lookup(name string) (transport.Executor, error) {
	c, err := r.Client(name)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Client is Lookup with the concrete client type.
func (r *Registry) Client(name string) (*transport.Client, error) {
	e, err := r.entry(name)
	if err != nil {
		return nil, err
	}
	e.once.Do(func() { r.initialize(e) })
	if e.err != nil {
		return nil, e.err
	}
	return e.client, nil
}

// Schema returns the parsed OpenAPI document of name, or nil when none is configured.
func (r *Registry) Schema(name string) (*schema.Document, error) {
	e, err := r.entry(name)
	if err != nil {
		return nil, err
	}
	e.once.Do(func() { r.initialize(e) })
	if e.doc == nil && e.err != nil {
		return nil, e.err
	}
	return e.doc, nil
}

func (r *Registry) entry(name string) (*entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.apis[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", engine.ErrConfigNotFound, name)
	}
	return e, nil
}

func (r *Registry) initialize(e *entry) {
	logger := r.logger.WithConfig(e.cfg.Name)
	client, doc, err := r.build(e.cfg, logger)
	e.doc = doc
	if err != nil {
		logger.Error("api client not initialized", "error", err)
		e.err = fmt.Errorf("%w: %q: %w", engine.ErrClientNotInitialized, e.cfg.Name, err)
		return
	}
	e.client = client
	logger.Info("api client initialized", "base_url", client.BaseURL())
}

func (r *Registry) build(cfg APIConfig, logger *common.Logger) (*transport.Client, *schema.Document, error) {
	var doc *schema.Document
	if cfg.OpenAPISpec != "" {
		d, err := schema.ParseFile(cfg.OpenAPISpec)
		if err != nil {
			return nil, nil, err
		}
		doc = d
	}
	base := cfg.BaseURL
	if base == "" && doc != nil {
		u, ok := doc.BaseURL()
		if !ok {
			return nil, doc, fmt.Errorf("openapi spec %s declares no server", cfg.OpenAPISpec)
		}
		base = u
	}
	base, err := cfg.ApplyPort(base)
	if err != nil {
		return nil, doc, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultRequestTimeout
	}
	tlsCfg := cfg.TLS.Config()
	client, err := transport.New(transport.Options{
		BaseURL: base,
		Headers: cfg.Headers,
		Timeout: timeout,
		Retry:   cfg.Retry,
		TLS:     tlsCfg,
		Sleep:   r.sleep,
		Logger:  logger,
	})
	if err != nil {
		return nil, doc, err
	}

	if cfg.AuthToken != "" {
		client.SetHeader("Authorization", constants.DefaultAuthScheme+" "+cfg.AuthToken)
	}
	if !cfg.Auth.IsZero() {
		hc := (&httpc.Httpc{TlsConfig: tlsCfg, Timeout: timeout}).New()
		defer httpc.Close(hc)
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		cred, err := cfg.Auth.Acquire(auth.WithHTTPClient(ctx, hc.GetClient()), r.auth)
		if err != nil {
			return nil, doc, err
		}
		client.SetHeader(cred.Header, cred.Value)
		logger.Debug("credential acquired", "provider", cfg.Auth.Type, "header", cred.Header)
	}
	return client, doc, nil
}
