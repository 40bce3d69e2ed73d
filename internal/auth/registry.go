package auth

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-viper/mapstructure/v2"
)

// ErrUnsupportedType is returned for a provider type nobody registered.
var ErrUnsupportedType = errors.New("auth: unsupported provider type")

// Factory builds a Method from a loosely-typed spec map.
// Decoding into a concrete config struct is the typical responsibility of a Factory.
type Factory func(spec map[string]any) (Method, error)

// Registry maps provider types to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// Default holds the built-in providers.
var Default = NewRegistry()

// NewRegistry returns a registry with basic, bearer and oauth2 registered.
func NewRegistry() *Registry {
	r := &Registry{factories: map[string]Factory{}}
	r.Register("basic", func(spec map[string]any) (Method, error) {
		var c BasicConfig
		if err := decode(spec, &c); err != nil {
			return nil, err
		}
		return c, nil
	})
	r.Register("bearer", func(spec map[string]any) (Method, error) {
		var c BearerConfig
		if err := decode(spec, &c); err != nil {
			return nil, err
		}
		return c, nil
	})
	r.Register("oauth2", func(spec map[string]any) (Method, error) {
		var c OAuth2Config
		if err := decode(spec, &c); err != nil {
			return nil, err
		}
		return c, nil
	})
	return r
}

// normalizeKey lower-cases and trims provider type keys.
func normalizeKey(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// Register adds or replaces a factory. Empty types and nil factories are ignored.
func (r *Registry) Register(typ string, f Factory) {
	key := normalizeKey(typ)
	if key == "" || f == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[key] = f
}

// Build decodes spec with the factory registered for typ.
func (r *Registry) Build(typ string, spec map[string]any) (Method, error) {
	r.mu.RLock()
	f, ok := r.factories[normalizeKey(typ)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, typ)
	}
	if spec == nil {
		spec = map[string]any{}
	}
	return f(spec)
}

// Types lists the registered provider types.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for k := range r.factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func decode(spec map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(spec); err != nil {
		return fmt.Errorf("auth: invalid config: %w", err)
	}
	return nil
}
