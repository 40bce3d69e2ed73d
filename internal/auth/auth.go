package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
)

// DefaultHeader receives credentials unless a provider config names another header.
const DefaultHeader = "Authorization"

// Credential is a header to send with every request of an API.
type Credential struct {
	Header string
	Value  string
}

// Method acquires a credential.
type Method interface {
	Acquire(ctx context.Context) (Credential, error)
}

// Config selects a provider by type and carries its settings.
type Config struct {
	Type   string         `mapstructure:"type" yaml:"type"`
	Config map[string]any `mapstructure:"config" yaml:"config"`
}

// IsZero reports whether no provider is configured.
func (c Config) IsZero() bool {
	return strings.TrimSpace(c.Type) == ""
}

// Acquire builds the configured method from reg and acquires its credential.
func (c Config) Acquire(ctx context.Context, reg *Registry) (Credential, error) {
	if c.IsZero() {
		return Credential{}, errors.New("auth: missing type")
	}
	if reg == nil {
		reg = Default
	}
	m, err := reg.Build(c.Type, c.Config)
	if err != nil {
		return Credential{}, err
	}
	cred, err := m.Acquire(ctx)
	if err != nil {
		return Credential{}, fmt.Errorf("auth %s: %w", normalizeKey(c.Type), err)
	}
	return cred, nil
}

// WithHTTPClient makes token requests issued under ctx use hc.
func WithHTTPClient(ctx context.Context, hc *http.Client) context.Context {
	if hc == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, hc)
}

func headerOrDefault(h string) string {
	h = strings.TrimSpace(h)
	if h == "" {
		return DefaultHeader
	}
	return h
}
