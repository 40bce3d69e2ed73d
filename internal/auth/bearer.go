package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/loykin/apiload/internal/constants"
)

// BearerConfig sends a static token. The scheme defaults to Bearer for the
// Authorization header; other headers get the raw token unless a scheme is set.
type BearerConfig struct {
	Header string `mapstructure:"header"`
	Scheme string `mapstructure:"scheme"`
	Token  string `mapstructure:"token"`
}

func (c BearerConfig) Acquire(context.Context) (Credential, error) {
	tok := strings.TrimSpace(c.Token)
	if tok == "" {
		return Credential{}, errors.New("bearer: token is required")
	}
	header := headerOrDefault(c.Header)
	scheme := strings.TrimSpace(c.Scheme)
	if scheme == "" && strings.EqualFold(header, DefaultHeader) {
		scheme = constants.DefaultAuthScheme
	}
	if scheme != "" {
		tok = scheme + " " + tok
	}
	return Credential{Header: header, Value: tok}, nil
}
