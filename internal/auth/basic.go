package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
)

// BasicConfig holds configuration for Basic authentication.
type BasicConfig struct {
	Header   string `mapstructure:"header"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// Acquire returns a Basic credential built from Username and Password.
func (c BasicConfig) Acquire(context.Context) (Credential, error) {
	u := strings.TrimSpace(c.Username)
	p := strings.TrimSpace(c.Password)
	if u == "" || p == "" {
		return Credential{}, errors.New("basic: username and password are required")
	}
	cred := base64.StdEncoding.EncodeToString([]byte(u + ":" + p))
	return Credential{Header: headerOrDefault(c.Header), Value: "Basic " + cred}, nil
}
