package auth

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/loykin/apiload/internal/constants"
)

// OAuth2Config holds configuration for token acquisition with the
// client_credentials or password grant. Without grant_type the password
// grant is used when a username is set.
type OAuth2Config struct {
	GrantType    string   `mapstructure:"grant_type"`
	Header       string   `mapstructure:"header"`
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	AuthURL      string   `mapstructure:"auth_url"`
	TokenURL     string   `mapstructure:"token_url"`
	Username     string   `mapstructure:"username"`
	Password     string   `mapstructure:"password"`
	Scopes       []string `mapstructure:"scopes"`
}

func (c OAuth2Config) grant() string {
	gt := strings.ReplaceAll(normalizeKey(c.GrantType), "-", "_")
	if gt == "" && strings.TrimSpace(c.Username) != "" {
		return "password"
	}
	if gt == "" {
		return "client_credentials"
	}
	return gt
}

// Acquire requests a token from TokenURL. An HTTP client placed in ctx with
// WithHTTPClient is used for the exchange.
func (c OAuth2Config) Acquire(ctx context.Context) (Credential, error) {
	tokenURL := strings.TrimSpace(c.TokenURL)
	if tokenURL == "" {
		return Credential{}, errors.New("oauth2: token_url is required")
	}
	clientID := strings.TrimSpace(c.ClientID)
	clientSecret := strings.TrimSpace(c.ClientSecret)

	var tok *oauth2.Token
	var err error
	switch c.grant() {
	case "password":
		username := strings.TrimSpace(c.Username)
		password := strings.TrimSpace(c.Password)
		if clientID == "" || username == "" || password == "" {
			return Credential{}, errors.New("oauth2: client_id, username and password are required for password grant")
		}
		ocfg := &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:   strings.TrimSpace(c.AuthURL),
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
			Scopes: c.Scopes,
		}
		tok, err = ocfg.PasswordCredentialsToken(ctx, username, password)
	case "client_credentials":
		if clientID == "" || clientSecret == "" {
			return Credential{}, errors.New("oauth2: client_id and client_secret are required for client_credentials grant")
		}
		cc := &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
			Scopes:       c.Scopes,
		}
		tok, err = cc.Token(ctx)
	default:
		return Credential{}, errors.New("oauth2: unsupported grant_type: " + c.GrantType)
	}
	if err != nil {
		return Credential{}, err
	}
	return tokenCredential(c.Header, tok)
}

func tokenCredential(header string, tok *oauth2.Token) (Credential, error) {
	if tok == nil || !tok.Valid() || strings.TrimSpace(tok.AccessToken) == "" {
		return Credential{}, errors.New("oauth2: received invalid token")
	}
	typ := strings.TrimSpace(tok.TokenType)
	if typ == "" || strings.EqualFold(typ, "bearer") {
		typ = constants.DefaultAuthScheme
	}
	return Credential{Header: headerOrDefault(header), Value: typ + " " + tok.AccessToken}, nil
}
