package httpc

import (
	"crypto/tls"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// TLSOptions is the user-facing TLS configuration of an API config.
type TLSOptions struct {
	Insecure   bool   `mapstructure:"insecure" yaml:"insecure"`
	MinVersion string `mapstructure:"min_version" yaml:"min_version"`
	MaxVersion string `mapstructure:"max_version" yaml:"max_version"`
}

// Config returns the tls.Config described by o, or nil when o asks for nothing.
func (o TLSOptions) Config() *tls.Config {
	minV, maxV := ParseTLSVersion(o.MinVersion), ParseTLSVersion(o.MaxVersion)
	if !o.Insecure && minV == 0 && maxV == 0 {
		return nil
	}
	return &tls.Config{
		InsecureSkipVerify: o.Insecure, // #nosec G402 -- opt-in per API config
		MinVersion:         minV,
		MaxVersion:         maxV,
	}
}

// ParseTLSVersion accepts forms like "1.2", "tls1.3" or "TLS13". Unknown input yields 0.
func ParseTLSVersion(s string) uint16 {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.TrimPrefix(v, "tls")
	v = strings.TrimPrefix(v, "v")
	switch strings.ReplaceAll(v, ".", "") {
	case "10":
		return tls.VersionTLS10
	case "11":
		return tls.VersionTLS11
	case "12":
		return tls.VersionTLS12
	case "13":
		return tls.VersionTLS13
	default:
		return 0
	}
}

// Httpc builds resty clients that never reuse connections.
type Httpc struct {
	TlsConfig *tls.Config
	Timeout   time.Duration
}

// New returns a resty.Client over a dedicated transport with keep-alives
// disabled. Callers close it with Close once the exchange is done.
func (h *Httpc) New() *resty.Client {
	tr := &http.Transport{
		Proxy:             http.ProxyFromEnvironment,
		DisableKeepAlives: true,
		ForceAttemptHTTP2: false,
	}
	if h.TlsConfig != nil {
		cfg := h.TlsConfig.Clone()
		if cfg.MinVersion == 0 && !cfg.InsecureSkipVerify {
			cfg.MinVersion = tls.VersionTLS12
		}
		tr.TLSClientConfig = cfg
	}
	hc := &http.Client{Transport: tr, Timeout: h.Timeout}
	return resty.NewWithClient(hc).SetAllowGetMethodPayload(true)
}

// Close releases whatever the client's transport still holds.
func Close(c *resty.Client) {
	if c == nil {
		return
	}
	if tr, ok := c.GetClient().Transport.(*http.Transport); ok {
		tr.CloseIdleConnections()
	}
}
