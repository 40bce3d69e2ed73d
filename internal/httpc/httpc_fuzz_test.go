package httpc

import (
	"crypto/tls"
	"testing"
)

func knownVersion(v uint16) bool {
	switch v {
	case 0, tls.VersionTLS10, tls.VersionTLS11, tls.VersionTLS12, tls.VersionTLS13:
		return true
	}
	return false
}

// FuzzTLSOptions feeds arbitrary version strings through the config path:
// only known versions come out, and nil means nothing was requested.
func FuzzTLSOptions(f *testing.F) {
	f.Add("", "", false)
	f.Add("1.2", "tls1.3", false)
	f.Add("TLS13", "", true)
	f.Add("v1.1", "weird-input!!", false)

	f.Fuzz(func(t *testing.T, minV, maxV string, insecure bool) {
		if !knownVersion(ParseTLSVersion(minV)) {
			t.Fatalf("unexpected tls version for %q", minV)
		}
		cfg := TLSOptions{Insecure: insecure, MinVersion: minV, MaxVersion: maxV}.Config()
		requested := insecure || ParseTLSVersion(minV) != 0 || ParseTLSVersion(maxV) != 0
		if (cfg != nil) != requested {
			t.Fatalf("config presence = %v, want %v", cfg != nil, requested)
		}
		if cfg != nil && (cfg.InsecureSkipVerify != insecure || !knownVersion(cfg.MinVersion) || !knownVersion(cfg.MaxVersion)) {
			t.Fatalf("unexpected config %+v", cfg)
		}
	})
}
