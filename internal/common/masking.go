package common

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// Masked is the placeholder written in place of a secret.
const Masked = "***MASKED***"

// SensitivePattern represents a pattern to detect and mask sensitive information
type SensitivePattern struct {
	Name        string         // Pattern name (e.g., "password", "api_key")
	Regex       *regexp.Regexp // Regular expression to match sensitive data
	Replacement string         // Replacement string
	Keys        []string       // Specific keys to mask (case-insensitive)
}

// DefaultSensitivePatterns contains common patterns for sensitive information
var DefaultSensitivePatterns = []SensitivePattern{
	{
		Name:        "password",
		Regex:       regexp.MustCompile(`(?i)(password|passwd|pwd)["'\s]*[:=]["'\s]*([^"',}\]\s]+)`),
		Replacement: `${1}":"` + Masked + `"`,
		Keys:        []string{"password", "passwd", "pwd"},
	},
	{
		Name:        "api_key",
		Regex:       regexp.MustCompile(`(?i)(api[_-]?key|apikey)["'\s]*[:=]["'\s]*([^"',}\]\s]+)`),
		Replacement: `${1}":"` + Masked + `"`,
		Keys:        []string{"api_key", "apikey", "api-key", "x-api-key"},
	},
	{
		Name:        "token",
		Regex:       regexp.MustCompile(`(?i)(access[_-]?token|auth[_-]?token|token)["'\s]*[:=]["'\s]*([^"',}\]\s]+)`),
		Replacement: `${1}":"` + Masked + `"`,
		Keys:        []string{"token", "access_token", "auth_token", "refresh_token"},
	},
	{
		Name:        "bearer_token",
		Regex:       regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9\-._~+/]+=*`),
		Replacement: "Bearer " + Masked,
	},
	{
		Name:        "basic_auth",
		Regex:       regexp.MustCompile(`(?i)Basic\s+[A-Za-z0-9+/]+=*`),
		Replacement: "Basic " + Masked,
	},
	{
		Name:        "authorization",
		Keys:        []string{"authorization", "proxy-authorization", "cookie", "set-cookie"},
		Replacement: Masked,
	},
	{
		Name:        "secret",
		Regex:       regexp.MustCompile(`(?i)(client[_-]?secret|secret)["'\s]*[:=]["'\s]*([^"',}\]\s]+)`),
		Replacement: `${1}":"` + Masked + `"`,
		Keys:        []string{"secret", "client_secret"},
	},
}

// Masker handles masking of sensitive information in logs
type Masker struct {
	patterns []SensitivePattern
	enabled  bool
}

// NewMasker creates a new masker with default patterns
func NewMasker() *Masker {
	return &Masker{patterns: DefaultSensitivePatterns, enabled: true}
}

// NewMaskerWithPatterns creates a new masker with custom patterns
func NewMaskerWithPatterns(patterns []SensitivePattern) *Masker {
	return &Masker{patterns: patterns, enabled: true}
}

// SetEnabled enables or disables masking
func (m *Masker) SetEnabled(enabled bool) {
	m.enabled = enabled
}

// IsEnabled returns whether masking is enabled
func (m *Masker) IsEnabled() bool {
	return m != nil && m.enabled
}

// AddPattern adds a new sensitive pattern. A pattern with keys but no regex
// gets one compiled from its keys.
func (m *Masker) AddPattern(pattern SensitivePattern) {
	if pattern.Regex == nil && len(pattern.Keys) > 0 {
		keyPattern := strings.Join(pattern.Keys, "|")
		pattern.Regex = regexp.MustCompile(fmt.Sprintf(`(?i)\b(%s)\s*[:=]\s*['"]?([^'",\s}\]]+)['"]?`, keyPattern))
		if pattern.Replacement == "" {
			pattern.Replacement = `$1:"` + Masked + `"`
		}
	}
	m.patterns = append(m.patterns, pattern)
}

// MaskString masks sensitive information in a string
func (m *Masker) MaskString(input string) string {
	if !m.IsEnabled() {
		return input
	}
	result := input
	for _, pattern := range m.patterns {
		if pattern.Regex != nil {
			result = pattern.Regex.ReplaceAllString(result, pattern.Replacement)
		}
	}
	return result
}

// IsSensitiveKey reports whether values stored under key are always masked.
func (m *Masker) IsSensitiveKey(key string) bool {
	if !m.IsEnabled() {
		return false
	}
	for _, pattern := range m.patterns {
		for _, k := range pattern.Keys {
			if strings.EqualFold(key, k) {
				return true
			}
		}
	}
	return false
}

// MaskValue masks sensitive information based on key-value context
func (m *Masker) MaskValue(key string, value any) any {
	if !m.IsEnabled() {
		return value
	}
	if m.IsSensitiveKey(key) {
		return Masked
	}
	switch v := value.(type) {
	case string:
		return m.MaskString(v)
	case error:
		return m.MaskString(v.Error())
	default:
		return value
	}
}

// MaskAttr masks a slog attribute, descending into groups.
func (m *Masker) MaskAttr(a slog.Attr) slog.Attr {
	if !m.IsEnabled() {
		return a
	}
	switch a.Value.Kind() {
	case slog.KindGroup:
		group := a.Value.Group()
		out := make([]any, 0, len(group))
		for _, g := range group {
			out = append(out, m.MaskAttr(g))
		}
		return slog.Group(a.Key, out...)
	case slog.KindString:
		if m.IsSensitiveKey(a.Key) {
			return slog.String(a.Key, Masked)
		}
		return slog.String(a.Key, m.MaskString(a.Value.String()))
	case slog.KindAny:
		switch v := a.Value.Any().(type) {
		case error:
			return slog.String(a.Key, m.MaskString(v.Error()))
		case map[string]string:
			return slog.Any(a.Key, m.MaskHeaders(v))
		}
	}
	if m.IsSensitiveKey(a.Key) {
		return slog.String(a.Key, Masked)
	}
	return a
}

// MaskHeaders returns a copy of headers with sensitive values replaced.
func (m *Masker) MaskHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if m.IsSensitiveKey(k) {
			out[k] = Masked
			continue
		}
		out[k] = m.MaskString(v)
	}
	return out
}
