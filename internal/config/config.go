package config

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/loykin/apiload/internal/auth"
	"github.com/loykin/apiload/internal/common"
	"github.com/loykin/apiload/internal/constants"
	"github.com/loykin/apiload/internal/httpc"
	"github.com/loykin/apiload/internal/retry"
	"github.com/loykin/apiload/internal/store"
	"github.com/loykin/apiload/internal/util"
)

// EnvPrefix scopes environment overrides: APILOAD_LOGGING_LEVEL, APILOAD_ACTIVE, ...
const EnvPrefix = "APILOAD"

type LoggingConfig struct {
	Level         string `mapstructure:"level" yaml:"level"`                   // error, warn, info, debug
	Format        string `mapstructure:"format" yaml:"format"`                 // text, json, color
	MaskSensitive *bool  `mapstructure:"mask_sensitive" yaml:"mask_sensitive"` // enable/disable sensitive data masking
}

// APIConfig describes one target API.
type APIConfig struct {
	Name        string            `mapstructure:"name" yaml:"name"`
	BaseURL     string            `mapstructure:"base_url" yaml:"base_url"`
	Port        int               `mapstructure:"port" yaml:"port"`
	OpenAPISpec string            `mapstructure:"openapi_spec" yaml:"openapi_spec"`
	AuthToken   string            `mapstructure:"auth_token" yaml:"auth_token"`
	Auth        auth.Config       `mapstructure:"auth" yaml:"auth"`
	Headers     map[string]string `mapstructure:"headers" yaml:"headers"`
	Timeout     time.Duration     `mapstructure:"timeout" yaml:"timeout"`
	Retry       retry.Policy      `mapstructure:"retry" yaml:"retry"`
	TLS         httpc.TLSOptions  `mapstructure:"tls" yaml:"tls"`
}

// Validate checks the fields an API needs before a client can be built.
func (c APIConfig) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if strings.TrimSpace(c.BaseURL) == "" && strings.TrimSpace(c.OpenAPISpec) == "" {
		errs = append(errs, errors.New("base_url or openapi_spec is required"))
	}
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.Timeout < 0 {
		errs = append(errs, errors.New("timeout must not be negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("api %q: %w", c.Name, err)
	}
	return nil
}

// ApplyPort replaces the port of raw when Port is set.
func (c APIConfig) ApplyPort(raw string) (string, error) {
	if c.Port == 0 {
		return raw, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	u.Host = net.JoinHostPort(u.Hostname(), strconv.Itoa(c.Port))
	return u.String(), nil
}

// Document is the apiload configuration file.
type Document struct {
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	APIs    []APIConfig   `mapstructure:"apis" yaml:"apis"`
	Active  string        `mapstructure:"active" yaml:"active"`
	Store   store.Config  `mapstructure:"store" yaml:"store"`
}

// NewViper returns a viper instance bound to the APILOAD_ environment.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("active", "")
	v.SetDefault("store.type", "sqlite")
	v.SetDefault("store.sqlite.path", constants.DefaultSQLitePath)
	v.SetDefault("store.table_prefix", "")
	return v
}

// Load reads path (when not empty) into v and decodes the document.
func Load(v *viper.Viper, path string) (*Document, error) {
	if v == nil {
		v = NewViper()
	}
	if p, ok := util.TrimEmptyCheck(path); ok {
		v.SetConfigFile(p)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", p, err)
		}
	}
	return Decode(v)
}

// Decode unmarshals v. Durations accept Go duration strings or numbers of
// seconds; ${VAR} references in secrets are expanded from the environment.
func Decode(v *viper.Viper) (*Document, error) {
	var doc Document
	hook := mapstructure.ComposeDecodeHookFunc(
		secondsToDuration,
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := v.Unmarshal(&doc, viper.DecodeHook(hook)); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	seen := map[string]bool{}
	for i := range doc.APIs {
		api := &doc.APIs[i]
		api.AuthToken = os.ExpandEnv(api.AuthToken)
		if api.Auth.Config != nil {
			api.Auth.Config, _ = util.MapStrings(api.Auth.Config, os.ExpandEnv).(map[string]any)
		}
		if err := api.Validate(); err != nil {
			return nil, err
		}
		if seen[api.Name] {
			return nil, fmt.Errorf("api %q: duplicate name", api.Name)
		}
		seen[api.Name] = true
	}
	if doc.Active != "" && !seen[doc.Active] {
		return nil, fmt.Errorf("active api %q is not configured", doc.Active)
	}
	return &doc, nil
}

var durationType = reflect.TypeOf(time.Duration(0))

func secondsToDuration(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != durationType {
		return data, nil
	}
	switch n := data.(type) {
	case int:
		return time.Duration(n) * time.Second, nil
	case int64:
		return time.Duration(n) * time.Second, nil
	case float64:
		return time.Duration(n * float64(time.Second)), nil
	}
	return data, nil
}

// Logger builds the logger described by the logging section, writing to w.
func (c LoggingConfig) Logger(w io.Writer) (*common.Logger, error) {
	level := common.ParseLogLevel(c.Level)
	if lv := util.TrimAndLower(c.Level); lv != "" && lv != level.String() && lv != "warning" {
		return nil, fmt.Errorf("invalid logging level: %s (valid: error, warn, info, debug)", c.Level)
	}
	masker := common.NewMasker()
	if c.MaskSensitive != nil {
		masker.SetEnabled(*c.MaskSensitive)
	}
	switch f := common.Format(util.TrimAndLower(c.Format)); f {
	case "", common.FormatText, common.FormatJSON, common.FormatColor:
		if f == "" {
			f = common.FormatText
		}
		return common.NewLoggerTo(w, level, f, masker), nil
	default:
		return nil, fmt.Errorf("invalid logging format: %s (valid: text, json, color)", c.Format)
	}
}
