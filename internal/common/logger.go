package common

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogLevel represents logging verbosity levels
type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case LogLevelError:
		return "error"
	case LogLevelWarn:
		return "warn"
	case LogLevelInfo:
		return "info"
	case LogLevelDebug:
		return "debug"
	default:
		return "info"
	}
}

// ToSlogLevel converts LogLevel to slog.Level
func (l LogLevel) ToSlogLevel() slog.Level {
	switch l {
	case LogLevelError:
		return slog.LevelError
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelDebug:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// ParseLogLevel maps a config string to a LogLevel. Unknown values fall back to info.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return LogLevelError
	case "warn", "warning":
		return LogLevelWarn
	case "debug":
		return LogLevelDebug
	default:
		return LogLevelInfo
	}
}

// Format selects the handler used by NewLoggerTo.
type Format string

const (
	FormatText  Format = "text"
	FormatJSON  Format = "json"
	FormatColor Format = "color"
)

// Logger provides a centralized logging interface for apiload
type Logger struct {
	*slog.Logger
	level LogLevel
}

// NewLogger creates a new structured logger with the specified level
func NewLogger(level LogLevel) *Logger {
	return NewLoggerTo(os.Stdout, level, FormatText, NewMasker())
}

// NewJSONLogger creates a structured logger with JSON output
func NewJSONLogger(level LogLevel) *Logger {
	return NewLoggerTo(os.Stdout, level, FormatJSON, NewMasker())
}

// NewColorLogger creates a logger with colorized console output
func NewColorLogger(level LogLevel) *Logger {
	return NewLoggerTo(os.Stderr, level, FormatColor, NewMasker())
}

// NewLoggerTo builds a logger writing to w. A nil masker disables masking.
func NewLoggerTo(w io.Writer, level LogLevel, format Format, masker *Masker) *Logger {
	opts := &slog.HandlerOptions{Level: level.ToSlogLevel()}

	var handler slog.Handler
	switch format {
	case FormatJSON:
		handler = slog.NewJSONHandler(w, opts)
	case FormatColor:
		ch := NewColorHandler(w, opts)
		ch.SetMasker(masker)
		return &Logger{Logger: slog.New(ch), level: level}
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	if masker != nil {
		handler = &maskingHandler{next: handler, masker: masker}
	}
	return &Logger{Logger: slog.New(handler), level: level}
}

// Level returns the current log level
func (l *Logger) Level() LogLevel {
	return l.level
}

// WithComponent returns a logger with component context
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{Logger: l.Logger.With("component", component), level: l.level}
}

// WithConfig returns a logger with API config context
func (l *Logger) WithConfig(name string) *Logger {
	return &Logger{Logger: l.Logger.With("config", name), level: l.level}
}

// WithTask returns a logger tagged with the task's position in the batch
func (l *Logger) WithTask(index int) *Logger {
	return &Logger{Logger: l.Logger.With("task", index), level: l.level}
}

// WithRun returns a logger with run id context
func (l *Logger) WithRun(id string) *Logger {
	return &Logger{Logger: l.Logger.With("run_id", id), level: l.level}
}

// WithStore returns a logger with store context
func (l *Logger) WithStore(storeType string) *Logger {
	return &Logger{Logger: l.Logger.With("store", storeType), level: l.level}
}

// WithRequest returns a logger with HTTP request context
func (l *Logger) WithRequest(method, url string) *Logger {
	return &Logger{Logger: l.Logger.With("method", method, "url", url), level: l.level}
}

var defaultLogger = NewLogger(LogLevelInfo)

// SetDefaultLogger sets the global default logger
func SetDefaultLogger(logger *Logger) {
	if logger != nil {
		defaultLogger = logger
	}
}

// GetLogger returns the default logger
func GetLogger() *Logger {
	return defaultLogger
}

// OrDefault returns l, or the default logger when l is nil.
func OrDefault(l *Logger) *Logger {
	if l == nil {
		return defaultLogger
	}
	return l
}

// LogError logs an error with context
func LogError(msg string, err error, attrs ...any) {
	args := append([]any{"error", err}, attrs...)
	defaultLogger.Error(msg, args...)
}

// LogInfo logs informational message
func LogInfo(msg string, attrs ...any) {
	defaultLogger.Info(msg, attrs...)
}

// LogDebug logs debug message
func LogDebug(msg string, attrs ...any) {
	defaultLogger.Debug(msg, attrs...)
}

// LogWarn logs warning message
func LogWarn(msg string, attrs ...any) {
	defaultLogger.Warn(msg, attrs...)
}

// maskingHandler rewrites sensitive attribute values before delegating.
type maskingHandler struct {
	next   slog.Handler
	masker *Masker
}

func (h *maskingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *maskingHandler) Handle(ctx context.Context, r slog.Record) error {
	if !h.masker.IsEnabled() {
		return h.next.Handle(ctx, r)
	}
	out := slog.NewRecord(r.Time, r.Level, h.masker.MaskString(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.masker.MaskAttr(a))
		return true
	})
	return h.next.Handle(ctx, out)
}

func (h *maskingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		masked[i] = h.masker.MaskAttr(a)
	}
	return &maskingHandler{next: h.next.WithAttrs(masked), masker: h.masker}
}

func (h *maskingHandler) WithGroup(name string) slog.Handler {
	return &maskingHandler{next: h.next.WithGroup(name), masker: h.masker}
}
