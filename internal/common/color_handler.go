package common

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// ColorHandler implements a colorized text handler for slog
type ColorHandler struct {
	opts   *slog.HandlerOptions
	writer io.Writer
	mu     *sync.Mutex
	attrs  []slog.Attr
	groups []string
	masker *Masker
	pal    palette
}

type palette struct {
	gray, red, green, yellow, magenta, cyan, white *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		gray:    color.New(color.FgHiBlack),
		red:     color.New(color.FgRed),
		green:   color.New(color.FgGreen),
		yellow:  color.New(color.FgYellow),
		magenta: color.New(color.FgMagenta),
		cyan:    color.New(color.FgCyan),
		white:   color.New(color.FgWhite),
	}
	for _, c := range []*color.Color{p.gray, p.red, p.green, p.yellow, p.magenta, p.cyan, p.white} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// NewColorHandler creates a new color handler
func NewColorHandler(w io.Writer, opts *slog.HandlerOptions) *ColorHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &ColorHandler{
		opts:   opts,
		writer: w,
		mu:     &sync.Mutex{},
		masker: NewMasker(),
		pal:    newPalette(shouldUseColor(w)),
	}
}

func shouldUseColor(w io.Writer) bool {
	if runtime.GOOS == "windows" || os.Getenv("NO_COLOR") != "" {
		return false
	}
	if f, ok := w.(*os.File); ok {
		stat, err := f.Stat()
		if err != nil {
			return false
		}
		return (stat.Mode() & os.ModeCharDevice) != 0
	}
	return false
}

// Enabled reports whether the handler handles records at the given level
func (h *ColorHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

// Handle handles the Record
func (h *ColorHandler) Handle(_ context.Context, r slog.Record) error {
	var sb strings.Builder

	if !r.Time.IsZero() {
		sb.WriteString(h.pal.gray.Sprint(r.Time.Format(time.RFC3339)))
		sb.WriteByte(' ')
	}
	sb.WriteString(h.formatLevel(r.Level))
	sb.WriteByte(' ')
	if len(h.groups) > 0 {
		sb.WriteString(h.pal.cyan.Sprintf("[%s]", strings.Join(h.groups, ".")))
		sb.WriteByte(' ')
	}
	sb.WriteString(h.pal.white.Sprint(h.masker.MaskString(r.Message)))

	attrs := make([]slog.Attr, 0, r.NumAttrs()+len(h.attrs))
	attrs = append(attrs, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)
		return true
	})
	for _, a := range attrs {
		a = h.masker.MaskAttr(a)
		sb.WriteByte(' ')
		sb.WriteString(h.pal.cyan.Sprint(a.Key))
		sb.WriteByte('=')
		sb.WriteString(h.formatValue(a.Value))
	}
	sb.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.writer, sb.String())
	return err
}

func (h *ColorHandler) formatLevel(level slog.Level) string {
	switch {
	case level < slog.LevelInfo:
		return h.pal.gray.Sprint("[DEBUG]")
	case level < slog.LevelWarn:
		return h.pal.green.Sprint("[INFO ]")
	case level < slog.LevelError:
		return h.pal.yellow.Sprint("[WARN ]")
	default:
		return h.pal.red.Sprint("[ERROR]")
	}
}

func (h *ColorHandler) formatValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		str := v.String()
		if isErrorLike(str) {
			return h.pal.red.Sprintf("%q", str)
		}
		if isSuccessLike(str) {
			return h.pal.green.Sprintf("%q", str)
		}
		return h.pal.white.Sprintf("%q", str)
	case slog.KindInt64:
		return h.pal.magenta.Sprintf("%d", v.Int64())
	case slog.KindFloat64:
		return h.pal.magenta.Sprintf("%g", v.Float64())
	case slog.KindBool:
		if v.Bool() {
			return h.pal.green.Sprint("true")
		}
		return h.pal.red.Sprint("false")
	case slog.KindDuration:
		return h.pal.yellow.Sprint(v.Duration().String())
	case slog.KindTime:
		return h.pal.gray.Sprint(v.Time().Format(time.RFC3339))
	default:
		return h.pal.white.Sprint(fmt.Sprint(v.Any()))
	}
}

func isErrorLike(s string) bool {
	s = strings.ToLower(s)
	return strings.Contains(s, "error") || strings.Contains(s, "fail")
}

func isSuccessLike(s string) bool {
	s = strings.ToLower(s)
	return strings.Contains(s, "success") || strings.Contains(s, "complete") || s == "ok"
}

// WithAttrs returns a new ColorHandler with the given attributes added
func (h *ColorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

// WithGroup returns a new ColorHandler with the given group name added
func (h *ColorHandler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.groups = append(append([]string{}, h.groups...), name)
	return &clone
}

// SetMasker sets the masker for this handler. nil disables masking.
func (h *ColorHandler) SetMasker(masker *Masker) {
	h.masker = masker
}

// SetColorEnabled forces colors on or off regardless of the writer.
func (h *ColorHandler) SetColorEnabled(enabled bool) {
	h.pal = newPalette(enabled)
}
