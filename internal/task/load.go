package task

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"gopkg.in/yaml.v3"

	"github.com/loykin/apiload/internal/util"
)

// ParseError describes a task entry that could not be loaded. Task holds
// whatever fields could be read, for reporting.
type ParseError struct {
	Index int
	Task  *Task
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("task entry %d: %v", e.Index, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// LoadResult holds the well-formed tasks of a file and the entries that were skipped.
type LoadResult struct {
	Tasks  []*Task
	Errors []*ParseError
}

// entry is the on-disk shape of a task.
type entry struct {
	ConfigName   string            `mapstructure:"config_name"`
	Method       string            `mapstructure:"method"`
	Path         string            `mapstructure:"path"`
	Params       map[string]any    `mapstructure:"params"`
	Headers      map[string]string `mapstructure:"headers"`
	Body         any               `mapstructure:"body"`
	BodyFile     string            `mapstructure:"body_file"`
	DelayBefore  float64           `mapstructure:"delay_before"`
	DelayAfter   float64           `mapstructure:"delay_after"`
	Extract      map[string]string `mapstructure:"extract"`
	ExpectStatus []int             `mapstructure:"expect_status"`
}

// Load reads a task list from path. Body files are resolved relative to the
// directory of path.
func Load(path string) (*LoadResult, error) {
	clean := filepath.Clean(path)
	// #nosec G304 -- task files are chosen by the operator
	f, err := os.Open(clean)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return LoadFromReader(f, filepath.Dir(clean))
}

// LoadFromReader decodes a YAML or JSON task list: either a mapping with a
// "tasks" sequence or a bare sequence. Malformed entries are collected in
// LoadResult.Errors; only an unreadable document is fatal.
func LoadFromReader(r io.Reader, baseDir string) (*LoadResult, error) {
	doc, err := decodeDocument(r)
	if err != nil {
		return nil, err
	}

	var items []any
	switch d := doc.(type) {
	case nil:
		return &LoadResult{}, nil
	case []any:
		items = d
	case map[string]any:
		raw, ok := d["tasks"]
		if !ok {
			return nil, errors.New("task list has no \"tasks\" key")
		}
		if raw == nil {
			return &LoadResult{}, nil
		}
		items, ok = raw.([]any)
		if !ok {
			return nil, fmt.Errorf("\"tasks\" must be a list, got %T", raw)
		}
	default:
		return nil, fmt.Errorf("task list must be a mapping or a list, got %T", doc)
	}

	res := &LoadResult{}
	for i, item := range items {
		t, err := decodeEntry(item, baseDir)
		if err != nil {
			res.Errors = append(res.Errors, &ParseError{Index: i, Task: partial(item), Err: err})
			continue
		}
		res.Tasks = append(res.Tasks, t)
	}
	return res, nil
}

func decodeDocument(r io.Reader) (any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read task list: %w", err)
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	var doc any
	if trimmed[0] == '{' || trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &doc); err == nil {
			return doc, nil
		}
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode task list: %w", err)
	}
	return util.NormalizeKeys(doc), nil
}

func decodeEntry(item any, baseDir string) (*Task, error) {
	m, ok := item.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("entry must be a mapping, got %T", item)
	}
	var e entry
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &e,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(m); err != nil {
		return nil, err
	}

	t := &Task{
		ConfigName:   strings.TrimSpace(e.ConfigName),
		Method:       strings.ToUpper(strings.TrimSpace(e.Method)),
		Path:         strings.TrimSpace(e.Path),
		Params:       e.Params,
		Headers:      e.Headers,
		Body:         e.Body,
		BodyFile:     strings.TrimSpace(e.BodyFile),
		Extract:      e.Extract,
		ExpectStatus: e.ExpectStatus,
	}
	if t.DelayBefore, err = seconds("delay_before", e.DelayBefore); err != nil {
		return nil, err
	}
	if t.DelayAfter, err = seconds("delay_after", e.DelayAfter); err != nil {
		return nil, err
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if t.BodyFile != "" {
		body, err := readBodyFile(baseDir, t.BodyFile)
		if err != nil {
			return nil, err
		}
		t.Body = body
	}
	return t, nil
}

func seconds(field string, v float64) (time.Duration, error) {
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s must be a non-negative number of seconds", field)
	}
	return time.Duration(v * float64(time.Second)), nil
}

// readBodyFile loads a body file. JSON and YAML files are re-encoded as
// compact JSON; anything else is used verbatim.
func readBodyFile(baseDir, name string) (string, error) {
	p := name
	if !filepath.IsAbs(p) {
		p = filepath.Join(baseDir, p)
	}
	p = filepath.Clean(p)
	// #nosec G304 -- body files live next to the operator's task list
	data, err := os.ReadFile(p)
	if err != nil {
		return "", fmt.Errorf("read body_file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(p)) {
	case ".json":
		var buf bytes.Buffer
		if err := json.Compact(&buf, data); err != nil {
			return "", fmt.Errorf("body_file %s: %w", name, err)
		}
		return buf.String(), nil
	case ".yaml", ".yml":
		var v any
		if err := yaml.Unmarshal(data, &v); err != nil {
			return "", fmt.Errorf("body_file %s: %w", name, err)
		}
		out, err := json.Marshal(util.NormalizeKeys(v))
		if err != nil {
			return "", fmt.Errorf("body_file %s: %w", name, err)
		}
		return string(out), nil
	default:
		return string(data), nil
	}
}

// partial extracts the identifying fields of a malformed entry.
func partial(item any) *Task {
	t := &Task{}
	m, ok := item.(map[string]any)
	if !ok {
		return t
	}
	t.ConfigName = util.AnyToString(m["config_name"])
	t.Method = strings.ToUpper(util.AnyToString(m["method"]))
	t.Path = util.AnyToString(m["path"])
	return t
}
