package engine

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/loykin/apiload/internal/task"
)

// Report summarizes one run.
type Report struct {
	RunID      string         `json:"run_id"`
	ExecutedAt time.Time      `json:"executed_at"`
	TotalTasks int            `json:"total_tasks"`
	Summary    Summary        `json:"summary"`
	Results    []ResultRecord `json:"results"`
}

// Summary counts the executed tasks.
type Summary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// ResultRecord is the archived view of one task result. StatusCode and
// ResponseSize are set on success, Error on failure.
type ResultRecord struct {
	ConfigName   string    `json:"config_name"`
	Method       string    `json:"method"`
	Path         string    `json:"path"`
	ExecutedAt   time.Time `json:"executed_at"`
	Success      bool      `json:"success"`
	StatusCode   int       `json:"status_code,omitempty"`
	ResponseSize int       `json:"response_size,omitempty"`
	Error        string    `json:"error,omitempty"`
	DurationMS   float64   `json:"duration_ms"`
}

// BuildReport projects a history into a report. total is the number of
// tasks the run was given, which may exceed len(history).
func BuildReport(runID string, at time.Time, total int, history task.History) *Report {
	r := &Report{
		RunID:      runID,
		ExecutedAt: at,
		TotalTasks: total,
		Results:    make([]ResultRecord, 0, len(history)),
	}
	for _, res := range history {
		if res == nil {
			continue
		}
		rec := ResultRecord{
			Method:     res.Request.Method,
			Path:       res.Request.Path,
			ExecutedAt: res.ExecutedAt,
			Success:    res.Succeeded(),
			DurationMS: float64(res.Duration) / float64(time.Millisecond),
		}
		if res.Task != nil {
			rec.ConfigName = res.Task.ConfigName
			if rec.Method == "" {
				rec.Method = res.Task.Method
			}
			if rec.Path == "" {
				rec.Path = res.Task.Path
			}
		}
		if rec.Success {
			rec.StatusCode = res.Response.StatusCode
			rec.ResponseSize = res.Response.Size()
			r.Summary.Succeeded++
		} else {
			rec.Error = res.Message()
			r.Summary.Failed++
		}
		r.Results = append(r.Results, rec)
	}
	r.Summary.Total = len(r.Results)
	return r
}

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(r)
}

// SaveFile writes the report to path, creating parent directories.
func (r *Report) SaveFile(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	if err := r.WriteJSON(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write report: %w", err)
	}
	return f.Close()
}

// Failed reports whether any executed task failed.
func (r *Report) Failed() bool {
	return r != nil && r.Summary.Failed > 0
}
