// Package metrics exports run outcomes as Prometheus collectors.
package metrics

import (
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/apiload/internal/engine"
	"github.com/loykin/apiload/internal/task"
)

// Metric names.
const (
	MetricTasksTotal             = "apiload_tasks_total"
	MetricHTTPResponsesTotal     = "apiload_http_responses_total"
	MetricResponseSizeBytes      = "apiload_response_size_bytes"
	MetricRequestDurationSeconds = "apiload_request_duration_seconds"
	MetricBatchesTotal           = "apiload_batches_total"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Sink is an engine.EventSink that counts task and batch outcomes.
type Sink struct {
	engine.NopSink

	tasks     *prometheus.CounterVec
	responses *prometheus.CounterVec
	size      prometheus.Histogram
	duration  *prometheus.HistogramVec
	batches   *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Sink, error) {
	s := &Sink{
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricTasksTotal,
			Help: "Executed tasks by API config and outcome.",
		}, []string{"config", "outcome"}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricHTTPResponsesTotal,
			Help: "Completed HTTP exchanges by API config and status class.",
		}, []string{"config", "code_class"}),
		size: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricResponseSizeBytes,
			Help:    "Size of response bodies in bytes.",
			Buckets: prometheus.ExponentialBuckets(64, 4, 8),
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricRequestDurationSeconds,
			Help:    "Duration of requests including retries, in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"config"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricBatchesTotal,
			Help: "Completed batches by result.",
		}, []string{"result"}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{s.tasks, s.responses, s.size, s.duration, s.batches} {
			if err := reg.Register(c); err != nil {
				return nil, fmt.Errorf("register metrics: %w", err)
			}
		}
	}
	return s, nil
}

// TaskCompleted counts one result.
func (s *Sink) TaskCompleted(res *task.Result) {
	if res == nil {
		return
	}
	config := ""
	if res.Task != nil {
		config = res.Task.ConfigName
	}
	if !res.Succeeded() {
		s.tasks.WithLabelValues(config, OutcomeFailure).Inc()
		return
	}
	s.tasks.WithLabelValues(config, OutcomeSuccess).Inc()
	s.responses.WithLabelValues(config, CodeClass(res.Response.StatusCode)).Inc()
	s.size.Observe(float64(res.Response.Size()))
	s.duration.WithLabelValues(config).Observe(res.Duration.Seconds())
}

// BatchCompleted counts one batch.
func (s *Sink) BatchCompleted(r *engine.Report) {
	result := OutcomeSuccess
	if r.Failed() {
		result = OutcomeFailure
	}
	s.batches.WithLabelValues(result).Inc()
}

// CodeClass maps 204 to "2xx".
func CodeClass(code int) string {
	if code < 100 || code > 999 {
		return "other"
	}
	return strconv.Itoa(code/100) + "xx"
}

// WriteTextfile writes everything g gathers in the text exposition format,
// for the node exporter textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics file: %w", err)
	}
	return nil
}
