// Package telemetry exposes run and tool metrics for Prometheus and sets
// up OpenTelemetry tracing.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flemzord/scout/internal/agent"
	"github.com/flemzord/scout/internal/tool"
)

// Tool call outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics holds the collectors fed by the controller and tool registry
// observers. Each Metrics owns its own registry.
type Metrics struct {
	registry *prometheus.Registry

	runs          *prometheus.CounterVec
	runDuration   prometheus.Histogram
	runIterations prometheus.Histogram
	toolCalls     *prometheus.CounterVec
	toolDuration  *prometheus.HistogramVec
}

// NewMetrics creates and registers the scout collectors plus the Go
// runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scout_runs_total",
			Help: "Reasoning runs by stop reason.",
		}, []string{"stop_reason"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scout_run_duration_seconds",
			Help:    "Wall-clock duration of reasoning runs.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160, 300},
		}),
		runIterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scout_run_iterations",
			Help:    "Iterations per reasoning run.",
			Buckets: prometheus.LinearBuckets(1, 1, 12),
		}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scout_tool_calls_total",
			Help: "Tool dispatches by tool and outcome.",
		}, []string{"tool", "outcome"}),
		toolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scout_tool_call_duration_seconds",
			Help:    "Duration of tool dispatches.",
			Buckets: prometheus.DefBuckets,
		}, []string{"tool"}),
	}

	m.registry.MustRegister(
		m.runs, m.runDuration, m.runIterations, m.toolCalls, m.toolDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveRun records a finished run. It matches agent.WithObserver.
func (m *Metrics) ObserveRun(r agent.RunReport) {
	reason := string(r.StopReason)
	if reason == "" {
		reason = "unknown"
	}
	m.runs.WithLabelValues(reason).Inc()
	m.runDuration.Observe(r.Duration.Seconds())
	m.runIterations.Observe(float64(r.Iterations))
}

// ObserveTool records one dispatch. It matches tool.Registry.SetObserver.
func (m *Metrics) ObserveTool(o tool.Observation) {
	outcome := OutcomeOK
	if o.Failed {
		outcome = OutcomeError
	}
	m.toolCalls.WithLabelValues(o.Tool, outcome).Inc()
	m.toolDuration.WithLabelValues(o.Tool).Observe(o.Duration.Seconds())
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// MetricsService is the service name of the shared *Metrics.
const MetricsService = "telemetry.metrics"
