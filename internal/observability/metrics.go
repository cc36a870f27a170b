package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects the Prometheus series exposed by the HTTP surface.
type Metrics struct {
	// RunCounter counts completed runs. Labels: status (success|failed|error).
	RunCounter *prometheus.CounterVec

	// RunDuration measures wall-clock run time in seconds.
	RunDuration prometheus.Histogram

	// LLMRequestDuration measures model call latency in seconds.
	// Labels: provider, model.
	LLMRequestDuration *prometheus.HistogramVec

	// LLMRequestCounter counts model calls. Labels: provider, model,
	// status (success|error).
	LLMRequestCounter *prometheus.CounterVec

	// ToolExecutionCounter counts tool executions. Labels: tool,
	// status (success|error).
	ToolExecutionCounter *prometheus.CounterVec

	// HTTPRequestDuration measures API latency. Labels: method, path, status.
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics registers all collectors with the given registerer. Pass
// prometheus.DefaultRegisterer in production; tests use a fresh registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RunCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webpilot_runs_total",
				Help: "Total automation runs by final status",
			},
			[]string{"status"},
		),
		RunDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "webpilot_run_duration_seconds",
				Help:    "Wall-clock duration of automation runs in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
		),
		LLMRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "webpilot_llm_request_duration_seconds",
				Help:    "Duration of model invocations in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "model"},
		),
		LLMRequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webpilot_llm_requests_total",
				Help: "Total model invocations by provider, model, and status",
			},
			[]string{"provider", "model", "status"},
		),
		ToolExecutionCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webpilot_tool_executions_total",
				Help: "Total tool executions by tool name and status",
			},
			[]string{"tool", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "webpilot_http_request_duration_seconds",
				Help:    "API request latency in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120},
			},
			[]string{"method", "path", "status"},
		),
	}
}
