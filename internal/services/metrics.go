package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"procurement/internal/models"
	"procurement/internal/query"
)

// Metrics holds all custom Prometheus metrics for the application
type Metrics struct {
	// Agent runs
	AgentRuns       *prometheus.CounterVec
	AgentIterations prometheus.Histogram
	AgentLatency    prometheus.Histogram
	ToolCalls       *prometheus.CounterVec
	Tokens          *prometheus.CounterVec

	// Query executor
	QueryExecutions *prometheus.CounterVec
	QueryLatency    *prometheus.HistogramVec

	// Chat API
	ChatErrors *prometheus.CounterVec
}

// NewMetrics registers the metrics with reg. Use prometheus.DefaultRegisterer
// in the server and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AgentRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "procurement_agent_runs_total",
			Help: "Total number of agent runs by outcome",
		}, []string{"outcome"}), // outcome: "answered", "exhausted" or "failed"

		AgentIterations: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "procurement_agent_iterations",
			Help:    "Model calls per agent run",
			Buckets: []float64{1, 2, 3, 4, 5, 6, 7, 8, 10, 12},
		}),

		AgentLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "procurement_agent_run_duration_seconds",
			Help:    "Agent run latency in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120}, // up to 2 minutes for multi-step runs
		}),

		ToolCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "procurement_agent_tool_calls_total",
			Help: "Total number of tool calls by tool",
		}, []string{"tool"}),

		Tokens: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "procurement_llm_tokens_total",
			Help: "Total number of model tokens by direction",
		}, []string{"direction"}), // direction: "input" or "output"

		QueryExecutions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "procurement_query_executions_total",
			Help: "Total number of executed queries by kind and outcome",
		}, []string{"kind", "outcome"}),

		QueryLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "procurement_query_duration_seconds",
			Help:    "Query execution latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),

		ChatErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "procurement_chat_errors_total",
			Help: "Total number of chat API errors by type",
		}, []string{"error_type"}),
	}
}

// RecordRun records the outcome of one agent run
func (m *Metrics) RecordRun(result models.AgentRunResult) {
	if m == nil {
		return
	}
	outcome := "answered"
	switch {
	case !result.Success:
		outcome = "failed"
	case result.Exhausted:
		outcome = "exhausted"
	}
	m.AgentRuns.WithLabelValues(outcome).Inc()
	m.AgentIterations.Observe(float64(result.Iterations))
	m.AgentLatency.Observe(result.ExecutionTime)
	for _, tool := range result.ToolsUsed {
		m.ToolCalls.WithLabelValues(tool).Inc()
	}
	m.Tokens.WithLabelValues("input").Add(float64(result.TokenUsage.Input))
	m.Tokens.WithLabelValues("output").Add(float64(result.TokenUsage.Output))
}

// ObserveQuery matches query.ExecutionObserver
func (m *Metrics) ObserveQuery(kind query.Kind, success bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "error"
	}
	m.QueryExecutions.WithLabelValues(string(kind), outcome).Inc()
	m.QueryLatency.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
}

// RecordChatError records a chat API error
func (m *Metrics) RecordChatError(errorType string) {
	if m == nil {
		return
	}
	m.ChatErrors.WithLabelValues(errorType).Inc()
}
