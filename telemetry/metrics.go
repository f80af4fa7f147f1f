package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus counters/histograms the Agent Iteration Loop
// and Tool Runner emit on every call. Scoped to this repository's two
// external collaborators (LLM provider, tool) plus agent run outcomes; there
// is no HTTP/RAG/memory/session subsystem here, so no metric families exist
// for them.
type Metrics struct {
	registry *prometheus.Registry

	llmCalls        *prometheus.CounterVec
	llmCallDuration *prometheus.HistogramVec
	llmTokensInput  *prometheus.CounterVec
	llmTokensOutput *prometheus.CounterVec
	llmErrors       *prometheus.CounterVec

	toolCalls        *prometheus.CounterVec
	toolCallDuration *prometheus.HistogramVec
	toolErrors       *prometheus.CounterVec

	agentCalls        *prometheus.CounterVec
	agentCallDuration *prometheus.HistogramVec
	agentErrors       *prometheus.CounterVec
}

// NewMetrics builds a Metrics instance, or returns nil when cfg
// disables telemetry. Every recording method is a safe no-op on a nil
// receiver, so callers never need to branch on whether metrics are enabled.
func NewMetrics(cfg Config) *Metrics {
	if !cfg.Enabled {
		return nil
	}
	ns := cfg.MetricsNamespace

	m := &Metrics{registry: prometheus.NewRegistry()}

	m.llmCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "llm", Name: "calls_total", Help: "Total number of LLM completion calls",
	}, []string{"model", "llm"})
	m.llmCallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns, Subsystem: "llm", Name: "call_duration_seconds", Help: "LLM completion call duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"model", "llm"})
	m.llmTokensInput = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "llm", Name: "tokens_input_total", Help: "Total input tokens consumed",
	}, []string{"model", "llm"})
	m.llmTokensOutput = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "llm", Name: "tokens_output_total", Help: "Total output tokens generated",
	}, []string{"model", "llm"})
	m.llmErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "llm", Name: "errors_total", Help: "Total LLM completion errors",
	}, []string{"model", "llm"})

	m.toolCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "tool", Name: "calls_total", Help: "Total tool invocations",
	}, []string{"tool_name"})
	m.toolCallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns, Subsystem: "tool", Name: "call_duration_seconds", Help: "Tool execution duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
	}, []string{"tool_name"})
	m.toolErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "tool", Name: "errors_total", Help: "Total tool execution errors",
	}, []string{"tool_name"})

	m.agentCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "agent", Name: "runs_total", Help: "Total agent iteration-loop runs",
	}, []string{"agent_name"})
	m.agentCallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns, Subsystem: "agent", Name: "run_duration_seconds", Help: "Agent run duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 15),
	}, []string{"agent_name"})
	m.agentErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "agent", Name: "errors_total", Help: "Total agent run errors",
	}, []string{"agent_name"})

	m.registry.MustRegister(
		m.llmCalls, m.llmCallDuration, m.llmTokensInput, m.llmTokensOutput, m.llmErrors,
		m.toolCalls, m.toolCallDuration, m.toolErrors,
		m.agentCalls, m.agentCallDuration, m.agentErrors,
	)
	return m
}

func (m *Metrics) RecordLLMCall(model, llm string, duration time.Duration) {
	if m == nil {
		return
	}
	m.llmCalls.WithLabelValues(model, llm).Inc()
	m.llmCallDuration.WithLabelValues(model, llm).Observe(duration.Seconds())
}

func (m *Metrics) RecordLLMTokens(model, llm string, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	m.llmTokensInput.WithLabelValues(model, llm).Add(float64(inputTokens))
	m.llmTokensOutput.WithLabelValues(model, llm).Add(float64(outputTokens))
}

func (m *Metrics) RecordLLMError(model, llm string) {
	if m == nil {
		return
	}
	m.llmErrors.WithLabelValues(model, llm).Inc()
}

func (m *Metrics) RecordToolCall(toolName string, duration time.Duration) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(toolName).Inc()
	m.toolCallDuration.WithLabelValues(toolName).Observe(duration.Seconds())
}

func (m *Metrics) RecordToolError(toolName string) {
	if m == nil {
		return
	}
	m.toolErrors.WithLabelValues(toolName).Inc()
}

func (m *Metrics) RecordAgentRun(agentName string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.agentCalls.WithLabelValues(agentName).Inc()
	m.agentCallDuration.WithLabelValues(agentName).Observe(duration.Seconds())
	if err != nil {
		m.agentErrors.WithLabelValues(agentName).Inc()
	}
}

// Handler serves the registry in Prometheus text exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
