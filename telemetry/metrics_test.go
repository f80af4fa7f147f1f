package telemetry

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_DisabledReturnsNil(t *testing.T) {
	m := NewMetrics(Config{Enabled: false})
	assert.Nil(t, m)

	// recording against a nil receiver must never panic.
	m.RecordLLMCall("gpt", "anthropic", time.Millisecond)
	m.RecordToolCall("lookup", time.Millisecond)
	m.RecordAgentRun("lead", time.Millisecond, nil)
}

func TestNewMetrics_EnabledRecordsAndServesHandler(t *testing.T) {
	m := NewMetrics(Config{Enabled: true, MetricsNamespace: "test"})
	require.NotNil(t, m)

	m.RecordLLMCall("gpt", "anthropic", 10*time.Millisecond)
	m.RecordLLMTokens("gpt", "anthropic", 100, 50)
	m.RecordToolCall("lookup", time.Millisecond)
	m.RecordToolError("lookup")
	m.RecordAgentRun("lead", 5*time.Millisecond, nil)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_llm_calls_total")
	assert.Contains(t, rec.Body.String(), "test_tool_errors_total")
}

func TestNewTracerProvider_DisabledReturnsNoop(t *testing.T) {
	tp, err := NewTracerProvider(context.Background(), Config{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, tp)

	_, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()
	assert.False(t, span.SpanContext().HasTraceID())
}
