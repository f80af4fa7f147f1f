// Package telemetry wires the orchestration core's tracer and metrics
// registry: a per-call span around each LLM completion, with the call's
// trace id folded into message.Metrics["weave_call"]. Tool executions are
// recorded as metrics only, without a span.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const tracerName = "github.com/kadirpekel/threadrunner"

// NewTracerProvider builds the process-wide TracerProvider named by cfg. No
// span exporter is wired (see DESIGN.md): spans still generate real trace
// and span ids usable for weave_call correlation, they are simply never
// shipped to a collector. Disabled config returns an inert no-op provider.
func NewTracerProvider(ctx context.Context, cfg Config) (trace.TracerProvider, error) {
	if !cfg.Enabled {
		return noop.NewTracerProvider(), nil
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("building telemetry resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	otel.SetTracerProvider(tp)
	return tp, nil
}

// Tracer returns the named tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// Config controls whether tracing/metrics are active and under what
// service/namespace identity they report.
type Config struct {
	Enabled          bool
	ServiceName      string
	MetricsNamespace string
}
