package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/agentflow/orchestrator"

// Tracer wraps the global OTel tracer provider under the module's
// instrumentation name, grounded on the teacher's use of
// otelhttp/otel.Tracer in its telemetry package.
type Tracer struct {
	tr trace.Tracer
}

// NewTracer returns a Tracer bound to the process-wide TracerProvider.
// Call telemetry.SetTracerProvider first if you want spans exported
// anywhere other than the no-op default.
func NewTracer() *Tracer {
	return &Tracer{tr: otel.Tracer(tracerName)}
}

// SetTracerProvider installs a global TracerProvider (cmd/orchestratord
// installs an SDK provider built with no exporter).
func SetTracerProvider(tp trace.TracerProvider) {
	otel.SetTracerProvider(tp)
}

// StartSpan starts a span named for a pipeline stage or agent call.
func (t *Tracer) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.tr.Start(ctx, name, trace.WithAttributes(attrs...))
}

// BreakerMetricsSink receives circuit-breaker state changes through
// resilience.MetricsSink without the telemetry package importing
// resilience (which would create a cycle, since resilience imports
// telemetry for its Logger).
type BreakerMetricsSink struct {
	openCircuits *int64Map
}

// NewBreakerMetricsSink builds a sink that tracks open-circuit counts by
// agent name. The /health endpoint does not read it; it asks the
// resilience.Registry for open circuits.
func NewBreakerMetricsSink() *BreakerMetricsSink {
	return &BreakerMetricsSink{openCircuits: newInt64Map()}
}

// RecordStateChange takes plain ints for from/to (1 == open) so this
// package never needs to import resilience for its State type; the
// resilience package adapts its own MetricsSink interface onto this type
// in resilience/metrics_adapter.go.
func (s *BreakerMetricsSink) RecordStateChange(agent string, from, to int) {
	if to == 1 { // open
		s.openCircuits.add(agent, 1)
	} else if from == 1 {
		s.openCircuits.add(agent, -1)
	}
}

func (s *BreakerMetricsSink) RecordRejection(agent string) {}

// OpenCircuits returns agents whose open-count is currently positive.
func (s *BreakerMetricsSink) OpenCircuits() map[string]int64 {
	out := s.openCircuits.snapshot()
	for agent, n := range out {
		if n <= 0 {
			delete(out, agent)
		}
	}
	return out
}
