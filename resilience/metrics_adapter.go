package resilience

import "github.com/agentflow/orchestrator/telemetry"

// telemetryMetricsAdapter adapts a *telemetry.BreakerMetricsSink (which
// knows nothing about resilience.State, to avoid an import cycle) onto
// the MetricsSink interface this package uses internally.
type telemetryMetricsAdapter struct {
	sink *telemetry.BreakerMetricsSink
}

// NewTelemetryMetricsSink wraps a telemetry-level sink for use as a
// BreakerConfig.Metrics value.
func NewTelemetryMetricsSink(sink *telemetry.BreakerMetricsSink) MetricsSink {
	return &telemetryMetricsAdapter{sink: sink}
}

func stateToInt(s State) int {
	if s == StateOpen {
		return 1
	}
	return 0
}

func (a *telemetryMetricsAdapter) RecordStateChange(agent string, from, to State) {
	a.sink.RecordStateChange(agent, stateToInt(from), stateToInt(to))
}

func (a *telemetryMetricsAdapter) RecordRejection(agent string) {
	a.sink.RecordRejection(agent)
}
