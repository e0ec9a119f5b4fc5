package telemetry

import (
	"context"
	"math"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/metric"
)

// int64Map is a tiny string-keyed atomic counter map used for per-agent
// call/failure tallies.
type int64Map struct {
	mu sync.Mutex
	m  map[string]int64
}

func newInt64Map() *int64Map { return &int64Map{m: make(map[string]int64)} }

func (c *int64Map) add(key string, delta int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] += delta
}

func (c *int64Map) snapshot() map[string]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int64, len(c.m))
	for k, v := range c.m {
		out[k] = v
	}
	return out
}

// Metrics aggregates the counters that the pipeline records and the
// /stats endpoint reads, backed by OTel instruments
// when a Meter is supplied and always mirrored into plain atomics so
// /stats can read them without touching the exporter.
type Metrics struct {
	requestsTotal   atomic.Int64
	requestsSuccess atomic.Int64
	requestsFailed  atomic.Int64
	retriesTotal    atomic.Int64
	hallucinations  atomic.Int64
	confidenceSum   atomic.Uint64 // math.Float64bits of accumulated sum
	confidenceCount atomic.Int64
	agentCalls      *int64Map
	agentFailures   *int64Map

	requestCounter   metric.Int64Counter
	retryCounter     metric.Int64Counter
	agentCallCounter metric.Int64Counter
}

// NewMetrics builds a Metrics instance. meter may be nil, in which case
// only the in-process atomics are kept (used in tests and by the
// zero-dependency SimpleLogger deployment mode).
func NewMetrics(meter metric.Meter) *Metrics {
	m := &Metrics{
		agentCalls:    newInt64Map(),
		agentFailures: newInt64Map(),
	}
	if meter != nil {
		m.requestCounter, _ = meter.Int64Counter("orchestrator.requests_total")
		m.retryCounter, _ = meter.Int64Counter("orchestrator.retries_total")
		m.agentCallCounter, _ = meter.Int64Counter("orchestrator.agent_calls_total")
	}
	return m
}

func (m *Metrics) RecordRequest(ctx context.Context, success bool) {
	m.requestsTotal.Add(1)
	if success {
		m.requestsSuccess.Add(1)
	} else {
		m.requestsFailed.Add(1)
	}
	if m.requestCounter != nil {
		m.requestCounter.Add(ctx, 1)
	}
}

func (m *Metrics) RecordRetry(ctx context.Context) {
	m.retriesTotal.Add(1)
	if m.retryCounter != nil {
		m.retryCounter.Add(ctx, 1)
	}
}

func (m *Metrics) RecordHallucination() { m.hallucinations.Add(1) }

func (m *Metrics) RecordConfidence(v float64) {
	m.confidenceCount.Add(1)
	for {
		old := m.confidenceSum.Load()
		sum := math.Float64frombits(old) + v
		if m.confidenceSum.CompareAndSwap(old, math.Float64bits(sum)) {
			return
		}
	}
}

func (m *Metrics) RecordAgentCall(ctx context.Context, agentName string, failed bool) {
	m.agentCalls.add(agentName, 1)
	if failed {
		m.agentFailures.add(agentName, 1)
	}
	if m.agentCallCounter != nil {
		m.agentCallCounter.Add(ctx, 1)
	}
}

// Snapshot is the JSON-serializable view returned by GET /stats.
type Snapshot struct {
	RequestsTotal     int64            `json:"requests_total"`
	RequestsSuccess   int64            `json:"requests_success"`
	RequestsFailed    int64            `json:"requests_failed"`
	RetryRate         float64          `json:"retry_rate"`
	HallucinationRate float64          `json:"hallucination_rate"`
	AvgConfidence     float64          `json:"avg_confidence"`
	AgentCalls        map[string]int64 `json:"agent_calls"`
	AgentFailures     map[string]int64 `json:"agent_failures"`
}

func (m *Metrics) Snapshot() Snapshot {
	total := m.requestsTotal.Load()
	var retryRate, hallRate, avgConf float64
	if total > 0 {
		retryRate = float64(m.retriesTotal.Load()) / float64(total)
		hallRate = float64(m.hallucinations.Load()) / float64(total)
	}
	if c := m.confidenceCount.Load(); c > 0 {
		avgConf = math.Float64frombits(m.confidenceSum.Load()) / float64(c)
	}
	return Snapshot{
		RequestsTotal:     total,
		RequestsSuccess:   m.requestsSuccess.Load(),
		RequestsFailed:    m.requestsFailed.Load(),
		RetryRate:         retryRate,
		HallucinationRate: hallRate,
		AvgConfidence:     avgConf,
		AgentCalls:        m.agentCalls.snapshot(),
		AgentFailures:     m.agentFailures.snapshot(),
	}
}
