// Package resilience implements the per-agent circuit breaker and the
// retry/backoff/fallback executor that sits on top of it (C3, C4).
package resilience

import (
	"sync"
	"time"
)

// State is one of the three circuit-breaker states.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// MetricsSink receives circuit-breaker observations. A nil sink is
// replaced with a no-op implementation.
type MetricsSink interface {
	RecordStateChange(agent string, from, to State)
	RecordRejection(agent string)
}

type noopSink struct{}

func (noopSink) RecordStateChange(string, State, State) {}
func (noopSink) RecordRejection(string)                 {}

// BreakerConfig configures a single agent's circuit breaker.
type BreakerConfig struct {
	FailureThreshold int           // T in the spec, default 5
	CoolDown         time.Duration // default 30s
	Metrics          MetricsSink
}

// DefaultBreakerConfig returns the spec's defaults: threshold 5, 30s
// cool-down.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{FailureThreshold: 5, CoolDown: 30 * time.Second, Metrics: noopSink{}}
}

// Breaker is a per-agent three-state circuit breaker: closed allows
// calls and counts consecutive failures; open short-circuits calls until
// the cool-down elapses; half_open allows exactly one probe.
type Breaker struct {
	name   string
	config BreakerConfig

	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	openedAt            time.Time
	probeInFlight       bool
}

// NewBreaker creates a closed breaker for the named agent.
func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.CoolDown <= 0 {
		cfg.CoolDown = 30 * time.Second
	}
	if cfg.Metrics == nil {
		cfg.Metrics = noopSink{}
	}
	return &Breaker{name: name, config: cfg, state: StateClosed}
}

// Snapshot is a point-in-time copy of breaker state, taken under the
// breaker's lock, for logging and the /health endpoint.
type Snapshot struct {
	State               State
	ConsecutiveFailures int
	OpenedAt            time.Time
	CoolDown            time.Duration
}

func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{State: b.state, ConsecutiveFailures: b.consecutiveFailures, OpenedAt: b.openedAt, CoolDown: b.config.CoolDown}
}

// Allow reports whether a call may proceed right now, transitioning
// open -> half_open when the cool-down has elapsed. It reserves the
// single half-open probe slot so concurrent callers don't all probe at
// once.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(b.openedAt) < b.config.CoolDown {
			b.config.Metrics.RecordRejection(b.name)
			return false
		}
		b.setState(StateHalfOpen)
		b.probeInFlight = true
		return true
	case StateHalfOpen:
		if b.probeInFlight {
			b.config.Metrics.RecordRejection(b.name)
			return false
		}
		b.probeInFlight = true
		return true
	default:
		return false
	}
}

// RecordSuccess resets the failure count and, from half_open, closes the
// breaker.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures = 0
	if b.state == StateHalfOpen {
		b.probeInFlight = false
		b.setState(StateClosed)
	}
}

// RecordFailure increments the failure count, opening the breaker when
// the threshold is crossed, or re-opening immediately on a failed
// half-open probe.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.probeInFlight = false
		b.openedAt = time.Now()
		b.setState(StateOpen)
		return
	}

	b.consecutiveFailures++
	if b.consecutiveFailures >= b.config.FailureThreshold {
		b.openedAt = time.Now()
		b.setState(StateOpen)
	}
}

// setState must be called with mu held.
func (b *Breaker) setState(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.config.Metrics.RecordStateChange(b.name, from, to)
}

// Registry holds one Breaker per agent name, created lazily.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*Breaker
	config   BreakerConfig
}

// NewRegistry creates a breaker registry sharing the given config across
// all agents it creates breakers for.
func NewRegistry(cfg BreakerConfig) *Registry {
	return &Registry{breakers: make(map[string]*Breaker), config: cfg}
}

// Get returns the breaker for name, creating one if this is the first
// call for that name.
func (r *Registry) Get(name string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[name]; ok {
		return b
	}
	b := NewBreaker(name, r.config)
	r.breakers[name] = b
	return b
}

// OpenCircuits returns the names of agents currently in the open state,
// for the /health endpoint.
func (r *Registry) OpenCircuits() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var open []string
	for name, b := range r.breakers {
		if b.Snapshot().State == StateOpen {
			open = append(open, name)
		}
	}
	return open
}
