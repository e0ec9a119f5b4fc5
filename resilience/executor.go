package resilience

import (
	"context"
	"math/rand"
	"time"

	"github.com/agentflow/orchestrator/agent"
	"github.com/agentflow/orchestrator/registry"
	"github.com/agentflow/orchestrator/telemetry"
)

// Resolver looks up the adapter and descriptor bound to an agent name. It
// is satisfied by a thin wrapper over the registry plus a name->Adapter
// map built at startup.
type Resolver interface {
	Resolve(name string) (agent.Adapter, registry.Descriptor, bool)
}

// BackoffConfig controls the delay between retry attempts:
// min(base*2^(attempt-1), cap) * jitter(0.5..1.5).
type BackoffConfig struct {
	Base time.Duration
	Cap  time.Duration
}

// DefaultBackoffConfig matches the spec's fixed formula.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{Base: 100 * time.Millisecond, Cap: 5 * time.Second}
}

func (c BackoffConfig) delay(attempt int, rng *rand.Rand) time.Duration {
	d := c.Base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d > c.Cap {
			d = c.Cap
			break
		}
	}
	if d > c.Cap {
		d = c.Cap
	}
	jitter := 0.5 + rng.Float64()
	return time.Duration(float64(d) * jitter)
}

// Executor runs single-agent calls under breaker, retry, timeout, and
// fallback discipline (C4), and runs collections of agent calls in
// parallel or in sequence with bounded concurrency.
type Executor struct {
	resolver       Resolver
	breakers       *Registry
	backoff        BackoffConfig
	maxConcurrency int
	logger         telemetry.Logger
}

// NewExecutor builds an Executor. maxConcurrency bounds parallel agent
// calls (default 3, per spec).
func NewExecutor(resolver Resolver, breakers *Registry, maxConcurrency int, logger telemetry.Logger) *Executor {
	if maxConcurrency <= 0 {
		maxConcurrency = 3
	}
	if logger == nil {
		logger = telemetry.NoopLogger{}
	}
	return &Executor{
		resolver:       resolver,
		breakers:       breakers,
		backoff:        DefaultBackoffConfig(),
		maxConcurrency: maxConcurrency,
		logger:         logger,
	}
}

// CallSpec is one (agent, input) pair to execute.
type CallSpec struct {
	AgentName string
	Input     map[string]any
}

// Single runs one agent call to completion, including retries, timeout,
// and fallback substitution, per spec.md §4.4.
func (e *Executor) Single(ctx context.Context, baseInv agent.Invocation) agent.Response {
	name := baseInv.AgentName
	breaker := e.breakers.Get(name)

	adapter, desc, ok := e.resolver.Resolve(name)
	if !ok {
		return agent.Failed(name, agent.FailurePermanent, errUnknownAgent(name), 0, 0)
	}

	if !breaker.Allow() {
		if desc.Fallback != "" {
			if fbAdapter, fbDesc, fbOK := e.resolver.Resolve(desc.Fallback); fbOK && fbDesc.Enabled {
				resp := e.attemptWithRetry(ctx, fbAdapter, fbDesc, withAgent(baseInv, desc.Fallback))
				resp.FellBack = true
				return resp
			}
		}
		return agent.Failed(name, agent.FailureCircuitOpen, errCircuitOpen(name), 0, 0)
	}

	resp := e.attemptWithRetry(ctx, adapter, desc, baseInv)
	if resp.Success {
		breaker.RecordSuccess()
		return resp
	}
	breaker.RecordFailure()

	if desc.Fallback != "" {
		if fbAdapter, fbDesc, fbOK := e.resolver.Resolve(desc.Fallback); fbOK && fbDesc.Enabled {
			fbBreaker := e.breakers.Get(desc.Fallback)
			if fbBreaker.Allow() {
				fbResp := e.callOnce(ctx, fbAdapter, fbDesc, withAgent(baseInv, desc.Fallback), 1)
				if fbResp.Success {
					fbBreaker.RecordSuccess()
				} else {
					fbBreaker.RecordFailure()
				}
				fbResp.FellBack = true
				return fbResp
			}
		}
	}
	return resp
}

// attemptWithRetry runs up to desc.Limits.MaxRetries+1 attempts, applying
// backoff between retriable failures.
func (e *Executor) attemptWithRetry(ctx context.Context, a agent.Adapter, desc registry.Descriptor, inv agent.Invocation) agent.Response {
	maxAttempts := desc.Limits.MaxRetries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	var last agent.Response
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		last = e.callOnce(ctx, a, desc, inv, attempt)
		if last.Success {
			return last
		}
		if !last.ErrorKind.Retriable() {
			return last
		}
		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return agent.Failed(inv.AgentName, agent.FailureTimeout, ctx.Err(), attempt, last.ExecutionTime)
		case <-time.After(e.backoff.delay(attempt, rng)):
		}
	}
	return last
}

func (e *Executor) callOnce(ctx context.Context, a agent.Adapter, desc registry.Descriptor, inv agent.Invocation, attempt int) agent.Response {
	inv.Attempt = attempt
	if desc.Limits.Timeout > 0 {
		inv.Deadline = time.Now().Add(desc.Limits.Timeout)
	}
	return a.Call(ctx, inv)
}

func withAgent(inv agent.Invocation, name string) agent.Invocation {
	inv.AgentName = name
	return inv
}

func errUnknownAgent(name string) error { return &unknownAgentError{name} }

type unknownAgentError struct{ name string }

func (e *unknownAgentError) Error() string { return "unknown agent: " + e.name }

func errCircuitOpen(name string) error { return &circuitOpenError{name} }

type circuitOpenError struct{ name string }

func (e *circuitOpenError) Error() string { return "circuit open for agent: " + e.name }
