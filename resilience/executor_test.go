package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentflow/orchestrator/agent"
	"github.com/agentflow/orchestrator/registry"
)

type fakeAdapter struct {
	calls int
	fn    func(call int) agent.Response
}

func (f *fakeAdapter) Call(ctx context.Context, inv agent.Invocation) agent.Response {
	f.calls++
	return f.fn(f.calls)
}

type fakeResolver struct {
	adapters    map[string]agent.Adapter
	descriptors map[string]registry.Descriptor
}

func (r *fakeResolver) Resolve(name string) (agent.Adapter, registry.Descriptor, bool) {
	a, ok := r.adapters[name]
	if !ok {
		return nil, registry.Descriptor{}, false
	}
	return a, r.descriptors[name], true
}

func newResolver() *fakeResolver {
	return &fakeResolver{adapters: map[string]agent.Adapter{}, descriptors: map[string]registry.Descriptor{}}
}

func (r *fakeResolver) add(d registry.Descriptor, a agent.Adapter) {
	r.descriptors[d.Name] = d
	r.adapters[d.Name] = a
}

func TestExecutorSingleSucceedsFirstTry(t *testing.T) {
	resolver := newResolver()
	resolver.add(registry.Descriptor{Name: "calc", Enabled: true, Limits: registry.Limits{MaxRetries: 2}}, &fakeAdapter{
		fn: func(call int) agent.Response { return agent.Succeeded("calc", 42, call, time.Millisecond) },
	})
	e := NewExecutor(resolver, NewRegistry(DefaultBreakerConfig()), 3, nil)

	resp := e.Single(context.Background(), agent.Invocation{AgentName: "calc"})
	assert.True(t, resp.Success)
}

func TestExecutorRetriesOnTransientThenSucceeds(t *testing.T) {
	resolver := newResolver()
	resolver.add(registry.Descriptor{Name: "calc", Enabled: true, Limits: registry.Limits{MaxRetries: 2}}, &fakeAdapter{
		fn: func(call int) agent.Response {
			if call < 3 {
				return agent.Failed("calc", agent.FailureTransient, errors.New("boom"), call, time.Millisecond)
			}
			return agent.Succeeded("calc", "ok", call, time.Millisecond)
		},
	})
	e := NewExecutor(resolver, NewRegistry(DefaultBreakerConfig()), 3, nil)
	e.backoff = BackoffConfig{Base: time.Millisecond, Cap: 2 * time.Millisecond}

	resp := e.Single(context.Background(), agent.Invocation{AgentName: "calc"})
	assert.True(t, resp.Success)
	assert.Equal(t, 3, resp.Attempts)
}

func TestExecutorDoesNotRetryPermanentFailures(t *testing.T) {
	resolver := newResolver()
	calls := 0
	resolver.add(registry.Descriptor{Name: "calc", Enabled: true, Limits: registry.Limits{MaxRetries: 3}}, &fakeAdapter{
		fn: func(call int) agent.Response {
			calls++
			return agent.Failed("calc", agent.FailurePermanent, errors.New("bad input"), call, time.Millisecond)
		},
	})
	e := NewExecutor(resolver, NewRegistry(DefaultBreakerConfig()), 3, nil)

	resp := e.Single(context.Background(), agent.Invocation{AgentName: "calc"})
	assert.False(t, resp.Success)
	assert.Equal(t, 1, calls)
}

func TestExecutorFallsBackAfterExhaustingRetries(t *testing.T) {
	resolver := newResolver()
	resolver.add(registry.Descriptor{Name: "primary", Enabled: true, Fallback: "backup", Limits: registry.Limits{MaxRetries: 0}}, &fakeAdapter{
		fn: func(call int) agent.Response {
			return agent.Failed("primary", agent.FailureTimeout, errors.New("timeout"), call, time.Millisecond)
		},
	})
	resolver.add(registry.Descriptor{Name: "backup", Enabled: true}, &fakeAdapter{
		fn: func(call int) agent.Response { return agent.Succeeded("backup", "ok", call, time.Millisecond) },
	})
	e := NewExecutor(resolver, NewRegistry(DefaultBreakerConfig()), 3, nil)

	resp := e.Single(context.Background(), agent.Invocation{AgentName: "primary"})
	require.True(t, resp.Success)
	assert.True(t, resp.FellBack)
}

func TestExecutorSubstitutesFallbackWhenCircuitOpen(t *testing.T) {
	resolver := newResolver()
	resolver.add(registry.Descriptor{Name: "primary", Enabled: true, Fallback: "backup", Limits: registry.Limits{MaxRetries: 0}}, &fakeAdapter{
		fn: func(call int) agent.Response { return agent.Failed("primary", agent.FailureTransient, errors.New("x"), call, 0) },
	})
	resolver.add(registry.Descriptor{Name: "backup", Enabled: true}, &fakeAdapter{
		fn: func(call int) agent.Response { return agent.Succeeded("backup", "ok", call, 0) },
	})
	breakers := NewRegistry(BreakerConfig{FailureThreshold: 1, CoolDown: time.Hour})
	e := NewExecutor(resolver, breakers, 3, nil)

	// First call opens the primary's circuit.
	e.Single(context.Background(), agent.Invocation{AgentName: "primary"})
	// Second call should short-circuit straight to fallback.
	resp := e.Single(context.Background(), agent.Invocation{AgentName: "primary"})
	assert.True(t, resp.Success)
	assert.True(t, resp.FellBack)
}

func TestExecutorReturnsCircuitOpenWithNoFallback(t *testing.T) {
	resolver := newResolver()
	resolver.add(registry.Descriptor{Name: "primary", Enabled: true}, &fakeAdapter{
		fn: func(call int) agent.Response { return agent.Failed("primary", agent.FailureTransient, errors.New("x"), call, 0) },
	})
	breakers := NewRegistry(BreakerConfig{FailureThreshold: 1, CoolDown: time.Hour})
	e := NewExecutor(resolver, breakers, 3, nil)

	e.Single(context.Background(), agent.Invocation{AgentName: "primary"})
	resp := e.Single(context.Background(), agent.Invocation{AgentName: "primary"})
	assert.False(t, resp.Success)
	assert.Equal(t, agent.FailureCircuitOpen, resp.ErrorKind)
}

func TestExecutorParallelBoundsConcurrency(t *testing.T) {
	resolver := newResolver()
	var inFlight, maxInFlight int32
	mkAdapter := func(name string) agent.Adapter {
		return &fakeAdapter{fn: func(call int) agent.Response {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				prev := atomic.LoadInt32(&maxInFlight)
				if n <= prev || atomic.CompareAndSwapInt32(&maxInFlight, prev, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			return agent.Succeeded(name, "ok", call, time.Millisecond)
		}}
	}
	for _, n := range []string{"a", "b", "c", "d", "e"} {
		resolver.add(registry.Descriptor{Name: n, Enabled: true}, mkAdapter(n))
	}
	e := NewExecutor(resolver, NewRegistry(DefaultBreakerConfig()), 2, nil)

	specs := []CallSpec{{AgentName: "a"}, {AgentName: "b"}, {AgentName: "c"}, {AgentName: "d"}, {AgentName: "e"}}
	results := e.Parallel(context.Background(), specs, "q1", "s1")
	for _, r := range results {
		assert.True(t, r.Success)
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&maxInFlight), int32(2))
}

func TestExecutorSequentialInjectsPriorOutputs(t *testing.T) {
	resolver := newResolver()
	resolver.add(registry.Descriptor{Name: "first", Enabled: true}, &fakeAdapter{
		fn: func(call int) agent.Response { return agent.Succeeded("first", "hello", call, 0) },
	})
	var secondInput map[string]any
	resolver.add(registry.Descriptor{Name: "second", Enabled: true}, &fakeAdapter{
		fn: func(call int) agent.Response { return agent.Succeeded("second", "ok", call, 0) },
	})
	e := NewExecutor(resolver, NewRegistry(DefaultBreakerConfig()), 3, nil)

	specs := []CallSpec{{AgentName: "first"}, {AgentName: "second", Input: map[string]any{}}}
	results := e.Sequential(context.Background(), specs, "q1", "s1", func(done []agent.Response, next *CallSpec) {
		if next.AgentName == "second" && len(done) > 0 {
			next.Input["prior"] = done[0].Data
			secondInput = next.Input
		}
	})
	require.Len(t, results, 2)
	assert.Equal(t, "hello", secondInput["prior"])
}
