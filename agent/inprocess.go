package agent

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"github.com/agentflow/orchestrator/registry"
)

// InProcessAdapter invokes a bound Go function with the filtered input.
// It is the transport used for agents compiled into the orchestrator
// process (calculator, search, weather, ...).
type InProcessAdapter struct {
	descriptor registry.Descriptor
	fn         Func
	limiter    *rate.Limiter
}

// NewInProcessAdapter binds a descriptor to the function that implements
// it.
func NewInProcessAdapter(d registry.Descriptor, fn Func) *InProcessAdapter {
	return &InProcessAdapter{descriptor: d, fn: fn, limiter: rateLimiterFor(d)}
}

// Call implements Adapter.
func (a *InProcessAdapter) Call(ctx context.Context, inv Invocation) Response {
	start := time.Now()

	if err := waitRateLimit(ctx, a.limiter); err != nil {
		return Failed(inv.AgentName, FailureRateLimited, err, inv.Attempt, time.Since(start))
	}

	filtered, err := FilterInput(a.descriptor, inv.Input)
	if err != nil {
		return Failed(inv.AgentName, FailureInputRejected, err, inv.Attempt, time.Since(start))
	}

	callCtx := ctx
	var cancel context.CancelFunc
	if !inv.Deadline.IsZero() {
		callCtx, cancel = context.WithDeadline(ctx, inv.Deadline)
		defer cancel()
	}

	type result struct {
		data any
		err  error
	}
	done := make(chan result, 1)
	go func() {
		data, err := a.fn(callCtx, filtered)
		done <- result{data: data, err: err}
	}()

	select {
	case <-callCtx.Done():
		return Failed(inv.AgentName, FailureTimeout, callCtx.Err(), inv.Attempt, time.Since(start))
	case r := <-done:
		if r.err != nil {
			return Failed(inv.AgentName, classify(r.err), r.err, inv.Attempt, time.Since(start))
		}
		return Succeeded(inv.AgentName, r.data, inv.Attempt, time.Since(start))
	}
}

func classify(err error) FailureKind {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	return FailureTransient
}
