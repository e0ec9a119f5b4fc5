package resilience

import (
	"context"
	"sync"

	"github.com/agentflow/orchestrator/agent"
)

// Parallel runs each CallSpec through Single concurrently, bounded by the
// executor's maxConcurrency semaphore. It returns when every call has
// either succeeded or exhausted retries/fallback; a single failure never
// aborts its peers (spec.md §4.4).
func (e *Executor) Parallel(ctx context.Context, specs []CallSpec, queryID, sessionID string) []agent.Response {
	results := make([]agent.Response, len(specs))
	sem := make(chan struct{}, e.maxConcurrency)
	var wg sync.WaitGroup

	for i, spec := range specs {
		wg.Add(1)
		go func(i int, spec CallSpec) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			inv := agent.Invocation{
				AgentName: spec.AgentName,
				Input:     spec.Input,
				QueryID:   queryID,
				SessionID: sessionID,
			}
			results[i] = e.Single(ctx, inv)
		}(i, spec)
	}

	wg.Wait()
	return results
}

// Sequential runs each CallSpec through Single one at a time, in order.
// inject, when non-nil, is called after each step so the caller can fold
// a successful response's data into the input of a later step (named
// outputs feeding later inputs, per spec.md §4.4).
func (e *Executor) Sequential(ctx context.Context, specs []CallSpec, queryID, sessionID string, inject func(done []agent.Response, next *CallSpec)) []agent.Response {
	results := make([]agent.Response, 0, len(specs))
	for _, spec := range specs {
		if inject != nil {
			inject(results, &spec)
		}
		inv := agent.Invocation{
			AgentName: spec.AgentName,
			Input:     spec.Input,
			QueryID:   queryID,
			SessionID: sessionID,
		}
		results = append(results, e.Single(ctx, inv))
	}
	return results
}
