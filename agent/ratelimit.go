package agent

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/agentflow/orchestrator/registry"
)

// rateLimiterFor builds a per-agent token-bucket limiter from a
// descriptor's Limits.RateLimit (requests/sec, 0 = unlimited), grounded on
// the pack's x/time/rate usage for outbound call shaping. A burst of 1
// keeps the limiter from admitting bursts beyond the steady-state rate.
func rateLimiterFor(d registry.Descriptor) *rate.Limiter {
	if d.Limits.RateLimit <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(d.Limits.RateLimit), 1)
}

// waitRateLimit blocks until the limiter admits the call or ctx is done,
// one of the suspension points spec.md §5 enumerates. A nil limiter
// (unlimited) never blocks.
func waitRateLimit(ctx context.Context, l *rate.Limiter) error {
	if l == nil {
		return nil
	}
	return l.Wait(ctx)
}
