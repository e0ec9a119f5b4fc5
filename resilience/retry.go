package resilience

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Classifier tells Retry whether an error returned by fn should be
// retried. Callers that don't classify (e.g. gateway calls) can treat
// every error as retriable up to MaxAttempts.
type Classifier func(error) bool

// AlwaysRetriable treats every non-nil error as retriable.
func AlwaysRetriable(error) bool { return true }

// Retry runs fn up to maxAttempts times using the spec's backoff formula,
// stopping early on a non-retriable error or context cancellation. It is
// the building block the reasoning and validation packages use to wrap
// their model-gateway calls with the same backoff policy that governs
// agent calls, without going through the full named-agent Single path.
func Retry(ctx context.Context, cfg BackoffConfig, maxAttempts int, classify Classifier, fn func(attempt int) error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if classify == nil {
		classify = AlwaysRetriable
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = fn(attempt)
		if lastErr == nil {
			return nil
		}
		if !classify(lastErr) || attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cfg.delay(attempt, rng)):
		}
	}
	return fmt.Errorf("resilience: exhausted %d attempt(s): %w", maxAttempts, lastErr)
}
