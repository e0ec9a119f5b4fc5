package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := NewBreaker("x", BreakerConfig{FailureThreshold: 3, CoolDown: time.Minute})

	for i := 0; i < 2; i++ {
		assert.True(t, b.Allow())
		b.RecordFailure()
	}
	assert.Equal(t, StateClosed, b.Snapshot().State)

	assert.True(t, b.Allow())
	b.RecordFailure()
	assert.Equal(t, StateOpen, b.Snapshot().State)
}

func TestBreakerRejectsWhileOpen(t *testing.T) {
	b := NewBreaker("x", BreakerConfig{FailureThreshold: 1, CoolDown: time.Hour})
	b.Allow()
	b.RecordFailure()

	assert.False(t, b.Allow())
}

func TestBreakerHalfOpensAfterCooldown(t *testing.T) {
	b := NewBreaker("x", BreakerConfig{FailureThreshold: 1, CoolDown: 10 * time.Millisecond})
	b.Allow()
	b.RecordFailure()
	require := assert.New(t)
	require.Equal(StateOpen, b.Snapshot().State)

	time.Sleep(20 * time.Millisecond)
	assert.True(t, b.Allow())
	assert.Equal(t, StateHalfOpen, b.Snapshot().State)
}

func TestBreakerHalfOpenSuccessCloses(t *testing.T) {
	b := NewBreaker("x", BreakerConfig{FailureThreshold: 1, CoolDown: time.Millisecond})
	b.Allow()
	b.RecordFailure()
	time.Sleep(5 * time.Millisecond)

	assert.True(t, b.Allow())
	b.RecordSuccess()
	assert.Equal(t, StateClosed, b.Snapshot().State)
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := NewBreaker("x", BreakerConfig{FailureThreshold: 1, CoolDown: time.Millisecond})
	b.Allow()
	b.RecordFailure()
	time.Sleep(5 * time.Millisecond)

	assert.True(t, b.Allow())
	b.RecordFailure()
	assert.Equal(t, StateOpen, b.Snapshot().State)
}

func TestBreakerHalfOpenAllowsOnlyOneProbe(t *testing.T) {
	b := NewBreaker("x", BreakerConfig{FailureThreshold: 1, CoolDown: time.Millisecond})
	b.Allow()
	b.RecordFailure()
	time.Sleep(5 * time.Millisecond)

	assert.True(t, b.Allow())
	assert.False(t, b.Allow(), "no second probe while the first is in flight")
}

func TestBreakerNeverTransitionsClosedToHalfOpenDirectly(t *testing.T) {
	b := NewBreaker("x", BreakerConfig{FailureThreshold: 5, CoolDown: time.Minute})
	b.Allow()
	b.RecordFailure()
	assert.Equal(t, StateClosed, b.Snapshot().State)
}

func TestRegistryGetIsStablePerName(t *testing.T) {
	r := NewRegistry(DefaultBreakerConfig())
	b1 := r.Get("a")
	b2 := r.Get("a")
	assert.Same(t, b1, b2)
}

func TestRegistryOpenCircuits(t *testing.T) {
	r := NewRegistry(BreakerConfig{FailureThreshold: 1, CoolDown: time.Hour})
	b := r.Get("a")
	b.Allow()
	b.RecordFailure()

	assert.Equal(t, []string{"a"}, r.OpenCircuits())
}
