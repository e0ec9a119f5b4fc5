package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTableGetMissingReturnsZeroState(t *testing.T) {
	tbl := New(time.Hour)
	s := tbl.Get("unknown")
	assert.Equal(t, 0, s.RequestCount)
}

func TestTableTouchIncrementsRequestCount(t *testing.T) {
	tbl := New(time.Hour)
	now := time.Unix(1000, 0)
	tbl.Touch("s1", "weather", now)
	tbl.Touch("s1", "", now.Add(time.Second))

	s := tbl.Get("s1")
	assert.Equal(t, 2, s.RequestCount)
	assert.Equal(t, "weather", s.LastTopic, "empty topic on second touch should not clobber the last one")
}

func TestTableEntriesAreReplacedNotMutated(t *testing.T) {
	tbl := New(time.Hour)
	now := time.Unix(1000, 0)
	first := tbl.Touch("s1", "math", now)
	second := tbl.Touch("s1", "weather", now.Add(time.Minute))

	assert.Equal(t, "math", first.LastTopic)
	assert.Equal(t, "weather", second.LastTopic, "returned snapshots must not alias shared mutable state")
}

func TestTableExpiresIdleSessionOnGet(t *testing.T) {
	tbl := New(time.Millisecond)
	now := time.Unix(1000, 0)
	tbl.Touch("s1", "math", now)

	s := tbl.Get("s1")
	assert.Equal(t, 0, s.RequestCount, "a session older than TTL relative to wall clock should read as expired")
}

func TestTableEvictIdleRemovesExpiredSessions(t *testing.T) {
	tbl := New(time.Minute)
	base := time.Unix(1_700_000_000, 0)
	tbl.Touch("old", "x", base)
	tbl.Touch("fresh", "y", base.Add(90*time.Second))

	evicted := tbl.EvictIdle(base.Add(2 * time.Minute))
	assert.Equal(t, 1, evicted)
	assert.Equal(t, 1, tbl.Len())
}

func TestTableDistributesAcrossShards(t *testing.T) {
	tbl := New(time.Hour)
	now := time.Now()
	for i := 0; i < 100; i++ {
		tbl.Touch(string(rune('a'+i%26))+string(rune(i)), "topic", now)
	}
	assert.Equal(t, 100, tbl.Len())
}
