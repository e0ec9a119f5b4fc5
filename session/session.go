// Package session tracks lightweight per-caller state used by the
// response-wrapping layer: request counts and the last topic discussed,
// evicted after an idle TTL (spec.md §4.8).
package session

import (
	"sync"
	"time"
)

// State is the per-session record. Table replaces entries wholesale
// rather than mutating them in place, so a State value returned by Get
// is a point-in-time snapshot safe to read without further locking.
type State struct {
	SessionID      string
	RequestCount   int
	LastTopic      string
	LastUpdateTime time.Time
}

// Store is the interface the orchestrator depends on for per-caller
// session state, letting the in-memory striped-lock Table be swapped for
// a shared backend (RedisStore) in multi-process deployments without
// touching call sites.
type Store interface {
	Get(sessionID string) State
	Touch(sessionID, topic string, now time.Time) State
}

const shardCount = 32

type shard struct {
	mu      sync.RWMutex
	entries map[string]State
}

// Table is a striped-lock session store (spec.md §6's "session table uses
// a striped lock; entries are replaced, not mutated in place, to keep
// readers lock-free").
type Table struct {
	shards [shardCount]*shard
	ttl    time.Duration
}

var _ Store = (*Table)(nil)

// DefaultIdleTTL is the default eviction window from spec.md §4.8.
const DefaultIdleTTL = 24 * time.Hour

// New builds a Table with the given idle TTL. A zero ttl uses DefaultIdleTTL.
func New(ttl time.Duration) *Table {
	if ttl <= 0 {
		ttl = DefaultIdleTTL
	}
	t := &Table{ttl: ttl}
	for i := range t.shards {
		t.shards[i] = &shard{entries: make(map[string]State)}
	}
	return t
}

func (t *Table) shardFor(sessionID string) *shard {
	h := fnv32(sessionID)
	return t.shards[h%shardCount]
}

// Get returns the session state, creating a fresh zero-request record if
// none exists yet or the existing one has expired.
func (t *Table) Get(sessionID string) State {
	s := t.shardFor(sessionID)
	s.mu.RLock()
	entry, ok := s.entries[sessionID]
	s.mu.RUnlock()
	if !ok || t.expired(entry) {
		return State{SessionID: sessionID}
	}
	return entry
}

// Touch records a new request against a session, bumping RequestCount and
// optionally updating LastTopic, replacing the stored entry atomically
// under the shard lock.
func (t *Table) Touch(sessionID, topic string, now time.Time) State {
	s := t.shardFor(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[sessionID]
	if !ok || t.expired(entry) {
		entry = State{SessionID: sessionID}
	}
	entry.RequestCount++
	if topic != "" {
		entry.LastTopic = topic
	}
	entry.LastUpdateTime = now
	s.entries[sessionID] = entry
	return entry
}

func (t *Table) expired(entry State) bool {
	return !entry.LastUpdateTime.IsZero() && time.Since(entry.LastUpdateTime) > t.ttl
}

// EvictIdle removes every session whose last update is older than the
// table's TTL relative to now. Intended to be called periodically by a
// background janitor goroutine.
func (t *Table) EvictIdle(now time.Time) int {
	evicted := 0
	for _, s := range t.shards {
		s.mu.Lock()
		for id, entry := range s.entries {
			if now.Sub(entry.LastUpdateTime) > t.ttl {
				delete(s.entries, id)
				evicted++
			}
		}
		s.mu.Unlock()
	}
	return evicted
}

// Len returns the total number of tracked sessions across all shards.
func (t *Table) Len() int {
	n := 0
	for _, s := range t.shards {
		s.mu.RLock()
		n += len(s.entries)
		s.mu.RUnlock()
	}
	return n
}

// fnv32 is a tiny allocation-free string hash used only to pick a shard.
func fnv32(s string) uint32 {
	const prime32 = 16777619
	h := uint32(2166136261)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime32
	}
	return h
}
