package orchestrator

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/agentflow/orchestrator/envelope"
	"github.com/agentflow/orchestrator/sanitize"
)

// responseCache is a small TTL cache of envelope-hash -> final response,
// grounded on pkg/orchestration/orchestrator.go's cachedResponse/
// cleanupCache. Disabled by default; never stores a response produced by
// a retry or one with a validation warning.
type responseCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

type cacheEntry struct {
	response envelope.Response
	storedAt time.Time
}

func newResponseCache(ttl time.Duration) *responseCache {
	return &responseCache{ttl: ttl, entries: make(map[string]cacheEntry)}
}

func (c *responseCache) get(key string) (envelope.Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return envelope.Response{}, false
	}
	if time.Since(entry.storedAt) > c.ttl {
		delete(c.entries, key)
		return envelope.Response{}, false
	}
	return entry.response, true
}

func (c *responseCache) put(key string, resp envelope.Response, now time.Time) {
	if resp.Metadata.ValidationWarning != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{response: resp, storedAt: now}
}

// envelopeKey hashes the parts of a request that determine its answer,
// excluding session_id and any correlation identifiers.
func envelopeKey(req envelope.Request) string {
	h := sha256.New()
	fmt.Fprintf(h, "query=%s\n", sanitize.Strip(req.Query))
	keys := make([]string, 0, len(req.Fields))
	for k := range req.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%v\n", k, req.Fields[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}
