package session

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore backs the session.Store interface with Redis, for
// deployments running more than one orchestrator process behind a
// shared cache (grounded on the teacher's ui/session_redis.go, whose
// HSet-per-field layout this keeps; the striped-lock Table stays the
// single-process default).
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to redisURL (a redis:// or rediss:// URL) and
// pings it once so misconfiguration fails at startup rather than on the
// first request.
func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("session: invalid redis url: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultIdleTTL
	}

	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("session: redis ping failed: %w", err)
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

var _ Store = (*RedisStore)(nil)

func (r *RedisStore) key(sessionID string) string {
	return "agentflow:session:" + sessionID
}

// Get returns the session state, or a zero-request record if the key is
// missing or expired. Redis TTL eviction means "missing" and "expired"
// collapse into the same case here, unlike Table's explicit expired check.
func (r *RedisStore) Get(sessionID string) State {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	fields, err := r.client.HGetAll(ctx, r.key(sessionID)).Result()
	if err != nil || len(fields) == 0 {
		return State{SessionID: sessionID}
	}

	state := State{SessionID: sessionID, LastTopic: fields["last_topic"]}
	if n, err := strconv.Atoi(fields["request_count"]); err == nil {
		state.RequestCount = n
	}
	if ts, err := strconv.ParseInt(fields["last_update_unix"], 10, 64); err == nil {
		state.LastUpdateTime = time.Unix(ts, 0)
	}
	return state
}

// Touch increments the request counter and refreshes the TTL, replacing
// the hash wholesale the way Table replaces its map entry.
func (r *RedisStore) Touch(sessionID, topic string, now time.Time) State {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	key := r.key(sessionID)
	current := r.Get(sessionID)
	current.RequestCount++
	if topic != "" {
		current.LastTopic = topic
	}
	current.LastUpdateTime = now

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		"request_count":    current.RequestCount,
		"last_topic":       current.LastTopic,
		"last_update_unix": current.LastUpdateTime.Unix(),
	})
	pipe.Expire(ctx, key, r.ttl)
	pipe.Exec(ctx)

	return current
}

// Close releases the underlying Redis connection pool.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
