package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewRedisStoreRejectsInvalidURL(t *testing.T) {
	_, err := NewRedisStore("not-a-redis-url", time.Hour)
	assert.Error(t, err)
}

func TestRedisStoreKeyIsNamespaced(t *testing.T) {
	r := &RedisStore{ttl: time.Hour}
	assert.Equal(t, "agentflow:session:abc-123", r.key("abc-123"))
}

func TestRedisStoreSatisfiesStoreInterface(t *testing.T) {
	var _ Store = (*RedisStore)(nil)
}
