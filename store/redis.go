package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps offline records in Redis under prefix.
type RedisStore struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisStore wraps client. An empty prefix becomes "fetchkit:offline";
// a ttl of zero keeps records until overwritten.
func NewRedisStore(client redis.Cmdable, prefix string, ttl time.Duration) *RedisStore {
	normalized := strings.TrimSpace(prefix)
	if normalized == "" {
		normalized = "fetchkit:offline"
	}
	if ttl < 0 {
		ttl = 0
	}
	return &RedisStore{
		client: client,
		prefix: normalized,
		ttl:    ttl,
	}
}

func (s *RedisStore) SetItem(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.itemKey(key), value, s.ttl).Err(); err != nil {
		return fmt.Errorf("offline set: %w", err)
	}
	return nil
}

func (s *RedisStore) GetItem(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := s.client.Get(ctx, s.itemKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("offline get: %w", err)
	}
	return raw, true, nil
}

func (s *RedisStore) itemKey(key string) string {
	return s.prefix + ":item:" + key
}
