package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps blobs in Redis, handy when several builders share cache.
type RedisStore struct {
	client     redis.UniversalClient
	prefix     string
	expiration time.Duration
}

// NewRedisStore wraps existing client. Keys are prefixed, zero expiration
// means keys never expire on Redis side.
func NewRedisStore(client redis.UniversalClient, prefix string, expiration time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, expiration: expiration}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("unable to read '%s' from redis: %w", key, err)
	}
	return data, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, data []byte) error {
	if err := s.client.Set(ctx, s.prefix+key, data, s.expiration).Err(); err != nil {
		return fmt.Errorf("unable to write '%s' to redis: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
