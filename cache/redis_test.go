package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"fontpipe/cache"
)

func newRedisStore(t *testing.T, expiration time.Duration) (*cache.RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s := cache.NewRedisStore(redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}}), "fontpipe:", expiration)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestRedisStore(t *testing.T) {
	s, mr := newRedisStore(t, 0)
	testStorage(t, s)

	if !mr.Exists("fontpipe:google:meta.json") {
		t.Errorf("key is not prefixed, have %v", mr.Keys())
	}
	if ttl := mr.TTL("fontpipe:google:meta.json"); ttl != 0 {
		t.Errorf("expected key without expiration, got %v", ttl)
	}
}

func TestRedisStore_Expiration(t *testing.T) {
	s, mr := newRedisStore(t, time.Hour)
	ctx := context.Background()

	if err := s.Set(ctx, "bunny:meta.json", []byte("data")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if ttl := mr.TTL("fontpipe:bunny:meta.json"); ttl != time.Hour {
		t.Errorf("TTL = %v, want 1h", ttl)
	}

	mr.FastForward(2 * time.Hour)
	if _, err := s.Get(ctx, "bunny:meta.json"); !errors.Is(err, cache.ErrNotFound) {
		t.Errorf("expected expired key to be gone, got %v", err)
	}
}

func TestRedisStore_Unavailable(t *testing.T) {
	s, mr := newRedisStore(t, 0)
	mr.Close()

	ctx := context.Background()
	if _, err := s.Get(ctx, "google:meta.json"); err == nil || errors.Is(err, cache.ErrNotFound) {
		t.Errorf("expected connection error, got %v", err)
	}
	if err := s.Set(ctx, "google:meta.json", []byte("x")); err == nil {
		t.Error("expected connection error on Set")
	}
}
