package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL is how long provider metadata is considered fresh.
const DefaultTTL = 7 * 24 * time.Hour

// Cache stores JSON values with expiration and format version on top of
// blob storage. Concurrent requests for the same key share single fetch.
type Cache struct {
	store   Storage
	log     *zap.Logger
	version string
	ttl     time.Duration
	now     func() time.Time
	group   singleflight.Group
	// values substituted for failed fetches, kept for process lifetime only
	failed sync.Map
}

type Option func(*Cache)

// WithTTL overwrites default time to live.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

// WithVersion tags entries, entries with different tag are considered
// stale.
func WithVersion(version string) Option {
	return func(c *Cache) { c.version = version }
}

// WithClock is used in tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func New(store Storage, log *zap.Logger, options ...Option) *Cache {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Cache{
		store: store,
		log:   log.Named("cache"),
		ttl:   DefaultTTL,
		now:   time.Now,
	}
	for _, o := range options {
		o(c)
	}
	return c
}

// Storage returns underlying blob store.
func (c *Cache) Storage() Storage {
	return c.store
}

type envelope struct {
	Version string          `json:"version"`
	Expires time.Time       `json:"expires"`
	Data    json.RawMessage `json:"data"`
}

func (c *Cache) load(ctx context.Context, key string) (json.RawMessage, bool) {
	raw, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.log.Warn("Unable to read cached data", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.log.Debug("Ignoring malformed cache entry", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if env.Version != c.version || c.now().After(env.Expires) {
		return nil, false
	}
	return env.Data, true
}

func (c *Cache) save(ctx context.Context, key string, data json.RawMessage) {
	raw, err := json.Marshal(envelope{Version: c.version, Expires: c.now().Add(c.ttl), Data: data})
	if err == nil {
		err = c.store.Set(ctx, key, raw)
	}
	if err != nil {
		c.log.Warn("Unable to cache data", zap.String("key", key), zap.Error(err))
	}
}

// Data returns fresh cached value for the key or calls fetch and caches its
// result. When fetch fails onError provides the value, which is remembered
// (but not persisted) so failing source is not hit again by this process.
// With nil onError or when fetch was cancelled the error is returned and
// nothing is remembered.
func Data[T any](ctx context.Context, c *Cache, key string, fetch func(context.Context) (T, error), onError func(error) T) (T, error) {
	var zero T

	v, err, _ := c.group.Do(key, func() (any, error) {
		if val, ok := c.failed.Load(key); ok {
			return val, nil
		}
		if raw, ok := c.load(ctx, key); ok {
			var val T
			if err := json.Unmarshal(raw, &val); err == nil {
				return val, nil
			}
		}

		val, err := fetch(ctx)
		if err != nil {
			// caller gave up, source itself did not fail
			if onError == nil || ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return zero, err
			}
			val = onError(err)
			c.failed.Store(key, val)
			return val, nil
		}
		if raw, err := json.Marshal(val); err == nil {
			c.save(ctx, key, raw)
		}
		return val, nil
	})
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}
