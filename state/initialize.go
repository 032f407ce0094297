package state

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"fontpipe/assets"
	"fontpipe/cache"
	"fontpipe/config"
	"fontpipe/css"
	"fontpipe/fetch"
	"fontpipe/metrics"
	"fontpipe/misc"
	"fontpipe/provider"
	"fontpipe/resolve"
	"fontpipe/transform"
)

// SQLiteFileName is database file created under cache path.
const SQLiteFileName = "fonts.db"

// openStore creates blob store selected by configuration and returns
// function releasing it.
func openStore(conf *config.CacheConfig) (cache.Storage, func() error, error) {
	nop := func() error { return nil }

	switch conf.Backend {
	case "memory":
		return cache.NewMemoryStore(), nop, nil
	case "fs":
		s, err := cache.NewFSStore(conf.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, nop, nil
	case "sqlite":
		if err := os.MkdirAll(conf.Path, 0755); err != nil {
			return nil, nil, fmt.Errorf("unable to create cache directory '%s': %w", conf.Path, err)
		}
		s, err := cache.NewSQLiteStore(filepath.Join(conf.Path, SQLiteFileName))
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "redis":
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    conf.Redis.Addrs,
			Username: conf.Redis.Username,
			Password: conf.Redis.Password.Reveal(),
			DB:       conf.Redis.DB,
		})
		s := cache.NewRedisStore(client, conf.Redis.Prefix, conf.TTL)
		return s, s.Close, nil
	}
	return nil, nil, fmt.Errorf("unsupported cache backend '%s'", conf.Backend)
}

// Initialize builds font pipeline described by configuration. Providers
// failing setup are reported and kept: they simply resolve nothing.
func (e *LocalEnv) Initialize(ctx context.Context, factories provider.Factories) error {
	if e.Cfg == nil {
		return fmt.Errorf("configuration is not loaded")
	}
	if e.Log == nil {
		e.Log = zap.NewNop()
	}
	cfg := e.Cfg

	store, closeStore, err := openStore(&cfg.Cache)
	if err != nil {
		return fmt.Errorf("unable to open cache: %w", err)
	}
	e.closers = append(e.closers, closeStore)
	e.Store = store

	cacheOpts := []cache.Option{cache.WithVersion(misc.GetVersion())}
	if cfg.Cache.TTL > 0 {
		cacheOpts = append(cacheOpts, cache.WithTTL(cfg.Cache.TTL))
	}
	e.Cache = cache.New(store, e.Log, cacheOpts...)
	e.Fetch = fetch.New(e.Log)

	e.Providers = provider.NewRegistry(e.Log)
	e.closers = append(e.closers, e.Providers.Close)
	if err := factories.Build(e.Providers, cfg.Fonts.ProviderSpecs()); err != nil {
		return fmt.Errorf("unable to create providers: %w", err)
	}
	penv := &provider.Env{
		Log:       e.Log,
		Cache:     e.Cache,
		Fetch:     e.Fetch,
		Parser:    css.NewParser(e.Log),
		AssetDirs: slices.Clone(cfg.Assets.Dirs),
		BaseURL:   cfg.Assets.BaseURL,
	}
	if err := e.Providers.Setup(ctx, penv); err != nil {
		for _, err := range multierr.Errors(err) {
			e.Log.Warn("Provider is not available", zap.Error(err))
		}
	}

	var (
		resolveOpts []resolve.Option
		fontData    metrics.FontData
	)
	if cfg.Assets.Proxy {
		e.Proxy = assets.New(cfg.Assets.Prefix, store, e.Fetch, e.Log)
		resolveOpts = append(resolveOpts, resolve.WithNormalizer(e.Proxy))
		fontData = e.Proxy
	}
	e.Resolver = resolve.New(e.Providers, cfg.Fonts.ResolveOptions(), e.Log, resolveOpts...)
	e.Fallbacks = metrics.NewGenerator(metrics.Builtin().Lookup, fontData, e.Log)
	e.Transformer = transform.New(e.Resolver, e.Fallbacks, transform.NewPreloadMap(), transform.Options{
		ProcessCSSVariables: cfg.Fonts.ProcessCSSVariables,
		Minify:              cfg.Fonts.Minify,
	}, e.Log)

	e.Log.Debug("Font pipeline ready",
		zap.String("cache", cfg.Cache.Backend),
		zap.Strings("providers", e.Providers.Names()),
		zap.Bool("proxy", cfg.Assets.Proxy))
	return nil
}

// Close releases everything Initialize acquired, in reverse order.
func (e *LocalEnv) Close() (err error) {
	for _, c := range slices.Backward(e.closers) {
		err = multierr.Append(err, c())
	}
	e.closers = nil
	return err
}
