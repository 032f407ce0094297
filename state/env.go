// Package state defines shared program state.
package state

import (
	"context"
	"time"

	"go.uber.org/zap"

	"fontpipe/assets"
	"fontpipe/cache"
	"fontpipe/config"
	"fontpipe/fetch"
	"fontpipe/metrics"
	"fontpipe/provider"
	"fontpipe/resolve"
	"fontpipe/transform"
)

type envKey struct{}

// LocalEnv keeps everything program needs in a single place.
type LocalEnv struct {
	Cfg *config.Config
	Rpt *config.Report
	Log *zap.Logger

	// font pipeline, built by Initialize
	Store       cache.Storage
	Cache       *cache.Cache
	Fetch       *fetch.Client
	Providers   *provider.Registry
	Resolver    *resolve.Resolver
	Proxy       *assets.Proxy
	Fallbacks   *metrics.Generator
	Transformer *transform.Transformer

	start         time.Time
	restoreStdLog func()
	closers       []func() error
}

func EnvFromContext(ctx context.Context) *LocalEnv {
	if env, ok := ctx.Value(envKey{}).(*LocalEnv); ok {
		return env
	}
	// this should never happen
	panic("localenv not found in context")
}

func ContextWithEnv(ctx context.Context) context.Context {
	return context.WithValue(ctx, envKey{}, newLocalEnv())
}

func newLocalEnv() *LocalEnv {
	return &LocalEnv{start: time.Now()}
}

// Ready reports if font pipeline was built.
func (e *LocalEnv) Ready() bool {
	return e.Transformer != nil
}

func (e *LocalEnv) Uptime() time.Duration {
	return time.Since(e.start)
}

// RedirectStdLog sends output of libraries using standard logger (redis
// client, http server) to our log at debug level.
func (e *LocalEnv) RedirectStdLog() {
	if e.Log == nil {
		return
	}
	restore, err := zap.RedirectStdLogAt(e.Log.Named("stdlog"), zap.DebugLevel)
	if err != nil {
		e.Log.Warn("Unable to redirect standard logger", zap.Error(err))
		return
	}
	e.restoreStdLog = restore
}

// RestoreStdLog undoes RedirectStdLog and flushes the log.
func (e *LocalEnv) RestoreStdLog() {
	if e.restoreStdLog != nil {
		e.restoreStdLog()
		e.restoreStdLog = nil
	}
	if e.Log != nil {
		_ = e.Log.Sync()
	}
}
