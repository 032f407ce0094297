// Package remote implements providers backed by public font services.
package remote

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"fontpipe/cache"
	"fontpipe/css"
	"fontpipe/fetch"
	"fontpipe/fontface"
	"fontpipe/provider"
)

// user agents select font formats returned by css APIs
var userAgents = []struct {
	format string
	agent  string
}{
	{"woff2", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"},
	{"ttf", "Mozilla/5.0 (Windows NT 6.1) AppleWebKit/534.54.16 (KHTML, like Gecko) Version/5.1.4 Safari/534.54.16"},
}

func userAgentHeader(agent string) http.Header {
	return http.Header{"User-Agent": []string{agent}}
}

// base carries what every remote provider needs after setup.
type base struct {
	name   string
	cache  *cache.Cache
	fetch  *fetch.Client
	parser *css.Parser
	log    *zap.Logger
}

func (b *base) metaKey() string {
	return b.name + ":meta.json"
}

func (b *base) init(env *provider.Env) {
	log := env.Log
	if log == nil {
		log = zap.NewNop()
	}
	b.log = log.Named(b.name)
	b.cache = env.Cache
	if b.cache == nil {
		b.cache = cache.New(cache.NewMemoryStore(), log)
	}
	b.fetch = env.Fetch
	if b.fetch == nil {
		b.fetch = fetch.New(log)
	}
	b.parser = env.Parser
	if b.parser == nil {
		b.parser = css.NewParser(log)
	}
}

// loadMeta returns provider catalog from cache or fetches it. Failure is
// logged and empty catalog returned, provider then knows no families.
func loadMeta[T any](ctx context.Context, b *base, key string, fetchMeta func(context.Context) (T, error)) T {
	meta, _ := cache.Data(ctx, b.cache, key, fetchMeta, func(err error) T {
		b.log.Error("Unable to download font metadata, provider will not resolve any family", zap.Error(err))
		var empty T
		return empty
	})
	return meta
}

// faces returns cached font faces for family or calls fetchFaces.
func (b *base) faces(ctx context.Context, family string, opts provider.Options, fetchFaces func(context.Context) ([]fontface.Face, error)) *provider.Result {
	key := fmt.Sprintf("%s:%s-%s-data.json", b.name, family, opts.Hash())
	fonts, _ := cache.Data(ctx, b.cache, key, fetchFaces, func(err error) []fontface.Face {
		b.log.Error("Unable to fetch font details", zap.String("family", family), zap.Error(err))
		return nil
	})
	if len(fonts) == 0 {
		return nil
	}
	return &provider.Result{Fonts: fonts}
}

// stripXSSIPrefix removes first line of Google metadata responses which
// makes them invalid JSON.
func stripXSSIPrefix(data []byte) []byte {
	s := string(data)
	if strings.HasPrefix(s, ")]}'") {
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			return []byte(s[i+1:])
		}
		return nil
	}
	return data
}

func italicRequested(styles []string) bool {
	for _, s := range styles {
		if s == "italic" || s == "oblique" {
			return true
		}
	}
	return false
}
