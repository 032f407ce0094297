// Package provider defines contract between font sources and the resolver.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fontpipe/cache"
	"fontpipe/css"
	"fontpipe/fetch"
	"fontpipe/fontface"
)

// Options constrain what faces provider should return.
type Options struct {
	Weights   []string `json:"weights"`
	Styles    []string `json:"styles"`
	Subsets   []string `json:"subsets"`
	Fallbacks []string `json:"fallbacks,omitempty"`
}

// Hash returns short stable identifier of the options suitable for cache
// keys.
func (o Options) Hash() string {
	data, err := json.Marshal(o)
	if err != nil {
		// this should never happen
		panic(fmt.Sprintf("unable to marshal resolve options: %v", err))
	}
	return strings.ReplaceAll(uuid.NewSHA1(uuid.NameSpaceURL, data).String(), "-", "")[:10]
}

// Result is what provider knows about the family. Empty result means
// provider does not know the family.
type Result struct {
	Fonts     []fontface.Face
	Fallbacks []string
}

func (r *Result) Empty() bool {
	return r == nil || len(r.Fonts) == 0
}

// Provider resolves family names to @font-face descriptors.
type Provider interface {
	ResolveFontFaces(ctx context.Context, family string, opts Options) (*Result, error)
}

// Setupper is implemented by providers which need to prepare their state
// (download catalog, scan directories) before first use.
type Setupper interface {
	Setup(ctx context.Context, env *Env) error
}

// Closer is implemented by providers holding background resources.
type Closer interface {
	Close() error
}

// Env is everything provider may need during setup.
type Env struct {
	Log    *zap.Logger
	Cache  *cache.Cache
	Fetch  *fetch.Client
	Parser *css.Parser
	// AssetDirs are directories with static files served by the site, base
	// URL of the site is prefixed to paths relative to them.
	AssetDirs []string
	BaseURL   string
}
