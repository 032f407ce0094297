// Package resolve turns font family names into @font-face descriptors by
// asking registered providers.
package resolve

import (
	"context"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/unicode/norm"

	"fontpipe/fontface"
	"fontpipe/provider"
)

// Normalizer post-processes resolved faces, for example rewriting remote
// sources to proxied urls.
type Normalizer interface {
	Normalize(faces []fontface.Face) []fontface.Face
}

// Request is what declaration using the family knows about it.
type Request struct {
	Family string
	// Fallbacks are families listed after the primary one.
	Fallbacks []string
	// Generic is generic family keyword of the declaration, if any.
	Generic string
}

// Result of family resolution.
type Result struct {
	// Provider which resolved family, empty for manual overrides.
	Provider  string
	Fallbacks []string
	Fonts     []fontface.Face
}

// found is memoized provider answer.
type found struct {
	provider  string
	fallbacks []string
	fonts     []fontface.Face
}

// Resolver resolves families, provider answers are remembered per family for
// resolver lifetime. It is safe for concurrent use.
type Resolver struct {
	reg        *provider.Registry
	opts       Options
	overrides  map[string]*Override
	normalizer Normalizer
	log        *zap.Logger

	group singleflight.Group
	mu    sync.RWMutex
	memo  map[string]*found
}

type Option func(*Resolver)

// WithNormalizer sets post-processing of resolved faces.
func WithNormalizer(n Normalizer) Option {
	return func(r *Resolver) { r.normalizer = n }
}

func New(reg *provider.Registry, opts Options, log *zap.Logger, options ...Option) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Resolver{
		reg:       reg,
		opts:      opts,
		overrides: make(map[string]*Override, len(opts.Families)),
		log:       log.Named("resolver"),
		memo:      make(map[string]*found),
	}
	for i := range opts.Families {
		o := &opts.Families[i]
		// first override wins
		if _, ok := r.overrides[familyKey(o.Name)]; !ok {
			r.overrides[familyKey(o.Name)] = o
		}
	}
	for _, o := range options {
		o(r)
	}
	return r
}

func familyKey(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// Override returns configuration of the family or nil.
func (r *Resolver) Override(family string) *Override {
	return r.overrides[familyKey(family)]
}

// IsGlobal reports if family is injected into global stylesheet rather than
// into files using it.
func (r *Resolver) IsGlobal(family string) bool {
	o := r.Override(family)
	return o != nil && o.Global
}

// ShouldPreload decides if face deserves preload hint: explicit setting of
// the family or defaults wins, otherwise only faces downloading complete
// font (remote source, no unicode-range) are preloaded.
func (r *Resolver) ShouldPreload(family string, face *fontface.Face) bool {
	if o := r.Override(family); o != nil && o.Preload != nil {
		return *o.Preload
	}
	if r.opts.Defaults.Preload != nil {
		return *r.opts.Defaults.Preload
	}
	return face.HasRemote() && len(face.UnicodeRange) == 0
}

// Resolve returns faces for the family or nil when no provider knows it.
// Failing providers are treated as not knowing the family, error is
// returned only when context is cancelled.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Result, error) {
	o := r.Override(req.Family)

	if o.IsManual() {
		fonts := r.normalize([]fontface.Face{o.Face()})
		return &Result{Fonts: fonts, Fallbacks: r.fallbacks(o, nil, req)}, nil
	}
	if o != nil && o.Provider == ProviderNone {
		r.log.Debug("Resolution disabled", zap.String("family", req.Family))
		return nil, nil
	}

	f, err := r.lookup(ctx, req.Family, o)
	if err != nil || f == nil {
		return nil, err
	}
	return &Result{
		Provider:  f.provider,
		Fonts:     cloneFaces(f.fonts),
		Fallbacks: r.fallbacks(o, f.fallbacks, req),
	}, nil
}

// lookup returns memoized provider answer, concurrent lookups of the same
// family share single provider round.
func (r *Resolver) lookup(ctx context.Context, family string, o *Override) (*found, error) {
	key := familyKey(family)

	r.mu.RLock()
	f, ok := r.memo[key]
	r.mu.RUnlock()
	if ok {
		return f, nil
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		f := r.resolveProviders(ctx, family, o)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.memo[key] = f
		r.mu.Unlock()
		return f, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*found), nil
}

func (r *Resolver) resolveProviders(ctx context.Context, family string, o *Override) *found {
	opts := r.opts.Defaults.merged(o)

	var f *found
	if name := providerName(o); name != "" {
		if p, ok := r.reg.Get(name); ok {
			f = r.resolveWithNamedProvider(ctx, name, p, family, opts)
		} else {
			r.log.Warn("Unknown provider requested for family, trying all providers",
				zap.String("family", family), zap.String("provider", name))
			f = r.resolveByPriority(ctx, family, opts)
		}
	} else {
		f = r.resolveByPriority(ctx, family, opts)
	}
	if f == nil {
		return nil
	}

	f.fonts = cloneFaces(f.fonts)
	if !r.opts.DisableLocalFallbacks {
		f.fonts = fontface.AddLocalFallbacks(family, f.fonts)
	}
	f.fonts = r.normalize(f.fonts)
	return f
}

func providerName(o *Override) string {
	if o == nil {
		return ""
	}
	return o.Provider
}

// resolveWithNamedProvider asks only the provider user explicitly selected.
// Its empty answer is final.
func (r *Resolver) resolveWithNamedProvider(ctx context.Context, name string, p provider.Provider, family string, opts provider.Options) *found {
	res := r.call(ctx, name, p, family, opts)
	if res.Empty() {
		r.log.Warn("Explicitly selected provider could not resolve family",
			zap.String("family", family), zap.String("provider", name))
		return nil
	}
	return &found{provider: name, fallbacks: res.Fallbacks, fonts: res.Fonts}
}

// resolveByPriority tries providers in priority order, first non-empty
// answer wins.
func (r *Resolver) resolveByPriority(ctx context.Context, family string, opts provider.Options) *found {
	for _, name := range r.reg.Ordered(r.opts.Priority) {
		if ctx.Err() != nil {
			return nil
		}
		p, ok := r.reg.Get(name)
		if !ok {
			continue
		}
		if res := r.call(ctx, name, p, family, opts); !res.Empty() {
			r.log.Debug("Family resolved", zap.String("family", family), zap.String("provider", name), zap.Int("faces", len(res.Fonts)))
			return &found{provider: name, fallbacks: res.Fallbacks, fonts: res.Fonts}
		}
	}
	r.log.Debug("No provider knows family", zap.String("family", family))
	return nil
}

// call isolates provider failures.
func (r *Resolver) call(ctx context.Context, name string, p provider.Provider, family string, opts provider.Options) (res *provider.Result) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("Provider panicked", zap.String("provider", name), zap.String("family", family), zap.Any("panic", rec))
			res = nil
		}
	}()
	res, err := p.ResolveFontFaces(ctx, family, opts)
	if err != nil {
		r.log.Error("Provider failed", zap.String("provider", name), zap.String("family", family), zap.Error(err))
		return nil
	}
	return res
}

// fallbacks selects system fonts for metric overrides: override, then
// provider suggestion, then fallbacks of declaration and finally defaults
// for generic family.
func (r *Resolver) fallbacks(o *Override, fromProvider []string, req Request) []string {
	switch {
	case o != nil && len(o.Fallbacks) > 0:
		return slices.Clone(o.Fallbacks)
	case len(fromProvider) > 0:
		return slices.Clone(fromProvider)
	case len(req.Fallbacks) > 0:
		return slices.Clone(req.Fallbacks)
	}
	generic := req.Generic
	if generic == "" {
		generic = "sans-serif"
	}
	return slices.Clone(r.opts.Defaults.Fallbacks[generic])
}

func (r *Resolver) normalize(faces []fontface.Face) []fontface.Face {
	if r.normalizer == nil {
		return faces
	}
	return r.normalizer.Normalize(faces)
}

func cloneFaces(faces []fontface.Face) []fontface.Face {
	out := slices.Clone(faces)
	for i := range out {
		out[i].Src = slices.Clone(out[i].Src)
		out[i].UnicodeRange = slices.Clone(out[i].UnicodeRange)
	}
	return out
}
