// Package assets proxies remote font files through the project so they are
// served from the same origin and bundled into production output.
package assets

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"fontpipe/cache"
	"fontpipe/fetch"
	"fontpipe/fontface"
)

// DefaultPrefix is url path proxied fonts are served under.
const DefaultPrefix = "/_fonts"

// ErrUnknownFile is returned for proxied names which were never produced by
// the proxy.
var ErrUnknownFile = errors.New("unknown font file")

const storeKeyPrefix = "data:fonts:"

// Proxy rewrites remote font urls to local names and provides their
// content. It is safe for concurrent use.
type Proxy struct {
	prefix string
	store  cache.Storage
	fetch  *fetch.Client
	log    *zap.Logger

	group singleflight.Group
	mu    sync.RWMutex
	files map[string]string // proxied file name -> original url
}

// New creates proxy, empty prefix means DefaultPrefix. Nil store disables
// keeping downloaded files between requests.
func New(prefix string, store cache.Storage, fc *fetch.Client, log *zap.Logger) *Proxy {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if log == nil {
		log = zap.NewNop()
	}
	if fc == nil {
		fc = fetch.New(log)
	}
	return &Proxy{
		prefix: "/" + strings.Trim(prefix, "/"),
		store:  store,
		fetch:  fc,
		log:    log.Named("assets"),
		files:  make(map[string]string),
	}
}

// Prefix returns url path proxied files are served under.
func (p *Proxy) Prefix() string {
	return p.prefix
}

// isRemote reports if url points outside of the project.
func isRemote(u string) bool {
	return strings.HasPrefix(u, "//") || fontface.HasProtocol(u)
}

// absolute adds scheme to protocol relative urls.
func absolute(u string) string {
	if strings.HasPrefix(u, "//") {
		return "https:" + u
	}
	return u
}

// FileName returns proxied name of remote url: slug of its base name, short
// hash of the whole url and original extension.
func FileName(u string) string {
	p := absolute(u)
	if parsed, err := url.Parse(p); err == nil {
		p = parsed.Path
	}
	ext := path.Ext(p)
	base := slug.Make(strings.TrimSuffix(path.Base(p), ext))
	hash := strings.ReplaceAll(uuid.NewSHA1(uuid.NameSpaceURL, []byte(absolute(u))).String(), "-", "")[:10]
	if base == "" {
		return hash + strings.ToLower(ext)
	}
	return base + "-" + hash + strings.ToLower(ext)
}

// Rewrite returns proxied url for remote one and remembers the mapping.
// Anything else is returned unchanged.
func (p *Proxy) Rewrite(u string) string {
	if !isRemote(u) {
		return u
	}
	name := FileName(u)

	p.mu.Lock()
	p.files[name] = absolute(u)
	p.mu.Unlock()

	return path.Join(p.prefix, name)
}

// Normalize rewrites remote sources of the faces in place.
func (p *Proxy) Normalize(faces []fontface.Face) []fontface.Face {
	for i := range faces {
		for j := range faces[i].Src {
			s := &faces[i].Src[j]
			if s.IsLocal() {
				continue
			}
			s.URL = p.Rewrite(s.URL)
		}
	}
	return faces
}

// Files returns sorted names of all proxied files.
func (p *Proxy) Files() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, 0, len(p.files))
	for name := range p.files {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Original returns remote url of the proxied file.
func (p *Proxy) Original(name string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	u, ok := p.files[name]
	return u, ok
}

// nameOf returns proxied file name for either proxied or remote url.
func (p *Proxy) nameOf(u string) (string, bool) {
	if name, ok := strings.CutPrefix(u, p.prefix+"/"); ok {
		return name, name != ""
	}
	if isRemote(u) {
		return FileName(u), true
	}
	return "", false
}

// Cached returns content of the font if it was already downloaded. Both
// proxied and remote urls are accepted.
func (p *Proxy) Cached(ctx context.Context, u string) ([]byte, bool) {
	if p.store == nil {
		return nil, false
	}
	name, ok := p.nameOf(u)
	if !ok {
		return nil, false
	}
	data, err := p.store.Get(ctx, storeKeyPrefix+name)
	if err != nil {
		return nil, false
	}
	return data, true
}

// Data returns content of proxied file, downloading it on first use.
func (p *Proxy) Data(ctx context.Context, name string) ([]byte, error) {
	if data, ok := p.Cached(ctx, path.Join(p.prefix, name)); ok {
		return data, nil
	}
	original, ok := p.Original(name)
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownFile, name)
	}

	v, err, _ := p.group.Do(name, func() (any, error) {
		data, err := p.fetch.Bytes(ctx, fetch.Request{Path: original})
		if err != nil {
			return nil, fmt.Errorf("unable to download font '%s': %w", original, err)
		}
		if p.store != nil {
			if err := p.store.Set(ctx, storeKeyPrefix+name, data); err != nil {
				p.log.Warn("Unable to store font", zap.String("file", name), zap.Error(err))
			}
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}
