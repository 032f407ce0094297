// Package local serves fonts found among static assets of the site.
package local

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/maruel/natural"
	"go.uber.org/zap"

	"fontpipe/fontface"
	"fontpipe/provider"
)

// Name under which provider is registered.
const Name = "local"

var extensionPriority = []string{"woff2", "woff", "ttf", "otf", "eot"}

// Provider keeps registry of font files keyed by family, weight, style and
// subset derived from file names.
type Provider struct {
	dirs  []string
	watch bool

	mu       sync.RWMutex
	roots    []string
	baseURL  string
	registry map[string][]string

	watcher *fsnotify.Watcher
	done    chan struct{}
	log     *zap.Logger
}

// New creates provider scanning given directories in addition to asset
// directories of the environment. With watch set files added or removed
// after setup are picked up.
func New(dirs []string, watch bool) *Provider {
	return &Provider{
		dirs:     dirs,
		watch:    watch,
		registry: make(map[string][]string),
		log:      zap.NewNop(),
	}
}

// Factory builds provider from parameters: "dirs" and "watch".
func Factory(params provider.Params) (provider.Provider, error) {
	return New(params.Strings("dirs"), params.Bool("watch", false)), nil
}

// Setup scans directories for font files.
func (p *Provider) Setup(ctx context.Context, env *provider.Env) error {
	if env.Log != nil {
		p.log = env.Log.Named(Name)
	}

	var roots []string
	for _, dir := range slices.Concat(p.dirs, env.AssetDirs) {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return fmt.Errorf("unable to get absolute path for '%s': %w", dir, err)
		}
		roots = append(roots, abs)
	}
	// most specific root first
	sort.SliceStable(roots, func(i, j int) bool { return len(roots[i]) > len(roots[j]) })

	p.mu.Lock()
	p.roots, p.baseURL = roots, env.BaseURL
	p.mu.Unlock()

	for _, root := range roots {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := filepath.WalkDir(root, func(file string, d fs.DirEntry, err error) error {
			if err != nil {
				if file == root {
					return err
				}
				p.log.Debug("Skipping unreadable path", zap.String("path", file), zap.Error(err))
				return nil
			}
			if !d.IsDir() && IsFontFile(file) {
				p.Register(file)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("unable to scan '%s': %w", root, err)
		}
	}
	p.log.Debug("Font files registered", zap.Int("keys", p.size()))

	if p.watch {
		return p.startWatching(roots)
	}
	return nil
}

// Register adds font file to registry.
func (p *Provider) Register(file string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, k := range fileSlugs(file) {
		if !slices.Contains(p.registry[k], file) {
			p.registry[k] = append(p.registry[k], file)
		}
	}
}

// Unregister removes font file from registry.
func (p *Provider) Unregister(file string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, k := range fileSlugs(file) {
		p.registry[k] = slices.DeleteFunc(p.registry[k], func(f string) bool { return f == file })
		if len(p.registry[k]) == 0 {
			delete(p.registry, k)
		}
	}
}

func (p *Provider) size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.registry)
}

// ResolveFontFaces returns face for every combination of requested
// weight, style and subset which has files.
func (p *Provider) ResolveFontFaces(_ context.Context, family string, opts provider.Options) (*provider.Result, error) {
	var res provider.Result
	for _, weight := range opts.Weights {
		for _, style := range opts.Styles {
			for _, subset := range opts.Subsets {
				urls := p.lookup(key(family, weight, style, subset))
				if len(urls) == 0 {
					continue
				}
				face := fontface.Face{Weight: weight, Style: style}
				for _, u := range urls {
					face.Src = append(face.Src, fontface.Remote(u, ""))
				}
				res.Fonts = append(res.Fonts, face)
			}
		}
	}
	if res.Empty() {
		return nil, nil
	}
	return &res, nil
}

func (p *Provider) lookup(k string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var urls []string
	for _, file := range p.registry[k] {
		u := p.urlFor(file)
		if !slices.Contains(urls, u) {
			urls = append(urls, u)
		}
	}
	sort.Sort(natural.StringSlice(urls))
	sort.SliceStable(urls, func(i, j int) bool {
		return extRank(urls[i]) < extRank(urls[j])
	})
	return urls
}

func extRank(u string) int {
	i := slices.Index(extensionPriority, strings.ToLower(strings.TrimPrefix(path.Ext(u), ".")))
	if i < 0 {
		return len(extensionPriority)
	}
	return i
}

// urlFor makes file path relative to the most specific root, files outside
// of roots are returned as is.
func (p *Provider) urlFor(file string) string {
	for _, root := range p.roots {
		rel, err := filepath.Rel(root, file)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		return path.Join("/", p.baseURL, filepath.ToSlash(rel))
	}
	return file
}

func (p *Provider) startWatching(roots []string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("unable to create file watcher: %w", err)
	}
	for _, root := range roots {
		if err := addTree(w, root); err != nil {
			w.Close()
			return err
		}
	}
	p.watcher, p.done = w, make(chan struct{})
	go p.watchLoop()
	return nil
}

func addTree(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(dir string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if err := w.Add(dir); err != nil {
			return fmt.Errorf("unable to watch '%s': %w", dir, err)
		}
		return nil
	})
}

func (p *Provider) watchLoop() {
	defer close(p.done)
	for {
		select {
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			p.handleEvent(event)
		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.log.Warn("File watcher error", zap.Error(err))
		}
	}
}

func (p *Provider) handleEvent(event fsnotify.Event) {
	switch {
	case event.Has(fsnotify.Create):
		if IsFontFile(event.Name) {
			p.log.Debug("Font file added", zap.String("path", event.Name))
			p.Register(event.Name)
			return
		}
		// new directories are watched too
		if err := addTree(p.watcher, event.Name); err != nil {
			p.log.Debug("Unable to watch directory", zap.String("path", event.Name), zap.Error(err))
		}
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		if IsFontFile(event.Name) {
			p.log.Debug("Font file removed", zap.String("path", event.Name))
			p.Unregister(event.Name)
		}
	}
}

// Close stops watching directories.
func (p *Provider) Close() error {
	if p.watcher == nil {
		return nil
	}
	err := p.watcher.Close()
	<-p.done
	p.watcher = nil
	return err
}
