package transform

import (
	"encoding/json"
	"fmt"
	"path"
	"path/filepath"
	"slices"
	"strings"
)

// Chunk is entry of bundler manifest.
type Chunk struct {
	File         string   `json:"file"`
	Src          string   `json:"src,omitempty"`
	IsEntry      bool     `json:"isEntry,omitempty"`
	CSS          []string `json:"css,omitempty"`
	Assets       []string `json:"assets,omitempty"`
	ResourceType string   `json:"resourceType,omitempty"`
	Preload      bool     `json:"preload,omitempty"`
}

// Manifest maps source ids and asset urls to bundle chunks.
type Manifest map[string]*Chunk

// ParseManifest decodes JSON manifest.
func ParseManifest(data []byte) (Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unable to decode manifest: %w", err)
	}
	if m == nil {
		m = Manifest{}
	}
	return m, nil
}

// JSON encodes manifest.
func (m Manifest) JSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// ManifestOptions describe project layout manifest keys are relative to.
type ManifestOptions struct {
	// BuildAssetsDir is url path bundle assets are served under.
	BuildAssetsDir string
	// SrcDir is directory source module ids are relative to.
	SrcDir string
	// Entry is source of the entry chunk.
	Entry string
}

// AddPreloadLinks attaches recorded font urls to chunks of manifest as
// preloaded assets. Preloads no chunk claimed go to the entry chunk.
func (p *PreloadMap) AddPreloadLinks(m Manifest, opts ManifestOptions) {
	unclaimed := make(map[string]bool)
	for _, id := range p.IDs() {
		unclaimed[id] = true
	}

	attach := func(c *Chunk, urls []string) {
		for _, u := range urls {
			if !slices.Contains(c.Assets, u) {
				c.Assets = append(c.Assets, u)
			}
			if _, ok := m[u]; !ok {
				file, err := relativePath(opts.BuildAssetsDir, u)
				if err != nil {
					file = strings.TrimPrefix(u, "/")
				}
				m[u] = &Chunk{File: file, ResourceType: "font", Preload: true}
			}
		}
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var entry *Chunk
	for _, k := range keys {
		c := m[k]
		if c.IsEntry && c.Src == opts.Entry {
			entry = c
		}
		for _, asset := range c.CSS {
			name := strings.TrimPrefix(path.Join(opts.BuildAssetsDir, asset), "/")
			if p.Has(name) {
				attach(c, p.Get(name))
				delete(unclaimed, name)
			}
		}
	}

	for _, id := range p.IDs() {
		key := id
		if opts.SrcDir != "" {
			if rel, err := filepath.Rel(opts.SrcDir, id); err == nil {
				key = filepath.ToSlash(rel)
			}
		}
		if c, ok := m[key]; ok {
			attach(c, p.Get(id))
			delete(unclaimed, id)
		}
	}

	if entry == nil {
		return
	}
	var rest []string
	for _, id := range p.IDs() {
		if unclaimed[id] {
			rest = append(rest, p.Get(id)...)
		}
	}
	attach(entry, rest)
}

// relativePath returns slash separated path of target relative to base.
func relativePath(base, target string) (string, error) {
	rel, err := filepath.Rel(filepath.FromSlash(path.Clean("/"+base)), filepath.FromSlash(path.Clean("/"+target)))
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}
