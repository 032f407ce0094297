package transform

import (
	"slices"
	"sync"
)

// PreloadMap records font urls worth preloading per module or chunk id.
// It is safe for concurrent use.
type PreloadMap struct {
	mu   sync.RWMutex
	urls map[string][]string
}

func NewPreloadMap() *PreloadMap {
	return &PreloadMap{urls: make(map[string][]string)}
}

// Add records urls for id, duplicates are ignored.
func (p *PreloadMap) Add(id string, urls ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, u := range urls {
		if !slices.Contains(p.urls[id], u) {
			p.urls[id] = append(p.urls[id], u)
		}
	}
}

// Get returns urls recorded for id in order they were added.
func (p *PreloadMap) Get(id string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.urls[id])
}

func (p *PreloadMap) Has(id string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.urls[id]
	return ok
}

func (p *PreloadMap) Delete(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.urls, id)
}

// IDs returns sorted ids having preloads.
func (p *PreloadMap) IDs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ids := make([]string, 0, len(p.urls))
	for id := range p.urls {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// RemapChunk attributes preloads of modules bundled into a chunk to the
// chunk facade module.
func (p *PreloadMap) RemapChunk(facade string, moduleIDs []string) {
	if facade == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, id := range moduleIDs {
		urls, ok := p.urls[id]
		if !ok || id == facade {
			continue
		}
		for _, u := range urls {
			if !slices.Contains(p.urls[facade], u) {
				p.urls[facade] = append(p.urls[facade], u)
			}
		}
		delete(p.urls, id)
	}
}
