package pipeline

import (
	"sort"
	"sync"
)

// Registry tracks the pipelines of this process for the HTTP API.
type Registry struct {
	mu      sync.RWMutex
	streams map[string]*Pipeline
}

func NewRegistry() *Registry {
	return &Registry{streams: make(map[string]*Pipeline)}
}

func (r *Registry) Add(p *Pipeline) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.streams[p.ID()] = p
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.streams, id)
}

// Get returns the info of one stream
func (r *Registry) Get(id string) (StreamInfo, bool) {
	r.mu.RLock()
	p, ok := r.streams[id]
	r.mu.RUnlock()
	if !ok {
		return StreamInfo{}, false
	}
	return p.Info(), true
}

// List returns every stream ordered by start time, then id
func (r *Registry) List() []StreamInfo {
	r.mu.RLock()
	infos := make([]StreamInfo, 0, len(r.streams))
	for _, p := range r.streams {
		infos = append(infos, p.Info())
	}
	r.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].StartedAt.Equal(infos[j].StartedAt) {
			return infos[i].StartedAt.Before(infos[j].StartedAt)
		}
		return infos[i].ID < infos[j].ID
	})
	return infos
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.streams)
}
