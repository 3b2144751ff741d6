package service

import (
	"sync"

	"github.com/samber/lo"
)

// Registry 保存目前連線中的觀看者，可在連線、斷線與廣播間並行使用
type Registry struct {
	viewers map[string]*Viewer
	mu      sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		viewers: make(map[string]*Viewer),
	}
}

// Add 加入觀看者，回傳目前總數
func (r *Registry) Add(v *Viewer) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.viewers[v.ID] = v
	return len(r.viewers)
}

// Remove 移除觀看者；不存在時 ok 為 false
func (r *Registry) Remove(id string) (v *Viewer, remaining int, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok = r.viewers[id]
	if ok {
		delete(r.viewers, id)
	}
	return v, len(r.viewers), ok
}

// Snapshot 回傳當下觀看者的副本，廣播期間不持有鎖
func (r *Registry) Snapshot() []*Viewer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Values(r.viewers)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.viewers)
}
