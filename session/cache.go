package session

import (
	"sync"

	"github.com/goliatone/go-agent-studio/store"
)

// CacheMirror persists local edits outside the session's lifetime, keyed
// by draft id. When a tab reopens and the mirror holds non-empty content,
// the mirror wins over the server snapshot: it represents the most recent
// local edits. This local-wins policy is deliberate and can shadow a
// newer save from another session; see DESIGN.md before changing it.
type CacheMirror interface {
	Load(id string) (store.CachedEdits, bool)
	Store(id string, edits store.CachedEdits)
	Delete(id string)
}

// MemoryCache is the in-process CacheMirror used by tests and by callers
// that do not want durable local mirrors.
type MemoryCache struct {
	mu sync.RWMutex
	m  map[string]store.CachedEdits
}

// NewMemoryCache builds an empty mirror.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{m: make(map[string]store.CachedEdits)}
}

func (c *MemoryCache) Load(id string) (store.CachedEdits, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	edits, ok := c.m[id]
	return edits, ok
}

func (c *MemoryCache) Store(id string, edits store.CachedEdits) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[id] = edits
}

func (c *MemoryCache) Delete(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, id)
}

var _ CacheMirror = (*MemoryCache)(nil)
var _ CacheMirror = (*store.BadgerCache)(nil)
