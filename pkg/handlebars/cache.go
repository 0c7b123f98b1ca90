package handlebars

import "sync"

// Cache stores parse trees by a key derived from the template source. An
// implementation decides its own eviction; the engine never invalidates.
type Cache interface {
	Get(key string) ([]*Node, bool)
	Set(key string, tree []*Node) error
	Remove(key string) error
}

// MemoryCache keeps trees for the life of the process.
type MemoryCache struct {
	mu    sync.RWMutex
	trees map[string][]*Node
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{trees: map[string][]*Node{}}
}

func (c *MemoryCache) Get(key string) ([]*Node, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tree, ok := c.trees[key]
	return tree, ok
}

func (c *MemoryCache) Set(key string, tree []*Node) error {
	c.mu.Lock()
	c.trees[key] = tree
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Remove(key string) error {
	c.mu.Lock()
	delete(c.trees, key)
	c.mu.Unlock()
	return nil
}

// Len reports how many trees are cached.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.trees)
}

// NopCache never stores anything, so every load parses.
type NopCache struct{}

func (NopCache) Get(string) ([]*Node, bool) { return nil, false }
func (NopCache) Set(string, []*Node) error { return nil }
func (NopCache) Remove(string) error { return nil }
