package cache

import (
	"sync"
	"time"

	"github.com/neurodesk/handlebars/pkg/handlebars"
)

type entry struct {
	tree      []*handlebars.Node
	loadedAt  time.Time
	expiresAt time.Time
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// TTL is an in-memory cache whose entries expire after a fixed age. When
// full, the entry loaded first is evicted.
type TTL struct {
	mu      sync.RWMutex
	entries map[string]*entry
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

var _ handlebars.Cache = (*TTL)(nil)

// NewTTL returns a cache holding at most maxSize trees, each for ttl. A
// zero ttl never expires and a maxSize below one is unbounded.
func NewTTL(ttl time.Duration, maxSize int) *TTL {
	return &TTL{
		entries: map[string]*entry{},
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

func (c *TTL) Get(key string) ([]*handlebars.Node, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if e.expired(c.now()) {
		_ = c.Remove(key)
		return nil, false
	}
	return e.tree, true
}

func (c *TTL) Set(key string, tree []*handlebars.Node) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; !ok && c.maxSize > 0 && len(c.entries) >= c.maxSize {
		c.evictOldest()
	}
	now := c.now()
	e := &entry{tree: tree, loadedAt: now}
	if c.ttl > 0 {
		e.expiresAt = now.Add(c.ttl)
	}
	c.entries[key] = e
	return nil
}

func (c *TTL) Remove(key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

func (c *TTL) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Purge drops every expired entry.
func (c *TTL) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
		}
	}
}

// evictOldest must be called with mu held.
func (c *TTL) evictOldest() {
	var (
		oldestKey string
		oldest    time.Time
		found     bool
	)
	for k, e := range c.entries {
		if !found || e.loadedAt.Before(oldest) {
			oldestKey, oldest, found = k, e.loadedAt, true
		}
	}
	if found {
		delete(c.entries, oldestKey)
	}
}
