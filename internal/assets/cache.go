package assets

import (
	"sync"
	"sync/atomic"

	"github.com/Faultbox/maplemap/pkg/nx"
)

// Cache is an in-memory map from key to decoded sprite. A nil sprite records
// a key known to be missing.
type Cache struct {
	data map[Key]*Sprite
	mu   sync.RWMutex

	// Stats
	hits   atomic.Int64
	misses atomic.Int64
}

// NewCache creates a new cache.
func NewCache() *Cache {
	return &Cache{
		data: make(map[Key]*Sprite),
	}
}

// Get retrieves an item from cache and counts the lookup.
func (c *Cache) Get(key Key) (*Sprite, bool) {
	s, ok := c.Peek(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return s, ok
}

// Peek retrieves an item without touching statistics.
func (c *Cache) Peek(key Key) (*Sprite, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.data[key]
	return s, ok
}

// Set stores an item in cache.
func (c *Cache) Set(key Key, s *Sprite) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = s
}

// Evict removes all entries of one container and returns how many were
// dropped.
func (c *Cache) Evict(f *nx.File) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k := range c.data {
		if k.File == f {
			delete(c.data, k)
			n++
		}
	}
	return n
}

// Len returns the number of cached entries, misses included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Stats returns cache statistics.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
