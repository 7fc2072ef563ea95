package pattern

import (
	"sync"

	"github.com/golang/groupcache/lru"
)

// DefaultCacheSize is the number of compiled patterns kept by NewCache
// when size is not positive.
const DefaultCacheSize = 1024

// Cache compiles patterns once and shares the result. Compiled patterns
// are immutable, so handing the same *Pattern to several registrations
// is safe. Errors are not cached.
type Cache struct {
	mu     sync.Mutex
	lru    *lru.Cache
	hits   int
	misses int
}

// NewCache creates a cache holding at most size patterns.
func NewCache(size int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &Cache{lru: lru.New(size)}
}

// Compile returns the compiled pattern for src, compiling it on first
// use.
func (c *Cache) Compile(src string) (*Pattern, error) {
	c.mu.Lock()
	if v, ok := c.lru.Get(src); ok {
		c.hits++
		c.mu.Unlock()
		return v.(*Pattern), nil
	}
	c.misses++
	c.mu.Unlock()

	p, err := Compile(src)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.lru.Add(src, p)
	c.mu.Unlock()
	return p, nil
}

// Stats returns the number of cache hits and misses so far.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Len returns the number of cached patterns.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
