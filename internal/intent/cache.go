package intent

import (
	"strings"
	"sync"
	"time"
)

// cachedRoute holds a cached classification
type cachedRoute struct {
	classification *Classification
	cachedAt       time.Time
}

// Cache provides TTL-based caching for classifications. Repeated identical
// messages ("add milk") skip the extraction call entirely.
type Cache struct {
	cache map[string]*cachedRoute
	mu    sync.RWMutex
	ttl   time.Duration
}

// NewCache creates a new cache with the TTL in seconds
func NewCache(ttlSeconds int) *Cache {
	c := &Cache{
		cache: make(map[string]*cachedRoute),
		ttl:   time.Duration(ttlSeconds) * time.Second,
	}
	go c.cleanup()
	return c
}

// Get retrieves a cached classification if still valid
func (c *Cache) Get(message string) (*Classification, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	key := normalizeMessage(message)
	if route, ok := c.cache[key]; ok {
		if time.Since(route.cachedAt) < c.ttl {
			return route.classification, true
		}
	}
	return nil, false
}

// Set stores a classification in the cache
func (c *Cache) Set(message string, classification *Classification) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache[normalizeMessage(message)] = &cachedRoute{
		classification: classification,
		cachedAt:       time.Now(),
	}
}

// cleanup removes expired entries periodically
func (c *Cache) cleanup() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		now := time.Now()
		for key, route := range c.cache {
			if now.Sub(route.cachedAt) > c.ttl {
				delete(c.cache, key)
			}
		}
		c.mu.Unlock()
	}
}

// normalizeMessage creates a cache key from a message
func normalizeMessage(m string) string {
	return strings.ToLower(strings.TrimSpace(m))
}
