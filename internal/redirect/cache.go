package redirect

import (
	"container/list"
	"sync"
	"time"
)

const (
	DefaultCacheTTL        = 30 * time.Second
	DefaultCacheMaxEntries = 10_000
)

type cacheEntry struct {
	code      string
	longURL   string
	expiresAt time.Time
}

// Cache is a TTL- and size-bounded map from short code to long URL, sitting
// in front of the link store on the redirect hot path. Entries expire after
// the TTL so a deleted link stops redirecting within a bounded window even
// if its Invalidate was missed; a size cap evicts the oldest entries first.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*list.Element
	order   *list.List // front = oldest insert
	ttl     time.Duration
	max     int
	now     func() time.Time
}

// NewCache creates a cache with the given TTL and entry cap. Non-positive
// values fall back to the defaults.
func NewCache(ttl time.Duration, maxEntries int) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultCacheMaxEntries
	}
	return &Cache{
		entries: make(map[string]*list.Element),
		order:   list.New(),
		ttl:     ttl,
		max:     maxEntries,
		now:     time.Now,
	}
}

// Get returns the cached long URL for code, if present and unexpired.
func (c *Cache) Get(code string) (string, bool) {
	// Entry fields are mutated in place by Add, so copy them out while the
	// read lock is held.
	c.mu.RLock()
	elem, ok := c.entries[code]
	var longURL string
	var expiresAt time.Time
	if ok {
		entry := elem.Value.(*cacheEntry)
		longURL = entry.longURL
		expiresAt = entry.expiresAt
	}
	c.mu.RUnlock()

	if !ok {
		return "", false
	}
	if c.now().After(expiresAt) {
		c.Invalidate(code)
		return "", false
	}
	return longURL, true
}

// Add stores the mapping, evicting the oldest entry when the cache is full.
// An existing entry for code is refreshed in place.
func (c *Cache) Add(code, longURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[code]; ok {
		entry := elem.Value.(*cacheEntry)
		entry.longURL = longURL
		entry.expiresAt = c.now().Add(c.ttl)
		c.order.MoveToBack(elem)
		return
	}

	if c.order.Len() >= c.max {
		oldest := c.order.Front()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*cacheEntry).code)
		}
	}

	c.entries[code] = c.order.PushBack(&cacheEntry{
		code:      code,
		longURL:   longURL,
		expiresAt: c.now().Add(c.ttl),
	})
}

// Invalidate removes the entry for code, if any.
func (c *Cache) Invalidate(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[code]; ok {
		c.order.Remove(elem)
		delete(c.entries, code)
	}
}

// Len returns the number of entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.order.Len()
}
