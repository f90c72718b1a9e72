package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/use-agent/shelfscan/models"
)

// entry holds a cached aggregate with its creation timestamp.
type entry struct {
	aggregate models.AggregateResult
	createdAt time.Time
}

// Cache keeps recent aggregates so repeated jobs over the same categories
// can be answered without driving the browser again.
// It is safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
}

// New creates a Cache holding at most maxEntries aggregates. A background
// goroutine evicts entries older than one hour every five minutes.
func New(maxEntries int) *Cache {
	c := newCache(maxEntries, time.Hour)
	go c.cleanupLoop(5 * time.Minute)
	return c
}

func newCache(maxEntries int, ttl time.Duration) *Cache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &Cache{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
	}
}

// Key identifies a site and category set. Category order does not matter.
func Key(site string, categories []models.Category) string {
	parts := make([]string, 0, len(categories))
	for _, c := range categories {
		parts = append(parts, c.ID+"="+c.PathSlug())
	}
	sort.Strings(parts)

	h := sha256.New()
	h.Write([]byte(strings.ToLower(site)))
	for _, p := range parts {
		h.Write([]byte("|"))
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the aggregate stored under key if it is younger than
// maxAgeMs milliseconds. maxAgeMs <= 0 never hits.
func (c *Cache) Get(key string, maxAgeMs int) (models.AggregateResult, bool) {
	if maxAgeMs <= 0 {
		return models.AggregateResult{}, false
	}

	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	if !ok {
		return models.AggregateResult{}, false
	}
	maxAge := time.Duration(maxAgeMs) * time.Millisecond
	if c.now().Sub(e.createdAt) > maxAge {
		return models.AggregateResult{}, false
	}
	return e.aggregate, true
}

// Set stores agg under key. At capacity the oldest entry is evicted.
func (c *Cache) Set(key string, agg models.AggregateResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.store[key]; !exists && len(c.store) >= c.maxEntries {
		var oldestKey string
		var oldest time.Time
		for k, e := range c.store {
			if oldestKey == "" || e.createdAt.Before(oldest) {
				oldestKey, oldest = k, e.createdAt
			}
		}
		delete(c.store, oldestKey)
	}

	c.store[key] = &entry{aggregate: agg, createdAt: c.now()}
}

// Len returns the number of cached aggregates.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

func (c *Cache) evictExpired() {
	cutoff := c.now().Add(-c.ttl)
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.store {
		if e.createdAt.Before(cutoff) {
			delete(c.store, k)
		}
	}
}

func (c *Cache) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for range ticker.C {
		c.evictExpired()
	}
}
