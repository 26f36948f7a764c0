// Package cache implements the query response cache.
//
// Entries are keyed by a fingerprint of the normalized query, so
// "Clearent support hours" and "  clearent SUPPORT hours " share one
// entry. The cache is bounded three ways: entry count, total byte size
// and per-entry age.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Default bounds for the response cache.
const (
	DefaultMaxEntries = 10
	DefaultMaxBytes   = 1 << 20
	DefaultTTL        = 5 * time.Minute
)

type entry struct {
	query    string // normalized form, kept for stats
	value    []byte
	size     int64
	hitCount int
	storedAt time.Time
}

// Stats is a point-in-time snapshot of cache effectiveness.
type Stats struct {
	Size       int          `json:"size"`
	TotalHits  int          `json:"totalHits"`
	TopQueries []QueryStats `json:"topQueries"`
}

// QueryStats pairs a cached query with its hit count and age.
type QueryStats struct {
	Query string        `json:"query"`
	Hits  int           `json:"hits"`
	Age   time.Duration `json:"age"`
}

// ResponseCache is a TTL-bounded LRU cache for synthesized answers.
// Safe for concurrent use.
type ResponseCache struct {
	mu         sync.Mutex
	lru        *lru.Cache[string, *entry]
	maxBytes   int64
	totalBytes int64
	ttl        time.Duration
	now        func() time.Time
}

// Option configures a ResponseCache.
type Option func(*ResponseCache)

// WithClock overrides the time source, used by tests to age entries.
func WithClock(now func() time.Time) Option {
	return func(c *ResponseCache) { c.now = now }
}

// New creates a response cache with the given bounds. Non-positive
// arguments fall back to the defaults.
func New(maxEntries int, maxBytes int64, ttl time.Duration, opts ...Option) *ResponseCache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	c := &ResponseCache{
		maxBytes: maxBytes,
		ttl:      ttl,
		now:      time.Now,
	}
	// The eviction callback keeps byte accounting consistent no matter
	// which path removes an entry.
	base, _ := lru.NewWithEvict[string, *entry](maxEntries, func(_ string, e *entry) {
		c.totalBytes -= e.size
	})
	c.lru = base

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NormalizeQuery canonicalizes a query for cache keying: lowercased,
// trimmed, inner whitespace collapsed to single spaces.
func NormalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// Key returns the cache key for a query.
func Key(query string) string {
	sum := sha256.Sum256([]byte(NormalizeQuery(query)))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached response for query if present and fresh.
// Expired entries are removed on access. Hits bump the entry's counter.
func (c *ResponseCache) Get(query string) ([]byte, bool) {
	key := Key(query)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.storedAt) > c.ttl {
		c.lru.Remove(key)
		return nil, false
	}
	e.hitCount++
	return e.value, true
}

// Set stores a response for query. Entries larger than the byte ceiling
// are not cached at all. Older entries are evicted until both the count
// and byte bounds hold.
func (c *ResponseCache) Set(query string, value []byte) {
	size := int64(len(value))
	if size > c.maxBytes {
		return
	}
	key := Key(query)

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.lru.Peek(key); ok {
		// Replacing: the evict callback does not fire on overwrite.
		c.totalBytes -= old.size
	}
	c.lru.Add(key, &entry{
		query:    NormalizeQuery(query),
		value:    value,
		size:     size,
		storedAt: c.now(),
	})
	c.totalBytes += size

	for c.totalBytes > c.maxBytes {
		if _, _, ok := c.lru.RemoveOldest(); !ok {
			break
		}
	}
}

// Len returns the number of cached entries.
func (c *ResponseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Bytes returns the total cached payload size.
func (c *ResponseCache) Bytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalBytes
}

// GetStats snapshots cache effectiveness: entry count, total hits and
// the ten most-hit queries with their ages, in descending hit order.
func (c *ResponseCache) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	stats := Stats{Size: c.lru.Len()}
	for _, key := range c.lru.Keys() {
		e, ok := c.lru.Peek(key)
		if !ok {
			continue
		}
		stats.TotalHits += e.hitCount
		stats.TopQueries = append(stats.TopQueries, QueryStats{
			Query: e.query,
			Hits:  e.hitCount,
			Age:   now.Sub(e.storedAt),
		})
	}

	sort.SliceStable(stats.TopQueries, func(i, j int) bool {
		return stats.TopQueries[i].Hits > stats.TopQueries[j].Hits
	})
	if len(stats.TopQueries) > 10 {
		stats.TopQueries = stats.TopQueries[:10]
	}
	return stats
}

// Clear removes every cached entry.
func (c *ResponseCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
	c.totalBytes = 0
}
