package entrycache

import (
	"sync/atomic"

	"github.com/LeJamon/goLedgerApply/internal/core/ledger/entry"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSize is the entry capacity used when Config.Size is not positive.
const DefaultSize = 4096

// Config holds configuration for the cache
type Config struct {
	// Size is the maximum number of keys kept, positive and negative
	// entries alike. Eviction is least-recently-used.
	Size int
}

// Cache maps ledger keys to snapshots of their stored entries. A cached nil
// means the key is confirmed absent from storage. The cache is safe for
// concurrent use and is shared by every frame operating on the same storage;
// writers must Flush a key before issuing the write.
type Cache struct {
	entries *lru.Cache[entry.LedgerKey, *entry.LedgerEntry]

	hits   atomic.Uint64
	misses atomic.Uint64
}

// New creates an entry cache.
func New(config Config) (*Cache, error) {
	if config.Size <= 0 {
		config.Size = DefaultSize
	}

	entries, err := lru.New[entry.LedgerKey, *entry.LedgerEntry](config.Size)
	if err != nil {
		return nil, err
	}

	return &Cache{entries: entries}, nil
}

// Get returns the cached snapshot for k. known is false when the cache holds
// nothing for k; known with a nil entry means k is confirmed absent. The
// returned entry is a copy the caller may mutate.
func (c *Cache) Get(k entry.LedgerKey) (e *entry.LedgerEntry, known bool) {
	e, known = c.entries.Get(k)
	if !known {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return e.Clone(), true
}

// Exists reports whether k is cached, either present or confirmed absent.
func (c *Cache) Exists(k entry.LedgerKey) bool {
	return c.entries.Contains(k)
}

// Put caches a snapshot of e for k; a nil e records k as absent.
func (c *Cache) Put(k entry.LedgerKey, e *entry.LedgerEntry) {
	c.entries.Add(k, e.Clone())
}

// Flush drops whatever is cached for k.
func (c *Cache) Flush(k entry.LedgerKey) {
	c.entries.Remove(k)
}

// EraseIf drops every cached entry for which pred returns true. pred sees nil
// for negative entries.
func (c *Cache) EraseIf(pred func(k entry.LedgerKey, e *entry.LedgerEntry) bool) int {
	n := 0
	for _, k := range c.entries.Keys() {
		e, ok := c.entries.Peek(k)
		if ok && pred(k, e) {
			c.entries.Remove(k)
			n++
		}
	}
	return n
}

// Clear removes all cached entries.
func (c *Cache) Clear() {
	c.entries.Purge()
}

// Len returns the number of cached keys.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Stats returns cache statistics
func (c *Cache) Stats() Stats {
	hits, misses := c.hits.Load(), c.misses.Load()
	total := hits + misses
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return Stats{
		Hits:    hits,
		Misses:  misses,
		HitRate: hitRate,
		Len:     c.entries.Len(),
	}
}

// Stats holds cache performance metrics
type Stats struct {
	Hits    uint64
	Misses  uint64
	HitRate float64
	Len     int
}
