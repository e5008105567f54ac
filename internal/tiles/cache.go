// cache.go: read-through TTL cache of generated tile payloads
package tiles

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/landcover/parcelmap/internal/observability/metrics"
)

// Cache stores generated tile bytes keyed by tile coordinate. Entries expire
// after the configured TTL. Races between concurrent misses of the same key
// are tolerated: generation is deterministic, so last write wins with no
// correctness impact.
type Cache struct {
	store   *cache.Cache
	hits    atomic.Int64
	misses  atomic.Int64
	metrics *metrics.TileMetrics
}

// Stats reports cache counters for observability.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Keys   int   `json:"keys"`
}

// NewCache returns a tile cache with the given entry TTL. The metrics
// argument may be nil.
func NewCache(ttl time.Duration, m *metrics.TileMetrics) *Cache {
	return &Cache{
		store:   cache.New(ttl, 2*ttl),
		metrics: m,
	}
}

// Key formats the cache key for a tile coordinate.
func Key(z, x, y uint32) string {
	return fmt.Sprintf("%d/%d/%d", z, x, y)
}

// Get returns the cached payload for a key, counting the lookup as a hit or
// a miss.
func (c *Cache) Get(key string) ([]byte, bool) {
	if cached, found := c.store.Get(key); found {
		c.hits.Add(1)
		if c.metrics != nil {
			c.metrics.RecordCacheOperation("hit")
		}
		return cached.([]byte), true
	}
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.RecordCacheOperation("miss")
	}
	return nil, false
}

// Set stores a payload under a key with the default TTL.
func (c *Cache) Set(key string, data []byte) {
	c.store.Set(key, data, cache.DefaultExpiration)
	if c.metrics != nil {
		c.metrics.RecordCacheOperation("store")
		c.metrics.SetCacheKeys(c.store.ItemCount())
	}
}

// Flush removes every cached tile. Hit and miss counters are preserved.
func (c *Cache) Flush() {
	c.store.Flush()
	if c.metrics != nil {
		c.metrics.RecordCacheOperation("flush")
		c.metrics.SetCacheKeys(0)
	}
}

// Stats returns the current counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Keys:   c.store.ItemCount(),
	}
}
