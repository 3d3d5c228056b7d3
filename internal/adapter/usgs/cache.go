package usgs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/slopewatch/slope-monitor/internal/domain"
	"github.com/slopewatch/slope-monitor/internal/observability"
)

// Summarizer is satisfied by Client and by CachedClient itself.
type Summarizer interface {
	Summary(ctx context.Context, lat, lon float64) (domain.SeismicSummary, error)
}

// CachedClient wraps a Summarizer with an in-memory TTL-LRU cache.
// Quake catalogs change slowly relative to risk queries; caching by rounded
// coordinate keeps repeated dashboard polls from hammering the API. Entries
// expire so a fresh event is picked up within the TTL.
type CachedClient struct {
	inner   Summarizer
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedClient creates a cache decorator around a seismic client.
func NewCachedClient(inner Summarizer, maxEntries int, ttl time.Duration, metrics *observability.Metrics) *CachedClient {
	return &CachedClient{
		inner:   inner,
		cache:   newLRUCache(maxEntries, ttl, clockwork.NewRealClock()),
		metrics: metrics,
	}
}

// Summary serves from cache when a fresh entry exists for the rounded
// coordinates, otherwise queries the inner client. Errors are never cached.
func (c *CachedClient) Summary(ctx context.Context, lat, lon float64) (domain.SeismicSummary, error) {
	key := fmt.Sprintf("%.3f,%.3f", lat, lon)
	if summary, ok := c.cache.get(key); ok {
		c.metrics.TelemetryCache.WithLabelValues("seismic", "hit").Inc()
		return summary, nil
	}
	c.metrics.TelemetryCache.WithLabelValues("seismic", "miss").Inc()

	summary, err := c.inner.Summary(ctx, lat, lon)
	if err != nil {
		return summary, err
	}
	c.cache.put(key, summary)
	return summary, nil
}

// lruCache is a thread-safe LRU cache with per-entry expiry.
type lruCache struct {
	maxEntries int
	ttl        time.Duration
	clock      clockwork.Clock

	mu      sync.Mutex
	entries map[string]*entry
	head    *entry // most recently used
	tail    *entry // least recently used
}

type entry struct {
	key       string
	value     domain.SeismicSummary
	expiresAt time.Time
	prev      *entry
	next      *entry
}

func newLRUCache(maxEntries int, ttl time.Duration, clock clockwork.Clock) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		ttl:        ttl,
		clock:      clock,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (domain.SeismicSummary, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return domain.SeismicSummary{}, false
	}
	if c.clock.Now().After(e.expiresAt) {
		delete(c.entries, key)
		c.remove(e)
		return domain.SeismicSummary{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value domain.SeismicSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.clock.Now().Add(c.ttl)
	if e, ok := c.entries[key]; ok {
		e.value = value
		e.expiresAt = expiresAt
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value, expiresAt: expiresAt}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
