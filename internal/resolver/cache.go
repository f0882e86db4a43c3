package resolver

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
)

// Cache defaults. One entry holds the full result for one query key, so
// capacity bounds memory by the largest airports served.
const (
	DefaultCacheCapacity = 64
	DefaultCacheTTL      = time.Hour
)

type cacheEntry struct {
	key      string
	result   *Result
	storedAt time.Time
}

// Cache wraps a resolver with an LRU of bounded capacity and a TTL.
// Concurrent requests for the same key are coalesced into one inner
// resolve; requests for different keys never block each other. Returned
// results are deep copies, so callers may mutate them freely.
type Cache struct {
	inner    Interface
	capacity int
	ttl      time.Duration
	clock    clockwork.Clock

	group singleflight.Group

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front = most recent

	hits   uint64
	misses uint64
}

// NewCache wraps inner with the given capacity and TTL. capacity <= 0
// and ttl <= 0 fall back to the defaults.
func NewCache(inner Interface, capacity int, ttl time.Duration) *Cache {
	return newCacheWithClock(inner, capacity, ttl, clockwork.NewRealClock())
}

func newCacheWithClock(inner Interface, capacity int, ttl time.Duration, clock clockwork.Clock) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		inner:    inner,
		capacity: capacity,
		ttl:      ttl,
		clock:    clock,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Resolve returns a cached result when fresh, otherwise computes it once
// per key regardless of how many callers arrive concurrently.
func (c *Cache) Resolve(ctx context.Context, q Query) (*Result, error) {
	q = q.Clamped()
	key := q.Key()

	if res, ok := c.lookup(key); ok {
		return res.Clone(), nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// Re-check under the flight: a concurrent caller may have
		// stored the entry between our miss and this callback.
		if res, ok := c.lookup(key); ok {
			return res, nil
		}
		res, err := c.inner.Resolve(ctx, q)
		if err != nil {
			return nil, err
		}
		c.store(key, res)
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Result).Clone(), nil
}

// lookup returns a fresh entry and promotes it, evicting it instead when
// expired.
func (c *Cache) lookup(key string) (*Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	entry := el.Value.(*cacheEntry)
	if c.clock.Since(entry.storedAt) >= c.ttl {
		c.order.Remove(el)
		delete(c.entries, key)
		c.misses++
		return nil, false
	}
	c.order.MoveToFront(el)
	c.hits++
	return entry.result, true
}

func (c *Cache) store(key string, res *Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*cacheEntry).result = res
		el.Value.(*cacheEntry).storedAt = c.clock.Now()
		c.order.MoveToFront(el)
		return
	}
	for c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
	c.entries[key] = c.order.PushFront(&cacheEntry{
		key:      key,
		result:   res,
		storedAt: c.clock.Now(),
	})
}

// Invalidate drops every cached entry.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.order.Init()
}

// CacheStats is a point-in-time snapshot for the status endpoint.
type CacheStats struct {
	Entries  int     `json:"entries"`
	Capacity int     `json:"capacity"`
	Hits     uint64  `json:"hits"`
	Misses   uint64  `json:"misses"`
	HitRate  float64 `json:"hit_rate"`
}

// Stats reports current occupancy and hit counters.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := CacheStats{
		Entries:  c.order.Len(),
		Capacity: c.capacity,
		Hits:     c.hits,
		Misses:   c.misses,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}
