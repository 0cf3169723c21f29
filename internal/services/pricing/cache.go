package pricing

import (
	"math/big"
	"sync"
	"time"
)

const (
	// DefaultQuoteCacheCapacity bounds each direction pool.
	DefaultQuoteCacheCapacity = 50
	// DefaultQuoteCacheTTL keeps identical-tuple lookups warm across
	// UI keystrokes without letting entries pin memory.
	DefaultQuoteCacheTTL = 2000 * time.Millisecond
)

type cacheEntry struct {
	key        string
	value      *big.Int
	insertedAt int64
}

// cacheRing is a fixed-capacity insertion-ordered buffer. Writes
// overwrite the oldest slot once full; reads scan newest-first so a
// re-inserted key shadows its older copies.
type cacheRing struct {
	entries []cacheEntry
	next    int
	count   int
}

func (r *cacheRing) get(key string, oldest int64) (*big.Int, bool) {
	for i := 0; i < r.count; i++ {
		idx := r.next - 1 - i
		if idx < 0 {
			idx += len(r.entries)
		}
		e := &r.entries[idx]
		if e.key != key {
			continue
		}
		if e.insertedAt < oldest {
			return nil, false
		}
		return new(big.Int).Set(e.value), true
	}
	return nil, false
}

func (r *cacheRing) put(key string, value *big.Int, now int64) {
	r.entries[r.next] = cacheEntry{
		key:        key,
		value:      new(big.Int).Set(value),
		insertedAt: now,
	}
	r.next++
	if r.next == len(r.entries) {
		r.next = 0
	}
	if r.count < len(r.entries) {
		r.count++
	}
}

// QuoteCache memoizes pair quotes keyed by their full input tuple, one
// pool per direction. Entries expire after the TTL; an expired read is
// a miss and the slot is reclaimed by ring overwrite rather than
// eagerly. Since keys embed the reserves, a snapshot update can never
// surface a stale answer, only a cold key.
type QuoteCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	nowFn   func() int64
	forward cacheRing
	inverse cacheRing
}

// NewQuoteCache builds a cache with the given per-direction capacity
// and TTL, falling back to the defaults for non-positive values.
func NewQuoteCache(capacity int, ttl time.Duration) *QuoteCache {
	if capacity <= 0 {
		capacity = DefaultQuoteCacheCapacity
	}
	if ttl <= 0 {
		ttl = DefaultQuoteCacheTTL
	}
	return &QuoteCache{
		ttl:     ttl,
		nowFn:   func() int64 { return time.Now().UnixNano() },
		forward: cacheRing{entries: make([]cacheEntry, capacity)},
		inverse: cacheRing{entries: make([]cacheEntry, capacity)},
	}
}

func (c *QuoteCache) GetForward(key string) (*big.Int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.forward.get(key, c.nowFn()-int64(c.ttl))
}

func (c *QuoteCache) PutForward(key string, value *big.Int) {
	if value == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.forward.put(key, value, c.nowFn())
}

func (c *QuoteCache) GetInverse(key string) (*big.Int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inverse.get(key, c.nowFn()-int64(c.ttl))
}

func (c *QuoteCache) PutInverse(key string, value *big.Int) {
	if value == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inverse.put(key, value, c.nowFn())
}

// Len reports live (unexpired) entries per direction pool.
func (c *QuoteCache) Len() (forward, inverse int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	oldest := c.nowFn() - int64(c.ttl)
	return c.forward.live(oldest), c.inverse.live(oldest)
}

func (r *cacheRing) live(oldest int64) int {
	n := 0
	for i := 0; i < r.count; i++ {
		if r.entries[i].insertedAt >= oldest {
			n++
		}
	}
	return n
}
