package fetchkit

import (
	"context"
	"hash/fnv"
	"net/http"
	"sync"
	"time"
)

// DefaultCacheTTL is how long a cached response stays fresh.
const DefaultCacheTTL = 5 * time.Minute

// CacheEntry is a stored response and when it was stored.
type CacheEntry struct {
	Response *Response
	StoredAt time.Time
	TTL      time.Duration
}

// Fresh reports whether the entry is still within its TTL at now.
func (e *CacheEntry) Fresh(now time.Time) bool {
	return now.Sub(e.StoredAt) < e.TTL
}

// Cache memoizes successful responses by identity key.
type Cache interface {
	// Get returns a fresh entry. Stale entries read as absent.
	Get(key string) (*CacheEntry, bool)
	// Set stores resp, overwriting any previous entry for key. A ttl of
	// zero uses the cache default.
	Set(key string, resp *Response, ttl time.Duration)
	Delete(key string)
	Clear()
	Len() int
}

// InMemoryCache is a sharded map cache with lazy expiry: stale entries are
// ignored on read and replaced by the next Set, never evicted on a timer.
type InMemoryCache struct {
	shards    []*cacheShard
	numShards int
	ttl       time.Duration
	now       func() time.Time
}

type cacheShard struct {
	mu    sync.RWMutex
	store map[string]*CacheEntry
}

// NewInMemoryCache creates a cache whose entries stay fresh for ttl.
func NewInMemoryCache(ttl time.Duration) *InMemoryCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	numShards := 16
	shards := make([]*cacheShard, numShards)
	for i := range shards {
		shards[i] = &cacheShard{
			store: make(map[string]*CacheEntry),
		}
	}
	return &InMemoryCache{
		shards:    shards,
		numShards: numShards,
		ttl:       ttl,
		now:       time.Now,
	}
}

func (c *InMemoryCache) getShard(key string) *cacheShard {
	hash := fnv.New32a()
	hash.Write([]byte(key))
	return c.shards[hash.Sum32()%uint32(c.numShards)]
}

func (c *InMemoryCache) Get(key string) (*CacheEntry, bool) {
	shard := c.getShard(key)
	shard.mu.RLock()
	entry, exists := shard.store[key]
	shard.mu.RUnlock()

	if !exists || !entry.Fresh(c.now()) {
		return nil, false
	}
	return entry, true
}

func (c *InMemoryCache) Set(key string, resp *Response, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	entry := &CacheEntry{
		Response: resp.Clone(),
		StoredAt: c.now(),
		TTL:      ttl,
	}

	shard := c.getShard(key)
	shard.mu.Lock()
	shard.store[key] = entry
	shard.mu.Unlock()
}

func (c *InMemoryCache) Delete(key string) {
	shard := c.getShard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	delete(shard.store, key)
}

func (c *InMemoryCache) Clear() {
	for _, shard := range c.shards {
		shard.mu.Lock()
		shard.store = make(map[string]*CacheEntry)
		shard.mu.Unlock()
	}
}

// Len counts stored entries, stale ones included.
func (c *InMemoryCache) Len() int {
	total := 0
	for _, shard := range c.shards {
		shard.mu.RLock()
		total += len(shard.store)
		shard.mu.RUnlock()
	}
	return total
}

// TTL returns the default freshness window.
func (c *InMemoryCache) TTL() time.Duration {
	return c.ttl
}

// DefaultCacheCondition only caches GET requests.
func DefaultCacheCondition(req Request) bool {
	return req.Method() == http.MethodGet
}

func (e *Engine) shouldCacheRequest(ctx context.Context, req Request) bool {
	if e.cache == nil {
		return false
	}

	if cacheControl, ok := ctx.Value(CacheControlKey).(*CacheControl); ok {
		return cacheControl.Enabled
	}

	return e.cacheCondition(req)
}

func (e *Engine) getCacheTTLForRequest(ctx context.Context) time.Duration {
	if cacheControl, ok := ctx.Value(CacheControlKey).(*CacheControl); ok && cacheControl.TTL > 0 {
		return cacheControl.TTL
	}

	return e.cacheTTL
}

// WithContextCacheEnabled creates a context that enables caching for the request
func WithContextCacheEnabled(ctx context.Context) context.Context {
	return context.WithValue(ctx, CacheControlKey, &CacheControl{Enabled: true})
}

// WithContextCacheDisabled creates a context that disables caching for the request
func WithContextCacheDisabled(ctx context.Context) context.Context {
	return context.WithValue(ctx, CacheControlKey, &CacheControl{Enabled: false})
}

// WithContextCacheTTL creates a context with custom TTL for the request
func WithContextCacheTTL(ctx context.Context, ttl time.Duration) context.Context {
	cacheControl := &CacheControl{Enabled: true, TTL: ttl}
	return context.WithValue(ctx, CacheControlKey, cacheControl)
}
