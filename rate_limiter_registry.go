package fetchkit

import (
	"net/url"
	"sync"
	"time"
)

// KeyFunc derives a rate limit bucket from a request.
type KeyFunc func(req Request) string

// RateLimiterRegistry holds one limiter per key with an optional fallback.
type RateLimiterRegistry struct {
	mu       sync.RWMutex
	limiters map[string]*RateLimiter
	keyFunc  KeyFunc
	fallback *RateLimiter
}

// NewRateLimiterRegistry creates a registry. A nil keyFunc uses HostKey.
func NewRateLimiterRegistry(keyFunc KeyFunc, fallback *RateLimiter) *RateLimiterRegistry {
	if keyFunc == nil {
		keyFunc = HostKey
	}
	return &RateLimiterRegistry{
		limiters: make(map[string]*RateLimiter),
		keyFunc:  keyFunc,
		fallback: fallback,
	}
}

// Register sets the limiter for key.
func (r *RateLimiterRegistry) Register(key string, limit int, interval time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiters[key] = NewRateLimiter(limit, interval)
}

// Limiter returns the limiter that applies to req, or nil.
func (r *RateLimiterRegistry) Limiter(req Request) (*RateLimiter, string) {
	key := r.keyFunc(req)

	r.mu.RLock()
	limiter, exists := r.limiters[key]
	r.mu.RUnlock()

	if exists {
		return limiter, key
	}
	return r.fallback, "default"
}

// Allow consumes budget from the limiter that applies to req. A request with
// no applicable limiter is always allowed.
func (r *RateLimiterRegistry) Allow(req Request) (*RateLimiter, bool) {
	limiter, _ := r.Limiter(req)
	if limiter == nil {
		return nil, true
	}
	return limiter, limiter.Allow()
}

// HostKey buckets requests by URL host.
func HostKey(req Request) string {
	u, err := url.Parse(req.URL)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host
}

// HostRouteKey buckets requests by host, method and path.
func HostRouteKey(req Request) string {
	u, err := url.Parse(req.URL)
	if err != nil {
		return "unknown"
	}
	host := u.Host
	if host == "" {
		host = "unknown"
	}
	return host + ":" + req.Method() + ":" + u.Path
}
