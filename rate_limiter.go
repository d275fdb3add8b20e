package fetchkit

import (
	"sync"
	"time"
)

// RateLimiter admits at most limit calls per fixed interval window.
type RateLimiter struct {
	mu          sync.Mutex
	limit       int
	interval    time.Duration
	count       int
	windowStart time.Time
	now         func() time.Time
}

// NewRateLimiter creates a fixed-window limiter.
func NewRateLimiter(limit int, interval time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:       limit,
		interval:    interval,
		windowStart: time.Now(),
		now:         time.Now,
	}
}

// Allow consumes one unit of budget if any is left in the current window.
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.windowStart) > rl.interval {
		rl.count = 0
		rl.windowStart = now
	}

	if rl.count >= rl.limit {
		return false
	}
	rl.count++
	return true
}

// Remaining returns the budget left in the current window.
func (rl *RateLimiter) Remaining() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.now().Sub(rl.windowStart) > rl.interval {
		return rl.limit
	}
	return rl.limit - rl.count
}

func (rl *RateLimiter) rejection() *RateLimitError {
	return &RateLimitError{Limit: rl.limit, Interval: rl.interval}
}
