package fetchkit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"
)

// Connectivity tracks the online/offline state fed by two signals,
// "became online" and "became offline". It is safe for concurrent use.
type Connectivity struct {
	online atomic.Bool

	mu     sync.Mutex
	nextID int
	subs   map[int]func(online bool)
}

// NewConnectivity returns a tracker starting in the given state.
func NewConnectivity(online bool) *Connectivity {
	c := &Connectivity{subs: make(map[int]func(bool))}
	c.online.Store(online)
	return c
}

// Online reports the current state.
func (c *Connectivity) Online() bool {
	return c.online.Load()
}

// GoOnline delivers the "became online" signal.
func (c *Connectivity) GoOnline() {
	c.set(true)
}

// GoOffline delivers the "became offline" signal.
func (c *Connectivity) GoOffline() {
	c.set(false)
}

func (c *Connectivity) set(online bool) {
	if c.online.Swap(online) == online {
		return
	}

	c.mu.Lock()
	subs := make([]func(bool), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(online)
	}
}

// OnChange registers fn for state transitions and returns an unsubscribe func.
func (c *Connectivity) OnChange(fn func(online bool)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

// Listen consumes the two signal channels until ctx ends or both close.
func (c *Connectivity) Listen(ctx context.Context, online, offline <-chan struct{}) {
	for online != nil || offline != nil {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-online:
			if !ok {
				online = nil
				continue
			}
			c.GoOnline()
		case _, ok := <-offline:
			if !ok {
				offline = nil
				continue
			}
			c.GoOffline()
		}
	}
}

// Probe runs check every interval and flips the state on its outcome: a nil
// error means online. It blocks until ctx ends.
func (c *Connectivity) Probe(ctx context.Context, interval time.Duration, check func(context.Context) error) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := check(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.GoOffline()
		} else {
			c.GoOnline()
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
