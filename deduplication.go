package fetchkit

import (
	"context"
	"fmt"
	"sync"
)

// inflight is a call shared by every caller that asked for the same key
// while it was running.
type inflight struct {
	owner     *Deduplicator
	done      chan struct{}
	resp      *Response
	err       error
	waiters   []*waiter
	committed bool
	cancel    context.CancelFunc
}

type waiter struct {
	ctx context.Context
}

type inflightKey struct{}

// Deduplicator collapses concurrent identical requests into one call.
type Deduplicator struct {
	mu      sync.Mutex
	entries map[string]*inflight
}

// NewDeduplicator returns an empty in-memory deduplicator.
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{
		entries: make(map[string]*inflight),
	}
}

// Do runs fn once per key among overlapping callers. Callers that arrive
// while a call for key is running wait for it instead of starting their own;
// the returned bool reports that. Every caller receives its own copy of the
// response and the unchanged error.
//
// The entry is removed as soon as fn returns, before waiters are released,
// so later callers start a fresh call. fn runs on a context detached from
// any single caller; it is cancelled once every waiter has gone away. fn
// calls CommitResult before any side effect that must only happen for a
// result somebody still receives.
func (d *Deduplicator) Do(ctx context.Context, key string, fn func(context.Context) (*Response, error)) (*Response, bool, error) {
	w := &waiter{ctx: ctx}

	d.mu.Lock()
	if entry, exists := d.entries[key]; exists {
		entry.waiters = append(entry.waiters, w)
		d.mu.Unlock()
		resp, err := d.wait(ctx, key, entry, w)
		return resp, true, err
	}

	entry := &inflight{
		owner:   d,
		done:    make(chan struct{}),
		waiters: []*waiter{w},
	}
	opCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	opCtx = context.WithValue(opCtx, inflightKey{}, entry)
	entry.cancel = cancel
	d.entries[key] = entry
	d.mu.Unlock()

	go d.run(opCtx, key, entry, fn)

	resp, err := d.wait(ctx, key, entry, w)
	return resp, false, err
}

// CommitResult reports whether the call running on ctx still has a caller
// to deliver its result to. Once it returns true for a shared call, every
// remaining waiter receives that call's result even if its own context ends
// first. Outside a shared call it reports whether ctx is still live.
func CommitResult(ctx context.Context) bool {
	entry, ok := ctx.Value(inflightKey{}).(*inflight)
	if !ok {
		return ctx.Err() == nil
	}

	d := entry.owner
	d.mu.Lock()
	defer d.mu.Unlock()
	if entry.committed {
		return true
	}
	for _, w := range entry.waiters {
		if w.ctx.Err() == nil {
			entry.committed = true
			return true
		}
	}
	return false
}

func (d *Deduplicator) run(ctx context.Context, key string, entry *inflight, fn func(context.Context) (*Response, error)) {
	var (
		resp *Response
		err  error
	)
	defer func() {
		if r := recover(); r != nil {
			resp, err = nil, fmt.Errorf("fetchkit: panic in deduplicated call: %v", r)
		}

		d.mu.Lock()
		if d.entries[key] == entry {
			delete(d.entries, key)
		}
		entry.resp = resp
		entry.err = err
		d.mu.Unlock()

		close(entry.done)
		entry.cancel()
	}()

	resp, err = fn(ctx)
}

func (d *Deduplicator) wait(ctx context.Context, key string, entry *inflight, w *waiter) (*Response, error) {
	select {
	case <-entry.done:
		return entry.resp.Clone(), entry.err
	case <-ctx.Done():
	}

	d.mu.Lock()
	if entry.committed {
		d.mu.Unlock()
		<-entry.done
		return entry.resp.Clone(), entry.err
	}
	for i, other := range entry.waiters {
		if other == w {
			entry.waiters = append(entry.waiters[:i], entry.waiters[i+1:]...)
			break
		}
	}
	last := len(entry.waiters) == 0
	if last && d.entries[key] == entry {
		delete(d.entries, key)
	}
	d.mu.Unlock()

	if last {
		entry.cancel()
	}
	return nil, ctx.Err()
}

// InFlight returns the number of keys with a running call.
func (d *Deduplicator) InFlight() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

// DefaultDeduplicationCondition makes every request eligible.
func DefaultDeduplicationCondition(req Request) bool {
	return true
}
