package fetchkit

import (
	"context"
	"sync"

	"go.uber.org/atomic"
)

// DefaultConcurrency is the queue width used when none is configured.
const DefaultConcurrency = 3

type queueTask struct {
	start chan struct{}
}

// Queue bounds how many tasks run at once. Pending tasks are admitted in
// FIFO submission order; completion order is up to the tasks themselves.
type Queue struct {
	mu          sync.Mutex
	concurrency int
	pending     []*queueTask
	running     int

	runningGauge atomic.Int64
	pendingGauge atomic.Int64

	onChange func(running, pending int)
}

// NewQueue returns a queue running at most concurrency tasks at a time.
// Values below one are raised to one.
func NewQueue(concurrency int) *Queue {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Queue{concurrency: concurrency}
}

// Enqueue waits for admission, runs task and returns exactly its outcome.
// If ctx ends while the task is still pending, it is dropped from the queue
// and ctx.Err() is returned; an admitted task always releases its slot.
func Enqueue[T any](ctx context.Context, q *Queue, task func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := q.acquire(ctx); err != nil {
		return zero, err
	}
	defer q.release()
	return task(ctx)
}

func (q *Queue) acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t := &queueTask{start: make(chan struct{})}
	q.mu.Lock()
	q.pending = append(q.pending, t)
	q.admitLocked()
	q.mu.Unlock()

	select {
	case <-t.start:
		return nil
	case <-ctx.Done():
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	for i, p := range q.pending {
		if p == t {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			q.publishLocked()
			return ctx.Err()
		}
	}
	// Admitted between the select and the lock: give the slot back.
	q.running--
	q.admitLocked()
	return ctx.Err()
}

func (q *Queue) release() {
	q.mu.Lock()
	q.running--
	q.admitLocked()
	q.mu.Unlock()
}

// admitLocked starts pending tasks while there is room. q.mu must be held.
func (q *Queue) admitLocked() {
	for q.running < q.concurrency && len(q.pending) > 0 {
		head := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.running++
		close(head.start)
	}
	q.publishLocked()
}

func (q *Queue) publishLocked() {
	q.runningGauge.Store(int64(q.running))
	q.pendingGauge.Store(int64(len(q.pending)))
	if q.onChange != nil {
		q.onChange(q.running, len(q.pending))
	}
}

// Running returns the number of admitted tasks that have not finished.
func (q *Queue) Running() int {
	return int(q.runningGauge.Load())
}

// Pending returns the number of tasks waiting for admission.
func (q *Queue) Pending() int {
	return int(q.pendingGauge.Load())
}

// Concurrency returns the configured queue width.
func (q *Queue) Concurrency() int {
	return q.concurrency
}
