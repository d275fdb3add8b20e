package fetchkit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Store is the durable key-value capability behind the offline fallback.
// Implementations must be safe for concurrent use.
type Store interface {
	SetItem(ctx context.Context, key string, value []byte) error
	// GetItem reports found=false, not an error, for a missing key.
	GetItem(ctx context.Context, key string) (value []byte, found bool, err error)
}

type offlineRecord struct {
	Key        string      `json:"key"`
	URL        string      `json:"url"`
	StatusCode int         `json:"status_code"`
	Header     http.Header `json:"header,omitempty"`
	Body       []byte      `json:"body"`
	StoredAt   time.Time   `json:"stored_at"`
}

// OfflineStore keeps the latest successful response per identity key so it
// can stand in for the network while offline.
type OfflineStore struct {
	store Store
	now   func() time.Time
}

// NewOfflineStore wraps a durable Store.
func NewOfflineStore(store Store) *OfflineStore {
	return &OfflineStore{store: store, now: time.Now}
}

// Persist records resp as the most recent result for key.
func (o *OfflineStore) Persist(ctx context.Context, key, url string, resp *Response) error {
	if resp == nil {
		return nil
	}
	raw, err := json.Marshal(offlineRecord{
		Key:        key,
		URL:        url,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
		StoredAt:   o.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode offline record: %w", err)
	}
	if err := o.store.SetItem(ctx, key, raw); err != nil {
		return fmt.Errorf("persist offline record: %w", err)
	}
	return nil
}

// Retrieve returns the stored response for key. A missing record is
// reported as found=false with a nil error.
func (o *OfflineStore) Retrieve(ctx context.Context, key string) (*Response, bool, error) {
	raw, found, err := o.store.GetItem(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("retrieve offline record: %w", err)
	}
	if !found {
		return nil, false, nil
	}
	var record offlineRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, false, &SerializationError{URL: key, Err: err}
	}
	return &Response{
		StatusCode: record.StatusCode,
		Header:     record.Header,
		Body:       record.Body,
		Source:     SourceOffline,
	}, true, nil
}

// offlineWriter runs offline writes in the background, one at a time per
// key. A write submitted while an earlier one for the same key is still
// running replaces any write queued behind it, so the last submitted write
// always lands last.
type offlineWriter struct {
	mu      sync.Mutex
	pending map[string]func()
	active  map[string]bool
	wg      sync.WaitGroup
}

func (w *offlineWriter) submit(key string, write func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending == nil {
		w.pending = make(map[string]func())
		w.active = make(map[string]bool)
	}
	w.pending[key] = write
	if w.active[key] {
		return
	}
	w.active[key] = true
	w.wg.Add(1)
	go w.drain(key)
}

func (w *offlineWriter) drain(key string) {
	defer w.wg.Done()
	for {
		w.mu.Lock()
		write, ok := w.pending[key]
		if !ok {
			delete(w.active, key)
			w.mu.Unlock()
			return
		}
		delete(w.pending, key)
		w.mu.Unlock()

		write()
	}
}

// wait blocks until every submitted write has finished.
func (w *offlineWriter) wait() {
	w.wg.Wait()
}

// WithOfflineMode marks a request as issued while offline: the offline
// store is consulted instead of the network.
func WithOfflineMode(ctx context.Context) context.Context {
	return context.WithValue(ctx, offlineModeKey, true)
}

func offlineModeFrom(ctx context.Context) bool {
	offline, _ := ctx.Value(offlineModeKey).(bool)
	return offline
}
