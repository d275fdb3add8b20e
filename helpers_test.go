package fetchkit

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"
)

// fakeTransport counts calls and answers with handler. When gate is set each
// call blocks until gate is closed or ctx ends.
type fakeTransport struct {
	mu      sync.Mutex
	calls   int
	urls    []string
	configs []RequestConfig
	gate    chan struct{}
	handler func(call int, url string, cfg RequestConfig) (*Response, error)
}

func newFakeTransport(handler func(call int, url string, cfg RequestConfig) (*Response, error)) *fakeTransport {
	return &fakeTransport{handler: handler}
}

func (f *fakeTransport) RoundTrip(ctx context.Context, url string, cfg RequestConfig) (*Response, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.urls = append(f.urls, url)
	f.configs = append(f.configs, cfg)
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.handler(call, url, cfg)
}

func (f *fakeTransport) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeTransport) LastConfig() RequestConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.configs) == 0 {
		return RequestConfig{}
	}
	return f.configs[len(f.configs)-1]
}

func jsonResponse(status int, body string) *Response {
	return &Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       []byte(body),
	}
}

func okHandler(body string) func(int, string, RequestConfig) (*Response, error) {
	return func(int, string, RequestConfig) (*Response, error) {
		return jsonResponse(http.StatusOK, body), nil
	}
}

func networkError(url string) error {
	return &TransportError{Op: http.MethodGet, URL: url, Err: errors.New("connection reset by peer")}
}

// recordingSleeper records requested delays and returns immediately.
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *recordingSleeper) Delays() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

// mapStore is an in-memory Store for tests.
type mapStore struct {
	mu     sync.Mutex
	items  map[string][]byte
	setErr error
	getErr error
}

func newMapStore() *mapStore {
	return &mapStore{items: make(map[string][]byte)}
}

func (m *mapStore) SetItem(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.items[key] = append([]byte(nil), value...)
	return nil
}

func (m *mapStore) GetItem(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	v, ok := m.items[key]
	return v, ok, nil
}

func (m *mapStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// waitFor polls cond until it holds or a second passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

// newTestEngine builds an engine on transport with instant backoff.
func newTestEngine(t *testing.T, transport Transport, opts ...Option) (*Engine, *recordingSleeper) {
	t.Helper()
	sleeper := &recordingSleeper{}
	base := []Option{WithTransport(transport), WithSleeper(sleeper.Sleep)}
	engine := New(append(base, opts...)...)
	if !engine.IsValid() {
		t.Fatalf("invalid engine configuration: %v", engine.ValidationError())
	}
	return engine, sleeper
}
