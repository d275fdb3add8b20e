package fetchkit

import (
	"context"
	"net/http"
	"time"
)

// Header is a single request header. Request headers are kept as an ordered
// slice so that identity keys are deterministic.
type Header struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// RequestConfig holds everything about a request except its URL.
type RequestConfig struct {
	Method  string   `json:"method"`
	Headers []Header `json:"headers,omitempty"`
	Body    []byte   `json:"body,omitempty"`
}

// Request describes a single fetch. It is a value type; helpers return copies.
type Request struct {
	URL    string
	Config RequestConfig
}

// Source reports where a Response came from.
type Source int

const (
	SourceNetwork Source = iota
	SourceCache
	SourceOffline
)

func (s Source) String() string {
	switch s {
	case SourceNetwork:
		return "network"
	case SourceCache:
		return "cache"
	case SourceOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// Response is a fully buffered transport response. Buffering lets a single
// result be shared by deduplicated callers and stored in the cache.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Source     Source
	// Attempts is the number of transport calls made for this result.
	Attempts int
}

// Transport sends a request. The engine never talks to the network directly.
type Transport interface {
	RoundTrip(ctx context.Context, url string, cfg RequestConfig) (*Response, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, url string, cfg RequestConfig) (*Response, error)

// RoundTrip calls f.
func (f TransportFunc) RoundTrip(ctx context.Context, url string, cfg RequestConfig) (*Response, error) {
	return f(ctx, url, cfg)
}

// RetryCondition decides whether an attempt outcome should be retried.
type RetryCondition func(resp *Response, err error) bool

// CacheCondition determines whether a request may be served from or stored in the cache.
type CacheCondition func(req Request) bool

// DeduplicationCondition decides whether a request is eligible for deduplication.
type DeduplicationCondition func(req Request) bool

// CircuitBreakerConfig holds circuit breaker configuration
type CircuitBreakerConfig struct {
	FailureThreshold int
	RecoveryTimeout  time.Duration
	SuccessThreshold int
}

// Context keys for per-request control
type contextKey string

const (
	CacheControlKey contextKey = "fetchkit_cache_control"
	offlineModeKey  contextKey = "fetchkit_offline_mode"
)

// CacheControl holds cache control options for a request
type CacheControl struct {
	Enabled bool
	TTL     time.Duration
}

// Option represents a configuration option
type Option func(*Engine)
