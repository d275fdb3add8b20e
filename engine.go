package fetchkit

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/ambiyansyah-risyal/fetchkit"

// Engine is a resilient fetch engine. It composes deduplication, an
// interceptor pipeline, retry with backoff, a bounded queue, a TTL cache and
// an offline fallback store around an injected Transport. An Engine owns all
// of its state and is safe for concurrent use.
type Engine struct {
	transport    Transport
	interceptors *Interceptors

	dedup          *Deduplicator
	dedupEnabled   bool
	dedupCondition DeduplicationCondition

	queue       *Queue
	concurrency int

	retryPolicy RetryPolicy
	sleeper     Sleeper

	cache           Cache
	cacheTTL        time.Duration
	cacheCondition  CacheCondition
	cacheDirectives bool

	offline      *OfflineStore
	connectivity *Connectivity

	rateLimiter    *RateLimiter
	rateLimiters   *RateLimiterRegistry
	circuitConfig  *CircuitBreakerConfig
	circuitBreaker *CircuitBreaker

	metrics *MetricsCollector
	debug   *DebugConfig
	logger  Logger
	tracer  trace.Tracer

	writer          offlineWriter
	validationError error
}

// New constructs an Engine using the provided functional options. A best
// effort validation is performed; call IsValid / ValidationError for errors.
//
// Defaults: HTTP transport with a 30s timeout, concurrency 3, 3 retries
// starting at 300ms, 5 minute in-memory cache for GET requests,
// deduplication on, no offline store.
func New(options ...Option) *Engine {
	e := &Engine{
		transport:      NewHTTPTransport(nil),
		interceptors:   &Interceptors{},
		dedup:          NewDeduplicator(),
		dedupEnabled:   true,
		dedupCondition: DefaultDeduplicationCondition,
		concurrency:    DefaultConcurrency,
		retryPolicy:    DefaultRetryPolicy(),
		sleeper:        sleepContext,
		cache:          NewInMemoryCache(DefaultCacheTTL),
		cacheTTL:       DefaultCacheTTL,
		cacheCondition: DefaultCacheCondition,
		debug:          DefaultDebugConfig(),
		tracer:         otel.GetTracerProvider().Tracer(tracerName),
	}

	for _, option := range options {
		option(e)
	}

	e.queue = NewQueue(e.concurrency)
	if e.metrics != nil {
		e.queue.onChange = e.metrics.RecordQueue
	}

	if e.circuitConfig != nil {
		e.circuitBreaker = NewCircuitBreaker("fetchkit", *e.circuitConfig, e.onCircuitStateChange)
		e.metrics.RecordCircuitBreakerState("fetchkit", e.circuitBreaker.State())
	}

	if e.tracer == nil {
		e.tracer = otel.GetTracerProvider().Tracer(tracerName)
	}

	if err := e.ValidateConfiguration(); err != nil {
		e.validationError = err
	}

	return e
}

// IsValid reports whether the configuration passed validation.
func (e *Engine) IsValid() bool {
	return e.validationError == nil
}

// ValidationError returns the configuration error recorded by New, if any.
func (e *Engine) ValidationError() error {
	return e.validationError
}

// Get fetches url with GET.
func (e *Engine) Get(ctx context.Context, url string) (*Response, error) {
	return e.Do(ctx, Get(url))
}

// Post sends body to url with the given content type.
func (e *Engine) Post(ctx context.Context, url, contentType string, body []byte) (*Response, error) {
	cfg := RequestConfig{Method: http.MethodPost, Body: body}.WithHeader("Content-Type", contentType)
	return e.Do(ctx, NewRequest(url, cfg))
}

// Do runs req through every configured layer.
//
// While offline with an offline store configured, the stored response for
// req is returned; if nothing is stored Do returns (nil, nil). Otherwise a
// fresh cache entry is served, or the request is sent once for all
// overlapping identical callers. Non 2xx responses are returned as
// *HTTPStatusError and never cached.
func (e *Engine) Do(ctx context.Context, req Request) (*Response, error) {
	if e.validationError != nil {
		return nil, e.validationError
	}
	if req.URL == "" {
		return nil, ErrEmptyURL
	}
	req.Config.Method = normalizeMethod(req.Config.Method)
	method := req.Config.Method

	start := time.Now()
	requestID := e.requestID()

	ctx, span := e.tracer.Start(ctx, "fetchkit.Do",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.full", req.URL),
		),
	)
	defer span.End()

	if e.debugEnabled(func(d *DebugConfig) bool { return d.LogRequests }) {
		e.logger.Debug("Starting request", "requestID", requestID, "method", method, "url", req.URL)
	}

	e.metrics.RecordRequestStart(method)
	resp, err := e.do(ctx, req, requestID)
	e.metrics.RecordRequestEnd(method)

	statusCode, source := 0, SourceNetwork
	if resp == nil && err == nil {
		source = SourceOffline
	}
	if resp != nil {
		statusCode, source = resp.StatusCode, resp.Source
		span.SetAttributes(
			attribute.Int("http.response.status_code", resp.StatusCode),
			attribute.String("fetchkit.source", resp.Source.String()),
			attribute.Int("fetchkit.attempts", resp.Attempts),
		)
	}
	e.metrics.RecordRequest(method, statusCode, source, time.Since(start))

	if err != nil {
		errType := Classify(err)
		e.metrics.RecordError(errType, method)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(errType))
		if e.debugEnabled(func(d *DebugConfig) bool { return d.LogRequests }) {
			e.logger.Debug("Request failed", "requestID", requestID, "url", req.URL, "errorType", errType, "error", err)
		}
		return nil, err
	}

	if e.debugEnabled(func(d *DebugConfig) bool { return d.LogRequests }) {
		e.logger.Debug("Request completed", "requestID", requestID, "url", req.URL, "statusCode", statusCode, "source", source.String(), "duration", time.Since(start))
	}
	return resp, nil
}

func (e *Engine) do(ctx context.Context, req Request, requestID string) (*Response, error) {
	key := req.Key()
	method := req.Config.Method

	if e.offline != nil && e.isOffline(ctx) {
		return e.fetchOffline(ctx, key, method, requestID)
	}

	cacheable := e.shouldCacheRequest(ctx, req)
	if cacheable {
		if entry, found := e.cache.Get(key); found {
			if e.debugEnabled(func(d *DebugConfig) bool { return d.LogCache }) {
				e.logger.Debug("Cache hit", "requestID", requestID, "cacheKey", key)
			}
			e.metrics.RecordCacheHit(method)

			resp := entry.Response.Clone()
			resp.Source = SourceCache
			resp.Attempts = 0
			return resp, nil
		}
		e.metrics.RecordCacheMiss(method)
		if e.debugEnabled(func(d *DebugConfig) bool { return d.LogCache }) {
			e.logger.Debug("Cache miss", "requestID", requestID, "cacheKey", key)
		}
	}

	ttl := e.getCacheTTLForRequest(ctx)
	op := func(ctx context.Context) (*Response, error) {
		return e.execute(ctx, req, key, requestID, cacheable, ttl)
	}

	if !e.dedupEnabled || !e.dedupCondition(req) {
		return op(ctx)
	}

	resp, joined, err := e.dedup.Do(ctx, key, op)
	if joined {
		e.metrics.RecordDeduplicationHit(method)
		if e.debugEnabled(func(d *DebugConfig) bool { return d.LogRequests }) {
			e.logger.Debug("Deduplication hit", "requestID", requestID, "dedupKey", key)
		}
	}
	return resp, err
}

// execute is the network path shared by every deduplicated caller.
func (e *Engine) execute(ctx context.Context, req Request, key, requestID string, cacheable bool, ttl time.Duration) (*Response, error) {
	method := req.Config.Method

	if limiter, ok := e.admitRate(req); !ok {
		e.metrics.RecordRateLimited(method)
		if e.debugEnabled(func(d *DebugConfig) bool { return d.LogRateLimit }) {
			e.logger.Debug("Rate limit exceeded", "requestID", requestID, "url", req.URL)
		}
		return nil, limiter.rejection()
	}

	if e.debugEnabled(func(d *DebugConfig) bool { return d.LogQueue }) {
		e.logger.Debug("Waiting for queue admission", "requestID", requestID, "running", e.queue.Running(), "pending", e.queue.Pending())
	}

	return Enqueue(ctx, e.queue, func(ctx context.Context) (*Response, error) {
		cfg, err := e.interceptors.ApplyRequest(req.Config)
		if err != nil {
			return nil, err
		}

		resp, err := e.retryPolicy.run(ctx, e.sleeper, e.retryObserver(method, requestID, req.URL), func(ctx context.Context) (*Response, error) {
			return e.roundTrip(ctx, req.URL, cfg)
		})
		if err != nil {
			return nil, err
		}

		resp, err = e.interceptors.ApplyResponse(resp)
		if err != nil {
			return nil, err
		}
		if resp == nil {
			return nil, &TransportError{Op: "intercept", URL: req.URL, Err: errNilResponse}
		}
		if !resp.OK() {
			return nil, &HTTPStatusError{StatusCode: resp.StatusCode, URL: req.URL, Body: resp.Body}
		}
		resp.Source = SourceNetwork

		// A cancelled operation must not leave anything behind.
		if !CommitResult(ctx) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return nil, context.Canceled
		}

		if cacheable {
			e.storeInCache(key, resp, ttl)
		}
		e.mirrorOffline(ctx, key, req.URL, resp, requestID)

		return resp, nil
	})
}

func (e *Engine) admitRate(req Request) (*RateLimiter, bool) {
	if e.rateLimiter != nil && !e.rateLimiter.Allow() {
		return e.rateLimiter, false
	}
	if e.rateLimiters != nil {
		return e.rateLimiters.Allow(req)
	}
	return nil, true
}

func (e *Engine) storeInCache(key string, resp *Response, ttl time.Duration) {
	if e.cacheDirectives {
		var ok bool
		if ttl, ok = responseTTL(resp, ttl, time.Now()); !ok {
			return
		}
	}
	e.cache.Set(key, resp, ttl)
	e.metrics.RecordCacheSize(e.cache.Len())
}

func (e *Engine) roundTrip(ctx context.Context, url string, cfg RequestConfig) (*Response, error) {
	call := func(ctx context.Context) (*Response, error) {
		resp, err := e.transport.RoundTrip(ctx, url, cfg)
		if err == nil && resp == nil {
			return nil, &TransportError{Op: normalizeMethod(cfg.Method), URL: url, Err: errNilResponse}
		}
		return resp, err
	}

	if e.circuitBreaker == nil {
		return call(ctx)
	}
	return e.circuitBreaker.Execute(ctx, call)
}

func (e *Engine) retryObserver(method, requestID, url string) func(int, time.Duration, *Response, error) {
	return func(attempt int, delay time.Duration, resp *Response, err error) {
		e.metrics.RecordRetry(method, attempt)
		if e.debugEnabled(func(d *DebugConfig) bool { return d.LogRetries }) {
			statusCode := 0
			if resp != nil {
				statusCode = resp.StatusCode
			}
			e.logger.Debug("Retrying request", "requestID", requestID, "url", url, "attempt", attempt, "delay", delay, "statusCode", statusCode, "error", err)
		}
	}
}

func (e *Engine) mirrorOffline(ctx context.Context, key, url string, resp *Response, requestID string) {
	if e.offline == nil {
		return
	}

	snapshot := resp.Clone()
	storeCtx := context.WithoutCancel(ctx)
	e.writer.submit(key, func() {
		if err := e.offline.Persist(storeCtx, key, url, snapshot); err != nil {
			if e.logger != nil {
				e.logger.Warn("Offline persist failed", "requestID", requestID, "key", key, "error", err)
			}
			return
		}
		if e.debugEnabled(func(d *DebugConfig) bool { return d.LogOffline }) {
			e.logger.Debug("Offline record stored", "requestID", requestID, "key", key)
		}
	})
}

func (e *Engine) fetchOffline(ctx context.Context, key, method, requestID string) (*Response, error) {
	resp, found, err := e.offline.Retrieve(ctx, key)
	if err != nil {
		return nil, err
	}
	if !found {
		e.metrics.RecordOfflineMiss(method)
		if e.debugEnabled(func(d *DebugConfig) bool { return d.LogOffline }) {
			e.logger.Debug("Offline miss", "requestID", requestID, "key", key)
		}
		return nil, nil
	}

	e.metrics.RecordOfflineHit(method)
	if e.debugEnabled(func(d *DebugConfig) bool { return d.LogOffline }) {
		e.logger.Debug("Offline hit", "requestID", requestID, "key", key)
	}
	return resp, nil
}

func (e *Engine) isOffline(ctx context.Context) bool {
	if offlineModeFrom(ctx) {
		return true
	}
	return e.connectivity != nil && !e.connectivity.Online()
}

func (e *Engine) onCircuitStateChange(name string, from, to CircuitState) {
	e.metrics.RecordCircuitBreakerState(name, to)
	if e.debugEnabled(func(d *DebugConfig) bool { return d.LogCircuit }) {
		e.logger.Debug("Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
	}
}

func (e *Engine) debugEnabled(category func(*DebugConfig) bool) bool {
	return e.debug != nil && e.debug.Enabled && e.logger != nil && category(e.debug)
}

func (e *Engine) requestID() string {
	if e.debug != nil && e.debug.Enabled && e.debug.RequestIDGen != nil {
		return e.debug.RequestIDGen()
	}
	return ""
}

// FetchDeduped sends a request straight to the transport, sharing one call
// among overlapping identical callers. No other layer is involved.
func (e *Engine) FetchDeduped(ctx context.Context, url string, cfg RequestConfig) (*Response, error) {
	req := NewRequest(url, cfg)
	resp, _, err := e.dedup.Do(ctx, req.Key(), func(ctx context.Context) (*Response, error) {
		return e.roundTrip(ctx, req.URL, req.Config)
	})
	return resp, err
}

// Intercept folds cfg through the request interceptors, sends it and folds
// the response through the response interceptors.
func (e *Engine) Intercept(ctx context.Context, url string, cfg RequestConfig) (*Response, error) {
	cfg, err := e.interceptors.ApplyRequest(cfg)
	if err != nil {
		return nil, err
	}
	resp, err := e.roundTrip(ctx, url, cfg)
	if err != nil {
		return nil, err
	}
	return e.interceptors.ApplyResponse(resp)
}

// FetchWithRetry sends a request with the engine's retry policy only.
func (e *Engine) FetchWithRetry(ctx context.Context, url string, cfg RequestConfig) (*Response, error) {
	method := normalizeMethod(cfg.Method)
	return e.retryPolicy.run(ctx, e.sleeper, e.retryObserver(method, "", url), func(ctx context.Context) (*Response, error) {
		return e.roundTrip(ctx, url, cfg)
	})
}

// AddRequestInterceptor appends a request interceptor.
func (e *Engine) AddRequestInterceptor(fn RequestInterceptor) {
	e.interceptors.AddRequest(fn)
}

// AddResponseInterceptor appends a response interceptor.
func (e *Engine) AddResponseInterceptor(fn ResponseInterceptor) {
	e.interceptors.AddResponse(fn)
}

// Wait blocks until pending offline writes have finished.
func (e *Engine) Wait() {
	e.writer.wait()
}

// Cache returns the response cache, or nil when caching is off.
func (e *Engine) Cache() Cache {
	return e.cache
}

// Queue returns the admission queue.
func (e *Engine) Queue() *Queue {
	return e.queue
}

// Deduplicator returns the in-flight registry.
func (e *Engine) Deduplicator() *Deduplicator {
	return e.dedup
}

// Offline returns the offline store, or nil when none is configured.
func (e *Engine) Offline() *OfflineStore {
	return e.offline
}

// Connectivity returns the connectivity tracker, or nil.
func (e *Engine) Connectivity() *Connectivity {
	return e.connectivity
}

// RetryPolicy returns a copy of the retry policy.
func (e *Engine) RetryPolicy() RetryPolicy {
	return e.retryPolicy
}

// CircuitBreaker returns the circuit breaker, or nil when none is configured.
func (e *Engine) CircuitBreaker() *CircuitBreaker {
	return e.circuitBreaker
}

// Metrics returns the metrics collector, or nil.
func (e *Engine) Metrics() *MetricsCollector {
	return e.metrics
}
