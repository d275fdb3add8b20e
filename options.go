package fetchkit

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// WithTransport sets the transport every request goes through
func WithTransport(t Transport) Option {
	return func(e *Engine) {
		e.transport = t
	}
}

// WithHTTPClient uses an HTTPTransport over client
func WithHTTPClient(client *http.Client) Option {
	return func(e *Engine) {
		e.transport = NewHTTPTransport(client)
	}
}

// WithTimeout sets the request timeout of the HTTP transport. It has no
// effect on a custom Transport.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if t, ok := e.transport.(*HTTPTransport); ok && t.client != nil {
			t.client.Timeout = d
		}
	}
}

// WithRetries sets the number of extra attempts after the first one
func WithRetries(n int) Option {
	return func(e *Engine) {
		e.retryPolicy.Retries = n
	}
}

// WithBackoff sets the delay before the first retry
func WithBackoff(d time.Duration) Option {
	return func(e *Engine) {
		e.retryPolicy.Backoff = d
	}
}

// WithMaxBackoff caps a single retry delay
func WithMaxBackoff(d time.Duration) Option {
	return func(e *Engine) {
		e.retryPolicy.MaxBackoff = d
	}
}

// WithJitter sets the jitter factor for backoff (0.0 to 1.0)
func WithJitter(f float64) Option {
	return func(e *Engine) {
		if f < 0 {
			f = 0
		}
		if f > 1 {
			f = 1
		}
		e.retryPolicy.Jitter = f
	}
}

// WithRetryPolicy replaces the whole retry policy
func WithRetryPolicy(p RetryPolicy) Option {
	return func(e *Engine) {
		e.retryPolicy = p
	}
}

// WithRetryOnStatus opts status codes into retry, e.g. RetryOnServerErrors
func WithRetryOnStatus(fn func(status int) bool) Option {
	return func(e *Engine) {
		e.retryPolicy.RetryOnStatus = fn
	}
}

// WithRetryCondition sets a custom retry condition
func WithRetryCondition(fn RetryCondition) Option {
	return func(e *Engine) {
		e.retryPolicy.Condition = fn
	}
}

// WithSleeper replaces the backoff sleep, mainly for tests
func WithSleeper(s Sleeper) Option {
	return func(e *Engine) {
		e.sleeper = s
	}
}

// WithConcurrency sets how many requests may hit the transport at once
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		e.concurrency = n
	}
}

// WithCache enables caching with the default in-memory cache
func WithCache(ttl time.Duration) Option {
	return func(e *Engine) {
		e.cache = NewInMemoryCache(ttl)
		e.cacheTTL = ttl
	}
}

// WithCustomCache sets a custom cache implementation
func WithCustomCache(cache Cache, ttl time.Duration) Option {
	return func(e *Engine) {
		e.cache = cache
		e.cacheTTL = ttl
	}
}

// WithoutCache disables response caching
func WithoutCache() Option {
	return func(e *Engine) {
		e.cache = nil
	}
}

// WithCacheCondition sets a custom cache condition function
func WithCacheCondition(fn CacheCondition) Option {
	return func(e *Engine) {
		e.cacheCondition = fn
	}
}

// WithCacheDirectives honours Cache-Control and Expires response headers:
// no-store and no-cache responses are not cached and max-age or Expires
// replace the TTL.
func WithCacheDirectives() Option {
	return func(e *Engine) {
		e.cacheDirectives = true
	}
}

// WithDeduplication enables request deduplication (the default)
func WithDeduplication() Option {
	return func(e *Engine) {
		e.dedupEnabled = true
	}
}

// WithoutDeduplication sends every request on its own
func WithoutDeduplication() Option {
	return func(e *Engine) {
		e.dedupEnabled = false
	}
}

// WithDeduplicationCondition sets a custom deduplication condition function
func WithDeduplicationCondition(fn DeduplicationCondition) Option {
	return func(e *Engine) {
		e.dedupCondition = fn
	}
}

// WithRequestInterceptor registers request interceptors at construction
func WithRequestInterceptor(fns ...RequestInterceptor) Option {
	return func(e *Engine) {
		for _, fn := range fns {
			e.interceptors.AddRequest(fn)
		}
	}
}

// WithResponseInterceptor registers response interceptors at construction
func WithResponseInterceptor(fns ...ResponseInterceptor) Option {
	return func(e *Engine) {
		for _, fn := range fns {
			e.interceptors.AddResponse(fn)
		}
	}
}

// WithOfflineStore mirrors successful responses into store and serves
// offline requests from it
func WithOfflineStore(store Store) Option {
	return func(e *Engine) {
		if store == nil {
			e.offline = nil
			return
		}
		e.offline = NewOfflineStore(store)
	}
}

// WithConnectivity makes the engine go offline whenever c reports offline
func WithConnectivity(c *Connectivity) Option {
	return func(e *Engine) {
		e.connectivity = c
	}
}

// WithRateLimiter allows at most limit requests per interval
func WithRateLimiter(limit int, interval time.Duration) Option {
	return func(e *Engine) {
		e.rateLimiter = NewRateLimiter(limit, interval)
	}
}

// WithRateLimiterRegistry applies per-key limits on top of WithRateLimiter
func WithRateLimiterRegistry(registry *RateLimiterRegistry) Option {
	return func(e *Engine) {
		e.rateLimiters = registry
	}
}

// WithHostRateLimit limits requests to one host
func WithHostRateLimit(host string, limit int, interval time.Duration) Option {
	return func(e *Engine) {
		if e.rateLimiters == nil {
			e.rateLimiters = NewRateLimiterRegistry(HostKey, nil)
		}
		e.rateLimiters.Register(host, limit, interval)
	}
}

// WithCircuitBreaker sets the circuit breaker configuration
func WithCircuitBreaker(config CircuitBreakerConfig) Option {
	return func(e *Engine) {
		e.circuitConfig = &config
	}
}

// WithMetrics enables Prometheus metrics collection
func WithMetrics() Option {
	return func(e *Engine) {
		e.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector sets a custom metrics collector
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(e *Engine) {
		e.metrics = collector
	}
}

// WithTracer sets the OpenTelemetry tracer used for request spans
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = tracer
	}
}

// WithDebug enables debug logging with default configuration
func WithDebug() Option {
	return func(e *Engine) {
		if e.debug == nil {
			e.debug = DefaultDebugConfig()
		}
		e.debug.Enabled = true
	}
}

// WithDebugConfig sets custom debug configuration
func WithDebugConfig(config *DebugConfig) Option {
	return func(e *Engine) {
		e.debug = config
	}
}

// WithLogger sets a custom logger for debug output
func WithLogger(logger Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithSimpleLogger enables debug logging with a simple console logger
func WithSimpleLogger() Option {
	return func(e *Engine) {
		if e.debug == nil {
			e.debug = DefaultDebugConfig()
		}
		e.debug.Enabled = true
		e.logger = NewSimpleLogger()
	}
}

// WithRequestIDGenerator sets a custom function for generating request IDs
func WithRequestIDGenerator(gen func() string) Option {
	return func(e *Engine) {
		if e.debug == nil {
			e.debug = DefaultDebugConfig()
		}
		e.debug.RequestIDGen = gen
	}
}

// ValidateConfiguration validates the engine configuration and returns an error if invalid
func (e *Engine) ValidateConfiguration() error {
	var problems []string

	problems = append(problems, e.validateTransportConfig()...)
	problems = append(problems, e.validateRetryConfig()...)
	problems = append(problems, e.validateQueueConfig()...)
	problems = append(problems, e.validateRateLimiterConfig()...)
	problems = append(problems, e.validateCacheConfig()...)
	problems = append(problems, e.validateCircuitBreakerConfig()...)
	problems = append(problems, e.validateDebugConfig()...)
	problems = append(problems, e.validateDeduplicationConfig()...)
	problems = append(problems, e.validateExtremeValues()...)

	if len(problems) > 0 {
		return &ConfigError{Problems: problems}
	}

	return nil
}

func (e *Engine) validateTransportConfig() []string {
	if e.transport == nil {
		return []string{"transport cannot be nil"}
	}
	return nil
}

// validateRetryConfig validates retry-related configuration
func (e *Engine) validateRetryConfig() []string {
	var problems []string
	p := e.retryPolicy

	if p.Retries < 0 {
		problems = append(problems, "retries must be non-negative")
	}

	if p.Backoff < 0 {
		problems = append(problems, "backoff must be non-negative")
	}

	if p.MaxBackoff != 0 && p.MaxBackoff < p.Backoff {
		problems = append(problems, "maxBackoff must be zero or greater than or equal to backoff")
	}

	if p.Multiplier < 0 {
		problems = append(problems, "backoff multiplier must be positive")
	}

	if p.Jitter < 0 || p.Jitter > 1 {
		problems = append(problems, "jitter must be between 0 and 1")
	}

	return problems
}

func (e *Engine) validateQueueConfig() []string {
	if e.concurrency < 1 {
		return []string{"concurrency must be at least 1"}
	}
	return nil
}

// validateRateLimiterConfig validates rate limiter configuration
func (e *Engine) validateRateLimiterConfig() []string {
	var problems []string

	if e.rateLimiter != nil {
		if e.rateLimiter.limit <= 0 {
			problems = append(problems, "rateLimiter limit must be positive")
		}
		if e.rateLimiter.interval <= 0 {
			problems = append(problems, "rateLimiter interval must be positive")
		}
	}

	return problems
}

// validateCacheConfig validates cache configuration
func (e *Engine) validateCacheConfig() []string {
	var problems []string

	if e.cache != nil && e.cacheTTL <= 0 {
		problems = append(problems, "cacheTTL must be positive when cache is enabled")
	}
	if e.cache != nil && e.cacheCondition == nil {
		problems = append(problems, "cache condition must be set when cache is enabled")
	}

	return problems
}

// validateCircuitBreakerConfig validates circuit breaker configuration
func (e *Engine) validateCircuitBreakerConfig() []string {
	var problems []string

	if cfg := e.circuitConfig; cfg != nil {
		if cfg.FailureThreshold < 0 {
			problems = append(problems, "circuitBreaker FailureThreshold must be positive")
		}
		if cfg.RecoveryTimeout < 0 {
			problems = append(problems, "circuitBreaker RecoveryTimeout must be positive")
		}
		if cfg.SuccessThreshold < 0 {
			problems = append(problems, "circuitBreaker SuccessThreshold must be positive")
		}
	}

	return problems
}

// validateDebugConfig validates debug configuration
func (e *Engine) validateDebugConfig() []string {
	var problems []string

	if e.debug != nil && e.debug.Enabled {
		if e.debug.RequestIDGen == nil {
			problems = append(problems, "debug RequestIDGen must be set when debug is enabled")
		}
		if e.logger == nil {
			problems = append(problems, "logger must be set when debug is enabled")
		}
	}

	return problems
}

// validateDeduplicationConfig validates deduplication configuration
func (e *Engine) validateDeduplicationConfig() []string {
	if e.dedupEnabled && e.dedupCondition == nil {
		return []string{"deduplication condition must be set when deduplication is enabled"}
	}
	return nil
}

// validateExtremeValues validates that configuration values are within reasonable bounds
func (e *Engine) validateExtremeValues() []string {
	var problems []string

	if e.retryPolicy.Retries > 100 {
		problems = append(problems, "retries > 100 may cause excessive resource usage")
	}

	if e.retryPolicy.Backoff > 10*time.Minute {
		problems = append(problems, "backoff > 10m may cause very long delays")
	}

	if e.concurrency > 10000 {
		problems = append(problems, "concurrency > 10000 defeats the purpose of the queue")
	}

	if e.cache != nil && e.cacheTTL > 24*time.Hour {
		problems = append(problems, "cacheTTL > 24h may cause stale data issues")
	}

	return problems
}
