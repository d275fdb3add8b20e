// Package fetchkit is a resilient fetch engine. One Engine composes:
//
//   - Request deduplication (overlapping identical requests share one call)
//   - Request and response interceptor pipelines
//   - Retry with exponential backoff for transport failures
//   - A bounded-concurrency FIFO queue in front of the transport
//   - A TTL response cache with per-request overrides
//   - An offline fallback store fed by every successful fetch
//   - Optional rate limiting, circuit breaking, Prometheus metrics,
//     OpenTelemetry spans and structured debug logging
//
// Typical usage:
//
//	engine := fetchkit.New(
//	    fetchkit.WithConcurrency(4),
//	    fetchkit.WithRetries(2),
//	    fetchkit.WithCache(5*time.Minute),
//	    fetchkit.WithOfflineStore(store.NewMemoryStore()),
//	)
//	user, _, err := fetchkit.GetJSON[User](ctx, engine, "https://api.example.com/users/1")
//
// The engine does not speak HTTP itself: it wraps a Transport, by default an
// HTTPTransport over net/http. Only transport failures are retried; opt
// status codes in with WithRetryOnStatus. Identity keys combine the URL with
// the JSON form of the request config, so header order matters.
package fetchkit
