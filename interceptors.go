package fetchkit

import (
	"sync"
)

// RequestInterceptor transforms an outgoing request config. Returning an
// error aborts the pipeline.
type RequestInterceptor func(cfg RequestConfig) (RequestConfig, error)

// ResponseInterceptor transforms an incoming response. Returning an error
// aborts the pipeline.
type ResponseInterceptor func(resp *Response) (*Response, error)

// Interceptors is an append-only pair of ordered interceptor sequences.
// It is safe for concurrent use.
type Interceptors struct {
	mu       sync.RWMutex
	request  []RequestInterceptor
	response []ResponseInterceptor
}

// AddRequest appends a request interceptor.
func (i *Interceptors) AddRequest(fn RequestInterceptor) {
	if fn == nil {
		return
	}
	i.mu.Lock()
	i.request = append(i.request, fn)
	i.mu.Unlock()
}

// AddResponse appends a response interceptor.
func (i *Interceptors) AddResponse(fn ResponseInterceptor) {
	if fn == nil {
		return
	}
	i.mu.Lock()
	i.response = append(i.response, fn)
	i.mu.Unlock()
}

// ApplyRequest folds cfg through the request interceptors in registration order.
func (i *Interceptors) ApplyRequest(cfg RequestConfig) (RequestConfig, error) {
	i.mu.RLock()
	chain := i.request
	i.mu.RUnlock()

	cfg = cfg.clone()
	for _, fn := range chain {
		next, err := fn(cfg)
		if err != nil {
			return RequestConfig{}, err
		}
		cfg = next
	}
	return cfg, nil
}

// ApplyResponse folds resp through the response interceptors in registration order.
func (i *Interceptors) ApplyResponse(resp *Response) (*Response, error) {
	i.mu.RLock()
	chain := i.response
	i.mu.RUnlock()

	for _, fn := range chain {
		next, err := fn(resp)
		if err != nil {
			return nil, err
		}
		resp = next
	}
	return resp, nil
}

// Len returns the number of request and response interceptors.
func (i *Interceptors) Len() (request, response int) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.request), len(i.response)
}

// SetHeader returns a request interceptor that sets a header.
func SetHeader(key, value string) RequestInterceptor {
	return func(cfg RequestConfig) (RequestConfig, error) {
		return cfg.WithHeader(key, value), nil
	}
}

// BearerToken returns a request interceptor that adds an Authorization header.
func BearerToken(token string) RequestInterceptor {
	return SetHeader("Authorization", "Bearer "+token)
}

// DefaultJSONHeaders adds Content-Type: application/json unless one is set.
func DefaultJSONHeaders() RequestInterceptor {
	return func(cfg RequestConfig) (RequestConfig, error) {
		if _, ok := cfg.Header("Content-Type"); ok {
			return cfg, nil
		}
		return cfg.WithHeader("Content-Type", "application/json"), nil
	}
}
