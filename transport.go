package fetchkit

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// MaxResponseBodySize bounds how much of a body HTTPTransport buffers.
const MaxResponseBodySize = 10 << 20

// HTTPTransport sends requests with a *http.Client and buffers the body.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport wraps client. A nil client gets a 30s timeout client.
func NewHTTPTransport(client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPTransport{client: client}
}

// RoundTrip implements Transport. Network failures are returned as
// *TransportError; context errors are returned as is.
func (t *HTTPTransport) RoundTrip(ctx context.Context, url string, cfg RequestConfig) (*Response, error) {
	var body io.Reader
	if len(cfg.Body) > 0 {
		body = bytes.NewReader(cfg.Body)
	}

	req, err := http.NewRequestWithContext(ctx, normalizeMethod(cfg.Method), url, body)
	if err != nil {
		return nil, &TransportError{Op: "build", URL: url, Err: err}
	}
	req.Header = cfg.HTTPHeader()

	resp, err := t.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &TransportError{Op: req.Method, URL: url, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBodySize+1))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &TransportError{Op: "read", URL: url, Err: err}
	}
	if len(data) > MaxResponseBodySize {
		return nil, &TransportError{Op: "read", URL: url, Err: fmt.Errorf("response body exceeds %d bytes", MaxResponseBodySize)}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       data,
		Source:     SourceNetwork,
	}, nil
}
