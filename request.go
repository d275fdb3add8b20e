package fetchkit

import (
	"encoding/json"
	"net/http"
	"strings"
)

// NewRequest builds a Request with a normalised method.
func NewRequest(url string, cfg RequestConfig) Request {
	cfg.Method = normalizeMethod(cfg.Method)
	return Request{URL: url, Config: cfg}
}

// Get is shorthand for a GET Request without headers or body.
func Get(url string) Request {
	return NewRequest(url, RequestConfig{Method: http.MethodGet})
}

func normalizeMethod(m string) string {
	if m == "" {
		return http.MethodGet
	}
	return strings.ToUpper(m)
}

// Key returns the identity key used for deduplication, caching and the
// offline store: the URL followed by the JSON form of the config. Struct
// encoding keeps the field order stable and headers keep their order.
func (r Request) Key() string {
	cfg := r.Config
	cfg.Method = normalizeMethod(cfg.Method)
	b, err := json.Marshal(cfg)
	if err != nil {
		// RequestConfig only holds strings and bytes
		return r.URL + "-" + cfg.Method
	}
	return r.URL + "-" + string(b)
}

// Method returns the normalised request method.
func (r Request) Method() string {
	return normalizeMethod(r.Config.Method)
}

// Header returns the first value stored for key (case-insensitive).
func (c RequestConfig) Header(key string) (string, bool) {
	for _, h := range c.Headers {
		if strings.EqualFold(h.Key, key) {
			return h.Value, true
		}
	}
	return "", false
}

// WithHeader returns a copy of c with key set to value. An existing header
// keeps its position; a new one is appended.
func (c RequestConfig) WithHeader(key, value string) RequestConfig {
	headers := make([]Header, len(c.Headers), len(c.Headers)+1)
	copy(headers, c.Headers)
	for i := range headers {
		if strings.EqualFold(headers[i].Key, key) {
			headers[i].Value = value
			c.Headers = headers
			return c
		}
	}
	c.Headers = append(headers, Header{Key: key, Value: value})
	return c
}

// HTTPHeader converts the ordered headers to an http.Header.
func (c RequestConfig) HTTPHeader() http.Header {
	h := make(http.Header, len(c.Headers))
	for _, kv := range c.Headers {
		h.Add(kv.Key, kv.Value)
	}
	return h
}

func (c RequestConfig) clone() RequestConfig {
	out := c
	if c.Headers != nil {
		out.Headers = append([]Header(nil), c.Headers...)
	}
	if c.Body != nil {
		out.Body = append([]byte(nil), c.Body...)
	}
	return out
}

// OK reports whether the status code is in the 2xx range.
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Clone returns a deep copy so callers never share mutable state.
func (r *Response) Clone() *Response {
	if r == nil {
		return nil
	}
	out := *r
	if r.Header != nil {
		out.Header = r.Header.Clone()
	}
	if r.Body != nil {
		out.Body = append([]byte(nil), r.Body...)
	}
	return &out
}

// Text returns the body as a string.
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	return string(r.Body)
}

// JSON decodes the body into v. Decode failures are reported as *SerializationError.
func (r *Response) JSON(v any) error {
	if r == nil {
		return &SerializationError{Err: errNilResponse}
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return &SerializationError{Err: err}
	}
	return nil
}
