package fetchkit

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func appendHeader(value string) RequestInterceptor {
	return func(cfg RequestConfig) (RequestConfig, error) {
		cfg.Headers = append(cfg.Headers, Header{Key: "X-Trace", Value: value})
		return cfg, nil
	}
}

func TestInterceptorsApplyRequestInOrder(t *testing.T) {
	var chain Interceptors
	chain.AddRequest(appendHeader("a"))
	chain.AddRequest(appendHeader("b"))
	chain.AddRequest(appendHeader("c"))

	cfg, err := chain.ApplyRequest(RequestConfig{Method: "GET"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got []string
	for _, h := range cfg.Headers {
		got = append(got, h.Value)
	}
	if strings.Join(got, ",") != "a,b,c" {
		t.Errorf("Expected interceptors to run in registration order, got %v", got)
	}
}

func TestInterceptorsApplyRequestDoesNotMutateInput(t *testing.T) {
	var chain Interceptors
	chain.AddRequest(func(cfg RequestConfig) (RequestConfig, error) {
		cfg.Headers[0].Value = "changed"
		return cfg, nil
	})

	in := RequestConfig{Headers: []Header{{Key: "X-A", Value: "original"}}}
	if _, err := chain.ApplyRequest(in); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.Headers[0].Value != "original" {
		t.Errorf("caller's config was mutated: %v", in.Headers)
	}
}

func TestInterceptorsRequestErrorAborts(t *testing.T) {
	var chain Interceptors
	denied := errors.New("denied")
	thirdCalled := false

	chain.AddRequest(appendHeader("a"))
	chain.AddRequest(func(cfg RequestConfig) (RequestConfig, error) {
		return cfg, denied
	})
	chain.AddRequest(func(cfg RequestConfig) (RequestConfig, error) {
		thirdCalled = true
		return cfg, nil
	})

	_, err := chain.ApplyRequest(RequestConfig{})
	if err != denied {
		t.Errorf("Expected the interceptor error unchanged, got %v", err)
	}
	if thirdCalled {
		t.Error("interceptor after a failing one should not run")
	}
}

func TestInterceptorsApplyResponseInOrder(t *testing.T) {
	var chain Interceptors
	for _, suffix := range []string{"1", "2", "3"} {
		suffix := suffix
		chain.AddResponse(func(resp *Response) (*Response, error) {
			resp.Body = append(resp.Body, suffix...)
			return resp, nil
		})
	}

	resp, err := chain.ApplyResponse(&Response{StatusCode: 200, Body: []byte("x")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text() != "x123" {
		t.Errorf("Expected x123, got %q", resp.Text())
	}
}

func TestInterceptorsIgnoreNil(t *testing.T) {
	var chain Interceptors
	chain.AddRequest(nil)
	chain.AddResponse(nil)

	req, resp := chain.Len()
	if req != 0 || resp != 0 {
		t.Errorf("Expected nil interceptors to be ignored, got %d/%d", req, resp)
	}
}

func TestPresetInterceptors(t *testing.T) {
	cfg, _ := BearerToken("secret")(RequestConfig{})
	if v, _ := cfg.Header("Authorization"); v != "Bearer secret" {
		t.Errorf("Expected bearer header, got %q", v)
	}

	cfg, _ = DefaultJSONHeaders()(RequestConfig{})
	if v, _ := cfg.Header("Content-Type"); v != "application/json" {
		t.Errorf("Expected json content type, got %q", v)
	}

	cfg, _ = DefaultJSONHeaders()(RequestConfig{}.WithHeader("Content-Type", "text/plain"))
	if v, _ := cfg.Header("Content-Type"); v != "text/plain" {
		t.Errorf("DefaultJSONHeaders should keep an explicit content type, got %q", v)
	}
}

func TestEngineInterceptSendsTransformedConfig(t *testing.T) {
	transport := newFakeTransport(okHandler("body"))
	engine, _ := newTestEngine(t, transport,
		WithRequestInterceptor(SetHeader("X-Client", "fetchkit")),
		WithResponseInterceptor(func(resp *Response) (*Response, error) {
			resp.Header.Set("X-Seen", "yes")
			return resp, nil
		}),
	)

	resp, err := engine.Intercept(context.Background(), "http://example.com/a", RequestConfig{Method: "GET"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, _ := transport.LastConfig().Header("X-Client"); v != "fetchkit" {
		t.Errorf("transport did not see the intercepted header, got %q", v)
	}
	if resp.Header.Get("X-Seen") != "yes" {
		t.Error("response interceptor did not run")
	}
}

func TestEngineInterceptRequestErrorSkipsTransport(t *testing.T) {
	transport := newFakeTransport(okHandler("body"))
	denied := errors.New("no token")
	engine, _ := newTestEngine(t, transport)
	engine.AddRequestInterceptor(func(cfg RequestConfig) (RequestConfig, error) {
		return cfg, denied
	})

	if _, err := engine.Intercept(context.Background(), "http://example.com/a", RequestConfig{}); err != denied {
		t.Errorf("Expected interceptor error, got %v", err)
	}
	if _, err := engine.Get(context.Background(), "http://example.com/a"); err != denied {
		t.Errorf("Expected interceptor error from Do, got %v", err)
	}
	if transport.Calls() != 0 {
		t.Errorf("Expected no transport calls, got %d", transport.Calls())
	}
}

func TestEngineResponseInterceptorErrorIsReturned(t *testing.T) {
	transport := newFakeTransport(okHandler("body"))
	rejected := errors.New("bad payload")
	engine, _ := newTestEngine(t, transport)
	engine.AddResponseInterceptor(func(resp *Response) (*Response, error) {
		return nil, rejected
	})

	if _, err := engine.Get(context.Background(), "http://example.com/a"); err != rejected {
		t.Errorf("Expected response interceptor error, got %v", err)
	}
	if engine.Cache().Len() != 0 {
		t.Error("a rejected response must not be cached")
	}
}
