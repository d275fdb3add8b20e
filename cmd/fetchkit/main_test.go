package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	chdir(t, t.TempDir())
	configPath, verbose = "", false

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := executeCommand(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "fetchkit") {
		t.Errorf("unexpected version output %q", out)
	}
}

func TestGetCommandUsesCacheOnRepeat(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.Header.Get("X-Test") != "yes" {
			t.Errorf("expected X-Test header, got %q", r.Header.Get("X-Test"))
		}
		w.Write([]byte(`{"id":1,"name":"A"}`))
	}))
	defer server.Close()

	out, err := executeCommand(t, "get", "--repeat", "2", "-H", "X-Test: yes", server.URL+"/users/1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if atomic.LoadInt32(&hits) != 1 {
		t.Errorf("expected 1 upstream hit, got %d", hits)
	}
	if !strings.Contains(out, "source=network") || !strings.Contains(out, "source=cache") {
		t.Errorf("expected network then cache sources, got:\n%s", out)
	}
	if !strings.Contains(out, `{"id":1,"name":"A"}`) {
		t.Errorf("expected body in output, got:\n%s", out)
	}
}

func TestGetCommandOfflineRound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello"))
	}))
	defer server.Close()

	out, err := executeCommand(t, "get", "--repeat", "2", "--offline", "-q", server.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !strings.Contains(out, "[2] "+server.URL+" -> 200 OK (source=offline") {
		t.Errorf("expected offline second round, got:\n%s", out)
	}
}

func TestGetCommandRejectsBadHeader(t *testing.T) {
	if _, err := executeCommand(t, "get", "-H", "nocolon", "http://example.invalid"); err == nil {
		t.Error("Expected error for malformed header")
	}
}

func TestParseHeaders(t *testing.T) {
	headers, err := parseHeaders([]string{"Accept: application/json", "X-Empty:"})
	if err != nil {
		t.Fatalf("parseHeaders: %v", err)
	}
	if len(headers) != 2 || headers[0].Key != "Accept" || headers[0].Value != "application/json" || headers[1].Value != "" {
		t.Errorf("unexpected headers %+v", headers)
	}
}
