package fetchkit

import (
	"net/http"
	"testing"
	"time"
)

func TestParseCacheControl(t *testing.T) {
	d := ParseCacheControl(`public, max-age="120", No-Cache, private`)
	if d.MaxAge == nil || *d.MaxAge != 2*time.Minute {
		t.Errorf("Expected max-age 120s, got %v", d.MaxAge)
	}
	if !d.NoCache || !d.Private || d.NoStore {
		t.Errorf("unexpected directives %+v", d)
	}

	if d := ParseCacheControl("max-age=-5, no-store"); d.MaxAge != nil || !d.NoStore {
		t.Errorf("Expected invalid max-age to be ignored, got %+v", d)
	}
	if d := ParseCacheControl(""); d != (CacheDirectives{}) {
		t.Errorf("Expected empty directives, got %+v", d)
	}
}

func TestResponseTTL(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	fallback := 5 * time.Minute

	tests := []struct {
		name    string
		header  http.Header
		wantTTL time.Duration
		wantOK  bool
	}{
		{"no headers", http.Header{}, fallback, true},
		{"max-age", http.Header{"Cache-Control": {"max-age=60"}}, time.Minute, true},
		{"max-age zero", http.Header{"Cache-Control": {"max-age=0"}}, 0, false},
		{"no-store", http.Header{"Cache-Control": {"no-store"}}, 0, false},
		{"no-cache", http.Header{"Cache-Control": {"no-cache"}}, 0, false},
		{"expires", http.Header{"Expires": {now.Add(time.Hour).Format(http.TimeFormat)}}, time.Hour, true},
		{"expired", http.Header{"Expires": {now.Add(-time.Hour).Format(http.TimeFormat)}}, 0, false},
		{"bad expires", http.Header{"Expires": {"0"}}, fallback, true},
		{"max-age wins", http.Header{"Cache-Control": {"max-age=10"}, "Expires": {now.Add(time.Hour).Format(http.TimeFormat)}}, 10 * time.Second, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ttl, ok := responseTTL(&Response{StatusCode: http.StatusOK, Header: tt.header}, fallback, now)
			if ok != tt.wantOK || (ok && ttl != tt.wantTTL) {
				t.Errorf("responseTTL() = %v, %v; want %v, %v", ttl, ok, tt.wantTTL, tt.wantOK)
			}
		})
	}
}
