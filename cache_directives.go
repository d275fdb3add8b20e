package fetchkit

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CacheDirectives represents parsed Cache-Control directives.
type CacheDirectives struct {
	NoStore bool
	NoCache bool
	Private bool
	MaxAge  *time.Duration
}

// ParseCacheControl parses a Cache-Control header value.
func ParseCacheControl(header string) CacheDirectives {
	var directives CacheDirectives

	for _, part := range strings.Split(header, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}

		key, value, hasValue := strings.Cut(part, "=")
		if hasValue {
			if key == "max-age" {
				if seconds, err := strconv.Atoi(strings.Trim(value, `"`)); err == nil && seconds >= 0 {
					maxAge := time.Duration(seconds) * time.Second
					directives.MaxAge = &maxAge
				}
			}
			continue
		}

		switch key {
		case "no-store":
			directives.NoStore = true
		case "no-cache":
			directives.NoCache = true
		case "private":
			directives.Private = true
		}
	}

	return directives
}

func parseHTTPDate(header string) (time.Time, bool) {
	if header == "" {
		return time.Time{}, false
	}
	t, err := http.ParseTime(header)
	return t, err == nil
}

// responseTTL derives a cache lifetime from the response headers. ok is false
// when the response forbids caching. Without explicit freshness headers the
// fallback is used.
func responseTTL(resp *Response, fallback time.Duration, now time.Time) (ttl time.Duration, ok bool) {
	if resp == nil || resp.Header == nil {
		return fallback, true
	}

	directives := ParseCacheControl(resp.Header.Get("Cache-Control"))
	if directives.NoStore || directives.NoCache {
		return 0, false
	}

	if directives.MaxAge != nil {
		if *directives.MaxAge == 0 {
			return 0, false
		}
		return *directives.MaxAge, true
	}

	if expires, found := parseHTTPDate(resp.Header.Get("Expires")); found {
		ttl := expires.Sub(now)
		if ttl <= 0 {
			return 0, false
		}
		return ttl, true
	}

	return fallback, true
}
