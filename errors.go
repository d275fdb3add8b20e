package fetchkit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors for common failure scenarios
var (
	// ErrCircuitOpen is returned when the circuit breaker rejects a call
	ErrCircuitOpen = errors.New("fetchkit: circuit open")

	// ErrRateLimited is matched by every *RateLimitError
	ErrRateLimited = errors.New("fetchkit: rate limited")

	// ErrOffline is returned by Mutate when the engine is offline
	ErrOffline = errors.New("fetchkit: offline")

	// ErrEmptyURL is returned for requests without a URL
	ErrEmptyURL = errors.New("fetchkit: empty url")

	errNilResponse = errors.New("nil response")
)

// ErrorType is a coarse classification used for metrics and logging.
type ErrorType string

const (
	ErrorTypeTransport     ErrorType = "Transport"
	ErrorTypeHTTPStatus    ErrorType = "HTTPStatus"
	ErrorTypeSerialization ErrorType = "Serialization"
	ErrorTypeRateLimit     ErrorType = "RateLimit"
	ErrorTypeCircuitOpen   ErrorType = "CircuitOpen"
	ErrorTypeCanceled      ErrorType = "Canceled"
	ErrorTypeValidation    ErrorType = "Validation"
	ErrorTypeUnknown       ErrorType = "Unknown"
)

// TransportError reports a network level failure. It is eligible for retry.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("transport: %s %s: %v", e.Op, e.URL, e.Err)
}

// Unwrap returns the underlying cause.
func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// HTTPStatusError is returned when the final response has a non 2xx status.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       []byte
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("http error: status %d for %s", e.StatusCode, e.URL)
}

// SerializationError reports a body that could not be decoded.
type SerializationError struct {
	URL string
	Err error
}

func (e *SerializationError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("serialization: %v", e.Err)
	}
	return fmt.Sprintf("serialization: %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying cause.
func (e *SerializationError) Unwrap() error {
	return e.Err
}

// RateLimitError is returned when the configured request budget is spent.
type RateLimitError struct {
	Limit    int
	Interval time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded: %d requests per %v", e.Limit, e.Interval)
}

// Is lets errors.Is(err, ErrRateLimited) match.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// GraphQLError carries the messages of a GraphQL "errors" array.
type GraphQLError struct {
	Messages []string
}

func (e *GraphQLError) Error() string {
	return "graphql: " + strings.Join(e.Messages, "; ")
}

// ConfigError lists configuration problems found by ValidateConfiguration.
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: configuration validation failed: %s", ErrorTypeValidation, strings.Join(e.Problems, "; "))
}

// Classify maps an error onto the error taxonomy.
func Classify(err error) ErrorType {
	if err == nil {
		return ""
	}

	var (
		statusErr *HTTPStatusError
		serialErr *SerializationError
		configErr *ConfigError
	)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrorTypeCanceled
	case errors.Is(err, ErrRateLimited):
		return ErrorTypeRateLimit
	case errors.Is(err, ErrCircuitOpen):
		return ErrorTypeCircuitOpen
	case errors.As(err, &statusErr):
		return ErrorTypeHTTPStatus
	case errors.As(err, &serialErr):
		return ErrorTypeSerialization
	case errors.As(err, &configErr):
		return ErrorTypeValidation
	}

	var gqlErr *GraphQLError
	if errors.As(err, &gqlErr) {
		return ErrorTypeUnknown
	}
	return ErrorTypeTransport
}

// IsTransient reports whether an error may succeed on retry. Only transport
// failures are transient; status, decode, rate limit and circuit errors are not.
func IsTransient(err error) bool {
	return Classify(err) == ErrorTypeTransport
}
