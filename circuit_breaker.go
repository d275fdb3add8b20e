package fetchkit

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// CircuitState mirrors the breaker state for metrics and logging.
type CircuitState int

const (
	StateClosed   CircuitState = CircuitState(gobreaker.StateClosed)
	StateHalfOpen CircuitState = CircuitState(gobreaker.StateHalfOpen)
	StateOpen     CircuitState = CircuitState(gobreaker.StateOpen)
)

func (s CircuitState) String() string {
	return gobreaker.State(s).String()
}

// errServerStatus marks a 5xx response as a breaker failure without turning
// it into an error for the caller.
var errServerStatus = errors.New("server error status")

// CircuitBreaker trips after consecutive transport failures or 5xx
// responses and rejects calls with ErrCircuitOpen until RecoveryTimeout has
// passed.
type CircuitBreaker struct {
	config CircuitBreakerConfig
	cb     *gobreaker.CircuitBreaker
}

// NewCircuitBreaker creates a new circuit breaker. Zero fields take
// defaults: 5 failures, 60s recovery, 2 half-open successes.
func NewCircuitBreaker(name string, config CircuitBreakerConfig, onStateChange func(name string, from, to CircuitState)) *CircuitBreaker {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5
	}
	if config.RecoveryTimeout == 0 {
		config.RecoveryTimeout = 60 * time.Second
	}
	if config.SuccessThreshold == 0 {
		config.SuccessThreshold = 2
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: uint32(config.SuccessThreshold),
		Timeout:     config.RecoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(config.FailureThreshold)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}
	if onStateChange != nil {
		settings.OnStateChange = func(name string, from, to gobreaker.State) {
			onStateChange(name, CircuitState(from), CircuitState(to))
		}
	}

	return &CircuitBreaker{
		config: config,
		cb:     gobreaker.NewCircuitBreaker(settings),
	}
}

// Execute runs call through the breaker. Rejections surface as ErrCircuitOpen.
func (b *CircuitBreaker) Execute(ctx context.Context, call func(context.Context) (*Response, error)) (*Response, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		resp, err := call(ctx)
		if err == nil && resp != nil && resp.StatusCode >= 500 {
			return resp, errServerStatus
		}
		return resp, err
	})

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, ErrCircuitOpen
	case errors.Is(err, errServerStatus):
		err = nil
	}

	resp, _ := result.(*Response)
	return resp, err
}

// State returns the current breaker state.
func (b *CircuitBreaker) State() CircuitState {
	return CircuitState(b.cb.State())
}

// Config returns the effective configuration.
func (b *CircuitBreaker) Config() CircuitBreakerConfig {
	return b.config
}
