package fetchkit

import (
	"context"
	"net/http"
	"time"

	internalbackoff "github.com/ambiyansyah-risyal/fetchkit/internal/backoff"
)

// RetryPolicy re-issues a call on transient failure with exponential backoff.
//
// The delay before attempt n+1 is Backoff * Multiplier^n (n is 0-indexed).
// Only transport failures are retried by default; set RetryOnStatus to also
// retry selected status codes.
type RetryPolicy struct {
	// Retries is the number of extra attempts after the first one.
	Retries int
	// Backoff is the delay before the first retry.
	Backoff time.Duration
	// Multiplier defaults to 2.
	Multiplier float64
	// MaxBackoff caps a single delay. Zero means uncapped.
	MaxBackoff time.Duration
	// Jitter adds up to Jitter*delay of random time. Zero disables it.
	Jitter float64
	// RetryOnStatus opts selected status codes into retry.
	RetryOnStatus func(status int) bool
	// Condition replaces the default decision entirely when set.
	Condition RetryCondition
}

// DefaultRetryPolicy returns 3 retries starting at 300ms and doubling.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Retries:    3,
		Backoff:    300 * time.Millisecond,
		Multiplier: 2.0,
	}
}

// RetryOnServerErrors is a RetryOnStatus preset for 429 and 5xx responses.
func RetryOnServerErrors(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Delay returns the wait after the given 0-indexed failed attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	var strategy internalbackoff.Strategy = internalbackoff.Exponential{}
	if p.Jitter > 0 {
		strategy = internalbackoff.ExponentialJitter{Jitter: p.Jitter}
	}
	return strategy.Delay(attempt, p.Backoff, p.MaxBackoff, p.multiplier())
}

func (p RetryPolicy) multiplier() float64 {
	if p.Multiplier <= 0 {
		return 2.0
	}
	return p.Multiplier
}

// ShouldRetry reports whether an attempt outcome is eligible for another try.
func (p RetryPolicy) ShouldRetry(resp *Response, err error) bool {
	if p.Condition != nil {
		return p.Condition(resp, err)
	}
	if err != nil {
		return IsTransient(err)
	}
	return resp != nil && p.RetryOnStatus != nil && p.RetryOnStatus(resp.StatusCode)
}

// Do runs call until it succeeds, fails permanently or the retries are spent.
// The last outcome is returned unchanged.
func (p RetryPolicy) Do(ctx context.Context, call func(context.Context) (*Response, error)) (*Response, error) {
	return p.run(ctx, sleepContext, nil, call)
}

func (p RetryPolicy) run(
	ctx context.Context,
	sleep Sleeper,
	onRetry func(attempt int, delay time.Duration, resp *Response, err error),
	call func(context.Context) (*Response, error),
) (*Response, error) {
	if sleep == nil {
		sleep = sleepContext
	}

	for attempt := 0; ; attempt++ {
		resp, err := call(ctx)
		if resp != nil {
			resp.Attempts = attempt + 1
		}

		if attempt >= p.Retries || !p.ShouldRetry(resp, err) {
			return resp, err
		}
		if ctx.Err() != nil {
			return resp, err
		}

		delay := p.Delay(attempt)
		if onRetry != nil {
			onRetry(attempt+1, delay, resp, err)
		}
		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return nil, sleepErr
		}
	}
}
