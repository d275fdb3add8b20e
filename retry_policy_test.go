package fetchkit

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

const retryTestURL = "http://example.com/retry"

// flakyCall fails the first k calls with a transport error.
func flakyCall(k int, calls *int) func(context.Context) (*Response, error) {
	return func(ctx context.Context) (*Response, error) {
		*calls++
		if *calls <= k {
			return nil, networkError(retryTestURL)
		}
		return jsonResponse(http.StatusOK, "ok"), nil
	}
}

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()
	if p.Retries != 3 {
		t.Errorf("Expected Retries=3, got %d", p.Retries)
	}
	if p.Backoff != 300*time.Millisecond {
		t.Errorf("Expected Backoff=300ms, got %v", p.Backoff)
	}
	if p.Multiplier != 2.0 {
		t.Errorf("Expected Multiplier=2, got %v", p.Multiplier)
	}
}

func TestRetryPolicyAttemptCounts(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		retries   int
		wantCalls int
		wantErr   bool
	}{
		{"no failures", 0, 3, 1, false},
		{"recovers within budget", 2, 3, 3, false},
		{"recovers on last attempt", 3, 3, 4, false},
		{"budget exhausted", 5, 3, 4, true},
		{"no retries", 1, 0, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sleeper := &recordingSleeper{}
			p := RetryPolicy{Retries: tt.retries, Backoff: 10 * time.Millisecond}
			calls := 0

			resp, err := p.run(context.Background(), sleeper.Sleep, nil, flakyCall(tt.failures, &calls))
			if calls != tt.wantCalls {
				t.Errorf("Expected %d calls, got %d", tt.wantCalls, calls)
			}
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected an error")
				}
				var transportErr *TransportError
				if !errors.As(err, &transportErr) {
					t.Errorf("Expected the last transport error, got %T", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.Attempts != tt.wantCalls {
				t.Errorf("Expected Attempts=%d, got %d", tt.wantCalls, resp.Attempts)
			}
		})
	}
}

func TestRetryPolicyBackoffSchedule(t *testing.T) {
	sleeper := &recordingSleeper{}
	p := RetryPolicy{Retries: 3, Backoff: 300 * time.Millisecond}
	calls := 0

	if _, err := p.run(context.Background(), sleeper.Sleep, nil, flakyCall(3, &calls)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []time.Duration{300 * time.Millisecond, 600 * time.Millisecond, 1200 * time.Millisecond}
	got := sleeper.Delays()
	if len(got) != len(want) {
		t.Fatalf("Expected %d delays, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("delay %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestRetryPolicyDelay(t *testing.T) {
	p := RetryPolicy{Backoff: 100 * time.Millisecond, Multiplier: 3, MaxBackoff: time.Second}

	if d := p.Delay(0); d != 100*time.Millisecond {
		t.Errorf("Delay(0) = %v, want 100ms", d)
	}
	if d := p.Delay(1); d != 300*time.Millisecond {
		t.Errorf("Delay(1) = %v, want 300ms", d)
	}
	if d := p.Delay(5); d != time.Second {
		t.Errorf("Delay(5) = %v, want the 1s cap", d)
	}

	jittered := RetryPolicy{Backoff: 100 * time.Millisecond, Jitter: 0.5}
	for i := 0; i < 20; i++ {
		d := jittered.Delay(1)
		if d < 200*time.Millisecond || d > 300*time.Millisecond {
			t.Fatalf("jittered delay %v outside [200ms, 300ms]", d)
		}
	}
}

func TestRetryPolicyReturnsLastErrorUnchanged(t *testing.T) {
	last := networkError(retryTestURL)
	p := RetryPolicy{Retries: 2}
	calls := 0

	_, err := p.run(context.Background(), (&recordingSleeper{}).Sleep, nil, func(ctx context.Context) (*Response, error) {
		calls++
		if calls == 3 {
			return nil, last
		}
		return nil, networkError(retryTestURL)
	})
	if err != last {
		t.Errorf("Expected the final attempt's error, got %v", err)
	}
}

func TestRetryPolicyStatusIsNotRetriedByDefault(t *testing.T) {
	p := RetryPolicy{Retries: 3}
	calls := 0

	resp, err := p.run(context.Background(), (&recordingSleeper{}).Sleep, nil, func(ctx context.Context) (*Response, error) {
		calls++
		return jsonResponse(http.StatusServiceUnavailable, ""), nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 || resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected a single attempt returning 503, got %d calls and status %d", calls, resp.StatusCode)
	}
}

func TestRetryPolicyRetryOnStatus(t *testing.T) {
	p := RetryPolicy{Retries: 3, RetryOnStatus: RetryOnServerErrors}
	calls := 0

	resp, err := p.run(context.Background(), (&recordingSleeper{}).Sleep, nil, func(ctx context.Context) (*Response, error) {
		calls++
		if calls < 3 {
			return jsonResponse(http.StatusBadGateway, ""), nil
		}
		return jsonResponse(http.StatusOK, "ok"), nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 || resp.Attempts != 3 {
		t.Errorf("Expected 3 attempts, got calls=%d attempts=%d", calls, resp.Attempts)
	}

	if RetryOnServerErrors(http.StatusNotFound) {
		t.Error("404 should not be retried")
	}
	if !RetryOnServerErrors(http.StatusTooManyRequests) {
		t.Error("429 should be retried")
	}
}

func TestRetryPolicyDoesNotRetryPermanentErrors(t *testing.T) {
	permanent := []error{
		&SerializationError{Err: errors.New("bad json")},
		&RateLimitError{Limit: 1, Interval: time.Second},
		ErrCircuitOpen,
		context.Canceled,
	}
	for _, perm := range permanent {
		p := RetryPolicy{Retries: 3}
		calls := 0
		_, err := p.run(context.Background(), (&recordingSleeper{}).Sleep, nil, func(ctx context.Context) (*Response, error) {
			calls++
			return nil, perm
		})
		if err != perm || calls != 1 {
			t.Errorf("%T: expected one attempt returning the error, got %d calls and %v", perm, calls, err)
		}
	}
}

func TestRetryPolicyCustomCondition(t *testing.T) {
	p := RetryPolicy{
		Retries: 2,
		Condition: func(resp *Response, err error) bool {
			return resp != nil && resp.StatusCode == http.StatusAccepted
		},
	}
	calls := 0
	resp, _ := p.run(context.Background(), (&recordingSleeper{}).Sleep, nil, func(ctx context.Context) (*Response, error) {
		calls++
		return jsonResponse(http.StatusAccepted, ""), nil
	})
	if calls != 3 || resp.Attempts != 3 {
		t.Errorf("Expected the custom condition to drive 3 attempts, got %d", calls)
	}
}

func TestRetryPolicySleepCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := RetryPolicy{Retries: 5, Backoff: time.Hour}
	calls := 0

	done := make(chan error, 1)
	go func() {
		_, err := p.Do(ctx, flakyCall(10, &calls))
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("retry did not stop on cancellation")
	}
}

func TestRetryPolicyObserver(t *testing.T) {
	p := RetryPolicy{Retries: 2, Backoff: 50 * time.Millisecond}
	calls := 0
	var attempts []int

	_, err := p.run(context.Background(), (&recordingSleeper{}).Sleep, func(attempt int, delay time.Duration, resp *Response, err error) {
		attempts = append(attempts, attempt)
	}, flakyCall(2, &calls))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("Expected observer for attempts [1 2], got %v", attempts)
	}
}
