// Package backoff computes delays between retry attempts.
package backoff

import (
	"math/rand"
	"time"
)

// maxAttempt bounds the exponent so the float math cannot overflow a Duration.
const maxAttempt = 62

// Strategy returns the delay to wait after the given 0-indexed attempt failed.
type Strategy interface {
	Delay(attempt int, base, max time.Duration, multiplier float64) time.Duration
}

// Exponential is strict exponential growth: base * multiplier^attempt.
// A max of zero or less means uncapped.
type Exponential struct{}

// Delay implements Strategy.
func (Exponential) Delay(attempt int, base, max time.Duration, multiplier float64) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > maxAttempt {
		attempt = maxAttempt
	}
	if multiplier <= 0 {
		multiplier = 2
	}

	f := float64(base) * Pow(multiplier, attempt)
	if f >= float64(1<<63-1) {
		if max > 0 {
			return max
		}
		return time.Duration(1<<63 - 1)
	}
	d := time.Duration(f)
	if max > 0 && d > max {
		d = max
	}
	return d
}

// ExponentialJitter adds up to Jitter*delay of uniform random time on top of
// Exponential, still respecting the cap.
type ExponentialJitter struct {
	Jitter float64
	// Rand is used when set; tests pin it.
	Rand func() float64
}

// Delay implements Strategy.
func (s ExponentialJitter) Delay(attempt int, base, max time.Duration, multiplier float64) time.Duration {
	d := Exponential{}.Delay(attempt, base, max, multiplier)

	jitter := clampJitter(s.Jitter)
	if jitter == 0 {
		return d
	}
	rnd := s.Rand
	if rnd == nil {
		rnd = rand.Float64
	}
	extra := time.Duration(float64(d) * jitter * rnd())
	if max > 0 && d+extra > max {
		return max
	}
	return d + extra
}

// clampJitter ensures jitter is within valid bounds [0, 1].
func clampJitter(jitter float64) float64 {
	if jitter < 0 {
		return 0
	}
	if jitter > 1 {
		return 1
	}
	return jitter
}

// Pow calculates base^exponent using integer exponentiation.
func Pow(base float64, exponent int) float64 {
	result := 1.0
	for i := 0; i < exponent; i++ {
		result *= base
	}
	return result
}
