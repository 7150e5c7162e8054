package gateway

import "time"

// RetryPolicy is an explicit, composable retry schedule injected into the
// gateway. Attempt n (1-based) that fails sleeps for
// InitialBackoff * Multiplier^(n-1), capped at MaxBackoff, before the next
// attempt. After MaxAttempts the last error propagates and the run aborts.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	Multiplier     float64
	MaxBackoff     time.Duration
}

// DefaultRetryPolicy matches the inference endpoint's expected failure
// profile: 3 total attempts, 2s initial backoff doubling up to 10s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 2 * time.Second,
		Multiplier:     2.0,
		MaxBackoff:     10 * time.Second,
	}
}

// Backoff returns the sleep duration after the given 1-based failed attempt.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	d := p.InitialBackoff
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * p.Multiplier)
		if d >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if d > p.MaxBackoff {
		return p.MaxBackoff
	}
	return d
}
