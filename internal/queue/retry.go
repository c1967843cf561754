package queue

import "time"

// Default retry policy values.
const (
	DefaultRetryBaseDelay = 2 * time.Second
	DefaultRetryMaxDelay  = 5 * time.Minute
)

// RetryPolicy maps an attempt count to a backoff delay and an exhaustion
// decision. It is a pure value: no side effects, no I/O.
type RetryPolicy struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
}

// DefaultRetryPolicy returns the standard policy: 2s base doubling per
// attempt, capped at 5m, 3 attempts.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		BaseDelay:   DefaultRetryBaseDelay,
		MaxDelay:    DefaultRetryMaxDelay,
		MaxAttempts: DefaultMaxAttempts,
	}
}

// Delay returns the visibility delay before the next execution, given the
// number of failed attempts so far (0 for the first failure). The delay
// doubles per attempt and is capped at MaxDelay, so it is monotonically
// non-decreasing in attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	delay := p.BaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}

	if delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// Exhausted reports whether a job with the given attempt count has no
// retries left.
func (p RetryPolicy) Exhausted(attempt int) bool {
	return attempt >= p.MaxAttempts
}
