package queue

import (
	"testing"
	"time"
)

func TestRetryPolicyDelay(t *testing.T) {
	t.Parallel()

	policy := RetryPolicy{
		BaseDelay:   2 * time.Second,
		MaxDelay:    5 * time.Minute,
		MaxAttempts: 3,
	}

	cases := []struct {
		name    string
		attempt int
		want    time.Duration
	}{
		{"first failure", 0, 2 * time.Second},
		{"second failure", 1, 4 * time.Second},
		{"third failure", 2, 8 * time.Second},
		{"negative attempt clamps to base", -5, 2 * time.Second},
		{"large attempt caps at max", 20, 5 * time.Minute},
		{"very large attempt does not overflow", 200, 5 * time.Minute},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := policy.Delay(tc.attempt); got != tc.want {
				t.Errorf("Delay(%d) = %v, want %v", tc.attempt, got, tc.want)
			}
		})
	}
}

func TestRetryPolicyDelayIsMonotonic(t *testing.T) {
	t.Parallel()

	policy := DefaultRetryPolicy()

	prev := time.Duration(0)
	for attempt := 0; attempt < 32; attempt++ {
		delay := policy.Delay(attempt)
		if delay < prev {
			t.Fatalf("Delay(%d) = %v is smaller than Delay(%d) = %v", attempt, delay, attempt-1, prev)
		}
		if delay > policy.MaxDelay {
			t.Fatalf("Delay(%d) = %v exceeds MaxDelay %v", attempt, delay, policy.MaxDelay)
		}
		prev = delay
	}
}

func TestRetryPolicyExhausted(t *testing.T) {
	t.Parallel()

	policy := RetryPolicy{BaseDelay: time.Second, MaxDelay: time.Minute, MaxAttempts: 3}

	if policy.Exhausted(0) {
		t.Error("Expected attempt 0 to not be exhausted")
	}
	if policy.Exhausted(2) {
		t.Error("Expected attempt 2 to not be exhausted")
	}
	if !policy.Exhausted(3) {
		t.Error("Expected attempt 3 to be exhausted")
	}
	if !policy.Exhausted(7) {
		t.Error("Expected attempt 7 to be exhausted")
	}
}

func TestDefaultRetryPolicy(t *testing.T) {
	t.Parallel()

	policy := DefaultRetryPolicy()

	if policy.BaseDelay != DefaultRetryBaseDelay {
		t.Errorf("Expected base delay %v, got %v", DefaultRetryBaseDelay, policy.BaseDelay)
	}
	if policy.MaxDelay != DefaultRetryMaxDelay {
		t.Errorf("Expected max delay %v, got %v", DefaultRetryMaxDelay, policy.MaxDelay)
	}
	if policy.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("Expected max attempts %d, got %d", DefaultMaxAttempts, policy.MaxAttempts)
	}
}
