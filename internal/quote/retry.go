package quote

import (
	"fmt"
	"strings"
	"time"
)

// Backoff strategies
const (
	BackoffFixed       = "fixed"
	BackoffExponential = "exponential"
)

// RetryPolicy bounds how often and how long a transient failure is retried.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	Strategy   string
	BaseDelay  time.Duration
	// MaxDelay caps exponential growth. Zero means no cap.
	MaxDelay time.Duration
}

// DefaultRetryPolicy matches the provider's free-tier limits.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		Strategy:   BackoffExponential,
		BaseDelay:  12 * time.Second,
		MaxDelay:   2 * time.Minute,
	}
}

// Validate checks the policy for impossible values.
func (p RetryPolicy) Validate() error {
	if p.MaxRetries < 0 {
		return fmt.Errorf("max retries must be >= 0, got %d", p.MaxRetries)
	}
	if p.BaseDelay < 0 {
		return fmt.Errorf("retry delay must be >= 0, got %s", p.BaseDelay)
	}
	switch strings.ToLower(p.Strategy) {
	case "", BackoffFixed, BackoffExponential:
		return nil
	default:
		return fmt.Errorf("unknown backoff strategy %q", p.Strategy)
	}
}

// Delay returns how long to wait before retry number attempt (1-based).
// Fixed backoff always waits BaseDelay; exponential waits BaseDelay*2^(attempt-1)
// capped at MaxDelay.
func Delay(attempt int, p RetryPolicy) time.Duration {
	if attempt < 1 || p.BaseDelay <= 0 {
		return 0
	}
	if strings.ToLower(p.Strategy) != BackoffExponential {
		return p.BaseDelay
	}

	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
		// overflow guard
		if d <= 0 {
			if p.MaxDelay > 0 {
				return p.MaxDelay
			}
			return time.Duration(1<<63 - 1)
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}
