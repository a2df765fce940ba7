package connector

import (
	"math"
	"net/http"
	"strconv"
	"time"
)

// RetryConfig bounds the retries of one page request.
// Only 429 and 5xx answers and transport failures are retried.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
	}
}

func (c RetryConfig) withDefaults() RetryConfig {
	d := DefaultRetryConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = d.BaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = d.MaxDelay
	}
	return c
}

// backoff returns the delay before the next attempt (attempt is 0-based)
func (c RetryConfig) backoff(attempt int, resp *http.Response) time.Duration {
	if resp != nil {
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs >= 0 {
			// clamp before converting so huge values cannot overflow
			if int64(secs) > int64(c.MaxDelay/time.Second) {
				return c.MaxDelay
			}
			return min(time.Duration(secs)*time.Second, c.MaxDelay)
		}
	}
	delay := float64(c.BaseDelay) * math.Pow(2, float64(attempt))
	if delay >= float64(c.MaxDelay) {
		return c.MaxDelay
	}
	return time.Duration(delay)
}

// isRetryableStatus reports whether an HTTP status is worth another attempt
func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
