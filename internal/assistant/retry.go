package assistant

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/consultmcp/consult/internal/logging"
)

// APIError is a non-success response from the remote service. It carries
// the raw status and body so callers can classify and report it.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("assistant API returned %d: %s", e.StatusCode, e.Body)
}

// RetryPolicy controls the backoff applied between retryable failures.
type RetryPolicy struct {
	MaxRetries   int // extra attempts beyond the first
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryPolicy returns the standard policy with the given retry
// budget.
func DefaultRetryPolicy(maxRetries int) RetryPolicy {
	return RetryPolicy{
		MaxRetries:   maxRetries,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2,
	}
}

// retryable reports whether err is worth another attempt: transport-level
// failures, or remote statuses that signal a transient condition.
func retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable:
			return true
		}
		return false
	}
	// Not an API error means the request never produced a response.
	return true
}

// delayFor computes the backoff before attempt n (0-based), exponential
// with a cap plus up to 25% uniform jitter to keep concurrent callers from
// retrying in lockstep.
func (p RetryPolicy) delayFor(attempt int) time.Duration {
	delay := time.Duration(float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt)))
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	jitter := time.Duration(rand.Float64() * 0.25 * float64(delay))
	return delay + jitter
}

// withRetry runs fn up to 1+MaxRetries times, backing off between
// retryable failures. Non-retryable errors propagate immediately; when the
// budget is exhausted the last error is returned unchanged.
func withRetry(ctx context.Context, policy RetryPolicy, label string, fn func() error) error {
	var lastErr error
	attempts := policy.MaxRetries + 1

	for attempt := 0; attempt < attempts; attempt++ {
		logging.Debugf("[API] %s attempt %d/%d", label, attempt+1, attempts)
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) {
			return lastErr
		}
		if attempt == attempts-1 {
			break
		}

		delay := policy.delayFor(attempt)
		logging.Warnf("[API] %s attempt %d/%d failed: %v (retrying in %s)",
			label, attempt+1, attempts, lastErr, delay.Round(time.Millisecond))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	logging.Errorf("[API] %s failed after %d attempts: %v", label, attempts, lastErr)
	return lastErr
}
