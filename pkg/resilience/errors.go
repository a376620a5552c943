package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// ErrCircuitOpen is returned without calling the provider while its breaker
// is open.
var ErrCircuitOpen = errors.New("circuit open")

// TransientError marks a failure worth retrying: network trouble, 5xx, or a
// provider hiccup. Anything not wrapped as transient fails fast.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// ValidationError marks a request the provider rejected as malformed.
// Retrying would send the same bad payload, so these never retry.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return "validation: " + e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

// Validation wraps err as a permanent request error.
func Validation(err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Err: err}
}

// RateLimitError is a 429 carrying the provider's suggested wait. Retryable,
// and the retry loop honors RetryAfter over its own backoff.
type RateLimitError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string { return "rate limited: " + e.Err.Error() }
func (e *RateLimitError) Unwrap() error { return e.Err }

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	var te *TransientError
	var rle *RateLimitError
	if errors.As(err, &te) || errors.As(err, &rle) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return false
}

// ClassifyStatus maps an HTTP response status onto the error taxonomy.
// 2xx returns nil.
func ClassifyStatus(status int, detail string) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests:
		return &RateLimitError{Err: fmt.Errorf("status 429: %s", detail)}
	case status >= 500:
		return Transient(fmt.Errorf("status %d: %s", status, detail))
	default:
		return Validation(fmt.Errorf("status %d: %s", status, detail))
	}
}

// WithTimeout runs fn under a deadline. A deadline hit comes back transient
// so callers can retry a slow provider.
func WithTimeout(ctx context.Context, d time.Duration, fn func(context.Context) error) error {
	tctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	err := fn(tctx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return Transient(err)
	}
	return err
}
