package resilience

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy controls the backoff loop. Zero values get sane defaults
// from DefaultRetry.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetry matches the provider-call contract: three attempts,
// exponential backoff starting at one second.
func DefaultRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second}
}

// Retry runs fn up to MaxAttempts times, sleeping base*2^n between attempts.
// Only transient errors retry; a RateLimitError's RetryAfter overrides the
// computed backoff. Context cancellation aborts between attempts.
func Retry(ctx context.Context, p RetryPolicy, fn func(context.Context) error) error {
	if p.MaxAttempts <= 0 {
		p = DefaultRetry()
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Second
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 30 * time.Second
	}

	var err error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := p.BaseDelay << (attempt - 1)
			if delay > p.MaxDelay {
				delay = p.MaxDelay
			}
			var rle *RateLimitError
			if errors.As(err, &rle) && rle.RetryAfter > 0 {
				delay = rle.RetryAfter
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
	}
	return err
}
