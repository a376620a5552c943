package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyStatus(t *testing.T) {
	assert.NoError(t, ClassifyStatus(200, ""))
	assert.NoError(t, ClassifyStatus(204, ""))

	var rle *RateLimitError
	require.ErrorAs(t, ClassifyStatus(429, "slow down"), &rle)

	var te *TransientError
	require.ErrorAs(t, ClassifyStatus(503, "down"), &te)

	var ve *ValidationError
	require.ErrorAs(t, ClassifyStatus(400, "bad payload"), &ve)
	require.ErrorAs(t, ClassifyStatus(404, "gone"), &ve)
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}, func(context.Context) error {
		calls++
		return Validation(errors.New("bad request"))
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "validation errors must not retry")
}

func TestRetryRecoversFromTransient(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}, func(context.Context) error {
		calls++
		if calls < 3 {
			return Transient(errors.New("flaky"))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}, func(context.Context) error {
		calls++
		return Transient(errors.New("still down"))
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, IsTransient(err))
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := Retry(ctx, RetryPolicy{MaxAttempts: 5, BaseDelay: time.Hour}, func(context.Context) error {
		calls++
		return Transient(errors.New("flaky"))
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestBreakerOpensAndRecovers(t *testing.T) {
	now := time.Now()
	b := NewBreaker(3, time.Minute, 30*time.Second)
	b.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		require.True(t, b.Allow())
		b.Failure()
	}
	assert.False(t, b.Allow(), "breaker should reject after threshold failures")
	assert.True(t, b.Open())

	// cooldown passes, one trial is let through
	now = now.Add(31 * time.Second)
	require.True(t, b.Allow())
	assert.False(t, b.Allow(), "only one half-open trial at a time")

	// trial fails: re-open for a fresh cooldown
	b.Failure()
	assert.False(t, b.Allow())

	now = now.Add(31 * time.Second)
	require.True(t, b.Allow())
	b.Success()
	assert.True(t, b.Allow(), "successful trial closes the breaker")
}

func TestBreakerWindowExpiresOldFailures(t *testing.T) {
	now := time.Now()
	b := NewBreaker(3, time.Minute, time.Minute)
	b.now = func() time.Time { return now }

	b.Failure()
	b.Failure()
	now = now.Add(2 * time.Minute) // window rolls over
	b.Failure()
	assert.True(t, b.Allow(), "stale failures must not trip the breaker")
}

func TestBreakerManualReset(t *testing.T) {
	b := NewBreaker(1, time.Minute, time.Hour)
	require.True(t, b.Allow())
	b.Failure()
	require.False(t, b.Allow())
	b.Reset()
	assert.True(t, b.Allow())
}

func TestGuardShortCircuitsWhenOpen(t *testing.T) {
	g := &Guard{
		Breaker: NewBreaker(1, time.Minute, time.Hour),
		Retry:   RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond},
	}
	calls := 0
	err := g.Do(context.Background(), func(context.Context) error {
		calls++
		return Transient(errors.New("down"))
	})
	require.Error(t, err)

	err = g.Do(context.Background(), func(context.Context) error {
		calls++
		return nil
	})
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 1, calls, "open breaker must prevent the call")
}

func TestGuardValidationErrorLeavesBreakerClosed(t *testing.T) {
	g := &Guard{
		Breaker: NewBreaker(1, time.Minute, time.Hour),
		Retry:   RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond},
	}
	for i := 0; i < 3; i++ {
		err := g.Do(context.Background(), func(context.Context) error {
			return Validation(errors.New("bad payload"))
		})
		require.Error(t, err)
	}
	assert.False(t, g.Breaker.Open())
}

func TestRegistryReusesGuards(t *testing.T) {
	r := NewRegistry()
	g1 := r.For("videogen")
	g2 := r.For("videogen")
	assert.Same(t, g1, g2)

	require.Error(t, r.ResetBreaker("not-a-provider"))
	require.NoError(t, r.ResetBreaker("videogen"))
}
