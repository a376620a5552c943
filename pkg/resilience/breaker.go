package resilience

import (
	"sync"
	"time"
)

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

// Breaker is a per-provider circuit breaker. Closed counts consecutive
// failures inside a rolling window; at the threshold it opens and rejects
// calls until the cooldown passes, then lets exactly one trial through.
// State lives in-process only.
type Breaker struct {
	mu sync.Mutex

	threshold int
	window    time.Duration
	cooldown  time.Duration

	state      breakerState
	failures   int
	firstFail  time.Time
	openedAt   time.Time
	trialBusy  bool
	now        func() time.Time
}

// NewBreaker opens after threshold failures within window and stays open for
// cooldown.
func NewBreaker(threshold int, window, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if window <= 0 {
		window = time.Minute
	}
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	return &Breaker{threshold: threshold, window: window, cooldown: cooldown, now: time.Now}
}

// Allow reports whether a call may proceed right now. A true return from the
// open state claims the half-open trial slot; the caller must report the
// outcome via Success or Failure.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed:
		return true
	case stateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return false
		}
		b.state = stateHalfOpen
		b.trialBusy = true
		return true
	case stateHalfOpen:
		if b.trialBusy {
			return false
		}
		b.trialBusy = true
		return true
	}
	return false
}

// Success records a successful call. In half-open it closes the breaker.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = stateClosed
	b.failures = 0
	b.trialBusy = false
}

// Failure records a failed call. The half-open trial failing re-opens the
// breaker and restarts the cooldown.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if b.state == stateHalfOpen {
		b.state = stateOpen
		b.openedAt = now
		b.trialBusy = false
		return
	}
	if b.failures == 0 || now.Sub(b.firstFail) > b.window {
		b.failures = 0
		b.firstFail = now
	}
	b.failures++
	if b.failures >= b.threshold {
		b.state = stateOpen
		b.openedAt = now
		b.failures = 0
	}
}

// Reset force-closes the breaker. Operator action.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = stateClosed
	b.failures = 0
	b.trialBusy = false
}

// Open reports whether calls are currently rejected.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == stateOpen && b.now().Sub(b.openedAt) < b.cooldown
}
