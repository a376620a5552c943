package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"socialcast/entities"
)

// Guard bundles the rate limiter, circuit breaker and retry policy for one
// provider. Every outbound call goes through Do.
type Guard struct {
	Limiter *rate.Limiter
	Breaker *Breaker
	Retry   RetryPolicy
	Timeout time.Duration
}

// Do waits for a rate token, checks the breaker, then runs fn under the
// retry policy with a per-attempt timeout. Breaker bookkeeping happens on
// the overall outcome, so one exhausted retry loop counts as one failure.
func (g *Guard) Do(ctx context.Context, fn func(context.Context) error) error {
	if g.Limiter != nil {
		if err := g.Limiter.Wait(ctx); err != nil {
			return err
		}
	}
	if g.Breaker != nil && !g.Breaker.Allow() {
		return ErrCircuitOpen
	}

	err := Retry(ctx, g.Retry, func(ctx context.Context) error {
		if g.Timeout > 0 {
			return WithTimeout(ctx, g.Timeout, fn)
		}
		return fn(ctx)
	})

	if g.Breaker != nil {
		if err != nil && IsTransient(err) {
			g.Breaker.Failure()
		} else if err == nil {
			g.Breaker.Success()
		}
		// validation errors are the caller's fault, not the provider's;
		// they leave the breaker alone
	}
	return err
}

// Registry hands out one Guard per provider, created lazily with that
// provider's settings.
type Registry struct {
	mu     sync.Mutex
	guards map[entities.Provider]*Guard
}

func NewRegistry() *Registry {
	return &Registry{guards: map[entities.Provider]*Guard{}}
}

// For returns the guard for a provider, creating it on first use.
func (r *Registry) For(p entities.Provider) *Guard {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.guards[p]; ok {
		return g
	}
	g := defaultGuard(p)
	r.guards[p] = g
	return g
}

// ResetBreaker force-closes a provider's breaker. Exposed to operators.
func (r *Registry) ResetBreaker(name string) error {
	p, err := entities.ParseProvider(name)
	if err != nil {
		return err
	}
	r.For(p).Breaker.Reset()
	return nil
}

// BreakerStates reports which providers are currently tripped.
func (r *Registry) BreakerStates() map[entities.Provider]bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[entities.Provider]bool, len(r.guards))
	for p, g := range r.guards {
		out[p] = g.Breaker.Open()
	}
	return out
}

func defaultGuard(p entities.Provider) *Guard {
	g := &Guard{
		Breaker: NewBreaker(5, time.Minute, time.Minute),
		Retry:   DefaultRetry(),
		Timeout: 30 * time.Second,
	}
	switch p {
	case entities.ProviderScorer:
		// LLM calls are slow and bursty in batches of three
		g.Limiter = rate.NewLimiter(rate.Every(time.Second), 3)
		g.Timeout = 60 * time.Second
	case entities.ProviderVideoGen:
		g.Limiter = rate.NewLimiter(rate.Every(2*time.Second), 1)
		g.Timeout = 45 * time.Second
	case entities.ProviderCaptions:
		g.Limiter = rate.NewLimiter(rate.Every(time.Second), 2)
	case entities.ProviderBroker, entities.ProviderVideoHost:
		g.Limiter = rate.NewLimiter(rate.Every(time.Second), 2)
	default:
		g.Limiter = rate.NewLimiter(rate.Every(time.Second), 1)
	}
	return g
}

// Describe is a debugging aid for the health endpoint.
func (g *Guard) Describe() string {
	open := "closed"
	if g.Breaker.Open() {
		open = "open"
	}
	return fmt.Sprintf("breaker=%s attempts=%d timeout=%s", open, g.Retry.MaxAttempts, g.Timeout)
}
