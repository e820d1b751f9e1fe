// Package resilience provides caller-side resilience wrappers around the
// state store calls (spec §5: "Backpressure — the engine
// does not queue internally; callers apply admission control"). These are
// composed by internal/engine, never by the domain formula packages.
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/finova-oss/rewardengine/internal/errs"
)

// perUserLimiters lazily creates one rate.Limiter per user id, following
// the teacher's double-checked-locking pattern for its per-host limiter
// map (internal/net/ratelimit/limiter.go).
type perUserLimiters struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
}

func newPerUserLimiters() *perUserLimiters {
	return &perUserLimiters{limiters: make(map[string]*rate.Limiter)}
}

func (p *perUserLimiters) get(userID string, r rate.Limit, burst int) *rate.Limiter {
	p.mu.RLock()
	lim, ok := p.limiters[userID]
	p.mu.RUnlock()
	if ok {
		return lim
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if lim, ok := p.limiters[userID]; ok {
		return lim
	}
	lim = rate.NewLimiter(r, burst)
	p.limiters[userID] = lim
	return lim
}

// BreakerConfig mirrors the teacher's CircuitBreakerConfig
// (internal/infrastructure/providers/circuitbreakers.go), trimmed to what
// gobreaker.Settings actually consumes.
type BreakerConfig struct {
	Name                string
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
}

func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:                name,
		MaxRequests:         1,
		Interval:            60 * time.Second,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
	}
}

// Breaker wraps a gobreaker.CircuitBreaker, translating its errors into the
// engine's Transient taxonomy.
type Breaker struct {
	cb   *gobreaker.CircuitBreaker
	name string
}

func NewBreaker(cfg BreakerConfig) *Breaker {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker(settings), name: cfg.Name}
}

// Execute runs fn through the breaker. A tripped breaker or fn failure
// surfaces as a Transient EngineError — spec §7: state store/ML outages
// are retriable with no partial mutation.
func (b *Breaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := b.cb.Execute(fn)
	if err != nil {
		return nil, errs.Transient(b.name, err)
	}
	return result, nil
}

// Limiter is a per-user token-bucket rate limiter, generalized from the
// teacher's per-host limiter map (internal/net/ratelimit/limiter.go) to
// bound how fast a single caller may retry a Transient error for one user.
type Limiter struct {
	r     rate.Limit
	burst int
	perUser *perUserLimiters
}

func NewLimiter(eventsPerSecond float64, burst int) *Limiter {
	return &Limiter{
		r:       rate.Limit(eventsPerSecond),
		burst:   burst,
		perUser: newPerUserLimiters(),
	}
}

// Wait blocks until a token is available for userID or ctx is canceled.
func (l *Limiter) Wait(ctx context.Context, userID string) error {
	lim := l.perUser.get(userID, l.r, l.burst)
	return lim.Wait(ctx)
}

// RetryTransient calls fn at most errs.MaxRetryAttempts times in all while
// it returns a Transient EngineError, waiting on the per-user limiter
// between attempts; the wait is the token bucket's and does not grow from
// one attempt to the next (spec §7: "Transient ... retriable; no state mutation
// occurred").
func RetryTransient(ctx context.Context, limiter *Limiter, userID string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < errs.MaxRetryAttempts; attempt++ {
		if attempt > 0 {
			if err := limiter.Wait(ctx, userID); err != nil {
				return err
			}
		}
		err := fn()
		if err == nil {
			return nil
		}
		if !errs.IsTransient(err) {
			return err
		}
		lastErr = err
	}
	return lastErr
}
