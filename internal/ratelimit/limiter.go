package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter wraps a token bucket with a throttle cool-down. Waiters are served
// in request order by the underlying bucket's reservation queue.
type Limiter struct {
	bucket *rate.Limiter

	mu            sync.Mutex
	cooldownUntil time.Time
}

// New builds a limiter refilling at requestsPerMinute with the given burst
// capacity.
func New(requestsPerMinute, burst int) *Limiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		bucket: rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), burst),
	}
}

// Acquire blocks until a token is available and any active cool-down has
// elapsed. It returns the context's error if ctx is cancelled while waiting.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		l.mu.Lock()
		wait := time.Until(l.cooldownUntil)
		l.mu.Unlock()
		if wait <= 0 {
			break
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return l.bucket.Wait(ctx)
}

// Penalize pauses token handout for at least d. The remote signalled
// throttling (429), so the documented refill estimate is too optimistic;
// extending an already-active cool-down never shortens it.
func (l *Limiter) Penalize(d time.Duration) {
	if d <= 0 {
		return
	}
	until := time.Now().Add(d)
	l.mu.Lock()
	if until.After(l.cooldownUntil) {
		l.cooldownUntil = until
	}
	l.mu.Unlock()
}

// ReduceRate permanently drops the refill rate by the given factor in (0,1).
// Used when the remote repeatedly signals throttling within one job.
func (l *Limiter) ReduceRate(factor float64) {
	if factor <= 0 || factor >= 1 {
		return
	}
	current := float64(l.bucket.Limit())
	next := current * factor
	if next <= 0 {
		return
	}
	l.bucket.SetLimit(rate.Limit(next))
}

// Rate reports the current refill rate in requests per second.
func (l *Limiter) Rate() float64 {
	return float64(l.bucket.Limit())
}
