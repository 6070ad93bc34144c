package llm

import (
	"context"
	"sync"
	"time"
)

// rpsLimiter is a token bucket tracked by timestamps: tokens accrue with
// elapsed time instead of a refill goroutine, so an idle limiter costs
// nothing and never needs stopping.
type rpsLimiter struct {
	mu       sync.Mutex
	interval time.Duration // time per token
	burst    float64
	tokens   float64
	last     time.Time
}

// newRPSLimiter allows up to rps acquisitions per second with a burst
// capacity. A nil limiter (rps <= 0) disables throttling.
func newRPSLimiter(rps float64, burst int) *rpsLimiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &rpsLimiter{
		interval: time.Duration(float64(time.Second) / rps),
		burst:    float64(burst),
		tokens:   float64(burst),
		last:     time.Now(),
	}
}

// Acquire blocks until a token is available or the context is canceled.
func (l *rpsLimiter) Acquire(ctx context.Context) error {
	if l == nil {
		return nil
	}
	for {
		l.mu.Lock()
		now := time.Now()
		l.tokens += float64(now.Sub(l.last)) / float64(l.interval)
		if l.tokens > l.burst {
			l.tokens = l.burst
		}
		l.last = now
		if l.tokens >= 1 {
			l.tokens--
			l.mu.Unlock()
			return nil
		}
		wait := time.Duration((1 - l.tokens) * float64(l.interval))
		l.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
