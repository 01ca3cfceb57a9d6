package llm

import (
	"context"
	"sync"
	"time"
)

// Throttle paces outgoing requests with a token bucket.
// A nil *Throttle never blocks.
type Throttle struct {
	capacity   float64 // burst size
	refillRate float64 // tokens per second
	tokens     float64
	lastRefill time.Time
	mu         sync.Mutex
}

// NewThrottle allows requestsPerMinute requests per minute with an equal burst.
// It returns nil when requestsPerMinute is not positive.
func NewThrottle(requestsPerMinute int) *Throttle {
	if requestsPerMinute <= 0 {
		return nil
	}
	return &Throttle{
		capacity:   float64(requestsPerMinute),
		refillRate: float64(requestsPerMinute) / 60.0,
		tokens:     float64(requestsPerMinute),
		lastRefill: time.Now(),
	}
}

// Wait blocks until a token is available or ctx is done.
func (t *Throttle) Wait(ctx context.Context) error {
	if t == nil {
		return nil
	}
	for {
		wait := t.reserve()
		if wait == 0 {
			return nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// reserve takes a token if one is available, otherwise returns how long until one is.
func (t *Throttle) reserve() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(t.lastRefill).Seconds()
	t.tokens = min(t.capacity, t.tokens+elapsed*t.refillRate)
	t.lastRefill = now

	if t.tokens >= 1.0 {
		t.tokens -= 1.0
		return 0
	}
	missing := 1.0 - t.tokens
	return time.Duration(missing / t.refillRate * float64(time.Second))
}
