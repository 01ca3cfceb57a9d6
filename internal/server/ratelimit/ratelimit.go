// Package ratelimit throttles API clients with per-client token buckets.
package ratelimit

import (
	"sync"
	"time"
)

// bucket is a token bucket. Callers hold Limiter.mu.
type bucket struct {
	capacity   float64
	refillRate float64 // tokens per second
	tokens     float64
	lastRefill time.Time
	lastAccess time.Time
}

func (b *bucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.tokens = min(b.capacity, b.tokens+elapsed*b.refillRate)
	}
	b.lastRefill = now
}

// Info describes the limit applied to one request.
type Info struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

// Limiter manages one bucket per client, method and rule.
type Limiter struct {
	config *Config
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket

	stopOnce sync.Once
	stop     chan struct{}
}

// NewLimiter creates a limiter. A nil config disables limiting. When IdleTTL
// is set, idle buckets are swept in the background until Stop.
func NewLimiter(config *Config) *Limiter {
	if config == nil {
		config = &Config{Enabled: false}
	}
	l := &Limiter{
		config:  config,
		now:     time.Now,
		buckets: make(map[string]*bucket),
		stop:    make(chan struct{}),
	}
	if config.Enabled && config.IdleTTL > 0 {
		go l.sweepLoop(config.IdleTTL)
	}
	return l
}

// Allow consumes a token for the client if one is available.
func (l *Limiter) Allow(clientID, path, method string) (bool, Info) {
	if !l.config.Enabled || l.config.Exempt[clientID] {
		return true, Info{Allowed: true}
	}

	rate, burst, key := l.config.Rate, l.config.Burst, "default"
	if rule, ok := Match(path, method, l.config.Rules); ok {
		rate, burst, key = rule.Rate, rule.Burst, rule.Path
	}
	if rate <= 0 {
		return true, Info{Allowed: true}
	}
	if burst <= 0 {
		burst = 1
	}

	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	bucketKey := clientID + "|" + method + "|" + key
	b, ok := l.buckets[bucketKey]
	if !ok {
		b = &bucket{
			capacity:   float64(burst),
			refillRate: rate,
			tokens:     float64(burst),
			lastRefill: now,
		}
		l.buckets[bucketKey] = b
	}
	b.lastAccess = now
	b.refill(now)

	info := Info{Limit: burst}
	if b.tokens >= 1 {
		b.tokens--
		info.Allowed = true
	} else {
		missing := 1 - b.tokens
		info.RetryAfter = time.Duration(missing / b.refillRate * float64(time.Second))
	}
	info.Remaining = int(b.tokens)
	info.ResetTime = now.Add(time.Duration((b.capacity - b.tokens) / b.refillRate * float64(time.Second)))
	return info.Allowed, info
}

// Sweep drops buckets unused for longer than ttl and returns how many were removed.
func (l *Limiter) Sweep(ttl time.Duration) int {
	cutoff := l.now().Add(-ttl)
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for key, b := range l.buckets {
		if b.lastAccess.Before(cutoff) {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

func (l *Limiter) sweepLoop(ttl time.Duration) {
	ticker := time.NewTicker(ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.Sweep(ttl)
		case <-l.stop:
			return
		}
	}
}

// Stop ends the background sweeper. It is safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}
