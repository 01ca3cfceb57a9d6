package ratelimit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(cfg *Config) (*Limiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	cfg.IdleTTL = 0
	l := NewLimiter(cfg)
	l.now = clock.Now
	return l, clock
}

func TestLimiter_BurstThenDeny(t *testing.T) {
	l, _ := newTestLimiter(&Config{Enabled: true, Rate: 1, Burst: 3})

	for i := 0; i < 3; i++ {
		allowed, info := l.Allow("10.0.0.1", "/pipelines/stats", "GET")
		require.True(t, allowed, "request %d", i+1)
		assert.Equal(t, 3, info.Limit)
		assert.Equal(t, 2-i, info.Remaining)
	}

	allowed, info := l.Allow("10.0.0.1", "/pipelines/stats", "GET")
	assert.False(t, allowed)
	assert.Equal(t, time.Second, info.RetryAfter)
}

func TestLimiter_Refill(t *testing.T) {
	l, clock := newTestLimiter(&Config{Enabled: true, Rate: 2, Burst: 1})

	allowed, _ := l.Allow("c", "/x", "GET")
	require.True(t, allowed)
	allowed, _ = l.Allow("c", "/x", "GET")
	require.False(t, allowed)

	clock.Advance(500 * time.Millisecond)
	allowed, _ = l.Allow("c", "/x", "GET")
	assert.True(t, allowed)
}

func TestLimiter_ClientsAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(&Config{Enabled: true, Rate: 1, Burst: 1})

	allowed, _ := l.Allow("a", "/x", "GET")
	assert.True(t, allowed)
	allowed, _ = l.Allow("b", "/x", "GET")
	assert.True(t, allowed)
	allowed, _ = l.Allow("a", "/x", "GET")
	assert.False(t, allowed)
}

func TestLimiter_DisabledAndExempt(t *testing.T) {
	off := NewLimiter(NewConfig(0, 0))
	defer off.Stop()
	for i := 0; i < 100; i++ {
		allowed, _ := off.Allow("c", "/pipelines", "POST")
		require.True(t, allowed)
	}

	cfg := &Config{Enabled: true, Rate: 1, Burst: 1, Exempt: map[string]bool{"127.0.0.1": true}}
	l, _ := newTestLimiter(cfg)
	for i := 0; i < 10; i++ {
		allowed, _ := l.Allow("127.0.0.1", "/x", "GET")
		require.True(t, allowed)
	}

	nilCfg := NewLimiter(nil)
	allowed, _ := nilCfg.Allow("c", "/x", "GET")
	assert.True(t, allowed)
}

func TestLimiter_GenerationRoutesAreStricter(t *testing.T) {
	l, _ := newTestLimiter(NewConfig(10, 20))

	allowed, info := l.Allow("c", "/pipelines", "POST")
	require.True(t, allowed)
	assert.Equal(t, 2, info.Limit)
	allowed, _ = l.Allow("c", "/pipelines", "POST")
	require.True(t, allowed)
	allowed, _ = l.Allow("c", "/pipelines", "POST")
	assert.False(t, allowed, "generation burst exhausted")

	allowed, info = l.Allow("c", "/pipelines/abc", "GET")
	assert.True(t, allowed, "reads use the default bucket")
	assert.Equal(t, 20, info.Limit)

	for i := 0; i < 50; i++ {
		allowed, _ = l.Allow("c", "/health", "GET")
		require.True(t, allowed, "health is unlimited")
	}
}

func TestMatch(t *testing.T) {
	rules := []Rule{
		{Method: "POST", Path: "/pipelines", Rate: 1},
		{Method: "POST", Path: "/pipelines/", Rate: 2},
		{Method: "POST", Path: "/pipelines/special/", Rate: 3},
	}

	r, ok := Match("/pipelines", "POST", rules)
	require.True(t, ok)
	assert.Equal(t, 1.0, r.Rate)

	r, ok = Match("/pipelines/123/retry", "POST", rules)
	require.True(t, ok)
	assert.Equal(t, 2.0, r.Rate)

	r, ok = Match("/pipelines/special/x", "POST", rules)
	require.True(t, ok)
	assert.Equal(t, 3.0, r.Rate, "longest prefix wins")

	_, ok = Match("/pipelines", "GET", rules)
	assert.False(t, ok)
}

func TestLimiter_Sweep(t *testing.T) {
	l, clock := newTestLimiter(&Config{Enabled: true, Rate: 1, Burst: 1})

	l.Allow("old", "/x", "GET")
	clock.Advance(2 * time.Hour)
	l.Allow("fresh", "/x", "GET")

	assert.Equal(t, 1, l.Sweep(time.Hour))
	assert.Len(t, l.buckets, 1)
}

func TestLimiter_Concurrent(t *testing.T) {
	l, _ := newTestLimiter(&Config{Enabled: true, Rate: 0.001, Burst: 50})

	var allowed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := l.Allow("c", "/x", "GET"); ok {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(50), allowed.Load())
}

func TestLimiter_StopIsIdempotent(t *testing.T) {
	l := NewLimiter(NewConfig(5, 10))
	l.Stop()
	l.Stop()
}
