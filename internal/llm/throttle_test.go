package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewThrottle_Disabled(t *testing.T) {
	assert.Nil(t, NewThrottle(0))
	assert.Nil(t, NewThrottle(-3))

	var th *Throttle
	assert.NoError(t, th.Wait(context.Background()))
}

func TestThrottle_BurstThenWait(t *testing.T) {
	th := NewThrottle(2)
	require.NotNil(t, th)

	ctx := context.Background()
	require.NoError(t, th.Wait(ctx))
	require.NoError(t, th.Wait(ctx))

	// bucket is empty; the next token is ~30s away
	ctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err := th.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestThrottle_Refills(t *testing.T) {
	th := NewThrottle(60)
	th.tokens = 0
	th.lastRefill = time.Now().Add(-2 * time.Second)

	assert.Equal(t, time.Duration(0), th.reserve())
	assert.InDelta(t, 1.0, th.tokens, 0.1)
}
