package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteLimiter_Unlimited(t *testing.T) {
	wl := NewWriteLimiter(0)

	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, wl.Wait(context.Background(), "s"))
	}
	assert.Less(t, time.Since(start), time.Second)
}

func TestWriteLimiter_Paces(t *testing.T) {
	wl := NewWriteLimiter(20)

	start := time.Now()
	for i := 0; i < 25; i++ {
		require.NoError(t, wl.Wait(context.Background(), "s"))
	}
	// burst of 20, then 5 more at 20/s
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
}

func TestWriteLimiter_ScopesIndependent(t *testing.T) {
	wl := NewWriteLimiter(1)
	ctx := context.Background()

	require.NoError(t, wl.Wait(ctx, "a"))
	require.NoError(t, wl.Wait(ctx, "b"))

	ctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	assert.Error(t, wl.Wait(ctx, "a"))

	wl.Forget("a")
	assert.NoError(t, wl.Wait(context.Background(), "a"))
}
