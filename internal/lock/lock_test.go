package lock

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseLocker(t *testing.T, l Locker) {
	ctx := context.Background()

	lease, err := l.Acquire(ctx, "user-1")
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "user-1")
	assert.ErrorIs(t, err, ErrLocked)

	other, err := l.Acquire(ctx, "user-2")
	require.NoError(t, err)
	require.NoError(t, other.Release(ctx))

	require.NoError(t, lease.Release(ctx))

	again, err := l.Acquire(ctx, "user-1")
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))
}

func TestLocalLocker(t *testing.T) {
	exerciseLocker(t, NewLocalLocker())
}

func TestLocalLocker_ReleaseTwice(t *testing.T) {
	ctx := context.Background()
	l := NewLocalLocker()

	lease, err := l.Acquire(ctx, "s")
	require.NoError(t, err)
	require.NoError(t, lease.Release(ctx))

	held, err := l.Acquire(ctx, "s")
	require.NoError(t, err)

	// a stale lease must not free a scope someone else holds now
	require.NoError(t, lease.Release(ctx))
	_, err = l.Acquire(ctx, "s")
	assert.ErrorIs(t, err, ErrLocked)
	require.NoError(t, held.Release(ctx))
}

func TestLocalLocker_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLocalLocker().Acquire(ctx, "s")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFileLocker(t *testing.T) {
	l, err := NewFileLocker(t.TempDir())
	require.NoError(t, err)
	exerciseLocker(t, l)
}

func TestFileLocker_PathSanitized(t *testing.T) {
	l, err := NewFileLocker(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "user_42.lock", filepath.Base(l.path("user/42")))
	assert.Equal(t, "_default.lock", filepath.Base(l.path("")))
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client, err := NewRedisClient(ctx, "redis://127.0.0.1:1/0")
	require.Error(t, err)
	assert.Nil(t, client)
	assert.Contains(t, err.Error(), "redis ping failed")
}

func TestNewRedisClient_BadURL(t *testing.T) {
	client, err := NewRedisClient(context.Background(), "://nope")
	require.Error(t, err)
	assert.Nil(t, client)
}
