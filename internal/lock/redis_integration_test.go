//go:build integration

package lock

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestRedisLocker(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}

	rdb, err := NewRedisClient(context.Background(), url)
	require.NoError(t, err)
	defer rdb.Close()

	exerciseLocker(t, NewRedisLocker(rdb, "test:"+uuid.NewString()+":", time.Minute))
}
