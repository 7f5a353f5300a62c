//go:build integration

package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peroxia-tech/peroxia-engine/pkg/testhelpers"
)

func TestRedisLimiter_FixedWindow(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: testhelpers.GetRedisAddr(t)})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	prefix := "test:ratelimit:" + uuid.NewString() + ":"
	l := NewRedisLimiter(client, prefix, 3, time.Minute)

	for i := 0; i < 3; i++ {
		allowed, _, err := l.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, retryAfter, err := l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Greater(t, retryAfter, time.Duration(0))
	assert.LessOrEqual(t, retryAfter, time.Minute)

	allowed, _, err = l.Allow(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRedisLimiter_WindowExpires(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: testhelpers.GetRedisAddr(t)})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	l := NewRedisLimiter(client, "test:ratelimit:"+uuid.NewString()+":", 1, 200*time.Millisecond)

	allowed, _, err := l.Allow(ctx, "k")
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, _, err = l.Allow(ctx, "k")
	require.NoError(t, err)
	require.False(t, allowed)

	time.Sleep(300 * time.Millisecond)

	allowed, _, err = l.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, allowed)
}
