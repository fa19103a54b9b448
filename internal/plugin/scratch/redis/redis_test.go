package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeos/graph-service/internal/config"
	registrystore "github.com/forgeos/graph-service/internal/registry/store"
	"github.com/forgeos/graph-service/internal/testutil/testredis"
)

func startPad(t *testing.T) (context.Context, *redisPad) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.RedisURL = testredis.StartRedis(t)
	ctx := config.WithContext(context.Background(), &cfg)

	pad, err := load(ctx)
	require.NoError(t, err)
	return ctx, pad.(*redisPad)
}

func TestRedisPadRoundTrip(t *testing.T) {
	ctx, pad := startPad(t)

	require.NoError(t, pad.Set(ctx, "ctx-1", "cursor", map[string]any{"line": float64(42)}, time.Minute))
	require.NoError(t, pad.Set(ctx, "ctx-1", "phase", "review", time.Minute))
	require.NoError(t, pad.Set(ctx, "ctx-2", "phase", "build", time.Minute))

	value, err := pad.Get(ctx, "ctx-1", "cursor")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"line": float64(42)}, value)

	keys, err := pad.List(ctx, "ctx-1")
	require.NoError(t, err)
	assert.Len(t, keys, 2)
	assert.Equal(t, "review", keys["phase"])

	deleted, err := pad.Delete(ctx, "ctx-1", "phase")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = pad.Delete(ctx, "ctx-1", "phase")
	require.NoError(t, err)
	assert.False(t, deleted)

	// Contexts are isolated from each other.
	cleared, err := pad.Clear(ctx, "ctx-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), cleared)
	other, err := pad.Get(ctx, "ctx-2", "phase")
	require.NoError(t, err)
	assert.Equal(t, "build", other)
}

func TestRedisPadMissingKey(t *testing.T) {
	ctx, pad := startPad(t)

	_, err := pad.Get(ctx, "ctx-1", "absent")
	var nferr *registrystore.NotFoundError
	require.ErrorAs(t, err, &nferr)
}

func TestRedisPadTTLExpiry(t *testing.T) {
	ctx, pad := startPad(t)

	require.NoError(t, pad.Set(ctx, "ctx-1", "blink", "gone", 500*time.Millisecond))
	time.Sleep(time.Second)

	_, err := pad.Get(ctx, "ctx-1", "blink")
	var nferr *registrystore.NotFoundError
	require.ErrorAs(t, err, &nferr)
}
