package s3store

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeos/graph-service/internal/config"
	registryblob "github.com/forgeos/graph-service/internal/registry/blob"
	registrystore "github.com/forgeos/graph-service/internal/registry/store"
	"github.com/forgeos/graph-service/internal/testutil/tests3"
)

func startStore(t *testing.T) (context.Context, registryblob.Store) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.BlobBucket = tests3.StartS3(t)
	cfg.BlobUsePathStyle = true
	ctx := config.WithContext(context.Background(), &cfg)

	store, err := load(ctx)
	require.NoError(t, err)
	return ctx, store
}

func TestS3StoreRoundTrip(t *testing.T) {
	ctx, store := startStore(t)

	content := strings.Repeat("archived conversation text ", 100)
	ref, err := store.Store(ctx, content)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "sha256:"))

	resolved, err := store.Resolve(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, content, resolved)

	exists, err := store.Exists(ctx, ref)
	require.NoError(t, err)
	assert.True(t, exists)

	// Content addressing makes re-storing the same text a no-op.
	again, err := store.Store(ctx, content)
	require.NoError(t, err)
	assert.Equal(t, ref, again)
}

func TestS3StoreEmptyContent(t *testing.T) {
	ctx, store := startStore(t)

	ref, err := store.Store(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, ref)
}

func TestS3StoreMissingRef(t *testing.T) {
	ctx, store := startStore(t)

	missing := registryblob.Ref("never stored")
	_, err := store.Resolve(ctx, missing)
	var nferr *registrystore.NotFoundError
	require.ErrorAs(t, err, &nferr)

	exists, err := store.Exists(ctx, missing)
	require.NoError(t, err)
	assert.False(t, exists)
}
