package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	registryblob "github.com/forgeos/graph-service/internal/registry/blob"
	registrystore "github.com/forgeos/graph-service/internal/registry/store"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := &LocalStore{root: t.TempDir()}

	ref, err := store.Store(ctx, "the archived text")
	require.NoError(t, err)
	assert.Equal(t, registryblob.Ref("the archived text"), ref)

	resolved, err := store.Resolve(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "the archived text", resolved)

	exists, err := store.Exists(ctx, ref)
	require.NoError(t, err)
	assert.True(t, exists)

	// Re-storing identical content reuses the existing file.
	again, err := store.Store(ctx, "the archived text")
	require.NoError(t, err)
	assert.Equal(t, ref, again)
}

func TestLocalStoreShardLayout(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store := &LocalStore{root: root}

	ref, err := store.Store(ctx, "sharded")
	require.NoError(t, err)

	hash, err := registryblob.ParseRef(ref)
	require.NoError(t, err)
	a, b := registryblob.ShardPath(hash)
	_, err = os.Stat(filepath.Join(root, a, b, hash))
	require.NoError(t, err)
}

func TestLocalStoreMissingAndBadRefs(t *testing.T) {
	ctx := context.Background()
	store := &LocalStore{root: t.TempDir()}

	_, err := store.Resolve(ctx, registryblob.Ref("never stored"))
	var nferr *registrystore.NotFoundError
	require.ErrorAs(t, err, &nferr)

	_, err = store.Resolve(ctx, "md5:abc")
	var verr *registrystore.ValidationError
	require.ErrorAs(t, err, &verr)

	ref, err := store.Store(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, ref)
}
