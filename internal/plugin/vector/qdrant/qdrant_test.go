package qdrant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeos/graph-service/internal/config"
	registryvector "github.com/forgeos/graph-service/internal/registry/vector"
	"github.com/forgeos/graph-service/internal/testutil/testqdrant"
)

const (
	idAlpha = "3f1c9f2e-0000-4000-8000-000000000001"
	idBeta  = "3f1c9f2e-0000-4000-8000-000000000002"
	idGamma = "3f1c9f2e-0000-4000-8000-000000000003"
)

func startIndex(t *testing.T) (context.Context, registryvector.Index) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.VectorType = "qdrant"
	cfg.QdrantHost = testqdrant.StartQdrant(t)
	cfg.EmbedDims = 4
	ctx := config.WithContext(context.Background(), &cfg)

	require.NoError(t, (&qdrantMigrator{}).Migrate(ctx))

	index, err := load(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close(context.Background()) })
	return ctx, index
}

func TestQdrantIndexRoundTrip(t *testing.T) {
	ctx, index := startIndex(t)

	require.NoError(t, index.Upsert(ctx, []registryvector.UpsertRequest{
		{ID: idAlpha, Collection: "decision_registry", Project: "helios", Embedding: []float32{1, 0, 0, 0}},
		{ID: idBeta, Collection: "decision_registry", Project: "artemis", Embedding: []float32{0.9, 0.1, 0, 0}},
		{ID: idGamma, Collection: "thread_registry", Project: "helios", Embedding: []float32{0, 0, 1, 0}},
	}))

	hits, err := index.Search(ctx, []float32{1, 0, 0, 0}, 10, registryvector.Filter{})
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, idAlpha, hits[0].ID)
	assert.Greater(t, hits[0].Similarity, hits[1].Similarity)

	// Collection and project filters narrow the result set.
	hits, err = index.Search(ctx, []float32{1, 0, 0, 0}, 10, registryvector.Filter{Collection: "decision_registry"})
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	hits, err = index.Search(ctx, []float32{1, 0, 0, 0}, 10, registryvector.Filter{Project: "helios"})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	for _, h := range hits {
		assert.Equal(t, "helios", h.Project)
	}

	hits, err = index.Search(ctx, []float32{1, 0, 0, 0}, 10, registryvector.Filter{ProjectNot: "helios"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, idBeta, hits[0].ID)
}

func TestQdrantIndexUpsertReplaces(t *testing.T) {
	ctx, index := startIndex(t)

	require.NoError(t, index.Upsert(ctx, []registryvector.UpsertRequest{
		{ID: idAlpha, Collection: "decision_registry", Project: "helios", Embedding: []float32{1, 0, 0, 0}},
	}))
	require.NoError(t, index.Upsert(ctx, []registryvector.UpsertRequest{
		{ID: idAlpha, Collection: "decision_registry", Project: "artemis", Embedding: []float32{0, 1, 0, 0}},
	}))

	hits, err := index.Search(ctx, []float32{0, 1, 0, 0}, 10, registryvector.Filter{})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "artemis", hits[0].Project)
}
