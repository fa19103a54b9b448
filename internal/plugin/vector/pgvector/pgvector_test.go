package pgvector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeos/graph-service/internal/config"
	registryvector "github.com/forgeos/graph-service/internal/registry/vector"
	"github.com/forgeos/graph-service/internal/testutil/testpg"
)

func startIndex(t *testing.T) (context.Context, registryvector.Index) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.VectorType = "pgvector"
	cfg.PgVectorURL = testpg.StartPostgres(t)
	cfg.EmbedDims = 4
	ctx := config.WithContext(context.Background(), &cfg)

	require.NoError(t, (&pgvectorMigrator{}).Migrate(ctx))

	index, err := load(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close(context.Background()) })
	return ctx, index
}

func TestPgvectorIndexRoundTrip(t *testing.T) {
	ctx, index := startIndex(t)

	require.NoError(t, index.Upsert(ctx, []registryvector.UpsertRequest{
		{ID: "dec-a", Collection: "decision_registry", Project: "helios", Embedding: []float32{1, 0, 0, 0}},
		{ID: "dec-b", Collection: "decision_registry", Project: "artemis", Embedding: []float32{0.9, 0.1, 0, 0}},
		{ID: "thr-a", Collection: "thread_registry", Project: "helios", Embedding: []float32{0, 0, 1, 0}},
	}))

	hits, err := index.Search(ctx, []float32{1, 0, 0, 0}, 10, registryvector.Filter{})
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "dec-a", hits[0].ID)
	assert.InDelta(t, 1.0, hits[0].Similarity, 0.001)

	hits, err = index.Search(ctx, []float32{1, 0, 0, 0}, 10, registryvector.Filter{Collection: "decision_registry"})
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	hits, err = index.Search(ctx, []float32{1, 0, 0, 0}, 1, registryvector.Filter{ProjectNot: "helios"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "dec-b", hits[0].ID)
}

func TestPgvectorIndexUpsertReplaces(t *testing.T) {
	ctx, index := startIndex(t)

	require.NoError(t, index.Upsert(ctx, []registryvector.UpsertRequest{
		{ID: "dec-a", Collection: "decision_registry", Project: "helios", Embedding: []float32{1, 0, 0, 0}},
	}))
	require.NoError(t, index.Upsert(ctx, []registryvector.UpsertRequest{
		{ID: "dec-a", Collection: "decision_registry", Project: "artemis", Embedding: []float32{0, 1, 0, 0}},
	}))

	hits, err := index.Search(ctx, []float32{0, 1, 0, 0}, 10, registryvector.Filter{})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "artemis", hits[0].Project)
	assert.InDelta(t, 1.0, hits[0].Similarity, 0.001)
}
