package syncer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeos/graph-service/internal/model"
)

func testDecision(localID string, tier *float64, hops int) *model.Decision {
	return &model.Decision{
		LocalID:            localID,
		Text:               "decision " + localID,
		Status:             model.DecisionActive,
		EpistemicTier:      tier,
		HopsSinceValidated: hops,
	}
}

func TestDirPusherRoundTrip(t *testing.T) {
	ctx := context.Background()
	p := NewDirPusher(t.TempDir())

	docs, err := p.ListDocs(ctx, "vault")
	require.NoError(t, err)
	assert.Empty(t, docs)

	require.NoError(t, p.UpsertDoc(ctx, "vault", "forge_decisions.md", "# Decisions\n"))
	require.NoError(t, p.UpsertDoc(ctx, "vault", "forge_threads.md", "# Threads\n"))

	docs, err = p.ListDocs(ctx, "vault")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"forge_decisions.md", "forge_threads.md"}, docs)

	require.NoError(t, p.DeleteDoc(ctx, "vault", "forge_threads.md"))
	docs, err = p.ListDocs(ctx, "vault")
	require.NoError(t, err)
	assert.Equal(t, []string{"forge_decisions.md"}, docs)

	// Deleting a missing doc is not an error.
	assert.NoError(t, p.DeleteDoc(ctx, "vault", "gone.md"))
}

func TestDecisionPassesFilters(t *testing.T) {
	tier := 0.8
	low := 0.3
	minTier := 0.5
	maxHops := 2

	d := testDecision("keep", &tier, 1)
	assert.True(t, decisionPasses(d, &Filters{MinTier: &minTier, MaxHops: &maxHops}))

	// Tier below the floor.
	assert.False(t, decisionPasses(testDecision("low", &low, 1), &Filters{MinTier: &minTier}))

	// Missing tier fails a min_tier filter.
	assert.False(t, decisionPasses(testDecision("untiered", nil, 1), &Filters{MinTier: &minTier}))

	// Too many hops since validation.
	assert.False(t, decisionPasses(testDecision("stale", &tier, 5), &Filters{MaxHops: &maxHops}))

	// No filters passes everything.
	assert.True(t, decisionPasses(testDecision("any", nil, 9), &Filters{}))
}
