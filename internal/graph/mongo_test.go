package graph_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeos/graph-service/internal/config"
	"github.com/forgeos/graph-service/internal/graph"
	"github.com/forgeos/graph-service/internal/memory"
	"github.com/forgeos/graph-service/internal/model"
	registryembed "github.com/forgeos/graph-service/internal/registry/embed"
	registrymigrate "github.com/forgeos/graph-service/internal/registry/migrate"
	registrystore "github.com/forgeos/graph-service/internal/registry/store"
	"github.com/forgeos/graph-service/internal/testutil/testmongo"

	_ "github.com/forgeos/graph-service/internal/plugin/embed/disabled"
	_ "github.com/forgeos/graph-service/internal/plugin/store/mongo"
)

func startRegistry(t *testing.T) (context.Context, *graph.Registry) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.StoreType = "mongo"
	cfg.StoreURI = testmongo.StartMongo(t)
	cfg.DatabaseName = "graph_test"
	cfg.EmbedType = "none"
	ctx := config.WithContext(context.Background(), &cfg)

	require.NoError(t, registrymigrate.RunAll(ctx))

	storeLoader, err := registrystore.Select(cfg.StoreType)
	require.NoError(t, err)
	store, err := storeLoader(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(context.Background()) })

	embedLoader, err := registryembed.Select(cfg.EmbedType)
	require.NoError(t, err)
	embedder, err := embedLoader(ctx)
	require.NoError(t, err)

	events := memory.NewEmitter(store, cfg.EventsTTLDays)
	return ctx, graph.New(store, embedder, nil, events, &cfg)
}

func registerConversation(t *testing.T, ctx context.Context, r *graph.Registry, sourceID, project string) *model.Conversation {
	t.Helper()
	conv, _, err := r.RegisterConversation(ctx, graph.RegisterConversationInput{
		SourceID:    sourceID,
		ProjectName: project,
		Name:        "conv " + sourceID,
	})
	require.NoError(t, err)
	return conv
}

func TestMongoRegistry(t *testing.T) {
	ctx, r := startRegistry(t)

	t.Run("conversation registration", func(t *testing.T) {
		conv, action, err := r.RegisterConversation(ctx, graph.RegisterConversationInput{
			SourceID:    "conv-src-1",
			ProjectName: "helios",
			Name:        "kickoff",
		})
		require.NoError(t, err)
		assert.Equal(t, model.ActionInserted, action)
		assert.NotEmpty(t, conv.UUID)

		// Re-registering the same source ID updates in place.
		again, action, err := r.RegisterConversation(ctx, graph.RegisterConversationInput{
			SourceID:    "conv-src-1",
			ProjectName: "helios",
			Name:        "kickoff renamed",
		})
		require.NoError(t, err)
		assert.Equal(t, model.ActionUpdated, action)
		assert.Equal(t, conv.UUID, again.UUID)

		bySource, err := r.ResolveID(ctx, "conv-src-1")
		require.NoError(t, err)
		assert.Equal(t, conv.UUID, bySource.UUID)
		assert.Equal(t, "kickoff renamed", bySource.Name)

		byUUID, err := r.ResolveID(ctx, conv.UUID)
		require.NoError(t, err)
		assert.Equal(t, "conv-src-1", byUUID.SourceID)

		projects, err := r.ListProjects(ctx)
		require.NoError(t, err)
		names := make([]string, 0, len(projects))
		for _, p := range projects {
			names = append(names, p.ProjectName)
		}
		assert.Contains(t, names, "helios")
	})

	t.Run("decision upsert lifecycle", func(t *testing.T) {
		conv := registerConversation(t, ctx, r, "conv-dec-1", "helios")

		in := graph.DecisionInput{
			LocalID:                "D001",
			Text:                   "use mongo for the registry store",
			Project:                "helios",
			OriginatedConversation: conv.UUID,
		}
		first, err := r.UpsertDecision(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, model.ActionInserted, first.Action)
		assert.Contains(t, first.Decision.GlobalDisplayID, "-D-")
		assert.Equal(t, model.DecisionActive, first.Decision.Status)

		// Same text revalidates the existing row.
		second, err := r.UpsertDecision(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, model.ActionValidated, second.Action)
		assert.Equal(t, first.Decision.UUID, second.Decision.UUID)
		assert.Equal(t, 0, second.Decision.HopsSinceValidated)

		// Changed text changes the identity, so a new row is inserted.
		in.Text = "use postgres for the registry store"
		third, err := r.UpsertDecision(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, model.ActionInserted, third.Action)
		assert.NotEqual(t, first.Decision.UUID, third.Decision.UUID)

		active, err := r.ListActiveDecisions(ctx, "helios")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(active), 2)

		require.NoError(t, r.SupersedeDecision(ctx, first.Decision.UUID, third.Decision.UUID))
		old, err := r.GetDecision(ctx, first.Decision.UUID)
		require.NoError(t, err)
		assert.Equal(t, model.DecisionSuperseded, old.Status)
		assert.Equal(t, third.Decision.UUID, old.SupersededBy)
	})

	t.Run("decision validation errors", func(t *testing.T) {
		_, err := r.UpsertDecision(ctx, graph.DecisionInput{Project: "helios"})
		var verr *registrystore.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "text", verr.Field)

		bad := 1.5
		_, err = r.UpsertDecision(ctx, graph.DecisionInput{
			Text:          "tiered",
			Project:       "helios",
			EpistemicTier: &bad,
		})
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "epistemic_tier", verr.Field)
	})

	t.Run("thread lifecycle", func(t *testing.T) {
		conv := registerConversation(t, ctx, r, "conv-thr-1", "helios")

		in := graph.ThreadInput{
			LocalID:               "T001",
			Title:                 "migrate the display id counters",
			Project:               "helios",
			FirstSeenConversation: conv.UUID,
		}
		first, err := r.UpsertThread(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, model.ActionInserted, first.Action)
		assert.Equal(t, model.ThreadOpen, first.Thread.Status)
		assert.Equal(t, model.PriorityMedium, first.Thread.Priority)
		assert.Contains(t, first.Thread.GlobalDisplayID, "-T-")

		// Re-reporting the same title touches the existing row.
		in.Priority = model.PriorityHigh
		second, err := r.UpsertThread(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, model.ActionUpdated, second.Action)
		assert.Equal(t, first.Thread.UUID, second.Thread.UUID)
		assert.Equal(t, model.PriorityHigh, second.Thread.Priority)

		open, err := r.OpenThreads(ctx, "helios")
		require.NoError(t, err)
		require.NotEmpty(t, open)

		require.NoError(t, r.ResolveThread(ctx, first.Thread.UUID, "counters migrated"))
		resolved, err := r.GetThread(ctx, first.Thread.UUID)
		require.NoError(t, err)
		assert.Equal(t, model.ThreadResolved, resolved.Status)

		open, err = r.OpenThreads(ctx, "helios")
		require.NoError(t, err)
		for _, th := range open {
			assert.NotEqual(t, first.Thread.UUID, th.UUID)
		}
	})

	t.Run("flag determinism", func(t *testing.T) {
		conv := registerConversation(t, ctx, r, "conv-flag-1", "helios")

		flag, created, err := r.PlantFlag(ctx, graph.FlagInput{
			Project:        "helios",
			Description:    "the scan misses threads without embeddings",
			Category:       model.FlagTrap,
			ConversationID: conv.UUID,
		})
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, model.FlagPending, flag.Status)

		// Planting the identical flag again is a no-op.
		again, created, err := r.PlantFlag(ctx, graph.FlagInput{
			Project:        "helios",
			Description:    "the scan misses threads without embeddings",
			Category:       model.FlagTrap,
			ConversationID: conv.UUID,
		})
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, flag.UUID, again.UUID)

		require.NoError(t, r.CompileFlag(ctx, flag.UUID, "priming-block-1"))
		compiled, err := r.ListFlags(ctx, "helios", model.FlagCompiled, "")
		require.NoError(t, err)
		require.Len(t, compiled, 1)
		assert.Equal(t, "priming-block-1", compiled[0].CompiledInto)
	})

	t.Run("compression checksum round trip", func(t *testing.T) {
		conv := registerConversation(t, ctx, r, "conv-comp-1", "helios")
		target := registerConversation(t, ctx, r, "conv-comp-2", "helios")

		archive := "## Archive\nthe full archived conversation text"
		comp, action, err := r.RegisterCompression(ctx, graph.CompressionInput{
			Tag:                 "comp-2026-08-a",
			Project:             "helios",
			SourceConversation:  conv.UUID,
			TargetConversations: []string{target.UUID},
			DecisionsCaptured:   []string{"D001"},
			ArchiveText:         archive,
		})
		require.NoError(t, err)
		assert.Equal(t, model.ActionInserted, action)
		assert.Len(t, comp.Checksum, 64)

		stored, err := r.GetCompression(ctx, "comp-2026-08-a")
		require.NoError(t, err)
		assert.Equal(t, comp.Checksum, stored.Checksum)

		ok, err := r.VerifyChecksum(ctx, "comp-2026-08-a", archive)
		require.NoError(t, err)
		assert.True(t, ok.Match)

		bad, err := r.VerifyChecksum(ctx, "comp-2026-08-a", archive+" tampered")
		require.NoError(t, err)
		assert.False(t, bad.Match)
		assert.NotEqual(t, bad.Stored, bad.Computed)

		// Re-registering the same tag merges captured sets.
		_, action, err = r.RegisterCompression(ctx, graph.CompressionInput{
			Tag:                "comp-2026-08-a",
			Project:            "helios",
			SourceConversation: conv.UUID,
			ThreadsCaptured:    []string{"T001"},
		})
		require.NoError(t, err)
		assert.Equal(t, model.ActionUpdated, action)
		merged, err := r.GetCompression(ctx, "comp-2026-08-a")
		require.NoError(t, err)
		assert.Contains(t, merged.DecisionsCaptured, "D001")
		assert.Contains(t, merged.ThreadsCaptured, "T001")
	})

	t.Run("lineage trace", func(t *testing.T) {
		a := registerConversation(t, ctx, r, "conv-lin-a", "helios")
		b := registerConversation(t, ctx, r, "conv-lin-b", "helios")
		c := registerConversation(t, ctx, r, "conv-lin-c", "artemis")

		_, action, err := r.AddLineageEdge(ctx, graph.LineageInput{
			SourceConversation: a.UUID,
			TargetConversation: b.UUID,
			CompressionTag:     "comp-lin-1",
			DecisionsCarried:   []string{"D001"},
			SourceProject:      "helios",
			TargetProject:      "helios",
		})
		require.NoError(t, err)
		assert.Equal(t, model.ActionInserted, action)

		// Same pair again merges into the existing edge.
		_, action, err = r.AddLineageEdge(ctx, graph.LineageInput{
			SourceConversation: a.UUID,
			TargetConversation: b.UUID,
			DecisionsCarried:   []string{"D002"},
			SourceProject:      "helios",
			TargetProject:      "helios",
		})
		require.NoError(t, err)
		assert.Equal(t, model.ActionUpdated, action)

		_, _, err = r.AddLineageEdge(ctx, graph.LineageInput{
			SourceConversation: b.UUID,
			TargetConversation: c.UUID,
			SourceProject:      "helios",
			TargetProject:      "artemis",
		})
		require.NoError(t, err)

		trace, err := r.TraceConversation(ctx, b.UUID)
		require.NoError(t, err)
		assert.Equal(t, a.UUID, trace.Root)
		assert.Equal(t, []string{c.UUID}, trace.Leaves)
		require.Len(t, trace.Ancestors, 1)
		require.Len(t, trace.Descendants, 1)
		assert.Len(t, trace.Conversations, 3)
		assert.True(t, trace.CrossProject)
		assert.ElementsMatch(t, []string{"helios", "artemis"}, trace.Projects)

		_, _, err = r.AddLineageEdge(ctx, graph.LineageInput{
			SourceConversation: "not-a-uuid",
			TargetConversation: b.UUID,
		})
		var verr *registrystore.ValidationError
		assert.ErrorAs(t, err, &verr)
	})

	t.Run("display id allocation", func(t *testing.T) {
		first, err := r.AllocateDisplayID(ctx, "artemis", "decision", "uuid-disp-1", "decision_registry")
		require.NoError(t, err)
		second, err := r.AllocateDisplayID(ctx, "artemis", "decision", "uuid-disp-2", "decision_registry")
		require.NoError(t, err)

		assert.True(t, strings.HasPrefix(first, "ARTEM-D-"))
		assert.NotEqual(t, first, second)

		entry, err := r.ResolveDisplayID(ctx, first)
		require.NoError(t, err)
		assert.Equal(t, "uuid-disp-1", entry.EntityUUID)
		assert.Equal(t, "decision_registry", entry.Collection)

		_, err = r.ResolveDisplayID(ctx, "ARTEM-D-9999")
		var nferr *registrystore.NotFoundError
		assert.ErrorAs(t, err, &nferr)
	})
}
