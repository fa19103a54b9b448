// Package store defines the graph store contract and its plugin registry.
//
// The store provides document collections with filtered queries, a
// single-round-trip atomic counter, set-union list merges, TTL expiry,
// and pre-filtered vector search. All domain logic lives above this
// interface in the registries.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/forgeos/graph-service/internal/model"
)

// DecisionFilter scopes decision queries and vector searches.
type DecisionFilter struct {
	Project    string
	ProjectNot string
	Status     model.DecisionStatus
}

// ThreadFilter scopes thread queries and vector searches.
type ThreadFilter struct {
	Project    string
	ProjectNot string
	Status     model.ThreadStatus
	// StatusNot excludes a status (e.g. resolved) when Status is empty.
	StatusNot model.ThreadStatus
}

// DecisionUpdate carries the mutable fields of a decision update. Nil
// pointers leave the stored value untouched.
type DecisionUpdate struct {
	Text          *string
	TextHash      *string
	TextBlobRef   *string
	Embedding     []float32
	EpistemicTier *float64
	Status        *model.DecisionStatus
	Dependencies  []string
	Rationale     *string
}

// ThreadUpdate carries the mutable fields of a thread update.
type ThreadUpdate struct {
	Status    *model.ThreadStatus
	Priority  *model.Priority
	BlockedBy []string
	Embedding []float32
}

// GraphStore is the persistence contract for the whole substrate.
type GraphStore interface {
	// ── Conversations ─────────────────────────────────────────
	GetConversationBySourceID(ctx context.Context, sourceID string) (*model.Conversation, error)
	GetConversationByUUID(ctx context.Context, id string) (*model.Conversation, error)
	FindConversationBySourceIDPrefix(ctx context.Context, prefix string) (*model.Conversation, error)
	FindConversationByName(ctx context.Context, nameSubstring string) (*model.Conversation, error)
	InsertConversation(ctx context.Context, c *model.Conversation) error
	UpdateConversation(ctx context.Context, uuid string, name, summary string, updatedAt time.Time) error
	ListProjects(ctx context.Context) ([]model.ProjectSummary, error)

	// ── Decisions ─────────────────────────────────────────────
	GetDecision(ctx context.Context, id string) (*model.Decision, error)
	InsertDecision(ctx context.Context, d *model.Decision) error
	UpdateDecision(ctx context.Context, id string, u DecisionUpdate, now time.Time) error
	TouchDecisionValidated(ctx context.Context, id string, now time.Time) error
	SupersedeDecision(ctx context.Context, id, supersededBy string, now time.Time) error
	ListDecisions(ctx context.Context, f DecisionFilter) ([]model.Decision, error)
	IncrementDecisionHops(ctx context.Context, project string, exclude []string) (int64, error)
	AddConflict(ctx context.Context, a, b string) error
	SearchDecisions(ctx context.Context, vector []float32, k int, f DecisionFilter) ([]model.Decision, error)

	// ── Threads ───────────────────────────────────────────────
	GetThread(ctx context.Context, id string) (*model.Thread, error)
	InsertThread(ctx context.Context, t *model.Thread) error
	UpdateThread(ctx context.Context, id string, u ThreadUpdate, now time.Time) error
	TouchThreadValidated(ctx context.Context, id string, now time.Time) error
	ResolveThread(ctx context.Context, id, resolution, resolutionBlobRef string, now time.Time) error
	ListThreads(ctx context.Context, f ThreadFilter) ([]model.Thread, error)
	IncrementThreadHops(ctx context.Context, project string, exclude []string) (int64, error)
	ListThreadsMissingEmbeddings(ctx context.Context, limit int) ([]model.Thread, error)
	SetThreadEmbedding(ctx context.Context, id string, embedding []float32) error
	SearchThreads(ctx context.Context, vector []float32, k int, f ThreadFilter) ([]model.Thread, error)

	// ── Priming blocks ────────────────────────────────────────
	GetPriming(ctx context.Context, id string) (*model.PrimingBlock, error)
	UpsertPriming(ctx context.Context, p *model.PrimingBlock) (model.UpsertAction, error)
	SetPrimingStatus(ctx context.Context, id string, status model.PrimingStatus, now time.Time) error
	ListPriming(ctx context.Context, project string, status model.PrimingStatus) ([]model.PrimingBlock, error)
	SearchPriming(ctx context.Context, vector []float32, k int, project string) ([]model.PrimingBlock, error)

	// ── Expedition flags ──────────────────────────────────────
	GetFlag(ctx context.Context, id string) (*model.Flag, error)
	InsertFlag(ctx context.Context, f *model.Flag) (inserted bool, err error)
	MarkFlagCompiled(ctx context.Context, id, compiledInto string, now time.Time) error
	ListFlags(ctx context.Context, project string, status model.FlagStatus, category model.FlagCategory) ([]model.Flag, error)

	// ── Compression registry ──────────────────────────────────
	GetCompression(ctx context.Context, tag string) (*model.Compression, error)
	UpsertCompression(ctx context.Context, c *model.Compression) (model.UpsertAction, error)

	// ── Lineage ───────────────────────────────────────────────
	GetLineageEdge(ctx context.Context, edgeUUID string) (*model.LineageEdge, error)
	UpsertLineageEdge(ctx context.Context, e *model.LineageEdge) (model.UpsertAction, error)
	FindEdgeByTarget(ctx context.Context, conversationUUID string) (*model.LineageEdge, error)
	FindEdgeBySource(ctx context.Context, conversationUUID string) (*model.LineageEdge, error)
	ListLineageEdges(ctx context.Context, project string) ([]model.LineageEdge, error)

	// ── Display IDs ───────────────────────────────────────────
	// NextSequence atomically increments and returns the counter for
	// (prefix, entityType), starting at 1.
	NextSequence(ctx context.Context, prefix, entityType string) (int64, error)
	GetProjectPrefix(ctx context.Context, project string) (string, error)
	SetProjectPrefix(ctx context.Context, project, prefix string) error
	RegisterDisplayID(ctx context.Context, e *model.DisplayIDEntry) error
	ResolveDisplayID(ctx context.Context, displayID string) (*model.DisplayIDEntry, error)
	// SetDisplayID writes the allocated display ID back onto the entity row.
	SetDisplayID(ctx context.Context, collection, entityUUID, displayID string) error

	// ── Events ────────────────────────────────────────────────
	AppendEvent(ctx context.Context, e *model.Event) error
	ListEvents(ctx context.Context, eventType string, limit int) ([]model.Event, error)

	// ── Patterns ──────────────────────────────────────────────
	InsertPattern(ctx context.Context, p *model.Pattern) error
	FindSimilarPattern(ctx context.Context, vector []float32, patternType model.PatternType) (*model.Pattern, error)
	MergePattern(ctx context.Context, patternID string, successScore float64, now time.Time) (*model.Pattern, error)
	SearchPatterns(ctx context.Context, vector []float32, k int, patternType model.PatternType) ([]model.Pattern, error)
	TouchPatterns(ctx context.Context, patternIDs []string, now time.Time) error

	// ── Archive ───────────────────────────────────────────────
	InsertArchive(ctx context.Context, a *model.ArchiveEntry) error
	GetArchive(ctx context.Context, archiveID string) (*model.ArchiveEntry, error)
	ListArchive(ctx context.Context, sourceCollection string, limit int) ([]model.ArchiveEntry, error)

	// ── Entanglement scans ────────────────────────────────────
	SaveScan(ctx context.Context, s *model.EntanglementScan) error
	LatestScan(ctx context.Context, project string) (*model.EntanglementScan, error)

	// ── Roles & lenses ────────────────────────────────────────
	UpsertProjectRole(ctx context.Context, r *model.ProjectRole) error
	ListProjectRoles(ctx context.Context) ([]model.ProjectRole, error)
	GetLensConfig(ctx context.Context, name string) (*model.LensConfig, error)
	SaveLensConfig(ctx context.Context, c *model.LensConfig) error

	// ── Raw ingest collections (searched by recall only) ──────
	SearchConversations(ctx context.Context, vector []float32, k int, projectName string) ([]model.Conversation, error)
	SearchMessages(ctx context.Context, vector []float32, k int, projectName string) ([]model.Message, error)

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Loader creates a GraphStore from config carried in the context.
type Loader func(ctx context.Context) (GraphStore, error)

// Plugin represents a store plugin.
type Plugin struct {
	Name   string
	Loader Loader
}

var plugins []Plugin

// Register adds a store plugin.
func Register(p Plugin) {
	plugins = append(plugins, p)
}

// Names returns all registered store plugin names.
func Names() []string {
	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.Name
	}
	return names
}

// Select returns the loader for the named store plugin.
func Select(name string) (Loader, error) {
	for _, p := range plugins {
		if p.Name == name {
			return p.Loader, nil
		}
	}
	return nil, fmt.Errorf("unknown store %q; valid: %v", name, Names())
}
