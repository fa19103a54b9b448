// Package metrics wraps a GraphStore so every operation records its
// latency under the operation's name.
package metrics

import (
	"context"
	"time"

	"github.com/forgeos/graph-service/internal/model"
	"github.com/forgeos/graph-service/internal/monitoring"
	"github.com/forgeos/graph-service/internal/registry/store"
)

// Wrap returns a GraphStore that records StoreLatency for every operation.
func Wrap(inner store.GraphStore) store.GraphStore {
	return &metricsStore{inner: inner}
}

type metricsStore struct {
	inner store.GraphStore
}

func observe(op string, start time.Time) {
	monitoring.StoreLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *metricsStore) GetConversationBySourceID(ctx context.Context, sourceID string) (*model.Conversation, error) {
	defer observe("get_conversation_by_source_id", time.Now())
	return m.inner.GetConversationBySourceID(ctx, sourceID)
}

func (m *metricsStore) GetConversationByUUID(ctx context.Context, id string) (*model.Conversation, error) {
	defer observe("get_conversation_by_uuid", time.Now())
	return m.inner.GetConversationByUUID(ctx, id)
}

func (m *metricsStore) FindConversationBySourceIDPrefix(ctx context.Context, prefix string) (*model.Conversation, error) {
	defer observe("find_conversation_by_source_id_prefix", time.Now())
	return m.inner.FindConversationBySourceIDPrefix(ctx, prefix)
}

func (m *metricsStore) FindConversationByName(ctx context.Context, nameSubstring string) (*model.Conversation, error) {
	defer observe("find_conversation_by_name", time.Now())
	return m.inner.FindConversationByName(ctx, nameSubstring)
}

func (m *metricsStore) InsertConversation(ctx context.Context, c *model.Conversation) error {
	defer observe("insert_conversation", time.Now())
	return m.inner.InsertConversation(ctx, c)
}

func (m *metricsStore) UpdateConversation(ctx context.Context, uuid string, name, summary string, updatedAt time.Time) error {
	defer observe("update_conversation", time.Now())
	return m.inner.UpdateConversation(ctx, uuid, name, summary, updatedAt)
}

func (m *metricsStore) ListProjects(ctx context.Context) ([]model.ProjectSummary, error) {
	defer observe("list_projects", time.Now())
	return m.inner.ListProjects(ctx)
}

func (m *metricsStore) GetDecision(ctx context.Context, id string) (*model.Decision, error) {
	defer observe("get_decision", time.Now())
	return m.inner.GetDecision(ctx, id)
}

func (m *metricsStore) InsertDecision(ctx context.Context, d *model.Decision) error {
	defer observe("insert_decision", time.Now())
	return m.inner.InsertDecision(ctx, d)
}

func (m *metricsStore) UpdateDecision(ctx context.Context, id string, u store.DecisionUpdate, now time.Time) error {
	defer observe("update_decision", time.Now())
	return m.inner.UpdateDecision(ctx, id, u, now)
}

func (m *metricsStore) TouchDecisionValidated(ctx context.Context, id string, now time.Time) error {
	defer observe("touch_decision_validated", time.Now())
	return m.inner.TouchDecisionValidated(ctx, id, now)
}

func (m *metricsStore) SupersedeDecision(ctx context.Context, id, supersededBy string, now time.Time) error {
	defer observe("supersede_decision", time.Now())
	return m.inner.SupersedeDecision(ctx, id, supersededBy, now)
}

func (m *metricsStore) ListDecisions(ctx context.Context, f store.DecisionFilter) ([]model.Decision, error) {
	defer observe("list_decisions", time.Now())
	return m.inner.ListDecisions(ctx, f)
}

func (m *metricsStore) IncrementDecisionHops(ctx context.Context, project string, exclude []string) (int64, error) {
	defer observe("increment_decision_hops", time.Now())
	return m.inner.IncrementDecisionHops(ctx, project, exclude)
}

func (m *metricsStore) AddConflict(ctx context.Context, a, b string) error {
	defer observe("add_conflict", time.Now())
	return m.inner.AddConflict(ctx, a, b)
}

func (m *metricsStore) SearchDecisions(ctx context.Context, vector []float32, k int, f store.DecisionFilter) ([]model.Decision, error) {
	defer observe("search_decisions", time.Now())
	return m.inner.SearchDecisions(ctx, vector, k, f)
}

func (m *metricsStore) GetThread(ctx context.Context, id string) (*model.Thread, error) {
	defer observe("get_thread", time.Now())
	return m.inner.GetThread(ctx, id)
}

func (m *metricsStore) InsertThread(ctx context.Context, t *model.Thread) error {
	defer observe("insert_thread", time.Now())
	return m.inner.InsertThread(ctx, t)
}

func (m *metricsStore) UpdateThread(ctx context.Context, id string, u store.ThreadUpdate, now time.Time) error {
	defer observe("update_thread", time.Now())
	return m.inner.UpdateThread(ctx, id, u, now)
}

func (m *metricsStore) TouchThreadValidated(ctx context.Context, id string, now time.Time) error {
	defer observe("touch_thread_validated", time.Now())
	return m.inner.TouchThreadValidated(ctx, id, now)
}

func (m *metricsStore) ResolveThread(ctx context.Context, id, resolution, resolutionBlobRef string, now time.Time) error {
	defer observe("resolve_thread", time.Now())
	return m.inner.ResolveThread(ctx, id, resolution, resolutionBlobRef, now)
}

func (m *metricsStore) ListThreads(ctx context.Context, f store.ThreadFilter) ([]model.Thread, error) {
	defer observe("list_threads", time.Now())
	return m.inner.ListThreads(ctx, f)
}

func (m *metricsStore) IncrementThreadHops(ctx context.Context, project string, exclude []string) (int64, error) {
	defer observe("increment_thread_hops", time.Now())
	return m.inner.IncrementThreadHops(ctx, project, exclude)
}

func (m *metricsStore) ListThreadsMissingEmbeddings(ctx context.Context, limit int) ([]model.Thread, error) {
	defer observe("list_threads_missing_embeddings", time.Now())
	return m.inner.ListThreadsMissingEmbeddings(ctx, limit)
}

func (m *metricsStore) SetThreadEmbedding(ctx context.Context, id string, embedding []float32) error {
	defer observe("set_thread_embedding", time.Now())
	return m.inner.SetThreadEmbedding(ctx, id, embedding)
}

func (m *metricsStore) SearchThreads(ctx context.Context, vector []float32, k int, f store.ThreadFilter) ([]model.Thread, error) {
	defer observe("search_threads", time.Now())
	return m.inner.SearchThreads(ctx, vector, k, f)
}

func (m *metricsStore) GetPriming(ctx context.Context, id string) (*model.PrimingBlock, error) {
	defer observe("get_priming", time.Now())
	return m.inner.GetPriming(ctx, id)
}

func (m *metricsStore) UpsertPriming(ctx context.Context, p *model.PrimingBlock) (model.UpsertAction, error) {
	defer observe("upsert_priming", time.Now())
	return m.inner.UpsertPriming(ctx, p)
}

func (m *metricsStore) SetPrimingStatus(ctx context.Context, id string, status model.PrimingStatus, now time.Time) error {
	defer observe("set_priming_status", time.Now())
	return m.inner.SetPrimingStatus(ctx, id, status, now)
}

func (m *metricsStore) ListPriming(ctx context.Context, project string, status model.PrimingStatus) ([]model.PrimingBlock, error) {
	defer observe("list_priming", time.Now())
	return m.inner.ListPriming(ctx, project, status)
}

func (m *metricsStore) SearchPriming(ctx context.Context, vector []float32, k int, project string) ([]model.PrimingBlock, error) {
	defer observe("search_priming", time.Now())
	return m.inner.SearchPriming(ctx, vector, k, project)
}

func (m *metricsStore) GetFlag(ctx context.Context, id string) (*model.Flag, error) {
	defer observe("get_flag", time.Now())
	return m.inner.GetFlag(ctx, id)
}

func (m *metricsStore) InsertFlag(ctx context.Context, f *model.Flag) (bool, error) {
	defer observe("insert_flag", time.Now())
	return m.inner.InsertFlag(ctx, f)
}

func (m *metricsStore) MarkFlagCompiled(ctx context.Context, id, compiledInto string, now time.Time) error {
	defer observe("mark_flag_compiled", time.Now())
	return m.inner.MarkFlagCompiled(ctx, id, compiledInto, now)
}

func (m *metricsStore) ListFlags(ctx context.Context, project string, status model.FlagStatus, category model.FlagCategory) ([]model.Flag, error) {
	defer observe("list_flags", time.Now())
	return m.inner.ListFlags(ctx, project, status, category)
}

func (m *metricsStore) GetCompression(ctx context.Context, tag string) (*model.Compression, error) {
	defer observe("get_compression", time.Now())
	return m.inner.GetCompression(ctx, tag)
}

func (m *metricsStore) UpsertCompression(ctx context.Context, c *model.Compression) (model.UpsertAction, error) {
	defer observe("upsert_compression", time.Now())
	return m.inner.UpsertCompression(ctx, c)
}

func (m *metricsStore) GetLineageEdge(ctx context.Context, edgeUUID string) (*model.LineageEdge, error) {
	defer observe("get_lineage_edge", time.Now())
	return m.inner.GetLineageEdge(ctx, edgeUUID)
}

func (m *metricsStore) UpsertLineageEdge(ctx context.Context, e *model.LineageEdge) (model.UpsertAction, error) {
	defer observe("upsert_lineage_edge", time.Now())
	return m.inner.UpsertLineageEdge(ctx, e)
}

func (m *metricsStore) FindEdgeByTarget(ctx context.Context, conversationUUID string) (*model.LineageEdge, error) {
	defer observe("find_edge_by_target", time.Now())
	return m.inner.FindEdgeByTarget(ctx, conversationUUID)
}

func (m *metricsStore) FindEdgeBySource(ctx context.Context, conversationUUID string) (*model.LineageEdge, error) {
	defer observe("find_edge_by_source", time.Now())
	return m.inner.FindEdgeBySource(ctx, conversationUUID)
}

func (m *metricsStore) ListLineageEdges(ctx context.Context, project string) ([]model.LineageEdge, error) {
	defer observe("list_lineage_edges", time.Now())
	return m.inner.ListLineageEdges(ctx, project)
}

func (m *metricsStore) NextSequence(ctx context.Context, prefix, entityType string) (int64, error) {
	defer observe("next_sequence", time.Now())
	return m.inner.NextSequence(ctx, prefix, entityType)
}

func (m *metricsStore) GetProjectPrefix(ctx context.Context, project string) (string, error) {
	defer observe("get_project_prefix", time.Now())
	return m.inner.GetProjectPrefix(ctx, project)
}

func (m *metricsStore) SetProjectPrefix(ctx context.Context, project, prefix string) error {
	defer observe("set_project_prefix", time.Now())
	return m.inner.SetProjectPrefix(ctx, project, prefix)
}

func (m *metricsStore) RegisterDisplayID(ctx context.Context, e *model.DisplayIDEntry) error {
	defer observe("register_display_id", time.Now())
	return m.inner.RegisterDisplayID(ctx, e)
}

func (m *metricsStore) ResolveDisplayID(ctx context.Context, displayID string) (*model.DisplayIDEntry, error) {
	defer observe("resolve_display_id", time.Now())
	return m.inner.ResolveDisplayID(ctx, displayID)
}

func (m *metricsStore) SetDisplayID(ctx context.Context, collection, entityUUID, displayID string) error {
	defer observe("set_display_id", time.Now())
	return m.inner.SetDisplayID(ctx, collection, entityUUID, displayID)
}

func (m *metricsStore) AppendEvent(ctx context.Context, e *model.Event) error {
	defer observe("append_event", time.Now())
	return m.inner.AppendEvent(ctx, e)
}

func (m *metricsStore) ListEvents(ctx context.Context, eventType string, limit int) ([]model.Event, error) {
	defer observe("list_events", time.Now())
	return m.inner.ListEvents(ctx, eventType, limit)
}

func (m *metricsStore) InsertPattern(ctx context.Context, p *model.Pattern) error {
	defer observe("insert_pattern", time.Now())
	return m.inner.InsertPattern(ctx, p)
}

func (m *metricsStore) FindSimilarPattern(ctx context.Context, vector []float32, patternType model.PatternType) (*model.Pattern, error) {
	defer observe("find_similar_pattern", time.Now())
	return m.inner.FindSimilarPattern(ctx, vector, patternType)
}

func (m *metricsStore) MergePattern(ctx context.Context, patternID string, successScore float64, now time.Time) (*model.Pattern, error) {
	defer observe("merge_pattern", time.Now())
	return m.inner.MergePattern(ctx, patternID, successScore, now)
}

func (m *metricsStore) SearchPatterns(ctx context.Context, vector []float32, k int, patternType model.PatternType) ([]model.Pattern, error) {
	defer observe("search_patterns", time.Now())
	return m.inner.SearchPatterns(ctx, vector, k, patternType)
}

func (m *metricsStore) TouchPatterns(ctx context.Context, patternIDs []string, now time.Time) error {
	defer observe("touch_patterns", time.Now())
	return m.inner.TouchPatterns(ctx, patternIDs, now)
}

func (m *metricsStore) InsertArchive(ctx context.Context, a *model.ArchiveEntry) error {
	defer observe("insert_archive", time.Now())
	return m.inner.InsertArchive(ctx, a)
}

func (m *metricsStore) GetArchive(ctx context.Context, archiveID string) (*model.ArchiveEntry, error) {
	defer observe("get_archive", time.Now())
	return m.inner.GetArchive(ctx, archiveID)
}

func (m *metricsStore) ListArchive(ctx context.Context, sourceCollection string, limit int) ([]model.ArchiveEntry, error) {
	defer observe("list_archive", time.Now())
	return m.inner.ListArchive(ctx, sourceCollection, limit)
}

func (m *metricsStore) SaveScan(ctx context.Context, s *model.EntanglementScan) error {
	defer observe("save_scan", time.Now())
	return m.inner.SaveScan(ctx, s)
}

func (m *metricsStore) LatestScan(ctx context.Context, project string) (*model.EntanglementScan, error) {
	defer observe("latest_scan", time.Now())
	return m.inner.LatestScan(ctx, project)
}

func (m *metricsStore) UpsertProjectRole(ctx context.Context, r *model.ProjectRole) error {
	defer observe("upsert_project_role", time.Now())
	return m.inner.UpsertProjectRole(ctx, r)
}

func (m *metricsStore) ListProjectRoles(ctx context.Context) ([]model.ProjectRole, error) {
	defer observe("list_project_roles", time.Now())
	return m.inner.ListProjectRoles(ctx)
}

func (m *metricsStore) GetLensConfig(ctx context.Context, name string) (*model.LensConfig, error) {
	defer observe("get_lens_config", time.Now())
	return m.inner.GetLensConfig(ctx, name)
}

func (m *metricsStore) SaveLensConfig(ctx context.Context, c *model.LensConfig) error {
	defer observe("save_lens_config", time.Now())
	return m.inner.SaveLensConfig(ctx, c)
}

func (m *metricsStore) SearchConversations(ctx context.Context, vector []float32, k int, projectName string) ([]model.Conversation, error) {
	defer observe("search_conversations", time.Now())
	return m.inner.SearchConversations(ctx, vector, k, projectName)
}

func (m *metricsStore) SearchMessages(ctx context.Context, vector []float32, k int, projectName string) ([]model.Message, error) {
	defer observe("search_messages", time.Now())
	return m.inner.SearchMessages(ctx, vector, k, projectName)
}

func (m *metricsStore) Ping(ctx context.Context) error {
	defer observe("ping", time.Now())
	return m.inner.Ping(ctx)
}

func (m *metricsStore) Close(ctx context.Context) error {
	return m.inner.Close(ctx)
}

var _ store.GraphStore = (*metricsStore)(nil)
