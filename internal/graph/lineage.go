package graph

import (
	"context"

	"github.com/forgeos/graph-service/internal/identity"
	"github.com/forgeos/graph-service/internal/memory"
	"github.com/forgeos/graph-service/internal/model"
	registrystore "github.com/forgeos/graph-service/internal/registry/store"
	"github.com/google/uuid"
)

// maxLineageDepth bounds ancestry and descendant walks so a corrupted
// edge set cannot loop forever.
const maxLineageDepth = 50

// LineageInput carries one lineage edge registration.
type LineageInput struct {
	SourceConversation string
	TargetConversation string
	CompressionTag     string
	DecisionsCarried   []string
	DecisionsDropped   []string
	ThreadsCarried     []string
	ThreadsResolved    []string
	SourceProject      string
	TargetProject      string
}

// AddLineageEdge records one compression hop between two conversations.
// The edge identity is order-independent, so re-registering the same
// pair merges the carried sets into the existing edge.
func (r *Registry) AddLineageEdge(ctx context.Context, in LineageInput) (*model.LineageEdge, model.UpsertAction, error) {
	src, err := uuid.Parse(in.SourceConversation)
	if err != nil {
		return nil, "", &registrystore.ValidationError{Field: "source_conversation", Message: "not a UUID"}
	}
	tgt, err := uuid.Parse(in.TargetConversation)
	if err != nil {
		return nil, "", &registrystore.ValidationError{Field: "target_conversation", Message: "not a UUID"}
	}
	now := nowUTC()
	e := &model.LineageEdge{
		EdgeUUID:           identity.CompositePair(src, tgt).String(),
		SourceConversation: in.SourceConversation,
		TargetConversation: in.TargetConversation,
		CompressionTag:     in.CompressionTag,
		DecisionsCarried:   in.DecisionsCarried,
		DecisionsDropped:   in.DecisionsDropped,
		ThreadsCarried:     in.ThreadsCarried,
		ThreadsResolved:    in.ThreadsResolved,
		SourceProject:      in.SourceProject,
		TargetProject:      in.TargetProject,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	action, err := r.store.UpsertLineageEdge(ctx, e)
	if err != nil {
		return nil, "", err
	}
	r.emit(ctx, memory.EventLineageEdge, map[string]any{
		"edge_uuid": e.EdgeUUID,
		"source":    in.SourceConversation,
		"target":    in.TargetConversation,
		"action":    string(action),
	})
	return e, action, nil
}

// Ancestors walks the compression chain backwards from a conversation,
// nearest ancestor first.
func (r *Registry) Ancestors(ctx context.Context, conversationUUID string) ([]model.LineageEdge, error) {
	var chain []model.LineageEdge
	seen := map[string]bool{conversationUUID: true}
	current := conversationUUID
	for depth := 0; depth < maxLineageDepth; depth++ {
		edge, err := r.store.FindEdgeByTarget(ctx, current)
		if err != nil {
			if isNotFound(err) {
				break
			}
			return nil, err
		}
		if seen[edge.SourceConversation] {
			break
		}
		seen[edge.SourceConversation] = true
		chain = append(chain, *edge)
		current = edge.SourceConversation
	}
	return chain, nil
}

// Descendants walks the compression chain forwards from a conversation.
func (r *Registry) Descendants(ctx context.Context, conversationUUID string) ([]model.LineageEdge, error) {
	var chain []model.LineageEdge
	seen := map[string]bool{conversationUUID: true}
	current := conversationUUID
	for depth := 0; depth < maxLineageDepth; depth++ {
		edge, err := r.store.FindEdgeBySource(ctx, current)
		if err != nil {
			if isNotFound(err) {
				break
			}
			return nil, err
		}
		if seen[edge.TargetConversation] {
			break
		}
		seen[edge.TargetConversation] = true
		chain = append(chain, *edge)
		current = edge.TargetConversation
	}
	return chain, nil
}

// LineageTrace is the full ancestry picture of one conversation.
type LineageTrace struct {
	Conversation  string              `json:"conversation"`
	Root          string              `json:"root"`
	Leaves        []string            `json:"leaves"`
	Ancestors     []model.LineageEdge `json:"ancestors"`
	Descendants   []model.LineageEdge `json:"descendants"`
	Conversations []string            `json:"conversations"`
	Projects      []string            `json:"projects"`
	CrossProject  bool                `json:"cross_project"`
}

// TraceConversation combines the ancestor and descendant chains of a
// conversation into one trace with its root, leaves, and the set of
// projects the chain crosses.
func (r *Registry) TraceConversation(ctx context.Context, conversationUUID string) (*LineageTrace, error) {
	ancestors, err := r.Ancestors(ctx, conversationUUID)
	if err != nil {
		return nil, err
	}
	descendants, err := r.Descendants(ctx, conversationUUID)
	if err != nil {
		return nil, err
	}

	conversations := map[string]bool{conversationUUID: true}
	projects := map[string]bool{}
	collect := func(edges []model.LineageEdge) {
		for _, e := range edges {
			conversations[e.SourceConversation] = true
			conversations[e.TargetConversation] = true
			if e.SourceProject != "" {
				projects[e.SourceProject] = true
			}
			if e.TargetProject != "" {
				projects[e.TargetProject] = true
			}
		}
	}
	collect(ancestors)
	collect(descendants)

	root := conversationUUID
	if n := len(ancestors); n > 0 {
		root = ancestors[n-1].SourceConversation
	}
	leaves := []string{conversationUUID}
	if n := len(descendants); n > 0 {
		leaves = []string{descendants[n-1].TargetConversation}
	}

	trace := &LineageTrace{
		Conversation:  conversationUUID,
		Root:          root,
		Leaves:        leaves,
		Ancestors:     ancestors,
		Descendants:   descendants,
		Conversations: sortedKeys(conversations),
		Projects:      sortedKeys(projects),
	}
	trace.CrossProject = len(trace.Projects) > 1
	return trace, nil
}

// LineageGraph returns every lineage edge touching a project, or all
// edges when project is empty.
func (r *Registry) LineageGraph(ctx context.Context, project string) ([]model.LineageEdge, error) {
	return r.store.ListLineageEdges(ctx, project)
}
