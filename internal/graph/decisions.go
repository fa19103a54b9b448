package graph

import (
	"context"
	"time"

	"github.com/forgeos/graph-service/internal/identity"
	"github.com/forgeos/graph-service/internal/memory"
	"github.com/forgeos/graph-service/internal/model"
	registryblob "github.com/forgeos/graph-service/internal/registry/blob"
	registrystore "github.com/forgeos/graph-service/internal/registry/store"
	"github.com/google/uuid"
)

// DecisionInput carries one decision upsert.
type DecisionInput struct {
	LocalID                string
	Text                   string
	Project                string
	OriginatedConversation string
	EpistemicTier          *float64
	Status                 model.DecisionStatus
	Dependencies           []string
	Rationale              string
}

// DecisionResult is the outcome of an upsert.
type DecisionResult struct {
	Decision  *model.Decision
	Action    model.UpsertAction
	Conflicts []Conflict
}

// UpsertDecision applies the three-action upsert: identical text
// validates, changed text updates and re-embeds, a new identity inserts
// with a display ID and best-effort conflict detection.
func (r *Registry) UpsertDecision(ctx context.Context, in DecisionInput) (*DecisionResult, error) {
	if in.Text == "" {
		return nil, &registrystore.ValidationError{Field: "text", Message: "required"}
	}
	if in.Project == "" {
		return nil, &registrystore.ValidationError{Field: "project", Message: "required"}
	}
	if in.Status == "" {
		in.Status = model.DecisionActive
	}
	if in.EpistemicTier != nil && (*in.EpistemicTier < 0 || *in.EpistemicTier > 1) {
		return nil, &registrystore.ValidationError{Field: "epistemic_tier", Message: "must be in [0,1]"}
	}

	projectUUID := identity.ProjectUUID(in.Project)
	textHash := TextHash(in.Text)
	ts := conversationMillis(in.OriginatedConversation)
	decisionUUID := identity.V8FromString(textHash+in.OriginatedConversation, projectUUID, ts).String()
	now := nowUTC()

	existing, err := r.store.GetDecision(ctx, decisionUUID)
	if err != nil && !isNotFound(err) {
		return nil, err
	}

	if existing != nil && existing.TextHash == textHash {
		if err := r.store.TouchDecisionValidated(ctx, decisionUUID, now); err != nil {
			return nil, err
		}
		existing.LastValidated = now
		existing.HopsSinceValidated = 0
		existing.UpdatedAt = now
		r.emit(ctx, memory.EventDecisionValidated, map[string]any{
			"uuid":    decisionUUID,
			"project": in.Project,
		})
		return &DecisionResult{Decision: existing, Action: model.ActionValidated}, nil
	}

	if existing != nil {
		embedding := r.embedText(ctx, in.Text)
		blobRef := r.storeBlobIfLarge(ctx, in.Text)
		update := registrystore.DecisionUpdate{
			Text:      &in.Text,
			TextHash:  &textHash,
			Embedding: embedding,
			Status:    &in.Status,
		}
		if blobRef != "" {
			update.TextBlobRef = &blobRef
		}
		if in.EpistemicTier != nil {
			update.EpistemicTier = in.EpistemicTier
		}
		if in.Dependencies != nil {
			update.Dependencies = in.Dependencies
		}
		if in.Rationale != "" {
			update.Rationale = &in.Rationale
		}
		if err := r.store.UpdateDecision(ctx, decisionUUID, update, now); err != nil {
			return nil, err
		}
		updated, err := r.store.GetDecision(ctx, decisionUUID)
		if err != nil {
			return nil, err
		}
		r.emit(ctx, memory.EventDecisionUpdated, map[string]any{
			"uuid":    decisionUUID,
			"project": in.Project,
		})
		return &DecisionResult{Decision: updated, Action: model.ActionUpdated}, nil
	}

	displayID, err := r.AllocateDisplayID(ctx, in.Project, "decision", decisionUUID, "decision_registry")
	if err != nil {
		return nil, err
	}
	embedding := r.embedText(ctx, in.Text)
	d := &model.Decision{
		UUID:                   decisionUUID,
		LocalID:                in.LocalID,
		GlobalDisplayID:        displayID,
		Project:                in.Project,
		ProjectUUID:            projectUUID.String(),
		Text:                   in.Text,
		TextHash:               textHash,
		TextBlobRef:            r.storeBlobIfLarge(ctx, in.Text),
		EpistemicTier:          in.EpistemicTier,
		Status:                 in.Status,
		Dependencies:           in.Dependencies,
		ConflictsWith:          []string{},
		Rationale:              in.Rationale,
		HopsSinceValidated:     0,
		LastValidated:          now,
		OriginatedConversation: in.OriginatedConversation,
		Embedding:              embedding,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if err := r.store.InsertDecision(ctx, d); err != nil {
		return nil, err
	}
	conflicts := r.detectAndRegister(ctx, d)
	r.emit(ctx, memory.EventDecisionInserted, map[string]any{
		"uuid":           decisionUUID,
		"project":        in.Project,
		"display_id":     displayID,
		"conflict_count": len(conflicts),
	})
	return &DecisionResult{Decision: d, Action: model.ActionInserted, Conflicts: conflicts}, nil
}

// GetDecision returns one decision by UUID.
func (r *Registry) GetDecision(ctx context.Context, id string) (*model.Decision, error) {
	return r.store.GetDecision(ctx, id)
}

// ListActiveDecisions returns the active decisions of a project.
func (r *Registry) ListActiveDecisions(ctx context.Context, project string) ([]model.Decision, error) {
	return r.store.ListDecisions(ctx, registrystore.DecisionFilter{
		Project: project,
		Status:  model.DecisionActive,
	})
}

// SupersedeDecision marks old as superseded by new and emits the event.
func (r *Registry) SupersedeDecision(ctx context.Context, oldUUID, newUUID string) error {
	now := nowUTC()
	if err := r.store.SupersedeDecision(ctx, oldUUID, newUUID, now); err != nil {
		return err
	}
	r.emit(ctx, memory.EventDecisionSuperseded, map[string]any{
		"uuid":          oldUUID,
		"superseded_by": newUUID,
	})
	return nil
}

// IncrementDecisionHops bumps the hop counter for every active decision
// of the project not in exclude. Returns the number touched.
func (r *Registry) IncrementDecisionHops(ctx context.Context, project string, exclude []string) (int64, error) {
	return r.store.IncrementDecisionHops(ctx, project, exclude)
}

// IsDecisionStale reports whether a decision has outlived its validation.
func (r *Registry) IsDecisionStale(d *model.Decision, now time.Time) bool {
	if d.Status != model.DecisionActive {
		return false
	}
	if d.HopsSinceValidated >= r.cfg.StaleMaxHops {
		return true
	}
	cutoff := now.AddDate(0, 0, -r.cfg.StaleMaxDays)
	return !d.LastValidated.After(cutoff)
}

// StaleDecisions returns the active decisions of a project that are stale.
func (r *Registry) StaleDecisions(ctx context.Context, project string) ([]model.Decision, error) {
	decisions, err := r.ListActiveDecisions(ctx, project)
	if err != nil {
		return nil, err
	}
	now := nowUTC()
	var stale []model.Decision
	for _, d := range decisions {
		if r.IsDecisionStale(&d, now) {
			stale = append(stale, d)
		}
	}
	return stale, nil
}

// DecisionText returns the full text, preferring the blob when present.
func (r *Registry) DecisionText(ctx context.Context, d *model.Decision) string {
	return registryblob.TextWithFallback(ctx, r.blobs, d.Text, d.TextBlobRef)
}

// conversationMillis extracts the embedded timestamp from a conversation
// UUID, or returns now for non-v8 and unparsable identifiers.
func conversationMillis(conversationID string) int64 {
	u, err := uuid.Parse(conversationID)
	if err != nil {
		return time.Now().UTC().UnixMilli()
	}
	return identity.ExtractTimestamp(u).UnixMilli()
}
