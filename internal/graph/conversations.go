package graph

import (
	"context"
	"errors"
	"time"

	"github.com/forgeos/graph-service/internal/identity"
	"github.com/forgeos/graph-service/internal/memory"
	"github.com/forgeos/graph-service/internal/model"
	registrystore "github.com/forgeos/graph-service/internal/registry/store"
)

// RegisterConversationInput carries one conversation registration.
type RegisterConversationInput struct {
	SourceID    string
	ProjectName string
	Name        string
	Summary     string
	// CreatedAt is optional; zero means now.
	CreatedAt time.Time
}

// RegisterConversation maps a source-service conversation into the graph.
// Repeat registrations of the same source ID update name and summary.
func (r *Registry) RegisterConversation(ctx context.Context, in RegisterConversationInput) (*model.Conversation, model.UpsertAction, error) {
	if in.SourceID == "" {
		return nil, "", &registrystore.ValidationError{Field: "source_id", Message: "required"}
	}
	if in.ProjectName == "" {
		return nil, "", &registrystore.ValidationError{Field: "project_name", Message: "required"}
	}
	createdAt := in.CreatedAt
	if createdAt.IsZero() {
		createdAt = nowUTC()
	}
	ms := createdAt.UnixMilli()
	projectUUID := identity.ProjectUUID(in.ProjectName)
	convUUID := identity.V8FromString(in.SourceID, projectUUID, ms)
	now := nowUTC()

	existing, err := r.store.GetConversationBySourceID(ctx, in.SourceID)
	if err == nil {
		if err := r.store.UpdateConversation(ctx, existing.UUID, in.Name, in.Summary, now); err != nil {
			return nil, "", err
		}
		updated := *existing
		if in.Name != "" {
			updated.Name = in.Name
		}
		if in.Summary != "" {
			updated.Summary = in.Summary
		}
		updated.UpdatedAt = now
		r.emit(ctx, memory.EventConversationRegistered, map[string]any{
			"uuid":    updated.UUID,
			"project": in.ProjectName,
			"action":  string(model.ActionUpdated),
		})
		return &updated, model.ActionUpdated, nil
	}
	var nf *registrystore.NotFoundError
	if !errors.As(err, &nf) {
		return nil, "", err
	}

	conv := &model.Conversation{
		UUID:        convUUID.String(),
		SourceID:    in.SourceID,
		ProjectName: in.ProjectName,
		ProjectUUID: projectUUID.String(),
		Name:        in.Name,
		Summary:     in.Summary,
		CreatedAtMs: ms,
		CreatedAt:   createdAt.UTC(),
		UpdatedAt:   now,
	}
	if err := r.store.InsertConversation(ctx, conv); err != nil {
		return nil, "", err
	}
	r.emit(ctx, memory.EventConversationRegistered, map[string]any{
		"uuid":    conv.UUID,
		"project": in.ProjectName,
		"action":  string(model.ActionInserted),
	})
	return conv, model.ActionInserted, nil
}

// ResolveID resolves a conversation identifier. Tried in order: exact
// source ID, exact UUID, source ID prefix (at least 4 chars), then
// case-insensitive name substring. First hit wins.
func (r *Registry) ResolveID(ctx context.Context, identifier string) (*model.Conversation, error) {
	if identifier == "" {
		return nil, &registrystore.ValidationError{Field: "identifier", Message: "required"}
	}
	if conv, err := r.store.GetConversationBySourceID(ctx, identifier); err == nil {
		return conv, nil
	} else if !isNotFound(err) {
		return nil, err
	}
	if conv, err := r.store.GetConversationByUUID(ctx, identifier); err == nil {
		return conv, nil
	} else if !isNotFound(err) {
		return nil, err
	}
	if len(identifier) >= 4 {
		if conv, err := r.store.FindConversationBySourceIDPrefix(ctx, identifier); err == nil {
			return conv, nil
		} else if !isNotFound(err) {
			return nil, err
		}
	}
	if conv, err := r.store.FindConversationByName(ctx, identifier); err == nil {
		return conv, nil
	} else if !isNotFound(err) {
		return nil, err
	}
	return nil, &registrystore.NotFoundError{Resource: "conversation", ID: identifier}
}

// ListProjects rolls up registered conversations per project.
func (r *Registry) ListProjects(ctx context.Context) ([]model.ProjectSummary, error) {
	return r.store.ListProjects(ctx)
}

func isNotFound(err error) bool {
	var nf *registrystore.NotFoundError
	return errors.As(err, &nf)
}
