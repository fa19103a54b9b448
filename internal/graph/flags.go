package graph

import (
	"context"

	"github.com/forgeos/graph-service/internal/identity"
	"github.com/forgeos/graph-service/internal/memory"
	"github.com/forgeos/graph-service/internal/model"
	registrystore "github.com/forgeos/graph-service/internal/registry/store"
)

// FlagInput carries one flag plant.
type FlagInput struct {
	Project        string
	Description    string
	Category       model.FlagCategory
	ConversationID string
}

// PlantFlag drops an expedition flag. Identity is deterministic on
// (description, conversation), so planting the same flag twice is a
// no-op that returns the existing row.
func (r *Registry) PlantFlag(ctx context.Context, in FlagInput) (*model.Flag, bool, error) {
	if in.Project == "" {
		return nil, false, &registrystore.ValidationError{Field: "project", Message: "required"}
	}
	if in.Description == "" {
		return nil, false, &registrystore.ValidationError{Field: "description", Message: "required"}
	}
	if in.Category == "" {
		in.Category = model.FlagGeneral
	}
	if !in.Category.Valid() {
		return nil, false, &registrystore.ValidationError{Field: "category", Message: "unknown flag category"}
	}

	projectUUID := identity.ProjectUUID(in.Project)
	flagUUID := identity.FlagUUID(in.Description, in.ConversationID, projectUUID).String()
	now := nowUTC()

	f := &model.Flag{
		UUID:           flagUUID,
		Project:        in.Project,
		ProjectUUID:    projectUUID.String(),
		Description:    in.Description,
		Category:       in.Category,
		Status:         model.FlagPending,
		ConversationID: in.ConversationID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	inserted, err := r.store.InsertFlag(ctx, f)
	if err != nil {
		return nil, false, err
	}
	if !inserted {
		existing, err := r.store.GetFlag(ctx, flagUUID)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	r.emit(ctx, memory.EventFlagPlanted, map[string]any{
		"uuid":     flagUUID,
		"project":  in.Project,
		"category": string(in.Category),
	})
	return f, true, nil
}

// CompileFlag marks a pending flag as compiled into a priming block or
// other artifact.
func (r *Registry) CompileFlag(ctx context.Context, id, compiledInto string) error {
	if err := r.store.MarkFlagCompiled(ctx, id, compiledInto, nowUTC()); err != nil {
		return err
	}
	r.emit(ctx, memory.EventFlagCompiled, map[string]any{
		"uuid":          id,
		"compiled_into": compiledInto,
	})
	return nil
}

// ListFlags returns the flags of a project, optionally filtered by
// status and category.
func (r *Registry) ListFlags(ctx context.Context, project string, status model.FlagStatus, category model.FlagCategory) ([]model.Flag, error) {
	return r.store.ListFlags(ctx, project, status, category)
}
