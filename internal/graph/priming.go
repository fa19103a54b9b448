package graph

import (
	"context"
	"strings"

	"github.com/forgeos/graph-service/internal/identity"
	"github.com/forgeos/graph-service/internal/memory"
	"github.com/forgeos/graph-service/internal/model"
	registrystore "github.com/forgeos/graph-service/internal/registry/store"
)

// PrimingInput carries one priming block upsert.
type PrimingInput struct {
	Project          string
	TerritoryName    string
	TerritoryKeys    []string
	ConfidenceFloor  float64
	FindingsCount    int
	SourceExpedition string
}

// UpsertPriming registers or refreshes a priming block. Identity is
// keyed by territory name within the project, so repeated expeditions
// into the same territory fold into one block with a growing
// source_expeditions set.
func (r *Registry) UpsertPriming(ctx context.Context, in PrimingInput) (*model.PrimingBlock, model.UpsertAction, error) {
	if in.Project == "" {
		return nil, "", &registrystore.ValidationError{Field: "project", Message: "required"}
	}
	if in.TerritoryName == "" {
		return nil, "", &registrystore.ValidationError{Field: "territory_name", Message: "required"}
	}

	projectUUID := identity.ProjectUUID(in.Project)
	primingUUID := identity.PrimingUUID(in.TerritoryName, projectUUID).String()
	now := nowUTC()
	keysText := strings.Join(in.TerritoryKeys, " ")

	p := &model.PrimingBlock{
		UUID:            primingUUID,
		Project:         in.Project,
		ProjectUUID:     projectUUID.String(),
		TerritoryName:   in.TerritoryName,
		TerritoryKeys:   in.TerritoryKeys,
		KeysText:        keysText,
		ConfidenceFloor: in.ConfidenceFloor,
		FindingsCount:   in.FindingsCount,
		Status:          model.PrimingActive,
		Embedding:       r.embedText(ctx, in.TerritoryName+" "+keysText),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if in.SourceExpedition != "" {
		p.SourceExpeditions = []string{in.SourceExpedition}
	}
	action, err := r.store.UpsertPriming(ctx, p)
	if err != nil {
		return nil, "", err
	}
	r.emit(ctx, memory.EventPrimingUpserted, map[string]any{
		"uuid":      primingUUID,
		"project":   in.Project,
		"territory": in.TerritoryName,
		"action":    string(action),
	})
	return p, action, nil
}

// FindRelevantPriming returns the active priming blocks of a project
// whose territory matches the query above the configured threshold.
func (r *Registry) FindRelevantPriming(ctx context.Context, project, query string) ([]model.PrimingBlock, error) {
	embedding := r.embedText(ctx, query)
	if embedding == nil {
		return nil, nil
	}
	hits, err := r.store.SearchPriming(ctx, embedding, r.cfg.AttentionSearchK, project)
	if err != nil {
		return nil, err
	}
	var relevant []model.PrimingBlock
	for _, p := range hits {
		if p.Status != model.PrimingActive {
			continue
		}
		if p.Similarity >= r.cfg.PrimingMatchThreshold {
			relevant = append(relevant, p)
		}
	}
	return relevant, nil
}

// DeactivatePriming retires a priming block without deleting it.
func (r *Registry) DeactivatePriming(ctx context.Context, id string) error {
	if err := r.store.SetPrimingStatus(ctx, id, model.PrimingInactive, nowUTC()); err != nil {
		return err
	}
	r.emit(ctx, memory.EventPrimingDeactivated, map[string]any{"uuid": id})
	return nil
}

// ListPriming returns the priming blocks of a project, optionally
// filtered by status.
func (r *Registry) ListPriming(ctx context.Context, project string, status model.PrimingStatus) ([]model.PrimingBlock, error) {
	return r.store.ListPriming(ctx, project, status)
}
