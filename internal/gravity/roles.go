package gravity

import (
	"context"
	"fmt"
	"time"

	"github.com/forgeos/graph-service/internal/model"
	registrystore "github.com/forgeos/graph-service/internal/registry/store"
)

// AssignRole sets or replaces the gravity role of a project.
func (o *Orchestrator) AssignRole(ctx context.Context, project string, role model.Role, weight float64) (*model.ProjectRole, error) {
	gt, ok := role.GravityType()
	if !ok {
		return nil, &registrystore.ValidationError{Field: "role", Message: fmt.Sprintf("unknown role %q", role)}
	}
	if weight <= 0 || weight > 1 {
		weight = 1.0
	}
	r := &model.ProjectRole{
		Project:     project,
		Role:        role,
		Weight:      weight,
		GravityType: gt,
		UpdatedAt:   time.Now().UTC(),
	}
	if err := o.reg.Store().UpsertProjectRole(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// ListRoles returns every project role assignment.
func (o *Orchestrator) ListRoles(ctx context.Context) ([]model.ProjectRole, error) {
	return o.reg.Store().ListProjectRoles(ctx)
}

// SaveLensConfig stores a named lens configuration after validating
// every role.
func (o *Orchestrator) SaveLensConfig(ctx context.Context, name string, lenses []model.LensSpec, defaultBudget int) (*model.LensConfig, error) {
	if name == "" {
		return nil, &registrystore.ValidationError{Field: "name", Message: "required"}
	}
	for _, l := range lenses {
		if _, ok := l.Role.GravityType(); !ok {
			return nil, &registrystore.ValidationError{Field: "lenses", Message: fmt.Sprintf("unknown role %q", l.Role)}
		}
	}
	if defaultBudget <= 0 {
		defaultBudget = o.cfg.GravityDefaultBudget
	}
	c := &model.LensConfig{
		Name:          name,
		Lenses:        lenses,
		DefaultBudget: defaultBudget,
		UpdatedAt:     time.Now().UTC(),
	}
	if err := o.reg.Store().SaveLensConfig(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// GetLensConfig returns a named lens configuration.
func (o *Orchestrator) GetLensConfig(ctx context.Context, name string) (*model.LensConfig, error) {
	return o.reg.Store().GetLensConfig(ctx, name)
}
