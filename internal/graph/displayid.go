package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/forgeos/graph-service/internal/model"
	registrystore "github.com/forgeos/graph-service/internal/registry/store"
)

// typeCodes maps an entity type to its single-letter display code.
var typeCodes = map[string]string{
	"decision": "D",
	"thread":   "T",
	"artifact": "A",
}

// staticPrefixes overrides derived prefixes for well-known projects.
var staticPrefixes = map[string]string{}

const prefixMaxLen = 5

// ProjectPrefix resolves the display prefix for a project: an existing
// counter row wins, then the static map, then up to five alphanumeric
// chars of the uppercased name.
func (r *Registry) ProjectPrefix(ctx context.Context, project string) (string, error) {
	if prefix, err := r.store.GetProjectPrefix(ctx, project); err == nil && prefix != "" {
		return prefix, nil
	} else if err != nil && !isNotFound(err) {
		return "", err
	}
	if prefix, ok := staticPrefixes[project]; ok {
		return prefix, nil
	}
	return DerivePrefix(project), nil
}

// DerivePrefix builds a prefix from the project name alone.
func DerivePrefix(project string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(project) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			if b.Len() >= prefixMaxLen {
				break
			}
		}
	}
	if b.Len() == 0 {
		return "X"
	}
	return b.String()
}

// FormatDisplayID renders "PREFIX-T-NNNN"; the sequence widens past 9999.
func FormatDisplayID(prefix, typeCode string, seq int64) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, typeCode, seq)
}

// AllocateDisplayID atomically allocates the next display ID for an
// entity and registers the reverse-index row.
func (r *Registry) AllocateDisplayID(ctx context.Context, project, entityType, entityUUID, collection string) (string, error) {
	code, ok := typeCodes[entityType]
	if !ok {
		return "", &registrystore.ValidationError{Field: "entity_type", Message: fmt.Sprintf("unknown type %q", entityType)}
	}
	prefix, err := r.ProjectPrefix(ctx, project)
	if err != nil {
		return "", err
	}
	if err := r.store.SetProjectPrefix(ctx, project, prefix); err != nil {
		return "", err
	}
	seq, err := r.store.NextSequence(ctx, prefix, entityType)
	if err != nil {
		return "", err
	}
	displayID := FormatDisplayID(prefix, code, seq)
	err = r.store.RegisterDisplayID(ctx, &model.DisplayIDEntry{
		DisplayID:  displayID,
		EntityUUID: entityUUID,
		Collection: collection,
		Project:    project,
	})
	if err != nil {
		return "", err
	}
	return displayID, nil
}

// ResolveDisplayID looks up a display ID in the reverse index.
func (r *Registry) ResolveDisplayID(ctx context.Context, displayID string) (*model.DisplayIDEntry, error) {
	return r.store.ResolveDisplayID(ctx, displayID)
}

// BackfillDisplayIDs allocates display IDs for entities that predate the
// scheme, in created_at order so sequences reflect chronology. Returns
// the number of IDs allocated.
func (r *Registry) BackfillDisplayIDs(ctx context.Context, project string) (int, error) {
	allocated := 0

	decisions, err := r.store.ListDecisions(ctx, registrystore.DecisionFilter{Project: project})
	if err != nil {
		return 0, err
	}
	sort.Slice(decisions, func(i, j int) bool { return decisions[i].CreatedAt.Before(decisions[j].CreatedAt) })
	for i := range decisions {
		d := &decisions[i]
		if d.GlobalDisplayID != "" {
			continue
		}
		displayID, err := r.AllocateDisplayID(ctx, project, "decision", d.UUID, "decision_registry")
		if err != nil {
			return allocated, err
		}
		if err := r.store.SetDisplayID(ctx, "decision_registry", d.UUID, displayID); err != nil {
			return allocated, err
		}
		allocated++
	}

	threads, err := r.store.ListThreads(ctx, registrystore.ThreadFilter{Project: project})
	if err != nil {
		return allocated, err
	}
	sort.Slice(threads, func(i, j int) bool { return threads[i].CreatedAt.Before(threads[j].CreatedAt) })
	for i := range threads {
		t := &threads[i]
		if t.GlobalDisplayID != "" {
			continue
		}
		displayID, err := r.AllocateDisplayID(ctx, project, "thread", t.UUID, "thread_registry")
		if err != nil {
			return allocated, err
		}
		if err := r.store.SetDisplayID(ctx, "thread_registry", t.UUID, displayID); err != nil {
			return allocated, err
		}
		allocated++
	}
	return allocated, nil
}
