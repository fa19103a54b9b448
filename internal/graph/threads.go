package graph

import (
	"context"
	"sort"
	"time"

	"github.com/forgeos/graph-service/internal/identity"
	"github.com/forgeos/graph-service/internal/memory"
	"github.com/forgeos/graph-service/internal/model"
	registryblob "github.com/forgeos/graph-service/internal/registry/blob"
	registrystore "github.com/forgeos/graph-service/internal/registry/store"
)

// ThreadInput carries one thread upsert.
type ThreadInput struct {
	LocalID               string
	Title                 string
	Project               string
	FirstSeenConversation string
	Status                model.ThreadStatus
	Priority              model.Priority
	BlockedBy             []string
}

// ThreadResult is the outcome of a thread upsert.
type ThreadResult struct {
	Thread *model.Thread
	Action model.UpsertAction
}

// UpsertThread registers or refreshes a thread. Identity is derived from
// the title and the conversation where the thread was first seen, so
// re-reporting the same open thread touches the existing row.
func (r *Registry) UpsertThread(ctx context.Context, in ThreadInput) (*ThreadResult, error) {
	if in.Title == "" {
		return nil, &registrystore.ValidationError{Field: "title", Message: "required"}
	}
	if in.Project == "" {
		return nil, &registrystore.ValidationError{Field: "project", Message: "required"}
	}
	if in.Status == "" {
		in.Status = model.ThreadOpen
	}
	if in.Priority == "" {
		in.Priority = model.PriorityMedium
	}

	projectUUID := identity.ProjectUUID(in.Project)
	ts := conversationMillis(in.FirstSeenConversation)
	threadUUID := identity.V8FromString(in.Title+in.FirstSeenConversation, projectUUID, ts).String()
	now := nowUTC()

	existing, err := r.store.GetThread(ctx, threadUUID)
	if err != nil && !isNotFound(err) {
		return nil, err
	}

	if existing != nil {
		update := registrystore.ThreadUpdate{
			Status:   &in.Status,
			Priority: &in.Priority,
		}
		if in.BlockedBy != nil {
			update.BlockedBy = in.BlockedBy
		}
		if err := r.store.UpdateThread(ctx, threadUUID, update, now); err != nil {
			return nil, err
		}
		updated, err := r.store.GetThread(ctx, threadUUID)
		if err != nil {
			return nil, err
		}
		r.emit(ctx, memory.EventThreadUpserted, map[string]any{
			"uuid":    threadUUID,
			"project": in.Project,
			"action":  string(model.ActionUpdated),
		})
		return &ThreadResult{Thread: updated, Action: model.ActionUpdated}, nil
	}

	displayID, err := r.AllocateDisplayID(ctx, in.Project, "thread", threadUUID, "thread_registry")
	if err != nil {
		return nil, err
	}
	t := &model.Thread{
		UUID:                  threadUUID,
		LocalID:               in.LocalID,
		GlobalDisplayID:       displayID,
		Project:               in.Project,
		ProjectUUID:           projectUUID.String(),
		Title:                 in.Title,
		Status:                in.Status,
		Priority:              in.Priority,
		BlockedBy:             in.BlockedBy,
		HopsSinceValidated:    0,
		LastValidated:         now,
		FirstSeenConversation: in.FirstSeenConversation,
		Embedding:             r.embedText(ctx, in.Title),
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := r.store.InsertThread(ctx, t); err != nil {
		return nil, err
	}
	r.emit(ctx, memory.EventThreadUpserted, map[string]any{
		"uuid":       threadUUID,
		"project":    in.Project,
		"display_id": displayID,
		"action":     string(model.ActionInserted),
	})
	return &ThreadResult{Thread: t, Action: model.ActionInserted}, nil
}

// GetThread returns one thread by UUID.
func (r *Registry) GetThread(ctx context.Context, id string) (*model.Thread, error) {
	return r.store.GetThread(ctx, id)
}

// ResolveThread closes a thread with its resolution text. Long
// resolutions spill to blob storage.
func (r *Registry) ResolveThread(ctx context.Context, id, resolution string) error {
	now := nowUTC()
	blobRef := r.storeBlobIfLarge(ctx, resolution)
	if err := r.store.ResolveThread(ctx, id, resolution, blobRef, now); err != nil {
		return err
	}
	r.emit(ctx, memory.EventThreadResolved, map[string]any{"uuid": id})
	return nil
}

// TouchThreadValidated resets the staleness counters of a thread.
func (r *Registry) TouchThreadValidated(ctx context.Context, id string) error {
	return r.store.TouchThreadValidated(ctx, id, nowUTC())
}

// OpenThreads returns the unresolved threads of a project ordered by
// priority (high first) then least-recently-updated.
func (r *Registry) OpenThreads(ctx context.Context, project string) ([]model.Thread, error) {
	threads, err := r.store.ListThreads(ctx, registrystore.ThreadFilter{
		Project:   project,
		StatusNot: model.ThreadResolved,
	})
	if err != nil {
		return nil, err
	}
	SortThreads(threads)
	return threads, nil
}

// SortThreads orders threads by priority rank then updated_at ascending,
// so the oldest high-priority work surfaces first.
func SortThreads(threads []model.Thread) {
	sort.SliceStable(threads, func(i, j int) bool {
		ri, rj := threads[i].Priority.Rank(), threads[j].Priority.Rank()
		if ri != rj {
			return ri < rj
		}
		return threads[i].UpdatedAt.Before(threads[j].UpdatedAt)
	})
}

// IncrementThreadHops bumps the hop counter for every unresolved thread
// of the project not in exclude.
func (r *Registry) IncrementThreadHops(ctx context.Context, project string, exclude []string) (int64, error) {
	return r.store.IncrementThreadHops(ctx, project, exclude)
}

// IsThreadStale reports whether an unresolved thread has outlived its
// validation window.
func (r *Registry) IsThreadStale(t *model.Thread, now time.Time) bool {
	if t.Status == model.ThreadResolved {
		return false
	}
	if t.HopsSinceValidated >= r.cfg.StaleMaxHops {
		return true
	}
	cutoff := now.AddDate(0, 0, -r.cfg.StaleMaxDays)
	return !t.LastValidated.After(cutoff)
}

// StaleThreads returns the unresolved threads of a project that are stale.
func (r *Registry) StaleThreads(ctx context.Context, project string) ([]model.Thread, error) {
	threads, err := r.store.ListThreads(ctx, registrystore.ThreadFilter{
		Project:   project,
		StatusNot: model.ThreadResolved,
	})
	if err != nil {
		return nil, err
	}
	now := nowUTC()
	var stale []model.Thread
	for _, t := range threads {
		if r.IsThreadStale(&t, now) {
			stale = append(stale, t)
		}
	}
	return stale, nil
}

// ThreadResolution returns the full resolution text, preferring the blob.
func (r *Registry) ThreadResolution(ctx context.Context, t *model.Thread) string {
	return registryblob.TextWithFallback(ctx, r.blobs, t.Resolution, t.ResolutionBlobRef)
}
