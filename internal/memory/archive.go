package memory

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/forgeos/graph-service/internal/model"
	registrystore "github.com/forgeos/graph-service/internal/registry/store"
)

// archiveContentLimit caps stored archive content.
const archiveContentLimit = 16000

// Archiver is the retention-policied copy store. Policies are
// "permanent" or "days-N"; expired entries are swept by the store's TTL
// index.
type Archiver struct {
	store registrystore.GraphStore
}

// NewArchiver creates an Archiver.
func NewArchiver(store registrystore.GraphStore) *Archiver {
	return &Archiver{store: store}
}

// ArchiveInput carries one archive submission.
type ArchiveInput struct {
	SourceCollection string
	SourceID         string
	Content          string
	RetentionPolicy  string
	Metadata         map[string]any
}

// Archive stores a copy under a fresh archive_id.
func (a *Archiver) Archive(ctx context.Context, in ArchiveInput) (*model.ArchiveEntry, error) {
	if in.Content == "" {
		return nil, &registrystore.ValidationError{Field: "content", Message: "required"}
	}
	if in.RetentionPolicy == "" {
		in.RetentionPolicy = "permanent"
	}
	expires, err := retentionExpiry(in.RetentionPolicy, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	content := in.Content
	if len(content) > archiveContentLimit {
		content = content[:archiveContentLimit]
	}
	entry := &model.ArchiveEntry{
		ArchiveID:        "arc_" + randomHex(6),
		SourceCollection: in.SourceCollection,
		SourceID:         in.SourceID,
		Content:          content,
		RetentionPolicy:  in.RetentionPolicy,
		Metadata:         in.Metadata,
		ExpiresAt:        expires,
		CreatedAt:        time.Now().UTC(),
	}
	if err := a.store.InsertArchive(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Restore returns an archived entry by id.
func (a *Archiver) Restore(ctx context.Context, archiveID string) (*model.ArchiveEntry, error) {
	return a.store.GetArchive(ctx, archiveID)
}

// List returns recent archive entries, optionally filtered by source
// collection.
func (a *Archiver) List(ctx context.Context, sourceCollection string, limit int) ([]model.ArchiveEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	return a.store.ListArchive(ctx, sourceCollection, limit)
}

// retentionExpiry parses "permanent" or "days-N" into an expiry time.
func retentionExpiry(policy string, now time.Time) (*time.Time, error) {
	if policy == "permanent" {
		return nil, nil
	}
	rest, ok := strings.CutPrefix(policy, "days-")
	if !ok {
		return nil, &registrystore.ValidationError{Field: "retention_policy", Message: "must be permanent or days-N"}
	}
	days, err := strconv.Atoi(rest)
	if err != nil || days <= 0 {
		return nil, &registrystore.ValidationError{Field: "retention_policy", Message: "days-N needs a positive N"}
	}
	t := now.AddDate(0, 0, days)
	return &t, nil
}
