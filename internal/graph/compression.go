package graph

import (
	"context"

	"github.com/forgeos/graph-service/internal/memory"
	"github.com/forgeos/graph-service/internal/model"
	registrystore "github.com/forgeos/graph-service/internal/registry/store"
)

// CompressionInput carries one compression registration.
type CompressionInput struct {
	Tag                 string
	Project             string
	SourceConversation  string
	TargetConversations []string
	DecisionsCaptured   []string
	ThreadsCaptured     []string
	ArtifactsCaptured   []string
	// ArchiveText, when present, is hashed into the stored checksum.
	ArchiveText string
}

// RegisterCompression records a compression event under its tag.
// Re-registering the same tag merges the captured sets rather than
// replacing them, so partial registrations from different targets
// accumulate.
func (r *Registry) RegisterCompression(ctx context.Context, in CompressionInput) (*model.Compression, model.UpsertAction, error) {
	if in.Tag == "" {
		return nil, "", &registrystore.ValidationError{Field: "compression_tag", Message: "required"}
	}
	now := nowUTC()
	c := &model.Compression{
		Tag:                 in.Tag,
		Project:             in.Project,
		SourceConversation:  in.SourceConversation,
		TargetConversations: in.TargetConversations,
		DecisionsCaptured:   in.DecisionsCaptured,
		ThreadsCaptured:     in.ThreadsCaptured,
		ArtifactsCaptured:   in.ArtifactsCaptured,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if in.ArchiveText != "" {
		c.Checksum = Checksum(in.ArchiveText)
	}
	action, err := r.store.UpsertCompression(ctx, c)
	if err != nil {
		return nil, "", err
	}
	r.emit(ctx, memory.EventCompressionRegistered, map[string]any{
		"compression_tag": in.Tag,
		"project":         in.Project,
		"action":          string(action),
	})
	return c, action, nil
}

// GetCompression returns one compression record by tag.
func (r *Registry) GetCompression(ctx context.Context, tag string) (*model.Compression, error) {
	return r.store.GetCompression(ctx, tag)
}

// ChecksumVerification is the result of comparing an archive text
// against the checksum stored at registration time.
type ChecksumVerification struct {
	Match    bool   `json:"match"`
	Stored   string `json:"stored"`
	Computed string `json:"computed"`
}

// VerifyChecksum recomputes the checksum of the given archive text and
// compares it to the stored one.
func (r *Registry) VerifyChecksum(ctx context.Context, tag, archiveText string) (*ChecksumVerification, error) {
	c, err := r.store.GetCompression(ctx, tag)
	if err != nil {
		return nil, err
	}
	computed := Checksum(archiveText)
	return &ChecksumVerification{
		Match:    c.Checksum != "" && c.Checksum == computed,
		Stored:   c.Checksum,
		Computed: computed,
	}, nil
}
