package memory

import (
	"context"
	"time"

	registryscratch "github.com/forgeos/graph-service/internal/registry/scratch"
	registrystore "github.com/forgeos/graph-service/internal/registry/store"
)

// Scratchpad fronts the TTL key-value backend with a default TTL.
type Scratchpad struct {
	pad        registryscratch.Pad
	defaultTTL time.Duration
}

// NewScratchpad creates a Scratchpad. ttlSeconds applies when a caller
// passes no TTL.
func NewScratchpad(pad registryscratch.Pad, ttlSeconds int) *Scratchpad {
	if ttlSeconds <= 0 {
		ttlSeconds = 3600
	}
	return &Scratchpad{pad: pad, defaultTTL: time.Duration(ttlSeconds) * time.Second}
}

// Set stores a value under (contextID, key). ttlSeconds zero means the
// default TTL.
func (s *Scratchpad) Set(ctx context.Context, contextID, key string, value any, ttlSeconds int) error {
	if contextID == "" {
		return &registrystore.ValidationError{Field: "context_id", Message: "required"}
	}
	if key == "" {
		return &registrystore.ValidationError{Field: "key", Message: "required"}
	}
	ttl := s.defaultTTL
	if ttlSeconds > 0 {
		ttl = time.Duration(ttlSeconds) * time.Second
	}
	return s.pad.Set(ctx, contextID, key, value, ttl)
}

// Get returns the stored value or a NotFoundError.
func (s *Scratchpad) Get(ctx context.Context, contextID, key string) (any, error) {
	return s.pad.Get(ctx, contextID, key)
}

// Delete removes one key; false when it was already gone.
func (s *Scratchpad) Delete(ctx context.Context, contextID, key string) (bool, error) {
	return s.pad.Delete(ctx, contextID, key)
}

// Clear removes every key of a context and returns the count.
func (s *Scratchpad) Clear(ctx context.Context, contextID string) (int64, error) {
	return s.pad.Clear(ctx, contextID)
}

// List returns the live entries of a context.
func (s *Scratchpad) List(ctx context.Context, contextID string) (map[string]any, error) {
	return s.pad.List(ctx, contextID)
}
