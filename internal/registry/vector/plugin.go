// Package vector defines an optional secondary vector index beside the
// store's own search. A background mirror keeps it fed with decision and
// thread embeddings so deployments without store-native vector search
// still get similarity lookups.
package vector

import (
	"context"
	"fmt"
)

// UpsertRequest mirrors one entity embedding into the index.
type UpsertRequest struct {
	ID         string
	Collection string
	Project    string
	Embedding  []float32
}

// Hit is one search result from the index.
type Hit struct {
	ID         string
	Collection string
	Project    string
	Similarity float64
}

// Filter scopes a search.
type Filter struct {
	Collection string
	Project    string
	ProjectNot string
}

// Index is a vector similarity index.
type Index interface {
	// IsEnabled reports whether the index is usable.
	IsEnabled() bool
	// Upsert writes or replaces embeddings.
	Upsert(ctx context.Context, reqs []UpsertRequest) error
	// Search returns the k nearest hits matching the filter.
	Search(ctx context.Context, vector []float32, k int, f Filter) ([]Hit, error)
	// Close releases the underlying connection.
	Close(ctx context.Context) error
}

// Loader creates an Index from config carried in the context.
type Loader func(ctx context.Context) (Index, error)

// Plugin represents a vector index plugin.
type Plugin struct {
	Name   string
	Loader Loader
}

var plugins []Plugin

// Register adds a vector index plugin.
func Register(p Plugin) {
	plugins = append(plugins, p)
}

// Names returns all registered vector index plugin names.
func Names() []string {
	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.Name
	}
	return names
}

// Select returns the loader for the named vector index plugin.
func Select(name string) (Loader, error) {
	for _, p := range plugins {
		if p.Name == name {
			return p.Loader, nil
		}
	}
	return nil, fmt.Errorf("unknown vector index %q; valid: %v", name, Names())
}
