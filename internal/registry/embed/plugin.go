// Package embed defines the embedding provider contract and its plugin
// registry. Providers must produce vectors of the configured dimension
// (1024 by default).
package embed

import (
	"context"
	"fmt"
)

// Embedder generates embeddings for text.
type Embedder interface {
	// EmbedTexts returns one embedding per input text, in order.
	// Implementations batch internally to respect provider limits.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedQuery embeds a single search query. Providers that
	// distinguish document and query inputs use the query encoding.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// ModelName returns the model identifier.
	ModelName() string
	// Dimension returns the embedding dimension.
	Dimension() int
}

// Loader creates an Embedder from config carried in the context.
type Loader func(ctx context.Context) (Embedder, error)

// Plugin represents an embedding provider plugin.
type Plugin struct {
	Name   string
	Loader Loader
}

var plugins []Plugin

// Register adds an embedding plugin.
func Register(p Plugin) {
	plugins = append(plugins, p)
}

// Names returns all registered embedding plugin names.
func Names() []string {
	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.Name
	}
	return names
}

// Select returns the loader for the named embedding plugin.
func Select(name string) (Loader, error) {
	for _, p := range plugins {
		if p.Name == name {
			return p.Loader, nil
		}
	}
	return nil, fmt.Errorf("unknown embedder %q; valid: %v", name, Names())
}
