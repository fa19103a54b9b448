// Package blob defines the content-addressed blob store contract and
// its plugin registry. Refs have the form "sha256:<64 hex>"; writes are
// idempotent because the ref is a pure function of the content.
package blob

import (
	"context"
	"fmt"
)

// Store is a content-addressed text store.
type Store interface {
	// Store writes content and returns its ref. Empty content returns
	// an empty ref and no error.
	Store(ctx context.Context, content string) (string, error)
	// Resolve returns the content for a ref.
	Resolve(ctx context.Context, ref string) (string, error)
	// Exists reports whether a ref is present.
	Exists(ctx context.Context, ref string) (bool, error)
}

// Loader creates a blob Store from config carried in the context.
type Loader func(ctx context.Context) (Store, error)

// Plugin represents a blob store backend plugin.
type Plugin struct {
	Name   string
	Loader Loader
}

var plugins []Plugin

// Register adds a blob store plugin.
func Register(p Plugin) {
	plugins = append(plugins, p)
}

// Names returns all registered blob store plugin names.
func Names() []string {
	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.Name
	}
	return names
}

// Select returns the loader for the named blob store plugin.
func Select(name string) (Loader, error) {
	for _, p := range plugins {
		if p.Name == name {
			return p.Loader, nil
		}
	}
	return nil, fmt.Errorf("unknown blob store %q; valid: %v", name, Names())
}
