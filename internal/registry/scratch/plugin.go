// Package scratch defines the TTL key-value scratchpad contract and its
// plugin registry. Entries are namespaced by a context ID and expire.
package scratch

import (
	"context"
	"fmt"
	"time"
)

// Pad is a TTL key-value store scoped by context ID.
type Pad interface {
	// Set stores a JSON-serializable value under (contextID, key).
	Set(ctx context.Context, contextID, key string, value any, ttl time.Duration) error
	// Get returns the stored value, or a NotFoundError when absent or expired.
	Get(ctx context.Context, contextID, key string) (any, error)
	// Delete removes a key; returns false when it was absent.
	Delete(ctx context.Context, contextID, key string) (bool, error)
	// Clear removes all keys for a context and returns the count.
	Clear(ctx context.Context, contextID string) (int64, error)
	// List returns all live key/value pairs for a context.
	List(ctx context.Context, contextID string) (map[string]any, error)
}

// Loader creates a Pad from config carried in the context.
type Loader func(ctx context.Context) (Pad, error)

// Plugin represents a scratchpad backend plugin.
type Plugin struct {
	Name   string
	Loader Loader
}

var plugins []Plugin

// Register adds a scratchpad plugin.
func Register(p Plugin) {
	plugins = append(plugins, p)
}

// Names returns all registered scratchpad plugin names.
func Names() []string {
	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.Name
	}
	return names
}

// Select returns the loader for the named scratchpad plugin.
func Select(name string) (Loader, error) {
	for _, p := range plugins {
		if p.Name == name {
			return p.Loader, nil
		}
	}
	return nil, fmt.Errorf("unknown scratchpad %q; valid: %v", name, Names())
}
