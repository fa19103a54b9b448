// Package graph implements the registries that own the knowledge graph:
// conversations, decisions, threads, priming blocks, expedition flags,
// compressions, lineage edges, display IDs, and conflict detection.
package graph

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/forgeos/graph-service/internal/config"
	"github.com/forgeos/graph-service/internal/memory"
	registryblob "github.com/forgeos/graph-service/internal/registry/blob"
	registryembed "github.com/forgeos/graph-service/internal/registry/embed"
	registrystore "github.com/forgeos/graph-service/internal/registry/store"
)

// embedInputLimit caps text sent to the embedding provider.
const embedInputLimit = 8000

// Registry is the write-side engine over the graph store.
type Registry struct {
	store  registrystore.GraphStore
	embed  registryembed.Embedder
	blobs  registryblob.Store
	events *memory.Emitter
	cfg    *config.Config
}

// New creates a Registry. blobs may be nil when blob storage is disabled;
// events may be nil in tests.
func New(store registrystore.GraphStore, embed registryembed.Embedder, blobs registryblob.Store, events *memory.Emitter, cfg *config.Config) *Registry {
	return &Registry{store: store, embed: embed, blobs: blobs, events: events, cfg: cfg}
}

// Store exposes the underlying graph store for read-side engines.
func (r *Registry) Store() registrystore.GraphStore { return r.store }

// Embedder exposes the embedding provider.
func (r *Registry) Embedder() registryembed.Embedder { return r.embed }

// Blobs exposes the blob store, which may be nil.
func (r *Registry) Blobs() registryblob.Store { return r.blobs }

// TextHash returns the first 16 hex chars of SHA-256(text).
func TextHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])[:16]
}

// Checksum returns the full SHA-256 hex of text.
func Checksum(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// embedText embeds a single text, truncating the input. A provider
// failure degrades to a zero vector so the record can still be stored;
// the embedding is corrected on the next write.
func (r *Registry) embedText(ctx context.Context, text string) []float32 {
	if r.embed == nil {
		return nil
	}
	if len(text) > embedInputLimit {
		text = text[:embedInputLimit]
	}
	vectors, err := r.embed.EmbedTexts(ctx, []string{text})
	if err != nil || len(vectors) != 1 {
		log.Warn("embedding failed, storing zero vector", "error", err)
		return make([]float32, r.embed.Dimension())
	}
	return vectors[0]
}

// storeBlobIfLarge offloads content above the configured threshold.
func (r *Registry) storeBlobIfLarge(ctx context.Context, content string) string {
	if r.blobs == nil || !r.cfg.BlobEnabled {
		return ""
	}
	ref, err := registryblob.StoreIfLarge(ctx, r.blobs, content, r.cfg.BlobThreshold)
	if err != nil {
		log.Warn("blob store failed, keeping text inline", "error", err)
		return ""
	}
	return ref
}

func (r *Registry) emit(ctx context.Context, eventType string, details map[string]any) {
	r.events.Emit(ctx, eventType, details)
}

func nowUTC() time.Time { return time.Now().UTC() }

// sortedKeys flattens a set into a sorted slice for stable output.
func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
