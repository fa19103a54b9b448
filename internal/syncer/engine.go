package syncer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/forgeos/graph-service/internal/graph"
	"github.com/forgeos/graph-service/internal/monitoring"
)

// targetDelay is the courtesy pause between targets.
const targetDelay = time.Second

// Pusher writes compiled documents to a sync target. Implementations
// talk to the external chat service; the engine stays transport
// agnostic.
type Pusher interface {
	// ListDocs returns the file names currently present on the target.
	ListDocs(ctx context.Context, target string) ([]string, error)
	// UpsertDoc creates or replaces one document.
	UpsertDoc(ctx context.Context, target, fileName, content string) error
	// DeleteDoc removes one document.
	DeleteDoc(ctx context.Context, target, fileName string) error
}

// TargetResult reports one target's sync outcome.
type TargetResult struct {
	Target    string     `json:"target"`
	Project   string     `json:"project"`
	Documents []Document `json:"documents"`
	Deleted   []string   `json:"deleted,omitempty"`
	Skipped   bool       `json:"skipped,omitempty"`
	DryRun    bool       `json:"dry_run,omitempty"`
	Err       string     `json:"error,omitempty"`
}

// Engine drives the compile-and-push cycle.
type Engine struct {
	reg      *graph.Registry
	pusher   Pusher
	manifest *Manifest
}

// NewEngine creates an Engine. pusher may be nil, which forces dry-run.
func NewEngine(reg *graph.Registry, pusher Pusher, manifest *Manifest) *Engine {
	return &Engine{reg: reg, pusher: pusher, manifest: manifest}
}

// SyncAll compiles and pushes every enabled target serially with a
// delay between targets. A failing target is reported and does not
// stop the rest.
func (e *Engine) SyncAll(ctx context.Context, dryRun bool) ([]TargetResult, error) {
	if e.pusher == nil {
		dryRun = true
	}
	var results []TargetResult
	for i := range e.manifest.Targets {
		if i > 0 && !dryRun {
			select {
			case <-time.After(targetDelay):
			case <-ctx.Done():
				return results, ctx.Err()
			}
		}
		target := e.manifest.Resolve(&e.manifest.Targets[i])
		result := e.syncTarget(ctx, &target, dryRun)
		results = append(results, result)
		switch {
		case result.Skipped:
			monitoring.SyncTargetsTotal.WithLabelValues("skipped").Inc()
		case result.Err != "":
			monitoring.SyncTargetsTotal.WithLabelValues("failure").Inc()
		default:
			monitoring.SyncTargetsTotal.WithLabelValues("success").Inc()
		}
	}
	return results, nil
}

// SyncTarget compiles and pushes one named target.
func (e *Engine) SyncTarget(ctx context.Context, name string, dryRun bool) (*TargetResult, error) {
	if e.pusher == nil {
		dryRun = true
	}
	for i := range e.manifest.Targets {
		if e.manifest.Targets[i].Name != name {
			continue
		}
		target := e.manifest.Resolve(&e.manifest.Targets[i])
		result := e.syncTarget(ctx, &target, dryRun)
		if result.Err != "" {
			return &result, fmt.Errorf("sync %s: %s", name, result.Err)
		}
		return &result, nil
	}
	return nil, fmt.Errorf("unknown sync target %q", name)
}

func (e *Engine) syncTarget(ctx context.Context, target *ResolvedTarget, dryRun bool) TargetResult {
	result := TargetResult{Target: target.Name, Project: target.Project, DryRun: dryRun}
	if !target.Enabled {
		result.Skipped = true
		return result
	}

	docs, err := Compile(ctx, e.reg, target)
	if err != nil {
		result.Err = err.Error()
		return result
	}
	result.Documents = docs
	if dryRun {
		return result
	}

	for _, doc := range docs {
		if err := e.pusher.UpsertDoc(ctx, target.Name, doc.FileName, doc.Content); err != nil {
			result.Err = fmt.Sprintf("upsert %s: %v", doc.FileName, err)
			return result
		}
		log.Info("pushed sync doc", "target", target.Name, "file", doc.FileName, "items", doc.ItemCount)
	}

	deleted, err := e.cleanupStale(ctx, target, docs)
	if err != nil {
		// Stale docs are cosmetic; the push itself succeeded.
		log.Warn("stale doc cleanup failed", "target", target.Name, "error", err)
	}
	result.Deleted = deleted
	return result
}

// cleanupStale removes target documents that match this engine's
// naming scheme but were not produced by the current compile.
func (e *Engine) cleanupStale(ctx context.Context, target *ResolvedTarget, docs []Document) ([]string, error) {
	existing, err := e.pusher.ListDocs(ctx, target.Name)
	if err != nil {
		return nil, err
	}
	current := map[string]bool{}
	for _, doc := range docs {
		current[doc.FileName] = true
	}
	var deleted []string
	prefix := target.Prefix + "_"
	for _, name := range existing {
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".md") {
			continue
		}
		if current[name] {
			continue
		}
		if err := e.pusher.DeleteDoc(ctx, target.Name, name); err != nil {
			return deleted, err
		}
		deleted = append(deleted, name)
	}
	return deleted, nil
}
