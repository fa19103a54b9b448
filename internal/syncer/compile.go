package syncer

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/forgeos/graph-service/internal/graph"
	"github.com/forgeos/graph-service/internal/model"
	registrystore "github.com/forgeos/graph-service/internal/registry/store"
)

// Document is one compiled markdown file ready to push.
type Document struct {
	FileName  string `json:"file_name"`
	Content   string `json:"content"`
	ItemCount int    `json:"item_count"`
}

// compiler renders one registry slice of a project into a document.
type compiler func(ctx context.Context, reg *graph.Registry, target *ResolvedTarget) (*Document, error)

var compilers = map[string]compiler{
	"decisions":       compileDecisions,
	"threads":         compileThreads,
	"flags":           compileFlags,
	"conflicts":       compileConflicts,
	"lineage_summary": compileLineageSummary,
}

// CompilerNames returns the registered compiler names, sorted.
func CompilerNames() []string {
	names := make([]string, 0, len(compilers))
	for name := range compilers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Compile runs every source compiler of a resolved target. Sources
// without rows still produce a document so stale target content gets
// replaced with an empty section.
func Compile(ctx context.Context, reg *graph.Registry, target *ResolvedTarget) ([]Document, error) {
	var docs []Document
	for _, source := range target.Sources {
		c, ok := compilers[source]
		if !ok {
			return nil, fmt.Errorf("unknown sync source %q; valid: %v", source, CompilerNames())
		}
		doc, err := c(ctx, reg, target)
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", source, err)
		}
		docs = append(docs, *doc)
	}
	return docs, nil
}

func fileName(target *ResolvedTarget, source string) string {
	return fmt.Sprintf("%s_%s.md", target.Prefix, source)
}

func decisionPasses(d *model.Decision, f *Filters) bool {
	if !statusAllowed(f.Status, string(d.Status)) {
		return false
	}
	if f.MinTier != nil {
		if d.EpistemicTier == nil || *d.EpistemicTier < *f.MinTier {
			return false
		}
	}
	if f.MaxHops != nil && d.HopsSinceValidated > *f.MaxHops {
		return false
	}
	return true
}

func compileDecisions(ctx context.Context, reg *graph.Registry, target *ResolvedTarget) (*Document, error) {
	decisions, err := reg.Store().ListDecisions(ctx, registrystore.DecisionFilter{Project: target.Project})
	if err != nil {
		return nil, err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# Decisions: %s\n\n", target.Project)
	count := 0
	for i := range decisions {
		d := &decisions[i]
		if !decisionPasses(d, &target.Filters) {
			continue
		}
		count++
		label := d.GlobalDisplayID
		if label == "" {
			label = d.LocalID
		}
		fmt.Fprintf(&b, "## %s\n%s\n", label, d.Text)
		if d.EpistemicTier != nil {
			fmt.Fprintf(&b, "- tier: %.2f\n", *d.EpistemicTier)
		}
		fmt.Fprintf(&b, "- status: %s\n", d.Status)
		if d.Rationale != "" {
			fmt.Fprintf(&b, "- rationale: %s\n", d.Rationale)
		}
		if len(d.ConflictsWith) > 0 {
			fmt.Fprintf(&b, "- conflicts: %d\n", len(d.ConflictsWith))
		}
		b.WriteString("\n")
	}
	return &Document{FileName: fileName(target, "decisions"), Content: b.String(), ItemCount: count}, nil
}

func compileThreads(ctx context.Context, reg *graph.Registry, target *ResolvedTarget) (*Document, error) {
	threads, err := reg.Store().ListThreads(ctx, registrystore.ThreadFilter{Project: target.Project})
	if err != nil {
		return nil, err
	}
	graph.SortThreads(threads)
	var b strings.Builder
	fmt.Fprintf(&b, "# Threads: %s\n\n", target.Project)
	count := 0
	for i := range threads {
		t := &threads[i]
		if !statusAllowed(target.Filters.Status, string(t.Status)) {
			continue
		}
		if target.Filters.MaxHops != nil && t.HopsSinceValidated > *target.Filters.MaxHops {
			continue
		}
		count++
		label := t.GlobalDisplayID
		if label == "" {
			label = t.LocalID
		}
		fmt.Fprintf(&b, "- **%s** [%s/%s] %s\n", label, t.Priority, t.Status, t.Title)
		if len(t.BlockedBy) > 0 {
			fmt.Fprintf(&b, "  - blocked by: %s\n", strings.Join(t.BlockedBy, ", "))
		}
		if t.Resolution != "" {
			fmt.Fprintf(&b, "  - resolution: %s\n", t.Resolution)
		}
	}
	return &Document{FileName: fileName(target, "threads"), Content: b.String(), ItemCount: count}, nil
}

func compileFlags(ctx context.Context, reg *graph.Registry, target *ResolvedTarget) (*Document, error) {
	flags, err := reg.ListFlags(ctx, target.Project, "", "")
	if err != nil {
		return nil, err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# Expedition flags: %s\n\n", target.Project)
	count := 0
	for _, f := range flags {
		if !statusAllowed(target.Filters.Status, string(f.Status)) {
			continue
		}
		count++
		fmt.Fprintf(&b, "- [%s/%s] %s\n", f.Category, f.Status, f.Description)
	}
	return &Document{FileName: fileName(target, "flags"), Content: b.String(), ItemCount: count}, nil
}

func compileConflicts(ctx context.Context, reg *graph.Registry, target *ResolvedTarget) (*Document, error) {
	decisions, err := reg.ListActiveDecisions(ctx, target.Project)
	if err != nil {
		return nil, err
	}
	byUUID := map[string]*model.Decision{}
	for i := range decisions {
		byUUID[decisions[i].UUID] = &decisions[i]
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# Conflicts: %s\n\n", target.Project)
	count := 0
	for i := range decisions {
		d := &decisions[i]
		if len(d.ConflictsWith) == 0 {
			continue
		}
		count++
		label := d.GlobalDisplayID
		if label == "" {
			label = d.LocalID
		}
		fmt.Fprintf(&b, "## %s\n%s\n", label, d.Text)
		for _, other := range d.ConflictsWith {
			if o := byUUID[other]; o != nil {
				fmt.Fprintf(&b, "- vs %s: %s\n", o.LocalID, o.Text)
			} else {
				fmt.Fprintf(&b, "- vs %s\n", other)
			}
		}
		b.WriteString("\n")
	}
	return &Document{FileName: fileName(target, "conflicts"), Content: b.String(), ItemCount: count}, nil
}

func compileLineageSummary(ctx context.Context, reg *graph.Registry, target *ResolvedTarget) (*Document, error) {
	edges, err := reg.LineageGraph(ctx, target.Project)
	if err != nil {
		return nil, err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# Lineage: %s\n\n", target.Project)
	for _, e := range edges {
		fmt.Fprintf(&b, "- %s -> %s", shortID(e.SourceConversation), shortID(e.TargetConversation))
		if e.CompressionTag != "" {
			fmt.Fprintf(&b, " (%s)", e.CompressionTag)
		}
		fmt.Fprintf(&b, ": %d decisions, %d threads carried\n", len(e.DecisionsCarried), len(e.ThreadsCarried))
	}
	return &Document{FileName: fileName(target, "lineage_summary"), Content: b.String(), ItemCount: len(edges)}, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
