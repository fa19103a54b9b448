package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/forgeos/graph-service/internal/config"
	registryembed "github.com/forgeos/graph-service/internal/registry/embed"
	registrystore "github.com/forgeos/graph-service/internal/registry/store"
)

// minContextScore filters weak matches out of assembled context.
const minContextScore = 0.3

// ContextManager assembles working context for an assistant session
// from the raw ingest collections and the pattern store, and flushes
// session scratch state.
type ContextManager struct {
	store registrystore.GraphStore
	embed registryembed.Embedder
	pad   *Scratchpad
	cfg   *config.Config
}

// NewContextManager creates a ContextManager. pad may be nil.
func NewContextManager(store registrystore.GraphStore, embed registryembed.Embedder, pad *Scratchpad, cfg *config.Config) *ContextManager {
	return &ContextManager{store: store, embed: embed, pad: pad, cfg: cfg}
}

// ContextItem is one match in a loaded context section.
type ContextItem struct {
	Text       string  `json:"text"`
	Similarity float64 `json:"similarity"`
	Source     string  `json:"source"`
}

// ContextSection groups items from one collection.
type ContextSection struct {
	Name  string        `json:"name"`
	Items []ContextItem `json:"items"`
}

// LoadedContext is the assembled result.
type LoadedContext struct {
	Sections    []ContextSection `json:"sections"`
	ContextText string           `json:"context_text"`
	TotalItems  int              `json:"total_items"`
}

// Load searches messages, conversations, and patterns for the query
// and assembles the matches into sections.
func (m *ContextManager) Load(ctx context.Context, query, projectName string, limit int) (*LoadedContext, error) {
	if m.embed == nil {
		return nil, &registrystore.ValidationError{Field: "query", Message: "no embedder configured"}
	}
	if limit <= 0 {
		limit = m.cfg.PatternDefaultLimit
	}
	vector, err := m.embed.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	loaded := &LoadedContext{}
	addSection := func(name string, items []ContextItem) {
		if len(items) == 0 {
			return
		}
		loaded.Sections = append(loaded.Sections, ContextSection{Name: name, Items: items})
		loaded.TotalItems += len(items)
	}

	if messages, err := m.store.SearchMessages(ctx, vector, limit, projectName); err == nil {
		var items []ContextItem
		for _, msg := range messages {
			if msg.Similarity < minContextScore {
				continue
			}
			items = append(items, ContextItem{Text: msg.Text, Similarity: msg.Similarity, Source: "messages"})
		}
		addSection("messages", items)
	}
	if conversations, err := m.store.SearchConversations(ctx, vector, limit, projectName); err == nil {
		var items []ContextItem
		for _, c := range conversations {
			if c.Similarity < minContextScore {
				continue
			}
			text := c.Summary
			if text == "" {
				text = c.Name
			}
			items = append(items, ContextItem{Text: text, Similarity: c.Similarity, Source: "conversations"})
		}
		addSection("conversations", items)
	}
	if patterns, err := m.store.SearchPatterns(ctx, vector, limit, ""); err == nil {
		var items []ContextItem
		for _, p := range patterns {
			if p.Similarity < minContextScore {
				continue
			}
			items = append(items, ContextItem{Text: p.Content, Similarity: p.Similarity, Source: "patterns"})
		}
		addSection("patterns", items)
	}

	loaded.ContextText = renderContext(loaded)
	return loaded, nil
}

// Resize trims a loaded context to a character budget, shrinking each
// section in proportion to its share of the total.
func Resize(loaded *LoadedContext, budget int) *LoadedContext {
	if budget <= 0 || len(loaded.ContextText) <= budget {
		return loaded
	}
	total := 0
	for _, s := range loaded.Sections {
		for _, item := range s.Items {
			total += len(item.Text)
		}
	}
	if total == 0 {
		return loaded
	}
	out := &LoadedContext{}
	for _, s := range loaded.Sections {
		sectionLen := 0
		for _, item := range s.Items {
			sectionLen += len(item.Text)
		}
		sectionBudget := budget * sectionLen / total
		trimmed := ContextSection{Name: s.Name}
		used := 0
		for _, item := range s.Items {
			if used >= sectionBudget {
				break
			}
			if used+len(item.Text) > sectionBudget {
				item.Text = item.Text[:sectionBudget-used]
			}
			used += len(item.Text)
			trimmed.Items = append(trimmed.Items, item)
		}
		if len(trimmed.Items) > 0 {
			out.Sections = append(out.Sections, trimmed)
			out.TotalItems += len(trimmed.Items)
		}
	}
	out.ContextText = renderContext(out)
	if len(out.ContextText) > budget {
		out.ContextText = out.ContextText[:budget]
	}
	return out
}

// Flush clears every scratchpad entry of a context.
func (m *ContextManager) Flush(ctx context.Context, contextID string) (int64, error) {
	if m.pad == nil {
		return 0, nil
	}
	return m.pad.Clear(ctx, contextID)
}

func renderContext(loaded *LoadedContext) string {
	var b strings.Builder
	for _, s := range loaded.Sections {
		fmt.Fprintf(&b, "## %s\n", s.Name)
		for _, item := range s.Items {
			fmt.Fprintf(&b, "- (%.2f) %s\n", item.Similarity, strings.ReplaceAll(item.Text, "\n", " "))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
