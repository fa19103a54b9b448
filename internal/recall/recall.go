// Package recall implements the attention engine: parallel multi
// collection vector search, attention scoring, entanglement enrichment,
// and budget-constrained context assembly.
package recall

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/forgeos/graph-service/internal/config"
	"github.com/forgeos/graph-service/internal/graph"
	"github.com/forgeos/graph-service/internal/model"
	"github.com/forgeos/graph-service/internal/monitoring"
	registrystore "github.com/forgeos/graph-service/internal/registry/store"
)

// resultTextLimit caps the text carried on a normalized result.
const resultTextLimit = 2000

// ScanProvider supplies the latest entanglement scan, typically through
// a cache so enrichment does not cost a store round-trip per recall.
type ScanProvider interface {
	Latest(ctx context.Context, project string) (*model.EntanglementScan, error)
}

// Engine is the read-side recall engine over the registries.
type Engine struct {
	reg   *graph.Registry
	scans ScanProvider
	cfg   *config.Config
}

// NewEngine creates an Engine. scans may be nil; enrichment is then
// skipped.
func NewEngine(reg *graph.Registry, scans ScanProvider, cfg *config.Config) *Engine {
	return &Engine{reg: reg, scans: scans, cfg: cfg}
}

// Entanglement is the cluster context attached to an enriched result.
type Entanglement struct {
	ClusterID       string   `json:"cluster_id"`
	ClusterProjects []string `json:"cluster_projects"`
	ClusterSize     int      `json:"cluster_size"`
	AvgSimilarity   float64  `json:"avg_similarity"`
}

// Result is the uniform shape every searched collection normalizes
// into; Category carries the variant.
type Result struct {
	UUID          string         `json:"uuid,omitempty"`
	LocalID       string         `json:"local_id,omitempty"`
	DisplayID     string         `json:"display_id,omitempty"`
	Text          string         `json:"text"`
	Source        string         `json:"source"`
	Category      model.Category `json:"category"`
	Similarity    float64        `json:"similarity"`
	Attention     float64        `json:"attention"`
	Project       string         `json:"project,omitempty"`
	EpistemicTier *float64       `json:"epistemic_tier,omitempty"`
	Status        string         `json:"status,omitempty"`
	HasConflicts  bool           `json:"has_conflicts"`
	UpdatedAt     *time.Time     `json:"updated_at,omitempty"`
	Entanglement  *Entanglement  `json:"entanglement,omitempty"`
}

// Output is the full return of one recall.
type Output struct {
	Results             []Result `json:"results"`
	ContextText         string   `json:"context_text"`
	TotalCandidates     int      `json:"total_candidates"`
	BudgetUsed          int      `json:"budget_used"`
	CollectionsSearched []string `json:"collections_searched"`
}

// Recall embeds the query once and runs the full pipeline.
func (e *Engine) Recall(ctx context.Context, query, project string, budget int, minScore float64) (*Output, error) {
	embedder := e.reg.Embedder()
	if embedder == nil {
		return nil, &registrystore.ValidationError{Field: "query", Message: "no embedder configured"}
	}
	vector, err := embedder.EmbedQuery(ctx, truncate(query, 8000))
	if err != nil {
		return nil, err
	}
	return e.RecallWithEmbedding(ctx, vector, project, budget, minScore)
}

// RecallWithEmbedding runs the pipeline on a pre-computed query vector.
// The gravity orchestrator uses this to embed once across many lenses.
func (e *Engine) RecallWithEmbedding(ctx context.Context, vector []float32, project string, budget int, minScore float64) (*Output, error) {
	if budget <= 0 {
		budget = e.cfg.AttentionDefaultBudget
	}
	if minScore <= 0 {
		minScore = e.cfg.AttentionMinScore
	}
	k := e.cfg.AttentionSearchK

	store := e.reg.Store()
	type searchFn struct {
		name string
		run  func(ctx context.Context) ([]Result, error)
	}
	searches := []searchFn{
		{"decision_registry", func(ctx context.Context) ([]Result, error) {
			hits, err := store.SearchDecisions(ctx, vector, k, registrystore.DecisionFilter{
				Project: project,
				Status:  model.DecisionActive,
			})
			if err != nil {
				return nil, err
			}
			out := make([]Result, 0, len(hits))
			for i := range hits {
				out = append(out, normalizeDecision(&hits[i]))
			}
			return out, nil
		}},
		{"thread_registry", func(ctx context.Context) ([]Result, error) {
			hits, err := store.SearchThreads(ctx, vector, k, registrystore.ThreadFilter{
				Project:   project,
				StatusNot: model.ThreadResolved,
			})
			if err != nil {
				return nil, err
			}
			out := make([]Result, 0, len(hits))
			for i := range hits {
				out = append(out, normalizeThread(&hits[i]))
			}
			return out, nil
		}},
		{"priming_registry", func(ctx context.Context) ([]Result, error) {
			hits, err := store.SearchPriming(ctx, vector, k, project)
			if err != nil {
				return nil, err
			}
			out := make([]Result, 0, len(hits))
			for i := range hits {
				if hits[i].Status != model.PrimingActive {
					continue
				}
				out = append(out, normalizePriming(&hits[i]))
			}
			return out, nil
		}},
		{"patterns", func(ctx context.Context) ([]Result, error) {
			hits, err := store.SearchPatterns(ctx, vector, k, "")
			if err != nil {
				return nil, err
			}
			out := make([]Result, 0, len(hits))
			for i := range hits {
				out = append(out, normalizePattern(&hits[i]))
			}
			return out, nil
		}},
		{"conversations", func(ctx context.Context) ([]Result, error) {
			hits, err := store.SearchConversations(ctx, vector, k, project)
			if err != nil {
				return nil, err
			}
			out := make([]Result, 0, len(hits))
			for i := range hits {
				out = append(out, normalizeConversation(&hits[i]))
			}
			return out, nil
		}},
		{"messages", func(ctx context.Context) ([]Result, error) {
			hits, err := store.SearchMessages(ctx, vector, k, project)
			if err != nil {
				return nil, err
			}
			out := make([]Result, 0, len(hits))
			for i := range hits {
				out = append(out, normalizeMessage(&hits[i]))
			}
			return out, nil
		}},
	}

	// A failed collection degrades recall rather than failing it; the
	// caller can see which collections contributed.
	var (
		mu         sync.Mutex
		wg         sync.WaitGroup
		candidates []Result
		searched   []string
	)
	for _, s := range searches {
		wg.Add(1)
		go func(s searchFn) {
			defer wg.Done()
			results, err := s.run(ctx)
			if err != nil {
				log.Warn("collection search failed", "collection", s.name, "error", err)
				return
			}
			mu.Lock()
			candidates = append(candidates, results...)
			searched = append(searched, s.name)
			monitoring.RecallResults.WithLabelValues(s.name).Add(float64(len(results)))
			mu.Unlock()
		}(s)
	}
	wg.Wait()

	total := len(candidates)
	now := time.Now().UTC()
	scored := candidates[:0]
	for _, c := range candidates {
		c.Attention = e.Attention(&c, now)
		if c.Attention < minScore {
			continue
		}
		scored = append(scored, c)
	}

	e.enrichEntanglement(ctx, project, scored)

	results, contextText, used := trimToBudget(scored, budget)
	return &Output{
		Results:             results,
		ContextText:         contextText,
		TotalCandidates:     total,
		BudgetUsed:          used,
		CollectionsSearched: sortedStrings(searched),
	}, nil
}

// enrichEntanglement attaches cluster context from the cached scan to
// every result whose uuid appears in a cluster. Best-effort.
func (e *Engine) enrichEntanglement(ctx context.Context, project string, results []Result) {
	if e.scans == nil || len(results) == 0 {
		return
	}
	scan, err := e.scans.Latest(ctx, project)
	if err != nil {
		log.Warn("entanglement enrichment skipped", "error", err)
		return
	}
	if scan == nil {
		return
	}
	byUUID := map[string]*Entanglement{}
	for i := range scan.Clusters {
		c := &scan.Clusters[i]
		ent := &Entanglement{
			ClusterID:       c.ClusterID,
			ClusterProjects: c.Projects,
			ClusterSize:     len(c.Items),
			AvgSimilarity:   c.AvgSimilarity,
		}
		for _, item := range c.Items {
			byUUID[item.UUID] = ent
		}
	}
	for i := range results {
		if ent, ok := byUUID[results[i].UUID]; ok {
			results[i].Entanglement = ent
		}
	}
}

func normalizeDecision(d *model.Decision) Result {
	updated := d.UpdatedAt
	return Result{
		UUID:          d.UUID,
		LocalID:       d.LocalID,
		DisplayID:     d.GlobalDisplayID,
		Text:          truncate(d.Text, resultTextLimit),
		Source:        "decision_registry",
		Category:      model.CategoryDecision,
		Similarity:    d.Similarity,
		Project:       d.Project,
		EpistemicTier: d.EpistemicTier,
		Status:        string(d.Status),
		HasConflicts:  len(d.ConflictsWith) > 0,
		UpdatedAt:     &updated,
	}
}

func normalizeThread(t *model.Thread) Result {
	updated := t.UpdatedAt
	return Result{
		UUID:       t.UUID,
		LocalID:    t.LocalID,
		DisplayID:  t.GlobalDisplayID,
		Text:       truncate(t.Title, resultTextLimit),
		Source:     "thread_registry",
		Category:   model.CategoryThread,
		Similarity: t.Similarity,
		Project:    t.Project,
		Status:     string(t.Status),
		UpdatedAt:  &updated,
	}
}

func normalizePriming(p *model.PrimingBlock) Result {
	updated := p.UpdatedAt
	text := p.TerritoryName
	if p.KeysText != "" {
		text += ": " + p.KeysText
	}
	return Result{
		UUID:       p.UUID,
		Text:       truncate(text, resultTextLimit),
		Source:     "priming_registry",
		Category:   model.CategoryPriming,
		Similarity: p.Similarity,
		Project:    p.Project,
		Status:     string(p.Status),
		UpdatedAt:  &updated,
	}
}

func normalizePattern(p *model.Pattern) Result {
	updated := p.UpdatedAt
	return Result{
		UUID:       p.PatternID,
		Text:       truncate(p.Content, resultTextLimit),
		Source:     "patterns",
		Category:   model.CategoryPattern,
		Similarity: p.Similarity,
		Project:    p.SourceProjectName,
		UpdatedAt:  &updated,
	}
}

func normalizeConversation(c *model.Conversation) Result {
	updated := c.UpdatedAt
	text := c.Summary
	if text == "" {
		text = c.Name
	}
	return Result{
		UUID:       c.UUID,
		Text:       truncate(text, resultTextLimit),
		Source:     "conversations",
		Category:   model.CategoryConversation,
		Similarity: c.Similarity,
		Project:    c.ProjectName,
		UpdatedAt:  &updated,
	}
}

func normalizeMessage(m *model.Message) Result {
	created := m.CreatedAt
	return Result{
		UUID:       m.ConversationID,
		Text:       truncate(m.Text, resultTextLimit),
		Source:     "messages",
		Category:   model.CategoryMessage,
		Similarity: m.Similarity,
		Project:    m.ProjectName,
		UpdatedAt:  &created,
	}
}

func nowUTC() time.Time { return time.Now().UTC() }

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func sortedStrings(s []string) []string {
	out := append([]string(nil), s...)
	sort.Strings(out)
	return out
}
