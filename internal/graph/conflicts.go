package graph

import (
	"context"
	"math"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/forgeos/graph-service/internal/model"
	registrystore "github.com/forgeos/graph-service/internal/registry/store"
)

// ConflictSignal names the detector that produced a conflict.
type ConflictSignal string

const (
	SignalEmbeddingSimilarity ConflictSignal = "embedding_similarity"
	SignalEntityTierDivergence ConflictSignal = "entity_tier_divergence"
)

// ConflictSeverity grades a detected conflict.
type ConflictSeverity string

const (
	SeverityHigh   ConflictSeverity = "high"
	SeverityMedium ConflictSeverity = "medium"
)

// Conflict is one detected contradiction between two decisions.
type Conflict struct {
	UUID           string           `json:"uuid"`
	LocalID        string           `json:"local_id,omitempty"`
	Text           string           `json:"text"`
	Signal         ConflictSignal   `json:"signal"`
	Severity       ConflictSeverity `json:"severity"`
	Similarity     float64          `json:"similarity,omitempty"`
	TierDelta      float64          `json:"tier_delta,omitempty"`
	SharedEntities []string         `json:"shared_entities,omitempty"`
}

// localIDPattern matches decision and thread local IDs like D042 or T1234.
var localIDPattern = regexp.MustCompile(`\b[DT]\d{3,4}\b`)

// projectKeywords are domain terms treated as shared entities when they
// appear in both texts.
var projectKeywords = []string{
	"schema", "index", "cache", "pipeline", "migration", "embedding",
	"latency", "storage", "protocol", "auth", "budget", "registry",
}

// extractEntities pulls local IDs and known keywords from a text.
func extractEntities(text string) map[string]bool {
	entities := map[string]bool{}
	for _, id := range localIDPattern.FindAllString(text, -1) {
		entities[id] = true
	}
	lower := strings.ToLower(text)
	for _, kw := range projectKeywords {
		if strings.Contains(lower, kw) {
			entities[kw] = true
		}
	}
	return entities
}

func sharedEntities(a, b map[string]bool) []string {
	var shared []string
	for e := range a {
		if b[e] {
			shared = append(shared, e)
		}
	}
	return shared
}

// DetectConflicts runs the two-signal detector against the active
// decisions of a project. Callers treat it as best-effort.
func (r *Registry) DetectConflicts(ctx context.Context, text string, tier *float64, project, excludeUUID string, embedding []float32) ([]Conflict, error) {
	newHash := TextHash(text)
	flagged := map[string]bool{}
	var conflicts []Conflict

	// Signal 1: embedding similarity against active project decisions.
	if len(embedding) > 0 {
		hits, err := r.store.SearchDecisions(ctx, embedding, 10, registrystore.DecisionFilter{
			Project: project,
			Status:  model.DecisionActive,
		})
		if err != nil {
			return nil, err
		}
		for _, hit := range hits {
			if hit.UUID == excludeUUID || hit.TextHash == newHash {
				continue
			}
			if hit.Similarity < r.cfg.ConflictSimilarityThreshold {
				continue
			}
			severity := SeverityMedium
			if hit.Similarity > r.cfg.ConflictHighSimilarity {
				severity = SeverityHigh
			}
			flagged[hit.UUID] = true
			conflicts = append(conflicts, Conflict{
				UUID:       hit.UUID,
				LocalID:    hit.LocalID,
				Text:       hit.Text,
				Signal:     SignalEmbeddingSimilarity,
				Severity:   severity,
				Similarity: hit.Similarity,
			})
		}
	}

	// Signal 2: shared entities with diverging epistemic tiers.
	if tier != nil {
		newEntities := extractEntities(text)
		if len(newEntities) > 0 {
			existing, err := r.store.ListDecisions(ctx, registrystore.DecisionFilter{
				Project: project,
				Status:  model.DecisionActive,
			})
			if err != nil {
				return nil, err
			}
			for _, d := range existing {
				if d.UUID == excludeUUID || flagged[d.UUID] || d.EpistemicTier == nil {
					continue
				}
				shared := sharedEntities(newEntities, extractEntities(d.Text))
				if len(shared) == 0 {
					continue
				}
				delta := math.Abs(*tier - *d.EpistemicTier)
				if delta < r.cfg.ConflictTierDivergenceThreshold {
					continue
				}
				severity := SeverityMedium
				if delta > r.cfg.ConflictHighTierDivergence {
					severity = SeverityHigh
				}
				conflicts = append(conflicts, Conflict{
					UUID:           d.UUID,
					LocalID:        d.LocalID,
					Text:           d.Text,
					Signal:         SignalEntityTierDivergence,
					Severity:       severity,
					TierDelta:      delta,
					SharedEntities: shared,
				})
			}
		}
	}
	return conflicts, nil
}

// RegisterConflict records a conflict symmetrically on both decisions.
func (r *Registry) RegisterConflict(ctx context.Context, a, b string) error {
	return r.store.AddConflict(ctx, a, b)
}

// detectAndRegister runs detection and registration, swallowing faults
// so the triggering upsert still succeeds.
func (r *Registry) detectAndRegister(ctx context.Context, d *model.Decision) []Conflict {
	conflicts, err := r.DetectConflicts(ctx, d.Text, d.EpistemicTier, d.Project, d.UUID, d.Embedding)
	if err != nil {
		log.Warn("conflict detection failed", "decision", d.UUID, "error", err)
		return nil
	}
	for _, c := range conflicts {
		if err := r.RegisterConflict(ctx, d.UUID, c.UUID); err != nil {
			log.Warn("conflict registration failed", "a", d.UUID, "b", c.UUID, "error", err)
		}
	}
	return conflicts
}
