package recall

import (
	"math"
	"time"
)

// Attention blends five signals into a [0,1] score. Conflicted items
// score higher so contested knowledge surfaces rather than hides.
func (e *Engine) Attention(r *Result, now time.Time) float64 {
	tier := 0.5
	if r.EpistemicTier != nil {
		tier = *r.EpistemicTier
	}
	conflict := 0.0
	if r.HasConflicts {
		conflict = 1.0
	}
	score := e.cfg.AttentionSimilarityWeight*r.Similarity +
		e.cfg.AttentionTierWeight*tier +
		e.cfg.AttentionFreshnessWeight*e.Freshness(r.UpdatedAt, now) +
		e.cfg.AttentionConflictWeight*conflict +
		e.cfg.AttentionCategoryWeight*r.Category.Boost()
	return math.Max(0, math.Min(1, score))
}

// Freshness decays with a configurable half-life. Missing timestamps
// score neutral; future timestamps score fresh.
func (e *Engine) Freshness(ts *time.Time, now time.Time) float64 {
	if ts == nil || ts.IsZero() {
		return 0.5
	}
	ageDays := now.Sub(*ts).Hours() / 24
	if ageDays < 0 {
		return 1.0
	}
	return math.Exp(-math.Ln2 * ageDays / e.cfg.AttentionHalfLifeDays)
}
