package recall

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/forgeos/graph-service/internal/config"
	"github.com/forgeos/graph-service/internal/model"
)

func testEngine() *Engine {
	cfg := config.DefaultConfig()
	return NewEngine(nil, nil, &cfg)
}

func TestFreshnessMissingTimestampIsNeutral(t *testing.T) {
	e := testEngine()
	now := time.Now()

	assert.Equal(t, 0.5, e.Freshness(nil, now))
	var zero time.Time
	assert.Equal(t, 0.5, e.Freshness(&zero, now))
}

func TestFreshnessFutureTimestampIsFresh(t *testing.T) {
	e := testEngine()
	now := time.Now()
	future := now.Add(24 * time.Hour)

	assert.Equal(t, 1.0, e.Freshness(&future, now))
}

func TestFreshnessHalvesAtHalfLife(t *testing.T) {
	e := testEngine()
	now := time.Now()
	halfLife := now.Add(-30 * 24 * time.Hour)

	assert.InDelta(t, 0.5, e.Freshness(&halfLife, now), 0.001)
}

func TestAttentionPerfectDecisionNearsOne(t *testing.T) {
	e := testEngine()
	now := time.Now()
	tier := 1.0
	r := &Result{
		Similarity:    1.0,
		EpistemicTier: &tier,
		HasConflicts:  true,
		Category:      model.CategoryDecision,
		UpdatedAt:     &now,
	}

	score := e.Attention(r, now)
	assert.InDelta(t, 1.0, score, 0.001)
}

func TestAttentionConflictRaisesScore(t *testing.T) {
	e := testEngine()
	now := time.Now()

	base := &Result{Similarity: 0.5, Category: model.CategoryDecision, UpdatedAt: &now}
	conflicted := &Result{Similarity: 0.5, Category: model.CategoryDecision, UpdatedAt: &now, HasConflicts: true}

	assert.Greater(t, e.Attention(conflicted, now), e.Attention(base, now))
}

func TestAttentionMissingTierScoresNeutral(t *testing.T) {
	e := testEngine()
	now := time.Now()
	mid := 0.5

	withTier := &Result{Similarity: 0.7, EpistemicTier: &mid, Category: model.CategoryThread, UpdatedAt: &now}
	noTier := &Result{Similarity: 0.7, Category: model.CategoryThread, UpdatedAt: &now}

	assert.Equal(t, e.Attention(withTier, now), e.Attention(noTier, now))
}

func TestAttentionClampedToUnitInterval(t *testing.T) {
	e := testEngine()
	now := time.Now()

	r := &Result{Similarity: -5}
	assert.GreaterOrEqual(t, e.Attention(r, now), 0.0)

	tier := 1.0
	r = &Result{Similarity: 5, EpistemicTier: &tier, HasConflicts: true, Category: model.CategoryDecision, UpdatedAt: &now}
	assert.LessOrEqual(t, e.Attention(r, now), 1.0)
}

func TestAttentionCategoryOrdering(t *testing.T) {
	e := testEngine()
	now := time.Now()

	decision := &Result{Similarity: 0.5, Category: model.CategoryDecision, UpdatedAt: &now}
	message := &Result{Similarity: 0.5, Category: model.CategoryMessage, UpdatedAt: &now}

	assert.Greater(t, e.Attention(decision, now), e.Attention(message, now))
}
