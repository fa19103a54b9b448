package gravity

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeos/graph-service/internal/model"
	"github.com/forgeos/graph-service/internal/recall"
)

func TestResolveLensDefaultsWeight(t *testing.T) {
	lens, err := resolveLens(LensInput{Project: "forge", Role: model.RoleConnector})
	require.NoError(t, err)
	assert.Equal(t, 1.0, lens.Weight)
	assert.Equal(t, model.GravityLateral, lens.GravityType)
}

func TestResolveLensRejectsUnknownRole(t *testing.T) {
	_, err := resolveLens(LensInput{Project: "forge", Role: "astrologer"})
	assert.Error(t, err)
}

func TestJaccardIdenticalTexts(t *testing.T) {
	text := "use the same storage layer for every project here"
	score, ok := jaccard(text, text)
	require.True(t, ok)
	assert.Equal(t, 1.0, score)
}

func TestJaccardShortTextsNotComparable(t *testing.T) {
	_, ok := jaccard("too short", "also very short text")
	assert.False(t, ok)
}

func TestJaccardIgnoresCaseAndPunctuation(t *testing.T) {
	a := "Cache invalidation, naming things, and off-by-one errors!"
	b := "cache invalidation naming things and off-by-one errors"
	score, ok := jaccard(a, b)
	require.True(t, ok)
	assert.Equal(t, 1.0, score)
}

func lensOutput(project string, attentions ...float64) LensRecall {
	out := &recall.Output{}
	for _, a := range attentions {
		out.Results = append(out.Results, recall.Result{Attention: a})
	}
	top := 0.0
	if len(attentions) > 0 {
		top = attentions[0]
	}
	return LensRecall{Lens: Lens{Project: project}, Output: out, TopAttention: top}
}

func TestFieldCoherenceNeutralWhenEmpty(t *testing.T) {
	recalls := []LensRecall{lensOutput("a"), lensOutput("b")}
	assert.Equal(t, 0.5, fieldCoherence(recalls, nil, nil))
}

func TestFieldCoherenceRisesWithConvergence(t *testing.T) {
	recalls := []LensRecall{lensOutput("a", 0.8), lensOutput("b", 0.6)}
	base := fieldCoherence(recalls, nil, nil)
	converged := fieldCoherence(recalls, []Convergence{{CombinedMass: 1.0}}, nil)
	assert.Greater(t, converged, base)
}

func TestFieldCoherenceFallsWithTension(t *testing.T) {
	recalls := []LensRecall{lensOutput("a", 0.8), lensOutput("b", 0.6)}
	base := fieldCoherence(recalls, nil, nil)
	tense := fieldCoherence(recalls, nil, []Divergence{{TensionScore: 1.0}})
	assert.Less(t, tense, base)
}

func TestFieldCoherenceClamped(t *testing.T) {
	recalls := []LensRecall{lensOutput("a", 0.1)}
	high := fieldCoherence(recalls, []Convergence{{CombinedMass: 100}}, nil)
	assert.LessOrEqual(t, high, 1.0)
	low := fieldCoherence(recalls, nil, []Divergence{{TensionScore: 100}})
	assert.GreaterOrEqual(t, low, 0.0)
}

func TestComposeRespectsBudget(t *testing.T) {
	field := &Field{
		Lenses: []LensRecall{
			{
				Lens:         Lens{Project: "forge", GravityType: model.GravityLateral},
				Output:       &recall.Output{Results: []recall.Result{{Attention: 0.9}}, ContextText: "[decision] D001 (forge) something"},
				TopAttention: 0.9,
			},
		},
		Convergences: []Convergence{{Type: "semantic_overlap", LensA: "forge", LensB: "atlas", CombinedMass: 1.2, TextA: "a", TextB: "b"}},
		Divergences:  []Divergence{{Type: "gap", LensA: "forge", LensB: "atlas", TensionScore: 0.6}},
		Coherence:    0.7,
	}
	text := compose(field, 5000)
	assert.Contains(t, text, "## Convergences")
	assert.Contains(t, text, "## Lens forge")
	assert.Contains(t, text, "## Divergences")

	small := compose(field, 60)
	assert.LessOrEqual(t, len(small), 60)
}

func TestComposeCapsDivergenceNotes(t *testing.T) {
	var divs []Divergence
	for i := 0; i < 6; i++ {
		divs = append(divs, Divergence{Type: "gap", LensA: "a", LensB: "b", TensionScore: 0.6})
	}
	field := &Field{Divergences: divs, Coherence: 0.5}
	text := compose(field, 5000)
	assert.Equal(t, 3, strings.Count(text, "- [gap]"))
}
