package recall

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeos/graph-service/internal/model"
)

func TestRenderLineFlattensNewlines(t *testing.T) {
	r := &Result{
		Category:  model.CategoryDecision,
		DisplayID: "FRG-D-0007",
		Project:   "forge",
		Text:      "line one\nline two",
	}
	line := renderLine(r)
	assert.Equal(t, "[decision] FRG-D-0007 (forge) line one line two", line)
}

func TestRenderLineFallsBackToUUIDPrefix(t *testing.T) {
	r := &Result{
		Category: model.CategoryThread,
		UUID:     "0123456789abcdef",
		Text:     "untitled",
	}
	line := renderLine(r)
	assert.Contains(t, line, "01234567")
	assert.NotContains(t, line, "89abcdef")
}

func TestTrimToBudgetOrdersByAttention(t *testing.T) {
	results := []Result{
		{Category: model.CategoryDecision, LocalID: "D001", Text: "low", Attention: 0.2},
		{Category: model.CategoryDecision, LocalID: "D002", Text: "high", Attention: 0.9},
	}
	included, text, used := trimToBudget(results, 1000)

	require.Len(t, included, 2)
	assert.Equal(t, "D002", included[0].LocalID)
	assert.Equal(t, len(text), used)
	assert.True(t, strings.Index(text, "high") < strings.Index(text, "low"))
}

func TestTrimToBudgetTruncatesBoundaryLine(t *testing.T) {
	long := strings.Repeat("x", 300)
	results := []Result{
		{Category: model.CategoryDecision, LocalID: "D001", Text: long, Attention: 0.9},
		{Category: model.CategoryDecision, LocalID: "D002", Text: long, Attention: 0.5},
	}
	budget := 400
	included, text, used := trimToBudget(results, budget)

	// The second line does not fit whole, but its tail is at least
	// minTailChars, so it is truncated rather than dropped.
	require.Len(t, included, 2)
	assert.LessOrEqual(t, used, budget)
	assert.Equal(t, len(text), used)
	assert.Equal(t, budget, used)
}

func TestTrimToBudgetDropsTinyTail(t *testing.T) {
	results := []Result{
		{Category: model.CategoryDecision, LocalID: "D001", Text: strings.Repeat("x", 200), Attention: 0.9},
		{Category: model.CategoryDecision, LocalID: "D002", Text: strings.Repeat("y", 200), Attention: 0.5},
	}
	// Budget leaves fewer than minTailChars for the second line.
	budget := 230
	included, text, used := trimToBudget(results, budget)

	require.Len(t, included, 1)
	assert.NotContains(t, text, "y")
	assert.Equal(t, len(text), used)
}

func TestTrimToBudgetEmptyInput(t *testing.T) {
	included, text, used := trimToBudget(nil, 100)
	assert.Empty(t, included)
	assert.Empty(t, text)
	assert.Zero(t, used)
}
