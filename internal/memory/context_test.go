package memory

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadedFixture() *LoadedContext {
	loaded := &LoadedContext{
		Sections: []ContextSection{
			{
				Name: "messages",
				Items: []ContextItem{
					{Text: strings.Repeat("m", 300), Similarity: 0.8, Source: "messages"},
					{Text: strings.Repeat("n", 300), Similarity: 0.6, Source: "messages"},
				},
			},
			{
				Name: "patterns",
				Items: []ContextItem{
					{Text: strings.Repeat("p", 300), Similarity: 0.7, Source: "patterns"},
				},
			},
		},
		TotalItems: 3,
	}
	loaded.ContextText = renderContext(loaded)
	return loaded
}

func TestResizeNoopWhenUnderBudget(t *testing.T) {
	loaded := loadedFixture()
	assert.Same(t, loaded, Resize(loaded, len(loaded.ContextText)+1))
	assert.Same(t, loaded, Resize(loaded, 0))
}

func TestResizeTrimsProportionally(t *testing.T) {
	loaded := loadedFixture()
	out := Resize(loaded, 450)

	require.NotSame(t, loaded, out)
	assert.LessOrEqual(t, len(out.ContextText), 450)
	// The messages section held two thirds of the text, so it keeps the
	// larger share after the trim.
	var messagesLen, patternsLen int
	for _, s := range out.Sections {
		for _, item := range s.Items {
			if s.Name == "messages" {
				messagesLen += len(item.Text)
			} else {
				patternsLen += len(item.Text)
			}
		}
	}
	assert.Greater(t, messagesLen, patternsLen)
}

func TestRenderContextFormatsSections(t *testing.T) {
	loaded := &LoadedContext{
		Sections: []ContextSection{
			{Name: "messages", Items: []ContextItem{{Text: "hello\nworld", Similarity: 0.9}}},
		},
	}
	text := renderContext(loaded)
	assert.Equal(t, "## messages\n- (0.90) hello world", text)
}
