package local

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/forgeos/graph-service/internal/config"
	registryembed "github.com/forgeos/graph-service/internal/registry/embed"
)

const modelName = "hashing-bow"

func init() {
	registryembed.Register(registryembed.Plugin{
		Name: "local",
		Loader: func(ctx context.Context) (registryembed.Embedder, error) {
			dim := 384
			if cfg := config.FromContext(ctx); cfg != nil && cfg.EmbedDims > 0 {
				dim = cfg.EmbedDims
			}
			return &LocalEmbedder{dim: dim}, nil
		},
	})
}

// LocalEmbedder is a deterministic hashing bag-of-words embedder for
// development and tests. Similar texts get similar vectors; nothing more
// is promised.
type LocalEmbedder struct {
	dim int
}

func (e *LocalEmbedder) ModelName() string {
	return modelName
}

func (e *LocalEmbedder) Dimension() int {
	return e.dim
}

func (e *LocalEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		results[i] = e.embedOne(text)
	}
	return results, nil
}

func (e *LocalEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.embedOne(text), nil
}

func (e *LocalEmbedder) embedOne(text string) []float32 {
	vector := make([]float32, e.dim)
	for _, tok := range tokenize(text) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		i := int(h.Sum64() % uint64(e.dim))
		vector[i] += 1
	}
	norm := float32(0)
	for _, v := range vector {
		norm += v * v
	}
	if norm == 0 {
		return vector
	}
	inv := 1 / float32(math.Sqrt(float64(norm)))
	for i := range vector {
		vector[i] *= inv
	}
	return vector
}

func tokenize(text string) []string {
	text = strings.TrimSpace(strings.ToLower(text))
	if text == "" {
		return nil
	}
	return strings.FieldsFunc(text, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsNumber(r))
	})
}

var _ registryembed.Embedder = (*LocalEmbedder)(nil)
