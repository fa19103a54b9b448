package voyage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/forgeos/graph-service/internal/config"
	registryembed "github.com/forgeos/graph-service/internal/registry/embed"
)

const defaultBaseURL = "https://api.voyageai.com/v1"

func init() {
	registryembed.Register(registryembed.Plugin{
		Name:   "voyage",
		Loader: load,
	})
}

func load(ctx context.Context) (registryembed.Embedder, error) {
	cfg := config.FromContext(ctx)
	if cfg == nil || cfg.EmbedAPIKey == "" {
		return nil, fmt.Errorf("voyage embedder: FORGE_EMBED_API_KEY is required")
	}
	batch := cfg.EmbedBatchSize
	if batch <= 0 {
		batch = 128
	}
	return &VoyageEmbedder{
		apiKey:     cfg.EmbedAPIKey,
		model:      cfg.EmbedModel,
		dimensions: cfg.EmbedDims,
		batchSize:  batch,
	}, nil
}

type VoyageEmbedder struct {
	apiKey     string
	model      string
	dimensions int
	batchSize  int
}

func (e *VoyageEmbedder) ModelName() string {
	return e.model
}

func (e *VoyageEmbedder) Dimension() int {
	return e.dimensions
}

type embeddingRequest struct {
	Input           []string `json:"input"`
	Model           string   `json:"model"`
	InputType       string   `json:"input_type,omitempty"`
	OutputDimension *int     `json:"output_dimension,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Detail string `json:"detail"`
}

// EmbedTexts embeds documents, splitting the input into API-sized batches.
func (e *VoyageEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		batch, err := e.embed(ctx, texts[start:end], "document")
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}

// EmbedQuery embeds a search query with the query-side encoding.
func (e *VoyageEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embed(ctx, []string{text}, "query")
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *VoyageEmbedder) embed(ctx context.Context, texts []string, inputType string) ([][]float32, error) {
	reqBody, err := json.Marshal(embeddingRequest{
		Input:           texts,
		Model:           e.model,
		InputType:       inputType,
		OutputDimension: ptrIfPositive(e.dimensions),
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, defaultBaseURL+"/embeddings", bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("voyage embed request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("voyage embed: read response: %w", err)
	}

	var result embeddingResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("voyage embed: parse response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("voyage embed: status %d: %s", resp.StatusCode, result.Detail)
	}
	if len(result.Data) != len(texts) {
		return nil, fmt.Errorf("voyage embed: expected %d embeddings, got %d", len(texts), len(result.Data))
	}

	// The API may return results in any order; place by index.
	embeddings := make([][]float32, len(texts))
	for _, d := range result.Data {
		embeddings[d.Index] = d.Embedding
	}
	return embeddings, nil
}

func ptrIfPositive(v int) *int {
	if v <= 0 {
		return nil
	}
	return &v
}
