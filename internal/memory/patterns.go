package memory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/forgeos/graph-service/internal/config"
	registryembed "github.com/forgeos/graph-service/internal/registry/embed"
	registrystore "github.com/forgeos/graph-service/internal/registry/store"

	"github.com/forgeos/graph-service/internal/model"
)

// patternContentLimit caps stored pattern content.
const patternContentLimit = 4000

// PatternStore is the self-merging pattern memory: storing a pattern
// close enough to an existing one of the same type folds them together
// instead of inserting a near-duplicate.
type PatternStore struct {
	store  registrystore.GraphStore
	embed  registryembed.Embedder
	events *Emitter
	cfg    *config.Config
}

// NewPatternStore creates a PatternStore.
func NewPatternStore(store registrystore.GraphStore, embed registryembed.Embedder, events *Emitter, cfg *config.Config) *PatternStore {
	return &PatternStore{store: store, embed: embed, events: events, cfg: cfg}
}

// PatternInput carries one pattern submission.
type PatternInput struct {
	PatternType          model.PatternType
	Content              string
	SuccessScore         float64
	Tags                 []string
	SourceConversationID string
	SourceProjectName    string
	Metadata             map[string]any
}

// Store embeds the content and either merges into a sufficiently
// similar existing pattern or inserts a new one. The merge attempt is
// best-effort; a merge fault degrades to an insert.
func (p *PatternStore) Store(ctx context.Context, in PatternInput) (*model.Pattern, model.UpsertAction, error) {
	if in.Content == "" {
		return nil, "", &registrystore.ValidationError{Field: "content", Message: "required"}
	}
	if in.PatternType == "" {
		return nil, "", &registrystore.ValidationError{Field: "pattern_type", Message: "required"}
	}
	if in.SuccessScore < 0 || in.SuccessScore > 1 {
		return nil, "", &registrystore.ValidationError{Field: "success_score", Message: "must be in [0,1]"}
	}
	content := in.Content
	if len(content) > patternContentLimit {
		content = content[:patternContentLimit]
	}

	var vector []float32
	if p.embed != nil {
		v, err := p.embed.EmbedTexts(ctx, []string{content})
		if err != nil || len(v) != 1 {
			log.Warn("pattern embedding failed, storing zero vector", "error", err)
			vector = make([]float32, p.embed.Dimension())
		} else {
			vector = v[0]
		}
	}

	if similar, err := p.store.FindSimilarPattern(ctx, vector, in.PatternType); err == nil && similar != nil &&
		similar.Similarity >= p.cfg.PatternMergeThreshold {
		blended := (similar.SuccessScore + in.SuccessScore) / 2
		merged, err := p.store.MergePattern(ctx, similar.PatternID, blended, time.Now().UTC())
		if err == nil {
			p.events.Emit(ctx, EventPatternMerged, map[string]any{
				"pattern_id": merged.PatternID,
				"similarity": similar.Similarity,
			})
			return merged, model.ActionUpdated, nil
		}
		log.Warn("pattern merge failed, inserting instead", "pattern_id", similar.PatternID, "error", err)
	}

	now := time.Now().UTC()
	pattern := &model.Pattern{
		PatternID:            "pat_" + randomHex(6),
		PatternType:          in.PatternType,
		Content:              content,
		Embedding:            vector,
		SuccessScore:         in.SuccessScore,
		MergeCount:           1,
		Tags:                 in.Tags,
		SourceConversationID: in.SourceConversationID,
		SourceProjectName:    in.SourceProjectName,
		Metadata:             in.Metadata,
		LastUsed:             now,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := p.store.InsertPattern(ctx, pattern); err != nil {
		return nil, "", err
	}
	p.events.Emit(ctx, EventPatternStored, map[string]any{
		"pattern_id":   pattern.PatternID,
		"pattern_type": string(pattern.PatternType),
	})
	return pattern, model.ActionInserted, nil
}

// Match returns the patterns most relevant to the query, confidence
// ranked, and bumps their retrieval counters.
func (p *PatternStore) Match(ctx context.Context, query string, patternType model.PatternType, limit int) ([]model.Pattern, error) {
	if p.embed == nil {
		return nil, &registrystore.ValidationError{Field: "query", Message: "no embedder configured"}
	}
	if limit <= 0 {
		limit = p.cfg.PatternDefaultLimit
	}
	vector, err := p.embed.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	hits, err := p.store.SearchPatterns(ctx, vector, limit, patternType)
	if err != nil {
		return nil, err
	}
	for i := range hits {
		hits[i].Confidence = p.cfg.PatternConfidenceSimWeight*hits[i].Similarity +
			p.cfg.PatternConfidenceScoreWeight*hits[i].SuccessScore
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Confidence > hits[j].Confidence })

	if len(hits) > 0 {
		ids := make([]string, len(hits))
		for i, h := range hits {
			ids[i] = h.PatternID
		}
		if err := p.store.TouchPatterns(ctx, ids, time.Now().UTC()); err != nil {
			log.Warn("pattern touch failed", "error", err)
		}
		p.events.Emit(ctx, EventPatternMatched, map[string]any{
			"query_type": string(patternType),
			"count":      len(hits),
		})
	}
	return hits, nil
}

// randomHex returns 2n hex chars of randomness.
func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err) // crypto/rand never fails on supported platforms
	}
	return hex.EncodeToString(b)
}
