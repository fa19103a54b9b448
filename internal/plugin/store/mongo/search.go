package mongo

import (
	"context"
	"fmt"

	"github.com/forgeos/graph-service/internal/model"
	registrystore "github.com/forgeos/graph-service/internal/registry/store"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// vectorSearch runs an Atlas $vectorSearch pipeline over a collection,
// annotating each hit with its similarity and stripping the embedding.
func (s *GraphStore) vectorSearch(ctx context.Context, col *mongo.Collection, vector []float32, k int, filter bson.M, out any) error {
	search := bson.M{
		"index":         s.vectorIndex,
		"path":          "embedding",
		"queryVector":   vector,
		"numCandidates": k * 10,
		"limit":         k,
	}
	if len(filter) > 0 {
		search["filter"] = filter
	}
	pipeline := []bson.M{
		{"$vectorSearch": search},
		{"$addFields": bson.M{"similarity": bson.M{"$meta": "vectorSearchScore"}}},
		{"$project": bson.M{"embedding": 0}},
	}
	cur, err := col.Aggregate(ctx, pipeline)
	if err != nil {
		return fmt.Errorf("vector search on %s: %w", col.Name(), err)
	}
	defer cur.Close(ctx)
	return cur.All(ctx, out)
}

// SearchDecisions finds the k nearest decisions matching the filter.
func (s *GraphStore) SearchDecisions(ctx context.Context, vector []float32, k int, f registrystore.DecisionFilter) ([]model.Decision, error) {
	filter := bson.M{}
	if f.Project != "" {
		filter["project"] = f.Project
	}
	if f.ProjectNot != "" {
		filter["project"] = bson.M{"$ne": f.ProjectNot}
	}
	if f.Status != "" {
		filter["status"] = string(f.Status)
	}
	var docs []decisionDoc
	if err := s.vectorSearch(ctx, s.decisions(), vector, k, filter, &docs); err != nil {
		return nil, err
	}
	out := make([]model.Decision, len(docs))
	for i := range docs {
		out[i] = *docs[i].toModel()
	}
	return out, nil
}

// SearchThreads finds the k nearest threads matching the filter.
func (s *GraphStore) SearchThreads(ctx context.Context, vector []float32, k int, f registrystore.ThreadFilter) ([]model.Thread, error) {
	filter := bson.M{}
	if f.Project != "" {
		filter["project"] = f.Project
	}
	if f.ProjectNot != "" {
		filter["project"] = bson.M{"$ne": f.ProjectNot}
	}
	if f.Status != "" {
		filter["status"] = string(f.Status)
	} else if f.StatusNot != "" {
		filter["status"] = bson.M{"$ne": string(f.StatusNot)}
	}
	var docs []threadDoc
	if err := s.vectorSearch(ctx, s.threads(), vector, k, filter, &docs); err != nil {
		return nil, err
	}
	out := make([]model.Thread, len(docs))
	for i := range docs {
		out[i] = *docs[i].toModel()
	}
	return out, nil
}

// SearchPriming finds the k nearest active priming blocks.
func (s *GraphStore) SearchPriming(ctx context.Context, vector []float32, k int, project string) ([]model.PrimingBlock, error) {
	filter := bson.M{"status": "active"}
	if project != "" {
		filter["project"] = project
	}
	var docs []primingDoc
	if err := s.vectorSearch(ctx, s.priming(), vector, k, filter, &docs); err != nil {
		return nil, err
	}
	out := make([]model.PrimingBlock, len(docs))
	for i := range docs {
		out[i] = *docs[i].toModel()
	}
	return out, nil
}

// SearchPatterns finds the k nearest patterns, optionally by type.
func (s *GraphStore) SearchPatterns(ctx context.Context, vector []float32, k int, patternType model.PatternType) ([]model.Pattern, error) {
	filter := bson.M{}
	if patternType != "" {
		filter["pattern_type"] = string(patternType)
	}
	var docs []patternDoc
	if err := s.vectorSearch(ctx, s.patterns(), vector, k, filter, &docs); err != nil {
		return nil, err
	}
	out := make([]model.Pattern, len(docs))
	for i := range docs {
		out[i] = *docs[i].toModel()
	}
	return out, nil
}

// FindSimilarPattern returns the single nearest pattern of the given type.
func (s *GraphStore) FindSimilarPattern(ctx context.Context, vector []float32, patternType model.PatternType) (*model.Pattern, error) {
	hits, err := s.SearchPatterns(ctx, vector, 1, patternType)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}
	return &hits[0], nil
}

type rawConversationDoc struct {
	ConversationID string  `bson:"conversation_id"`
	ProjectName    string  `bson:"project_name"`
	Name           string  `bson:"name,omitempty"`
	Summary        string  `bson:"summary,omitempty"`
	Similarity     float64 `bson:"similarity,omitempty"`
}

// SearchConversations searches the raw ingested conversation summaries.
func (s *GraphStore) SearchConversations(ctx context.Context, vector []float32, k int, projectName string) ([]model.Conversation, error) {
	filter := bson.M{}
	if projectName != "" {
		filter["project_name"] = projectName
	}
	var docs []rawConversationDoc
	if err := s.vectorSearch(ctx, s.rawConversations(), vector, k, filter, &docs); err != nil {
		return nil, err
	}
	out := make([]model.Conversation, len(docs))
	for i, d := range docs {
		out[i] = model.Conversation{
			UUID:        d.ConversationID,
			SourceID:    d.ConversationID,
			ProjectName: d.ProjectName,
			Name:        d.Name,
			Summary:     d.Summary,
			Similarity:  d.Similarity,
		}
	}
	return out, nil
}

type rawMessageDoc struct {
	ConversationID string  `bson:"conversation_id"`
	ProjectName    string  `bson:"project_name"`
	Sender         string  `bson:"sender"`
	Text           string  `bson:"text"`
	Similarity     float64 `bson:"similarity,omitempty"`
}

// SearchMessages searches the raw ingested messages.
func (s *GraphStore) SearchMessages(ctx context.Context, vector []float32, k int, projectName string) ([]model.Message, error) {
	filter := bson.M{}
	if projectName != "" {
		filter["project_name"] = projectName
	}
	var docs []rawMessageDoc
	if err := s.vectorSearch(ctx, s.rawMessages(), vector, k, filter, &docs); err != nil {
		return nil, err
	}
	out := make([]model.Message, len(docs))
	for i, d := range docs {
		out[i] = model.Message{
			ConversationID: d.ConversationID,
			ProjectName:    d.ProjectName,
			Sender:         d.Sender,
			Text:           d.Text,
			Similarity:     d.Similarity,
		}
	}
	return out, nil
}
