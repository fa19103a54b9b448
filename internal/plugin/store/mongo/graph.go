package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/forgeos/graph-service/internal/model"
	registrystore "github.com/forgeos/graph-service/internal/registry/store"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// ── Conversations ─────────────────────────────────────────────

func (s *GraphStore) GetConversationBySourceID(ctx context.Context, sourceID string) (*model.Conversation, error) {
	return s.findConversation(ctx, bson.M{"source_id": sourceID}, sourceID)
}

func (s *GraphStore) GetConversationByUUID(ctx context.Context, id string) (*model.Conversation, error) {
	return s.findConversation(ctx, bson.M{"uuid": id}, id)
}

func (s *GraphStore) FindConversationBySourceIDPrefix(ctx context.Context, prefix string) (*model.Conversation, error) {
	filter := bson.M{"source_id": bson.M{"$regex": "^" + regexp.QuoteMeta(prefix)}}
	return s.findConversation(ctx, filter, prefix)
}

func (s *GraphStore) FindConversationByName(ctx context.Context, nameSubstring string) (*model.Conversation, error) {
	filter := bson.M{"conversation_name": bson.M{
		"$regex":   regexp.QuoteMeta(nameSubstring),
		"$options": "i",
	}}
	return s.findConversation(ctx, filter, nameSubstring)
}

func (s *GraphStore) findConversation(ctx context.Context, filter bson.M, id string) (*model.Conversation, error) {
	var doc conversationDoc
	err := s.conversations().FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, &registrystore.NotFoundError{Resource: "conversation", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return doc.toModel(), nil
}

func (s *GraphStore) InsertConversation(ctx context.Context, c *model.Conversation) error {
	_, err := s.conversations().InsertOne(ctx, fromConversation(c))
	return err
}

func (s *GraphStore) UpdateConversation(ctx context.Context, uuid string, name, summary string, updatedAt time.Time) error {
	set := bson.M{"updated_at": updatedAt}
	if name != "" {
		set["conversation_name"] = name
	}
	if summary != "" {
		set["summary"] = summary
	}
	res, err := s.conversations().UpdateOne(ctx, bson.M{"uuid": uuid}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return &registrystore.NotFoundError{Resource: "conversation", ID: uuid}
	}
	return nil
}

func (s *GraphStore) ListProjects(ctx context.Context) ([]model.ProjectSummary, error) {
	pipeline := []bson.M{
		{"$group": bson.M{
			"_id":          "$project_name",
			"project_uuid": bson.M{"$first": "$project_uuid"},
			"count":        bson.M{"$sum": 1},
			"earliest_ms":  bson.M{"$min": "$created_at_ms"},
			"latest_ms":    bson.M{"$max": "$created_at_ms"},
		}},
		{"$sort": bson.M{"_id": 1}},
	}
	cur, err := s.conversations().Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer cur.Close(ctx)

	var rows []struct {
		ProjectName string `bson:"_id"`
		ProjectUUID string `bson:"project_uuid"`
		Count       int64  `bson:"count"`
		EarliestMs  int64  `bson:"earliest_ms"`
		LatestMs    int64  `bson:"latest_ms"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	out := make([]model.ProjectSummary, len(rows))
	for i, r := range rows {
		out[i] = model.ProjectSummary{
			ProjectName: r.ProjectName,
			ProjectUUID: r.ProjectUUID,
			Count:       r.Count,
			EarliestMs:  r.EarliestMs,
			LatestMs:    r.LatestMs,
		}
	}
	return out, nil
}

// ── Decisions ─────────────────────────────────────────────────

func (s *GraphStore) GetDecision(ctx context.Context, id string) (*model.Decision, error) {
	var doc decisionDoc
	err := s.decisions().FindOne(ctx, bson.M{"uuid": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, &registrystore.NotFoundError{Resource: "decision", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return doc.toModel(), nil
}

func (s *GraphStore) InsertDecision(ctx context.Context, d *model.Decision) error {
	_, err := s.decisions().InsertOne(ctx, fromDecision(d))
	return err
}

func (s *GraphStore) UpdateDecision(ctx context.Context, id string, u registrystore.DecisionUpdate, now time.Time) error {
	set := bson.M{
		"updated_at":           now,
		"last_validated":       now,
		"hops_since_validated": 0,
	}
	if u.Text != nil {
		set["text"] = *u.Text
	}
	if u.TextHash != nil {
		set["text_hash"] = *u.TextHash
	}
	if u.TextBlobRef != nil {
		set["text_blob_ref"] = *u.TextBlobRef
	}
	if u.Embedding != nil {
		set["embedding"] = u.Embedding
	}
	if u.EpistemicTier != nil {
		set["epistemic_tier"] = *u.EpistemicTier
	}
	if u.Status != nil {
		set["status"] = string(*u.Status)
	}
	if u.Dependencies != nil {
		set["dependencies"] = u.Dependencies
	}
	if u.Rationale != nil {
		set["rationale"] = *u.Rationale
	}
	res, err := s.decisions().UpdateOne(ctx, bson.M{"uuid": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return &registrystore.NotFoundError{Resource: "decision", ID: id}
	}
	return nil
}

func (s *GraphStore) TouchDecisionValidated(ctx context.Context, id string, now time.Time) error {
	res, err := s.decisions().UpdateOne(ctx, bson.M{"uuid": id}, bson.M{"$set": bson.M{
		"last_validated":       now,
		"hops_since_validated": 0,
		"updated_at":           now,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return &registrystore.NotFoundError{Resource: "decision", ID: id}
	}
	return nil
}

func (s *GraphStore) SupersedeDecision(ctx context.Context, id, supersededBy string, now time.Time) error {
	res, err := s.decisions().UpdateOne(ctx, bson.M{"uuid": id}, bson.M{"$set": bson.M{
		"status":        string(model.DecisionSuperseded),
		"superseded_by": supersededBy,
		"updated_at":    now,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return &registrystore.NotFoundError{Resource: "decision", ID: id}
	}
	return nil
}

func (s *GraphStore) ListDecisions(ctx context.Context, f registrystore.DecisionFilter) ([]model.Decision, error) {
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
	cur, err := s.decisions().Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var docs []decisionDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]model.Decision, len(docs))
	for i := range docs {
		out[i] = *docs[i].toModel()
	}
	return out, nil
}

func (s *GraphStore) IncrementDecisionHops(ctx context.Context, project string, exclude []string) (int64, error) {
	filter := bson.M{
		"project": project,
		"status":  string(model.DecisionActive),
	}
	if len(exclude) > 0 {
		filter["uuid"] = bson.M{"$nin": exclude}
	}
	res, err := s.decisions().UpdateMany(ctx, filter, bson.M{"$inc": bson.M{"hops_since_validated": 1}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// AddConflict records a conflict symmetrically on both decisions.
func (s *GraphStore) AddConflict(ctx context.Context, a, b string) error {
	if _, err := s.decisions().UpdateOne(ctx, bson.M{"uuid": a},
		bson.M{"$addToSet": bson.M{"conflicts_with": b}}); err != nil {
		return err
	}
	_, err := s.decisions().UpdateOne(ctx, bson.M{"uuid": b},
		bson.M{"$addToSet": bson.M{"conflicts_with": a}})
	return err
}

// ── Threads ───────────────────────────────────────────────────

func (s *GraphStore) GetThread(ctx context.Context, id string) (*model.Thread, error) {
	var doc threadDoc
	err := s.threads().FindOne(ctx, bson.M{"uuid": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, &registrystore.NotFoundError{Resource: "thread", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return doc.toModel(), nil
}

func (s *GraphStore) InsertThread(ctx context.Context, t *model.Thread) error {
	_, err := s.threads().InsertOne(ctx, fromThread(t))
	return err
}

func (s *GraphStore) UpdateThread(ctx context.Context, id string, u registrystore.ThreadUpdate, now time.Time) error {
	set := bson.M{
		"updated_at":           now,
		"last_validated":       now,
		"hops_since_validated": 0,
	}
	if u.Status != nil {
		set["status"] = string(*u.Status)
	}
	if u.Priority != nil {
		set["priority"] = string(*u.Priority)
	}
	if u.BlockedBy != nil {
		set["blocked_by"] = u.BlockedBy
	}
	if u.Embedding != nil {
		set["embedding"] = u.Embedding
	}
	res, err := s.threads().UpdateOne(ctx, bson.M{"uuid": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return &registrystore.NotFoundError{Resource: "thread", ID: id}
	}
	return nil
}

func (s *GraphStore) TouchThreadValidated(ctx context.Context, id string, now time.Time) error {
	res, err := s.threads().UpdateOne(ctx, bson.M{"uuid": id}, bson.M{"$set": bson.M{
		"last_validated":       now,
		"hops_since_validated": 0,
		"updated_at":           now,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return &registrystore.NotFoundError{Resource: "thread", ID: id}
	}
	return nil
}

func (s *GraphStore) ResolveThread(ctx context.Context, id, resolution, resolutionBlobRef string, now time.Time) error {
	set := bson.M{
		"status":     string(model.ThreadResolved),
		"resolution": resolution,
		"updated_at": now,
	}
	if resolutionBlobRef != "" {
		set["resolution_blob_ref"] = resolutionBlobRef
	}
	res, err := s.threads().UpdateOne(ctx, bson.M{"uuid": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return &registrystore.NotFoundError{Resource: "thread", ID: id}
	}
	return nil
}

func (s *GraphStore) ListThreads(ctx context.Context, f registrystore.ThreadFilter) ([]model.Thread, error) {
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
	cur, err := s.threads().Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var docs []threadDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]model.Thread, len(docs))
	for i := range docs {
		out[i] = *docs[i].toModel()
	}
	return out, nil
}

func (s *GraphStore) IncrementThreadHops(ctx context.Context, project string, exclude []string) (int64, error) {
	filter := bson.M{
		"project": project,
		"status":  bson.M{"$ne": string(model.ThreadResolved)},
	}
	if len(exclude) > 0 {
		filter["uuid"] = bson.M{"$nin": exclude}
	}
	res, err := s.threads().UpdateMany(ctx, filter, bson.M{"$inc": bson.M{"hops_since_validated": 1}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (s *GraphStore) ListThreadsMissingEmbeddings(ctx context.Context, limit int) ([]model.Thread, error) {
	filter := bson.M{"$or": []bson.M{
		{"embedding": bson.M{"$exists": false}},
		{"embedding": nil},
		{"embedding": bson.M{"$size": 0}},
	}}
	opts := optionsFindLimit(limit)
	cur, err := s.threads().Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var docs []threadDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]model.Thread, len(docs))
	for i := range docs {
		out[i] = *docs[i].toModel()
	}
	return out, nil
}

func (s *GraphStore) SetThreadEmbedding(ctx context.Context, id string, embedding []float32) error {
	res, err := s.threads().UpdateOne(ctx, bson.M{"uuid": id},
		bson.M{"$set": bson.M{"embedding": embedding}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return &registrystore.NotFoundError{Resource: "thread", ID: id}
	}
	return nil
}
