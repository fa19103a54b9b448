package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/forgeos/graph-service/internal/model"
	registrystore "github.com/forgeos/graph-service/internal/registry/store"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ── Priming blocks ────────────────────────────────────────────

func (s *GraphStore) GetPriming(ctx context.Context, id string) (*model.PrimingBlock, error) {
	var doc primingDoc
	err := s.priming().FindOne(ctx, bson.M{"uuid": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, &registrystore.NotFoundError{Resource: "priming block", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return doc.toModel(), nil
}

func (s *GraphStore) UpsertPriming(ctx context.Context, p *model.PrimingBlock) (model.UpsertAction, error) {
	set := bson.M{
		"project":             p.Project,
		"project_uuid":        p.ProjectUUID,
		"territory_name":      p.TerritoryName,
		"territory_keys":      emptyIfNil(p.TerritoryKeys),
		"territory_keys_text": p.KeysText,
		"confidence_floor":    p.ConfidenceFloor,
		"findings_count":      p.FindingsCount,
		"status":              string(p.Status),
		"updated_at":          p.UpdatedAt,
	}
	if p.Embedding != nil {
		set["embedding"] = p.Embedding
	}
	update := bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{"uuid": p.UUID, "created_at": p.CreatedAt},
	}
	if len(p.SourceExpeditions) > 0 {
		update["$addToSet"] = bson.M{"source_expeditions": bson.M{"$each": p.SourceExpeditions}}
	}
	res, err := s.priming().UpdateOne(ctx, bson.M{"uuid": p.UUID}, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		return "", err
	}
	if res.MatchedCount > 0 {
		return model.ActionUpdated, nil
	}
	return model.ActionInserted, nil
}

func (s *GraphStore) SetPrimingStatus(ctx context.Context, id string, status model.PrimingStatus, now time.Time) error {
	res, err := s.priming().UpdateOne(ctx, bson.M{"uuid": id}, bson.M{"$set": bson.M{
		"status":     string(status),
		"updated_at": now,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return &registrystore.NotFoundError{Resource: "priming block", ID: id}
	}
	return nil
}

func (s *GraphStore) ListPriming(ctx context.Context, project string, status model.PrimingStatus) ([]model.PrimingBlock, error) {
	filter := bson.M{}
	if project != "" {
		filter["project"] = project
	}
	if status != "" {
		filter["status"] = string(status)
	}
	cur, err := s.priming().Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var docs []primingDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]model.PrimingBlock, len(docs))
	for i := range docs {
		out[i] = *docs[i].toModel()
	}
	return out, nil
}

// ── Expedition flags ──────────────────────────────────────────

func (s *GraphStore) GetFlag(ctx context.Context, id string) (*model.Flag, error) {
	var doc flagDoc
	err := s.flags().FindOne(ctx, bson.M{"uuid": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, &registrystore.NotFoundError{Resource: "flag", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return doc.toModel(), nil
}

// InsertFlag inserts a flag unless one with the same uuid exists; flag
// identity is deterministic, so duplicate plants are no-ops.
func (s *GraphStore) InsertFlag(ctx context.Context, f *model.Flag) (bool, error) {
	doc := bson.M{
		"uuid":            f.UUID,
		"project":         f.Project,
		"project_uuid":    f.ProjectUUID,
		"description":     f.Description,
		"category":        string(f.Category),
		"status":          string(f.Status),
		"conversation_id": f.ConversationID,
		"created_at":      f.CreatedAt,
		"updated_at":      f.UpdatedAt,
	}
	res, err := s.flags().UpdateOne(ctx,
		bson.M{"uuid": f.UUID},
		bson.M{"$setOnInsert": doc},
		options.UpdateOne().SetUpsert(true))
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 0, nil
}

func (s *GraphStore) MarkFlagCompiled(ctx context.Context, id, compiledInto string, now time.Time) error {
	res, err := s.flags().UpdateOne(ctx, bson.M{"uuid": id}, bson.M{"$set": bson.M{
		"status":        string(model.FlagCompiled),
		"compiled_into": compiledInto,
		"updated_at":    now,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return &registrystore.NotFoundError{Resource: "flag", ID: id}
	}
	return nil
}

func (s *GraphStore) ListFlags(ctx context.Context, project string, status model.FlagStatus, category model.FlagCategory) ([]model.Flag, error) {
	filter := bson.M{}
	if project != "" {
		filter["project"] = project
	}
	if status != "" {
		filter["status"] = string(status)
	}
	if category != "" {
		filter["category"] = string(category)
	}
	cur, err := s.flags().Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var docs []flagDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]model.Flag, len(docs))
	for i := range docs {
		out[i] = *docs[i].toModel()
	}
	return out, nil
}

// ── Compression registry ──────────────────────────────────────

func (s *GraphStore) GetCompression(ctx context.Context, tag string) (*model.Compression, error) {
	var doc compressionDoc
	err := s.compressions().FindOne(ctx, bson.M{"compression_tag": tag}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, &registrystore.NotFoundError{Resource: "compression", ID: tag}
	}
	if err != nil {
		return nil, err
	}
	return doc.toModel(), nil
}

// UpsertCompression merges list fields as sets; the checksum is only
// overwritten by a non-empty differing value.
func (s *GraphStore) UpsertCompression(ctx context.Context, c *model.Compression) (model.UpsertAction, error) {
	set := bson.M{
		"project":             c.Project,
		"source_conversation": c.SourceConversation,
		"updated_at":          c.UpdatedAt,
	}
	if c.Checksum != "" {
		set["checksum"] = c.Checksum
	}
	addToSet := bson.M{}
	if len(c.TargetConversations) > 0 {
		addToSet["target_conversations"] = bson.M{"$each": c.TargetConversations}
	}
	if len(c.DecisionsCaptured) > 0 {
		addToSet["decisions_captured"] = bson.M{"$each": c.DecisionsCaptured}
	}
	if len(c.ThreadsCaptured) > 0 {
		addToSet["threads_captured"] = bson.M{"$each": c.ThreadsCaptured}
	}
	if len(c.ArtifactsCaptured) > 0 {
		addToSet["artifacts_captured"] = bson.M{"$each": c.ArtifactsCaptured}
	}
	update := bson.M{
		"$set": set,
		"$setOnInsert": bson.M{
			"compression_tag":      c.Tag,
			"created_at":           c.CreatedAt,
			"target_conversations": []string{},
			"decisions_captured":   []string{},
			"threads_captured":     []string{},
			"artifacts_captured":   []string{},
		},
	}
	if len(addToSet) > 0 {
		update["$addToSet"] = addToSet
		// $setOnInsert and $addToSet may not touch the same fields
		onInsert := update["$setOnInsert"].(bson.M)
		for field := range addToSet {
			delete(onInsert, field)
		}
	}
	res, err := s.compressions().UpdateOne(ctx, bson.M{"compression_tag": c.Tag}, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		return "", err
	}
	if res.MatchedCount > 0 {
		return model.ActionUpdated, nil
	}
	return model.ActionInserted, nil
}

// ── Lineage edges ─────────────────────────────────────────────

func (s *GraphStore) GetLineageEdge(ctx context.Context, edgeUUID string) (*model.LineageEdge, error) {
	var doc lineageEdgeDoc
	err := s.lineageEdges().FindOne(ctx, bson.M{"edge_uuid": edgeUUID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, &registrystore.NotFoundError{Resource: "lineage edge", ID: edgeUUID}
	}
	if err != nil {
		return nil, err
	}
	return doc.toModel(), nil
}

// UpsertLineageEdge inserts on first call and merges list fields as sets
// on repeats, so re-ordered sync calls converge to the same edge state.
func (s *GraphStore) UpsertLineageEdge(ctx context.Context, e *model.LineageEdge) (model.UpsertAction, error) {
	set := bson.M{"updated_at": e.UpdatedAt}
	if e.CompressionTag != "" {
		set["compression_tag"] = e.CompressionTag
	}
	if e.SourceProject != "" {
		set["source_project"] = e.SourceProject
	}
	if e.TargetProject != "" {
		set["target_project"] = e.TargetProject
	}
	addToSet := bson.M{}
	for field, values := range map[string][]string{
		"decisions_carried": e.DecisionsCarried,
		"decisions_dropped": e.DecisionsDropped,
		"threads_carried":   e.ThreadsCarried,
		"threads_resolved":  e.ThreadsResolved,
	} {
		if len(values) > 0 {
			addToSet[field] = bson.M{"$each": values}
		}
	}
	onInsert := bson.M{
		"edge_uuid":           e.EdgeUUID,
		"source_conversation": e.SourceConversation,
		"target_conversation": e.TargetConversation,
		"created_at":          e.CreatedAt,
		"decisions_carried":   []string{},
		"decisions_dropped":   []string{},
		"threads_carried":     []string{},
		"threads_resolved":    []string{},
	}
	for field := range addToSet {
		delete(onInsert, field)
	}
	update := bson.M{"$set": set, "$setOnInsert": onInsert}
	if len(addToSet) > 0 {
		update["$addToSet"] = addToSet
	}
	res, err := s.lineageEdges().UpdateOne(ctx, bson.M{"edge_uuid": e.EdgeUUID}, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		return "", err
	}
	if res.MatchedCount > 0 {
		return model.ActionUpdated, nil
	}
	return model.ActionInserted, nil
}

func (s *GraphStore) FindEdgeByTarget(ctx context.Context, conversationUUID string) (*model.LineageEdge, error) {
	return s.findEdge(ctx, bson.M{"target_conversation": conversationUUID}, conversationUUID)
}

func (s *GraphStore) FindEdgeBySource(ctx context.Context, conversationUUID string) (*model.LineageEdge, error) {
	return s.findEdge(ctx, bson.M{"source_conversation": conversationUUID}, conversationUUID)
}

func (s *GraphStore) findEdge(ctx context.Context, filter bson.M, id string) (*model.LineageEdge, error) {
	var doc lineageEdgeDoc
	err := s.lineageEdges().FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, &registrystore.NotFoundError{Resource: "lineage edge", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return doc.toModel(), nil
}

func (s *GraphStore) ListLineageEdges(ctx context.Context, project string) ([]model.LineageEdge, error) {
	filter := bson.M{}
	if project != "" {
		filter = bson.M{"$or": []bson.M{
			{"source_project": project},
			{"target_project": project},
		}}
	}
	cur, err := s.lineageEdges().Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var docs []lineageEdgeDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]model.LineageEdge, len(docs))
	for i := range docs {
		out[i] = *docs[i].toModel()
	}
	return out, nil
}

// ── Display IDs ───────────────────────────────────────────────

// NextSequence atomically allocates the next sequence number for a
// (prefix, entityType) pair in a single round trip.
func (s *GraphStore) NextSequence(ctx context.Context, prefix, entityType string) (int64, error) {
	filter := bson.M{"project_prefix": prefix, "entity_type": entityType}
	update := bson.M{
		"$inc":         bson.M{"next_sequence": 1},
		"$setOnInsert": bson.M{"project_prefix": prefix, "entity_type": entityType},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc struct {
		NextSequence int64 `bson:"next_sequence"`
	}
	if err := s.counters().FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		return 0, err
	}
	return doc.NextSequence, nil
}

func (s *GraphStore) GetProjectPrefix(ctx context.Context, project string) (string, error) {
	var doc struct {
		ProjectPrefix string `bson:"project_prefix"`
	}
	err := s.counters().FindOne(ctx, bson.M{"project": project}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", &registrystore.NotFoundError{Resource: "display prefix", ID: project}
	}
	if err != nil {
		return "", err
	}
	return doc.ProjectPrefix, nil
}

func (s *GraphStore) SetProjectPrefix(ctx context.Context, project, prefix string) error {
	_, err := s.counters().UpdateOne(ctx,
		bson.M{"project": project},
		bson.M{"$set": bson.M{"project_prefix": prefix}},
		options.UpdateOne().SetUpsert(true))
	return err
}

func (s *GraphStore) RegisterDisplayID(ctx context.Context, e *model.DisplayIDEntry) error {
	_, err := s.displayIndex().UpdateOne(ctx,
		bson.M{"display_id": e.DisplayID},
		bson.M{"$set": bson.M{
			"display_id":  e.DisplayID,
			"entity_uuid": e.EntityUUID,
			"collection":  e.Collection,
			"project":     e.Project,
		}},
		options.UpdateOne().SetUpsert(true))
	return err
}

func (s *GraphStore) SetDisplayID(ctx context.Context, collection, entityUUID, displayID string) error {
	res, err := s.db.Collection(collection).UpdateOne(ctx,
		bson.M{"uuid": entityUUID},
		bson.M{"$set": bson.M{"global_display_id": displayID}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return &registrystore.NotFoundError{Resource: collection, ID: entityUUID}
	}
	return nil
}

func (s *GraphStore) ResolveDisplayID(ctx context.Context, displayID string) (*model.DisplayIDEntry, error) {
	var doc struct {
		DisplayID  string `bson:"display_id"`
		EntityUUID string `bson:"entity_uuid"`
		Collection string `bson:"collection"`
		Project    string `bson:"project"`
	}
	err := s.displayIndex().FindOne(ctx, bson.M{"display_id": displayID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, &registrystore.NotFoundError{Resource: "display id", ID: displayID}
	}
	if err != nil {
		return nil, err
	}
	return &model.DisplayIDEntry{
		DisplayID:  doc.DisplayID,
		EntityUUID: doc.EntityUUID,
		Collection: doc.Collection,
		Project:    doc.Project,
	}, nil
}
