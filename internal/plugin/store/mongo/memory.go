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

// ── Events ────────────────────────────────────────────────────

func (s *GraphStore) AppendEvent(ctx context.Context, e *model.Event) error {
	_, err := s.events().InsertOne(ctx, bson.M{
		"event_type": e.EventType,
		"timestamp":  e.Timestamp,
		"details":    e.Details,
		"expires_at": e.ExpiresAt,
	})
	return err
}

func (s *GraphStore) ListEvents(ctx context.Context, eventType string, limit int) ([]model.Event, error) {
	filter := bson.M{}
	if eventType != "" {
		filter["event_type"] = eventType
	}
	opts := optionsFindLimit(limit).SetSort(bson.M{"timestamp": -1})
	cur, err := s.events().Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var docs []struct {
		EventType string         `bson:"event_type"`
		Timestamp time.Time      `bson:"timestamp"`
		Details   map[string]any `bson:"details"`
		ExpiresAt time.Time      `bson:"expires_at"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]model.Event, len(docs))
	for i, d := range docs {
		out[i] = model.Event{
			EventType: d.EventType,
			Timestamp: d.Timestamp,
			Details:   d.Details,
			ExpiresAt: d.ExpiresAt,
		}
	}
	return out, nil
}

// ── Patterns ──────────────────────────────────────────────────

func (s *GraphStore) InsertPattern(ctx context.Context, p *model.Pattern) error {
	meta := p.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	meta["merge_count"] = p.MergeCount
	doc := patternDoc{
		PatternID:            p.PatternID,
		PatternType:          string(p.PatternType),
		Content:              p.Content,
		Embedding:            p.Embedding,
		SuccessScore:         p.SuccessScore,
		RetrievalCount:       p.RetrievalCount,
		LastUsed:             p.LastUsed,
		Tags:                 emptyIfNil(p.Tags),
		SourceConversationID: p.SourceConversationID,
		SourceProjectName:    p.SourceProjectName,
		Metadata:             meta,
		CreatedAt:            p.CreatedAt,
		UpdatedAt:            p.UpdatedAt,
	}
	_, err := s.patterns().InsertOne(ctx, &doc)
	return err
}

// MergePattern folds a new observation into an existing pattern: the
// success score is replaced by the blended value the caller computed,
// and the merge counter in metadata is bumped.
func (s *GraphStore) MergePattern(ctx context.Context, patternID string, successScore float64, now time.Time) (*model.Pattern, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc patternDoc
	err := s.patterns().FindOneAndUpdate(ctx,
		bson.M{"pattern_id": patternID},
		bson.M{
			"$set": bson.M{
				"success_score": successScore,
				"last_used":     now,
				"updated_at":    now,
			},
			"$inc": bson.M{"metadata.merge_count": 1},
		},
		opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, &registrystore.NotFoundError{Resource: "pattern", ID: patternID}
	}
	if err != nil {
		return nil, err
	}
	return doc.toModel(), nil
}

// TouchPatterns records retrieval of a batch of patterns.
func (s *GraphStore) TouchPatterns(ctx context.Context, patternIDs []string, now time.Time) error {
	if len(patternIDs) == 0 {
		return nil
	}
	_, err := s.patterns().UpdateMany(ctx,
		bson.M{"pattern_id": bson.M{"$in": patternIDs}},
		bson.M{
			"$inc": bson.M{"retrieval_count": 1},
			"$set": bson.M{"last_used": now},
		})
	return err
}

// ── Archive ───────────────────────────────────────────────────

type archiveDoc struct {
	ArchiveID        string         `bson:"archive_id"`
	SourceCollection string         `bson:"source_collection"`
	SourceID         string         `bson:"source_id"`
	Content          string         `bson:"content"`
	RetentionPolicy  string         `bson:"retention_policy"`
	Metadata         map[string]any `bson:"metadata"`
	ExpiresAt        *time.Time     `bson:"expires_at,omitempty"`
	CreatedAt        time.Time      `bson:"created_at"`
}

func (d *archiveDoc) toModel() *model.ArchiveEntry {
	return &model.ArchiveEntry{
		ArchiveID:        d.ArchiveID,
		SourceCollection: d.SourceCollection,
		SourceID:         d.SourceID,
		Content:          d.Content,
		RetentionPolicy:  d.RetentionPolicy,
		Metadata:         d.Metadata,
		ExpiresAt:        d.ExpiresAt,
		CreatedAt:        d.CreatedAt,
	}
}

func (s *GraphStore) InsertArchive(ctx context.Context, e *model.ArchiveEntry) error {
	_, err := s.archive().InsertOne(ctx, &archiveDoc{
		ArchiveID:        e.ArchiveID,
		SourceCollection: e.SourceCollection,
		SourceID:         e.SourceID,
		Content:          e.Content,
		RetentionPolicy:  e.RetentionPolicy,
		Metadata:         e.Metadata,
		ExpiresAt:        e.ExpiresAt,
		CreatedAt:        e.CreatedAt,
	})
	return err
}

func (s *GraphStore) GetArchive(ctx context.Context, archiveID string) (*model.ArchiveEntry, error) {
	var doc archiveDoc
	err := s.archive().FindOne(ctx, bson.M{"archive_id": archiveID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, &registrystore.NotFoundError{Resource: "archive entry", ID: archiveID}
	}
	if err != nil {
		return nil, err
	}
	return doc.toModel(), nil
}

func (s *GraphStore) ListArchive(ctx context.Context, sourceCollection string, limit int) ([]model.ArchiveEntry, error) {
	filter := bson.M{}
	if sourceCollection != "" {
		filter["source_collection"] = sourceCollection
	}
	opts := optionsFindLimit(limit).SetSort(bson.M{"created_at": -1})
	cur, err := s.archive().Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var docs []archiveDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]model.ArchiveEntry, len(docs))
	for i := range docs {
		out[i] = *docs[i].toModel()
	}
	return out, nil
}

// ── Entanglement scans ────────────────────────────────────────

type scanDoc struct {
	ScanID           string           `bson:"scan_id"`
	ScannedAt        time.Time        `bson:"scanned_at"`
	Project          string           `bson:"project,omitempty"`
	Clusters         []model.Cluster  `bson:"clusters,omitempty"`
	Bridges          []model.Bridge   `bson:"bridges,omitempty"`
	LooseEnds        []model.ScanItem `bson:"loose_ends,omitempty"`
	Stats            model.ScanStats  `bson:"stats"`
	ClustersBlobRef  string           `bson:"clusters_blob_ref,omitempty"`
	BridgesBlobRef   string           `bson:"bridges_blob_ref,omitempty"`
	LooseEndsBlobRef string           `bson:"loose_ends_blob_ref,omitempty"`
}

func (d *scanDoc) toModel() *model.EntanglementScan {
	return &model.EntanglementScan{
		ScanID:           d.ScanID,
		ScannedAt:        d.ScannedAt,
		Project:          d.Project,
		Clusters:         d.Clusters,
		Bridges:          d.Bridges,
		LooseEnds:        d.LooseEnds,
		Stats:            d.Stats,
		ClustersBlobRef:  d.ClustersBlobRef,
		BridgesBlobRef:   d.BridgesBlobRef,
		LooseEndsBlobRef: d.LooseEndsBlobRef,
	}
}

func (s *GraphStore) SaveScan(ctx context.Context, scan *model.EntanglementScan) error {
	_, err := s.scans().InsertOne(ctx, &scanDoc{
		ScanID:           scan.ScanID,
		ScannedAt:        scan.ScannedAt,
		Project:          scan.Project,
		Clusters:         scan.Clusters,
		Bridges:          scan.Bridges,
		LooseEnds:        scan.LooseEnds,
		Stats:            scan.Stats,
		ClustersBlobRef:  scan.ClustersBlobRef,
		BridgesBlobRef:   scan.BridgesBlobRef,
		LooseEndsBlobRef: scan.LooseEndsBlobRef,
	})
	return err
}

// LatestScan returns the most recent scan for the project, or the most
// recent global scan when project is empty.
func (s *GraphStore) LatestScan(ctx context.Context, project string) (*model.EntanglementScan, error) {
	filter := bson.M{}
	if project != "" {
		filter["project"] = project
	} else {
		filter["project"] = bson.M{"$in": []any{nil, ""}}
	}
	opts := options.FindOne().SetSort(bson.M{"scanned_at": -1})
	var doc scanDoc
	err := s.scans().FindOne(ctx, filter, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, &registrystore.NotFoundError{Resource: "entanglement scan", ID: project}
	}
	if err != nil {
		return nil, err
	}
	return doc.toModel(), nil
}

// ── Roles and lenses ──────────────────────────────────────────

type roleDoc struct {
	Project     string    `bson:"project"`
	Role        string    `bson:"role"`
	Weight      float64   `bson:"weight"`
	GravityType string    `bson:"gravity_type"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func (s *GraphStore) UpsertProjectRole(ctx context.Context, r *model.ProjectRole) error {
	_, err := s.roles().UpdateOne(ctx,
		bson.M{"project": r.Project},
		bson.M{"$set": &roleDoc{
			Project:     r.Project,
			Role:        string(r.Role),
			Weight:      r.Weight,
			GravityType: string(r.GravityType),
			UpdatedAt:   r.UpdatedAt,
		}},
		options.UpdateOne().SetUpsert(true))
	return err
}

func (s *GraphStore) ListProjectRoles(ctx context.Context) ([]model.ProjectRole, error) {
	cur, err := s.roles().Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var docs []roleDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]model.ProjectRole, len(docs))
	for i, d := range docs {
		out[i] = model.ProjectRole{
			Project:     d.Project,
			Role:        model.Role(d.Role),
			Weight:      d.Weight,
			GravityType: model.GravityType(d.GravityType),
			UpdatedAt:   d.UpdatedAt,
		}
	}
	return out, nil
}

type lensDoc struct {
	Name          string           `bson:"name"`
	Lenses        []model.LensSpec `bson:"lenses"`
	DefaultBudget int              `bson:"default_budget"`
	UpdatedAt     time.Time        `bson:"updated_at"`
}

func (s *GraphStore) GetLensConfig(ctx context.Context, name string) (*model.LensConfig, error) {
	var doc lensDoc
	err := s.lenses().FindOne(ctx, bson.M{"name": name}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, &registrystore.NotFoundError{Resource: "lens config", ID: name}
	}
	if err != nil {
		return nil, err
	}
	return &model.LensConfig{
		Name:          doc.Name,
		Lenses:        doc.Lenses,
		DefaultBudget: doc.DefaultBudget,
		UpdatedAt:     doc.UpdatedAt,
	}, nil
}

func (s *GraphStore) SaveLensConfig(ctx context.Context, c *model.LensConfig) error {
	_, err := s.lenses().UpdateOne(ctx,
		bson.M{"name": c.Name},
		bson.M{"$set": &lensDoc{
			Name:          c.Name,
			Lenses:        c.Lenses,
			DefaultBudget: c.DefaultBudget,
			UpdatedAt:     c.UpdatedAt,
		}},
		options.UpdateOne().SetUpsert(true))
	return err
}
