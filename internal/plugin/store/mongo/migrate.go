package mongo

import (
	"context"
	"fmt"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/forgeos/graph-service/internal/config"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type migrator struct{}

func (m *migrator) Name() string { return "mongo" }

// indexLayout maps each collection to its regular indexes. TTL sweeps are
// expressed as expireAfterSeconds=0 on expires_at so each document carries
// its own deadline.
func indexLayout() map[string][]mongo.IndexModel {
	unique := options.Index().SetUnique(true)
	ttl := options.Index().SetExpireAfterSeconds(0)
	return map[string][]mongo.IndexModel{
		"conversation_registry": {
			{Keys: bson.D{{Key: "uuid", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "source_id", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "project_name", Value: 1}}},
		},
		"decision_registry": {
			{Keys: bson.D{{Key: "uuid", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "project", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "local_id", Value: 1}}},
			{Keys: bson.D{{Key: "text_hash", Value: 1}}},
		},
		"thread_registry": {
			{Keys: bson.D{{Key: "uuid", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "project", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "local_id", Value: 1}}},
		},
		"priming_registry": {
			{Keys: bson.D{{Key: "uuid", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "project", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "territory_name", Value: 1}}},
		},
		"expedition_flags": {
			{Keys: bson.D{{Key: "uuid", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "project", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "category", Value: 1}}},
		},
		"compression_registry": {
			{Keys: bson.D{{Key: "compression_tag", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "project", Value: 1}}},
		},
		"lineage_edges": {
			{Keys: bson.D{{Key: "edge_uuid", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "source_conversation", Value: 1}}},
			{Keys: bson.D{{Key: "target_conversation", Value: 1}}},
		},
		"display_id_counters": {
			{Keys: bson.D{{Key: "project_prefix", Value: 1}, {Key: "entity_type", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "project", Value: 1}}, Options: options.Index().SetSparse(true)},
		},
		"display_id_index": {
			{Keys: bson.D{{Key: "display_id", Value: 1}}, Options: unique},
		},
		"memory_events": {
			{Keys: bson.D{{Key: "event_type", Value: 1}, {Key: "timestamp", Value: -1}}},
			{Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: ttl},
		},
		"patterns": {
			{Keys: bson.D{{Key: "pattern_id", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "pattern_type", Value: 1}}},
		},
		"memory_archive": {
			{Keys: bson.D{{Key: "archive_id", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "source_collection", Value: 1}}},
			{Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: ttl},
		},
		"entanglement_scans": {
			{Keys: bson.D{{Key: "scanned_at", Value: -1}}},
			{Keys: bson.D{{Key: "project", Value: 1}}},
		},
		"project_roles": {
			{Keys: bson.D{{Key: "project", Value: 1}}, Options: unique},
		},
		"lens_configs": {
			{Keys: bson.D{{Key: "name", Value: 1}}, Options: unique},
		},
		"scratchpad": {
			{Keys: bson.D{{Key: "context_id", Value: 1}, {Key: "key", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: ttl},
		},
	}
}

// vectorFilterFields maps each searchable collection to the metadata
// fields its vector index supports pre-filtering on.
var vectorFilterFields = map[string][]string{
	"decision_registry": {"project", "status"},
	"thread_registry":   {"project", "status"},
	"priming_registry":  {"project", "status"},
	"patterns":          {"pattern_type"},
	"conversations":     {"project_name"},
	"messages":          {"project_name"},
}

func (m *migrator) Migrate(ctx context.Context) error {
	cfg := config.FromContext(ctx)
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.StoreURI))
	if err != nil {
		return fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	defer func() { _ = client.Disconnect(context.Background()) }()
	db := client.Database(cfg.DatabaseName)

	layout := indexLayout()
	names := make([]string, 0, len(layout))
	for name := range layout {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, layout[name]); err != nil {
			return fmt.Errorf("create indexes on %s: %w", name, err)
		}
		log.Debug("ensured indexes", "collection", name, "count", len(layout[name]))
	}

	// Vector search indexes need Atlas; on plain mongod the calls fail and
	// the service degrades to non-vector recall paths.
	for name, filters := range vectorFilterFields {
		if err := m.ensureVectorIndex(ctx, db.Collection(name), cfg.VectorIndex, cfg.EmbedDims, filters); err != nil {
			log.Warn("vector search index unavailable", "collection", name, "error", err)
		}
	}
	return nil
}

type vectorIndexDefinition struct {
	Fields []struct {
		Type string `bson:"type"`
		Path string `bson:"path"`
	} `bson:"fields"`
}

// ensureVectorIndex creates the vector search index, or drops and
// recreates it when the filter field set has drifted from the layout.
func (m *migrator) ensureVectorIndex(ctx context.Context, col *mongo.Collection, name string, dims int, filters []string) error {
	existing, err := m.currentFilterPaths(ctx, col, name)
	if err != nil {
		return err
	}
	if existing != nil {
		if sameStringSet(existing, filters) {
			return nil
		}
		log.Info("recreating vector search index with new filter fields",
			"collection", col.Name(), "index", name, "filters", filters)
		if err := col.SearchIndexes().DropOne(ctx, name); err != nil {
			return fmt.Errorf("drop search index: %w", err)
		}
	}

	fields := bson.A{bson.D{
		{Key: "type", Value: "vector"},
		{Key: "path", Value: "embedding"},
		{Key: "numDimensions", Value: dims},
		{Key: "similarity", Value: "cosine"},
	}}
	for _, f := range filters {
		fields = append(fields, bson.D{
			{Key: "type", Value: "filter"},
			{Key: "path", Value: f},
		})
	}
	_, err = col.SearchIndexes().CreateOne(ctx, mongo.SearchIndexModel{
		Definition: bson.D{{Key: "fields", Value: fields}},
		Options:    options.SearchIndexes().SetName(name).SetType("vectorSearch"),
	})
	if err != nil {
		return fmt.Errorf("create search index: %w", err)
	}
	log.Info("created vector search index", "collection", col.Name(), "index", name)
	return nil
}

// currentFilterPaths returns the filter paths of the existing index, or
// nil when no index with this name exists.
func (m *migrator) currentFilterPaths(ctx context.Context, col *mongo.Collection, name string) ([]string, error) {
	cur, err := col.SearchIndexes().List(ctx, options.SearchIndexes().SetName(name))
	if err != nil {
		return nil, fmt.Errorf("list search indexes: %w", err)
	}
	defer cur.Close(ctx)
	var docs []struct {
		Name             string                `bson:"name"`
		LatestDefinition vectorIndexDefinition `bson:"latestDefinition"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	for _, d := range docs {
		if d.Name != name {
			continue
		}
		paths := []string{}
		for _, f := range d.LatestDefinition.Fields {
			if f.Type == "filter" {
				paths = append(paths, f.Path)
			}
		}
		return paths, nil
	}
	return nil, nil
}

func sameStringSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, s := range a {
		set[s] = true
	}
	for _, s := range b {
		if !set[s] {
			return false
		}
	}
	return true
}
