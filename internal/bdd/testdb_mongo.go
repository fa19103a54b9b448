package bdd

import (
	"context"
	"fmt"

	"github.com/forgeos/graph-service/internal/testutil/cucumber"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoTestDB implements cucumber.TestDB for MongoDB.
type MongoTestDB struct {
	DBURL  string
	DBName string
}

var _ cucumber.TestDB = (*MongoTestDB)(nil)

// ClearAll wipes every graph collection so scenarios start clean.
// Display ID counters are cleared too, so sequences restart at 0001.
func (m *MongoTestDB) ClearAll(ctx context.Context) error {
	client, err := mongo.Connect(options.Client().ApplyURI(m.DBURL))
	if err != nil {
		return fmt.Errorf("mongo connect: %w", err)
	}
	defer client.Disconnect(ctx)
	db := client.Database(m.DBName)

	collections := []string{
		"conversation_registry",
		"decision_registry",
		"thread_registry",
		"priming_registry",
		"expedition_flags",
		"compression_registry",
		"lineage_edges",
		"display_id_counters",
		"display_id_index",
		"memory_events",
		"patterns",
		"memory_archive",
		"entanglement_scans",
		"project_roles",
		"lens_configs",
		"conversations",
		"messages",
		"scratchpad",
	}
	for _, coll := range collections {
		if _, err := db.Collection(coll).DeleteMany(ctx, bson.M{}); err != nil {
			return fmt.Errorf("cleanup: failed to clear %s: %w", coll, err)
		}
	}
	return nil
}
