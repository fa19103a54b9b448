// Package mongo implements the graph store on MongoDB. It relies on the
// server's atomic primitives: find-one-and-update counters, $addToSet
// set-union merges, TTL indexes, and Atlas $vectorSearch.
package mongo

import (
	"context"
	"fmt"

	"github.com/forgeos/graph-service/internal/config"
	registrymigrate "github.com/forgeos/graph-service/internal/registry/migrate"
	registrystore "github.com/forgeos/graph-service/internal/registry/store"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

func init() {
	registrystore.Register(registrystore.Plugin{
		Name: "mongo",
		Loader: func(ctx context.Context) (registrystore.GraphStore, error) {
			cfg := config.FromContext(ctx)
			client, err := mongo.Connect(options.Client().ApplyURI(cfg.StoreURI))
			if err != nil {
				return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
			}
			if err := client.Ping(ctx, nil); err != nil {
				return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
			}
			return &GraphStore{
				client:      client,
				db:          client.Database(cfg.DatabaseName),
				vectorIndex: cfg.VectorIndex,
			}, nil
		},
	})

	registrymigrate.Register(registrymigrate.Plugin{Order: 100, Migrator: &migrator{}})
}

// GraphStore is the MongoDB-backed store.
type GraphStore struct {
	client      *mongo.Client
	db          *mongo.Database
	vectorIndex string
}

func (s *GraphStore) conversations() *mongo.Collection { return s.db.Collection("conversation_registry") }
func (s *GraphStore) decisions() *mongo.Collection     { return s.db.Collection("decision_registry") }
func (s *GraphStore) threads() *mongo.Collection       { return s.db.Collection("thread_registry") }
func (s *GraphStore) priming() *mongo.Collection       { return s.db.Collection("priming_registry") }
func (s *GraphStore) flags() *mongo.Collection         { return s.db.Collection("expedition_flags") }
func (s *GraphStore) compressions() *mongo.Collection  { return s.db.Collection("compression_registry") }
func (s *GraphStore) lineageEdges() *mongo.Collection  { return s.db.Collection("lineage_edges") }
func (s *GraphStore) counters() *mongo.Collection      { return s.db.Collection("display_id_counters") }
func (s *GraphStore) displayIndex() *mongo.Collection  { return s.db.Collection("display_id_index") }
func (s *GraphStore) events() *mongo.Collection        { return s.db.Collection("memory_events") }
func (s *GraphStore) patterns() *mongo.Collection      { return s.db.Collection("patterns") }
func (s *GraphStore) archive() *mongo.Collection       { return s.db.Collection("memory_archive") }
func (s *GraphStore) scans() *mongo.Collection         { return s.db.Collection("entanglement_scans") }
func (s *GraphStore) roles() *mongo.Collection         { return s.db.Collection("project_roles") }
func (s *GraphStore) lenses() *mongo.Collection        { return s.db.Collection("lens_configs") }
func (s *GraphStore) rawConversations() *mongo.Collection { return s.db.Collection("conversations") }
func (s *GraphStore) rawMessages() *mongo.Collection      { return s.db.Collection("messages") }
func (s *GraphStore) scratchpad() *mongo.Collection       { return s.db.Collection("scratchpad") }

func optionsFindLimit(limit int) *options.FindOptionsBuilder {
	opts := options.Find()
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return opts
}

// Ping verifies the connection.
func (s *GraphStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (s *GraphStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
