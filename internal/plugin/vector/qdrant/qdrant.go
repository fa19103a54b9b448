// Package qdrant mirrors graph embeddings into a Qdrant collection so
// deployments without store-native vector search still get similarity
// lookups.
package qdrant

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/forgeos/graph-service/internal/config"
	registrymigrate "github.com/forgeos/graph-service/internal/registry/migrate"
	registryvector "github.com/forgeos/graph-service/internal/registry/vector"
	pb "github.com/qdrant/go-client/qdrant"
)

const collectionName = "forge_embeddings"

// qdrantMigrator creates the collection at startup when the qdrant index
// is selected.
type qdrantMigrator struct{}

func (m *qdrantMigrator) Name() string { return "qdrant" }
func (m *qdrantMigrator) Migrate(ctx context.Context) error {
	cfg := config.FromContext(ctx)
	if cfg == nil || cfg.VectorType != "qdrant" {
		return nil
	}
	client, err := newClient(cfg)
	if err != nil {
		return fmt.Errorf("qdrant migrate: %w", err)
	}
	defer client.Close()

	exists, err := client.CollectionExists(ctx, collectionName)
	if err != nil {
		return fmt.Errorf("qdrant migrate: check collection: %w", err)
	}
	if exists {
		return nil
	}
	err = client.CreateCollection(ctx, &pb.CreateCollection{
		CollectionName: collectionName,
		VectorsConfig: pb.NewVectorsConfig(&pb.VectorParams{
			Size:     uint64(cfg.EmbedDims),
			Distance: pb.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant migrate: create collection: %w", err)
	}
	log.Info("created qdrant collection", "name", collectionName, "dims", cfg.EmbedDims)
	return nil
}

func init() {
	registryvector.Register(registryvector.Plugin{
		Name:   "qdrant",
		Loader: load,
	})
	registrymigrate.Register(registrymigrate.Plugin{Order: 200, Migrator: &qdrantMigrator{}})
}

func newClient(cfg *config.Config) (*pb.Client, error) {
	host, portStr, err := net.SplitHostPort(cfg.QdrantHost)
	if err != nil {
		host = cfg.QdrantHost
		portStr = "6334"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid qdrant port %q", portStr)
	}
	return pb.NewClient(&pb.Config{Host: host, Port: port})
}

func load(ctx context.Context) (registryvector.Index, error) {
	cfg := config.FromContext(ctx)
	if cfg == nil || cfg.QdrantHost == "" {
		return nil, fmt.Errorf("qdrant: FORGE_QDRANT_HOST is required")
	}
	client, err := newClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("qdrant: connect: %w", err)
	}
	return &QdrantIndex{client: client}, nil
}

type QdrantIndex struct {
	client *pb.Client
}

func (s *QdrantIndex) IsEnabled() bool { return true }

func (s *QdrantIndex) Upsert(ctx context.Context, reqs []registryvector.UpsertRequest) error {
	if len(reqs) == 0 {
		return nil
	}
	points := make([]*pb.PointStruct, len(reqs))
	for i, r := range reqs {
		points[i] = &pb.PointStruct{
			Id:      pb.NewID(r.ID),
			Vectors: pb.NewVectors(r.Embedding...),
			Payload: pb.NewValueMap(map[string]any{
				"collection": r.Collection,
				"project":    r.Project,
			}),
		}
	}
	_, err := s.client.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: collectionName,
		Points:         points,
		Wait:           pb.PtrOf(true),
	})
	return err
}

func (s *QdrantIndex) Search(ctx context.Context, vector []float32, k int, f registryvector.Filter) ([]registryvector.Hit, error) {
	filter := &pb.Filter{}
	if f.Collection != "" {
		filter.Must = append(filter.Must, pb.NewMatch("collection", f.Collection))
	}
	if f.Project != "" {
		filter.Must = append(filter.Must, pb.NewMatch("project", f.Project))
	}
	if f.ProjectNot != "" {
		filter.MustNot = append(filter.MustNot, pb.NewMatch("project", f.ProjectNot))
	}
	limit := uint64(k)
	points, err := s.client.Query(ctx, &pb.QueryPoints{
		CollectionName: collectionName,
		Query:          pb.NewQuery(vector...),
		Limit:          &limit,
		Filter:         filter,
		WithPayload:    pb.NewWithPayload(true),
	})
	if err != nil {
		return nil, err
	}
	hits := make([]registryvector.Hit, 0, len(points))
	for _, pt := range points {
		hit := registryvector.Hit{
			ID:         pt.GetId().GetUuid(),
			Similarity: float64(pt.GetScore()),
		}
		payload := pt.GetPayload()
		if v, ok := payload["collection"]; ok {
			hit.Collection = v.GetStringValue()
		}
		if v, ok := payload["project"]; ok {
			hit.Project = v.GetStringValue()
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func (s *QdrantIndex) Close(ctx context.Context) error {
	return s.client.Close()
}

var _ registryvector.Index = (*QdrantIndex)(nil)
