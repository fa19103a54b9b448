// Package pgvector mirrors graph embeddings into a Postgres table with
// the pgvector extension.
package pgvector

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/forgeos/graph-service/internal/config"
	registrymigrate "github.com/forgeos/graph-service/internal/registry/migrate"
	registryvector "github.com/forgeos/graph-service/internal/registry/vector"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvec "github.com/pgvector/pgvector-go"
)

// pgvectorMigrator creates the extension, table, and index at startup
// when the pgvector index is selected.
type pgvectorMigrator struct{}

func (m *pgvectorMigrator) Name() string { return "pgvector" }
func (m *pgvectorMigrator) Migrate(ctx context.Context) error {
	cfg := config.FromContext(ctx)
	if cfg == nil || cfg.VectorType != "pgvector" || cfg.PgVectorURL == "" {
		return nil
	}
	log.Info("running migration", "name", m.Name())
	pool, err := pgxpool.New(ctx, cfg.PgVectorURL)
	if err != nil {
		return fmt.Errorf("pgvector migrate: %w", err)
	}
	defer pool.Close()
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS graph_embeddings (
			id TEXT PRIMARY KEY,
			collection TEXT NOT NULL,
			project TEXT NOT NULL DEFAULT '',
			embedding vector(%d) NOT NULL
		)`, cfg.EmbedDims),
		`CREATE INDEX IF NOT EXISTS graph_embeddings_collection_idx ON graph_embeddings (collection, project)`,
		`CREATE INDEX IF NOT EXISTS graph_embeddings_embedding_idx ON graph_embeddings
			USING hnsw (embedding vector_cosine_ops)`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("pgvector migrate: %w", err)
		}
	}
	return nil
}

func init() {
	registryvector.Register(registryvector.Plugin{
		Name:   "pgvector",
		Loader: load,
	})
	registrymigrate.Register(registrymigrate.Plugin{Order: 210, Migrator: &pgvectorMigrator{}})
}

func load(ctx context.Context) (registryvector.Index, error) {
	cfg := config.FromContext(ctx)
	if cfg == nil || cfg.PgVectorURL == "" {
		return nil, fmt.Errorf("pgvector: FORGE_PGVECTOR_URL is required")
	}
	pool, err := pgxpool.New(ctx, cfg.PgVectorURL)
	if err != nil {
		return nil, fmt.Errorf("pgvector: %w", err)
	}
	return &PgvectorIndex{pool: pool}, nil
}

type PgvectorIndex struct {
	pool *pgxpool.Pool
}

func (s *PgvectorIndex) IsEnabled() bool { return true }

func (s *PgvectorIndex) Upsert(ctx context.Context, reqs []registryvector.UpsertRequest) error {
	for _, r := range reqs {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO graph_embeddings (id, collection, project, embedding)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id)
			DO UPDATE SET collection = EXCLUDED.collection,
			              project = EXCLUDED.project,
			              embedding = EXCLUDED.embedding`,
			r.ID, r.Collection, r.Project, pgvec.NewVector(r.Embedding))
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *PgvectorIndex) Search(ctx context.Context, vector []float32, k int, f registryvector.Filter) ([]registryvector.Hit, error) {
	vec := pgvec.NewVector(vector)
	rows, err := s.pool.Query(ctx, `
		SELECT id, collection, project, 1 - (embedding <=> $1) AS similarity
		FROM graph_embeddings
		WHERE ($2 = '' OR collection = $2)
		  AND ($3 = '' OR project = $3)
		  AND ($4 = '' OR project <> $4)
		ORDER BY embedding <=> $1
		LIMIT $5`,
		vec, f.Collection, f.Project, f.ProjectNot, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []registryvector.Hit
	for rows.Next() {
		var h registryvector.Hit
		if err := rows.Scan(&h.ID, &h.Collection, &h.Project, &h.Similarity); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (s *PgvectorIndex) Close(ctx context.Context) error {
	s.pool.Close()
	return nil
}

var _ registryvector.Index = (*PgvectorIndex)(nil)
