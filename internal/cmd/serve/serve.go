package serve

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/forgeos/graph-service/internal/config"
	registryblob "github.com/forgeos/graph-service/internal/registry/blob"
	registryembed "github.com/forgeos/graph-service/internal/registry/embed"
	registryscratch "github.com/forgeos/graph-service/internal/registry/scratch"
	registrystore "github.com/forgeos/graph-service/internal/registry/store"
	registryvector "github.com/forgeos/graph-service/internal/registry/vector"

	// Import all plugins to trigger init() registration
	_ "github.com/forgeos/graph-service/internal/plugin/blob/local"
	_ "github.com/forgeos/graph-service/internal/plugin/blob/s3store"
	_ "github.com/forgeos/graph-service/internal/plugin/embed/disabled"
	_ "github.com/forgeos/graph-service/internal/plugin/embed/local"
	_ "github.com/forgeos/graph-service/internal/plugin/embed/voyage"
	_ "github.com/forgeos/graph-service/internal/plugin/route/graphapi"
	_ "github.com/forgeos/graph-service/internal/plugin/route/gravityapi"
	_ "github.com/forgeos/graph-service/internal/plugin/route/memoryapi"
	_ "github.com/forgeos/graph-service/internal/plugin/route/recallapi"
	_ "github.com/forgeos/graph-service/internal/plugin/route/system"
	_ "github.com/forgeos/graph-service/internal/plugin/scratch/redis"
	_ "github.com/forgeos/graph-service/internal/plugin/store/mongo"
	_ "github.com/forgeos/graph-service/internal/plugin/vector/pgvector"
	_ "github.com/forgeos/graph-service/internal/plugin/vector/qdrant"
)

// Command returns the serve sub-command.
func Command() *cli.Command {
	cfg := config.DefaultConfig()
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the graph service HTTP server",
		Flags: flags(&cfg),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg.ManagementListenerEnabled = cmd.IsSet("management-port")
			return run(config.WithContext(ctx, &cfg), cfg)
		},
	}
}

func flags(cfg *config.Config) []cli.Flag {
	return []cli.Flag{

		// ── Server ────────────────────────────────────────────────
		&cli.IntFlag{
			Name:        "port",
			Category:    "Server:",
			Sources:     cli.EnvVars("FORGE_GRAPH_PORT"),
			Destination: &cfg.Port,
			Value:       cfg.Port,
			Usage:       "HTTP server port",
		},
		&cli.IntFlag{
			Name:        "management-port",
			Category:    "Server:",
			Sources:     cli.EnvVars("FORGE_GRAPH_MANAGEMENT_PORT"),
			Destination: &cfg.ManagementPort,
			Usage:       "Dedicated port for health and metrics; when unset, served on the main port",
		},
		&cli.IntFlag{
			Name:        "read-header-timeout-seconds",
			Category:    "Server:",
			Sources:     cli.EnvVars("FORGE_GRAPH_READ_HEADER_TIMEOUT_SECONDS"),
			Destination: &cfg.ReadHeaderTimeout,
			Value:       cfg.ReadHeaderTimeout,
			Usage:       "HTTP read header timeout in seconds",
		},
		&cli.BoolFlag{
			Name:        "cors",
			Category:    "Server:",
			Sources:     cli.EnvVars("FORGE_GRAPH_CORS"),
			Destination: &cfg.CORSEnabled,
			Usage:       "Enable CORS handling",
		},
		&cli.StringFlag{
			Name:        "cors-origins",
			Category:    "Server:",
			Sources:     cli.EnvVars("FORGE_GRAPH_CORS_ORIGINS"),
			Destination: &cfg.CORSOrigins,
			Usage:       "Comma-separated allowed CORS origins; empty allows any",
		},

		// ── Database ──────────────────────────────────────────────
		&cli.StringFlag{
			Name:        "db-kind",
			Category:    "Database:",
			Sources:     cli.EnvVars("FORGE_GRAPH_DB_KIND"),
			Destination: &cfg.StoreType,
			Value:       cfg.StoreType,
			Usage:       "Backend store (" + strings.Join(registrystore.Names(), "|") + ")",
		},
		&cli.StringFlag{
			Name:        "db-url",
			Category:    "Database:",
			Sources:     cli.EnvVars("FORGE_GRAPH_DB_URL"),
			Destination: &cfg.StoreURI,
			Usage:       "Database connection URL",
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "db-name",
			Category:    "Database:",
			Sources:     cli.EnvVars("FORGE_GRAPH_DB_NAME"),
			Destination: &cfg.DatabaseName,
			Value:       cfg.DatabaseName,
			Usage:       "Database name",
		},

		// ── Embedding ─────────────────────────────────────────────
		&cli.StringFlag{
			Name:        "embedding-kind",
			Category:    "Embedding:",
			Sources:     cli.EnvVars("FORGE_GRAPH_EMBEDDING_KIND"),
			Destination: &cfg.EmbedType,
			Value:       cfg.EmbedType,
			Usage:       "Embedding provider (" + strings.Join(registryembed.Names(), "|") + ")",
		},
		&cli.StringFlag{
			Name:        "embedding-api-key",
			Category:    "Embedding:",
			Sources:     cli.EnvVars("FORGE_GRAPH_EMBEDDING_API_KEY", "VOYAGE_API_KEY"),
			Destination: &cfg.EmbedAPIKey,
			Usage:       "Embedding provider API key",
		},
		&cli.StringFlag{
			Name:        "embedding-model",
			Category:    "Embedding:",
			Sources:     cli.EnvVars("FORGE_GRAPH_EMBEDDING_MODEL"),
			Destination: &cfg.EmbedModel,
			Value:       cfg.EmbedModel,
			Usage:       "Embedding model name",
		},

		// ── Blob Storage ──────────────────────────────────────────
		&cli.StringFlag{
			Name:        "blob-kind",
			Category:    "Blob Storage:",
			Sources:     cli.EnvVars("FORGE_GRAPH_BLOB_KIND"),
			Destination: &cfg.BlobBackend,
			Value:       cfg.BlobBackend,
			Usage:       "Blob store (" + strings.Join(registryblob.Names(), "|") + ")",
		},
		&cli.StringFlag{
			Name:        "blob-path",
			Category:    "Blob Storage:",
			Sources:     cli.EnvVars("FORGE_BLOB_PATH"),
			Destination: &cfg.BlobLocalPath,
			Value:       cfg.BlobLocalPath,
			Usage:       "Directory for the local blob store",
		},
		&cli.StringFlag{
			Name:        "blob-s3-bucket",
			Category:    "Blob Storage:",
			Sources:     cli.EnvVars("FORGE_GRAPH_BLOB_S3_BUCKET"),
			Destination: &cfg.BlobBucket,
			Usage:       "S3 bucket for the s3 blob store",
		},
		&cli.BoolFlag{
			Name:        "blob-s3-use-path-style",
			Category:    "Blob Storage:",
			Sources:     cli.EnvVars("FORGE_GRAPH_BLOB_S3_USE_PATH_STYLE"),
			Destination: &cfg.BlobUsePathStyle,
			Usage:       "Use path-style S3 addressing (required for LocalStack/MinIO)",
		},

		// ── Scratchpad ────────────────────────────────────────────
		&cli.StringFlag{
			Name:        "scratch-kind",
			Category:    "Scratchpad:",
			Sources:     cli.EnvVars("FORGE_GRAPH_SCRATCH_KIND"),
			Destination: &cfg.ScratchType,
			Value:       cfg.ScratchType,
			Usage:       "Scratchpad backend (" + strings.Join(registryscratch.Names(), "|") + ")",
		},
		&cli.StringFlag{
			Name:        "redis-url",
			Category:    "Scratchpad:",
			Sources:     cli.EnvVars("FORGE_GRAPH_REDIS_URL"),
			Destination: &cfg.RedisURL,
			Usage:       "Redis connection URL for the redis scratchpad",
		},

		// ── Vector Index ──────────────────────────────────────────
		&cli.StringFlag{
			Name:        "vector-kind",
			Category:    "Vector Index:",
			Sources:     cli.EnvVars("FORGE_GRAPH_VECTOR_KIND"),
			Destination: &cfg.VectorType,
			Value:       cfg.VectorType,
			Usage:       "Secondary vector index (" + strings.Join(registryvector.Names(), "|") + ")",
		},
		&cli.StringFlag{
			Name:        "vector-qdrant-host",
			Category:    "Vector Index:",
			Sources:     cli.EnvVars("FORGE_GRAPH_QDRANT_HOST"),
			Destination: &cfg.QdrantHost,
			Usage:       "Qdrant host or host:port",
		},
		&cli.StringFlag{
			Name:        "vector-pg-url",
			Category:    "Vector Index:",
			Sources:     cli.EnvVars("FORGE_GRAPH_VECTOR_PG_URL"),
			Destination: &cfg.PgVectorURL,
			Usage:       "Postgres connection URL for the pgvector index",
		},

		// ── Background Services ───────────────────────────────────
		&cli.IntFlag{
			Name:        "scan-interval-seconds",
			Category:    "Background Services:",
			Sources:     cli.EnvVars("FORGE_GRAPH_SCAN_INTERVAL_SECONDS"),
			Destination: &cfg.ScanInterval,
			Value:       cfg.ScanInterval,
			Usage:       "Entanglement scan cadence in seconds (0 disables)",
		},
		&cli.IntFlag{
			Name:        "backfill-interval-seconds",
			Category:    "Background Services:",
			Sources:     cli.EnvVars("FORGE_GRAPH_BACKFILL_INTERVAL_SECONDS"),
			Destination: &cfg.EmbedBackfillInterval,
			Value:       cfg.EmbedBackfillInterval,
			Usage:       "Thread embedding backfill cadence in seconds (0 disables)",
		},
		&cli.IntFlag{
			Name:        "mirror-interval-seconds",
			Category:    "Background Services:",
			Sources:     cli.EnvVars("FORGE_GRAPH_MIRROR_INTERVAL_SECONDS"),
			Destination: &cfg.VectorMirrorInterval,
			Value:       cfg.VectorMirrorInterval,
			Usage:       "Secondary vector index mirror cadence in seconds (0 disables)",
		},
	}
}

func run(ctx context.Context, cfg config.Config) error {
	srv, err := StartServer(ctx, &cfg)
	if err != nil {
		return err
	}

	<-ctx.Done()
	log.Info("Shutting down...")

	drainCtx, drainCancel := context.WithTimeout(context.Background(), time.Duration(cfg.DrainTimeout)*time.Second)
	defer drainCancel()
	if err := srv.Shutdown(drainCtx); err != nil {
		log.Error("Shutdown error", "err", err)
	}
	log.Info("Server stopped")
	return nil
}
