package migrate

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/forgeos/graph-service/internal/config"
	registrymigrate "github.com/forgeos/graph-service/internal/registry/migrate"

	// Import plugins to trigger init() registration of their migrators.
	// Store plugins register their own migrators alongside their primary interface.
	_ "github.com/forgeos/graph-service/internal/plugin/store/mongo"
	_ "github.com/forgeos/graph-service/internal/plugin/vector/pgvector"
	_ "github.com/forgeos/graph-service/internal/plugin/vector/qdrant"
)

// Command returns the migrate sub-command.
func Command() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Run database migrations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "db-url",
				Sources:  cli.EnvVars("FORGE_GRAPH_DB_URL"),
				Usage:    "Database connection URL",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "db-kind",
				Sources: cli.EnvVars("FORGE_GRAPH_DB_KIND"),
				Usage:   "Store backend",
				Value:   "mongo",
			},
			&cli.StringFlag{
				Name:    "db-name",
				Sources: cli.EnvVars("FORGE_GRAPH_DB_NAME"),
				Usage:   "Database name",
				Value:   "forgeos",
			},
			&cli.StringFlag{
				Name:    "vector-qdrant-host",
				Sources: cli.EnvVars("FORGE_GRAPH_QDRANT_HOST"),
				Usage:   "Qdrant host:port",
			},
			&cli.StringFlag{
				Name:    "vector-pg-url",
				Sources: cli.EnvVars("FORGE_GRAPH_VECTOR_PG_URL"),
				Usage:   "Postgres connection URL for the pgvector index",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := config.DefaultConfig()
			cfg.StoreURI = cmd.String("db-url")
			cfg.StoreType = cmd.String("db-kind")
			cfg.DatabaseName = cmd.String("db-name")
			cfg.QdrantHost = cmd.String("vector-qdrant-host")
			cfg.PgVectorURL = cmd.String("vector-pg-url")
			ctx = config.WithContext(ctx, &cfg)

			log.Info("Running migrations...")
			if err := registrymigrate.RunAll(ctx); err != nil {
				return err
			}
			log.Info("All migrations completed successfully")
			return nil
		},
	}
}
