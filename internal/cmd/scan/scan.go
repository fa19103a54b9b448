// Package scan implements the scan sub-command: one full entanglement
// scan from the command line.
package scan

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/forgeos/graph-service/internal/config"
	"github.com/forgeos/graph-service/internal/entangle"
	"github.com/forgeos/graph-service/internal/graph"
	"github.com/forgeos/graph-service/internal/memory"
	registryblob "github.com/forgeos/graph-service/internal/registry/blob"
	registryembed "github.com/forgeos/graph-service/internal/registry/embed"
	registrystore "github.com/forgeos/graph-service/internal/registry/store"

	_ "github.com/forgeos/graph-service/internal/plugin/blob/local"
	_ "github.com/forgeos/graph-service/internal/plugin/blob/s3store"
	_ "github.com/forgeos/graph-service/internal/plugin/embed/disabled"
	_ "github.com/forgeos/graph-service/internal/plugin/embed/voyage"
	_ "github.com/forgeos/graph-service/internal/plugin/store/mongo"
)

// Command returns the scan sub-command.
func Command() *cli.Command {
	cfg := config.DefaultConfig()
	return &cli.Command{
		Name:  "scan",
		Usage: "Run one entanglement scan and persist the result",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "db-url",
				Sources:     cli.EnvVars("FORGE_GRAPH_DB_URL"),
				Destination: &cfg.StoreURI,
				Usage:       "Database connection URL",
				Required:    true,
			},
			&cli.StringFlag{
				Name:        "db-kind",
				Sources:     cli.EnvVars("FORGE_GRAPH_DB_KIND"),
				Destination: &cfg.StoreType,
				Value:       cfg.StoreType,
				Usage:       "Store backend",
			},
			&cli.StringFlag{
				Name:        "db-name",
				Sources:     cli.EnvVars("FORGE_GRAPH_DB_NAME"),
				Destination: &cfg.DatabaseName,
				Value:       cfg.DatabaseName,
				Usage:       "Database name",
			},
			&cli.StringFlag{
				Name:        "embedding-kind",
				Sources:     cli.EnvVars("FORGE_GRAPH_EMBEDDING_KIND"),
				Destination: &cfg.EmbedType,
				Value:       cfg.EmbedType,
				Usage:       "Embedding provider, used to backfill thread embeddings",
			},
			&cli.StringFlag{
				Name:        "embedding-api-key",
				Sources:     cli.EnvVars("FORGE_GRAPH_EMBEDDING_API_KEY", "VOYAGE_API_KEY"),
				Destination: &cfg.EmbedAPIKey,
				Usage:       "Embedding provider API key",
			},
			&cli.StringFlag{
				Name:        "blob-path",
				Sources:     cli.EnvVars("FORGE_BLOB_PATH"),
				Destination: &cfg.BlobLocalPath,
				Value:       cfg.BlobLocalPath,
				Usage:       "Directory for the local blob store",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ctx = config.WithContext(ctx, &cfg)

			storeLoader, err := registrystore.Select(cfg.StoreType)
			if err != nil {
				return err
			}
			store, err := storeLoader(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize store: %w", err)
			}
			defer store.Close(ctx)

			embedLoader, err := registryembed.Select(cfg.EmbedType)
			if err != nil {
				return err
			}
			embedder, err := embedLoader(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize embedder: %w", err)
			}

			var blobs registryblob.Store
			if cfg.BlobEnabled {
				if blobLoader, err := registryblob.Select(cfg.BlobBackend); err == nil {
					if blobs, err = blobLoader(ctx); err != nil {
						log.Warn("Blob store unavailable, scan arrays stay inline", "err", err)
						cfg.BlobEnabled = false
					}
				}
			}

			reg := graph.New(store, embedder, blobs, memory.NewEmitter(store, cfg.EventsTTLDays), &cfg)
			scanner := entangle.NewScanner(reg, &cfg)

			scan, err := scanner.Scan(ctx)
			if err != nil {
				return err
			}
			log.Info("Entanglement scan complete",
				"scanId", scan.ScanID,
				"items", scan.Stats.ItemsScanned,
				"resonances", scan.Stats.ResonancesFound,
				"strong", scan.Stats.StrongCount,
				"weak", scan.Stats.WeakCount,
				"clusters", scan.Stats.ClusterCount,
				"bridges", scan.Stats.BridgeCount)
			return nil
		},
	}
}
