// Package mcp implements the mcp sub-command: serve the registry,
// recall, and gravity operations as MCP tools over stdio.
package mcp

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/forgeos/graph-service/internal/config"
	"github.com/forgeos/graph-service/internal/entangle"
	"github.com/forgeos/graph-service/internal/graph"
	"github.com/forgeos/graph-service/internal/gravity"
	"github.com/forgeos/graph-service/internal/mcptools"
	"github.com/forgeos/graph-service/internal/memory"
	"github.com/forgeos/graph-service/internal/recall"
	registryblob "github.com/forgeos/graph-service/internal/registry/blob"
	registryembed "github.com/forgeos/graph-service/internal/registry/embed"
	registryscratch "github.com/forgeos/graph-service/internal/registry/scratch"
	registrystore "github.com/forgeos/graph-service/internal/registry/store"

	_ "github.com/forgeos/graph-service/internal/plugin/blob/local"
	_ "github.com/forgeos/graph-service/internal/plugin/blob/s3store"
	_ "github.com/forgeos/graph-service/internal/plugin/embed/disabled"
	_ "github.com/forgeos/graph-service/internal/plugin/embed/local"
	_ "github.com/forgeos/graph-service/internal/plugin/embed/voyage"
	_ "github.com/forgeos/graph-service/internal/plugin/scratch/redis"
	_ "github.com/forgeos/graph-service/internal/plugin/store/mongo"
)

// Version is stamped at build time.
var Version = "dev"

// Command returns the mcp sub-command.
func Command() *cli.Command {
	cfg := config.DefaultConfig()
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve MCP tools over stdio",
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
				Usage:       "Embedding provider",
			},
			&cli.StringFlag{
				Name:        "embedding-api-key",
				Sources:     cli.EnvVars("FORGE_GRAPH_EMBEDDING_API_KEY", "VOYAGE_API_KEY"),
				Destination: &cfg.EmbedAPIKey,
				Usage:       "Embedding provider API key",
			},
			&cli.StringFlag{
				Name:        "scratch-kind",
				Sources:     cli.EnvVars("FORGE_GRAPH_SCRATCH_KIND"),
				Destination: &cfg.ScratchType,
				Value:       cfg.ScratchType,
				Usage:       "Scratchpad backend",
			},
			&cli.StringFlag{
				Name:        "redis-url",
				Sources:     cli.EnvVars("FORGE_GRAPH_REDIS_URL"),
				Destination: &cfg.RedisURL,
				Usage:       "Redis connection URL for the redis scratchpad",
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
						log.Warn("Blob store unavailable", "err", err)
						cfg.BlobEnabled = false
					}
				}
			}

			scratchLoader, err := registryscratch.Select(cfg.ScratchType)
			if err != nil {
				return err
			}
			scratchPad, err := scratchLoader(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize scratchpad: %w", err)
			}

			events := memory.NewEmitter(store, cfg.EventsTTLDays)
			reg := graph.New(store, embedder, blobs, events, &cfg)
			scanner := entangle.NewScanner(reg, &cfg)
			scanCache, err := entangle.NewCache(store, blobs, cfg.ScanCacheTTL)
			if err != nil {
				return err
			}
			engine := recall.NewEngine(reg, scanCache, &cfg)
			orchestrator := gravity.NewOrchestrator(reg, engine, scanCache, &cfg)

			srv := mcptools.NewServer(mcptools.Deps{
				Registry: reg,
				Recall:   engine,
				Gravity:  orchestrator,
				Scanner:  scanner,
				Patterns: memory.NewPatternStore(store, embedder, events, &cfg),
				Pad:      memory.NewScratchpad(scratchPad, cfg.ScratchpadDefaultTTL),
			}, Version)

			log.Info("MCP server ready on stdio")
			return mcptools.ServeStdio(srv)
		},
	}
}
