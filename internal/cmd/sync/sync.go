// Package sync implements the sync sub-command: compile registry state
// into markdown documents and push them to the targets listed in the
// manifest.
package sync

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/forgeos/graph-service/internal/config"
	"github.com/forgeos/graph-service/internal/graph"
	"github.com/forgeos/graph-service/internal/memory"
	registryblob "github.com/forgeos/graph-service/internal/registry/blob"
	registryembed "github.com/forgeos/graph-service/internal/registry/embed"
	registrystore "github.com/forgeos/graph-service/internal/registry/store"
	"github.com/forgeos/graph-service/internal/syncer"

	_ "github.com/forgeos/graph-service/internal/plugin/blob/local"
	_ "github.com/forgeos/graph-service/internal/plugin/blob/s3store"
	_ "github.com/forgeos/graph-service/internal/plugin/embed/disabled"
	_ "github.com/forgeos/graph-service/internal/plugin/store/mongo"
)

// Command returns the sync sub-command.
func Command() *cli.Command {
	cfg := config.DefaultConfig()
	var manifestPath, target, outDir string
	var dryRun bool
	return &cli.Command{
		Name:  "sync",
		Usage: "Compile registry state and push it to manifest targets",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "manifest",
				Sources:     cli.EnvVars("FORGE_GRAPH_SYNC_MANIFEST"),
				Destination: &manifestPath,
				Usage:       "Path to the sync manifest YAML",
				Required:    true,
			},
			&cli.StringFlag{
				Name:        "out-dir",
				Sources:     cli.EnvVars("FORGE_GRAPH_SYNC_OUT_DIR"),
				Destination: &outDir,
				Usage:       "Directory to push compiled documents into",
			},
			&cli.StringFlag{
				Name:        "target",
				Destination: &target,
				Usage:       "Sync a single named target instead of all",
			},
			&cli.BoolFlag{
				Name:        "dry-run",
				Destination: &dryRun,
				Usage:       "Compile but do not push",
			},
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
				Name:        "blob-path",
				Sources:     cli.EnvVars("FORGE_BLOB_PATH"),
				Destination: &cfg.BlobLocalPath,
				Value:       cfg.BlobLocalPath,
				Usage:       "Directory for the local blob store",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ctx = config.WithContext(ctx, &cfg)

			manifest, err := syncer.LoadManifest(manifestPath)
			if err != nil {
				return err
			}

			storeLoader, err := registrystore.Select(cfg.StoreType)
			if err != nil {
				return err
			}
			store, err := storeLoader(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize store: %w", err)
			}
			defer store.Close(ctx)

			// Sync only reads; the no-op embedder is enough.
			embedLoader, err := registryembed.Select("none")
			if err != nil {
				return err
			}
			embedder, err := embedLoader(ctx)
			if err != nil {
				return err
			}

			var blobs registryblob.Store
			if cfg.BlobEnabled {
				if blobLoader, err := registryblob.Select(cfg.BlobBackend); err == nil {
					if blobs, err = blobLoader(ctx); err != nil {
						log.Warn("Blob store unavailable, long texts stay as refs", "err", err)
					}
				}
			}

			reg := graph.New(store, embedder, blobs, memory.NewEmitter(store, cfg.EventsTTLDays), &cfg)

			var pusher syncer.Pusher
			if outDir != "" {
				pusher = syncer.NewDirPusher(outDir)
			} else if !dryRun {
				log.Warn("No --out-dir configured, forcing dry run")
				dryRun = true
			}
			engine := syncer.NewEngine(reg, pusher, manifest)

			var results []syncer.TargetResult
			if target != "" {
				result, err := engine.SyncTarget(ctx, target, dryRun)
				if err != nil {
					return err
				}
				results = []syncer.TargetResult{*result}
			} else {
				if results, err = engine.SyncAll(ctx, dryRun); err != nil {
					return err
				}
			}

			for _, res := range results {
				if res.Err != "" {
					log.Error("Target failed", "target", res.Target, "err", res.Err)
					continue
				}
				log.Info("Target synced",
					"target", res.Target,
					"documents", len(res.Documents),
					"deleted", res.Deleted,
					"skipped", res.Skipped,
					"dryRun", res.DryRun)
			}
			return nil
		},
	}
}
