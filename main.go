package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/forgeos/graph-service/internal/cmd/mcp"
	"github.com/forgeos/graph-service/internal/cmd/migrate"
	"github.com/forgeos/graph-service/internal/cmd/scan"
	"github.com/forgeos/graph-service/internal/cmd/serve"
	syncmd "github.com/forgeos/graph-service/internal/cmd/sync"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:  "graph-service",
		Usage: "Semantic memory and knowledge graph service for AI assistants",
		Commands: []*cli.Command{
			serve.Command(),
			migrate.Command(),
			scan.Command(),
			syncmd.Command(),
			mcp.Command(),
		},
	}
	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
