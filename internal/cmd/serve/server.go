package serve

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/forgeos/graph-service/internal/config"
	"github.com/forgeos/graph-service/internal/entangle"
	"github.com/forgeos/graph-service/internal/graph"
	"github.com/forgeos/graph-service/internal/gravity"
	"github.com/forgeos/graph-service/internal/memory"
	"github.com/forgeos/graph-service/internal/monitoring"
	"github.com/forgeos/graph-service/internal/plugin/route/graphapi"
	"github.com/forgeos/graph-service/internal/plugin/route/gravityapi"
	"github.com/forgeos/graph-service/internal/plugin/route/memoryapi"
	"github.com/forgeos/graph-service/internal/plugin/route/recallapi"
	routesystem "github.com/forgeos/graph-service/internal/plugin/route/system"
	storemetrics "github.com/forgeos/graph-service/internal/plugin/store/metrics"
	"github.com/forgeos/graph-service/internal/recall"
	registryblob "github.com/forgeos/graph-service/internal/registry/blob"
	registryembed "github.com/forgeos/graph-service/internal/registry/embed"
	registrymigrate "github.com/forgeos/graph-service/internal/registry/migrate"
	registryroute "github.com/forgeos/graph-service/internal/registry/route"
	registryscratch "github.com/forgeos/graph-service/internal/registry/scratch"
	registrystore "github.com/forgeos/graph-service/internal/registry/store"
	registryvector "github.com/forgeos/graph-service/internal/registry/vector"
	"github.com/forgeos/graph-service/internal/service"
)

// Server holds the running server and its subsystems.
type Server struct {
	Config          *config.Config
	Store           registrystore.GraphStore
	Registry        *graph.Registry
	Router          *gin.Engine
	Running         *RunningServer
	closeManagement func(context.Context) error
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.closeManagement != nil {
		_ = s.closeManagement(ctx)
	}
	err := s.Running.Close(ctx)
	_ = s.Store.Close(ctx)
	return err
}

// StartServer initializes all subsystems and starts the HTTP server.
// Use cfg.Port=0 for a random port. Actual port: Server.Running.Port.
func StartServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	log.Info("Starting graph service",
		"httpPort", cfg.Port,
		"db", cfg.StoreType,
		"embedding", cfg.EmbedType,
		"blob", cfg.BlobBackend,
		"vector", cfg.VectorType,
	)

	monitoring.InitMetrics()

	// Run migrations
	if err := registrymigrate.RunAll(ctx); err != nil {
		return nil, fmt.Errorf("migrations failed: %w", err)
	}

	// Initialize store
	storeLoader, err := registrystore.Select(cfg.StoreType)
	if err != nil {
		return nil, err
	}
	store, err := storeLoader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	store = storemetrics.Wrap(store)

	// Initialize embedder; fall back to the no-op provider so writes
	// still land (without vectors) when the provider is misconfigured.
	embedder, err := loadEmbedder(ctx, cfg.EmbedType)
	if err != nil {
		return nil, err
	}

	// Initialize blob store (optional)
	var blobs registryblob.Store
	if cfg.BlobEnabled && cfg.BlobBackend != "" {
		blobLoader, err := registryblob.Select(cfg.BlobBackend)
		if err != nil {
			log.Warn("Blob store not available", "err", err)
			cfg.BlobEnabled = false
		} else if blobs, err = blobLoader(ctx); err != nil {
			log.Warn("Failed to initialize blob store", "err", err)
			cfg.BlobEnabled = false
		}
	}

	// Initialize scratchpad
	scratchLoader, err := registryscratch.Select(cfg.ScratchType)
	if err != nil {
		return nil, err
	}
	scratchPad, err := scratchLoader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize scratchpad: %w", err)
	}

	// Initialize secondary vector index (optional)
	var vectorIndex registryvector.Index
	if cfg.VectorType != "" && cfg.VectorType != "disabled" {
		vectorLoader, err := registryvector.Select(cfg.VectorType)
		if err != nil {
			log.Warn("Vector index not available", "err", err)
		} else if vectorIndex, err = vectorLoader(ctx); err != nil {
			log.Warn("Failed to initialize vector index", "err", err)
		}
	}

	// Wire the domain engines
	events := memory.NewEmitter(store, cfg.EventsTTLDays)
	reg := graph.New(store, embedder, blobs, events, cfg)
	scanner := entangle.NewScanner(reg, cfg)
	scanCache, err := entangle.NewCache(store, blobs, cfg.ScanCacheTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize scan cache: %w", err)
	}
	engine := recall.NewEngine(reg, scanCache, cfg)
	orchestrator := gravity.NewOrchestrator(reg, engine, scanCache, cfg)
	pad := memory.NewScratchpad(scratchPad, cfg.ScratchpadDefaultTTL)
	patterns := memory.NewPatternStore(store, embedder, events, cfg)
	archiver := memory.NewArchiver(store)
	contextMgr := memory.NewContextManager(store, embedder, pad, cfg)

	// Set up gin
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(monitoring.MetricsMiddleware())
	if cfg.CORSEnabled {
		router.Use(corsMiddleware(cfg.CORSOrigins))
	}

	// Mount main route plugins on the main router.
	for _, loader := range registryroute.MainRouteLoaders() {
		if err := loader(router); err != nil {
			return nil, fmt.Errorf("failed to load routes: %w", err)
		}
	}

	// Mount API routes
	graphapi.MountRoutes(router, reg, events)
	recallapi.MountRoutes(router, engine)
	gravityapi.MountRoutes(router, orchestrator, scanner, scanCache)
	memoryapi.MountRoutes(router, memoryapi.Deps{
		Scratchpad: pad,
		Patterns:   patterns,
		Archiver:   archiver,
		Context:    contextMgr,
	})

	// Start background services
	backfill := service.NewEmbeddingBackfillService(scanner, seconds(cfg.EmbedBackfillInterval))
	go backfill.Start(ctx)

	scanSched := service.NewScanSchedulerService(scanner, scanCache, seconds(cfg.ScanInterval))
	go scanSched.Start(ctx)

	mirror := service.NewVectorMirrorService(store, vectorIndex, seconds(cfg.VectorMirrorInterval))
	go mirror.Start(ctx)

	// Mount management route plugins. With a dedicated management port,
	// run them on a bare gin engine served separately. Otherwise mount
	// them on the main router.
	var closeManagement func(context.Context) error
	if cfg.ManagementListenerEnabled {
		mgmtRouter := gin.New()
		mgmtRouter.Use(gin.Recovery())
		for _, loader := range registryroute.ManagementRouteLoaders() {
			if err := loader(mgmtRouter); err != nil {
				return nil, fmt.Errorf("failed to load management routes: %w", err)
			}
		}
		_, closeManagement, err = startManagementServer(cfg, mgmtRouter)
		if err != nil {
			return nil, fmt.Errorf("failed to start management server: %w", err)
		}
	} else {
		for _, loader := range registryroute.ManagementRouteLoaders() {
			if err := loader(router); err != nil {
				return nil, fmt.Errorf("failed to load management routes: %w", err)
			}
		}
	}

	running, err := StartHTTP(ctx, cfg, router)
	if err != nil {
		return nil, err
	}

	log.Info("Server listening", "port", running.Port)

	routesystem.MarkReady()
	return &Server{
		Config:          cfg,
		Store:           store,
		Registry:        reg,
		Router:          router,
		Running:         running,
		closeManagement: closeManagement,
	}, nil
}

func loadEmbedder(ctx context.Context, kind string) (registryembed.Embedder, error) {
	if kind == "" {
		kind = "none"
	}
	loader, err := registryembed.Select(kind)
	if err != nil {
		return nil, err
	}
	embedder, err := loader(ctx)
	if err != nil {
		log.Warn("Failed to initialize embedder, falling back to none", "kind", kind, "err", err)
		noneLoader, selErr := registryembed.Select("none")
		if selErr != nil {
			return nil, err
		}
		return noneLoader(ctx)
	}
	return embedder, nil
}
