package config

import (
	"context"
	"os"
	"path/filepath"
)

type contextKey struct{}

// WithContext returns a new context carrying the config.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, contextKey{}, cfg)
}

// FromContext returns the config carried by the context, or nil.
func FromContext(ctx context.Context) *Config {
	cfg, _ := ctx.Value(contextKey{}).(*Config)
	return cfg
}

// Config holds all runtime configuration for the graph service.
type Config struct {
	// Server
	Port                      int
	ManagementPort            int // 0 means management routes share the main port
	ManagementListenerEnabled bool
	ReadHeaderTimeout         int // seconds
	DrainTimeout              int // seconds
	CORSEnabled               bool
	CORSOrigins               string

	// Store
	StoreType    string
	StoreURI     string
	DatabaseName string

	// Embedding
	EmbedType      string
	EmbedAPIKey    string
	EmbedModel     string
	EmbedDims      int
	EmbedBatchSize int

	// Blob store
	BlobEnabled      bool
	BlobBackend      string
	BlobLocalPath    string
	BlobBucket       string
	BlobUsePathStyle bool
	BlobThreshold    int // chars below this stay inline

	// Vector index (optional secondary index beside the store's own)
	VectorType  string
	VectorIndex string
	QdrantHost  string
	PgVectorURL string

	// Scratchpad / caches
	ScratchType  string
	RedisURL     string
	ScanCacheTTL int // seconds

	// Staleness
	StaleMaxHops int
	StaleMaxDays int

	// Conflict detection
	ConflictSimilarityThreshold     float64
	ConflictHighSimilarity          float64
	ConflictTierDivergenceThreshold float64
	ConflictHighTierDivergence      float64

	// Entanglement
	EntanglementStrongThreshold float64
	EntanglementWeakThreshold   float64

	// Priming
	PrimingMatchThreshold float64

	// Attention
	AttentionSimilarityWeight float64
	AttentionTierWeight       float64
	AttentionFreshnessWeight  float64
	AttentionConflictWeight   float64
	AttentionCategoryWeight   float64
	AttentionHalfLifeDays     float64
	AttentionMinScore         float64
	AttentionDefaultBudget    int
	AttentionSearchK          int

	// Gravity
	GravityDefaultBudget    int
	GravityMaxLenses        int
	GravityConvergenceBoost float64
	GravityJaccardThreshold float64
	GravityTierMismatch     float64

	// Memory layer
	ScratchpadDefaultTTL         int // seconds
	EventsTTLDays                int
	PatternMergeThreshold        float64
	PatternConfidenceSimWeight   float64
	PatternConfidenceScoreWeight float64
	PatternDefaultLimit          int

	// Sync
	SyncManifestPath string

	// Background services (seconds; 0 disables)
	EmbedBackfillInterval int
	ScanInterval          int
	VectorMirrorInterval  int

	// Monitoring
	MetricsEnabled bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Port:              8080,
		ReadHeaderTimeout: 5,
		DrainTimeout:      30,

		StoreType:    "mongo",
		DatabaseName: "forgeos",

		EmbedType:      "voyage",
		EmbedModel:     "voyage-3",
		EmbedDims:      1024,
		EmbedBatchSize: 128,

		BlobEnabled:   true,
		BlobBackend:   "local",
		BlobLocalPath: defaultBlobPath(),
		BlobThreshold: 500,

		VectorType:   "disabled",
		VectorIndex:  "vector_index",
		ScratchType:  "mongo",
		ScanCacheTTL: 300,

		StaleMaxHops: 3,
		StaleMaxDays: 30,

		ConflictSimilarityThreshold:     0.85,
		ConflictHighSimilarity:          0.92,
		ConflictTierDivergenceThreshold: 0.2,
		ConflictHighTierDivergence:      0.4,

		EntanglementStrongThreshold: 0.65,
		EntanglementWeakThreshold:   0.50,

		PrimingMatchThreshold: 0.7,

		AttentionSimilarityWeight: 0.45,
		AttentionTierWeight:       0.20,
		AttentionFreshnessWeight:  0.15,
		AttentionConflictWeight:   0.10,
		AttentionCategoryWeight:   0.10,
		AttentionHalfLifeDays:     30,
		AttentionMinScore:         0.1,
		AttentionDefaultBudget:    4000,
		AttentionSearchK:          10,

		GravityDefaultBudget:    6000,
		GravityMaxLenses:        6,
		GravityConvergenceBoost: 1.3,
		GravityJaccardThreshold: 0.70,
		GravityTierMismatch:     0.25,

		ScratchpadDefaultTTL:         3600,
		EventsTTLDays:                90,
		PatternMergeThreshold:        0.9,
		PatternConfidenceSimWeight:   0.6,
		PatternConfidenceScoreWeight: 0.4,
		PatternDefaultLimit:          5,

		EmbedBackfillInterval: 300,
		ScanInterval:          1800,
		VectorMirrorInterval:  600,

		MetricsEnabled: true,
	}
}

func defaultBlobPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "forgeos-blobs")
	}
	return filepath.Join(home, ".forgeos", "blobs")
}
