package entangle

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/forgeos/graph-service/internal/model"
	"github.com/forgeos/graph-service/internal/monitoring"
	registryblob "github.com/forgeos/graph-service/internal/registry/blob"
	registrystore "github.com/forgeos/graph-service/internal/registry/store"
)

// Cache serves the latest entanglement scan to recall and gravity
// without a store round-trip per call. Blob-backed arrays are hydrated
// once on load.
type Cache struct {
	store registrystore.GraphStore
	blobs registryblob.Store
	cache *ristretto.Cache[string, *model.EntanglementScan]
	ttl   time.Duration
}

// NewCache creates a Cache. blobs may be nil.
func NewCache(store registrystore.GraphStore, blobs registryblob.Store, ttlSeconds int) (*Cache, error) {
	if ttlSeconds <= 0 {
		ttlSeconds = 300
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, *model.EntanglementScan]{
		NumCounters: 1 << 10,
		MaxCost:     1 << 6,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{
		store: store,
		blobs: blobs,
		cache: c,
		ttl:   time.Duration(ttlSeconds) * time.Second,
	}, nil
}

// Latest returns the most recent scan for a project (or the global
// scan when project is empty), hydrated and cached.
func (c *Cache) Latest(ctx context.Context, project string) (*model.EntanglementScan, error) {
	key := "scan:" + project
	if scan, ok := c.cache.Get(key); ok {
		monitoring.ScanCacheHitsTotal.Inc()
		return scan, nil
	}
	monitoring.ScanCacheMissesTotal.Inc()

	scan, err := c.store.LatestScan(ctx, "")
	if err != nil {
		return nil, err
	}
	if scan == nil {
		return nil, nil
	}
	c.hydrate(ctx, scan)
	scoped := FilterToProject(scan, project)
	c.cache.SetWithTTL(key, scoped, 1, c.ttl)
	return scoped, nil
}

// Invalidate drops every cached view; called after a fresh scan.
func (c *Cache) Invalidate() {
	c.cache.Clear()
}

// hydrate replaces blob refs with their decoded arrays. A missing blob
// leaves whatever was stored inline.
func (c *Cache) hydrate(ctx context.Context, scan *model.EntanglementScan) {
	if c.blobs == nil {
		return
	}
	if scan.ClustersBlobRef != "" && len(scan.Clusters) == 0 {
		var clusters []model.Cluster
		if err := registryblob.ResolveJSON(ctx, c.blobs, scan.ClustersBlobRef, &clusters); err == nil {
			scan.Clusters = clusters
		}
	}
	if scan.BridgesBlobRef != "" && len(scan.Bridges) == 0 {
		var bridges []model.Bridge
		if err := registryblob.ResolveJSON(ctx, c.blobs, scan.BridgesBlobRef, &bridges); err == nil {
			scan.Bridges = bridges
		}
	}
	if scan.LooseEndsBlobRef != "" && len(scan.LooseEnds) == 0 {
		var loose []model.ScanItem
		if err := registryblob.ResolveJSON(ctx, c.blobs, scan.LooseEndsBlobRef, &loose); err == nil {
			scan.LooseEnds = loose
		}
	}
}
