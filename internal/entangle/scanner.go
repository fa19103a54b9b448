// Package entangle discovers cross-project resonance: embedding
// similarity between decisions and threads of different projects,
// clustered into connected components, plus lineage bridges and loose
// ends. Scans are persisted and served to recall through a cache.
package entangle

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/forgeos/graph-service/internal/config"
	"github.com/forgeos/graph-service/internal/graph"
	"github.com/forgeos/graph-service/internal/model"
	registryblob "github.com/forgeos/graph-service/internal/registry/blob"
	registrystore "github.com/forgeos/graph-service/internal/registry/store"
	"github.com/google/uuid"
)

// backfillBatch bounds one embedding backfill round.
const backfillBatch = 100

// Scanner runs full entanglement scans over the registries.
type Scanner struct {
	reg *graph.Registry
	cfg *config.Config
}

// NewScanner creates a Scanner.
func NewScanner(reg *graph.Registry, cfg *config.Config) *Scanner {
	return &Scanner{reg: reg, cfg: cfg}
}

// Scan runs a full scan: backfill missing thread embeddings, index all
// active decisions and unresolved threads, find pairwise resonances,
// derive lineage bridges, cluster, and persist the result.
func (s *Scanner) Scan(ctx context.Context) (*model.EntanglementScan, error) {
	if err := s.BackfillThreadEmbeddings(ctx); err != nil {
		log.Warn("thread embedding backfill failed, scanning what exists", "error", err)
	}

	store := s.reg.Store()
	decisions, err := store.ListDecisions(ctx, registrystore.DecisionFilter{Status: model.DecisionActive})
	if err != nil {
		return nil, err
	}
	threads, err := store.ListThreads(ctx, registrystore.ThreadFilter{StatusNot: model.ThreadResolved})
	if err != nil {
		return nil, err
	}

	items := map[string]model.ScanItem{}
	for _, d := range decisions {
		items[d.UUID] = model.ScanItem{
			UUID:    d.UUID,
			Type:    model.CategoryDecision,
			Project: d.Project,
			LocalID: d.LocalID,
			Text:    d.Text,
		}
	}
	for _, t := range threads {
		items[t.UUID] = model.ScanItem{
			UUID:    t.UUID,
			Type:    model.CategoryThread,
			Project: t.Project,
			LocalID: t.LocalID,
			Text:    t.Title,
		}
	}

	resonances := s.findResonances(ctx, decisions, threads)
	bridges, err := s.findBridges(ctx)
	if err != nil {
		log.Warn("lineage bridge pass failed", "error", err)
		bridges = nil
	}

	clusters := buildClusters(items, resonances)
	looseEnds := findLooseEnds(items, clusters)

	strong, weak := 0, 0
	for _, r := range resonances {
		if r.Strength == model.ResonanceStrong {
			strong++
		} else {
			weak++
		}
	}
	scan := &model.EntanglementScan{
		ScanID:    "scan_" + uuid.NewString(),
		ScannedAt: nowUTC(),
		Clusters:  clusters,
		Bridges:   bridges,
		LooseEnds: looseEnds,
		Stats: model.ScanStats{
			ItemsScanned:    len(items),
			ResonancesFound: len(resonances),
			ClusterCount:    len(clusters),
			BridgeCount:     len(bridges),
			LooseEndCount:   len(looseEnds),
			StrongCount:     strong,
			WeakCount:       weak,
		},
	}
	if err := s.persist(ctx, scan); err != nil {
		return nil, err
	}
	return scan, nil
}

// BackfillThreadEmbeddings embeds the titles of threads stored without
// an embedding, in batches.
func (s *Scanner) BackfillThreadEmbeddings(ctx context.Context) error {
	store := s.reg.Store()
	embedder := s.reg.Embedder()
	if embedder == nil {
		return nil
	}
	for {
		missing, err := store.ListThreadsMissingEmbeddings(ctx, backfillBatch)
		if err != nil {
			return err
		}
		if len(missing) == 0 {
			return nil
		}
		titles := make([]string, len(missing))
		for i, t := range missing {
			titles[i] = t.Title
		}
		vectors, err := embedder.EmbedTexts(ctx, titles)
		if err != nil {
			return err
		}
		if len(vectors) != len(missing) {
			return fmt.Errorf("embedder returned %d vectors for %d titles", len(vectors), len(missing))
		}
		for i, t := range missing {
			if err := store.SetThreadEmbedding(ctx, t.UUID, vectors[i]); err != nil {
				return err
			}
		}
		if len(missing) < backfillBatch {
			return nil
		}
	}
}

// findResonances runs the three search passes, deduplicating pairs by
// their sorted key. A failed search skips that item only.
func (s *Scanner) findResonances(ctx context.Context, decisions []model.Decision, threads []model.Thread) []model.Resonance {
	store := s.reg.Store()
	k := s.cfg.AttentionSearchK
	seen := map[string]bool{}
	var resonances []model.Resonance

	add := func(r model.Resonance) {
		key := pairKey(r.SourceUUID, r.TargetUUID)
		if seen[key] {
			return
		}
		seen[key] = true
		resonances = append(resonances, r)
	}

	// Pass 1: cross-project decision to decision.
	for i := range decisions {
		d := &decisions[i]
		if len(d.Embedding) == 0 {
			continue
		}
		hits, err := store.SearchDecisions(ctx, d.Embedding, k, registrystore.DecisionFilter{
			ProjectNot: d.Project,
			Status:     model.DecisionActive,
		})
		if err != nil {
			log.Warn("resonance search failed", "pass", "decision-decision", "uuid", d.UUID, "error", err)
			continue
		}
		for _, h := range hits {
			strength, ok := s.tier(h.Similarity)
			if !ok {
				continue
			}
			add(model.Resonance{
				SourceUUID:    d.UUID,
				TargetUUID:    h.UUID,
				SourceType:    model.CategoryDecision,
				TargetType:    model.CategoryDecision,
				SourceProject: d.Project,
				TargetProject: h.Project,
				SourceLocalID: d.LocalID,
				TargetLocalID: h.LocalID,
				Similarity:    h.Similarity,
				Strength:      strength,
			})
		}
	}

	// Pass 2: decision to thread, dropping same-project matches.
	for i := range decisions {
		d := &decisions[i]
		if len(d.Embedding) == 0 {
			continue
		}
		hits, err := store.SearchThreads(ctx, d.Embedding, k, registrystore.ThreadFilter{
			StatusNot: model.ThreadResolved,
		})
		if err != nil {
			log.Warn("resonance search failed", "pass", "decision-thread", "uuid", d.UUID, "error", err)
			continue
		}
		for _, h := range hits {
			if h.Project == d.Project {
				continue
			}
			strength, ok := s.tier(h.Similarity)
			if !ok {
				continue
			}
			add(model.Resonance{
				SourceUUID:    d.UUID,
				TargetUUID:    h.UUID,
				SourceType:    model.CategoryDecision,
				TargetType:    model.CategoryThread,
				SourceProject: d.Project,
				TargetProject: h.Project,
				SourceLocalID: d.LocalID,
				TargetLocalID: h.LocalID,
				Similarity:    h.Similarity,
				Strength:      strength,
			})
		}
	}

	// Pass 3: cross-project thread to thread.
	for i := range threads {
		t := &threads[i]
		if len(t.Embedding) == 0 {
			continue
		}
		hits, err := store.SearchThreads(ctx, t.Embedding, k, registrystore.ThreadFilter{
			ProjectNot: t.Project,
			StatusNot:  model.ThreadResolved,
		})
		if err != nil {
			log.Warn("resonance search failed", "pass", "thread-thread", "uuid", t.UUID, "error", err)
			continue
		}
		for _, h := range hits {
			strength, ok := s.tier(h.Similarity)
			if !ok {
				continue
			}
			add(model.Resonance{
				SourceUUID:    t.UUID,
				TargetUUID:    h.UUID,
				SourceType:    model.CategoryThread,
				TargetType:    model.CategoryThread,
				SourceProject: t.Project,
				TargetProject: h.Project,
				SourceLocalID: t.LocalID,
				TargetLocalID: h.LocalID,
				Similarity:    h.Similarity,
				Strength:      strength,
			})
		}
	}
	return resonances
}

func (s *Scanner) tier(similarity float64) (model.ResonanceStrength, bool) {
	switch {
	case similarity >= s.cfg.EntanglementStrongThreshold:
		return model.ResonanceStrong, true
	case similarity >= s.cfg.EntanglementWeakThreshold:
		return model.ResonanceWeak, true
	}
	return "", false
}

// findBridges derives the items referenced by lineage edges spanning
// more than one project.
func (s *Scanner) findBridges(ctx context.Context) ([]model.Bridge, error) {
	edges, err := s.reg.Store().ListLineageEdges(ctx, "")
	if err != nil {
		return nil, err
	}
	type agg struct {
		kind      model.Category
		projects  map[string]bool
		edgeCount int
	}
	byUUID := map[string]*agg{}
	record := func(id string, kind model.Category, e *model.LineageEdge) {
		a := byUUID[id]
		if a == nil {
			a = &agg{kind: kind, projects: map[string]bool{}}
			byUUID[id] = a
		}
		a.edgeCount++
		if e.SourceProject != "" {
			a.projects[e.SourceProject] = true
		}
		if e.TargetProject != "" {
			a.projects[e.TargetProject] = true
		}
	}
	for i := range edges {
		e := &edges[i]
		for _, id := range e.DecisionsCarried {
			record(id, model.CategoryDecision, e)
		}
		for _, id := range e.ThreadsCarried {
			record(id, model.CategoryThread, e)
		}
	}
	var bridges []model.Bridge
	for id, a := range byUUID {
		if len(a.projects) < 2 {
			continue
		}
		projects := make([]string, 0, len(a.projects))
		for p := range a.projects {
			projects = append(projects, p)
		}
		sort.Strings(projects)
		bridges = append(bridges, model.Bridge{
			UUID:      id,
			Type:      a.kind,
			Projects:  projects,
			EdgeCount: a.edgeCount,
		})
	}
	sort.Slice(bridges, func(i, j int) bool { return bridges[i].UUID < bridges[j].UUID })
	return bridges, nil
}

// buildClusters groups resonance endpoints into connected components
// and assembles one cluster per component, strongest first.
func buildClusters(items map[string]model.ScanItem, resonances []model.Resonance) []model.Cluster {
	uf := newUnionFind()
	for _, r := range resonances {
		uf.union(r.SourceUUID, r.TargetUUID)
	}

	byRoot := map[string][]model.Resonance{}
	for _, r := range resonances {
		root := uf.find(r.SourceUUID)
		byRoot[root] = append(byRoot[root], r)
	}

	var clusters []model.Cluster
	for root, members := range uf.components() {
		sort.Strings(members)
		cluster := model.Cluster{Resonances: byRoot[root]}
		projects := map[string]bool{}
		for _, id := range members {
			item, ok := items[id]
			if !ok {
				continue
			}
			cluster.Items = append(cluster.Items, item)
			projects[item.Project] = true
		}
		var sum float64
		for _, r := range cluster.Resonances {
			sum += r.Similarity
			if r.Similarity > cluster.StrongestLink {
				cluster.StrongestLink = r.Similarity
			}
		}
		if len(cluster.Resonances) > 0 {
			cluster.AvgSimilarity = sum / float64(len(cluster.Resonances))
		}
		cluster.Projects = sortedSet(projects)
		clusters = append(clusters, cluster)
	}
	sort.Slice(clusters, func(i, j int) bool {
		return clusters[i].AvgSimilarity > clusters[j].AvgSimilarity
	})
	for i := range clusters {
		clusters[i].ClusterID = fmt.Sprintf("cluster_%03d", i+1)
	}
	return clusters
}

// findLooseEnds returns indexed items missing from every cluster.
func findLooseEnds(items map[string]model.ScanItem, clusters []model.Cluster) []model.ScanItem {
	clustered := map[string]bool{}
	for _, c := range clusters {
		for _, item := range c.Items {
			clustered[item.UUID] = true
		}
	}
	ids := make([]string, 0, len(items))
	for id := range items {
		if !clustered[id] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	loose := make([]model.ScanItem, 0, len(ids))
	for _, id := range ids {
		loose = append(loose, items[id])
	}
	return loose
}

// persist blob-backs the heavy arrays when a blob store is available
// and saves the scan row.
func (s *Scanner) persist(ctx context.Context, scan *model.EntanglementScan) error {
	if blobs := s.reg.Blobs(); blobs != nil && s.cfg.BlobEnabled {
		if len(scan.Clusters) > 0 {
			if ref, err := registryblob.StoreJSON(ctx, blobs, scan.Clusters); err == nil {
				scan.ClustersBlobRef = ref
			} else {
				log.Warn("cluster blob store failed, keeping inline", "error", err)
			}
		}
		if len(scan.Bridges) > 0 {
			if ref, err := registryblob.StoreJSON(ctx, blobs, scan.Bridges); err == nil {
				scan.BridgesBlobRef = ref
			} else {
				log.Warn("bridge blob store failed, keeping inline", "error", err)
			}
		}
		if len(scan.LooseEnds) > 0 {
			if ref, err := registryblob.StoreJSON(ctx, blobs, scan.LooseEnds); err == nil {
				scan.LooseEndsBlobRef = ref
			} else {
				log.Warn("loose end blob store failed, keeping inline", "error", err)
			}
		}
	}
	// Blob-backed arrays are dropped from the stored row; readers
	// hydrate them from the refs.
	stored := *scan
	if stored.ClustersBlobRef != "" {
		stored.Clusters = nil
	}
	if stored.BridgesBlobRef != "" {
		stored.Bridges = nil
	}
	if stored.LooseEndsBlobRef != "" {
		stored.LooseEnds = nil
	}
	return s.reg.Store().SaveScan(ctx, &stored)
}

// FilterToProject narrows a full scan to the clusters, bridges, and
// loose ends touching the named project.
func FilterToProject(scan *model.EntanglementScan, project string) *model.EntanglementScan {
	if project == "" {
		return scan
	}
	out := &model.EntanglementScan{
		ScanID:    scan.ScanID,
		ScannedAt: scan.ScannedAt,
		Project:   project,
		Stats:     scan.Stats,
	}
	for _, c := range scan.Clusters {
		for _, p := range c.Projects {
			if p == project {
				out.Clusters = append(out.Clusters, c)
				break
			}
		}
	}
	for _, b := range scan.Bridges {
		for _, p := range b.Projects {
			if p == project {
				out.Bridges = append(out.Bridges, b)
				break
			}
		}
	}
	for _, item := range scan.LooseEnds {
		if item.Project == project {
			out.LooseEnds = append(out.LooseEnds, item)
		}
	}
	out.Stats.ClusterCount = len(out.Clusters)
	out.Stats.BridgeCount = len(out.Bridges)
	out.Stats.LooseEndCount = len(out.LooseEnds)
	return out
}

// pairKey builds an order-independent dedup key for a resonance pair.
func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

func sortedSet(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func nowUTC() time.Time { return time.Now().UTC() }
