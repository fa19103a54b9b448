package entangle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeos/graph-service/internal/model"
)

func TestUnionFindComponents(t *testing.T) {
	uf := newUnionFind()
	uf.union("a", "b")
	uf.union("b", "c")
	uf.union("x", "y")
	uf.find("lonely")

	components := uf.components()
	require.Len(t, components, 2)

	sizes := map[int]int{}
	for _, members := range components {
		sizes[len(members)]++
	}
	assert.Equal(t, 1, sizes[3])
	assert.Equal(t, 1, sizes[2])
}

func TestPairKeyOrderIndependent(t *testing.T) {
	assert.Equal(t, pairKey("a", "b"), pairKey("b", "a"))
	assert.NotEqual(t, pairKey("a", "b"), pairKey("a", "c"))
}

func scanItem(uuid, project string) model.ScanItem {
	return model.ScanItem{UUID: uuid, Project: project, Type: model.CategoryDecision}
}

func TestBuildClustersGroupsTransitively(t *testing.T) {
	items := map[string]model.ScanItem{
		"a": scanItem("a", "forge"),
		"b": scanItem("b", "atlas"),
		"c": scanItem("c", "forge"),
		"d": scanItem("d", "quill"),
		"e": scanItem("e", "quill"),
	}
	resonances := []model.Resonance{
		{SourceUUID: "a", TargetUUID: "b", Similarity: 0.9},
		{SourceUUID: "b", TargetUUID: "c", Similarity: 0.7},
		{SourceUUID: "d", TargetUUID: "e", Similarity: 0.6},
	}

	clusters := buildClusters(items, resonances)
	require.Len(t, clusters, 2)

	// Sorted by average similarity, descending, with stable IDs.
	assert.Equal(t, "cluster_001", clusters[0].ClusterID)
	assert.Equal(t, "cluster_002", clusters[1].ClusterID)
	assert.GreaterOrEqual(t, clusters[0].AvgSimilarity, clusters[1].AvgSimilarity)

	first := clusters[0]
	assert.Len(t, first.Items, 3)
	assert.Equal(t, []string{"atlas", "forge"}, first.Projects)
	assert.InDelta(t, 0.8, first.AvgSimilarity, 0.001)
	assert.Equal(t, 0.9, first.StrongestLink)
}

func TestFindLooseEnds(t *testing.T) {
	items := map[string]model.ScanItem{
		"a": scanItem("a", "forge"),
		"b": scanItem("b", "atlas"),
		"c": scanItem("c", "quill"),
	}
	clusters := []model.Cluster{{Items: []model.ScanItem{scanItem("a", "forge"), scanItem("b", "atlas")}}}

	loose := findLooseEnds(items, clusters)
	require.Len(t, loose, 1)
	assert.Equal(t, "c", loose[0].UUID)
}

func TestFilterToProject(t *testing.T) {
	scan := &model.EntanglementScan{
		ScanID: "scan_1",
		Clusters: []model.Cluster{
			{ClusterID: "cluster_001", Projects: []string{"forge", "atlas"}},
			{ClusterID: "cluster_002", Projects: []string{"quill"}},
		},
		Bridges: []model.Bridge{
			{Projects: []string{"forge", "quill"}},
		},
		LooseEnds: []model.ScanItem{
			scanItem("a", "forge"),
			scanItem("b", "quill"),
		},
	}

	out := FilterToProject(scan, "forge")
	require.Len(t, out.Clusters, 1)
	assert.Equal(t, "cluster_001", out.Clusters[0].ClusterID)
	assert.Len(t, out.Bridges, 1)
	require.Len(t, out.LooseEnds, 1)
	assert.Equal(t, "a", out.LooseEnds[0].UUID)
	assert.Equal(t, 1, out.Stats.ClusterCount)
	assert.Equal(t, 1, out.Stats.BridgeCount)
	assert.Equal(t, 1, out.Stats.LooseEndCount)

	// Empty project returns the scan unchanged.
	assert.Same(t, scan, FilterToProject(scan, ""))
}
