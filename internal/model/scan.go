package model

import "time"

// ResonanceStrength tiers a resonance by similarity.
type ResonanceStrength string

const (
	ResonanceStrong ResonanceStrength = "strong"
	ResonanceWeak   ResonanceStrength = "weak"
)

// ScanItem is one decision or thread as seen by the entanglement scanner.
type ScanItem struct {
	UUID    string   `json:"uuid"`
	Type    Category `json:"type"` // decision or thread
	Project string   `json:"project"`
	LocalID string   `json:"local_id,omitempty"`
	Text    string   `json:"text"`
}

// Resonance is a pairwise embedding similarity above the weak threshold.
type Resonance struct {
	SourceUUID    string            `json:"source_uuid"`
	TargetUUID    string            `json:"target_uuid"`
	SourceType    Category          `json:"source_type"`
	TargetType    Category          `json:"target_type"`
	SourceProject string            `json:"source_project"`
	TargetProject string            `json:"target_project"`
	SourceLocalID string            `json:"source_local_id,omitempty"`
	TargetLocalID string            `json:"target_local_id,omitempty"`
	Similarity    float64           `json:"similarity"`
	Strength      ResonanceStrength `json:"strength"`
}

// Cluster is a connected component of the resonance graph.
type Cluster struct {
	ClusterID     string      `json:"cluster_id"`
	Items         []ScanItem  `json:"items"`
	Projects      []string    `json:"projects"`
	Resonances    []Resonance `json:"resonances"`
	AvgSimilarity float64     `json:"avg_similarity"`
	StrongestLink float64     `json:"strongest_link"`
}

// Bridge is an item referenced by lineage edges spanning multiple projects.
type Bridge struct {
	UUID      string   `json:"uuid"`
	Type      Category `json:"type"`
	Projects  []string `json:"projects"`
	EdgeCount int      `json:"edge_count"`
}

// ScanStats summarizes one entanglement scan.
type ScanStats struct {
	ItemsScanned    int `json:"items_scanned"`
	ResonancesFound int `json:"resonances_found"`
	ClusterCount    int `json:"cluster_count"`
	BridgeCount     int `json:"bridge_count"`
	LooseEndCount   int `json:"loose_end_count"`
	StrongCount     int `json:"strong_count"`
	WeakCount       int `json:"weak_count"`
}

// EntanglementScan is a persisted scan result. The heavy arrays may be
// blob-backed; readers prefer the blob refs when present.
type EntanglementScan struct {
	ScanID           string     `json:"scan_id"`
	ScannedAt        time.Time  `json:"scanned_at"`
	Project          string     `json:"project,omitempty"`
	Clusters         []Cluster  `json:"clusters,omitempty"`
	Bridges          []Bridge   `json:"bridges,omitempty"`
	LooseEnds        []ScanItem `json:"loose_ends,omitempty"`
	Stats            ScanStats  `json:"stats"`
	ClustersBlobRef  string     `json:"clusters_blob_ref,omitempty"`
	BridgesBlobRef   string     `json:"bridges_blob_ref,omitempty"`
	LooseEndsBlobRef string     `json:"loose_ends_blob_ref,omitempty"`
}
