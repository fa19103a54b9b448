// Package model defines the graph entities shared by the registries,
// the recall engines, and the store plugins.
package model

import "time"

// UpsertAction is the outcome of a registry upsert.
type UpsertAction string

const (
	ActionInserted  UpsertAction = "inserted"
	ActionUpdated   UpsertAction = "updated"
	ActionValidated UpsertAction = "validated"
)

// DecisionStatus is the lifecycle state of a decision.
type DecisionStatus string

const (
	DecisionActive     DecisionStatus = "active"
	DecisionSuperseded DecisionStatus = "superseded"
	DecisionDeprecated DecisionStatus = "deprecated"
)

// ThreadStatus is the lifecycle state of a thread.
type ThreadStatus string

const (
	ThreadOpen     ThreadStatus = "open"
	ThreadBlocked  ThreadStatus = "blocked"
	ThreadResolved ThreadStatus = "resolved"
)

// Priority orders threads; high sorts first.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Rank returns the sort key for a priority (high=0, medium=1, low=2).
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityLow:
		return 2
	default:
		return 1
	}
}

// PrimingStatus is the lifecycle state of a priming block.
type PrimingStatus string

const (
	PrimingActive   PrimingStatus = "active"
	PrimingInactive PrimingStatus = "inactive"
)

// FlagCategory classifies an expedition flag.
type FlagCategory string

const (
	FlagInversion     FlagCategory = "inversion"
	FlagIsomorphism   FlagCategory = "isomorphism"
	FlagFSD           FlagCategory = "fsd"
	FlagManifestation FlagCategory = "manifestation"
	FlagTrap          FlagCategory = "trap"
	FlagGeneral       FlagCategory = "general"
)

// Valid reports whether the category is one of the known values.
func (c FlagCategory) Valid() bool {
	switch c {
	case FlagInversion, FlagIsomorphism, FlagFSD, FlagManifestation, FlagTrap, FlagGeneral:
		return true
	}
	return false
}

// FlagStatus is the lifecycle state of an expedition flag.
type FlagStatus string

const (
	FlagPending  FlagStatus = "pending"
	FlagCompiled FlagStatus = "compiled"
)

// Role is a project's disposition within the gravity field.
type Role string

const (
	RoleConnector Role = "connector"
	RoleNavigator Role = "navigator"
	RoleBuilder   Role = "builder"
	RoleEvaluator Role = "evaluator"
	RoleCritic    Role = "critic"
	RoleCompiler  Role = "compiler"
)

// GravityType is the dispositional effect a role exerts on recall.
type GravityType string

const (
	GravityLateral        GravityType = "lateral"
	GravityDirectional    GravityType = "directional"
	GravityImplementation GravityType = "implementation"
	GravityQuality        GravityType = "quality"
	GravityCritical       GravityType = "critical"
	GravitySynthesis      GravityType = "synthesis"
)

// GravityType maps a role to its gravity type.
func (r Role) GravityType() (GravityType, bool) {
	switch r {
	case RoleConnector:
		return GravityLateral, true
	case RoleNavigator:
		return GravityDirectional, true
	case RoleBuilder:
		return GravityImplementation, true
	case RoleEvaluator:
		return GravityQuality, true
	case RoleCritic:
		return GravityCritical, true
	case RoleCompiler:
		return GravitySynthesis, true
	}
	return "", false
}

// Category tags the source collection of a recall result.
type Category string

const (
	CategoryDecision     Category = "decision"
	CategoryThread       Category = "thread"
	CategoryPriming      Category = "priming"
	CategoryPattern      Category = "pattern"
	CategoryConversation Category = "conversation"
	CategoryMessage      Category = "message"
)

// Boost returns the attention category boost for this source.
func (c Category) Boost() float64 {
	switch c {
	case CategoryDecision:
		return 1.0
	case CategoryThread:
		return 0.8
	case CategoryPriming:
		return 0.6
	case CategoryPattern:
		return 0.4
	case CategoryConversation:
		return 0.2
	default:
		return 0.0
	}
}

// Conversation maps a source-service conversation to its graph identity.
type Conversation struct {
	UUID          string    `json:"uuid"`
	SourceID      string    `json:"source_id"`
	ProjectName   string    `json:"project_name"`
	ProjectUUID   string    `json:"project_uuid"`
	Name          string    `json:"name,omitempty"`
	Summary       string    `json:"summary,omitempty"`
	CreatedAtMs   int64     `json:"created_at_ms"`
	Similarity    float64   `json:"similarity,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ProjectSummary is the roll-up row produced by listing projects.
type ProjectSummary struct {
	ProjectName string `json:"project_name"`
	ProjectUUID string `json:"project_uuid"`
	Count       int64  `json:"count"`
	EarliestMs  int64  `json:"earliest_ms"`
	LatestMs    int64  `json:"latest_ms"`
}

// Decision is a first-class commitment distilled from a conversation.
type Decision struct {
	UUID                   string         `json:"uuid"`
	LocalID                string         `json:"local_id"`
	GlobalDisplayID        string         `json:"global_display_id,omitempty"`
	Project                string         `json:"project"`
	ProjectUUID            string         `json:"project_uuid"`
	Text                   string         `json:"text"`
	TextHash               string         `json:"text_hash"`
	TextBlobRef            string         `json:"text_blob_ref,omitempty"`
	EpistemicTier          *float64       `json:"epistemic_tier"`
	Status                 DecisionStatus `json:"status"`
	Dependencies           []string       `json:"dependencies,omitempty"`
	ConflictsWith          []string       `json:"conflicts_with"`
	SupersededBy           string         `json:"superseded_by,omitempty"`
	Rationale              string         `json:"rationale,omitempty"`
	HopsSinceValidated     int            `json:"hops_since_validated"`
	LastValidated          time.Time      `json:"last_validated"`
	OriginatedConversation string         `json:"originated_conversation"`
	Embedding              []float32      `json:"-"`
	Similarity             float64        `json:"similarity,omitempty"`
	CreatedAt              time.Time      `json:"created_at"`
	UpdatedAt              time.Time      `json:"updated_at"`
}

// Thread is an open line of work tracked across conversations.
type Thread struct {
	UUID                  string       `json:"uuid"`
	LocalID               string       `json:"local_id"`
	GlobalDisplayID       string       `json:"global_display_id,omitempty"`
	Project               string       `json:"project"`
	ProjectUUID           string       `json:"project_uuid"`
	Title                 string       `json:"title"`
	Status                ThreadStatus `json:"status"`
	Priority              Priority     `json:"priority"`
	BlockedBy             []string     `json:"blocked_by,omitempty"`
	Resolution            string       `json:"resolution,omitempty"`
	ResolutionBlobRef     string       `json:"resolution_blob_ref,omitempty"`
	HopsSinceValidated    int          `json:"hops_since_validated"`
	LastValidated         time.Time    `json:"last_validated"`
	FirstSeenConversation string       `json:"first_seen_conversation"`
	Embedding             []float32    `json:"-"`
	Similarity            float64      `json:"similarity,omitempty"`
	CreatedAt             time.Time    `json:"created_at"`
	UpdatedAt             time.Time    `json:"updated_at"`
}

// PrimingBlock is a reusable context-orienting document keyed by territory.
type PrimingBlock struct {
	UUID              string        `json:"uuid"`
	Project           string        `json:"project"`
	ProjectUUID       string        `json:"project_uuid"`
	TerritoryName     string        `json:"territory_name"`
	TerritoryKeys     []string      `json:"territory_keys"`
	KeysText          string        `json:"territory_keys_text"`
	ConfidenceFloor   float64       `json:"confidence_floor"`
	FindingsCount     int           `json:"findings_count"`
	Status            PrimingStatus `json:"status"`
	SourceExpeditions []string      `json:"source_expeditions,omitempty"`
	Embedding         []float32     `json:"-"`
	Similarity        float64       `json:"similarity,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// Flag is a lightweight bookmark planted during a conversation.
type Flag struct {
	UUID           string       `json:"uuid"`
	Project        string       `json:"project"`
	ProjectUUID    string       `json:"project_uuid"`
	Description    string       `json:"description"`
	Category       FlagCategory `json:"category"`
	Status         FlagStatus   `json:"status"`
	ConversationID string       `json:"conversation_id"`
	CompiledInto   string       `json:"compiled_into,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// Compression records one archive/compression event, keyed by its tag.
type Compression struct {
	Tag                 string    `json:"compression_tag"`
	Project             string    `json:"project"`
	SourceConversation  string    `json:"source_conversation"`
	TargetConversations []string  `json:"target_conversations"`
	DecisionsCaptured   []string  `json:"decisions_captured"`
	ThreadsCaptured     []string  `json:"threads_captured"`
	ArtifactsCaptured   []string  `json:"artifacts_captured"`
	Checksum            string    `json:"checksum,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// LineageEdge is one compression hop between two conversations.
type LineageEdge struct {
	EdgeUUID           string    `json:"edge_uuid"`
	SourceConversation string    `json:"source_conversation"`
	TargetConversation string    `json:"target_conversation"`
	CompressionTag     string    `json:"compression_tag,omitempty"`
	DecisionsCarried   []string  `json:"decisions_carried"`
	DecisionsDropped   []string  `json:"decisions_dropped"`
	ThreadsCarried     []string  `json:"threads_carried"`
	ThreadsResolved    []string  `json:"threads_resolved"`
	SourceProject      string    `json:"source_project,omitempty"`
	TargetProject      string    `json:"target_project,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// DisplayIDEntry is a reverse-index row mapping a display ID to its entity.
type DisplayIDEntry struct {
	DisplayID  string `json:"display_id"`
	EntityUUID string `json:"entity_uuid"`
	Collection string `json:"collection"`
	Project    string `json:"project"`
}

// Event is one append-only audit record.
type Event struct {
	EventType string         `json:"event_type"`
	Timestamp time.Time      `json:"timestamp"`
	Details   map[string]any `json:"details"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// PatternType classifies a stored pattern.
type PatternType string

const (
	PatternRouting       PatternType = "routing"
	PatternExecution     PatternType = "execution"
	PatternErrorRecovery PatternType = "error_recovery"
	PatternOptimization  PatternType = "optimization"
)

// Pattern is a self-merging similarity-scored memory record.
type Pattern struct {
	PatternID            string         `json:"pattern_id"`
	PatternType          PatternType    `json:"pattern_type"`
	Content              string         `json:"content"`
	Embedding            []float32      `json:"-"`
	SuccessScore         float64        `json:"success_score"`
	RetrievalCount       int            `json:"retrieval_count"`
	MergeCount           int            `json:"merge_count"`
	LastUsed             time.Time      `json:"last_used"`
	Tags                 []string       `json:"tags,omitempty"`
	SourceConversationID string         `json:"source_conversation_id,omitempty"`
	SourceProjectName    string         `json:"source_project_name,omitempty"`
	Metadata             map[string]any `json:"metadata,omitempty"`
	Similarity           float64        `json:"similarity,omitempty"`
	Confidence           float64        `json:"confidence,omitempty"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

// ArchiveEntry is a retention-policied copy of a record from another collection.
type ArchiveEntry struct {
	ArchiveID        string         `json:"archive_id"`
	SourceCollection string         `json:"source_collection"`
	SourceID         string         `json:"source_id"`
	Content          string         `json:"content"`
	RetentionPolicy  string         `json:"retention_policy"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	ExpiresAt        *time.Time     `json:"expires_at,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}

// ProjectRole assigns a gravity role to a project.
type ProjectRole struct {
	Project     string      `json:"project"`
	Role        Role        `json:"role"`
	Weight      float64     `json:"weight"`
	GravityType GravityType `json:"gravity_type"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// LensSpec is one (project, role, weight) triple of a lens configuration.
type LensSpec struct {
	Project string  `json:"project"`
	Role    Role    `json:"role"`
	Weight  float64 `json:"weight"`
}

// LensConfig is a named set of lenses plus a default budget.
type LensConfig struct {
	Name          string     `json:"name"`
	Lenses        []LensSpec `json:"lenses"`
	DefaultBudget int        `json:"default_budget"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Message is an ingested raw chat message; only searched, never mutated here.
type Message struct {
	ConversationID string    `json:"conversation_id"`
	ProjectName    string    `json:"project_name"`
	Sender         string    `json:"sender"`
	Text           string    `json:"text"`
	Similarity     float64   `json:"similarity,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
