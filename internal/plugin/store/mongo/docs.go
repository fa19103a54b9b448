package mongo

import (
	"time"

	"github.com/forgeos/graph-service/internal/model"
)

type conversationDoc struct {
	UUID        string    `bson:"uuid"`
	SourceID    string    `bson:"source_id"`
	ProjectName string    `bson:"project_name"`
	ProjectUUID string    `bson:"project_uuid"`
	Name        string    `bson:"conversation_name,omitempty"`
	Summary     string    `bson:"summary,omitempty"`
	CreatedAtMs int64     `bson:"created_at_ms"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func (d *conversationDoc) toModel() *model.Conversation {
	return &model.Conversation{
		UUID:        d.UUID,
		SourceID:    d.SourceID,
		ProjectName: d.ProjectName,
		ProjectUUID: d.ProjectUUID,
		Name:        d.Name,
		Summary:     d.Summary,
		CreatedAtMs: d.CreatedAtMs,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func fromConversation(c *model.Conversation) *conversationDoc {
	return &conversationDoc{
		UUID:        c.UUID,
		SourceID:    c.SourceID,
		ProjectName: c.ProjectName,
		ProjectUUID: c.ProjectUUID,
		Name:        c.Name,
		Summary:     c.Summary,
		CreatedAtMs: c.CreatedAtMs,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

type decisionDoc struct {
	UUID                   string     `bson:"uuid"`
	LocalID                string     `bson:"local_id"`
	GlobalDisplayID        string     `bson:"global_display_id,omitempty"`
	Project                string     `bson:"project"`
	ProjectUUID            string     `bson:"project_uuid"`
	Text                   string     `bson:"text"`
	TextHash               string     `bson:"text_hash"`
	TextBlobRef            string     `bson:"text_blob_ref,omitempty"`
	EpistemicTier          *float64   `bson:"epistemic_tier"`
	Status                 string     `bson:"status"`
	Dependencies           []string   `bson:"dependencies"`
	ConflictsWith          []string   `bson:"conflicts_with"`
	SupersededBy           string     `bson:"superseded_by,omitempty"`
	Rationale              string     `bson:"rationale,omitempty"`
	HopsSinceValidated     int        `bson:"hops_since_validated"`
	LastValidated          time.Time  `bson:"last_validated"`
	OriginatedConversation string     `bson:"originated_conversation"`
	Embedding              []float32  `bson:"embedding,omitempty"`
	Similarity             float64    `bson:"similarity,omitempty"`
	CreatedAt              time.Time  `bson:"created_at"`
	UpdatedAt              time.Time  `bson:"updated_at"`
}

func (d *decisionDoc) toModel() *model.Decision {
	return &model.Decision{
		UUID:                   d.UUID,
		LocalID:                d.LocalID,
		GlobalDisplayID:        d.GlobalDisplayID,
		Project:                d.Project,
		ProjectUUID:            d.ProjectUUID,
		Text:                   d.Text,
		TextHash:               d.TextHash,
		TextBlobRef:            d.TextBlobRef,
		EpistemicTier:          d.EpistemicTier,
		Status:                 model.DecisionStatus(d.Status),
		Dependencies:           d.Dependencies,
		ConflictsWith:          d.ConflictsWith,
		SupersededBy:           d.SupersededBy,
		Rationale:              d.Rationale,
		HopsSinceValidated:     d.HopsSinceValidated,
		LastValidated:          d.LastValidated,
		OriginatedConversation: d.OriginatedConversation,
		Embedding:              d.Embedding,
		Similarity:             d.Similarity,
		CreatedAt:              d.CreatedAt,
		UpdatedAt:              d.UpdatedAt,
	}
}

func fromDecision(m *model.Decision) *decisionDoc {
	return &decisionDoc{
		UUID:                   m.UUID,
		LocalID:                m.LocalID,
		GlobalDisplayID:        m.GlobalDisplayID,
		Project:                m.Project,
		ProjectUUID:            m.ProjectUUID,
		Text:                   m.Text,
		TextHash:               m.TextHash,
		TextBlobRef:            m.TextBlobRef,
		EpistemicTier:          m.EpistemicTier,
		Status:                 string(m.Status),
		Dependencies:           emptyIfNil(m.Dependencies),
		ConflictsWith:          emptyIfNil(m.ConflictsWith),
		SupersededBy:           m.SupersededBy,
		Rationale:              m.Rationale,
		HopsSinceValidated:     m.HopsSinceValidated,
		LastValidated:          m.LastValidated,
		OriginatedConversation: m.OriginatedConversation,
		Embedding:              m.Embedding,
		CreatedAt:              m.CreatedAt,
		UpdatedAt:              m.UpdatedAt,
	}
}

type threadDoc struct {
	UUID                  string    `bson:"uuid"`
	LocalID               string    `bson:"local_id"`
	GlobalDisplayID       string    `bson:"global_display_id,omitempty"`
	Project               string    `bson:"project"`
	ProjectUUID           string    `bson:"project_uuid"`
	Title                 string    `bson:"title"`
	Status                string    `bson:"status"`
	Priority              string    `bson:"priority"`
	BlockedBy             []string  `bson:"blocked_by"`
	Resolution            string    `bson:"resolution,omitempty"`
	ResolutionBlobRef     string    `bson:"resolution_blob_ref,omitempty"`
	HopsSinceValidated    int       `bson:"hops_since_validated"`
	LastValidated         time.Time `bson:"last_validated"`
	FirstSeenConversation string    `bson:"first_seen_conversation"`
	Embedding             []float32 `bson:"embedding,omitempty"`
	Similarity            float64   `bson:"similarity,omitempty"`
	CreatedAt             time.Time `bson:"created_at"`
	UpdatedAt             time.Time `bson:"updated_at"`
}

func (d *threadDoc) toModel() *model.Thread {
	return &model.Thread{
		UUID:                  d.UUID,
		LocalID:               d.LocalID,
		GlobalDisplayID:       d.GlobalDisplayID,
		Project:               d.Project,
		ProjectUUID:           d.ProjectUUID,
		Title:                 d.Title,
		Status:                model.ThreadStatus(d.Status),
		Priority:              model.Priority(d.Priority),
		BlockedBy:             d.BlockedBy,
		Resolution:            d.Resolution,
		ResolutionBlobRef:     d.ResolutionBlobRef,
		HopsSinceValidated:    d.HopsSinceValidated,
		LastValidated:         d.LastValidated,
		FirstSeenConversation: d.FirstSeenConversation,
		Embedding:             d.Embedding,
		Similarity:            d.Similarity,
		CreatedAt:             d.CreatedAt,
		UpdatedAt:             d.UpdatedAt,
	}
}

func fromThread(m *model.Thread) *threadDoc {
	return &threadDoc{
		UUID:                  m.UUID,
		LocalID:               m.LocalID,
		GlobalDisplayID:       m.GlobalDisplayID,
		Project:               m.Project,
		ProjectUUID:           m.ProjectUUID,
		Title:                 m.Title,
		Status:                string(m.Status),
		Priority:              string(m.Priority),
		BlockedBy:             emptyIfNil(m.BlockedBy),
		Resolution:            m.Resolution,
		ResolutionBlobRef:     m.ResolutionBlobRef,
		HopsSinceValidated:    m.HopsSinceValidated,
		LastValidated:         m.LastValidated,
		FirstSeenConversation: m.FirstSeenConversation,
		Embedding:             m.Embedding,
		CreatedAt:             m.CreatedAt,
		UpdatedAt:             m.UpdatedAt,
	}
}

type primingDoc struct {
	UUID              string    `bson:"uuid"`
	Project           string    `bson:"project"`
	ProjectUUID       string    `bson:"project_uuid"`
	TerritoryName     string    `bson:"territory_name"`
	TerritoryKeys     []string  `bson:"territory_keys"`
	KeysText          string    `bson:"territory_keys_text"`
	ConfidenceFloor   float64   `bson:"confidence_floor"`
	FindingsCount     int       `bson:"findings_count"`
	Status            string    `bson:"status"`
	SourceExpeditions []string  `bson:"source_expeditions"`
	Embedding         []float32 `bson:"embedding,omitempty"`
	Similarity        float64   `bson:"similarity,omitempty"`
	CreatedAt         time.Time `bson:"created_at"`
	UpdatedAt         time.Time `bson:"updated_at"`
}

func (d *primingDoc) toModel() *model.PrimingBlock {
	return &model.PrimingBlock{
		UUID:              d.UUID,
		Project:           d.Project,
		ProjectUUID:       d.ProjectUUID,
		TerritoryName:     d.TerritoryName,
		TerritoryKeys:     d.TerritoryKeys,
		KeysText:          d.KeysText,
		ConfidenceFloor:   d.ConfidenceFloor,
		FindingsCount:     d.FindingsCount,
		Status:            model.PrimingStatus(d.Status),
		SourceExpeditions: d.SourceExpeditions,
		Embedding:         d.Embedding,
		Similarity:        d.Similarity,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

type flagDoc struct {
	UUID           string    `bson:"uuid"`
	Project        string    `bson:"project"`
	ProjectUUID    string    `bson:"project_uuid"`
	Description    string    `bson:"description"`
	Category       string    `bson:"category"`
	Status         string    `bson:"status"`
	ConversationID string    `bson:"conversation_id"`
	CompiledInto   string    `bson:"compiled_into,omitempty"`
	CreatedAt      time.Time `bson:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at"`
}

func (d *flagDoc) toModel() *model.Flag {
	return &model.Flag{
		UUID:           d.UUID,
		Project:        d.Project,
		ProjectUUID:    d.ProjectUUID,
		Description:    d.Description,
		Category:       model.FlagCategory(d.Category),
		Status:         model.FlagStatus(d.Status),
		ConversationID: d.ConversationID,
		CompiledInto:   d.CompiledInto,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

type compressionDoc struct {
	Tag                 string    `bson:"compression_tag"`
	Project             string    `bson:"project"`
	SourceConversation  string    `bson:"source_conversation"`
	TargetConversations []string  `bson:"target_conversations"`
	DecisionsCaptured   []string  `bson:"decisions_captured"`
	ThreadsCaptured     []string  `bson:"threads_captured"`
	ArtifactsCaptured   []string  `bson:"artifacts_captured"`
	Checksum            string    `bson:"checksum,omitempty"`
	CreatedAt           time.Time `bson:"created_at"`
	UpdatedAt           time.Time `bson:"updated_at"`
}

func (d *compressionDoc) toModel() *model.Compression {
	return &model.Compression{
		Tag:                 d.Tag,
		Project:             d.Project,
		SourceConversation:  d.SourceConversation,
		TargetConversations: d.TargetConversations,
		DecisionsCaptured:   d.DecisionsCaptured,
		ThreadsCaptured:     d.ThreadsCaptured,
		ArtifactsCaptured:   d.ArtifactsCaptured,
		Checksum:            d.Checksum,
		CreatedAt:           d.CreatedAt,
		UpdatedAt:           d.UpdatedAt,
	}
}

type lineageEdgeDoc struct {
	EdgeUUID           string    `bson:"edge_uuid"`
	SourceConversation string    `bson:"source_conversation"`
	TargetConversation string    `bson:"target_conversation"`
	CompressionTag     string    `bson:"compression_tag,omitempty"`
	DecisionsCarried   []string  `bson:"decisions_carried"`
	DecisionsDropped   []string  `bson:"decisions_dropped"`
	ThreadsCarried     []string  `bson:"threads_carried"`
	ThreadsResolved    []string  `bson:"threads_resolved"`
	SourceProject      string    `bson:"source_project,omitempty"`
	TargetProject      string    `bson:"target_project,omitempty"`
	CreatedAt          time.Time `bson:"created_at"`
	UpdatedAt          time.Time `bson:"updated_at"`
}

func (d *lineageEdgeDoc) toModel() *model.LineageEdge {
	return &model.LineageEdge{
		EdgeUUID:           d.EdgeUUID,
		SourceConversation: d.SourceConversation,
		TargetConversation: d.TargetConversation,
		CompressionTag:     d.CompressionTag,
		DecisionsCarried:   d.DecisionsCarried,
		DecisionsDropped:   d.DecisionsDropped,
		ThreadsCarried:     d.ThreadsCarried,
		ThreadsResolved:    d.ThreadsResolved,
		SourceProject:      d.SourceProject,
		TargetProject:      d.TargetProject,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
}

type patternDoc struct {
	PatternID            string         `bson:"pattern_id"`
	PatternType          string         `bson:"pattern_type"`
	Content              string         `bson:"content"`
	Embedding            []float32      `bson:"embedding,omitempty"`
	SuccessScore         float64        `bson:"success_score"`
	RetrievalCount       int            `bson:"retrieval_count"`
	LastUsed             time.Time      `bson:"last_used"`
	Tags                 []string       `bson:"tags"`
	SourceConversationID string         `bson:"source_conversation_id,omitempty"`
	SourceProjectName    string         `bson:"source_project_name,omitempty"`
	Metadata             map[string]any `bson:"metadata"`
	Similarity           float64        `bson:"similarity,omitempty"`
	CreatedAt            time.Time      `bson:"created_at"`
	UpdatedAt            time.Time      `bson:"updated_at"`
}

func (d *patternDoc) toModel() *model.Pattern {
	mergeCount := 1
	if d.Metadata != nil {
		switch v := d.Metadata["merge_count"].(type) {
		case int:
			mergeCount = v
		case int32:
			mergeCount = int(v)
		case int64:
			mergeCount = int(v)
		case float64:
			mergeCount = int(v)
		}
	}
	return &model.Pattern{
		PatternID:            d.PatternID,
		PatternType:          model.PatternType(d.PatternType),
		Content:              d.Content,
		Embedding:            d.Embedding,
		SuccessScore:         d.SuccessScore,
		RetrievalCount:       d.RetrievalCount,
		MergeCount:           mergeCount,
		LastUsed:             d.LastUsed,
		Tags:                 d.Tags,
		SourceConversationID: d.SourceConversationID,
		SourceProjectName:    d.SourceProjectName,
		Metadata:             d.Metadata,
		Similarity:           d.Similarity,
		CreatedAt:            d.CreatedAt,
		UpdatedAt:            d.UpdatedAt,
	}
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
