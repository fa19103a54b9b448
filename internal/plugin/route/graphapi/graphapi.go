// Package graphapi mounts the registry write/read routes: conversations,
// decisions, threads, priming, flags, compressions, lineage, display
// IDs, and the event log.
package graphapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/forgeos/graph-service/internal/graph"
	"github.com/forgeos/graph-service/internal/memory"
	"github.com/forgeos/graph-service/internal/model"
	registryroute "github.com/forgeos/graph-service/internal/registry/route"
	registrystore "github.com/forgeos/graph-service/internal/registry/store"
)

func init() {
	registryroute.Register(registryroute.Plugin{
		Order: 100,
		Loader: func(r *gin.Engine) error {
			return nil // routes are mounted by the serve command after store init
		},
	})
}

// MountRoutes mounts registry routes. Called after store initialization
// so the registry is available.
func MountRoutes(r *gin.Engine, reg *graph.Registry, events *memory.Emitter) {
	g := r.Group("/v1")

	g.POST("/conversations", func(c *gin.Context) { registerConversation(c, reg) })
	g.GET("/conversations/:id", func(c *gin.Context) { resolveConversation(c, reg) })
	g.GET("/projects", func(c *gin.Context) { listProjects(c, reg) })

	g.POST("/decisions", func(c *gin.Context) { upsertDecision(c, reg) })
	g.GET("/decisions/:uuid", func(c *gin.Context) { getDecision(c, reg) })
	g.POST("/decisions/:uuid/supersede", func(c *gin.Context) { supersedeDecision(c, reg) })
	g.GET("/projects/:project/decisions", func(c *gin.Context) { listDecisions(c, reg) })

	g.POST("/threads", func(c *gin.Context) { upsertThread(c, reg) })
	g.GET("/threads/:uuid", func(c *gin.Context) { getThread(c, reg) })
	g.POST("/threads/:uuid/resolve", func(c *gin.Context) { resolveThread(c, reg) })
	g.GET("/projects/:project/threads", func(c *gin.Context) { listThreads(c, reg) })

	g.POST("/priming", func(c *gin.Context) { upsertPriming(c, reg) })
	g.GET("/priming/relevant", func(c *gin.Context) { findRelevantPriming(c, reg) })
	g.POST("/priming/:uuid/deactivate", func(c *gin.Context) { deactivatePriming(c, reg) })
	g.GET("/projects/:project/priming", func(c *gin.Context) { listPriming(c, reg) })

	g.POST("/flags", func(c *gin.Context) { plantFlag(c, reg) })
	g.POST("/flags/:uuid/compile", func(c *gin.Context) { compileFlag(c, reg) })
	g.GET("/projects/:project/flags", func(c *gin.Context) { listFlags(c, reg) })

	g.POST("/compressions", func(c *gin.Context) { registerCompression(c, reg) })
	g.GET("/compressions/:tag", func(c *gin.Context) { getCompression(c, reg) })
	g.POST("/compressions/:tag/verify", func(c *gin.Context) { verifyChecksum(c, reg) })

	g.POST("/lineage/edges", func(c *gin.Context) { addLineageEdge(c, reg) })
	g.GET("/lineage/trace/:uuid", func(c *gin.Context) { traceConversation(c, reg) })
	g.GET("/lineage/graph", func(c *gin.Context) { lineageGraph(c, reg) })

	g.GET("/display-ids/:id", func(c *gin.Context) { resolveDisplayID(c, reg) })
	g.POST("/projects/:project/display-ids/backfill", func(c *gin.Context) { backfillDisplayIDs(c, reg) })

	g.GET("/events", func(c *gin.Context) { listEvents(c, events) })
}

func registerConversation(c *gin.Context, reg *graph.Registry) {
	var req struct {
		SourceID    string `json:"source_id"`
		ProjectName string `json:"project_name"`
		Name        string `json:"name"`
		Summary     string `json:"summary"`
		CreatedAt   string `json:"created_at"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	in := graph.RegisterConversationInput{
		SourceID:    req.SourceID,
		ProjectName: req.ProjectName,
		Name:        req.Name,
		Summary:     req.Summary,
	}
	if req.CreatedAt != "" {
		ts, err := time.Parse(time.RFC3339, req.CreatedAt)
		if err != nil {
			badRequest(c, fmt.Errorf("created_at: %w", err))
			return
		}
		in.CreatedAt = ts
	}
	conversation, action, err := reg.RegisterConversation(c.Request.Context(), in)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": conversation, "action": action})
}

func resolveConversation(c *gin.Context, reg *graph.Registry) {
	conversation, err := reg.ResolveID(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, conversation)
}

func listProjects(c *gin.Context, reg *graph.Registry) {
	projects, err := reg.ListProjects(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": projects})
}

func upsertDecision(c *gin.Context, reg *graph.Registry) {
	var req struct {
		LocalID                string   `json:"local_id"`
		Text                   string   `json:"text"`
		Project                string   `json:"project"`
		OriginatedConversation string   `json:"originated_conversation"`
		EpistemicTier          *float64 `json:"epistemic_tier"`
		Status                 string   `json:"status"`
		Dependencies           []string `json:"dependencies"`
		Rationale              string   `json:"rationale"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	result, err := reg.UpsertDecision(c.Request.Context(), graph.DecisionInput{
		LocalID:                req.LocalID,
		Text:                   req.Text,
		Project:                req.Project,
		OriginatedConversation: req.OriginatedConversation,
		EpistemicTier:          req.EpistemicTier,
		Status:                 model.DecisionStatus(req.Status),
		Dependencies:           req.Dependencies,
		Rationale:              req.Rationale,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"decision":  result.Decision,
		"action":    result.Action,
		"conflicts": result.Conflicts,
	})
}

func getDecision(c *gin.Context, reg *graph.Registry) {
	decision, err := reg.GetDecision(c.Request.Context(), c.Param("uuid"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, decision)
}

func supersedeDecision(c *gin.Context, reg *graph.Registry) {
	var req struct {
		SupersededBy string `json:"superseded_by"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := reg.SupersedeDecision(c.Request.Context(), c.Param("uuid"), req.SupersededBy); err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "superseded"})
}

func listDecisions(c *gin.Context, reg *graph.Registry) {
	ctx := c.Request.Context()
	project := c.Param("project")
	if c.Query("stale") == "true" {
		stale, err := reg.StaleDecisions(ctx, project)
		if err != nil {
			handleError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": stale})
		return
	}
	decisions, err := reg.ListActiveDecisions(ctx, project)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": decisions})
}

func upsertThread(c *gin.Context, reg *graph.Registry) {
	var req struct {
		LocalID               string   `json:"local_id"`
		Title                 string   `json:"title"`
		Project               string   `json:"project"`
		FirstSeenConversation string   `json:"first_seen_conversation"`
		Status                string   `json:"status"`
		Priority              string   `json:"priority"`
		BlockedBy             []string `json:"blocked_by"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	result, err := reg.UpsertThread(c.Request.Context(), graph.ThreadInput{
		LocalID:               req.LocalID,
		Title:                 req.Title,
		Project:               req.Project,
		FirstSeenConversation: req.FirstSeenConversation,
		Status:                model.ThreadStatus(req.Status),
		Priority:              model.Priority(req.Priority),
		BlockedBy:             req.BlockedBy,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"thread": result.Thread, "action": result.Action})
}

func getThread(c *gin.Context, reg *graph.Registry) {
	thread, err := reg.GetThread(c.Request.Context(), c.Param("uuid"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, thread)
}

func resolveThread(c *gin.Context, reg *graph.Registry) {
	var req struct {
		Resolution string `json:"resolution"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := reg.ResolveThread(c.Request.Context(), c.Param("uuid"), req.Resolution); err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "resolved"})
}

func listThreads(c *gin.Context, reg *graph.Registry) {
	ctx := c.Request.Context()
	project := c.Param("project")
	if c.Query("stale") == "true" {
		stale, err := reg.StaleThreads(ctx, project)
		if err != nil {
			handleError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": stale})
		return
	}
	threads, err := reg.OpenThreads(ctx, project)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": threads})
}

func upsertPriming(c *gin.Context, reg *graph.Registry) {
	var req struct {
		Project          string   `json:"project"`
		TerritoryName    string   `json:"territory_name"`
		TerritoryKeys    []string `json:"territory_keys"`
		ConfidenceFloor  float64  `json:"confidence_floor"`
		FindingsCount    int      `json:"findings_count"`
		SourceExpedition string   `json:"source_expedition"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	priming, action, err := reg.UpsertPriming(c.Request.Context(), graph.PrimingInput{
		Project:          req.Project,
		TerritoryName:    req.TerritoryName,
		TerritoryKeys:    req.TerritoryKeys,
		ConfidenceFloor:  req.ConfidenceFloor,
		FindingsCount:    req.FindingsCount,
		SourceExpedition: req.SourceExpedition,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"priming": priming, "action": action})
}

func findRelevantPriming(c *gin.Context, reg *graph.Registry) {
	project := c.Query("project")
	query := c.Query("query")
	if query == "" {
		badRequest(c, errors.New("query is required"))
		return
	}
	blocks, err := reg.FindRelevantPriming(c.Request.Context(), project, query)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": blocks})
}

func deactivatePriming(c *gin.Context, reg *graph.Registry) {
	if err := reg.DeactivatePriming(c.Request.Context(), c.Param("uuid")); err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "inactive"})
}

func listPriming(c *gin.Context, reg *graph.Registry) {
	blocks, err := reg.ListPriming(c.Request.Context(), c.Param("project"), model.PrimingStatus(c.Query("status")))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": blocks})
}

func plantFlag(c *gin.Context, reg *graph.Registry) {
	var req struct {
		Project        string `json:"project"`
		Description    string `json:"description"`
		Category       string `json:"category"`
		ConversationID string `json:"conversation_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	flag, planted, err := reg.PlantFlag(c.Request.Context(), graph.FlagInput{
		Project:        req.Project,
		Description:    req.Description,
		Category:       model.FlagCategory(req.Category),
		ConversationID: req.ConversationID,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"flag": flag, "planted": planted})
}

func compileFlag(c *gin.Context, reg *graph.Registry) {
	var req struct {
		CompiledInto string `json:"compiled_into"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := reg.CompileFlag(c.Request.Context(), c.Param("uuid"), req.CompiledInto); err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "compiled"})
}

func listFlags(c *gin.Context, reg *graph.Registry) {
	flags, err := reg.ListFlags(c.Request.Context(), c.Param("project"),
		model.FlagStatus(c.Query("status")), model.FlagCategory(c.Query("category")))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": flags})
}

func registerCompression(c *gin.Context, reg *graph.Registry) {
	var req struct {
		Tag                 string   `json:"compression_tag"`
		Project             string   `json:"project"`
		SourceConversation  string   `json:"source_conversation"`
		TargetConversations []string `json:"target_conversations"`
		DecisionsCaptured   []string `json:"decisions_captured"`
		ThreadsCaptured     []string `json:"threads_captured"`
		ArtifactsCaptured   []string `json:"artifacts_captured"`
		ArchiveText         string   `json:"archive_text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	compression, action, err := reg.RegisterCompression(c.Request.Context(), graph.CompressionInput{
		Tag:                 req.Tag,
		Project:             req.Project,
		SourceConversation:  req.SourceConversation,
		TargetConversations: req.TargetConversations,
		DecisionsCaptured:   req.DecisionsCaptured,
		ThreadsCaptured:     req.ThreadsCaptured,
		ArtifactsCaptured:   req.ArtifactsCaptured,
		ArchiveText:         req.ArchiveText,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"compression": compression, "action": action})
}

func getCompression(c *gin.Context, reg *graph.Registry) {
	compression, err := reg.GetCompression(c.Request.Context(), c.Param("tag"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, compression)
}

func verifyChecksum(c *gin.Context, reg *graph.Registry) {
	var req struct {
		ArchiveText string `json:"archive_text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	verification, err := reg.VerifyChecksum(c.Request.Context(), c.Param("tag"), req.ArchiveText)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, verification)
}

func addLineageEdge(c *gin.Context, reg *graph.Registry) {
	var req struct {
		SourceConversation string   `json:"source_conversation"`
		TargetConversation string   `json:"target_conversation"`
		CompressionTag     string   `json:"compression_tag"`
		DecisionsCarried   []string `json:"decisions_carried"`
		DecisionsDropped   []string `json:"decisions_dropped"`
		ThreadsCarried     []string `json:"threads_carried"`
		ThreadsResolved    []string `json:"threads_resolved"`
		SourceProject      string   `json:"source_project"`
		TargetProject      string   `json:"target_project"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	edge, action, err := reg.AddLineageEdge(c.Request.Context(), graph.LineageInput{
		SourceConversation: req.SourceConversation,
		TargetConversation: req.TargetConversation,
		CompressionTag:     req.CompressionTag,
		DecisionsCarried:   req.DecisionsCarried,
		DecisionsDropped:   req.DecisionsDropped,
		ThreadsCarried:     req.ThreadsCarried,
		ThreadsResolved:    req.ThreadsResolved,
		SourceProject:      req.SourceProject,
		TargetProject:      req.TargetProject,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"edge": edge, "action": action})
}

func traceConversation(c *gin.Context, reg *graph.Registry) {
	trace, err := reg.TraceConversation(c.Request.Context(), c.Param("uuid"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, trace)
}

func lineageGraph(c *gin.Context, reg *graph.Registry) {
	edges, err := reg.LineageGraph(c.Request.Context(), c.Query("project"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": edges})
}

func resolveDisplayID(c *gin.Context, reg *graph.Registry) {
	entry, err := reg.ResolveDisplayID(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func backfillDisplayIDs(c *gin.Context, reg *graph.Registry) {
	count, err := reg.BackfillDisplayIDs(c.Request.Context(), c.Param("project"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"backfilled": count})
}

func listEvents(c *gin.Context, events *memory.Emitter) {
	limit := 100
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	list, err := events.List(c.Request.Context(), c.Query("type"), limit)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"code": "validation_error", "error": err.Error()})
}

func handleError(c *gin.Context, err error) {
	var notFound *registrystore.NotFoundError
	var validation *registrystore.ValidationError

	switch {
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"code": "not_found", "error": err.Error()})
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation_error", "error": err.Error(), "field": validation.Field})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
