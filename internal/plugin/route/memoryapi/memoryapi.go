// Package memoryapi mounts the working-memory routes: scratchpad CRUD,
// pattern store/match, the archive, and context load/resize/flush.
package memoryapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/forgeos/graph-service/internal/memory"
	"github.com/forgeos/graph-service/internal/model"
	registryroute "github.com/forgeos/graph-service/internal/registry/route"
	registrystore "github.com/forgeos/graph-service/internal/registry/store"
)

func init() {
	registryroute.Register(registryroute.Plugin{
		Order: 130,
		Loader: func(r *gin.Engine) error {
			return nil // routes are mounted by the serve command after store init
		},
	})
}

// Deps holds the working-memory components the routes dispatch to.
type Deps struct {
	Scratchpad *memory.Scratchpad
	Patterns   *memory.PatternStore
	Archiver   *memory.Archiver
	Context    *memory.ContextManager
}

// MountRoutes mounts memory routes. Called after store initialization.
func MountRoutes(r *gin.Engine, deps Deps) {
	g := r.Group("/v1")

	g.PUT("/scratchpad/:contextId/:key", func(c *gin.Context) { scratchSet(c, deps.Scratchpad) })
	g.GET("/scratchpad/:contextId/:key", func(c *gin.Context) { scratchGet(c, deps.Scratchpad) })
	g.DELETE("/scratchpad/:contextId/:key", func(c *gin.Context) { scratchDelete(c, deps.Scratchpad) })
	g.GET("/scratchpad/:contextId", func(c *gin.Context) { scratchList(c, deps.Scratchpad) })
	g.DELETE("/scratchpad/:contextId", func(c *gin.Context) { scratchClear(c, deps.Scratchpad) })

	g.POST("/patterns", func(c *gin.Context) { storePattern(c, deps.Patterns) })
	g.GET("/patterns/match", func(c *gin.Context) { matchPatterns(c, deps.Patterns) })

	g.POST("/archive", func(c *gin.Context) { archive(c, deps.Archiver) })
	g.GET("/archive/:id", func(c *gin.Context) { restoreArchive(c, deps.Archiver) })
	g.GET("/archive", func(c *gin.Context) { listArchive(c, deps.Archiver) })

	g.POST("/context/load", func(c *gin.Context) { loadContext(c, deps.Context) })
	g.DELETE("/context/:contextId", func(c *gin.Context) { flushContext(c, deps.Context) })
}

func scratchSet(c *gin.Context, pad *memory.Scratchpad) {
	var req struct {
		Value      any `json:"value"`
		TTLSeconds int `json:"ttl_seconds"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := pad.Set(c.Request.Context(), c.Param("contextId"), c.Param("key"), req.Value, req.TTLSeconds); err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "stored"})
}

func scratchGet(c *gin.Context, pad *memory.Scratchpad) {
	value, err := pad.Get(c.Request.Context(), c.Param("contextId"), c.Param("key"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"value": value})
}

func scratchDelete(c *gin.Context, pad *memory.Scratchpad) {
	deleted, err := pad.Delete(c.Request.Context(), c.Param("contextId"), c.Param("key"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

func scratchList(c *gin.Context, pad *memory.Scratchpad) {
	entries, err := pad.List(c.Request.Context(), c.Param("contextId"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entries})
}

func scratchClear(c *gin.Context, pad *memory.Scratchpad) {
	cleared, err := pad.Clear(c.Request.Context(), c.Param("contextId"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": cleared})
}

func storePattern(c *gin.Context, patterns *memory.PatternStore) {
	var req struct {
		PatternType          string         `json:"pattern_type"`
		Content              string         `json:"content"`
		SuccessScore         float64        `json:"success_score"`
		Tags                 []string       `json:"tags"`
		SourceConversationID string         `json:"source_conversation_id"`
		SourceProjectName    string         `json:"source_project_name"`
		Metadata             map[string]any `json:"metadata"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	pattern, action, err := patterns.Store(c.Request.Context(), memory.PatternInput{
		PatternType:          model.PatternType(req.PatternType),
		Content:              req.Content,
		SuccessScore:         req.SuccessScore,
		Tags:                 req.Tags,
		SourceConversationID: req.SourceConversationID,
		SourceProjectName:    req.SourceProjectName,
		Metadata:             req.Metadata,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pattern": pattern, "action": action})
}

func matchPatterns(c *gin.Context, patterns *memory.PatternStore) {
	query := c.Query("query")
	if query == "" {
		badRequest(c, errors.New("query is required"))
		return
	}
	limit := queryInt(c, "limit", 5)
	matched, err := patterns.Match(c.Request.Context(), query, model.PatternType(c.Query("type")), limit)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": matched})
}

func archive(c *gin.Context, archiver *memory.Archiver) {
	var req struct {
		SourceCollection string         `json:"source_collection"`
		SourceID         string         `json:"source_id"`
		Content          string         `json:"content"`
		RetentionPolicy  string         `json:"retention_policy"`
		Metadata         map[string]any `json:"metadata"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	entry, err := archiver.Archive(c.Request.Context(), memory.ArchiveInput{
		SourceCollection: req.SourceCollection,
		SourceID:         req.SourceID,
		Content:          req.Content,
		RetentionPolicy:  req.RetentionPolicy,
		Metadata:         req.Metadata,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func restoreArchive(c *gin.Context, archiver *memory.Archiver) {
	entry, err := archiver.Restore(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func listArchive(c *gin.Context, archiver *memory.Archiver) {
	entries, err := archiver.List(c.Request.Context(), c.Query("source_collection"), queryInt(c, "limit", 50))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entries})
}

func loadContext(c *gin.Context, mgr *memory.ContextManager) {
	var req struct {
		Query   string `json:"query"`
		Project string `json:"project"`
		Limit   int    `json:"limit"`
		Budget  int    `json:"budget"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Query == "" {
		badRequest(c, errors.New("query is required"))
		return
	}
	loaded, err := mgr.Load(c.Request.Context(), req.Query, req.Project, req.Limit)
	if err != nil {
		handleError(c, err)
		return
	}
	if req.Budget > 0 {
		loaded = memory.Resize(loaded, req.Budget)
	}
	c.JSON(http.StatusOK, loaded)
}

func flushContext(c *gin.Context, mgr *memory.ContextManager) {
	flushed, err := mgr.Flush(c.Request.Context(), c.Param("contextId"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"flushed": flushed})
}

func queryInt(c *gin.Context, name string, def int) int {
	if v, ok := c.GetQuery(name); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
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
