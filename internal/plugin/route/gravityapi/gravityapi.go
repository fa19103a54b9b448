// Package gravityapi mounts the multi-lens observation routes plus
// role assignment, lens configs, and manual entanglement scans.
package gravityapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/forgeos/graph-service/internal/entangle"
	"github.com/forgeos/graph-service/internal/gravity"
	"github.com/forgeos/graph-service/internal/model"
	registryroute "github.com/forgeos/graph-service/internal/registry/route"
	registrystore "github.com/forgeos/graph-service/internal/registry/store"
)

func init() {
	registryroute.Register(registryroute.Plugin{
		Order: 120,
		Loader: func(r *gin.Engine) error {
			return nil // routes are mounted by the serve command after store init
		},
	})
}

// MountRoutes mounts gravity routes. Called after store initialization.
func MountRoutes(r *gin.Engine, orch *gravity.Orchestrator, scanner *entangle.Scanner, cache *entangle.Cache) {
	g := r.Group("/v1")

	g.POST("/observe", func(c *gin.Context) { observe(c, orch) })

	g.PUT("/projects/:project/role", func(c *gin.Context) { assignRole(c, orch) })
	g.GET("/roles", func(c *gin.Context) { listRoles(c, orch) })

	g.PUT("/lens-configs/:name", func(c *gin.Context) { saveLensConfig(c, orch) })
	g.GET("/lens-configs/:name", func(c *gin.Context) { getLensConfig(c, orch) })

	g.POST("/scan", func(c *gin.Context) { runScan(c, scanner, cache) })
	g.GET("/scan/latest", func(c *gin.Context) { latestScan(c, cache) })
}

func observe(c *gin.Context, orch *gravity.Orchestrator) {
	var req struct {
		Query      string              `json:"query"`
		Lenses     []gravity.LensInput `json:"lenses"`
		LensConfig string              `json:"lens_config"`
		Budget     int                 `json:"budget"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Query == "" {
		badRequest(c, errors.New("query is required"))
		return
	}
	field, err := orch.Observe(c.Request.Context(), req.Query, req.Lenses, req.LensConfig, req.Budget)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, field)
}

func assignRole(c *gin.Context, orch *gravity.Orchestrator) {
	var req struct {
		Role   string  `json:"role"`
		Weight float64 `json:"weight"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	role, err := orch.AssignRole(c.Request.Context(), c.Param("project"), model.Role(req.Role), req.Weight)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, role)
}

func listRoles(c *gin.Context, orch *gravity.Orchestrator) {
	roles, err := orch.ListRoles(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": roles})
}

func saveLensConfig(c *gin.Context, orch *gravity.Orchestrator) {
	var req struct {
		Lenses        []model.LensSpec `json:"lenses"`
		DefaultBudget int              `json:"default_budget"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cfg, err := orch.SaveLensConfig(c.Request.Context(), c.Param("name"), req.Lenses, req.DefaultBudget)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func getLensConfig(c *gin.Context, orch *gravity.Orchestrator) {
	cfg, err := orch.GetLensConfig(c.Request.Context(), c.Param("name"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func runScan(c *gin.Context, scanner *entangle.Scanner, cache *entangle.Cache) {
	scan, err := scanner.Scan(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	if cache != nil {
		cache.Invalidate()
	}
	c.JSON(http.StatusOK, gin.H{
		"scan_id": scan.ScanID,
		"stats":   scan.Stats,
	})
}

func latestScan(c *gin.Context, cache *entangle.Cache) {
	scan, err := cache.Latest(c.Request.Context(), c.Query("project"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, scan)
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
