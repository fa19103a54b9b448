// Package recallapi mounts the attention-weighted recall and context
// assembly routes.
package recallapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/forgeos/graph-service/internal/recall"
	registryroute "github.com/forgeos/graph-service/internal/registry/route"
	registrystore "github.com/forgeos/graph-service/internal/registry/store"
)

func init() {
	registryroute.Register(registryroute.Plugin{
		Order: 110,
		Loader: func(r *gin.Engine) error {
			return nil // routes are mounted by the serve command after store init
		},
	})
}

// MountRoutes mounts recall routes. Called after store initialization.
func MountRoutes(r *gin.Engine, engine *recall.Engine) {
	g := r.Group("/v1")

	g.POST("/recall", func(c *gin.Context) { doRecall(c, engine) })
	g.GET("/projects/:project/context", func(c *gin.Context) { projectContext(c, engine) })
	g.POST("/context-load", func(c *gin.Context) { contextLoad(c, engine) })
}

func doRecall(c *gin.Context, engine *recall.Engine) {
	var req struct {
		Query    string  `json:"query"`
		Project  string  `json:"project"`
		Budget   int     `json:"budget"`
		MinScore float64 `json:"min_score"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Query == "" {
		badRequest(c, errors.New("query is required"))
		return
	}
	out, err := engine.Recall(c.Request.Context(), req.Query, req.Project, req.Budget, req.MinScore)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func projectContext(c *gin.Context, engine *recall.Engine) {
	sections := c.QueryArray("section")
	pc, err := engine.ProjectContext(c.Request.Context(), c.Param("project"), sections)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, pc)
}

func contextLoad(c *gin.Context, engine *recall.Engine) {
	var req struct {
		Project string `json:"project"`
		Query   string `json:"query"`
		Budget  int    `json:"budget"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Project == "" {
		badRequest(c, errors.New("project is required"))
		return
	}
	out, err := engine.ContextLoad(c.Request.Context(), req.Project, req.Query, req.Budget)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
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
