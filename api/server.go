package api

import (
	"net/http"

	"incidentwatch/pipeline"

	"github.com/gin-gonic/gin"
)

// Handlers exposes the pipeline stages over HTTP.
type Handlers struct {
	pipeline *pipeline.Pipeline
	refresh  chan struct{}
}

// NewRouter constructs a Gin engine with registered routes.
func NewRouter(p *pipeline.Pipeline) *gin.Engine {
	r := gin.New()
	// Minimal middleware: recovery; logger optional to reduce verbosity
	r.Use(gin.Recovery())

	h := &Handlers{pipeline: p, refresh: make(chan struct{}, 1)}
	RegisterHealthRoutes(r)
	RegisterDeduplicationRoutes(r, h)
	RegisterExtractionRoutes(r, h)
	RegisterPipelineRoutes(r, h)
	RegisterCorroborationRoutes(r, h)
	return r
}

// RegisterHealthRoutes registers the liveness endpoint.
func RegisterHealthRoutes(r *gin.Engine) {
	r.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
}
