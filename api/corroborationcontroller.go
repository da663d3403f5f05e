package api

import (
	"net/http"

	"incidentwatch/types"

	"github.com/gin-gonic/gin"
)

// RegisterCorroborationRoutes registers corroboration endpoints.
func RegisterCorroborationRoutes(r *gin.Engine, h *Handlers) {
	g := r.Group("/api/corroboration")
	g.POST("/analyze", h.handleAnalyze)
	g.GET("/groups", h.handleLatestGroups)
}

// AnalyzeRequest holds the incident pool to analyze.
type AnalyzeRequest struct {
	Incidents []*types.Incident `json:"incidents" binding:"required"`
}

func (h *Handlers) handleAnalyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.pipeline.Engine().Analyze(req.Incidents))
}

func (h *Handlers) handleLatestGroups(c *gin.Context) {
	store := h.pipeline.Store()
	if store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no store configured"})
		return
	}
	groups, err := store.LatestGroups(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load coordination groups: " + err.Error()})
		return
	}
	if groups == nil {
		groups = []types.CoordinationGroup{}
	}
	c.JSON(http.StatusOK, gin.H{"coordination_groups": groups})
}
