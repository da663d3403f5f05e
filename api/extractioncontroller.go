package api

import (
	"net/http"

	"incidentwatch/types"

	"github.com/gin-gonic/gin"
)

// RegisterExtractionRoutes registers incident extraction endpoints.
func RegisterExtractionRoutes(r *gin.Engine, h *Handlers) {
	r.POST("/api/extraction/preview", h.handleExtractionPreview)
}

// ExtractionPreviewRequest holds the article to score.
type ExtractionPreviewRequest struct {
	Article *types.Article `json:"article" binding:"required"`
}

// PreviewIncident is a candidate incident with its persistence verdict.
type PreviewIncident struct {
	*types.Incident
	Persistable bool `json:"persistable"`
}

// ExtractionPreviewResponse lists candidates without persisting them.
type ExtractionPreviewResponse struct {
	Incidents []PreviewIncident `json:"incidents"`
}

func (h *Handlers) handleExtractionPreview(c *gin.Context) {
	var req ExtractionPreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	extractor := h.pipeline.Extractor()
	candidates := extractor.Extract(req.Article)
	resp := ExtractionPreviewResponse{Incidents: make([]PreviewIncident, 0, len(candidates))}
	for _, inc := range candidates {
		resp.Incidents = append(resp.Incidents, PreviewIncident{Incident: inc, Persistable: extractor.Persistable(inc)})
	}
	c.JSON(http.StatusOK, resp)
}
