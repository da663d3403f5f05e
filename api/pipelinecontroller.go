package api

import (
	"context"
	"net/http"
	"time"

	"incidentwatch/logging"
	"incidentwatch/types"

	"github.com/gin-gonic/gin"
)

const refreshTimeout = 10 * time.Minute

// RegisterPipelineRoutes registers batch processing endpoints.
func RegisterPipelineRoutes(r *gin.Engine, h *Handlers) {
	r.POST("/api/pipeline/run", h.handlePipelineRun)
	r.POST("/api/rss/refresh", h.handleRefresh)
}

// PipelineRunRequest carries a batch of articles to process synchronously.
type PipelineRunRequest struct {
	types.ArticleBatch
}

func (h *Handlers) handlePipelineRun(c *gin.Context) {
	var req PipelineRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Articles) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "articles must not be empty"})
		return
	}

	report, err := h.pipeline.Run(c.Request.Context(), req.Articles)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error(), "report": report})
		return
	}
	c.JSON(http.StatusOK, report)
}

// handleRefresh starts a refresh cycle over the configured sources and
// returns 202 Accepted immediately. Only one refresh runs at a time.
func (h *Handlers) handleRefresh(c *gin.Context) {
	select {
	case h.refresh <- struct{}{}:
	default:
		c.JSON(http.StatusConflict, gin.H{"status": "refresh already running"})
		return
	}

	go func() {
		defer func() { <-h.refresh }()
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		if _, err := h.pipeline.RunSources(ctx); err != nil {
			logging.Error("refresh failed", "err", err)
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "refresh started"})
}
