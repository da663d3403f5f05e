package api

import (
	"net/http"
	"time"

	"incidentwatch/types"

	"github.com/gin-gonic/gin"
)

// RegisterDeduplicationRoutes registers deduplication service endpoints.
func RegisterDeduplicationRoutes(r *gin.Engine, h *Handlers) {
	g := r.Group("/api/deduplication")
	g.POST("/check", h.handleCheckDuplicate)
	g.POST("/process", h.handleProcessBatch)
}

// CheckDuplicateRequest checks one article against a window. When Window is
// empty the stored recency window is used.
type CheckDuplicateRequest struct {
	Article *types.Article   `json:"article" binding:"required"`
	Window  []*types.Article `json:"window"`
}

// CheckDuplicateResponse represents the response from duplicate check
type CheckDuplicateResponse struct {
	IsDuplicate bool                    `json:"is_duplicate"`
	Decision    types.DuplicateDecision `json:"decision"`
	Fingerprint string                  `json:"content_fingerprint,omitempty"`
}

// ProcessBatchRequest deduplicates articles against each other and a window.
type ProcessBatchRequest struct {
	Articles []*types.Article `json:"articles" binding:"required"`
	Window   []*types.Article `json:"window"`
}

// ProcessBatchResponse lists per-article outcomes in input order.
type ProcessBatchResponse struct {
	Results []types.ArticleResult `json:"results"`
	Unique  int                   `json:"unique"`
	Exact   int                   `json:"exact"`
	Fuzzy   int                   `json:"fuzzy"`
	Errors  int                   `json:"errors"`
}

func (h *Handlers) handleCheckDuplicate(c *gin.Context) {
	var req CheckDuplicateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	window := req.Window
	if len(window) == 0 {
		window = h.storedWindow(c)
	}
	decision := h.pipeline.Deduplicator().IsDuplicate(c.Request.Context(), req.Article, window)
	c.JSON(http.StatusOK, CheckDuplicateResponse{
		IsDuplicate: decision.IsDuplicate(),
		Decision:    decision,
		Fingerprint: req.Article.ContentFingerprint,
	})
}

func (h *Handlers) handleProcessBatch(c *gin.Context) {
	var req ProcessBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	window := req.Window
	if len(window) == 0 {
		window = h.storedWindow(c)
	}
	result := h.pipeline.Deduplicator().ProcessBatch(c.Request.Context(), req.Articles, window)
	c.JSON(http.StatusOK, ProcessBatchResponse{
		Results: result.Results,
		Unique:  len(result.Unique),
		Exact:   result.Exact,
		Fuzzy:   result.Fuzzy,
		Errors:  result.Errors,
	})
}

// storedWindow loads the recency window, or nil without a store.
func (h *Handlers) storedWindow(c *gin.Context) []*types.Article {
	store := h.pipeline.Store()
	if store == nil {
		return nil
	}
	since := time.Now().Add(-h.pipeline.Deduplicator().Horizon())
	window, err := store.RecentArticles(c.Request.Context(), since)
	if err != nil {
		_ = c.Error(err)
		return nil
	}
	return window
}
