package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kurihiro0119/github-issue-insights/internal/aggregator"
	apperrors "github.com/kurihiro0119/github-issue-insights/internal/errors"
)

const maxLimit = 500

// Handler handles API requests
type Handler struct {
	aggregator aggregator.Aggregator
}

// NewHandler creates a new API handler
func NewHandler(agg aggregator.Aggregator) *Handler {
	return &Handler{
		aggregator: agg,
	}
}

// ListRuns returns recent batch runs
// GET /api/v1/runs?task=relabel&limit=20
func (h *Handler) ListRuns(c *gin.Context) {
	task := c.Query("task")
	switch task {
	case "", "relabel", "summarize", "insights":
	default:
		respondError(c, apperrors.NewBadRequestError("unknown task: "+task))
		return
	}
	limit := parseIntQuery(c, "limit", 20)

	runs, err := h.aggregator.ListRuns(c.Request.Context(), task, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": runs,
	})
}

// GetRun returns one run with its batch history
// GET /api/v1/runs/:id
func (h *Handler) GetRun(c *gin.Context) {
	detail, err := h.aggregator.GetRunDetail(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": detail,
	})
}

// GetInsightDigest returns insights ranked across batches
// GET /api/v1/insights/digest?limit=50&top=20
func (h *Handler) GetInsightDigest(c *gin.Context) {
	batches := parseIntQuery(c, "limit", 0)
	top := parseIntQuery(c, "top", aggregator.DefaultTop)

	digest, err := h.aggregator.InsightDigest(c.Request.Context(), batches, top)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": digest,
	})
}

// HealthCheck returns the health status of the API
// GET /health
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// parseIntQuery parses an integer query parameter with a default value
func parseIntQuery(c *gin.Context, key string, defaultValue int) int {
	valueStr := c.Query(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil || value <= 0 {
		return defaultValue
	}
	if value > maxLimit {
		return maxLimit
	}
	return value
}

// respondError sends an error response
func respondError(c *gin.Context, err error) {
	if appErr, ok := err.(*apperrors.AppError); ok {
		status := http.StatusInternalServerError
		switch appErr.Code {
		case apperrors.ErrCodeNotFound:
			status = http.StatusNotFound
		case apperrors.ErrCodeBadRequest:
			status = http.StatusBadRequest
		case apperrors.ErrCodeRateLimited:
			status = http.StatusTooManyRequests
		}
		c.JSON(status, gin.H{
			"error": gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
			},
		})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{
		"error": gin.H{
			"code":    apperrors.ErrCodeInternal,
			"message": err.Error(),
		},
	})
}
