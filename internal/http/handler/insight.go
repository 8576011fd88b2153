package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"pulseops.app/pulse/internal/model"
	"pulseops.app/pulse/internal/store"
)

const defaultInsightLimit = 50

type InsightHandler struct {
	insights store.InsightStore
}

func NewInsightHandler(insights store.InsightStore) *InsightHandler {
	return &InsightHandler{insights: insights}
}

func (h *InsightHandler) ListRecent(c *gin.Context) {
	ctx := c.Request.Context()

	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	limit := int64(defaultInsightLimit)
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	insights, err := h.insights.ListRecent(ctx, tenant, int32(limit))
	if err != nil {
		slog.ErrorContext(ctx, "failed to list insights", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list insights"})
		return
	}

	if insights == nil {
		insights = []model.Insight{}
	}
	c.JSON(http.StatusOK, gin.H{"insights": insights})
}

func (h *InsightHandler) GetByID(c *gin.Context) {
	ctx := c.Request.Context()

	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid insight id"})
		return
	}

	insight, err := h.insights.GetByID(ctx, tenant, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "insight not found"})
			return
		}
		slog.ErrorContext(ctx, "failed to load insight", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load insight"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"insight": insight})
}
