package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"pulseops.app/pulse/internal/model"
	"pulseops.app/pulse/internal/store"
)

const defaultNotificationLimit = 50

type NotificationHandler struct {
	notifications store.NotificationStore
}

func NewNotificationHandler(notifications store.NotificationStore) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

func (h *NotificationHandler) ListRecent(c *gin.Context) {
	ctx := c.Request.Context()

	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	limit := int64(defaultNotificationLimit)
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	notifications, err := h.notifications.ListRecent(ctx, tenant, int32(limit))
	if err != nil {
		slog.ErrorContext(ctx, "failed to list notifications", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list notifications"})
		return
	}

	if notifications == nil {
		notifications = []model.Notification{}
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}
