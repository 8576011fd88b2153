package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"pulseops.app/pulse/internal/http/dto"
	"pulseops.app/pulse/internal/model"
)

// EventPublisher is the bus surface the handler needs. Satisfied by
// bus.Publisher.
type EventPublisher interface {
	Publish(ctx context.Context, name string, payload json.RawMessage, meta model.EventMeta) (*model.Event, error)
}

type EventHandler struct {
	publisher EventPublisher
}

func NewEventHandler(publisher EventPublisher) *EventHandler {
	return &EventHandler{publisher: publisher}
}

func (h *EventHandler) Publish(c *gin.Context) {
	ctx := c.Request.Context()

	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	var req dto.PublishEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid publish request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	source := req.Source
	if source == "" {
		source = "api"
	}

	event, err := h.publisher.Publish(ctx, req.Name, req.Payload, model.EventMeta{
		TenantID: tenant,
		UserID:   req.UserID,
		Source:   source,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to publish event", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to publish event"})
		return
	}

	c.JSON(http.StatusAccepted, dto.PublishEventResponse{
		EventID:       event.ID,
		CorrelationID: event.CorrelationID,
		Status:        string(event.Status),
	})
}
