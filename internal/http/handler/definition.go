package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"pulseops.app/pulse/internal/model"
	"pulseops.app/pulse/internal/store"
)

// DefinitionHandler serves the admin surface over workflow
// definitions. Definitions are provisioned out of band; the API only
// exposes read access behind the admin key.
type DefinitionHandler struct {
	definitions store.WorkflowDefinitionStore
	adminAPIKey string
}

func NewDefinitionHandler(definitions store.WorkflowDefinitionStore, adminAPIKey string) *DefinitionHandler {
	return &DefinitionHandler{definitions: definitions, adminAPIKey: adminAPIKey}
}

// RequireAdminAPIKey middleware checks for valid admin API key
func (h *DefinitionHandler) RequireAdminAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.adminAPIKey == "" {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "admin API not configured"})
			c.Abort()
			return
		}

		apiKey := c.GetHeader("X-Admin-API-Key")
		if apiKey == "" {
			apiKey = c.GetHeader("Authorization")
			if len(apiKey) > 7 && apiKey[:7] == "Bearer " {
				apiKey = apiKey[7:]
			}
		}

		if apiKey != h.adminAPIKey {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing API key"})
			c.Abort()
			return
		}

		c.Next()
	}
}

func (h *DefinitionHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	defs, err := h.definitions.ListByTenant(ctx, tenant)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list workflow definitions", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list workflow definitions"})
		return
	}

	if defs == nil {
		defs = []model.WorkflowDefinition{}
	}
	c.JSON(http.StatusOK, gin.H{"definitions": defs})
}
