package router

import (
	"github.com/gin-gonic/gin"

	"pulseops.app/pulse/internal/http/handler"
)

// DefinitionRouter mounts the admin-only workflow definition routes.
func DefinitionRouter(rg *gin.RouterGroup, h *handler.DefinitionHandler) {
	rg.Use(h.RequireAdminAPIKey())
	rg.GET("", h.List)
}
