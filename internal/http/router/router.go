package router

import (
	"github.com/gin-gonic/gin"

	"pulseops.app/pulse/internal/http/handler"
)

type Handlers struct {
	Events        *handler.EventHandler
	Workflows     *handler.WorkflowHandler
	Insights      *handler.InsightHandler
	Notifications *handler.NotificationHandler
	Definitions   *handler.DefinitionHandler
}

func SetupRoutes(router *gin.Engine, h Handlers) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	{
		EventRouter(v1.Group("/events"), h.Events)
		WorkflowRouter(v1.Group("/workflows"), h.Workflows)
		ExecutionRouter(v1.Group("/executions"), h.Workflows)
		InsightRouter(v1.Group("/insights"), h.Insights)
		NotificationRouter(v1.Group("/notifications"), h.Notifications)
		DefinitionRouter(v1.Group("/admin/workflow-definitions"), h.Definitions)
	}
}
