package router

import (
	"github.com/gin-gonic/gin"

	"pulseops.app/pulse/internal/http/handler"
)

func WorkflowRouter(router *gin.RouterGroup, handler *handler.WorkflowHandler) {
	router.GET("/stats", handler.Stats)
	router.POST("/:name/executions", handler.Start)
}

func ExecutionRouter(router *gin.RouterGroup, handler *handler.WorkflowHandler) {
	router.GET("/:id", handler.GetExecution)
}
