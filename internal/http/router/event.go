package router

import (
	"github.com/gin-gonic/gin"

	"pulseops.app/pulse/internal/http/handler"
)

func EventRouter(router *gin.RouterGroup, handler *handler.EventHandler) {
	router.POST("", handler.Publish)
}
