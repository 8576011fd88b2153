package router

import (
	"github.com/gin-gonic/gin"

	"pulseops.app/pulse/internal/http/handler"
)

func NotificationRouter(router *gin.RouterGroup, handler *handler.NotificationHandler) {
	router.GET("", handler.ListRecent)
}
