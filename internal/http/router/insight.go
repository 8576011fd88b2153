package router

import (
	"github.com/gin-gonic/gin"

	"pulseops.app/pulse/internal/http/handler"
)

func InsightRouter(router *gin.RouterGroup, handler *handler.InsightHandler) {
	router.GET("", handler.ListRecent)
	router.GET("/:id", handler.GetByID)
}
