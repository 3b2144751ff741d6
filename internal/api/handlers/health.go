package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"alignbox_chat/internal/service"
)

// Health 基本的健康檢查，附帶目前推送連線數
func Health(hub *service.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"viewers": hub.ViewerCount(),
		})
	}
}
