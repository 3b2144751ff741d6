package api

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"alignbox_chat/internal/api/handlers"
	"alignbox_chat/internal/limiter"
	"alignbox_chat/internal/logging"
	"alignbox_chat/internal/middleware"
	"alignbox_chat/internal/service"
	"alignbox_chat/pkg/config"
)

// SetupRoutes 註冊所有路由；rateLimiter 為 nil 時不限流
func SetupRoutes(r *gin.Engine, services *service.Services, cfg *config.Config, rateLimiter *limiter.Manager, log *logrus.Logger) {
	if log == nil {
		log = logging.Discard()
	}
	// 初始化 handlers
	messageHandler := handlers.NewMessageHandler(services.MessageService, log)
	wsHandler := handlers.NewWebSocketHandler(services.Hub, cfg.Server.AllowedOrigins, log)

	r.Use(middleware.RequestID(), middleware.RequestLogger(log), cors.New(corsConfig(cfg.Server.AllowedOrigins)))

	// 處理 404 錯誤
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	r.GET("/health", handlers.Health(services.Hub))

	messages := r.Group("/messages")
	{
		messages.GET("", messageHandler.ListMessages)
		if rateLimiter != nil {
			messages.POST("", middleware.RateLimit(rateLimiter, log), messageHandler.SubmitMessage)
		} else {
			messages.POST("", messageHandler.SubmitMessage)
		}
	}

	// 推送通道
	r.GET("/ws", wsHandler.HandleWebSocket)
}

func corsConfig(allowedOrigins []string) cors.Config {
	c := cors.DefaultConfig()
	c.AllowHeaders = []string{"Origin", "Content-Type", middleware.HeaderRequestID, handlers.HeaderViewerID}
	c.ExposeHeaders = []string{middleware.HeaderRequestID}
	if len(allowedOrigins) == 0 || lo.Contains(allowedOrigins, "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = allowedOrigins
	}
	return c
}
