package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"alignbox_chat/internal/limiter"
	"alignbox_chat/internal/logging"
)

// RateLimit 依用戶端 IP 限制請求次數，超過時回傳 429。
// 限流後端出錯時放行請求。
func RateLimit(manager *limiter.Manager, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, err := manager.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			fields := logging.BaseFields("rate_limit")
			fields["client_ip"] = c.ClientIP()
			log.WithFields(fields).WithError(err).Error("rate limiter unavailable")
			c.Next()
			return
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
