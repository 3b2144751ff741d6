package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"alignbox_chat/internal/logging"
)

// RequestLogger 在請求結束後記錄一筆結構化日誌
func RequestLogger(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := logging.BaseFields("http_request")
		fields["method"] = c.Request.Method
		fields["path"] = c.Request.URL.Path
		fields["status"] = c.Writer.Status()
		fields["latency_ms"] = time.Since(start).Milliseconds()
		fields["client_ip"] = c.ClientIP()
		if reqID := GetRequestID(c); reqID != "" {
			fields["request_id"] = reqID
		}

		entry := log.WithFields(fields)
		switch status := c.Writer.Status(); {
		case status >= 500:
			entry.Error("request failed")
		case status >= 400:
			entry.Warn("request rejected")
		default:
			entry.Info("request completed")
		}
	}
}
