package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	HeaderRequestID     = "X-Request-ID"
	contextKeyRequestID = "requestID"
)

// RequestID 沿用客戶端帶來的 X-Request-ID，否則產生新的 UUID
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(HeaderRequestID)
		if reqID == "" || len(reqID) > 128 {
			reqID = uuid.NewString()
		}
		c.Set(contextKeyRequestID, reqID)
		c.Header(HeaderRequestID, reqID)
		c.Next()
	}
}

// GetRequestID 取出 RequestID 中間件設定的識別碼
func GetRequestID(c *gin.Context) string {
	return c.GetString(contextKeyRequestID)
}
