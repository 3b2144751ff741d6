package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"alignbox_chat/internal/logging"
	"alignbox_chat/internal/service"
)

// WebSocketHandler 將 HTTP 連線升級為推送通道並交給 Hub
type WebSocketHandler struct {
	hub      *service.Hub
	upgrader websocket.Upgrader
	log      *logrus.Logger
}

// NewWebSocketHandler 創建一個新的 WebSocketHandler 實例。
// allowedOrigins 為空或包含 "*" 時接受任何來源。
func NewWebSocketHandler(hub *service.Hub, allowedOrigins []string, log *logrus.Logger) *WebSocketHandler {
	if log == nil {
		log = logging.Discard()
	}
	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		log: log,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 || lo.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// 非瀏覽器客戶端不帶 Origin
		return origin == "" || lo.Contains(allowed, origin)
	}
}

// HandleWebSocket 處理 WebSocket 連接請求
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	// Upgrade 失敗時已寫回錯誤狀態碼
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithFields(logging.ViewerFields("ws_upgrade", "", c.ClientIP())).WithError(err).Warn("websocket upgrade failed")
		return
	}

	if _, err := h.hub.Attach(conn, c.ClientIP()); err != nil {
		h.log.WithFields(logging.ViewerFields("ws_attach", "", c.ClientIP())).WithError(err).Warn("viewer rejected")
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}
}
