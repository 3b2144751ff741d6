package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"alignbox_chat/internal/errs"
	"alignbox_chat/internal/logging"
	"alignbox_chat/internal/models"
	"alignbox_chat/internal/service"
)

// HeaderViewerID 送出者可帶上自己的推送連線 ID，廣播時不再推回該連線
const HeaderViewerID = "X-Viewer-ID"

// MessageHandler 處理訊息歷史與送出
type MessageHandler struct {
	messageService *service.MessageService
	log            *logrus.Logger
}

// NewMessageHandler 創建一個新的 MessageHandler 實例
func NewMessageHandler(messageService *service.MessageService, log *logrus.Logger) *MessageHandler {
	if log == nil {
		log = logging.Discard()
	}
	return &MessageHandler{messageService: messageService, log: log}
}

// ListMessages 回傳依時間排序的完整歷史
func (h *MessageHandler) ListMessages(c *gin.Context) {
	messages, err := h.messageService.ListMessages(c.Request.Context())
	if err != nil {
		h.respondError(c, "list_messages", err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

// SubmitMessage 寫入新訊息並回傳正式紀錄
func (h *MessageHandler) SubmitMessage(c *gin.Context) {
	var draft models.Draft
	// 空 body 視為缺少 message，交給驗證回報
	if err := c.ShouldBindJSON(&draft); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	draft.Origin = c.GetHeader(HeaderViewerID)

	message, err := h.messageService.SubmitMessage(c.Request.Context(), draft)
	if err != nil {
		h.respondError(c, "submit_message", err)
		return
	}
	c.JSON(http.StatusCreated, message)
}

// respondError 將錯誤分類轉換為狀態碼；資料庫細節不回傳給客戶端
func (h *MessageHandler) respondError(c *gin.Context, action string, err error) {
	switch {
	case errors.Is(err, service.ErrMessageRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": "message required"})
	case errors.Is(err, service.ErrMessageTooLong):
		c.JSON(http.StatusBadRequest, gin.H{"error": "message too long"})
	case errors.Is(err, errs.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
	case errors.Is(err, errs.ErrStoreUnavailable):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
	default:
		h.log.WithFields(logging.BaseFields(action)).WithError(err).Error("unexpected error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
