package models

const (
	// EventWelcome 連線建立後第一個事件，帶有觀看者 ID
	EventWelcome = "welcome"
	// EventNewMessage 新訊息寫入後的推送事件
	EventNewMessage = "newMessage"
)

// Event 是推送通道上的訊框格式
type Event struct {
	Type     string   `json:"type"`
	ViewerID string   `json:"viewer_id,omitempty"`
	Message  *Message `json:"message,omitempty"`
}
