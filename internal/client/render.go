package client

import (
	"time"

	"alignbox_chat/internal/models"
)

type Direction int

const (
	Incoming Direction = iota
	Outgoing
)

func (d Direction) String() string {
	if d == Outgoing {
		return "outgoing"
	}
	return "incoming"
}

// DirectionOf 以 user_id 判斷是否為自己送出的訊息，匿名訊息同樣適用
func DirectionOf(m models.Message, currentUserID string) Direction {
	if m.UserID != nil && currentUserID != "" && *m.UserID == currentUserID {
		return Outgoing
	}
	return Incoming
}

// DisplayName 顯示的送出者名稱；遮蔽匿名者是客戶端的責任
func DisplayName(m models.Message) string {
	switch {
	case m.Anonymous:
		return "Anonymous"
	case m.Username != nil && *m.Username != "":
		return *m.Username
	default:
		return "Unknown"
	}
}

// ShowAvatar 只有具名的他人訊息顯示頭像
func ShowAvatar(m models.Message, currentUserID string) bool {
	return DirectionOf(m, currentUserID) == Incoming && !m.Anonymous && m.Username != nil && *m.Username != ""
}

// FormatTime 12 小時制的時:分，例如 03:04 PM
func FormatTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format("03:04 PM")
}
