package models

import (
	"encoding/json"
	"time"
)

// Message 是唯一的實體：寫入後不可變更，廣播與歷史查詢使用同一份紀錄
type Message struct {
	ID        uint64    `json:"id" gorm:"primaryKey;autoIncrement;index:idx_messages_created_at_id,priority:2"`
	UserID    *string   `json:"user_id" gorm:"type:varchar(64)"`
	Username  *string   `json:"username" gorm:"type:varchar(100)"`
	Message   string    `json:"message" gorm:"type:text;not null"`
	Anonymous bool      `json:"anonymous" gorm:"not null"`
	CreatedAt time.Time `json:"created_at" gorm:"not null;index:idx_messages_created_at_id,priority:1"`
}

// TableName 固定資料表名稱
func (Message) TableName() string {
	return "messages"
}

// Draft 是客戶端送出的訊息內容，尚未有 id 與 created_at
type Draft struct {
	UserID    *string `json:"user_id"`
	Username  *string `json:"username"`
	Message   string  `json:"message" validate:"notblank"`
	Anonymous bool    `json:"anonymous"`
	// 客戶端可能帶上 created_at，但時間以伺服器為準
	CreatedAt json.RawMessage `json:"created_at,omitempty" validate:"-"`
	// Origin 為送出者的觀看者連線 ID，廣播時排除該連線
	Origin string `json:"-" validate:"-"`
}
