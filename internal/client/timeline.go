package client

import (
	"sort"
	"sync"

	"alignbox_chat/internal/models"
)

// Timeline 保存畫面上的訊息，以 id 去除重複。
// POST 回應與推送事件可能帶來同一筆紀錄，先到者為準。
type Timeline struct {
	mu       sync.Mutex
	messages []models.Message
	seen     map[uint64]struct{}
}

func NewTimeline() *Timeline {
	return &Timeline{seen: make(map[uint64]struct{})}
}

// Seed 以歷史查詢結果重設內容
func (t *Timeline) Seed(history []models.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.messages = t.messages[:0]
	t.seen = make(map[uint64]struct{}, len(history))
	for _, m := range history {
		t.insert(m)
	}
}

// Add 回傳 false 表示已存在
func (t *Timeline) Add(m models.Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.insert(m)
}

func (t *Timeline) insert(m models.Message) bool {
	if _, ok := t.seen[m.ID]; ok {
		return false
	}
	t.seen[m.ID] = struct{}{}

	// 多數情況附加在尾端
	i := sort.Search(len(t.messages), func(i int) bool {
		return before(m, t.messages[i])
	})
	t.messages = append(t.messages, models.Message{})
	copy(t.messages[i+1:], t.messages[i:])
	t.messages[i] = m
	return true
}

func (t *Timeline) Messages() []models.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]models.Message(nil), t.messages...)
}

func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.messages)
}

// before 與伺服器相同的排序：created_at 遞增，同時間以 id 遞增
func before(a, b models.Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
