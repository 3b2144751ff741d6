package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"alignbox_chat/internal/errs"
	"alignbox_chat/internal/logging"
	"alignbox_chat/internal/models"
)

// Broadcaster 將已寫入的正式紀錄推送給觀看者
type Broadcaster interface {
	Broadcast(ctx context.Context, message models.Message, origin string) error
}

type HubOptions struct {
	SendQueue   int
	EventBuffer int
}

type broadcastEvent struct {
	message models.Message
	origin  string
}

// Hub 管理觀看者連線並廣播新訊息。
//
// 推送為盡力而為：沒有確認、沒有重送，也不替離線的連線保留事件。
// 廣播事件由 Run 依序處理，每個觀看者各自的佇列維持相同順序。
// 與廣播同時發生的連線或斷線，可能收到也可能收不到該則訊息；
// 完整紀錄以資料庫為準，客戶端可重新查詢歷史補齊。
type Hub struct {
	registry  *Registry
	events    chan broadcastEvent
	sendQueue int
	log       *logrus.Logger

	lifecycle sync.RWMutex
	closing   bool
	started   atomic.Bool
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewHub(registry *Registry, opts HubOptions, log *logrus.Logger) *Hub {
	if registry == nil {
		registry = NewRegistry()
	}
	if opts.SendQueue <= 0 {
		opts.SendQueue = 256
	}
	if opts.EventBuffer < 0 {
		opts.EventBuffer = 0
	}
	if log == nil {
		log = logging.Discard()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		registry:  registry,
		events:    make(chan broadcastEvent, opts.EventBuffer),
		sendQueue: opts.SendQueue,
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// Run 處理廣播事件直到 Shutdown，需在獨立 goroutine 執行
func (h *Hub) Run() {
	if !h.started.CompareAndSwap(false, true) {
		return
	}
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			return
		case ev := <-h.events:
			h.fanout(ev)
		}
	}
}

// Broadcast 將訊息排入廣播佇列，在排入後即返回
func (h *Hub) Broadcast(ctx context.Context, message models.Message, origin string) error {
	ev := broadcastEvent{message: message, origin: origin}
	select {
	case h.events <- ev:
		return nil
	case <-h.ctx.Done():
		return errs.ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Attach 登記新的推送連線並啟動讀寫 goroutine
func (h *Hub) Attach(conn *websocket.Conn, addr string) (*Viewer, error) {
	v := newViewer(conn, h, addr, h.sendQueue)

	welcome, err := json.Marshal(models.Event{Type: models.EventWelcome, ViewerID: v.ID})
	if err != nil {
		return nil, err
	}
	// 歡迎事件必須排在任何廣播之前
	if err := v.enqueue(welcome); err != nil {
		return nil, err
	}

	if err := h.register(v, v.writePump, v.readPump); err != nil {
		v.disconnect()
		return nil, err
	}
	return v, nil
}

// register 在 lifecycle 讀鎖內登記並啟動 pumps，
// Shutdown 取得寫鎖後不會再有新的 wg.Add
func (h *Hub) register(v *Viewer, pumps ...func()) error {
	h.lifecycle.RLock()
	defer h.lifecycle.RUnlock()

	if h.closing {
		return errs.ErrHubClosed
	}
	total := h.registry.Add(v)
	v.markConnected()

	h.wg.Add(len(pumps))
	for _, pump := range pumps {
		go func(pump func()) {
			defer h.wg.Done()
			pump()
		}(pump)
	}

	fields := logging.ViewerFields("viewer_connected", v.ID, v.Addr)
	fields["viewers"] = total
	h.log.WithFields(fields).Info("viewer connected")
	return nil
}

// detach 自登記移除並關閉發送佇列，可重複呼叫
func (h *Hub) detach(v *Viewer, reason string) {
	_, remaining, removed := h.registry.Remove(v.ID)
	if !v.disconnect() && !removed {
		return
	}
	fields := logging.ViewerFields("viewer_disconnected", v.ID, v.Addr)
	fields["reason"] = reason
	fields["viewers"] = remaining
	h.log.WithFields(fields).Info("viewer disconnected")
}

// drop 用於無法投遞的連線，立即關閉底層連線而不等待佇列清空
func (h *Hub) drop(v *Viewer, err error) {
	h.log.WithFields(logging.ViewerFields("delivery_failure", v.ID, v.Addr)).WithError(err).Warn("dropping viewer")
	h.detach(v, "delivery_failure")
	v.closeConn()
}

func (h *Hub) fanout(ev broadcastEvent) {
	msg := ev.message
	payload, err := json.Marshal(models.Event{Type: models.EventNewMessage, Message: &msg})
	if err != nil {
		h.log.WithFields(logging.MessageFields("broadcast_encode", msg.ID)).WithError(err).Error("failed to encode event")
		return
	}

	delivered := 0
	for _, v := range h.registry.Snapshot() {
		if ev.origin != "" && v.ID == ev.origin {
			continue
		}
		if err := v.enqueue(payload); err != nil {
			h.drop(v, err)
			continue
		}
		delivered++
	}

	fields := logging.MessageFields("broadcast", msg.ID)
	fields["delivered"] = delivered
	h.log.WithFields(fields).Debug("message broadcast")
}

// ViewerCount 回傳目前連線數
func (h *Hub) ViewerCount() int {
	return h.registry.Len()
}

// Shutdown 停止接受新連線與事件，關閉所有觀看者並等待讀寫 goroutine 結束
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.lifecycle.Lock()
	h.closing = true
	h.lifecycle.Unlock()

	h.cancel()
	if h.started.Load() {
		<-h.done
	}

	viewers := h.registry.Snapshot()
	for _, v := range viewers {
		h.detach(v, "shutdown")
	}
	h.log.WithFields(logging.BaseFields("hub_shutdown")).Infof("closed %d viewer connections", len(viewers))

	finished := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-time.After(timeout):
		// 強制關閉仍卡在寫入的連線
		for _, v := range viewers {
			v.closeConn()
		}
		return context.DeadlineExceeded
	}
}

// isExpectedCloseError 判斷關閉連線時可忽略的錯誤
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "use of closed network connection") ||
		strings.Contains(msg, "websocket: close sent") ||
		strings.Contains(msg, "broken pipe")
}
