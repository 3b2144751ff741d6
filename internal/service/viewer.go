package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"alignbox_chat/internal/errs"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxReadMessage = 4096
)

// ViewerState 觀看者連線狀態：Connecting → Connected → Disconnected
type ViewerState int32

const (
	ViewerConnecting ViewerState = iota
	ViewerConnected
	ViewerDisconnected
)

func (s ViewerState) String() string {
	switch s {
	case ViewerConnecting:
		return "connecting"
	case ViewerConnected:
		return "connected"
	case ViewerDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("ViewerState(%d)", int32(s))
	}
}

// Viewer 代表一個推送連線
type Viewer struct {
	ID   string
	Addr string

	conn *websocket.Conn
	send chan []byte // 有界發送佇列
	hub  *Hub

	mu    sync.Mutex
	state ViewerState
}

func newViewer(conn *websocket.Conn, hub *Hub, addr string, queueSize int) *Viewer {
	return &Viewer{
		ID:    uuid.NewString(),
		Addr:  addr,
		conn:  conn,
		send:  make(chan []byte, queueSize),
		hub:   hub,
		state: ViewerConnecting,
	}
}

func (v *Viewer) State() ViewerState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

func (v *Viewer) markConnected() bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state != ViewerConnecting {
		return false
	}
	v.state = ViewerConnected
	return true
}

// enqueue 非阻塞地放入發送佇列；佇列已滿或連線已關閉時回傳 ErrDeliveryFailure
func (v *Viewer) enqueue(payload []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state == ViewerDisconnected {
		return fmt.Errorf("%w: viewer %s disconnected", errs.ErrDeliveryFailure, v.ID)
	}
	select {
	case v.send <- payload:
		return nil
	default:
		return fmt.Errorf("%w: viewer %s send queue full", errs.ErrDeliveryFailure, v.ID)
	}
}

// disconnect 進入終止狀態並關閉發送佇列，只有第一次呼叫回傳 true
func (v *Viewer) disconnect() bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state == ViewerDisconnected {
		return false
	}
	v.state = ViewerDisconnected
	close(v.send)
	return true
}

func (v *Viewer) closeConn() {
	if v.conn == nil {
		return
	}
	if err := v.conn.Close(); err != nil && !isExpectedCloseError(err) {
		v.hub.log.WithError(err).WithField("viewer_id", v.ID).Debug("close viewer connection")
	}
}

// readPump 只用來偵測斷線與處理 pong，推送通道不接受客戶端訊息
func (v *Viewer) readPump() {
	defer v.hub.detach(v, "read_closed")

	v.conn.SetReadLimit(maxReadMessage)
	_ = v.conn.SetReadDeadline(time.Now().Add(pongWait))
	v.conn.SetPongHandler(func(string) error {
		return v.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := v.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				v.hub.log.WithError(err).WithField("viewer_id", v.ID).Warn("websocket unexpected close error")
			}
			return
		}
		// 客戶端送來的內容一律忽略
	}
}

// writePump 依序寫出佇列中的事件並定時 ping
func (v *Viewer) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		v.closeConn()
	}()

	for {
		select {
		case payload, ok := <-v.send:
			_ = v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = v.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := v.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				v.hub.detach(v, "write_failed")
				return
			}

		case <-ticker.C:
			_ = v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := v.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				v.hub.detach(v, "ping_failed")
				return
			}
		}
	}
}
