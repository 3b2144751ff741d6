package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	"alignbox_chat/internal/models"
)

// Subscription 是一條推送連線；Messages 在連線結束時關閉，Err 回傳結束原因
type Subscription struct {
	ViewerID string

	conn     *websocket.Conn
	messages chan models.Message
	done     chan struct{}
	closing  chan struct{}
	once     sync.Once

	mu  sync.Mutex
	err error
}

// Subscribe 建立推送連線並等待歡迎事件
func (c *Client) Subscribe(ctx context.Context) (*Subscription, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.wsURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.wsURL(), err)
	}

	var welcome models.Event
	if err := conn.ReadJSON(&welcome); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("read welcome: %w", err)
	}
	if welcome.Type != models.EventWelcome {
		_ = conn.Close()
		return nil, fmt.Errorf("unexpected first event %q", welcome.Type)
	}

	s := &Subscription{
		ViewerID: welcome.ViewerID,
		conn:     conn,
		messages: make(chan models.Message, 64),
		done:     make(chan struct{}),
		closing:  make(chan struct{}),
	}
	go s.readLoop()
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.done:
		}
	}()
	return s, nil
}

func (s *Subscription) Messages() <-chan models.Message {
	return s.messages
}

func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close 關閉連線，readLoop 隨之結束；可重複呼叫
func (s *Subscription) Close() error {
	first := false
	s.once.Do(func() {
		first = true
		close(s.closing)
	})
	if !first {
		return nil
	}
	err := s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if closeErr := s.conn.Close(); err == nil {
		err = closeErr
	}
	if errors.Is(err, websocket.ErrCloseSent) {
		return nil
	}
	return err
}

func (s *Subscription) readLoop() {
	defer close(s.done)
	defer close(s.messages)

	for {
		var ev models.Event
		if err := s.conn.ReadJSON(&ev); err != nil {
			if !s.closed() && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.mu.Lock()
				s.err = err
				s.mu.Unlock()
			}
			return
		}
		if ev.Type != models.EventNewMessage || ev.Message == nil {
			continue
		}
		select {
		case s.messages <- *ev.Message:
		case <-s.closing:
			return
		}
	}
}

func (s *Subscription) closed() bool {
	select {
	case <-s.closing:
		return true
	default:
		return false
	}
}
