package client

import (
	"context"
	"time"

	"alignbox_chat/internal/models"
)

// Poller 是沒有推送通道時的備援：定期查詢歷史，只回報尚未出現在 Timeline 的訊息
type Poller struct {
	client   *Client
	timeline *Timeline
	interval time.Duration
	onError  func(error)
}

func NewPoller(client *Client, timeline *Timeline, interval time.Duration, onError func(error)) *Poller {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	if onError == nil {
		onError = func(error) {}
	}
	return &Poller{
		client:   client,
		timeline: timeline,
		interval: interval,
		onError:  onError,
	}
}

// Run 阻塞直到 ctx 結束；查詢失敗時回報並在下一輪重試
func (p *Poller) Run(ctx context.Context, onMessage func(models.Message)) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if err := p.Poll(ctx, onMessage); err != nil && ctx.Err() == nil {
			p.onError(err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Poll 執行一次查詢
func (p *Poller) Poll(ctx context.Context, onMessage func(models.Message)) error {
	messages, err := p.client.ListMessages(ctx)
	if err != nil {
		return err
	}
	for _, m := range messages {
		if p.timeline.Add(m) {
			onMessage(m)
		}
	}
	return nil
}
