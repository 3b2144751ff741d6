// Package client 是聊天伺服器的 Go 客戶端。
//
// 提供歷史查詢、送出訊息、推送訂閱與輪詢備援，
// 以及與瀏覽器介面相同的顯示規則 (方向、名稱、頭像)。
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"alignbox_chat/internal/models"
)

// HeaderViewerID 與伺服器約定的送出者連線標頭
const HeaderViewerID = "X-Viewer-ID"

// APIError 伺服器回傳的非成功狀態
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chat api: %d %s", e.Status, e.Message)
}

type Client struct {
	baseURL string
	http    *http.Client
}

type Option func(*Client)

// WithHTTPClient 替換預設的 http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New baseURL 例如 http://localhost:4000
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListMessages 取得完整歷史
func (c *Client) ListMessages(ctx context.Context) ([]models.Message, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/messages", nil)
	if err != nil {
		return nil, err
	}
	var messages []models.Message
	if err := c.do(req, http.StatusOK, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// SubmitMessage 送出草稿，viewerID 非空時伺服器不會把這則訊息推回該連線
func (c *Client) SubmitMessage(ctx context.Context, draft models.Draft, viewerID string) (*models.Message, error) {
	body, err := json.Marshal(draft)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if viewerID != "" {
		req.Header.Set(HeaderViewerID, viewerID)
	}

	var message models.Message
	if err := c.do(req, http.StatusCreated, &message); err != nil {
		return nil, err
	}
	return &message, nil
}

func (c *Client) do(req *http.Request, want int, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		var body struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &body) != nil || body.Error == "" {
			body.Error = strings.TrimSpace(string(raw))
		}
		return &APIError{Status: resp.StatusCode, Message: body.Error}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// wsURL 將 http(s) 位址轉為推送通道位址
func (c *Client) wsURL() string {
	switch {
	case strings.HasPrefix(c.baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(c.baseURL, "https://") + "/ws"
	case strings.HasPrefix(c.baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(c.baseURL, "http://") + "/ws"
	default:
		return c.baseURL + "/ws"
	}
}
