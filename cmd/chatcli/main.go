// chatcli 是終端機聊天客戶端：載入歷史後透過推送通道 (或輪詢) 顯示新訊息，
// 標準輸入的每一行送出為一則訊息。輸入 /anon 切換匿名，/quit 離開。
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"alignbox_chat/internal/client"
	"alignbox_chat/internal/models"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

type cliConfig struct {
	ServerURL    string        `mapstructure:"server_url"`
	UserID       string        `mapstructure:"user_id"`
	Username     string        `mapstructure:"username"`
	Anonymous    bool          `mapstructure:"anonymous"`
	Poll         bool          `mapstructure:"poll"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

func loadConfig() (cliConfig, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("CHAT")
	v.AutomaticEnv()
	v.SetDefault("server_url", "http://localhost:4000")
	v.SetDefault("user_id", "u1")
	v.SetDefault("username", "")
	v.SetDefault("anonymous", false)
	v.SetDefault("poll", false)
	v.SetDefault("poll_interval", "3s")

	var cfg cliConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	if cfg.ServerURL == "" {
		return cfg, fmt.Errorf("CHAT_SERVER_URL is required")
	}
	return cfg, nil
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "chatcli: %v\n", err)
	}
	os.Exit(code)
}

// printer 序列化輸出，避免推送與輸入回顯交錯
type printer struct {
	mu     sync.Mutex
	userID string
}

func (p *printer) print(m models.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ts := client.FormatTime(m.CreatedAt, nil)
	if client.DirectionOf(m, p.userID) == client.Outgoing {
		color.Green.Printf("%s  %s ✓✓\n", m.Message, ts)
		return
	}
	color.New(color.FgCyan, color.OpBold).Printf("%s", client.DisplayName(m))
	color.Gray.Printf(" %s\n", ts)
	fmt.Printf("  %s\n", m.Message)
}

func run() (int, error) {
	cfg, err := loadConfig()
	if err != nil {
		return exitConfig, err
	}

	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api := client.New(cfg.ServerURL)
	timeline := client.NewTimeline()
	out := &printer{userID: cfg.UserID}

	history, err := api.ListMessages(ctx)
	if err != nil {
		return exitRuntime, fmt.Errorf("load history: %w", err)
	}
	timeline.Seed(history)
	for _, m := range timeline.Messages() {
		out.print(m)
	}

	show := func(m models.Message) {
		if timeline.Add(m) {
			out.print(m)
		}
	}

	var viewerID string
	if cfg.Poll {
		poller := client.NewPoller(api, timeline, cfg.PollInterval, func(err error) {
			log.WithError(err).Warn("poll failed")
		})
		go func() { _ = poller.Run(ctx, out.print) }()
	} else {
		sub, err := api.Subscribe(ctx)
		if err != nil {
			return exitRuntime, fmt.Errorf("subscribe: %w", err)
		}
		defer sub.Close()
		viewerID = sub.ViewerID

		go func() {
			for m := range sub.Messages() {
				show(m)
			}
			if err := sub.Err(); err != nil {
				log.WithError(err).Error("push connection lost")
				stop()
			}
		}()
	}

	color.Yellow.Printf("connected to %s as %s (anonymous: %v)\n", cfg.ServerURL, cfg.UserID, cfg.Anonymous)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	anonymous := cfg.Anonymous
	for {
		select {
		case <-ctx.Done():
			return exitOK, nil
		case line, ok := <-lines:
			if !ok {
				return exitOK, nil
			}
			text := strings.TrimSpace(line)
			switch text {
			case "":
				continue
			case "/quit":
				return exitOK, nil
			case "/anon":
				anonymous = !anonymous
				color.Yellow.Printf("anonymous: %v\n", anonymous)
				continue
			}

			draft := models.Draft{
				UserID:    lo.EmptyableToPtr(cfg.UserID),
				Username:  lo.EmptyableToPtr(cfg.Username),
				Message:   text,
				Anonymous: anonymous,
			}
			created, err := api.SubmitMessage(ctx, draft, viewerID)
			if err != nil {
				log.WithError(err).Warn("send failed")
				continue
			}
			show(*created)
		}
	}
}
