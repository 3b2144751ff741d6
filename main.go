package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"alignbox_chat/internal/api"
	"alignbox_chat/internal/limiter"
	"alignbox_chat/internal/logging"
	"alignbox_chat/internal/models"
	"alignbox_chat/internal/repository"
	"alignbox_chat/internal/service"
	"alignbox_chat/internal/storage"
	"alignbox_chat/pkg/config"
)

func main() {
	// 載入應用程式配置
	// 預設值、config.yaml 與環境變數依序覆蓋
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(2)
	}

	log, err := logging.InitLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(2)
	}

	if err := run(cfg, log); err != nil {
		log.WithFields(logging.BaseFields("startup")).WithError(err).Fatal("server stopped")
	}
}

func run(cfg *config.Config, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 初始化資料庫連接
	db, err := storage.Open(cfg.DB, log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	// 確保在程序結束時關閉數據庫連接
	defer db.Close()

	// 自動遷移資料庫結構
	if err := db.AutoMigrate(&models.Message{}); err != nil {
		return fmt.Errorf("failed to auto migrate database: %w", err)
	}

	// 初始化 repositories 與 services
	repos := repository.NewRepositories(db)
	services := service.NewServices(repos, cfg, log)
	go services.Hub.Run()

	var rateLimiter *limiter.Manager
	if cfg.RateLimit.Enabled {
		rateLimiter, err = limiter.New(ctx, cfg.RateLimit, cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to initialize rate limiter: %w", err)
		}
		defer rateLimiter.Close()
	}

	// 設置 Gin 路由
	if log.GetLevel() < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	api.SetupRoutes(r, services, cfg, rateLimiter, log)

	srv := &http.Server{
		Addr:    cfg.Server.Address(),
		Handler: r,
	}

	errCh := make(chan error, 1)
	go func() {
		fields := logging.BaseFields("startup")
		fields["addr"] = srv.Addr
		fields["db_driver"] = cfg.DB.Driver
		log.WithFields(fields).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to run server: %w", err)
		}
	case <-ctx.Done():
	}

	// 先停止接收 HTTP 請求，再關閉推送連線
	log.WithFields(logging.BaseFields("shutdown")).Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithFields(logging.BaseFields("shutdown")).WithError(err).Warn("http server shutdown incomplete")
	}
	if err := services.Hub.Shutdown(cfg.Server.ShutdownTimeout); err != nil {
		log.WithFields(logging.BaseFields("shutdown")).WithError(err).Warn("hub shutdown incomplete")
	}
	return nil
}
