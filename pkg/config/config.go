package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	DB        DBConfig        `mapstructure:"db"`
	Log       LogConfig       `mapstructure:"log"`
	Hub       HubConfig       `mapstructure:"hub"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Redis     RedisConfig     `mapstructure:"redis"`
}

type ServerConfig struct {
	Port             int           `mapstructure:"port"`
	AllowedOrigins   []string      `mapstructure:"allowed_origins"`
	MaxMessageLength int           `mapstructure:"max_message_length"`
	ShutdownTimeout  time.Duration `mapstructure:"shutdown_timeout"`
}

// Address 回傳 http.Server 使用的監聽位址
func (s ServerConfig) Address() string {
	return fmt.Sprintf(":%d", s.Port)
}

type DBConfig struct {
	Driver     string `mapstructure:"driver"` // "postgres" 或 "sqlite"
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	User       string `mapstructure:"user"`
	Password   string `mapstructure:"password"`
	Name       string `mapstructure:"name"`
	SSLMode    string `mapstructure:"sslmode"`
	PoolSize   int    `mapstructure:"pool_size"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	FilePath   string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// HubConfig 控制廣播中心的佇列大小
type HubConfig struct {
	SendQueue   int `mapstructure:"send_queue"`   // 每個連線的發送佇列
	EventBuffer int `mapstructure:"event_buffer"` // 待廣播事件的緩衝
}

type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// RedisConfig 為空 Addr 時使用記憶體限流
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// FieldError 指出哪個設定欄位不合法
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// 環境變數與設定鍵的對應
var envBindings = map[string]string{
	"server.port":               "PORT",
	"server.allowed_origins":    "ALLOWED_ORIGINS",
	"server.max_message_length": "MAX_MESSAGE_LENGTH",
	"server.shutdown_timeout":   "SHUTDOWN_TIMEOUT",
	"db.driver":                 "DB_DRIVER",
	"db.host":                   "DB_HOST",
	"db.port":                   "DB_PORT",
	"db.user":                   "DB_USER",
	"db.password":               "DB_PASSWORD",
	"db.name":                   "DB_NAME",
	"db.sslmode":                "DB_SSLMODE",
	"db.pool_size":              "DB_POOL_SIZE",
	"db.sqlite_path":            "SQLITE_PATH",
	"log.level":                 "LOG_LEVEL",
	"log.file":                  "LOG_FILE",
	"log.max_size":              "LOG_MAX_SIZE",
	"log.max_backups":           "LOG_MAX_BACKUPS",
	"log.compress":              "LOG_COMPRESS",
	"hub.send_queue":            "HUB_SEND_QUEUE",
	"hub.event_buffer":          "HUB_EVENT_BUFFER",
	"rate_limit.enabled":        "RATE_LIMIT_ENABLED",
	"rate_limit.requests":       "RATE_LIMIT_REQUESTS",
	"rate_limit.window":         "RATE_LIMIT_WINDOW",
	"redis.addr":                "REDIS_ADDR",
	"redis.password":            "REDIS_PASSWORD",
	"redis.db":                  "REDIS_DB",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 4000)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.max_message_length", 2000)
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.name", "alignbox_chat")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.pool_size", 10)
	v.SetDefault("db.sqlite_path", "alignbox_chat.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 10)
	v.SetDefault("log.compress", true)
	v.SetDefault("hub.send_queue", 256)
	v.SetDefault("hub.event_buffer", 256)
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests", 20)
	v.SetDefault("rate_limit.window", "10s")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
}

// Load 依序套用預設值、設定檔 (可選) 與環境變數。
// 設定檔路徑可由 CHAT_CONFIG 指定，否則在 ./pkg/config 尋找 config.yaml。
func Load() (*Config, error) {
	// .env 不存在時忽略
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path := os.Getenv("CHAT_CONFIG"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./pkg/config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 檢查無法運作的設定值
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return FieldError{Field: "server.port", Reason: "must be between 1 and 65535"}
	}
	if c.Server.MaxMessageLength <= 0 {
		return FieldError{Field: "server.max_message_length", Reason: "must be positive"}
	}
	for _, origin := range c.Server.AllowedOrigins {
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return FieldError{Field: "server.allowed_origins", Reason: fmt.Sprintf("origin %q must start with http:// or https://", origin)}
		}
	}
	switch c.DB.Driver {
	case "postgres", "sqlite":
	default:
		return FieldError{Field: "db.driver", Reason: fmt.Sprintf("unsupported driver %q", c.DB.Driver)}
	}
	if c.DB.PoolSize <= 0 {
		return FieldError{Field: "db.pool_size", Reason: "must be positive"}
	}
	if c.Hub.SendQueue <= 0 {
		return FieldError{Field: "hub.send_queue", Reason: "must be positive"}
	}
	if c.Hub.EventBuffer < 0 {
		return FieldError{Field: "hub.event_buffer", Reason: "must not be negative"}
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.Requests <= 0 {
			return FieldError{Field: "rate_limit.requests", Reason: "must be positive"}
		}
		if c.RateLimit.Window <= 0 {
			return FieldError{Field: "rate_limit.window", Reason: "must be positive"}
		}
	}
	return nil
}
