package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Store backends selectable through BOOKING_STORE.
const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Config captures environment driven configuration values for the booking service.
type Config struct {
	HTTPPort        int           `env:"BOOKING_HTTP_PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"BOOKING_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	Store       string `env:"BOOKING_STORE" envDefault:"sqlite"`
	SQLitePath  string `env:"BOOKING_SQLITE_PATH" envDefault:"data/booking.db"`
	DatabaseURL string `env:"BOOKING_DATABASE_URL"`

	IdentitySecret string `env:"BOOKING_IDENTITY_SECRET"`
	IdentityIssuer string `env:"BOOKING_IDENTITY_ISSUER"`

	LogLevel  string `env:"BOOKING_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"BOOKING_LOG_FORMAT" envDefault:"json"`

	TxMaxRetries int           `env:"BOOKING_TX_MAX_RETRIES" envDefault:"3"`
	TxRetryDelay time.Duration `env:"BOOKING_TX_RETRY_DELAY" envDefault:"50ms"`

	NotifyTimeout time.Duration `env:"BOOKING_NOTIFY_TIMEOUT" envDefault:"5s"`
	AMQPURL       string        `env:"BOOKING_AMQP_URL"`
	AMQPExchange  string        `env:"BOOKING_AMQP_EXCHANGE" envDefault:"campus.bookings"`

	RoomCacheSize int           `env:"BOOKING_ROOM_CACHE_SIZE" envDefault:"256"`
	EndingSoon    time.Duration `env:"BOOKING_ENDING_SOON" envDefault:"30m"`
}

// LoadEnvFile merges KEY=VALUE pairs from path into the process environment.
// Variables that are already set win. A missing file is not an error.
func LoadEnvFile(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("環境ファイルを読み込めません: %s: %w", path, err)
	}
	return nil
}

// Load parses configuration values from the current process environment.
//
// Defaults come from the struct tags; required values and value ranges are
// checked afterwards so every offending key is reported at once.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("環境変数の値が不正です: %w", err)
	}

	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	cfg.IdentitySecret = strings.TrimSpace(cfg.IdentitySecret)
	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)

	missing := make([]string, 0, 2)
	invalid := make([]string, 0, 4)

	if cfg.IdentitySecret == "" {
		missing = append(missing, "BOOKING_IDENTITY_SECRET")
	}

	switch cfg.Store {
	case StoreSQLite:
		if strings.TrimSpace(cfg.SQLitePath) == "" {
			invalid = append(invalid, "BOOKING_SQLITE_PATH")
		}
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			missing = append(missing, "BOOKING_DATABASE_URL")
		}
	default:
		invalid = append(invalid, "BOOKING_STORE")
	}

	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		invalid = append(invalid, "BOOKING_HTTP_PORT")
	}
	if cfg.ShutdownTimeout <= 0 {
		invalid = append(invalid, "BOOKING_SHUTDOWN_TIMEOUT")
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		invalid = append(invalid, "BOOKING_LOG_LEVEL")
	}
	switch cfg.LogFormat {
	case "json", "text":
	default:
		invalid = append(invalid, "BOOKING_LOG_FORMAT")
	}
	if cfg.TxMaxRetries < 0 {
		invalid = append(invalid, "BOOKING_TX_MAX_RETRIES")
	}
	if cfg.TxRetryDelay < 0 {
		invalid = append(invalid, "BOOKING_TX_RETRY_DELAY")
	}
	if cfg.NotifyTimeout <= 0 {
		invalid = append(invalid, "BOOKING_NOTIFY_TIMEOUT")
	}
	if cfg.RoomCacheSize <= 0 {
		invalid = append(invalid, "BOOKING_ROOM_CACHE_SIZE")
	}
	if cfg.EndingSoon <= 0 {
		invalid = append(invalid, "BOOKING_ENDING_SOON")
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("必須の環境変数が設定されていません: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("環境変数の値が不正です: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}
