package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// AppConfig describes the configuration of every binary.
type AppConfig struct {
	AppEnv    string `envconfig:"APP_ENV" default:"dev"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	HTTP struct {
		Port            int           `envconfig:"PORT" default:"8080"`
		RequestTimeout  time.Duration `envconfig:"HTTP_REQUEST_TIMEOUT" default:"60s"`
		ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"10s"`
	} `envconfig:""`

	Storage struct {
		Driver     string `envconfig:"STORAGE_DRIVER" default:"postgres"`
		PGDSN      string `envconfig:"PG_DSN"`
		SQLitePath string `envconfig:"SQLITE_PATH" default:"data/nova.db"`
	} `envconfig:""`

	Redis struct {
		Addr       string        `envconfig:"REDIS_ADDR"`
		SessionTTL time.Duration `envconfig:"SESSION_TTL" default:"24h"`
	} `envconfig:""`

	Queue struct {
		Driver         string `envconfig:"QUEUE_DRIVER" default:"redis"`
		AlertKey       string `envconfig:"ALERT_QUEUE_KEY" default:"quota_alert_jobs"`
		RabbitURL      string `envconfig:"RABBITMQ_URL"`
		RabbitQueue    string `envconfig:"RABBITMQ_ALERT_QUEUE" default:"quota_alerts"`
		RabbitPrefetch int    `envconfig:"RABBITMQ_PREFETCH" default:"1"`
	} `envconfig:""`

	Auth struct {
		JWTSecret string        `envconfig:"JWT_SECRET"`
		TokenTTL  time.Duration `envconfig:"JWT_TTL" default:"24h"`
	} `envconfig:""`

	Feedback struct {
		WindowDays int     `envconfig:"FEEDBACK_WINDOW_DAYS" default:"30"`
		MinRating  float64 `envconfig:"RECOMMEND_MIN_RATING" default:"3.0"`
	} `envconfig:""`

	Quota struct {
		WarningPercent int           `envconfig:"QUOTA_ALERT_PERCENT" default:"80"`
		CheckInterval  time.Duration `envconfig:"QUOTA_CHECK_INTERVAL" default:"1h"`
	} `envconfig:""`

	Telegram struct {
		Token       string `envconfig:"TG_BOT_TOKEN"`
		AlertChatID int64  `envconfig:"TG_ALERT_CHAT_ID"`
	} `envconfig:""`

	ProviderKeys struct {
		Gemini    string `envconfig:"GEMINI_API_KEY"`
		OpenAI    string `envconfig:"OPENAI_API_KEY"`
		Anthropic string `envconfig:"ANTHROPIC_API_KEY"`
		Llama     string `envconfig:"LLAMA_API_KEY"`
	} `envconfig:""`

	MetricsAddr  string `envconfig:"METRICS_ADDR" default:":9090"`
	SettingsFile string `envconfig:"SETTINGS_FILE" default:"data/settings.yaml"`
}

// Load reads an optional .env file and then the environment.
func Load() AppConfig {
	cfg, err := LoadFrom(os.Getenv("ENV_FILE"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// LoadFrom is Load with an explicit .env path; an empty path means ".env".
// A missing file is not an error.
func LoadFrom(envFile string) (AppConfig, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return AppConfig{}, fmt.Errorf("read %s: %w", envFile, err)
	}
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return AppConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// Validate checks values that have no safe default.
func (c AppConfig) Validate() error {
	switch strings.ToLower(c.Storage.Driver) {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver)
	}
	switch strings.ToLower(c.Queue.Driver) {
	case "redis", "rabbitmq":
	default:
		return fmt.Errorf("unknown QUEUE_DRIVER %q", c.Queue.Driver)
	}
	if c.Feedback.WindowDays <= 0 {
		return errors.New("FEEDBACK_WINDOW_DAYS must be positive")
	}
	if c.Quota.WarningPercent <= 0 || c.Quota.WarningPercent > 100 {
		return errors.New("QUOTA_ALERT_PERCENT must be within 1..100")
	}
	return nil
}

// UsesSQLite reports whether the sqlite storage driver is selected.
func (c AppConfig) UsesSQLite() bool {
	return strings.EqualFold(c.Storage.Driver, "sqlite")
}

// UsesRabbit reports whether alerts go through RabbitMQ.
func (c AppConfig) UsesRabbit() bool {
	return strings.EqualFold(c.Queue.Driver, "rabbitmq")
}

// APIKeys returns the configured provider keys by provider name.
func (c AppConfig) APIKeys() map[string]string {
	return map[string]string{
		"GEMINI":    c.ProviderKeys.Gemini,
		"OPENAI":    c.ProviderKeys.OpenAI,
		"ANTHROPIC": c.ProviderKeys.Anthropic,
		"LLAMA":     c.ProviderKeys.Llama,
	}
}
