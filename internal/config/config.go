package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const (
	EnvPrefix        = "TODOZEN"
	DefaultMirrorURL = "postgres://localhost:5432/todozen?sslmode=disable"
)

// Config keeps runtime settings for the task manager.
type Config struct {
	DatabasePath string        `mapstructure:"database_path" validate:"required"`
	Owner        string        `mapstructure:"owner" validate:"required"`
	LogLevel     string        `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	StoreTimeout time.Duration `mapstructure:"store_timeout" validate:"gt=0"`

	// MirrorURL is a Postgres connection string; "off" or empty keeps the
	// app local-only.
	MirrorURL          string        `mapstructure:"mirror_url"`
	MirrorProbeTimeout time.Duration `mapstructure:"mirror_probe_timeout" validate:"gt=0"`
	MirrorWriteTimeout time.Duration `mapstructure:"mirror_write_timeout" validate:"gt=0"`
	MirrorQueueSize    int           `mapstructure:"mirror_queue_size" validate:"gt=0"`
	// ReconcileInterval of zero disables periodic reconciliation.
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval" validate:"gte=0"`

	PollInterval    time.Duration `mapstructure:"poll_interval" validate:"gte=1s"`
	GraceWindow     time.Duration `mapstructure:"grace_window" validate:"gte=0"`
	Lookahead       time.Duration `mapstructure:"lookahead" validate:"gte=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`

	TelegramToken  string `mapstructure:"telegram_token"`
	TelegramChatID int64  `mapstructure:"telegram_chat_id" validate:"required_with=TelegramToken"`
	// SummaryAt is the HH:MM local time of the daily report; empty disables it.
	SummaryAt string `mapstructure:"summary_at" validate:"omitempty,datetime=15:04"`

	HTTPAddr string `mapstructure:"http_addr" validate:"omitempty,hostname_port"`
}

var defaults = map[string]any{
	"database_path":        "todozen_local.db",
	"owner":                "guest",
	"log_level":            "info",
	"store_timeout":        5 * time.Second,
	"mirror_url":           DefaultMirrorURL,
	"mirror_probe_timeout": 3 * time.Second,
	"mirror_write_timeout": 5 * time.Second,
	"mirror_queue_size":    256,
	"reconcile_interval":   10 * time.Minute,
	"poll_interval":        15 * time.Second,
	"grace_window":         time.Minute,
	"lookahead":            time.Duration(0),
	"shutdown_timeout":     10 * time.Second,
	"telegram_token":       "",
	"telegram_chat_id":     int64(0),
	"summary_at":           "",
	"http_addr":            "",
}

// SetDefaults registers every key with its default and wires environment
// overrides (TODOZEN_<KEY>).
func SetDefaults(v *viper.Viper) {
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
}

// Load reads an optional config file, unmarshals and validates the result.
// Precedence is flags, then environment, then the file, then defaults.
func Load(v *viper.Viper, file string) (Config, error) {
	SetDefaults(v)
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Owner = strings.TrimSpace(cfg.Owner)
	cfg.MirrorURL = strings.TrimSpace(cfg.MirrorURL)
	cfg.TelegramToken = strings.TrimSpace(cfg.TelegramToken)

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ParseLogLevel maps a config level name onto slog.
func ParseLogLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the process logger.
func NewLogger(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLogLevel(level)}))
}
