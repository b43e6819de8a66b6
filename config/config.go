package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port             string
	LogLevel         slog.Level
	LogFormat        string
	DefaultRoom      string
	MaxMessageSize   int64
	SendBuffer       int
	CloseOnViolation bool
	ShutdownTimeout  time.Duration
}

// Load reads .env files (if any) into the environment and builds a Config
// from it. Missing .env files are not an error.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil {
		slog.Warn("no .env file found, using environment variables")
	}
	return FromEnv(os.Getenv)
}

func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		Port:            "8080",
		LogLevel:        slog.LevelInfo,
		LogFormat:       "text",
		DefaultRoom:     "home",
		MaxMessageSize:  4096,
		SendBuffer:      256,
		ShutdownTimeout: 10 * time.Second,
	}

	if v := getenv("PORT"); v != "" {
		cfg.Port = v
	}
	switch getenv("LOG_LEVEL") {
	case "debug":
		cfg.LogLevel = slog.LevelDebug
	case "warn":
		cfg.LogLevel = slog.LevelWarn
	case "error":
		cfg.LogLevel = slog.LevelError
	}
	switch v := getenv("LOG_FORMAT"); v {
	case "", "text":
	case "json":
		cfg.LogFormat = v
	default:
		return Config{}, fmt.Errorf("LOG_FORMAT: unsupported format %q", v)
	}
	if v := getenv("DEFAULT_ROOM"); v != "" {
		cfg.DefaultRoom = v
	}
	if v := getenv("MAX_MESSAGE_SIZE"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("MAX_MESSAGE_SIZE: invalid value %q", v)
		}
		cfg.MaxMessageSize = n
	}
	if v := getenv("SEND_BUFFER"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("SEND_BUFFER: invalid value %q", v)
		}
		cfg.SendBuffer = n
	}
	if v := getenv("CLOSE_ON_VIOLATION"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("CLOSE_ON_VIOLATION: %w", err)
		}
		cfg.CloseOnViolation = b
	}
	if v := getenv("SHUTDOWN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("SHUTDOWN_TIMEOUT: %w", err)
		}
		cfg.ShutdownTimeout = d
	}

	return cfg, nil
}
