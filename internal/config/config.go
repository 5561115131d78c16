package config

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	defaultListenAddr    = ":8000"
	defaultLLMProvider   = "openai"
	defaultLLMModel      = "gpt-4o"
	defaultOllamaHost    = "http://localhost:11434"
	defaultScreenshotDir = "data/screenshots"

	envListenAddr    = "BROWSERPILOT_LISTEN_ADDR"
	envLogLevel      = "BROWSERPILOT_LOG_LEVEL"
	envLLMProvider   = "BROWSERPILOT_LLM_PROVIDER"
	envLLMModel      = "BROWSERPILOT_LLM_MODEL"
	envOllamaHost    = "BROWSERPILOT_OLLAMA_HOST"
	envLLMAPIKey     = "BROWSERPILOT_LLM_API_KEY"
	envDBPath        = "BROWSERPILOT_DB_PATH"
	envScreenshotDir = "BROWSERPILOT_SCREENSHOT_DIR"
)

// Config holds application configuration loaded from environment variables.
// An empty DBPath selects the in-memory store.
type Config struct {
	ListenAddr    string
	LogLevel      slog.Level
	LLMProvider   string
	LLMModel      string
	OllamaHost    string
	LLMAPIKey     string
	DBPath        string
	ScreenshotDir string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	cfg := Config{
		ListenAddr:    defaultListenAddr,
		LogLevel:      slog.LevelInfo,
		LLMProvider:   defaultLLMProvider,
		LLMModel:      defaultLLMModel,
		OllamaHost:    defaultOllamaHost,
		ScreenshotDir: defaultScreenshotDir,
	}

	if v := os.Getenv(envListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}
	if v := os.Getenv(envLLMProvider); v != "" {
		cfg.LLMProvider = strings.ToLower(v)
	}
	if v := os.Getenv(envLLMModel); v != "" {
		cfg.LLMModel = v
	} else {
		cfg.LLMModel = defaultModelFor(cfg.LLMProvider)
	}
	if v := os.Getenv(envOllamaHost); v != "" {
		cfg.OllamaHost = v
	}
	cfg.LLMAPIKey = os.Getenv(envLLMAPIKey)
	cfg.DBPath = os.Getenv(envDBPath)
	if v := os.Getenv(envScreenshotDir); v != "" {
		cfg.ScreenshotDir = v
	}

	return cfg
}

// defaultModelFor picks a per-provider model when none is configured.
func defaultModelFor(provider string) string {
	switch provider {
	case "anthropic":
		return "claude-sonnet-4-20250514"
	case "ollama":
		return "llama3.2"
	default:
		return defaultLLMModel
	}
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
