// Package config provides configuration for the debugger core.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the core configuration.
type Config struct {
	// Listener settings
	Host      string
	AgentPort int // WebSocket port the instrumented agent connects to
	UIPort    int // WebSocket port the operator UI connects to

	// Summarizer settings
	SummaryModel   string
	SummaryBaseURL string
	SummaryAPIKey  string
	SummaryTimeout time.Duration

	// Run log
	LogDir string

	// WebSocket settings
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	MaxMessageSize int64 // agent channel only; the UI channel is unlimited

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		Host:           getEnv("HOST", "localhost"),
		AgentPort:      getEnvInt("AGENT_PORT", 8765),
		UIPort:         getEnvInt("UI_PORT", 4567),
		SummaryModel:   getEnv("SUMMARY_MODEL", "gpt-5-nano"),
		SummaryBaseURL: getEnv("SUMMARY_BASE_URL", "https://api.openai.com"),
		SummaryAPIKey:  getEnv("SUMMARY_API_KEY", os.Getenv("OPENAI_API_KEY")),
		SummaryTimeout: time.Duration(getEnvInt("SUMMARY_TIMEOUT_MS", 20000)) * time.Millisecond,
		LogDir:         getEnv("LOG_DIR", "logs"),
		PingInterval:   time.Duration(getEnvInt("WS_PING_INTERVAL_MS", 30000)) * time.Millisecond,
		WriteTimeout:   time.Duration(getEnvInt("WS_WRITE_TIMEOUT_MS", 10000)) * time.Millisecond,
		ReadTimeout:    time.Duration(getEnvInt("WS_READ_TIMEOUT_MS", 60000)) * time.Millisecond,
		MaxMessageSize: int64(getEnvInt("WS_MAX_MESSAGE_SIZE", 1048576)),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}
