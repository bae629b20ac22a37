// Package config provides configuration for streamchat.
//
// Values come from built-in defaults, then an optional YAML file named by
// STREAMCHAT_CONFIG, then environment variables. Later sources win.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xiaot623/gogo/streamchat/internal/retry"
)

// EnvConfigFile names the optional YAML config file.
const EnvConfigFile = "STREAMCHAT_CONFIG"

// ProfileTest shrinks retry delays for automated tests.
const ProfileTest = "test"

// Config holds the streamchat configuration.
type Config struct {
	// Server settings
	HTTPPort int

	// WebSocket settings
	WSPingInterval   time.Duration
	WSWriteTimeout   time.Duration
	WSReadTimeout    time.Duration
	WSMaxMessageSize int64

	// Database
	DatabaseURL string

	// Chat endpoint used by the session engine
	ChatURL     string
	ChatTimeout time.Duration
	MockMode    bool

	// Telemetry
	TelemetryURL     string
	TelemetryEnabled bool
	TelemetryLog     string

	// Session
	DefaultModel    string
	VisibilityCap   int
	TrimKeep        int
	NotificationTTL time.Duration
	PersistDebounce time.Duration

	// Retry
	RetryAttempts  int
	RetryBase      time.Duration
	RetryJitterMax time.Duration
	Profile        string

	// Providers
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	MistralAPIKey  string
	MistralBaseURL string
	GoogleAPIKey   string

	// Logging
	LogLevel  string
	LogFormat string
}

// fileConfig is the YAML layout. Durations are in milliseconds, matching
// the *_MS environment variables.
type fileConfig struct {
	HTTPPort          int    `yaml:"http_port"`
	WSPingIntervalMs  int    `yaml:"ws_ping_interval_ms"`
	WSWriteTimeoutMs  int    `yaml:"ws_write_timeout_ms"`
	WSReadTimeoutMs   int    `yaml:"ws_read_timeout_ms"`
	WSMaxMessageSize  int    `yaml:"ws_max_message_size"`
	DatabaseURL       string `yaml:"database_url"`
	ChatURL           string `yaml:"chat_url"`
	ChatTimeoutMs     int    `yaml:"chat_timeout_ms"`
	Mode              string `yaml:"mode"`
	TelemetryURL      string `yaml:"telemetry_url"`
	TelemetryEnabled  bool   `yaml:"telemetry_enabled"`
	TelemetryLog      string `yaml:"telemetry_log"`
	DefaultModel      string `yaml:"default_model"`
	VisibilityCap     int    `yaml:"visibility_cap"`
	TrimKeep          int    `yaml:"trim_keep"`
	NotificationTTLMs int    `yaml:"notification_ttl_ms"`
	PersistDebounceMs int    `yaml:"persist_debounce_ms"`
	RetryAttempts     int    `yaml:"retry_attempts"`
	RetryBaseMs       int    `yaml:"retry_base_ms"`
	RetryJitterMs     int    `yaml:"retry_jitter_ms"`
	Profile           string `yaml:"profile"`
	OpenAIAPIKey      string `yaml:"openai_api_key"`
	OpenAIBaseURL     string `yaml:"openai_base_url"`
	MistralAPIKey     string `yaml:"mistral_api_key"`
	MistralBaseURL    string `yaml:"mistral_base_url"`
	GoogleAPIKey      string `yaml:"google_api_key"`
	LogLevel          string `yaml:"log_level"`
	LogFormat         string `yaml:"log_format"`
}

func defaults() fileConfig {
	return fileConfig{
		HTTPPort:          3001,
		WSPingIntervalMs:  30000,
		WSWriteTimeoutMs:  10000,
		WSReadTimeoutMs:   60000,
		WSMaxMessageSize:  65536,
		DatabaseURL:       "file:streamchat.db?cache=shared&mode=rwc",
		ChatURL:           "http://localhost:3001/api/chat",
		ChatTimeoutMs:     300000,
		TelemetryURL:      "http://localhost:3001/api/telemetry",
		TelemetryLog:      "telemetry.log",
		DefaultModel:      "mistral-large-3",
		VisibilityCap:     60,
		TrimKeep:          12,
		NotificationTTLMs: 5000,
		PersistDebounceMs: 300,
		RetryAttempts:     3,
		RetryBaseMs:       500,
		RetryJitterMs:     300,
		MistralBaseURL:    "https://api.mistral.ai/v1/",
		LogLevel:          "info",
		LogFormat:         "console",
	}
}

// Load loads configuration from the optional YAML file and environment
// variables.
func Load() (*Config, error) {
	return LoadFile(os.Getenv(EnvConfigFile))
}

// LoadFile is Load with an explicit file path. An empty path skips the file.
func LoadFile(path string) (*Config, error) {
	fc := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		HTTPPort:         getEnvInt("HTTP_PORT", fc.HTTPPort),
		WSPingInterval:   time.Duration(getEnvInt("WS_PING_INTERVAL_MS", fc.WSPingIntervalMs)) * time.Millisecond,
		WSWriteTimeout:   time.Duration(getEnvInt("WS_WRITE_TIMEOUT_MS", fc.WSWriteTimeoutMs)) * time.Millisecond,
		WSReadTimeout:    time.Duration(getEnvInt("WS_READ_TIMEOUT_MS", fc.WSReadTimeoutMs)) * time.Millisecond,
		WSMaxMessageSize: int64(getEnvInt("WS_MAX_MESSAGE_SIZE", fc.WSMaxMessageSize)),
		DatabaseURL:      getEnv("DATABASE_URL", fc.DatabaseURL),
		ChatURL:          getEnv("CHAT_URL", fc.ChatURL),
		ChatTimeout:      time.Duration(getEnvInt("CHAT_TIMEOUT_MS", fc.ChatTimeoutMs)) * time.Millisecond,
		MockMode:         strings.EqualFold(getEnv("STREAMCHAT_MODE", fc.Mode), "MOCK"),
		TelemetryURL:     getEnv("TELEMETRY_URL", fc.TelemetryURL),
		TelemetryEnabled: getEnvBool("TELEMETRY_ENABLED", fc.TelemetryEnabled),
		TelemetryLog:     getEnv("TELEMETRY_LOG", fc.TelemetryLog),
		DefaultModel:     getEnv("DEFAULT_MODEL", fc.DefaultModel),
		VisibilityCap:    getEnvInt("VISIBILITY_CAP", fc.VisibilityCap),
		TrimKeep:         getEnvInt("TRIM_KEEP", fc.TrimKeep),
		NotificationTTL:  time.Duration(getEnvInt("NOTIFICATION_TTL_MS", fc.NotificationTTLMs)) * time.Millisecond,
		PersistDebounce:  time.Duration(getEnvInt("PERSIST_DEBOUNCE_MS", fc.PersistDebounceMs)) * time.Millisecond,
		RetryAttempts:    getEnvInt("RETRY_ATTEMPTS", fc.RetryAttempts),
		RetryBase:        time.Duration(getEnvInt("RETRY_BASE_MS", fc.RetryBaseMs)) * time.Millisecond,
		RetryJitterMax:   time.Duration(getEnvInt("RETRY_JITTER_MS", fc.RetryJitterMs)) * time.Millisecond,
		Profile:          getEnv("STREAMCHAT_PROFILE", fc.Profile),
		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", fc.OpenAIAPIKey),
		OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", fc.OpenAIBaseURL),
		MistralAPIKey:    getEnv("MISTRAL_API_KEY", fc.MistralAPIKey),
		MistralBaseURL:   getEnv("MISTRAL_BASE_URL", fc.MistralBaseURL),
		GoogleAPIKey:     getEnv("GOOGLE_GENERATIVE_AI_API_KEY", fc.GoogleAPIKey),
		LogLevel:         getEnv("LOG_LEVEL", fc.LogLevel),
		LogFormat:        getEnv("LOG_FORMAT", fc.LogFormat),
	}

	if cfg.Profile == ProfileTest {
		cfg.RetryBase = 10 * time.Millisecond
	}
	return cfg, nil
}

// RetryPolicy builds the send retry policy from the configured values.
func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: c.RetryAttempts,
		Base:        c.RetryBase,
		JitterMax:   c.RetryJitterMax,
	}
}

// HasProviderKeys reports whether any upstream provider is configured.
func (c *Config) HasProviderKeys() bool {
	return c.OpenAIAPIKey != "" || c.MistralAPIKey != "" || c.GoogleAPIKey != ""
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

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if boolVal, err := strconv.ParseBool(val); err == nil {
			return boolVal
		}
	}
	return defaultVal
}
