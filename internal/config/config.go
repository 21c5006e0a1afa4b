// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port            string
	FrontendURL     string
	DBPath          string
	Env             string
	MaxRequestBytes int64
	AI              AIConfig
	Illustration    IllustrationConfig
	RateLimit       RateLimitConfig
	ConversationLog ConversationLogConfig
	Sentry          SentryConfig
}

// AIConfig controls the text and image model calls.
type AIConfig struct {
	APIKey         string
	Model          string
	ImageModel     string
	Temperature    float32
	RequestTimeout time.Duration
	HistoryWindow  int
	TrainingMarker string
}

// IllustrationConfig controls exercise image binding.
type IllustrationConfig struct {
	Mode            string
	AssetsBucket    string
	AssetsBaseURL   string
	GenerateTimeout time.Duration
}

// RateLimitConfig bounds chat submissions per user.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// ConversationLogConfig controls JSON conversation logging.
type ConversationLogConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// SentryConfig controls error reporting.
type SentryConfig struct {
	DSN string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		FrontendURL:     getEnv("FRONTEND_URL", ""),
		DBPath:          getEnv("DB_PATH", "./data/bpb.db"),
		Env:             getEnv("APP_ENV", "development"),
		MaxRequestBytes: int64(getEnvInt("MAX_REQUEST_BODY_BYTES", 16<<20)),
		AI: AIConfig{
			APIKey:         getEnv("GEMINI_API_KEY", ""),
			Model:          getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
			ImageModel:     getEnv("GEMINI_IMAGE_MODEL", "gemini-2.0-flash-exp"),
			Temperature:    getEnvFloat32("GEMINI_TEMPERATURE", 0.7),
			RequestTimeout: getEnvDuration("AI_REQUEST_TIMEOUT", 90*time.Second),
			HistoryWindow:  getEnvInt("HISTORY_WINDOW", 5),
			TrainingMarker: getEnv("TRAINING_MARKER", "Training Program"),
		},
		Illustration: IllustrationConfig{
			Mode:            getEnv("ILLUSTRATION_MODE", "fallback"),
			AssetsBucket:    getEnv("ASSETS_BUCKET", ""),
			AssetsBaseURL:   getEnv("ASSETS_BASE_URL", ""),
			GenerateTimeout: getEnvDuration("ILLUSTRATION_TIMEOUT", 60*time.Second),
		},
		RateLimit: RateLimitConfig{
			Requests: getEnvInt("RATE_LIMIT_REQUESTS", 10),
			Window:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		ConversationLog: ConversationLogConfig{
			Enabled:       getEnvBool("CONVERSATION_LOG_ENABLED", true),
			Dir:           getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
			GlobalEnabled: getEnvBool("CONVERSATION_LOG_GLOBAL_ENABLED", false),
			GlobalPath:    getEnv("CONVERSATION_LOG_GLOBAL_PATH", "./data/logs/conversations/all.ndjson"),
			QueueSize:     queueSize,
		},
		Sentry: SentryConfig{
			DSN: getEnv("SENTRY_DSN", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.MaxRequestBytes <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_BYTES must be > 0")
	}
	if c.AI.Model == "" {
		return fmt.Errorf("GEMINI_MODEL cannot be empty")
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 2 {
		return fmt.Errorf("GEMINI_TEMPERATURE must be between 0 and 2")
	}
	if c.AI.RequestTimeout <= 0 {
		return fmt.Errorf("AI_REQUEST_TIMEOUT must be > 0")
	}
	if c.AI.HistoryWindow < 0 {
		return fmt.Errorf("HISTORY_WINDOW must be >= 0")
	}
	if strings.TrimSpace(c.AI.TrainingMarker) == "" {
		return fmt.Errorf("TRAINING_MARKER cannot be empty")
	}
	switch c.Illustration.Mode {
	case "fallback", "generate":
	default:
		return fmt.Errorf("ILLUSTRATION_MODE must be fallback or generate, got %q", c.Illustration.Mode)
	}
	if c.Illustration.GenerateTimeout <= 0 {
		return fmt.Errorf("ILLUSTRATION_TIMEOUT must be > 0")
	}
	if c.RateLimit.Requests <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be > 0")
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be > 0")
	}
	if c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	if c.ConversationLog.GlobalPath == "" {
		return fmt.Errorf("CONVERSATION_LOG_GLOBAL_PATH cannot be empty")
	}
	if c.ConversationLog.QueueSize <= 0 {
		return fmt.Errorf("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat32(key string, fallback float32) float32 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 32)
	if err != nil {
		return fallback
	}
	return float32(f)
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
