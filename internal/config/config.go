// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// WebhookEnvKeys lists the variables checked for the webhook destination, in priority order.
var WebhookEnvKeys = []string{"MAKE_WEBHOOK", "WEBHOOK_URL", "WEBHOOK"}

// Config holds all application configuration.
type Config struct {
	Port         string
	GeminiAPIKey string
	GeminiModel  string
	StateDSN     string
	StatePath    string
	CORSOrigins  []string
	BurstLimit   int  // requests per minute per IP; 0 disables
	TrustProxy   bool // take the client IP from forwarding headers
	MaxBodyBytes int64
	Model        ModelConfig
	Webhook      WebhookConfig
	Retention    RetentionConfig
}

// ModelConfig controls calls to the language-model provider.
type ModelConfig struct {
	Timeout time.Duration
}

// WebhookConfig controls proposal delivery.
type WebhookConfig struct {
	Timeout     time.Duration
	MaxAttempts int
	Backoff     time.Duration
}

// RetentionConfig bounds growth of the persisted document.
type RetentionConfig struct {
	WebhookLogs int // newest attempts kept; 0 keeps everything
	BucketDays  int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:         getEnv("PORT", "3001"),
		GeminiAPIKey: strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		StateDSN:     getEnv("STATE_DSN", ""),
		StatePath:    getEnv("STATE_PATH", "./local-storage.json"),
		CORSOrigins:  getEnvList("CORS_ORIGINS", []string{"*"}),
		BurstLimit:   getEnvInt("BURST_LIMIT", 60),
		TrustProxy:   getEnvBool("TRUST_PROXY", false),
		MaxBodyBytes: int64(getEnvInt("MAX_BODY_BYTES", 2<<20)),
		Model: ModelConfig{
			Timeout: getEnvDuration("MODEL_TIMEOUT", 30*time.Second),
		},
		Webhook: WebhookConfig{
			Timeout:     getEnvDuration("WEBHOOK_TIMEOUT", 30*time.Second),
			MaxAttempts: getEnvInt("WEBHOOK_MAX_ATTEMPTS", 3),
			Backoff:     getEnvDuration("WEBHOOK_BACKOFF", 500*time.Millisecond),
		},
		Retention: RetentionConfig{
			WebhookLogs: getEnvInt("WEBHOOK_LOG_RETENTION", 1000),
			BucketDays:  getEnvInt("RATE_BUCKET_RETENTION_DAYS", 7),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.StateDSN == "" && c.StatePath == "" {
		return fmt.Errorf("STATE_PATH cannot be empty when STATE_DSN is unset")
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("MAX_BODY_BYTES must be > 0")
	}
	if c.Webhook.MaxAttempts <= 0 {
		return fmt.Errorf("WEBHOOK_MAX_ATTEMPTS must be > 0")
	}
	if c.Webhook.Backoff < 0 {
		return fmt.Errorf("WEBHOOK_BACKOFF cannot be negative")
	}
	if c.Retention.WebhookLogs < 0 {
		return fmt.Errorf("WEBHOOK_LOG_RETENTION cannot be negative")
	}
	if c.Retention.BucketDays < 1 {
		return fmt.Errorf("RATE_BUCKET_RETENTION_DAYS must be >= 1")
	}
	return nil
}

// WebhookURL resolves the webhook destination. It is read on every call so
// the service can start without one and report the gap per request.
func WebhookURL() string {
	for _, key := range WebhookEnvKeys {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
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

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return b
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

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
