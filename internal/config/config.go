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
	Port               string
	MaxOrigins         int
	MaxMessages        int
	MaxAttachmentBytes int
	GracePeriod        time.Duration
	IdleTimeout        time.Duration
	SweepInterval      time.Duration
	KeepaliveInterval  time.Duration
	PostRPS            float64
	PostBurst          int
	GiphyAPIKey        string
	AllowedOrigins     []string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		MaxOrigins:         getEnvInt("MAX_ORIGINS", 8),
		MaxMessages:        getEnvInt("MAX_MESSAGES", 200),
		MaxAttachmentBytes: getEnvInt("MAX_ATTACHMENT_BYTES", 1<<20),
		GracePeriod:        getEnvDuration("GRACE_PERIOD", 5*time.Second),
		IdleTimeout:        getEnvDuration("IDLE_TIMEOUT", 5*time.Minute),
		SweepInterval:      getEnvDuration("SWEEP_INTERVAL", 30*time.Second),
		KeepaliveInterval:  getEnvDuration("KEEPALIVE_INTERVAL", 25*time.Second),
		PostRPS:            getEnvFloat("POST_RPS", 5),
		PostBurst:          getEnvInt("POST_BURST", 10),
		GiphyAPIKey:        getEnv("GIPHY_API_KEY", ""),
		AllowedOrigins:     splitCSV(getEnv("ALLOWED_ORIGINS", "*")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are sane.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.MaxOrigins <= 0 {
		return fmt.Errorf("MAX_ORIGINS must be > 0")
	}
	if c.MaxMessages <= 0 {
		return fmt.Errorf("MAX_MESSAGES must be > 0")
	}
	if c.MaxAttachmentBytes <= 0 {
		return fmt.Errorf("MAX_ATTACHMENT_BYTES must be > 0")
	}
	if c.GracePeriod <= 0 || c.IdleTimeout <= 0 || c.SweepInterval <= 0 || c.KeepaliveInterval <= 0 {
		return fmt.Errorf("all intervals must be > 0")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
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

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
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

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
