package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/huddle-chat/huddle/internal/domain"
)

// Config holds all application configuration
type Config struct {
	// Server
	Port string

	// Security
	AllowedOrigins  []string
	SessionTTL      time.Duration
	SessionHashKey  string
	SessionBlockKey string

	// Rate Limiting
	RateLimitAPI rate.Limit
	RateLimitWS  rate.Limit

	// Logging
	LogLevel string

	// Presence
	AwayTimeout time.Duration

	// Storage
	DBPath       string
	HistoryLimit int

	// WebSocket
	MaxMessageSize int
}

// Default returns configuration with default values
func Default() *Config {
	return &Config{
		Port:           "8080",
		AllowedOrigins: []string{"http://localhost:8080", "http://localhost:3000"},
		SessionTTL:     domain.SessionTTL,
		RateLimitAPI:   domain.DefaultRateLimitAPI,
		RateLimitWS:    domain.DefaultRateLimitWS,
		LogLevel:       "info", // Options: debug, info, warn, error
		AwayTimeout:    domain.DefaultAwayTimeout,
		DBPath:         "huddle.db",
		HistoryLimit:   domain.DefaultHistoryLimit,
		MaxMessageSize: domain.MaxMessageSize,
	}
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	cfg := Default()

	// Server
	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = port
	}

	// Security
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseOrigins(origins)
	}

	if ttl := os.Getenv("SESSION_TTL_HOURS"); ttl != "" {
		if hours, err := strconv.Atoi(ttl); err == nil && hours > 0 {
			cfg.SessionTTL = time.Duration(hours) * time.Hour
		}
	}

	cfg.SessionHashKey = os.Getenv("SESSION_HASH_KEY")
	cfg.SessionBlockKey = os.Getenv("SESSION_BLOCK_KEY")

	// Rate Limiting
	if rl := os.Getenv("RATE_LIMIT_API"); rl != "" {
		if val, err := strconv.Atoi(rl); err == nil && val > 0 {
			cfg.RateLimitAPI = rate.Limit(val)
		}
	}

	if rl := os.Getenv("RATE_LIMIT_WS"); rl != "" {
		if val, err := strconv.Atoi(rl); err == nil && val > 0 {
			cfg.RateLimitWS = rate.Limit(val)
		}
	}

	// Logging
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	// Presence
	if secs := os.Getenv("AWAY_TIMEOUT_SECONDS"); secs != "" {
		if val, err := strconv.Atoi(secs); err == nil && val > 0 {
			cfg.AwayTimeout = time.Duration(val) * time.Second
		}
	}

	// Storage
	if path := os.Getenv("DB_PATH"); path != "" {
		cfg.DBPath = path
	}

	if limit := os.Getenv("HISTORY_LIMIT"); limit != "" {
		if val, err := strconv.Atoi(limit); err == nil && val > 0 {
			cfg.HistoryLimit = val
		}
	}

	// WebSocket
	if size := os.Getenv("MAX_MESSAGE_SIZE"); size != "" {
		if val, err := strconv.Atoi(size); err == nil && val > 0 {
			cfg.MaxMessageSize = val
		}
	}

	return cfg
}

// parseOrigins parses comma-separated origins
func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
