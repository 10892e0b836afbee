package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Scheduler
	ScheduleInterval   time.Duration
	MaxConcurrentFeeds int
	MaxRetries         int
	StaleLease         time.Duration

	// Versioning
	VersionsToKeep int

	// Catalog
	CatalogTimeout   time.Duration
	CatalogMaxSize   int64
	CatalogRateLimit int // req/sec（ショップごと）

	// Rate Limit
	RateLimitGeneral int // req/min（クライアントごと）

	// Server
	ServerPort string
	BaseURL    string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.ScheduleInterval = getEnvDuration("SCHEDULE_INTERVAL", 5*time.Minute)
	cfg.MaxConcurrentFeeds = getEnvInt("MAX_CONCURRENT_FEEDS", 3)
	cfg.MaxRetries = getEnvInt("MAX_RETRIES", 3)
	cfg.StaleLease = getEnvDuration("STALE_LEASE", 30*time.Minute)
	cfg.VersionsToKeep = getEnvInt("VERSIONS_TO_KEEP", 5)
	cfg.CatalogTimeout = getEnvDuration("CATALOG_TIMEOUT", 30*time.Second)
	cfg.CatalogMaxSize = getEnvInt64("CATALOG_MAX_SIZE", 10485760)
	cfg.CatalogRateLimit = getEnvInt("CATALOG_RATE_LIMIT", 2)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
