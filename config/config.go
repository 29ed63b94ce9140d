package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents the application configuration
type Config struct {
	// Catalog storage; DatabaseURL wins over SQLitePath
	DatabaseURL string
	SQLitePath  string

	// Redis configuration (price-drop alerts)
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamMaxLength int

	// Memcache configuration (per-shop rate-limit blocks)
	MemcacheAddr   string
	RateLimitBlock time.Duration

	// Crawler configuration
	FetchTimeout        time.Duration
	RenderWait          time.Duration
	MaxStaticFetches    int
	MaxRenderedSessions int
	ReconcileWorkers    int
	BrowserBin          string
	BrowserHeadless     bool

	// Inputs
	ShopsFile         string
	SamplePhrasesFile string

	// Price monitor
	CheckInterval time.Duration

	MetricsAddr string

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	streamMaxLength, _ := strconv.Atoi(getEnv("REDIS_STREAM_MAX_LENGTH", "1000"))
	blockSeconds, _ := strconv.Atoi(getEnv("RATE_LIMIT_BLOCK_SECONDS", "300"))
	fetchTimeout, _ := strconv.Atoi(getEnv("FETCH_TIMEOUT_SECONDS", "30"))
	renderWait, _ := strconv.Atoi(getEnv("RENDER_WAIT_SECONDS", "15"))
	maxStatic, _ := strconv.Atoi(getEnv("MAX_STATIC_FETCHES", "8"))
	maxRendered, _ := strconv.Atoi(getEnv("MAX_RENDERED_SESSIONS", "2"))
	reconcileWorkers, _ := strconv.Atoi(getEnv("RECONCILE_WORKERS", "4"))
	headless, _ := strconv.ParseBool(getEnv("BROWSER_HEADLESS", "true"))
	checkInterval, _ := strconv.Atoi(getEnv("CHECK_INTERVAL_SECONDS", "3600"))

	return &Config{
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		SQLitePath:           getEnv("SQLITE_PATH", "pricecompare.db"),
		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisDB:              redisDB,
		RedisStream:          getEnv("REDIS_STREAM", "price_drops"),
		RedisStreamMaxLength: streamMaxLength,
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", ""),
		RateLimitBlock:       time.Duration(blockSeconds) * time.Second,
		FetchTimeout:         time.Duration(fetchTimeout) * time.Second,
		RenderWait:           time.Duration(renderWait) * time.Second,
		MaxStaticFetches:     maxStatic,
		MaxRenderedSessions:  maxRendered,
		ReconcileWorkers:     reconcileWorkers,
		BrowserBin:           getEnv("BROWSER_BIN", ""),
		BrowserHeadless:      headless,
		ShopsFile:            getEnv("SHOPS_FILE", ""),
		SamplePhrasesFile:    getEnv("SAMPLE_PHRASES_FILE", "sample_search_phrases.txt"),
		CheckInterval:        time.Duration(checkInterval) * time.Second,
		MetricsAddr:          getEnv("METRICS_ADDR", ""),
		Environment:          getEnv("PRICECOMPARE_ENVIRONMENT", "development"),
	}
}

// Validate checks that limits and durations are usable
func (c *Config) Validate() error {
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("FETCH_TIMEOUT_SECONDS must be positive")
	}
	if c.RenderWait <= 0 || c.RenderWait > c.FetchTimeout {
		return fmt.Errorf("RENDER_WAIT_SECONDS must be positive and not exceed FETCH_TIMEOUT_SECONDS")
	}
	if c.MaxStaticFetches < 1 {
		return fmt.Errorf("MAX_STATIC_FETCHES must be at least 1")
	}
	if c.MaxRenderedSessions < 1 {
		return fmt.Errorf("MAX_RENDERED_SESSIONS must be at least 1")
	}
	if c.MaxRenderedSessions > c.MaxStaticFetches {
		return fmt.Errorf("MAX_RENDERED_SESSIONS must not exceed MAX_STATIC_FETCHES")
	}
	if c.ReconcileWorkers < 1 {
		return fmt.Errorf("RECONCILE_WORKERS must be at least 1")
	}
	if c.DatabaseURL == "" && c.SQLitePath == "" {
		return fmt.Errorf("either DATABASE_URL or SQLITE_PATH must be set")
	}
	if c.CheckInterval <= 0 {
		return fmt.Errorf("CHECK_INTERVAL_SECONDS must be positive")
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
