// Package config loads pipeline configuration from the environment.
// Every value has a default suitable for local development except the
// source endpoints and database credentials.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// Rate-limit defaults match the store source's published quota:
// 200 requests per 310 seconds.
const (
	DefaultStoreRateLimitN        = 200
	DefaultStoreRateLimitWindowMS = 310000
	DefaultMetaRateLimitN         = 240
	DefaultMetaRateLimitWindowMS  = 60000
)

// Config is the full runtime configuration.
type Config struct {
	StoreBaseURL string `validate:"required,url"`
	StoreAPIKey  string
	MetaBaseURL  string `validate:"required,url"`
	MetaAPIKey   string `validate:"required"`

	DBHost     string `validate:"required"`
	DBPort     int    `validate:"min=1,max=65535"`
	DBName     string `validate:"required"`
	DBUser     string `validate:"required"`
	DBPassword string
	DBSSLMode  string `validate:"oneof=disable require verify-ca verify-full"`
	DBMaxConns int    `validate:"min=1,max=64"`

	StoreRateLimitN      int           `validate:"min=1"`
	StoreRateLimitWindow time.Duration `validate:"min=1s"`
	MetaRateLimitN       int           `validate:"min=1"`
	MetaRateLimitWindow  time.Duration `validate:"min=1s"`

	BatchConcurrency int `validate:"min=1,max=8"`
	FetchBatchSize   int `validate:"min=1,max=10000"`
	SaveBatchSize    int `validate:"min=1,max=10000"`

	LogBaseDir  string `validate:"required"`
	MetricsAddr string
	Debug       bool
}

// Load reads the environment and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		StoreBaseURL: getEnv("STORE_BASE_URL", ""),
		StoreAPIKey:  getEnv("STORE_API_KEY", ""),
		MetaBaseURL:  getEnv("META_BASE_URL", ""),
		MetaAPIKey:   getEnv("META_API_KEY", ""),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnvInt("DB_PORT", 5432),
		DBName:     getEnv("DB_NAME", "game_catalog"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),
		DBMaxConns: getEnvInt("DB_MAX_CONNS", 8),

		StoreRateLimitN:      getEnvInt("STORE_RATE_LIMIT_N", DefaultStoreRateLimitN),
		StoreRateLimitWindow: time.Duration(getEnvInt("STORE_RATE_LIMIT_WINDOW_MS", DefaultStoreRateLimitWindowMS)) * time.Millisecond,
		MetaRateLimitN:       getEnvInt("META_RATE_LIMIT_N", DefaultMetaRateLimitN),
		MetaRateLimitWindow:  time.Duration(getEnvInt("META_RATE_LIMIT_WINDOW_MS", DefaultMetaRateLimitWindowMS)) * time.Millisecond,

		BatchConcurrency: getEnvInt("BATCH_CONCURRENCY", 4),
		FetchBatchSize:   getEnvInt("FETCH_BATCH_SIZE", 1000),
		SaveBatchSize:    getEnvInt("SAVE_BATCH_SIZE", 1000),

		LogBaseDir:  getEnv("LOG_BASE_DIR", "./logs"),
		MetricsAddr: getEnv("METRICS_ADDR", ""),
		Debug:       getEnvBool("DEBUG", false),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DatabaseDSN renders the Postgres connection string. Credentials are
// URL-escaped so reserved characters in the password survive parsing.
func (c *Config) DatabaseDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.DBSSLMode),
	}
	return u.String()
}

// MaskSecret keeps the first four runes of a secret for log lines.
func MaskSecret(s string) string {
	runes := []rune(s)
	if len(runes) <= 4 {
		return "****"
	}
	return string(runes[:4]) + "****"
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
