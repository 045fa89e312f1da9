// Package config loads application configuration from environment variables.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment base URLs for the Zotok API.
var environmentURLs = map[string]string{
	"qa":   "https://api-qa.zono.digital",
	"prod": "https://api-prod.zono.digital",
}

// Store backends for the key/value store.
const (
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	Environment string
	BaseURL     string

	TokenDuration  time.Duration
	TokenBuffer    time.Duration
	RequestTimeout time.Duration
	MaxRetries     int
	RetryDelay     time.Duration

	PageSize         int
	MaxPages         int
	BatchSize        int
	MaxExecutionTime time.Duration
	MemoryLimit      int
	PageDelay        time.Duration

	CredentialCacheTTL time.Duration
	TokenStatusTTL     time.Duration
	ValidationTTL      time.Duration
	ValidationEndpoint string

	Store      string
	DBPath     string
	RedisURL   string
	DocumentID string
	SecretKey  []byte

	ListenAddr         string
	EndpointsFile      string
	AllowProdMutations bool
	HTTPCache          bool
}

// IsProduction reports whether the configured environment is prod.
func (c *Config) IsProduction() bool {
	return c.Environment == "prod"
}

// Load reads configuration from environment variables and returns a validated Config.
// Every variable is optional and prefixed ZOTOK_. ZOTOK_BASE_URL overrides the URL
// derived from ZOTOK_ENVIRONMENT (qa or prod, default qa). ZOTOK_SECRET_KEY, when set,
// must be a base64-encoded 32-byte AES-256 key used to encrypt stored values.
func Load() (*Config, error) {
	cfg := &Config{
		Environment:        "qa",
		TokenDuration:      24 * time.Hour,
		TokenBuffer:        5 * time.Minute,
		RequestTimeout:     30 * time.Second,
		MaxRetries:         3,
		RetryDelay:         time.Second,
		PageSize:           100,
		MaxPages:           50,
		BatchSize:          1,
		MaxExecutionTime:   5 * time.Minute,
		MemoryLimit:        10000,
		PageDelay:          200 * time.Millisecond,
		CredentialCacheTTL: 10 * time.Minute,
		TokenStatusTTL:     time.Minute,
		ValidationTTL:      5 * time.Minute,
		ValidationEndpoint: "customers",
		Store:              StoreSQLite,
		DBPath:             "zotoksheets.db",
		RedisURL:           "redis://127.0.0.1:6379/0",
		DocumentID:         "default",
		ListenAddr:         "127.0.0.1:8080",
		HTTPCache:          true,
	}

	if v, ok := os.LookupEnv("ZOTOK_ENVIRONMENT"); ok && v != "" {
		v = strings.ToLower(strings.TrimSpace(v))
		if _, known := environmentURLs[v]; !known {
			return nil, fmt.Errorf("ZOTOK_ENVIRONMENT has unknown value %q: expected qa or prod", v)
		}
		cfg.Environment = v
	}
	cfg.BaseURL = environmentURLs[cfg.Environment]
	if v, ok := os.LookupEnv("ZOTOK_BASE_URL"); ok && v != "" {
		cfg.BaseURL = strings.TrimRight(v, "/")
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"ZOTOK_TOKEN_DURATION", &cfg.TokenDuration},
		{"ZOTOK_TOKEN_BUFFER", &cfg.TokenBuffer},
		{"ZOTOK_REQUEST_TIMEOUT", &cfg.RequestTimeout},
		{"ZOTOK_RETRY_DELAY", &cfg.RetryDelay},
		{"ZOTOK_MAX_EXECUTION_TIME", &cfg.MaxExecutionTime},
		{"ZOTOK_PAGE_DELAY", &cfg.PageDelay},
		{"ZOTOK_CREDENTIAL_CACHE_TTL", &cfg.CredentialCacheTTL},
		{"ZOTOK_TOKEN_STATUS_TTL", &cfg.TokenStatusTTL},
		{"ZOTOK_VALIDATION_TTL", &cfg.ValidationTTL},
	}
	for _, d := range durations {
		if err := lookupDuration(d.key, d.dst); err != nil {
			return nil, err
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"ZOTOK_MAX_RETRIES", &cfg.MaxRetries},
		{"ZOTOK_PAGE_SIZE", &cfg.PageSize},
		{"ZOTOK_MAX_PAGES", &cfg.MaxPages},
		{"ZOTOK_BATCH_SIZE", &cfg.BatchSize},
		{"ZOTOK_MEMORY_LIMIT", &cfg.MemoryLimit},
	}
	for _, n := range ints {
		if err := lookupPositiveInt(n.key, n.dst); err != nil {
			return nil, err
		}
	}

	if cfg.TokenBuffer >= cfg.TokenDuration {
		return nil, fmt.Errorf("ZOTOK_TOKEN_BUFFER (%s) must be shorter than ZOTOK_TOKEN_DURATION (%s)", cfg.TokenBuffer, cfg.TokenDuration)
	}

	if v, ok := os.LookupEnv("ZOTOK_VALIDATION_ENDPOINT"); ok && v != "" {
		cfg.ValidationEndpoint = v
	}

	if v, ok := os.LookupEnv("ZOTOK_STORE"); ok && v != "" {
		switch v {
		case StoreSQLite, StoreRedis, StoreMemory:
			cfg.Store = v
		default:
			return nil, fmt.Errorf("ZOTOK_STORE has unknown value %q: expected sqlite, redis or memory", v)
		}
	}
	if v, ok := os.LookupEnv("ZOTOK_DB_PATH"); ok && v != "" {
		cfg.DBPath = v
	}
	if v, ok := os.LookupEnv("ZOTOK_REDIS_URL"); ok && v != "" {
		cfg.RedisURL = v
	}
	if v, ok := os.LookupEnv("ZOTOK_DOCUMENT_ID"); ok && v != "" {
		cfg.DocumentID = v
	}
	if v, ok := os.LookupEnv("ZOTOK_SECRET_KEY"); ok && v != "" {
		key, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("ZOTOK_SECRET_KEY is not valid base64: %w", err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("ZOTOK_SECRET_KEY must decode to 32 bytes, got %d", len(key))
		}
		cfg.SecretKey = key
	}

	if v, ok := os.LookupEnv("ZOTOK_LISTEN_ADDR"); ok && v != "" {
		cfg.ListenAddr = v
	}
	if v, ok := os.LookupEnv("ZOTOK_ENDPOINTS_FILE"); ok {
		cfg.EndpointsFile = v
	}

	if err := lookupBool("ZOTOK_ALLOW_PROD_MUTATIONS", &cfg.AllowProdMutations); err != nil {
		return nil, err
	}
	if err := lookupBool("ZOTOK_HTTP_CACHE", &cfg.HTTPCache); err != nil {
		return nil, err
	}

	return cfg, nil
}

func lookupDuration(key string, dst *time.Duration) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s has invalid duration %q: %w", key, v, err)
	}
	if parsed < 0 {
		return fmt.Errorf("%s must not be negative, got %s", key, v)
	}
	*dst = parsed
	return nil
}

func lookupPositiveInt(key string, dst *int) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s has invalid integer %q: %w", key, v, err)
	}
	if parsed < 1 {
		return fmt.Errorf("%s must be at least 1, got %d", key, parsed)
	}
	*dst = parsed
	return nil
}

func lookupBool(key string, dst *bool) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s has invalid boolean %q: %w", key, v, err)
	}
	*dst = parsed
	return nil
}
