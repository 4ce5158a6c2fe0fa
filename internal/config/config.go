package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	CacheBackendRedis = "redis"
	CacheBackendLRU   = "lru"
	CacheBackendNone  = "none"
)

// Config captures all runtime configuration derived from environment variables.
type Config struct {
	Port                string
	LogLevel            slog.Level
	LogFormat           string
	ReadTimeoutSecs     int
	WriteTimeoutSecs    int
	IdleTimeoutSecs     int
	ShutdownTimeoutSecs int

	JWTSecret string

	StoreDriver       string
	DBURL             string
	DBMaxConns        int
	DBMinConns        int
	DBMaxIdleSecs     int
	DBMaxLifeSecs     int
	DBConnTimeoutSecs int
	DBStatementCache  int
	DBAutoMigrate     bool

	CacheBackend             string
	RedisAddr                string
	RedisPassword            string
	RedisTLS                 bool
	RedisTimeoutMillis       int
	CacheLRUSize             int
	CacheTTLListSecs         int
	CacheTTLItemSecs         int
	CacheInvalidationQueue   int
	CacheInvalidationWorkers int

	StorageAccountName   string
	StorageAccountKey    string
	StorageContainerName string
	BlobEndpoint         string
	BlobAllowHTTP        bool
	ReadTokenMinutes     int

	SentimentURL          string
	SentimentAPIKey       string
	SentimentTimeoutMilli int
	SentimentRPS          float64

	RatingMaxAttempts   int
	RatingReconcileSecs int
}

// Load reads configuration from environment variables, applying defaults and validation.
func Load() (Config, error) {
	cfg := Config{
		Port:                getEnv("PORT", "4000"),
		LogFormat:           strings.ToLower(getEnv("LOG_FORMAT", "json")),
		ReadTimeoutSecs:     getEnvInt("SERVER_READ_TIMEOUT", 15),
		WriteTimeoutSecs:    getEnvInt("SERVER_WRITE_TIMEOUT", 15),
		IdleTimeoutSecs:     getEnvInt("SERVER_IDLE_TIMEOUT", 60),
		ShutdownTimeoutSecs: getEnvInt("SHUTDOWN_TIMEOUT_SECS", 5),

		JWTSecret: os.Getenv("JWT_SECRET"),

		StoreDriver:       strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
		DBURL:             os.Getenv("DB_URL"),
		DBMaxConns:        getEnvInt("DB_MAX_CONNS", 20),
		DBMinConns:        getEnvInt("DB_MIN_CONNS", 2),
		DBMaxIdleSecs:     getEnvInt("DB_MAX_CONN_IDLE_SECS", 300),
		DBMaxLifeSecs:     getEnvInt("DB_MAX_CONN_LIFETIME_SECS", 3600),
		DBConnTimeoutSecs: getEnvInt("DB_CONN_TIMEOUT_SECS", 10),
		DBStatementCache:  getEnvInt("DB_STATEMENT_CACHE_CAPACITY", 256),
		DBAutoMigrate:     getEnvBool("DB_AUTO_MIGRATE", true),

		CacheBackend:             strings.ToLower(getEnv("CACHE_BACKEND", CacheBackendRedis)),
		RedisAddr:                os.Getenv("REDIS_ADDR"),
		RedisPassword:            os.Getenv("REDIS_PASSWORD"),
		RedisTLS:                 getEnvBool("REDIS_TLS", true),
		RedisTimeoutMillis:       getEnvInt("REDIS_TIMEOUT_MS", 500),
		CacheLRUSize:             getEnvInt("CACHE_LRU_SIZE", 4096),
		CacheTTLListSecs:         getEnvInt("CACHE_TTL_LIST", 120),
		CacheTTLItemSecs:         getEnvInt("CACHE_TTL_ITEM", 300),
		CacheInvalidationQueue:   getEnvInt("CACHE_INVALIDATION_QUEUE", 256),
		CacheInvalidationWorkers: getEnvInt("CACHE_INVALIDATION_WORKERS", 2),

		StorageAccountName:   os.Getenv("STORAGE_ACCOUNT_NAME"),
		StorageAccountKey:    os.Getenv("STORAGE_ACCOUNT_KEY"),
		StorageContainerName: os.Getenv("STORAGE_CONTAINER_NAME"),
		BlobEndpoint:         os.Getenv("BLOB_ENDPOINT"),
		BlobAllowHTTP:        getEnvBool("BLOB_ALLOW_HTTP", false),
		ReadTokenMinutes:     getEnvInt("READ_TOKEN_MINUTES", 120),

		SentimentURL:          os.Getenv("SENTIMENT_URL"),
		SentimentAPIKey:       os.Getenv("SENTIMENT_API_KEY"),
		SentimentTimeoutMilli: getEnvInt("SENTIMENT_TIMEOUT_MS", 2000),
		SentimentRPS:          getEnvFloat("SENTIMENT_RPS", 10),

		RatingMaxAttempts:   getEnvInt("RATING_MAX_ATTEMPTS", 3),
		RatingReconcileSecs: getEnvInt("RATING_RECONCILE_SECS", 0),
	}

	level, err := parseLogLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	cfg.LogLevel = level

	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return Config{}, fmt.Errorf("LOG_FORMAT must be json or text")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}

	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		if cfg.DBURL == "" {
			return Config{}, fmt.Errorf("DB_URL is required")
		}
	case StoreDriverMemory:
	default:
		return Config{}, fmt.Errorf("STORE_DRIVER must be postgres or memory")
	}
	if cfg.DBMaxConns <= 0 {
		return Config{}, fmt.Errorf("DB_MAX_CONNS must be positive")
	}
	if cfg.DBMinConns < 0 {
		return Config{}, fmt.Errorf("DB_MIN_CONNS must be non-negative")
	}
	if cfg.DBMinConns > cfg.DBMaxConns {
		return Config{}, fmt.Errorf("DB_MIN_CONNS cannot exceed DB_MAX_CONNS")
	}
	if cfg.DBStatementCache < 0 {
		return Config{}, fmt.Errorf("DB_STATEMENT_CACHE_CAPACITY must be non-negative")
	}

	switch cfg.CacheBackend {
	case CacheBackendRedis, CacheBackendLRU, CacheBackendNone:
	default:
		return Config{}, fmt.Errorf("CACHE_BACKEND must be redis, lru or none")
	}
	if cfg.CacheTTLListSecs <= 0 {
		return Config{}, fmt.Errorf("CACHE_TTL_LIST must be positive")
	}
	if cfg.CacheTTLItemSecs <= 0 {
		return Config{}, fmt.Errorf("CACHE_TTL_ITEM must be positive")
	}
	if cfg.CacheLRUSize <= 0 {
		return Config{}, fmt.Errorf("CACHE_LRU_SIZE must be positive")
	}
	if cfg.CacheInvalidationQueue < 0 {
		return Config{}, fmt.Errorf("CACHE_INVALIDATION_QUEUE must be non-negative")
	}
	if cfg.CacheInvalidationWorkers <= 0 {
		return Config{}, fmt.Errorf("CACHE_INVALIDATION_WORKERS must be positive")
	}

	if cfg.StorageAccountName == "" {
		return Config{}, fmt.Errorf("STORAGE_ACCOUNT_NAME is required")
	}
	if cfg.StorageAccountKey == "" {
		return Config{}, fmt.Errorf("STORAGE_ACCOUNT_KEY is required")
	}
	if cfg.StorageContainerName == "" {
		return Config{}, fmt.Errorf("STORAGE_CONTAINER_NAME is required")
	}
	if cfg.BlobEndpoint == "" {
		cfg.BlobEndpoint = fmt.Sprintf("https://%s.blob.core.windows.net", cfg.StorageAccountName)
	}
	if cfg.ReadTokenMinutes <= 0 {
		return Config{}, fmt.Errorf("READ_TOKEN_MINUTES must be positive")
	}

	if cfg.SentimentTimeoutMilli <= 0 {
		return Config{}, fmt.Errorf("SENTIMENT_TIMEOUT_MS must be positive")
	}
	if cfg.SentimentRPS <= 0 {
		return Config{}, fmt.Errorf("SENTIMENT_RPS must be positive")
	}
	if cfg.RatingMaxAttempts <= 0 {
		return Config{}, fmt.Errorf("RATING_MAX_ATTEMPTS must be positive")
	}
	if cfg.RatingReconcileSecs < 0 {
		return Config{}, fmt.Errorf("RATING_RECONCILE_SECS must be non-negative")
	}

	return cfg, nil
}

// SetupLogger builds the process logger and installs it as the slog default.
func SetupLogger(cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}

	var handler slog.Handler
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown level %q", level)
	}
}
