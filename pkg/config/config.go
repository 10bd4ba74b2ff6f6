package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port       string
	Env        string // development, staging, production
	AdminToken string

	// Outbound API governor
	Governor GovernorConfig

	// Market calendar
	Calendar CalendarConfig

	// Result cache
	Cache CacheConfig

	// Universe of tickers the earnings summary covers
	Universe UniverseConfig

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// External APIs
	Tiingo TiingoConfig
	Yahoo  YahooConfig
	Finviz FinvizConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// GovernorConfig holds the rate limiter, circuit breaker and retry settings
// shared by every outbound provider call
type GovernorConfig struct {
	CallsPerSecond   float64
	BackoffBase      time.Duration
	BackoffCeiling   time.Duration
	BreakerThreshold int
	BreakerTimeout   time.Duration
	MaxRetries       int
	RetryBaseDelay   time.Duration
	CallTimeout      time.Duration // 0 disables the per-call deadline
}

// MinInterval returns the minimum spacing between two permitted calls
func (g GovernorConfig) MinInterval() time.Duration {
	if g.CallsPerSecond <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / g.CallsPerSecond)
}

// CalendarConfig holds the trading calendar settings
type CalendarConfig struct {
	Timezone string
	Holidays []string // YYYY-MM-DD
}

// CacheConfig holds result cache settings
type CacheConfig struct {
	SnapshotBackend string // none, file, redis, postgres
	SnapshotPath    string
	PrewarmSectors  []string
	PrewarmSchedule string
}

// UniverseConfig selects where the ticker universe comes from
type UniverseConfig struct {
	Source string // file, postgres
	Path   string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// TiingoConfig holds Tiingo API configuration
type TiingoConfig struct {
	APIKey            string
	BaseURL           string
	RequestsPerSecond float64
}

// YahooConfig holds Yahoo Finance chart API configuration
type YahooConfig struct {
	BaseURL string
}

// FinvizConfig holds Finviz quote page configuration
type FinvizConfig struct {
	BaseURL string
}

// Snapshot backends
const (
	SnapshotNone     = "none"
	SnapshotFile     = "file"
	SnapshotRedis    = "redis"
	SnapshotPostgres = "postgres"
)

// Universe sources
const (
	UniverseFile     = "file"
	UniversePostgres = "postgres"
)

// DefaultHolidays is the NYSE full-day closure list for 2025 and 2026
var DefaultHolidays = []string{
	"2025-01-01", "2025-01-20", "2025-02-17", "2025-04-18", "2025-05-26",
	"2025-06-19", "2025-07-04", "2025-09-01", "2025-11-27", "2025-12-25",
	"2026-01-01", "2026-01-19", "2026-02-16", "2026-04-03", "2026-05-25",
	"2026-06-19", "2026-07-03", "2026-09-07", "2026-11-26", "2026-12-25",
}

// DefaultPrewarmSectors are the sector scopes warmed after every rollover
var DefaultPrewarmSectors = []string{
	"Technology",
	"Healthcare",
	"Financial Services",
	"Energy",
	"Consumer Cyclical",
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		// Server
		Port:       getEnv("PORT", "8089"),
		Env:        getEnv("ENV", "development"),
		AdminToken: getEnv("ADMIN_TOKEN", ""),

		Governor: GovernorConfig{
			CallsPerSecond:   getEnvAsFloat("GOVERNOR_CALLS_PER_SECOND", 0.5),
			BackoffBase:      getEnvAsDuration("GOVERNOR_BACKOFF_BASE", "2s"),
			BackoffCeiling:   getEnvAsDuration("GOVERNOR_BACKOFF_CEILING", "20s"),
			BreakerThreshold: getEnvAsInt("GOVERNOR_BREAKER_THRESHOLD", 5),
			BreakerTimeout:   getEnvAsDuration("GOVERNOR_BREAKER_TIMEOUT", "60s"),
			MaxRetries:       getEnvAsInt("GOVERNOR_MAX_RETRIES", 3),
			RetryBaseDelay:   getEnvAsDuration("GOVERNOR_RETRY_BASE_DELAY", "2s"),
			CallTimeout:      getEnvAsDuration("GOVERNOR_CALL_TIMEOUT", "0s"),
		},

		Calendar: CalendarConfig{
			Timezone: getEnv("MARKET_TIMEZONE", "America/New_York"),
			Holidays: getEnvAsList("MARKET_HOLIDAYS", DefaultHolidays),
		},

		Cache: CacheConfig{
			SnapshotBackend: strings.ToLower(getEnv("CACHE_SNAPSHOT_BACKEND", SnapshotFile)),
			SnapshotPath:    getEnv("CACHE_SNAPSHOT_PATH", "earning_summary_cache.json"),
			PrewarmSectors:  getEnvAsList("CACHE_PREWARM_SECTORS", DefaultPrewarmSectors),
			PrewarmSchedule: getEnv("CACHE_PREWARM_SCHEDULE", "0 5 0 * * 1-5"),
		},

		Universe: UniverseConfig{
			Source: strings.ToLower(getEnv("UNIVERSE_SOURCE", UniverseFile)),
			Path:   getEnv("UNIVERSE_PATH", "stocks.yaml"),
		},

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		// External APIs
		Tiingo: TiingoConfig{
			APIKey:            getEnv("TIINGO_API_KEY", ""),
			BaseURL:           getEnv("TIINGO_BASE_URL", "https://api.tiingo.com"),
			RequestsPerSecond: getEnvAsFloat("TIINGO_REQUESTS_PER_SECOND", 1),
		},

		Yahoo: YahooConfig{
			BaseURL: getEnv("YAHOO_BASE_URL", "https://query1.finance.yahoo.com"),
		},

		Finviz: FinvizConfig{
			BaseURL: getEnv("FINVIZ_BASE_URL", "https://finviz.com"),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Env != "development" && c.AdminToken == "" {
		return fmt.Errorf("ADMIN_TOKEN is required outside development")
	}

	if err := c.Governor.validate(); err != nil {
		return err
	}

	switch c.Cache.SnapshotBackend {
	case SnapshotNone, SnapshotFile, SnapshotRedis:
	case SnapshotPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres snapshot backend")
		}
	default:
		return fmt.Errorf("CACHE_SNAPSHOT_BACKEND must be one of: none, file, redis, postgres")
	}

	if c.Cache.SnapshotBackend == SnapshotRedis && !c.Redis.Enabled {
		return fmt.Errorf("REDIS_ENABLED must be true for the redis snapshot backend")
	}

	switch c.Universe.Source {
	case UniverseFile:
	case UniversePostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres universe source")
		}
	default:
		return fmt.Errorf("UNIVERSE_SOURCE must be one of: file, postgres")
	}

	return nil
}

func (g GovernorConfig) validate() error {
	// minInterval must stay positive
	if g.CallsPerSecond <= 0 {
		return fmt.Errorf("GOVERNOR_CALLS_PER_SECOND must be greater than 0")
	}
	if g.BackoffBase < 0 || g.BackoffCeiling < g.BackoffBase {
		return fmt.Errorf("GOVERNOR_BACKOFF_CEILING must be >= GOVERNOR_BACKOFF_BASE >= 0")
	}
	if g.BreakerThreshold < 1 {
		return fmt.Errorf("GOVERNOR_BREAKER_THRESHOLD must be at least 1")
	}
	if g.BreakerTimeout <= 0 {
		return fmt.Errorf("GOVERNOR_BREAKER_TIMEOUT must be positive")
	}
	if g.MaxRetries < 0 {
		return fmt.Errorf("GOVERNOR_MAX_RETRIES must not be negative")
	}
	if g.RetryBaseDelay < 0 || g.CallTimeout < 0 {
		return fmt.Errorf("governor delays must not be negative")
	}
	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env",         // Current directory
		"backend/.env", // From project root
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

// getEnvAsList splits a comma separated value, dropping empty items
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return append([]string(nil), defaultValue...)
	}

	var items []string
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
