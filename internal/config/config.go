// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	LogLevel    string
	Server      ServerConfig
	Database    DatabaseConfig
	StoryAPI    StoryAPIConfig
	Explorer    ExplorerConfig
	Cache       CacheConfig
	Royalty     RoyaltyConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	ReadTimeout  int
	WriteTimeout int
	IdleTimeout  int
}

type DatabaseConfig struct {
	Enabled      bool
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
	LogLevel     string
}

// StoryAPIConfig configures the Story Protocol assets/transactions API.
type StoryAPIConfig struct {
	BaseURL    string
	APIKey     string
	Chain      string
	AuthMode   string // "api-key" or "bearer"
	Timeout    time.Duration
	MaxRetries int
}

// ExplorerConfig configures the block explorer used to resolve transaction details.
type ExplorerConfig struct {
	BaseURL    string
	APIKeys    []string
	Timeout    time.Duration
	BatchSize  int
	BatchDelay time.Duration

	// RequestsPerSecond, when set, overrides BatchSize and BatchDelay with values derived from
	// the explorer plan's rate limit.
	RequestsPerSecond int
}

type CacheConfig struct {
	TTL          time.Duration
	Size         int
	PriceBookTTL time.Duration
}

type RoyaltyConfig struct {
	PageSize int
	MaxPages int
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

type CORSConfig struct {
	AllowedOrigins []string
}

const (
	AuthModeAPIKey = "api-key"
	AuthModeBearer = "bearer"
)

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	upstreamTimeout, err := getEnvAsDuration("UPSTREAM_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	batchDelay, err := getEnvAsDuration("EXPLORER_BATCH_DELAY", 5*time.Millisecond)
	if err != nil {
		return nil, err
	}
	cacheTTL, err := getEnvAsDuration("CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	priceBookTTL, err := getEnvAsDuration("PRICE_BOOK_TTL", time.Minute)
	if err != nil {
		return nil, err
	}

	config := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "localhost"),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 60),
			IdleTimeout:  getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			Enabled:      getEnvAsBool("DB_ENABLED", false),
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "ipscope"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  getEnvAsInt("DB_MAX_LIFETIME", 300),
			LogLevel:     getEnv("DB_LOG_LEVEL", "silent"),
		},
		StoryAPI: StoryAPIConfig{
			BaseURL:    strings.TrimRight(getEnv("STORY_API_BASE_URL", "https://api.storyapis.com/api/v3"), "/"),
			APIKey:     getEnv("STORY_API_KEY", ""),
			Chain:      getEnv("STORY_API_CHAIN", "story"),
			AuthMode:   strings.ToLower(getEnv("STORY_API_AUTH_MODE", AuthModeAPIKey)),
			Timeout:    upstreamTimeout,
			MaxRetries: getEnvAsInt("UPSTREAM_MAX_RETRIES", 2),
		},
		Explorer: ExplorerConfig{
			BaseURL:    strings.TrimRight(getEnv("STORYSCAN_BASE_URL", "https://www.storyscan.io"), "/"),
			APIKeys:    getEnvAsList("STORYSCAN_API_KEYS"),
			Timeout:    upstreamTimeout,
			BatchSize:  getEnvAsInt("EXPLORER_BATCH_SIZE", 3),
			BatchDelay: batchDelay,

			RequestsPerSecond: getEnvAsInt("EXPLORER_RPS", 0),
		},
		Cache: CacheConfig{
			TTL:          cacheTTL,
			Size:         getEnvAsInt("CACHE_SIZE", 4096),
			PriceBookTTL: priceBookTTL,
		},
		Royalty: RoyaltyConfig{
			PageSize: getEnvAsInt("ROYALTY_PAGE_SIZE", 200),
			MaxPages: getEnvAsInt("ROYALTY_MAX_PAGES", 50),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsFloat("RATE_LIMIT_RPS", 10),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 20),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
		},
	}

	return config, config.Validate()
}

func (c *Config) Validate() error {
	if c.StoryAPI.APIKey == "" {
		return errors.New("STORY_API_KEY is required")
	}

	if len(c.Explorer.APIKeys) == 0 {
		return errors.New("STORYSCAN_API_KEYS must contain at least one key")
	}

	if c.StoryAPI.AuthMode != AuthModeAPIKey && c.StoryAPI.AuthMode != AuthModeBearer {
		return fmt.Errorf("STORY_API_AUTH_MODE must be %q or %q, got %q", AuthModeAPIKey, AuthModeBearer, c.StoryAPI.AuthMode)
	}

	if c.StoryAPI.Timeout <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT must be positive, got %v", c.StoryAPI.Timeout)
	}

	if c.Explorer.BatchSize < 1 {
		return fmt.Errorf("EXPLORER_BATCH_SIZE must be at least 1, got %d", c.Explorer.BatchSize)
	}

	if c.Royalty.PageSize < 1 || c.Royalty.MaxPages < 1 {
		return errors.New("ROYALTY_PAGE_SIZE and ROYALTY_MAX_PAGES must be positive")
	}

	if c.Cache.TTL <= 0 || c.Cache.Size < 1 {
		return errors.New("CACHE_TTL and CACHE_SIZE must be positive")
	}

	for _, origin := range c.CORS.AllowedOrigins {
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return fmt.Errorf("CORS_ALLOWED_ORIGINS entries must start with http:// or https://, got %q", origin)
		}
	}

	if c.Database.Enabled && c.Database.Password == "" && c.Environment == "production" {
		return errors.New("database password is required in production")
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.ToLower(value)); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go duration strings ("5s") or a bare number of seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
	}
	return duration, nil
}

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
