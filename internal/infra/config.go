package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
)

// Store drivers understood by the artifact store.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
	StoreDriverMemory   = "memory"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv               string
	Port                 string
	APIPrefix            string
	StoreDriver          string
	DatabaseURL          string
	SQLitePath           string
	GeminiAPIKey         string
	GeminiModel          string
	GeminiDisabledModels []string
	GeminiTimeout        time.Duration
	HTTPReadTimeout      time.Duration
	HTTPWriteTimeout     time.Duration
	HTTPIdleTimeout      time.Duration
	RateLimitPerMin      int
	DBMaxConns           int
	CORSAllowedOrigins   []string
	MaxUploadBytes       int64
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
// A missing GEMINI_API_KEY is not an error here; the gateway reports it on first use.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:               getEnv("APP_ENV", "development"),
		Port:                 getEnv("PORT", "8080"),
		APIPrefix:            getEnv("API_PREFIX", "/api"),
		StoreDriver:          strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		SQLitePath:           getEnv("SQLITE_PATH", "refgen.db"),
		GeminiAPIKey:         strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiModel:          strings.TrimSpace(os.Getenv("GEMINI_MODEL")),
		GeminiDisabledModels: getEnvList("GEMINI_DISABLED_MODELS"),
		GeminiTimeout:        time.Second * time.Duration(getEnvInt("GEMINI_TIMEOUT_SECONDS", 90)),
		HTTPReadTimeout:      time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:     time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 120)),
		HTTPIdleTimeout:      time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:      getEnvInt("RATE_LIMIT_PER_MINUTE", 100),
		DBMaxConns:           getEnvInt("DB_MAX_CONNS", 10),
		CORSAllowedOrigins:   getEnvList("CORS_ALLOWED_ORIGINS"),
		MaxUploadBytes:       int64(getEnvInt("MAX_UPLOAD_MB", 10)) << 20,
	}
	if !strings.HasPrefix(cfg.APIPrefix, "/") {
		cfg.APIPrefix = "/" + cfg.APIPrefix
	}
	cfg.APIPrefix = strings.TrimRight(cfg.APIPrefix, "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			result = multierror.Append(result, fmt.Errorf("DATABASE_URL is required for the %s store", StoreDriverPostgres))
		}
	case StoreDriverSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			result = multierror.Append(result, fmt.Errorf("SQLITE_PATH is required for the %s store", StoreDriverSQLite))
		}
	case StoreDriverMemory:
	default:
		result = multierror.Append(result, fmt.Errorf("unsupported STORE_DRIVER %q", c.StoreDriver))
	}

	// Zero disables rate limiting.
	if c.RateLimitPerMin < 0 {
		result = multierror.Append(result, fmt.Errorf("RATE_LIMIT_PER_MINUTE must not be negative"))
	}
	if c.DBMaxConns <= 0 {
		result = multierror.Append(result, fmt.Errorf("DB_MAX_CONNS must be positive"))
	}
	if c.APIPrefix == "" {
		result = multierror.Append(result, fmt.Errorf("API_PREFIX must not be the root path"))
	}
	if c.MaxUploadBytes <= 0 {
		result = multierror.Append(result, fmt.Errorf("MAX_UPLOAD_MB must be positive"))
	}
	if c.GeminiTimeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("GEMINI_TIMEOUT_SECONDS must be positive"))
	}

	return result.ErrorOrNil()
}

// HasStoreURL reports whether a store location is configured for the selected driver.
func (c *Config) HasStoreURL() bool {
	switch c.StoreDriver {
	case StoreDriverPostgres:
		return c.DatabaseURL != ""
	case StoreDriverSQLite:
		return c.SQLitePath != ""
	default:
		return false
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	raw := os.Getenv(key)
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
