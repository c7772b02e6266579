package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/benvon/smart-forms/internal/session"
)

// Config holds application configuration
type Config struct {
	DatabaseURL            string
	ServerPort             string
	BaseURL                string
	FrontendURL            string
	AppEnv                 string
	SessionSecret          string
	CookieDomain           string
	ForceSecureCookies     bool
	CrossSiteDeployment    bool
	RoutesFile             string
	StaticDir              string
	LoginRateLimit         string
	TrustProxy             bool
	EnableHSTS             bool
	RedisURL               string
	RabbitMQURL            string
	RabbitMQPrefetch       int
	WorkerDebugMode        bool
	ServerDebugMode        bool
	OTELEnabled            bool
	OTELEndpoint           string
	AuthEventRetentionDays int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:            getEnv("DATABASE_URL", ""),
		ServerPort:             getEnv("SERVER_PORT", "8080"),
		BaseURL:                getEnv("BASE_URL", "http://localhost:8080"),
		FrontendURL:            getEnv("FRONTEND_URL", "http://localhost:3000"),
		AppEnv:                 getEnv("APP_ENV", "development"),
		SessionSecret:          getEnv("SESSION_SECRET", ""),
		CookieDomain:           getEnv("COOKIE_DOMAIN", ""),
		ForceSecureCookies:     getEnvBool("FORCE_SECURE_COOKIES", false),
		CrossSiteDeployment:    getEnvBool("CROSS_SITE_DEPLOYMENT", false),
		RoutesFile:             getEnv("ROUTES_FILE", ""),
		StaticDir:              getEnv("STATIC_DIR", "./web/dist"),
		LoginRateLimit:         getEnv("LOGIN_RATE_LIMIT", "10-M"),
		TrustProxy:             getEnvBool("TRUST_PROXY", false),
		EnableHSTS:             getEnvBool("ENABLE_HSTS", false),
		RedisURL:               getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RabbitMQURL:            getEnv("RABBITMQ_URL", ""),
		RabbitMQPrefetch:       getEnvInt("RABBITMQ_PREFETCH", 1),
		WorkerDebugMode:        getEnvBool("WORKER_DEBUG_MODE", false),
		ServerDebugMode:        getEnvBool("SERVER_DEBUG_MODE", false),
		OTELEnabled:            getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:           getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		AuthEventRetentionDays: getEnvInt("AUTH_EVENT_RETENTION_DAYS", 90),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.RabbitMQPrefetch < 1 {
		return nil, fmt.Errorf("RABBITMQ_PREFETCH must be at least 1, got %d", cfg.RabbitMQPrefetch)
	}
	if cfg.AuthEventRetentionDays < 1 {
		return nil, fmt.Errorf("AUTH_EVENT_RETENTION_DAYS must be at least 1, got %d", cfg.AuthEventRetentionDays)
	}

	return cfg, nil
}

// RequireRabbitMQ reports an error when no queue is configured. The server and
// worker need one; the admin CLI does not.
func (c *Config) RequireRabbitMQ() error {
	if c.RabbitMQURL == "" {
		return fmt.Errorf("RABBITMQ_URL is required for auth event auditing")
	}
	return nil
}

// IsProduction reports whether the deployment is classified as production
func (c *Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.AppEnv), "production")
}

// CookieEnvironment returns the deployment facts session cookies are derived from
func (c *Config) CookieEnvironment() session.EnvironmentFacts {
	return session.EnvironmentFacts{
		Production:  c.IsProduction(),
		CrossSite:   c.CrossSiteDeployment,
		ForceSecure: c.ForceSecureCookies,
		Domain:      strings.TrimSpace(c.CookieDomain),
	}
}

// AuthEventRetention is how long recorded auth events are kept
func (c *Config) AuthEventRetention() time.Duration {
	return time.Duration(c.AuthEventRetentionDays) * 24 * time.Hour
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
