package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/haven/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Redis configuration (optional; enables distributed rate limiting)
	Redis RedisConfig

	// Tenancy configuration
	Tenancy TenancyConfig

	// Auth configuration
	Auth AuthConfig

	// Cache configuration
	Cache CacheConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL         string        `yaml:"url"`
	ReplicaURLs string        `yaml:"replica_urls"` // comma-separated
	MaxConns    int           `yaml:"max_conns"`
	MinConns    int           `yaml:"min_conns"`
	Timeout     time.Duration `yaml:"timeout"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// TenancyConfig holds tenant resolution configuration
type TenancyConfig struct {
	// DefaultWorkspaceSlug is the fallback workspace for unmapped hostnames
	DefaultWorkspaceSlug string `yaml:"default_workspace_slug"`
}

// AuthConfig holds session issuance configuration
type AuthConfig struct {
	// SessionIssuerToken authenticates the upstream identity provider
	// to POST /auth/sessions. Empty disables session issuance.
	SessionIssuerToken string `yaml:"session_issuer_token"`
}

// CacheConfig holds in-process cache configuration
type CacheConfig struct {
	ResolverSize   int           `yaml:"resolver_size"`
	ResolverTTL    time.Duration `yaml:"resolver_ttl"`
	PermissionSize int           `yaml:"permission_size"`
	PermissionTTL  time.Duration `yaml:"permission_ttl"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel observability.LogLevel

	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
}

// LoadConfig loads configuration from environment variables, applying an
// optional YAML overlay (HAVEN_CONFIG_FILE) before env values
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Redis:         loadRedisConfig(),
		Tenancy:       loadTenancyConfig(),
		Auth:          loadAuthConfig(),
		Cache:         loadCacheConfig(),
		Observability: loadObservabilityConfig(),
	}

	if path := os.Getenv("HAVEN_CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// fileConfig mirrors the YAML overlay shape
type fileConfig struct {
	Server   *ServerConfig   `yaml:"server"`
	Database *DatabaseConfig `yaml:"database"`
	Redis    *RedisConfig    `yaml:"redis"`
	Tenancy  *TenancyConfig  `yaml:"tenancy"`
	Cache    *CacheConfig    `yaml:"cache"`
}

// applyFile overlays non-zero values from a YAML file onto the config.
// Environment variables win over the file for values set in both.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("invalid YAML: %w", err)
	}

	if fc.Database != nil && c.Database.URL == "" {
		c.Database = *fc.Database
	}
	if fc.Redis != nil && c.Redis.URL == "" {
		c.Redis = *fc.Redis
	}
	if fc.Tenancy != nil && os.Getenv("HAVEN_DEFAULT_WORKSPACE_SLUG") == "" {
		c.Tenancy = *fc.Tenancy
	}
	if fc.Server != nil && os.Getenv("HAVEN_PORT") == "" {
		if fc.Server.Port != "" {
			c.Server.Port = fc.Server.Port
		}
		if fc.Server.HealthPort != "" {
			c.Server.HealthPort = fc.Server.HealthPort
		}
	}
	if fc.Cache != nil {
		if fc.Cache.ResolverSize > 0 {
			c.Cache.ResolverSize = fc.Cache.ResolverSize
		}
		if fc.Cache.PermissionSize > 0 {
			c.Cache.PermissionSize = fc.Cache.PermissionSize
		}
	}

	return nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("HAVEN_HOST", "0.0.0.0"),
		Port:            getEnv("HAVEN_PORT", "8080"),
		ReadTimeout:     getEnvDuration("HAVEN_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("HAVEN_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("HAVEN_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("HAVEN_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("HAVEN_HEALTH_PORT", "9090"),
	}
}

// loadDatabaseConfig loads database configuration from environment
func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:         getEnv("HAVEN_POSTGRES_URL", ""),
		ReplicaURLs: getEnv("HAVEN_POSTGRES_REPLICA_URLS", ""),
		MaxConns:    getEnvInt("HAVEN_POSTGRES_MAX_CONNS", 25),
		MinConns:    getEnvInt("HAVEN_POSTGRES_MIN_CONNS", 5),
		Timeout:     getEnvDuration("HAVEN_POSTGRES_TIMEOUT", 10*time.Second),
	}
}

// loadRedisConfig loads Redis configuration from environment
func loadRedisConfig() RedisConfig {
	return RedisConfig{
		URL:      getEnv("HAVEN_REDIS_URL", ""),
		Password: getEnv("HAVEN_REDIS_PASSWORD", ""),
		DB:       getEnvInt("HAVEN_REDIS_DB", 0),
	}
}

// loadTenancyConfig loads tenancy configuration from environment
func loadTenancyConfig() TenancyConfig {
	return TenancyConfig{
		DefaultWorkspaceSlug: getEnv("HAVEN_DEFAULT_WORKSPACE_SLUG", "global"),
	}
}

// loadAuthConfig loads auth configuration from environment
func loadAuthConfig() AuthConfig {
	return AuthConfig{
		SessionIssuerToken: getEnv("HAVEN_SESSION_ISSUER_TOKEN", ""),
	}
}

// loadCacheConfig loads cache configuration from environment
func loadCacheConfig() CacheConfig {
	return CacheConfig{
		ResolverSize:   getEnvInt("HAVEN_RESOLVER_CACHE_SIZE", 1024),
		ResolverTTL:    getEnvDuration("HAVEN_RESOLVER_CACHE_TTL", 30*time.Second),
		PermissionSize: getEnvInt("HAVEN_PERMISSION_CACHE_SIZE", 4096),
		PermissionTTL:  getEnvDuration("HAVEN_PERMISSION_CACHE_TTL", time.Minute),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           parseLogLevel(getEnv("HAVEN_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("HAVEN_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("HAVEN_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("HAVEN_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("HAVEN_OTEL_SERVICE_NAME", "haven"),
		OTelServiceVersion: getEnv("HAVEN_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("HAVEN_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	if c.Tenancy.DefaultWorkspaceSlug == "" {
		return fmt.Errorf("default workspace slug is required")
	}

	if c.Cache.ResolverSize <= 0 || c.Cache.PermissionSize <= 0 {
		return fmt.Errorf("cache sizes must be positive")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// ReplicaURLList splits the comma-separated replica URL string
func (c DatabaseConfig) ReplicaURLList() []string {
	if c.ReplicaURLs == "" {
		return nil
	}
	parts := strings.Split(c.ReplicaURLs, ",")
	urls := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			urls = append(urls, trimmed)
		}
	}
	return urls
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
