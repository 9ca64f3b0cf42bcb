// Package config loads taplist configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/liquidintel/taplist/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Directory     DirectoryConfig
	Untappd       UntappdConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	URL         string
	MaxConns    int
	MinConns    int
	Timeout     time.Duration
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

// DirectoryConfig holds directory-service trust configuration for bearer
// token validation and group-membership lookups
type DirectoryConfig struct {
	Tenant           string
	ClientID         string
	ClientSecret     string
	IssuerURL        string
	Audiences        []string
	TokenURL         string
	GraphURL         string
	AuthorizedGroups []string
	AdminCacheTTL    time.Duration
	AdminCacheSize   int
}

// UntappdConfig holds the external beer catalog integration settings.
// The integration is enabled only when the client credentials are present.
type UntappdConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// Enabled reports whether catalog enrichment should be attempted
func (c UntappdConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Directory:     loadDirectoryConfig(),
		Untappd:       loadUntappdConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("TAPLIST_HOST", "0.0.0.0"),
		Port:            getEnv("TAPLIST_PORT", "8000"),
		ReadTimeout:     getEnvDuration("TAPLIST_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("TAPLIST_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("TAPLIST_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("TAPLIST_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("TAPLIST_HEALTH_PORT", "9090"),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:         getEnv("TAPLIST_POSTGRES_URL", ""),
		MaxConns:    getEnvInt("TAPLIST_POSTGRES_MAX_CONNS", 20),
		MinConns:    getEnvInt("TAPLIST_POSTGRES_MIN_CONNS", 2),
		Timeout:     getEnvDuration("TAPLIST_POSTGRES_TIMEOUT", 10*time.Second),
		MaxLifetime: getEnvDuration("TAPLIST_POSTGRES_MAX_LIFETIME", time.Hour),
		MaxIdleTime: getEnvDuration("TAPLIST_POSTGRES_MAX_IDLE_TIME", 10*time.Minute),
	}
}

func loadDirectoryConfig() DirectoryConfig {
	return DirectoryConfig{
		Tenant:           getEnv("TAPLIST_TENANT", ""),
		ClientID:         getEnv("TAPLIST_CLIENT_ID", ""),
		ClientSecret:     getEnv("TAPLIST_CLIENT_SECRET", ""),
		IssuerURL:        getEnv("TAPLIST_ISSUER_URL", ""),
		Audiences:        splitList(getEnv("TAPLIST_AUDIENCES", "")),
		TokenURL:         getEnv("TAPLIST_TOKEN_URL", ""),
		GraphURL:         getEnv("TAPLIST_GRAPH_URL", ""),
		AuthorizedGroups: splitList(getEnv("TAPLIST_AUTHORIZED_GROUPS", "")),
		AdminCacheTTL:    getEnvDuration("TAPLIST_ADMIN_CACHE_TTL", 5*time.Minute),
		AdminCacheSize:   getEnvInt("TAPLIST_ADMIN_CACHE_SIZE", 1024),
	}
}

func loadUntappdConfig() UntappdConfig {
	return UntappdConfig{
		BaseURL:      getEnv("TAPLIST_UNTAPPD_URL", "https://api.untappd.com/v4"),
		ClientID:     getEnv("TAPLIST_UNTAPPD_CLIENT_ID", ""),
		ClientSecret: getEnv("TAPLIST_UNTAPPD_CLIENT_SECRET", ""),
		Timeout:      getEnvDuration("TAPLIST_UNTAPPD_TIMEOUT", 10*time.Second),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLogLevel(getEnv("TAPLIST_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("TAPLIST_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("TAPLIST_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("TAPLIST_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("TAPLIST_OTEL_SERVICE_NAME", "taplist"),
		OTelServiceVersion: getEnv("TAPLIST_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("TAPLIST_OTEL_INSECURE", true),
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

	if c.Directory.IssuerURL == "" {
		return fmt.Errorf("directory issuer URL is required")
	}
	if c.Directory.ClientID == "" {
		return fmt.Errorf("directory client id is required")
	}
	if len(c.Directory.AuthorizedGroups) == 0 {
		return fmt.Errorf("at least one authorized group is required")
	}

	if c.Observability.OTelEnabled && c.Observability.OTelEndpoint == "" {
		return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
	}

	return nil
}

// splitList splits a semicolon-separated list, dropping empty entries
func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ";")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
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
