package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Trust store backends
const (
	TrustStoreBackendFile  = "file"
	TrustStoreBackendVault = "vault"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Directory database configuration
	Database DatabaseConfig

	// Identity token configuration
	JWT JWTConfig

	// Outbound API invocation configuration
	Invoker InvokerConfig

	// Trust store provisioning configuration
	TrustStore TrustStoreConfig

	// Rate limiting configuration
	RateLimit RateLimitConfig

	// CORS configuration
	CORS CORSConfig

	// Logging configuration
	Logging LoggingConfig

	// Application metadata
	App AppConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	AutoMigrate     bool
	MigrationsPath  string
}

// JWTConfig holds identity token configuration
type JWTConfig struct {
	Secret   string
	TokenTTL time.Duration
}

// InvokerConfig holds the outbound HTTPS call configuration
type InvokerConfig struct {
	Endpoint     string
	Timeout      time.Duration
	MaxBodyBytes int64
	// VerifyHostname disables only the peer hostname check when false;
	// the certificate chain is always verified against the trust store.
	VerifyHostname bool
}

// TrustStoreConfig holds trust store provisioning configuration
type TrustStoreConfig struct {
	Backend        string // file, vault
	FilePath       string
	AllowAnonymous bool
	Vault          VaultConfig
}

// VaultConfig holds the Vault KV v2 location of the trust store bundle
type VaultConfig struct {
	Address string
	Token   string
	Mount   string
	Path    string
	Field   string
	Timeout time.Duration
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	BurstSize         int
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins []string
	MaxAge         int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, text
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string
	Version     string
	Environment string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg := FromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// FromEnv builds the configuration from the current environment without validating it
func FromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", ":8080"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getDurationOrDefault("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getIntOrDefault("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getIntOrDefault("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDurationOrDefault("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getDurationOrDefault("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			AutoMigrate:     getBoolOrDefault("DB_AUTO_MIGRATE", false),
			MigrationsPath:  getEnvOrDefault("DB_MIGRATIONS_PATH", "migrations"),
		},
		JWT: JWTConfig{
			Secret:   os.Getenv("JWT_SECRET"),
			TokenTTL: getDurationOrDefault("JWT_TOKEN_TTL", 1*time.Hour),
		},
		Invoker: InvokerConfig{
			Endpoint:       getEnvOrDefault("INVOKER_ENDPOINT", "https://127.0.0.1:3000/now"),
			Timeout:        getDurationOrDefault("INVOKER_TIMEOUT", 10*time.Second),
			MaxBodyBytes:   int64(getIntOrDefault("INVOKER_MAX_BODY_BYTES", 1<<20)),
			VerifyHostname: getBoolOrDefault("INVOKER_VERIFY_HOSTNAME", true),
		},
		TrustStore: TrustStoreConfig{
			Backend:        strings.ToLower(getEnvOrDefault("TRUSTSTORE_BACKEND", TrustStoreBackendFile)),
			FilePath:       getEnvOrDefault("TRUSTSTORE_FILE", "truststore.pem"),
			AllowAnonymous: getBoolOrDefault("TRUSTSTORE_ALLOW_ANONYMOUS", false),
			Vault: VaultConfig{
				Address: os.Getenv("VAULT_ADDR"),
				Token:   os.Getenv("VAULT_TOKEN"),
				Mount:   getEnvOrDefault("VAULT_TRUSTSTORE_MOUNT", "secret"),
				Path:    getEnvOrDefault("VAULT_TRUSTSTORE_PATH", "truststore/global"),
				Field:   getEnvOrDefault("VAULT_TRUSTSTORE_FIELD", "certificates"),
				Timeout: getDurationOrDefault("VAULT_TIMEOUT", 10*time.Second),
			},
		},
		RateLimit: RateLimitConfig{
			Enabled:           getBoolOrDefault("RATE_LIMIT_ENABLED", true),
			RequestsPerSecond: getFloatOrDefault("RATE_LIMIT_RPS", 10),
			BurstSize:         getIntOrDefault("RATE_LIMIT_BURST", 20),
		},
		CORS: CORSConfig{
			AllowedOrigins: getStringSliceOrDefault("CORS_ALLOWED_ORIGINS", []string{}),
			MaxAge:         getIntOrDefault("CORS_MAX_AGE", 300),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
		App: AppConfig{
			Name:        getEnvOrDefault("APP_NAME", "trusted-invoker"),
			Version:     getEnvOrDefault("APP_VERSION", "dev"),
			Environment: getEnvOrDefault("APP_ENV", "development"),
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errs []string

	// Required fields
	if c.Database.URL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}

	if c.JWT.Secret == "" {
		errs = append(errs, "JWT_SECRET is required")
	}

	errs = append(errs, c.Invoker.validate()...)
	errs = append(errs, c.TrustStore.validate()...)

	// Security validations
	if c.App.Environment == "production" {
		if len(c.JWT.Secret) < 32 {
			errs = append(errs, "JWT_SECRET must be at least 32 characters in production")
		}
	}

	// Logical validations
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		errs = append(errs, "DB_MAX_IDLE_CONNS cannot be greater than DB_MAX_OPEN_CONNS")
	}

	if len(errs) > 0 {
		return errors.New("configuration errors:\n  - " + strings.Join(errs, "\n  - "))
	}

	return nil
}

func (c InvokerConfig) validate() []string {
	var errs []string

	u, err := url.Parse(c.Endpoint)
	switch {
	case c.Endpoint == "":
		errs = append(errs, "INVOKER_ENDPOINT is required")
	case err != nil || u.Scheme != "https" || u.Host == "":
		errs = append(errs, "INVOKER_ENDPOINT must be an absolute https URL")
	}

	if c.Timeout <= 0 {
		errs = append(errs, "INVOKER_TIMEOUT must be positive")
	}
	if c.MaxBodyBytes <= 0 {
		errs = append(errs, "INVOKER_MAX_BODY_BYTES must be positive")
	}

	return errs
}

func (c TrustStoreConfig) validate() []string {
	var errs []string

	switch c.Backend {
	case TrustStoreBackendFile:
		if c.FilePath == "" {
			errs = append(errs, "TRUSTSTORE_FILE is required for the file backend")
		}
	case TrustStoreBackendVault:
		if c.Vault.Address == "" {
			errs = append(errs, "VAULT_ADDR is required for the vault backend")
		}
		if c.Vault.Token == "" {
			errs = append(errs, "VAULT_TOKEN is required for the vault backend")
		}
		if c.Vault.Path == "" {
			errs = append(errs, "VAULT_TRUSTSTORE_PATH is required for the vault backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("TRUSTSTORE_BACKEND must be one of %q, %q", TrustStoreBackendFile, TrustStoreBackendVault))
	}

	return errs
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// Helper functions

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// String returns a redacted string representation of the config (safe for logging)
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Server: %s, DB: %s, JWT: [REDACTED], Invoker: %s (verify hostname: %v), TrustStore: %s, Environment: %s}",
		c.Server.Port,
		redactURL(c.Database.URL),
		c.Invoker.Endpoint,
		c.Invoker.VerifyHostname,
		c.TrustStore.Backend,
		c.App.Environment,
	)
}

// redactURL redacts sensitive parts of a database URL
func redactURL(raw string) string {
	if raw == "" {
		return ""
	}
	if idx := strings.Index(raw, "@"); idx > 0 {
		return "[REDACTED]" + raw[idx:]
	}
	return "[REDACTED]"
}
