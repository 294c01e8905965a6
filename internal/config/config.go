package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/swiftlink/swiftlink/codegen"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Codes    CodesConfig
	Cache    CacheConfig
	Clicks   ClicksConfig
	App      AppConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"SERVER_PORT" default:"8080"`
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	BaseURL         string        `envconfig:"SERVER_BASE_URL" required:"true"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"10s"`
	IdleTimeout     time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"15s"`
}

// Validate validates the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port cannot be empty")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive")
	}
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("idle timeout must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}
	return nil
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Host     string `envconfig:"DB_HOST" required:"true"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" required:"true"`
	Password string `envconfig:"DB_PASSWORD" required:"true"`
	Name     string `envconfig:"DB_NAME" required:"true"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	MaxConns int32  `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns int32  `envconfig:"DB_MIN_CONNS" default:"2"`
	// OpTimeout caps each store operation on top of the request context.
	OpTimeout time.Duration `envconfig:"DB_OP_TIMEOUT" default:"5s"`
}

// Validate validates the database configuration.
func (c *DatabaseConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if c.Port == "" {
		return fmt.Errorf("port cannot be empty")
	}
	if c.User == "" {
		return fmt.Errorf("user cannot be empty")
	}
	if c.Name == "" {
		return fmt.Errorf("database name cannot be empty")
	}
	if c.MaxConns <= 0 {
		return fmt.Errorf("max connections must be positive")
	}
	if c.MinConns <= 0 {
		return fmt.Errorf("min connections must be positive")
	}
	if c.MinConns > c.MaxConns {
		return fmt.Errorf("min connections (%d) cannot be greater than max connections (%d)", c.MinConns, c.MaxConns)
	}
	if c.OpTimeout <= 0 {
		return fmt.Errorf("op timeout must be positive")
	}

	validSSLModes := map[string]bool{
		"disable":     true,
		"require":     true,
		"verify-ca":   true,
		"verify-full": true,
	}
	if !validSSLModes[c.SSLMode] {
		return fmt.Errorf("invalid SSL mode: %s (must be one of: disable, require, verify-ca, verify-full)", c.SSLMode)
	}
	return nil
}

// ConnectionString returns the PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// URL returns the connection string in URL form, as the migration runner
// expects it.
func (c *DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		url.QueryEscape(c.User), url.QueryEscape(c.Password),
		c.Host, c.Port, c.Name, c.SSLMode,
	)
}

// RedisConfig holds the click counter backend configuration. An empty Addr
// selects the in-memory accumulator (single-process deployments and tests).
type RedisConfig struct {
	Addr         string `envconfig:"REDIS_ADDR"`
	Password     string `envconfig:"REDIS_PASSWORD"`
	DB           int    `envconfig:"REDIS_DB" default:"0"`
	PoolSize     int    `envconfig:"REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int    `envconfig:"REDIS_MIN_IDLE_CONNS" default:"2"`
	KeyPrefix    string `envconfig:"REDIS_KEY_PREFIX" default:"clicks:"`
}

// Validate validates the redis configuration.
func (c *RedisConfig) Validate() error {
	if c.Addr == "" {
		return nil // memory fallback, nothing else matters
	}
	if c.DB < 0 {
		return fmt.Errorf("db index cannot be negative")
	}
	if c.PoolSize <= 0 {
		return fmt.Errorf("pool size must be positive")
	}
	return nil
}

// AuthConfig holds token verification configuration.
type AuthConfig struct {
	JWTSecret string `envconfig:"AUTH_JWT_SECRET" required:"true"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt secret cannot be empty")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("jwt secret must be at least 32 bytes")
	}
	return nil
}

// CodesConfig holds short code generation configuration.
type CodesConfig struct {
	Alphabet   string `envconfig:"CODE_ALPHABET" default:""`
	Length     int    `envconfig:"CODE_LENGTH" default:"6"`
	MaxRetries int    `envconfig:"CODE_MAX_RETRIES" default:"5"`
}

// Validate validates the code generation configuration.
func (c *CodesConfig) Validate() error {
	if c.Length <= 0 {
		return fmt.Errorf("code length must be positive")
	}
	if c.MaxRetries <= 0 {
		return fmt.Errorf("max retries must be positive")
	}
	if c.Alphabet != "" {
		if _, err := codegen.NewAlphabet(c.Alphabet); err != nil {
			return fmt.Errorf("invalid alphabet: %w", err)
		}
	}
	return nil
}

// CacheConfig holds redirect cache configuration.
type CacheConfig struct {
	TTL        time.Duration `envconfig:"CACHE_TTL" default:"30s"`
	MaxEntries int           `envconfig:"CACHE_MAX_ENTRIES" default:"10000"`
}

// Validate validates the cache configuration.
func (c *CacheConfig) Validate() error {
	if c.TTL <= 0 {
		return fmt.Errorf("cache TTL must be positive")
	}
	if c.MaxEntries <= 0 {
		return fmt.Errorf("max entries must be positive")
	}
	return nil
}

// ClicksConfig holds click dispatcher configuration.
type ClicksConfig struct {
	Workers   int           `envconfig:"CLICK_WORKERS" default:"4"`
	QueueSize int           `envconfig:"CLICK_QUEUE_SIZE" default:"1024"`
	OpTimeout time.Duration `envconfig:"CLICK_OP_TIMEOUT" default:"3s"`
}

// Validate validates the click dispatcher configuration.
func (c *ClicksConfig) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("queue size must be positive")
	}
	if c.OpTimeout <= 0 {
		return fmt.Errorf("op timeout must be positive")
	}
	return nil
}

// AppConfig holds application-specific configuration.
type AppConfig struct {
	Environment string `envconfig:"APP_ENV" default:"development"` // development, staging, production, test
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`      // debug, info, warn, error
}

// Validate validates the app configuration.
func (c *AppConfig) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
		"test":        true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s (must be one of: development, staging, production, test)", c.Environment)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}
	return nil
}

type section struct {
	name     string
	target   any
	validate func() error
}

// Load loads configuration from environment variables only.
// (Do .env loading in cmd/server/main.go for dev, not here.)
func Load() (*Config, error) {
	cfg := &Config{}

	sections := []section{
		{"Server", &cfg.Server, cfg.Server.Validate},
		{"Database", &cfg.Database, cfg.Database.Validate},
		{"Redis", &cfg.Redis, cfg.Redis.Validate},
		{"Auth", &cfg.Auth, cfg.Auth.Validate},
		{"Codes", &cfg.Codes, cfg.Codes.Validate},
		{"Cache", &cfg.Cache, cfg.Cache.Validate},
		{"Clicks", &cfg.Clicks, cfg.Clicks.Validate},
		{"App", &cfg.App, cfg.App.Validate},
	}

	for _, s := range sections {
		if err := envconfig.Process("", s.target); err != nil {
			return nil, fmt.Errorf("failed to load %s config: %w", s.name, err)
		}
		if err := s.validate(); err != nil {
			return nil, fmt.Errorf("invalid %s config: %w", s.name, err)
		}
	}

	return cfg, nil
}
