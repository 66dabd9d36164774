package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Store drivers
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreRedis    = "redis"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Store         StoreConfig
	Providers     ProvidersConfig
	Auth          AuthConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
	TLS             struct {
		Enabled  bool
		CertFile string
		KeyFile  string
	}
}

// StoreConfig selects and configures the document store backing query records
type StoreConfig struct {
	Driver   string
	Database DatabaseConfig
	SQLite   SQLiteConfig
	Redis    RedisConfig
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL when set
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// SQLiteConfig holds the local SQLite store location
type SQLiteConfig struct {
	Path string
}

// RedisConfig holds Redis document store configuration
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration // zero keeps documents forever
}

// ProvidersConfig holds AI provider configurations
type ProvidersConfig struct {
	OpenAI     OpenAIConfig
	Perplexity PerplexityConfig
	DataForSEO DataForSEOConfig
	Anthropic  AnthropicConfig

	// Defaults is the provider set used when a request names none.
	// Empty means every available provider.
	Defaults []string
}

// ProviderSettings are shared by every provider section
type ProviderSettings struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	MaxRetries  int
	RetryDelay  time.Duration
}

// OpenAIConfig holds OpenAI provider configuration
type OpenAIConfig struct {
	ProviderSettings
	Organization      string
	WebSearch         bool
	SearchContextSize string
}

// PerplexityConfig holds Perplexity provider configuration
type PerplexityConfig struct {
	ProviderSettings
	SearchRecencyFilter string
}

// DataForSEOConfig holds DataForSEO provider configuration
type DataForSEOConfig struct {
	ProviderSettings
	Login    string
	Password string
	Location string
	Language string
	Device   string
	Depth    int
	FlatRate string // USD per call when the response reports no cost
}

// AnthropicConfig holds Anthropic provider configuration
type AnthropicConfig struct {
	ProviderSettings
	APIVersion string
}

// AuthConfig holds bearer-token settings. Auth is disabled when JWTSecret is empty.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string // json or console
	TracingEnabled bool
	ServiceName    string
}

// New creates a new Config instance. Values come from environment variables,
// layered over an optional flat YAML file (CONFIG_FILE, default config.yaml).
func New(ctx context.Context) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load(".env")

	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		path = "config.yaml"
	}

	src, err := loadSource(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	cfg := &Config{
		Environment: src.getEnv("ENVIRONMENT", "development"),
		Server:      src.loadServerConfig(),
		Store:       src.loadStoreConfig(),
		Providers:   src.loadProvidersConfig(),
		Auth: AuthConfig{
			JWTSecret: src.getEnv("AUTH_JWT_SECRET", ""),
			Issuer:    src.getEnv("AUTH_JWT_ISSUER", ""),
		},
		Observability: ObservabilityConfig{
			LogLevel:       src.getEnv("LOG_LEVEL", "info"),
			LogFormat:      src.getEnv("LOG_FORMAT", "json"),
			TracingEnabled: src.getEnvAsBool("TRACING_ENABLED", false),
			ServiceName:    src.getEnv("SERVICE_NAME", "getcito-api"),
		},
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreMemory:
	case StorePostgres:
		db := c.Store.Database
		if db.ConnectionString == "" && db.Host == "" {
			return fmt.Errorf("database configuration required: set DATABASE_URL or DB_HOST")
		}
		if db.ConnectionString == "" {
			if db.User == "" {
				return fmt.Errorf("database user is required")
			}
			if db.Database == "" {
				return fmt.Errorf("database name is required")
			}
		}
	case StoreSQLite:
		if c.Store.SQLite.Path == "" {
			return fmt.Errorf("sqlite path is required")
		}
	case StoreRedis:
		if c.Store.Redis.Addr == "" {
			return fmt.Errorf("redis address is required")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	// At least one provider credential is required in production
	if c.IsProduction() && !c.Providers.AnyConfigured() {
		return fmt.Errorf("at least one AI provider must be configured in production")
	}

	// A fan-out must be able to finish before the server drops the response
	if c.Server.WriteTimeout > 0 && c.RequestTimeout() > c.Server.WriteTimeout {
		return fmt.Errorf("server write timeout %s must be at least %s (longest provider timeout plus %s)",
			c.Server.WriteTimeout, c.RequestTimeout(), requestOverhead)
	}

	// Observability validation
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// requestOverhead covers request decoding and persistence around the provider fan-out
const requestOverhead = 10 * time.Second

// RequestTimeout bounds one API request. Provider timeouts cover retries, so a
// fan-out takes at most the longest provider timeout.
func (c *Config) RequestTimeout() time.Duration {
	p := c.Providers
	longest := p.OpenAI.Timeout
	for _, d := range []time.Duration{p.Perplexity.Timeout, p.DataForSEO.Timeout, p.Anthropic.Timeout} {
		if d > longest {
			longest = d
		}
	}
	return longest + requestOverhead
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// Enabled reports whether bearer-token auth is configured
func (a AuthConfig) Enabled() bool {
	return a.JWTSecret != ""
}

// AnyConfigured reports whether any provider has credentials
func (p ProvidersConfig) AnyConfigured() bool {
	return p.OpenAI.APIKey != "" ||
		p.Perplexity.APIKey != "" ||
		p.Anthropic.APIKey != "" ||
		(p.DataForSEO.Login != "" && p.DataForSEO.Password != "") ||
		p.DataForSEO.APIKey != ""
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// source resolves configuration keys. Keys are case-insensitive so that the
// YAML file can use lower_snake keys for the same settings as the environment.
type source struct {
	k *koanf.Koanf
}

func loadSource(path string) (*source, error) {
	k := koanf.New("::")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	}

	// Environment variables override the file
	if err := k.Load(env.Provider("", "::", strings.ToLower), nil); err != nil {
		return nil, err
	}

	return &source{k: k}, nil
}

func (s *source) loadServerConfig() ServerConfig {
	cfg := ServerConfig{
		Host:            s.getEnv("SERVER_HOST", "0.0.0.0"),
		Port:            s.getPort(),
		ReadTimeout:     s.getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
		WriteTimeout:    s.getEnvAsDuration("SERVER_WRITE_TIMEOUT", 120*time.Second),
		ShutdownTimeout: s.getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		AllowedOrigins:  s.getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
	}
	cfg.TLS.Enabled = s.getEnvAsBool("TLS_ENABLED", false)
	cfg.TLS.CertFile = s.getEnv("TLS_CERT_FILE", "certs/cert.pem")
	cfg.TLS.KeyFile = s.getEnv("TLS_KEY_FILE", "certs/key.pem")
	return cfg
}

func (s *source) loadStoreConfig() StoreConfig {
	return StoreConfig{
		Driver:   strings.ToLower(s.getEnv("STORE_DRIVER", StoreMemory)),
		Database: s.loadDatabaseConfig(),
		SQLite: SQLiteConfig{
			Path: s.getEnv("SQLITE_PATH", "getcito.db"),
		},
		Redis: RedisConfig{
			Addr:      s.getEnv("REDIS_ADDR", "localhost:6379"),
			Password:  s.getEnv("REDIS_PASSWORD", ""),
			DB:        s.getEnvAsInt("REDIS_DB", 0),
			KeyPrefix: s.getEnv("REDIS_KEY_PREFIX", "getcito"),
			TTL:       s.getEnvAsDuration("REDIS_TTL", 0),
		},
	}
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars
func (s *source) loadDatabaseConfig() DatabaseConfig {
	pool := DatabaseConfig{
		MaxOpenConns:    s.getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    s.getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: s.getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
	if dbURL := s.getEnv("DATABASE_URL", ""); dbURL != "" {
		pool.ConnectionString = dbURL
		return pool
	}
	pool.Host = s.getEnv("DB_HOST", "localhost")
	pool.Port = s.getEnvAsInt("DB_PORT", 5432)
	pool.User = s.getEnv("DB_USER", "getcito")
	pool.Password = s.getEnv("DB_PASSWORD", "")
	pool.Database = s.getEnv("DB_NAME", "getcito")
	pool.SSLMode = s.getEnv("DB_SSLMODE", "disable")
	return pool
}

func (s *source) loadProvidersConfig() ProvidersConfig {
	return ProvidersConfig{
		OpenAI: OpenAIConfig{
			ProviderSettings:  s.loadProviderSettings("OPENAI", "https://api.openai.com/v1", "gpt-4o-mini", 60*time.Second),
			Organization:      s.getEnv("OPENAI_ORGANIZATION", ""),
			WebSearch:         s.getEnvAsBool("OPENAI_WEB_SEARCH", false),
			SearchContextSize: s.getEnv("OPENAI_SEARCH_CONTEXT_SIZE", ""),
		},
		Perplexity: PerplexityConfig{
			ProviderSettings:    s.loadProviderSettings("PERPLEXITY", "https://api.perplexity.ai", "sonar", 60*time.Second),
			SearchRecencyFilter: s.getEnv("PERPLEXITY_SEARCH_RECENCY_FILTER", ""),
		},
		DataForSEO: DataForSEOConfig{
			ProviderSettings: s.loadProviderSettings("DATAFORSEO", "https://api.dataforseo.com", "", 90*time.Second),
			Login:            s.getEnv("DATAFORSEO_LOGIN", ""),
			Password:         s.getEnv("DATAFORSEO_PASSWORD", ""),
			Location:         s.getEnv("DATAFORSEO_LOCATION", "United States"),
			Language:         s.getEnv("DATAFORSEO_LANGUAGE", "en"),
			Device:           s.getEnv("DATAFORSEO_DEVICE", "desktop"),
			Depth:            s.getEnvAsInt("DATAFORSEO_DEPTH", 10),
			FlatRate:         s.getEnv("DATAFORSEO_FLAT_RATE", "0.002"),
		},
		Anthropic: AnthropicConfig{
			ProviderSettings: s.loadProviderSettings("ANTHROPIC", "https://api.anthropic.com", "claude-3-5-haiku-latest", 60*time.Second),
			APIVersion:       s.getEnv("ANTHROPIC_VERSION", "2023-06-01"),
		},
		Defaults: s.getEnvAsList("DEFAULT_PROVIDERS", nil),
	}
}

func (s *source) loadProviderSettings(prefix, baseURL, model string, timeout time.Duration) ProviderSettings {
	return ProviderSettings{
		APIKey:      s.getEnv(prefix+"_API_KEY", ""),
		BaseURL:     s.getEnv(prefix+"_BASE_URL", baseURL),
		Model:       s.getEnv(prefix+"_MODEL", model),
		MaxTokens:   s.getEnvAsInt(prefix+"_MAX_TOKENS", 1000),
		Temperature: s.getEnvAsFloat(prefix+"_TEMPERATURE", 0.7),
		Timeout:     s.getEnvAsDuration(prefix+"_TIMEOUT", timeout),
		MaxRetries:  s.getEnvAsInt(prefix+"_MAX_RETRIES", 3),
		RetryDelay:  s.getEnvAsDuration(prefix+"_RETRY_DELAY", time.Second),
	}
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT (default: 8080)
func (s *source) getPort() int {
	for _, key := range []string{"PORT", "SERVER_PORT"} {
		if value := s.getEnv(key, ""); value != "" {
			if p, err := strconv.Atoi(value); err == nil {
				return p
			}
		}
	}
	return 8080
}

func (s *source) getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(s.k.String(strings.ToLower(key))); value != "" {
		return value
	}
	return defaultValue
}

func (s *source) getEnvAsInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(s.getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func (s *source) getEnvAsBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(s.getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func (s *source) getEnvAsFloat(key string, defaultValue float64) float64 {
	value, err := strconv.ParseFloat(s.getEnv(key, ""), 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func (s *source) getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(s.getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma-separated value, dropping empty entries
func (s *source) getEnvAsList(key string, defaultValue []string) []string {
	raw := s.getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
