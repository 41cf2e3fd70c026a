package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
	"github.com/vcscsvcscs/rarecare-backend/internal/security"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Azure    AzureConfig
	Redis    RedisConfig
	Security SecurityConfig
	Insights InsightsConfig
	Logging  LoggingConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port            string
	Environment     string
	ShutdownTimeout time.Duration
	MaxImportBytes  int64
	AllowedOrigins  []string
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

// AzureConfig holds Azure service configuration
type AzureConfig struct {
	OpenAI  OpenAIConfig
	Storage StorageConfig
}

// OpenAIConfig holds Azure OpenAI configuration. Leaving it empty disables model-backed insights.
type OpenAIConfig struct {
	Endpoint   string
	APIKey     string
	Deployment string
	Timeout    time.Duration
}

// Enabled reports whether a model deployment is configured
func (c OpenAIConfig) Enabled() bool {
	return c.Endpoint != "" && c.APIKey != "" && c.Deployment != ""
}

// StorageConfig holds Azure Blob Storage configuration for raw import archives
type StorageConfig struct {
	AccountName      string
	AccountKey       string
	ConnectionString string
	BlobEndpoint     string
	ImportContainer  string
}

// Enabled reports whether blob credentials are configured
func (c StorageConfig) Enabled() bool {
	return c.ConnectionString != "" || (c.AccountName != "" && c.AccountKey != "")
}

// RedisConfig holds the statistics cache configuration. An empty address disables the cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	StatsTTL time.Duration
}

// Enabled reports whether a redis address is configured
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// SecurityConfig holds the key used for patient tokens
type SecurityConfig struct {
	IDEncryptionKey string
}

// InsightsConfig controls insight generation
type InsightsConfig struct {
	CacheTTL time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string // json or console
}

// Load reads configuration from environment variables and an optional rarecare.yaml
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("rarecare")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/rarecare")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.AutomaticEnv()
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.shutdowntimeout", 30*time.Second)
	v.SetDefault("server.maximportbytes", 10<<20)
	v.SetDefault("server.allowedorigins", []string{"http://localhost:3000", "http://localhost:5173"})

	v.SetDefault("database.maxconns", 25)
	v.SetDefault("database.minconns", 2)
	v.SetDefault("database.connmaxlifetime", 5*time.Minute)
	v.SetDefault("database.automigrate", false)

	v.SetDefault("azure.openai.timeout", 30*time.Second)
	v.SetDefault("azure.storage.importcontainer", "tracking-imports")

	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.statsttl", 5*time.Minute)

	v.SetDefault("insights.cachettl", time.Hour)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// bindEnvVars binds environment variables to config keys
func bindEnvVars(v *viper.Viper) {
	// Server
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.environment", "ENV", "ENVIRONMENT")
	v.BindEnv("server.maximportbytes", "MAX_IMPORT_BYTES")
	v.BindEnv("server.allowedorigins", "ALLOWED_ORIGINS")

	// Database
	v.BindEnv("database.url", "DATABASE_URL")
	v.BindEnv("database.automigrate", "DATABASE_AUTOMIGRATE")

	// Azure OpenAI
	v.BindEnv("azure.openai.endpoint", "AZURE_OPENAI_ENDPOINT")
	v.BindEnv("azure.openai.apikey", "AZURE_OPENAI_API_KEY")
	v.BindEnv("azure.openai.deployment", "AZURE_OPENAI_DEPLOYMENT")
	v.BindEnv("azure.openai.timeout", "AZURE_OPENAI_TIMEOUT")

	// Azure Storage
	v.BindEnv("azure.storage.accountname", "AZURE_STORAGE_ACCOUNT_NAME")
	v.BindEnv("azure.storage.accountkey", "AZURE_STORAGE_ACCOUNT_KEY")
	v.BindEnv("azure.storage.connectionstring", "AZURE_STORAGE_CONNECTION_STRING")
	v.BindEnv("azure.storage.blobendpoint", "AZURE_STORAGE_BLOB_ENDPOINT")
	v.BindEnv("azure.storage.importcontainer", "AZURE_STORAGE_IMPORT_CONTAINER")

	// Redis
	v.BindEnv("redis.addr", "REDIS_ADDR")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")
	v.BindEnv("redis.statsttl", "REDIS_STATS_TTL")

	// Security
	v.BindEnv("security.idencryptionkey", "ID_ENCRYPTION_KEY")

	// Insights
	v.BindEnv("insights.cachettl", "INSIGHTS_CACHE_TTL")

	// Logging
	v.BindEnv("logging.level", "LOG_LEVEL")
	v.BindEnv("logging.format", "LOG_FORMAT")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}

	if c.Security.IDEncryptionKey == "" {
		return fmt.Errorf("security.idencryptionkey is required")
	}
	if _, err := security.ParseKey(c.Security.IDEncryptionKey); err != nil {
		return fmt.Errorf("security.idencryptionkey: %w", err)
	}

	openai := c.Azure.OpenAI
	if (openai.Endpoint != "" || openai.APIKey != "" || openai.Deployment != "") && !openai.Enabled() {
		return fmt.Errorf("azure.openai requires endpoint, apikey and deployment together")
	}

	if c.Azure.Storage.Enabled() && c.Azure.Storage.ImportContainer == "" {
		return fmt.Errorf("azure.storage.importcontainer is required when storage is configured")
	}

	if c.Server.MaxImportBytes <= 0 {
		return fmt.Errorf("server.maximportbytes must be positive")
	}

	if c.Insights.CacheTTL < 0 {
		return fmt.Errorf("insights.cachettl must not be negative")
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}

	return nil
}
