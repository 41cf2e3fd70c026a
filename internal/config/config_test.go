package config

import (
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = hex.EncodeToString([]byte(strings.Repeat("k", 32)))

func validConfig() Config {
	return Config{
		Server:   ServerConfig{Port: "8080", MaxImportBytes: 1 << 20},
		Database: DatabaseConfig{URL: "postgres://localhost/rarecare"},
		Security: SecurityConfig{IDEncryptionKey: testKey},
		Insights: InsightsConfig{CacheTTL: time.Hour},
		Logging:  LoggingConfig{Level: "info", Format: "json"},
	}
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://test@localhost/rarecare")
	t.Setenv("ID_ENCRYPTION_KEY", testKey)
	t.Setenv("PORT", "9090")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("INSIGHTS_CACHE_TTL", "30m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Environment)
	assert.Equal(t, int64(10<<20), cfg.Server.MaxImportBytes)
	assert.Equal(t, "postgres://test@localhost/rarecare", cfg.Database.URL)
	assert.Equal(t, int32(25), cfg.Database.MaxConns)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, 5*time.Minute, cfg.Redis.StatsTTL)
	assert.Equal(t, 30*time.Minute, cfg.Insights.CacheTTL)
	assert.False(t, cfg.Azure.OpenAI.Enabled())
	assert.False(t, cfg.Azure.Storage.Enabled())
	assert.Equal(t, "tracking-imports", cfg.Azure.Storage.ImportContainer)
}

func TestLoad_MissingDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("ID_ENCRYPTION_KEY", testKey)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.url")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing key", mutate: func(c *Config) { c.Security.IDEncryptionKey = "" }, wantErr: "idencryptionkey"},
		{name: "short key", mutate: func(c *Config) { c.Security.IDEncryptionKey = "abcd" }, wantErr: "idencryptionkey"},
		{name: "partial openai", mutate: func(c *Config) { c.Azure.OpenAI.Endpoint = "https://x.openai.azure.com" }, wantErr: "azure.openai"},
		{
			name: "complete openai",
			mutate: func(c *Config) {
				c.Azure.OpenAI = OpenAIConfig{Endpoint: "https://x.openai.azure.com", APIKey: "k", Deployment: "gpt-4o"}
			},
		},
		{
			name: "storage without container",
			mutate: func(c *Config) {
				c.Azure.Storage = StorageConfig{AccountName: "acct", AccountKey: "key"}
			},
			wantErr: "importcontainer",
		},
		{name: "bad log format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: "logging.format"},
		{name: "zero import size", mutate: func(c *Config) { c.Server.MaxImportBytes = 0 }, wantErr: "maximportbytes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
