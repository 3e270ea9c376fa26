package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	cfg, err := LoadConfig()

	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.StoreBackend)
	assert.Equal(t, EventBusNone, cfg.EventBus)
	assert.Equal(t, 10, cfg.SuggestionDrawSize)
	assert.Equal(t, 5*time.Minute, cfg.ProfileCacheTTL)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devconsole.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store_backend: dynamodb
table_name: from-file
event_bus: nats
profile_cache_ttl: 90s
cors_allowed_origins: [https://a.example, https://b.example]
`), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("TABLE_NAME", "from-env")
	t.Setenv("SUGGESTION_DRAW_SIZE", "25")

	cfg, err := LoadConfig()

	require.NoError(t, err)
	assert.Equal(t, StoreDynamoDB, cfg.StoreBackend)
	assert.Equal(t, "from-env", cfg.TableName)
	assert.Equal(t, EventBusNATS, cfg.EventBus)
	assert.Equal(t, 90*time.Second, cfg.ProfileCacheTTL)
	assert.Equal(t, 25, cfg.SuggestionDrawSize)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
}

func TestLoadConfig_BadValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unparseable ttl", env: map[string]string{"PROFILE_CACHE_TTL": "soon"}},
		{name: "unparseable draw size", env: map[string]string{"SUGGESTION_DRAW_SIZE": "many"}},
		{name: "missing config file", env: map[string]string{"CONFIG_FILE": "/nonexistent/devconsole.yaml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := LoadConfig()

			assert.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{name: "unknown store", mutate: func(c *Config) { c.StoreBackend = "mongo" }, wantErr: "STORE_BACKEND"},
		{name: "postgres without url", mutate: func(c *Config) { c.StoreBackend = StorePostgres }, wantErr: "DATABASE_URL"},
		{name: "unknown bus", mutate: func(c *Config) { c.EventBus = "kafka" }, wantErr: "EVENT_BUS"},
		{name: "zero draw size", mutate: func(c *Config) { c.SuggestionDrawSize = 0 }, wantErr: "SUGGESTION_DRAW_SIZE"},
		{name: "production without secret", mutate: func(c *Config) { c.Environment = "production" }, wantErr: "JWT_SECRET"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

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
