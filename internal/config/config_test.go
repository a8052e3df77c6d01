package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every variable LoadFromEnv reads for the duration of the test
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CONFIG_FILE", "API_BASE_URL", "API_TIMEOUT", "SESSION_DB_PATH", "LOG_LEVEL",
		"TELEGRAM_BOT_TOKEN", "ALLOWED_USER_IDS", "WEBHOOK_MODE", "WEBHOOK_URL", "PORT",
		"USE_MOCK_DB", "CLICKHOUSE_HOST", "CLICKHOUSE_PORT", "CLICKHOUSE_DATABASE",
		"CLICKHOUSE_USER", "CLICKHOUSE_PASSWORD", "CLICKHOUSE_USE_TLS",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("USE_MOCK_DB", "true")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, DefaultAPIBaseURL, cfg.APIBaseURL)
	assert.Equal(t, DefaultAPITimeout, cfg.APITimeout)
	assert.Equal(t, DefaultSessionDBPath, cfg.SessionDBPath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "8081", cfg.Port)
	assert.True(t, cfg.UseMockDB)
	assert.False(t, cfg.WebhookMode)
}

func TestLoadFromEnv(t *testing.T) {
	testCases := []struct {
		name        string
		description string
		env         map[string]string
		wantErr     string
		check       func(t *testing.T, cfg *Config)
	}{
		{
			name:        "backend settings",
			description: "Base URL loses its trailing slash and the timeout is parsed",
			env: map[string]string{
				"USE_MOCK_DB":  "true",
				"API_BASE_URL": "https://library.example.com/api/",
				"API_TIMEOUT":  "5s",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "https://library.example.com/api", cfg.APIBaseURL)
				assert.Equal(t, 5*time.Second, cfg.APITimeout)
			},
		},
		{
			name:        "bad timeout",
			description: "An unparsable timeout is rejected",
			env:         map[string]string{"USE_MOCK_DB": "true", "API_TIMEOUT": "soon"},
			wantErr:     "invalid API_TIMEOUT",
		},
		{
			name:        "allowed users",
			description: "Allowed user IDs are a comma-separated list",
			env:         map[string]string{"USE_MOCK_DB": "true", "ALLOWED_USER_IDS": "12, 34,56"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, []int64{12, 34, 56}, cfg.AllowedUserIDs)
			},
		},
		{
			name:        "bad allowed user",
			description: "A non-numeric user ID is rejected",
			env:         map[string]string{"USE_MOCK_DB": "true", "ALLOWED_USER_IDS": "12,abc"},
			wantErr:     "invalid user ID in ALLOWED_USER_IDS",
		},
		{
			name:        "webhook without url",
			description: "Webhook mode needs a public URL",
			env:         map[string]string{"USE_MOCK_DB": "true", "WEBHOOK_MODE": "true"},
			wantErr:     "WEBHOOK_URL is required",
		},
		{
			name:        "clickhouse required",
			description: "Without the mock journal ClickHouse must be configured",
			env:         map[string]string{},
			wantErr:     "CLICKHOUSE_HOST is required",
		},
		{
			name:        "clickhouse defaults",
			description: "Only the host is mandatory for ClickHouse",
			env:         map[string]string{"CLICKHOUSE_HOST": "ch.local"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "ch.local", cfg.ClickHouseHost)
				assert.Equal(t, 9000, cfg.ClickHousePort)
				assert.Equal(t, "default", cfg.ClickHouseDatabase)
				assert.Equal(t, "default", cfg.ClickHouseUser)
				assert.False(t, cfg.ClickHouseUseTLS)
			},
		},
		{
			name:        "bad clickhouse port",
			description: "A non-numeric port is rejected",
			env:         map[string]string{"CLICKHOUSE_HOST": "ch.local", "CLICKHOUSE_PORT": "native"},
			wantErr:     "invalid CLICKHOUSE_PORT",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			cfg, err := LoadFromEnv()
			if tc.wantErr != "" {
				require.Error(t, err, tc.description)
				assert.Contains(t, err.Error(), tc.wantErr, tc.description)
				return
			}
			require.NoError(t, err, tc.description)
			tc.check(t, cfg)
		})
	}
}

func TestLoadFromEnv_FileOverlay(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api_base_url: http://file.example.com/api
api_timeout: 20s
session_db_path: /var/lib/davon/session.db
allowed_user_ids: [1, 2]
use_mock_db: true
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("API_BASE_URL", "http://env.example.com/api")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	// environment wins over the file
	assert.Equal(t, "http://env.example.com/api", cfg.APIBaseURL)
	assert.Equal(t, 20*time.Second, cfg.APITimeout)
	assert.Equal(t, "/var/lib/davon/session.db", cfg.SessionDBPath)
	assert.Equal(t, []int64{1, 2}, cfg.AllowedUserIDs)
	assert.True(t, cfg.UseMockDB)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateBot(t *testing.T) {
	cfg := &Config{}
	assert.EqualError(t, cfg.ValidateBot(), "TELEGRAM_BOT_TOKEN is required")

	cfg.TelegramToken = "123:abc"
	assert.Error(t, cfg.ValidateBot())

	cfg.AllowedUserIDs = []int64{42}
	assert.NoError(t, cfg.ValidateBot())
}
