package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultAPIBaseURL    = "http://localhost:8080/api"
	DefaultAPITimeout    = 50 * time.Second
	DefaultSessionDBPath = "session.db"
)

// Config holds the application configuration
type Config struct {
	// Backend API
	APIBaseURL string        `yaml:"api_base_url"`
	APITimeout time.Duration `yaml:"api_timeout"`

	// Durable session storage (SQLite file)
	SessionDBPath string `yaml:"session_db_path"`

	LogLevel string `yaml:"log_level"`

	// Telegram front-end
	TelegramToken  string  `yaml:"telegram_token"`
	AllowedUserIDs []int64 `yaml:"allowed_user_ids"`
	WebhookMode    bool    `yaml:"webhook_mode"` // If true, use webhook mode; if false, use polling mode
	WebhookURL     string  `yaml:"webhook_url"`  // URL for webhook (required if WebhookMode is true)
	Port           string  `yaml:"port"`

	// ClickHouse action journal
	ClickHouseHost     string `yaml:"clickhouse_host"`
	ClickHousePort     int    `yaml:"clickhouse_port"`
	ClickHouseDatabase string `yaml:"clickhouse_database"`
	ClickHouseUser     string `yaml:"clickhouse_user"`
	ClickHousePassword string `yaml:"clickhouse_password"`
	ClickHouseUseTLS   bool   `yaml:"clickhouse_use_tls"`

	UseMockDB bool `yaml:"use_mock_db"`
}

// LoadFile reads a YAML configuration file
func LoadFile(path string) (*Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// If CONFIG_FILE is set, the YAML file is loaded first and environment
// variables override its values.
func LoadFromEnv() (*Config, error) {
	config := &Config{}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		fileCfg, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		config = fileCfg
	}

	// Backend API
	if v := os.Getenv("API_BASE_URL"); v != "" {
		config.APIBaseURL = v
	}
	if config.APIBaseURL == "" {
		config.APIBaseURL = DefaultAPIBaseURL
	}
	config.APIBaseURL = strings.TrimRight(config.APIBaseURL, "/")

	if v := os.Getenv("API_TIMEOUT"); v != "" {
		timeout, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid API_TIMEOUT: %w", err)
		}
		config.APITimeout = timeout
	}
	if config.APITimeout <= 0 {
		config.APITimeout = DefaultAPITimeout
	}

	if v := os.Getenv("SESSION_DB_PATH"); v != "" {
		config.SessionDBPath = v
	}
	if config.SessionDBPath == "" {
		config.SessionDBPath = DefaultSessionDBPath
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		config.LogLevel = v
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}

	// Telegram (validated by the bot front-end, the CLI does not need it)
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		config.TelegramToken = v
	}

	if allowedIDsStr := os.Getenv("ALLOWED_USER_IDS"); allowedIDsStr != "" {
		config.AllowedUserIDs = nil
		idStrs := strings.Split(allowedIDsStr, ",")
		for _, idStr := range idStrs {
			id, err := strconv.ParseInt(strings.TrimSpace(idStr), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid user ID in ALLOWED_USER_IDS: %s", idStr)
			}
			config.AllowedUserIDs = append(config.AllowedUserIDs, id)
		}
	}

	if v := os.Getenv("WEBHOOK_MODE"); v != "" {
		config.WebhookMode = v == "true"
	}
	if config.WebhookMode {
		if v := os.Getenv("WEBHOOK_URL"); v != "" {
			config.WebhookURL = v
		}
		if config.WebhookURL == "" {
			return nil, fmt.Errorf("WEBHOOK_URL is required when WEBHOOK_MODE is true")
		}
	}

	if v := os.Getenv("PORT"); v != "" {
		config.Port = v
	}
	if config.Port == "" {
		config.Port = "8081"
	}

	// Use Mock DB for the action journal (default: false)
	if v := os.Getenv("USE_MOCK_DB"); v != "" {
		config.UseMockDB = v == "true"
	}

	// ClickHouse configuration (required if not using mock)
	if !config.UseMockDB {
		if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
			config.ClickHouseHost = v
		}
		if config.ClickHouseHost == "" {
			return nil, fmt.Errorf("CLICKHOUSE_HOST is required when USE_MOCK_DB is not set")
		}

		if portStr := os.Getenv("CLICKHOUSE_PORT"); portStr != "" {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return nil, fmt.Errorf("invalid CLICKHOUSE_PORT: %w", err)
			}
			config.ClickHousePort = port
		}
		if config.ClickHousePort == 0 {
			config.ClickHousePort = 9000 // Default ClickHouse native port
		}

		if v := os.Getenv("CLICKHOUSE_DATABASE"); v != "" {
			config.ClickHouseDatabase = v
		}
		if config.ClickHouseDatabase == "" {
			config.ClickHouseDatabase = "default"
		}

		if v := os.Getenv("CLICKHOUSE_USER"); v != "" {
			config.ClickHouseUser = v
		}
		if config.ClickHouseUser == "" {
			config.ClickHouseUser = "default"
		}

		// Password is optional, can be empty
		if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
			config.ClickHousePassword = v
		}

		if v := os.Getenv("CLICKHOUSE_USE_TLS"); v != "" {
			config.ClickHouseUseTLS = v == "true"
		}
	}

	return config, nil
}

// ValidateBot checks the settings only the Telegram front-end needs
func (c *Config) ValidateBot() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	if len(c.AllowedUserIDs) == 0 {
		return fmt.Errorf("ALLOWED_USER_IDS is required (comma-separated list of Telegram user IDs)")
	}
	return nil
}
