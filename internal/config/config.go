// Package config loads application configuration from the environment.
package config

import (
	"fmt"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds the application configuration loaded from environment
// variables.
type Config struct {
	DiscordBotToken  string `koanf:"DISCORD_BOT_TOKEN"`
	DiscordChannelID string `koanf:"DISCORD_CHANNEL_ID"`

	// Google Sheets ledger. When GSHEETS_ID is empty the bot falls back to
	// the local SQLite ledger.
	SheetsID        string `koanf:"GSHEETS_ID"`
	SheetsName      string `koanf:"GSHEETS_NAME"`
	CredentialsFile string `koanf:"GOOGLE_CREDENTIALS_FILE"`

	// Optional AI enrichment; leaving the key empty disables it.
	OpenAIAPIKey string `koanf:"OPENAI_API_KEY"`
	OpenAIModel  string `koanf:"OPENAI_MODEL"`

	// DBPath is the SQLite file holding budgets and, without Sheets
	// credentials, the ledger itself.
	DBPath string `koanf:"DB_PATH"`

	LogLevel string `koanf:"LOG_LEVEL"`
	LogJSON  bool   `koanf:"LOG_JSON"`
}

// Load reads configuration from the environment and applies defaults.
func Load() (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", nil), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf", FlatPaths: true}); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if cfg.DiscordBotToken == "" {
		return nil, fmt.Errorf("DISCORD_BOT_TOKEN is not set")
	}
	if cfg.DiscordChannelID == "" {
		return nil, fmt.Errorf("DISCORD_CHANNEL_ID is not set")
	}
	if cfg.SheetsID != "" && cfg.CredentialsFile == "" {
		return nil, fmt.Errorf("GOOGLE_CREDENTIALS_FILE is required when GSHEETS_ID is set")
	}

	if cfg.SheetsName == "" {
		cfg.SheetsName = "Expenses"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "spendbot.db"
	}

	return &cfg, nil
}

// UseSheets reports whether the Google Sheets ledger backend is configured.
func (c *Config) UseSheets() bool {
	return c.SheetsID != ""
}
