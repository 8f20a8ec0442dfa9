package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresDiscordSettings(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "")
	t.Setenv("DISCORD_CHANNEL_ID", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "token")
	t.Setenv("DISCORD_CHANNEL_ID", "chan")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "Expenses", cfg.SheetsName)
	assert.Equal(t, "spendbot.db", cfg.DBPath)
	assert.False(t, cfg.UseSheets())
}

func TestLoadSheetsNeedsCredentials(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "token")
	t.Setenv("DISCORD_CHANNEL_ID", "chan")
	t.Setenv("GSHEETS_ID", "sheet123")
	t.Setenv("GOOGLE_CREDENTIALS_FILE", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadSheetsConfigured(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "token")
	t.Setenv("DISCORD_CHANNEL_ID", "chan")
	t.Setenv("GSHEETS_ID", "sheet123")
	t.Setenv("GOOGLE_CREDENTIALS_FILE", "creds.json")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.UseSheets())
	assert.Equal(t, "sheet123", cfg.SheetsID)
}
