package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 100*time.Millisecond, cfg.Auction.DefaultTimeout)
	assert.Equal(t, "0", cfg.Auction.DefaultFloorPrice)
	assert.Equal(t, 30*time.Second, cfg.Redis.CampaignTTL)
	assert.Equal(t, "http://localhost:8080", cfg.Tracking.BaseURL)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("RTB_SERVER__PORT", "9999")
	t.Setenv("RTB_LOG_LEVEL", "debug")
	t.Setenv("RTB_TRACKING__BASE_URL", "https://serve.example.com")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "https://serve.example.com", cfg.Tracking.BaseURL)
}
