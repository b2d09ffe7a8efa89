package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONTRACT_ADDRESS", "0x00000000000000000000000000000000000a1b2c")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int64(296), cfg.ChainID)
	assert.Equal(t, "https://testnet.hashio.io/api", cfg.RPCURL)
	assert.Equal(t, time.Hour, cfg.PollInterval)
	assert.Equal(t, "10", cfg.BetAmountHBAR.String())
	assert.Equal(t, "0.17", cfg.HBARPriceUSD.String())
	assert.Equal(t, "medium", cfg.RiskLevel)
	assert.True(t, cfg.SpendingLimitUSD.IsZero())
	assert.Equal(t, 3001, cfg.ServerPort)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.False(t, cfg.DryRun)
}

func TestLoadRequiresContract(t *testing.T) {
	t.Setenv("CONTRACT_ADDRESS", "")
	_, err := Load()
	require.Error(t, err)
}

func TestDebugShortensPollInterval(t *testing.T) {
	t.Setenv("CONTRACT_ADDRESS", "0x00000000000000000000000000000000000a1b2c")
	t.Setenv("DEBUG", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.PollInterval)

	// An explicit interval wins over the debug default.
	t.Setenv("POLL_INTERVAL", "5m")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.PollInterval)
}

func TestFallbackURLsAndLists(t *testing.T) {
	t.Setenv("CONTRACT_ADDRESS", "0x00000000000000000000000000000000000a1b2c")
	t.Setenv("FALLBACK_RPC_URLS", "https://a.example, https://b.example ,")
	t.Setenv("CORS_ORIGINS", "http://localhost:5173,http://localhost:3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.FallbackRPCURLs)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:3000"}, cfg.CORSOrigins)
}

func TestInvalidTelegramChatID(t *testing.T) {
	t.Setenv("CONTRACT_ADDRESS", "0x00000000000000000000000000000000000a1b2c")
	t.Setenv("TELEGRAM_CHAT_ID", "not-a-number")
	_, err := Load()
	require.Error(t, err)
}
