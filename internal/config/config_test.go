package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DEFAULT_CHAIN", "")
	t.Setenv("SOLANA_CLUSTER", "")
	t.Setenv("LEDGER_PATH", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("LOG_LEVEL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "bsc", cfg.Chains.DefaultChain)
	assert.Equal(t, "mainnet", cfg.Chains.SolanaCluster)
	assert.Equal(t, "data/ledger.json", cfg.Ledger.Path)
	assert.Empty(t, cfg.Ledger.RedisURL)
	assert.EqualValues(t, 30, cfg.Checkin.DefaultReward)
	assert.EqualValues(t, 1, cfg.Checkin.DefaultStreak)
	assert.Equal(t, 90*time.Second, cfg.Checkin.ConfirmTimeout())
	assert.Equal(t, 2*time.Second, cfg.Checkin.PollInterval())
	assert.Equal(t, 8*time.Second, cfg.Checkin.WatchdogWindow())
	assert.Equal(t, 30*time.Second, cfg.Checkin.StatusCacheTTL())
	assert.Equal(t, 5*time.Second, cfg.Ledger.RemoteTimeout())
	assert.Equal(t, ":8080", cfg.Server.ListenAddr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Tracing.Insecure)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DEFAULT_CHAIN", "opbnb")
	t.Setenv("SOLANA_CLUSTER", "devnet")
	t.Setenv("LEDGER_PATH", "/var/lib/checkin/ledger.json")
	t.Setenv("REDIS_URL", "redis://localhost:6380")
	t.Setenv("CHECKIN_DEFAULT_REWARD", "50")
	t.Setenv("CHECKIN_CONFIRM_TIMEOUT_SEC", "120")
	t.Setenv("WALLET_PREFERRED_BRAND", "metamask")
	t.Setenv("OTLP_INSECURE", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "opbnb", cfg.Chains.DefaultChain)
	assert.Equal(t, "devnet", cfg.Chains.SolanaCluster)
	assert.Equal(t, "/var/lib/checkin/ledger.json", cfg.Ledger.Path)
	assert.Equal(t, "redis://localhost:6380", cfg.Ledger.RedisURL)
	assert.EqualValues(t, 50, cfg.Checkin.DefaultReward)
	assert.Equal(t, 120*time.Second, cfg.Checkin.ConfirmTimeout())
	assert.Equal(t, "metamask", cfg.Wallet.PreferredBrand)
	assert.False(t, cfg.Tracing.Insecure)
}

func TestLoad_RejectsUnknownChain(t *testing.T) {
	t.Setenv("DEFAULT_CHAIN", "polygon")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DEFAULT_CHAIN")
}

func TestLoad_RejectsUnknownCluster(t *testing.T) {
	t.Setenv("DEFAULT_CHAIN", "solana")
	t.Setenv("SOLANA_CLUSTER", "localnet")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SOLANA_CLUSTER")
}

func TestLoad_MalformedIntFallsBack(t *testing.T) {
	t.Setenv("CHECKIN_CONFIRM_TIMEOUT_SEC", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.Checkin.ConfirmTimeout())
}
