package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Chains  ChainsConfig
	Wallet  WalletConfig
	Checkin CheckinConfig
	Ledger  LedgerConfig
	Alert   AlertConfig
	Server  ServerConfig
	Tracing TracingConfig
	Log     LogConfig
}

type ChainsConfig struct {
	// DefaultChain is the chain selected at startup.
	DefaultChain string
	// OverridesPath points at an optional YAML file with per-chain
	// RPC/contract overrides.
	OverridesPath   string
	SolanaCluster   string
	SolanaProgramID string
}

type WalletConfig struct {
	// PreferredBrand is tried first when several injected providers
	// are available.
	PreferredBrand string
	ConnectWaitSec int
}

type CheckinConfig struct {
	DefaultReward     int64
	DefaultStreak     int64
	ConfirmTimeoutSec int
	PollIntervalMs    int
	WatchdogWindowSec int
	StatusCacheTTLSec int
}

type LedgerConfig struct {
	Path             string
	RedisURL         string
	RemoteTimeoutSec int
}

type AlertConfig struct {
	SlackWebhookURL string
	WebhookURL      string
	CooldownSec     int
}

type ServerConfig struct {
	ListenAddr string
	AdminToken string
}

type TracingConfig struct {
	OTLPEndpoint string
	Insecure     bool
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Chains: ChainsConfig{
			DefaultChain:    getEnv("DEFAULT_CHAIN", "bsc"),
			OverridesPath:   getEnv("CHAIN_OVERRIDES_PATH", ""),
			SolanaCluster:   getEnv("SOLANA_CLUSTER", "mainnet"),
			SolanaProgramID: getEnv("SOLANA_PROGRAM_ID", ""),
		},
		Wallet: WalletConfig{
			PreferredBrand: getEnv("WALLET_PREFERRED_BRAND", ""),
			ConnectWaitSec: getEnvInt("WALLET_CONNECT_WAIT_SEC", 30),
		},
		Checkin: CheckinConfig{
			DefaultReward:     int64(getEnvInt("CHECKIN_DEFAULT_REWARD", 30)),
			DefaultStreak:     int64(getEnvInt("CHECKIN_DEFAULT_STREAK", 1)),
			ConfirmTimeoutSec: getEnvInt("CHECKIN_CONFIRM_TIMEOUT_SEC", 90),
			PollIntervalMs:    getEnvInt("CHECKIN_POLL_INTERVAL_MS", 2000),
			WatchdogWindowSec: getEnvInt("CHECKIN_WATCHDOG_WINDOW_SEC", 8),
			StatusCacheTTLSec: getEnvInt("CHECKIN_STATUS_CACHE_TTL_SEC", 30),
		},
		Ledger: LedgerConfig{
			Path:             getEnv("LEDGER_PATH", "data/ledger.json"),
			RedisURL:         getEnv("REDIS_URL", ""),
			RemoteTimeoutSec: getEnvInt("LEDGER_REMOTE_TIMEOUT_SEC", 5),
		},
		Alert: AlertConfig{
			SlackWebhookURL: getEnv("ALERT_SLACK_WEBHOOK_URL", ""),
			WebhookURL:      getEnv("ALERT_WEBHOOK_URL", ""),
			CooldownSec:     getEnvInt("ALERT_COOLDOWN_SEC", 300),
		},
		Server: ServerConfig{
			ListenAddr: getEnv("LISTEN_ADDR", ":8080"),
			AdminToken: getEnv("ADMIN_TOKEN", ""),
		},
		Tracing: TracingConfig{
			OTLPEndpoint: getEnv("OTLP_ENDPOINT", ""),
			Insecure:     getEnvBool("OTLP_INSECURE", true),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Chains.DefaultChain {
	case "bsc", "opbnb", "eth", "base", "solana":
	default:
		return fmt.Errorf("DEFAULT_CHAIN %q is not a known chain", c.Chains.DefaultChain)
	}
	switch strings.ToLower(c.Chains.SolanaCluster) {
	case "mainnet", "mainnet-beta", "devnet", "testnet":
	default:
		return fmt.Errorf("SOLANA_CLUSTER %q is not a known cluster", c.Chains.SolanaCluster)
	}
	if c.Ledger.Path == "" {
		return fmt.Errorf("LEDGER_PATH is required")
	}
	if c.Checkin.ConfirmTimeoutSec <= 0 {
		return fmt.Errorf("CHECKIN_CONFIRM_TIMEOUT_SEC must be positive")
	}
	return nil
}

// ConfirmTimeout returns the receipt polling deadline as a Duration.
func (c *CheckinConfig) ConfirmTimeout() time.Duration {
	return time.Duration(c.ConfirmTimeoutSec) * time.Second
}

func (c *CheckinConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

func (c *CheckinConfig) WatchdogWindow() time.Duration {
	return time.Duration(c.WatchdogWindowSec) * time.Second
}

func (c *CheckinConfig) StatusCacheTTL() time.Duration {
	return time.Duration(c.StatusCacheTTLSec) * time.Second
}

func (c *LedgerConfig) RemoteTimeout() time.Duration {
	return time.Duration(c.RemoteTimeoutSec) * time.Second
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
