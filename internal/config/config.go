package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all configuration for the daemon
type Config struct {
	// Mode
	DryRun bool
	Debug  bool

	// Settlement chain
	ChainID         int64
	RPCURL          string   // primary read endpoint
	FallbackRPCURLs []string // extra read endpoints tried when the primary fails
	ContractAddress string

	// Wallet
	WalletPrivateKey string
	AutoConnect      bool

	// Signal service
	SignalServiceURL string
	AgentURL         string // chat relay upstream

	// Auto execution
	AutoExecute      bool            // start the executor at boot
	PollInterval     time.Duration   // production default 1h, 30s in debug builds
	BetAmountHBAR    decimal.Decimal // stake per auto-executed bet
	SpendingLimitUSD decimal.Decimal // 0 = no ceiling
	HBARPriceUSD     decimal.Decimal // fixed HBAR→USD conversion rate
	GasReserveHBAR   decimal.Decimal // kept aside for tx fees
	RiskLevel        string          // passed to the signal service

	// Indexer
	IndexerPollInterval time.Duration
	IndexerStartBlock   uint64

	// API server
	ServerPort  int
	CORSOrigins []string

	// Telegram
	TelegramToken  string
	TelegramChatID int64

	// Database
	DatabasePath string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		DryRun: getEnvBool("DRY_RUN", false),
		Debug:  getEnvBool("DEBUG", false),

		// Hedera testnet defaults; override for mainnet
		ChainID:         int64(getEnvInt("CHAIN_ID", 296)),
		RPCURL:          getEnv("RPC_URL", "https://testnet.hashio.io/api"),
		ContractAddress: os.Getenv("CONTRACT_ADDRESS"),

		WalletPrivateKey: os.Getenv("WALLET_PRIVATE_KEY"),
		AutoConnect:      getEnvBool("WALLET_AUTO_CONNECT", false),

		SignalServiceURL: getEnv("SIGNAL_SERVICE_URL", "http://localhost:5000"),
		AgentURL:         os.Getenv("AGENT_URL"),

		AutoExecute:      getEnvBool("AUTO_EXECUTE", false),
		PollInterval:     getEnvDuration("POLL_INTERVAL", time.Hour),
		BetAmountHBAR:    getEnvDecimal("BET_AMOUNT_HBAR", decimal.NewFromInt(10)),
		SpendingLimitUSD: getEnvDecimal("SPENDING_LIMIT_USD", decimal.Zero),
		HBARPriceUSD:     getEnvDecimal("HBAR_PRICE_USD", decimal.NewFromFloat(0.17)),
		RiskLevel:        getEnv("RISK_LEVEL", "medium"),
		GasReserveHBAR:   getEnvDecimal("GAS_RESERVE_HBAR", decimal.NewFromInt(1)),

		IndexerPollInterval: getEnvDuration("INDEXER_POLL_INTERVAL", 10*time.Second),
		IndexerStartBlock:   uint64(getEnvInt("INDEXER_START_BLOCK", 0)),

		ServerPort:  getEnvInt("SERVER_PORT", 3001),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "*")),

		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),

		DatabasePath: getEnv("DATABASE_PATH", "data/hederabet.db"),
	}

	if urls := os.Getenv("FALLBACK_RPC_URLS"); urls != "" {
		cfg.FallbackRPCURLs = splitList(urls)
	}

	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}

	// Debug builds poll fast so the HOLD loop is observable
	if cfg.Debug && os.Getenv("POLL_INTERVAL") == "" {
		cfg.PollInterval = 30 * time.Second
	}

	if cfg.ContractAddress == "" {
		return nil, fmt.Errorf("CONTRACT_ADDRESS is required")
	}

	return cfg, nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
