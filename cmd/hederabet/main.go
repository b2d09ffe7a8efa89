// Hederabet - parimutuel prediction market daemon for Hedera
//
// The daemon reads markets off the on-chain parimutuel contract, generates
// trading signals through an external signal service, places bets from a
// local wallet, indexes contract events into a local database and serves
// everything to the UI over HTTP and websocket.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/0xvasu/hederabet/internal/bets"
	"github.com/0xvasu/hederabet/internal/chain"
	"github.com/0xvasu/hederabet/internal/config"
	"github.com/0xvasu/hederabet/internal/executor"
	"github.com/0xvasu/hederabet/internal/indexer"
	"github.com/0xvasu/hederabet/internal/ledger"
	"github.com/0xvasu/hederabet/internal/notify"
	"github.com/0xvasu/hederabet/internal/server"
	sig "github.com/0xvasu/hederabet/internal/signal"
	"github.com/0xvasu/hederabet/internal/wallet"
)

const version = "1.0.0"

func main() {
	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// Load environment
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log.Info().
		Str("version", version).
		Int64("chain_id", cfg.ChainID).
		Str("contract", cfg.ContractAddress).
		Bool("dry_run", cfg.DryRun).
		Msg("🎲 Hederabet starting...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ====== CORE COMPONENTS ======

	// 1. RPC clients - primary plus optional read fallbacks
	primary, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		log.Fatal().Err(err).Str("url", cfg.RPCURL).Msg("Failed to connect RPC endpoint")
	}
	callers := []chain.Caller{primary}
	for _, url := range cfg.FallbackRPCURLs {
		c, err := ethclient.Dial(url)
		if err != nil {
			log.Warn().Err(err).Str("url", url).Msg("⚠️ Fallback RPC unavailable, skipping")
			continue
		}
		callers = append(callers, c)
	}
	log.Info().Int("endpoints", len(callers)).Msg("⛓️ RPC connected")

	if !common.IsHexAddress(cfg.ContractAddress) {
		log.Fatal().Str("address", cfg.ContractAddress).Msg("CONTRACT_ADDRESS is not a valid address")
	}
	contract := common.HexToAddress(cfg.ContractAddress)
	reader := chain.NewReader(contract, callers...)
	writer := chain.NewWriter(contract, primary, cfg.DryRun)

	// 2. Database, ledger and preferences
	db, err := ledger.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	book, err := ledger.New(db, cfg.HBARPriceUSD)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize ledger")
	}

	// 3. Wallet session
	var provider wallet.Provider
	if cfg.WalletPrivateKey != "" {
		provider, err = wallet.NewLocalWallet(cfg.WalletPrivateKey, uint64(cfg.ChainID), primary)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load wallet key")
		}
		log.Info().Msg("💳 local wallet loaded")
	} else {
		provider = wallet.Locked(uint64(cfg.ChainID))
		log.Warn().Msg("⚠️ No WALLET_PRIVATE_KEY - running read-only, trading disabled")
	}
	session := wallet.NewSession(provider, book.Prefs(), uint64(cfg.ChainID))
	go session.Watch(ctx)

	if cfg.AutoConnect {
		if _, err := session.Connect(ctx); err != nil {
			log.Warn().Err(err).Msg("⚠️ Wallet connect failed, continuing disconnected")
		}
	} else if err := session.Restore(ctx); err != nil {
		log.Warn().Err(err).Msg("⚠️ Wallet session restore failed")
	}

	// 4. Signal service client
	signals := sig.NewClient(cfg.SignalServiceURL)
	if signals.Healthy(ctx) {
		log.Info().Str("url", cfg.SignalServiceURL).Msg("📡 signal service reachable")
	} else {
		log.Warn().Str("url", cfg.SignalServiceURL).Msg("⚠️ signal service not responding - auto trading will hold")
	}

	// 5. Auto executor
	exec := executor.New(executor.Config{
		Interval:         cfg.PollInterval,
		BetAmountHBAR:    cfg.BetAmountHBAR,
		SpendingLimitUSD: cfg.SpendingLimitUSD,
		HBARPriceUSD:     cfg.HBARPriceUSD,
		GasReserveHBAR:   cfg.GasReserveHBAR,
		RiskLevel:        cfg.RiskLevel,
	}, reader, signals, writer, session, book, nil)

	// 6. Telegram notifier and control commands
	telegram, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID, &stats{book: book, exec: exec}, exec)
	if err != nil {
		log.Warn().Err(err).Msg("⚠️ Telegram unavailable, alerts disabled")
	}
	if telegram != nil {
		exec.SetNotifier(telegram)
		go telegram.Run(ctx)
	}

	// 7. Event indexer feeding the websocket hub
	hub := server.NewHub()
	ix, err := indexer.New(db, primary, contract, uint64(cfg.ChainID), cfg.IndexerPollInterval, hub)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize indexer")
	}
	go ix.Run(ctx, cfg.IndexerStartBlock)

	// 8. HTTP API
	registry := bets.NewRegistry(reader)
	srv := server.New(server.Config{
		Port:         cfg.ServerPort,
		CORSOrigins:  cfg.CORSOrigins,
		AgentURL:     cfg.AgentURL,
		HBARPriceUSD: cfg.HBARPriceUSD,
	}, reader, registry, book, exec, signals, session, hub)

	if cfg.AutoExecute {
		if session.Connected() {
			if err := exec.Start(ctx); err != nil {
				log.Warn().Err(err).Msg("⚠️ Auto executor failed to start")
			}
		} else {
			log.Warn().Msg("⚠️ AUTO_EXECUTE set but wallet not connected, executor idle")
		}
	}

	// Serve until interrupted
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info().Msg("👋 shutting down...")
		exec.Stop()
		cancel()
	}()

	if err := srv.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server exited with error")
	}
}

// stats adapts the ledger and executor to the notifier's query surface.
type stats struct {
	book *ledger.Ledger
	exec *executor.Executor
}

func (s *stats) Summary(ctx context.Context) (*ledger.Summary, error) {
	return s.book.Summarize(ctx)
}

func (s *stats) ExecutorStatus() executor.Status { return s.exec.Status() }
