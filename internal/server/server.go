// Package server exposes the daemon's HTTP and websocket API.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/0xvasu/hederabet/internal/bets"
	"github.com/0xvasu/hederabet/internal/chain"
	"github.com/0xvasu/hederabet/internal/executor"
	"github.com/0xvasu/hederabet/internal/ledger"
	"github.com/0xvasu/hederabet/internal/signal"
	"github.com/0xvasu/hederabet/internal/wallet"
)

// MarketSource reads markets off the contract. *chain.Reader satisfies it.
type MarketSource interface {
	Markets(ctx context.Context) ([]*chain.Market, error)
	Market(ctx context.Context, questionID uint64) (*chain.Market, error)
}

// BetSource reads a user's positions. *bets.Registry satisfies it.
type BetSource interface {
	BetsFor(ctx context.Context, account common.Address) ([]bets.UserBet, error)
}

// Book answers ledger queries. *ledger.Ledger satisfies it.
type Book interface {
	List(ctx context.Context) ([]ledger.Investment, error)
}

// Exec controls the auto executor. *executor.Executor satisfies it.
type Exec interface {
	Start(ctx context.Context) error
	Stop()
	Status() executor.Status
}

// SignalService is the signal client surface the API exposes.
type SignalService interface {
	Generate(ctx context.Context, req signal.Request) *signal.Signal
	Recent() []signal.Signal
	NewsContext(ctx context.Context, question string, limit int) ([]string, error)
	RunBacktest(ctx context.Context, initialCapital, betSizePercent float64) (*signal.BacktestReport, error)
	BacktestMarkets(ctx context.Context) ([]signal.BacktestMarket, error)
	Healthy(ctx context.Context) bool
}

// Config holds the server's listen and relay settings.
type Config struct {
	Port         int
	CORSOrigins  []string
	AgentURL     string // chat relay upstream, empty disables /api/chat
	HBARPriceUSD decimal.Decimal
}

// Server wires the HTTP API over the daemon's components.
type Server struct {
	cfg     Config
	markets MarketSource
	bets    BetSource
	book    Book
	exec    Exec
	signals SignalService
	session *wallet.Session
	hub     *Hub
	relay   *http.Client
	baseCtx context.Context
}

func New(cfg Config, markets MarketSource, betSource BetSource, book Book, exec Exec, signals SignalService, session *wallet.Session, hub *Hub) *Server {
	return &Server{
		cfg:     cfg,
		markets: markets,
		bets:    betSource,
		book:    book,
		exec:    exec,
		signals: signals,
		session: session,
		hub:     hub,
		relay:   &http.Client{Timeout: 60 * time.Second},
	}
}

// Hub returns the websocket hub for event publishing.
func (s *Server) Hub() *Hub { return s.hub }

// Routes builds the full handler chain.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/markets", s.handleMarkets)
	mux.HandleFunc("GET /api/markets/{id}", s.handleMarket)
	mux.HandleFunc("GET /api/bets", s.handleBets)
	mux.HandleFunc("GET /api/investments", s.handleInvestments)
	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	mux.HandleFunc("POST /api/signal", s.handleSignal)
	mux.HandleFunc("GET /api/news", s.handleNews)
	mux.HandleFunc("GET /api/backtest/markets", s.handleBacktestMarkets)
	mux.HandleFunc("POST /api/backtest", s.handleBacktest)
	mux.HandleFunc("GET /api/executor", s.handleExecutorStatus)
	mux.HandleFunc("POST /api/executor/start", s.handleExecutorStart)
	mux.HandleFunc("POST /api/executor/stop", s.handleExecutorStop)
	mux.HandleFunc("GET /api/wallet", s.handleWallet)
	mux.HandleFunc("POST /api/wallet/connect", s.handleWalletConnect)
	mux.HandleFunc("POST /api/wallet/disconnect", s.handleWalletDisconnect)
	mux.HandleFunc("GET /ws", s.hub.serveWS)

	var h http.Handler = mux
	h = logRequests(h)
	h = cors(s.cfg.CORSOrigins)(h)
	h = recoverPanics(h)
	return h
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.baseCtx = ctx
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.hub.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", s.cfg.Port).Msg("🌐 API server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		log.Info().Msg("🌐 API server stopped")
		return nil
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Warn().Err(err).Msg("⚠️ response encode failed")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
