package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/0xvasu/hederabet/internal/chain"
	"github.com/0xvasu/hederabet/internal/dashboard"
	"github.com/0xvasu/hederabet/internal/signal"
	"github.com/0xvasu/hederabet/internal/wallet"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"timestamp":     time.Now().UnixMilli(),
		"signalService": s.signals.Healthy(r.Context()),
	})
}

// handleChat relays a prompt to the upstream agent and wraps its answer in
// the response envelope the UI expects.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.cfg.AgentURL == "" {
		writeError(w, http.StatusServiceUnavailable, "chat agent is not configured")
		return
	}
	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	body, _ := json.Marshal(map[string]string{"prompt": req.Prompt})
	upstream, err := http.NewRequestWithContext(r.Context(), http.MethodPost,
		strings.TrimRight(s.cfg.AgentURL, "/")+"/api/chat", bytes.NewReader(body))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not build upstream request")
		return
	}
	upstream.Header.Set("Content-Type", "application/json")

	resp, err := s.relay.Do(upstream)
	if err != nil {
		log.Warn().Err(err).Msg("⚠️ chat agent unreachable")
		writeError(w, http.StatusBadGateway, "chat agent unreachable")
		return
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil || resp.StatusCode != http.StatusOK {
		writeError(w, http.StatusBadGateway, "chat agent returned an error")
		return
	}

	message := string(raw)
	var parsed struct {
		Message  string `json:"message"`
		Response string `json:"response"`
	}
	if json.Unmarshal(raw, &parsed) == nil {
		if parsed.Message != "" {
			message = parsed.Message
		} else if parsed.Response != "" {
			message = parsed.Response
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"message":   message,
		"timestamp": time.Now().UnixMilli(),
	})
}

func (s *Server) handleMarkets(w http.ResponseWriter, r *http.Request) {
	markets, err := s.markets.Markets(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, userMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"markets": markets,
	})
}

func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}
	m, err := s.markets.Market(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusBadGateway, userMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"market":  m,
	})
}

func (s *Server) handleBets(w http.ResponseWriter, r *http.Request) {
	account := r.URL.Query().Get("account")
	if !common.IsHexAddress(account) {
		writeError(w, http.StatusBadRequest, "valid account address is required")
		return
	}
	userBets, err := s.bets.BetsFor(r.Context(), common.HexToAddress(account))
	if err != nil {
		writeError(w, http.StatusBadGateway, userMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"bets":    userBets,
	})
}

func (s *Server) handleInvestments(w http.ResponseWriter, r *http.Request) {
	entries, err := s.book.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not read investments")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"investments": entries,
	})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	markets, err := s.markets.Markets(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, userMessage(err))
		return
	}
	entries, err := s.book.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not read ledger")
		return
	}
	stats := dashboard.Build(markets, entries, s.cfg.HBARPriceUSD, s.exec.Status(), s.signals.Recent(), time.Now())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"stats":   stats,
	})
}

func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		QuestionID      uint64 `json:"questionId"`
		RiskLevel       string `json:"riskLevel"`
		IncludeBacktest bool   `json:"includeBacktest"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "questionId is required")
		return
	}
	m, err := s.markets.Market(r.Context(), req.QuestionID)
	if err != nil {
		writeError(w, http.StatusBadGateway, userMessage(err))
		return
	}
	price := decimal.NewFromFloat(0.5)
	if m.TotalPool.IsPositive() && len(m.Outcomes) > 0 {
		price = m.Outcomes[0].TotalBets.Div(m.TotalPool)
	}
	sig := s.signals.Generate(r.Context(), signal.Request{
		QuestionID:      m.QuestionID,
		Question:        m.Question,
		RiskLevel:       req.RiskLevel,
		MarketPrice:     price,
		IncludeBacktest: req.IncludeBacktest,
	})
	if sig == nil {
		writeError(w, http.StatusBadGateway, "signal service did not produce a signal")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"signal":  sig,
	})
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit := 5
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	lines, err := s.signals.NewsContext(r.Context(), query, limit)
	if err != nil {
		writeError(w, http.StatusBadGateway, "news service unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"lines":   lines,
	})
}

func (s *Server) handleBacktestMarkets(w http.ResponseWriter, r *http.Request) {
	markets, err := s.signals.BacktestMarkets(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"markets": markets,
	})
}

func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	req := struct {
		InitialCapital float64 `json:"initialCapital"`
		BetSizePercent float64 `json:"betSizePercent"`
	}{InitialCapital: 1000, BetSizePercent: 10}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, "invalid backtest request")
		return
	}
	if req.InitialCapital <= 0 || req.BetSizePercent <= 0 {
		writeError(w, http.StatusBadRequest, "initialCapital and betSizePercent must be positive")
		return
	}
	report, err := s.signals.RunBacktest(r.Context(), req.InitialCapital, req.BetSizePercent)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"summary": report.Summary,
		"results": report.Results,
	})
}

func (s *Server) handleExecutorStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"executor": s.exec.Status(),
	})
}

func (s *Server) handleExecutorStart(w http.ResponseWriter, r *http.Request) {
	if !s.session.Connected() {
		writeError(w, http.StatusConflict, "please connect wallet before starting the executor")
		return
	}
	// The loop must outlive this request.
	if err := s.exec.Start(s.baseCtx); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (s *Server) handleExecutorStop(w http.ResponseWriter, r *http.Request) {
	s.exec.Stop()
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (s *Server) handleWallet(w http.ResponseWriter, r *http.Request) {
	account, connected := s.session.Account()
	resp := map[string]interface{}{
		"success":   true,
		"connected": connected,
	}
	if connected {
		resp["account"] = account.Hex()
		if balance, err := s.session.Balance(r.Context()); err == nil {
			resp["balanceHbar"] = balance
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWalletConnect(w http.ResponseWriter, r *http.Request) {
	account, err := s.session.Connect(r.Context())
	if err != nil {
		if errors.Is(err, wallet.ErrNoAccounts) {
			writeError(w, http.StatusConflict, "wallet has no accounts")
			return
		}
		writeError(w, http.StatusBadGateway, userMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"account": account.Hex(),
	})
}

func (s *Server) handleWalletDisconnect(w http.ResponseWriter, r *http.Request) {
	s.session.Disconnect()
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// userMessage prefers the normalized reason when the error carries one.
func userMessage(err error) string {
	var callErr *chain.CallError
	if errors.As(err, &callErr) {
		return callErr.UserMessage()
	}
	return err.Error()
}
