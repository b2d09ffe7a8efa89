package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xvasu/hederabet/internal/bets"
	"github.com/0xvasu/hederabet/internal/chain"
	"github.com/0xvasu/hederabet/internal/executor"
	"github.com/0xvasu/hederabet/internal/ledger"
	"github.com/0xvasu/hederabet/internal/signal"
	"github.com/0xvasu/hederabet/internal/wallet"
)

type fakeMarkets struct {
	markets []*chain.Market
	err     error
}

func (f *fakeMarkets) Markets(ctx context.Context) ([]*chain.Market, error) {
	return f.markets, f.err
}

func (f *fakeMarkets) Market(ctx context.Context, id uint64) (*chain.Market, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, m := range f.markets {
		if m.QuestionID == id {
			return m, nil
		}
	}
	return nil, fmt.Errorf("market %d not found", id)
}

type fakeBets struct {
	bets []bets.UserBet
}

func (f *fakeBets) BetsFor(ctx context.Context, account common.Address) ([]bets.UserBet, error) {
	return f.bets, nil
}

type fakeBook struct {
	entries []ledger.Investment
}

func (f fakeBook) List(ctx context.Context) ([]ledger.Investment, error) { return f.entries, nil }

type fakeExec struct {
	started bool
}

func (f *fakeExec) Start(ctx context.Context) error { f.started = true; return nil }
func (f *fakeExec) Stop()                           {}
func (f *fakeExec) Status() executor.Status         { return executor.Status{Running: f.started} }

type fakeSignalService struct {
	sig     *signal.Signal
	lastReq signal.Request
}

func (f *fakeSignalService) Generate(ctx context.Context, req signal.Request) *signal.Signal {
	f.lastReq = req
	return f.sig
}
func (f *fakeSignalService) Recent() []signal.Signal { return nil }
func (f *fakeSignalService) NewsContext(ctx context.Context, question string, limit int) ([]string, error) {
	return []string{"HBAR rallies on ETF talk"}, nil
}
func (f *fakeSignalService) RunBacktest(ctx context.Context, initialCapital, betSizePercent float64) (*signal.BacktestReport, error) {
	return &signal.BacktestReport{
		Summary: signal.BacktestSummary{TotalBets: 3, FinalCapital: decimal.NewFromFloat(initialCapital)},
	}, nil
}
func (f *fakeSignalService) BacktestMarkets(ctx context.Context) ([]signal.BacktestMarket, error) {
	return []signal.BacktestMarket{{QuestionID: 1, Question: "q", IsResolved: true}}, nil
}
func (f *fakeSignalService) Healthy(ctx context.Context) bool { return true }

type memPrefs map[string]bool

func (p memPrefs) GetBool(key string) (bool, error) { return p[key], nil }
func (p memPrefs) SetBool(key string, v bool) error { p[key] = v; return nil }

func sampleMarket() *chain.Market {
	return &chain.Market{
		QuestionID: 1,
		Question:   "Will HBAR close above $0.20?",
		Outcomes: []chain.Outcome{
			{Name: "Yes", TotalBets: decimal.NewFromInt(30)},
			{Name: "No", TotalBets: decimal.NewFromInt(70)},
		},
		EndTime:   time.Now().Add(time.Hour).Unix(),
		TotalPool: decimal.NewFromInt(100),
		Schema:    chain.SchemaFull,
	}
}

func testServer(t *testing.T, cfg Config, markets MarketSource, exec Exec) *Server {
	t.Helper()
	if markets == nil {
		markets = &fakeMarkets{markets: []*chain.Market{sampleMarket()}}
	}
	if exec == nil {
		exec = &fakeExec{}
	}
	session := wallet.NewSession(wallet.Locked(296), memPrefs{}, 296)
	srv := New(cfg, markets, &fakeBets{}, fakeBook{}, exec,
		&fakeSignalService{sig: &signal.Signal{Direction: signal.DirectionBuy}}, session, NewHub())
	srv.baseCtx = context.Background()
	return srv
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	srv := testServer(t, Config{}, nil, nil)
	rec := do(t, srv, http.MethodGet, "/health", "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["signalService"])
}

func TestMarketsList(t *testing.T) {
	srv := testServer(t, Config{}, nil, nil)
	rec := do(t, srv, http.MethodGet, "/api/markets", "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Len(t, body["markets"], 1)
}

func TestMarketByID(t *testing.T) {
	srv := testServer(t, Config{}, nil, nil)

	rec := do(t, srv, http.MethodGet, "/api/markets/1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/markets/notanumber", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBetsRequiresAccount(t *testing.T) {
	srv := testServer(t, Config{}, nil, nil)

	rec := do(t, srv, http.MethodGet, "/api/bets", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/bets?account=nothex", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/bets?account=0x1111111111111111111111111111111111111111", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestChatWithoutAgentConfigured(t *testing.T) {
	srv := testServer(t, Config{}, nil, nil)
	rec := do(t, srv, http.MethodPost, "/api/chat", `{"prompt":"hello"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestChatRelaysToAgent(t *testing.T) {
	agent := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "what are the odds?", req["prompt"])
		json.NewEncoder(w).Encode(map[string]string{"message": "about 30%"})
	}))
	defer agent.Close()

	srv := testServer(t, Config{AgentURL: agent.URL}, nil, nil)
	rec := do(t, srv, http.MethodPost, "/api/chat", `{"prompt":"what are the odds?"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "about 30%", body["message"])
	assert.NotNil(t, body["timestamp"])
}

func TestChatRejectsEmptyPrompt(t *testing.T) {
	srv := testServer(t, Config{AgentURL: "http://example.invalid"}, nil, nil)
	rec := do(t, srv, http.MethodPost, "/api/chat", `{"prompt":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDashboard(t *testing.T) {
	srv := testServer(t, Config{HBARPriceUSD: decimal.NewFromFloat(0.17)}, nil, nil)
	rec := do(t, srv, http.MethodGet, "/api/dashboard", "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	stats := body["stats"].(map[string]interface{})
	assert.Equal(t, float64(1), stats["marketCount"])
	// Per-role sections and the chart series are always present.
	assert.Contains(t, stats, "user")
	assert.Contains(t, stats, "ai")
	assert.Contains(t, stats, "joint")
	assert.Contains(t, stats, "pnl")
}

func TestSignalEndpoint(t *testing.T) {
	srv := testServer(t, Config{}, nil, nil)
	rec := do(t, srv, http.MethodPost, "/api/signal", `{"questionId":1}`)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	sig := body["signal"].(map[string]interface{})
	assert.Equal(t, "BUY", sig["direction"])

	// The pool split drives the price sent to the service: 30 of 100.
	svc := srv.signals.(*fakeSignalService)
	assert.Equal(t, "0.3", svc.lastReq.MarketPrice.String())
	assert.Equal(t, "Will HBAR close above $0.20?", svc.lastReq.Question)
}

func TestNewsRequiresQuery(t *testing.T) {
	srv := testServer(t, Config{}, nil, nil)

	rec := do(t, srv, http.MethodGet, "/api/news", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/news?q=hbar&limit=3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Len(t, body["lines"], 1)
}

func TestBacktestDefaultsAndValidation(t *testing.T) {
	srv := testServer(t, Config{}, nil, nil)

	// Empty body runs with the default capital and bet size.
	rec := do(t, srv, http.MethodPost, "/api/backtest", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	summary := body["summary"].(map[string]interface{})
	assert.Equal(t, "1000", summary["finalCapital"])

	rec = do(t, srv, http.MethodPost, "/api/backtest", `{"initialCapital":-5,"betSizePercent":10}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExecutorStartNeedsWallet(t *testing.T) {
	exec := &fakeExec{}
	srv := testServer(t, Config{}, nil, exec)

	rec := do(t, srv, http.MethodPost, "/api/executor/start", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.False(t, exec.started)
}

func TestWalletStatusDisconnected(t *testing.T) {
	srv := testServer(t, Config{}, nil, nil)
	rec := do(t, srv, http.MethodGet, "/api/wallet", "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["connected"])
}

func TestMarketsErrorSurfacesNormalizedMessage(t *testing.T) {
	markets := &fakeMarkets{err: chain.NormalizeError("getMarket", fmt.Errorf("circuit breaker open"))}
	srv := testServer(t, Config{}, markets, nil)

	rec := do(t, srv, http.MethodGet, "/api/markets", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "network is busy, please retry shortly", body["error"])
}

func TestCORSHeaders(t *testing.T) {
	srv := testServer(t, Config{CORSOrigins: []string{"http://localhost:5173"}}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
