// Package signal talks to the external trading-signal service.
package signal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Directions a signal can recommend. The service phrases directional calls
// as sides of the affirmative outcome, they normalize onto these three.
const (
	DirectionBuy  = "BUY"
	DirectionSell = "SELL"
	DirectionHold = "HOLD"
)

// RiskLevelDefault is sent when the caller does not pick one.
const RiskLevelDefault = "medium"

// recentSize is how many generated signals are kept for the dashboard.
const recentSize = 5

// Per-request deadlines. A plain generation answers within seconds, runs
// with a backtest take up to a minute, so they get the long budget.
const (
	fastDeadline     = 30 * time.Second
	backtestDeadline = 120 * time.Second
	healthDeadline   = 5 * time.Second
)

// Request describes one generation ask. MarketPrice is the current implied
// probability of the affirmative outcome.
type Request struct {
	QuestionID      uint64
	Question        string
	RiskLevel       string
	MarketPrice     decimal.Decimal
	IncludeBacktest bool
}

// Signal is one trading recommendation for a market.
type Signal struct {
	QuestionID   uint64           `json:"questionId"`
	Direction    string           `json:"direction"`
	Confidence   decimal.Decimal  `json:"confidence"`
	Reason       string           `json:"reason"`
	BacktestUsed bool             `json:"backtestUsed"`
	Backtest     *BacktestSummary `json:"backtest,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
}

// BacktestSummary aggregates a strategy replay over resolved markets.
type BacktestSummary struct {
	Accuracy     decimal.Decimal `json:"accuracy"`
	ROI          decimal.Decimal `json:"roi"`
	TotalBets    int             `json:"totalBets"`
	WinningBets  int             `json:"winningBets,omitempty"`
	FinalCapital decimal.Decimal `json:"finalCapital,omitempty"`
	TotalProfit  decimal.Decimal `json:"totalProfit,omitempty"`
}

// BacktestTrade is one simulated bet from a backtest run.
type BacktestTrade struct {
	Question         string          `json:"question"`
	AIConfidence     decimal.Decimal `json:"aiConfidence"`
	BetOnYes         bool            `json:"betOnYes"`
	ActualWinnerName string          `json:"actualWinnerName"`
	AICorrect        bool            `json:"aiCorrect"`
	BetAmount        decimal.Decimal `json:"betAmount"`
	Profit           decimal.Decimal `json:"profit"`
	Timestamp        int64           `json:"timestamp"`
}

// BacktestReport is a full backtest run: the summary plus every trade.
type BacktestReport struct {
	Summary BacktestSummary `json:"summary"`
	Results []BacktestTrade `json:"results"`
}

// BacktestMarket is one resolved market the service can replay against.
type BacktestMarket struct {
	QuestionID         uint64 `json:"questionId"`
	Question           string `json:"question"`
	IsResolved         bool   `json:"isResolved"`
	WinningOutcome     uint64 `json:"winningOutcome"`
	WinningOutcomeName string `json:"winningOutcomeName"`
}

// Client calls the signal service over HTTP. Signal generation is best
// effort, a failed or unreachable service yields no signal rather than an
// error so the executor can simply sit out the cycle.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu     sync.Mutex
	recent []Signal
}

func NewClient(baseURL string) *Client {
	// Deadlines are per request, a single client timeout would cut
	// backtest-backed generations short.
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
}

// Generate asks the service for a recommendation on one market. Returns nil
// without error when the service is down or answers garbage.
func (c *Client) Generate(ctx context.Context, req Request) *Signal {
	risk := req.RiskLevel
	if risk == "" {
		risk = RiskLevelDefault
	}
	payload := map[string]interface{}{
		"question":        req.Question,
		"riskLevel":       risk,
		"marketPrice":     req.MarketPrice.InexactFloat64(),
		"includeBacktest": req.IncludeBacktest,
	}
	deadline := fastDeadline
	if req.IncludeBacktest {
		deadline = backtestDeadline
	}

	var resp struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
		Signal  struct {
			Direction  string          `json:"direction"`
			Confidence decimal.Decimal `json:"confidence"`
			Reason     string          `json:"reason"`
		} `json:"signal"`
		BacktestUsed    bool `json:"backtest_used"`
		BacktestSummary *struct {
			Accuracy  decimal.Decimal `json:"accuracy"`
			ROI       decimal.Decimal `json:"roi"`
			TotalBets int             `json:"total_bets"`
		} `json:"backtest_summary"`
	}
	if err := c.postJSON(ctx, "/api/generate-signal", deadline, payload, &resp); err != nil {
		log.Warn().Err(err).Uint64("question_id", req.QuestionID).Msg("⚠️ signal service unavailable, skipping cycle")
		return nil
	}
	if !resp.Success {
		log.Warn().Str("error", resp.Error).Uint64("question_id", req.QuestionID).Msg("⚠️ signal service refused, skipping cycle")
		return nil
	}

	direction := normalizeDirection(resp.Signal.Direction)
	if direction == "" {
		log.Warn().Str("direction", resp.Signal.Direction).Msg("⚠️ signal service returned unknown direction, treating as none")
		return nil
	}

	sig := &Signal{
		QuestionID:   req.QuestionID,
		Direction:    direction,
		Confidence:   resp.Signal.Confidence,
		Reason:       resp.Signal.Reason,
		BacktestUsed: resp.BacktestUsed,
		CreatedAt:    time.Now(),
	}
	if resp.BacktestSummary != nil {
		sig.Backtest = &BacktestSummary{
			Accuracy:  resp.BacktestSummary.Accuracy,
			ROI:       resp.BacktestSummary.ROI,
			TotalBets: resp.BacktestSummary.TotalBets,
		}
	}
	c.remember(*sig)
	log.Info().Uint64("question_id", req.QuestionID).Str("direction", sig.Direction).Str("confidence", sig.Confidence.String()).Bool("backtest", sig.BacktestUsed).Msg("📡 signal received")
	return sig
}

// normalizeDirection maps the service's phrasing onto the three canonical
// directions. BUY YES backs the affirmative outcome, BUY NO the negative.
func normalizeDirection(raw string) string {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case DirectionBuy, "BUY YES", "YES":
		return DirectionBuy
	case DirectionSell, "BUY NO", "NO":
		return DirectionSell
	case DirectionHold:
		return DirectionHold
	default:
		return ""
	}
}

// NewsContext fetches context lines relevant to a market question.
func (c *Client) NewsContext(ctx context.Context, question string, limit int) ([]string, error) {
	payload := map[string]interface{}{
		"question": question,
		"limit":    limit,
	}
	var resp struct {
		Success bool     `json:"success"`
		Error   string   `json:"error"`
		Lines   []string `json:"lines"`
	}
	if err := c.postJSON(ctx, "/api/news-context", fastDeadline, payload, &resp); err != nil {
		return nil, fmt.Errorf("news context: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("news context: %s", resp.Error)
	}
	return resp.Lines, nil
}

// RunBacktest replays the strategy over every resolved market.
func (c *Client) RunBacktest(ctx context.Context, initialCapital, betSizePercent float64) (*BacktestReport, error) {
	payload := map[string]interface{}{
		"initialCapital": initialCapital,
		"betSizePercent": betSizePercent,
	}
	var resp struct {
		Success bool            `json:"success"`
		Error   string          `json:"error"`
		Summary BacktestSummary `json:"summary"`
		Results []BacktestTrade `json:"results"`
	}
	if err := c.postJSON(ctx, "/api/backtest/run", backtestDeadline, payload, &resp); err != nil {
		return nil, fmt.Errorf("run backtest: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("run backtest: %s", resp.Error)
	}
	return &BacktestReport{Summary: resp.Summary, Results: resp.Results}, nil
}

// BacktestMarkets lists the resolved markets the service can replay.
func (c *Client) BacktestMarkets(ctx context.Context) ([]BacktestMarket, error) {
	var resp struct {
		Success bool             `json:"success"`
		Error   string           `json:"error"`
		Markets []BacktestMarket `json:"markets"`
	}
	if err := c.getJSON(ctx, "/api/backtest/markets", fastDeadline, &resp); err != nil {
		return nil, fmt.Errorf("backtest markets: %w", err)
	}
	return resp.Markets, nil
}

// Healthy reports whether the service answers its health endpoint.
func (c *Client) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthDeadline)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Recent returns the newest generated signals, most recent first.
func (c *Client) Recent() []Signal {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Signal, len(c.recent))
	copy(out, c.recent)
	return out
}

func (c *Client) remember(sig Signal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recent = append([]Signal{sig}, c.recent...)
	if len(c.recent) > recentSize {
		c.recent = c.recent[:recentSize]
	}
}

func (c *Client) postJSON(ctx context.Context, path string, deadline time.Duration, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) getJSON(ctx context.Context, path string, deadline time.Duration, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("signal service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
