// Package executor runs the automated trading loop: poll markets, ask the
// signal service, place at most one bet per activation.
package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/0xvasu/hederabet/internal/chain"
	"github.com/0xvasu/hederabet/internal/ledger"
	"github.com/0xvasu/hederabet/internal/signal"
	"github.com/0xvasu/hederabet/internal/wallet"
)

// Outcome indices a directional signal maps to. Markets are laid out with
// the affirmative outcome first.
const (
	buyOutcome  = 0
	sellOutcome = 1
)

// State of an activation. An activation is terminal after its single bet
// attempt: completed on success, error on a failed submission, stopped when
// Stop cuts it short. HOLD cycles keep the activation running.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateStopped   State = "stopped"
	StateError     State = "error"
)

// MarketSource lists markets. *chain.Reader satisfies it.
type MarketSource interface {
	Markets(ctx context.Context) ([]*chain.Market, error)
}

// SignalSource produces trading signals. *signal.Client satisfies it.
type SignalSource interface {
	Generate(ctx context.Context, req signal.Request) *signal.Signal
}

// Bettor submits bets. *chain.Writer satisfies it.
type Bettor interface {
	PlaceBet(ctx context.Context, signer chain.Signer, questionID, outcomeIndex uint64, amount decimal.Decimal) (*types.Receipt, error)
}

// Wallet is the session surface the executor needs.
type Wallet interface {
	Signer(ctx context.Context) (chain.Signer, error)
	Balance(ctx context.Context) (decimal.Decimal, error)
}

// Book records executed trades. *ledger.Ledger satisfies it.
type Book interface {
	Record(ctx context.Context, inv ledger.Investment) (*ledger.Investment, error)
	Settle(ctx context.Context, questionID, winningOutcome uint64) error
}

// Notifier pushes trade alerts. Optional.
type Notifier interface {
	Notify(message string)
}

// Config holds the executor's trading limits.
type Config struct {
	Interval         time.Duration
	BetAmountHBAR    decimal.Decimal
	SpendingLimitUSD decimal.Decimal // 0 disables the ceiling
	HBARPriceUSD     decimal.Decimal
	GasReserveHBAR   decimal.Decimal
	RiskLevel        string
}

// Executor drives the automated betting loop. Start and Stop may be called
// repeatedly; each activation gets its own generation so a straggling cycle
// from a superseded run can never place a bet under a new one.
type Executor struct {
	cfg      Config
	markets  MarketSource
	signals  SignalSource
	bettor   Bettor
	wallet   Wallet
	book     Book
	notifier Notifier

	mu         sync.Mutex
	state      State
	generation uint64
	spentUSD   decimal.Decimal
	lastRun    time.Time
	lastAction string
	stopCh     chan struct{}
	doneCh     chan struct{}
}

func New(cfg Config, markets MarketSource, signals SignalSource, bettor Bettor, w Wallet, book Book, notifier Notifier) *Executor {
	return &Executor{
		cfg:      cfg,
		markets:  markets,
		signals:  signals,
		bettor:   bettor,
		wallet:   w,
		book:     book,
		notifier: notifier,
		state:    StateIdle,
		spentUSD: decimal.Zero,
	}
}

// SetNotifier wires an alert sink after construction.
func (e *Executor) SetNotifier(n Notifier) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notifier = n
}

// Start activates the loop. The first cycle runs immediately. Restarting
// after a terminal state begins a fresh activation with a reset budget.
func (e *Executor) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.state == StateRunning {
		e.mu.Unlock()
		return fmt.Errorf("executor already running")
	}
	e.state = StateRunning
	e.generation++
	e.spentUSD = decimal.Zero
	gen := e.generation
	e.stopCh = make(chan struct{})
	e.doneCh = make(chan struct{})
	stopCh, doneCh := e.stopCh, e.doneCh
	e.mu.Unlock()

	log.Info().Dur("interval", e.cfg.Interval).Str("bet_hbar", e.cfg.BetAmountHBAR.String()).Msg("🤖 auto executor started")
	go e.loop(ctx, gen, stopCh, doneCh)
	return nil
}

// Stop deactivates a running loop and waits for the current cycle to finish.
// Safe from any state and idempotent: after the activation has already
// terminated on its own it is a no-op.
func (e *Executor) Stop() {
	e.mu.Lock()
	if e.state != StateRunning {
		e.mu.Unlock()
		return
	}
	e.state = StateStopped
	close(e.stopCh)
	doneCh := e.doneCh
	e.mu.Unlock()

	<-doneCh
	log.Info().Msg("🛑 auto executor stopped")
}

// Running reports whether an activation is live.
func (e *Executor) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == StateRunning
}

// Status describes the executor for dashboards.
type Status struct {
	State      State           `json:"state"`
	Running    bool            `json:"running"`
	LastRun    time.Time       `json:"lastRun"`
	LastAction string          `json:"lastAction"`
	SpentUSD   decimal.Decimal `json:"spentUsd"`
}

func (e *Executor) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{
		State:      e.state,
		Running:    e.state == StateRunning,
		LastRun:    e.lastRun,
		LastAction: e.lastAction,
		SpentUSD:   e.spentUSD,
	}
}

func (e *Executor) loop(ctx context.Context, gen uint64, stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	if e.runCycle(ctx, gen) {
		return
	}
	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if e.runCycle(ctx, gen) {
				return
			}
		}
	}
}

// runCycle executes one cycle and reports whether the activation reached a
// terminal state.
func (e *Executor) runCycle(ctx context.Context, gen uint64) bool {
	if !e.currentGeneration(gen) {
		return true
	}
	action, terminal, err := e.executeOnce(ctx, gen)

	e.mu.Lock()
	e.lastRun = time.Now()
	if err != nil {
		e.lastAction = "error: " + err.Error()
	} else {
		e.lastAction = action
	}
	if terminal && e.state == StateRunning && e.generation == gen {
		if err != nil {
			e.state = StateError
		} else {
			e.state = StateCompleted
		}
	}
	e.mu.Unlock()

	if err != nil {
		log.Error().Err(err).Msg("❌ execution cycle failed")
	}
	if terminal {
		log.Info().Str("action", action).Msg("🏁 activation finished")
	}
	return terminal
}

// executeOnce runs one cycle. The bool reports whether the cycle ended the
// activation: true exactly when a bet submission was attempted, regardless
// of its outcome. Holds, blocked gates and transient fetch failures leave
// the activation polling.
func (e *Executor) executeOnce(ctx context.Context, gen uint64) (string, bool, error) {
	markets, err := e.markets.Markets(ctx)
	if err != nil {
		return "", false, fmt.Errorf("fetch markets: %w", err)
	}
	e.settleResolved(ctx, markets)

	target := pickTarget(markets, time.Now())
	if target == nil {
		log.Debug().Int("markets", len(markets)).Msg("no open market to trade")
		return "no open market", false, nil
	}

	sig := e.signals.Generate(ctx, signal.Request{
		QuestionID:  target.QuestionID,
		Question:    target.Question,
		RiskLevel:   e.cfg.RiskLevel,
		MarketPrice: impliedPrice(target),
	})
	if sig == nil || sig.Direction == signal.DirectionHold {
		log.Info().Uint64("question_id", target.QuestionID).Msg("⏸️ holding, no bet this cycle")
		return "hold", false, nil
	}

	outcomeIndex := uint64(buyOutcome)
	if sig.Direction == signal.DirectionSell {
		outcomeIndex = sellOutcome
	}
	if outcomeIndex >= uint64(len(target.Outcomes)) {
		return "", false, fmt.Errorf("market %d has no outcome %d for %s signal", target.QuestionID, outcomeIndex, sig.Direction)
	}

	if ok, reason := e.passesGates(ctx, gen); !ok {
		log.Warn().Str("reason", reason).Msg("🚫 bet blocked")
		return "blocked: " + reason, false, nil
	}

	signer, err := e.wallet.Signer(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("🚫 bet blocked")
		return "blocked: " + err.Error(), false, nil
	}
	if !e.currentGeneration(gen) {
		return "superseded", false, nil
	}

	receipt, err := e.bettor.PlaceBet(ctx, signer, target.QuestionID, outcomeIndex, e.cfg.BetAmountHBAR)
	if err != nil {
		return "", true, fmt.Errorf("place bet: %w", err)
	}

	betUSD := e.cfg.BetAmountHBAR.Mul(e.cfg.HBARPriceUSD)
	e.mu.Lock()
	e.spentUSD = e.spentUSD.Add(betUSD)
	e.mu.Unlock()

	txHash := ""
	if receipt != nil {
		txHash = receipt.TxHash.Hex()
	}
	inv := ledger.Investment{
		QuestionID:   target.QuestionID,
		Question:     target.Question,
		OutcomeIndex: outcomeIndex,
		OutcomeName:  target.Outcomes[outcomeIndex].Name,
		AmountHBAR:   e.cfg.BetAmountHBAR,
		Role:         ledger.RoleAI,
		TxHash:       txHash,
		Signal:       sig.Direction,
	}
	if _, err := e.book.Record(ctx, inv); err != nil {
		log.Error().Err(err).Msg("❌ bet placed but ledger write failed")
	}
	e.mu.Lock()
	notifier := e.notifier
	e.mu.Unlock()
	if notifier != nil {
		notifier.Notify(fmt.Sprintf("🎯 Bet placed: %s HBAR on %q (%s), signal %s",
			e.cfg.BetAmountHBAR, target.Question, target.Outcomes[outcomeIndex].Name, sig.Direction))
	}
	return fmt.Sprintf("bet %s HBAR on outcome %d of market %d", e.cfg.BetAmountHBAR, outcomeIndex, target.QuestionID), true, nil
}

// passesGates checks the spending ceiling before touching the wallet, then
// the balance floor. Order matters: a ceiling refusal must not contact the
// wallet at all.
func (e *Executor) passesGates(ctx context.Context, gen uint64) (bool, string) {
	betUSD := e.cfg.BetAmountHBAR.Mul(e.cfg.HBARPriceUSD)
	if e.cfg.SpendingLimitUSD.IsPositive() {
		e.mu.Lock()
		projected := e.spentUSD.Add(betUSD)
		e.mu.Unlock()
		if projected.GreaterThan(e.cfg.SpendingLimitUSD) {
			return false, fmt.Sprintf("spending limit reached (%s of %s USD)", projected, e.cfg.SpendingLimitUSD)
		}
	}

	balance, err := e.wallet.Balance(ctx)
	if err != nil {
		return false, "balance check failed: " + err.Error()
	}
	needed := e.cfg.BetAmountHBAR.Add(e.cfg.GasReserveHBAR)
	if balance.LessThan(needed) {
		return false, fmt.Sprintf("insufficient balance: have %s HBAR, need %s", balance, needed)
	}
	if !e.currentGeneration(gen) {
		return false, "executor stopped"
	}
	return true, ""
}

func (e *Executor) settleResolved(ctx context.Context, markets []*chain.Market) {
	for _, m := range markets {
		if !m.Resolved {
			continue
		}
		if err := e.book.Settle(ctx, m.QuestionID, m.WinningOutcome); err != nil {
			log.Warn().Err(err).Uint64("question_id", m.QuestionID).Msg("⚠️ ledger settle failed")
		}
	}
}

func (e *Executor) currentGeneration(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == StateRunning && e.generation == gen
}

// pickTarget selects the first open, unresolved market with full outcome
// data.
func pickTarget(markets []*chain.Market, now time.Time) *chain.Market {
	for _, m := range markets {
		if m.Resolved || m.Ended(now) || m.Schema != chain.SchemaFull || len(m.Outcomes) < 2 {
			continue
		}
		return m
	}
	return nil
}

// impliedPrice is the pool-implied probability of the affirmative outcome.
// An empty pool has no information, report even odds.
func impliedPrice(m *chain.Market) decimal.Decimal {
	if len(m.Outcomes) == 0 || !m.TotalPool.IsPositive() {
		return decimal.NewFromFloat(0.5)
	}
	return m.Outcomes[buyOutcome].TotalBets.Div(m.TotalPool)
}

var _ Wallet = (*wallet.Session)(nil)
