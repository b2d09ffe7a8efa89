// Package notify pushes trade alerts and answers control commands over
// Telegram.
package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/0xvasu/hederabet/internal/executor"
	"github.com/0xvasu/hederabet/internal/ledger"
)

// StatsProvider answers the /status and /pnl commands.
type StatsProvider interface {
	Summary(ctx context.Context) (*ledger.Summary, error)
	ExecutorStatus() executor.Status
}

// Stopper handles the /stop command.
type Stopper interface {
	Stop()
}

// Telegram sends alerts to a fixed chat and serves a small command set.
// Nil-safe: a nil *Telegram silently drops notifications so callers never
// have to branch on whether alerts are configured.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	stats  StatsProvider
	stop   Stopper
}

func NewTelegram(token string, chatID int64, stats StatsProvider, stop Stopper) (*Telegram, error) {
	if token == "" || chatID == 0 {
		return nil, nil
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connect telegram: %w", err)
	}
	log.Info().Str("bot", bot.Self.UserName).Msg("📱 telegram notifier connected")
	return &Telegram{bot: bot, chatID: chatID, stats: stats, stop: stop}, nil
}

// Notify sends a message to the configured chat.
func (t *Telegram) Notify(message string) {
	if t == nil {
		return
	}
	msg := tgbotapi.NewMessage(t.chatID, message)
	if _, err := t.bot.Send(msg); err != nil {
		log.Warn().Err(err).Msg("⚠️ telegram send failed")
	}
}

// Run serves incoming commands until ctx is done.
func (t *Telegram) Run(ctx context.Context) {
	if t == nil {
		return
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := t.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			t.bot.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			if update.Message.Chat.ID != t.chatID {
				continue
			}
			t.handleCommand(ctx, update.Message.Command())
		}
	}
}

func (t *Telegram) handleCommand(ctx context.Context, cmd string) {
	switch cmd {
	case "status":
		st := t.stats.ExecutorStatus()
		t.Notify(fmt.Sprintf("🤖 Executor %s\nLast run: %s\nLast action: %s\nSpent this session: $%s",
			st.State, formatTime(st), st.LastAction, st.SpentUSD))
	case "pnl":
		summary, err := t.stats.Summary(ctx)
		if err != nil {
			t.Notify("❌ could not read ledger: " + err.Error())
			return
		}
		t.Notify(fmt.Sprintf("📊 Trades: %d (W%d/L%d/P%d)\nStaked: %s HBAR\nProfit: %s HBAR ($%s)",
			summary.TradeCount, summary.WonCount, summary.LostCount, summary.PendingCount,
			summary.TotalStaked, summary.ProfitHBAR, summary.NetProfitUSD))
	case "stop":
		t.stop.Stop()
		t.Notify("🛑 auto executor stopped")
	default:
		t.Notify("commands: /status /pnl /stop")
	}
}

func formatTime(st executor.Status) string {
	if st.LastRun.IsZero() {
		return "never"
	}
	return st.LastRun.Format("2006-01-02 15:04:05")
}
