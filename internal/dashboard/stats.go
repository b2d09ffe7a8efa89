// Package dashboard assembles the aggregate view served to the UI.
package dashboard

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/0xvasu/hederabet/internal/chain"
	"github.com/0xvasu/hederabet/internal/executor"
	"github.com/0xvasu/hederabet/internal/ledger"
	"github.com/0xvasu/hederabet/internal/signal"
)

// RoleStats is the net result of one participant's trades. Only settled
// entries move the profit figure.
type RoleStats struct {
	NetProfitUSD decimal.Decimal `json:"netProfitUsd"`
	Trades       int             `json:"trades"`
}

// PnLSeries holds the cumulative profit lines drawn on the dashboard chart.
// All four slices share the same length, shorter lines are padded with
// their last value so the chart axes line up. Joint is the pointwise sum of
// the user and AI lines.
type PnLSeries struct {
	Labels []string          `json:"labels"`
	User   []decimal.Decimal `json:"user"`
	AI     []decimal.Decimal `json:"ai"`
	Joint  []decimal.Decimal `json:"joint"`
}

// Stats is everything the dashboard screen needs in one payload.
type Stats struct {
	GeneratedAt     time.Time       `json:"generatedAt"`
	MarketCount     int             `json:"marketCount"`
	OpenMarkets     int             `json:"openMarkets"`
	ResolvedMarkets int             `json:"resolvedMarkets"`
	PooledHBAR      decimal.Decimal `json:"pooledHbar"`
	Ledger          ledger.Summary  `json:"ledger"`
	User            RoleStats       `json:"user"`
	AI              RoleStats       `json:"ai"`
	Joint           RoleStats       `json:"joint"`
	PnL             PnLSeries       `json:"pnl"`
	Executor        executor.Status `json:"executor"`
	RecentSignals   []signal.Signal `json:"recentSignals"`
}

// Build folds markets, the recorded trades and executor state into one
// stats payload. Pure, all inputs are read before the call.
func Build(markets []*chain.Market, entries []ledger.Investment, hbarPriceUSD decimal.Decimal, execStatus executor.Status, recentSignals []signal.Signal, now time.Time) Stats {
	s := Stats{
		GeneratedAt:   now,
		MarketCount:   len(markets),
		PooledHBAR:    decimal.Zero,
		Ledger:        ledger.Aggregate(entries, hbarPriceUSD),
		Executor:      execStatus,
		RecentSignals: recentSignals,
	}
	for _, m := range markets {
		s.PooledHBAR = s.PooledHBAR.Add(m.TotalPool)
		switch {
		case m.Resolved:
			s.ResolvedMarkets++
		case !m.Ended(now):
			s.OpenMarkets++
		}
	}

	user, ai := splitByRole(entries)
	s.User = roleStats(user, hbarPriceUSD)
	s.AI = roleStats(ai, hbarPriceUSD)
	s.Joint = RoleStats{
		NetProfitUSD: s.User.NetProfitUSD.Add(s.AI.NetProfitUSD),
		Trades:       s.User.Trades + s.AI.Trades,
	}
	s.PnL = pnlSeries(user, ai, hbarPriceUSD)
	return s
}

// splitByRole partitions entries into user and AI trades. Entries recorded
// before roles existed carry no role and count as the user's.
func splitByRole(entries []ledger.Investment) (user, ai []ledger.Investment) {
	for _, e := range entries {
		if e.Role == ledger.RoleAI {
			ai = append(ai, e)
		} else {
			user = append(user, e)
		}
	}
	return user, ai
}

func roleStats(entries []ledger.Investment, hbarPriceUSD decimal.Decimal) RoleStats {
	rs := RoleStats{NetProfitUSD: decimal.Zero, Trades: len(entries)}
	for _, e := range entries {
		switch e.Status {
		case ledger.StatusWon:
			rs.NetProfitUSD = rs.NetProfitUSD.Add(e.AmountHBAR.Mul(hbarPriceUSD))
		case ledger.StatusLost:
			rs.NetProfitUSD = rs.NetProfitUSD.Sub(e.AmountHBAR.Mul(hbarPriceUSD))
		}
	}
	return rs
}

// pnlSeries builds the cumulative per-role profit lines in settlement
// order. Pending entries carry no result yet and are skipped.
func pnlSeries(user, ai []ledger.Investment, hbarPriceUSD decimal.Decimal) PnLSeries {
	userLine := cumulativeLine(user, hbarPriceUSD)
	aiLine := cumulativeLine(ai, hbarPriceUSD)

	n := len(userLine)
	if len(aiLine) > n {
		n = len(aiLine)
	}
	userLine = padLine(userLine, n)
	aiLine = padLine(aiLine, n)

	series := PnLSeries{
		Labels: make([]string, n),
		User:   userLine,
		AI:     aiLine,
		Joint:  make([]decimal.Decimal, n),
	}
	for i := 0; i < n; i++ {
		series.Labels[i] = fmt.Sprintf("#%d", i+1)
		series.Joint[i] = userLine[i].Add(aiLine[i])
	}
	return series
}

func cumulativeLine(entries []ledger.Investment, hbarPriceUSD decimal.Decimal) []decimal.Decimal {
	sorted := make([]ledger.Investment, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].CreatedAt.Before(sorted[j].CreatedAt) })

	var line []decimal.Decimal
	cum := decimal.Zero
	for _, e := range sorted {
		switch e.Status {
		case ledger.StatusWon:
			cum = cum.Add(e.AmountHBAR.Mul(hbarPriceUSD))
		case ledger.StatusLost:
			cum = cum.Sub(e.AmountHBAR.Mul(hbarPriceUSD))
		default:
			continue
		}
		line = append(line, cum)
	}
	return line
}

func padLine(line []decimal.Decimal, n int) []decimal.Decimal {
	last := decimal.Zero
	if len(line) > 0 {
		last = line[len(line)-1]
	}
	for len(line) < n {
		line = append(line, last)
	}
	return line
}
