package dashboard

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xvasu/hederabet/internal/chain"
	"github.com/0xvasu/hederabet/internal/executor"
	"github.com/0xvasu/hederabet/internal/ledger"
)

var price = decimal.NewFromFloat(0.17)

func entry(role, status string, amountHBAR int64, at time.Time) ledger.Investment {
	return ledger.Investment{
		Role:       role,
		Status:     status,
		AmountHBAR: decimal.NewFromInt(amountHBAR),
		CreatedAt:  at,
	}
}

func TestBuildCountsMarkets(t *testing.T) {
	now := time.Unix(1757000000, 0)
	markets := []*chain.Market{
		{QuestionID: 0, EndTime: now.Add(time.Hour).Unix(), TotalPool: decimal.NewFromInt(100)},
		{QuestionID: 1, EndTime: now.Add(-time.Hour).Unix(), TotalPool: decimal.NewFromInt(50)},
		{QuestionID: 2, Resolved: true, EndTime: now.Add(-2 * time.Hour).Unix(), TotalPool: decimal.NewFromInt(25)},
	}
	entries := []ledger.Investment{
		entry(ledger.RoleUser, ledger.StatusWon, 10, now),
		entry(ledger.RoleAI, ledger.StatusPending, 5, now),
	}

	s := Build(markets, entries, price, executor.Status{Running: true}, nil, now)

	assert.Equal(t, 3, s.MarketCount)
	assert.Equal(t, 1, s.OpenMarkets, "ended but unresolved markets are not open")
	assert.Equal(t, 1, s.ResolvedMarkets)
	assert.True(t, s.PooledHBAR.Equal(decimal.NewFromInt(175)))
	assert.Equal(t, 2, s.Ledger.TradeCount)
	assert.True(t, s.Executor.Running)
	assert.Equal(t, now, s.GeneratedAt)
}

func TestBuildSplitsStatsByRole(t *testing.T) {
	now := time.Unix(1757000000, 0)
	entries := []ledger.Investment{
		entry(ledger.RoleUser, ledger.StatusWon, 10, now),
		entry(ledger.RoleUser, ledger.StatusLost, 4, now.Add(time.Minute)),
		entry(ledger.RoleAI, ledger.StatusWon, 20, now.Add(2*time.Minute)),
		entry(ledger.RoleAI, ledger.StatusPending, 7, now.Add(3*time.Minute)),
	}

	s := Build(nil, entries, price, executor.Status{}, nil, now)

	// User: +10 - 4 = 6 HBAR, AI: +20 HBAR, pending stays out of profit.
	assert.Equal(t, 2, s.User.Trades)
	assert.Equal(t, "1.02", s.User.NetProfitUSD.String())
	assert.Equal(t, 2, s.AI.Trades)
	assert.Equal(t, "3.4", s.AI.NetProfitUSD.String())
	assert.Equal(t, 4, s.Joint.Trades)
	assert.Equal(t, "4.42", s.Joint.NetProfitUSD.String())
}

func TestBuildEntriesWithoutRoleCountAsUser(t *testing.T) {
	now := time.Now()
	entries := []ledger.Investment{entry("", ledger.StatusWon, 10, now)}

	s := Build(nil, entries, price, executor.Status{}, nil, now)
	assert.Equal(t, 1, s.User.Trades)
	assert.Equal(t, 0, s.AI.Trades)
}

func TestBuildPnLSeries(t *testing.T) {
	now := time.Unix(1757000000, 0)
	entries := []ledger.Investment{
		// Out of order on purpose, the series sorts by settlement order.
		entry(ledger.RoleUser, ledger.StatusLost, 4, now.Add(time.Hour)),
		entry(ledger.RoleUser, ledger.StatusWon, 10, now),
		entry(ledger.RoleAI, ledger.StatusWon, 20, now.Add(2*time.Hour)),
		entry(ledger.RoleUser, ledger.StatusPending, 99, now.Add(3*time.Hour)),
	}

	s := Build(nil, entries, price, executor.Status{}, nil, now)

	require.Len(t, s.PnL.Labels, 2)
	assert.Equal(t, []string{"#1", "#2"}, s.PnL.Labels)

	// User line: +10 then -4, in USD.
	require.Len(t, s.PnL.User, 2)
	assert.Equal(t, "1.7", s.PnL.User[0].String())
	assert.Equal(t, "1.02", s.PnL.User[1].String())

	// One AI point, padded with its last value to the user line's length.
	require.Len(t, s.PnL.AI, 2)
	assert.Equal(t, "3.4", s.PnL.AI[0].String())
	assert.Equal(t, "3.4", s.PnL.AI[1].String())

	// Joint is the pointwise sum.
	assert.Equal(t, "5.1", s.PnL.Joint[0].String())
	assert.Equal(t, "4.42", s.PnL.Joint[1].String())
}

func TestBuildEmpty(t *testing.T) {
	s := Build(nil, nil, price, executor.Status{}, nil, time.Now())
	assert.Zero(t, s.MarketCount)
	assert.True(t, s.PooledHBAR.IsZero())
	assert.Zero(t, s.Joint.Trades)
	assert.Empty(t, s.PnL.Labels)
	assert.True(t, s.Joint.NetProfitUSD.IsZero())
}
