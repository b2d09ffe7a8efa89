package bets

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xvasu/hederabet/internal/chain"
)

type fakeSource struct {
	markets   []*chain.Market
	stakes    map[[2]uint64]decimal.Decimal // questionID, outcome -> stake
	failReads map[[2]uint64]bool
	claimed   map[uint64]bool
}

func (f *fakeSource) Markets(ctx context.Context) ([]*chain.Market, error) {
	return f.markets, nil
}

func (f *fakeSource) UserBet(ctx context.Context, account common.Address, questionID, outcomeIndex uint64) (decimal.Decimal, error) {
	key := [2]uint64{questionID, outcomeIndex}
	if f.failReads[key] {
		return decimal.Zero, errors.New("rpc hiccup")
	}
	return f.stakes[key], nil
}

func (f *fakeSource) HasClaimed(ctx context.Context, questionID uint64, account common.Address) (bool, error) {
	return f.claimed[questionID], nil
}

func twoWayMarket(id uint64, yes, no int64, resolved bool, winning uint64) *chain.Market {
	total := decimal.NewFromInt(yes + no)
	return &chain.Market{
		QuestionID: id,
		Question:   "q",
		Outcomes: []chain.Outcome{
			{Name: "Yes", TotalBets: decimal.NewFromInt(yes)},
			{Name: "No", TotalBets: decimal.NewFromInt(no)},
		},
		EndTime:        1757000000,
		Resolved:       resolved,
		WinningOutcome: winning,
		TotalPool:      total,
		Schema:         chain.SchemaFull,
	}
}

var account = common.HexToAddress("0xabc0000000000000000000000000000000000001")

func TestBetsForFiltersZeroStakes(t *testing.T) {
	src := &fakeSource{
		markets: []*chain.Market{twoWayMarket(0, 30, 70, false, 0)},
		stakes: map[[2]uint64]decimal.Decimal{
			{0, 0}: decimal.NewFromInt(10),
			{0, 1}: decimal.Zero,
		},
	}
	r := NewRegistry(src)

	out, err := r.BetsFor(context.Background(), account)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, uint64(0), out[0].OutcomeIndex)
	assert.Equal(t, "Yes", out[0].OutcomeName)
	assert.True(t, out[0].Stake.Equal(decimal.NewFromInt(10)))
}

func TestBetsForTreatsReadFailureAsZero(t *testing.T) {
	src := &fakeSource{
		markets: []*chain.Market{twoWayMarket(0, 30, 70, false, 0)},
		stakes: map[[2]uint64]decimal.Decimal{
			{0, 1}: decimal.NewFromInt(5),
		},
		failReads: map[[2]uint64]bool{{0, 0}: true},
	}
	r := NewRegistry(src)

	out, err := r.BetsFor(context.Background(), account)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, uint64(1), out[0].OutcomeIndex)
}

func TestBetsForSkipsPartialMarkets(t *testing.T) {
	partial := &chain.Market{QuestionID: 1, Schema: chain.SchemaPartial, Resolved: false}
	src := &fakeSource{
		markets: []*chain.Market{partial, twoWayMarket(2, 1, 1, false, 0)},
		stakes: map[[2]uint64]decimal.Decimal{
			{2, 0}: decimal.NewFromInt(1),
		},
	}
	r := NewRegistry(src)

	out, err := r.BetsFor(context.Background(), account)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, uint64(2), out[0].QuestionID)
}

func TestBetsForWinAndPayout(t *testing.T) {
	src := &fakeSource{
		markets: []*chain.Market{twoWayMarket(0, 30, 70, true, 0)},
		stakes: map[[2]uint64]decimal.Decimal{
			{0, 0}: decimal.NewFromInt(10),
		},
		claimed: map[uint64]bool{0: true},
	}
	r := NewRegistry(src)

	out, err := r.BetsFor(context.Background(), account)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.True(t, out[0].Won)
	assert.True(t, out[0].Claimed)
	// 10 * 100 / 30
	expected := decimal.NewFromInt(10).Mul(decimal.NewFromInt(100)).Div(decimal.NewFromInt(30))
	assert.True(t, out[0].Payout.Equal(expected), "got %s", out[0].Payout)
}

func TestPayoutPreview(t *testing.T) {
	m := twoWayMarket(0, 30, 70, true, 0)

	payout := PayoutPreview(decimal.NewFromInt(10), m, 0)
	assert.Equal(t, "33.33", payout.StringFixed(2))

	// Losing side previews zero.
	assert.True(t, PayoutPreview(decimal.NewFromInt(10), m, 1).IsZero())

	// Unresolved market previews zero.
	open := twoWayMarket(0, 30, 70, false, 0)
	assert.True(t, PayoutPreview(decimal.NewFromInt(10), open, 0).IsZero())
}

func TestPayoutPreviewEmptyWinningPool(t *testing.T) {
	m := twoWayMarket(0, 0, 70, true, 0)
	assert.True(t, PayoutPreview(decimal.NewFromInt(10), m, 0).IsZero())
	assert.True(t, PayoutPreview(decimal.Zero, m, 0).IsZero())
}
