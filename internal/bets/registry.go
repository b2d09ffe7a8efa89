// Package bets aggregates a user's positions across every market.
package bets

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/0xvasu/hederabet/internal/chain"
)

// MarketSource is the contract-read surface the registry needs.
// *chain.Reader satisfies it.
type MarketSource interface {
	Markets(ctx context.Context) ([]*chain.Market, error)
	UserBet(ctx context.Context, account common.Address, questionID, outcomeIndex uint64) (decimal.Decimal, error)
	HasClaimed(ctx context.Context, questionID uint64, account common.Address) (bool, error)
}

// UserBet is one of the user's positions on a single outcome.
type UserBet struct {
	QuestionID   uint64          `json:"questionId"`
	Question     string          `json:"question"`
	OutcomeIndex uint64          `json:"outcomeIndex"`
	OutcomeName  string          `json:"outcomeName"`
	Stake        decimal.Decimal `json:"stake"`
	Resolved     bool            `json:"resolved"`
	Won          bool            `json:"won"`
	Payout       decimal.Decimal `json:"payout"`
	Claimed      bool            `json:"claimed"`
}

// Registry reads per-user stakes off the contract.
type Registry struct {
	source MarketSource
}

func NewRegistry(source MarketSource) *Registry {
	return &Registry{source: source}
}

// BetsFor scans every market and outcome for the account's stakes. Only
// positive stakes are returned. A failed per-outcome read counts as a zero
// stake so one flaky call cannot sink the whole scan.
func (r *Registry) BetsFor(ctx context.Context, account common.Address) ([]UserBet, error) {
	markets, err := r.source.Markets(ctx)
	if err != nil {
		return nil, err
	}

	var out []UserBet
	for _, m := range markets {
		if m.Schema == chain.SchemaPartial {
			// No outcome list to scan against.
			continue
		}
		claimed := false
		claimChecked := false
		for idx, outcome := range m.Outcomes {
			stake, err := r.source.UserBet(ctx, account, m.QuestionID, uint64(idx))
			if err != nil {
				log.Warn().Err(err).Uint64("question_id", m.QuestionID).Int("outcome", idx).Msg("⚠️ userBets read failed, assuming zero stake")
				continue
			}
			if !stake.IsPositive() {
				continue
			}
			won := m.Resolved && m.WinningOutcome == uint64(idx)
			if m.Resolved && !claimChecked {
				claimed, err = r.source.HasClaimed(ctx, m.QuestionID, account)
				if err != nil {
					log.Warn().Err(err).Uint64("question_id", m.QuestionID).Msg("⚠️ hasClaimed read failed, assuming unclaimed")
					claimed = false
				}
				claimChecked = true
			}
			out = append(out, UserBet{
				QuestionID:   m.QuestionID,
				Question:     m.Question,
				OutcomeIndex: uint64(idx),
				OutcomeName:  outcome.Name,
				Stake:        stake,
				Resolved:     m.Resolved,
				Won:          won,
				Payout:       PayoutPreview(stake, m, uint64(idx)),
				Claimed:      claimed && won,
			})
		}
	}
	return out, nil
}

// PayoutPreview computes the parimutuel payout a stake on outcomeIndex would
// earn at the market's current totals: stake * totalPool / winningOutcomeTotal.
// Unresolved markets, losing outcomes and empty winning pools all preview as
// zero.
func PayoutPreview(stake decimal.Decimal, m *chain.Market, outcomeIndex uint64) decimal.Decimal {
	if !m.Resolved || m.WinningOutcome != outcomeIndex {
		return decimal.Zero
	}
	if m.WinningOutcome >= uint64(len(m.Outcomes)) {
		return decimal.Zero
	}
	winningTotal := m.Outcomes[m.WinningOutcome].TotalBets
	if stake.LessThanOrEqual(decimal.Zero) || winningTotal.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return stake.Mul(m.TotalPool).Div(winningTotal)
}
