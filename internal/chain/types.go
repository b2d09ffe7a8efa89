package chain

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// Schema tells consumers how much of a market could be decoded.
type Schema int

const (
	// SchemaFull means the rich getMarket read succeeded and outcome data
	// is present.
	SchemaFull Schema = iota
	// SchemaPartial means getMarket could not be decoded and the market
	// was recovered from the reduced questions getter. Outcomes is nil.
	SchemaPartial
)

func (s Schema) String() string {
	if s == SchemaPartial {
		return "partial"
	}
	return "full"
}

// Outcome is one side of a market with its parimutuel pool share.
type Outcome struct {
	Name      string          `json:"name"`
	TotalBets decimal.Decimal `json:"totalBets"`
}

// Market is a single prediction market question as read from the contract.
// Amounts are denominated in HBAR.
type Market struct {
	QuestionID     uint64          `json:"questionId"`
	Question       string          `json:"question"`
	Outcomes       []Outcome       `json:"outcomes,omitempty"`
	EndTime        int64           `json:"endTime"`
	Resolved       bool            `json:"resolved"`
	WinningOutcome uint64          `json:"winningOutcome"`
	TotalPool      decimal.Decimal `json:"totalPool"`
	Schema         Schema          `json:"-"`
	Warning        string          `json:"warning,omitempty"`
}

// Ended reports whether the market's betting window has closed.
func (m *Market) Ended(now time.Time) bool {
	return now.Unix() >= m.EndTime
}

// WinningOutcomeName returns the display name of the winning outcome, or
// empty when the market is unresolved or outcome data is missing.
func (m *Market) WinningOutcomeName() string {
	if !m.Resolved || m.Schema == SchemaPartial {
		return ""
	}
	if m.WinningOutcome >= uint64(len(m.Outcomes)) {
		return ""
	}
	return m.Outcomes[m.WinningOutcome].Name
}

// HBARFromWei converts an 18-decimal weibar amount to HBAR.
func HBARFromWei(wei *big.Int) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, -18)
}

// WeiFromHBAR converts an HBAR amount to its 18-decimal weibar value.
func WeiFromHBAR(amount decimal.Decimal) *big.Int {
	return amount.Shift(18).BigInt()
}
