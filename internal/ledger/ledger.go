package ledger

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Investment statuses. Entries start pending and settle to won or lost when
// their market resolves.
const (
	StatusPending = "pending"
	StatusWon     = "won"
	StatusLost    = "lost"
)

// Who placed a trade. Joint is a virtual role only produced by aggregation,
// stored entries carry User or AI.
const (
	RoleUser  = "User"
	RoleAI    = "AI"
	RoleJoint = "Joint"
)

// Investment is one executed trade as recorded at execution time.
type Investment struct {
	ID           string          `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time       `json:"createdAt"`
	QuestionID   uint64          `gorm:"index" json:"questionId"`
	Question     string          `json:"question"`
	OutcomeIndex uint64          `json:"outcomeIndex"`
	OutcomeName  string          `json:"outcomeName"`
	AmountHBAR   decimal.Decimal `gorm:"type:decimal(30,18)" json:"amountHbar"`
	AmountUSD    decimal.Decimal `gorm:"type:decimal(30,8)" json:"amountUsd"`
	Status       string          `gorm:"index" json:"status"`
	Role         string          `gorm:"index" json:"role"`
	TxHash       string          `json:"txHash,omitempty"`
	Signal       string          `json:"signal,omitempty"`
}

func (Investment) TableName() string { return "investments" }

// Summary is the aggregate view over a set of investments. Pending entries
// contribute to the trade count but not to profit.
type Summary struct {
	TradeCount   int             `json:"tradeCount"`
	PendingCount int             `json:"pendingCount"`
	WonCount     int             `json:"wonCount"`
	LostCount    int             `json:"lostCount"`
	TotalStaked  decimal.Decimal `json:"totalStakedHbar"`
	ProfitHBAR   decimal.Decimal `json:"profitHbar"`
	NetProfitUSD decimal.Decimal `json:"netProfitUsd"`
}

// Ledger persists investments and answers profit queries. HBAR amounts are
// converted to USD at the configured fixed rate.
type Ledger struct {
	db           *gorm.DB
	hbarPriceUSD decimal.Decimal
}

func New(db *gorm.DB, hbarPriceUSD decimal.Decimal) (*Ledger, error) {
	if err := db.AutoMigrate(&Investment{}, &Preference{}); err != nil {
		return nil, fmt.Errorf("migrate ledger tables: %w", err)
	}
	return &Ledger{db: db, hbarPriceUSD: hbarPriceUSD}, nil
}

// Record stores a freshly executed trade as pending.
func (l *Ledger) Record(ctx context.Context, inv Investment) (*Investment, error) {
	if inv.ID == "" {
		inv.ID = newInvestmentID()
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now()
	}
	if inv.Status == "" {
		inv.Status = StatusPending
	}
	if inv.Role == "" {
		inv.Role = RoleUser
	}
	if inv.AmountUSD.IsZero() {
		inv.AmountUSD = inv.AmountHBAR.Mul(l.hbarPriceUSD)
	}
	if err := l.db.WithContext(ctx).Create(&inv).Error; err != nil {
		return nil, fmt.Errorf("record investment: %w", err)
	}
	log.Info().Str("id", inv.ID).Uint64("question_id", inv.QuestionID).Str("amount_hbar", inv.AmountHBAR.String()).Msg("📒 investment recorded")
	return &inv, nil
}

// List returns every investment, newest first.
func (l *Ledger) List(ctx context.Context) ([]Investment, error) {
	var out []Investment
	if err := l.db.WithContext(ctx).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list investments: %w", err)
	}
	return out, nil
}

// Settle flips the pending entries of a resolved market to won or lost.
// Calling it again for the same market is a no-op.
func (l *Ledger) Settle(ctx context.Context, questionID, winningOutcome uint64) error {
	won := l.db.WithContext(ctx).Model(&Investment{}).
		Where("question_id = ? AND status = ? AND outcome_index = ?", questionID, StatusPending, winningOutcome).
		Update("status", StatusWon)
	if won.Error != nil {
		return fmt.Errorf("settle winners: %w", won.Error)
	}
	lost := l.db.WithContext(ctx).Model(&Investment{}).
		Where("question_id = ? AND status = ? AND outcome_index <> ?", questionID, StatusPending, winningOutcome).
		Update("status", StatusLost)
	if lost.Error != nil {
		return fmt.Errorf("settle losers: %w", lost.Error)
	}
	if won.RowsAffected+lost.RowsAffected > 0 {
		log.Info().Uint64("question_id", questionID).Int64("won", won.RowsAffected).Int64("lost", lost.RowsAffected).Msg("📒 investments settled")
	}
	return nil
}

// Summarize returns the aggregate over all stored investments.
func (l *Ledger) Summarize(ctx context.Context) (*Summary, error) {
	entries, err := l.List(ctx)
	if err != nil {
		return nil, err
	}
	s := Aggregate(entries, l.hbarPriceUSD)
	return &s, nil
}

// Aggregate folds investments into a summary. Wins count the stake as
// profit, losses count it as loss, pending entries are skipped for profit.
// Pure so it can be applied to any slice of entries.
func Aggregate(entries []Investment, hbarPriceUSD decimal.Decimal) Summary {
	s := Summary{
		TotalStaked:  decimal.Zero,
		ProfitHBAR:   decimal.Zero,
		NetProfitUSD: decimal.Zero,
	}
	for _, e := range entries {
		s.TradeCount++
		s.TotalStaked = s.TotalStaked.Add(e.AmountHBAR)
		switch e.Status {
		case StatusWon:
			s.WonCount++
			s.ProfitHBAR = s.ProfitHBAR.Add(e.AmountHBAR)
		case StatusLost:
			s.LostCount++
			s.ProfitHBAR = s.ProfitHBAR.Sub(e.AmountHBAR)
		default:
			s.PendingCount++
		}
	}
	s.NetProfitUSD = s.ProfitHBAR.Mul(hbarPriceUSD)
	return s
}

// Preference is a small persisted key/value pair, used for wallet settings.
type Preference struct {
	Key   string `gorm:"primaryKey"`
	Value string
}

func (Preference) TableName() string { return "preferences" }

// Prefs exposes the preference table as a typed store.
type Prefs struct {
	db *gorm.DB
}

func (l *Ledger) Prefs() *Prefs { return &Prefs{db: l.db} }

func (p *Prefs) GetBool(key string) (bool, error) {
	var pref Preference
	err := p.db.First(&pref, "key = ?", key).Error
	if err == gorm.ErrRecordNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read preference %s: %w", key, err)
	}
	return pref.Value == "true", nil
}

func (p *Prefs) SetBool(key string, value bool) error {
	pref := Preference{Key: key, Value: fmt.Sprintf("%t", value)}
	err := p.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&pref).Error
	if err != nil {
		return fmt.Errorf("write preference %s: %w", key, err)
	}
	return nil
}

func newInvestmentID() string {
	return fmt.Sprintf("%d-%06d", time.Now().UnixMilli(), rand.Intn(1_000_000))
}
