package indexer

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Event entity ids follow chainId_blockNumber_logIndex so re-indexing the
// same log is an upsert, not a duplicate.
func entityID(chainID, blockNumber uint64, logIndex uint) string {
	return fmt.Sprintf("%d_%d_%d", chainID, blockNumber, logIndex)
}

// BetPlacedEvent mirrors the contract's BetPlaced event.
type BetPlacedEvent struct {
	ID           string          `gorm:"primaryKey" json:"id"`
	QuestionID   uint64          `gorm:"index" json:"questionId"`
	User         string          `gorm:"index" json:"user"`
	OutcomeIndex uint64          `json:"outcomeIndex"`
	Amount       decimal.Decimal `gorm:"type:decimal(30,18)" json:"amount"`
	BlockNumber  uint64          `json:"blockNumber"`
	TxHash       string          `json:"txHash"`
	IndexedAt    time.Time       `json:"indexedAt"`
}

func (BetPlacedEvent) TableName() string { return "bet_placed_events" }

// MarketResolvedEvent mirrors the contract's MarketResolved event.
type MarketResolvedEvent struct {
	ID             string    `gorm:"primaryKey" json:"id"`
	QuestionID     uint64    `gorm:"index" json:"questionId"`
	WinningOutcome uint64    `json:"winningOutcome"`
	BlockNumber    uint64    `json:"blockNumber"`
	TxHash         string    `json:"txHash"`
	IndexedAt      time.Time `json:"indexedAt"`
}

func (MarketResolvedEvent) TableName() string { return "market_resolved_events" }

// QuestionAddedEvent mirrors the contract's QuestionAdded event. Outcome
// names are stored as a JSON array.
type QuestionAddedEvent struct {
	ID           string    `gorm:"primaryKey" json:"id"`
	QuestionID   uint64    `gorm:"index" json:"questionId"`
	Question     string    `json:"question"`
	OutcomeNames string    `json:"outcomeNames"`
	EndTime      int64     `json:"endTime"`
	BlockNumber  uint64    `json:"blockNumber"`
	TxHash       string    `json:"txHash"`
	IndexedAt    time.Time `json:"indexedAt"`
}

func (QuestionAddedEvent) TableName() string { return "question_added_events" }

// WinningsClaimedEvent mirrors the contract's WinningsClaimed event.
type WinningsClaimedEvent struct {
	ID          string          `gorm:"primaryKey" json:"id"`
	QuestionID  uint64          `gorm:"index" json:"questionId"`
	User        string          `gorm:"index" json:"user"`
	Amount      decimal.Decimal `gorm:"type:decimal(30,18)" json:"amount"`
	BlockNumber uint64          `json:"blockNumber"`
	TxHash      string          `json:"txHash"`
	IndexedAt   time.Time       `json:"indexedAt"`
}

func (WinningsClaimedEvent) TableName() string { return "winnings_claimed_events" }

// Cursor remembers the last fully indexed block per contract.
type Cursor struct {
	Contract  string `gorm:"primaryKey"`
	LastBlock uint64
	UpdatedAt time.Time
}

func (Cursor) TableName() string { return "indexer_cursors" }
