// Package indexer tails the contract's event log into queryable tables and
// fans fresh events out to websocket subscribers.
package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/0xvasu/hederabet/internal/chain"
)

// maxBlockSpan caps how many blocks one getLogs request covers. The Hedera
// relay rejects wide ranges.
const maxBlockSpan = 500

// LogSource is the log-query subset of an RPC client. *ethclient.Client
// satisfies it.
type LogSource interface {
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// Publisher receives every freshly indexed event for live fan-out.
type Publisher interface {
	Publish(eventType string, payload interface{})
}

// Indexer polls the chain for contract events and persists them.
type Indexer struct {
	db        *gorm.DB
	source    LogSource
	contract  common.Address
	chainID   uint64
	interval  time.Duration
	publisher Publisher
}

func New(db *gorm.DB, source LogSource, contract common.Address, chainID uint64, interval time.Duration, publisher Publisher) (*Indexer, error) {
	err := db.AutoMigrate(&BetPlacedEvent{}, &MarketResolvedEvent{}, &QuestionAddedEvent{}, &WinningsClaimedEvent{}, &Cursor{})
	if err != nil {
		return nil, fmt.Errorf("migrate indexer tables: %w", err)
	}
	return &Indexer{
		db:        db,
		source:    source,
		contract:  contract,
		chainID:   chainID,
		interval:  interval,
		publisher: publisher,
	}, nil
}

// Run polls until ctx is done. startBlock seeds the cursor on a fresh
// database; an existing cursor always wins.
func (ix *Indexer) Run(ctx context.Context, startBlock uint64) {
	log.Info().Str("contract", ix.contract.Hex()).Dur("interval", ix.interval).Msg("🔍 event indexer started")
	ticker := time.NewTicker(ix.interval)
	defer ticker.Stop()

	for {
		if err := ix.sync(ctx, startBlock); err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Msg("⚠️ index sync failed, will retry")
		}
		select {
		case <-ctx.Done():
			log.Info().Msg("🔍 event indexer stopped")
			return
		case <-ticker.C:
		}
	}
}

// sync indexes everything between the cursor and the chain head.
func (ix *Indexer) sync(ctx context.Context, startBlock uint64) error {
	head, err := ix.source.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("query head: %w", err)
	}
	from, err := ix.cursorBlock(startBlock)
	if err != nil {
		return err
	}
	if from > head {
		return nil
	}

	for from <= head {
		to := from + maxBlockSpan - 1
		if to > head {
			to = head
		}
		logs, err := ix.source.FilterLogs(ctx, ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(from),
			ToBlock:   new(big.Int).SetUint64(to),
			Addresses: []common.Address{ix.contract},
		})
		if err != nil {
			return fmt.Errorf("getLogs %d-%d: %w", from, to, err)
		}
		for _, lg := range logs {
			if err := ix.handleLog(lg); err != nil {
				log.Warn().Err(err).Str("tx", lg.TxHash.Hex()).Msg("⚠️ skipping undecodable log")
			}
		}
		if err := ix.saveCursor(to); err != nil {
			return err
		}
		from = to + 1
	}
	return nil
}

func (ix *Indexer) handleLog(lg types.Log) error {
	if len(lg.Topics) == 0 || lg.Removed {
		return nil
	}
	id := entityID(ix.chainID, lg.BlockNumber, lg.Index)
	now := time.Now()

	switch lg.Topics[0] {
	case chain.MarketABI.Events["BetPlaced"].ID:
		if len(lg.Topics) < 3 {
			return fmt.Errorf("BetPlaced log has %d topics, want 3", len(lg.Topics))
		}
		var data struct {
			OutcomeIndex *big.Int
			Amount       *big.Int
		}
		if err := chain.MarketABI.UnpackIntoInterface(&data, "BetPlaced", lg.Data); err != nil {
			return fmt.Errorf("decode BetPlaced: %w", err)
		}
		ev := BetPlacedEvent{
			ID:           id,
			QuestionID:   lg.Topics[1].Big().Uint64(),
			User:         common.HexToAddress(lg.Topics[2].Hex()).Hex(),
			OutcomeIndex: data.OutcomeIndex.Uint64(),
			Amount:       chain.HBARFromWei(data.Amount),
			BlockNumber:  lg.BlockNumber,
			TxHash:       lg.TxHash.Hex(),
			IndexedAt:    now,
		}
		return ix.store("BetPlaced", &ev)

	case chain.MarketABI.Events["MarketResolved"].ID:
		if len(lg.Topics) < 2 {
			return fmt.Errorf("MarketResolved log has %d topics, want 2", len(lg.Topics))
		}
		var data struct {
			WinningOutcome *big.Int
		}
		if err := chain.MarketABI.UnpackIntoInterface(&data, "MarketResolved", lg.Data); err != nil {
			return fmt.Errorf("decode MarketResolved: %w", err)
		}
		ev := MarketResolvedEvent{
			ID:             id,
			QuestionID:     lg.Topics[1].Big().Uint64(),
			WinningOutcome: data.WinningOutcome.Uint64(),
			BlockNumber:    lg.BlockNumber,
			TxHash:         lg.TxHash.Hex(),
			IndexedAt:      now,
		}
		return ix.store("MarketResolved", &ev)

	case chain.MarketABI.Events["QuestionAdded"].ID:
		if len(lg.Topics) < 2 {
			return fmt.Errorf("QuestionAdded log has %d topics, want 2", len(lg.Topics))
		}
		var data struct {
			Question     string
			OutcomeNames []string
			EndTime      *big.Int
		}
		if err := chain.MarketABI.UnpackIntoInterface(&data, "QuestionAdded", lg.Data); err != nil {
			return fmt.Errorf("decode QuestionAdded: %w", err)
		}
		names, _ := json.Marshal(data.OutcomeNames)
		ev := QuestionAddedEvent{
			ID:           id,
			QuestionID:   lg.Topics[1].Big().Uint64(),
			Question:     data.Question,
			OutcomeNames: string(names),
			EndTime:      data.EndTime.Int64(),
			BlockNumber:  lg.BlockNumber,
			TxHash:       lg.TxHash.Hex(),
			IndexedAt:    now,
		}
		return ix.store("QuestionAdded", &ev)

	case chain.MarketABI.Events["WinningsClaimed"].ID:
		if len(lg.Topics) < 3 {
			return fmt.Errorf("WinningsClaimed log has %d topics, want 3", len(lg.Topics))
		}
		var data struct {
			Amount *big.Int
		}
		if err := chain.MarketABI.UnpackIntoInterface(&data, "WinningsClaimed", lg.Data); err != nil {
			return fmt.Errorf("decode WinningsClaimed: %w", err)
		}
		ev := WinningsClaimedEvent{
			ID:          id,
			QuestionID:  lg.Topics[1].Big().Uint64(),
			User:        common.HexToAddress(lg.Topics[2].Hex()).Hex(),
			Amount:      chain.HBARFromWei(data.Amount),
			BlockNumber: lg.BlockNumber,
			TxHash:      lg.TxHash.Hex(),
			IndexedAt:   now,
		}
		return ix.store("WinningsClaimed", &ev)
	}
	return nil
}

func (ix *Indexer) store(eventType string, entity interface{}) error {
	err := ix.db.Clauses(clause.OnConflict{DoNothing: true}).Create(entity).Error
	if err != nil {
		return fmt.Errorf("store %s: %w", eventType, err)
	}
	log.Debug().Str("event", eventType).Msg("📥 event indexed")
	if ix.publisher != nil {
		ix.publisher.Publish(eventType, entity)
	}
	return nil
}

func (ix *Indexer) cursorBlock(startBlock uint64) (uint64, error) {
	var cur Cursor
	err := ix.db.First(&cur, "contract = ?", ix.contract.Hex()).Error
	if err == gorm.ErrRecordNotFound {
		return startBlock, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read cursor: %w", err)
	}
	return cur.LastBlock + 1, nil
}

func (ix *Indexer) saveCursor(block uint64) error {
	cur := Cursor{Contract: ix.contract.Hex(), LastBlock: block, UpdatedAt: time.Now()}
	err := ix.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "contract"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_block", "updated_at"}),
	}).Create(&cur).Error
	if err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	return nil
}

// RecentBets returns the newest indexed bets, most recent block first.
func (ix *Indexer) RecentBets(ctx context.Context, limit int) ([]BetPlacedEvent, error) {
	var out []BetPlacedEvent
	err := ix.db.WithContext(ctx).Order("block_number DESC").Limit(limit).Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("query bets: %w", err)
	}
	return out, nil
}

// BetsForQuestion returns every indexed bet on one market.
func (ix *Indexer) BetsForQuestion(ctx context.Context, questionID uint64) ([]BetPlacedEvent, error) {
	var out []BetPlacedEvent
	err := ix.db.WithContext(ctx).Where("question_id = ?", questionID).Order("block_number ASC").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("query bets: %w", err)
	}
	return out, nil
}
