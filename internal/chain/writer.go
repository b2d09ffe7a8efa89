package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Signer signs transactions for one account. The chain id is fixed at
// construction so a signer can never sign for the wrong network.
type Signer interface {
	Address() common.Address
	SignTx(tx *types.Transaction) (*types.Transaction, error)
}

// TxBackend is the subset of an RPC client needed to assemble, submit and
// confirm transactions. *ethclient.Client satisfies it.
type TxBackend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Writer submits state-changing transactions to the prediction market.
type Writer struct {
	contract common.Address
	backend  TxBackend
	dryRun   bool

	receiptInterval time.Duration
	receiptTimeout  time.Duration
}

func NewWriter(contract common.Address, backend TxBackend, dryRun bool) *Writer {
	return &Writer{
		contract:        contract,
		backend:         backend,
		dryRun:          dryRun,
		receiptInterval: 2 * time.Second,
		receiptTimeout:  2 * time.Minute,
	}
}

// PlaceBet stakes amount HBAR on an outcome. The stake travels as the
// transaction value and is echoed in calldata for the contract's bookkeeping.
func (w *Writer) PlaceBet(ctx context.Context, signer Signer, questionID, outcomeIndex uint64, amount decimal.Decimal) (*types.Receipt, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("placeBet: stake must be positive, got %s", amount)
	}
	wei := WeiFromHBAR(amount)
	data, err := MarketABI.Pack("placeBet", new(big.Int).SetUint64(questionID), new(big.Int).SetUint64(outcomeIndex), wei)
	if err != nil {
		return nil, fmt.Errorf("pack placeBet: %w", err)
	}
	log.Info().Uint64("question_id", questionID).Uint64("outcome", outcomeIndex).Str("amount_hbar", amount.String()).Msg("🎯 placing bet")
	return w.submit(ctx, "placeBet", signer, data, wei)
}

// AddQuestion creates a new market. Oracle-only on chain.
func (w *Writer) AddQuestion(ctx context.Context, signer Signer, question string, outcomeNames []string, endTime int64) (*types.Receipt, error) {
	if len(outcomeNames) < 2 {
		return nil, fmt.Errorf("addQuestion: need at least two outcomes, got %d", len(outcomeNames))
	}
	data, err := MarketABI.Pack("addQuestion", question, outcomeNames, big.NewInt(endTime))
	if err != nil {
		return nil, fmt.Errorf("pack addQuestion: %w", err)
	}
	log.Info().Str("question", question).Int("outcomes", len(outcomeNames)).Msg("📝 adding question")
	return w.submit(ctx, "addQuestion", signer, data, nil)
}

// ResolveMarket settles a question on its winning outcome. Oracle-only on chain.
func (w *Writer) ResolveMarket(ctx context.Context, signer Signer, questionID, winningOutcome uint64) (*types.Receipt, error) {
	data, err := MarketABI.Pack("resolveMarket", new(big.Int).SetUint64(questionID), new(big.Int).SetUint64(winningOutcome))
	if err != nil {
		return nil, fmt.Errorf("pack resolveMarket: %w", err)
	}
	log.Info().Uint64("question_id", questionID).Uint64("winning_outcome", winningOutcome).Msg("⚖️ resolving market")
	return w.submit(ctx, "resolveMarket", signer, data, nil)
}

// ClaimWinnings pays out the caller's share of a resolved market.
func (w *Writer) ClaimWinnings(ctx context.Context, signer Signer, questionID uint64) (*types.Receipt, error) {
	data, err := MarketABI.Pack("claimWinnings", new(big.Int).SetUint64(questionID))
	if err != nil {
		return nil, fmt.Errorf("pack claimWinnings: %w", err)
	}
	log.Info().Uint64("question_id", questionID).Msg("💰 claiming winnings")
	return w.submit(ctx, "claimWinnings", signer, data, nil)
}

func (w *Writer) submit(ctx context.Context, op string, signer Signer, data []byte, value *big.Int) (*types.Receipt, error) {
	if signer == nil {
		return nil, fmt.Errorf("%s: no signer, please connect a wallet", op)
	}
	from := signer.Address()

	if w.dryRun {
		log.Info().Str("op", op).Str("from", from.Hex()).Msg("🧪 DRY RUN - transaction not submitted")
		return nil, nil
	}

	nonce, err := w.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, NormalizeError(op, err)
	}
	gasPrice, err := w.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, NormalizeError(op, err)
	}
	msg := ethereum.CallMsg{From: from, To: &w.contract, Value: value, Data: data}
	gasLimit, err := w.backend.EstimateGas(ctx, msg)
	if err != nil {
		return nil, NormalizeError(op, err)
	}
	// Hedera gas estimates run tight, pad the limit.
	gasLimit = gasLimit + gasLimit/5

	tx := types.NewTransaction(nonce, w.contract, valueOrZero(value), gasLimit, gasPrice, data)
	signed, err := signer.SignTx(tx)
	if err != nil {
		return nil, NormalizeError(op, err)
	}
	if err := w.backend.SendTransaction(ctx, signed); err != nil {
		return nil, NormalizeError(op, err)
	}
	log.Info().Str("op", op).Str("tx", signed.Hash().Hex()).Msg("📤 transaction submitted")

	receipt, err := w.waitMined(ctx, signed.Hash())
	if err != nil {
		return nil, NormalizeError(op, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, &CallError{Op: op, Reason: "transaction reverted by the contract"}
	}
	log.Info().Str("op", op).Str("tx", signed.Hash().Hex()).Uint64("block", receipt.BlockNumber.Uint64()).Msg("✅ transaction confirmed")
	return receipt, nil
}

func (w *Writer) waitMined(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, w.receiptTimeout)
	defer cancel()

	ticker := time.NewTicker(w.receiptInterval)
	defer ticker.Stop()
	for {
		receipt, err := w.backend.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for receipt %s: %w", txHash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

func valueOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
