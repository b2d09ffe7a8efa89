package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Caller is the read-only subset of an RPC client the reader needs.
// *ethclient.Client satisfies it.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// poolSumTolerance is the allowed drift between the sum of outcome pools and
// the reported market pool before a warning is attached, in HBAR.
var poolSumTolerance = decimal.RequireFromString("0.000001")

// Reader performs read-only contract calls against the prediction market.
// When more than one caller is configured the extras act as fallbacks, tried
// in order after the primary fails.
type Reader struct {
	contract common.Address
	callers  []Caller
}

func NewReader(contract common.Address, callers ...Caller) *Reader {
	if len(callers) == 0 {
		panic("chain: reader needs at least one caller")
	}
	return &Reader{contract: contract, callers: callers}
}

// Contract returns the address the reader is bound to.
func (r *Reader) Contract() common.Address { return r.contract }

func (r *Reader) call(ctx context.Context, method string, args ...interface{}) ([]byte, error) {
	data, err := MarketABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &r.contract, Data: data}

	var lastErr error
	for i, c := range r.callers {
		out, err := c.CallContract(ctx, msg, nil)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if i < len(r.callers)-1 {
			log.Warn().Err(err).Str("method", method).Int("endpoint", i).Msg("⚠️ RPC call failed, trying fallback endpoint")
		}
		if ctx.Err() != nil {
			break
		}
	}
	return nil, NormalizeError(method, lastErr)
}

// QuestionCounter returns the number of questions ever created.
func (r *Reader) QuestionCounter(ctx context.Context) (uint64, error) {
	out, err := r.call(ctx, "questionCounter")
	if err != nil {
		return 0, err
	}
	vals, err := MarketABI.Unpack("questionCounter", out)
	if err != nil {
		return 0, fmt.Errorf("decode questionCounter: %w", err)
	}
	return vals[0].(*big.Int).Uint64(), nil
}

// Oracle returns the address allowed to resolve markets.
func (r *Reader) Oracle(ctx context.Context) (common.Address, error) {
	out, err := r.call(ctx, "oracle")
	if err != nil {
		return common.Address{}, err
	}
	vals, err := MarketABI.Unpack("oracle", out)
	if err != nil {
		return common.Address{}, fmt.Errorf("decode oracle: %w", err)
	}
	return vals[0].(common.Address), nil
}

// Market reads a single question. It first attempts the rich getMarket view;
// if the node returns data the ABI cannot decode it degrades to the reduced
// questions getter and marks the result SchemaPartial instead of failing.
func (r *Reader) Market(ctx context.Context, questionID uint64) (*Market, error) {
	id := new(big.Int).SetUint64(questionID)

	out, err := r.call(ctx, "getMarket", id)
	if err == nil {
		m, decodeErr := decodeFullMarket(questionID, out)
		if decodeErr == nil {
			return m, nil
		}
		log.Warn().Err(decodeErr).Uint64("question_id", questionID).Msg("⚠️ getMarket decode failed, falling back to reduced read")
	} else {
		log.Warn().Err(err).Uint64("question_id", questionID).Msg("⚠️ getMarket call failed, falling back to reduced read")
	}

	out, err = r.call(ctx, "questions", id)
	if err != nil {
		return nil, err
	}
	return decodePartialMarket(questionID, out)
}

// Markets enumerates every question on the contract. The contract does not
// expose its id base, so ids 0..counter-1 are scanned first and, when that
// yields nothing on a non-empty contract, 1..counter is scanned instead.
// Individual failed ids are skipped so one bad market cannot hide the rest.
func (r *Reader) Markets(ctx context.Context) ([]*Market, error) {
	counter, err := r.QuestionCounter(ctx)
	if err != nil {
		return nil, err
	}
	if counter == 0 {
		return nil, nil
	}

	markets := r.scanRange(ctx, 0, counter)
	if len(markets) == 0 {
		log.Debug().Uint64("counter", counter).Msg("zero-based scan empty, retrying one-based ids")
		markets = r.scanRange(ctx, 1, counter+1)
	}
	return markets, ctx.Err()
}

func (r *Reader) scanRange(ctx context.Context, lo, hi uint64) []*Market {
	markets := make([]*Market, 0, hi-lo)
	for id := lo; id < hi; id++ {
		if ctx.Err() != nil {
			return markets
		}
		m, err := r.Market(ctx, id)
		if err != nil {
			log.Warn().Err(err).Uint64("question_id", id).Msg("⚠️ skipping unreadable market")
			continue
		}
		markets = append(markets, m)
	}
	return markets
}

// UserBet returns the caller's stake on one outcome of one question, in HBAR.
func (r *Reader) UserBet(ctx context.Context, account common.Address, questionID, outcomeIndex uint64) (decimal.Decimal, error) {
	out, err := r.call(ctx, "userBets", account, new(big.Int).SetUint64(questionID), new(big.Int).SetUint64(outcomeIndex))
	if err != nil {
		return decimal.Zero, err
	}
	vals, err := MarketABI.Unpack("userBets", out)
	if err != nil {
		return decimal.Zero, fmt.Errorf("decode userBets: %w", err)
	}
	return HBARFromWei(vals[0].(*big.Int)), nil
}

// HasClaimed reports whether the account already claimed winnings on a
// resolved question.
func (r *Reader) HasClaimed(ctx context.Context, questionID uint64, account common.Address) (bool, error) {
	out, err := r.call(ctx, "hasClaimed", new(big.Int).SetUint64(questionID), account)
	if err != nil {
		return false, err
	}
	vals, err := MarketABI.Unpack("hasClaimed", out)
	if err != nil {
		return false, fmt.Errorf("decode hasClaimed: %w", err)
	}
	return vals[0].(bool), nil
}

// BalanceAt returns the account's native HBAR balance via the primary caller.
func (r *Reader) BalanceAt(ctx context.Context, account common.Address) (decimal.Decimal, error) {
	type balancer interface {
		BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	}
	for _, c := range r.callers {
		b, ok := c.(balancer)
		if !ok {
			continue
		}
		wei, err := b.BalanceAt(ctx, account, nil)
		if err != nil {
			continue
		}
		return HBARFromWei(wei), nil
	}
	return decimal.Zero, fmt.Errorf("balance query unsupported by configured endpoints")
}

func decodeFullMarket(questionID uint64, data []byte) (*Market, error) {
	if len(data) == 0 {
		return nil, ErrEmptyResult
	}
	var raw struct {
		Question string
		Outcomes []struct {
			Name           string
			TotalBetAmount *big.Int
		}
		EndTime         *big.Int
		MarketResolved  bool
		WinningOutcome  *big.Int
		TotalMarketPool *big.Int
	}
	if err := MarketABI.UnpackIntoInterface(&raw, "getMarket", data); err != nil {
		return nil, err
	}

	m := &Market{
		QuestionID:     questionID,
		Question:       raw.Question,
		Outcomes:       make([]Outcome, 0, len(raw.Outcomes)),
		EndTime:        raw.EndTime.Int64(),
		Resolved:       raw.MarketResolved,
		WinningOutcome: raw.WinningOutcome.Uint64(),
		TotalPool:      HBARFromWei(raw.TotalMarketPool),
		Schema:         SchemaFull,
	}
	sum := decimal.Zero
	for _, o := range raw.Outcomes {
		amt := HBARFromWei(o.TotalBetAmount)
		sum = sum.Add(amt)
		m.Outcomes = append(m.Outcomes, Outcome{Name: o.Name, TotalBets: amt})
	}
	if sum.Sub(m.TotalPool).Abs().GreaterThan(poolSumTolerance) {
		m.Warning = fmt.Sprintf("outcome pools sum to %s but market pool is %s", sum, m.TotalPool)
		log.Warn().Uint64("question_id", questionID).Str("outcome_sum", sum.String()).Str("pool", m.TotalPool.String()).Msg("⚠️ market pool mismatch")
	}
	return m, nil
}

func decodePartialMarket(questionID uint64, data []byte) (*Market, error) {
	if len(data) == 0 {
		return nil, ErrEmptyResult
	}
	var raw struct {
		Question        string
		EndTime         *big.Int
		MarketResolved  bool
		WinningOutcome  *big.Int
		TotalMarketPool *big.Int
	}
	if err := MarketABI.UnpackIntoInterface(&raw, "questions", data); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	return &Market{
		QuestionID:     questionID,
		Question:       raw.Question,
		EndTime:        raw.EndTime.Int64(),
		Resolved:       raw.MarketResolved,
		WinningOutcome: raw.WinningOutcome.Uint64(),
		TotalPool:      HBARFromWei(raw.TotalMarketPool),
		Schema:         SchemaPartial,
	}, nil
}
