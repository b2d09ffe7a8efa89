package chain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeErrorClassification(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		message string
	}{
		{"throttled", "server returned 429: circuit breaker open", "network is busy, please retry shortly"},
		{"revert with reason", "execution reverted: Betting closed", "Betting closed"},
		{"relay revert", "CONTRACT_REVERT_EXECUTED", "transaction reverted by the contract"},
		{"broke", "insufficient funds for gas * price + value", "insufficient HBAR balance for this transaction"},
		{"stale nonce", "nonce too low", "a previous transaction is still pending, please wait"},
		{"rejected", "user rejected the request", "request was rejected in the wallet"},
		{"timeout", "context deadline exceeded", "network timed out, please retry"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := NormalizeError("placeBet", errors.New(tc.raw))
			var callErr *CallError
			require.ErrorAs(t, err, &callErr)
			assert.Equal(t, tc.message, callErr.UserMessage())
			assert.Equal(t, "placeBet", callErr.Op)
		})
	}
}

func TestNormalizeErrorThrottledSentinel(t *testing.T) {
	err := NormalizeError("getMarket", errors.New("circuit breaker tripped"))
	assert.ErrorIs(t, err, ErrThrottled)
}

func TestNormalizeErrorNil(t *testing.T) {
	assert.NoError(t, NormalizeError("x", nil))
}

func TestNormalizeErrorUnknownKeepsCause(t *testing.T) {
	cause := errors.New("weird failure")
	err := NormalizeError("claimWinnings", cause)
	assert.ErrorIs(t, err, cause)
	var callErr *CallError
	require.ErrorAs(t, err, &callErr)
	assert.Equal(t, "transaction failed, please try again", callErr.UserMessage())
}
