package chain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for conditions callers branch on.
var (
	// ErrEmptyResult is returned when a call succeeds at the RPC layer but
	// the node hands back no data to decode.
	ErrEmptyResult = errors.New("empty call result")
	// ErrThrottled is returned when the JSON-RPC relay's circuit breaker
	// rejects the request. Retry after backing off.
	ErrThrottled = errors.New("rpc relay throttled")
)

// CallError wraps a failed contract interaction with a message suitable for
// surfacing to an end user.
type CallError struct {
	Op     string
	Reason string
	Err    error
}

func (e *CallError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Reason)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// UserMessage returns the short human-readable reason for a failure.
func (e *CallError) UserMessage() string {
	if e.Reason != "" {
		return e.Reason
	}
	return "transaction failed, please try again"
}

// NormalizeError classifies a raw RPC or signing error into a CallError
// with an actionable reason. Hedera's relay wraps reverts and throttling in
// its own message strings, so matching is textual.
func NormalizeError(op string, err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "circuit breaker") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "429"):
		return &CallError{Op: op, Reason: "network is busy, please retry shortly", Err: fmt.Errorf("%w: %v", ErrThrottled, err)}
	case strings.Contains(msg, "contract_revert_executed") || strings.Contains(msg, "execution reverted"):
		return &CallError{Op: op, Reason: revertReason(err.Error()), Err: err}
	case strings.Contains(msg, "insufficient funds") || strings.Contains(msg, "insufficient_account_balance"):
		return &CallError{Op: op, Reason: "insufficient HBAR balance for this transaction", Err: err}
	case strings.Contains(msg, "nonce too low") || strings.Contains(msg, "wrong_nonce"):
		return &CallError{Op: op, Reason: "a previous transaction is still pending, please wait", Err: err}
	case strings.Contains(msg, "wrong chain") || strings.Contains(msg, "chain id") && strings.Contains(msg, "mismatch"):
		return &CallError{Op: op, Reason: "wallet is on the wrong network, switch to Hedera testnet", Err: err}
	case strings.Contains(msg, "user rejected") || strings.Contains(msg, "user denied"):
		return &CallError{Op: op, Reason: "request was rejected in the wallet", Err: err}
	case strings.Contains(msg, "context deadline exceeded") || strings.Contains(msg, "timeout"):
		return &CallError{Op: op, Reason: "network timed out, please retry", Err: err}
	default:
		return &CallError{Op: op, Err: err}
	}
}

// revertReason pulls the revert string out of a relay error message when one
// is present.
func revertReason(msg string) string {
	for _, marker := range []string{"execution reverted: ", "reverted with reason string '"} {
		if i := strings.Index(msg, marker); i >= 0 {
			reason := msg[i+len(marker):]
			reason = strings.TrimSuffix(strings.TrimSpace(reason), "'")
			if reason != "" {
				return reason
			}
		}
	}
	return "transaction reverted by the contract"
}
