// Package wallet abstracts account access behind a provider interface so the
// rest of the daemon never touches key material directly.
package wallet

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/0xvasu/hederabet/internal/chain"
)

// ErrNoAccounts is returned when a provider holds no unlocked accounts.
var ErrNoAccounts = errors.New("wallet: no accounts available")

// EventKind identifies a provider state change.
type EventKind int

const (
	EventAccountsChanged EventKind = iota
	EventChainChanged
	EventDisconnected
)

// Event is emitted by a provider when its account set or network changes.
type Event struct {
	Kind     EventKind
	Accounts []common.Address
	ChainID  uint64
}

// Provider exposes accounts and signing. Accounts is the silent query used
// for session restore; RequestAccounts may unlock or prompt and is only used
// on an explicit connect.
type Provider interface {
	Accounts(ctx context.Context) ([]common.Address, error)
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	ChainID(ctx context.Context) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address) (decimal.Decimal, error)
	SignerFor(account common.Address) (chain.Signer, error)
	Subscribe() <-chan Event
}
